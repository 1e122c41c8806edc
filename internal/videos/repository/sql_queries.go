package repository

const (
	videoColumns = `id, uuid, original_path, stream_path, renditions, thumbnail_path, hls_master_path, duration_seconds,
					visibility, processing_state, processing_progress, processing_error, queued_at, started_at,
					last_heartbeat_at, finished_at, created_at, updated_at`

	createVideoQuery = `INSERT INTO videos (uuid, original_path, visibility, processing_state)
					VALUES ($1, $2, $3, 'pending') RETURNING ` + videoColumns

	getVideoByIDQuery   = `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`
	getVideoByUUIDQuery = `SELECT ` + videoColumns + ` FROM videos WHERE uuid = $1`

	markQueuedQuery = `UPDATE videos
					SET processing_state = 'queued', queued_at = $2, processing_error = NULL, processing_progress = 0,
					    renditions = '{}'::jsonb, stream_path = NULL, hls_master_path = NULL,
					    started_at = NULL, last_heartbeat_at = NULL, finished_at = NULL, updated_at = now()
					WHERE id = $1 AND processing_state IN ('pending', 'failed', 'ready')`

	startProcessingQuery = `UPDATE videos
					SET processing_state = 'processing', started_at = $2, last_heartbeat_at = $2, updated_at = now()
					WHERE id = $1 AND processing_state = 'queued'`

	heartbeatQuery = `UPDATE videos SET last_heartbeat_at = $2
					WHERE id = $1 AND processing_state = 'processing'`

	updateProgressQuery = `UPDATE videos SET processing_progress = $2, updated_at = now()
					WHERE id = $1 AND processing_state = 'processing' AND processing_progress < $2`

	saveDurationQuery  = `UPDATE videos SET duration_seconds = $2, updated_at = now() WHERE id = $1`
	saveThumbnailQuery = `UPDATE videos SET thumbnail_path = $2, updated_at = now() WHERE id = $1`

	markReadyQuery = `UPDATE videos
					SET processing_state = 'ready', processing_progress = 100, processing_error = NULL,
					    stream_path = $2, renditions = $3, hls_master_path = $4, finished_at = $5,
					    last_heartbeat_at = NULL, updated_at = now()
					WHERE id = $1 AND processing_state = 'processing'`

	markFailedQuery = `UPDATE videos
					SET processing_state = 'failed', processing_error = $2, finished_at = $3,
					    last_heartbeat_at = NULL, updated_at = now()
					WHERE id = $1 AND processing_state IN ('queued', 'processing')`

	listStuckQuery = `SELECT ` + videoColumns + ` FROM videos
					WHERE (processing_state = 'queued' AND queued_at < $1)
					   OR (processing_state = 'processing'
					       AND (last_heartbeat_at < $2 OR (last_heartbeat_at IS NULL AND started_at < $2)))
					ORDER BY id`

	countByStateQuery = `SELECT processing_state, COUNT(id) AS total FROM videos GROUP BY processing_state`

	appendLogQuery = `INSERT INTO video_processing_logs (video_id, job_type, status, progress, message, metadata)
					VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`

	countLogsQuery = `SELECT COUNT(id) FROM video_processing_logs WHERE video_id = $1`

	listLogsQuery = `SELECT id, video_id, job_type, status, progress, message, metadata, created_at
					FROM video_processing_logs WHERE video_id = $1
					ORDER BY created_at DESC, id DESC OFFSET $2 LIMIT $3`

	pruneLogsQuery = `DELETE FROM video_processing_logs
					WHERE video_id = $1 AND id NOT IN (
					    SELECT id FROM video_processing_logs WHERE video_id = $1
					    ORDER BY created_at DESC, id DESC LIMIT $2)`
)
