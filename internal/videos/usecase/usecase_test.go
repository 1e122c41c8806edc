package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amankumarsingh77/video-ingest/internal/config"
	"github.com/amankumarsingh77/video-ingest/internal/media"
	"github.com/amankumarsingh77/video-ingest/internal/metrics"
	"github.com/amankumarsingh77/video-ingest/internal/models"
	"github.com/amankumarsingh77/video-ingest/internal/storage"
	"github.com/amankumarsingh77/video-ingest/internal/videos"
	"github.com/amankumarsingh77/video-ingest/pkg/logger"
	"github.com/amankumarsingh77/video-ingest/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const originalKey = "uploads/source.mp4"

type harness struct {
	uc      *videoUC
	repo    *fakeRepo
	logs    *fakeLogRepo
	queue   *fakeQueue
	prober  *fakeProber
	encoder *fakeEncoder
	thumbs  *fakeThumbnailer
	root    string
}

func newHarness(t *testing.T, qualities ...int) *harness {
	t.Helper()
	if len(qualities) == 0 {
		qualities = []int{360, 720}
	}
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "uploads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, originalKey), []byte("original bytes"), 0o644))

	store, err := storage.NewLocalStorage(root)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Storage.ScratchDir = t.TempDir()
	cfg.Processing.Qualities = qualities
	cfg.Processing.HeartbeatInterval = time.Hour
	cfg.Processing.LogRetention = 100

	h := &harness{
		repo:  newFakeRepo(),
		logs:  &fakeLogRepo{},
		queue: &fakeQueue{},
		prober: &fakeProber{info: &media.SourceInfo{
			DurationSeconds: 120.4,
			Width:           1920,
			Height:          1080,
			VideoCodec:      "h264",
			AudioCodec:      "aac",
			FormatName:      "mov,mp4,m4a,3gp,3g2,mj2",
		}},
		encoder: &fakeEncoder{fail: map[models.Quality]error{}, started: make(chan struct{})},
		thumbs:  &fakeThumbnailer{},
		root:    root,
	}
	h.uc = NewVideoUseCase(cfg, h.repo, h.logs, h.queue, store, videos.MediaTools{
		Prober:      h.prober,
		Encoder:     h.encoder,
		Thumbnailer: h.thumbs,
	}, metrics.NewNop(), logger.NewNopLogger()).(*videoUC)
	return h
}

func (h *harness) queuedVideo(t *testing.T) *models.Video {
	t.Helper()
	v := h.repo.add(&models.Video{OriginalPath: originalKey})
	_, err := h.uc.Enqueue(context.Background(), v.ID, "test")
	require.NoError(t, err)
	return v
}

func assertMonotonic(t *testing.T, history []int) {
	t.Helper()
	for i := 1; i < len(history); i++ {
		assert.GreaterOrEqual(t, history[i], history[i-1], "progress went backwards: %v", history)
	}
	for i, p := range history {
		if i < len(history)-1 {
			assert.LessOrEqual(t, p, 99, "progress hit 100 before finalize: %v", history)
		}
	}
}

func TestRun_TwoQualitiesReady(t *testing.T) {
	h := newHarness(t, 360, 720)
	v := h.queuedVideo(t)

	require.NoError(t, h.uc.Run(context.Background(), v.ID))

	got := h.repo.snapshot(v.ID)
	assert.Equal(t, models.StateReady, got.ProcessingState)
	assert.Equal(t, 100, got.ProcessingProgress)
	assert.Len(t, got.Renditions, 2)
	assert.True(t, got.StreamReady())
	assert.Equal(t, models.StreamObjectPath(v.UUID), *got.StreamPath)
	assert.Equal(t, 120, got.DurationSeconds)
	require.NotNil(t, got.ThumbnailPath)
	assert.Equal(t, models.ThumbnailObjectPath(v.UUID), *got.ThumbnailPath)
	assert.Nil(t, got.HLSMasterPath)
	assert.Nil(t, got.ProcessingError)

	r720 := got.Renditions[models.Quality720P]
	assert.Equal(t, 1280, r720.Width)
	assert.Equal(t, 720, r720.Height)
	assert.Equal(t, 2500, r720.BitrateKbps)
	assert.FileExists(t, filepath.Join(h.root, r720.Path))
	assert.FileExists(t, filepath.Join(h.root, *got.StreamPath))

	history := h.repo.progressHistory()
	require.NotEmpty(t, history)
	assert.Equal(t, 100, history[len(history)-1])
	assertMonotonic(t, history)
	assert.Contains(t, history, 50)
	assert.Equal(t, 1, h.logs.pruned)
}

func TestRun_StreamFallsBackToLowestRendition(t *testing.T) {
	h := newHarness(t, 480, 1080)
	h.prober.info.VideoCodec = "hevc"
	v := h.queuedVideo(t)

	require.NoError(t, h.uc.Run(context.Background(), v.ID))

	got := h.repo.snapshot(v.ID)
	assert.Equal(t, models.StateReady, got.ProcessingState)
	assert.Equal(t, 0, h.encoder.remuxed)
	assert.Equal(t, models.RenditionObjectPath(v.UUID, models.Quality480P), *got.StreamPath)
}

func TestRun_RemuxFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, 360)
	h.encoder.remuxErr = errors.New("moov atom not found")
	v := h.queuedVideo(t)

	require.NoError(t, h.uc.Run(context.Background(), v.ID))

	got := h.repo.snapshot(v.ID)
	assert.Equal(t, models.StateReady, got.ProcessingState)
	assert.Equal(t, models.RenditionObjectPath(v.UUID, models.Quality360P), *got.StreamPath)
	assert.NotEmpty(t, h.logs.withStatus(models.LogStatusWarning))
}

func TestRun_FastStartOriginalIsNotRemuxed(t *testing.T) {
	h := newHarness(t, 360)
	h.prober.info.Moov = media.MoovFront
	v := h.queuedVideo(t)

	require.NoError(t, h.uc.Run(context.Background(), v.ID))

	got := h.repo.snapshot(v.ID)
	assert.Equal(t, 0, h.encoder.remuxed)
	assert.Equal(t, models.StreamObjectPath(v.UUID), *got.StreamPath)
	raw, err := os.ReadFile(filepath.Join(h.root, *got.StreamPath))
	require.NoError(t, err)
	assert.Equal(t, "original bytes", string(raw))

	var stages []string
	for _, e := range h.logs.withStatus(models.LogStatusInfo) {
		if e.Metadata.Stage == "probe" {
			assert.Equal(t, "front", e.Metadata.Moov)
		}
		stages = append(stages, e.Metadata.Stage)
	}
	assert.Contains(t, stages, "faststart")
}

func TestRun_SkipsQualitiesAboveSource(t *testing.T) {
	h := newHarness(t, 360, 480, 720, 1080)
	h.prober.info.Width, h.prober.info.Height = 854, 480
	v := h.queuedVideo(t)

	require.NoError(t, h.uc.Run(context.Background(), v.ID))

	got := h.repo.snapshot(v.ID)
	assert.Equal(t, []string{"360", "480"}, got.Renditions.Labels())
	assert.Equal(t, []models.Quality{models.Quality360P, models.Quality480P}, h.encoder.encoded)
}

func TestRun_PartialRenditionFailure(t *testing.T) {
	h := newHarness(t, 360, 720)
	h.encoder.fail[models.Quality720P] = errors.New("exit status 1")
	v := h.queuedVideo(t)

	require.NoError(t, h.uc.Run(context.Background(), v.ID))

	got := h.repo.snapshot(v.ID)
	assert.Equal(t, models.StateReady, got.ProcessingState)
	assert.Equal(t, []string{"360"}, got.Renditions.Labels())

	errs := h.logs.withStatus(models.LogStatusError)
	require.Len(t, errs, 1)
	assert.Equal(t, "720", errs[0].Metadata.Quality)
	assertMonotonic(t, h.repo.progressHistory())
}

func TestRun_ZeroRenditionsFails(t *testing.T) {
	h := newHarness(t, 360, 720)
	h.encoder.fail[models.Quality360P] = errors.New("first failure")
	h.encoder.fail[models.Quality720P] = errors.New("last failure")
	v := h.queuedVideo(t)

	require.NoError(t, h.uc.Run(context.Background(), v.ID))

	got := h.repo.snapshot(v.ID)
	assert.Equal(t, models.StateFailed, got.ProcessingState)
	require.NotNil(t, got.ProcessingError)
	assert.Contains(t, *got.ProcessingError, "encode failed")
	assert.Contains(t, *got.ProcessingError, "last failure")
	assert.Empty(t, got.Renditions)
	assert.False(t, got.StreamReady())
	for _, p := range h.repo.progressHistory() {
		assert.LessOrEqual(t, p, 99)
	}
}

func TestRun_ProbeFailure(t *testing.T) {
	h := newHarness(t)
	h.prober.err = media.ErrInvalidMedia
	v := h.queuedVideo(t)

	require.NoError(t, h.uc.Run(context.Background(), v.ID))

	got := h.repo.snapshot(v.ID)
	assert.Equal(t, models.StateFailed, got.ProcessingState)
	require.NotNil(t, got.ProcessingError)
	assert.Contains(t, *got.ProcessingError, "probe failed")
	assert.Empty(t, h.encoder.encoded)
	assert.Equal(t, 0, h.thumbs.calls)
}

func TestRun_MissingOriginalFailsProbe(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.Remove(filepath.Join(h.root, originalKey)))
	v := h.queuedVideo(t)

	require.NoError(t, h.uc.Run(context.Background(), v.ID))

	got := h.repo.snapshot(v.ID)
	assert.Equal(t, models.StateFailed, got.ProcessingState)
	assert.Contains(t, *got.ProcessingError, "probe failed")
	assert.Equal(t, 0, h.prober.calls)
}

func TestRun_ThumbnailFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, 360)
	h.thumbs.err = errors.New("no frame")
	v := h.queuedVideo(t)

	require.NoError(t, h.uc.Run(context.Background(), v.ID))

	got := h.repo.snapshot(v.ID)
	assert.Equal(t, models.StateReady, got.ProcessingState)
	assert.Nil(t, got.ThumbnailPath)
	assert.NotEmpty(t, h.logs.withStatus(models.LogStatusWarning))
}

func TestRun_KeepsExistingThumbnail(t *testing.T) {
	h := newHarness(t, 360)
	v := h.repo.add(&models.Video{OriginalPath: originalKey})
	require.NoError(t, h.repo.SaveThumbnail(context.Background(), v.ID, "custom/thumb.jpg"))
	_, err := h.uc.Enqueue(context.Background(), v.ID, "test")
	require.NoError(t, err)

	require.NoError(t, h.uc.Run(context.Background(), v.ID))
	assert.Equal(t, 0, h.thumbs.calls)
	assert.Equal(t, "custom/thumb.jpg", *h.repo.snapshot(v.ID).ThumbnailPath)
}

func TestRun_NotQueuedIsNoop(t *testing.T) {
	h := newHarness(t)
	v := h.repo.add(&models.Video{OriginalPath: originalKey})

	require.NoError(t, h.uc.Run(context.Background(), v.ID))

	assert.Equal(t, models.StatePending, h.repo.snapshot(v.ID).ProcessingState)
	assert.Equal(t, 0, h.prober.calls)
}

func TestRun_UnknownVideo(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.uc.Run(context.Background(), 42), videos.ErrNotFound)
}

func TestRun_HLSPackaging(t *testing.T) {
	h := newHarness(t, 360, 720)
	h.uc.cfg.Processing.HLSEnabled = true
	v := h.queuedVideo(t)

	require.NoError(t, h.uc.Run(context.Background(), v.ID))

	got := h.repo.snapshot(v.ID)
	require.NotNil(t, got.HLSMasterPath)
	assert.Equal(t, models.HLSPrefix(v.UUID)+"/master.m3u8", *got.HLSMasterPath)
	assert.True(t, got.HLSReady())
	assert.FileExists(t, filepath.Join(h.root, *got.HLSMasterPath))
	assert.FileExists(t, filepath.Join(h.root, models.HLSPrefix(v.UUID), "720p", "index.m3u8"))
}

func TestRun_StopsWhenDetectorFailsVideo(t *testing.T) {
	h := newHarness(t, 360)
	h.uc.cfg.Processing.HeartbeatInterval = 5 * time.Millisecond
	h.encoder.block = true
	v := h.queuedVideo(t)

	go func() {
		<-h.encoder.started
		_, _ = h.repo.MarkFailed(context.Background(), v.ID, "no heartbeat for more than 2m0s", time.Now())
	}()

	done := make(chan error, 1)
	go func() { done <- h.uc.Run(context.Background(), v.ID) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after losing ownership")
	}

	got := h.repo.snapshot(v.ID)
	assert.Equal(t, models.StateFailed, got.ProcessingState)
	assert.Equal(t, "no heartbeat for more than 2m0s", *got.ProcessingError)
}

func TestRun_CancelledContextFailsVideo(t *testing.T) {
	h := newHarness(t, 360)
	h.encoder.block = true
	v := h.queuedVideo(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-h.encoder.started
		cancel()
	}()

	require.NoError(t, h.uc.Run(ctx, v.ID))

	got := h.repo.snapshot(v.ID)
	assert.Equal(t, models.StateFailed, got.ProcessingState)
	assert.Contains(t, *got.ProcessingError, "processing cancelled")
}

func TestEnqueue_AlreadyInProgress(t *testing.T) {
	for _, state := range []models.ProcessingState{models.StateQueued, models.StateProcessing} {
		t.Run(string(state), func(t *testing.T) {
			h := newHarness(t)
			v := h.repo.add(&models.Video{OriginalPath: originalKey, ProcessingState: state, ProcessingProgress: 40})
			before := h.repo.snapshot(v.ID)

			_, err := h.uc.Enqueue(context.Background(), v.ID, "admin_retry")
			assert.ErrorIs(t, err, videos.ErrAlreadyInProgress)
			assert.Equal(t, before, h.repo.snapshot(v.ID))
			assert.Empty(t, h.queue.jobs)
		})
	}
}

func TestEnqueue_FromPendingAndFailed(t *testing.T) {
	h := newHarness(t)
	reason := "ffmpeg died"
	for _, v := range []*models.Video{
		h.repo.add(&models.Video{OriginalPath: originalKey}),
		h.repo.add(&models.Video{OriginalPath: originalKey, ProcessingState: models.StateFailed, ProcessingError: &reason}),
	} {
		res, err := h.uc.Enqueue(context.Background(), v.ID, "admin_retry")
		require.NoError(t, err)
		assert.True(t, res.Success)

		got := h.repo.snapshot(v.ID)
		assert.Equal(t, models.StateQueued, got.ProcessingState)
		assert.NotNil(t, got.QueuedAt)
		assert.Nil(t, got.ProcessingError)
	}
	require.Len(t, h.queue.jobs, 2)
	assert.Equal(t, "admin_retry", h.queue.jobs[0].Reason)
}

func TestEnqueue_RebuildClearsReadyVideo(t *testing.T) {
	h := newHarness(t, 360)
	v := h.queuedVideo(t)
	require.NoError(t, h.uc.Run(context.Background(), v.ID))
	require.Equal(t, models.StateReady, h.repo.snapshot(v.ID).ProcessingState)

	_, err := h.uc.Enqueue(context.Background(), v.ID, "admin_rebuild")
	require.NoError(t, err)

	got := h.repo.snapshot(v.ID)
	assert.Equal(t, models.StateQueued, got.ProcessingState)
	assert.Empty(t, got.Renditions)
	assert.Nil(t, got.StreamPath)
	assert.Nil(t, got.FinishedAt)
	assert.Equal(t, 0, got.ProcessingProgress)
	assert.False(t, got.StreamReady())
}

func TestEnqueue_DispatchFailure(t *testing.T) {
	h := newHarness(t)
	h.queue.err = errors.New("connection refused")
	v := h.repo.add(&models.Video{OriginalPath: originalKey})

	_, err := h.uc.Enqueue(context.Background(), v.ID, "upload")
	require.Error(t, err)

	got := h.repo.snapshot(v.ID)
	assert.Equal(t, models.StateFailed, got.ProcessingState)
	assert.Contains(t, *got.ProcessingError, "failed to dispatch job")
}

func TestHeartbeat(t *testing.T) {
	h := newHarness(t)
	processing := h.repo.add(&models.Video{ProcessingState: models.StateProcessing})
	ready := h.repo.add(&models.Video{ProcessingState: models.StateReady})

	ok, err := h.uc.Heartbeat(context.Background(), processing.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, h.repo.snapshot(processing.ID).LastHeartbeatAt)

	ok, err = h.uc.Heartbeat(context.Background(), ready.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, h.repo.snapshot(ready.ID).LastHeartbeatAt)
}

func TestMarkFailed(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		state models.ProcessingState
		want  bool
	}{
		{models.StatePending, false},
		{models.StateQueued, true},
		{models.StateProcessing, true},
		{models.StateReady, false},
		{models.StateFailed, false},
	}
	for _, tt := range tests {
		v := h.repo.add(&models.Video{ProcessingState: tt.state})
		ok, err := h.uc.MarkFailed(context.Background(), v.ID, "operator")
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, "state %s", tt.state)
	}
}

func TestRegister(t *testing.T) {
	h := newHarness(t)

	video, err := h.uc.Register(context.Background(), &models.RegisterVideoInput{OriginalPath: originalKey})
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, video.ProcessingState)
	assert.Equal(t, originalKey, video.OriginalPath)

	_, err = h.uc.Register(context.Background(), &models.RegisterVideoInput{OriginalPath: "uploads/missing.mp4"})
	assert.ErrorIs(t, err, videos.ErrInvalidInput)

	_, err = h.uc.Register(context.Background(), &models.RegisterVideoInput{})
	assert.ErrorIs(t, err, videos.ErrInvalidInput)

	status, err := h.uc.GetStatus(context.Background(), video.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, status.ProcessingState)
	assert.False(t, status.StreamReady)
}

func TestListLogs(t *testing.T) {
	h := newHarness(t, 360)
	v := h.queuedVideo(t)
	require.NoError(t, h.uc.Run(context.Background(), v.ID))

	list, err := h.uc.ListLogs(context.Background(), v.UUID, &utils.Pagination{Page: 1, Size: 50})
	require.NoError(t, err)
	assert.NotEmpty(t, list.Entries)
	assert.Equal(t, models.JobTypeEnqueue, list.Entries[0].JobType)
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		done  float64
		total int
		want  int
	}{
		{0, 2, 0},
		{1, 2, 50},
		{2, 2, 99},
		{1, 3, 33},
		{2.5, 4, 62},
		{1, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, progressPercent(tt.done, tt.total))
	}
}

type presigningStore struct {
	storage.Storage
	keys []string
}

func (p *presigningStore) PresignUpload(_ context.Context, key, _ string, _ int64, _ time.Duration) (string, error) {
	p.keys = append(p.keys, key)
	return "https://bucket.example/" + key + "?X-Amz-Signature=abc", nil
}

func TestUploadURL(t *testing.T) {
	h := newHarness(t)
	input := &models.UploadURLInput{Name: "holiday.MOV", MimeType: "video/quicktime", Size: 4096}

	_, err := h.uc.UploadURL(context.Background(), input)
	assert.ErrorIs(t, err, videos.ErrUploadUnsupported)

	store := &presigningStore{Storage: h.uc.store}
	h.uc.store = store
	upload, err := h.uc.UploadURL(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, store.keys, 1)
	assert.Equal(t, store.keys[0], upload.OriginalPath)
	assert.Regexp(t, `^uploads/[0-9a-f-]{36}/holiday\.MOV$`, upload.OriginalPath)
	assert.Contains(t, upload.URL, upload.OriginalPath)

	for _, bad := range []*models.UploadURLInput{
		{Name: "notes.txt", MimeType: "text/plain", Size: 10},
		{Name: "../escape.mp4", MimeType: "video/mp4", Size: 10},
		{Name: "clip.mp4", MimeType: "video/mp4"},
	} {
		_, err = h.uc.UploadURL(context.Background(), bad)
		assert.ErrorIs(t, err, videos.ErrInvalidInput, bad.Name)
	}
}
