package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/amankumarsingh77/video-ingest/internal/media"
	"github.com/amankumarsingh77/video-ingest/internal/models"
	"github.com/amankumarsingh77/video-ingest/internal/videos"
)

// run is the state of one Run call.
type run struct {
	uc      *videoUC
	video   *models.Video
	scratch string
	hb      *heartbeater

	source     string
	info       *media.SourceInfo
	streamPath string
	renditions models.Renditions
	localFiles map[models.Quality]string
	hlsMaster  *string
	lastErr    error
}

// Run executes the pipeline for a queued video. It returns nil when another worker owns
// the video; stage failures end in the failed state and are not returned.
func (v *videoUC) Run(ctx context.Context, videoID int64) error {
	video, err := v.videoRepo.GetByID(ctx, videoID)
	if err != nil {
		return err
	}
	ok, err := v.videoRepo.StartProcessing(ctx, videoID, v.now())
	if err != nil {
		v.logger.Errorf("Run - StartProcessing error: %v", err)
		return fmt.Errorf("start processing: %w", err)
	}
	if !ok {
		v.logger.Infof("Run - video %d is not queued, skipping", videoID)
		return nil
	}
	video.ProcessingState = models.StateProcessing
	started := time.Now()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	scratch, err := os.MkdirTemp(v.cfg.Storage.ScratchDir, fmt.Sprintf("video-%d-", videoID))
	if err != nil {
		v.logger.Errorf("Run - MkdirTemp error: %v", err)
		v.failed(ctx, video, fmt.Sprintf("failed to create scratch dir: %v", err), models.JobTypePrepareStream)
		v.metrics.JobsTotal.WithLabelValues(string(models.StateFailed)).Inc()
		return nil
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			v.logger.Warnf("Run - RemoveAll error: %v", rmErr)
		}
	}()

	hb := newHeartbeater(v, videoID, v.cfg.Processing.HeartbeatInterval, cancel)
	hb.start(runCtx)

	r := &run{
		uc:         v,
		video:      video,
		scratch:    scratch,
		hb:         hb,
		renditions: models.Renditions{},
		localFiles: make(map[models.Quality]string),
	}
	r.execute(runCtx)
	hb.stop()

	if runCtx.Err() != nil {
		r.cancelled(ctx, context.Cause(runCtx))
	} else {
		r.finalize(ctx)
	}
	v.metrics.ObserveStage("run", started)

	pctx, pcancel := persistContext(ctx)
	defer pcancel()
	if n, err := v.logRepo.Prune(pctx, videoID, v.cfg.Processing.LogRetention); err != nil {
		v.logger.Warnf("Run - Prune error: %v", err)
	} else if n > 0 {
		v.logger.Debugf("Run - pruned %d log entries of video %d", n, videoID)
	}
	return nil
}

func (r *run) execute(ctx context.Context) {
	if err := r.fetchAndProbe(ctx); err != nil {
		if ctx.Err() == nil {
			r.lastErr = err
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	r.thumbnail(ctx)
	if ctx.Err() != nil {
		return
	}
	r.prepareStream(ctx)
	if ctx.Err() != nil {
		return
	}
	r.buildRenditions(ctx)
	if ctx.Err() != nil {
		return
	}
	r.packageHLS(ctx)
}

func (r *run) fetchAndProbe(ctx context.Context) error {
	v := r.uc
	id := r.video.ID
	started := time.Now()
	defer v.metrics.ObserveStage("probe", started)

	r.source = filepath.Join(r.scratch, "source"+strings.ToLower(path.Ext(r.video.OriginalPath)))
	if err := v.store.Download(ctx, r.video.OriginalPath, r.source); err != nil {
		err = fmt.Errorf("%w: fetch original: %v", videos.ErrProbeFailed, err)
		if ctx.Err() == nil {
			v.logger.Errorf("Run - Download error: %v", err)
			v.failed(ctx, r.video, err.Error(), models.JobTypePrepareStream)
		}
		return err
	}

	info, err := v.tools.Prober.Probe(ctx, r.source)
	if err != nil {
		err = fmt.Errorf("%w: %v", videos.ErrProbeFailed, err)
		if ctx.Err() == nil {
			v.logger.Errorf("Run - Probe error: %v", err)
			v.failed(ctx, r.video, err.Error(), models.JobTypePrepareStream)
		}
		return err
	}
	r.info = info

	pctx, cancel := persistContext(ctx)
	defer cancel()
	if err = v.videoRepo.SaveDuration(pctx, id, info.WholeSeconds()); err != nil {
		v.logger.Warnf("Run - SaveDuration error: %v", err)
	}
	r.video.DurationSeconds = info.WholeSeconds()
	v.appendLog(ctx, id, models.JobTypePrepareStream, models.LogStatusInfo, nil, "probed source", models.LogMetadata{
		Stage:           "probe",
		DurationSeconds: info.WholeSeconds(),
		SourceWidth:     info.Width,
		SourceHeight:    info.Height,
		VideoCodec:      info.VideoCodec,
		Moov:            string(info.Moov),
	})
	return nil
}

func (r *run) thumbnail(ctx context.Context) {
	if r.video.ThumbnailReady() {
		return
	}
	v := r.uc
	started := time.Now()
	defer v.metrics.ObserveStage("thumbnail", started)

	out := filepath.Join(r.scratch, "thumb.jpg")
	key := models.ThumbnailObjectPath(r.video.UUID)
	size, err := v.tools.Thumbnailer.Extract(ctx, r.source, out, media.ThumbnailSecond(r.info.WholeSeconds()))
	if err == nil {
		err = v.store.Upload(ctx, out, key)
	}
	if err == nil {
		pctx, cancel := persistContext(ctx)
		err = v.videoRepo.SaveThumbnail(pctx, r.video.ID, key)
		cancel()
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		v.logger.Warnf("Run - thumbnail error for video %d: %v", r.video.ID, err)
		v.appendLog(ctx, r.video.ID, models.JobTypePrepareStream, models.LogStatusWarning, nil, "thumbnail extraction failed", models.LogMetadata{Stage: "thumbnail", Error: err.Error()})
		return
	}
	r.video.ThumbnailPath = &key
	v.appendLog(ctx, r.video.ID, models.JobTypePrepareStream, models.LogStatusInfo, nil, "thumbnail extracted", models.LogMetadata{Stage: "thumbnail", Filesize: size})
}

// prepareStream publishes a fast-start MP4 for sources that are already browser-playable.
// An original whose moov already precedes mdat is uploaded as is, anything else is remuxed.
func (r *run) prepareStream(ctx context.Context) {
	if !r.info.CanStreamCopy() {
		return
	}
	v := r.uc
	stage := "remux"
	if r.info.Moov == media.MoovFront {
		stage = "faststart"
	}
	started := time.Now()
	defer v.metrics.ObserveStage(stage, started)

	out := filepath.Join(r.scratch, "stream.mp4")
	key := models.StreamObjectPath(r.video.UUID)
	var size int64
	var err error
	if stage == "faststart" {
		out = r.source
		size, err = fileSize(out)
	} else {
		size, err = v.tools.Encoder.Remux(ctx, r.source, out)
	}
	if err == nil {
		err = v.store.Upload(ctx, out, key)
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		v.logger.Warnf("Run - %s error for video %d: %v", stage, r.video.ID, err)
		v.appendLog(ctx, r.video.ID, models.JobTypePrepareStream, models.LogStatusWarning, nil, "fast-start stream failed", models.LogMetadata{Stage: stage, Error: err.Error()})
		return
	}
	r.streamPath = key
	v.appendLog(ctx, r.video.ID, models.JobTypePrepareStream, models.LogStatusInfo, nil, "fast-start stream prepared", models.LogMetadata{
		Stage:         stage,
		Filesize:      size,
		ElapsedMillis: time.Since(started).Milliseconds(),
	})
}

func fileSize(path string) (int64, error) {
	st, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

func (r *run) buildRenditions(ctx context.Context) {
	v := r.uc
	ladder, err := models.QualitiesFromHeights(v.cfg.Processing.Qualities)
	if err != nil || len(ladder) == 0 {
		if err == nil {
			err = errors.New("no qualities configured")
		}
		r.lastErr = fmt.Errorf("%w: %v", videos.ErrEncodeFailed, err)
		return
	}
	targets := models.SelectQualities(ladder, r.info.Height)
	total := len(targets)

	for i, q := range targets {
		if ctx.Err() != nil {
			return
		}
		done := i
		onProgress := func(frac float64) {
			r.hb.setProgress(progressPercent(float64(done)+frac, total))
		}
		started := time.Now()
		target := media.NewTarget(q, r.info)
		out := filepath.Join(r.scratch, "renditions", q.String()+".mp4")
		key := models.RenditionObjectPath(r.video.UUID, q)

		size, err := v.tools.Encoder.EncodeRendition(ctx, r.source, out, target, r.info.DurationSeconds, onProgress)
		if err == nil {
			err = v.store.Upload(ctx, out, key)
		}
		v.metrics.ObserveStage("rendition", started)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.lastErr = fmt.Errorf("%w: %s: %v", videos.ErrEncodeFailed, q, err)
			v.metrics.RenditionsTotal.WithLabelValues(q.Label(), "failed").Inc()
			v.logger.Errorf("Run - EncodeRendition error for video %d: %v", r.video.ID, r.lastErr)
			v.appendLog(ctx, r.video.ID, models.JobTypeBuildRenditions, models.LogStatusError, nil, "rendition failed", models.LogMetadata{
				Quality: q.Label(),
				Error:   err.Error(),
			})
			continue
		}

		r.renditions[q] = models.Rendition{
			Path:        key,
			Width:       target.Width,
			Height:      target.Height,
			BitrateKbps: q.Profile().MaxrateKbps,
			Filesize:    size,
		}
		r.localFiles[q] = out
		v.metrics.RenditionsTotal.WithLabelValues(q.Label(), "ok").Inc()

		r.hb.setProgress(progressPercent(float64(i+1), total))
		pctx, cancel := persistContext(ctx)
		r.hb.flush(pctx)
		cancel()
		r.hb.beat(ctx)

		progress := r.hb.progress()
		v.appendLog(ctx, r.video.ID, models.JobTypeBuildRenditions, models.LogStatusProgress, &progress, "rendition ready", models.LogMetadata{
			Quality:       q.Label(),
			Filesize:      size,
			ElapsedMillis: time.Since(started).Milliseconds(),
		})
	}
}

func (r *run) packageHLS(ctx context.Context) {
	v := r.uc
	if !v.cfg.Processing.HLSEnabled || len(r.renditions) == 0 {
		return
	}
	started := time.Now()
	defer v.metrics.ObserveStage("hls", started)

	variants := make([]media.HLSVariant, 0, len(r.renditions))
	for _, q := range r.renditions.Sorted() {
		rend := r.renditions[q]
		variants = append(variants, media.HLSVariant{
			Quality:     q,
			Input:       r.localFiles[q],
			Width:       rend.Width,
			Height:      rend.Height,
			BitrateKbps: rend.BitrateKbps,
			Audio:       r.info.AudioCodec != "",
		})
	}

	outDir := filepath.Join(r.scratch, "hls")
	master, err := v.tools.Encoder.PackageHLS(ctx, variants, outDir)
	if err == nil {
		err = r.uploadDir(ctx, outDir, models.HLSPrefix(r.video.UUID))
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		v.logger.Warnf("Run - PackageHLS error for video %d: %v", r.video.ID, err)
		v.appendLog(ctx, r.video.ID, models.JobTypeHLS, models.LogStatusWarning, nil, "hls packaging failed", models.LogMetadata{Error: err.Error()})
		return
	}
	key := models.HLSPrefix(r.video.UUID) + "/" + master
	r.hlsMaster = &key
	v.appendLog(ctx, r.video.ID, models.JobTypeHLS, models.LogStatusInfo, nil, "hls packaged", models.LogMetadata{
		Renditions:    r.renditions.Labels(),
		ElapsedMillis: time.Since(started).Milliseconds(),
	})
}

func (r *run) uploadDir(ctx context.Context, dir, prefix string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		return r.uc.store.Upload(ctx, p, prefix+"/"+filepath.ToSlash(rel))
	})
}

func (r *run) finalize(ctx context.Context) {
	v := r.uc
	id := r.video.ID
	if r.info == nil {
		// fetch or probe already failed the video
		v.metrics.JobsTotal.WithLabelValues(string(models.StateFailed)).Inc()
		return
	}
	if len(r.renditions) == 0 {
		reason := "no renditions produced"
		if r.lastErr != nil {
			reason = r.lastErr.Error()
		}
		v.failed(ctx, r.video, reason, models.JobTypeBuildRenditions)
		v.metrics.JobsTotal.WithLabelValues(string(models.StateFailed)).Inc()
		return
	}

	streamPath := r.streamPath
	if streamPath == "" {
		_, lowest, _ := r.renditions.Lowest()
		streamPath = lowest.Path
	}

	pctx, cancel := persistContext(ctx)
	defer cancel()
	ok, err := v.videoRepo.MarkReady(pctx, id, &videos.ReadyUpdate{
		StreamPath:    streamPath,
		Renditions:    r.renditions,
		HLSMasterPath: r.hlsMaster,
		FinishedAt:    v.now(),
	})
	if err != nil {
		v.logger.Errorf("Run - MarkReady error: %v", err)
		return
	}
	if !ok {
		v.logger.Warnf("Run - video %d left processing before finalize", id)
		return
	}
	v.metrics.JobsTotal.WithLabelValues(string(models.StateReady)).Inc()
	progress := 100
	v.appendLog(ctx, id, models.JobTypeBuildRenditions, models.LogStatusInfo, &progress, "video ready", models.LogMetadata{
		Renditions: r.renditions.Labels(),
	})
	v.logger.Infof("Run - video %d ready with %d renditions", id, len(r.renditions))
}

func (r *run) cancelled(ctx context.Context, cause error) {
	v := r.uc
	if errors.Is(cause, errLostOwnership) {
		v.logger.Warnf("Run - video %d stopped: %v", r.video.ID, cause)
		v.metrics.JobsTotal.WithLabelValues("abandoned").Inc()
		return
	}
	v.failed(ctx, r.video, fmt.Sprintf("processing cancelled: %v", cause), models.JobTypeBuildRenditions)
	v.metrics.JobsTotal.WithLabelValues(string(models.StateFailed)).Inc()
}

// failed records a terminal failure of a run and its log entry.
func (v *videoUC) failed(ctx context.Context, video *models.Video, reason string, jobType models.JobType) {
	ok, err := v.markFailed(ctx, video.ID, reason)
	if err != nil {
		v.logger.Errorf("failed - MarkFailed error: %v", err)
		return
	}
	if !ok {
		v.logger.Warnf("failed - video %d was not in flight", video.ID)
		return
	}
	v.appendLog(ctx, video.ID, jobType, models.LogStatusError, nil, reason, models.LogMetadata{Error: reason})
}

// progressPercent maps completed work to [0,99]; only finalize writes 100.
func progressPercent(done float64, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Floor(100 * done / float64(total)))
	if p < 0 {
		return 0
	}
	if p > 99 {
		return 99
	}
	return p
}
