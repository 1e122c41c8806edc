package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/amankumarsingh77/video-ingest/internal/media"
	"github.com/amankumarsingh77/video-ingest/internal/models"
	"github.com/amankumarsingh77/video-ingest/internal/videos"
	"github.com/amankumarsingh77/video-ingest/pkg/utils"
	"github.com/google/uuid"
)

type fakeRepo struct {
	mu       sync.Mutex
	nextID   int64
	videos   map[int64]*models.Video
	progress []int
	beats    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{videos: make(map[int64]*models.Video)}
}

func (f *fakeRepo) add(v *models.Video) *models.Video {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	v.ID = f.nextID
	if v.UUID == uuid.Nil {
		v.UUID = uuid.New()
	}
	if v.ProcessingState == "" {
		v.ProcessingState = models.StatePending
	}
	if v.Renditions == nil {
		v.Renditions = models.Renditions{}
	}
	f.videos[v.ID] = v
	return v
}

func (f *fakeRepo) snapshot(id int64) models.Video {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.videos[id]
	cp.Renditions = make(models.Renditions, len(f.videos[id].Renditions))
	for q, r := range f.videos[id].Renditions {
		cp.Renditions[q] = r
	}
	return cp
}

func (f *fakeRepo) progressHistory() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.progress...)
}

func (f *fakeRepo) Create(_ context.Context, video *models.Video) (*models.Video, error) {
	v := *video
	v.ProcessingState = models.StatePending
	return f.add(&v), nil
}

func (f *fakeRepo) GetByID(_ context.Context, id int64) (*models.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok {
		return nil, videos.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeRepo) GetByUUID(_ context.Context, id uuid.UUID) (*models.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.videos {
		if v.UUID == id {
			cp := *v
			return &cp, nil
		}
	}
	return nil, videos.ErrNotFound
}

func (f *fakeRepo) MarkQueued(_ context.Context, id int64, queuedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok || !v.ProcessingState.Enqueueable() {
		return false, nil
	}
	v.ProcessingState = models.StateQueued
	v.QueuedAt = &queuedAt
	v.ProcessingError = nil
	v.ProcessingProgress = 0
	v.Renditions = models.Renditions{}
	v.StreamPath = nil
	v.HLSMasterPath = nil
	v.StartedAt, v.LastHeartbeatAt, v.FinishedAt = nil, nil, nil
	return true, nil
}

func (f *fakeRepo) StartProcessing(_ context.Context, id int64, startedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok || v.ProcessingState != models.StateQueued {
		return false, nil
	}
	v.ProcessingState = models.StateProcessing
	v.StartedAt = &startedAt
	v.LastHeartbeatAt = &startedAt
	return true, nil
}

func (f *fakeRepo) Heartbeat(_ context.Context, id int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok || v.ProcessingState != models.StateProcessing {
		return false, nil
	}
	v.LastHeartbeatAt = &at
	f.beats++
	return true, nil
}

func (f *fakeRepo) UpdateProgress(_ context.Context, id int64, progress int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok || v.ProcessingState != models.StateProcessing || v.ProcessingProgress >= progress {
		return nil
	}
	v.ProcessingProgress = progress
	f.progress = append(f.progress, progress)
	return nil
}

func (f *fakeRepo) SaveDuration(_ context.Context, id int64, durationSeconds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos[id].DurationSeconds = durationSeconds
	return nil
}

func (f *fakeRepo) SaveThumbnail(_ context.Context, id int64, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos[id].ThumbnailPath = &path
	return nil
}

func (f *fakeRepo) MarkReady(_ context.Context, id int64, update *videos.ReadyUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok || v.ProcessingState != models.StateProcessing {
		return false, nil
	}
	sp := update.StreamPath
	v.ProcessingState = models.StateReady
	v.ProcessingProgress = 100
	v.ProcessingError = nil
	v.StreamPath = &sp
	v.Renditions = update.Renditions
	v.HLSMasterPath = update.HLSMasterPath
	v.FinishedAt = &update.FinishedAt
	v.LastHeartbeatAt = nil
	f.progress = append(f.progress, 100)
	return true, nil
}

func (f *fakeRepo) MarkFailed(_ context.Context, id int64, reason string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok || !v.ProcessingState.InFlight() {
		return false, nil
	}
	v.ProcessingState = models.StateFailed
	v.ProcessingError = &reason
	v.FinishedAt = &at
	v.LastHeartbeatAt = nil
	return true, nil
}

func (f *fakeRepo) ListStuck(context.Context, time.Time, time.Time) ([]*models.Video, error) {
	return nil, nil
}

func (f *fakeRepo) CountByState(context.Context) (map[models.ProcessingState]int, error) {
	return nil, nil
}

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []*models.ProcessingLogEntry
	pruned  int
}

func (f *fakeLogRepo) Append(_ context.Context, entry *models.ProcessingLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = int64(len(f.entries) + 1)
	entry.CreatedAt = time.Now()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLogRepo) ListByVideo(_ context.Context, videoID int64, pq *utils.Pagination) (*models.ProcessingLogList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.ProcessingLogEntry, 0)
	for _, e := range f.entries {
		if e.VideoID == videoID {
			out = append(out, e)
		}
	}
	return &models.ProcessingLogList{Entries: out, TotalCount: len(out), Page: pq.GetPage(), PageSize: pq.GetSize()}, nil
}

func (f *fakeLogRepo) Prune(context.Context, int64, int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruned++
	return 0, nil
}

func (f *fakeLogRepo) withStatus(status models.LogStatus) []*models.ProcessingLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ProcessingLogEntry
	for _, e := range f.entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []*models.EncodeJob
	err  error
}

func (f *fakeQueue) Enqueue(_ context.Context, _ int64, job *models.EncodeJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeProber struct {
	info  *media.SourceInfo
	err   error
	calls int
}

func (f *fakeProber) Probe(context.Context, string) (*media.SourceInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.info
	return &cp, nil
}

func writeOutput(path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	data := []byte("encoded output")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

type fakeEncoder struct {
	mu       sync.Mutex
	fail     map[models.Quality]error
	remuxErr error
	block    bool
	started  chan struct{}
	once     sync.Once
	encoded  []models.Quality
	remuxed  int
}

func (f *fakeEncoder) EncodeRendition(ctx context.Context, _, output string, t media.Target, _ float64, onProgress media.ProgressFunc) (int64, error) {
	f.mu.Lock()
	f.encoded = append(f.encoded, t.Quality)
	err := f.fail[t.Quality]
	f.mu.Unlock()

	if f.block {
		f.once.Do(func() { close(f.started) })
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if err != nil {
		return 0, err
	}
	if onProgress != nil {
		onProgress(0.25)
		onProgress(0.75)
		onProgress(1)
	}
	return writeOutput(output)
}

func (f *fakeEncoder) Remux(_ context.Context, _, output string) (int64, error) {
	f.mu.Lock()
	f.remuxed++
	f.mu.Unlock()
	if f.remuxErr != nil {
		return 0, f.remuxErr
	}
	return writeOutput(output)
}

func (f *fakeEncoder) PackageHLS(_ context.Context, variants []media.HLSVariant, outDir string) (string, error) {
	if len(variants) == 0 {
		return "", errors.New("no variants")
	}
	for _, v := range variants {
		if _, err := writeOutput(filepath.Join(outDir, v.Quality.String(), "index.m3u8")); err != nil {
			return "", err
		}
	}
	if _, err := writeOutput(filepath.Join(outDir, "master.m3u8")); err != nil {
		return "", err
	}
	return "master.m3u8", nil
}

type fakeThumbnailer struct {
	err   error
	calls int
}

func (f *fakeThumbnailer) Extract(_ context.Context, _, output string, _ int) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return writeOutput(output)
}
