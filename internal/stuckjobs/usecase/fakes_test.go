package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/amankumarsingh77/video-ingest/internal/models"
	"github.com/amankumarsingh77/video-ingest/internal/videos"
	"github.com/amankumarsingh77/video-ingest/pkg/utils"
	"github.com/google/uuid"
)

type fakeRepo struct {
	videos.Repository

	mu       sync.Mutex
	nextID   int64
	rows     map[int64]*models.Video
	lostRace map[int64]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[int64]*models.Video), lostRace: make(map[int64]bool)}
}

func (f *fakeRepo) add(v *models.Video) *models.Video {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	v.ID = f.nextID
	v.UUID = uuid.New()
	f.rows[v.ID] = v
	return v
}

func (f *fakeRepo) get(id int64) models.Video {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[id]
}

func (f *fakeRepo) MarkFailed(_ context.Context, id int64, reason string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.rows[id]
	if !ok || f.lostRace[id] || !v.ProcessingState.InFlight() {
		return false, nil
	}
	v.ProcessingState = models.StateFailed
	v.ProcessingError = &reason
	v.FinishedAt = &at
	v.LastHeartbeatAt = nil
	return true, nil
}

// ListStuck mirrors the SQL filter.
func (f *fakeRepo) ListStuck(_ context.Context, queuedBefore, heartbeatBefore time.Time) ([]*models.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Video
	for id := int64(1); id <= f.nextID; id++ {
		v := f.rows[id]
		switch v.ProcessingState {
		case models.StateQueued:
			if v.QueuedAt != nil && v.QueuedAt.Before(queuedBefore) {
				cp := *v
				out = append(out, &cp)
			}
		case models.StateProcessing:
			last := v.LastHeartbeatAt
			if last == nil {
				last = v.StartedAt
			}
			if last != nil && last.Before(heartbeatBefore) {
				cp := *v
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) CountByState(context.Context) (map[models.ProcessingState]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[models.ProcessingState]int{
		models.StatePending:    0,
		models.StateQueued:     0,
		models.StateProcessing: 0,
		models.StateReady:      0,
		models.StateFailed:     0,
	}
	for _, v := range f.rows {
		counts[v.ProcessingState]++
	}
	return counts, nil
}

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []*models.ProcessingLogEntry
}

func (f *fakeLogRepo) Append(_ context.Context, entry *models.ProcessingLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLogRepo) ListByVideo(context.Context, int64, *utils.Pagination) (*models.ProcessingLogList, error) {
	return &models.ProcessingLogList{}, nil
}

func (f *fakeLogRepo) Prune(context.Context, int64, int) (int64, error) {
	return 0, nil
}

type fakeQueue struct {
	videos.JobConsumer
	length int64
}

func (f *fakeQueue) Length(context.Context) (int64, error) {
	return f.length, nil
}
