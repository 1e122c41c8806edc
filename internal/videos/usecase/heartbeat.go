package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var errLostOwnership = errors.New("video is no longer processing")

const (
	defaultHeartbeatInterval = 15 * time.Second
	maxHeartbeatInterval     = 30 * time.Second
	heartbeatWriteTimeout    = 5 * time.Second
)

// heartbeater keeps last_heartbeat_at fresh while a run is encoding and flushes
// intra-rendition progress. Writes run off the encode path; a failed write is only logged.
// When the row is no longer processing the run is cancelled with errLostOwnership.
type heartbeater struct {
	uc       *videoUC
	videoID  int64
	interval time.Duration
	cancel   context.CancelCauseFunc

	pending  atomic.Int64
	written  atomic.Int64
	inFlight atomic.Bool
	wg       sync.WaitGroup

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func newHeartbeater(uc *videoUC, videoID int64, interval time.Duration, cancel context.CancelCauseFunc) *heartbeater {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	if interval > maxHeartbeatInterval {
		interval = maxHeartbeatInterval
	}
	return &heartbeater{
		uc:       uc,
		videoID:  videoID,
		interval: interval,
		cancel:   cancel,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (h *heartbeater) start(ctx context.Context) {
	go func() {
		defer close(h.done)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.stopCh:
				return
			case <-ticker.C:
				h.beat(ctx)
			}
		}
	}()
}

// stop ends the ticker and waits for any write still in flight.
func (h *heartbeater) stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
	<-h.done
	h.wg.Wait()
}

// setProgress records a candidate progress value; lower values are ignored.
func (h *heartbeater) setProgress(p int) {
	for {
		cur := h.pending.Load()
		if int64(p) <= cur {
			return
		}
		if h.pending.CompareAndSwap(cur, int64(p)) {
			return
		}
	}
}

func (h *heartbeater) progress() int {
	return int(h.pending.Load())
}

// flush writes pending progress if it moved past the last written value.
func (h *heartbeater) flush(ctx context.Context) {
	p := h.pending.Load()
	if p <= h.written.Load() {
		return
	}
	if err := h.uc.videoRepo.UpdateProgress(ctx, h.videoID, int(p)); err != nil {
		h.uc.logger.Warnf("heartbeater.flush - UpdateProgress error: %v", err)
		return
	}
	for {
		cur := h.written.Load()
		if p <= cur || h.written.CompareAndSwap(cur, p) {
			return
		}
	}
}

// beat fires one heartbeat without blocking the caller. A beat is skipped while the
// previous one is still writing.
func (h *heartbeater) beat(ctx context.Context) {
	if !h.inFlight.CompareAndSwap(false, true) {
		return
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.inFlight.Store(false)

		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), heartbeatWriteTimeout)
		defer cancel()

		ok, err := h.uc.videoRepo.Heartbeat(bctx, h.videoID, h.uc.now())
		if err != nil {
			h.uc.metrics.HeartbeatFailures.Inc()
			h.uc.logger.Warnf("heartbeater.beat - Heartbeat error for video %d: %v", h.videoID, err)
			return
		}
		if !ok {
			h.uc.logger.Warnf("heartbeater.beat - video %d left processing, stopping run", h.videoID)
			h.cancel(errLostOwnership)
			return
		}
		h.flush(bctx)
	}()
}
