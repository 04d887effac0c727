package activities

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/compozy/graphsync/engine/infra/cache"
	"go.temporal.io/sdk/activity"
)

var errLockLost = errors.New("graph store lock lost")

// Progress is the heartbeat payload.
type Progress struct {
	ElapsedMs int64 `json:"elapsed_ms"`
	Locked    bool  `json:"locked"`
}

// heartbeat records a heartbeat every interval from the moment the activity
// starts, including while it waits for the graph store lock. Once a lock is
// attached each beat also extends it, and losing it cancels the run context
// with errLockLost.
type heartbeat struct {
	mu     sync.Mutex
	lock   cache.Lock
	cancel context.CancelCauseFunc
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func (a *Activities) startHeartbeat(ctx context.Context, start time.Time) (context.Context, *heartbeat) {
	runCtx, cancel := context.WithCancelCause(ctx)
	hb := &heartbeat{cancel: cancel, done: make(chan struct{})}
	interval := a.settings.HeartbeatInterval
	if interval <= 0 {
		return runCtx, hb
	}
	hb.wg.Add(1)
	go func() {
		defer hb.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-hb.done:
				return
			case <-runCtx.Done():
				return
			case <-ticker.C:
				l := hb.held()
				activity.RecordHeartbeat(ctx, Progress{
					ElapsedMs: time.Since(start).Milliseconds(),
					Locked:    l != nil,
				})
				if l == nil {
					continue
				}
				if err := l.Refresh(ctx); err != nil {
					if errors.Is(err, cache.ErrLockNotOwned) {
						activity.GetLogger(ctx).Error("Graph store lock lost, stopping sync", "error", err)
						hb.cancel(fmt.Errorf("%w: %w", errLockLost, err))
						return
					}
					activity.GetLogger(ctx).Warn("Failed to refresh graph store lock", "error", err)
				}
			}
		}
	}()
	return runCtx, hb
}

func (h *heartbeat) attach(l cache.Lock) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lock = l
}

func (h *heartbeat) held() cache.Lock {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lock
}

// stop ends the heartbeat loop. It is safe to call more than once and must
// run before the lock is released.
func (h *heartbeat) stop() {
	h.once.Do(func() {
		close(h.done)
		h.wg.Wait()
		h.cancel(nil)
	})
}
