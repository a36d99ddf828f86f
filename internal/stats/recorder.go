package stats

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
)

// Store is the write side of Tracker.
type Store interface {
	Add(n int64, at time.Time) error
}

// Recorder counts conversions in memory and commits them from a single pool
// worker, so callers never wait on the database. Counts that arrive while a
// write is in flight are folded into the next write; none are discarded.
type Recorder struct {
	store  Store
	pool   *ants.Pool
	logger *slog.Logger

	pending atomic.Int64
	last    atomic.Int64 // unix nanos of the newest pending conversion
	wip     atomic.Int64 // signals since the writer last caught up
	wg      sync.WaitGroup
	now     func() time.Time
}

func NewRecorder(store Store, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	// One writer. A Submit can only wait for the previous writer to return
	// to the pool, never for a database write.
	pool, err := ants.NewPool(1, ants.WithMaxBlockingTasks(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create stats pool: %w", err)
	}
	return &Recorder{
		store:  store,
		pool:   pool,
		logger: logger,
		now:    time.Now,
	}, nil
}

// RecordConversion counts one successful conversion.
func (r *Recorder) RecordConversion() {
	r.last.Store(r.now().UnixNano())
	r.pending.Add(1)

	if r.wip.Add(1) != 1 {
		return
	}
	r.wg.Add(1)
	if err := r.pool.Submit(r.drain); err != nil {
		r.wg.Done()
		r.wip.Add(-1)
		r.logger.Warn("Conversion count not committed", "pending", r.pending.Load(), "error", err)
	}
}

// drain commits until no signal arrived during the last write.
func (r *Recorder) drain() {
	defer r.wg.Done()

	missed := int64(1)
	for {
		r.flush()
		missed = r.wip.Add(-missed)
		if missed == 0 {
			return
		}
	}
}

// flush writes everything pending as one update. A failed write keeps the
// count for the next attempt.
func (r *Recorder) flush() {
	n := r.pending.Swap(0)
	if n == 0 {
		return
	}
	at := time.Unix(0, r.last.Load())
	if err := r.store.Add(n, at); err != nil {
		r.pending.Add(n)
		r.logger.Warn("Failed to record conversions", "count", n, "error", err)
	}
}

// Pending returns how many conversions are counted but not yet committed.
func (r *Recorder) Pending() int64 {
	return r.pending.Load()
}

// Close waits for the writer, commits anything left over and releases the
// pool.
func (r *Recorder) Close() {
	r.wg.Wait()
	r.flush()
	r.pool.Release()
}
