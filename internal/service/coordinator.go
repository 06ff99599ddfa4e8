package service

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/model"
)

// Coordinator guarantees at most one in-flight computation per cache key.
//
// A second caller requesting a key that is already computing subscribes to
// the in-flight result instead of starting duplicate work (singleflight).
// Total concurrency across all keys is bounded by a weighted semaphore, so a
// burst of invalidations cannot exhaust the process. Correctness does not
// depend on any cap on simultaneous callers; the semaphore is purely a
// resource bound.
type Coordinator struct {
	group singleflight.Group
	sem   *semaphore.Weighted

	mu       sync.Mutex
	inflight map[model.EntityKey]chan struct{}

	// computations counts actual executions (not deduplicated waits).
	// Exposed for tests asserting the no-duplicate-work property.
	computations atomic.Int64
}

// NewCoordinator creates a Coordinator with a worker pool of the given size.
func NewCoordinator(workers int) *Coordinator {
	if workers < 1 {
		workers = 1
	}
	return &Coordinator{
		sem:      semaphore.NewWeighted(int64(workers)),
		inflight: make(map[model.EntityKey]chan struct{}),
	}
}

// Do runs compute for the key, deduplicating concurrent callers: only one
// execution happens per key at a time and every waiting caller receives its
// result. The execution itself occupies one worker slot.
func (c *Coordinator) Do(
	ctx context.Context,
	key model.EntityKey,
	compute func(ctx context.Context) (model.IRRRecord, error),
) (model.IRRRecord, error) {
	result, err, _ := c.group.Do(key.String(), func() (any, error) {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return model.IRRRecord{}, err
		}
		defer c.sem.Release(1)

		c.markInflight(key)
		defer c.settle(key)

		c.computations.Add(1)
		return compute(ctx)
	})
	if err != nil {
		return model.IRRRecord{}, err
	}
	return result.(model.IRRRecord), nil
}

// WaitSettled blocks until the key has no in-flight computation (success or
// failure). The cascade uses it to hold an aggregate recompute until every
// constituent has resolved, so a parent never reads partially-updated child
// data. Returns immediately when the key is idle.
func (c *Coordinator) WaitSettled(ctx context.Context, key model.EntityKey) error {
	for {
		c.mu.Lock()
		ch, ok := c.inflight[key]
		c.mu.Unlock()
		if !ok {
			return nil
		}
		select {
		case <-ch:
			// Settled; loop once more in case a new flight started.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Computations returns the number of computations actually executed.
func (c *Coordinator) Computations() int64 {
	return c.computations.Load()
}

func (c *Coordinator) markInflight(key model.EntityKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[key] = make(chan struct{})
}

func (c *Coordinator) settle(key model.EntityKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.inflight[key]; ok {
		close(ch)
		delete(c.inflight, key)
	}
}
