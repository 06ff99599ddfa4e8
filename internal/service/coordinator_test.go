package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/model"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/service"
)

// TestCoordinator_SingleFlight verifies the no-duplicate-work guarantee:
// concurrent callers for one key share a single execution and all receive
// its result.
func TestCoordinator_SingleFlight(t *testing.T) {
	coordinator := service.NewCoordinator(4)
	key := model.EntityKey{EntityID: "fund-1", Level: model.LevelFund}
	ctx := context.Background()

	const callers = 10
	var start sync.WaitGroup
	start.Add(1)

	results := make([]model.IRRRecord, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			start.Wait()
			results[i], errs[i] = coordinator.Do(ctx, key, func(ctx context.Context) (model.IRRRecord, error) {
				time.Sleep(50 * time.Millisecond)
				return model.IRRRecord{ID: "shared", EntityID: key.EntityID, Level: key.Level}, nil
			})
		}()
	}
	start.Done()
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("Caller %d failed: %v", i, errs[i])
		}
		if results[i].ID != "shared" {
			t.Errorf("Caller %d got unexpected result %q", i, results[i].ID)
		}
	}
	if got := coordinator.Computations(); got != 1 {
		t.Errorf("Expected 1 execution for %d concurrent callers, got %d", callers, got)
	}
}

// TestCoordinator_IndependentKeysRunConcurrently verifies that sibling keys
// do not serialize: two computations must overlap in time or this test
// cannot pass.
func TestCoordinator_IndependentKeysRunConcurrently(t *testing.T) {
	coordinator := service.NewCoordinator(2)
	ctx := context.Background()

	bothRunning := make(chan struct{})
	var once sync.Once
	var running sync.WaitGroup
	running.Add(2)

	compute := func(ctx context.Context) (model.IRRRecord, error) {
		running.Done()
		select {
		case <-bothRunning:
		case <-time.After(2 * time.Second):
			t.Error("Timed out waiting for the sibling computation to start")
		}
		return model.IRRRecord{}, nil
	}

	go func() {
		running.Wait()
		once.Do(func() { close(bothRunning) })
	}()

	var wg sync.WaitGroup
	for _, id := range []string{"fund-a", "fund-b"} {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := model.EntityKey{EntityID: id, Level: model.LevelFund}
			if _, err := coordinator.Do(ctx, key, compute); err != nil {
				t.Errorf("Do(%s) failed: %v", id, err)
			}
		}()
	}
	wg.Wait()

	if got := coordinator.Computations(); got != 2 {
		t.Errorf("Expected 2 executions, got %d", got)
	}
}

// TestCoordinator_WorkerPoolBound verifies the total concurrency cap: with a
// single worker, a second key cannot start until the first releases its slot.
func TestCoordinator_WorkerPoolBound(t *testing.T) {
	coordinator := service.NewCoordinator(1)
	ctx := context.Background()

	release := make(chan struct{})
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		key := model.EntityKey{EntityID: "fund-a", Level: model.LevelFund}
		_, err := coordinator.Do(ctx, key, func(ctx context.Context) (model.IRRRecord, error) {
			<-release
			return model.IRRRecord{}, nil
		})
		if err != nil {
			t.Errorf("Do(fund-a) failed: %v", err)
		}
	}()

	// Wait for the first computation to occupy the only worker.
	for coordinator.Computations() != 1 {
		time.Sleep(time.Millisecond)
	}

	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		key := model.EntityKey{EntityID: "fund-b", Level: model.LevelFund}
		if _, err := coordinator.Do(ctx, key, func(ctx context.Context) (model.IRRRecord, error) {
			return model.IRRRecord{}, nil
		}); err != nil {
			t.Errorf("Do(fund-b) failed: %v", err)
		}
	}()

	select {
	case <-secondDone:
		t.Fatal("Second computation ran while the only worker was occupied")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-firstDone
	select {
	case <-secondDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Second computation never ran after the worker freed up")
	}
}

// TestCoordinator_WaitSettled verifies the gate aggregates use before
// reading child results.
func TestCoordinator_WaitSettled(t *testing.T) {
	coordinator := service.NewCoordinator(2)
	key := model.EntityKey{EntityID: "fund-1", Level: model.LevelFund}
	ctx := context.Background()

	t.Run("idle key returns immediately", func(t *testing.T) {
		if err := coordinator.WaitSettled(ctx, key); err != nil {
			t.Fatalf("WaitSettled on idle key failed: %v", err)
		}
	})

	t.Run("blocks until in-flight computation settles", func(t *testing.T) {
		release := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = coordinator.Do(ctx, key, func(ctx context.Context) (model.IRRRecord, error) {
				<-release
				return model.IRRRecord{}, nil
			})
		}()

		for coordinator.Computations() != 1 {
			time.Sleep(time.Millisecond)
		}

		settled := make(chan struct{})
		go func() {
			defer close(settled)
			if err := coordinator.WaitSettled(ctx, key); err != nil {
				t.Errorf("WaitSettled failed: %v", err)
			}
		}()

		select {
		case <-settled:
			t.Fatal("WaitSettled returned while the computation was in flight")
		case <-time.After(20 * time.Millisecond):
		}

		close(release)
		select {
		case <-settled:
		case <-time.After(2 * time.Second):
			t.Fatal("WaitSettled never returned after the computation settled")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		go func() {
			_, _ = coordinator.Do(context.Background(), key, func(ctx context.Context) (model.IRRRecord, error) {
				<-release
				return model.IRRRecord{}, nil
			})
		}()

		for coordinator.Computations() != 2 {
			time.Sleep(time.Millisecond)
		}

		cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		if err := coordinator.WaitSettled(cancelCtx, key); err == nil {
			t.Fatal("Expected a context error from WaitSettled")
		}
	})
}
