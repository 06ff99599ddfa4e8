package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/apperrors"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/model"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/repository"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/solver"
)

// CacheService implements the get-or-compute contract of the cache store.
//
// A lookup whose current record is fresh and carries the fingerprint of the
// present inputs is served straight from the database with no recomputation.
// Anything else (no record, stale, mismatched fingerprint) computes through
// the Coordinator, appends a new record, and supersedes the old one.
type CacheService struct {
	irrRepo     *repository.IRRRepository
	entityRepo  *repository.EntityRepository
	aggregation *AggregationService
	coordinator *Coordinator
	solverOpts  solver.Options

	// retriedFailures remembers, per key, the input fingerprint whose
	// computation already failed and was retried. A failed record with a
	// remembered fingerprint is served as-is: the next recompute needs a
	// mutation or a manual trigger.
	mu              sync.Mutex
	retriedFailures map[model.EntityKey]string
}

// NewCacheService creates a new CacheService with the provided dependencies.
func NewCacheService(
	irrRepo *repository.IRRRepository,
	entityRepo *repository.EntityRepository,
	aggregation *AggregationService,
	coordinator *Coordinator,
	solverOpts solver.Options,
) *CacheService {
	return &CacheService{
		irrRepo:         irrRepo,
		entityRepo:      entityRepo,
		aggregation:     aggregation,
		coordinator:     coordinator,
		solverOpts:      solverOpts,
		retriedFailures: make(map[model.EntityKey]string),
	}
}

// GetOrCompute returns the current IRR record for a key, computing it first
// when the cache cannot serve it. force bypasses fingerprint matching (the
// administrative forceRecompute path).
//
// A computation that ends in ConvergenceFailure is not an error of this
// method: it is recorded and returned as a record with StatusFailed, which
// callers surface as "calculation unavailable". Errors are reserved for
// missing data, invariant violations, and storage failures.
func (s *CacheService) GetOrCompute(ctx context.Context, key model.EntityKey, asOf time.Time, force bool) (model.IRRRecord, error) {
	input, err := s.aggregation.BuildSeries(key, asOf)
	if err != nil {
		return model.IRRRecord{}, err
	}

	if !force {
		current, err := s.irrRepo.GetCurrent(key)
		switch {
		case err == nil && current.Status == model.StatusFresh && current.InputFingerprint == input.Fingerprint:
			return current, nil
		case err == nil && current.Status == model.StatusFailed && current.InputFingerprint == input.Fingerprint && s.alreadyRetried(key, input.Fingerprint):
			return current, nil
		case err != nil && !errors.Is(err, apperrors.ErrResultNotFound):
			return model.IRRRecord{}, err
		}
	}

	return s.coordinator.Do(ctx, key, func(ctx context.Context) (model.IRRRecord, error) {
		return s.compute(ctx, key, asOf, input)
	})
}

// compute runs the solver on the input series and persists the outcome.
// It runs inside the Coordinator's single flight for the key.
func (s *CacheService) compute(ctx context.Context, key model.EntityKey, asOf time.Time, input SeriesInput) (model.IRRRecord, error) {
	// A parent whose constituent is failed degrades to failed instead of
	// computing around the hole (failure propagates exactly one level).
	failedChild, err := s.anyConstituentFailed(key)
	if err != nil {
		return model.IRRRecord{}, err
	}
	if failedChild {
		log.Printf("degrading %s: constituent computation failed", key)
		s.rememberFailure(key, input.Fingerprint)
		return s.persist(key, asOf, input.Fingerprint, model.IRRRecord{Status: model.StatusFailed})
	}

	if err := s.irrRepo.UpdateCurrentStatus(key, model.StatusComputing); err != nil {
		return model.IRRRecord{}, err
	}

	// One automatic retry on convergence failure before the key is marked
	// failed and left for the next mutation or a manual trigger.
	var result solver.Result
	err = retry.Do(ctx, retry.WithMaxRetries(1, retry.NewConstant(time.Millisecond)), func(ctx context.Context) error {
		var solveErr error
		result, solveErr = solver.Solve(input.Series, s.solverOpts)
		if errors.Is(solveErr, apperrors.ErrConvergenceFailure) {
			return retry.RetryableError(solveErr)
		}
		return solveErr
	})

	if errors.Is(err, apperrors.ErrConvergenceFailure) {
		log.Printf("irr computation failed for %s: %v", key, err)
		s.rememberFailure(key, input.Fingerprint)
		return s.persist(key, asOf, input.Fingerprint, model.IRRRecord{Status: model.StatusFailed})
	}
	if err != nil {
		// Unexpected (not a convergence problem): restore stale so the next
		// access recomputes instead of reading a half-finished state.
		if statusErr := s.irrRepo.UpdateCurrentStatus(key, model.StatusStale); statusErr != nil {
			log.Printf("failed to restore stale status for %s: %v", key, statusErr)
		}
		return model.IRRRecord{}, err
	}

	// Inputs may have changed while the solver ran. The finished result is
	// kept but keyed by the fingerprint captured at computation start, so a
	// superseded value is never served: the next read sees the mismatch and
	// recomputes. One immediate re-run covers the common single-edit race.
	fresh, raceErr := s.aggregation.BuildSeries(key, asOf)
	if raceErr == nil && fresh.Fingerprint != input.Fingerprint {
		log.Printf("%s: %v, recomputing with fresh inputs", key, apperrors.ErrConcurrentMutationRace)
		input = fresh
		result, err = solver.Solve(input.Series, s.solverOpts)
		if errors.Is(err, apperrors.ErrConvergenceFailure) {
			s.rememberFailure(key, input.Fingerprint)
			return s.persist(key, asOf, input.Fingerprint, model.IRRRecord{Status: model.StatusFailed})
		}
		if err != nil {
			return model.IRRRecord{}, err
		}
	}

	s.clearFailure(key)

	record := model.IRRRecord{Status: model.StatusFresh, Undefined: result.Undefined}
	if !result.Undefined {
		record.Value = decimal.NewFromFloat(result.Rate)
	}
	return s.persist(key, asOf, input.Fingerprint, record)
}

// persist appends the outcome as the key's new current record.
func (s *CacheService) persist(key model.EntityKey, asOf time.Time, fingerprint string, outcome model.IRRRecord) (model.IRRRecord, error) {
	record := model.IRRRecord{
		ID:               uuid.NewString(),
		EntityID:         key.EntityID,
		Level:            key.Level,
		AsOfDate:         asOf,
		Value:            outcome.Value,
		Undefined:        outcome.Undefined,
		InputFingerprint: fingerprint,
		ComputedAt:       time.Now().UTC(),
		Status:           outcome.Status,
		IsCurrent:        true,
	}
	if err := s.irrRepo.InsertCurrent(record); err != nil {
		return model.IRRRecord{}, fmt.Errorf("failed to persist irr result for %s: %w", key, err)
	}
	return record, nil
}

// MarkStale transitions a key's current record to stale. Keys that have
// never been computed have nothing to mark; that is not an error, the first
// query will compute them lazily.
func (s *CacheService) MarkStale(key model.EntityKey) error {
	return s.irrRepo.UpdateCurrentStatus(key, model.StatusStale)
}

// MarkFailed transitions a key's current record to failed. The cascade uses
// it to degrade a parent whose constituent failed, surfacing the problem
// instead of hiding it behind a partially-aggregated number.
func (s *CacheService) MarkFailed(key model.EntityKey) error {
	return s.irrRepo.UpdateCurrentStatus(key, model.StatusFailed)
}

// anyConstituentFailed reports whether any immediate child of an aggregate
// key currently carries a failed record. Children never computed yet do not
// count as failed.
func (s *CacheService) anyConstituentFailed(key model.EntityKey) (bool, error) {
	children, err := s.entityRepo.ConstituentKeys(key)
	if err != nil {
		return false, err
	}
	for _, child := range children {
		record, err := s.irrRepo.GetCurrent(child)
		if errors.Is(err, apperrors.ErrResultNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		if record.Status == model.StatusFailed {
			return true, nil
		}
	}
	return false, nil
}

func (s *CacheService) alreadyRetried(key model.EntityKey, fingerprint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retriedFailures[key] == fingerprint
}

func (s *CacheService) rememberFailure(key model.EntityKey, fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retriedFailures[key] = fingerprint
}

func (s *CacheService) clearFailure(key model.EntityKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.retriedFailures, key)
}
