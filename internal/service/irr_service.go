package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/model"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/repository"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/solver"
)

// IRRService is the engine's facade: the three operations exposed to
// collaborators (getIRR, invalidate, forceRecompute) plus the owner-weighted
// view and the audit-trail query.
type IRRService struct {
	cacheService   *CacheService
	cascadeService *CascadeService
	aggregation    *AggregationService
	irrRepo        *repository.IRRRepository
	solverOpts     solver.Options

	// computeWait bounds how long GetIRR blocks on an in-flight computation
	// before answering with a computing status instead.
	computeWait time.Duration
}

// NewIRRService creates a new IRRService with the provided dependencies.
func NewIRRService(
	cacheService *CacheService,
	cascadeService *CascadeService,
	aggregation *AggregationService,
	irrRepo *repository.IRRRepository,
	solverOpts solver.Options,
	computeWait time.Duration,
) *IRRService {
	return &IRRService{
		cacheService:   cacheService,
		cascadeService: cascadeService,
		aggregation:    aggregation,
		irrRepo:        irrRepo,
		solverOpts:     solverOpts,
		computeWait:    computeWait,
	}
}

// GetIRR returns the IRR record for an entity, computing it when the cache
// cannot serve it. The call waits up to the configured window for an
// in-flight computation; past that it returns a record with StatusComputing
// and the caller is expected to poll rather than block. The computation
// keeps running and lands in the cache for the next request.
func (s *IRRService) GetIRR(ctx context.Context, key model.EntityKey, asOf time.Time) (model.IRRRecord, error) {
	type outcome struct {
		record model.IRRRecord
		err    error
	}
	done := make(chan outcome, 1)

	// Detached context: the computation outlives a caller that gives up waiting.
	go func() {
		record, err := s.cacheService.GetOrCompute(context.WithoutCancel(ctx), key, asOf, false)
		done <- outcome{record: record, err: err}
	}()

	timer := time.NewTimer(s.computeWait)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.record, out.err
	case <-timer.C:
		return model.IRRRecord{
			EntityID: key.EntityID,
			Level:    key.Level,
			AsOfDate: asOf,
			Status:   model.StatusComputing,
		}, nil
	case <-ctx.Done():
		return model.IRRRecord{}, ctx.Err()
	}
}

// GetOwnerIRR computes the owner-weighted IRR for an entity: each
// constituent fund's flows are scaled by the owner's validated split before
// the merged series is solved. Owner views are computed on demand and are
// not cached; the cache key space stays one record stream per entity.
func (s *IRRService) GetOwnerIRR(ctx context.Context, key model.EntityKey, ownerID string, asOf time.Time) (model.IRRRecord, error) {
	input, err := s.aggregation.BuildOwnerSeries(key, ownerID, asOf)
	if err != nil {
		return model.IRRRecord{}, err
	}

	result, err := solver.Solve(input.Series, s.solverOpts)
	if err != nil {
		return model.IRRRecord{}, err
	}

	record := model.IRRRecord{
		EntityID:         key.EntityID,
		Level:            key.Level,
		AsOfDate:         asOf,
		Undefined:        result.Undefined,
		InputFingerprint: input.Fingerprint,
		ComputedAt:       time.Now().UTC(),
		Status:           model.StatusFresh,
	}
	if !result.Undefined {
		record.Value = decimal.NewFromFloat(result.Rate)
	}
	return record, nil
}

// GetHistory returns the full audit trail for a key, newest first: every
// superseded record with its fingerprint and computed-at time.
func (s *IRRService) GetHistory(key model.EntityKey) ([]model.IRRRecord, error) {
	records := []model.IRRRecord{}
	err := s.irrRepo.GetHistory(key, func(record model.IRRRecord) error {
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Invalidate starts an invalidation cascade for a mutated entity. Mutation
// collaborators (transaction, valuation, ownership services) call this after
// every write that feeds the engine.
func (s *IRRService) Invalidate(ctx context.Context, key model.EntityKey, asOf time.Time) (model.InvalidationMarker, error) {
	return s.cascadeService.Invalidate(ctx, key, asOf)
}

// ForceRecompute bypasses fingerprint matching and recomputes the key's
// whole subtree. Administrative override for entries stuck failed.
func (s *IRRService) ForceRecompute(ctx context.Context, key model.EntityKey, asOf time.Time) (model.IRRRecord, error) {
	if err := s.cascadeService.RecomputeSubtree(ctx, key, asOf); err != nil {
		return model.IRRRecord{}, err
	}
	return s.irrRepo.GetCurrent(key)
}
