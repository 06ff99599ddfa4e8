package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/apperrors"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/model"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/repository"
)

// CascadeService owns the invalidation state machine. A data mutation
// reported by a collaborator marks the mutated entity's cache key stale,
// then the keys that depend on it, in strict dependency order: a fund before
// its portfolio, a portfolio before the company. Recomputation runs the same
// order in reverse traversal, and an aggregate never starts until every
// constituent it reads has settled.
type CascadeService struct {
	entityRepo   *repository.EntityRepository
	irrRepo      *repository.IRRRepository
	cacheService *CacheService
	coordinator  *Coordinator
}

// NewCascadeService creates a new CascadeService with the provided dependencies.
func NewCascadeService(
	entityRepo *repository.EntityRepository,
	irrRepo *repository.IRRRepository,
	cacheService *CacheService,
	coordinator *Coordinator,
) *CascadeService {
	return &CascadeService{
		entityRepo:   entityRepo,
		irrRepo:      irrRepo,
		cacheService: cacheService,
		coordinator:  coordinator,
	}
}

// Invalidate handles a mutation notification for an entity. It builds the
// invalidation marker (the mutated key plus its dependents, in dependency
// order), transitions each to stale, and runs one cascade round that
// recomputes them bottom-up. Exactly the mutated entity's chain is touched;
// sibling funds and unrelated portfolios keep their status.
func (s *CascadeService) Invalidate(ctx context.Context, key model.EntityKey, asOf time.Time) (model.InvalidationMarker, error) {
	dependents, err := s.entityRepo.Dependents(key)
	if err != nil {
		return model.InvalidationMarker{}, err
	}

	marker := model.InvalidationMarker{
		Source:     key,
		Dependents: dependents,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.cacheService.MarkStale(key); err != nil {
		return model.InvalidationMarker{}, err
	}
	for _, dep := range dependents {
		if err := s.cacheService.MarkStale(dep); err != nil {
			return model.InvalidationMarker{}, err
		}
	}

	if err := s.runCascade(ctx, marker, asOf); err != nil {
		return marker, err
	}
	return marker, nil
}

// runCascade recomputes one cascade round: the source key first, then each
// dependent in order, each gated on its constituents having settled.
func (s *CascadeService) runCascade(ctx context.Context, marker model.InvalidationMarker, asOf time.Time) error {
	if err := s.recompute(ctx, marker.Source, asOf, false); err != nil {
		return err
	}

	for _, dep := range marker.Dependents {
		if err := s.recomputeAggregate(ctx, dep, asOf, false); err != nil {
			return err
		}
	}
	return nil
}

// recompute recomputes a single key through the cache. Insufficient data is
// tolerated here: a fund mutated before its first valuation simply stays
// uncomputed until one arrives. Convergence failures surface as a failed
// record, not an error, and are handled by the caller's degradation rule.
func (s *CascadeService) recompute(ctx context.Context, key model.EntityKey, asOf time.Time, force bool) error {
	_, err := s.cacheService.GetOrCompute(ctx, key, asOf, force)
	if errors.Is(err, apperrors.ErrInsufficientData) {
		log.Printf("cascade: skipping %s: %v", key, err)
		return nil
	}
	return err
}

// recomputeAggregate recomputes a parent key after all of its constituents
// have resolved out of computing. If any constituent's current record is
// failed, the parent is degraded to failed rather than computed around the
// hole: a visibly unavailable aggregate beats a silently wrong one.
func (s *CascadeService) recomputeAggregate(ctx context.Context, key model.EntityKey, asOf time.Time, force bool) error {
	children, err := s.entityRepo.ConstituentKeys(key)
	if err != nil {
		return err
	}

	for _, child := range children {
		if err := s.coordinator.WaitSettled(ctx, child); err != nil {
			return err
		}
	}

	failed, err := s.anyChildFailed(children)
	if err != nil {
		return err
	}
	if failed {
		log.Printf("cascade: degrading %s: constituent computation failed", key)
		return s.cacheService.MarkFailed(key)
	}

	return s.recompute(ctx, key, asOf, force)
}

// RecomputeSubtree force-recomputes every fund under a key in parallel and
// then the aggregates above them. This is the administrative forceRecompute
// path: fingerprint matching is bypassed at every level.
func (s *CascadeService) RecomputeSubtree(ctx context.Context, key model.EntityKey, asOf time.Time) error {
	fundKeys, err := s.fundKeysUnder(key)
	if err != nil {
		return err
	}

	// Independent funds recompute in parallel; the coordinator bounds the
	// actual concurrency and deduplicates overlapping requests.
	g, gctx := errgroup.WithContext(ctx)
	for _, fundKey := range fundKeys {
		fundKey := fundKey
		g.Go(func() error {
			_, err := s.cacheService.GetOrCompute(gctx, fundKey, asOf, true)
			if errors.Is(err, apperrors.ErrInsufficientData) {
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if key.Level == model.LevelFund {
		marker := model.InvalidationMarker{Source: key}
		marker.Dependents, err = s.entityRepo.Dependents(key)
		if err != nil {
			return err
		}
		for _, dep := range marker.Dependents {
			if err := s.recomputeAggregate(ctx, dep, asOf, true); err != nil {
				return err
			}
		}
		return nil
	}

	if key.Level == model.LevelCompany {
		portfolios, err := s.entityRepo.GetPortfoliosByCompany(key.EntityID)
		if err != nil {
			return err
		}
		for _, p := range portfolios {
			pKey := model.EntityKey{EntityID: p.ID, Level: model.LevelPortfolio}
			if err := s.recomputeAggregate(ctx, pKey, asOf, true); err != nil {
				return err
			}
		}
	}

	return s.recomputeAggregate(ctx, key, asOf, true)
}

// fundKeysUnder returns every fund-level cache key in the subtree of a key.
func (s *CascadeService) fundKeysUnder(key model.EntityKey) ([]model.EntityKey, error) {
	switch key.Level {
	case model.LevelFund:
		return []model.EntityKey{key}, nil
	case model.LevelPortfolio:
		return s.entityRepo.ConstituentKeys(key)
	case model.LevelCompany:
		portfolios, err := s.entityRepo.GetPortfoliosByCompany(key.EntityID)
		if err != nil {
			return nil, err
		}
		var keys []model.EntityKey
		for _, p := range portfolios {
			children, err := s.entityRepo.ConstituentKeys(model.EntityKey{EntityID: p.ID, Level: model.LevelPortfolio})
			if err != nil {
				return nil, err
			}
			keys = append(keys, children...)
		}
		return keys, nil
	default:
		return nil, fmt.Errorf("%w: %d", apperrors.ErrInvalidLevel, key.Level)
	}
}

// anyChildFailed reports whether any of the keys' current records is failed.
// Keys without a record yet are treated as not failed.
func (s *CascadeService) anyChildFailed(keys []model.EntityKey) (bool, error) {
	for _, key := range keys {
		record, err := s.irrRepo.GetCurrent(key)
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
