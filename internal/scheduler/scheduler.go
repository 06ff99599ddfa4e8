// Package scheduler runs the periodic refresh sweep: cache entries left
// stale or failed (for example after a collaborator invalidation whose
// recompute was interrupted, or a convergence failure awaiting its retry)
// are recomputed off-peak instead of penalizing the first advisor to ask.
package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/apperrors"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/model"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/repository"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/service"
)

// Scheduler owns the cron instance and the sweep job.
type Scheduler struct {
	cron         *cron.Cron
	irrRepo      *repository.IRRRepository
	cacheService *service.CacheService
}

// New creates a Scheduler with the provided dependencies.
func New(irrRepo *repository.IRRRepository, cacheService *service.CacheService) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		irrRepo:      irrRepo,
		cacheService: cacheService,
	}
}

// Start registers the refresh sweep under the given cron spec and starts the
// scheduler. An empty spec disables the sweep.
func (s *Scheduler) Start(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(spec, func() {
		if err := s.RefreshSweep(context.Background()); err != nil {
			log.Printf("refresh sweep failed: %v", err)
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop stops the scheduler, waiting for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RefreshSweep recomputes every current cache entry whose status is stale or
// failed, as of today. Failed entries go through the force path so the
// fingerprint short-circuit cannot skip them. Entities whose data has since
// become insufficient are left alone.
func (s *Scheduler) RefreshSweep(ctx context.Context) error {
	asOf := time.Now().UTC().Truncate(24 * time.Hour)

	var pending []model.IRRRecord
	err := s.irrRepo.ListCurrentByStatus(
		[]model.Status{model.StatusStale, model.StatusFailed},
		func(record model.IRRRecord) error {
			pending = append(pending, record)
			return nil
		},
	)
	if err != nil {
		return err
	}

	// Funds first so aggregates see settled children; levels are ordered.
	for level := model.LevelFund; level <= model.LevelCompany; level++ {
		for _, record := range pending {
			if record.Level != level {
				continue
			}
			force := record.Status == model.StatusFailed
			_, err := s.cacheService.GetOrCompute(ctx, record.Key(), asOf, force)
			if errors.Is(err, apperrors.ErrInsufficientData) {
				continue
			}
			if err != nil {
				log.Printf("refresh sweep: %s: %v", record.Key(), err)
			}
		}
	}
	return nil
}
