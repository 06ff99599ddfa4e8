package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/apperrors"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/model"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/repository"
)

// AggregationService builds the input series for any cache key.
//
// Portfolio- and company-level returns are NOT averages of child rates:
// averaging rates is money-weighting done wrong. Instead the service merges
// every constituent fund's cash flows (terminal valuations included) into one
// series and the solver runs on the merged series, so the aggregate is a true
// money-weighted figure.
type AggregationService struct {
	entityRepo      *repository.EntityRepository
	ownershipRepo   *repository.OwnershipRepository
	cashFlowService *CashFlowService
}

// NewAggregationService creates a new AggregationService with the provided dependencies.
func NewAggregationService(
	entityRepo *repository.EntityRepository,
	ownershipRepo *repository.OwnershipRepository,
	cashFlowService *CashFlowService,
) *AggregationService {
	return &AggregationService{
		entityRepo:      entityRepo,
		ownershipRepo:   ownershipRepo,
		cashFlowService: cashFlowService,
	}
}

// SeriesInput is a solver-ready series together with the fingerprint the
// cache keys it by. For aggregates the fingerprint hashes the child
// fingerprints, so a change to any constituent invalidates the parent.
type SeriesInput struct {
	Series      model.CashFlowSeries
	Fingerprint string
}

// BuildSeries assembles the cash-flow series and input fingerprint for a
// cache key at any level.
//
//   - fund: the extractor's series, fingerprinted directly
//   - portfolio: all constituent fund series merged
//   - company: all portfolios' merged series merged again
//
// A fund with no valuation fails the whole aggregate with
// apperrors.ErrInsufficientData rather than being silently skipped: an
// aggregate that quietly dropped a constituent would be a wrong number, not
// a partial one.
func (s *AggregationService) BuildSeries(key model.EntityKey, asOf time.Time) (SeriesInput, error) {
	switch key.Level {
	case model.LevelFund:
		series, err := s.cashFlowService.ExtractSeries(key.EntityID, model.LevelFund, asOf)
		if err != nil {
			return SeriesInput{}, err
		}
		return SeriesInput{Series: series, Fingerprint: series.Fingerprint()}, nil

	case model.LevelPortfolio:
		funds, err := s.entityRepo.GetFundsByPortfolio(key.EntityID)
		if err != nil {
			return SeriesInput{}, err
		}
		return s.mergeFundSeries(key, funds, asOf)

	case model.LevelCompany:
		portfolios, err := s.entityRepo.GetPortfoliosByCompany(key.EntityID)
		if err != nil {
			return SeriesInput{}, err
		}
		merged := model.CashFlowSeries{EntityID: key.EntityID, Level: key.Level}
		childFingerprints := make([]string, 0, len(portfolios))
		for _, p := range portfolios {
			childKey := model.EntityKey{EntityID: p.ID, Level: model.LevelPortfolio}
			child, err := s.BuildSeries(childKey, asOf)
			if err != nil {
				return SeriesInput{}, fmt.Errorf("portfolio %s: %w", p.ID, err)
			}
			merged.Events = append(merged.Events, child.Series.Events...)
			childFingerprints = append(childFingerprints, child.Fingerprint)
		}
		merged.Sort()
		return SeriesInput{
			Series:      merged,
			Fingerprint: model.AggregateFingerprint(key, childFingerprints),
		}, nil

	default:
		return SeriesInput{}, fmt.Errorf("%w: %d", apperrors.ErrInvalidLevel, key.Level)
	}
}

// mergeFundSeries merges the series of the given funds into one series for
// the parent key, fingerprinted over the child fingerprints.
func (s *AggregationService) mergeFundSeries(key model.EntityKey, funds []model.Fund, asOf time.Time) (SeriesInput, error) {
	merged := model.CashFlowSeries{EntityID: key.EntityID, Level: key.Level}
	childFingerprints := make([]string, 0, len(funds))

	for _, fund := range funds {
		series, err := s.cashFlowService.ExtractSeries(fund.ID, model.LevelFund, asOf)
		if err != nil {
			return SeriesInput{}, fmt.Errorf("fund %s: %w", fund.ID, err)
		}
		merged.Events = append(merged.Events, series.Events...)
		childFingerprints = append(childFingerprints, series.Fingerprint())
	}

	merged.Sort()
	return SeriesInput{
		Series:      merged,
		Fingerprint: model.AggregateFingerprint(key, childFingerprints),
	}, nil
}

// BuildOwnerSeries assembles an owner-weighted series: each constituent
// fund's flows are scaled by the owner's validated percentage before merging.
//
// Splits whose percentages violate the sum invariant fail the whole view
// with apperrors.ErrOwnershipInvariantViolation naming the offending fund;
// a silently skewed weight is worse than no figure. A fund with no registry
// entry is treated as wholly unowned by the requested owner and contributes
// nothing.
func (s *AggregationService) BuildOwnerSeries(key model.EntityKey, ownerID string, asOf time.Time) (SeriesInput, error) {
	funds, err := s.constituentFunds(key)
	if err != nil {
		return SeriesInput{}, err
	}

	merged := model.CashFlowSeries{EntityID: key.EntityID, Level: key.Level}
	childFingerprints := make([]string, 0, len(funds))

	for _, fund := range funds {
		ownership, err := s.OwnershipFor(fund.ID)
		if errors.Is(err, apperrors.ErrOwnershipNotFound) {
			continue
		}
		if err != nil {
			return SeriesInput{}, err
		}

		weight := ownership.Weight(ownerID)
		if weight.IsZero() {
			continue
		}

		series, err := s.cashFlowService.ExtractSeries(fund.ID, model.LevelFund, asOf)
		if err != nil {
			return SeriesInput{}, fmt.Errorf("fund %s: %w", fund.ID, err)
		}

		for _, e := range series.Events {
			e.Amount = e.Amount.Mul(weight)
			merged.Events = append(merged.Events, e)
		}
		childFingerprints = append(childFingerprints, series.Fingerprint()+"|"+ownerID+"|"+weight.String())
	}

	merged.Sort()
	return SeriesInput{
		Series:      merged,
		Fingerprint: model.AggregateFingerprint(key, childFingerprints),
	}, nil
}

// OwnershipFor loads and validates the ownership model of a fund. A split
// set that sums outside tolerance is rejected here, before any weight is
// derived from it.
func (s *AggregationService) OwnershipFor(fundID string) (model.OwnershipModel, error) {
	splits, err := s.ownershipRepo.GetSplitsForFund(fundID)
	if err != nil {
		return model.OwnershipModel{}, err
	}

	ownership, err := model.NewTenantsInCommonOwnership(fundID, splits)
	if err != nil {
		return model.OwnershipModel{}, fmt.Errorf("%w: %v", apperrors.ErrOwnershipInvariantViolation, err)
	}
	return ownership, nil
}

// constituentFunds returns the leaf funds under a key at any level.
func (s *AggregationService) constituentFunds(key model.EntityKey) ([]model.Fund, error) {
	switch key.Level {
	case model.LevelFund:
		fund, err := s.entityRepo.GetFund(key.EntityID)
		if err != nil {
			return nil, err
		}
		return []model.Fund{fund}, nil
	case model.LevelPortfolio:
		return s.entityRepo.GetFundsByPortfolio(key.EntityID)
	case model.LevelCompany:
		portfolios, err := s.entityRepo.GetPortfoliosByCompany(key.EntityID)
		if err != nil {
			return nil, err
		}
		var funds []model.Fund
		for _, p := range portfolios {
			children, err := s.entityRepo.GetFundsByPortfolio(p.ID)
			if err != nil {
				return nil, err
			}
			funds = append(funds, children...)
		}
		return funds, nil
	default:
		return nil, fmt.Errorf("%w: %d", apperrors.ErrInvalidLevel, key.Level)
	}
}
