package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/apperrors"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/model"
)

// EntityRepository provides read access to the fund -> portfolio -> company
// hierarchy. The cascade controller uses it to walk from a mutated entity up
// to its dependents, and the aggregation engine to walk from a parent down to
// its constituents.
type EntityRepository struct {
	db *sql.DB
}

// NewEntityRepository creates a new repository instance.
func NewEntityRepository(db *sql.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

// GetFund retrieves a single fund by ID.
func (r *EntityRepository) GetFund(id string) (model.Fund, error) {
	var f model.Fund
	err := r.db.QueryRow(
		`SELECT id, portfolio_id, name FROM fund WHERE id = ?`, id,
	).Scan(&f.ID, &f.PortfolioID, &f.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Fund{}, fmt.Errorf("fund %s: %w", id, apperrors.ErrFundNotFound)
	}
	if err != nil {
		return model.Fund{}, fmt.Errorf("failed to query fund: %w", err)
	}
	return f, nil
}

// GetPortfolio retrieves a single portfolio by ID.
func (r *EntityRepository) GetPortfolio(id string) (model.Portfolio, error) {
	var p model.Portfolio
	err := r.db.QueryRow(
		`SELECT id, company_id, name FROM portfolio WHERE id = ?`, id,
	).Scan(&p.ID, &p.CompanyID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Portfolio{}, fmt.Errorf("portfolio %s: %w", id, apperrors.ErrPortfolioNotFound)
	}
	if err != nil {
		return model.Portfolio{}, fmt.Errorf("failed to query portfolio: %w", err)
	}
	return p, nil
}

// GetCompany retrieves a single company by ID.
func (r *EntityRepository) GetCompany(id string) (model.Company, error) {
	var c model.Company
	err := r.db.QueryRow(
		`SELECT id, name FROM company WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Company{}, fmt.Errorf("company %s: %w", id, apperrors.ErrCompanyNotFound)
	}
	if err != nil {
		return model.Company{}, fmt.Errorf("failed to query company: %w", err)
	}
	return c, nil
}

// GetFundsByPortfolio retrieves all constituent funds of a portfolio,
// ordered by ID for deterministic aggregation.
func (r *EntityRepository) GetFundsByPortfolio(portfolioID string) ([]model.Fund, error) {
	rows, err := r.db.Query(
		`SELECT id, portfolio_id, name FROM fund WHERE portfolio_id = ? ORDER BY id`, portfolioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query funds for portfolio %s: %w", portfolioID, err)
	}
	defer rows.Close()

	var funds []model.Fund
	for rows.Next() {
		var f model.Fund
		if err := rows.Scan(&f.ID, &f.PortfolioID, &f.Name); err != nil {
			return nil, fmt.Errorf("failed to scan fund row: %w", err)
		}
		funds = append(funds, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fund rows: %w", err)
	}
	return funds, nil
}

// GetPortfoliosByCompany retrieves all portfolios of a company, ordered by ID.
func (r *EntityRepository) GetPortfoliosByCompany(companyID string) ([]model.Portfolio, error) {
	rows, err := r.db.Query(
		`SELECT id, company_id, name FROM portfolio WHERE company_id = ? ORDER BY id`, companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios for company %s: %w", companyID, err)
	}
	defer rows.Close()

	var portfolios []model.Portfolio
	for rows.Next() {
		var p model.Portfolio
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio row: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolio rows: %w", err)
	}
	return portfolios, nil
}

// ConstituentKeys returns the immediate child cache keys of an aggregate
// key: a portfolio's funds, or a company's portfolios. Funds have no
// constituents.
func (r *EntityRepository) ConstituentKeys(key model.EntityKey) ([]model.EntityKey, error) {
	switch key.Level {
	case model.LevelFund:
		return nil, nil
	case model.LevelPortfolio:
		funds, err := r.GetFundsByPortfolio(key.EntityID)
		if err != nil {
			return nil, err
		}
		keys := make([]model.EntityKey, len(funds))
		for i, f := range funds {
			keys[i] = model.EntityKey{EntityID: f.ID, Level: model.LevelFund}
		}
		return keys, nil
	case model.LevelCompany:
		portfolios, err := r.GetPortfoliosByCompany(key.EntityID)
		if err != nil {
			return nil, err
		}
		keys := make([]model.EntityKey, len(portfolios))
		for i, p := range portfolios {
			keys[i] = model.EntityKey{EntityID: p.ID, Level: model.LevelPortfolio}
		}
		return keys, nil
	default:
		return nil, fmt.Errorf("%w: %d", apperrors.ErrInvalidLevel, key.Level)
	}
}

// Dependents returns the cache keys that depend on the given entity, in
// cascade order (immediate parent first). A fund mutation invalidates its
// owning portfolio and then the company; a portfolio mutation invalidates
// the company; a company has no dependents.
func (r *EntityRepository) Dependents(key model.EntityKey) ([]model.EntityKey, error) {
	switch key.Level {
	case model.LevelFund:
		fund, err := r.GetFund(key.EntityID)
		if err != nil {
			return nil, err
		}
		portfolio, err := r.GetPortfolio(fund.PortfolioID)
		if err != nil {
			return nil, fmt.Errorf("fund %s references missing portfolio: %w", key.EntityID, apperrors.ErrDataInconsistency)
		}
		return []model.EntityKey{
			{EntityID: portfolio.ID, Level: model.LevelPortfolio},
			{EntityID: portfolio.CompanyID, Level: model.LevelCompany},
		}, nil
	case model.LevelPortfolio:
		portfolio, err := r.GetPortfolio(key.EntityID)
		if err != nil {
			return nil, err
		}
		return []model.EntityKey{
			{EntityID: portfolio.CompanyID, Level: model.LevelCompany},
		}, nil
	case model.LevelCompany:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %d", apperrors.ErrInvalidLevel, key.Level)
	}
}
