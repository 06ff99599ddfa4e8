package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/model"
)

// CreateCompany inserts a company row and returns the model.
func CreateCompany(t *testing.T, db *sql.DB, name string) model.Company {
	t.Helper()
	c := model.Company{ID: MakeID(), Name: name}
	if _, err := db.Exec(`INSERT INTO company (id, name) VALUES (?, ?)`, c.ID, c.Name); err != nil {
		t.Fatalf("Failed to create test company: %v", err)
	}
	return c
}

// CreatePortfolio inserts a portfolio row under a company and returns the model.
func CreatePortfolio(t *testing.T, db *sql.DB, companyID, name string) model.Portfolio {
	t.Helper()
	p := model.Portfolio{ID: MakeID(), CompanyID: companyID, Name: name}
	if _, err := db.Exec(
		`INSERT INTO portfolio (id, company_id, name) VALUES (?, ?, ?)`,
		p.ID, p.CompanyID, p.Name,
	); err != nil {
		t.Fatalf("Failed to create test portfolio: %v", err)
	}
	return p
}

// CreateFund inserts a fund row under a portfolio and returns the model.
func CreateFund(t *testing.T, db *sql.DB, portfolioID, name string) model.Fund {
	t.Helper()
	f := model.Fund{ID: MakeID(), PortfolioID: portfolioID, Name: name}
	if _, err := db.Exec(
		`INSERT INTO fund (id, portfolio_id, name) VALUES (?, ?, ?)`,
		f.ID, f.PortfolioID, f.Name,
	); err != nil {
		t.Fatalf("Failed to create test fund: %v", err)
	}
	return f
}

// AddCashFlow inserts a cash-flow event for an entity. Negative amounts are
// contributions, positive are withdrawals, matching the engine's convention.
func AddCashFlow(t *testing.T, db *sql.DB, entityID string, level model.Level, date time.Time, amount decimal.Decimal) {
	t.Helper()
	if _, err := db.Exec(
		`INSERT INTO cash_flow_event (id, entity_id, entity_level, date, amount) VALUES (?, ?, ?, ?, ?)`,
		MakeID(), entityID, level.String(), date.Format("2006-01-02"), amount.String(),
	); err != nil {
		t.Fatalf("Failed to create test cash flow: %v", err)
	}
}

// AddValuation inserts a valuation for an entity.
func AddValuation(t *testing.T, db *sql.DB, entityID string, level model.Level, date time.Time, value decimal.Decimal) {
	t.Helper()
	if _, err := db.Exec(
		`INSERT INTO valuation (id, entity_id, entity_level, date, value) VALUES (?, ?, ?, ?, ?)`,
		MakeID(), entityID, level.String(), date.Format("2006-01-02"), value.String(),
	); err != nil {
		t.Fatalf("Failed to create test valuation: %v", err)
	}
}

// AddOwnershipSplit inserts an ownership split for a fund.
func AddOwnershipSplit(t *testing.T, db *sql.DB, fundID, ownerID string, percentage decimal.Decimal) {
	t.Helper()
	if _, err := db.Exec(
		`INSERT INTO ownership_split (id, fund_id, owner_id, percentage) VALUES (?, ?, ?, ?)`,
		MakeID(), fundID, ownerID, percentage.String(),
	); err != nil {
		t.Fatalf("Failed to create test ownership split: %v", err)
	}
}

// CreateHierarchy creates a company with one portfolio and n funds,
// returning all three levels. Convenience for cascade tests.
func CreateHierarchy(t *testing.T, db *sql.DB, funds int) (model.Company, model.Portfolio, []model.Fund) {
	t.Helper()
	company := CreateCompany(t, db, "Test Company")
	portfolio := CreatePortfolio(t, db, company.ID, "Test Portfolio")
	out := make([]model.Fund, funds)
	for i := range out {
		out[i] = CreateFund(t, db, portfolio.ID, "Test Fund")
	}
	return company, portfolio, out
}
