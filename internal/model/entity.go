package model

import "fmt"

// Level identifies where an entity sits in the fund -> portfolio -> company
// hierarchy. The cascade controller relies on the numeric ordering: a level
// never depends on a higher one.
type Level int

const (
	LevelFund Level = iota
	LevelPortfolio
	LevelCompany
)

// String returns the wire/database representation of the level.
func (l Level) String() string {
	switch l {
	case LevelFund:
		return "fund"
	case LevelPortfolio:
		return "portfolio"
	case LevelCompany:
		return "company"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel converts the wire/database representation back to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "fund":
		return LevelFund, nil
	case "portfolio":
		return LevelPortfolio, nil
	case "company":
		return LevelCompany, nil
	default:
		return 0, fmt.Errorf("unknown entity level: %q", s)
	}
}

// Company is the top of the reporting hierarchy.
type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Portfolio groups funds under a company.
type Portfolio struct {
	ID        string `json:"id"`
	CompanyID string `json:"companyId"`
	Name      string `json:"name"`
}

// Fund is the leaf entity that transactions and valuations attach to.
// A fund is also the "product" that ownership splits are registered against.
type Fund struct {
	ID          string `json:"id"`
	PortfolioID string `json:"portfolioId"`
	Name        string `json:"name"`
}

// EntityKey uniquely identifies a cache key: one IRR result stream per
// entity and level.
type EntityKey struct {
	EntityID string
	Level    Level
}

// String renders the key in "level:id" form, used for logging and as the
// single-flight group key.
func (k EntityKey) String() string {
	return k.Level.String() + ":" + k.EntityID
}
