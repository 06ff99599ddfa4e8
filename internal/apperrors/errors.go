package apperrors

import "errors"

// Domain entity errors represent missing or invalid entities in the system.
// These errors indicate that a requested resource does not exist.
var (
	// ErrCompanyNotFound indicates that a company with the given ID does not exist.
	ErrCompanyNotFound = errors.New("company not found")

	// ErrPortfolioNotFound indicates that a portfolio with the given ID does not exist.
	ErrPortfolioNotFound = errors.New("portfolio not found")

	// ErrFundNotFound indicates that a fund with the given ID does not exist.
	ErrFundNotFound = errors.New("fund not found")

	// ErrResultNotFound indicates that no IRR result exists for the given entity and level.
	ErrResultNotFound = errors.New("irr result not found")

	// ErrOwnershipNotFound indicates that no ownership splits are registered for a fund.
	ErrOwnershipNotFound = errors.New("ownership splits not found")
)

// Computation errors represent conditions under which the engine cannot
// produce a number. Note that an undefined IRR is NOT among them: a series
// with no sign change has an undefined IRR by definition and the solver
// reports that as a valid terminal result, never as an error.
var (
	// ErrInsufficientData indicates that an entity has no valuation (or no cash
	// flows at all), so no IRR computation can be attempted. Surfaced to the
	// caller and not retried automatically.
	ErrInsufficientData = errors.New("insufficient data for irr computation")

	// ErrConvergenceFailure indicates that both Newton-Raphson and the
	// bisection fallback failed to converge on a root. The cache entry is
	// marked failed, retried once on the next access, then left for a
	// manual trigger.
	ErrConvergenceFailure = errors.New("irr solver failed to converge")

	// ErrOwnershipInvariantViolation indicates that a fund's ownership split
	// percentages sum outside the [99.99, 100.01] tolerance. Aggregation for
	// the affected fund refuses to proceed rather than produce skewed weights.
	ErrOwnershipInvariantViolation = errors.New("ownership split percentages violate sum invariant")

	// ErrConcurrentMutationRace indicates a fingerprint mismatch detected when
	// a computation finished: the inputs changed while it ran. Handled
	// internally by discarding the superseded result; never user-facing.
	ErrConcurrentMutationRace = errors.New("inputs changed during computation")
)

// Request validation errors represent malformed caller input.
var (
	// ErrInvalidUUID indicates that a provided ID is not a valid UUID format.
	ErrInvalidUUID = errors.New("invalid UUID format")

	// ErrInvalidLevel indicates that an entity level is not one of fund,
	// portfolio, or company.
	ErrInvalidLevel = errors.New("invalid entity level")

	// ErrInvalidDate indicates that a date parameter could not be parsed.
	ErrInvalidDate = errors.New("invalid date parameter")

	// ErrEmptyID indicates that a required ID parameter is empty or missing.
	ErrEmptyID = errors.New("ID cannot be empty")
)

// Data integrity errors represent inconsistencies in stored data.
var (
	// ErrDataInconsistency indicates that the data is in an inconsistent state
	// (e.g., a fund references a portfolio that does not exist).
	ErrDataInconsistency = errors.New("data inconsistency detected")
)
