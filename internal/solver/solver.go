// Package solver computes the internal rate of return of a dated cash-flow
// series. It is purely computational: no I/O, no suspension points. Callers
// hand it an ordered series and receive either an annualized rate, the
// "undefined" sentinel (a valid result, not an error), or a convergence error.
package solver

import (
	"fmt"
	"math"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/apperrors"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/model"
)

// Options bounds the root search. Zero values are replaced by the defaults
// from DefaultOptions, so config only needs to override what it cares about.
type Options struct {
	InitialGuess     float64 // Newton-Raphson starting rate
	NewtonMaxIter    int     // hard cap before falling back to bisection
	BisectMaxIter    int     // hard cap before reporting ConvergenceFailure
	NPVTolerance     float64 // residual-based stopping: |NPV(r)| below this is converged
	BracketTolerance float64 // bisection also stops when the bracket is narrower than this
	BracketLow       float64 // lower bisection bound (rate, exclusive of -1)
	BracketHigh      float64 // upper bisection bound
}

// DefaultOptions are the engine-wide solver bounds.
func DefaultOptions() Options {
	return Options{
		InitialGuess:     0.1,
		NewtonMaxIter:    100,
		BisectMaxIter:    200,
		NPVTolerance:     1e-6,
		BracketTolerance: 1e-7,
		BracketLow:       -0.9999,
		BracketHigh:      10,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.InitialGuess == 0 {
		o.InitialGuess = d.InitialGuess
	}
	if o.NewtonMaxIter == 0 {
		o.NewtonMaxIter = d.NewtonMaxIter
	}
	if o.BisectMaxIter == 0 {
		o.BisectMaxIter = d.BisectMaxIter
	}
	if o.NPVTolerance == 0 {
		o.NPVTolerance = d.NPVTolerance
	}
	if o.BracketTolerance == 0 {
		o.BracketTolerance = d.BracketTolerance
	}
	if o.BracketLow == 0 {
		o.BracketLow = d.BracketLow
	}
	if o.BracketHigh == 0 {
		o.BracketHigh = d.BracketHigh
	}
	return o
}

// Result is the outcome of a solve. When Undefined is true the series had no
// sign change (all contributions, or fewer than two non-zero flows) and Rate
// is meaningless; this is a deterministic, valid terminal result.
type Result struct {
	Rate      float64
	Undefined bool
}

// flow is a cash flow reduced to float64 for root finding. Amounts are stored
// as decimals; converting once up front keeps the iteration loops allocation-free.
type flow struct {
	amount float64
	years  float64 // actual/365 from the first event
}

// Solve computes the annualized rate r such that
//
//	NPV(r) = sum CF_i / (1+r)^(t_i/365) ~ 0
//
// using Newton-Raphson from the initial guess with an analytic derivative,
// falling back to bisection over [BracketLow, BracketHigh] when Newton fails
// to converge or diverges. Stopping is residual-based: |NPV(r)| < NPVTolerance,
// or for bisection a bracket narrower than BracketTolerance.
//
// A series with no sign change returns Result{Undefined: true} and a nil
// error. A series on which both methods fail returns
// apperrors.ErrConvergenceFailure.
func Solve(series model.CashFlowSeries, opts Options) (Result, error) {
	opts = opts.withDefaults()

	if len(series.Events) == 0 {
		return Result{}, fmt.Errorf("empty cash-flow series for %s: %w", series.EntityID, apperrors.ErrInsufficientData)
	}
	if !series.HasSignChange() {
		return Result{Undefined: true}, nil
	}

	flows := toFlows(series)

	// A zero rate is the exact root whenever the flows already net to ~zero
	// (same-day contribution and valuation, no gain). Checking it first also
	// returns 0.0 exactly instead of a value within tolerance of zero.
	if math.Abs(npv(flows, 0)) < opts.NPVTolerance {
		return Result{Rate: 0}, nil
	}

	if rate, ok := newton(flows, opts); ok {
		return Result{Rate: rate}, nil
	}
	if rate, ok := bisect(flows, opts); ok {
		return Result{Rate: rate}, nil
	}
	return Result{}, fmt.Errorf("series for %s: %w", series.EntityID, apperrors.ErrConvergenceFailure)
}

func toFlows(series model.CashFlowSeries) []flow {
	t0 := series.Events[0].Date
	flows := make([]flow, len(series.Events))
	for i, e := range series.Events {
		flows[i] = flow{
			amount: e.Amount.InexactFloat64(),
			years:  e.Date.Sub(t0).Hours() / 24 / 365,
		}
	}
	return flows
}

// npv evaluates the net present value of the flows at rate r.
func npv(flows []flow, r float64) float64 {
	var sum float64
	for _, f := range flows {
		sum += f.amount / math.Pow(1+r, f.years)
	}
	return sum
}

// dnpv evaluates the analytic derivative of npv with respect to r.
func dnpv(flows []flow, r float64) float64 {
	var sum float64
	for _, f := range flows {
		sum += -f.amount * f.years * math.Pow(1+r, -f.years-1)
	}
	return sum
}

// newton runs the Newton-Raphson iteration. It reports ok=false on
// divergence (NaN/Inf, a rate at or below -1, a vanishing derivative) or
// when the iteration cap is hit without meeting the residual tolerance.
func newton(flows []flow, opts Options) (float64, bool) {
	r := opts.InitialGuess
	for i := 0; i < opts.NewtonMaxIter; i++ {
		if r <= -1 || math.IsNaN(r) || math.IsInf(r, 0) {
			return 0, false
		}
		v := npv(flows, r)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		if math.Abs(v) < opts.NPVTolerance {
			return r, true
		}
		d := dnpv(flows, r)
		if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return 0, false
		}
		r -= v / d
	}
	return 0, false
}

// bisect runs the Intermediate Value Theorem fallback over the configured
// bracket. It requires a sign change in NPV across the bracket; without one
// there is no root to bracket and ok=false.
func bisect(flows []flow, opts Options) (float64, bool) {
	lo, hi := opts.BracketLow, opts.BracketHigh
	vLo, vHi := npv(flows, lo), npv(flows, hi)
	if math.IsNaN(vLo) || math.IsNaN(vHi) || vLo*vHi > 0 {
		return 0, false
	}

	for i := 0; i < opts.BisectMaxIter; i++ {
		mid := (lo + hi) / 2
		vMid := npv(flows, mid)
		if math.Abs(vMid) < opts.NPVTolerance || hi-lo < opts.BracketTolerance {
			return mid, true
		}
		if vLo*vMid < 0 {
			hi = mid
		} else {
			lo, vLo = mid, vMid
		}
	}
	return 0, false
}
