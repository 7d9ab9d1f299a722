package fdm

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/floats"

	"github.com/tuneinsight/finitediff/utils"
)

const (
	// DefaultInitialStep is the first step of the extrapolation sequence.
	DefaultInitialStep = 10.0
	// DefaultContract is the ratio between two consecutive steps of the extrapolation sequence.
	DefaultContract = 0.8
	// DefaultMaxEval bounds the number of evaluations of the method during an extrapolation.
	DefaultMaxEval = 1000
	// DefaultPatience is the number of consecutive tableau rows without a smaller error
	// estimate after which an extrapolation stops.
	DefaultPatience = 20
)

// ExtrapolationLiteral configures [Extrapolate]. Unset fields take their default value.
type ExtrapolationLiteral struct {
	// InitialStep is the first step of the sequence (default 10).
	InitialStep float64 `json:",omitempty"`
	// Contract is the ratio in (0, 1) between consecutive steps (default 0.8).
	Contract float64 `json:",omitempty"`
	// Power is the power of the step in which the error expands (default [Method.ExtrapolationPower]).
	Power int `json:",omitempty"`
	// RelTol stops the extrapolation once the error estimate is below RelTol times the
	// magnitude of the estimate (default sqrt of the machine epsilon of the argument type).
	RelTol *float64 `json:",omitempty"`
	// AbsTol stops the extrapolation once the error estimate is below AbsTol (default 0).
	AbsTol float64 `json:",omitempty"`
	// BreakTol stops the extrapolation once the smallest error of a tableau row exceeds
	// BreakTol times the best error so far (default +Inf, see Patience).
	BreakTol float64 `json:",omitempty"`
	// MaxEval bounds the number of evaluations of the method (default 1000).
	MaxEval int `json:",omitempty"`
	// Patience stops the extrapolation once that many consecutive rows of the tableau did
	// not lower the error estimate (default 20).
	Patience int `json:",omitempty"`
}

type extrapolation struct {
	initialStep float64
	contract    float64
	power       int
	relTol      float64
	absTol      float64
	breakTol    float64
	maxEval     int
	patience    int
}

func newExtrapolation[T constraints.Float](m *Method, lit ExtrapolationLiteral) (e extrapolation, err error) {

	e = extrapolation{
		initialStep: lit.InitialStep,
		contract:    lit.Contract,
		power:       lit.Power,
		relTol:      math.Sqrt(epsilon[T]()),
		absTol:      lit.AbsTol,
		breakTol:    lit.BreakTol,
		maxEval:     lit.MaxEval,
		patience:    lit.Patience,
	}

	if e.initialStep == 0 {
		e.initialStep = DefaultInitialStep
	}
	if e.contract == 0 {
		e.contract = DefaultContract
	}
	if e.power == 0 {
		e.power = m.ExtrapolationPower()
	}
	if lit.RelTol != nil {
		e.relTol = *lit.RelTol
	}
	if e.breakTol == 0 {
		e.breakTol = math.Inf(1)
	}
	if e.maxEval == 0 {
		e.maxEval = DefaultMaxEval
	}
	if e.patience == 0 {
		e.patience = DefaultPatience
	}

	switch {
	case !(e.initialStep > 0) || math.IsInf(e.initialStep, 0):
		return e, fmt.Errorf("initial step %v must be positive and finite: %w", e.initialStep, ErrInvalidParameter)
	case !(e.contract > 0 && e.contract < 1):
		return e, fmt.Errorf("contract %v must be in (0, 1): %w", e.contract, ErrInvalidParameter)
	case e.power < 1:
		return e, fmt.Errorf("power %d must be positive: %w", e.power, ErrInvalidParameter)
	case !(e.relTol >= 0) || !(e.absTol >= 0):
		return e, fmt.Errorf("tolerances must be non-negative: %w", ErrInvalidParameter)
	case !(e.breakTol > 0):
		return e, fmt.Errorf("break tolerance %v must be positive: %w", e.breakTol, ErrInvalidParameter)
	case e.maxEval < 2:
		return e, fmt.Errorf("max evaluations %d must be at least 2: %w", e.maxEval, ErrInvalidParameter)
	case e.patience < 1:
		return e, fmt.Errorf("patience %d must be positive: %w", e.patience, ErrInvalidParameter)
	}

	return
}

// Extrapolate evaluates the method at the steps h, c*h, c^2*h, ... and extrapolates the
// estimates to a zero step with Neville's algorithm, cancelling the leading error terms.
// It returns the best extrapolated value and an estimate of its absolute error.
//
// The sequence stops once the error estimate meets the tolerances, once it has not
// decreased for [ExtrapolationLiteral.Patience] rows, or once the step is too small to
// separate the sample points. The error estimate is never below the rounding error of the
// last evaluation of the method.
func Extrapolate[T constraints.Float](m *Method, f func(T) T, x T, lit ExtrapolationLiteral) (y T, errEstimate float64, err error) {
	ys, errEstimate, err := ExtrapolateVec(m, scalarToVec(f), x, lit)
	if err != nil {
		return
	}
	return ys[0], errEstimate, nil
}

// ExtrapolateVec is [Extrapolate] for vector-valued functions. Errors are measured in the
// Euclidean norm.
func ExtrapolateVec[T constraints.Float](m *Method, f func(T) []T, x T, lit ExtrapolationLiteral) (y []T, errEstimate float64, err error) {

	e, err := newExtrapolation[T](m, lit)
	if err != nil {
		return nil, 0, fmt.Errorf("cannot Extrapolate: %w", err)
	}

	eps := epsilon[T]()
	coefNorm := floats.Norm(m.stencil.coefs, 1)

	// estimate returns the method evaluated with step h and a bound on its rounding error
	estimate := func(h float64) ([]T, float64) {
		fs := sampleVec(m, f, x, T(h))
		scale := stepScale(T(h), m.derivative)
		var fMagnitude float64
		for _, fi := range fs {
			fMagnitude = nanMax(fMagnitude, utils.MaxAbs(fi))
		}
		return combine(m.stencil.coefs, fs, scale), eps * coefNorm * fMagnitude * math.Abs(float64(scale))
	}

	h := e.initialStep
	points := samplePoints(m, x, T(h))

	first, _ := estimate(h)

	// neville[j] is column j of the last row of the tableau, the error of column j+1 is
	// estimated against column j of the previous row
	neville := [][]T{first}

	y = first
	errEstimate = math.Inf(1)

	invContract := math.Pow(1/e.contract, float64(e.power))

	for eval, stale := 1, 0; eval < e.maxEval && stale < e.patience; eval++ {

		h *= e.contract

		// a step that no longer separates the sample points carries no information
		moved := samplePoints(m, x, T(h))
		if utils.EqualSlice(points, moved) || !utils.AllDistinct(moved) {
			break
		}
		points = moved

		current, roundoff := estimate(h)
		minErr := math.Inf(1)
		c := invContract

		stale++

		for j := range neville {
			previous := neville[j]
			neville[j] = current

			next := make([]T, len(current))
			for k := range next {
				next[k] = current[k] + (current[k]-previous[k])/T(c-1)
			}

			// two estimates can agree to the last bit long before they are exact
			errNext := math.Max(distance(next, previous), roundoff)
			if errNext < minErr {
				minErr = errNext
			}
			if errNext < errEstimate {
				y, errEstimate = next, errNext
				stale = 0
			}

			current = next
			c *= invContract
		}

		neville = append(neville, current)

		if math.IsInf(minErr, 0) || math.IsNaN(minErr) || minErr > e.breakTol*errEstimate {
			break
		}

		if errEstimate <= math.Max(e.relTol*norm(y), e.absTol) {
			break
		}
	}

	return
}

// samplePoints returns the arguments at which the method samples f with the given step.
func samplePoints[T constraints.Float](m *Method, x, step T) (points []T) {
	points = make([]T, len(m.grid))
	for i, g := range m.grid {
		points[i] = x + step*T(g)
	}
	return
}

func norm[T constraints.Float](a []T) float64 {
	var s float64
	for _, ai := range a {
		s += float64(ai) * float64(ai)
	}
	return math.Sqrt(s)
}

func distance[T constraints.Float](a, b []T) float64 {
	var s float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		s += d * d
	}
	return math.Sqrt(s)
}
