// Package fdm implements finite-difference methods: the construction of forward, backward,
// central and custom stencils for arbitrary derivative and accuracy orders, an adaptive
// step-size search balancing truncation against rounding error, and Richardson
// extrapolation.
package fdm

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/tuneinsight/finitediff/utils"
)

const (
	// DefaultAdapt is the number of adaptation rounds used when [MethodLiteral.Adapt] is unset.
	DefaultAdapt = 1
	// DefaultCondition is the assumed magnitude of the derivatives of the function when
	// no estimate is available.
	DefaultCondition = 10.0
	// DefaultFactor scales the assumed rounding error of function evaluations.
	DefaultFactor = 1.0
)

// MethodLiteral is a literal representation of a finite-difference method.
// Unset optional fields take their default value.
type MethodLiteral struct {
	Kind Kind
	// Accuracy is the order of accuracy of the method. The grid has Accuracy+Derivative points.
	// For Custom grids it is implied by the grid and can be left unset.
	Accuracy int `json:",omitempty"`
	// Derivative is the order of the derivative.
	Derivative int `json:",omitempty"`
	// Grid is the sample offsets of a Custom method.
	Grid []int `json:",omitempty"`
	// Adapt is the number of rounds of the adaptive step-size search (default 1, 0 for Custom).
	Adapt *int `json:",omitempty"`
	// MaxRange bounds the distance between x and any sample point (default +Inf).
	MaxRange *float64 `json:",omitempty"`
	// Condition is the assumed derivative magnitude of the default step (default 10).
	Condition float64 `json:",omitempty"`
	// Factor scales the rounding error estimate of function evaluations (default 1).
	Factor float64 `json:",omitempty"`
}

// Option configures the construction of a method.
type Option func(*MethodLiteral)

// WithAdapt sets the number of adaptation rounds of the step-size search.
func WithAdapt(adapt int) Option {
	return func(lit *MethodLiteral) { lit.Adapt = utils.PointyInt(adapt) }
}

// WithMaxRange bounds the distance between the evaluation point and the sample points.
func WithMaxRange(maxRange float64) Option {
	return func(lit *MethodLiteral) { lit.MaxRange = utils.PointyFloat64(maxRange) }
}

// WithCondition sets the assumed derivative magnitude used by the default step.
func WithCondition(condition float64) Option {
	return func(lit *MethodLiteral) { lit.Condition = condition }
}

// WithFactor scales the rounding error estimate of function evaluations.
func WithFactor(factor float64) Option {
	return func(lit *MethodLiteral) { lit.Factor = factor }
}

// Method is a finite-difference method. Its grid, coefficients and orders are immutable;
// the only mutable part is the step cache, which is safe for concurrent use.
type Method struct {
	kind       Kind
	grid       Grid
	stencil    *stencil
	accuracy   int
	derivative int
	symmetric  bool
	condition  float64
	factor     float64
	maxRange   float64

	// bound estimates the magnitude of the derivative appearing in the truncation error.
	// It is nil for methods that are not adapted.
	bound *Method

	cache *StepCache
}

// NewForward returns a forward method of the given accuracy and derivative order.
func NewForward(accuracy, derivative int, opts ...Option) (*Method, error) {
	return newMethod(Forward, accuracy, derivative, opts)
}

// NewBackward returns a backward method of the given accuracy and derivative order.
func NewBackward(accuracy, derivative int, opts ...Option) (*Method, error) {
	return newMethod(Backward, accuracy, derivative, opts)
}

// NewCentral returns a central method of the given accuracy and derivative order.
func NewCentral(accuracy, derivative int, opts ...Option) (*Method, error) {
	return newMethod(Central, accuracy, derivative, opts)
}

// NewMethodFromGrid returns an unadapted method sampling the function on the given grid.
func NewMethodFromGrid(grid []int, derivative int, opts ...Option) (*Method, error) {
	lit := MethodLiteral{Kind: Custom, Derivative: derivative, Grid: grid}
	for _, opt := range opts {
		opt(&lit)
	}
	return NewMethodFromLiteral(lit)
}

func newMethod(kind Kind, accuracy, derivative int, opts []Option) (*Method, error) {
	lit := MethodLiteral{Kind: kind, Accuracy: accuracy, Derivative: derivative}
	for _, opt := range opts {
		opt(&lit)
	}
	return NewMethodFromLiteral(lit)
}

// NewMethodFromLiteral instantiates a method from a [MethodLiteral].
// All validation happens here: an invalid literal never yields a method.
func NewMethodFromLiteral(lit MethodLiteral) (m *Method, err error) {

	adapt := DefaultAdapt
	if lit.Kind == Custom {
		adapt = 0
	}
	if lit.Adapt != nil {
		adapt = *lit.Adapt
	}

	maxRange := math.Inf(1)
	if lit.MaxRange != nil {
		maxRange = *lit.MaxRange
	}

	condition := lit.Condition
	if condition == 0 {
		condition = DefaultCondition
	}

	factor := lit.Factor
	if factor == 0 {
		factor = DefaultFactor
	}

	switch {
	case lit.Derivative < 0:
		return nil, fmt.Errorf("cannot NewMethod: derivative=%d: %w", lit.Derivative, ErrInvalidDerivative)
	case adapt < 0:
		return nil, fmt.Errorf("cannot NewMethod: adapt=%d: %w", adapt, ErrInvalidAdapt)
	case math.IsNaN(maxRange) || maxRange < 0:
		return nil, fmt.Errorf("cannot NewMethod: max range %v: %w", maxRange, ErrInvalidParameter)
	case !(condition > 0) || math.IsInf(condition, 0):
		return nil, fmt.Errorf("cannot NewMethod: condition %v: %w", condition, ErrInvalidParameter)
	case !(factor > 0) || math.IsInf(factor, 0):
		return nil, fmt.Errorf("cannot NewMethod: factor %v: %w", factor, ErrInvalidParameter)
	}

	var grid Grid
	accuracy := lit.Accuracy

	switch lit.Kind {
	case Forward, Backward, Central:

		if lit.Grid != nil {
			return nil, fmt.Errorf("cannot NewMethod: a grid can only be given to a custom method: %w", ErrInvalidParameter)
		}

		if accuracy < 1 {
			return nil, fmt.Errorf("cannot NewMethod: accuracy=%d: %w", accuracy, ErrInvalidAccuracy)
		}

		grid = NewGrid(lit.Kind, accuracy+lit.Derivative)

	case Custom:

		if adapt != 0 {
			return nil, fmt.Errorf("cannot NewMethod: custom grids cannot be adapted (adapt=%d): %w", adapt, ErrInvalidAdapt)
		}

		grid = Grid(lit.Grid).Clone()

		if len(grid)-lit.Derivative < 1 {
			return nil, fmt.Errorf("cannot NewMethod: %d points cannot resolve derivative %d: %w", len(grid), lit.Derivative, ErrInvalidAccuracy)
		}

		if accuracy != 0 && accuracy != len(grid)-lit.Derivative {
			return nil, fmt.Errorf("cannot NewMethod: accuracy=%d does not match a %d-point grid for derivative %d: %w", accuracy, len(grid), lit.Derivative, ErrInvalidAccuracy)
		}

		accuracy = len(grid) - lit.Derivative

	default:
		return nil, fmt.Errorf("cannot NewMethod: %w: invalid kind %d", ErrInvalidParameter, int(lit.Kind))
	}

	st, err := getStencil(grid, lit.Derivative)
	if err != nil {
		return nil, fmt.Errorf("cannot NewMethod: %w", err)
	}

	m = &Method{
		kind:       lit.Kind,
		grid:       grid,
		stencil:    st,
		accuracy:   accuracy,
		derivative: lit.Derivative,
		symmetric:  lit.Kind == Central || (lit.Kind == Custom && grid.IsSymmetric()),
		condition:  condition,
		factor:     factor,
		maxRange:   maxRange,
		cache:      new(StepCache),
	}

	if adapt > 0 {
		// the truncation error is driven by the derivative of the truncation order, estimated
		// with a second-order method of the same kind
		if m.bound, err = NewMethodFromLiteral(MethodLiteral{
			Kind:       lit.Kind,
			Accuracy:   2,
			Derivative: st.truncationOrder,
			Adapt:      utils.PointyInt(adapt - 1),
			MaxRange:   utils.PointyFloat64(maxRange),
			Condition:  condition,
			Factor:     factor,
		}); err != nil {
			return nil, fmt.Errorf("cannot NewMethod: bound estimator: %w", err)
		}
	}

	return
}

// Kind returns the variant of the method.
func (m *Method) Kind() Kind {
	return m.kind
}

// Grid returns a copy of the sample offsets of the method.
func (m *Method) Grid() Grid {
	return m.grid.Clone()
}

// Coefficients returns a copy of the weights of the method.
func (m *Method) Coefficients() []float64 {
	c := make([]float64, len(m.stencil.coefs))
	copy(c, m.stencil.coefs)
	return c
}

// Accuracy returns the order of accuracy of the method.
func (m *Method) Accuracy() int {
	return m.accuracy
}

// Derivative returns the order of the derivative computed by the method.
func (m *Method) Derivative() int {
	return m.derivative
}

// Points returns the number of sample points of the method.
func (m *Method) Points() int {
	return len(m.grid)
}

// Adapt returns the number of adaptation rounds of the step-size search.
func (m *Method) Adapt() (adapt int) {
	for b := m.bound; b != nil; b = b.bound {
		adapt++
	}
	return
}

// MaxRange returns the largest allowed distance between the evaluation point and a sample point.
func (m *Method) MaxRange() float64 {
	return m.maxRange
}

// Condition returns the assumed derivative magnitude of the default step.
func (m *Method) Condition() float64 {
	return m.condition
}

// Factor returns the scaling of the rounding error estimate.
func (m *Method) Factor() float64 {
	return m.factor
}

// IsSymmetric returns true if the grid of the method is symmetric around 0. Forward and
// backward methods are never symmetric, including their single-point grid {0}.
func (m *Method) IsSymmetric() bool {
	return m.symmetric
}

// ExtrapolationPower returns the power of the step in which the error of the method expands:
// 2 for symmetric grids, whose odd error terms cancel, and 1 otherwise.
func (m *Method) ExtrapolationPower() int {
	if m.symmetric {
		return 2
	}
	return 1
}

// BoundEstimator returns the method used to bound the truncation error, or nil.
func (m *Method) BoundEstimator() *Method {
	return m.bound
}

// Cache returns the step cache of the method.
func (m *Method) Cache() *StepCache {
	return m.cache
}

// MethodLiteral returns the [MethodLiteral] of the method.
func (m *Method) MethodLiteral() (lit MethodLiteral) {
	lit = MethodLiteral{
		Kind:       m.kind,
		Accuracy:   m.accuracy,
		Derivative: m.derivative,
		Adapt:      utils.PointyInt(m.Adapt()),
		Condition:  m.condition,
		Factor:     m.factor,
	}
	if m.kind == Custom {
		lit.Grid = m.grid.Clone()
	}
	// +Inf has no JSON representation and is the default anyway
	if !math.IsInf(m.maxRange, 1) {
		lit.MaxRange = utils.PointyFloat64(m.maxRange)
	}
	return
}

// Equal returns true if the two methods have the same configuration.
func (m *Method) Equal(other *Method) bool {
	return cmp.Equal(m.MethodLiteral(), other.MethodLiteral())
}

// MarshalJSON returns a JSON representation of the method. See Marshal from the [encoding/json] package.
func (m *Method) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.MethodLiteral())
}

// UnmarshalJSON reads a JSON representation of a method into the receiver. See Unmarshal from the [encoding/json] package.
func (m *Method) UnmarshalJSON(data []byte) (err error) {
	var lit MethodLiteral
	if err = json.Unmarshal(data, &lit); err != nil {
		return err
	}
	var mNew *Method
	if mNew, err = NewMethodFromLiteral(lit); err != nil {
		return err
	}
	*m = *mNew
	return
}

// String renders the orders, grid and coefficients of the method, one per line.
func (m *Method) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "FiniteDifferenceMethod:\n")
	fmt.Fprintf(&sb, "  kind:                  %s\n", m.kind)
	fmt.Fprintf(&sb, "  order of accuracy:     %d\n", m.accuracy)
	fmt.Fprintf(&sb, "  order of derivative:   %d\n", m.derivative)
	fmt.Fprintf(&sb, "  grid:                  %v\n", []int(m.grid))
	fmt.Fprintf(&sb, "  coefficients:          %v\n", m.stencil.coefs)
	return sb.String()
}
