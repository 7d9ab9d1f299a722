// Package grad computes Jacobians, Jacobian-vector products, vector-Jacobian products and
// gradients of functions over arbitrary numeric structures with finite differences.
//
// Inputs and outputs are flattened with the tovec package: row i of a Jacobian is the
// i-th entry of the flattened output, column j the j-th entry of the flattened input.
// Every entry is computed with [fdm.EvaluateVec] in float64.
package grad

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/tuneinsight/finitediff/fdm"
	"github.com/tuneinsight/finitediff/tovec"
)

// ErrDimension is returned when a tangent or cotangent does not match the flattened
// input or output of the function.
var ErrDimension = errors.New("dimension mismatch")

// Jacobian returns the Jacobian of f at x, of dimension len(y) x len(x) where x and y
// are the flattened input and output of f. The matrix is empty if either is empty.
func Jacobian[X, Y any](m *fdm.Method, f func(X) Y, x X) (*mat.Dense, error) {
	jac, _, _, err := jacobian(m, wrap(f), x)
	if err != nil {
		return nil, fmt.Errorf("cannot Jacobian: %w", err)
	}
	return jac, nil
}

// Jacobians returns one Jacobian block per argument of f, the other arguments being held fixed.
func Jacobians(m *fdm.Method, f func(...any) any, xs ...any) (jacs []*mat.Dense, err error) {

	jacs = make([]*mat.Dense, len(xs))

	for i := range xs {

		fi := func(x any) (any, error) {
			args := make([]any, len(xs))
			copy(args, xs)
			args[i] = x
			return f(args...), nil
		}

		if jacs[i], _, _, err = jacobian(m, fi, xs[i]); err != nil {
			return nil, fmt.Errorf("cannot Jacobians: argument %d: %w", i, err)
		}
	}

	return
}

// JVP returns the derivative of f at x in the direction dx, the product of the Jacobian
// with dx, with a single derivative evaluation along dx.
func JVP[X, Y any](m *fdm.Method, f func(X) Y, x, dx X) (dy Y, err error) {

	xv, xShape, err := tovec.ToVec(x)
	if err != nil {
		return dy, fmt.Errorf("cannot JVP: %w", err)
	}

	dxv, _, err := tovec.ToVec(dx)
	if err != nil {
		return dy, fmt.Errorf("cannot JVP: %w", err)
	}

	if len(dxv) != len(xv) {
		return dy, fmt.Errorf("cannot JVP: tangent of length %d for an input of length %d: %w", len(dxv), len(xv), ErrDimension)
	}

	_, yShape, err := tovec.ToVec(f(x))
	if err != nil {
		return dy, fmt.Errorf("cannot JVP: %w", err)
	}

	xp := make([]float64, len(xv))

	s := newSampler(wrap(f), xShape, yShape.Len())

	dyv := fdm.EvaluateVec(m, func(e float64) []float64 {
		for i := range xp {
			xp[i] = xv[i] + e*dxv[i]
		}
		return s.sample(xp)
	}, 0)

	if s.err != nil {
		return dy, fmt.Errorf("cannot JVP: %w", s.err)
	}

	if dy, err = tovec.Reconstruct[Y](yShape, dyv); err != nil {
		return dy, fmt.Errorf("cannot JVP: %w", err)
	}

	return
}

// VJP returns the product of the transposed Jacobian of f at x with ybar, shaped as x.
func VJP[X, Y any](m *fdm.Method, f func(X) Y, ybar Y, x X) (xbar X, err error) {

	jac, xShape, rows, err := jacobian(m, wrap(f), x)
	if err != nil {
		return xbar, fmt.Errorf("cannot VJP: %w", err)
	}

	ybarv, _, err := tovec.ToVec(ybar)
	if err != nil {
		return xbar, fmt.Errorf("cannot VJP: %w", err)
	}

	if len(ybarv) != rows {
		return xbar, fmt.Errorf("cannot VJP: cotangent of length %d for an output of length %d: %w", len(ybarv), rows, ErrDimension)
	}

	xbarv := make([]float64, xShape.Len())

	if !jac.IsEmpty() {
		mat.NewVecDense(len(xbarv), xbarv).MulVec(jac.T(), mat.NewVecDense(rows, ybarv))
	}

	if xbar, err = tovec.Reconstruct[X](xShape, xbarv); err != nil {
		return xbar, fmt.Errorf("cannot VJP: %w", err)
	}

	return
}

// Grad returns the gradient of the scalar function f at x, shaped as x.
func Grad[X any](m *fdm.Method, f func(X) float64, x X) (X, error) {
	return VJP(m, f, 1.0, x)
}

func wrap[X, Y any](f func(X) Y) func(any) (any, error) {
	return func(x any) (any, error) {
		xt, ok := x.(X)
		if !ok {
			var want X
			return nil, fmt.Errorf("argument of type %T instead of %T: %w", x, want, tovec.ErrUnsupported)
		}
		return f(xt), nil
	}
}

// jacobian perturbs one entry of the flattened input at a time and differentiates the
// flattened output with respect to it.
func jacobian(m *fdm.Method, f func(any) (any, error), x any) (jac *mat.Dense, xShape tovec.Shape, rows int, err error) {

	xv, xShape, err := tovec.ToVec(x)
	if err != nil {
		return
	}

	y, err := f(x)
	if err != nil {
		return
	}

	yv, _, err := tovec.ToVec(y)
	if err != nil {
		return
	}

	rows = len(yv)
	cols := len(xv)

	if rows == 0 || cols == 0 {
		return new(mat.Dense), xShape, rows, nil
	}

	jac = mat.NewDense(rows, cols, nil)

	xp := make([]float64, cols)

	s := newSampler(f, xShape, rows)

	for j := range xv {

		col := fdm.EvaluateVec(m, func(e float64) []float64 {
			copy(xp, xv)
			xp[j] += e
			return s.sample(xp)
		}, 0)

		if s.err != nil {
			return nil, xShape, rows, s.err
		}

		jac.SetCol(j, col)
	}

	return
}

// sampler evaluates f on flattened inputs. The first error is recorded and all later
// samples are zero, so that the derivative evaluation runs to completion.
type sampler struct {
	f      func(any) (any, error)
	xShape tovec.Shape
	length int
	err    error
}

func newSampler(f func(any) (any, error), xShape tovec.Shape, length int) *sampler {
	return &sampler{f: f, xShape: xShape, length: length}
}

func (s *sampler) sample(xv []float64) []float64 {

	if s.err == nil {
		var yv []float64
		if yv, s.err = s.eval(xv); s.err == nil {
			return yv
		}
	}

	return make([]float64, s.length)
}

func (s *sampler) eval(xv []float64) (yv []float64, err error) {

	x, err := s.xShape.Reconstruct(xv)
	if err != nil {
		return
	}

	y, err := s.f(x)
	if err != nil {
		return
	}

	if yv, _, err = tovec.ToVec(y); err != nil {
		return
	}

	if len(yv) != s.length {
		return nil, fmt.Errorf("output of length %d instead of %d: %w", len(yv), s.length, ErrDimension)
	}

	return
}
