package fdm

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// Evaluate returns the derivative of f at x estimated by the method, with the step
// returned by [EstimateStep]. The step is recorded in the cache of the method.
//
// If no valid step exists, for instance when the max range of the method is 0, the
// result is not finite.
func Evaluate[T constraints.Float](m *Method, f func(T) T, x T) T {
	s, bound := estimateStep(m, scalarToVec(f), x, nil)
	m.cache.store(float64(x), s, bound)
	return EvaluateStep(m, f, x, T(s.Step))
}

// EvaluateCached is [Evaluate] for repeated derivatives of the same function. It reuses
// the cached step if it was estimated at x. If it was estimated less than one step of the
// bound estimator away from x, the cached step of the bound estimator replaces the
// recursive search for it, which saves the evaluations of the deeper bound estimators.
func EvaluateCached[T constraints.Float](m *Method, f func(T) T, x T) T {

	cx, s, bound, ok := m.cache.load()

	switch {
	case ok && cx == float64(x):
		return EvaluateStep(m, f, x, T(s.Step))
	case ok && m.bound != nil && bound.Step > 0 && math.Abs(float64(x)-cx) <= bound.Step:
		s, bound = estimateStep(m, scalarToVec(f), x, &bound)
		m.cache.store(float64(x), s, bound)
		return EvaluateStep(m, f, x, T(s.Step))
	}

	return Evaluate(m, f, x)
}

// EvaluateStep returns step^-d * sum_i c[i] * f(x + step*grid[i]).
// This method does not allocate.
func EvaluateStep[T constraints.Float](m *Method, f func(T) T, x, step T) (y T) {
	coefs := m.stencil.coefs
	for i, g := range m.grid {
		y += T(coefs[i]) * f(x+step*T(g))
	}
	return y * stepScale(step, m.derivative)
}

// EvaluateVec is [Evaluate] for vector-valued functions.
func EvaluateVec[T constraints.Float](m *Method, f func(T) []T, x T) []T {
	s, bound := estimateStep(m, f, x, nil)
	m.cache.store(float64(x), s, bound)
	return EvaluateVecStep(m, f, x, T(s.Step))
}

// EvaluateVecStep is [EvaluateStep] for vector-valued functions.
func EvaluateVecStep[T constraints.Float](m *Method, f func(T) []T, x, step T) []T {
	return combine(m.stencil.coefs, sampleVec(m, f, x, step), stepScale(step, m.derivative))
}

// Promote returns f with its integer outputs converted to T, so that functions returning
// integers, such as constants, can be differentiated.
func Promote[T constraints.Float, I constraints.Integer](f func(T) I) func(T) T {
	return func(x T) T {
		return T(f(x))
	}
}

// stepScale returns step^-q. A zero step yields +Inf.
func stepScale[T constraints.Float](step T, q int) (s T) {
	inv := 1 / step
	s = 1
	for i := 0; i < q; i++ {
		s *= inv
	}
	return
}

func scalarToVec[T constraints.Float](f func(T) T) func(T) []T {
	return func(x T) []T {
		return []T{f(x)}
	}
}

// sampleVec evaluates f on the grid of m around x.
func sampleVec[T constraints.Float](m *Method, f func(T) []T, x, step T) (fs [][]T) {
	fs = make([][]T, len(m.grid))
	for i, g := range m.grid {
		y := f(x + step*T(g))
		if i > 0 && len(y) != len(fs[0]) {
			panic(fmt.Errorf("cannot sample: output length changed from %d to %d", len(fs[0]), len(y)))
		}
		// the function may reuse its output buffer
		fs[i] = append([]T(nil), y...)
	}
	return
}

// combine returns scale * sum_i coefs[i] * fs[i].
func combine[T constraints.Float](coefs []float64, fs [][]T, scale T) (y []T) {
	if len(fs) == 0 {
		return nil
	}
	y = make([]T, len(fs[0]))
	for i, fi := range fs {
		c := T(coefs[i])
		for j := range y {
			y[j] += c * fi[j]
		}
	}
	for j := range y {
		y[j] *= scale
	}
	return
}
