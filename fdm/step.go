package fdm

import (
	"math"
	"unsafe"

	"github.com/chewxy/math32"
	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/floats"

	"github.com/tuneinsight/finitediff/utils"
)

// maxDefaultStepRatio caps the step at this many default steps, which high-order methods
// or slowly varying functions would otherwise exceed.
const maxDefaultStepRatio = 1000

func isFloat32[T constraints.Float]() bool {
	var t T
	return unsafe.Sizeof(t) == 4
}

// epsilon returns the machine epsilon of T.
func epsilon[T constraints.Float]() float64 {
	if isFloat32[T]() {
		return float64(math32.Nextafter(1, 2) - 1)
	}
	return math.Nextafter(1, 2) - 1
}

// spacing returns the distance between |x| and the next larger value representable in T.
func spacing[T constraints.Float](x float64) float64 {
	if isFloat32[T]() {
		a := math32.Abs(float32(x))
		return float64(math32.Nextafter(a, math32.Inf(1)) - a)
	}
	a := math.Abs(x)
	return math.Nextafter(a, math.Inf(1)) - a
}

// stepAccuracy returns the step minimising the error bound
//
//	step^-q * C1 + step^(k-q) * C2
//
// where C1 bounds the rounding error, from the error on a function evaluation fError, and
// C2 is the leading truncation term, from the magnitude of the k-th derivative dfMagnitude.
func (m *Method) stepAccuracy(dfMagnitude, fError float64) Step {

	k := m.stencil.truncationOrder
	q := m.derivative

	c1 := fError * m.factor * floats.Norm(m.stencil.coefs, 1)

	// the zeroth derivative is the function itself, sampled at x
	if q == 0 {
		return Step{Step: 0, Accuracy: c1}
	}

	c2 := dfMagnitude * m.stencil.truncationMoment

	step := math.Pow(float64(q)/float64(k-q)*(c1/c2), 1/float64(k))
	accuracy := math.Pow(step, -float64(q))*c1 + math.Pow(step, float64(k-q))*c2

	return Step{Step: step, Accuracy: accuracy}
}

// defaultStep assumes the derivatives of the function are of magnitude m.condition and
// that function values are accurate to the machine epsilon of T.
func defaultStep[T constraints.Float](m *Method) Step {
	return m.stepAccuracy(m.condition, epsilon[T]())
}

// limitStep clips the step to the max range of the method and to a multiple of the
// default step. A clipped step no longer carries a valid accuracy. NaN steps are clipped.
func limitStep[T constraints.Float](m *Method, s Step) Step {

	if r := m.grid.MaxAbs(); r > 0 {
		if stepMax := m.maxRange / float64(r); !(s.Step <= stepMax) {
			s = Step{Step: stepMax, Accuracy: math.NaN()}
		}
	}

	if stepMax := maxDefaultStepRatio * defaultStep[T](m).Step; !(s.Step <= stepMax) {
		s = Step{Step: stepMax, Accuracy: math.NaN()}
	}

	return s
}

// EstimateStep returns the step size of the method for f at x, together with an
// estimate of the resulting absolute error.
//
// Unadapted methods use a default step assuming derivatives of magnitude [Method.Condition].
// Adapted methods first evaluate their bound estimator around x to estimate the magnitude
// of f near x and of the derivative that drives the truncation error.
func EstimateStep[T constraints.Float](m *Method, f func(T) T, x T) Step {
	return EstimateStepVec(m, scalarToVec(f), x)
}

// EstimateStepVec is [EstimateStep] for vector-valued functions. Magnitudes are taken
// over all the components of f.
func EstimateStepVec[T constraints.Float](m *Method, f func(T) []T, x T) Step {
	s, _ := estimateStep(m, f, x, nil)
	return s
}

// estimateStep returns the step of m for f at x and the step of the bound estimator it was
// derived from. A non-nil seed is used as the step of the bound estimator instead of
// searching for it.
func estimateStep[T constraints.Float](m *Method, f func(T) []T, x T, seed *Step) (s, bound Step) {

	if m.bound == nil {
		return limitStep[T](m, defaultStep[T](m)), Step{}
	}

	if seed != nil {
		bound = *seed
	} else {
		bound = EstimateStepVec(m.bound, f, x)
	}

	dfMagnitude, fMagnitude := estimateMagnitudes(m.bound, f, x, T(bound.Step))

	if dfMagnitude == 0 || fMagnitude == 0 {
		s = defaultStep[T](m)
	} else {
		s = m.stepAccuracy(dfMagnitude, spacing[T](fMagnitude))
	}

	return limitStep[T](m, s), bound
}

// estimateMagnitudes samples f with the method m and the given step around x and returns
// the largest magnitude of the derivative estimated by the neighbouring stencils of m and
// the largest magnitude of f on the samples at most one step away from x. NaN samples
// propagate.
func estimateMagnitudes[T constraints.Float](m *Method, f func(T) []T, x, step T) (dfMagnitude, fMagnitude float64) {

	fs := sampleVec(m, f, x, step)

	scale := stepScale(step, m.derivative)

	for _, coefs := range m.stencil.neighbourhood {
		dfMagnitude = nanMax(dfMagnitude, utils.MaxAbs(combine(coefs, fs, scale)))
	}

	// far samples of the bound estimator overstate the rounding error of the method
	for i, g := range m.grid {
		if utils.AbsInt(g) <= 1 {
			fMagnitude = nanMax(fMagnitude, utils.MaxAbs(fs[i]))
		}
	}

	return
}

func nanMax(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return math.Max(a, b)
}
