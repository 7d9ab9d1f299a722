package fdm

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuneinsight/finitediff/utils"
)

func TestExtrapolate(t *testing.T) {

	for _, c := range testConstructors {
		t.Run(fmt.Sprintf("Kind=%s/Points=4/Derivative=3", c.kind), func(t *testing.T) {
			m, err := c.new(1, 3)
			require.NoError(t, err)

			y, errEstimate, err := Extrapolate(m, math.Exp, 1.0, ExtrapolationLiteral{Contract: 0.8})
			require.NoError(t, err)
			require.InDelta(t, math.Exp(1), y, 1e-7)
			require.True(t, isFinite(errEstimate))
			require.GreaterOrEqual(t, errEstimate, 0.0)
		})
	}

	t.Run("Vector", func(t *testing.T) {
		m, err := NewCentral(2, 1)
		require.NoError(t, err)

		f := func(x float64) []float64 {
			return []float64{math.Sin(x), math.Cos(x)}
		}

		y, errEstimate, err := ExtrapolateVec(m, f, 0.5, ExtrapolationLiteral{InitialStep: 0.5, Contract: 0.5})
		require.NoError(t, err)
		require.InDelta(t, math.Cos(0.5), y[0], 1e-7)
		require.InDelta(t, -math.Sin(0.5), y[1], 1e-7)
		require.Less(t, errEstimate, 1e-6)
	})

	t.Run("Float32", func(t *testing.T) {
		m, err := NewCentral(2, 1)
		require.NoError(t, err)

		y, _, err := Extrapolate(m, func(x float32) float32 { return x * x * x }, 2, ExtrapolationLiteral{InitialStep: 1})
		require.NoError(t, err)
		require.InDelta(t, 12, float64(y), 1e-3)
	})

	t.Run("MaxEval", func(t *testing.T) {
		m, err := NewForward(1, 1)
		require.NoError(t, err)

		var n int
		f := func(x float64) float64 {
			n++
			return math.Exp(x)
		}

		_, _, err = Extrapolate(m, f, 0, ExtrapolationLiteral{
			InitialStep: 1,
			RelTol:      utils.PointyFloat64(0),
			MaxEval:     5,
		})
		require.NoError(t, err)
		require.LessOrEqual(t, n, 5*m.Points())
	})

	t.Run("BreakTol", func(t *testing.T) {
		m, err := NewCentral(2, 1)
		require.NoError(t, err)

		// rounding errors dominate once the step is tiny, the tableau stops improving
		y, _, err := Extrapolate(m, math.Sin, 1, ExtrapolationLiteral{
			InitialStep: 1e-3,
			Contract:    0.1,
			RelTol:      utils.PointyFloat64(0),
			BreakTol:    1e3,
		})
		require.NoError(t, err)
		require.InDelta(t, math.Cos(1), y, 1e-6)
	})

	t.Run("Noise", func(t *testing.T) {
		m, err := NewCentral(2, 1)
		require.NoError(t, err)

		var n int
		f := func(x float64) float64 {
			n++
			return math.Sin(x) + 1e-7*math.Sin(1e9*x)
		}

		// the error estimate bottoms out once the noise dominates and the sequence stops
		y, errEstimate, err := Extrapolate(m, f, 1, ExtrapolationLiteral{})
		require.NoError(t, err)
		require.InDelta(t, math.Cos(1), y, 1e-5)
		require.Greater(t, errEstimate, 0.0)
		require.True(t, isFinite(errEstimate))
		require.LessOrEqual(t, n, 50*m.Points())
	})

	t.Run("Patience", func(t *testing.T) {
		m, err := NewForward(1, 1)
		require.NoError(t, err)

		var n int
		f := func(x float64) float64 {
			n++
			return math.Sin(x)
		}

		// without tolerance only the lack of improvement ends the sequence
		y, errEstimate, err := Extrapolate(m, f, 1, ExtrapolationLiteral{RelTol: utils.PointyFloat64(0)})
		require.NoError(t, err)
		require.InDelta(t, math.Cos(1), y, 1e-9)
		require.Greater(t, errEstimate, 0.0)
		require.Less(t, n, 100*m.Points())

		n = 0
		_, _, err = Extrapolate(m, f, 1, ExtrapolationLiteral{RelTol: utils.PointyFloat64(0), Patience: 1})
		require.NoError(t, err)
		require.Less(t, n, 100*m.Points())
	})

	t.Run("StepUnderflow", func(t *testing.T) {
		m, err := NewCentral(2, 1)
		require.NoError(t, err)

		var n int
		f := func(x float64) float64 {
			n++
			return math.Sin(x)
		}

		// 1 + 1e-14 * 2^-7 rounds to 1 after a few halvings
		y, errEstimate, err := Extrapolate(m, f, 1, ExtrapolationLiteral{
			InitialStep: 1e-14,
			Contract:    0.5,
			RelTol:      utils.PointyFloat64(0),
			Patience:    DefaultMaxEval,
		})
		require.NoError(t, err)
		require.Greater(t, errEstimate, 0.0)
		require.LessOrEqual(t, math.Abs(y-math.Cos(1)), errEstimate)
		require.LessOrEqual(t, n, 10*m.Points())
	})

	t.Run("Constant", func(t *testing.T) {
		m, err := NewCentral(2, 1)
		require.NoError(t, err)
		y, errEstimate, err := Extrapolate(m, func(x float64) float64 { return 5 }, 1, ExtrapolationLiteral{})
		require.NoError(t, err)
		require.Equal(t, 0.0, y)
		require.Greater(t, errEstimate, 0.0)
		require.Less(t, errEstimate, 1e-15)
	})

	t.Run("Errors", func(t *testing.T) {
		m, err := NewCentral(2, 1)
		require.NoError(t, err)

		for _, lit := range []ExtrapolationLiteral{
			{InitialStep: -1},
			{InitialStep: math.Inf(1)},
			{Contract: 1},
			{Contract: -0.5},
			{Power: -1},
			{RelTol: utils.PointyFloat64(-1)},
			{AbsTol: math.NaN()},
			{BreakTol: -1},
			{MaxEval: 1},
			{Patience: -1},
		} {
			_, _, err := Extrapolate(m, math.Sin, 1, lit)
			require.ErrorIs(t, err, ErrInvalidParameter, "%+v", lit)
		}
	})
}
