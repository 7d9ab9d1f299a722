package fdm

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/tuneinsight/finitediff/utils"
	"github.com/tuneinsight/finitediff/utils/bignum"
)

// stencil is the set of coefficients attached to a grid and a derivative order.
type stencil struct {
	coefs         []float64
	neighbourhood [3][]float64

	// truncationOrder is the order k of the leading term of the truncation error,
	// truncationMoment * h^(k-derivative) * f^(k)(x).
	truncationOrder  int
	truncationMoment float64
}

// stencilCache memoises stencils across methods, keyed by the digest of (grid, derivative).
// Adapted methods build the same bound estimators over and over, so most lookups hit.
var stencilCache = struct {
	sync.RWMutex
	m map[[32]byte]*stencil
}{m: map[[32]byte]*stencil{}}

func stencilKey(grid Grid, derivative int) [32]byte {
	buf := make([]byte, 8*(len(grid)+1))
	binary.LittleEndian.PutUint64(buf, uint64(int64(derivative)))
	for i, g := range grid {
		binary.LittleEndian.PutUint64(buf[8*(i+1):], uint64(int64(g)))
	}
	return blake3.Sum256(buf)
}

// getStencil returns the coefficients of the grid for the derivative order, as well as
// the coefficients of the three neighbouring stencils used by the step-size search.
func getStencil(grid Grid, derivative int) (st *stencil, err error) {

	key := stencilKey(grid, derivative)

	stencilCache.RLock()
	st, ok := stencilCache.m[key]
	stencilCache.RUnlock()

	if ok {
		return
	}

	st = new(stencil)

	coefs, err := solveCoefficients(grid, derivative)
	if err != nil {
		return nil, err
	}

	st.coefs = roundCoefficients(coefs)
	st.truncationOrder, st.truncationMoment = truncationTerm(grid, coefs)

	for i, shift := range grid.neighbourhoodShifts() {
		if shift == 0 {
			st.neighbourhood[i] = st.coefs
			continue
		}
		if st.neighbourhood[i], err = Coefficients(utils.ShiftSlice(grid, shift), derivative); err != nil {
			return nil, err
		}
	}

	stencilCache.Lock()
	stencilCache.m[key] = st
	stencilCache.Unlock()

	return
}

// Coefficients returns the weights c such that sum_i c[i] * f(x + h*grid[i]) / h^derivative
// approximates the derivative of f at x. The weights are the solution of the system
//
//	sum_j c[j] * grid[j]^i / i! = [i == derivative],  i = 0, ..., len(grid)-1,
//
// which is solved with bignum.DefaultPrecision bits of precision and rounded to float64.
func Coefficients(grid Grid, derivative int) (coefs []float64, err error) {
	vector, err := solveCoefficients(grid, derivative)
	if err != nil {
		return nil, err
	}
	return roundCoefficients(vector), nil
}

// solveCoefficients returns the weights of the grid for the derivative order with
// bignum.DefaultPrecision bits of precision.
func solveCoefficients(grid Grid, derivative int) (vector []*big.Float, err error) {

	n := len(grid)

	if derivative < 0 {
		return nil, fmt.Errorf("cannot Coefficients: %w", ErrInvalidDerivative)
	}

	if n <= derivative {
		return nil, fmt.Errorf("cannot Coefficients: %d points cannot resolve derivative %d: %w", n, derivative, ErrInvalidAccuracy)
	}

	if !utils.AllDistinct(grid) {
		return nil, fmt.Errorf("cannot Coefficients: grid %v: %w", []int(grid), ErrDuplicateOffset)
	}

	prec := bignum.DefaultPrecision

	// factorial scaling keeps the Vandermonde rows of comparable magnitude
	matrix := bignum.NewMatrix(n, n, prec)
	for i := range matrix {
		factorial := bignum.NewFloat(bignum.Factorial(i), prec)
		for j, g := range grid {
			matrix[i][j].Quo(bignum.IntPow(g, i, prec), factorial)
		}
	}

	vector = make([]*big.Float, n)
	for i := range vector {
		vector[i] = bignum.NewFloat(0, prec)
	}
	vector[derivative].SetInt64(1)

	if err = bignum.SolveLinearSystem(matrix, vector); err != nil {
		return nil, fmt.Errorf("cannot Coefficients: %w: %w", ErrSingularSystem, err)
	}

	return
}

func roundCoefficients(vector []*big.Float) (coefs []float64) {
	coefs = make([]float64, len(vector))
	for i := range coefs {
		coefs[i], _ = vector[i].Float64()
		if coefs[i] == 0 {
			coefs[i] = 0 // drops the sign of -0
		}
	}
	return
}

// truncationTerm returns the order k and the magnitude |sum_i c[i] * grid[i]^k| / k! of the
// leading term of the truncation error of the weights c. The moments of order below
// len(grid) are fixed by the linear system. Symmetric grids cancel every other moment
// above, so the leading term is of order len(grid) or len(grid)+1. If both vanish, the
// absolute moment sum_i |c[i] * grid[i]^n| / n! of order n = len(grid) is returned.
func truncationTerm(grid Grid, coefs []*big.Float) (order int, moment float64) {

	n := len(grid)
	prec := bignum.DefaultPrecision

	sum := bignum.NewFloat(nil, prec)
	abs := bignum.NewFloat(nil, prec)
	tmp := bignum.NewFloat(nil, prec)
	tol := bignum.NewFloat(nil, prec)

	var fallback float64

	for k := n; k <= n+1; k++ {

		sum.SetInt64(0)
		abs.SetInt64(0)

		for i, g := range grid {
			tmp.Mul(coefs[i], bignum.IntPow(g, k, prec))
			sum.Add(sum, tmp)
			abs.Add(abs, tmp.Abs(tmp))
		}

		factorial := bignum.NewFloat(bignum.Factorial(k), prec)
		sum.Quo(sum, factorial)
		abs.Quo(abs, factorial)

		if k == n {
			fallback, _ = abs.Float64()
		}

		// cancellations down to half the working precision are exact zeros
		tol.SetMantExp(abs, -int(prec/2))
		if sum.Abs(sum).Cmp(tol) > 0 {
			moment, _ = sum.Float64()
			return k, moment
		}
	}

	return n, fallback
}
