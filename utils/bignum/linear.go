package bignum

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrSingular is returned when a linear system has no unique solution.
var ErrSingular = errors.New("singular system")

// NewMatrix allocates a rows x cols matrix of zero big.Float with "prec" bits of precision.
func NewMatrix(rows, cols int, prec uint) (m [][]*big.Float) {
	m = make([][]*big.Float, rows)
	for i := range m {
		m[i] = make([]*big.Float, cols)
		for j := range m[i] {
			m[i][j] = NewFloat(nil, prec)
		}
	}
	return
}

// SolveLinearSystem solves for y the square system matrix * y = vector using Gaussian
// elimination with partial pivoting. The solution is written in vector and matrix is
// overwritten by its row echelon form.
func SolveLinearSystem(matrix [][]*big.Float, vector []*big.Float) (err error) {

	n := len(matrix)

	if len(vector) != n {
		return fmt.Errorf("cannot SolveLinearSystem: len(vector)=%d != len(matrix)=%d", len(vector), n)
	}

	for i := range matrix {
		if len(matrix[i]) != n {
			return fmt.Errorf("cannot SolveLinearSystem: matrix is not square (row %d has %d columns)", i, len(matrix[i]))
		}
	}

	tmp := new(big.Float)
	abs := new(big.Float)
	best := new(big.Float)

	for i := 0; i < n; i++ {

		pivot := i
		best.Abs(matrix[i][i])
		for j := i + 1; j < n; j++ {
			if abs.Abs(matrix[j][i]).Cmp(best) > 0 {
				best.Set(abs)
				pivot = j
			}
		}

		if best.Sign() == 0 {
			return fmt.Errorf("cannot SolveLinearSystem: column %d: %w", i, ErrSingular)
		}

		matrix[i], matrix[pivot] = matrix[pivot], matrix[i]
		vector[i], vector[pivot] = vector[pivot], vector[i]

		a := new(big.Float).Set(matrix[i][i])

		vector[i].Quo(vector[i], a)

		for j := n - 1; j >= i; j-- {
			b := matrix[i][j]
			b.Quo(b, a)
		}

		for j := i + 1; j < n; j++ {
			c := new(big.Float).Set(matrix[j][i])
			if c.Sign() == 0 {
				continue
			}
			vector[j].Sub(vector[j], tmp.Mul(vector[i], c))
			for k := n - 1; k >= i; k-- {
				matrix[j][k].Sub(matrix[j][k], tmp.Mul(matrix[i][k], c))
			}
		}
	}

	for i := n - 1; i > 0; i-- {
		c := vector[i]
		for j := i - 1; j >= 0; j-- {
			vector[j].Sub(vector[j], tmp.Mul(matrix[j][i], c))
		}
	}

	return
}
