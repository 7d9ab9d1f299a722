package bignum

import (
	"fmt"
	"math/big"

	"github.com/ALTree/bigfloat"
)

// DefaultPrecision is the number of mantissa bits used by the coefficient solver.
const DefaultPrecision = uint(512)

// NewFloat creates a new big.Float element with "prec" bits of precision.
// Valide types for x are: int, int64, uint, uint64, float64, *big.Int or *big.Float.
func NewFloat(x interface{}, prec uint) (y *big.Float) {

	y = new(big.Float)
	y.SetPrec(prec)

	if x == nil {
		return
	}

	switch x := x.(type) {
	case int:
		y.SetInt64(int64(x))
	case int64:
		y.SetInt64(x)
	case uint:
		y.SetUint64(uint64(x))
	case uint64:
		y.SetUint64(x)
	case float64:
		y.SetFloat64(x)
	case *big.Int:
		y.SetInt(x)
	case *big.Float:
		y.Set(x)
	default:
		panic(fmt.Errorf("invalid x.(type): valide types are int, int64, uint, uint64, float64, *big.Int or *big.Float but is %T", x))
	}

	return
}

// IntPow returns x^n for a non-negative integer exponent n, with "prec" bits of precision.
func IntPow(x int, n int, prec uint) (y *big.Float) {
	if n < 0 {
		panic(fmt.Errorf("cannot IntPow: negative exponent %d", n))
	}
	// integer exponentiation is exact, the rounding happens once in NewFloat
	return NewFloat(new(big.Int).Exp(big.NewInt(int64(x)), big.NewInt(int64(n)), nil), prec)
}

// Exp returns exp(x) with 2^precisions bits.
func Exp(x *big.Float) (exp *big.Float) {
	return bigfloat.Exp(x)
}
