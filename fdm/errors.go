package fdm

import "errors"

var (
	// ErrInvalidAccuracy is returned when the accuracy order of a method is smaller than 1.
	ErrInvalidAccuracy = errors.New("accuracy order must be at least 1")
	// ErrInvalidDerivative is returned when the derivative order of a method is negative.
	ErrInvalidDerivative = errors.New("derivative order must be non-negative")
	// ErrInvalidAdapt is returned for a negative number of adaptation rounds, or for an adapted custom grid.
	ErrInvalidAdapt = errors.New("invalid number of adaptation rounds")
	// ErrInvalidParameter is returned for a malformed max range, condition, factor or extrapolation setting.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrDuplicateOffset is returned when a grid lists the same offset twice.
	ErrDuplicateOffset = errors.New("duplicate grid offset")
	// ErrSingularSystem is returned when the coefficient system of a grid cannot be solved.
	ErrSingularSystem = errors.New("singular coefficient system")
)
