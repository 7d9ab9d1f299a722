package fdm

import (
	"fmt"

	"github.com/tuneinsight/finitediff/utils"
)

// Kind is the variant of a finite-difference stencil.
type Kind int

const (
	// Forward samples the function on 0, 1, ..., n-1.
	Forward = Kind(iota)
	// Backward samples the function on -(n-1), ..., 0.
	Backward
	// Central samples the function on a grid symmetric around 0.
	Central
	// Custom samples the function on a caller-provided grid.
	Custom
)

func (k Kind) String() string {
	switch k {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Central:
		return "central"
	case Custom:
		return "custom"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case Forward, Backward, Central, Custom:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("cannot MarshalText: invalid kind %d", int(k))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "forward", "Forward":
		*k = Forward
	case "backward", "Backward":
		*k = Backward
	case "central", "Central":
		*k = Central
	case "custom", "Custom":
		*k = Custom
	default:
		return fmt.Errorf("cannot UnmarshalText: invalid kind %q", text)
	}
	return nil
}

// Grid is an ordered sequence of sample offsets, in units of the step size.
type Grid []int

// NewGrid returns the grid of the given kind with n points.
// Custom grids cannot be generated and yield nil.
func NewGrid(kind Kind, n int) (g Grid) {

	if n < 1 {
		return nil
	}

	g = make(Grid, n)

	switch kind {
	case Forward:
		for i := range g {
			g[i] = i
		}
	case Backward:
		for i := range g {
			g[i] = i - n + 1
		}
	case Central:
		half := n / 2
		if n&1 == 1 {
			for i := range g {
				g[i] = i - half
			}
		} else {
			// an even number of points is placed symmetrically around 0, without 0
			for i := 0; i < half; i++ {
				g[i] = i - half
				g[half+i] = i + 1
			}
		}
	default:
		return nil
	}

	return
}

// Clone returns a deep copy of the grid.
func (g Grid) Clone() Grid {
	if g == nil {
		return nil
	}
	c := make(Grid, len(g))
	copy(c, g)
	return c
}

// IsSymmetric returns true if the grid is unchanged by negation followed by reversal.
func (g Grid) IsSymmetric() bool {
	n := len(g)
	for i := range g {
		if g[i] != -g[n-1-i] {
			return false
		}
	}
	return n > 0
}

// MaxAbs returns the largest absolute offset of the grid.
func (g Grid) MaxAbs() int {
	return utils.MaxAbsInt(g)
}

// neighbourhoodShifts returns the three shifts used to estimate the derivative around the
// evaluation point. One-sided grids are shifted away from the side they do not sample.
func (g Grid) neighbourhoodShifts() [3]int {
	switch {
	case utils.AllNonNegative(g):
		return [3]int{-2, -1, 0}
	case utils.AllNonPositive(g):
		return [3]int{0, 1, 2}
	default:
		return [3]int{-1, 0, 1}
	}
}
