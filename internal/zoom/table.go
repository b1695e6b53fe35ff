// Package zoom implements the stepped zoom table and the zoom state machine
// used by the image display.
package zoom

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats/scalar"
)

// FitSentinel is the table value meaning "derive the factor from the viewport".
const FitSentinel = -1.0

// factorTolerance absorbs rounding in derived (fit) factors so that a factor
// of 0.9999999 is treated as the 1.0 table entry.
const factorTolerance = 1e-9

var (
	// ErrInvalidFactor is returned for zero, negative or NaN zoom factors.
	ErrInvalidFactor = errors.New("invalid zoom factor")

	// ErrInvalidTable is returned when a zoom table cannot be built.
	ErrInvalidTable = errors.New("invalid zoom table")
)

// Table is a fixed ascending sequence of zoom factors with a trailing fit
// sentinel. Indices are stable; the sentinel always occupies the last slot.
type Table struct {
	factors      []float64
	defaultIndex int
}

// DefaultTable returns the standard table 0.05 … 6.0 with 1.0 as default.
func DefaultTable() Table {
	t, _ := NewTable([]float64{0.05, 0.1, 0.25, 0.5, 1.0, 1.5, 2.0, 4.0, 6.0}, 4)
	return t
}

// NewTable builds a table from strictly ascending positive factors. The fit
// sentinel is appended. defaultIndex must address one of the given factors.
func NewTable(factors []float64, defaultIndex int) (Table, error) {
	if len(factors) < 2 {
		return Table{}, fmt.Errorf("%w: need at least two factors, got %d", ErrInvalidTable, len(factors))
	}
	for i, f := range factors {
		if !(f > 0) {
			return Table{}, fmt.Errorf("%w: factor %d is %v", ErrInvalidTable, i, f)
		}
		if i > 0 && f <= factors[i-1] {
			return Table{}, fmt.Errorf("%w: factors not ascending at index %d", ErrInvalidTable, i)
		}
	}
	if defaultIndex < 0 || defaultIndex >= len(factors) {
		return Table{}, fmt.Errorf("%w: default index %d out of range", ErrInvalidTable, defaultIndex)
	}

	t := Table{
		factors:      make([]float64, 0, len(factors)+1),
		defaultIndex: defaultIndex,
	}
	t.factors = append(t.factors, factors...)
	t.factors = append(t.factors, FitSentinel)
	return t, nil
}

// Len returns the number of slots including the fit sentinel.
func (t Table) Len() int {
	return len(t.factors)
}

// FitIndex returns the index of the fit sentinel.
func (t Table) FitIndex() int {
	return len(t.factors) - 1
}

// DefaultIndex returns the index a fresh controller starts at.
func (t Table) DefaultIndex() int {
	return t.defaultIndex
}

// Factor returns the factor stored at index i.
func (t Table) Factor(i int) float64 {
	return t.factors[i]
}

// Factors returns a copy of the indexed factors, without the sentinel.
func (t Table) Factors() []float64 {
	out := make([]float64, t.FitIndex())
	copy(out, t.factors)
	return out
}

// IndexOf returns the index of the table entry equal to f.
func (t Table) IndexOf(f float64) (int, bool) {
	for i := 0; i < t.FitIndex(); i++ {
		if scalar.EqualWithinAbsOrRel(t.factors[i], f, factorTolerance, factorTolerance) {
			return i, true
		}
	}
	return 0, false
}

// Next returns the smallest entry strictly greater than f. Slot 0 is never
// a valid target.
func (t Table) Next(f float64) (int, bool) {
	for i := 1; i < t.FitIndex(); i++ {
		if t.greater(t.factors[i], f) {
			return i, true
		}
	}
	return 0, false
}

// Prev returns the largest entry strictly less than f. Slot 0 is never a
// valid target.
func (t Table) Prev(f float64) (int, bool) {
	for i := t.FitIndex() - 1; i >= 1; i-- {
		if t.greater(f, t.factors[i]) {
			return i, true
		}
	}
	return 0, false
}

func (t Table) greater(a, b float64) bool {
	return a > b && !scalar.EqualWithinAbsOrRel(a, b, factorTolerance, factorTolerance)
}
