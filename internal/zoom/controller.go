package zoom

import (
	"errors"
	"fmt"
	"math"

	"emmpm-viewer/pkg/geometry"
)

// DefaultFitMargin is subtracted from each viewport axis before fitting so
// the image does not touch the viewport edges.
const DefaultFitMargin = 4.0

// ErrDegenerateGeometry is returned by Fit when the image or the effective
// viewport has no area.
var ErrDegenerateGeometry = errors.New("degenerate fit geometry")

// Mode is the zoom state machine state.
type Mode int

const (
	ModeIndexed Mode = iota // factor comes from a table entry
	ModeFit                 // factor derived from viewport and image size
)

func (m Mode) String() string {
	switch m {
	case ModeIndexed:
		return "Indexed"
	case ModeFit:
		return "Fit"
	default:
		return "Unknown"
	}
}

// Controller owns the zoom index, factor and fit flag.
//
// Controller knows nothing about images or rendering; callers check for an
// empty image and re-render after a state change.
type Controller struct {
	table  Table
	margin float64

	index  int
	factor float64
	fit    bool
}

// NewController returns a controller in Indexed state at the table's default
// entry. A zero Table selects DefaultTable; a negative margin selects
// DefaultFitMargin.
func NewController(table Table, margin float64) *Controller {
	if table.Len() == 0 {
		table = DefaultTable()
	}
	if margin < 0 {
		margin = DefaultFitMargin
	}
	c := &Controller{table: table, margin: margin}
	c.Reset()
	return c
}

// Reset returns to Indexed at the default entry.
func (c *Controller) Reset() {
	c.index = c.table.DefaultIndex()
	c.factor = c.table.Factor(c.index)
	c.fit = false
}

// Table returns the controller's zoom table.
func (c *Controller) Table() Table { return c.table }

// Factor returns the effective zoom factor.
func (c *Controller) Factor() float64 { return c.factor }

// Index returns the current table index; the fit sentinel while fitting.
func (c *Controller) Index() int { return c.index }

// FitActive reports whether fit-to-window is on.
func (c *Controller) FitActive() bool { return c.fit }

// Mode returns the current state.
func (c *Controller) Mode() Mode {
	if c.fit {
		return ModeFit
	}
	return ModeIndexed
}

// Increase steps to the smallest table factor above the current one and
// clears fit mode. It reports whether the factor changed; at the top of the
// table only the fit flag is cleared.
func (c *Controller) Increase() bool {
	c.fit = false
	i, ok := c.table.Next(c.factor)
	if !ok {
		c.settleIndex()
		return false
	}
	c.index = i
	c.factor = c.table.Factor(i)
	return true
}

// Decrease steps to the largest table factor below the current one and
// clears fit mode. It reports whether the factor changed.
func (c *Controller) Decrease() bool {
	c.fit = false
	i, ok := c.table.Prev(c.factor)
	if !ok {
		c.settleIndex()
		return false
	}
	c.index = i
	c.factor = c.table.Factor(i)
	return true
}

// Fit enters fit mode and derives the factor from the viewport shrunk by the
// margin, measured along the image's dominant axis. On degenerate geometry
// the state is left untouched.
func (c *Controller) Fit(viewport, img geometry.Size) (float64, error) {
	effective := viewport.Shrink(c.margin)
	f, ok := geometry.FitFactor(effective, img)
	if !ok {
		return c.factor, fmt.Errorf("%w: viewport %vx%v, image %vx%v", ErrDegenerateGeometry,
			viewport.Width, viewport.Height, img.Width, img.Height)
	}
	c.fit = true
	c.index = c.table.FitIndex()
	c.factor = f
	return f, nil
}

// SetFactor assigns the factor directly without touching the fit flag. Out of
// fit mode the index follows the factor when it matches a table entry.
func (c *Controller) SetFactor(f float64) error {
	if !(f > 0) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidFactor, f)
	}
	c.factor = f
	if !c.fit {
		if i, ok := c.table.IndexOf(f); ok {
			c.index = i
		}
	}
	return nil
}

// settleIndex keeps the index valid after leaving fit mode without a step:
// it points at the entry matching the factor, or the nearest entry below.
func (c *Controller) settleIndex() {
	if c.index != c.table.FitIndex() {
		return
	}
	if i, ok := c.table.IndexOf(c.factor); ok {
		c.index = i
		return
	}
	if i, ok := c.table.Prev(c.factor); ok {
		c.index = i
		return
	}
	c.index = 0
}
