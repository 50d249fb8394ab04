// Package colorscale maps measurements to display colours by piecewise linear
// interpolation over per-kind breakpoint tables.
package colorscale

import (
	"fmt"
	"math"
)

// KindSignal is the palette used for every mobile-signal layer.
const KindSignal = "signal"

type RGB struct {
	R, G, B uint8
}

// Gray is returned for values that cannot be coloured.
var Gray = RGB{R: 0x80, G: 0x80, B: 0x80}

func (c RGB) String() string { return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B) }

func (c RGB) Hex() string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }

// Band is the colour ramp between two adjacent breakpoints.
type Band struct {
	From, To RGB
}

// Scale is one measurement kind's breakpoint table. Breakpoints are strictly
// monotonic, ascending or descending.
type Scale struct {
	Kind      string
	Label     string
	Unit      string
	Pollutant bool

	breakpoints []float64
	bands       []Band
	neutral     RGB
	desc        bool
}

func NewScale(kind string, breakpoints []float64, bands []Band) (*Scale, error) {
	if len(breakpoints) < 2 {
		return nil, fmt.Errorf("scale %q: need at least 2 breakpoints, got %d", kind, len(breakpoints))
	}
	if len(bands) != len(breakpoints)-1 {
		return nil, fmt.Errorf("scale %q: %d breakpoints need %d bands, got %d",
			kind, len(breakpoints), len(breakpoints)-1, len(bands))
	}
	desc := breakpoints[1] < breakpoints[0]
	for i := 1; i < len(breakpoints); i++ {
		a, b := breakpoints[i-1], breakpoints[i]
		if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
			return nil, fmt.Errorf("scale %q: breakpoint %d is not finite", kind, i)
		}
		if (desc && b >= a) || (!desc && b <= a) {
			return nil, fmt.Errorf("scale %q: breakpoints must be strictly monotonic at index %d", kind, i)
		}
	}
	return &Scale{
		Kind:        kind,
		breakpoints: append([]float64(nil), breakpoints...),
		bands:       append([]Band(nil), bands...),
		neutral:     Gray,
		desc:        desc,
	}, nil
}

func (s *Scale) Breakpoints() []float64 { return append([]float64(nil), s.breakpoints...) }

func (s *Scale) Bands() []Band { return append([]Band(nil), s.bands...) }

// Band returns the band index v falls into: the smallest i with v before
// B[i+1] in breakpoint order, or the last band.
func (s *Scale) Band(v float64) int {
	last := len(s.bands) - 1
	for i := 0; i < last; i++ {
		next := s.breakpoints[i+1]
		if (!s.desc && v < next) || (s.desc && v > next) {
			return i
		}
	}
	return last
}

// ColorFor interpolates v inside its band. Values outside the table clamp to
// the first band's start colour or the last band's end colour.
func (s *Scale) ColorFor(v float64) RGB {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return s.neutral
	}
	i := s.Band(v)
	lo, hi := s.breakpoints[i], s.breakpoints[i+1]
	ratio := (v - lo) / (hi - lo)
	ratio = math.Max(0, math.Min(1, ratio))
	return Lerp(s.bands[i].From, s.bands[i].To, ratio)
}

// ColorAt is ColorFor for optional values; nil maps to the neutral colour.
func (s *Scale) ColorAt(v *float64) RGB {
	if v == nil {
		return s.neutral
	}
	return s.ColorFor(*v)
}

// Lerp blends two colours channel by channel, rounding to the nearest unit.
func Lerp(a, b RGB, ratio float64) RGB {
	ch := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*ratio))
	}
	return RGB{R: ch(a.R, b.R), G: ch(a.G, b.G), B: ch(a.B, b.B)}
}
