// Package legend builds gradient-swatch legends whose segment widths follow
// breakpoint spacing.
package legend

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"strconv"
	"sync"

	"github.com/mohammed-shakir/rurair-map/internal/colorscale"
)

const (
	minSegmentWidth = 20.0
	maxSegmentWidth = 60.0
	baseWidth       = 200.0
	minCanvasWidth  = 120.0
	maxCanvasWidth  = 300.0

	Height = 16
)

var ErrTooFewBreakpoints = errors.New("legend: need at least 2 breakpoints")

// ColorFunc colours one represented value. Errors and panics are tolerated.
type ColorFunc func(v float64) (colorscale.RGB, error)

// ScaleFunc adapts a colour scale to a ColorFunc.
func ScaleFunc(s *colorscale.Scale) ColorFunc {
	return func(v float64) (colorscale.RGB, error) { return s.ColorFor(v), nil }
}

type Segment struct {
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Width float64 `json:"width"`
}

type Tick struct {
	Percent float64 `json:"percent"`
	Value   float64 `json:"value"`
	Label   string  `json:"label"`
}

type Widget struct {
	Title    string    `json:"title"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Segments []Segment `json:"segments"`
	Ticks    []Tick    `json:"ticks"`
	MinLabel string    `json:"min_label"`
	MaxLabel string    `json:"max_label"`
	Labels   []Tick    `json:"labels"`
	Colors   []string  `json:"colors"`

	// Fallbacks counts pixel columns painted gray after a colour failure.
	Fallbacks int `json:"fallbacks,omitempty"`

	pixels []colorscale.RGB
}

// Render lays out the legend and paints one colour per pixel column.
func Render(title string, breakpoints []float64, fn ColorFunc) (Widget, error) {
	if len(breakpoints) < 2 {
		return Widget{}, ErrTooFewBreakpoints
	}
	for i, b := range breakpoints {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return Widget{}, fmt.Errorf("legend: breakpoint %d is not finite", i)
		}
	}
	if fn == nil {
		return Widget{}, errors.New("legend: nil colour function")
	}

	n := len(breakpoints) - 1
	total := math.Abs(breakpoints[n] - breakpoints[0])

	segs := make([]Segment, n)
	adjustedTotal := 0.0
	for i := range n {
		prop := 0.0
		if total > 0 {
			prop = math.Abs(breakpoints[i+1]-breakpoints[i]) / total * baseWidth
		}
		w := math.Max(minSegmentWidth, math.Min(maxSegmentWidth, prop))
		segs[i] = Segment{From: breakpoints[i], To: breakpoints[i+1], Width: w}
		adjustedTotal += w
	}
	canvas := int(math.Max(minCanvasWidth, math.Min(maxCanvasWidth, adjustedTotal)))

	// accumulated edges in adjusted-width units
	edges := make([]float64, n+1)
	for i, s := range segs {
		edges[i+1] = edges[i] + s.Width
	}

	w := Widget{
		Title:    title,
		Width:    canvas,
		Height:   Height,
		Segments: segs,
		MinLabel: formatValue(breakpoints[0]),
		MaxLabel: formatValue(breakpoints[n]),
	}
	for i, b := range breakpoints {
		t := Tick{Percent: edges[i] / adjustedTotal * 100, Value: b, Label: formatValue(b)}
		w.Ticks = append(w.Ticks, t)
		if i > 0 && i < n {
			w.Labels = append(w.Labels, t)
		}
	}

	w.pixels = make([]colorscale.RGB, canvas)
	w.Colors = make([]string, canvas)
	scale := adjustedTotal / float64(canvas)
	seg := 0
	for x := range canvas {
		pos := float64(x) * scale
		for seg < n-1 && pos >= edges[seg+1] {
			seg++
		}
		rel := 0.0
		if segs[seg].Width > 0 {
			rel = (pos - edges[seg]) / segs[seg].Width
		}
		v := segs[seg].From + (segs[seg].To-segs[seg].From)*rel
		c, ok := safeColor(fn, v)
		if !ok {
			w.Fallbacks++
		}
		w.pixels[x] = c
		w.Colors[x] = c.Hex()
	}
	return w, nil
}

func safeColor(fn ColorFunc, v float64) (c colorscale.RGB, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c, ok = colorscale.Gray, false
		}
	}()
	c, err := fn(v)
	if err != nil {
		return colorscale.Gray, false
	}
	return c, true
}

// ForScale renders the legend for a palette. Signal legends are titled by
// their label, pollutant legends by the pollutant name; unit overrides the
// palette unit when set.
func ForScale(s *colorscale.Scale, unit string) (Widget, error) {
	return Render(Title(s, unit), s.Breakpoints(), ScaleFunc(s))
}

func Title(s *colorscale.Scale, unit string) string {
	if unit == "" {
		unit = s.Unit
	}
	name := s.Kind
	if !s.Pollutant && s.Label != "" {
		name = s.Label
	}
	if unit == "" {
		return name
	}
	return name + " (" + unit + ")"
}

func formatValue(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// Image rasterises the gradient strip, one colour per column.
func (w Widget) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w.Width, w.Height))
	for x, c := range w.pixels {
		rgba := color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
		for y := range w.Height {
			img.SetRGBA(x, y, rgba)
		}
	}
	return img
}

func (w Widget) WritePNG(out io.Writer) error {
	if err := png.Encode(out, w.Image()); err != nil {
		return fmt.Errorf("encode legend png: %w", err)
	}
	return nil
}

// Control holds the legend currently shown for a map and replaces it in place.
type Control struct {
	mu     sync.RWMutex
	widget *Widget
}

func (c *Control) Update(title string, breakpoints []float64, fn ColorFunc) error {
	w, err := Render(title, breakpoints, fn)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.widget = &w
	c.mu.Unlock()
	return nil
}

// Show replaces the current legend with the one for s.
func (c *Control) Show(s *colorscale.Scale, unit string) error {
	return c.Update(Title(s, unit), s.Breakpoints(), ScaleFunc(s))
}

func (c *Control) Current() (Widget, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.widget == nil {
		return Widget{}, false
	}
	return *c.widget, true
}
