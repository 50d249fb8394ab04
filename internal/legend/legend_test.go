package legend

import (
	"bytes"
	"errors"
	"image/png"
	"math"
	"testing"

	"github.com/mohammed-shakir/rurair-map/internal/colorscale"
)

func constColor(c colorscale.RGB) ColorFunc {
	return func(float64) (colorscale.RGB, error) { return c, nil }
}

func steps(from, to float64, n int) []float64 {
	out := make([]float64, n+1)
	for i := range out {
		out[i] = from + (to-from)*float64(i)/float64(n)
	}
	return out
}

func TestRender_CanvasWidthClamped(t *testing.T) {
	red := constColor(colorscale.RGB{R: 255})
	cases := []struct {
		name string
		bp   []float64
		want int
	}{
		{"one unit, one segment", []float64{0, 1}, 120},
		{"one unit, many segments", steps(0, 1, 20), 300},
		{"ten thousand units, one segment", []float64{0, 10000}, 120},
		{"ten thousand units, twenty segments", steps(0, 10000, 20), 300},
		{"ten thousand units, five segments", steps(0, 10000, 5), 200},
		{"uneven spacing", []float64{0, 10, 20, 25, 50, 75, 800}, 160},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := Render("x", tc.bp, red)
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if w.Width < 120 || w.Width > 300 {
				t.Fatalf("width=%d outside [120,300]", w.Width)
			}
			if w.Width != tc.want {
				t.Fatalf("width=%d want %d", w.Width, tc.want)
			}
			if len(w.Colors) != w.Width || w.Height != Height {
				t.Fatalf("colors=%d height=%d", len(w.Colors), w.Height)
			}
		})
	}
}

func TestRender_SegmentWidthsClamped(t *testing.T) {
	w, err := Render("PM", []float64{0, 10, 20, 25, 50, 75, 800}, constColor(colorscale.RGB{}))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for i, s := range w.Segments {
		if s.Width < 20 || s.Width > 60 {
			t.Fatalf("segment %d width=%v outside [20,60]", i, s.Width)
		}
	}
	if w.Segments[len(w.Segments)-1].Width != 60 {
		t.Fatalf("widest segment=%v want 60", w.Segments[len(w.Segments)-1].Width)
	}
}

func TestRender_TicksAndLabels(t *testing.T) {
	bp := []float64{-70, -90, -100, -110, -130}
	w, err := Render("Intensidad (dBm)", bp, constColor(colorscale.RGB{}))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(w.Ticks) != len(bp) {
		t.Fatalf("ticks=%d want %d", len(w.Ticks), len(bp))
	}
	if w.Ticks[0].Percent != 0 || math.Abs(w.Ticks[len(bp)-1].Percent-100) > 1e-9 {
		t.Fatalf("tick range %v..%v want 0..100", w.Ticks[0].Percent, w.Ticks[len(bp)-1].Percent)
	}
	for i := 1; i < len(w.Ticks); i++ {
		if w.Ticks[i].Percent <= w.Ticks[i-1].Percent {
			t.Fatalf("ticks not increasing at %d", i)
		}
	}
	if w.MinLabel != "-70" || w.MaxLabel != "-130" {
		t.Fatalf("min/max labels %q/%q", w.MinLabel, w.MaxLabel)
	}
	if len(w.Labels) != 3 || w.Labels[0].Label != "-90" || w.Labels[2].Label != "-110" {
		t.Fatalf("intermediate labels=%+v", w.Labels)
	}
}

func TestRender_PixelValuesFollowSegments(t *testing.T) {
	var seen []float64
	fn := func(v float64) (colorscale.RGB, error) {
		seen = append(seen, v)
		return colorscale.RGB{}, nil
	}
	if _, err := Render("x", []float64{0, 50, 1000}, fn); err != nil {
		t.Fatalf("render: %v", err)
	}
	if seen[0] != 0 {
		t.Fatalf("first column value=%v want 0", seen[0])
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("values must be monotonic, column %d: %v < %v", i, seen[i], seen[i-1])
		}
		if seen[i] >= 1000 {
			t.Fatalf("column %d reached the max value %v", i, seen[i])
		}
	}
}

func TestRender_ToleratesColorFailures(t *testing.T) {
	calls := 0
	fn := func(v float64) (colorscale.RGB, error) {
		calls++
		switch {
		case calls%3 == 0:
			panic("broken palette")
		case calls%3 == 1:
			return colorscale.RGB{}, errors.New("no colour")
		}
		return colorscale.RGB{R: 1}, nil
	}
	w, err := Render("x", []float64{0, 1, 2}, fn)
	if err != nil {
		t.Fatalf("render must not fail on colour errors: %v", err)
	}
	if calls != w.Width {
		t.Fatalf("calls=%d want one per column (%d)", calls, w.Width)
	}
	if w.Fallbacks == 0 || w.Fallbacks >= w.Width {
		t.Fatalf("fallbacks=%d", w.Fallbacks)
	}
	if w.Colors[0] != colorscale.Gray.Hex() {
		t.Fatalf("failed column colour=%q want gray", w.Colors[0])
	}
}

func TestRender_Errors(t *testing.T) {
	if _, err := Render("x", []float64{1}, constColor(colorscale.RGB{})); !errors.Is(err, ErrTooFewBreakpoints) {
		t.Fatalf("err=%v want ErrTooFewBreakpoints", err)
	}
	if _, err := Render("x", []float64{0, math.NaN()}, constColor(colorscale.RGB{})); err == nil {
		t.Fatal("NaN breakpoint must fail")
	}
	if _, err := Render("x", []float64{0, 1}, nil); err == nil {
		t.Fatal("nil colour function must fail")
	}
	if w, err := Render("flat", []float64{5, 5}, constColor(colorscale.RGB{})); err != nil || w.Width != 120 {
		t.Fatalf("zero range: width=%d err=%v", w.Width, err)
	}
}

func TestWritePNG(t *testing.T) {
	reg, err := colorscale.Default()
	if err != nil {
		t.Fatalf("palettes: %v", err)
	}
	s, _ := reg.Scale("CO")
	w, err := ForScale(s, "")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if w.Title != "CO (mg/m³)" {
		t.Fatalf("title=%q", w.Title)
	}
	var buf bytes.Buffer
	if err := w.WritePNG(&buf); err != nil {
		t.Fatalf("png: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != w.Width || b.Dy() != Height {
		t.Fatalf("bounds=%v want %dx%d", b, w.Width, Height)
	}
}

func TestControl_UpdateReplaces(t *testing.T) {
	var c Control
	if _, ok := c.Current(); ok {
		t.Fatal("empty control must report no legend")
	}
	reg, _ := colorscale.Default()
	sig, _ := reg.Scale(colorscale.KindSignal)
	if err := c.Show(sig, ""); err != nil {
		t.Fatalf("show: %v", err)
	}
	if w, _ := c.Current(); w.Title != "Intensidad (dBm)" {
		t.Fatalf("title=%q", w.Title)
	}
	if err := c.Update("CO2 (ppm)", []float64{0, 278}, constColor(colorscale.RGB{})); err != nil {
		t.Fatalf("update: %v", err)
	}
	if w, _ := c.Current(); w.Title != "CO2 (ppm)" {
		t.Fatalf("title after update=%q", w.Title)
	}
	if err := c.Update("bad", nil, nil); err == nil {
		t.Fatal("bad update must fail")
	}
	if w, _ := c.Current(); w.Title != "CO2 (ppm)" {
		t.Fatal("failed update must keep the previous legend")
	}
}
