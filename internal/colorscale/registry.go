package colorscale

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

//go:embed palettes.yaml
var defaultPalettes []byte

// Registry holds the scales for every known measurement kind.
type Registry struct {
	neutral RGB
	scales  map[string]*Scale
	folded  map[string]string
}

type paletteFile struct {
	Neutral string                 `yaml:"neutral"`
	Kinds   map[string]paletteKind `yaml:"kinds"`
}

type paletteKind struct {
	Label       string     `yaml:"label"`
	Unit        string     `yaml:"unit"`
	Pollutant   bool       `yaml:"pollutant"`
	Breakpoints []float64  `yaml:"breakpoints"`
	Bands       [][]string `yaml:"bands"`
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
	defaultErr  error
)

// Default returns the registry built from the embedded palette file.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = Load(bytes.NewReader(defaultPalettes))
	})
	return defaultReg, defaultErr
}

// LoadFile reads a palette file; an empty path yields the embedded default.
func LoadFile(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open palette file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

func Load(r io.Reader) (*Registry, error) {
	var pf paletteFile
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&pf); err != nil {
		return nil, fmt.Errorf("decode palettes: %w", err)
	}
	if len(pf.Kinds) == 0 {
		return nil, fmt.Errorf("decode palettes: no kinds defined")
	}

	neutral := Gray
	if pf.Neutral != "" {
		c, err := parseHex(pf.Neutral)
		if err != nil {
			return nil, fmt.Errorf("neutral colour: %w", err)
		}
		neutral = c
	}

	reg := &Registry{
		neutral: neutral,
		scales:  make(map[string]*Scale, len(pf.Kinds)),
		folded:  make(map[string]string, len(pf.Kinds)),
	}
	for name, k := range pf.Kinds {
		bands := make([]Band, 0, len(k.Bands))
		for i, pair := range k.Bands {
			if len(pair) != 2 {
				return nil, fmt.Errorf("kind %q band %d: want [from, to], got %d colours", name, i, len(pair))
			}
			from, err := parseHex(pair[0])
			if err != nil {
				return nil, fmt.Errorf("kind %q band %d: %w", name, i, err)
			}
			to, err := parseHex(pair[1])
			if err != nil {
				return nil, fmt.Errorf("kind %q band %d: %w", name, i, err)
			}
			bands = append(bands, Band{From: from, To: to})
		}
		s, err := NewScale(name, k.Breakpoints, bands)
		if err != nil {
			return nil, err
		}
		s.Label = k.Label
		s.Unit = k.Unit
		s.Pollutant = k.Pollutant
		s.neutral = neutral
		reg.scales[name] = s
		reg.folded[strings.ToLower(name)] = name
	}
	return reg, nil
}

func parseHex(s string) (RGB, error) {
	c, err := colorful.Hex(strings.TrimSpace(s))
	if err != nil {
		return RGB{}, fmt.Errorf("parse colour %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return RGB{R: r, G: g, B: b}, nil
}

// Scale looks a kind up, ignoring case.
func (r *Registry) Scale(kind string) (*Scale, bool) {
	if s, ok := r.scales[kind]; ok {
		return s, true
	}
	name, ok := r.folded[strings.ToLower(strings.TrimSpace(kind))]
	if !ok {
		return nil, false
	}
	return r.scales[name], true
}

// IsPollutant reports whether kind names a pollutant palette.
func (r *Registry) IsPollutant(kind string) bool {
	s, ok := r.Scale(kind)
	return ok && s.Pollutant
}

func (r *Registry) Neutral() RGB { return r.neutral }

// Kinds lists the palette names in sorted order.
func (r *Registry) Kinds() []string {
	out := make([]string, 0, len(r.scales))
	for k := range r.scales {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ColorFor colours v on the kind's scale; unknown kinds and non-finite values are neutral.
func (r *Registry) ColorFor(v float64, kind string) RGB {
	s, ok := r.Scale(kind)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return r.neutral
	}
	return s.ColorFor(v)
}
