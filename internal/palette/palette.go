// Package palette assigns deterministic two-stop gradient colors to entity
// keys. Keys in the current legend get evenly spaced hues; anything else
// falls back to a hue derived from a 32-bit FNV-1a hash of the key.
package palette

import (
	"fmt"
	"hash/fnv"
	"math"

	"github.com/alfredjeanlab/schedview/internal/model"
)

// Gradient is a left-to-right two-stop HSL gradient. Hues are degrees,
// saturation and lightness are percentages.
type Gradient struct {
	Hue         int `json:"hue"`
	Saturation  int `json:"saturation"`
	Lightness   int `json:"lightness"`
	Hue2        int `json:"hue2"`
	Saturation2 int `json:"saturation2"`
	Lightness2  int `json:"lightness2"`
}

// CSS renders the gradient as a CSS background value.
func (g Gradient) CSS() string {
	return fmt.Sprintf("linear-gradient(90deg, hsl(%ddeg %d%% %d%%) 0%%, hsl(%ddeg %d%% %d%%) 100%%)",
		g.Hue, g.Saturation, g.Lightness, g.Hue2, g.Saturation2, g.Lightness2)
}

// RGB converts the first stop to 8-bit RGB.
func (g Gradient) RGB() (r, gr, b uint8) {
	return hslToRGB(float64(g.Hue), float64(g.Saturation)/100, float64(g.Lightness)/100)
}

const (
	paletteSaturation = 70
	hashSaturation    = 65
	lightness         = 45
	lightness2        = 35
	hueShift          = 25
)

func gradient(hue, sat, minSat2 int) Gradient {
	return Gradient{
		Hue:         hue,
		Saturation:  sat,
		Lightness:   lightness,
		Hue2:        (hue + hueShift) % 360,
		Saturation2: max(minSat2, sat-10),
		Lightness2:  lightness2,
	}
}

// Palette maps an ordered set of legend keys to maximally separated hues.
// It is built once per render and not mutated afterwards.
type Palette struct {
	keys   []string
	colors map[string]Gradient
}

// New assigns key i of n the hue round(360*i/n). Duplicate keys keep their
// first position.
func New(keys []string) *Palette {
	p := &Palette{colors: make(map[string]Gradient, len(keys))}
	for _, k := range keys {
		k = Normalize(k)
		if _, dup := p.colors[k]; dup {
			continue
		}
		p.colors[k] = Gradient{}
		p.keys = append(p.keys, k)
	}
	n := max(1, len(p.keys))
	for i, k := range p.keys {
		hue := int(math.Round(360 * float64(i) / float64(n)))
		p.colors[k] = gradient(hue%360, paletteSaturation, 55)
	}
	return p
}

// Keys returns the legend keys in palette order.
func (p *Palette) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Lookup returns the palette color for key without a hash fallback.
func (p *Palette) Lookup(key string) (Gradient, bool) {
	if p == nil {
		return Gradient{}, false
	}
	g, ok := p.colors[Normalize(key)]
	return g, ok
}

// ColorFor returns the palette color for key, or the hash color when key is
// not in the legend.
func (p *Palette) ColorFor(key string) Gradient {
	if g, ok := p.Lookup(key); ok {
		return g
	}
	return Hash(key)
}

// Hash returns the hash-mode color for key. It depends only on the key.
func Hash(key string) Gradient {
	return gradient(int(HashKey(Normalize(key))%360), hashSaturation, 50)
}

// HashKey is the 32-bit FNV-1a hash of key's UTF-8 bytes.
func HashKey(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32()
}

// Normalize maps the empty key to model.Unassigned so every unassigned
// order shares one color.
func Normalize(key string) string {
	if key == "" {
		return model.Unassigned
	}
	return key
}

func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	c := (1 - math.Abs(2*l-1)) * s
	hp := math.Mod(h, 360) / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	var r, g, b float64
	switch {
	case hp < 1:
		r, g, b = c, x, 0
	case hp < 2:
		r, g, b = x, c, 0
	case hp < 3:
		r, g, b = 0, c, x
	case hp < 4:
		r, g, b = 0, x, c
	case hp < 5:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	m := l - c/2
	to8 := func(v float64) uint8 { return uint8(math.Round((v + m) * 255)) }
	return to8(r), to8(g), to8(b)
}
