package image

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// BlendMode specifies how the base raster is combined with the overlay
// already on the canvas.
type BlendMode int

const (
	BlendExclusion  BlendMode = iota // S + D - 2SD
	BlendOver                        // plain source-over
	BlendMultiply                    // SD
	BlendScreen                      // S + D - SD
	BlendOverlay                     // multiply or screen keyed on the backdrop
	BlendDifference                  // |S - D|
)

// DefaultBlendMode is used when no mode is configured. It is the zero value.
const DefaultBlendMode = BlendExclusion

// ErrInvalidBlendMode is returned for a BlendMode outside the defined set.
var ErrInvalidBlendMode = errors.New("invalid blend mode")

func (m BlendMode) String() string {
	switch m {
	case BlendOver:
		return "Over"
	case BlendExclusion:
		return "Exclusion"
	case BlendMultiply:
		return "Multiply"
	case BlendScreen:
		return "Screen"
	case BlendOverlay:
		return "Overlay"
	case BlendDifference:
		return "Difference"
	default:
		return "Unknown"
	}
}

// Valid reports whether m is one of the defined modes.
func (m BlendMode) Valid() bool {
	return m >= BlendExclusion && m <= BlendDifference
}

// BlendModes returns every supported mode in menu order.
func BlendModes() []BlendMode {
	return []BlendMode{BlendOver, BlendExclusion, BlendMultiply, BlendScreen, BlendOverlay, BlendDifference}
}

// ParseBlendMode maps a case-insensitive mode name to a BlendMode.
// "normal" is accepted as an alias of Over.
func ParseBlendMode(s string) (BlendMode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "normal" {
		return BlendOver, nil
	}
	for _, m := range BlendModes() {
		if strings.ToLower(m.String()) == name {
			return m, nil
		}
	}
	return DefaultBlendMode, fmt.Errorf("unknown blend mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m BlendMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlendMode, int(m))
	}
	return []byte(strings.ToLower(m.String())), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *BlendMode) UnmarshalText(text []byte) error {
	mode, err := ParseBlendMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// channelFunc blends one unpremultiplied 8-bit channel: s is the source,
// d the backdrop.
type channelFunc func(s, d uint32) uint32

// channel returns nil for Over. Undefined modes blend as DefaultBlendMode.
func (m BlendMode) channel() channelFunc {
	switch m {
	case BlendOver:
		return nil
	case BlendExclusion:
		return func(s, d uint32) uint32 { return s + d - 2*mul255(s, d) }
	case BlendMultiply:
		return mul255
	case BlendScreen:
		return func(s, d uint32) uint32 { return s + d - mul255(s, d) }
	case BlendOverlay:
		return func(s, d uint32) uint32 {
			if d < 128 {
				return mul255(2*s, d)
			}
			return 255 - mul255(2*(255-s), 255-d)
		}
	case BlendDifference:
		return func(s, d uint32) uint32 {
			if s > d {
				return s - d
			}
			return d - s
		}
	default:
		return DefaultBlendMode.channel()
	}
}

// blendInto draws src onto dst at the origin using mode. Both images hold
// premultiplied RGBA; only the overlapping area is touched.
func blendInto(dst, src *image.RGBA, mode BlendMode) {
	area := dst.Bounds().Intersect(src.Bounds())
	fn := mode.channel()

	for y := area.Min.Y; y < area.Max.Y; y++ {
		di := dst.PixOffset(area.Min.X, y)
		si := src.PixOffset(area.Min.X, y)
		for x := area.Min.X; x < area.Max.X; x++ {
			d := dst.Pix[di : di+4 : di+4]
			s := src.Pix[si : si+4 : si+4]
			if fn == nil {
				over(d, s)
			} else {
				separable(d, s, fn)
			}
			di += 4
			si += 4
		}
	}
}

// over is Porter-Duff source-over on premultiplied pixels.
func over(d, s []uint8) {
	inv := 255 - uint32(s[3])
	for c := 0; c < 4; c++ {
		d[c] = uint8(uint32(s[c]) + mul255(uint32(d[c]), inv))
	}
}

// separable applies result = (1-Sa)D + (1-Da)S + SaDa*B(s, d) per channel,
// with B evaluated on unpremultiplied values.
func separable(d, s []uint8, fn channelFunc) {
	sa, da := uint32(s[3]), uint32(d[3])
	if sa == 0 {
		return
	}
	if da == 0 {
		copy(d, s)
		return
	}
	saDa := mul255(sa, da)
	for c := 0; c < 3; c++ {
		sc, dc := uint32(s[c]), uint32(d[c])
		b := clamp255(fn(unpremul(sc, sa), unpremul(dc, da)))
		v := mul255(dc, 255-sa) + mul255(sc, 255-da) + mul255(saDa, b)
		d[c] = uint8(clamp255(v))
	}
	d[3] = uint8(sa + mul255(da, 255-sa))
}

// mul255 returns round(a*b/255).
func mul255(a, b uint32) uint32 {
	return (a*b + 127) / 255
}

func unpremul(c, a uint32) uint32 {
	return clamp255((c*255 + a/2) / a)
}

func clamp255(v uint32) uint32 {
	if v > 255 {
		return 255
	}
	return v
}
