package mesh

import (
	"slices"

	"github.com/chazu/meshedit/pkg/geom"
)

var defaultPalette = []geom.Color{
	{R: 0.67, G: 0.24, B: 0.19, A: 1}, // red
	{R: 0.5, G: 0.71, B: 0.29, A: 1},  // green
	{R: 0.23, G: 0.38, B: 0.85, A: 1}, // blue
	{R: 0.87, G: 0.51, B: 0.16, A: 1}, // orange
	{R: 0.65, G: 0.34, B: 0.62, A: 1}, // purple
	{R: 0.16, G: 0.62, B: 0.41, A: 1}, // light green
	{R: 0.17, G: 0.62, B: 0.71, A: 1}, // light blue
	{R: 0.86, G: 0.86, B: 0.15, A: 1}, // yellow
}

// DefaultBackground colors vertices in no visible channel.
var DefaultBackground = geom.Color{R: 0.5, G: 0.5, B: 0.5, A: 1}

// DefaultPalette returns a copy of the built-in channel palette.
func DefaultPalette() []geom.Color {
	return slices.Clone(defaultPalette)
}

// Palette returns a copy of the palette this state colors with.
func (s *State) Palette() []geom.Color {
	return slices.Clone(s.palette)
}

// PaletteColor returns the color of channel ch, wrapping around the
// palette.
func (s *State) PaletteColor(ch Channel) geom.Color {
	return s.palette[int(ch)%len(s.palette)]
}

// shadeState remembers what the current colors were computed from, so Sync
// can tell when a visibility change makes them stale.
type shadeState struct {
	valid    bool
	visible  Mask
	channels int
}

func (sh shadeState) stale(visible Mask, channels int) bool {
	return sh.valid && (sh.visible != visible || sh.channels != channels)
}

// RecomputeColors rebuilds every vertex color from the selection. Each
// visible channel below ChannelsInUse adds its palette color to its
// members; overlapping channels sum without clamping. Vertices in no
// visible channel get the background color.
func (s *State) RecomputeColors(visible Mask) error {
	if err := s.check("RecomputeColors"); err != nil {
		return err
	}
	s.shadeColors(visible)
	return nil
}

// SetColorByMask is RecomputeColors under the name hosts know it by.
func (s *State) SetColorByMask(visible Mask) error {
	return s.RecomputeColors(visible)
}

func (s *State) shadeColors(visible Mask) {
	contributing := (visible & below(s.channelsInUse)).Channels()
	for i, w := range s.sel {
		if w&visible == 0 {
			s.buf.C[i] = s.background
			continue
		}
		var c geom.Color
		for _, ch := range contributing {
			if w.Has(ch) {
				c = c.Add(s.PaletteColor(ch))
			}
		}
		s.buf.C[i] = c
	}
	s.dirty |= ColorsChanged
	s.shade = shadeState{valid: true, visible: visible, channels: s.channelsInUse}
}

// SetColorSingleByMask paints the vertices in any channel of mask with
// palette entry colorID and everything else with the background. The
// result is not tied to channel visibility, so Sync leaves it alone until
// the selection changes.
func (s *State) SetColorSingleByMask(mask Mask, colorID int) error {
	const op = "SetColorSingleByMask"
	if err := s.check(op); err != nil {
		return err
	}
	if colorID < 0 {
		return invalidArgument(op, "color id %d", colorID)
	}
	color := s.palette[colorID%len(s.palette)]
	for i, w := range s.sel {
		if w&mask != 0 {
			s.buf.C[i] = color
		} else {
			s.buf.C[i] = s.background
		}
	}
	s.dirty |= ColorsChanged
	s.shade = shadeState{}
	return nil
}
