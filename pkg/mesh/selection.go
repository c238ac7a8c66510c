package mesh

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/chewxy/math32"

	"github.com/chazu/meshedit/pkg/geom"
)

// Mode combines a sphere query with a channel bit.
type Mode int

const (
	Add      Mode = iota // bit | inside
	Subtract             // bit &^ inside
	Toggle               // bit ^ inside
)

func (m Mode) String() string {
	switch m {
	case Add:
		return "add"
	case Subtract:
		return "subtract"
	case Toggle:
		return "toggle"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts the names printed by Mode.String, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "add":
		return Add, nil
	case "subtract":
		return Subtract, nil
	case "toggle":
		return Toggle, nil
	}
	return 0, fmt.Errorf("unknown selection mode %q", s)
}

// SelectSphere updates channel ch of every vertex with the sphere test
// |V[i]-center|^2 < radius^2 combined by mode. Points on the sphere are
// outside. Other channels are untouched. Invalid arguments leave the state
// unchanged.
func (s *State) SelectSphere(center geom.Vec3, radius float32, ch Channel, mode Mode) error {
	const op = "SelectSphere"
	if err := s.check(op); err != nil {
		return err
	}
	if !ch.Valid() {
		return invalidArgument(op, "channel %d outside [0,%d)", ch, MaxChannels)
	}
	if radius < 0 || math32.IsNaN(radius) {
		return invalidArgument(op, "radius %v", radius)
	}
	if mode != Add && mode != Subtract && mode != Toggle {
		return invalidArgument(op, "mode %v", mode)
	}

	bit := ch.Mask()
	r2 := radius * radius
	for i, v := range s.buf.V {
		if !(v.DistanceSqr(center) < r2) {
			continue
		}
		switch mode {
		case Add:
			s.sel[i] |= bit
		case Subtract:
			s.sel[i] &^= bit
		case Toggle:
			s.sel[i] ^= bit
		}
	}
	s.dirtySel |= bit
	return nil
}

// QuerySphereMask returns the union of the selection words of the vertices
// strictly inside the sphere. It changes nothing.
func (s *State) QuerySphereMask(center geom.Vec3, radius float32) (Mask, error) {
	const op = "QuerySphereMask"
	if err := s.check(op); err != nil {
		return 0, err
	}
	if radius < 0 || math32.IsNaN(radius) {
		return 0, invalidArgument(op, "radius %v", radius)
	}
	var m Mask
	r2 := radius * radius
	for i, v := range s.buf.V {
		if v.DistanceSqr(center) < r2 {
			m |= s.sel[i]
		}
	}
	return m, nil
}

// ClearSelection removes every vertex from the channels in mask. Pass
// AllChannels to clear everything.
func (s *State) ClearSelection(mask Mask) error {
	if err := s.check("ClearSelection"); err != nil {
		return err
	}
	for i := range s.sel {
		s.sel[i] &^= mask
	}
	s.dirtySel |= mask
	return nil
}

// SelectionCenter returns the mean position of the vertices in any channel
// of mask. ok is false when no vertex matches.
func (s *State) SelectionCenter(mask Mask) (center geom.Vec3, ok bool) {
	if !s.live() {
		return geom.Vec3{}, false
	}
	var members []geom.Vec3
	for i, w := range s.sel {
		if w&mask != 0 {
			members = append(members, s.buf.V[i])
		}
	}
	if len(members) == 0 {
		return geom.Vec3{}, false
	}
	return geom.Mean(members), true
}

// recount refreshes the channel counts of the dirty channels and the total.
// It returns the channels whose count changed.
func (s *State) recount() Mask {
	var fresh [MaxChannels]uint32
	var total uint32
	for _, w := range s.sel {
		if w != 0 {
			total++
		}
		for d := uint32(w & s.dirtySel); d != 0; d &= d - 1 {
			fresh[bits.TrailingZeros32(d)]++
		}
	}
	s.total = total

	var resized Mask
	for _, ch := range s.dirtySel.Channels() {
		if fresh[ch] != s.counts[ch] {
			resized |= ch.Mask()
			s.counts[ch] = fresh[ch]
		}
	}
	return resized
}
