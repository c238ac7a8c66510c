package mesh

import "math/bits"

// MaxChannels is the number of selection channels in a vertex word.
const MaxChannels = 32

// Channel identifies one selection channel, one bit of the per-vertex
// selection word. Valid channels are in [0, MaxChannels).
type Channel uint8

// Mask is a set of channels. It is also the type of the per-vertex
// selection word.
type Mask uint32

// AllChannels selects every channel.
const AllChannels = ^Mask(0)

// Valid reports whether c names an existing channel.
func (c Channel) Valid() bool {
	return c < MaxChannels
}

// Mask returns the single-bit mask of c, or 0 for an invalid channel.
func (c Channel) Mask() Mask {
	if !c.Valid() {
		return 0
	}
	return 1 << c
}

// MaskOf returns the union of the given channels. Invalid channels are
// ignored.
func MaskOf(channels ...Channel) Mask {
	var m Mask
	for _, c := range channels {
		m |= c.Mask()
	}
	return m
}

// Has reports whether c is in m.
func (m Mask) Has(c Channel) bool {
	return m&c.Mask() != 0
}

// Intersects reports whether m and o share a channel.
func (m Mask) Intersects(o Mask) bool {
	return m&o != 0
}

// Count returns the number of channels in m.
func (m Mask) Count() int {
	return bits.OnesCount32(uint32(m))
}

// Channels lists the channels in m in ascending order.
func (m Mask) Channels() []Channel {
	out := make([]Channel, 0, m.Count())
	for w := uint32(m); w != 0; w &= w - 1 {
		out = append(out, Channel(bits.TrailingZeros32(w)))
	}
	return out
}

// below returns the mask of channels [0, n).
func below(n int) Mask {
	if n >= MaxChannels {
		return AllChannels
	}
	return Mask(1)<<n - 1
}
