package mesh

import (
	"github.com/chewxy/math32"

	"github.com/chazu/meshedit/pkg/geom"
)

// TranslateAll moves every vertex by delta.
func (s *State) TranslateAll(delta geom.Vec3) error {
	const op = "TranslateAll"
	if err := s.check(op); err != nil {
		return err
	}
	if !delta.IsFinite() {
		return invalidArgument(op, "delta %v is not finite", delta)
	}
	for i := range s.buf.V {
		s.buf.V[i] = s.buf.V[i].Add(delta)
	}
	s.positionsMoved(len(s.buf.V))
	return nil
}

// TranslateSelection moves the vertices in any channel of mask by delta.
func (s *State) TranslateSelection(delta geom.Vec3, mask Mask) error {
	const op = "TranslateSelection"
	if err := s.check(op); err != nil {
		return err
	}
	if !delta.IsFinite() {
		return invalidArgument(op, "delta %v is not finite", delta)
	}
	moved := 0
	for i, w := range s.sel {
		if w&mask != 0 {
			s.buf.V[i] = s.buf.V[i].Add(delta)
			moved++
		}
	}
	s.positionsMoved(moved)
	return nil
}

// TransformSelection applies v' = R(scale*(v-pivot)) + pivot + translation
// to the vertices in any channel of mask. rotation is normalized first.
func (s *State) TransformSelection(translation geom.Vec3, scale float32, rotation geom.Quaternion, pivot geom.Vec3, mask Mask) error {
	const op = "TransformSelection"
	if err := s.check(op); err != nil {
		return err
	}
	if !translation.IsFinite() || !pivot.IsFinite() || math32.IsNaN(scale) || math32.IsInf(scale, 0) {
		return invalidArgument(op, "non-finite transform")
	}
	rotation = rotation.Normalize()
	moved := 0
	for i, w := range s.sel {
		if w&mask == 0 {
			continue
		}
		local := s.buf.V[i].Sub(pivot).Scale(scale)
		s.buf.V[i] = rotation.Rotate(local).Add(pivot).Add(translation)
		moved++
	}
	s.positionsMoved(moved)
	return nil
}

func (s *State) positionsMoved(n int) {
	if n == 0 {
		return
	}
	s.dirty |= PositionsChanged
	s.boundary.conditionsStale = true
}
