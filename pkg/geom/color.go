package geom

// Color is a linear RGBA color. Components are not clamped; additive
// shading may legitimately push them past 1.
type Color struct {
	R, G, B, A float32
}

// Add returns the component-wise sum.
func (c Color) Add(o Color) Color {
	return Color{R: c.R + o.R, G: c.G + o.G, B: c.B + o.B, A: c.A + o.A}
}

// Scale multiplies every component, alpha included, by w.
func (c Color) Scale(w float32) Color {
	return Color{R: c.R * w, G: c.G * w, B: c.B * w, A: c.A * w}
}
