package core

// Color is a linear RGBA color, such as the clear color.
type Color struct {
	R, G, B, A float32
}

// Rect is an integer pixel rectangle with its origin at the lower left.
type Rect struct {
	X, Y, Width, Height int32
}

// X1 and Y1 return the exclusive upper bounds, the form glBlitFramebuffer takes.
func (r Rect) X1() int32 { return r.X + r.Width }
func (r Rect) Y1() int32 { return r.Y + r.Height }

// Quadrant returns one quarter of r: 0 top-left, 1 top-right,
// 2 bottom-left, 3 bottom-right.
func (r Rect) Quadrant(i int) Rect {
	hw, hh := r.Width/2, r.Height/2
	q := Rect{X: r.X, Y: r.Y, Width: hw, Height: hh}
	if i == 1 || i == 3 {
		q.X += hw
		q.Width = r.Width - hw
	}
	if i == 0 || i == 1 {
		q.Y += hh
		q.Height = r.Height - hh
	}
	return q
}
