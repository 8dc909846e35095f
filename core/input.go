package core

// Key identifies one of the keys the engine reacts to.
type Key int

const (
	KeyW Key = iota
	KeyA
	KeyS
	KeyD
	KeyQ
	KeyE
	Key1
	Key2
	KeyF1
	KeyEscape
	KeyCount
)

// Button is the state of a key or mouse button for one frame.
type Button struct {
	IsDown  bool
	WasDown bool
}

// Pressed reports a down transition this frame.
func (b Button) Pressed() bool { return b.IsDown && !b.WasDown }

// Released reports an up transition this frame.
func (b Button) Released() bool { return !b.IsDown && b.WasDown }

// Mouse holds the cursor state for one frame. Rel* values are normalised to
// the window size (0..1) with Y pointing up.
type Mouse struct {
	Left, Right, Middle Button

	X, Y   float64
	DX, DY float64

	RelX, RelY   float32
	RelDX, RelDY float32
}

// Input is the raw input snapshot handed to scene updates.
type Input struct {
	Keys  [KeyCount]Button
	Mouse Mouse
}

// Down reports whether k is held.
func (in *Input) Down(k Key) bool {
	if k < 0 || k >= KeyCount {
		return false
	}
	return in.Keys[k].IsDown
}

// Pressed reports whether k went down this frame.
func (in *Input) Pressed(k Key) bool {
	if k < 0 || k >= KeyCount {
		return false
	}
	return in.Keys[k].Pressed()
}

// Advance builds the next snapshot from current key/button levels and the
// cursor position, carrying this snapshot's state into the WasDown fields.
// width and height are the window size used for normalisation.
func (in *Input) Advance(keys [KeyCount]bool, left, right, middle bool, x, y float64, width, height int) Input {
	next := Input{}
	for i := range next.Keys {
		next.Keys[i] = Button{IsDown: keys[i], WasDown: in.Keys[i].IsDown}
	}
	next.Mouse.Left = Button{IsDown: left, WasDown: in.Mouse.Left.IsDown}
	next.Mouse.Right = Button{IsDown: right, WasDown: in.Mouse.Right.IsDown}
	next.Mouse.Middle = Button{IsDown: middle, WasDown: in.Mouse.Middle.IsDown}

	next.Mouse.X, next.Mouse.Y = x, y
	next.Mouse.DX = x - in.Mouse.X
	next.Mouse.DY = y - in.Mouse.Y

	if width > 0 && height > 0 {
		next.Mouse.RelX = float32(x / float64(width))
		next.Mouse.RelY = float32((float64(height) - y) / float64(height))
		next.Mouse.RelDX = next.Mouse.RelX - in.Mouse.RelX
		next.Mouse.RelDY = next.Mouse.RelY - in.Mouse.RelY
	}
	return next
}
