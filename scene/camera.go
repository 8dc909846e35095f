package scene

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"ssr-engine/core"
)

// Camera is a first-person camera driven by pitch and yaw.
//
// View is recomputed on every Update. Proj changes only when the viewport or
// lens changes. ToPrevFramePos maps a point from this frame's view space back
// into the previous frame's clip space; it assumes the geometry itself did
// not move between the frames, so moving objects will smear in reflections.
type Camera struct {
	Position   mgl32.Vec3
	Pitch, Yaw float32

	// FOV is the vertical field of view in radians.
	FOV       float32
	NearPlane float32
	FarPlane  float32
	Width     int
	Height    int

	View           mgl32.Mat4
	Proj           mgl32.Mat4
	ToPrevFramePos mgl32.Mat4

	prevView mgl32.Mat4
}

// NewCamera returns a camera at pos looking down -Z. A non-positive viewport
// leaves the projection as identity until SetViewport gets a usable size.
func NewCamera(pos mgl32.Vec3, fov, near, far float32, width, height int) *Camera {
	c := &Camera{
		Position:  pos,
		FOV:       fov,
		NearPlane: near,
		FarPlane:  far,
		Proj:      mgl32.Ident4(),
	}
	c.View = ViewMatrix(c.Position, c.Pitch, c.Yaw)
	c.prevView = c.View
	c.SetViewport(width, height)
	c.ToPrevFramePos = c.reprojection()
	return c
}

// SetViewport updates the viewport size and recomputes the projection when
// it changed. It returns false for a zero-area viewport, which is ignored.
func (c *Camera) SetViewport(width, height int) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	if width == c.Width && height == c.Height {
		return true
	}
	c.Width, c.Height = width, height
	c.updateProjection()
	return true
}

// SetLens changes FOV and clip planes and recomputes the projection.
func (c *Camera) SetLens(fov, near, far float32) {
	c.FOV, c.NearPlane, c.FarPlane = fov, near, far
	c.updateProjection()
}

// Aspect returns width/height, or 0 before a viewport is set.
func (c *Camera) Aspect() float32 {
	if c.Height <= 0 {
		return 0
	}
	return float32(c.Width) / float32(c.Height)
}

func (c *Camera) updateProjection() {
	aspect := c.Aspect()
	if aspect == 0 {
		return
	}
	c.Proj = mgl32.Perspective(c.FOV, aspect, c.NearPlane, c.FarPlane)
	c.ToPrevFramePos = c.reprojection()
}

func (c *Camera) reprojection() mgl32.Mat4 {
	return c.Proj.Mul4(c.prevView).Mul4(c.View.Inv())
}

// Rotation is the camera's world orientation: yaw about Y, then pitch about X.
func (c *Camera) Rotation() mgl32.Quat {
	yaw := mgl32.QuatRotate(c.Yaw, mgl32.Vec3{0, 1, 0})
	pitch := mgl32.QuatRotate(c.Pitch, mgl32.Vec3{1, 0, 0})
	return yaw.Mul(pitch)
}

// Update advances the camera by one frame: dragging with the left button
// turns it, W/A/S/D move in the view plane and E/Q move up and down. The
// previous view is kept so ToPrevFramePos can be rebuilt afterwards.
func (c *Camera) Update(in *core.Input, dt, movementSpeed, rotationSpeed float32) {
	c.prevView = c.View

	if in != nil {
		if in.Mouse.Left.IsDown {
			c.Pitch = math32.Mod(c.Pitch+in.Mouse.RelDY*rotationSpeed, 2*math32.Pi)
			c.Yaw = math32.Mod(c.Yaw-in.Mouse.RelDX*rotationSpeed, 2*math32.Pi)
		}

		var change mgl32.Vec3
		if in.Down(core.KeyW) {
			change = change.Add(mgl32.Vec3{0, 0, -1})
		}
		if in.Down(core.KeyS) {
			change = change.Add(mgl32.Vec3{0, 0, 1})
		}
		if in.Down(core.KeyD) {
			change = change.Add(mgl32.Vec3{1, 0, 0})
		}
		if in.Down(core.KeyA) {
			change = change.Add(mgl32.Vec3{-1, 0, 0})
		}
		if in.Down(core.KeyE) {
			change = change.Add(mgl32.Vec3{0, 1, 0})
		}
		if in.Down(core.KeyQ) {
			change = change.Add(mgl32.Vec3{0, -1, 0})
		}
		if change != (mgl32.Vec3{}) {
			world := c.Rotation().Rotate(change)
			c.Position = c.Position.Add(world.Mul(movementSpeed * dt))
		}
	}

	c.View = ViewMatrix(c.Position, c.Pitch, c.Yaw)
	c.ToPrevFramePos = c.reprojection()
}

// ViewMatrix builds the world-to-view transform for an eye at eye rotated by
// yaw about Y and then pitch about X. The rows of the rotation part are the
// camera's right, up and back axes.
func ViewMatrix(eye mgl32.Vec3, pitch, yaw float32) mgl32.Mat4 {
	sp, cp := math32.Sincos(pitch)
	sy, cy := math32.Sincos(yaw)

	x := mgl32.Vec3{cy, 0, -sy}
	y := mgl32.Vec3{sy * sp, cp, cy * sp}
	z := mgl32.Vec3{sy * cp, -sp, cp * cy}

	return mgl32.Mat4{
		x[0], y[0], z[0], 0,
		x[1], y[1], z[1], 0,
		x[2], y[2], z[2], 0,
		-x.Dot(eye), -y.Dot(eye), -z.Dot(eye), 1,
	}
}
