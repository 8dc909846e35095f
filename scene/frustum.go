package scene

import "github.com/go-gl/mathgl/mgl32"

// Plane is the half-space Normal·p + D >= 0. Normal points into the frustum.
type Plane struct {
	Normal mgl32.Vec3
	D      float32
}

// DistanceTo returns the signed distance from pt to the plane, positive on
// the inside.
func (p Plane) DistanceTo(pt mgl32.Vec3) float32 {
	return p.Normal.Dot(pt) + p.D
}

// Frustum holds the six clip planes of a view frustum: left, right, bottom,
// top, near, far.
type Frustum struct {
	Planes [6]Plane
}

// FrustumFromMatrix extracts the planes of m (Gribb/Hartmann). With m =
// proj*view the planes are in world space; with proj alone, in view space.
func FrustumFromMatrix(m mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := m.Row(0), m.Row(1), m.Row(2), m.Row(3)

	var f Frustum
	for i, v := range []mgl32.Vec4{
		r3.Add(r0), r3.Sub(r0),
		r3.Add(r1), r3.Sub(r1),
		r3.Add(r2), r3.Sub(r2),
	} {
		f.Planes[i] = normalizePlane(v)
	}
	return f
}

func normalizePlane(v mgl32.Vec4) Plane {
	n := v.Vec3()
	l := n.Len()
	if l == 0 {
		return Plane{}
	}
	return Plane{Normal: n.Mul(1 / l), D: v[3] / l}
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max mgl32.Vec3
}

// IntersectsFrustum returns false only when the box is entirely outside one
// of the planes. For each plane it tests the corner furthest along the normal.
func (box AABB) IntersectsFrustum(f *Frustum) bool {
	for _, p := range f.Planes {
		var corner mgl32.Vec3
		for axis := 0; axis < 3; axis++ {
			if p.Normal[axis] < 0 {
				corner[axis] = box.Min[axis]
			} else {
				corner[axis] = box.Max[axis]
			}
		}
		if p.DistanceTo(corner) < 0 {
			return false
		}
	}
	return true
}

// Transform returns the box enclosing all eight corners of box under m.
func (box AABB) Transform(m mgl32.Mat4) AABB {
	mn, mx := box.Min, box.Max
	out := AABB{Min: mgl32.Vec3{inf, inf, inf}, Max: mgl32.Vec3{-inf, -inf, -inf}}
	for i := 0; i < 8; i++ {
		c := mn
		if i&1 != 0 {
			c[0] = mx[0]
		}
		if i&2 != 0 {
			c[1] = mx[1]
		}
		if i&4 != 0 {
			c[2] = mx[2]
		}
		out = out.extend(m.Mul4x1(c.Vec4(1)).Vec3())
	}
	return out
}

func (box AABB) extend(p mgl32.Vec3) AABB {
	for axis := 0; axis < 3; axis++ {
		box.Min[axis] = min(box.Min[axis], p[axis])
		box.Max[axis] = max(box.Max[axis], p[axis])
	}
	return box
}

const inf = float32(3.4e38)

// Bounds returns the mesh's bounding box in its own space. It is computed on
// first use and again after Transform.
func (m *Mesh) Bounds() AABB {
	if m.boundsValid {
		return m.bounds
	}
	if len(m.Vertices) == 0 {
		return AABB{}
	}
	box := AABB{Min: m.Vertices[0].Position, Max: m.Vertices[0].Position}
	for _, v := range m.Vertices[1:] {
		box = box.extend(v.Position)
	}
	m.bounds, m.boundsValid = box, true
	return box
}

// Visible reports whether m placed by model can be seen through f.
func (f *Frustum) Visible(m *Mesh, model *mgl32.Mat4) bool {
	box := m.Bounds()
	if model != nil {
		box = box.Transform(*model)
	}
	return box.IntersectsFrustum(f)
}
