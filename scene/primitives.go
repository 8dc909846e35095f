package scene

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// CreateScreenQuad returns a plane covering clip space in XY, used to drive
// full-screen passes. UVs run 0..1 with (0,0) at the lower left.
func CreateScreenQuad() *Mesh {
	n := mgl32.Vec3{0, 0, 1}
	vertices := []Vertex{
		{Position: mgl32.Vec3{-1, -1, 0}, Normal: n, UV: mgl32.Vec2{0, 0}},
		{Position: mgl32.Vec3{1, -1, 0}, Normal: n, UV: mgl32.Vec2{1, 0}},
		{Position: mgl32.Vec3{1, 1, 0}, Normal: n, UV: mgl32.Vec2{1, 1}},
		{Position: mgl32.Vec3{-1, 1, 0}, Normal: n, UV: mgl32.Vec2{0, 1}},
	}
	return CreateMeshFromData("ScreenQuad", vertices, []uint32{0, 1, 2, 2, 3, 0})
}

// CreateGround returns a width x depth plane in XZ facing +Y, centred on the
// origin. UVs repeat every tile world units.
func CreateGround(width, depth, tile float32) *Mesh {
	hw, hd := width/2, depth/2
	u, v := width/tile, depth/tile
	up := mgl32.Vec3{0, 1, 0}
	vertices := []Vertex{
		{Position: mgl32.Vec3{-hw, 0, hd}, Normal: up, UV: mgl32.Vec2{0, 0}},
		{Position: mgl32.Vec3{hw, 0, hd}, Normal: up, UV: mgl32.Vec2{u, 0}},
		{Position: mgl32.Vec3{hw, 0, -hd}, Normal: up, UV: mgl32.Vec2{u, v}},
		{Position: mgl32.Vec3{-hw, 0, -hd}, Normal: up, UV: mgl32.Vec2{0, v}},
	}
	return CreateMeshFromData("Ground", vertices, []uint32{0, 1, 2, 2, 3, 0})
}

// CreateBox returns an axis-aligned box with the given full extents and
// outward faces.
func CreateBox(sx, sy, sz float32) *Mesh {
	x, y, z := sx/2, sy/2, sz/2

	type face struct {
		n       mgl32.Vec3
		corners [4]mgl32.Vec3
	}
	faces := []face{
		{mgl32.Vec3{0, 0, 1}, [4]mgl32.Vec3{{-x, -y, z}, {x, -y, z}, {x, y, z}, {-x, y, z}}},
		{mgl32.Vec3{0, 0, -1}, [4]mgl32.Vec3{{x, -y, -z}, {-x, -y, -z}, {-x, y, -z}, {x, y, -z}}},
		{mgl32.Vec3{0, 1, 0}, [4]mgl32.Vec3{{-x, y, z}, {x, y, z}, {x, y, -z}, {-x, y, -z}}},
		{mgl32.Vec3{0, -1, 0}, [4]mgl32.Vec3{{-x, -y, -z}, {x, -y, -z}, {x, -y, z}, {-x, -y, z}}},
		{mgl32.Vec3{1, 0, 0}, [4]mgl32.Vec3{{x, -y, z}, {x, -y, -z}, {x, y, -z}, {x, y, z}}},
		{mgl32.Vec3{-1, 0, 0}, [4]mgl32.Vec3{{-x, -y, -z}, {-x, -y, z}, {-x, y, z}, {-x, y, -z}}},
	}
	uvs := [4]mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

	vertices := make([]Vertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vertices))
		for i, c := range f.corners {
			vertices = append(vertices, Vertex{Position: c, Normal: f.n, UV: uvs[i]})
		}
		indices = append(indices, base, base+1, base+2, base+2, base+3, base)
	}
	return CreateMeshFromData("Box", vertices, indices)
}

// CreateSphere generates a UV-sphere mesh.
func CreateSphere(radius float32, segments, rings int) *Mesh {
	if segments < 3 {
		segments = 3
	}
	if rings < 2 {
		rings = 2
	}

	vertices := make([]Vertex, 0, (rings+1)*(segments+1))
	indices := make([]uint32, 0, rings*segments*6)

	for ring := 0; ring <= rings; ring++ {
		phi := float32(ring) * math32.Pi / float32(rings)
		sinPhi, cosPhi := math32.Sincos(phi)

		for seg := 0; seg <= segments; seg++ {
			theta := float32(seg) * 2 * math32.Pi / float32(segments)
			sinTheta, cosTheta := math32.Sincos(theta)

			normal := mgl32.Vec3{sinPhi * cosTheta, cosPhi, sinPhi * sinTheta}
			vertices = append(vertices, Vertex{
				Position: normal.Mul(radius),
				Normal:   normal,
				UV:       mgl32.Vec2{float32(seg) / float32(segments), float32(ring) / float32(rings)},
			})
		}
	}

	for ring := 0; ring < rings; ring++ {
		for seg := 0; seg < segments; seg++ {
			current := uint32(ring*(segments+1) + seg)
			next := current + uint32(segments+1)

			indices = append(indices, current, current+1, next)
			indices = append(indices, current+1, next+1, next)
		}
	}

	return CreateMeshFromData("Sphere", vertices, indices)
}
