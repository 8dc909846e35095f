package scene

import "github.com/go-gl/mathgl/mgl32"

// Vertex is the interleaved layout uploaded to the GPU:
// location 0 position, 1 normal, 2 uv.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

// Mesh holds CPU-side vertex/index data and, once uploaded, the GPU buffer
// handles. The handles are owned by whoever uploaded the mesh; the scene only
// keeps them to issue draws and to hand them back on cleanup.
type Mesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32

	// Material holds surface shading properties. If nil, DefaultMaterial() is used.
	Material *Material

	VAO, VBO, IBO uint32
	IndexCount    int32

	bounds      AABB
	boundsValid bool
}

// CreateMeshFromData builds a Mesh with a default material.
func CreateMeshFromData(name string, vertices []Vertex, indices []uint32) *Mesh {
	return &Mesh{
		Name:     name,
		Vertices: vertices,
		Indices:  indices,
		Material: DefaultMaterial(),
	}
}

// Uploaded reports whether GPU buffers exist for the mesh.
func (m *Mesh) Uploaded() bool { return m.VAO != 0 }

// Transform bakes a model matrix into the vertex data. Normals use the
// inverse transpose so non-uniform scales stay correct.
func (m *Mesh) Transform(model mgl32.Mat4) {
	normalMat := model.Mat3().Inv().Transpose()
	m.boundsValid = false
	for i := range m.Vertices {
		v := &m.Vertices[i]
		v.Position = model.Mul4x1(v.Position.Vec4(1)).Vec3()
		if n := normalMat.Mul3x1(v.Normal); n.Len() > 0 {
			v.Normal = n.Normalize()
		}
	}
}
