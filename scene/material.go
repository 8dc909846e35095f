package scene

import "github.com/go-gl/mathgl/mgl32"

// Material describes surface appearance for the diffuse/specular/shininess
// lighting model. Shininess also drives how mirror-like the surface is in the
// reflection pass. Textures are optional; a nil texture means "absent".
type Material struct {
	Name      string
	Ambient   mgl32.Vec3
	Diffuse   mgl32.Vec3
	Specular  mgl32.Vec3
	Shininess float32

	// Emitting materials skip lighting and output their diffuse color.
	Emitting bool

	DiffuseTexture  *Texture
	NormalTexture   *Texture
	SpecularTexture *Texture
}

// DefaultMaterial returns a plain white matte material.
func DefaultMaterial() *Material {
	return &Material{
		Name:      "Default",
		Ambient:   mgl32.Vec3{0.1, 0.1, 0.1},
		Diffuse:   mgl32.Vec3{1, 1, 1},
		Specular:  mgl32.Vec3{0.3, 0.3, 0.3},
		Shininess: 8,
	}
}

// NewMaterial creates a material with the given diffuse color and shininess.
func NewMaterial(name string, diffuse mgl32.Vec3, shininess float32) *Material {
	return &Material{
		Name:      name,
		Ambient:   diffuse.Mul(0.1),
		Diffuse:   diffuse,
		Specular:  mgl32.Vec3{0.5, 0.5, 0.5},
		Shininess: shininess,
	}
}

func (m *Material) HasDiffuseTexture() bool  { return m.DiffuseTexture != nil }
func (m *Material) HasNormalTexture() bool   { return m.NormalTexture != nil }
func (m *Material) HasSpecularTexture() bool { return m.SpecularTexture != nil }

// Textures lists the material's non-nil textures.
func (m *Material) Textures() []*Texture {
	var out []*Texture
	for _, t := range []*Texture{m.DiffuseTexture, m.NormalTexture, m.SpecularTexture} {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}
