package scene

import "github.com/go-gl/mathgl/mgl32"

// MaxPointLights bounds the per-frame light upload. Scenes may hold more;
// only the first MaxPointLights in insertion order are rendered.
const MaxPointLights = 11

type PointLight struct {
	Position mgl32.Vec3
	Radius   float32
	Color    mgl32.Vec3
}

// VisibleLights returns the lights that fit in the upload, in order.
func VisibleLights(lights []PointLight) []PointLight {
	if len(lights) > MaxPointLights {
		return lights[:MaxPointLights]
	}
	return lights
}
