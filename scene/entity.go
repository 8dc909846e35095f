package scene

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

var ErrEntityRange = errors.New("entity mesh range out of bounds")

// Entity places a contiguous run of the scene's dynamic meshes, [First, Last),
// in the world. A multi-part model becomes one entity.
type Entity struct {
	Name     string
	First    int
	Last     int
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    float32
}

// Model returns translation * scale * rotation.
func (e Entity) Model() mgl32.Mat4 {
	s := e.Scale
	return mgl32.Translate3D(e.Position[0], e.Position[1], e.Position[2]).
		Mul4(mgl32.Scale3D(s, s, s)).
		Mul4(e.Rotation.Mat4())
}

func (e Entity) validate(total int) error {
	if e.First < 0 || e.First > e.Last || e.Last > total {
		return fmt.Errorf("%w: %q [%d, %d) with %d meshes", ErrEntityRange, e.Name, e.First, e.Last, total)
	}
	return nil
}
