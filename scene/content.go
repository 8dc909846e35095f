package scene

import (
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"

	"ssr-engine/core"
)

// definitions maps scene names to the functions that populate them.
var definitions = map[string]func(*builder){
	"hallway": hallway,
	"street":  street,
}

type builder struct {
	state    *State
	assetDir string
	errs     []error
}

// static loads a model whose vertices are already in world space.
func (b *builder) static(rel string) {
	meshes, ok := b.load(rel)
	if ok {
		b.state.Static = append(b.state.Static, meshes...)
	}
}

func (b *builder) staticMesh(m *Mesh, mat *Material, model mgl32.Mat4) {
	m.Transform(model)
	m.Material = mat
	b.state.Static = append(b.state.Static, m)
}

func (b *builder) entity(name string, meshes []*Mesh, pos mgl32.Vec3, rot mgl32.Quat, scale float32) {
	if _, err := b.state.AddEntity(name, meshes, pos, rot, scale); err != nil {
		b.errs = append(b.errs, err)
	}
}

// entityModel loads a model and places it; a missing file only logs.
func (b *builder) entityModel(name, rel string, pos mgl32.Vec3, rot mgl32.Quat, scale float32) {
	if meshes, ok := b.load(rel); ok {
		b.entity(name, meshes, pos, rot, scale)
	}
}

func (b *builder) light(pos mgl32.Vec3, radius float32, color mgl32.Vec3) {
	b.state.Lights = append(b.state.Lights, PointLight{Position: pos, Radius: radius, Color: color})
}

func (b *builder) load(rel string) ([]*Mesh, bool) {
	path := filepath.Join(b.assetDir, rel)
	meshes, err := LoadModel(path)
	if err != nil {
		core.Logger().Warn("model not loaded", "scene", b.state.Name, "path", path, "err", err)
		return nil, false
	}
	return meshes, true
}

func yawQuat(deg float32) mgl32.Quat {
	return mgl32.QuatRotate(mgl32.DegToRad(deg), mgl32.Vec3{0, 1, 0})
}

var white = mgl32.Vec3{1, 1, 1}

// hallway is a long corridor with a polished floor lit by a row of ceiling
// lights. The optional interior model replaces the procedural walls' look.
func hallway(b *builder) {
	b.static("hallway/hallway.obj")

	floor := NewMaterial("HallFloor", mgl32.Vec3{0.35, 0.35, 0.38}, 96)
	floor.Specular = mgl32.Vec3{0.9, 0.9, 0.9}
	wall := NewMaterial("HallWall", mgl32.Vec3{0.7, 0.68, 0.62}, 4)
	ceiling := NewMaterial("HallCeiling", mgl32.Vec3{0.5, 0.5, 0.52}, 2)

	b.staticMesh(CreateGround(100, 16, 2), floor, mgl32.Ident4())
	b.staticMesh(CreateBox(100, 9, 0.5), wall, mgl32.Translate3D(0, 4.5, -8.25))
	b.staticMesh(CreateBox(100, 9, 0.5), wall, mgl32.Translate3D(0, 4.5, 8.25))
	b.staticMesh(CreateBox(100, 0.5, 16), ceiling, mgl32.Translate3D(0, 9.25, 0))

	b.entityModel("stall", "hallway/stall.obj", mgl32.Vec3{6, 0, -5}, yawQuat(90), 1)

	chrome := NewMaterial("Chrome", mgl32.Vec3{0.8, 0.8, 0.85}, 128)
	chrome.Specular = white
	sphere := CreateSphere(1, 32, 16)
	sphere.Material = chrome
	b.entity("sphere", []*Mesh{sphere}, mgl32.Vec3{-4, 1.5, -3}, mgl32.QuatIdent(), 1.5)

	crate := NewMaterial("Crate", mgl32.Vec3{0.55, 0.35, 0.2}, 16)
	for i, x := range []float32{-20, -11, 9, 22} {
		box := CreateBox(2, 2, 2)
		box.Material = crate
		b.entity("crate", []*Mesh{box}, mgl32.Vec3{x, 1, 4}, yawQuat(float32(i) * 25), 1)
	}

	for i := 0; i < 10; i++ {
		b.light(mgl32.Vec3{-41 + float32(i)*9.1, 7.5, 0}, 15, white)
	}
	b.light(mgl32.Vec3{18.2, 5.5, -13.8}, 15, white)
}

// street is a wet road between two rows of buildings. It has more lamps than
// the renderer uploads, so the far end of the street stays dark.
func street(b *builder) {
	b.static("street/street.gltf")

	road := NewMaterial("WetAsphalt", mgl32.Vec3{0.12, 0.12, 0.13}, 128)
	road.Specular = white
	pavement := NewMaterial("Pavement", mgl32.Vec3{0.45, 0.44, 0.42}, 8)
	b.staticMesh(CreateGround(12, 200, 4), road, mgl32.Ident4())
	b.staticMesh(CreateBox(6, 0.3, 200), pavement, mgl32.Translate3D(-9, 0.15, 0))
	b.staticMesh(CreateBox(6, 0.3, 200), pavement, mgl32.Translate3D(9, 0.15, 0))

	facades := []mgl32.Vec3{{0.6, 0.3, 0.25}, {0.3, 0.35, 0.5}, {0.55, 0.55, 0.5}}
	for i := 0; i < 8; i++ {
		z := -90 + float32(i)*25
		h := 12 + float32(i%3)*6
		mat := NewMaterial("Facade", facades[i%len(facades)], 6)
		for _, x := range []float32{-18, 18} {
			b.staticMesh(CreateBox(12, h, 20), mat, mgl32.Translate3D(x, h/2, z))
		}
	}

	lamp := NewMaterial("Lamp", mgl32.Vec3{1, 0.85, 0.6}, 1)
	lamp.Emitting = true
	post := NewMaterial("LampPost", mgl32.Vec3{0.1, 0.1, 0.1}, 32)
	warm := mgl32.Vec3{1, 0.8, 0.55}
	for i := 0; i < 16; i++ {
		z := 20 - float32(i)*12
		x := float32(-6.5)
		if i%2 == 1 {
			x = 6.5
		}
		pole := CreateBox(0.2, 6, 0.2)
		pole.Material = post
		bulb := CreateSphere(0.35, 16, 8)
		bulb.Transform(mgl32.Translate3D(0, 3.2, 0))
		bulb.Material = lamp
		b.entity("lamp", []*Mesh{pole, bulb}, mgl32.Vec3{x, 3, z}, mgl32.QuatIdent(), 1)
		b.light(mgl32.Vec3{x, 6.2, z}, 14, warm)
	}

	b.entityModel("car", "street/car.glb", mgl32.Vec3{2.5, 0, -10}, yawQuat(180), 1)
}
