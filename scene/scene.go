package scene

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"ssr-engine/core"
)

// Uploader creates and frees the GPU side of meshes and textures. The OpenGL
// renderer implements it; the scene never calls GL itself.
type Uploader interface {
	UploadMesh(m *Mesh) error
	ReleaseMesh(m *Mesh)
	UploadTexture(t *Texture) error
	ReleaseTexture(t *Texture)
}

// Settings holds the per-scene camera defaults and where models live.
type Settings struct {
	AssetDir      string
	FOV           float32 // radians
	Near, Far     float32
	MovementSpeed float32
	RotationSpeed float32
	Start         mgl32.Vec3
}

func DefaultSettings() Settings {
	return Settings{
		AssetDir:      "res",
		FOV:           mgl32.DegToRad(70),
		Near:          0.1,
		Far:           1000,
		MovementSpeed: 10,
		RotationSpeed: 2,
		Start:         mgl32.Vec3{0, 2, 0},
	}
}

// State is everything the render pipeline draws: the camera, lights, static
// world geometry and entities placed from the dynamic mesh list.
type State struct {
	Name   string
	Camera *Camera

	// Static geometry is already in world space.
	Static []*Mesh
	// Meshes is shared by all entities; each entity owns a contiguous range.
	Meshes   []*Mesh
	Entities []Entity
	Lights   []PointLight

	MovementSpeed float32
	RotationSpeed float32
}

// Names lists the scenes New accepts.
func Names() []string {
	names := make([]string, 0, len(definitions))
	for n := range definitions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New builds the named scene and uploads its meshes and textures. Missing
// model files are logged and skipped; only an unknown name or a failed
// upload is returned as an error, and the scene is usable either way.
func New(name string, width, height int, up Uploader, cfg Settings) (*State, error) {
	define, ok := definitions[name]
	if !ok {
		return nil, fmt.Errorf("unknown scene %q (have %s)", name, strings.Join(Names(), ", "))
	}

	s := &State{
		Name:          name,
		Camera:        NewCamera(cfg.Start, cfg.FOV, cfg.Near, cfg.Far, width, height),
		MovementSpeed: cfg.MovementSpeed,
		RotationSpeed: cfg.RotationSpeed,
	}
	b := &builder{state: s, assetDir: cfg.AssetDir}
	define(b)

	err := errors.Join(append(b.errs, s.upload(up))...)
	core.Logger().Info("scene initialized", "scene", name,
		"static", len(s.Static), "meshes", len(s.Meshes),
		"entities", len(s.Entities), "lights", len(s.Lights))
	return s, err
}

// AddEntity appends meshes to the dynamic list and places them as one entity.
func (s *State) AddEntity(name string, meshes []*Mesh, pos mgl32.Vec3, rot mgl32.Quat, scale float32) (Entity, error) {
	first := len(s.Meshes)
	s.Meshes = append(s.Meshes, meshes...)
	return s.PlaceEntity(Entity{
		Name:     name,
		First:    first,
		Last:     len(s.Meshes),
		Position: pos,
		Rotation: rot,
		Scale:    scale,
	})
}

// PlaceEntity adds an entity over meshes already in s.Meshes.
func (s *State) PlaceEntity(e Entity) (Entity, error) {
	if err := e.validate(len(s.Meshes)); err != nil {
		return Entity{}, err
	}
	s.Entities = append(s.Entities, e)
	return e, nil
}

// EntityMeshes returns the meshes an entity draws.
func (s *State) EntityMeshes(e Entity) []*Mesh {
	return s.Meshes[e.First:e.Last]
}

// Update advances the scene by dt seconds of input.
func (s *State) Update(in *core.Input, dt float32) {
	s.Camera.Update(in, dt, s.MovementSpeed, s.RotationSpeed)
}

// Textures returns every distinct texture referenced by the scene's materials.
func (s *State) Textures() []*Texture {
	seen := map[*Texture]bool{}
	var out []*Texture
	for _, list := range [][]*Mesh{s.Static, s.Meshes} {
		for _, m := range list {
			if m.Material == nil {
				continue
			}
			for _, t := range m.Material.Textures() {
				if !seen[t] {
					seen[t] = true
					out = append(out, t)
				}
			}
		}
	}
	return out
}

func (s *State) upload(up Uploader) error {
	if up == nil {
		return nil
	}
	var errs []error
	for _, t := range s.Textures() {
		if err := up.UploadTexture(t); err != nil {
			errs = append(errs, fmt.Errorf("texture %s: %w", t.Name, err))
		}
	}
	for _, list := range [][]*Mesh{s.Static, s.Meshes} {
		for _, m := range list {
			if err := up.UploadMesh(m); err != nil {
				errs = append(errs, fmt.Errorf("mesh %s: %w", m.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Cleanup releases the GPU side of every mesh and texture in the scene.
func (s *State) Cleanup(up Uploader) {
	if up == nil {
		return
	}
	for _, t := range s.Textures() {
		up.ReleaseTexture(t)
	}
	for _, list := range [][]*Mesh{s.Static, s.Meshes} {
		for _, m := range list {
			up.ReleaseMesh(m)
		}
	}
}

// LoadModel loads an OBJ or glTF file based on its extension.
func LoadModel(path string) ([]*Mesh, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return LoadOBJ(path)
	case ".gltf", ".glb":
		return LoadGLTF(path)
	}
	return nil, fmt.Errorf("unsupported model format %q", path)
}
