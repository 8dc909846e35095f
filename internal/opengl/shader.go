package opengl

import (
	"fmt"
	"io/fs"
	"time"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"ssr-engine/core"
)

// ReloadResult is the outcome of checking one program for changes.
type ReloadResult int

const (
	// ReloadUnchanged: the sources are not newer than the loaded program.
	ReloadUnchanged ReloadResult = iota
	// ReloadReloaded: a new program was built and replaced the old one.
	ReloadReloaded
	// ReloadFailed: the sources changed but did not build; the previous
	// program, if any, stays in use.
	ReloadFailed
)

func (r ReloadResult) String() string {
	switch r {
	case ReloadUnchanged:
		return "unchanged"
	case ReloadReloaded:
		return "reloaded"
	case ReloadFailed:
		return "failed"
	}
	return fmt.Sprintf("ReloadResult(%d)", int(r))
}

// Sampler binds a sampler uniform to a fixed texture unit.
type Sampler struct {
	Name string
	Unit int32
}

// ProgramSpec describes where a program's sources live and which uniforms
// the renderer sets on it. Either Path names a multi-section file, or
// Vertex and Fragment (and optionally Geometry) name one file per stage.
type ProgramSpec struct {
	Name     string
	Path     string
	Vertex   string
	Fragment string
	Geometry string
	Uniforms []string
	Samplers []Sampler
}

func (s ProgramSpec) files() []string {
	if s.Path != "" {
		return []string{s.Path}
	}
	var out []string
	for _, f := range []string{s.Vertex, s.Fragment, s.Geometry} {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Program is one linked shader program plus its uniform table. The table
// is rebuilt after every successful relink.
type Program struct {
	dev  Device
	spec ProgramSpec

	id     uint32
	stages []uint32

	attempted bool
	modTime   time.Time
	deps      []string
	statErr   string
	uniforms  map[string]int32
}

func (p *Program) Name() string { return p.spec.Name }
func (p *Program) ID() uint32   { return p.id }

// Usable reports whether a linked program exists.
func (p *Program) Usable() bool { return p.id != 0 }

func (p *Program) Bind()   { p.dev.UseProgram(p.id) }
func (p *Program) Unbind() { p.dev.UseProgram(0) }

// Uniform returns the location of name, or -1 if the program does not use it
// or it was not declared in the spec.
func (p *Program) Uniform(name string) int32 {
	if loc, ok := p.uniforms[name]; ok {
		return loc
	}
	return -1
}

func (p *Program) SetInt(name string, v int32) {
	if loc := p.Uniform(name); loc >= 0 {
		p.dev.Uniform1i(loc, v)
	}
}

func (p *Program) SetBool(name string, v bool) {
	var i int32
	if v {
		i = 1
	}
	p.SetInt(name, i)
}

func (p *Program) SetFloat(name string, v float32) {
	if loc := p.Uniform(name); loc >= 0 {
		p.dev.Uniform1f(loc, v)
	}
}

func (p *Program) SetVec2(name string, x, y float32) {
	if loc := p.Uniform(name); loc >= 0 {
		p.dev.Uniform2f(loc, x, y)
	}
}

func (p *Program) SetVec3(name string, v mgl32.Vec3) {
	if loc := p.Uniform(name); loc >= 0 {
		p.dev.Uniform3f(loc, v[0], v[1], v[2])
	}
}

func (p *Program) SetMat4(name string, m *mgl32.Mat4) {
	if loc := p.Uniform(name); loc >= 0 {
		p.dev.UniformMatrix4fv(loc, m)
	}
}

// Destroy detaches and deletes the stages and the program.
func (p *Program) Destroy() {
	deleteProgram(p.dev, p.id, p.stages)
	p.id, p.stages = 0, nil
	p.uniforms = nil
}

func deleteProgram(dev Device, id uint32, stages []uint32) {
	for _, sh := range stages {
		if id != 0 {
			dev.DetachShader(id, sh)
		}
		dev.DeleteShader(sh)
	}
	if id != 0 {
		dev.DeleteProgram(id)
	}
}

// resolve rebuilds the uniform table and reapplies sampler units.
func (p *Program) resolve() {
	p.uniforms = make(map[string]int32, len(p.spec.Uniforms)+len(p.spec.Samplers))
	for _, name := range p.spec.Uniforms {
		p.uniforms[name] = p.dev.GetUniformLocation(p.id, name)
	}
	p.dev.UseProgram(p.id)
	for _, s := range p.spec.Samplers {
		loc := p.dev.GetUniformLocation(p.id, s.Name)
		p.uniforms[s.Name] = loc
		if loc >= 0 {
			p.dev.Uniform1i(loc, s.Unit)
		}
	}
	p.dev.UseProgram(0)
}

// ShaderCache owns a fixed set of programs loaded from fsys and rebuilds each
// one when its source files change on disk.
type ShaderCache struct {
	dev      Device
	fsys     fs.FS
	programs []*Program
}

// NewShaderCache creates one slot per spec. Nothing is compiled until the
// first Reload.
func NewShaderCache(dev Device, fsys fs.FS, specs ...ProgramSpec) *ShaderCache {
	c := &ShaderCache{dev: dev, fsys: fsys}
	for _, s := range specs {
		c.programs = append(c.programs, &Program{dev: dev, spec: s})
	}
	return c
}

func (c *ShaderCache) Len() int { return len(c.programs) }
func (c *ShaderCache) Program(slot int) *Program { return c.programs[slot] }

// Lookup returns the program with the given name, or nil.
func (c *ShaderCache) Lookup(name string) *Program {
	for _, p := range c.programs {
		if p.spec.Name == name {
			return p
		}
	}
	return nil
}

// ReloadAll checks every slot and returns one result per slot.
func (c *ShaderCache) ReloadAll() []ReloadResult {
	out := make([]ReloadResult, len(c.programs))
	for i := range c.programs {
		out[i] = c.Reload(i)
	}
	return out
}

// Reload rebuilds the program in slot if any of its files is newer than the
// last attempt. The new modification time is remembered even when the build
// fails, so a broken file is reported once rather than every frame.
func (c *ShaderCache) Reload(slot int) ReloadResult {
	p := c.programs[slot]
	log := core.Logger().With("program", p.spec.Name)

	mod, err := c.latestModTime(p)
	if err != nil {
		if msg := err.Error(); msg != p.statErr {
			p.statErr = msg
			log.Warn("shader source unavailable", "err", err)
		}
		return ReloadFailed
	}
	p.statErr = ""
	if p.attempted && !mod.After(p.modTime) {
		return ReloadUnchanged
	}
	p.attempted = true
	p.modTime = mod

	src, err := c.sources(p.spec)
	if err != nil {
		log.Warn("shader preprocess failed", "err", err)
		return ReloadFailed
	}
	p.deps = uniqueStrings(src.Files)

	id, stages, err := c.build(src)
	if err != nil {
		log.Warn("shader build failed, keeping previous program", "err", err, "had_previous", p.Usable())
		return ReloadFailed
	}

	deleteProgram(c.dev, p.id, p.stages)
	p.id, p.stages = id, stages
	p.resolve()
	log.Info("shader program loaded", "id", id, "stages", len(stages))
	return ReloadReloaded
}

func (c *ShaderCache) latestModTime(p *Program) (time.Time, error) {
	files := p.spec.files()
	if len(files) == 0 {
		return time.Time{}, fmt.Errorf("no source files")
	}
	var latest time.Time
	for _, f := range files {
		info, err := fs.Stat(c.fsys, f)
		if err != nil {
			return time.Time{}, err
		}
		latest = later(latest, info.ModTime())
	}
	// An include that disappeared is reported by the next preprocess, which
	// only happens once the including file changes.
	for _, f := range p.deps {
		if info, err := fs.Stat(c.fsys, f); err == nil {
			latest = later(latest, info.ModTime())
		}
	}
	return latest, nil
}

func later(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

func (c *ShaderCache) sources(s ProgramSpec) (Sources, error) {
	if s.Path != "" {
		return Preprocess(c.fsys, s.Path)
	}
	return PreprocessFiles(c.fsys, s.Vertex, s.Fragment, s.Geometry)
}

// build compiles, links and validates a new program. On failure every object
// it created is deleted again.
func (c *ShaderCache) build(src Sources) (uint32, []uint32, error) {
	id := c.dev.CreateProgram()
	var stages []uint32

	for _, st := range []struct {
		kind uint32
		name string
		text string
	}{
		{gl.VERTEX_SHADER, "vertex", src.Vertex},
		{gl.GEOMETRY_SHADER, "geometry", src.Geometry},
		{gl.FRAGMENT_SHADER, "fragment", src.Fragment},
	} {
		if st.text == "" {
			continue
		}
		sh := c.dev.CreateShader(st.kind)
		stages = append(stages, sh)
		if ok, infoLog := c.dev.CompileShader(sh, st.text); !ok {
			deleteUnattached(c.dev, id, stages)
			return 0, nil, fmt.Errorf("compile %s: %s", st.name, infoLog)
		}
	}

	for _, sh := range stages {
		c.dev.AttachShader(id, sh)
	}
	if ok, infoLog := c.dev.LinkProgram(id); !ok {
		deleteProgram(c.dev, id, stages)
		return 0, nil, fmt.Errorf("link: %s", infoLog)
	}
	if ok, infoLog := c.dev.ValidateProgram(id); !ok {
		deleteProgram(c.dev, id, stages)
		return 0, nil, fmt.Errorf("validate: %s", infoLog)
	}
	return id, stages, nil
}

func deleteUnattached(dev Device, id uint32, stages []uint32) {
	for _, sh := range stages {
		dev.DeleteShader(sh)
	}
	dev.DeleteProgram(id)
}

// Destroy deletes every program.
func (c *ShaderCache) Destroy() {
	for _, p := range c.programs {
		p.Destroy()
	}
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
