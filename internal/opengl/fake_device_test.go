package opengl

import (
	"strings"
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

type fakeTexture struct {
	internal      int32
	width, height int32
	params        map[uint32]int32
	aniso         float32
	mipmaps       bool
}

type fakeFramebuffer struct {
	attachments map[uint32]uint32
	drawBuffers []uint32
	readBuffer  uint32
}

type drawCall struct {
	fbo     uint32
	program uint32
	vao     uint32
	count   int32
	// material state seen by the draw
	hasDiffuse any
	unit0      uint32
}

type clearCall struct {
	fbo  uint32
	mask uint32
}

type blitCall struct {
	readFBO, drawFBO uint32
	readBuf, drawBuf uint32
	src, dst         [4]int32
	filter           uint32
}

type uniformKey struct {
	program uint32
	name    string
}

// fakeDevice records GL calls so tests can check what the renderer did
// without a context.
type fakeDevice struct {
	next uint32

	drawFBO, readFBO uint32
	activeTex        uint32
	units            map[uint32]uint32
	program          uint32
	vao              uint32

	framebuffers map[uint32]*fakeFramebuffer
	textures     map[uint32]*fakeTexture
	programs     map[uint32]bool
	shaders      map[uint32]uint32
	buffers      map[uint32]int
	vaos         map[uint32]bool

	createdPrograms int
	deletedPrograms int
	deletedShaders  int
	deletedFBOs     int
	deletedTextures int

	// status overrides CheckFramebufferStatus when non-zero.
	status uint32
	// failCompile makes any source containing it fail to compile.
	failCompile string
	failLink    bool
	maxAniso    float32

	// failValidate makes ValidateProgram report an error.
	failValidate bool

	locations   map[uniformKey]int32
	names       map[int32]uniformKey
	missing     map[string]bool
	uniforms    map[string]any
	uniformSets map[string]int

	sources  map[uint32]string
	draws    []drawCall
	clears   []clearCall
	blits    []blitCall
	viewport [4]int32
	enabled  map[uint32]bool
	culls    []uint32
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		units:        map[uint32]uint32{},
		framebuffers: map[uint32]*fakeFramebuffer{},
		textures:     map[uint32]*fakeTexture{},
		programs:     map[uint32]bool{},
		shaders:      map[uint32]uint32{},
		buffers:      map[uint32]int{},
		vaos:         map[uint32]bool{},
		locations:    map[uniformKey]int32{},
		names:        map[int32]uniformKey{},
		missing:      map[string]bool{},
		uniforms:     map[string]any{},
		uniformSets:  map[string]int{},
		sources:      map[uint32]string{},
		enabled:      map[uint32]bool{},
	}
}

func (d *fakeDevice) id() uint32 {
	d.next++
	return d.next
}

// ── Framebuffers ─────────────────────────────────────────────────────────────

func (d *fakeDevice) GenFramebuffer() uint32 {
	id := d.id()
	d.framebuffers[id] = &fakeFramebuffer{attachments: map[uint32]uint32{}}
	return id
}

func (d *fakeDevice) DeleteFramebuffer(fbo uint32) {
	delete(d.framebuffers, fbo)
	d.deletedFBOs++
}

func (d *fakeDevice) BindFramebuffer(target, fbo uint32) {
	switch target {
	case gl.READ_FRAMEBUFFER:
		d.readFBO = fbo
	case gl.DRAW_FRAMEBUFFER:
		d.drawFBO = fbo
	default:
		d.readFBO, d.drawFBO = fbo, fbo
	}
}

func (d *fakeDevice) FramebufferTexture2D(attachment, tex uint32) {
	d.framebuffers[d.drawFBO].attachments[attachment] = tex
}

func (d *fakeDevice) CheckFramebufferStatus() uint32 {
	if d.status != 0 {
		return d.status
	}
	if len(d.framebuffers[d.drawFBO].attachments) == 0 {
		return gl.FRAMEBUFFER_INCOMPLETE_MISSING_ATTACHMENT
	}
	return gl.FRAMEBUFFER_COMPLETE
}

func (d *fakeDevice) DrawBuffers(buffers []uint32) {
	if fb := d.framebuffers[d.drawFBO]; fb != nil {
		fb.drawBuffers = append([]uint32(nil), buffers...)
	}
}

func (d *fakeDevice) DrawBuffer(mode uint32) {
	if fb := d.framebuffers[d.drawFBO]; fb != nil {
		fb.drawBuffers = []uint32{mode}
	}
}

func (d *fakeDevice) ReadBuffer(mode uint32) {
	if fb := d.framebuffers[d.readFBO]; fb != nil {
		fb.readBuffer = mode
	}
}

func (d *fakeDevice) BlitFramebuffer(srcX0, srcY0, srcX1, srcY1, dstX0, dstY0, dstX1, dstY1 int32, mask, filter uint32) {
	call := blitCall{
		readFBO: d.readFBO,
		drawFBO: d.drawFBO,
		src:     [4]int32{srcX0, srcY0, srcX1, srcY1},
		dst:     [4]int32{dstX0, dstY0, dstX1, dstY1},
		filter:  filter,
	}
	if fb := d.framebuffers[d.readFBO]; fb != nil {
		call.readBuf = fb.readBuffer
	}
	if fb := d.framebuffers[d.drawFBO]; fb != nil && len(fb.drawBuffers) == 1 {
		call.drawBuf = fb.drawBuffers[0]
	}
	d.blits = append(d.blits, call)
}

// ── Textures ─────────────────────────────────────────────────────────────────

func (d *fakeDevice) GenTexture() uint32 {
	id := d.id()
	d.textures[id] = &fakeTexture{params: map[uint32]int32{}}
	return id
}

func (d *fakeDevice) DeleteTexture(tex uint32) {
	delete(d.textures, tex)
	d.deletedTextures++
}

func (d *fakeDevice) BindTexture(unit, tex uint32) {
	d.units[unit] = tex
	d.activeTex = tex
}

func (d *fakeDevice) TexImage2D(internalFormat int32, width, height int32, format, xtype uint32, pixels unsafe.Pointer) {
	t := d.textures[d.activeTex]
	t.internal, t.width, t.height = internalFormat, width, height
}

func (d *fakeDevice) TexParameteri(pname uint32, param int32) {
	d.textures[d.activeTex].params[pname] = param
}

func (d *fakeDevice) TexParameterf(pname uint32, param float32) {
	if pname == textureMaxAnisotropy {
		d.textures[d.activeTex].aniso = param
	}
}

func (d *fakeDevice) GenerateMipmap()        { d.textures[d.activeTex].mipmaps = true }
func (d *fakeDevice) MaxAnisotropy() float32 { return d.maxAniso }

// ── State ────────────────────────────────────────────────────────────────────

func (d *fakeDevice) Viewport(x, y, width, height int32) {
	d.viewport = [4]int32{x, y, width, height}
}

func (d *fakeDevice) ClearColor(r, g, b, a float32) {}

func (d *fakeDevice) Clear(mask uint32) {
	d.clears = append(d.clears, clearCall{fbo: d.drawFBO, mask: mask})
}

func (d *fakeDevice) Enable(capability uint32)  { d.enabled[capability] = true }
func (d *fakeDevice) Disable(capability uint32) { d.enabled[capability] = false }
func (d *fakeDevice) CullFace(mode uint32)      { d.culls = append(d.culls, mode) }
func (d *fakeDevice) DepthFunc(fn uint32)       {}

// ── Programs ─────────────────────────────────────────────────────────────────

func (d *fakeDevice) CreateProgram() uint32 {
	id := d.id()
	d.programs[id] = true
	d.createdPrograms++
	return id
}

func (d *fakeDevice) DeleteProgram(program uint32) {
	delete(d.programs, program)
	d.deletedPrograms++
}

func (d *fakeDevice) CreateShader(stage uint32) uint32 {
	id := d.id()
	d.shaders[id] = stage
	return id
}

func (d *fakeDevice) DeleteShader(shader uint32) {
	delete(d.shaders, shader)
	d.deletedShaders++
}

func (d *fakeDevice) CompileShader(shader uint32, src string) (bool, string) {
	d.sources[d.shaders[shader]] = src
	if d.failCompile != "" && strings.Contains(src, d.failCompile) {
		return false, "0:1(1): error: syntax error"
	}
	return true, ""
}

func (d *fakeDevice) AttachShader(program, shader uint32) {}
func (d *fakeDevice) DetachShader(program, shader uint32) {}

func (d *fakeDevice) LinkProgram(program uint32) (bool, string) {
	if d.failLink {
		return false, "link error"
	}
	return true, ""
}

func (d *fakeDevice) ValidateProgram(program uint32) (bool, string) {
	if d.failValidate {
		return false, "validation failed"
	}
	return true, ""
}

func (d *fakeDevice) UseProgram(program uint32) { d.program = program }

// GetUniformLocation hands out a distinct location per program and name.
func (d *fakeDevice) GetUniformLocation(program uint32, name string) int32 {
	if d.missing[name] {
		return -1
	}
	key := uniformKey{program, name}
	if loc, ok := d.locations[key]; ok {
		return loc
	}
	loc := int32(len(d.locations))
	d.locations[key] = loc
	d.names[loc] = key
	return loc
}

func (d *fakeDevice) set(location int32, v any) {
	key, ok := d.names[location]
	if !ok || key.program != d.program {
		panic("uniform set on a location of another program")
	}
	d.uniforms[key.name] = v
	d.uniformSets[key.name]++
}

func (d *fakeDevice) Uniform1i(location int32, v int32)   { d.set(location, v) }
func (d *fakeDevice) Uniform1f(location int32, v float32) { d.set(location, v) }
func (d *fakeDevice) Uniform2f(location int32, x, y float32) {
	d.set(location, mgl32.Vec2{x, y})
}
func (d *fakeDevice) Uniform3f(location int32, x, y, z float32) {
	d.set(location, mgl32.Vec3{x, y, z})
}
func (d *fakeDevice) UniformMatrix4fv(location int32, m *mgl32.Mat4) { d.set(location, *m) }

// ── Geometry ─────────────────────────────────────────────────────────────────

func (d *fakeDevice) GenVertexArray() uint32 {
	id := d.id()
	d.vaos[id] = true
	return id
}

func (d *fakeDevice) DeleteVertexArray(vao uint32) { delete(d.vaos, vao) }
func (d *fakeDevice) BindVertexArray(vao uint32)   { d.vao = vao }

func (d *fakeDevice) GenBuffer() uint32 {
	id := d.id()
	d.buffers[id] = 0
	return id
}

func (d *fakeDevice) DeleteBuffer(buf uint32)          { delete(d.buffers, buf) }
func (d *fakeDevice) BindBuffer(target, buf uint32)    {}
func (d *fakeDevice) EnableVertexAttribArray(i uint32) {}

func (d *fakeDevice) VertexAttribPointer(index uint32, size int32, stride int32, offset uintptr) {}

func (d *fakeDevice) BufferData(target uint32, size int, data unsafe.Pointer, usage uint32) {}

func (d *fakeDevice) DrawElements(count int32) {
	d.draws = append(d.draws, drawCall{
		fbo:        d.drawFBO,
		program:    d.program,
		vao:        d.vao,
		count:      count,
		hasDiffuse: d.uniforms["hasDiffuseTexture"],
		unit0:      d.units[0],
	})
}

// drawsInto counts draw calls issued while fbo was bound.
func (d *fakeDevice) drawsInto(fbo uint32) int {
	n := 0
	for _, c := range d.draws {
		if c.fbo == fbo {
			n++
		}
	}
	return n
}

func (d *fakeDevice) texturesWithFormat(internal int32) int {
	n := 0
	for _, t := range d.textures {
		if t.internal == internal {
			n++
		}
	}
	return n
}

var _ Device = (*fakeDevice)(nil)
