package opengl

import (
	"fmt"
	"strings"
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"ssr-engine/core"
)

// Anisotropic filtering is an extension in the 4.1 core profile, so the
// generated bindings do not carry its enums.
const (
	textureMaxAnisotropy    = 0x84FE
	maxTextureMaxAnisotropy = 0x84FF
)

// glDevice forwards to the go-gl bindings. It must only be used from the
// goroutine that owns the GL context.
type glDevice struct {
	maxAniso float32
}

// NewDevice loads the OpenGL function pointers and returns a Device backed by
// them. Must be called after the GLFW window context is made current.
func NewDevice() (Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	d := &glDevice{}
	gl.GetFloatv(maxTextureMaxAnisotropy, &d.maxAniso)
	if gl.GetError() != gl.NO_ERROR {
		d.maxAniso = 0
	}
	core.Logger().Info("OpenGL initialized",
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)),
		"max_anisotropy", d.maxAniso)
	return d, nil
}

// ── Framebuffers ─────────────────────────────────────────────────────────────

func (d *glDevice) GenFramebuffer() uint32 {
	var fbo uint32
	gl.GenFramebuffers(1, &fbo)
	return fbo
}

func (d *glDevice) DeleteFramebuffer(fbo uint32) { gl.DeleteFramebuffers(1, &fbo) }

func (d *glDevice) BindFramebuffer(target, fbo uint32) { gl.BindFramebuffer(target, fbo) }

func (d *glDevice) FramebufferTexture2D(attachment, tex uint32) {
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, attachment, gl.TEXTURE_2D, tex, 0)
}

func (d *glDevice) CheckFramebufferStatus() uint32 {
	return gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
}

func (d *glDevice) DrawBuffers(buffers []uint32) {
	if len(buffers) == 0 {
		return
	}
	gl.DrawBuffers(int32(len(buffers)), &buffers[0])
}

func (d *glDevice) DrawBuffer(mode uint32) { gl.DrawBuffer(mode) }

func (d *glDevice) ReadBuffer(mode uint32) { gl.ReadBuffer(mode) }

func (d *glDevice) BlitFramebuffer(srcX0, srcY0, srcX1, srcY1, dstX0, dstY0, dstX1, dstY1 int32, mask, filter uint32) {
	gl.BlitFramebuffer(srcX0, srcY0, srcX1, srcY1, dstX0, dstY0, dstX1, dstY1, mask, filter)
}

// ── Textures ─────────────────────────────────────────────────────────────────

func (d *glDevice) GenTexture() uint32 {
	var tex uint32
	gl.GenTextures(1, &tex)
	return tex
}

func (d *glDevice) DeleteTexture(tex uint32) { gl.DeleteTextures(1, &tex) }

func (d *glDevice) BindTexture(unit, tex uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + unit)
	gl.BindTexture(gl.TEXTURE_2D, tex)
}

func (d *glDevice) TexImage2D(internalFormat int32, width, height int32, format, xtype uint32, pixels unsafe.Pointer) {
	gl.TexImage2D(gl.TEXTURE_2D, 0, internalFormat, width, height, 0, format, xtype, pixels)
}

func (d *glDevice) TexParameteri(pname uint32, param int32) {
	gl.TexParameteri(gl.TEXTURE_2D, pname, param)
}

func (d *glDevice) TexParameterf(pname uint32, param float32) {
	gl.TexParameterf(gl.TEXTURE_2D, pname, param)
}

func (d *glDevice) GenerateMipmap() { gl.GenerateMipmap(gl.TEXTURE_2D) }

func (d *glDevice) MaxAnisotropy() float32 { return d.maxAniso }

// ── State ────────────────────────────────────────────────────────────────────

func (d *glDevice) Viewport(x, y, width, height int32) { gl.Viewport(x, y, width, height) }
func (d *glDevice) ClearColor(r, g, b, a float32) { gl.ClearColor(r, g, b, a) }
func (d *glDevice) Clear(mask uint32) { gl.Clear(mask) }
func (d *glDevice) Enable(capability uint32) { gl.Enable(capability) }
func (d *glDevice) Disable(capability uint32) { gl.Disable(capability) }
func (d *glDevice) CullFace(mode uint32) { gl.CullFace(mode) }
func (d *glDevice) DepthFunc(fn uint32) { gl.DepthFunc(fn) }

// ── Programs ─────────────────────────────────────────────────────────────────

func (d *glDevice) CreateProgram() uint32 { return gl.CreateProgram() }
func (d *glDevice) DeleteProgram(program uint32) { gl.DeleteProgram(program) }
func (d *glDevice) CreateShader(stage uint32) uint32 {
	return gl.CreateShader(stage)
}
func (d *glDevice) DeleteShader(shader uint32) { gl.DeleteShader(shader) }

func (d *glDevice) CompileShader(shader uint32, src string) (bool, string) {
	csrc, free := gl.Strs(src + "\x00")
	gl.ShaderSource(shader, 1, csrc, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(shader, logLen, nil, gl.Str(log))
		return false, strings.TrimRight(log, "\x00")
	}
	return true, ""
}

func (d *glDevice) AttachShader(program, shader uint32) { gl.AttachShader(program, shader) }
func (d *glDevice) DetachShader(program, shader uint32) { gl.DetachShader(program, shader) }

func (d *glDevice) LinkProgram(program uint32) (bool, string) {
	gl.LinkProgram(program)
	return programStatus(program, gl.LINK_STATUS)
}

func (d *glDevice) ValidateProgram(program uint32) (bool, string) {
	gl.ValidateProgram(program)
	return programStatus(program, gl.VALIDATE_STATUS)
}

func programStatus(program, pname uint32) (bool, string) {
	var status int32
	gl.GetProgramiv(program, pname, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(program, logLen, nil, gl.Str(log))
		return false, strings.TrimRight(log, "\x00")
	}
	return true, ""
}

func (d *glDevice) UseProgram(program uint32) { gl.UseProgram(program) }

func (d *glDevice) GetUniformLocation(program uint32, name string) int32 {
	return gl.GetUniformLocation(program, gl.Str(name+"\x00"))
}

func (d *glDevice) Uniform1i(location int32, v int32) { gl.Uniform1i(location, v) }
func (d *glDevice) Uniform1f(location int32, v float32) { gl.Uniform1f(location, v) }
func (d *glDevice) Uniform2f(location int32, x, y float32) {
	gl.Uniform2f(location, x, y)
}
func (d *glDevice) Uniform3f(location int32, x, y, z float32) {
	gl.Uniform3f(location, x, y, z)
}

func (d *glDevice) UniformMatrix4fv(location int32, m *mgl32.Mat4) {
	gl.UniformMatrix4fv(location, 1, false, &m[0])
}

// ── Geometry ─────────────────────────────────────────────────────────────────

func (d *glDevice) GenVertexArray() uint32 {
	var vao uint32
	gl.GenVertexArrays(1, &vao)
	return vao
}

func (d *glDevice) DeleteVertexArray(vao uint32) { gl.DeleteVertexArrays(1, &vao) }
func (d *glDevice) BindVertexArray(vao uint32) { gl.BindVertexArray(vao) }

func (d *glDevice) GenBuffer() uint32 {
	var buf uint32
	gl.GenBuffers(1, &buf)
	return buf
}

func (d *glDevice) DeleteBuffer(buf uint32) { gl.DeleteBuffers(1, &buf) }
func (d *glDevice) BindBuffer(target, buf uint32) { gl.BindBuffer(target, buf) }
func (d *glDevice) EnableVertexAttribArray(i uint32) { gl.EnableVertexAttribArray(i) }

func (d *glDevice) BufferData(target uint32, size int, data unsafe.Pointer, usage uint32) {
	gl.BufferData(target, size, data, usage)
}

func (d *glDevice) VertexAttribPointer(index uint32, size int32, stride int32, offset uintptr) {
	gl.VertexAttribPointer(index, size, gl.FLOAT, false, stride, gl.PtrOffset(int(offset)))
}

func (d *glDevice) DrawElements(count int32) {
	gl.DrawElements(gl.TRIANGLES, count, gl.UNSIGNED_INT, nil)
}
