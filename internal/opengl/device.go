package opengl

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// Device is the slice of OpenGL the renderer uses. NewDevice returns the
// go-gl implementation; tests substitute a recording fake.
//
// Enum arguments are the gl package constants. Calls that bind a texture
// operate on TEXTURE_2D.
type Device interface {
	// Framebuffers
	GenFramebuffer() uint32
	DeleteFramebuffer(fbo uint32)
	BindFramebuffer(target, fbo uint32)
	FramebufferTexture2D(attachment, tex uint32)
	CheckFramebufferStatus() uint32
	DrawBuffers(buffers []uint32)
	DrawBuffer(mode uint32)
	ReadBuffer(mode uint32)
	BlitFramebuffer(srcX0, srcY0, srcX1, srcY1, dstX0, dstY0, dstX1, dstY1 int32, mask, filter uint32)

	// Textures
	GenTexture() uint32
	DeleteTexture(tex uint32)
	BindTexture(unit uint32, tex uint32)
	TexImage2D(internalFormat int32, width, height int32, format, xtype uint32, pixels unsafe.Pointer)
	TexParameteri(pname uint32, param int32)
	TexParameterf(pname uint32, param float32)
	GenerateMipmap()
	MaxAnisotropy() float32

	// Fixed-function state
	Viewport(x, y, width, height int32)
	ClearColor(r, g, b, a float32)
	Clear(mask uint32)
	Enable(capability uint32)
	Disable(capability uint32)
	CullFace(mode uint32)
	DepthFunc(fn uint32)

	// Programs
	CreateProgram() uint32
	DeleteProgram(program uint32)
	CreateShader(stage uint32) uint32
	DeleteShader(shader uint32)
	// CompileShader uploads src and compiles it, returning the info log on failure.
	CompileShader(shader uint32, src string) (ok bool, log string)
	AttachShader(program, shader uint32)
	DetachShader(program, shader uint32)
	LinkProgram(program uint32) (ok bool, log string)
	ValidateProgram(program uint32) (ok bool, log string)
	UseProgram(program uint32)
	GetUniformLocation(program uint32, name string) int32
	Uniform1i(location int32, v int32)
	Uniform1f(location int32, v float32)
	Uniform2f(location int32, x, y float32)
	Uniform3f(location int32, x, y, z float32)
	UniformMatrix4fv(location int32, m *mgl32.Mat4)

	// Geometry
	GenVertexArray() uint32
	DeleteVertexArray(vao uint32)
	BindVertexArray(vao uint32)
	GenBuffer() uint32
	DeleteBuffer(buf uint32)
	BindBuffer(target, buf uint32)
	BufferData(target uint32, size int, data unsafe.Pointer, usage uint32)
	EnableVertexAttribArray(index uint32)
	VertexAttribPointer(index uint32, size int32, stride int32, offset uintptr)
	DrawElements(count int32)
}
