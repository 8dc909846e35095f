package opengl

import (
	"fmt"
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"ssr-engine/scene"
)

// maxAnisotropy caps the filtering level asked of the driver.
const maxAnisotropy = 16

// UploadMesh creates the vertex array, vertex buffer and index buffer for m.
// Uploading an already uploaded mesh is a no-op.
func (r *Renderer) UploadMesh(m *scene.Mesh) error {
	if m.Uploaded() {
		return nil
	}
	if len(m.Vertices) == 0 || len(m.Indices) == 0 {
		return fmt.Errorf("mesh %q has no geometry", m.Name)
	}

	var v scene.Vertex
	stride := int32(unsafe.Sizeof(v))

	m.VAO = r.dev.GenVertexArray()
	r.dev.BindVertexArray(m.VAO)

	m.VBO = r.dev.GenBuffer()
	r.dev.BindBuffer(gl.ARRAY_BUFFER, m.VBO)
	r.dev.BufferData(gl.ARRAY_BUFFER, len(m.Vertices)*int(stride), unsafe.Pointer(&m.Vertices[0]), gl.STATIC_DRAW)

	r.dev.EnableVertexAttribArray(0)
	r.dev.VertexAttribPointer(0, 3, stride, unsafe.Offsetof(v.Position))
	r.dev.EnableVertexAttribArray(1)
	r.dev.VertexAttribPointer(1, 3, stride, unsafe.Offsetof(v.Normal))
	r.dev.EnableVertexAttribArray(2)
	r.dev.VertexAttribPointer(2, 2, stride, unsafe.Offsetof(v.UV))

	m.IBO = r.dev.GenBuffer()
	r.dev.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.IBO)
	r.dev.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(m.Indices)*4, unsafe.Pointer(&m.Indices[0]), gl.STATIC_DRAW)
	m.IndexCount = int32(len(m.Indices))

	r.dev.BindVertexArray(0)
	return nil
}

// ReleaseMesh frees the GPU buffers of m and zeroes its handles.
func (r *Renderer) ReleaseMesh(m *scene.Mesh) {
	if m == nil || !m.Uploaded() {
		return
	}
	r.dev.DeleteBuffer(m.IBO)
	r.dev.DeleteBuffer(m.VBO)
	r.dev.DeleteVertexArray(m.VAO)
	m.VAO, m.VBO, m.IBO, m.IndexCount = 0, 0, 0, 0
}

// UploadTexture uploads an RGBA8 texture with a full mip chain and, when the
// driver supports it, anisotropic filtering.
func (r *Renderer) UploadTexture(t *scene.Texture) error {
	if t == nil {
		return fmt.Errorf("nil texture")
	}
	if t.GLID != 0 {
		return nil
	}
	if t.Width <= 0 || t.Height <= 0 || len(t.Pixels) < t.Width*t.Height*4 {
		return fmt.Errorf("texture %q has no pixel data", t.Name)
	}

	id := r.dev.GenTexture()
	r.dev.BindTexture(0, id)
	r.dev.TexParameteri(gl.TEXTURE_WRAP_S, gl.REPEAT)
	r.dev.TexParameteri(gl.TEXTURE_WRAP_T, gl.REPEAT)
	r.dev.TexParameteri(gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	r.dev.TexParameteri(gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	if aniso := min(r.dev.MaxAnisotropy(), maxAnisotropy); aniso > 1 {
		r.dev.TexParameterf(textureMaxAnisotropy, aniso)
	}
	r.dev.TexImage2D(gl.RGBA8, int32(t.Width), int32(t.Height), gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&t.Pixels[0]))
	r.dev.GenerateMipmap()
	r.dev.BindTexture(0, 0)

	t.GLID = id
	return nil
}

// ReleaseTexture frees a previously uploaded texture and zeroes its GLID.
func (r *Renderer) ReleaseTexture(t *scene.Texture) {
	if t == nil || t.GLID == 0 {
		return
	}
	r.dev.DeleteTexture(t.GLID)
	t.GLID = 0
}
