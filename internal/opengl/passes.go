package opengl

import (
	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"ssr-engine/core"
	"ssr-engine/scene"
)

// usable reports whether a pass can run: its target is complete and its
// program linked at least once.
func usable(fb *Framebuffer, p *Program) bool {
	return fb != nil && fb.Complete() && p.Usable()
}

// ── Geometry ─────────────────────────────────────────────────────────────────

// frontFacePass fills the front-face buffer with view-space position and
// normal, lit color and shininess for the nearest surfaces.
func (r *Renderer) frontFacePass(s *scene.State) int {
	prog := r.shaders.Program(programGeometry)
	if !usable(r.frontFace, prog) {
		return 0
	}
	c := r.opts.ClearColor
	r.frontFace.BindForDraw()
	r.dev.ClearColor(c.R, c.G, c.B, c.A)
	r.dev.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	r.dev.Enable(gl.DEPTH_TEST)
	r.dev.Enable(gl.CULL_FACE)
	r.dev.CullFace(gl.BACK)

	prog.Bind()
	r.uploadLights(prog, s)
	culled := r.drawGeometry(prog, s)
	prog.Unbind()
	return culled
}

// backFacePass records the depth of the far side of every object, which the
// reflection pass uses to tell whether a ray passes behind geometry.
func (r *Renderer) backFacePass(s *scene.State) {
	prog := r.shaders.Program(programGeometry)
	if !usable(r.backFace, prog) {
		return
	}
	r.backFace.BindForDraw()
	r.dev.Clear(gl.DEPTH_BUFFER_BIT)
	r.dev.Enable(gl.DEPTH_TEST)
	r.dev.CullFace(gl.FRONT)

	// Every mesh sets its own material, so alpha cutouts match the front pass.
	prog.Bind()
	r.drawGeometry(prog, s)
	prog.Unbind()

	r.dev.CullFace(gl.BACK)
}

// uploadLights sets the first MaxPointLights lights in view space.
func (r *Renderer) uploadLights(prog *Program, s *scene.State) {
	lights := scene.VisibleLights(s.Lights)
	view := s.Camera.View
	for i, l := range lights {
		names := r.lights[i]
		prog.SetVec3(names.position, view.Mul4x1(l.Position.Vec4(1)).Vec3())
		prog.SetFloat(names.radius, l.Radius)
		prog.SetVec3(names.color, l.Color)
	}
	prog.SetInt("numberOfPointLights", int32(len(lights)))
}

// drawGeometry draws static meshes with an identity model matrix, then
// every entity with its placement. Meshes outside the view frustum are
// skipped; the count of skipped meshes is returned.
func (r *Renderer) drawGeometry(prog *Program, s *scene.State) int {
	view, proj := s.Camera.View, s.Camera.Proj
	frustum := scene.FrustumFromMatrix(proj.Mul4(view))
	culled := 0

	ident := mgl32.Ident4()
	for _, m := range s.Static {
		if !frustum.Visible(m, nil) {
			culled++
			continue
		}
		r.drawMesh(prog, m, &ident, &view, &proj)
	}
	for _, e := range s.Entities {
		model := e.Model()
		for _, m := range s.EntityMeshes(e) {
			if !frustum.Visible(m, &model) {
				culled++
				continue
			}
			r.drawMesh(prog, m, &model, &view, &proj)
		}
	}
	r.dev.BindVertexArray(0)
	return culled
}

func (r *Renderer) drawMesh(prog *Program, m *scene.Mesh, model, view, proj *mgl32.Mat4) {
	if !m.Uploaded() {
		return
	}
	r.applyMaterial(prog, m.Material)
	mv := view.Mul4(*model)
	mvp := proj.Mul4(mv)
	prog.SetMat4("MV", &mv)
	prog.SetMat4("MVP", &mvp)

	r.dev.BindVertexArray(m.VAO)
	r.dev.DrawElements(m.IndexCount)
}

func (r *Renderer) applyMaterial(prog *Program, mat *scene.Material) {
	if mat == nil {
		mat = r.defaultMaterial
	}
	prog.SetVec3("material.ambient", mat.Ambient)
	prog.SetVec3("material.diffuse", mat.Diffuse)
	prog.SetVec3("material.specular", mat.Specular)
	prog.SetFloat("material.shininess", mat.Shininess)
	prog.SetBool("emitting", mat.Emitting)

	for unit, t := range []struct {
		uniform string
		has     bool
		tex     *scene.Texture
	}{
		{"hasDiffuseTexture", mat.HasDiffuseTexture(), mat.DiffuseTexture},
		{"hasNormalTexture", mat.HasNormalTexture(), mat.NormalTexture},
		{"hasSpecularTexture", mat.HasSpecularTexture(), mat.SpecularTexture},
	} {
		// Only textures that made it to the GPU count.
		present := t.has && t.tex.GLID != 0
		prog.SetBool(t.uniform, present)
		if present {
			r.dev.BindTexture(uint32(unit), t.tex.GLID)
		}
	}
}

// ── Screen-space passes ──────────────────────────────────────────────────────

func (r *Renderer) drawPlane() {
	if r.plane == nil || !r.plane.Uploaded() {
		return
	}
	r.dev.BindVertexArray(r.plane.VAO)
	r.dev.DrawElements(r.plane.IndexCount)
	r.dev.BindVertexArray(0)
}

// screenProjection maps view space to pixel coordinates of a width×height
// target: clip space is scaled and offset into [0,1] and then into pixels.
func screenProjection(proj mgl32.Mat4, width, height int) mgl32.Mat4 {
	return mgl32.Scale3D(float32(width), float32(height), 1).
		Mul4(mgl32.Translate3D(0.5, 0.5, 0)).
		Mul4(mgl32.Scale3D(0.5, 0.5, 1)).
		Mul4(proj)
}

// reflectionPass ray-marches every reflective pixel through the depth
// buffers and looks the hit up in the previous frame's output.
func (r *Renderer) reflectionPass(s *scene.State) {
	prog := r.shaders.Program(programSSR)
	if !usable(r.reflection, prog) || !r.frontFace.Complete() {
		return
	}
	r.reflection.BindForDraw()
	r.dev.ClearColor(0, 0, 0, 0)
	r.dev.Clear(gl.COLOR_BUFFER_BIT)
	r.dev.Disable(gl.DEPTH_TEST)

	prog.Bind()
	r.dev.BindTexture(0, r.frontFace.ColorTexture(attachPosition))
	r.dev.BindTexture(1, r.frontFace.ColorTexture(attachNormal))
	r.dev.BindTexture(2, r.lastFrame.ColorTexture(0))
	r.dev.BindTexture(3, r.frontFace.ColorTexture(attachShininess))
	r.dev.BindTexture(4, r.frontFace.DepthTexture())
	r.dev.BindTexture(5, r.backFace.DepthTexture())

	cam := s.Camera
	proj := screenProjection(cam.Proj, r.width, r.height)
	prog.SetMat4("proj", &proj)
	prog.SetMat4("toPrevFramePos", &cam.ToPrevFramePos)
	prog.SetVec2("clippingPlanes", cam.NearPlane, cam.FarPlane)
	r.drawPlane()
	prog.Unbind()
}

// blurPass smooths the reflection with a separable blur, horizontally into
// the temp buffer and vertically back. The debug view keeps a copy of the
// raw reflection first.
func (r *Renderer) blurPass(debug bool) {
	if debug {
		r.snapshotReflection()
	}
	prog := r.shaders.Program(programBlur)
	if !usable(r.temp, prog) || !r.reflection.Complete() {
		return
	}
	r.dev.Disable(gl.DEPTH_TEST)
	prog.Bind()

	r.temp.BindForDraw()
	r.dev.BindTexture(0, r.reflection.ColorTexture(0))
	prog.SetVec2("blurDirection", 1, 0)
	r.drawPlane()

	r.reflection.BindForDraw()
	r.dev.BindTexture(0, r.temp.ColorTexture(0))
	prog.SetVec2("blurDirection", 0, 1)
	r.drawPlane()

	prog.Unbind()
}

func (r *Renderer) snapshotReflection() {
	if r.reflection == nil || !r.reflection.Complete() {
		return
	}
	if r.debugSnapshot == nil {
		fb, err := newTarget(r.dev, "debug-snapshot", r.width, r.height, false, FormatRGBA16F)
		if err != nil {
			core.Logger().Warn("debug snapshot unavailable", "err", err)
		}
		r.debugSnapshot = fb
	}
	if !r.debugSnapshot.Complete() {
		return
	}
	r.reflection.Blit(0, r.debugSnapshot, 0, r.reflection.Rect(), r.debugSnapshot.Rect())
}

// compositePass blends the blurred reflection over the unreflected color into
// the last-frame buffer, which the next frame's reflection pass samples.
func (r *Renderer) compositePass() {
	prog := r.shaders.Program(programResult)
	if !usable(r.lastFrame, prog) || !r.frontFace.Complete() || !r.reflection.Complete() {
		return
	}
	r.lastFrame.BindForDraw()
	r.dev.Clear(gl.COLOR_BUFFER_BIT)
	r.dev.Disable(gl.DEPTH_TEST)

	prog.Bind()
	r.dev.BindTexture(0, r.frontFace.ColorTexture(attachColor))
	r.dev.BindTexture(1, r.reflection.ColorTexture(0))
	r.drawPlane()
	prog.Unbind()

	r.dev.Enable(gl.DEPTH_TEST)
}

// present copies the final image to the window. The debug view instead shows
// four quadrants: unreflected color top left, raw reflection top right,
// shininess bottom left and blurred reflection bottom right.
func (r *Renderer) present(width, height int, debug bool) {
	BindDefaultForDraw(r.dev, width, height)
	r.dev.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	screen := core.Rect{Width: int32(width), Height: int32(height)}

	if !debug {
		if r.lastFrame != nil && r.lastFrame.Complete() {
			r.lastFrame.Blit(0, nil, 0, r.lastFrame.Rect(), screen)
		}
		return
	}

	quads := []struct {
		fb  *Framebuffer
		idx int
	}{
		{r.frontFace, attachColor},
		{r.debugSnapshot, 0},
		{r.frontFace, attachShininess},
		{r.reflection, 0},
	}
	for i, q := range quads {
		if q.fb == nil || !q.fb.Complete() {
			continue
		}
		q.fb.Blit(q.idx, nil, 0, q.fb.Rect(), screen.Quadrant(i))
	}
}
