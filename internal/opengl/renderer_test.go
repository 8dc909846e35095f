package opengl

import (
	"fmt"
	"path/filepath"
	"testing"
	"testing/fstest"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssr-engine/scene"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.ShaderDir = filepath.Join("..", "..", "res", "shaders")
	opts.WatchShaders = false
	return opts
}

func newTestRenderer(t *testing.T, dev *fakeDevice, w, h int) *Renderer {
	t.Helper()
	r := NewRenderer(dev, testOptions())
	require.NoError(t, r.Initialize(w, h))
	return r
}

// testScene is a ground plane with one box entity and n lights in a row.
func testScene(t *testing.T, r *Renderer, w, h, lights int) *scene.State {
	t.Helper()
	s := &scene.State{
		Name:   "test",
		Camera: scene.NewCamera(mgl32.Vec3{0, 2, 6}, mgl32.DegToRad(70), 0.1, 100, w, h),
		Static: []*scene.Mesh{scene.CreateGround(10, 10, 1)},
	}
	_, err := s.AddEntity("box", []*scene.Mesh{scene.CreateBox(1, 1, 1)},
		mgl32.Vec3{0, 0.5, 0}, mgl32.QuatIdent(), 1)
	require.NoError(t, err)
	for i := 0; i < lights; i++ {
		s.Lights = append(s.Lights, scene.PointLight{
			Position: mgl32.Vec3{float32(i) - 8, 3, 0},
			Radius:   10,
			Color:    mgl32.Vec3{1, 0.9, 0.8},
		})
	}
	for _, list := range [][]*scene.Mesh{s.Static, s.Meshes} {
		for _, m := range list {
			require.NoError(t, r.UploadMesh(m))
		}
	}
	return s
}

func internalFormat(dev *fakeDevice, fb *Framebuffer, i int) int32 {
	return dev.textures[fb.ColorTexture(i)].internal
}

func TestInitializeBuildsTargets(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, 800, 600)

	for i := 0; i < r.Shaders().Len(); i++ {
		assert.True(t, r.Shaders().Program(i).Usable(), r.Shaders().Program(i).Name())
	}

	front := r.FrontFace()
	require.True(t, front.Complete())
	assert.Equal(t, 4, front.ColorAttachments())
	assert.Equal(t, int32(gl.RGB32F), internalFormat(dev, front, attachPosition))
	assert.Equal(t, int32(gl.RGB16F), internalFormat(dev, front, attachNormal))
	assert.Equal(t, int32(gl.RGBA8), internalFormat(dev, front, attachColor))
	assert.Equal(t, int32(gl.R16F), internalFormat(dev, front, attachShininess))
	assert.NotZero(t, front.DepthTexture())

	back := r.BackFace()
	require.True(t, back.Complete())
	assert.Equal(t, 400, back.Width())
	assert.Equal(t, 300, back.Height())
	assert.Zero(t, back.ColorAttachments())
	assert.NotZero(t, back.DepthTexture())

	for _, fb := range []*Framebuffer{r.Reflection(), r.Temp()} {
		require.True(t, fb.Complete(), fb.Name())
		assert.Equal(t, int32(gl.RGBA16F), internalFormat(dev, fb, 0), fb.Name())
		assert.Zero(t, fb.DepthTexture(), fb.Name())
	}
	require.True(t, r.LastFrame().Complete())
	assert.Equal(t, int32(gl.RGBA8), internalFormat(dev, r.LastFrame(), 0))

	assert.Nil(t, r.DebugSnapshot(), "created on first debug frame")
	w, h := r.Size()
	assert.Equal(t, [2]int{800, 600}, [2]int{w, h})
}

func TestInitializeWithoutSizeDefersBuffers(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, 0, 0)
	assert.Nil(t, r.FrontFace())

	s := testScene(t, r, 640, 480, 1)
	stats := r.Render(s, 640, 480, false)
	assert.True(t, stats.Resized)
	assert.True(t, r.FrontFace().Complete())
}

func TestBackfaceDivisor(t *testing.T) {
	dev := newFakeDevice()
	opts := testOptions()
	opts.BackfaceDivisor = 1
	r := NewRenderer(dev, opts)
	require.NoError(t, r.Initialize(320, 200))
	assert.Equal(t, 320, r.BackFace().Width())

	opts.BackfaceDivisor = 0
	r = NewRenderer(newFakeDevice(), opts)
	require.NoError(t, r.Initialize(3, 3))
	assert.Equal(t, 3, r.BackFace().Width(), "divisor clamped to 1")

	opts.BackfaceDivisor = 4
	r = NewRenderer(newFakeDevice(), opts)
	require.NoError(t, r.Initialize(3, 3))
	assert.Equal(t, 1, r.BackFace().Width(), "never below one pixel")
}

func TestOnlyFirstElevenLightsUploaded(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, 800, 600)
	s := testScene(t, r, 800, 600, 16)

	r.Render(s, 800, 600, false)

	assert.Equal(t, int32(scene.MaxPointLights), dev.uniforms["numberOfPointLights"])
	assert.Len(t, s.Lights, 16, "scene keeps every light")
	for i := 0; i < scene.MaxPointLights; i++ {
		want := s.Camera.View.Mul4x1(s.Lights[i].Position.Vec4(1)).Vec3()
		assert.Equal(t, want, dev.uniforms[fmt.Sprintf("pointLights[%d].position", i)], "light %d in view space", i)
		assert.Equal(t, float32(10), dev.uniforms[fmt.Sprintf("pointLights[%d].radius", i)])
		assert.Equal(t, mgl32.Vec3{1, 0.9, 0.8}, dev.uniforms[fmt.Sprintf("pointLights[%d].color", i)])
	}
	for i := scene.MaxPointLights; i < 16; i++ {
		assert.NotContains(t, dev.uniforms, fmt.Sprintf("pointLights[%d].position", i))
	}
}

func TestFewerLightsThanSlots(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, 800, 600)
	s := testScene(t, r, 800, 600, 3)

	r.Render(s, 800, 600, false)
	assert.Equal(t, int32(3), dev.uniforms["numberOfPointLights"])
	assert.NotContains(t, dev.uniforms, "pointLights[3].position")
}

func TestResizeRecreatesBuffers(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, 800, 600)
	s := testScene(t, r, 800, 600, 2)

	stats := r.Render(s, 800, 600, false)
	assert.False(t, stats.Resized)
	oldFront := r.FrontFace().fbo
	oldProj := s.Camera.Proj

	stats = r.Render(s, 1280, 720, false)
	assert.True(t, stats.Resized)
	assert.NotEqual(t, oldFront, r.FrontFace().fbo)
	assert.NotContains(t, dev.framebuffers, oldFront)

	for _, fb := range []*Framebuffer{r.FrontFace(), r.Reflection(), r.Temp(), r.LastFrame()} {
		assert.True(t, fb.Complete(), fb.Name())
		assert.Equal(t, 1280, fb.Width(), fb.Name())
		assert.Equal(t, 720, fb.Height(), fb.Name())
	}
	assert.Equal(t, 640, r.BackFace().Width())
	assert.Equal(t, 360, r.BackFace().Height())
	assert.Len(t, dev.textures, 9, "old attachments freed")

	assert.Equal(t, 1280, s.Camera.Width)
	assert.Equal(t, 720, s.Camera.Height)
	newProj := s.Camera.Proj
	assert.NotEqual(t, oldProj[0], newProj[0], "aspect changed")
	for i := 1; i < 16; i++ {
		assert.Equal(t, oldProj[i], newProj[i], "element %d", i)
	}
	assert.Equal(t, screenProjection(newProj, 1280, 720), dev.uniforms["proj"])
	assert.Equal(t, [4]int32{0, 0, 1280, 720}, dev.blits[len(dev.blits)-1].dst)
}

func TestZeroSizedFrameIsSkipped(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, 800, 600)
	s := testScene(t, r, 800, 600, 1)
	proj := s.Camera.Proj
	clears := len(dev.clears)

	for _, size := range [][2]int{{800, 0}, {0, 600}, {0, 0}} {
		stats := r.Render(s, size[0], size[1], false)
		assert.True(t, stats.Skipped)
		assert.False(t, stats.Resized)
	}
	assert.Empty(t, dev.draws)
	assert.Len(t, dev.clears, clears)
	assert.Empty(t, dev.blits)
	assert.Equal(t, 800, r.FrontFace().Width())
	assert.Equal(t, proj, s.Camera.Proj)
}

func TestPassOrder(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, 800, 600)
	s := testScene(t, r, 800, 600, 1)
	dev.culls = nil

	stats := r.Render(s, 800, 600, false)
	assert.False(t, stats.Skipped)

	assert.Equal(t, []uint32{gl.BACK, gl.FRONT, gl.BACK}, dev.culls, "back faces drawn with front culling")
	assert.Equal(t, 2, dev.drawsInto(r.FrontFace().fbo))
	assert.Equal(t, 2, dev.drawsInto(r.BackFace().fbo))
	assert.Equal(t, 2, dev.drawsInto(r.Reflection().fbo), "reflection then vertical blur")
	assert.Equal(t, 1, dev.drawsInto(r.Temp().fbo))
	assert.Equal(t, 1, dev.drawsInto(r.LastFrame().fbo))
	assert.Zero(t, dev.drawsInto(0), "screen only receives blits")

	programs := r.Shaders()
	var order []uint32
	for _, d := range dev.draws {
		if len(order) == 0 || order[len(order)-1] != d.program {
			order = append(order, d.program)
		}
	}
	assert.Equal(t, []uint32{
		programs.Program(programGeometry).ID(),
		programs.Program(programSSR).ID(),
		programs.Program(programBlur).ID(),
		programs.Program(programResult).ID(),
	}, order)
	assert.Equal(t, mgl32.Vec2{0, 1}, dev.uniforms["blurDirection"], "vertical blur runs last")

	require.Len(t, dev.blits, 1)
	final := dev.blits[0]
	assert.Equal(t, r.LastFrame().fbo, final.readFBO)
	assert.Zero(t, final.drawFBO)
	assert.Equal(t, [4]int32{0, 0, 800, 600}, final.dst)
	assert.Nil(t, r.DebugSnapshot())
}

func TestSamplersAndReflectionUniforms(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, 800, 600)
	s := testScene(t, r, 800, 600, 1)

	r.Render(s, 800, 600, false)

	cam := s.Camera
	assert.Equal(t, screenProjection(cam.Proj, 800, 600), dev.uniforms["proj"])
	assert.Equal(t, cam.ToPrevFramePos, dev.uniforms["toPrevFramePos"])
	assert.Equal(t, mgl32.Vec2{0.1, 100}, dev.uniforms["clippingPlanes"])

	front := r.FrontFace()
	assert.Equal(t, r.LastFrame().ColorTexture(0), dev.units[2], "previous frame sampled for hits")
	assert.Equal(t, front.ColorTexture(attachShininess), dev.units[3])
	assert.Equal(t, front.DepthTexture(), dev.units[4])
	assert.Equal(t, r.BackFace().DepthTexture(), dev.units[5])
	assert.Equal(t, front.ColorTexture(attachColor), dev.units[0], "composite reads the lit color")
	assert.Equal(t, r.Reflection().ColorTexture(0), dev.units[1])

	box := s.Entities[0]
	assert.Equal(t, cam.View.Mul4(box.Model()), dev.uniforms["MV"], "entities drawn with their placement")
}

func TestScreenProjectionMapsToPixels(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(70), 800.0/600.0, 0.1, 100)
	m := screenProjection(proj, 800, 600)

	p := m.Mul4x1(mgl32.Vec4{0, 0, -5, 1})
	assert.InDelta(t, 400, p[0]/p[3], 1e-3)
	assert.InDelta(t, 300, p[1]/p[3], 1e-3)
}

func TestMaterialTexturesBound(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, 64, 64)

	tex := scene.NewSolidTexture("checker", 255, 0, 0, 255)
	require.NoError(t, r.UploadTexture(tex))
	mat := scene.NewMaterial("Tiles", mgl32.Vec3{1, 1, 1}, 64)
	mat.DiffuseTexture = tex
	mat.Emitting = true
	floor := scene.CreateGround(4, 4, 1)
	floor.Material = mat
	require.NoError(t, r.UploadMesh(floor))

	s := &scene.State{
		Camera: scene.NewCamera(mgl32.Vec3{0, 1, 3}, mgl32.DegToRad(60), 0.1, 50, 64, 64),
		Static: []*scene.Mesh{floor},
	}
	r.Render(s, 64, 64, false)

	assert.Equal(t, int32(1), dev.uniforms["hasDiffuseTexture"])
	assert.Equal(t, int32(0), dev.uniforms["hasNormalTexture"])
	assert.Equal(t, int32(1), dev.uniforms["emitting"])
	assert.Equal(t, float32(64), dev.uniforms["material.shininess"])
	assert.Equal(t, s.Camera.View, dev.uniforms["MV"], "static meshes are already in world space")
}

func TestBackFaceDrawsUseTheirOwnMaterial(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, 400, 300)
	s := testScene(t, r, 400, 300, 1)

	// The box is drawn last, so its cutout texture is what a stale pass
	// would carry over to the untextured ground.
	leaf := scene.NewSolidTexture("leaf", 0, 128, 0, 0)
	require.NoError(t, r.UploadTexture(leaf))
	box := s.Meshes[0]
	box.Material = scene.NewMaterial("leaf", mgl32.Vec3{0, 1, 0}, 8)
	box.Material.DiffuseTexture = leaf

	r.Render(s, 400, 300, false)

	var back []drawCall
	for _, d := range dev.draws {
		if d.fbo == r.BackFace().fbo {
			back = append(back, d)
		}
	}
	require.Len(t, back, 2)
	assert.Equal(t, s.Static[0].VAO, back[0].vao)
	assert.Equal(t, int32(0), back[0].hasDiffuse, "ground has no diffuse texture")
	assert.Equal(t, box.VAO, back[1].vao)
	assert.Equal(t, int32(1), back[1].hasDiffuse)
	assert.Equal(t, leaf.GLID, back[1].unit0)

	r.Render(s, 400, 300, false)
	var front []drawCall
	for _, d := range dev.draws {
		if d.fbo == r.FrontFace().fbo {
			front = append(front, d)
		}
	}
	require.Len(t, front, 4)
	assert.Equal(t, int32(0), front[2].hasDiffuse, "next frame's ground is not textured either")
}

func TestDebugViewQuadrants(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, 800, 600)
	s := testScene(t, r, 800, 600, 1)

	r.Render(s, 800, 600, true)

	snap := r.DebugSnapshot()
	require.NotNil(t, snap)
	require.True(t, snap.Complete())
	require.Len(t, dev.blits, 5)

	raw := dev.blits[0]
	assert.Equal(t, r.Reflection().fbo, raw.readFBO, "raw reflection copied before blurring")
	assert.Equal(t, snap.fbo, raw.drawFBO)

	front := r.FrontFace().fbo
	want := []struct {
		fbo uint32
		buf uint32
		dst [4]int32
	}{
		{front, gl.COLOR_ATTACHMENT2, [4]int32{0, 300, 400, 600}},
		{snap.fbo, gl.COLOR_ATTACHMENT0, [4]int32{400, 300, 800, 600}},
		{front, gl.COLOR_ATTACHMENT3, [4]int32{0, 0, 400, 300}},
		{r.Reflection().fbo, gl.COLOR_ATTACHMENT0, [4]int32{400, 0, 800, 300}},
	}
	for i, w := range want {
		b := dev.blits[i+1]
		assert.Equal(t, w.fbo, b.readFBO, "quadrant %d", i)
		assert.Equal(t, w.buf, b.readBuf, "quadrant %d", i)
		assert.Zero(t, b.drawFBO, "quadrant %d", i)
		assert.Equal(t, w.dst, b.dst, "quadrant %d", i)
	}

	r.Render(s, 800, 600, true)
	assert.Same(t, snap, r.DebugSnapshot(), "snapshot reused")

	r.Render(s, 1024, 768, false)
	assert.Nil(t, r.DebugSnapshot(), "dropped on resize")
}

func TestShaderFailureDegrades(t *testing.T) {
	dev := newFakeDevice()
	dev.failCompile = "void main"
	r := NewRenderer(dev, testOptions())
	err := r.Initialize(800, 600)
	require.Error(t, err)
	assert.ErrorContains(t, err, "geometry")

	s := testScene(t, r, 800, 600, 1)
	assert.NotPanics(t, func() { r.Render(s, 800, 600, true) })
	assert.Empty(t, dev.draws)
	assert.True(t, r.FrontFace().Complete(), "buffers exist without programs")
}

func TestMissingShaderSources(t *testing.T) {
	dev := newFakeDevice()
	opts := testOptions()
	opts.ShaderFS = fstest.MapFS{}
	r := NewRenderer(dev, opts)

	err := r.Initialize(100, 100)
	require.Error(t, err)
	for _, name := range []string{"geometry", "ssr", "blur", "result"} {
		assert.ErrorContains(t, err, name)
	}
}

func TestIncompleteTargetsSkipPasses(t *testing.T) {
	dev := newFakeDevice()
	dev.status = gl.FRAMEBUFFER_UNSUPPORTED
	r := NewRenderer(dev, testOptions())
	require.Error(t, r.Initialize(800, 600))

	s := testScene(t, r, 800, 600, 1)
	assert.NotPanics(t, func() {
		r.Render(s, 800, 600, false)
		r.Render(s, 800, 600, true)
	})
	assert.Empty(t, dev.draws)
	assert.Empty(t, dev.blits)
}

func TestUploadTexture(t *testing.T) {
	for _, tc := range []struct {
		driver float32
		want   float32
	}{
		{0, 0},
		{1, 0},
		{8, 8},
		{32, 16},
	} {
		dev := newFakeDevice()
		dev.maxAniso = tc.driver
		r := NewRenderer(dev, testOptions())

		tex := scene.NewSolidTexture("white", 255, 255, 255, 255)
		require.NoError(t, r.UploadTexture(tex))
		require.NotZero(t, tex.GLID)

		got := dev.textures[tex.GLID]
		assert.Equal(t, tc.want, got.aniso, "driver max %v", tc.driver)
		assert.True(t, got.mipmaps)
		assert.Equal(t, int32(gl.RGBA8), got.internal)
		assert.Equal(t, int32(gl.REPEAT), got.params[gl.TEXTURE_WRAP_S])
		assert.Equal(t, int32(gl.LINEAR_MIPMAP_LINEAR), got.params[gl.TEXTURE_MIN_FILTER])

		id := tex.GLID
		require.NoError(t, r.UploadTexture(tex))
		assert.Equal(t, id, tex.GLID, "already uploaded")
		assert.Len(t, dev.textures, 1)

		r.ReleaseTexture(tex)
		assert.Zero(t, tex.GLID)
		assert.Empty(t, dev.textures)
		r.ReleaseTexture(tex)
		assert.Equal(t, 1, dev.deletedTextures)
	}
}

func TestUploadTextureRejectsBadData(t *testing.T) {
	r := NewRenderer(newFakeDevice(), testOptions())
	assert.Error(t, r.UploadTexture(nil))
	assert.Error(t, r.UploadTexture(&scene.Texture{Name: "empty", Width: 2, Height: 2, Pixels: make([]byte, 4)}))
}

func TestUploadMesh(t *testing.T) {
	dev := newFakeDevice()
	r := NewRenderer(dev, testOptions())

	box := scene.CreateBox(1, 1, 1)
	require.NoError(t, r.UploadMesh(box))
	require.True(t, box.Uploaded())
	assert.Equal(t, int32(len(box.Indices)), box.IndexCount)
	vao := box.VAO
	require.NoError(t, r.UploadMesh(box))
	assert.Equal(t, vao, box.VAO)
	assert.Len(t, dev.buffers, 2)

	r.ReleaseMesh(box)
	assert.False(t, box.Uploaded())
	assert.Empty(t, dev.buffers)
	assert.Empty(t, dev.vaos)

	assert.Error(t, r.UploadMesh(&scene.Mesh{Name: "empty"}))
	assert.Empty(t, dev.vaos)
}

func TestCleanupFreesRendererObjects(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, 800, 600)
	s := testScene(t, r, 800, 600, 4)
	r.Render(s, 800, 600, true)

	r.Cleanup()
	assert.Empty(t, dev.framebuffers)
	assert.Empty(t, dev.textures)
	assert.Empty(t, dev.programs)
	assert.Empty(t, dev.shaders)
	assert.Len(t, dev.vaos, 2, "scene meshes belong to the scene")
	w, h := r.Size()
	assert.Zero(t, w+h)

	s.Cleanup(r)
	assert.Empty(t, dev.vaos)
	assert.Empty(t, dev.buffers)

	assert.NotPanics(t, r.Cleanup)
}

func TestOffscreenMeshesCulled(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, 800, 600)
	s := testScene(t, r, 800, 600, 1)

	behind := scene.CreateBox(1, 1, 1)
	behind.Transform(mgl32.Translate3D(0, 0, 40))
	require.NoError(t, r.UploadMesh(behind))
	s.Static = append(s.Static, behind)
	_, err := s.AddEntity("far", []*scene.Mesh{scene.CreateSphere(1, 8, 4)},
		mgl32.Vec3{0, 0, -500}, mgl32.QuatIdent(), 1)
	require.NoError(t, err)
	require.NoError(t, r.UploadMesh(s.Meshes[len(s.Meshes)-1]))

	stats := r.Render(s, 800, 600, false)
	assert.Equal(t, 2, stats.Culled)
	assert.Equal(t, 2, dev.drawsInto(r.FrontFace().fbo))
	assert.Equal(t, 2, dev.drawsInto(r.BackFace().fbo))
}
