package opengl

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"ssr-engine/core"
	"ssr-engine/scene"
)

// Program slots in the shader cache.
const (
	programGeometry = iota
	programSSR
	programBlur
	programResult
)

// Color attachments of the front-face buffer.
const (
	attachPosition = iota
	attachNormal
	attachColor
	attachShininess
)

// Options configures a Renderer.
type Options struct {
	// ShaderFS holds the GLSL sources. Defaults to os.DirFS(ShaderDir).
	ShaderFS  fs.FS
	ShaderDir string
	// WatchShaders starts a file watcher on ShaderDir so unchanged shaders
	// are not stat'ed every frame.
	WatchShaders bool
	// BackfaceDivisor shrinks the back-face depth buffer on both axes.
	BackfaceDivisor int
	ClearColor      core.Color
}

func DefaultOptions() Options {
	return Options{
		ShaderDir:       "res/shaders",
		WatchShaders:    true,
		BackfaceDivisor: 2,
		ClearColor:      core.Color{R: 0.18, G: 0.35, B: 0.5, A: 1},
	}
}

// FrameStats reports what one Render call did.
type FrameStats struct {
	// Reloads holds one result per shader program, or nil when the watcher
	// saw no change and the check was skipped.
	Reloads []ReloadResult
	Resized bool
	// Culled counts meshes the front-face pass left out as off-screen.
	Culled int
	// Skipped is set for a zero-area frame, which draws nothing.
	Skipped bool
}

// lightUniforms are the uniform names of one point light slot.
type lightUniforms struct {
	position, radius, color string
}

// Renderer owns every GPU object of the screen-space reflection pipeline:
// the shader programs, the off-screen buffers and the full-screen plane.
type Renderer struct {
	dev     Device
	opts    Options
	shaders *ShaderCache
	watcher *ShaderWatcher

	frontFace  *Framebuffer
	backFace   *Framebuffer
	reflection *Framebuffer
	temp       *Framebuffer
	lastFrame  *Framebuffer
	// debugSnapshot keeps the unblurred reflection for the debug view. It
	// is created the first time the debug view is drawn.
	debugSnapshot *Framebuffer

	plane           *scene.Mesh
	defaultMaterial *scene.Material
	lights          [scene.MaxPointLights]lightUniforms

	width, height int
}

// NewRenderer prepares a renderer; Initialize creates the GPU objects.
func NewRenderer(dev Device, opts Options) *Renderer {
	if opts.BackfaceDivisor < 1 {
		opts.BackfaceDivisor = 1
	}
	if opts.ShaderFS == nil {
		opts.ShaderFS = os.DirFS(opts.ShaderDir)
	}

	r := &Renderer{
		dev:             dev,
		opts:            opts,
		defaultMaterial: scene.DefaultMaterial(),
	}
	for i := range r.lights {
		r.lights[i] = lightUniforms{
			position: fmt.Sprintf("pointLights[%d].position", i),
			radius:   fmt.Sprintf("pointLights[%d].radius", i),
			color:    fmt.Sprintf("pointLights[%d].color", i),
		}
	}
	r.shaders = NewShaderCache(dev, opts.ShaderFS, r.programSpecs()...)
	return r
}

func (r *Renderer) programSpecs() []ProgramSpec {
	geometry := []string{
		"MV", "MVP",
		"material.ambient", "material.diffuse", "material.specular", "material.shininess",
		"emitting", "hasDiffuseTexture", "hasNormalTexture", "hasSpecularTexture",
		"numberOfPointLights",
	}
	for _, l := range r.lights {
		geometry = append(geometry, l.position, l.radius, l.color)
	}

	return []ProgramSpec{
		programGeometry: {
			Name:     "geometry",
			Path:     "geometry.glsl",
			Uniforms: geometry,
			Samplers: []Sampler{{"diffuseTexture", 0}, {"normalTexture", 1}, {"specularTexture", 2}},
		},
		programSSR: {
			Name:     "ssr",
			Path:     "ssr.glsl",
			Uniforms: []string{"proj", "toPrevFramePos", "clippingPlanes"},
			Samplers: []Sampler{
				{"positionTexture", 0}, {"normalTexture", 1}, {"colorTexture", 2},
				{"shininessTexture", 3}, {"frontDepthTexture", 4}, {"backDepthTexture", 5},
			},
		},
		programBlur: {
			Name:     "blur",
			Path:     "blur.glsl",
			Uniforms: []string{"blurDirection"},
			Samplers: []Sampler{{"image", 0}},
		},
		programResult: {
			Name:     "result",
			Path:     "result.glsl",
			Samplers: []Sampler{{"colorTexture", 0}, {"reflectionTexture", 1}},
		},
	}
}

// Initialize sets the fixed GL state, loads the shaders and creates the
// buffers for a width×height output. Every failure is logged and collected;
// the renderer stays usable in a degraded state, so the caller may choose to
// continue.
func (r *Renderer) Initialize(width, height int) error {
	var errs []error

	if r.opts.WatchShaders && r.opts.ShaderDir != "" {
		w, err := NewShaderWatcher(r.opts.ShaderDir)
		if err != nil {
			core.Logger().Warn("shader hot-reload watcher disabled", "dir", r.opts.ShaderDir, "err", err)
		} else {
			r.watcher = w
		}
	}

	c := r.opts.ClearColor
	r.dev.ClearColor(c.R, c.G, c.B, c.A)
	r.dev.Enable(gl.DEPTH_TEST)
	r.dev.DepthFunc(gl.LESS)
	r.dev.Enable(gl.CULL_FACE)
	r.dev.CullFace(gl.BACK)

	for slot, res := range r.shaders.ReloadAll() {
		if !r.shaders.Program(slot).Usable() {
			errs = append(errs, fmt.Errorf("shader %s: %s", r.shaders.Program(slot).Name(), res))
		}
	}

	r.plane = scene.CreateScreenQuad()
	if err := r.UploadMesh(r.plane); err != nil {
		errs = append(errs, fmt.Errorf("screen plane: %w", err))
	}

	if width > 0 && height > 0 {
		if err := r.createBuffers(width, height); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		core.Logger().Error("renderer initialized with errors", "err", err)
	} else {
		core.Logger().Info("renderer initialized", "width", width, "height", height,
			"backface_divisor", r.opts.BackfaceDivisor, "watch_shaders", r.watcher != nil)
	}
	return err
}

// createBuffers builds every render target for a width×height output. The
// previous targets must have been destroyed.
func (r *Renderer) createBuffers(width, height int) error {
	r.width, r.height = width, height
	d := r.opts.BackfaceDivisor
	var errs []error
	build := func(name string, w, h int, depth bool, formats ...ColorFormat) *Framebuffer {
		fb, err := newTarget(r.dev, name, w, h, depth, formats...)
		if err != nil {
			errs = append(errs, err)
		}
		return fb
	}

	r.frontFace = build("front-face", width, height, true,
		FormatRGB32F, FormatRGB16F, FormatRGBA8, FormatR16F)
	bw, bh := max(1, width/d), max(1, height/d)
	r.backFace = build("back-face", bw, bh, true)
	r.reflection = build("reflection", width, height, false, FormatRGBA16F)
	r.temp = build("temp", width, height, false, FormatRGBA16F)
	r.lastFrame = build("last-frame", width, height, false, FormatRGBA8)

	core.Logger().Debug("render targets created", "width", width, "height", height,
		"backface_width", bw, "backface_height", bh)
	return errors.Join(errs...)
}

// newTarget creates a framebuffer with clamped color attachments in the given
// order and an optional depth texture.
func newTarget(dev Device, name string, w, h int, depth bool, formats ...ColorFormat) (*Framebuffer, error) {
	fb, err := NewFramebuffer(dev, name, w, h)
	if err != nil {
		return nil, err
	}
	for _, f := range formats {
		fb.AttachColor(f, gl.CLAMP_TO_EDGE)
	}
	if depth {
		fb.AttachDepth()
	}
	if !fb.Finish() {
		return fb, fmt.Errorf("framebuffer %s incomplete", name)
	}
	return fb, nil
}

func (r *Renderer) destroyBuffers() {
	for _, fb := range []**Framebuffer{
		&r.frontFace, &r.backFace, &r.reflection, &r.temp, &r.lastFrame, &r.debugSnapshot,
	} {
		(*fb).Destroy()
		*fb = nil
	}
}

// resize replaces every buffer when the output size changed.
func (r *Renderer) resize(width, height int) bool {
	if width == r.width && height == r.height && r.frontFace != nil {
		return false
	}
	r.destroyBuffers()
	if err := r.createBuffers(width, height); err != nil {
		core.Logger().Error("render targets recreated with errors", "width", width, "height", height, "err", err)
	} else {
		core.Logger().Info("render targets recreated", "width", width, "height", height)
	}
	return true
}

// refreshShaders rebuilds programs whose sources changed. With a watcher the
// check only runs after a file event.
func (r *Renderer) refreshShaders() []ReloadResult {
	if r.watcher != nil && !r.watcher.TakePending() {
		return nil
	}
	return r.shaders.ReloadAll()
}

// Render draws one frame of s into the window's default framebuffer.
func (r *Renderer) Render(s *scene.State, width, height int, debug bool) FrameStats {
	var stats FrameStats
	if width <= 0 || height <= 0 {
		stats.Skipped = true
		return stats
	}

	stats.Reloads = r.refreshShaders()
	stats.Resized = r.resize(width, height)
	s.Camera.SetViewport(width, height)

	stats.Culled = r.frontFacePass(s)
	r.backFacePass(s)
	r.reflectionPass(s)
	r.blurPass(debug)
	r.compositePass()
	r.present(width, height, debug)
	return stats
}

// Cleanup frees every GPU object the renderer created. Meshes and textures
// uploaded for scenes are released by the scenes themselves.
func (r *Renderer) Cleanup() {
	if r.watcher != nil {
		if err := r.watcher.Close(); err != nil {
			core.Logger().Warn("closing shader watcher", "err", err)
		}
		r.watcher = nil
	}
	r.destroyBuffers()
	r.shaders.Destroy()
	r.ReleaseMesh(r.plane)
	r.width, r.height = 0, 0
	core.Logger().Info("renderer cleaned up")
}

func (r *Renderer) Shaders() *ShaderCache       { return r.shaders }
func (r *Renderer) FrontFace() *Framebuffer     { return r.frontFace }
func (r *Renderer) BackFace() *Framebuffer      { return r.backFace }
func (r *Renderer) Reflection() *Framebuffer    { return r.reflection }
func (r *Renderer) Temp() *Framebuffer          { return r.temp }
func (r *Renderer) LastFrame() *Framebuffer     { return r.lastFrame }
func (r *Renderer) DebugSnapshot() *Framebuffer { return r.debugSnapshot }

// Size returns the output size the buffers were last built for.
func (r *Renderer) Size() (int, int) { return r.width, r.height }
