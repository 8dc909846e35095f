package opengl

import (
	"errors"
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"ssr-engine/core"
)

// ErrInvalidSize is returned when a framebuffer is created with a
// non-positive width or height.
var ErrInvalidSize = errors.New("framebuffer size must be positive")

// ColorFormat describes the storage of a color attachment.
type ColorFormat struct {
	Internal int32
	Format   uint32
	Type     uint32
}

var (
	FormatRGB32F  = ColorFormat{gl.RGB32F, gl.RGB, gl.FLOAT}
	FormatRGB16F  = ColorFormat{gl.RGB16F, gl.RGB, gl.FLOAT}
	FormatRGBA8   = ColorFormat{gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE}
	FormatRGBA16F = ColorFormat{gl.RGBA16F, gl.RGBA, gl.FLOAT}
	FormatR16F    = ColorFormat{gl.R16F, gl.RED, gl.FLOAT}
)

// Framebuffer is an off-screen render target with ordered color attachments
// and an optional depth texture. Its size is fixed; a resize destroys it and
// builds a new one.
type Framebuffer struct {
	dev  Device
	name string

	fbo      uint32
	colors   []uint32
	depth    uint32
	width    int32
	height   int32
	complete bool
}

// NewFramebuffer creates an empty framebuffer object and leaves it bound so
// attachments can be added. Call Finish once all attachments are in place.
func NewFramebuffer(dev Device, name string, width, height int) (*Framebuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("framebuffer %s %dx%d: %w", name, width, height, ErrInvalidSize)
	}
	f := &Framebuffer{
		dev:    dev,
		name:   name,
		fbo:    dev.GenFramebuffer(),
		width:  int32(width),
		height: int32(height),
	}
	dev.BindFramebuffer(gl.FRAMEBUFFER, f.fbo)
	return f, nil
}

// AttachColor adds a bilinear-filtered color texture and returns its index.
// wrap is the texture wrap mode, e.g. gl.CLAMP_TO_EDGE.
func (f *Framebuffer) AttachColor(format ColorFormat, wrap int32) int {
	idx := len(f.colors)
	tex := f.newTexture(format.Internal, format.Format, format.Type, wrap)
	f.dev.FramebufferTexture2D(gl.COLOR_ATTACHMENT0+uint32(idx), tex)
	f.colors = append(f.colors, tex)
	return idx
}

// AttachDepth adds a 32-bit float depth texture. Calling it again is a no-op.
func (f *Framebuffer) AttachDepth() {
	if f.depth != 0 {
		return
	}
	f.depth = f.newTexture(gl.DEPTH_COMPONENT32F, gl.DEPTH_COMPONENT, gl.FLOAT, gl.CLAMP_TO_EDGE)
	f.dev.FramebufferTexture2D(gl.DEPTH_ATTACHMENT, f.depth)
}

func (f *Framebuffer) newTexture(internal int32, format, xtype uint32, wrap int32) uint32 {
	tex := f.dev.GenTexture()
	f.dev.BindTexture(0, tex)
	f.dev.TexImage2D(internal, f.width, f.height, format, xtype, nil)
	f.dev.TexParameteri(gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	f.dev.TexParameteri(gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	f.dev.TexParameteri(gl.TEXTURE_WRAP_S, wrap)
	f.dev.TexParameteri(gl.TEXTURE_WRAP_T, wrap)
	f.dev.BindTexture(0, 0)
	return tex
}

// Finish selects the draw buffers and checks completeness. A complete buffer
// is cleared once; an incomplete one is logged and stays allocated but
// unusable. The default framebuffer is bound on return either way.
func (f *Framebuffer) Finish() bool {
	f.dev.BindFramebuffer(gl.FRAMEBUFFER, f.fbo)
	f.selectDrawBuffers()
	if len(f.colors) == 0 {
		f.dev.ReadBuffer(gl.NONE)
	}

	status := f.dev.CheckFramebufferStatus()
	f.complete = status == gl.FRAMEBUFFER_COMPLETE
	if f.complete {
		f.dev.Viewport(0, 0, f.width, f.height)
		f.dev.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	} else {
		core.Logger().Error("framebuffer incomplete",
			"buffer", f.name, "status", fmt.Sprintf("0x%04X", status),
			"width", f.width, "height", f.height, "colors", len(f.colors))
	}

	f.dev.BindFramebuffer(gl.FRAMEBUFFER, 0)
	return f.complete
}

func (f *Framebuffer) selectDrawBuffers() {
	if len(f.colors) == 0 {
		f.dev.DrawBuffer(gl.NONE)
		return
	}
	bufs := make([]uint32, len(f.colors))
	for i := range bufs {
		bufs[i] = gl.COLOR_ATTACHMENT0 + uint32(i)
	}
	f.dev.DrawBuffers(bufs)
}

// BindForDraw makes f the draw target covering its full size.
func (f *Framebuffer) BindForDraw() {
	f.dev.BindFramebuffer(gl.FRAMEBUFFER, f.fbo)
	f.dev.Viewport(0, 0, f.width, f.height)
	f.selectDrawBuffers()
}

// BindDefaultForDraw makes the window the draw target.
func BindDefaultForDraw(dev Device, width, height int) {
	dev.BindFramebuffer(gl.FRAMEBUFFER, 0)
	dev.Viewport(0, 0, int32(width), int32(height))
}

// Blit copies color attachment srcIdx into dst's attachment dstIdx, or into
// the window when dst is nil. Scaling uses nearest filtering.
func (f *Framebuffer) Blit(srcIdx int, dst *Framebuffer, dstIdx int, src, to core.Rect) {
	f.dev.BindFramebuffer(gl.READ_FRAMEBUFFER, f.fbo)
	f.dev.ReadBuffer(gl.COLOR_ATTACHMENT0 + uint32(srcIdx))
	if dst != nil {
		f.dev.BindFramebuffer(gl.DRAW_FRAMEBUFFER, dst.fbo)
		f.dev.DrawBuffer(gl.COLOR_ATTACHMENT0 + uint32(dstIdx))
	} else {
		f.dev.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
		f.dev.DrawBuffer(gl.BACK)
	}
	f.dev.BlitFramebuffer(src.X, src.Y, src.X1(), src.Y1(), to.X, to.Y, to.X1(), to.Y1(),
		gl.COLOR_BUFFER_BIT, gl.NEAREST)
	f.dev.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

// Destroy frees the framebuffer object and every attached texture. It is
// safe to call more than once.
func (f *Framebuffer) Destroy() {
	if f == nil {
		return
	}
	for _, tex := range f.colors {
		f.dev.DeleteTexture(tex)
	}
	f.colors = nil
	if f.depth != 0 {
		f.dev.DeleteTexture(f.depth)
		f.depth = 0
	}
	if f.fbo != 0 {
		f.dev.DeleteFramebuffer(f.fbo)
		f.fbo = 0
	}
	f.complete = false
}

func (f *Framebuffer) Name() string          { return f.name }
func (f *Framebuffer) Width() int            { return int(f.width) }
func (f *Framebuffer) Height() int           { return int(f.height) }
func (f *Framebuffer) ColorAttachments() int { return len(f.colors) }

// Complete reports whether the last Finish succeeded. A nil buffer is never
// complete.
func (f *Framebuffer) Complete() bool { return f != nil && f.complete }

func (f *Framebuffer) DepthTexture() uint32 {
	if f == nil {
		return 0
	}
	return f.depth
}

// Rect covers the whole buffer.
func (f *Framebuffer) Rect() core.Rect {
	return core.Rect{Width: f.width, Height: f.height}
}

// ColorTexture returns attachment i, or 0 when out of range.
func (f *Framebuffer) ColorTexture(i int) uint32 {
	if f == nil || i < 0 || i >= len(f.colors) {
		return 0
	}
	return f.colors[i]
}
