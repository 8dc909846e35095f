package core

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	// GL calls and glfw event processing must stay on the main thread.
	runtime.LockOSThread()
}

type Window struct {
	Handle *glfw.Window
	Width  int
	Height int
	Title  string

	input Input
}

type WindowConfig struct {
	Width     int
	Height    int
	Title     string
	Resizable bool
	VSync     bool
}

func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		Width:     1280,
		Height:    720,
		Title:     "SSR",
		Resizable: true,
		VSync:     true,
	}
}

// NewWindow opens a window with an OpenGL 4.1 core context and makes the
// context current on the calling thread.
func NewWindow(config WindowConfig) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, boolToInt(config.Resizable))

	handle, err := glfw.CreateWindow(config.Width, config.Height, config.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create window: %w", err)
	}
	handle.MakeContextCurrent()
	if config.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	window := &Window{
		Handle: handle,
		Width:  config.Width,
		Height: config.Height,
		Title:  config.Title,
	}

	handle.SetSizeCallback(func(w *glfw.Window, width, height int) {
		window.Width = width
		window.Height = height
	})

	Logger().Info("window created", "width", config.Width, "height", config.Height, "vsync", config.VSync)
	return window, nil
}

func (w *Window) ShouldClose() bool {
	return w.Handle.ShouldClose()
}

// Close asks the main loop to stop after the current frame.
func (w *Window) Close() {
	w.Handle.SetShouldClose(true)
}

func (w *Window) PollEvents() {
	glfw.PollEvents()
}

func (w *Window) SwapBuffers() {
	w.Handle.SwapBuffers()
}

// GetFramebufferSize returns the drawable size in pixels, which differs from
// the window size on high-DPI displays.
func (w *Window) GetFramebufferSize() (int, int) {
	return w.Handle.GetFramebufferSize()
}

func (w *Window) SetTitle(title string) {
	w.Handle.SetTitle(title)
	w.Title = title
}

// Input samples keyboard and mouse state and returns this frame's snapshot.
// Call once per frame after PollEvents.
func (w *Window) Input() *Input {
	var keys [KeyCount]bool
	for k, gk := range keyMap {
		keys[k] = w.Handle.GetKey(gk) == glfw.Press
	}
	left := w.Handle.GetMouseButton(glfw.MouseButtonLeft) == glfw.Press
	right := w.Handle.GetMouseButton(glfw.MouseButtonRight) == glfw.Press
	middle := w.Handle.GetMouseButton(glfw.MouseButtonMiddle) == glfw.Press
	x, y := w.Handle.GetCursorPos()

	w.input = w.input.Advance(keys, left, right, middle, x, y, w.Width, w.Height)
	return &w.input
}

func (w *Window) Destroy() {
	w.Handle.Destroy()
	glfw.Terminate()
}

func boolToInt(b bool) int {
	if b {
		return glfw.True
	}
	return glfw.False
}

var keyMap = [KeyCount]glfw.Key{
	KeyW:      glfw.KeyW,
	KeyA:      glfw.KeyA,
	KeyS:      glfw.KeyS,
	KeyD:      glfw.KeyD,
	KeyQ:      glfw.KeyQ,
	KeyE:      glfw.KeyE,
	Key1:      glfw.Key1,
	Key2:      glfw.Key2,
	KeyF1:     glfw.KeyF1,
	KeyEscape: glfw.KeyEscape,
}
