// Command ssr renders the demo scenes with screen-space reflections.
//
// Keys: W/A/S/D/E/Q move, left-drag looks around, 1/2 switch scenes, F1
// toggles the debug view and Escape quits.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"ssr-engine/config"
	"ssr-engine/core"
	"ssr-engine/internal/opengl"
	"ssr-engine/scene"
)

// sceneOrder maps the number keys to scenes.
var sceneOrder = []string{"hallway", "street"}

func main() {
	configPath := flag.String("config", "ssr.toml", "TOML settings file; missing means defaults")
	debug := flag.Bool("debug", false, "start with the debug quadrant view")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	core.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(*configPath, *debug); err != nil {
		core.Logger().Error("ssr failed", "err", err)
		os.Exit(1)
	}
}

func run(configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	debug = debug || cfg.Renderer.Debug

	window, err := core.NewWindow(core.WindowConfig{
		Width:     cfg.Window.Width,
		Height:    cfg.Window.Height,
		Title:     cfg.Window.Title,
		Resizable: cfg.Window.Resizable,
		VSync:     cfg.Window.VSync,
	})
	if err != nil {
		return err
	}
	defer window.Destroy()

	dev, err := opengl.NewDevice()
	if err != nil {
		return err
	}

	width, height := window.GetFramebufferSize()
	r := opengl.NewRenderer(dev, rendererOptions(cfg))
	if err := r.Initialize(width, height); err != nil {
		// The renderer skips whatever failed; keep going so shaders can be
		// fixed while the window is open.
		core.Logger().Warn("continuing with a degraded renderer", "err", err)
	}
	defer r.Cleanup()

	settings := sceneSettings(cfg)
	scenes := make(map[string]*scene.State, len(sceneOrder))
	defer func() {
		for _, s := range scenes {
			s.Cleanup(r)
		}
	}()
	for _, name := range sceneOrder {
		s, err := scene.New(name, width, height, r, settings)
		if s == nil {
			return err
		}
		if err != nil {
			core.Logger().Warn("scene incomplete", "scene", name, "err", err)
		}
		scenes[name] = s
	}
	active, ok := scenes[cfg.Scene]
	if !ok {
		return fmt.Errorf("config scene %q is not one of %v", cfg.Scene, sceneOrder)
	}

	var (
		last   = glfw.GetTime()
		frames int
		since  float64
	)
	for !window.ShouldClose() {
		window.PollEvents()
		in := window.Input()

		if in.Pressed(core.KeyEscape) {
			window.Close()
		}
		for i, k := range []core.Key{core.Key1, core.Key2} {
			if in.Pressed(k) && scenes[sceneOrder[i]] != active {
				active = scenes[sceneOrder[i]]
				core.Logger().Info("scene switched", "scene", active.Name)
			}
		}
		if in.Pressed(core.KeyF1) {
			debug = !debug
			core.Logger().Info("debug view", "enabled", debug)
		}

		now := glfw.GetTime()
		dt := float32(now - last)
		last = now

		active.Update(in, dt)
		width, height = window.GetFramebufferSize()
		stats := r.Render(active, width, height, debug)
		if stats.Resized {
			core.Logger().Debug("frame resized buffers", "width", width, "height", height)
		}
		window.SwapBuffers()

		frames++
		since += float64(dt)
		if since >= 1 {
			window.SetTitle(fmt.Sprintf("%s | %s | %.0f fps", cfg.Window.Title, active.Name, float64(frames)/since))
			frames, since = 0, 0
		}
	}
	return nil
}

func rendererOptions(cfg config.Config) opengl.Options {
	opts := opengl.DefaultOptions()
	opts.ShaderDir = cfg.Renderer.ShaderDir
	opts.ShaderFS = os.DirFS(cfg.Renderer.ShaderDir)
	opts.WatchShaders = cfg.Renderer.WatchShaders
	opts.BackfaceDivisor = cfg.Renderer.BackfaceDivisor
	c := cfg.Renderer.ClearColor
	opts.ClearColor = core.Color{R: c[0], G: c[1], B: c[2], A: c[3]}
	return opts
}

func sceneSettings(cfg config.Config) scene.Settings {
	cam := cfg.Camera
	return scene.Settings{
		AssetDir:      cfg.Assets.Dir,
		FOV:           mgl32.DegToRad(cam.FOVDegrees),
		Near:          cam.Near,
		Far:           cam.Far,
		MovementSpeed: cam.MovementSpeed,
		RotationSpeed: cam.RotationSpeed,
		Start:         mgl32.Vec3(cam.StartPosition),
	}
}
