// Package config loads engine settings from a TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Scene    string         `toml:"scene"`
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Camera   CameraConfig   `toml:"camera"`
	Assets   AssetsConfig   `toml:"assets"`
}

type WindowConfig struct {
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	Title     string `toml:"title"`
	VSync     bool   `toml:"vsync"`
	Resizable bool   `toml:"resizable"`
}

type RendererConfig struct {
	ShaderDir string `toml:"shader_dir"`
	// BackfaceDivisor shrinks the back-face depth buffer relative to the output.
	BackfaceDivisor int        `toml:"backface_divisor"`
	Debug           bool       `toml:"debug"`
	WatchShaders    bool       `toml:"watch_shaders"`
	ClearColor      [4]float32 `toml:"clear_color"`
}

type CameraConfig struct {
	FOVDegrees    float32    `toml:"fov_degrees"`
	Near          float32    `toml:"near"`
	Far           float32    `toml:"far"`
	MovementSpeed float32    `toml:"movement_speed"`
	RotationSpeed float32    `toml:"rotation_speed"`
	StartPosition [3]float32 `toml:"start_position"`
}

type AssetsConfig struct {
	Dir string `toml:"dir"`
}

func Default() Config {
	return Config{
		Scene: "hallway",
		Window: WindowConfig{
			Width:     1280,
			Height:    720,
			Title:     "SSR",
			VSync:     true,
			Resizable: true,
		},
		Renderer: RendererConfig{
			ShaderDir:       "res/shaders",
			BackfaceDivisor: 2,
			WatchShaders:    true,
			ClearColor:      [4]float32{0.18, 0.35, 0.5, 1},
		},
		Camera: CameraConfig{
			FOVDegrees:    70,
			Near:          0.1,
			Far:           1000,
			MovementSpeed: 10,
			RotationSpeed: 2,
			StartPosition: [3]float32{0, 2, 0},
		},
		Assets: AssetsConfig{Dir: "res"},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses TOML into cfg, keeping fields the document leaves out, and
// validates the result.
func Decode(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var sme *toml.StrictMissingError
		if errors.As(err, &sme) {
			return errors.New(sme.String())
		}
		return err
	}
	return cfg.Validate()
}

// Encode writes cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	return toml.Marshal(cfg)
}

func (c Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height))
	}
	if c.Renderer.BackfaceDivisor < 1 {
		errs = append(errs, fmt.Errorf("backface_divisor %d must be at least 1", c.Renderer.BackfaceDivisor))
	}
	if c.Camera.Near <= 0 || c.Camera.Near >= c.Camera.Far {
		errs = append(errs, fmt.Errorf("clip planes near=%g far=%g: need 0 < near < far", c.Camera.Near, c.Camera.Far))
	}
	if c.Camera.FOVDegrees <= 0 || c.Camera.FOVDegrees >= 180 {
		errs = append(errs, fmt.Errorf("fov_degrees %g out of range", c.Camera.FOVDegrees))
	}
	return errors.Join(errs...)
}
