// Package config loads the application configuration from YAML.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Window   WindowConfig   `yaml:"window"`
	Image    ImageConfig    `yaml:"image"`
	Effect   EffectConfig   `yaml:"effect"`
	Model    ModelConfig    `yaml:"model"`
	Camera   CameraConfig   `yaml:"camera"`
	Render   RenderConfig   `yaml:"render"`
	Logging  LoggingConfig  `yaml:"logging"`
	Trace    TraceConfig    `yaml:"trace"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
}

type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

type ImageConfig struct {
	Path         string `yaml:"path"`
	MaxDimension int    `yaml:"max_dimension"` // 0 keeps the source size
}

// EffectConfig holds the falling image parameters.
type EffectConfig struct {
	FallSpeed     float32 `yaml:"fall_speed"`  // acceleration along y, negative falls down
	FallTarget    float32 `yaml:"fall_target"` // y at which particles land
	FallDelay     float32 `yaml:"fall_delay"`  // seconds between rows
	TotalLoopTime float32 `yaml:"total_loop_time"`
}

type ModelConfig struct {
	Translation [3]float32 `yaml:"translation"`
	Scale       [3]float32 `yaml:"scale"`
}

type CameraConfig struct {
	Eye        [3]float32 `yaml:"eye"`
	Target     [3]float32 `yaml:"target"`
	Up         [3]float32 `yaml:"up"`
	FovDegrees float32    `yaml:"fov_degrees"`
	Near       float32    `yaml:"near"`
	Far        float32    `yaml:"far"`
}

type RenderConfig struct {
	ClearColor [4]float64 `yaml:"clear_color"`
	MaxDelta   float64    `yaml:"max_delta"` // seconds, 0 disables the clamp
}

type LoggingConfig struct {
	Prefix string `yaml:"prefix"`
	Debug  bool   `yaml:"debug"`
}

type TraceConfig struct {
	Path string `yaml:"path"` // empty disables the trace
}

// SnapshotConfig drives the headless runner.
type SnapshotConfig struct {
	Frames int     `yaml:"frames"`
	Every  int     `yaml:"every"`
	DT     float32 `yaml:"dt"`
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	OutDir string  `yaml:"out_dir"`
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		panic(fmt.Sprintf("parsing embedded defaults: %v", err))
	}
	return cfg
}

// Load reads path over the embedded defaults. An empty path returns the
// defaults alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only keys present in the file overwrite the defaults.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window: size %dx%d must be positive", c.Window.Width, c.Window.Height))
	}
	if c.Image.MaxDimension < 0 {
		errs = append(errs, fmt.Errorf("image: max_dimension %d is negative", c.Image.MaxDimension))
	}
	if c.Effect.TotalLoopTime <= 0 {
		errs = append(errs, fmt.Errorf("effect: total_loop_time %g must be positive", c.Effect.TotalLoopTime))
	}
	if c.Effect.FallDelay < 0 {
		errs = append(errs, fmt.Errorf("effect: fall_delay %g is negative", c.Effect.FallDelay))
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		errs = append(errs, fmt.Errorf("camera: need 0 < near < far, got %g and %g", c.Camera.Near, c.Camera.Far))
	}
	if c.Camera.FovDegrees <= 0 || c.Camera.FovDegrees >= 180 {
		errs = append(errs, fmt.Errorf("camera: fov_degrees %g out of range", c.Camera.FovDegrees))
	}
	if mgl32.Vec3(c.Camera.Eye).Sub(mgl32.Vec3(c.Camera.Target)).Len() == 0 {
		errs = append(errs, errors.New("camera: eye and target coincide"))
	}
	if c.Render.MaxDelta < 0 {
		errs = append(errs, fmt.Errorf("render: max_delta %g is negative", c.Render.MaxDelta))
	}
	if c.Snapshot.Frames < 0 || c.Snapshot.Every < 0 {
		errs = append(errs, fmt.Errorf("snapshot: frames %d and every %d must not be negative", c.Snapshot.Frames, c.Snapshot.Every))
	}
	if c.Snapshot.Width <= 0 || c.Snapshot.Height <= 0 {
		errs = append(errs, fmt.Errorf("snapshot: size %dx%d must be positive", c.Snapshot.Width, c.Snapshot.Height))
	}
	return errors.Join(errs...)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// ModelMatrix is translation * scale.
func (c *Config) ModelMatrix() mgl32.Mat4 {
	t, s := c.Model.Translation, c.Model.Scale
	return mgl32.Translate3D(t[0], t[1], t[2]).Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
}

func (c *Config) CameraMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(mgl32.Vec3(c.Camera.Eye), mgl32.Vec3(c.Camera.Target), mgl32.Vec3(c.Camera.Up))
}

// clipFix maps OpenGL clip depth [-1, 1] onto the [0, 1] range WebGPU uses.
var clipFix = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Projection is a perspective projection with depth in [0, 1].
func (c *Config) Projection(aspect float32) mgl32.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	proj := mgl32.Perspective(mgl32.DegToRad(c.Camera.FovDegrees), aspect, c.Camera.Near, c.Camera.Far)
	return clipFix.Mul4(proj)
}

// ClearColor converts the [0, 1] clear color to 8 bit channels.
func (c *Config) ClearColor() color.NRGBA {
	var ch [4]uint8
	for i, v := range c.Render.ClearColor {
		ch[i] = uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}
}
