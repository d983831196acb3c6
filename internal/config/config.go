// Package config handles flatsurf configuration loading and management.
package config

import (
	"errors"
	"time"

	"github.com/soypat/flatsurf"
	"github.com/soypat/geometry/ms3"
	"go.uber.org/zap"
)

// Config holds all flatsurf settings.
type Config struct {
	Render   RenderConfig   `yaml:"render"`
	Teleport TeleportConfig `yaml:"teleport"`
	Camera   CameraConfig   `yaml:"camera"`
	Window   WindowConfig   `yaml:"window"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Surface  SurfaceConfig  `yaml:"surface"`
}

// RenderConfig holds the sphere tracer parameters baked into generated programs.
type RenderConfig struct {
	Epsilon     float32    `yaml:"epsilon"`
	MaxSteps    int        `yaml:"max_steps"`
	MaxDistance float32    `yaml:"max_distance"`
	FOV         float32    `yaml:"fov"`
	Background  [3]float32 `yaml:"background,flow"`
}

// TeleportConfig holds viewpoint crossing parameters.
type TeleportConfig struct {
	CrossingThreshold float32 `yaml:"crossing_threshold"`
	MirrorNudge       float32 `yaml:"mirror_nudge"`
}

// CameraConfig holds movement and look settings.
type CameraConfig struct {
	MoveSpeed       float32 `yaml:"move_speed"`
	RiseSpeed       float32 `yaml:"rise_speed"`
	LookSensitivity float32 `yaml:"look_sensitivity"`
	MinHeight       float32 `yaml:"min_height"`
	MaxHeight       float32 `yaml:"max_height"`
}

// WindowConfig holds viewer window and image output settings.
type WindowConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// ServerConfig holds websocket session server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// SurfaceConfig selects the surfaces to load.
type SurfaceConfig struct {
	// Default is a registered surface id or a descriptor file path.
	Default string `yaml:"default"`
	// Paths are extra descriptor files registered under their ids.
	Paths []string `yaml:"paths"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	k := flatsurf.DefaultKernelConfig()
	tp := flatsurf.DefaultTeleportConfig()
	mv := flatsurf.DefaultMovementConfig()
	return &Config{
		Render: RenderConfig{
			Epsilon:     k.Epsilon,
			MaxSteps:    k.MaxSteps,
			MaxDistance: k.MaxDistance,
			FOV:         k.FOV,
			Background:  k.Background.Array(),
		},
		Teleport: TeleportConfig{
			CrossingThreshold: tp.CrossingThreshold,
			MirrorNudge:       tp.MirrorNudge,
		},
		Camera: CameraConfig{
			MoveSpeed:       mv.Speed,
			RiseSpeed:       mv.RiseSpeed,
			LookSensitivity: 0.003,
			MinHeight:       mv.MinHeight,
			MaxHeight:       mv.MaxHeight,
		},
		Window: WindowConfig{
			Width:  800,
			Height: 600,
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8080",
			WriteTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
		Surface: SurfaceConfig{
			Default: "torus",
		},
	}
}

// KernelConfig returns the generated program parameters.
func (c *Config) KernelConfig() flatsurf.KernelConfig {
	bg := c.Render.Background
	return flatsurf.KernelConfig{
		Epsilon:     c.Render.Epsilon,
		MaxSteps:    c.Render.MaxSteps,
		MaxDistance: c.Render.MaxDistance,
		FOV:         c.Render.FOV,
		Background:  ms3.Vec{X: bg[0], Y: bg[1], Z: bg[2]},
	}
}

// WorldConfig returns the frame loop configuration logging to log.
func (c *Config) WorldConfig(log *zap.Logger) flatsurf.WorldConfig {
	return flatsurf.WorldConfig{
		Kernel: c.KernelConfig(),
		Teleport: flatsurf.TeleportConfig{
			CrossingThreshold: c.Teleport.CrossingThreshold,
			MirrorNudge:       c.Teleport.MirrorNudge,
		},
		Movement: flatsurf.MovementConfig{
			Speed:     c.Camera.MoveSpeed,
			RiseSpeed: c.Camera.RiseSpeed,
			MinHeight: c.Camera.MinHeight,
			MaxHeight: c.Camera.MaxHeight,
		},
		Logger: log,
	}
}

// Validate reports every unusable setting.
func (c *Config) Validate() error {
	var errs []error
	wc := c.WorldConfig(nil)
	if err := wc.Kernel.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := wc.Teleport.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Camera.MinHeight > c.Camera.MaxHeight {
		errs = append(errs, errors.New("camera min_height above max_height"))
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, errors.New("window size must be positive"))
	}
	return errors.Join(errs...)
}
