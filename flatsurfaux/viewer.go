package flatsurfaux

import (
	"context"
	"errors"

	"github.com/soypat/flatsurf"
	"go.uber.org/zap"
)

// ViewerConfig configures [RunViewer].
type ViewerConfig struct {
	Width, Height int
	Title         string
	// LookSensitivity is the camera turn in radians per pixel of mouse motion.
	LookSensitivity float32
	// Surfaces are cycled through with the N and P keys.
	Surfaces []*flatsurf.Descriptor
	// Context stops the viewer when done. May be nil.
	Context context.Context
	Logger  *zap.Logger
}

// DefaultViewerConfig returns an 800x600 viewer configuration.
func DefaultViewerConfig() ViewerConfig {
	return ViewerConfig{Width: 800, Height: 600, Title: "flatsurf", LookSensitivity: 0.003}
}

// RunViewer opens a window and renders world with its compiled GLSL program
// until the window is closed. WASD moves, space and shift rise and sink,
// dragging with the left mouse button looks around and N/P swap surfaces.
// It must be called from the main goroutine and requires cgo.
func RunViewer(world *flatsurf.World, cfg ViewerConfig) error {
	if world == nil {
		return errors.New("nil world")
	} else if cfg.Width <= 0 || cfg.Height <= 0 {
		return errors.New("window size must be positive")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.LookSensitivity <= 0 {
		cfg.LookSensitivity = DefaultViewerConfig().LookSensitivity
	}
	return ui(world, cfg)
}

// cycle returns the surface step positions away from the one with id.
func cycle(surfaces []*flatsurf.Descriptor, id string, step int) *flatsurf.Descriptor {
	n := len(surfaces)
	if n == 0 {
		return nil
	}
	cur := 0
	for i, d := range surfaces {
		if d.ID == id {
			cur = i
			break
		}
	}
	next := ((cur+step)%n + n) % n
	return surfaces[next]
}
