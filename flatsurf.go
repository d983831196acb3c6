// Package flatsurf renders flat surfaces: polygons in the XZ ground plane
// whose edges are glued pairwise by a translation, a mirror reflection or an
// affine map. Walking through a glued wall re-emerges from its partner.
//
// The package has two halves that share one description of the gluing:
// [Compile] generates a GLSL sphere tracer that applies the edge transform while
// a ray crosses a wall, and [Teleporter] applies the identical transform to the
// viewpoint on the host. [Tracer] runs the generated kernel's algorithm on the CPU.
package flatsurf

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

const (
	DefaultWallHeight        = 2.0
	DefaultFog               = 0.01
	DefaultCornerRadius      = 0.02
	DefaultInnerRatio        = 0.77
	DefaultCrossingThreshold = 0.05
	DefaultMirrorNudge       = 0.01
	// DefaultVerticalWrap is the wrap period used by the "circle" vertical component
	// when the description does not set one.
	DefaultVerticalWrap = 4.0
)

const (
	epstol   = 6e-7
	largenum = 1e20
)

func xz(v ms3.Vec) ms2.Vec { return ms2.Vec{X: v.X, Y: v.Z} }

func isFinite(v float32) bool { return !math32.IsNaN(v) && !math32.IsInf(v, 0) }

func isFinite3(v ms3.Vec) bool { return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z) }

func cross(a, b ms3.Vec) ms3.Vec {
	return ms3.Vec{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

// glslMod is GLSL's mod: x - y*floor(x/y).
func glslMod(x, y float32) float32 {
	return x - y*math32.Floor(x/y)
}
