// Package glrender renders signed distance fields and ray shaders to images
// on the CPU. It is the software counterpart of the generated GLSL programs
// and is used for previews, floor plans and tests.
package glrender

import (
	"image"
	"image/color"

	"github.com/soypat/geometry/ms3"
)

// RayShader colours a batch of rays. origins, dirs and colors share a length.
// userData is passed through from the renderer unchanged.
type RayShader interface {
	ShadeRays(origins, dirs, colors []ms3.Vec, userData any) error
}

// RayGenerator returns the ray through the fragment at (fragX, fragY) in window
// coordinates: origin at the bottom left corner and pixel centres at half units.
type RayGenerator func(fragX, fragY float32) (origin, dir ms3.Vec)

type setImage = interface {
	image.Image
	Set(x, y int, c color.Color)
}

// ColorRGBA converts a linear colour with components in [0, 1] to 8 bit RGBA.
// Out of range components are clamped and NaN maps to zero.
func ColorRGBA(c ms3.Vec) color.RGBA {
	return color.RGBA{R: channel(c.X), G: channel(c.Y), B: channel(c.Z), A: 255}
}

func channel(v float32) uint8 {
	if !(v > 0) {
		return 0
	} else if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
