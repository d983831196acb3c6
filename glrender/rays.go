package glrender

import (
	"errors"

	"github.com/soypat/geometry/ms3"
)

// RayImageRenderer renders a [RayShader] one image row at a time.
type RayImageRenderer struct {
	origins []ms3.Vec
	dirs    []ms3.Vec
	colors  []ms3.Vec
}

// NewRayImageRenderer returns a renderer that shades at most maxRow rays per batch.
func NewRayImageRenderer(maxRow int) (*RayImageRenderer, error) {
	if maxRow <= 0 {
		return nil, errors.New("row buffer must hold at least one ray")
	}
	return &RayImageRenderer{
		origins: make([]ms3.Vec, maxRow),
		dirs:    make([]ms3.Vec, maxRow),
		colors:  make([]ms3.Vec, maxRow),
	}, nil
}

// Render fills img with the colours shader assigns to the rays of gen.
// Image row 0 is the top of the window, which is the highest fragment row in
// window coordinates.
func (rr *RayImageRenderer) Render(shader RayShader, gen RayGenerator, img setImage, userData any) error {
	if shader == nil || gen == nil {
		return errors.New("nil shader or ray generator")
	}
	bb := img.Bounds()
	w, h := bb.Dx(), bb.Dy()
	if w > len(rr.colors) {
		return errors.New("image wider than row buffer")
	}
	for j := 0; j < h; j++ {
		fragY := float32(h-1-j) + 0.5
		for i := 0; i < w; i++ {
			rr.origins[i], rr.dirs[i] = gen(float32(i)+0.5, fragY)
		}
		err := shader.ShadeRays(rr.origins[:w], rr.dirs[:w], rr.colors[:w], userData)
		if err != nil {
			return err
		}
		for i := 0; i < w; i++ {
			img.Set(bb.Min.X+i, bb.Min.Y+j, ColorRGBA(rr.colors[i]))
		}
	}
	return nil
}
