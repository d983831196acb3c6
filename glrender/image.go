package glrender

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/soypat/flatsurf/gleval"
	"github.com/soypat/geometry/ms2"
)

// ImageRendererSDF2 converts 2D SDFs to images.
type ImageRendererSDF2 struct {
	conv func(f float32) color.Color
	pos  []ms2.Vec
	dist []float32
}

// NewImageRendererSDF2 instances a new [ImageRendererSDF2] to render images from 2D SDFs. A nil float->color conversion
// function results in a simple black-white color scheme where black is the interior of the SDF (negative distance).
func NewImageRendererSDF2(evalBufferSize int, conversion func(float32) color.Color) (*ImageRendererSDF2, error) {
	if evalBufferSize <= 64 {
		return nil, errors.New("too small evaluation buffer size")
	}
	if conversion == nil {
		conversion = func(f float32) color.Color {
			switch {
			case math32.IsNaN(f) || math32.IsInf(f, 0):
				return color.RGBA{R: 255, A: 255}
			case f > 0:
				return color.White
			default:
				return color.Black
			}
		}
	}
	ir := &ImageRendererSDF2{
		conv: conversion,
		pos:  make([]ms2.Vec, evalBufferSize),
		dist: make([]float32, evalBufferSize),
	}
	return ir, nil
}

// Render maps the SDF2 bounds grown by margin on every side to the input image and renders it.
// Image columns follow +X and rows follow +Y of the SDF. It uses userData as an argument to all [gleval.SDF2.Evaluate] calls.
func (ir *ImageRendererSDF2) Render(sdf gleval.SDF2, img setImage, margin float32, userData any) error {
	imgBB := img.Bounds()
	dxi := imgBB.Dx()
	dyi := imgBB.Dy()
	if dxi == 0 || dyi == 0 {
		return errors.New("empty image")
	} else if len(ir.dist) < dyi {
		return fmt.Errorf("require evaluation buffer (%d) to be at least of length of image rows (%d)", len(ir.dist), dyi)
	}
	vp := FitViewport(sdf.Bounds(), margin, dxi, dyi)
	for i := 0; i < dxi; i++ {
		x := vp.World(i, 0).X
		err := ir.renderColumn(sdf, i, x, vp.Origin.Y, vp.Scale, imgBB, img, userData)
		if err != nil {
			return err
		}
	}
	return nil
}

// Viewport maps image pixels to the plane with square pixels.
type Viewport struct {
	// Origin is the plane position of the centre of pixel (0, 0).
	Origin ms2.Vec
	// Scale is the pixel size in plane units.
	Scale float32
}

// FitViewport returns the viewport that fits bb grown by margin into a width*height image.
// The larger extent sets the scale and the other axis is centered.
func FitViewport(bb ms2.Box, margin float32, width, height int) Viewport {
	bb.Min = ms2.AddScalar(-margin, bb.Min)
	bb.Max = ms2.AddScalar(margin, bb.Max)
	sz := bb.Size()
	scale := math32.Max(sz.X/float32(width), sz.Y/float32(height))
	center := bb.Center()
	return Viewport{
		Origin: ms2.Vec{
			X: center.X - scale*float32(width)/2 + scale/2,
			Y: center.Y - scale*float32(height)/2 + scale/2,
		},
		Scale: scale,
	}
}

// World returns the plane position of the centre of pixel (i, j).
func (vp Viewport) World(i, j int) ms2.Vec {
	return ms2.Vec{X: vp.Origin.X + float32(i)*vp.Scale, Y: vp.Origin.Y + float32(j)*vp.Scale}
}

// Pixel returns the fractional pixel coordinates of plane position p.
func (vp Viewport) Pixel(p ms2.Vec) (x, y float32) {
	return (p.X-vp.Origin.X)/vp.Scale + 0.5, (p.Y-vp.Origin.Y)/vp.Scale + 0.5
}

func (ir *ImageRendererSDF2) renderColumn(sdf gleval.SDF2, col int, x, ymin, dy float32, imgBB image.Rectangle, img setImage, userData any) error {
	dyi := imgBB.Dy()
	for j := 0; j < dyi; j++ {
		y := float32(j)*dy + ymin
		ir.pos[j] = ms2.Vec{X: x, Y: y}
	}
	err := sdf.Evaluate(ir.pos[:dyi], ir.dist[:dyi], userData)
	if err != nil {
		return err
	}
	conv := ir.conv
	for j := 0; j < dyi; j++ {
		d := ir.dist[j]
		img.Set(col+imgBB.Min.X, j+imgBB.Min.Y, conv(d))
	}
	return nil
}
