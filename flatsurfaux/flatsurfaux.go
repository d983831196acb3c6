// Package flatsurfaux provides auxiliary tools for flat surfaces: PNG floor
// plans, CPU rendered previews and an interactive viewer.
package flatsurfaux

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"strconv"
	"sync"

	math "github.com/chewxy/math32"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/soypat/flatsurf"
	"github.com/soypat/flatsurf/glrender"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// FloorPlanConfig configures [FloorPlan].
type FloorPlanConfig struct {
	// Height is the image height in pixels. The width follows the polygon's aspect ratio.
	Height int
	// Margin is the space around the polygon in plane units.
	Margin float32
	// Supersample renders at this multiple of the output size before downscaling.
	Supersample int
	// Labels draws the edge index next to every wall.
	Labels bool
	// Conversion maps polygon signed distance to colour. nil selects [ColorConversionInigoQuilez].
	Conversion func(float32) color.Color
}

// DefaultFloorPlanConfig returns a labeled 512 pixel high floor plan configuration.
func DefaultFloorPlanConfig() FloorPlanConfig {
	return FloorPlanConfig{Height: 512, Margin: 0.5, Supersample: 2, Labels: true}
}

// FloorPlan renders the top view of d: the polygon's signed distance field with
// walls coloured by glued pair, decorations and the initial position.
// Image rows follow +Z so the initial view direction (-Z) points up.
func FloorPlan(d *flatsurf.Descriptor, cfg FloorPlanConfig) (*image.RGBA, error) {
	if cfg.Height <= 0 {
		return nil, errors.New("floor plan height must be positive")
	} else if cfg.Margin < 0 {
		return nil, errors.New("negative floor plan margin")
	}
	ss := max(cfg.Supersample, 1)
	poly, err := d.Polygon()
	if err != nil {
		return nil, err
	}
	bb := poly.Bounds()
	sz := bb.Size()
	m := cfg.Margin
	width := max(1, int(float32(cfg.Height)*(sz.X+2*m)/(sz.Y+2*m)+0.5))
	hiW, hiH := width*ss, cfg.Height*ss
	conv := cfg.Conversion
	if conv == nil {
		conv = ColorConversionInigoQuilez(ms2.Norm(sz) / 3)
	}
	ir, err := glrender.NewImageRendererSDF2(max(hiH, 65), conv)
	if err != nil {
		return nil, err
	}
	hi := image.NewRGBA(image.Rect(0, 0, hiW, hiH))
	err = ir.Render(poly, hi, m, nil)
	if err != nil {
		return nil, fmt.Errorf("rendering polygon: %w", err)
	}

	vp := glrender.FitViewport(bb, m, hiW, hiH)
	palette := PairPalette(d)
	for i := range d.Edges {
		a, b := poly.Edge(i)
		drawSegment(hi, vp, a, b, 1.5*float32(ss), palette[i])
	}
	for _, dec := range d.Decorations {
		drawDisc(hi, vp, xz(dec.Position), dec.Radius/vp.Scale, color.RGBA{R: 60, G: 60, B: 60, A: 255})
	}
	drawDisc(hi, vp, xz(d.InitialPosition), 3*float32(ss), color.RGBA{R: 220, G: 30, B: 30, A: 255})

	out := image.NewRGBA(image.Rect(0, 0, width, cfg.Height))
	draw.CatmullRom.Scale(out, out.Bounds(), hi, hi.Bounds(), draw.Src, nil)
	if cfg.Labels {
		err = drawLabels(out, d, poly, glrender.FitViewport(bb, m, width, cfg.Height))
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// PreviewConfig configures [Preview].
type PreviewConfig struct {
	Width, Height int
	// Supersample traces this many rays per pixel along each axis.
	Supersample int
	// Time is the animation time passed to animated decorations.
	Time   float32
	Kernel flatsurf.KernelConfig
}

// DefaultPreviewConfig returns a 640x480 preview configuration.
func DefaultPreviewConfig() PreviewConfig {
	return PreviewConfig{Width: 640, Height: 480, Supersample: 1, Kernel: flatsurf.DefaultKernelConfig()}
}

// Preview traces the first person view of cam on the CPU with the algorithm of the generated program.
func Preview(d *flatsurf.Descriptor, cam flatsurf.CameraState, cfg PreviewConfig) (*image.RGBA, error) {
	tr, err := flatsurf.NewTracer(d, cfg.Kernel)
	if err != nil {
		return nil, err
	}
	return PreviewTracer(tr, cam, cfg)
}

// PreviewTracer is [Preview] with an existing tracer. cfg.Kernel is ignored.
func PreviewTracer(tr *flatsurf.Tracer, cam flatsurf.CameraState, cfg PreviewConfig) (*image.RGBA, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.New("preview size must be positive")
	}
	ss := max(cfg.Supersample, 1)
	w, h := cfg.Width*ss, cfg.Height*ss
	u := flatsurf.UniformsFor(cam, cfg.Time, ms2.Vec{X: float32(w), Y: float32(h)})
	fov := tr.FOVScale()
	gen := func(fragX, fragY float32) (ms3.Vec, ms3.Vec) {
		return u.CamPos, u.ViewRay(fragX, fragY, fov)
	}
	rr, err := glrender.NewRayImageRenderer(w)
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	err = rr.Render(tr, gen, img, &flatsurf.EvalContext{Time: cfg.Time})
	if err != nil {
		return nil, fmt.Errorf("tracing preview: %w", err)
	}
	if ss == 1 {
		return img, nil
	}
	out := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	draw.BiLinear.Scale(out, out.Bounds(), img, img.Bounds(), draw.Src, nil)
	return out, nil
}

// WritePNGFile encodes img as PNG into the named file.
func WritePNGFile(filename string, img image.Image) error {
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer fp.Close()
	err = png.Encode(fp, img)
	if err != nil {
		return err
	}
	return fp.Sync()
}

// WritePNG encodes img as PNG into w.
func WritePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

func xz(v ms3.Vec) ms2.Vec { return ms2.Vec{X: v.X, Y: v.Z} }

func drawDisc(img *image.RGBA, vp glrender.Viewport, center ms2.Vec, radius float32, c color.RGBA) {
	cx, cy := vp.Pixel(center)
	r := math.Max(radius, 0.5)
	bounds := img.Bounds()
	x0, x1 := int(cx-r), int(cx+r)+1
	y0, y1 := int(cy-r), int(cy+r)+1
	for y := max(y0, bounds.Min.Y); y < min(y1, bounds.Max.Y); y++ {
		for x := max(x0, bounds.Min.X); x < min(x1, bounds.Max.X); x++ {
			dx := float32(x) + 0.5 - cx
			dy := float32(y) + 0.5 - cy
			if dx*dx+dy*dy <= r*r {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func drawSegment(img *image.RGBA, vp glrender.Viewport, a, b ms2.Vec, thickness float32, c color.RGBA) {
	length := ms2.Norm(ms2.Sub(b, a)) / vp.Scale
	steps := max(1, int(2*length))
	for k := 0; k <= steps; k++ {
		t := float32(k) / float32(steps)
		p := ms2.Add(a, ms2.Scale(t, ms2.Sub(b, a)))
		drawDisc(img, vp, p, thickness, c)
	}
}

var (
	labelFontOnce sync.Once
	labelFont     *truetype.Font
	labelFontErr  error
)

func drawLabels(img *image.RGBA, d *flatsurf.Descriptor, poly *flatsurf.Polygon, vp glrender.Viewport) error {
	labelFontOnce.Do(func() {
		labelFont, labelFontErr = freetype.ParseFont(goregular.TTF)
	})
	if labelFontErr != nil {
		return fmt.Errorf("parsing label font: %w", labelFontErr)
	}
	const size = 12
	ctx := freetype.NewContext()
	ctx.SetDPI(72)
	ctx.SetFont(labelFont)
	ctx.SetFontSize(size)
	ctx.SetHinting(font.HintingFull)
	ctx.SetClip(img.Bounds())
	ctx.SetDst(img)
	ctx.SetSrc(image.NewUniform(color.Black))
	// Labels sit inside the polygon, a few pixels off the wall midpoint.
	offset := 10 * vp.Scale
	for i := range d.Edges {
		a, b := poly.Edge(i)
		mid := ms2.Scale(0.5, ms2.Add(a, b))
		n := poly.OutwardNormal(i)
		px, py := vp.Pixel(ms2.Sub(mid, ms2.Scale(offset, n)))
		label := strconv.Itoa(i)
		_, err := ctx.DrawString(label, freetype.Pt(int(px)-3*len(label), int(py)+size/2))
		if err != nil {
			return err
		}
	}
	return nil
}
