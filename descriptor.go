package flatsurf

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

// EdgeKind is the gluing rule of a polygon edge.
type EdgeKind uint8

const (
	// EdgeNone is a solid, unglued wall.
	EdgeNone EdgeKind = iota
	// EdgeTranslation re-emerges from the destination edge shifted by [Edge.Vector].
	EdgeTranslation
	// EdgeMirror reflects the direction of travel about the wall normal.
	EdgeMirror
	// EdgeAffine maps the XZ projection with [Edge.Matrix] and [Edge.Translation].
	EdgeAffine
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeNone:
		return "none"
	case EdgeTranslation:
		return "translation"
	case EdgeMirror:
		return "mirror"
	case EdgeAffine:
		return "affine"
	}
	return "EdgeKind(" + strconv.Itoa(int(k)) + ")"
}

// ParseEdgeKind parses the textual edge kinds used in descriptor files.
func ParseEdgeKind(s string) (EdgeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return EdgeNone, nil
	case "translation":
		return EdgeTranslation, nil
	case "mirror", "reflection":
		return EdgeMirror, nil
	case "affine":
		return EdgeAffine, nil
	}
	return EdgeNone, fmt.Errorf("unknown edge kind %q", s)
}

// Edge connects Vertices[i] to Vertices[i+1] of a [Descriptor].
type Edge struct {
	Kind EdgeKind
	// Destination is the index of the edge this edge is glued to.
	// Mirrors are usually glued to themselves.
	Destination int
	// Vector is the translation applied on crossing a translation edge.
	Vector ms3.Vec
	// Normal overrides the wall normal used by mirror reflection and by the
	// crossing nudge. Zero means the polygon's outward normal.
	Normal ms3.Vec
	// Matrix is the row-major 2x2 linear part of an affine edge:
	//
	//	x' = Matrix[0]*x + Matrix[1]*z + Translation.X
	//	z' = Matrix[2]*x + Matrix[3]*z + Translation.Y
	Matrix      [4]float32
	Translation ms2.Vec
}

// DecorationKind selects a decorative primitive.
type DecorationKind uint8

const (
	DecorationSphere DecorationKind = iota
	DecorationCylinder
	DecorationHollowCube
)

func (k DecorationKind) String() string {
	switch k {
	case DecorationSphere:
		return "sphere"
	case DecorationCylinder:
		return "cylinder"
	case DecorationHollowCube:
		return "hollow_cube"
	}
	return "DecorationKind(" + strconv.Itoa(int(k)) + ")"
}

// ParseDecorationKind parses the textual decoration types used in descriptor files.
func ParseDecorationKind(s string) (DecorationKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sphere":
		return DecorationSphere, nil
	case "cylinder":
		return DecorationCylinder, nil
	case "hollow_cube", "hollowcube":
		return DecorationHollowCube, nil
	}
	return 0, fmt.Errorf("unknown decoration type %q", s)
}

// Animation moves a decoration along a horizontal circle as time advances.
type Animation struct {
	// Center of the orbit. The decoration keeps its own height.
	Center ms3.Vec
	Radius float32
	// Speed in radians per second.
	Speed float32
}

// Decoration is a purely cosmetic SDF primitive. It has no topological role.
type Decoration struct {
	Kind     DecorationKind
	Position ms3.Vec
	Radius   float32
	// Length is the full height of a cylinder.
	Length float32
	// InnerRatio is the hollow cube's box half size relative to Radius.
	InnerRatio float32
	Animation  *Animation
}

// Descriptor is the immutable description of one surface.
type Descriptor struct {
	ID          string
	Name        string
	Description string
	// Vertices is the closed polygon ring in the XZ plane (Vec.X=x, Vec.Y=z)
	// with Vertices[0] == Vertices[len(Vertices)-1].
	Vertices []ms2.Vec
	// Edges has one entry per wall, len(Vertices)-1 in total.
	Edges []Edge
	// WallHeight is the half height of the rendered walls which span [-WallHeight, WallHeight].
	WallHeight float32
	// TeleportHeight bounds |y| where crossings are evaluated. Zero means WallHeight.
	TeleportHeight float32
	// Fog darkens hits by this fraction per wall crossing.
	Fog float32
	// VerticalWrap wraps traced heights with this period. Zero disables wrapping.
	VerticalWrap float32
	// CornerRadius is the radius of the pillars covering polygon vertices. Zero disables them.
	CornerRadius    float32
	Decorations     []Decoration
	InitialPosition ms3.Vec
}

// NewDescriptor returns a descriptor with default settings for the given polygon and edges.
// An open vertex ring with one edge per vertex is closed by appending the first vertex.
func NewDescriptor(id string, vertices []ms2.Vec, edges []Edge) *Descriptor {
	d := &Descriptor{
		ID:              id,
		Name:            id,
		Vertices:        append([]ms2.Vec{}, vertices...),
		Edges:           append([]Edge{}, edges...),
		WallHeight:      DefaultWallHeight,
		Fog:             DefaultFog,
		CornerRadius:    DefaultCornerRadius,
		InitialPosition: ms3.Vec{Y: 1},
	}
	d.closeRing()
	return d
}

func (d *Descriptor) closeRing() {
	n := len(d.Vertices)
	if n > 0 && len(d.Edges) == n && d.Vertices[0] != d.Vertices[n-1] {
		d.Vertices = append(d.Vertices, d.Vertices[0])
	}
}

// NumWalls returns the number of polygon edges.
func (d *Descriptor) NumWalls() int {
	if len(d.Vertices) == 0 {
		return 0
	}
	return len(d.Vertices) - 1
}

// Kind returns the gluing kind shared by all glued edges. EdgeNone edges may not be
// mixed with glued ones. A polygon without glued edges returns EdgeNone.
func (d *Descriptor) Kind() (EdgeKind, error) {
	kind := EdgeNone
	for i, e := range d.Edges {
		if i == 0 {
			kind = e.Kind
		} else if e.Kind != kind {
			return EdgeNone, fmt.Errorf("mixed edge kinds unsupported: edge 0 is %s, edge %d is %s", kind, i, e.Kind)
		}
	}
	return kind, nil
}

// EffectiveTeleportHeight returns the |y| bound within which crossings are evaluated.
func (d *Descriptor) EffectiveTeleportHeight() float32 {
	if d.TeleportHeight > 0 {
		return d.TeleportHeight
	}
	return d.WallHeight
}

// Polygon returns the polygon SDF of the descriptor's vertex ring.
func (d *Descriptor) Polygon() (*Polygon, error) {
	return NewPolygon(d.Vertices)
}

// Validate checks the structural invariants of the descriptor and reports every violation found.
func (d *Descriptor) Validate() error {
	if d == nil {
		return loadErrorf("", "nil descriptor")
	}
	var errs errorList
	nv := len(d.Vertices)
	switch {
	case nv < 4:
		errs.errorf("closed polygon needs at least 3 distinct vertices plus the closing vertex, got %d vertices", nv)
	case d.Vertices[0] != d.Vertices[nv-1]:
		errs.errorf("polygon not closed: first vertex %v differs from last %v", d.Vertices[0], d.Vertices[nv-1])
	}
	for i, v := range d.Vertices {
		if !isFinite(v.X) || !isFinite(v.Y) {
			errs.errorf("vertex %d not finite: %v", i, v)
		}
	}
	nw := d.NumWalls()
	if len(d.Edges) != nw {
		errs.errorf("got %d edges for %d vertices, want %d edges", len(d.Edges), nv, nw)
	}
	for i := range d.Edges {
		validateEdge(&errs, i, &d.Edges[i], len(d.Edges))
	}
	if !(d.WallHeight > 0) || !isFinite(d.WallHeight) {
		errs.errorf("wall height must be positive, got %v", d.WallHeight)
	}
	if d.TeleportHeight < 0 || !isFinite(d.TeleportHeight) {
		errs.errorf("teleport height must not be negative, got %v", d.TeleportHeight)
	}
	if d.Fog < 0 || !isFinite(d.Fog) {
		errs.errorf("fog must not be negative, got %v", d.Fog)
	}
	if d.VerticalWrap < 0 || !isFinite(d.VerticalWrap) {
		errs.errorf("vertical wrap must not be negative, got %v", d.VerticalWrap)
	}
	if d.CornerRadius < 0 || !isFinite(d.CornerRadius) {
		errs.errorf("corner radius must not be negative, got %v", d.CornerRadius)
	}
	if !isFinite3(d.InitialPosition) {
		errs.errorf("initial position not finite: %v", d.InitialPosition)
	}
	for i, dec := range d.Decorations {
		validateDecoration(&errs, i, dec)
	}
	if err := errs.err(); err != nil {
		return newError(ErrLoad, d.ID, err)
	}
	return nil
}

func validateEdge(errs *errorList, i int, e *Edge, nedges int) {
	if e.Destination < 0 || e.Destination >= nedges {
		errs.errorf("edge %d destination %d out of range [0,%d)", i, e.Destination, nedges)
	}
	if !isFinite3(e.Normal) {
		errs.errorf("edge %d normal not finite", i)
	}
	switch e.Kind {
	case EdgeNone:
	case EdgeTranslation:
		if !isFinite3(e.Vector) {
			errs.errorf("edge %d translation vector not finite", i)
		}
	case EdgeMirror:
		if e.Normal != (ms3.Vec{}) && ms3.Norm(e.Normal) < epstol {
			errs.errorf("edge %d mirror normal has zero length", i)
		}
	case EdgeAffine:
		m := e.Matrix
		for _, v := range m {
			if !isFinite(v) {
				errs.errorf("edge %d affine matrix not finite", i)
				break
			}
		}
		if math32.Abs(m[0]*m[3]-m[1]*m[2]) < epstol {
			errs.errorf("edge %d affine matrix is singular", i)
		}
		if !isFinite(e.Translation.X) || !isFinite(e.Translation.Y) {
			errs.errorf("edge %d affine translation not finite", i)
		}
	default:
		errs.errorf("edge %d has unsupported kind %s", i, e.Kind)
	}
}

func validateDecoration(errs *errorList, i int, dec Decoration) {
	if !isFinite3(dec.Position) {
		errs.errorf("decoration %d position not finite", i)
	}
	if !(dec.Radius > 0) || !isFinite(dec.Radius) {
		errs.errorf("decoration %d radius must be positive, got %v", i, dec.Radius)
	}
	switch dec.Kind {
	case DecorationSphere:
	case DecorationCylinder:
		if !(dec.Length > 0) || !isFinite(dec.Length) {
			errs.errorf("decoration %d cylinder length must be positive, got %v", i, dec.Length)
		}
	case DecorationHollowCube:
		if !(dec.InnerRatio > 0) || !isFinite(dec.InnerRatio) {
			errs.errorf("decoration %d hollow cube inner ratio must be positive, got %v", i, dec.InnerRatio)
		}
	default:
		errs.errorf("decoration %d has unsupported kind %s", i, dec.Kind)
	}
	if a := dec.Animation; a != nil && (!isFinite3(a.Center) || !isFinite(a.Radius) || !isFinite(a.Speed)) {
		errs.errorf("decoration %d animation not finite", i)
	}
}

// CheckPairing verifies that glued edge pairs undo each other within tol:
// translation vectors are opposite and affine maps are mutual inverses.
// The check is not part of [Descriptor.Validate] since hand made surfaces may
// deliberately break it.
func (d *Descriptor) CheckPairing(tol float32) error {
	var errs errorList
	for i, e := range d.Edges {
		if e.Destination < 0 || e.Destination >= len(d.Edges) {
			errs.errorf("edge %d destination %d out of range", i, e.Destination)
			continue
		}
		dst := d.Edges[e.Destination]
		switch e.Kind {
		case EdgeTranslation:
			if sum := ms3.Norm(ms3.Add(e.Vector, dst.Vector)); sum > tol {
				errs.errorf("edge %d vector %v is not opposite of edge %d vector %v", i, e.Vector, e.Destination, dst.Vector)
			}
		case EdgeAffine:
			probes := [3]ms2.Vec{{}, {X: 1}, {Y: 1}}
			for _, p := range probes {
				back := affineMap(dst.Matrix, dst.Translation, affineMap(e.Matrix, e.Translation, p))
				if ms2.Norm(ms2.Sub(back, p)) > tol {
					errs.errorf("edge %d affine map is not undone by edge %d", i, e.Destination)
					break
				}
			}
		}
	}
	return errs.err()
}

// normals returns the per-edge unit normals shared by the compiler, the tracer
// and the teleporter: the override when set, else the polygon's outward normal.
func (d *Descriptor) normals(poly *Polygon) ([]ms3.Vec, error) {
	normals := make([]ms3.Vec, len(d.Edges))
	for i, e := range d.Edges {
		if e.Normal != (ms3.Vec{}) {
			normals[i] = ms3.Unit(e.Normal)
			continue
		}
		n := poly.OutwardNormal(i)
		if n == (ms2.Vec{}) {
			return nil, errors.New("edge " + strconv.Itoa(i) + " is degenerate and has no normal")
		}
		normals[i] = ms3.Vec{X: n.X, Z: n.Y}
	}
	return normals, nil
}
