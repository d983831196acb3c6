package flatsurf

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/soypat/flatsurf/gleval"
	"github.com/soypat/geometry/ms2"
)

var _ gleval.SDF2 = (*Polygon)(nil)

// Polygon is the signed distance field of a simple polygon in the XZ plane.
// Distances are negative inside. Edge i runs from vertex i to vertex i+1 (mod N).
type Polygon struct {
	verts []ms2.Vec
	// orient is +1 for counter clockwise winding and -1 for clockwise.
	orient float32
	area   float32
	bb     ms2.Box
}

// NewPolygon builds a polygon from a vertex ring. The ring may be closed
// (last vertex repeats the first) or open.
func NewPolygon(vertices []ms2.Vec) (*Polygon, error) {
	verts := vertices
	if n := len(verts); n > 1 && verts[0] == verts[n-1] {
		verts = verts[:n-1]
	}
	if len(verts) < 3 {
		return nil, errors.New("polygon needs at least 3 vertices")
	}
	p := &Polygon{verts: append([]ms2.Vec{}, verts...)}
	var area2 float32
	bb := ms2.Box{Min: p.verts[0], Max: p.verts[0]}
	for i, v := range p.verts {
		w := p.verts[(i+1)%len(p.verts)]
		area2 += v.X*w.Y - w.X*v.Y
		bb.Min = ms2.Vec{X: math32.Min(bb.Min.X, v.X), Y: math32.Min(bb.Min.Y, v.Y)}
		bb.Max = ms2.Vec{X: math32.Max(bb.Max.X, v.X), Y: math32.Max(bb.Max.Y, v.Y)}
	}
	if math32.Abs(area2) < epstol {
		return nil, errors.New("polygon has zero area")
	}
	p.orient = 1
	if area2 < 0 {
		p.orient = -1
	}
	p.area = math32.Abs(area2) / 2
	p.bb = bb
	return p, nil
}

// NumEdges returns the number of edges which equals the number of distinct vertices.
func (p *Polygon) NumEdges() int { return len(p.verts) }

// Vertex returns vertex i modulo the vertex count.
func (p *Polygon) Vertex(i int) ms2.Vec {
	n := len(p.verts)
	return p.verts[((i%n)+n)%n]
}

// Edge returns the end points of edge i.
func (p *Polygon) Edge(i int) (a, b ms2.Vec) {
	return p.Vertex(i), p.Vertex(i + 1)
}

// Area returns the unsigned polygon area.
func (p *Polygon) Area() float32 { return p.area }

// CounterClockwise reports whether the vertices wind counter clockwise when
// X points right and Z points up.
func (p *Polygon) CounterClockwise() bool { return p.orient > 0 }

// Inside reports whether pt is strictly inside the polygon by the even-odd rule.
func (p *Polygon) Inside(pt ms2.Vec) bool {
	inside := false
	n := len(p.verts)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := p.verts[i], p.verts[j]
		if (vi.Y > pt.Y) != (vj.Y > pt.Y) &&
			pt.X < (vj.X-vi.X)*(pt.Y-vi.Y)/(vj.Y-vi.Y)+vi.X {
			inside = !inside
		}
	}
	return inside
}

// NearestEdge returns the index of the edge closest to pt and the unsigned distance to it.
// Ties resolve to the lowest index.
func (p *Polygon) NearestEdge(pt ms2.Vec) (edge int, dist float32) {
	dist = math32.Inf(1)
	for i := range p.verts {
		a, b := p.Edge(i)
		d := segmentDistance(pt, a, b)
		if d < dist {
			dist = d
			edge = i
		}
	}
	return edge, dist
}

// SignedDistance returns the distance from pt to the polygon boundary,
// negative inside, positive outside and exactly zero on the boundary.
func (p *Polygon) SignedDistance(pt ms2.Vec) (sd float32, edge int) {
	edge, d := p.NearestEdge(pt)
	if d == 0 || p.Inside(pt) {
		return -d, edge
	}
	return d, edge
}

// OutwardNormal returns the unit normal of edge i pointing out of the polygon.
// Degenerate edges return the zero vector.
func (p *Polygon) OutwardNormal(i int) ms2.Vec {
	a, b := p.Edge(i)
	d := ms2.Sub(b, a)
	l := ms2.Norm(d)
	if l < epstol {
		return ms2.Vec{}
	}
	// Rotating the edge direction clockwise points out of a counter clockwise polygon.
	return ms2.Scale(p.orient/l, ms2.Vec{X: d.Y, Y: -d.X})
}

// Evaluate implements [gleval.SDF2].
func (p *Polygon) Evaluate(pos []ms2.Vec, dist []float32, userData any) error {
	if err := gleval.CheckBuffers(pos, dist); err != nil {
		return err
	}
	for i, pt := range pos {
		dist[i], _ = p.SignedDistance(pt)
	}
	return nil
}

// Bounds implements [gleval.SDF2].
func (p *Polygon) Bounds() ms2.Box { return p.bb }

// segmentDistance returns the distance from p to the segment a-b. A degenerate
// segment measures the distance to a.
func segmentDistance(p, a, b ms2.Vec) float32 {
	pa := ms2.Sub(p, a)
	ba := ms2.Sub(b, a)
	l2 := ms2.Dot(ba, ba)
	if l2 == 0 {
		return ms2.Norm(pa)
	}
	k := ms2.Dot(pa, ba) / l2
	k = math32.Max(0, math32.Min(1, k))
	return ms2.Norm(ms2.Sub(pa, ms2.Scale(k, ba)))
}
