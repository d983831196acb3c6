package flatsurf

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
)

func square(half float32) []ms2.Vec {
	return []ms2.Vec{{X: half, Y: half}, {X: -half, Y: half}, {X: -half, Y: -half}, {X: half, Y: -half}}
}

func TestPolygonSignedDistance(t *testing.T) {
	poly, err := NewPolygon(square(2))
	if err != nil {
		t.Fatal(err)
	}
	const tol = 1e-6
	tests := []struct {
		p        ms2.Vec
		wantSD   float32
		wantEdge int
	}{
		{p: ms2.Vec{}, wantSD: -2, wantEdge: 0},                // Center ties all edges, lowest wins.
		{p: ms2.Vec{X: 0, Y: 1.5}, wantSD: -0.5, wantEdge: 0},  // Near top edge midpoint.
		{p: ms2.Vec{X: -1.9, Y: 0}, wantSD: -0.1, wantEdge: 1}, // Near left edge.
		{p: ms2.Vec{X: 0, Y: -2.5}, wantSD: 0.5, wantEdge: 2},  // Outside bottom.
		{p: ms2.Vec{X: 3, Y: 0}, wantSD: 1, wantEdge: 3},       // Outside right.
		{p: ms2.Vec{X: 0, Y: 2}, wantSD: 0, wantEdge: 0},       // On the boundary.
	}
	for _, test := range tests {
		sd, edge := poly.SignedDistance(test.p)
		if math32.Abs(sd-test.wantSD) > tol {
			t.Errorf("SignedDistance(%v): want %v, got %v", test.p, test.wantSD, sd)
		}
		if edge != test.wantEdge {
			t.Errorf("SignedDistance(%v): want edge %d, got %d", test.p, test.wantEdge, edge)
		}
	}
}

func TestPolygonBoundaryIsZero(t *testing.T) {
	poly, err := NewPolygon(square(2))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < poly.NumEdges(); i++ {
		a, b := poly.Edge(i)
		for _, p := range []ms2.Vec{a, b, ms2.Scale(0.5, ms2.Add(a, b))} {
			sd, _ := poly.SignedDistance(p)
			if sd != 0 {
				t.Errorf("edge %d point %v: want exactly zero distance, got %v", i, p, sd)
			}
		}
	}
}

func TestPolygonNearestEdgeVertexTie(t *testing.T) {
	poly, err := NewPolygon(square(2))
	if err != nil {
		t.Fatal(err)
	}
	// Vertex 0 at (2,2) is shared by edge 3 (ending there) and edge 0 (starting there).
	edge, dist := poly.NearestEdge(ms2.Vec{X: 2, Y: 2})
	if edge != 0 || dist != 0 {
		t.Errorf("want edge 0 at distance 0, got edge %d at %v", edge, dist)
	}
	// Vertex 2 at (-2,-2) is shared by edges 1 and 2.
	edge, _ = poly.NearestEdge(ms2.Vec{X: -2, Y: -2})
	if edge != 1 {
		t.Errorf("want lowest index edge 1, got %d", edge)
	}
}

func TestPolygonInside(t *testing.T) {
	// Closed input ring, the closing vertex must not add an edge.
	verts := append(square(1), ms2.Vec{X: 1, Y: 1})
	poly, err := NewPolygon(verts)
	if err != nil {
		t.Fatal(err)
	}
	if poly.NumEdges() != 4 {
		t.Fatalf("want 4 edges, got %d", poly.NumEdges())
	}
	if !poly.Inside(ms2.Vec{X: 0.5, Y: -0.5}) {
		t.Error("point should be inside")
	}
	if poly.Inside(ms2.Vec{X: 1.5, Y: 0}) {
		t.Error("point should be outside")
	}
	if poly.Area() != 4 {
		t.Errorf("want area 4, got %v", poly.Area())
	}
}

func TestPolygonOutwardNormal(t *testing.T) {
	ccw := square(2)
	cw := []ms2.Vec{ccw[3], ccw[2], ccw[1], ccw[0]}
	for _, verts := range [][]ms2.Vec{ccw, cw} {
		poly, err := NewPolygon(verts)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < poly.NumEdges(); i++ {
			a, b := poly.Edge(i)
			mid := ms2.Scale(0.5, ms2.Add(a, b))
			n := poly.OutwardNormal(i)
			if math32.Abs(ms2.Norm(n)-1) > 1e-6 {
				t.Errorf("edge %d normal %v not unit", i, n)
			}
			sd, _ := poly.SignedDistance(ms2.Add(mid, ms2.Scale(0.1, n)))
			if sd <= 0 {
				t.Errorf("ccw=%v edge %d: stepping along normal %v should leave polygon, got sd=%v", poly.CounterClockwise(), i, n, sd)
			}
		}
	}
}

func TestPolygonDegenerate(t *testing.T) {
	_, err := NewPolygon([]ms2.Vec{{}, {X: 1}})
	if err == nil {
		t.Error("expected error for two vertices")
	}
	_, err = NewPolygon([]ms2.Vec{{}, {X: 1}, {X: 2}})
	if err == nil {
		t.Error("expected error for collinear vertices")
	}
	// A repeated vertex makes a zero length edge that must not produce NaN.
	poly, err := NewPolygon([]ms2.Vec{{X: 1, Y: 1}, {X: 1, Y: 1}, {X: -1, Y: 1}, {X: -1, Y: -1}, {X: 1, Y: -1}})
	if err != nil {
		t.Fatal(err)
	}
	sd, _ := poly.SignedDistance(ms2.Vec{X: 1.5, Y: 1.5})
	if !isFinite(sd) || sd <= 0 {
		t.Errorf("want finite positive distance, got %v", sd)
	}
	if n := poly.OutwardNormal(0); n != (ms2.Vec{}) {
		t.Errorf("degenerate edge normal should be zero, got %v", n)
	}
}

func TestPolygonEvaluate(t *testing.T) {
	poly, err := NewPolygon(square(1))
	if err != nil {
		t.Fatal(err)
	}
	pos := []ms2.Vec{{}, {X: 2}}
	dist := make([]float32, 2)
	err = poly.Evaluate(pos, dist, nil)
	if err != nil {
		t.Fatal(err)
	}
	if dist[0] != -1 || dist[1] != 1 {
		t.Errorf("want [-1 1], got %v", dist)
	}
	if poly.Evaluate(pos, dist[:1], nil) == nil {
		t.Error("expected buffer length mismatch error")
	}
}
