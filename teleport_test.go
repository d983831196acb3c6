package flatsurf_test

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/flatsurf"
	"github.com/soypat/flatsurf/surfaces"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

func newTeleporter(t *testing.T, d *flatsurf.Descriptor) *flatsurf.Teleporter {
	t.Helper()
	tp, err := flatsurf.NewTeleporter(d, flatsurf.DefaultTeleportConfig())
	if err != nil {
		t.Fatal(err)
	}
	return tp
}

func vecNear(a, b ms3.Vec, tol float32) bool {
	return ms3.Norm(ms3.Sub(a, b)) <= tol
}

func TestTeleportTorus(t *testing.T) {
	tp := newTeleporter(t, surfaces.Torus())
	dir := ms3.Vec{X: 1}
	res := tp.Check(ms3.Vec{X: 2.05, Y: 1}, dir)
	if !res.Teleported {
		t.Fatalf("expected teleport, got %+v", res)
	}
	if res.Edge != 3 {
		t.Errorf("want right edge 3, got %d", res.Edge)
	}
	want := ms3.Vec{X: -1.95, Y: 1}
	if !vecNear(res.Position, want, 1e-5) {
		t.Errorf("want %v, got %v", want, res.Position)
	}
	if res.Direction != dir {
		t.Errorf("translation must keep direction, got %v", res.Direction)
	}
}

func TestTeleportStationary(t *testing.T) {
	for _, d := range []*flatsurf.Descriptor{surfaces.Torus(), surfaces.DoublePentagon(), surfaces.AffineSquare(), surfaces.DoublePentagonMirror()} {
		tp := newTeleporter(t, d)
		pos := d.InitialPosition
		for frame := 0; frame < 100; frame++ {
			res := tp.Check(pos, ms3.Vec{Z: -1})
			if res.Teleported || res.Reverted || res.Position != pos {
				t.Fatalf("%s: stationary camera moved at frame %d: %+v", d.ID, frame, res)
			}
		}
		if tp.LastGood() != pos {
			t.Errorf("%s: last good position should be the stationary position", d.ID)
		}
	}
}

func TestTeleportCorner(t *testing.T) {
	tp := newTeleporter(t, surfaces.Torus())
	dir := ms3.Unit(ms3.Vec{X: 1, Z: 1})
	// Exactly on a vertex counts as inside.
	res := tp.Check(ms3.Vec{X: 2, Y: 1, Z: 2}, dir)
	if res.Teleported || res.Reverted {
		t.Fatalf("vertex must not teleport: %+v", res)
	}
	// Just past the corner resolves through both adjacent walls within two frames.
	pos := ms3.Vec{X: 2.01, Y: 1, Z: 2.01}
	teleports := 0
	for frame := 0; frame < 3; frame++ {
		res = tp.Check(pos, dir)
		if res.Reverted {
			t.Fatalf("corner crossing reverted: %+v", res)
		}
		if res.Teleported {
			teleports++
		}
		pos = res.Position
	}
	if teleports != 2 {
		t.Errorf("want 2 teleports, got %d", teleports)
	}
	want := ms3.Vec{X: -1.99, Y: 1, Z: -1.99}
	if !vecNear(pos, want, 1e-5) {
		t.Errorf("want %v, got %v", want, pos)
	}
}

func TestTeleportHeightBand(t *testing.T) {
	d := surfaces.Torus()
	tp := newTeleporter(t, d)
	res := tp.Check(ms3.Vec{X: 2.02, Y: d.WallHeight + 0.5}, ms3.Vec{X: 1})
	if res.Teleported {
		t.Error("crossing above the walls must not teleport")
	}
	d.TeleportHeight = 10
	tp = newTeleporter(t, d)
	res = tp.Check(ms3.Vec{X: 2.02, Y: d.WallHeight + 0.5}, ms3.Vec{X: 1})
	if !res.Teleported {
		t.Error("crossing within a raised teleport band must teleport")
	}
}

func TestTeleportThreshold(t *testing.T) {
	tp := newTeleporter(t, surfaces.Torus())
	far := ms3.Vec{X: 2.5, Y: 1}
	res := tp.Check(far, ms3.Vec{X: 1})
	if res.Teleported || res.Position != far {
		t.Errorf("position past the crossing threshold must be left alone, got %+v", res)
	}
}

func TestTeleportDoublePentagon(t *testing.T) {
	d := surfaces.DoublePentagon()
	if len(d.Edges) != 8 {
		t.Fatalf("want 8 edges, got %d", len(d.Edges))
	}
	v := d.Vertices
	for i, e := range d.Edges {
		if e.Destination != (i+4)%8 {
			t.Errorf("edge %d: want partner %d, got %d", i, (i+4)%8, e.Destination)
		}
		want := ms2.Sub(v[(i+5)%8], v[i])
		if math32.Abs(e.Vector.X-want.X) > 1e-5 || math32.Abs(e.Vector.Z-want.Y) > 1e-5 || e.Vector.Y != 0 {
			t.Errorf("edge %d: want vector %v, got %v", i, want, e.Vector)
		}
	}
	e0 := d.Edges[0].Vector
	if math32.Abs(e0.X+5.854102) > 1e-4 || math32.Abs(e0.Z+1.902113) > 1e-4 {
		t.Errorf("edge 0 vector: want (-5.854, -1.902), got %v", e0)
	}
	if err := d.CheckPairing(1e-5); err != nil {
		t.Error(err)
	}

	tp := newTeleporter(t, d)
	poly, err := d.Polygon()
	if err != nil {
		t.Fatal(err)
	}
	for i := range d.Edges {
		a, b := poly.Edge(i)
		mid := ms2.Scale(0.5, ms2.Add(a, b))
		n := poly.OutwardNormal(i)
		out := ms2.Add(mid, ms2.Scale(0.02, n))
		res := tp.Check(ms3.Vec{X: out.X, Y: 1, Z: out.Y}, ms3.Vec{X: n.X, Z: n.Y})
		if !res.Teleported || res.Edge != i {
			t.Fatalf("edge %d: expected teleport, got %+v", i, res)
		}
		sd, _ := poly.SignedDistance(ms2.Vec{X: res.Position.X, Y: res.Position.Z})
		if sd >= 0 {
			t.Errorf("edge %d: teleported position %v not inside (sd=%v)", i, res.Position, sd)
		}
	}
}

func TestTeleportMirror(t *testing.T) {
	d := surfaces.DoublePentagonMirror()
	tp := newTeleporter(t, d)
	poly, err := d.Polygon()
	if err != nil {
		t.Fatal(err)
	}
	cfg := flatsurf.DefaultTeleportConfig()
	const sd = 0.02
	for i := range d.Edges {
		a, b := poly.Edge(i)
		mid := ms2.Scale(0.5, ms2.Add(a, b))
		n2 := poly.OutwardNormal(i)
		n := ms3.Vec{X: n2.X, Z: n2.Y}
		pos := ms3.Vec{X: mid.X + sd*n.X, Y: 1, Z: mid.Y + sd*n.Z}
		dir := ms3.Unit(ms3.Add(n, ms3.Vec{X: 0.3, Y: 0.1}))
		res := tp.Check(pos, dir)
		if !res.Teleported {
			t.Fatalf("edge %d: expected mirror teleport, got %+v", i, res)
		}
		if got, want := ms3.Dot(res.Direction, n), -ms3.Dot(dir, n); math32.Abs(got-want) > 1e-5 {
			t.Errorf("edge %d: normal component want %v, got %v", i, want, got)
		}
		tangential := ms3.Sub(dir, ms3.Scale(ms3.Dot(dir, n), n))
		gotTangential := ms3.Sub(res.Direction, ms3.Scale(ms3.Dot(res.Direction, n), n))
		if !vecNear(tangential, gotTangential, 1e-5) {
			t.Errorf("edge %d: tangential component changed", i)
		}
		if moved := ms3.Norm(ms3.Sub(res.Position, pos)); moved > sd+cfg.MirrorNudge+1e-5 {
			t.Errorf("edge %d: moved %v, more than distance plus nudge", i, moved)
		}
		sdAfter, _ := poly.SignedDistance(ms2.Vec{X: res.Position.X, Y: res.Position.Z})
		if sdAfter >= 0 {
			t.Errorf("edge %d: mirrored position not inside (sd=%v)", i, sdAfter)
		}
		// Reflecting twice restores the direction.
		back := tp.Check(ms3.Vec{X: mid.X + sd*n.X, Y: 1, Z: mid.Y + sd*n.Z}, res.Direction)
		if !vecNear(back.Direction, dir, 1e-5) {
			t.Errorf("edge %d: mirror is not an involution: %v != %v", i, back.Direction, dir)
		}
	}
}

func TestTeleportAffine(t *testing.T) {
	d := surfaces.AffineSquare()
	if err := d.CheckPairing(1e-6); err != nil {
		t.Fatal(err)
	}
	tp := newTeleporter(t, d)
	// Walking out of the top wall re-emerges from the right wall heading -X.
	res := tp.Check(ms3.Vec{X: 0.5, Y: 1, Z: 2.02}, ms3.Vec{Z: 1})
	if !res.Teleported || res.Edge != 0 {
		t.Fatalf("expected teleport through edge 0, got %+v", res)
	}
	if want := (ms3.Vec{X: 1.98, Y: 1, Z: 0.5}); !vecNear(res.Position, want, 1e-5) {
		t.Errorf("want position %v, got %v", want, res.Position)
	}
	if want := (ms3.Vec{X: -1}); !vecNear(res.Direction, want, 1e-6) {
		t.Errorf("want direction %v, got %v", want, res.Direction)
	}
	// Round trip: every glued pair composes to the identity.
	for i, e := range d.Edges {
		dst := d.Edges[e.Destination]
		p := ms2.Vec{X: 0.3, Y: -1.1}
		q := affine(dst.Matrix, dst.Translation, affine(e.Matrix, e.Translation, p))
		if ms2.Norm(ms2.Sub(p, q)) > 1e-5 {
			t.Errorf("edge %d: round trip %v -> %v", i, p, q)
		}
	}
}

func affine(m [4]float32, tr, v ms2.Vec) ms2.Vec {
	return ms2.Vec{X: m[0]*v.X + m[1]*v.Y + tr.X, Y: m[2]*v.X + m[3]*v.Y + tr.Y}
}

func TestTeleportSolidWallReverts(t *testing.T) {
	tp := newTeleporter(t, surfaces.SolidRoom())
	good := ms3.Vec{X: 2.9, Y: 1}
	res := tp.Check(good, ms3.Vec{X: 1})
	if res.Teleported || res.Reverted {
		t.Fatalf("inside position changed: %+v", res)
	}
	res = tp.Check(ms3.Vec{X: 3.02, Y: 1}, ms3.Vec{X: 1})
	if !res.Reverted || res.Position != good {
		t.Errorf("want revert to %v, got %+v", good, res)
	}
	if !flatsurf.IsKind(res.Err(), flatsurf.ErrTeleport) {
		t.Errorf("want teleport error kind, got %v", res.Err())
	}
}

func TestTeleportNonFinite(t *testing.T) {
	d := surfaces.Torus()
	tp := newTeleporter(t, d)
	res := tp.Check(ms3.Vec{X: math32.NaN(), Y: 1}, ms3.Vec{X: 1})
	if !res.Reverted || res.Position != d.InitialPosition {
		t.Errorf("want revert to initial position, got %+v", res)
	}
}
