package flatsurf_test

import (
	"errors"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/soypat/flatsurf"
	"github.com/soypat/flatsurf/surfaces"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"go.uber.org/zap/zaptest"
)

func newWorld(t *testing.T, d *flatsurf.Descriptor) *flatsurf.World {
	t.Helper()
	cfg := flatsurf.DefaultWorldConfig()
	cfg.Logger = zaptest.NewLogger(t)
	w, err := flatsurf.NewWorld(d, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

var testRes = ms2.Vec{X: 320, Y: 240}

func TestWorldStartsAtInitialPosition(t *testing.T) {
	d := surfaces.AffineSquare()
	d.InitialPosition = ms3.Vec{X: 0.5, Y: 1, Z: 0.25}
	w := newWorld(t, d)
	if w.Camera().Position != d.InitialPosition {
		t.Errorf("camera at %v", w.Camera().Position)
	}
	res := w.Frame(flatsurf.FrameInput{Dt: 0.5, Resolution: testRes})
	if res.Teleport.Teleported || res.Swapped {
		t.Errorf("idle frame changed state: %+v", res)
	}
	if res.Uniforms.CamPos != d.InitialPosition || res.Uniforms.Resolution != testRes {
		t.Errorf("uniforms %+v", res.Uniforms)
	}
	if w.Time() != 0.5 || res.Uniforms.Time != 0.5 {
		t.Errorf("time not accumulated: %v", w.Time())
	}
	if res.Surface.Descriptor != d || res.Surface.Program == nil {
		t.Errorf("frame should publish the active surface")
	}
}

func TestWorldFrameTeleports(t *testing.T) {
	w := newWorld(t, surfaces.Torus())
	w.SetCamera(flatsurf.CameraState{Position: ms3.Vec{Y: 1, Z: -1.99}})
	// Walking 0.03 down -Z crosses the bottom wall.
	res := w.Frame(flatsurf.FrameInput{Forward: 1, Dt: 0.02, Resolution: testRes})
	if !res.Teleport.Teleported || res.Teleport.Edge != 2 {
		t.Fatalf("want teleport through edge 2, got %+v", res.Teleport)
	}
	want := ms3.Vec{Y: 1, Z: 1.98}
	if !vecNear(w.Camera().Position, want, 1e-4) || !vecNear(res.Uniforms.CamPos, want, 1e-4) {
		t.Errorf("want camera at %v, got %v", want, w.Camera().Position)
	}
	if !vecNear(w.Camera().Front(), ms3.Vec{Z: -1}, 1e-5) {
		t.Errorf("translation must keep the view direction, got %v", w.Camera().Front())
	}
}

func TestWorldSolidWallReverts(t *testing.T) {
	w := newWorld(t, surfaces.SolidRoom())
	start := ms3.Vec{Y: 1, Z: -2.99}
	w.SetCamera(flatsurf.CameraState{Position: start})
	res := w.Frame(flatsurf.FrameInput{Forward: 1, Dt: 0.02, Resolution: testRes})
	if !res.Teleport.Reverted {
		t.Fatalf("want revert, got %+v", res.Teleport)
	}
	if w.Camera().Position != start {
		t.Errorf("want camera back at %v, got %v", start, w.Camera().Position)
	}
}

func TestWorldSlowFramesCrossTorusWall(t *testing.T) {
	w := newWorld(t, surfaces.Torus())
	// Facing +X toward the right wall.
	w.SetCamera(flatsurf.CameraState{Position: ms3.Vec{X: 1.98, Y: 1}, Yaw: math32.Pi / 2})
	teleported := 0
	for i := 0; i < 5; i++ {
		res := w.Frame(flatsurf.FrameInput{Forward: 1, Dt: 1.0 / 20, Resolution: testRes})
		if res.Teleport.Teleported {
			teleported++
		}
	}
	if teleported != 1 {
		t.Fatalf("want exactly one teleport at 20 fps, got %d", teleported)
	}
	// 5 frames at 1.5 units/s move 0.375 and the wall wraps x by -4.
	want := ms3.Vec{X: 1.98 + 0.375 - 4, Y: 1}
	if !vecNear(w.Camera().Position, want, 1e-3) {
		t.Errorf("want camera at %v, got %v", want, w.Camera().Position)
	}
}

func TestWorldSlowFramesStopAtSolidWall(t *testing.T) {
	w := newWorld(t, surfaces.SolidRoom())
	w.SetCamera(flatsurf.CameraState{Position: ms3.Vec{Y: 1, Z: -2.9}})
	reverted := false
	for i := 0; i < 10; i++ {
		res := w.Frame(flatsurf.FrameInput{Forward: 1, Dt: 1.0 / 20, Resolution: testRes})
		reverted = reverted || res.Teleport.Reverted
		if z := w.Camera().Position.Z; z < -3 {
			t.Fatalf("frame %d: camera walked through the wall to z=%v", i, z)
		}
	}
	if !reverted {
		t.Error("want the wall crossing reverted")
	}
}

func TestWorldHeightClamp(t *testing.T) {
	w := newWorld(t, surfaces.Torus())
	w.Frame(flatsurf.FrameInput{Rise: 1, Dt: 100, Resolution: testRes})
	if got := w.Camera().Position.Y; got != flatsurf.DefaultMovementConfig().MaxHeight {
		t.Errorf("height not clamped: %v", got)
	}
}

func waitSwap(t *testing.T, w *flatsurf.World) flatsurf.FrameResult {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		res := w.Frame(flatsurf.FrameInput{Dt: 0.01, Resolution: testRes})
		if res.Swapped {
			return res
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("swap never applied")
	return flatsurf.FrameResult{}
}

func recvErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("no swap outcome")
		return nil
	}
}

func TestWorldSwap(t *testing.T) {
	w := newWorld(t, surfaces.Torus())
	w.Frame(flatsurf.FrameInput{Forward: 1, Dt: 0.5, Resolution: testRes})
	next := surfaces.AffineSquare()
	done := w.RequestSwap(next)
	res := waitSwap(t, w)
	if err := recvErr(t, done); err != nil {
		t.Fatal(err)
	}
	if res.Surface.Descriptor != next || w.Surface().Descriptor != next {
		t.Errorf("swapped surface not active")
	}
	if res.Surface.Program.Kind() != flatsurf.EdgeAffine {
		t.Errorf("program and descriptor out of step: %s", res.Surface.Program.Kind())
	}
	if w.Camera().Position != next.InitialPosition {
		t.Errorf("camera should restart at %v, got %v", next.InitialPosition, w.Camera().Position)
	}
}

func TestWorldSwapSuperseded(t *testing.T) {
	w := newWorld(t, surfaces.Torus())
	first := w.RequestSwap(surfaces.LShape(2))
	last := surfaces.DoublePentagon()
	second := w.RequestSwap(last)
	if err := recvErr(t, first); !errors.Is(err, flatsurf.ErrSuperseded) {
		t.Errorf("want superseded, got %v", err)
	}
	res := waitSwap(t, w)
	if err := recvErr(t, second); err != nil {
		t.Fatal(err)
	}
	if res.Surface.Descriptor != last {
		t.Errorf("want newest surface active, got %s", res.Surface.Descriptor.ID)
	}
}

func TestWorldSwapFailureKeepsSurface(t *testing.T) {
	old := surfaces.Torus()
	w := newWorld(t, old)
	bad := surfaces.Torus()
	bad.Edges[0].Kind = flatsurf.EdgeMirror
	err := recvErr(t, w.RequestSwap(bad))
	if !flatsurf.IsKind(err, flatsurf.ErrCompile) {
		t.Fatalf("want compile error, got %v", err)
	}
	res := w.Frame(flatsurf.FrameInput{Dt: 0.01, Resolution: testRes})
	if res.Swapped || w.Surface().Descriptor != old {
		t.Error("failed swap must keep the active surface")
	}
}
