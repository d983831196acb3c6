package flatsurf

import (
	"errors"
	"sync"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"go.uber.org/zap"
)

// FrameInput is the input sampled by the caller for one frame.
type FrameInput struct {
	// Forward, Strafe and Rise are movement axes in [-1, 1].
	Forward float32
	Strafe  float32
	Rise    float32
	// Yaw and Pitch are look deltas in radians.
	Yaw   float32
	Pitch float32
	// Dt is the frame duration in seconds.
	Dt         float32
	Resolution ms2.Vec
}

// MovementConfig controls camera integration.
type MovementConfig struct {
	// Speed is the horizontal speed in units per second.
	Speed     float32
	RiseSpeed float32
	MinHeight float32
	MaxHeight float32
}

// DefaultMovementConfig returns the movement parameters of the reference viewer.
func DefaultMovementConfig() MovementConfig {
	return MovementConfig{
		Speed:     1.5,
		RiseSpeed: 1,
		MinHeight: -5,
		MaxHeight: 5,
	}
}

// Surface pairs a descriptor with the program compiled from it. The two are
// only ever replaced together.
type Surface struct {
	Descriptor *Descriptor
	Program    *Program
}

// WorldConfig configures a [World].
type WorldConfig struct {
	Kernel   KernelConfig
	Teleport TeleportConfig
	Movement MovementConfig
	// Logger receives swap and revert events. nil disables logging.
	Logger *zap.Logger
}

// DefaultWorldConfig returns the default configuration without logging.
func DefaultWorldConfig() WorldConfig {
	return WorldConfig{
		Kernel:   DefaultKernelConfig(),
		Teleport: DefaultTeleportConfig(),
		Movement: DefaultMovementConfig(),
	}
}

// FrameResult is the state published at the end of [World.Frame].
type FrameResult struct {
	Uniforms Uniforms
	Teleport TeleportResult
	// Swapped is set on the frame a new surface became active.
	Swapped bool
	Surface Surface
}

// World steps the camera over the active surface one frame at a time.
// Frame must be called from a single goroutine. RequestSwap may be called
// from any goroutine.
type World struct {
	log      *zap.Logger
	compiler *Compiler
	tcfg     TeleportConfig
	mcfg     MovementConfig

	surface Surface
	tp      *Teleporter
	cam     CameraState
	time    float32

	mu      sync.Mutex
	gen     uint64
	pending *pendingSwap
}

type pendingSwap struct {
	gen     uint64
	surface Surface
	tp      *Teleporter
	done    chan error
}

// NewWorld compiles d and places the camera at its initial position.
func NewWorld(d *Descriptor, cfg WorldConfig) (*World, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	compiler, err := NewCompiler(cfg.Kernel)
	if err != nil {
		return nil, err
	}
	w := &World{
		log:      cfg.Logger,
		compiler: compiler,
		tcfg:     cfg.Teleport,
		mcfg:     cfg.Movement,
	}
	surf, tp, err := w.build(d)
	if err != nil {
		return nil, err
	}
	w.activate(surf, tp)
	return w, nil
}

func (w *World) build(d *Descriptor) (Surface, *Teleporter, error) {
	prog, err := w.compiler.Compile(d)
	if err != nil {
		return Surface{}, nil, err
	}
	tp, err := NewTeleporter(d, w.tcfg)
	if err != nil {
		return Surface{}, nil, err
	}
	return Surface{Descriptor: d, Program: prog}, tp, nil
}

func (w *World) activate(surf Surface, tp *Teleporter) {
	w.surface = surf
	w.tp = tp
	w.cam = CameraState{Position: surf.Descriptor.InitialPosition}
	w.log.Info("surface active",
		zap.String("id", surf.Descriptor.ID),
		zap.Stringer("kind", surf.Program.Kind()),
		zap.Int("walls", surf.Program.NumWalls()),
		zap.String("scene", surf.Program.Scene()),
	)
}

// Surface returns the active surface.
func (w *World) Surface() Surface { return w.surface }

// Camera returns the camera state after the last frame.
func (w *World) Camera() CameraState { return w.cam }

// SetCamera overrides the camera and marks its position as good.
func (w *World) SetCamera(c CameraState) {
	w.cam = c
	w.tp.Reset(c.Position)
}

// Time returns the accumulated frame time in seconds.
func (w *World) Time() float32 { return w.time }

// Compiler returns the compiler used for surface swaps.
func (w *World) Compiler() *Compiler { return w.compiler }

// RequestSwap compiles d in the background and stages it to become active at
// the start of the next frame. The returned channel receives nil once the
// swap is applied, the compile error, or [ErrSuperseded] if a newer request
// replaced this one first.
func (w *World) RequestSwap(d *Descriptor) <-chan error {
	done := make(chan error, 1)
	w.mu.Lock()
	w.gen++
	gen := w.gen
	if w.pending != nil {
		w.pending.done <- ErrSuperseded
		w.pending = nil
	}
	w.mu.Unlock()

	go func() {
		surf, tp, err := w.build(d)
		w.mu.Lock()
		defer w.mu.Unlock()
		switch {
		case gen != w.gen:
			done <- ErrSuperseded
		case err != nil:
			id := ""
			if d != nil {
				id = d.ID
			}
			w.log.Error("surface swap failed", zap.String("id", id), zap.Error(err))
			done <- err
		default:
			w.pending = &pendingSwap{gen: gen, surface: surf, tp: tp, done: done}
		}
	}()
	return done
}

func (w *World) takePending() *pendingSwap {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := w.pending
	w.pending = nil
	return p
}

// Frame advances the world by one frame: a staged surface swap is applied,
// the camera turns and moves, crossed walls are resolved and the uniforms of
// the active program are published.
func (w *World) Frame(in FrameInput) FrameResult {
	var res FrameResult
	if p := w.takePending(); p != nil {
		w.activate(p.surface, p.tp)
		p.done <- nil
		res.Swapped = true
	}

	dt := in.Dt
	if !(dt >= 0) || !isFinite(dt) {
		dt = 0
	}
	w.cam.Look(in.Yaw, in.Pitch)

	// Every sub-step moves less than the crossing band so that no wall is skipped.
	steps := w.substeps(dt)
	sub := dt / float32(steps)
	for i := 0; i < steps; i++ {
		w.integrate(in, sub)
		tr := w.tp.Check(w.cam.Position, w.cam.Front())
		switch {
		case tr.Teleported:
			w.cam.Position = tr.Position
			w.cam.SetDirection(tr.Direction)
			w.log.Debug("teleport",
				zap.Int("edge", tr.Edge),
				zap.Stringer("kind", tr.Kind),
				zap.Float32("x", w.cam.Position.X),
				zap.Float32("z", w.cam.Position.Z),
			)
		case tr.Reverted:
			w.cam.Position = tr.Position
			w.log.Debug("crossing reverted", zap.Error(tr.Err()))
		}
		if i == 0 || tr.Teleported || tr.Reverted {
			res.Teleport = tr
		}
	}
	res.Teleport.Position = w.cam.Position
	res.Teleport.Direction = w.cam.Front()

	w.time += dt
	res.Uniforms = UniformsFor(w.cam, w.time, in.Resolution)
	res.Surface = w.surface
	return res
}

// maxSubsteps bounds the work of a single frame after a long stall.
const maxSubsteps = 1024

// substeps returns how many steps a frame of length dt is split into so that
// each moves at most half the crossing threshold horizontally.
func (w *World) substeps(dt float32) int {
	stride := w.tcfg.CrossingThreshold / 2
	dist := w.mcfg.Speed * dt
	if !(stride > 0) || !(dist > stride) {
		return 1
	}
	return min(int(math32.Ceil(dist/stride)), maxSubsteps)
}

func (w *World) integrate(in FrameInput, dt float32) {
	sy, cy := math32.Sincos(w.cam.Yaw)
	forward := ms3.Vec{X: sy, Z: -cy}
	right := ms3.Vec{X: cy, Z: sy}
	move := ms3.Add(ms3.Scale(in.Forward, forward), ms3.Scale(in.Strafe, right))
	if l := ms3.Norm(move); l > 1 {
		move = ms3.Scale(1/l, move)
	}
	pos := ms3.Add(w.cam.Position, ms3.Scale(w.mcfg.Speed*dt, move))
	pos.Y += in.Rise * w.mcfg.RiseSpeed * dt
	if isFinite3(pos) {
		w.cam.Position = pos
	}
	w.cam.ClampHeight(w.mcfg.MinHeight, w.mcfg.MaxHeight)
}

// Tracer returns a CPU tracer of the active surface.
func (w *World) Tracer() (*Tracer, error) {
	if w.surface.Descriptor == nil {
		return nil, errors.New("no active surface")
	}
	return NewTracer(w.surface.Descriptor, w.surface.Program.Config())
}
