package flatsurf

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/soypat/flatsurf/gleval"
	"github.com/soypat/geometry/ms3"
)

// Tracer runs the sphere tracing algorithm of the generated kernel on the CPU.
// Rays are marched in lockstep so that every step evaluates the scene SDF once
// over all rays still in flight.
type Tracer struct {
	desc     *Descriptor
	cfg      KernelConfig
	sc       *scene
	g        gluing
	fovScale float32
}

// TraceResult is the outcome of tracing a single ray.
type TraceResult struct {
	Hit bool
	// Position is the last ray position: the hit point when Hit is set.
	Position ms3.Vec
	// Normal is the unit surface normal seen from the incoming ray. Zero when nothing was hit.
	Normal     ms3.Vec
	Steps      int
	Collisions int
	// Distance is the accumulated marched distance.
	Distance float32
}

// NewTracer returns a CPU tracer of d. It fails for the same descriptors [Compiler.Compile] rejects.
func NewTracer(d *Descriptor, cfg KernelConfig) (*Tracer, error) {
	if d == nil {
		return nil, compileErrorf("", "nil descriptor")
	}
	if err := cfg.Validate(); err != nil {
		return nil, newError(ErrCompile, d.ID, err)
	}
	if err := d.Validate(); err != nil {
		return nil, newError(ErrCompile, d.ID, err)
	}
	kind, err := d.Kind()
	if err != nil {
		return nil, newError(ErrCompile, d.ID, err)
	}
	sc, err := newScene(d)
	if err != nil {
		return nil, newError(ErrCompile, d.ID, err)
	}
	return &Tracer{desc: d, cfg: cfg, sc: sc, g: gluingFor(kind), fovScale: cfg.FOVScale()}, nil
}

// SDF returns the scene signed distance field evaluated by the tracer.
func (t *Tracer) SDF() gleval.SDF3 { return t.sc.root }

// FOVScale returns the image plane distance used to build view rays.
func (t *Tracer) FOVScale() float32 { return t.fovScale }

// Trace marches a single ray.
func (t *Tracer) Trace(origin, dir ms3.Vec, ec *EvalContext) (TraceResult, error) {
	var res [1]TraceResult
	err := t.TraceBatch([]ms3.Vec{origin}, []ms3.Vec{dir}, res[:], ec)
	return res[0], err
}

// TraceBatch marches len(origins) rays and stores their outcomes in results.
func (t *Tracer) TraceBatch(origins, dirs []ms3.Vec, results []TraceResult, ec *EvalContext) error {
	n := len(origins)
	if n != len(dirs) || n != len(results) {
		return errors.New("origins, directions and results must be of equal length")
	} else if n == 0 {
		return nil
	}
	if ec == nil {
		ec = &EvalContext{}
	}
	vp := ec.VecPool()
	eps := t.cfg.Epsilon
	h := t.desc.WallHeight
	wrap := t.desc.VerticalWrap
	edges := t.desc.Edges

	rays := vp.V3.Acquire(n)
	defer vp.V3.Release(rays)
	copy(rays, dirs)
	active := make([]int, n)
	for i := range results {
		results[i] = TraceResult{Position: origins[i]}
		active[i] = i
	}
	pos := vp.V3.Acquire(n)
	defer vp.V3.Release(pos)
	dist := vp.Float.Acquire(n)
	defer vp.Float.Release(dist)
	var single [1]float32

	for step := 0; step < t.cfg.MaxSteps && len(active) > 0; step++ {
		na := len(active)
		for k, idx := range active {
			pos[k] = results[idx].Position
		}
		err := t.sc.root.Evaluate(pos[:na], dist[:na], ec)
		if err != nil {
			return err
		}
		next := active[:0]
		for k, idx := range active {
			r := &results[idx]
			d := dist[k]
			p := ms3.Add(r.Position, ms3.Scale(d, rays[idx]))
			if wrap > 0 {
				p.Y = glslMod(p.Y+h, wrap) - h
			}
			r.Position = p
			r.Steps++
			if d < eps {
				w := -1
				if t.g.kind() != EdgeNone {
					w = t.sc.touchedWall(p, h, eps)
				}
				solid := float32(largenum)
				if w >= 0 && t.sc.solid != nil {
					err = t.sc.solid.Evaluate([]ms3.Vec{p}, single[:], ec)
					if err != nil {
						return err
					}
					solid = single[0]
				}
				if w < 0 || solid < eps {
					r.Hit = true
					continue
				}
				e := &edges[w]
				p, rays[idx] = t.g.cross(p, rays[idx], e, t.sc.normals[w])
				r.Position = ms3.Sub(p, ms3.Scale(3*eps, t.sc.normals[t.g.reentryWall(w, e)]))
				r.Collisions++
			}
			r.Distance += d
			if r.Distance > t.cfg.MaxDistance {
				continue
			}
			next = append(next, idx)
		}
		active = next
	}

	var hits []ms3.Vec
	var hitIdx []int
	for i := range results {
		if results[i].Hit {
			hits = append(hits, ms3.Sub(results[i].Position, ms3.Scale(2*eps, rays[i])))
			hitIdx = append(hitIdx, i)
		}
	}
	if len(hits) == 0 {
		return nil
	}
	normals := make([]ms3.Vec, len(hits))
	err := gleval.NormalsTetrahedral(t.sc.root, hits, normals, eps, ec)
	if err != nil {
		return err
	}
	for k, i := range hitIdx {
		results[i].Normal = normals[k]
	}
	return nil
}

// Color returns the colour the generated kernel assigns to a traced ray.
func (t *Tracer) Color(r TraceResult) ms3.Vec {
	if !r.Hit {
		return t.cfg.Background
	}
	shade := math32.Max(0, 1-t.desc.Fog*float32(r.Collisions))
	return ms3.Scale(shade, ms3.AddScalar(0.5, ms3.Scale(0.5, r.Normal)))
}

// ShadeRays traces rays and stores their colours. userData may be an [*EvalContext]
// to set the animation time.
func (t *Tracer) ShadeRays(origins, dirs, colors []ms3.Vec, userData any) error {
	if len(colors) != len(origins) {
		return errors.New("colors and origins must be of equal length")
	}
	ec, _ := userData.(*EvalContext)
	results := make([]TraceResult, len(origins))
	err := t.TraceBatch(origins, dirs, results, ec)
	if err != nil {
		return err
	}
	for i := range results {
		colors[i] = t.Color(results[i])
	}
	return nil
}
