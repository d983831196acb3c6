package flatsurf

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// TeleportConfig tunes crossing detection.
type TeleportConfig struct {
	// CrossingThreshold is the largest distance past a wall that still counts as
	// a crossing. Farther positions are assumed to be deliberate placements.
	CrossingThreshold float32
	// MirrorNudge is how far inside the polygon a mirrored viewpoint is placed.
	MirrorNudge float32
}

// DefaultTeleportConfig returns the crossing parameters used by [NewTeleporter].
func DefaultTeleportConfig() TeleportConfig {
	return TeleportConfig{
		CrossingThreshold: DefaultCrossingThreshold,
		MirrorNudge:       DefaultMirrorNudge,
	}
}

// Validate returns an error if the configuration values are unusable.
func (cfg TeleportConfig) Validate() error {
	if !(cfg.CrossingThreshold > 0) || !isFinite(cfg.CrossingThreshold) {
		return errors.New("crossing threshold must be positive")
	}
	if cfg.MirrorNudge < 0 || !isFinite(cfg.MirrorNudge) {
		return errors.New("mirror nudge must not be negative")
	}
	return nil
}

// TeleportResult is the outcome of [Teleporter.Check].
type TeleportResult struct {
	// Teleported is set when the viewpoint crossed a glued wall and was transformed.
	Teleported bool
	// Reverted is set when the viewpoint crossed a wall it cannot pass and was
	// moved back to the last good position.
	Reverted bool
	// Edge is the crossed edge or -1.
	Edge int
	Kind EdgeKind
	// Position and Direction are the viewpoint after the check.
	Position  ms3.Vec
	Direction ms3.Vec
}

// Err returns an [ErrTeleport] error describing a reverted crossing, nil otherwise.
func (r TeleportResult) Err() error {
	if !r.Reverted {
		return nil
	}
	if r.Edge < 0 {
		return newError(ErrTeleport, "", errors.New("non-finite viewpoint reverted to last good position"))
	}
	return newError(ErrTeleport, "", errors.New("crossing of "+r.Kind.String()+" edge reverted to last good position"))
}

// Teleporter moves the viewpoint through glued walls of a surface. It uses
// the same gluing transforms the generated program applies to rays.
// A Teleporter is not safe for concurrent use.
type Teleporter struct {
	desc     *Descriptor
	poly     *Polygon
	normals  []ms3.Vec
	cfg      TeleportConfig
	band     float32
	lastGood ms3.Vec
}

// NewTeleporter returns a teleporter for d. The last good position starts at d.InitialPosition.
func NewTeleporter(d *Descriptor, cfg TeleportConfig) (*Teleporter, error) {
	if d == nil {
		return nil, loadErrorf("", "nil descriptor")
	}
	if err := cfg.Validate(); err != nil {
		return nil, newError(ErrTeleport, d.ID, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	poly, err := d.Polygon()
	if err != nil {
		return nil, newError(ErrLoad, d.ID, err)
	}
	normals, err := d.normals(poly)
	if err != nil {
		return nil, newError(ErrLoad, d.ID, err)
	}
	return &Teleporter{
		desc:     d,
		poly:     poly,
		normals:  normals,
		cfg:      cfg,
		band:     d.EffectiveTeleportHeight(),
		lastGood: d.InitialPosition,
	}, nil
}

// Descriptor returns the surface the teleporter operates on.
func (tp *Teleporter) Descriptor() *Descriptor { return tp.desc }

// LastGood returns the last position known to be inside the surface or not near a wall.
func (tp *Teleporter) LastGood() ms3.Vec { return tp.lastGood }

// Reset sets the last good position.
func (tp *Teleporter) Reset(pos ms3.Vec) { tp.lastGood = pos }

// Check inspects the viewpoint after it moved and applies the gluing of a
// crossed wall. It never fails: crossings that cannot be resolved move the
// viewpoint back to the last good position.
func (tp *Teleporter) Check(pos, dir ms3.Vec) TeleportResult {
	res := TeleportResult{Edge: -1, Position: pos, Direction: dir}
	if !isFinite3(pos) || !isFinite3(dir) {
		res.Reverted = true
		res.Position = tp.lastGood
		if !isFinite3(dir) {
			res.Direction = ms3.Vec{Z: -1}
		}
		return res
	}
	sd, edge := tp.poly.SignedDistance(xz(pos))
	if sd <= 0 || sd >= tp.cfg.CrossingThreshold || math32.Abs(pos.Y) > tp.band {
		tp.lastGood = pos
		return res
	}
	res.Edge = edge
	if edge < 0 || edge >= len(tp.desc.Edges) {
		res.Reverted = true
		res.Position = tp.lastGood
		return res
	}
	e := &tp.desc.Edges[edge]
	res.Kind = e.Kind
	g := gluingFor(e.Kind)
	if g == nil || e.Kind == EdgeNone || e.Destination < 0 || e.Destination >= len(tp.desc.Edges) {
		res.Reverted = true
		res.Position = tp.lastGood
		return res
	}
	newPos, newDir := g.teleport(pos, dir, e, tp.normals[edge], sd, tp.cfg.MirrorNudge)
	if !isFinite3(newPos) || !isFinite3(newDir) {
		res.Reverted = true
		res.Position = tp.lastGood
		return res
	}
	res.Teleported = true
	res.Position = newPos
	res.Direction = newDir
	return res
}
