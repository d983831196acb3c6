package flatsurf

import (
	"github.com/soypat/geometry/ms3"
)

// scene is the SDF tree of a surface shared by the compiler and the CPU tracer.
type scene struct {
	poly    *Polygon
	normals []ms3.Vec
	walls   *wallSet
	// solid holds corner pillars and decorations. nil when the surface has neither.
	solid shape
	root  shape
}

func newScene(d *Descriptor) (*scene, error) {
	poly, err := d.Polygon()
	if err != nil {
		return nil, err
	}
	normals, err := d.normals(poly)
	if err != nil {
		return nil, err
	}
	sc := &scene{
		poly:    poly,
		normals: normals,
		walls:   newWallSet(d.Vertices, d.WallHeight),
	}
	var solids []shape
	if d.CornerRadius > 0 {
		solids = append(solids, newCornerSet(d.Vertices, d.CornerRadius, d.WallHeight))
	}
	for _, dec := range d.Decorations {
		solids = append(solids, decorationShape(dec))
	}
	if len(solids) > 0 {
		sc.solid, err = newUnion(solids...)
		if err != nil {
			return nil, err
		}
		sc.root, err = newUnion(sc.walls, sc.solid)
		if err != nil {
			return nil, err
		}
	} else {
		sc.root = sc.walls
	}
	return sc, nil
}

// decorationShape returns the primitive of a decoration. Only spheres animate.
func decorationShape(dec Decoration) shape {
	switch dec.Kind {
	case DecorationCylinder:
		return &cylinder{c: dec.Position, r: dec.Radius, halfH: dec.Length / 2}
	case DecorationHollowCube:
		ratio := dec.InnerRatio
		if ratio == 0 {
			ratio = DefaultInnerRatio
		}
		return &hollowCube{c: dec.Position, r: dec.Radius, ratio: ratio}
	}
	if a := dec.Animation; a != nil && a.Radius != 0 {
		return &orbitSphere{center: a.Center, y: dec.Position.Y, orbit: a.Radius, speed: a.Speed, r: dec.Radius}
	}
	return &sphere{c: dec.Position, r: dec.Radius}
}

// touchedWall returns the first wall within eps of p or -1. It is the CPU twin
// of the generated touchedWall.
func (sc *scene) touchedWall(p ms3.Vec, h, eps float32) int {
	v := sc.walls.verts
	for i := 0; i < len(v)-1; i++ {
		if wallDistance(p, v[i], v[i+1], h) < eps {
			return i
		}
	}
	return -1
}
