package flatsurf

import (
	"github.com/soypat/flatsurf/glbuild"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

// gluing is the transform applied when crossing an edge. The generated program
// and the host teleporter dispatch through the same implementation so that
// both halves agree on the topology.
type gluing interface {
	kind() EdgeKind
	// appendTables appends the kind specific GLSL const tables.
	appendTables(b []byte, edges []Edge) []byte
	// appendApply appends the body of
	//	void applyGluing(inout vec3 pos, inout vec3 ray, int w)
	// which runs with int d = gluingVector[w] in scope.
	appendApply(b []byte) []byte
	// cross maps a position and direction through edge e. n is the wall normal of e.
	// It is the CPU twin of applyGluing without the re-entry nudge.
	cross(pos, dir ms3.Vec, e *Edge, n ms3.Vec) (ms3.Vec, ms3.Vec)
	// teleport maps a viewpoint that is sd past the wall of edge e.
	teleport(pos, dir ms3.Vec, e *Edge, n ms3.Vec, sd, nudge float32) (ms3.Vec, ms3.Vec)
	// reentryWall returns the wall whose inward normal moves a ray that
	// crossed wall w back inside. Matches the nudge of appendApply.
	reentryWall(w int, e *Edge) int
}

func gluingFor(k EdgeKind) gluing {
	switch k {
	case EdgeTranslation:
		return translationGluing{}
	case EdgeMirror:
		return mirrorGluing{}
	case EdgeAffine:
		return affineGluing{}
	case EdgeNone:
		return noGluing{}
	}
	return nil
}

type translationGluing struct{}

func (translationGluing) kind() EdgeKind { return EdgeTranslation }

func (translationGluing) appendTables(b []byte, edges []Edge) []byte {
	vecs := make([]ms3.Vec, len(edges))
	for i := range edges {
		vecs[i] = edges[i].Vector
	}
	return glbuild.AppendConst(b, func(b []byte) []byte {
		return glbuild.AppendVec3SliceDecl(b, "transformVectors", vecs)
	})
}

func (translationGluing) appendApply(b []byte) []byte {
	return append(b, "pos += transformVectors[w] - 3.0*eps*wallNormals[d];\n"...)
}

func (translationGluing) cross(pos, dir ms3.Vec, e *Edge, n ms3.Vec) (ms3.Vec, ms3.Vec) {
	return ms3.Add(pos, e.Vector), dir
}

func (translationGluing) reentryWall(w int, e *Edge) int { return e.Destination }

func (g translationGluing) teleport(pos, dir ms3.Vec, e *Edge, n ms3.Vec, sd, nudge float32) (ms3.Vec, ms3.Vec) {
	return g.cross(pos, dir, e, n)
}

type mirrorGluing struct{}

func (mirrorGluing) kind() EdgeKind { return EdgeMirror }

func (mirrorGluing) appendTables(b []byte, edges []Edge) []byte { return b }

func (mirrorGluing) appendApply(b []byte) []byte {
	return append(b, `vec3 n = wallNormals[w];
ray = ray - 2.0*dot(ray, n)*n;
pos -= 3.0*eps*n;
`...)
}

func (mirrorGluing) cross(pos, dir ms3.Vec, e *Edge, n ms3.Vec) (ms3.Vec, ms3.Vec) {
	return pos, reflect(dir, n)
}

// reentryWall is the crossed wall itself: the ray stays on the same side.
func (mirrorGluing) reentryWall(w int, e *Edge) int { return w }

func (mirrorGluing) teleport(pos, dir ms3.Vec, e *Edge, n ms3.Vec, sd, nudge float32) (ms3.Vec, ms3.Vec) {
	return ms3.Sub(pos, ms3.Scale(sd+nudge, n)), reflect(dir, n)
}

type affineGluing struct{}

func (affineGluing) kind() EdgeKind { return EdgeAffine }

func (affineGluing) appendTables(b []byte, edges []Edge) []byte {
	mats := make([][4]float32, len(edges))
	ts := make([]ms2.Vec, len(edges))
	for i := range edges {
		mats[i] = edges[i].Matrix
		ts[i] = edges[i].Translation
	}
	b = glbuild.AppendConst(b, func(b []byte) []byte {
		return glbuild.AppendMat2SliceDecl(b, "transformMatrices", mats)
	})
	return glbuild.AppendConst(b, func(b []byte) []byte {
		return glbuild.AppendVec2SliceDecl(b, "translateVectors", ts)
	})
}

func (affineGluing) appendApply(b []byte) []byte {
	return append(b, `mat2 m = transformMatrices[w];
pos.xz = m*pos.xz + translateVectors[w];
ray.xz = m*ray.xz;
ray = normalize(ray);
pos -= 3.0*eps*wallNormals[d];
`...)
}

func (affineGluing) cross(pos, dir ms3.Vec, e *Edge, n ms3.Vec) (ms3.Vec, ms3.Vec) {
	p := affineMap(e.Matrix, e.Translation, xz(pos))
	v := affineMap(e.Matrix, ms2.Vec{}, xz(dir))
	dir = ms3.Vec{X: v.X, Y: dir.Y, Z: v.Y}
	if l := ms3.Norm(dir); l > 0 {
		dir = ms3.Scale(1/l, dir)
	}
	return ms3.Vec{X: p.X, Y: pos.Y, Z: p.Y}, dir
}

func (affineGluing) reentryWall(w int, e *Edge) int { return e.Destination }

func (g affineGluing) teleport(pos, dir ms3.Vec, e *Edge, n ms3.Vec, sd, nudge float32) (ms3.Vec, ms3.Vec) {
	return g.cross(pos, dir, e, n)
}

// noGluing is a solid wall. The generated program never calls applyGluing for it.
type noGluing struct{}

func (noGluing) kind() EdgeKind { return EdgeNone }

func (noGluing) appendTables(b []byte, edges []Edge) []byte { return b }

func (noGluing) appendApply(b []byte) []byte { return b }

func (noGluing) cross(pos, dir ms3.Vec, e *Edge, n ms3.Vec) (ms3.Vec, ms3.Vec) { return pos, dir }

func (noGluing) reentryWall(w int, e *Edge) int { return w }

func (noGluing) teleport(pos, dir ms3.Vec, e *Edge, n ms3.Vec, sd, nudge float32) (ms3.Vec, ms3.Vec) {
	return pos, dir
}

// affineMap returns m*v + t for a row-major 2x2 matrix m.
func affineMap(m [4]float32, t, v ms2.Vec) ms2.Vec {
	return ms2.Vec{
		X: m[0]*v.X + m[1]*v.Y + t.X,
		Y: m[2]*v.X + m[3]*v.Y + t.Y,
	}
}

// reflect mirrors v about the plane with unit normal n.
func reflect(v, n ms3.Vec) ms3.Vec {
	return ms3.Sub(v, ms3.Scale(2*ms3.Dot(v, n), n))
}
