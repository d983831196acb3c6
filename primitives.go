package flatsurf

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/chewxy/math32"
	"github.com/soypat/flatsurf/glbuild"
	"github.com/soypat/flatsurf/glbuild/glsllib"
	"github.com/soypat/flatsurf/gleval"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

// shape is a node of the scene SDF. It generates GLSL and evaluates on the CPU.
type shape interface {
	glbuild.Shader3D
	gleval.SDF3
}

// EvalContext is the userData passed to CPU evaluation of scene shapes.
// It carries the scratch buffers and the animation time.
type EvalContext struct {
	// Time in seconds, the CPU counterpart of the iTime uniform.
	Time float32
	vp   gleval.VecPool
}

// VecPool returns the context's scratch buffer pool.
func (ec *EvalContext) VecPool() *gleval.VecPool { return &ec.vp }

func evalTime(userData any) float32 {
	if ec, ok := userData.(*EvalContext); ok && ec != nil {
		return ec.Time
	}
	return 0
}

// wallSet is the union of the zero thickness walls standing on every polygon edge.
type wallSet struct {
	verts []ms2.Vec // Closed ring.
	h     float32
	name  uint64
}

func newWallSet(closedRing []ms2.Vec, h float32) *wallSet {
	ws := &wallSet{verts: closedRing, h: h}
	ws.name = hashVecs(hashFloats(0, h), closedRing)
	return ws
}

func (ws *wallSet) ForEachChild(userData any, fn func(userData any, s *glbuild.Shader3D) error) error {
	return nil
}

func (ws *wallSet) AppendShaderName(b []byte) []byte {
	b = append(b, "walls"...)
	return strconv.AppendUint(b, ws.name, 32)
}

func (ws *wallSet) AppendShaderBody(b []byte) []byte {
	b = glbuild.AppendConst(b, func(b []byte) []byte {
		return glbuild.AppendVec2SliceDecl(b, "v", ws.verts)
	})
	b = glbuild.AppendFloatDecl(b, "d", largenum)
	b = append(b, "for (int i=0; i<"...)
	b = strconv.AppendInt(b, int64(len(ws.verts)-1), 10)
	b = append(b, "; i++) {\nd=min(d, fsWall(p, v[i], v[i+1], "...)
	b = glbuild.AppendFloat(b, '-', '.', ws.h)
	b = append(b, "));\n}\nreturn d;"...)
	return b
}

func (ws *wallSet) AppendShaderFunctions(fns []glbuild.ShaderFunction) []glbuild.ShaderFunction {
	return append(fns, glsllib.Wall())
}

func (ws *wallSet) Bounds() ms3.Box {
	bb := ring2Bounds(ws.verts)
	return ms3.Box{
		Min: ms3.Vec{X: bb.Min.X, Y: -ws.h, Z: bb.Min.Y},
		Max: ms3.Vec{X: bb.Max.X, Y: ws.h, Z: bb.Max.Y},
	}
}

func (ws *wallSet) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if err := gleval.CheckBuffers(pos, dist); err != nil {
		return err
	}
	for i, p := range pos {
		d := float32(largenum)
		for j := 0; j < len(ws.verts)-1; j++ {
			d = math32.Min(d, wallDistance(p, ws.verts[j], ws.verts[j+1], ws.h))
		}
		dist[i] = d
	}
	return nil
}

// cornerSet places a vertical pillar on every polygon vertex to hide the seams
// where two walls meet.
type cornerSet struct {
	verts []ms2.Vec // Distinct vertices.
	r, h  float32
	name  uint64
}

func newCornerSet(closedRing []ms2.Vec, r, h float32) *cornerSet {
	cs := &cornerSet{verts: closedRing[:len(closedRing)-1], r: r, h: h}
	cs.name = hashVecs(hashFloats(1, r, h), cs.verts)
	return cs
}

func (cs *cornerSet) ForEachChild(userData any, fn func(userData any, s *glbuild.Shader3D) error) error {
	return nil
}

func (cs *cornerSet) AppendShaderName(b []byte) []byte {
	b = append(b, "corners"...)
	return strconv.AppendUint(b, cs.name, 32)
}

func (cs *cornerSet) AppendShaderBody(b []byte) []byte {
	b = glbuild.AppendConst(b, func(b []byte) []byte {
		return glbuild.AppendVec2SliceDecl(b, "c", cs.verts)
	})
	b = glbuild.AppendFloatDecl(b, "d", largenum)
	b = append(b, "for (int i=0; i<"...)
	b = strconv.AppendInt(b, int64(len(cs.verts)), 10)
	b = append(b, "; i++) {\nd=min(d, fsCylinder(p-vec3(c[i].x, 0.0, c[i].y), "...)
	b = glbuild.AppendFloats(b, ',', '-', '.', cs.r, cs.h)
	b = append(b, "));\n}\nreturn d;"...)
	return b
}

func (cs *cornerSet) AppendShaderFunctions(fns []glbuild.ShaderFunction) []glbuild.ShaderFunction {
	return append(fns, glsllib.Cylinder())
}

func (cs *cornerSet) Bounds() ms3.Box {
	bb := ring2Bounds(cs.verts)
	return ms3.Box{
		Min: ms3.Vec{X: bb.Min.X - cs.r, Y: -cs.h, Z: bb.Min.Y - cs.r},
		Max: ms3.Vec{X: bb.Max.X + cs.r, Y: cs.h, Z: bb.Max.Y + cs.r},
	}
}

func (cs *cornerSet) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if err := gleval.CheckBuffers(pos, dist); err != nil {
		return err
	}
	for i, p := range pos {
		d := float32(largenum)
		for _, c := range cs.verts {
			d = math32.Min(d, cylinderDistance(ms3.Sub(p, ms3.Vec{X: c.X, Z: c.Y}), cs.r, cs.h))
		}
		dist[i] = d
	}
	return nil
}

type sphere struct {
	c ms3.Vec
	r float32
}

func (s *sphere) ForEachChild(userData any, fn func(userData any, s *glbuild.Shader3D) error) error {
	return nil
}

func (s *sphere) AppendShaderName(b []byte) []byte {
	b = append(b, "sphere"...)
	arr := s.c.Array()
	b = glbuild.AppendFloats(b, 'q', 'n', 'p', arr[:]...)
	b = append(b, 'r')
	return glbuild.AppendFloat(b, 'n', 'p', s.r)
}

func (s *sphere) AppendShaderBody(b []byte) []byte {
	b = glbuild.AppendVec3Decl(b, "c", s.c)
	b = append(b, "return length(p-c)-"...)
	b = glbuild.AppendFloat(b, '-', '.', s.r)
	b = append(b, ';')
	return b
}

func (s *sphere) AppendShaderFunctions(fns []glbuild.ShaderFunction) []glbuild.ShaderFunction {
	return fns
}

func (s *sphere) Bounds() ms3.Box {
	return ms3.Box{Min: ms3.AddScalar(-s.r, s.c), Max: ms3.AddScalar(s.r, s.c)}
}

func (s *sphere) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if err := gleval.CheckBuffers(pos, dist); err != nil {
		return err
	}
	for i, p := range pos {
		dist[i] = ms3.Norm(ms3.Sub(p, s.c)) - s.r
	}
	return nil
}

// orbitSphere is a sphere circling a horizontal orbit driven by the iTime uniform.
type orbitSphere struct {
	center ms3.Vec
	y      float32
	orbit  float32
	speed  float32
	r      float32
}

func (s *orbitSphere) ForEachChild(userData any, fn func(userData any, s *glbuild.Shader3D) error) error {
	return nil
}

func (s *orbitSphere) AppendShaderName(b []byte) []byte {
	b = append(b, "orbit"...)
	b = glbuild.AppendFloats(b, 'q', 'n', 'p', s.center.X, s.center.Z, s.y, s.orbit, s.speed, s.r)
	return b
}

func (s *orbitSphere) AppendShaderBody(b []byte) []byte {
	b = glbuild.AppendFloatDecl(b, "a", s.speed)
	b = append(b, "a*=iTime;\n"...)
	b = glbuild.AppendFloatDecl(b, "R", s.orbit)
	b = glbuild.AppendVec3Decl(b, "c", ms3.Vec{X: s.center.X, Y: s.y, Z: s.center.Z})
	b = append(b, "c+=vec3(R*cos(a), 0.0, R*sin(a));\nreturn length(p-c)-"...)
	b = glbuild.AppendFloat(b, '-', '.', s.r)
	b = append(b, ';')
	return b
}

func (s *orbitSphere) AppendShaderFunctions(fns []glbuild.ShaderFunction) []glbuild.ShaderFunction {
	return fns
}

func (s *orbitSphere) Bounds() ms3.Box {
	ext := s.orbit + s.r
	return ms3.Box{
		Min: ms3.Vec{X: s.center.X - ext, Y: s.y - s.r, Z: s.center.Z - ext},
		Max: ms3.Vec{X: s.center.X + ext, Y: s.y + s.r, Z: s.center.Z + ext},
	}
}

func (s *orbitSphere) position(t float32) ms3.Vec {
	sin, cos := math32.Sincos(s.speed * t)
	return ms3.Vec{X: s.center.X + s.orbit*cos, Y: s.y, Z: s.center.Z + s.orbit*sin}
}

func (s *orbitSphere) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if err := gleval.CheckBuffers(pos, dist); err != nil {
		return err
	}
	c := s.position(evalTime(userData))
	for i, p := range pos {
		dist[i] = ms3.Norm(ms3.Sub(p, c)) - s.r
	}
	return nil
}

// cylinder is a vertical capped cylinder centered at c.
type cylinder struct {
	c     ms3.Vec
	r     float32
	halfH float32
}

func (s *cylinder) ForEachChild(userData any, fn func(userData any, s *glbuild.Shader3D) error) error {
	return nil
}

func (s *cylinder) AppendShaderName(b []byte) []byte {
	b = append(b, "cyl"...)
	arr := s.c.Array()
	b = glbuild.AppendFloats(b, 'q', 'n', 'p', arr[:]...)
	b = append(b, 'r')
	return glbuild.AppendFloats(b, 'q', 'n', 'p', s.r, s.halfH)
}

func (s *cylinder) AppendShaderBody(b []byte) []byte {
	b = glbuild.AppendVec3Decl(b, "c", s.c)
	b = append(b, "return fsCylinder(p-c, "...)
	b = glbuild.AppendFloats(b, ',', '-', '.', s.r, s.halfH)
	b = append(b, ");"...)
	return b
}

func (s *cylinder) AppendShaderFunctions(fns []glbuild.ShaderFunction) []glbuild.ShaderFunction {
	return append(fns, glsllib.Cylinder())
}

func (s *cylinder) Bounds() ms3.Box {
	ext := ms3.Vec{X: s.r, Y: s.halfH, Z: s.r}
	return ms3.Box{Min: ms3.Sub(s.c, ext), Max: ms3.Add(s.c, ext)}
}

func (s *cylinder) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if err := gleval.CheckBuffers(pos, dist); err != nil {
		return err
	}
	for i, p := range pos {
		dist[i] = cylinderDistance(ms3.Sub(p, s.c), s.r, s.halfH)
	}
	return nil
}

// hollowCube is a box with half size r*ratio with a sphere of radius r carved out.
type hollowCube struct {
	c     ms3.Vec
	r     float32
	ratio float32
}

func (s *hollowCube) ForEachChild(userData any, fn func(userData any, s *glbuild.Shader3D) error) error {
	return nil
}

func (s *hollowCube) AppendShaderName(b []byte) []byte {
	b = append(b, "hollow"...)
	arr := s.c.Array()
	b = glbuild.AppendFloats(b, 'q', 'n', 'p', arr[:]...)
	b = append(b, 'r')
	return glbuild.AppendFloats(b, 'q', 'n', 'p', s.r, s.ratio)
}

func (s *hollowCube) AppendShaderBody(b []byte) []byte {
	b = glbuild.AppendVec3Decl(b, "c", s.c)
	b = glbuild.AppendFloatDecl(b, "r", s.r)
	b = glbuild.AppendFloatDecl(b, "k", s.ratio)
	b = append(b, "p-=c;\nreturn max(fsBox(p, vec3(r*k)), r-length(p));"...)
	return b
}

func (s *hollowCube) AppendShaderFunctions(fns []glbuild.ShaderFunction) []glbuild.ShaderFunction {
	return append(fns, glsllib.Box())
}

func (s *hollowCube) Bounds() ms3.Box {
	h := s.r * s.ratio
	return ms3.Box{Min: ms3.AddScalar(-h, s.c), Max: ms3.AddScalar(h, s.c)}
}

func (s *hollowCube) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if err := gleval.CheckBuffers(pos, dist); err != nil {
		return err
	}
	h := s.r * s.ratio
	for i, p := range pos {
		p = ms3.Sub(p, s.c)
		dist[i] = math32.Max(boxDistance(p, ms3.Vec{X: h, Y: h, Z: h}), s.r-ms3.Norm(p))
	}
	return nil
}

// union joins two or more shapes.
type union struct {
	joined []shape
}

func newUnion(shapes ...shape) (shape, error) {
	var u union
	for i, s := range shapes {
		if s == nil {
			return nil, fmt.Errorf("nil arg[%d] to union", i)
		}
		if sub, ok := s.(*union); ok {
			u.joined = append(u.joined, sub.joined...)
		} else {
			u.joined = append(u.joined, s)
		}
	}
	switch len(u.joined) {
	case 0:
		return nil, errors.New("empty union")
	case 1:
		return u.joined[0], nil
	}
	return &u, nil
}

func (u *union) ForEachChild(userData any, fn func(userData any, s *glbuild.Shader3D) error) error {
	for i := range u.joined {
		var s glbuild.Shader3D = u.joined[i]
		if err := fn(userData, &s); err != nil {
			return err
		}
	}
	return nil
}

func (u *union) AppendShaderName(b []byte) []byte {
	var h uint64
	for i := range u.joined {
		h = glbuild.Hash(u.joined[i].AppendShaderName(nil), h)
	}
	b = append(b, "union"...)
	return strconv.AppendUint(b, h, 32)
}

func (u *union) AppendShaderBody(b []byte) []byte {
	b = glbuild.AppendDistanceDecl(b, "d", "p", u.joined[0])
	for _, s := range u.joined[1:] {
		b = append(b, "d=min(d,"...)
		b = s.AppendShaderName(b)
		b = append(b, "(p));\n"...)
	}
	b = append(b, "return d;"...)
	return b
}

func (u *union) AppendShaderFunctions(fns []glbuild.ShaderFunction) []glbuild.ShaderFunction {
	return fns
}

func (u *union) Bounds() ms3.Box {
	bb := u.joined[0].Bounds()
	for _, s := range u.joined[1:] {
		bb2 := s.Bounds()
		bb.Min = ms3.Vec{X: math32.Min(bb.Min.X, bb2.Min.X), Y: math32.Min(bb.Min.Y, bb2.Min.Y), Z: math32.Min(bb.Min.Z, bb2.Min.Z)}
		bb.Max = ms3.Vec{X: math32.Max(bb.Max.X, bb2.Max.X), Y: math32.Max(bb.Max.Y, bb2.Max.Y), Z: math32.Max(bb.Max.Z, bb2.Max.Z)}
	}
	return bb
}

func (u *union) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	vp, err := gleval.GetVecPool(userData)
	if err != nil {
		return err
	}
	aux := vp.Float.Acquire(len(dist))
	defer vp.Float.Release(aux)
	err = u.joined[0].Evaluate(pos, dist, userData)
	if err != nil {
		return err
	}
	for _, s := range u.joined[1:] {
		err = s.Evaluate(pos, aux, userData)
		if err != nil {
			return err
		}
		for i, d := range aux {
			dist[i] = math32.Min(dist[i], d)
		}
	}
	return nil
}

// wallDistance is the CPU twin of fsWall.
func wallDistance(p ms3.Vec, a, b ms2.Vec, h float32) float32 {
	return capDistance(segmentDistance(xz(p), a, b), math32.Abs(p.Y)-h)
}

// cylinderDistance is the CPU twin of fsCylinder.
func cylinderDistance(p ms3.Vec, r, h float32) float32 {
	return capDistance(ms2.Norm(xz(p))-r, math32.Abs(p.Y)-h)
}

// capDistance combines a horizontal and a vertical distance into the exact
// distance to an extrusion: min(max(x,y),0) + length(max((x,y),0)).
func capDistance(x, y float32) float32 {
	inside := math32.Min(math32.Max(x, y), 0)
	x, y = math32.Max(x, 0), math32.Max(y, 0)
	return inside + math32.Sqrt(x*x+y*y)
}

// boxDistance is the CPU twin of fsBox.
func boxDistance(p, half ms3.Vec) float32 {
	q := ms3.Sub(ms3.AbsElem(p), half)
	outside := ms3.Vec{X: math32.Max(q.X, 0), Y: math32.Max(q.Y, 0), Z: math32.Max(q.Z, 0)}
	return ms3.Norm(outside) + math32.Min(math32.Max(q.X, math32.Max(q.Y, q.Z)), 0)
}

func ring2Bounds(verts []ms2.Vec) ms2.Box {
	bb := ms2.Box{Min: verts[0], Max: verts[0]}
	for _, v := range verts[1:] {
		bb.Min = ms2.Vec{X: math32.Min(bb.Min.X, v.X), Y: math32.Min(bb.Min.Y, v.Y)}
		bb.Max = ms2.Vec{X: math32.Max(bb.Max.X, v.X), Y: math32.Max(bb.Max.Y, v.Y)}
	}
	return bb
}

func hashFloats(h uint64, fs ...float32) uint64 {
	var buf []byte
	for _, f := range fs {
		buf = glbuild.AppendFloat(buf, '-', '.', f)
		buf = append(buf, ',')
	}
	return glbuild.Hash(buf, h)
}

func hashVecs(h uint64, vs []ms2.Vec) uint64 {
	for _, v := range vs {
		h = hashFloats(h, v.X, v.Y)
	}
	return h
}
