package flatsurf_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/soypat/flatsurf"
	"github.com/soypat/flatsurf/surfaces"
	"github.com/soypat/geometry/ms3"
)

func TestCompileBuiltins(t *testing.T) {
	reg := surfaces.Default()
	compiler, err := flatsurf.NewCompiler(flatsurf.DefaultKernelConfig())
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range reg.IDs() {
		d, err := reg.Lookup(id)
		if err != nil {
			t.Fatal(err)
		}
		prog, err := compiler.Compile(d)
		if err != nil {
			t.Fatalf("%s: %s", id, err)
		}
		src := prog.Source()
		for _, want := range []string{
			"#version 430\n",
			"uniform float iTime;",
			"uniform vec3 rayMarchCamPos;",
			"#define NUM_WALLS " + itoa(d.NumWalls()) + "\n",
			"const int[" + itoa(d.NumWalls()) + "] gluingVector=",
			"const vec3[" + itoa(d.NumWalls()) + "] wallNormals=",
			"float fsWall(vec3 p, vec2 a, vec2 b, float h)",
			"int touchedWall(vec3 p)",
			"void applyGluing(inout vec3 pos, inout vec3 ray, int w)",
			"void main()",
		} {
			if !strings.Contains(src, want) {
				t.Errorf("%s: generated source missing %q", id, want)
			}
		}
		if strings.Count(src, "float fsWall(") != 1 {
			t.Errorf("%s: helper function must be declared exactly once", id)
		}
		if prog.NumWalls() != d.NumWalls() || prog.ID() != d.ID {
			t.Errorf("%s: program metadata mismatch", id)
		}
		if !strings.HasSuffix(prog.FragmentSource(), "\x00") {
			t.Errorf("%s: fragment source must be NUL terminated", id)
		}
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b []byte
	for ; i > 0; i /= 10 {
		b = append([]byte{byte('0' + i%10)}, b...)
	}
	return string(b)
}

func TestCompileDeterministic(t *testing.T) {
	a, err := flatsurf.Compile(surfaces.DoublePentagon())
	if err != nil {
		t.Fatal(err)
	}
	b, err := flatsurf.Compile(surfaces.DoublePentagon())
	if err != nil {
		t.Fatal(err)
	}
	if a.Source() != b.Source() {
		t.Error("identical descriptors must generate identical source")
	}
	if a.Key() != b.Key() {
		t.Error("identical descriptors must have identical keys")
	}
	c := surfaces.DoublePentagon()
	c.WallHeight = 3
	prog, err := flatsurf.Compile(c)
	if err != nil {
		t.Fatal(err)
	}
	if prog.Key() == a.Key() || prog.Source() == a.Source() {
		t.Error("changed wall height must change the program")
	}
}

func TestCompilerCache(t *testing.T) {
	compiler, err := flatsurf.NewCompiler(flatsurf.DefaultKernelConfig())
	if err != nil {
		t.Fatal(err)
	}
	a, err := compiler.Compile(surfaces.Torus())
	if err != nil {
		t.Fatal(err)
	}
	b, err := compiler.Compile(surfaces.Torus())
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("compiler should return the cached program for identical content")
	}
}

func TestCompileTables(t *testing.T) {
	prog, err := flatsurf.Compile(surfaces.Torus())
	if err != nil {
		t.Fatal(err)
	}
	src := prog.Source()
	for _, want := range []string{
		"const int[4] gluingVector=int[4](2,3,0,1);",
		"const vec3[4] transformVectors=vec3[4](vec3(0.,0.,-4.),vec3(4.,0.,0.),vec3(0.,0.,4.),vec3(-4.,0.,0.));",
		"const vec3[4] wallNormals=vec3[4](vec3(0.,0.,1.),vec3(-1.,0.,0.),vec3(0.,0.,-1.),vec3(1.,0.,0.));",
		"pos += transformVectors[w] - 3.0*eps*wallNormals[d];",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("generated source missing %q", want)
		}
	}
	if prog.Kind() != flatsurf.EdgeTranslation {
		t.Errorf("want translation kind, got %s", prog.Kind())
	}
}

func TestCompileMirrorNudgesAlongCrossedWall(t *testing.T) {
	d := surfaces.DoublePentagonMirror()
	for i := range d.Edges {
		d.Edges[i].Destination = (i + 1) % len(d.Edges)
	}
	prog, err := flatsurf.Compile(d)
	if err != nil {
		t.Fatal(err)
	}
	src := prog.Source()
	if !strings.Contains(src, "ray = ray - 2.0*dot(ray, n)*n;\npos -= 3.0*eps*n;") {
		t.Error("mirror must move the ray back along the crossed wall normal")
	}
	if strings.Contains(src, "eps*wallNormals[d]") {
		t.Error("mirror must not depend on the destination wall")
	}
}

func TestCompileAffineMatrixOrder(t *testing.T) {
	d := surfaces.AffineSquare()
	d.Edges[0].Matrix = [4]float32{1, 2, 3, 4}
	prog, err := flatsurf.Compile(d)
	if err != nil {
		t.Fatal(err)
	}
	// Row-major [1 2; 3 4] is column-major mat2(1,3,2,4) in GLSL.
	if !strings.Contains(prog.Source(), "const mat2[4] transformMatrices=mat2[4](mat2(1.,3.,2.,4.),") {
		t.Error("affine matrix not emitted column-major")
	}
	if !strings.Contains(prog.Source(), "const vec2[4] translateVectors=") {
		t.Error("missing affine translations")
	}
}

func TestCompileMixedKinds(t *testing.T) {
	d := surfaces.Torus()
	d.Edges[1].Kind = flatsurf.EdgeMirror
	_, err := flatsurf.Compile(d)
	if !flatsurf.IsKind(err, flatsurf.ErrCompile) {
		t.Fatalf("want compile error, got %v", err)
	}
	var ferr *flatsurf.Error
	if !errors.As(err, &ferr) || ferr.Context != "torus" {
		t.Errorf("error should name the surface: %v", err)
	}
}

func TestCompileInvalid(t *testing.T) {
	d := surfaces.Torus()
	d.Edges[0].Destination = 9
	_, err := flatsurf.Compile(d)
	if !flatsurf.IsKind(err, flatsurf.ErrCompile) {
		t.Errorf("want compile error for bad destination, got %v", err)
	}
	_, err = flatsurf.NewCompiler(flatsurf.KernelConfig{})
	if err == nil {
		t.Error("want error for zero kernel config")
	}
}

func TestCompileSolidRoom(t *testing.T) {
	prog, err := flatsurf.Compile(surfaces.SolidRoom())
	if err != nil {
		t.Fatal(err)
	}
	src := prog.Source()
	if !strings.Contains(src, "int touchedWall(vec3 p) {\nreturn -1;\n}") {
		t.Error("solid walls must never be reported as touched")
	}
	for _, want := range []string{"iTime", "fsCylinder(", "fsBox(", "float sdSolid(vec3 p)"} {
		if !strings.Contains(src, want) {
			t.Errorf("missing %q", want)
		}
	}
	if scene := prog.Scene(); !strings.HasPrefix(scene, "union(wallSet,") {
		t.Errorf("scene should union walls with the solids, got %q", scene)
	}
}

func TestKernelConfigFOV(t *testing.T) {
	cfg := flatsurf.DefaultKernelConfig()
	cfg.FOV = 90
	if got := cfg.FOVScale(); got < 0.9999 || got > 1.0001 {
		t.Errorf("90 degree FOV should have unit image plane distance, got %v", got)
	}
	cfg.Background = ms3.Vec{X: 1}
	if err := cfg.Validate(); err != nil {
		t.Error(err)
	}
}
