package glbuild_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/soypat/flatsurf/glbuild"
	"github.com/soypat/geometry/ms3"
)

// node is a minimal Shader3D used to drive the programmer.
type node struct {
	name     string
	body     string
	fns      []string
	children []glbuild.Shader3D
}

func (n *node) AppendShaderName(b []byte) []byte { return append(b, n.name...) }
func (n *node) AppendShaderBody(b []byte) []byte { return append(b, n.body...) }
func (n *node) Bounds() ms3.Box                  { return ms3.Box{} }

func (n *node) AppendShaderFunctions(fns []glbuild.ShaderFunction) []glbuild.ShaderFunction {
	for _, src := range n.fns {
		fn, err := glbuild.MakeShaderFunction([]byte(src))
		if err != nil {
			panic(err)
		}
		fns = append(fns, fn)
	}
	return fns
}

func (n *node) ForEachChild(userData any, fn func(userData any, s *glbuild.Shader3D) error) error {
	for i := range n.children {
		if err := fn(userData, &n.children[i]); err != nil {
			return err
		}
	}
	return nil
}

const helper = "float fsHelper(vec3 p) { return length(p); }"

func TestShaderNameDeduplication(t *testing.T) {
	// a and b are distinct values with identical name and body.
	a := &node{name: "ball", body: "return fsHelper(p)-1.;", fns: []string{helper}}
	b := &node{name: "ball", body: "return fsHelper(p)-1.;", fns: []string{helper}}
	root := &node{name: "both", body: "return min(ball(p),ball(p));", children: []glbuild.Shader3D{a, b}}
	other := &node{name: "solo", body: "return ball(p);", children: []glbuild.Shader3D{a}}

	programmer := glbuild.NewDefaultProgrammer()
	var buf bytes.Buffer
	names, n, err := programmer.WriteSDFDecls(&buf, root, other)
	if err != nil {
		t.Fatal(err)
	}
	if n != buf.Len() {
		t.Errorf("written length %d != buffer length %d", n, buf.Len())
	}
	if len(names) != 2 || names[0] != "both" || names[1] != "solo" {
		t.Errorf("unexpected base names %v", names)
	}
	src := buf.String()
	for decl, want := range map[string]int{
		"float ball(vec3 p)":     1,
		"float both(vec3 p)":     1,
		"float solo(vec3 p)":     1,
		"float fsHelper(vec3 p)": 1,
	} {
		if got := strings.Count(src, decl); got != want {
			t.Errorf("want %d of %q, got %d in\n%s", want, decl, got, src)
		}
	}
	if strings.Index(src, "float ball(") > strings.Index(src, "float both(") {
		t.Errorf("dependency declared after its user:\n%s", src)
	}
}

func TestShaderNameConflict(t *testing.T) {
	a := &node{name: "ball", body: "return length(p)-1.;"}
	b := &node{name: "ball", body: "return length(p)-2.;"}
	root := &node{name: "both", body: "return 0.;", children: []glbuild.Shader3D{a, b}}
	_, _, err := glbuild.NewDefaultProgrammer().WriteSDFDecl(new(bytes.Buffer), root)
	if err == nil {
		t.Error("expected error for same name with distinct body")
	}

	a.fns = []string{helper}
	b.body = a.body
	b.fns = []string{"float fsHelper(vec3 p) { return 2.; }"}
	_, _, err = glbuild.NewDefaultProgrammer().WriteSDFDecl(new(bytes.Buffer), root)
	if err == nil {
		t.Error("expected error for conflicting helper functions")
	}
}

func TestMakeShaderFunction(t *testing.T) {
	fn, err := glbuild.MakeShaderFunction([]byte("\n float fsWall(vec2 p, vec2 a) {\nreturn 0.;\n}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if fn.Name() != "fsWall" {
		t.Errorf("got name %q", fn.Name())
	}
	if _, err := glbuild.MakeShaderFunction([]byte("garbage")); err == nil {
		t.Error("expected parse error")
	}
}

func TestAppendFloat(t *testing.T) {
	tests := []struct {
		v    float32
		want string
	}{
		{0, "0."},
		{float32(negZero()), "0."},
		{2, "2."},
		{-1.5, "-1.5"},
		{0.0001, "0.0001"},
		{1.1755705, "1.175570488"},
	}
	for _, test := range tests {
		got := string(glbuild.AppendFloat(nil, '-', '.', test.v))
		if got != test.want {
			t.Errorf("AppendFloat(%v) = %q, want %q", test.v, got, test.want)
		}
	}
	if got := string(glbuild.AppendFloat(nil, 'n', 'p', -0.25)); got != "n0p25" {
		t.Errorf("identifier-safe float: got %q", got)
	}
}

func negZero() float64 {
	var z float64
	return -z
}

func TestAppendMat2ColumnMajor(t *testing.T) {
	got := string(glbuild.AppendMat2(nil, [4]float32{1, 2, 3, 4}))
	if got != "mat2(1.,3.,2.,4.)" {
		t.Errorf("got %s", got)
	}
}

func TestAppendSliceDecls(t *testing.T) {
	var b []byte
	b = glbuild.AppendConst(b, func(b []byte) []byte {
		return glbuild.AppendIntSliceDecl(b, "gluing", []int{2, 3, 0, 1})
	})
	b = glbuild.AppendVec3SliceDecl(b, "v", []ms3.Vec{{X: 1}, {Z: -4}})
	b = glbuild.AppendMat2SliceDecl(b, "m", [][4]float32{{0, -1, 1, 0}})
	want := "const int[4] gluing=int[4](2,3,0,1);\n" +
		"vec3[2] v=vec3[2](vec3(1.,0.,0.),vec3(0.,0.,-4.));\n" +
		"mat2[1] m=mat2[1](mat2(0.,1.,-1.,0.));\n"
	if string(b) != want {
		t.Errorf("got\n%s\nwant\n%s", b, want)
	}
}

func TestHashStable(t *testing.T) {
	a := glbuild.Hash([]byte("walls"), 0)
	if a != glbuild.Hash([]byte("walls"), 0) {
		t.Error("hash not deterministic")
	}
	if a == glbuild.Hash([]byte("walls"), 1) || a == glbuild.Hash([]byte("wall"), 0) {
		t.Error("hash ignores input")
	}
}
