package flatsurf_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soypat/flatsurf"
	"github.com/soypat/flatsurf/surfaces"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"gopkg.in/yaml.v3"
)

const torusJSON = `{
  "name": "Torus",
  "vertices": [[2,2],[-2,2],[-2,-2],[2,-2],[2,2]],
  "edges": [
    {"type": "translation", "vector": [0,-4]},
    {"type": "translation", "vector": [4,0]},
    {"type": "translation", "vector": [0,4]},
    {"type": "translation", "vector": [-4,0]}
  ],
  "gluing": [2,3,0,1],
  "wallHeight": 1.5,
  "fog_effect_strength": 0.05,
  "vertical_component": "circle",
  "decorations": [
    {"type": "sphere", "position": [0.5, 0.5], "height": 1, "radius": 0.2},
    {"type": "cylinder", "position": [-1, 0, -1], "radius": 0.1, "height": 2},
    {"type": "sphere", "position": [0, 0], "radius": 0.3, "hollowCube": true}
  ]
}`

const affineYAML = `id: rot
vertices: [[2,2],[-2,2],[-2,-2],[2,-2]]
edges:
  - kind: affine
    destination: 3
    transform: {matrix: [0,-1,1,0], translation: [4,0]}
  - kind: affine
    destination: 2
    matrix: [0,1,-1,0]
    translation: [0,-4]
  - {kind: affine, destination: 1, matrix: [0,-1,1,0], translation: [-4,0]}
  - {kind: affine, destination: 0, matrix: [0,1,-1,0], translation: [0,4]}
teleportHeight: 1
initialPosition: [0.5, 1, 0.5]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	err := os.WriteFile(path, []byte(content), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDescriptorJSON(t *testing.T) {
	d, err := flatsurf.LoadDescriptor(writeFile(t, "mytorus.json", torusJSON))
	if err != nil {
		t.Fatal(err)
	}
	if d.ID != "mytorus" || d.Name != "Torus" {
		t.Errorf("want id from file name and name from file, got %q %q", d.ID, d.Name)
	}
	if d.NumWalls() != 4 || d.Edges[1].Destination != 3 {
		t.Errorf("unexpected edges %+v", d.Edges)
	}
	if d.Edges[0].Vector != (ms3.Vec{Z: -4}) {
		t.Errorf("[x,z] vector should map to (x,0,z), got %v", d.Edges[0].Vector)
	}
	if d.WallHeight != 1.5 || d.Fog != 0.05 {
		t.Errorf("scalar fields not loaded: %+v", d)
	}
	if d.VerticalWrap != flatsurf.DefaultVerticalWrap {
		t.Errorf("circle vertical component should default the wrap amount, got %v", d.VerticalWrap)
	}
	if d.InitialPosition != (ms3.Vec{Y: 1}) {
		t.Errorf("want default initial position, got %v", d.InitialPosition)
	}
	if len(d.Decorations) != 3 {
		t.Fatalf("want 3 decorations, got %d", len(d.Decorations))
	}
	if d.Decorations[0].Position != (ms3.Vec{X: 0.5, Y: 1, Z: 0.5}) {
		t.Errorf("[x,z]+height position wrong: %v", d.Decorations[0].Position)
	}
	if d.Decorations[1].Length != 2 {
		t.Errorf("cylinder length should fall back to height, got %v", d.Decorations[1].Length)
	}
	if d.Decorations[2].Kind != flatsurf.DecorationHollowCube || d.Decorations[2].InnerRatio != flatsurf.DefaultInnerRatio {
		t.Errorf("legacy hollow cube sphere not converted: %+v", d.Decorations[2])
	}
}

func TestLoadDescriptorYAML(t *testing.T) {
	d, err := flatsurf.LoadDescriptor(writeFile(t, "rot.yaml", affineYAML))
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Vertices) != 5 || d.Vertices[4] != d.Vertices[0] {
		t.Errorf("open ring with one edge per vertex should be closed, got %v", d.Vertices)
	}
	want := surfaces.AffineSquare()
	for i := range d.Edges {
		if d.Edges[i].Matrix != want.Edges[i].Matrix || d.Edges[i].Translation != want.Edges[i].Translation {
			t.Errorf("edge %d: want %+v, got %+v", i, want.Edges[i], d.Edges[i])
		}
	}
	if d.EffectiveTeleportHeight() != 1 {
		t.Errorf("want teleport height 1, got %v", d.EffectiveTeleportHeight())
	}
	if d.InitialPosition != (ms3.Vec{X: 0.5, Y: 1, Z: 0.5}) {
		t.Errorf("initial position: got %v", d.InitialPosition)
	}
	if err := d.CheckPairing(1e-6); err != nil {
		t.Error(err)
	}
}

func TestLoadDescriptorErrors(t *testing.T) {
	tests := map[string]string{
		"edge ratio": `{"vertices": [[0,0],[1,0],[1,1],[0,0]], "edges": [{"type":"none"}]}`,
		"bad kind":   `{"vertices": [[0,0],[1,0],[1,1]], "edges": [{"type":"warp"},{"type":"none"},{"type":"none"}]}`,
		"range":      `{"vertices": [[0,0],[1,0],[1,1]], "edges": [{"type":"translation","vector":[1,0],"destination":7},{"type":"none"},{"type":"none"}]}`,
		"singular":   `{"vertices": [[0,0],[1,0],[1,1]], "edges": [{"type":"affine","destination":0,"matrix":[1,1,1,1]},{"type":"affine","destination":1},{"type":"affine","destination":2}]}`,
		"syntax":     `{"vertices": `,
		"vertex":     `{"vertices": [[0,0,0],[1,0],[1,1]], "edges": [{},{},{}]}`,
	}
	for name, src := range tests {
		_, err := flatsurf.LoadDescriptor(writeFile(t, "bad.json", src))
		if !flatsurf.IsKind(err, flatsurf.ErrLoad) {
			t.Errorf("%s: want load error, got %v", name, err)
		}
	}
	_, err := flatsurf.LoadDescriptor(filepath.Join(t.TempDir(), "missing.json"))
	if !flatsurf.IsKind(err, flatsurf.ErrLoad) {
		t.Errorf("missing file: want load error, got %v", err)
	}
}

func TestValidateReportsAll(t *testing.T) {
	d := surfaces.Torus()
	d.WallHeight = -1
	d.Fog = -1
	d.Edges[2].Destination = -1
	err := d.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"wall height", "fog", "edge 2 destination"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
}

func TestDescriptorKind(t *testing.T) {
	kind, err := surfaces.DoublePentagonMirror().Kind()
	if err != nil || kind != flatsurf.EdgeMirror {
		t.Errorf("want mirror, got %s %v", kind, err)
	}
	kind, err = surfaces.SolidRoom().Kind()
	if err != nil || kind != flatsurf.EdgeNone {
		t.Errorf("want none, got %s %v", kind, err)
	}
	d := surfaces.SolidRoom()
	d.Edges[0].Kind = flatsurf.EdgeTranslation
	if _, err := d.Kind(); err == nil {
		t.Error("mixed kinds must error")
	}
	for _, s := range []string{"mirror", "Reflection", "affine", "translation", "none", ""} {
		if _, err := flatsurf.ParseEdgeKind(s); err != nil {
			t.Errorf("ParseEdgeKind(%q): %s", s, err)
		}
	}
}

func TestDescriptorRoundTrip(t *testing.T) {
	for _, d := range []*flatsurf.Descriptor{surfaces.LShape(2), surfaces.AffineSquare(), surfaces.SolidRoom()} {
		b, err := json.Marshal(d)
		if err != nil {
			t.Fatal(err)
		}
		got, err := flatsurf.ParseDescriptor(b)
		if err != nil {
			t.Fatalf("%s: %s", d.ID, err)
		}
		b2, err := json.Marshal(got)
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != string(b2) {
			t.Errorf("%s: JSON round trip mismatch:\n%s\n%s", d.ID, b, b2)
		}
		y, err := yaml.Marshal(d)
		if err != nil {
			t.Fatal(err)
		}
		got, err = flatsurf.ParseDescriptor(y)
		if err != nil {
			t.Fatalf("%s yaml: %s\n%s", d.ID, err, y)
		}
		if got.NumWalls() != d.NumWalls() || len(got.Decorations) != len(d.Decorations) {
			t.Errorf("%s: YAML round trip lost data", d.ID)
		}
	}
}

func TestNewDescriptorCloses(t *testing.T) {
	verts := []ms2.Vec{{X: 1, Y: 1}, {X: -1, Y: 1}, {X: -1, Y: -1}}
	edges := make([]flatsurf.Edge, 3)
	for i := range edges {
		edges[i].Destination = i
	}
	d := flatsurf.NewDescriptor("tri", verts, edges)
	if len(d.Vertices) != 4 || d.NumWalls() != 3 {
		t.Fatalf("want closed ring of 3 walls, got %v", d.Vertices)
	}
	if err := d.Validate(); err != nil {
		t.Error(err)
	}
}
