// Package surfaces provides ready made flat surfaces and a registry to look
// them up by id.
package surfaces

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/soypat/flatsurf"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

//go:embed geometries
var geometries embed.FS

// Torus is the 4x4 square with opposite sides glued by translation.
func Torus() *flatsurf.Descriptor {
	verts := []ms2.Vec{{X: 2, Y: 2}, {X: -2, Y: 2}, {X: -2, Y: -2}, {X: 2, Y: -2}}
	edges := []flatsurf.Edge{
		{Kind: flatsurf.EdgeTranslation, Destination: 2, Vector: ms3.Vec{Z: -4}},
		{Kind: flatsurf.EdgeTranslation, Destination: 3, Vector: ms3.Vec{X: 4}},
		{Kind: flatsurf.EdgeTranslation, Destination: 0, Vector: ms3.Vec{Z: 4}},
		{Kind: flatsurf.EdgeTranslation, Destination: 1, Vector: ms3.Vec{X: -4}},
	}
	d := flatsurf.NewDescriptor("torus", verts, edges)
	d.Name = "Square Torus"
	d.Description = "Square with opposite sides glued by translation."
	return d
}

// LShape is the L shaped region made of three b*2b squares. Its long left
// side is split in two so every edge has exactly one partner.
func LShape(b float32) *flatsurf.Descriptor {
	verts := []ms2.Vec{
		{X: -b, Y: -2 * b}, {X: b, Y: -2 * b}, {X: 3 * b, Y: -2 * b}, {X: 3 * b, Y: 0},
		{X: b, Y: 0}, {X: b, Y: 2 * b}, {X: -b, Y: 2 * b}, {X: -b, Y: 0},
	}
	tr := func(dst int, x, z float32) flatsurf.Edge {
		return flatsurf.Edge{Kind: flatsurf.EdgeTranslation, Destination: dst, Vector: ms3.Vec{X: x, Z: z}}
	}
	edges := []flatsurf.Edge{
		tr(5, 0, 4*b),
		tr(3, 0, 2*b),
		tr(7, -4*b, 0),
		tr(1, 0, -2*b),
		tr(6, -2*b, 0),
		tr(0, 0, -4*b),
		tr(4, 2*b, 0),
		tr(2, 4*b, 0),
	}
	d := flatsurf.NewDescriptor("lshape", verts, edges)
	d.Name = "L Shape"
	d.Description = "Three squares in an L with parallel sides glued by translation."
	return d
}

// pentagonVertices are two regular pentagons sharing a side, merged into one
// centrally symmetric octagon.
var pentagonVertices = []ms2.Vec{
	{X: 3.61803399, Y: 0},
	{X: 2.23606798, Y: 1.90211303},
	{X: 0, Y: 1.1755705},
	{X: -2.23606798, Y: 1.90211303},
	{X: -3.61803399, Y: 0},
	{X: -2.23606798, Y: -1.90211303},
	{X: 0, Y: -1.1755705},
	{X: 2.23606798, Y: -1.90211303},
}

// DoublePentagon glues every side of the double pentagon to its parallel
// opposite: edge i goes to edge i+4 shifted by v[i+5]-v[i].
func DoublePentagon() *flatsurf.Descriptor {
	n := len(pentagonVertices)
	edges := make([]flatsurf.Edge, n)
	for i := range edges {
		v := ms2.Sub(pentagonVertices[(i+5)%n], pentagonVertices[i])
		edges[i] = flatsurf.Edge{
			Kind:        flatsurf.EdgeTranslation,
			Destination: (i + 4) % n,
			Vector:      ms3.Vec{X: v.X, Z: v.Y},
		}
	}
	d := flatsurf.NewDescriptor("pentagon", pentagonVertices, edges)
	d.Name = "Double Pentagon"
	d.Description = "Genus two surface from two regular pentagons with parallel sides glued."
	return d
}

// DoublePentagonMirror is the double pentagon with mirrored walls.
func DoublePentagonMirror() *flatsurf.Descriptor {
	edges := make([]flatsurf.Edge, len(pentagonVertices))
	for i := range edges {
		edges[i] = flatsurf.Edge{Kind: flatsurf.EdgeMirror, Destination: i}
	}
	d := flatsurf.NewDescriptor("pentagon_mirror", pentagonVertices, edges)
	d.Name = "Double Pentagon Mirror"
	d.Description = "Double pentagon whose walls reflect."
	d.WallHeight = 5
	return d
}

// AffineSquare glues adjacent sides of the square [-2,2]² by quarter turns:
// the top side re-emerges from the right side and the bottom from the left.
func AffineSquare() *flatsurf.Descriptor {
	verts := []ms2.Vec{{X: 2, Y: 2}, {X: -2, Y: 2}, {X: -2, Y: -2}, {X: 2, Y: -2}}
	ccw := [4]float32{0, -1, 1, 0}
	cw := [4]float32{0, 1, -1, 0}
	edges := []flatsurf.Edge{
		{Kind: flatsurf.EdgeAffine, Destination: 3, Matrix: ccw, Translation: ms2.Vec{X: 4}},
		{Kind: flatsurf.EdgeAffine, Destination: 2, Matrix: cw, Translation: ms2.Vec{Y: -4}},
		{Kind: flatsurf.EdgeAffine, Destination: 1, Matrix: ccw, Translation: ms2.Vec{X: -4}},
		{Kind: flatsurf.EdgeAffine, Destination: 0, Matrix: cw, Translation: ms2.Vec{Y: 4}},
	}
	d := flatsurf.NewDescriptor("affine_square", verts, edges)
	d.Name = "Rotation Square"
	d.Description = "Square with adjacent sides glued by quarter turn rotations."
	return d
}

// SolidRoom is a square room with solid walls and one of every decoration.
func SolidRoom() *flatsurf.Descriptor {
	verts := []ms2.Vec{{X: 3, Y: 3}, {X: -3, Y: 3}, {X: -3, Y: -3}, {X: 3, Y: -3}}
	edges := make([]flatsurf.Edge, len(verts))
	for i := range edges {
		edges[i] = flatsurf.Edge{Destination: i}
	}
	d := flatsurf.NewDescriptor("room", verts, edges)
	d.Name = "Solid Room"
	d.Description = "Square room with solid walls and decorations."
	d.Decorations = []flatsurf.Decoration{
		{Kind: flatsurf.DecorationSphere, Position: ms3.Vec{X: 1.5, Y: 0.5, Z: -1.5}, Radius: 0.3},
		{
			Kind: flatsurf.DecorationSphere, Position: ms3.Vec{Y: 1.2}, Radius: 0.2,
			Animation: &flatsurf.Animation{Radius: 1.5, Speed: 0.5},
		},
		{Kind: flatsurf.DecorationCylinder, Position: ms3.Vec{X: -1.5, Z: 1.5}, Radius: 0.2, Length: 2},
		{Kind: flatsurf.DecorationHollowCube, Position: ms3.Vec{X: -1.5, Y: 0.5, Z: -1.5}, Radius: 0.4, InnerRatio: flatsurf.DefaultInnerRatio},
	}
	return d
}

// Registry maps surface ids to descriptor constructors. The zero value is
// empty and ready to use. Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]func() (*flatsurf.Descriptor, error)
}

// Register adds or replaces the surface with the given id.
func (r *Registry) Register(id string, fn func() (*flatsurf.Descriptor, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = make(map[string]func() (*flatsurf.Descriptor, error))
	}
	r.entries[id] = fn
}

// Lookup returns a fresh descriptor of the surface with the given id.
func (r *Registry) Lookup(id string) (*flatsurf.Descriptor, error) {
	r.mu.RLock()
	fn, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown surface %q", id)
	}
	return fn()
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Resolve looks up a registered id and falls back to loading a descriptor
// file when no surface with that id exists.
func (r *Registry) Resolve(idOrPath string) (*flatsurf.Descriptor, error) {
	d, err := r.Lookup(idOrPath)
	if err == nil {
		return d, nil
	}
	if _, statErr := os.Stat(idOrPath); statErr != nil {
		return nil, err
	}
	return flatsurf.LoadDescriptor(idOrPath)
}

var (
	defaultOnce sync.Once
	defaultReg  Registry
)

// Default returns the registry with the built-in and embedded surfaces.
func Default() *Registry {
	defaultOnce.Do(func() {
		builtin := map[string]func() *flatsurf.Descriptor{
			"torus":           Torus,
			"lshape":          func() *flatsurf.Descriptor { return LShape(2) },
			"pentagon":        DoublePentagon,
			"pentagon_mirror": DoublePentagonMirror,
			"affine_square":   AffineSquare,
			"room":            SolidRoom,
		}
		for id, fn := range builtin {
			defaultReg.Register(id, func() (*flatsurf.Descriptor, error) { return fn(), nil })
		}
		err := registerEmbedded(&defaultReg)
		if err != nil {
			panic(err)
		}
	})
	return &defaultReg
}

func registerEmbedded(r *Registry) error {
	entries, err := fs.ReadDir(geometries, "geometries")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		ext := path.Ext(name)
		switch ext {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		data, err := geometries.ReadFile(path.Join("geometries", name))
		if err != nil {
			return err
		}
		d, err := flatsurf.ParseDescriptor(data)
		if err != nil {
			return fmt.Errorf("embedded geometry %s: %w", name, err)
		}
		id := d.ID
		if id == "" {
			id = strings.TrimSuffix(name, ext)
		}
		r.Register(id, func() (*flatsurf.Descriptor, error) {
			return flatsurf.ParseDescriptor(data)
		})
	}
	return nil
}

// ErrNoSurfaces is returned by [First] for an empty registry.
var ErrNoSurfaces = errors.New("no surfaces registered")

// First returns the surface with the lowest id.
func (r *Registry) First() (*flatsurf.Descriptor, error) {
	ids := r.IDs()
	if len(ids) == 0 {
		return nil, ErrNoSurfaces
	}
	return r.Lookup(ids[0])
}
