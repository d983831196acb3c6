package flatsurf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"gopkg.in/yaml.v3"
)

// descriptorFile is the on-disk form of a [Descriptor]. JSON and YAML share field names.
type descriptorFile struct {
	ID                string           `json:"id,omitempty" yaml:"id,omitempty"`
	Name              string           `json:"name,omitempty" yaml:"name,omitempty"`
	Description       string           `json:"description,omitempty" yaml:"description,omitempty"`
	Vertices          [][]float32      `json:"vertices,omitempty" yaml:"vertices,omitempty"`
	Edges             []edgeFile       `json:"edges,omitempty" yaml:"edges,omitempty"`
	Gluing            []int            `json:"gluing,omitempty" yaml:"gluing,omitempty"`
	Normals           [][]float32      `json:"normals,omitempty" yaml:"normals,omitempty"`
	WallHeight        *float32         `json:"wallHeight,omitempty" yaml:"wallHeight,omitempty"`
	TeleportHeight    *float32         `json:"teleportHeight,omitempty" yaml:"teleportHeight,omitempty"`
	Fog               *float32         `json:"fog_effect_strength,omitempty" yaml:"fog_effect_strength,omitempty"`
	VerticalComponent string           `json:"vertical_component,omitempty" yaml:"vertical_component,omitempty"`
	VerticalWrap      *float32         `json:"vertical_wrap_amount,omitempty" yaml:"vertical_wrap_amount,omitempty"`
	CornerRadius      *float32         `json:"cornerRadius,omitempty" yaml:"cornerRadius,omitempty"`
	Decorations       []decorationFile `json:"decorations,omitempty" yaml:"decorations,omitempty"`
	InitialPosition   []float32        `json:"initialPosition,omitempty" yaml:"initialPosition,omitempty"`
}

type edgeFile struct {
	Kind        string         `json:"kind,omitempty" yaml:"kind,omitempty"`
	Type        string         `json:"type,omitempty" yaml:"type,omitempty"`
	Destination *int           `json:"destination,omitempty" yaml:"destination,omitempty"`
	Vector      []float32      `json:"vector,omitempty" yaml:"vector,omitempty"`
	Normal      []float32      `json:"normal,omitempty" yaml:"normal,omitempty"`
	Matrix      []float32      `json:"matrix,omitempty" yaml:"matrix,omitempty"`
	Translation []float32      `json:"translation,omitempty" yaml:"translation,omitempty"`
	Transform   *transformFile `json:"transform,omitempty" yaml:"transform,omitempty"`
}

type transformFile struct {
	Matrix      []float32 `json:"matrix,omitempty" yaml:"matrix,omitempty"`
	Translation []float32 `json:"translation,omitempty" yaml:"translation,omitempty"`
}

type decorationFile struct {
	Type       string         `json:"type,omitempty" yaml:"type,omitempty"`
	Position   []float32      `json:"position,omitempty" yaml:"position,omitempty"`
	Height     float32        `json:"height,omitempty" yaml:"height,omitempty"`
	Radius     float32        `json:"radius,omitempty" yaml:"radius,omitempty"`
	Length     float32        `json:"length,omitempty" yaml:"length,omitempty"`
	InnerRatio float32        `json:"inner_ratio,omitempty" yaml:"inner_ratio,omitempty"`
	HollowCube bool           `json:"hollowCube,omitempty" yaml:"hollowCube,omitempty"`
	Animation  *animationFile `json:"animation,omitempty" yaml:"animation,omitempty"`
}

type animationFile struct {
	Enabled bool      `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Type    string    `json:"type,omitempty" yaml:"type,omitempty"`
	Center  []float32 `json:"center,omitempty" yaml:"center,omitempty"`
	Radius  float32   `json:"radius,omitempty" yaml:"radius,omitempty"`
	Speed   float32   `json:"speed,omitempty" yaml:"speed,omitempty"`
}

// LoadDescriptor reads a descriptor file. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON. A missing id defaults to the file name.
func LoadDescriptor(path string) (*Descriptor, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, newError(ErrLoad, path, err)
	}
	defer fp.Close()
	var d *Descriptor
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		d, err = DecodeYAML(fp)
	default:
		d, err = DecodeJSON(fp)
	}
	if err != nil {
		return nil, err
	}
	if d.ID == "" {
		d.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if d.Name == "" {
			d.Name = d.ID
		}
	}
	return d, nil
}

// DecodeJSON decodes and validates a JSON descriptor.
func DecodeJSON(r io.Reader) (*Descriptor, error) {
	var f descriptorFile
	err := json.NewDecoder(r).Decode(&f)
	if err != nil {
		return nil, newError(ErrLoad, "", fmt.Errorf("decoding JSON: %w", err))
	}
	return f.descriptor()
}

// DecodeYAML decodes and validates a YAML descriptor.
func DecodeYAML(r io.Reader) (*Descriptor, error) {
	var f descriptorFile
	err := yaml.NewDecoder(r).Decode(&f)
	if err != nil {
		return nil, newError(ErrLoad, "", fmt.Errorf("decoding YAML: %w", err))
	}
	return f.descriptor()
}

// ParseDescriptor decodes a descriptor from memory, detecting YAML by the absence of a leading '{'.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return DecodeJSON(bytes.NewReader(trimmed))
	}
	return DecodeYAML(bytes.NewReader(trimmed))
}

func (f *descriptorFile) descriptor() (*Descriptor, error) {
	var errs errorList
	verts := make([]ms2.Vec, len(f.Vertices))
	for i, v := range f.Vertices {
		if len(v) != 2 {
			errs.errorf("vertex %d: want [x,z], got %d components", i, len(v))
			continue
		}
		verts[i] = ms2.Vec{X: v[0], Y: v[1]}
	}
	edges := make([]Edge, len(f.Edges))
	for i := range f.Edges {
		edges[i] = f.edge(&errs, i)
	}
	d := NewDescriptor(f.ID, verts, edges)
	if f.Name != "" {
		d.Name = f.Name
	}
	d.Description = f.Description
	if f.WallHeight != nil {
		d.WallHeight = *f.WallHeight
	}
	if f.TeleportHeight != nil {
		d.TeleportHeight = *f.TeleportHeight
	}
	if f.Fog != nil {
		d.Fog = *f.Fog
	}
	if f.CornerRadius != nil {
		d.CornerRadius = *f.CornerRadius
	}
	switch strings.ToLower(f.VerticalComponent) {
	case "", "line":
	case "circle":
		d.VerticalWrap = DefaultVerticalWrap
		if f.VerticalWrap != nil {
			d.VerticalWrap = *f.VerticalWrap
		}
	default:
		errs.errorf("unknown vertical component %q", f.VerticalComponent)
	}
	if f.InitialPosition != nil {
		p, err := vec3From(f.InitialPosition, 0)
		if err != nil {
			errs.errorf("initial position: %s", err)
		}
		d.InitialPosition = p
	}
	for i := range f.Decorations {
		dec, err := f.Decorations[i].decoration()
		if err != nil {
			errs.errorf("decoration %d: %s", i, err)
			continue
		}
		d.Decorations = append(d.Decorations, dec)
	}
	if err := errs.err(); err != nil {
		return nil, newError(ErrLoad, f.ID, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (f *descriptorFile) edge(errs *errorList, i int) Edge {
	ef := &f.Edges[i]
	kindStr := ef.Kind
	if kindStr == "" {
		kindStr = ef.Type
	}
	kind, err := ParseEdgeKind(kindStr)
	if err != nil {
		errs.errorf("edge %d: %s", i, err)
	}
	e := Edge{Kind: kind, Destination: i}
	switch {
	case ef.Destination != nil:
		e.Destination = *ef.Destination
	case i < len(f.Gluing):
		e.Destination = f.Gluing[i]
	case kind != EdgeNone && kind != EdgeMirror:
		errs.errorf("edge %d: missing destination", i)
	}
	if ef.Vector != nil {
		e.Vector, err = vec3From(ef.Vector, 0)
		if err != nil {
			errs.errorf("edge %d vector: %s", i, err)
		}
	} else if kind == EdgeTranslation {
		errs.errorf("edge %d: translation edge missing vector", i)
	}
	normal := ef.Normal
	if normal == nil && i < len(f.Normals) {
		normal = f.Normals[i]
	}
	if normal != nil {
		e.Normal, err = vec3From(normal, 0)
		if err != nil {
			errs.errorf("edge %d normal: %s", i, err)
		}
	}
	matrix, translation := ef.Matrix, ef.Translation
	if ef.Transform != nil {
		if matrix == nil {
			matrix = ef.Transform.Matrix
		}
		if translation == nil {
			translation = ef.Transform.Translation
		}
	}
	e.Matrix = [4]float32{1, 0, 0, 1}
	if matrix != nil {
		if len(matrix) != 4 {
			errs.errorf("edge %d: matrix needs 4 row-major values, got %d", i, len(matrix))
		} else {
			copy(e.Matrix[:], matrix)
		}
	}
	if translation != nil {
		if len(translation) != 2 {
			errs.errorf("edge %d: translation needs [x,z], got %d components", i, len(translation))
		} else {
			e.Translation = ms2.Vec{X: translation[0], Y: translation[1]}
		}
	}
	return e
}

func (df *decorationFile) decoration() (Decoration, error) {
	kind, err := ParseDecorationKind(df.Type)
	if err != nil {
		return Decoration{}, err
	}
	if kind == DecorationSphere && df.HollowCube {
		kind = DecorationHollowCube
	}
	pos, err := vec3From(df.Position, df.Height)
	if err != nil {
		return Decoration{}, fmt.Errorf("position: %w", err)
	}
	dec := Decoration{
		Kind:       kind,
		Position:   pos,
		Radius:     df.Radius,
		Length:     df.Length,
		InnerRatio: df.InnerRatio,
	}
	if dec.Kind == DecorationCylinder && dec.Length == 0 {
		dec.Length = df.Height
	}
	if dec.Kind == DecorationHollowCube && dec.InnerRatio == 0 {
		dec.InnerRatio = DefaultInnerRatio
	}
	if a := df.Animation; a != nil && a.Enabled {
		if a.Type != "" && !strings.EqualFold(a.Type, "circular") {
			return Decoration{}, fmt.Errorf("unsupported animation type %q", a.Type)
		}
		var center ms3.Vec
		if a.Center != nil {
			center, err = vec3From(a.Center, 0)
			if err != nil {
				return Decoration{}, fmt.Errorf("animation center: %w", err)
			}
		}
		dec.Animation = &Animation{Center: center, Radius: a.Radius, Speed: a.Speed}
	}
	return dec, nil
}

// vec3From converts [x,z] (with height y) or [x,y,z] to a vector.
func vec3From(v []float32, y float32) (ms3.Vec, error) {
	switch len(v) {
	case 2:
		return ms3.Vec{X: v[0], Y: y, Z: v[1]}, nil
	case 3:
		return ms3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
	}
	return ms3.Vec{}, fmt.Errorf("want [x,z] or [x,y,z], got %d components", len(v))
}

// MarshalJSON encodes the descriptor in the descriptor file format.
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.file())
}

// MarshalYAML implements [yaml.Marshaler] with the descriptor file format.
func (d *Descriptor) MarshalYAML() (any, error) {
	return d.file(), nil
}

func (d *Descriptor) file() *descriptorFile {
	f := &descriptorFile{
		ID:              d.ID,
		Name:            d.Name,
		Description:     d.Description,
		WallHeight:      &d.WallHeight,
		Fog:             &d.Fog,
		CornerRadius:    &d.CornerRadius,
		InitialPosition: []float32{d.InitialPosition.X, d.InitialPosition.Y, d.InitialPosition.Z},
	}
	if d.TeleportHeight != 0 {
		f.TeleportHeight = &d.TeleportHeight
	}
	if d.VerticalWrap > 0 {
		f.VerticalComponent = "circle"
		f.VerticalWrap = &d.VerticalWrap
	}
	for _, v := range d.Vertices {
		f.Vertices = append(f.Vertices, []float32{v.X, v.Y})
	}
	for _, e := range d.Edges {
		dst := e.Destination
		ef := edgeFile{Kind: e.Kind.String(), Destination: &dst}
		switch e.Kind {
		case EdgeTranslation:
			ef.Vector = []float32{e.Vector.X, e.Vector.Y, e.Vector.Z}
		case EdgeAffine:
			ef.Matrix = e.Matrix[:]
			ef.Translation = []float32{e.Translation.X, e.Translation.Y}
		}
		if e.Normal != (ms3.Vec{}) {
			ef.Normal = []float32{e.Normal.X, e.Normal.Y, e.Normal.Z}
		}
		f.Edges = append(f.Edges, ef)
	}
	for _, dec := range d.Decorations {
		df := decorationFile{
			Type:       dec.Kind.String(),
			Position:   []float32{dec.Position.X, dec.Position.Y, dec.Position.Z},
			Radius:     dec.Radius,
			Length:     dec.Length,
			InnerRatio: dec.InnerRatio,
		}
		if a := dec.Animation; a != nil {
			df.Animation = &animationFile{
				Enabled: true,
				Type:    "circular",
				Center:  []float32{a.Center.X, a.Center.Y, a.Center.Z},
				Radius:  a.Radius,
				Speed:   a.Speed,
			}
		}
		f.Decorations = append(f.Decorations, df)
	}
	return f
}
