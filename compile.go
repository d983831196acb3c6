package flatsurf

import (
	"bytes"
	_ "embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/chewxy/math32"
	"github.com/soypat/flatsurf/glbuild"
	"github.com/soypat/geometry/ms3"
)

//go:embed kernel.glsl
var kernelSrc []byte

// VertexSource is the NUL terminated vertex shader that draws the full screen
// quad the generated fragment program runs on. The quad vertex attribute is aPos.
const VertexSource = `#version 430
in vec2 aPos;
void main() {
	gl_Position = vec4(aPos, 0.0, 1.0);
}
` + "\x00"

// KernelConfig holds the ray marching constants baked into a generated program.
type KernelConfig struct {
	// Epsilon is the hit tolerance and the normal sampling step.
	Epsilon     float32
	MaxSteps    int
	MaxDistance float32
	// FOV is the vertical field of view in degrees.
	FOV        float32
	Background ms3.Vec
}

// DefaultKernelConfig returns the configuration used by [Compile].
func DefaultKernelConfig() KernelConfig {
	return KernelConfig{
		Epsilon:     1e-4,
		MaxSteps:    2000,
		MaxDistance: 100,
		FOV:         75,
		Background:  ms3.Vec{X: 0.05, Y: 0.05, Z: 0.08},
	}
}

// Validate returns an error if the configuration cannot produce a working program.
func (cfg KernelConfig) Validate() error {
	switch {
	case !(cfg.Epsilon > 0) || !isFinite(cfg.Epsilon):
		return errors.New("epsilon must be positive")
	case cfg.MaxSteps <= 0:
		return errors.New("max steps must be positive")
	case !(cfg.MaxDistance > 0) || !isFinite(cfg.MaxDistance):
		return errors.New("max distance must be positive")
	case !(cfg.FOV > 0 && cfg.FOV < 180):
		return errors.New("field of view must be in (0, 180) degrees")
	case !isFinite3(cfg.Background):
		return errors.New("background colour not finite")
	}
	return nil
}

// FOVScale is the distance from the eye to the image plane of unit half height.
func (cfg KernelConfig) FOVScale() float32 {
	return 1 / math32.Tan(cfg.FOV*math32.Pi/360)
}

// Program is an immutable generated GLSL fragment program bound to the
// descriptor and kernel configuration it was generated from.
type Program struct {
	id       string
	key      uint64
	kind     EdgeKind
	numWalls int
	cfg      KernelConfig
	source   string
	scene    string
}

// ID returns the id of the surface the program renders.
func (p *Program) ID() string { return p.id }

// Source returns the GLSL fragment program.
func (p *Program) Source() string { return p.source }

// FragmentSource returns the fragment program NUL terminated for passing to OpenGL.
func (p *Program) FragmentSource() string { return p.source + "\x00" }

// Key returns the content hash of the descriptor and configuration the program was built from.
func (p *Program) Key() uint64 { return p.key }

// Kind returns the gluing kind compiled into the program.
func (p *Program) Kind() EdgeKind { return p.kind }

// NumWalls returns the number of polygon edges.
func (p *Program) NumWalls() int { return p.numWalls }

// Config returns the kernel configuration baked into the program.
func (p *Program) Config() KernelConfig { return p.cfg }

// Scene describes the SDF tree of the program, e.g. "union(wallSet,sphere)".
func (p *Program) Scene() string { return p.scene }

// Compiler generates GLSL programs from descriptors. Programs are cached by
// descriptor content so that swapping back to a surface is free.
// Compiler is safe for concurrent use.
type Compiler struct {
	mu         sync.Mutex
	cfg        KernelConfig
	programmer *glbuild.Programmer
	cache      map[uint64]*Program
}

// NewCompiler returns a compiler that bakes cfg into every program.
func NewCompiler(cfg KernelConfig) (*Compiler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, newError(ErrCompile, "kernel config", err)
	}
	return &Compiler{
		cfg:        cfg,
		programmer: glbuild.NewDefaultProgrammer(),
		cache:      make(map[uint64]*Program),
	}, nil
}

// Compile generates the fragment program of d with the default kernel configuration.
func Compile(d *Descriptor) (*Program, error) {
	c, err := NewCompiler(DefaultKernelConfig())
	if err != nil {
		return nil, err
	}
	return c.Compile(d)
}

// Config returns the compiler's kernel configuration.
func (c *Compiler) Config() KernelConfig { return c.cfg }

// Compile generates the fragment program of d. Identical descriptors return
// the same *Program. The returned error is an [*Error] of kind [ErrCompile].
func (c *Compiler) Compile(d *Descriptor) (*Program, error) {
	if d == nil {
		return nil, compileErrorf("", "nil descriptor")
	}
	if err := d.Validate(); err != nil {
		return nil, newError(ErrCompile, d.ID, err)
	}
	kind, err := d.Kind()
	if err != nil {
		return nil, newError(ErrCompile, d.ID, err)
	}
	key, err := c.key(d)
	if err != nil {
		return nil, newError(ErrCompile, d.ID, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if prog, ok := c.cache[key]; ok {
		return prog, nil
	}
	sc, err := newScene(d)
	if err != nil {
		return nil, newError(ErrCompile, d.ID, err)
	}
	var buf bytes.Buffer
	err = c.emit(&buf, d, kind, sc)
	if err != nil {
		return nil, newError(ErrCompile, d.ID, err)
	}
	prog := &Program{
		id:       d.ID,
		key:      key,
		kind:     kind,
		numWalls: d.NumWalls(),
		cfg:      c.cfg,
		source:   buf.String(),
		scene:    glbuild.FormatShader(sc.root),
	}
	c.cache[key] = prog
	return prog, nil
}

func (c *Compiler) key(d *Descriptor) (uint64, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return 0, err
	}
	h := glbuild.Hash(b, 0)
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], uint64(c.cfg.MaxSteps))
	h = glbuild.Hash(scratch[:], h)
	return hashFloats(h, c.cfg.Epsilon, c.cfg.MaxDistance, c.cfg.FOV,
		c.cfg.Background.X, c.cfg.Background.Y, c.cfg.Background.Z), nil
}

func (c *Compiler) emit(buf *bytes.Buffer, d *Descriptor, kind EdgeKind, sc *scene) error {
	g := gluingFor(kind)
	if g == nil {
		return fmt.Errorf("unsupported edge kind %s", kind)
	}
	cfg := c.cfg
	b := make([]byte, 0, 4096)
	b = append(b, glbuild.VersionStr...)
	b = append(b, "// flatsurf surface "...)
	b = strconv.AppendQuote(b, d.ID)
	b = append(b, ", "...)
	b = append(b, kind.String()...)
	b = append(b, " gluing\n"...)
	b = append(b, `uniform float iTime;
uniform vec2 iResolution;
uniform vec3 rayMarchCamPos;
uniform vec3 rayMarchCamFront;
uniform vec3 rayMarchCamUp;
out vec4 fragColor;
`...)
	b = glbuild.AppendDefineDecl(b, "N", strconv.Itoa(len(d.Vertices)))
	b = glbuild.AppendDefineDecl(b, "NUM_WALLS", strconv.Itoa(d.NumWalls()))
	b = glbuild.AppendDefineDecl(b, "MAX_STEPS", strconv.Itoa(cfg.MaxSteps))
	constFloat := func(name string, v float32) {
		b = glbuild.AppendConst(b, func(b []byte) []byte { return glbuild.AppendFloatDecl(b, name, v) })
	}
	constFloat("eps", cfg.Epsilon)
	constFloat("wallHeight", d.WallHeight)
	constFloat("fogStrength", d.Fog)
	constFloat("maxDist", cfg.MaxDistance)
	constFloat("fovScale", cfg.FOVScale())
	constFloat("verticalWrap", d.VerticalWrap)
	b = glbuild.AppendConst(b, func(b []byte) []byte { return glbuild.AppendVec3Decl(b, "background", cfg.Background) })

	dests := make([]int, len(d.Edges))
	for i, e := range d.Edges {
		dests[i] = e.Destination
	}
	b = glbuild.AppendConst(b, func(b []byte) []byte { return glbuild.AppendVec2SliceDecl(b, "vertices", d.Vertices) })
	b = glbuild.AppendConst(b, func(b []byte) []byte { return glbuild.AppendIntSliceDecl(b, "gluingVector", dests) })
	b = glbuild.AppendConst(b, func(b []byte) []byte { return glbuild.AppendVec3SliceDecl(b, "wallNormals", sc.normals) })
	b = g.appendTables(b, d.Edges)
	if _, err := buf.Write(b); err != nil {
		return err
	}

	roots := []glbuild.Shader3D{sc.root}
	if sc.solid != nil {
		roots = append(roots, sc.solid)
	}
	names, _, err := c.programmer.WriteSDFDecls(buf, roots...)
	if err != nil {
		return err
	}

	b = b[:0]
	b = append(b, "float sdf(vec3 p) {\nreturn "...)
	b = append(b, names[0]...)
	b = append(b, "(p);\n}\n"...)
	b = append(b, "float sdSolid(vec3 p) {\nreturn "...)
	if sc.solid != nil {
		b = append(b, names[1]...)
		b = append(b, "(p);\n}\n"...)
	} else {
		b = glbuild.AppendFloat(b, '-', '.', largenum)
		b = append(b, ";\n}\n"...)
	}
	b = append(b, "int touchedWall(vec3 p) {\n"...)
	if kind != EdgeNone {
		b = append(b, `for (int i=0; i<NUM_WALLS; i++) {
if (fsWall(p, vertices[i], vertices[i+1], wallHeight) < eps) return i;
}
`...)
	}
	b = append(b, "return -1;\n}\n"...)
	b = append(b, "void applyGluing(inout vec3 pos, inout vec3 ray, int w) {\nint d = gluingVector[w];\n"...)
	b = g.appendApply(b)
	b = append(b, "}\n"...)
	b = append(b, kernelSrc...)
	_, err = buf.Write(b)
	return err
}
