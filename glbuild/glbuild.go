package glbuild

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

const VersionStr = "#version 430\n"

// Shader stores information for automatically generating SDF shader functions
// that are part of a larger generated GLSL program.
type Shader interface {
	// AppendShaderName appends the name of the GL shader function
	// to the buffer and returns the result. It should be unique to that shader.
	AppendShaderName(b []byte) []byte
	// AppendShaderBody appends the body of the shader function to the
	// buffer and returns the result.
	AppendShaderBody(b []byte) []byte
	// AppendShaderFunctions appends helper functions the body calls.
	// Identical functions shared by several shaders are written once.
	AppendShaderFunctions(fns []ShaderFunction) []ShaderFunction
}

// Shader3D can create SDF shader source code for an arbitrary 3D shape.
type Shader3D interface {
	Shader
	// ForEachChild iterates over the Shader3D's direct Shader3D children.
	// Primitives have none, a union has one per operand.
	ForEachChild(userData any, fn func(userData any, s *Shader3D) error) error
	// Bounds returns the Shader3D's bounding box where the SDF is negative.
	Bounds() ms3.Box
}

// ShaderFunction is a GLSL helper function definition a [Shader] depends on.
type ShaderFunction struct {
	name   []byte
	source []byte
}

// MakeShaderFunction parses a GLSL function definition and returns it as a [ShaderFunction].
// The definition must start with the return type followed by the function name.
func MakeShaderFunction(shaderDef []byte) (sf ShaderFunction, err error) {
	shaderDef = bytes.TrimSpace(shaderDef)
	fnNameEnd := bytes.IndexByte(shaderDef, '(')
	fnNameStart := bytes.IndexByte(shaderDef, ' ')
	if fnNameEnd < 0 || fnNameStart < 0 || fnNameStart > fnNameEnd {
		return ShaderFunction{}, errors.New("unable to parse function name")
	}
	name := bytes.TrimSpace(shaderDef[fnNameStart:fnNameEnd])
	if len(name) == 0 {
		return ShaderFunction{}, errors.New("empty function name")
	}
	return ShaderFunction{name: name, source: shaderDef}, nil
}

// Name returns the function's GLSL identifier.
func (sf ShaderFunction) Name() string { return string(sf.name) }

// Source returns the full function definition.
func (sf ShaderFunction) Source() []byte { return sf.source }

// Programmer implements shader generation logic for Shader type.
type Programmer struct {
	scratchNodes []Shader
	scratch      []byte
	fnScratch    []ShaderFunction
	// names maps shader names to body hashes for checking duplicates.
	names map[uint64]uint64
}

// NewDefaultProgrammer returns a Programmer with reasonable default parameters.
func NewDefaultProgrammer() *Programmer {
	return &Programmer{
		scratchNodes: make([]Shader, 64),
		scratch:      make([]byte, 1024), // Max length of shader token is around 1024..1060 characters.
		names:        make(map[uint64]uint64),
	}
}

// WriteSDFDecl writes the helper functions and SDF shader function declarations
// of the tree rooted at s and returns the top-level SDF function name.
func (p *Programmer) WriteSDFDecl(w io.Writer, s Shader3D) (baseName string, n int, err error) {
	baseName, nodes, err := ParseAppendNodes(p.scratchNodes[:0], s)
	if err != nil {
		return "", 0, err
	}
	n, err = p.writeShaders(w, nodes)
	if err != nil {
		return "", n, err
	}
	return baseName, n, nil
}

// WriteSDFDecls writes several SDF trees in a single pass so that shaders
// shared between the trees are declared once. The returned names are in the order of roots.
func (p *Programmer) WriteSDFDecls(w io.Writer, roots ...Shader3D) (baseNames []string, n int, err error) {
	nodes := p.scratchNodes[:0]
	for _, root := range roots {
		var name string
		name, nodes, err = ParseAppendNodes(nodes, root)
		if err != nil {
			return nil, 0, err
		}
		baseNames = append(baseNames, name)
	}
	n, err = p.writeShaders(w, nodes)
	return baseNames, n, err
}

func (p *Programmer) writeShaders(w io.Writer, nodes []Shader) (n int, err error) {
	clear(p.names)
	p.scratch = p.scratch[:0]
	p.fnScratch = p.fnScratch[:0]
	fnIdx := 0
	for i := len(nodes) - 1; i >= 0; i-- {
		// Start by writing all helper functions.
		node := nodes[i]
		p.fnScratch = node.AppendShaderFunctions(p.fnScratch)
		newFns := p.fnScratch[fnIdx:]
	FNWRITE:
		for _, fn := range newFns {
			nameHash := hash(fn.name, 0)
			if _, conflict := p.names[nameHash]; conflict {
				for _, old := range p.fnScratch[:fnIdx] {
					if nameHash == hash(old.name, 0) && bytes.Equal(fn.source, old.source) {
						continue FNWRITE // Identical function already written.
					}
				}
				return n, fmt.Errorf("%T has helper function with conflicting name %q", node, fn.name)
			}
			p.names[nameHash] = hash(fn.source, nameHash)
			p.scratch = append(p.scratch, fn.source...)
			p.scratch = append(p.scratch, '\n')
		}
		fnIdx = len(p.fnScratch)
	}
	if len(p.scratch) > 0 {
		ngot, err := w.Write(p.scratch)
		n += ngot
		if err != nil {
			return n, err
		}
	}

	for i := len(nodes) - 1; i >= 0; i-- {
		node := nodes[i]
		var name, body []byte
		p.scratch, name, body = AppendShaderSource(p.scratch[:0], node)
		nameHash := hash(name, 0)
		bodyHash := hash(body, nameHash) // Body hash mixes name as well.
		gotBodyHash, nameConflict := p.names[nameHash]
		if nameConflict {
			if bodyHash == gotBodyHash {
				continue // Shader already written and is identical, skip.
			}
			return n, fmt.Errorf("duplicate %T shader name %q with distinct body:\n%s", node, name, body)
		}
		p.names[nameHash] = bodyHash
		ngot, err := w.Write(p.scratch)
		n += ngot
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// ParseAppendNodes parses the shader object tree and appends all nodes in breadth first order
// to the dst Shader argument buffer and returns the result.
func ParseAppendNodes(dst []Shader, root Shader3D) (baseName string, nodes []Shader, err error) {
	if root == nil {
		return "", nil, errors.New("nil shader object")
	}
	baseName = string(root.AppendShaderName([]byte{}))
	if baseName == "" {
		return "", nil, errors.New("empty shader name")
	}
	dst, err = AppendAllNodes(dst, root)
	if err != nil {
		return "", nil, err
	}
	return baseName, dst, nil
}

// AppendShaderSource appends the GL code of a single shader to the dst byte buffer.
// name and body byte slices pointing to the result buffer are also returned for convenience.
func AppendShaderSource(dst []byte, s Shader) (result, name, body []byte) {
	dst = append(dst, "float "...)
	nameStart := len(dst)
	dst = s.AppendShaderName(dst)
	nameEnd := len(dst)
	dst = append(dst, "(vec3 p){\n"...)
	bodyStart := len(dst)
	dst = s.AppendShaderBody(dst)
	bodyEnd := len(dst)
	dst = append(dst, "\n}\n"...)
	return dst, dst[nameStart:nameEnd], dst[bodyStart:bodyEnd]
}

// AppendAllNodes BFS iterates over all of root's descendants and appends all nodes
// found to dst.
//
// To generate shaders one must iterate over nodes in reverse order to ensure
// the first iterated nodes are the nodes with no dependencies on other nodes.
func AppendAllNodes(dst []Shader, root Shader3D) ([]Shader, error) {
	var userData any
	children := []Shader3D{root}
	nextChild := 0
	nilChild := errors.New("got nil child in AppendAllNodes")
	for len(children[nextChild:]) > 0 {
		newChildren := children[nextChild:]
		for _, obj := range newChildren {
			nextChild++
			err := obj.ForEachChild(userData, func(userData any, s *Shader3D) error {
				if s == nil || *s == nil {
					return nilChild
				}
				children = append(children, *s)
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}
	for _, c := range children {
		dst = append(dst, c)
	}
	return dst, nil
}

// FormatShader returns a compact description of the shader tree such as "union(wallSet,sphere)".
func FormatShader(s Shader3D) string {
	if s == nil {
		return "<nil>"
	}
	tp := reflect.TypeOf(s)
	if tp.Kind() == reflect.Pointer {
		tp = tp.Elem()
	}
	var children []string
	s.ForEachChild(nil, func(userData any, c *Shader3D) error {
		children = append(children, FormatShader(*c))
		return nil
	})
	if len(children) == 0 {
		return tp.Name()
	}
	b := []byte(tp.Name())
	b = append(b, '(')
	for i, c := range children {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, c...)
	}
	b = append(b, ')')
	return string(b)
}

func AppendDefineDecl(b []byte, aliasToDefine, aliasReplace string) []byte {
	b = append(b, "#define "...)
	b = append(b, aliasToDefine...)
	b = append(b, ' ')
	b = append(b, aliasReplace...)
	b = append(b, '\n')
	return b
}

func AppendDistanceDecl(b []byte, floatVarname, sdfPositionArgInput string, s Shader) []byte {
	b = append(b, "float "...)
	b = append(b, floatVarname...)
	b = append(b, '=')
	b = s.AppendShaderName(b)
	b = append(b, '(')
	b = append(b, sdfPositionArgInput...)
	b = append(b, ");\n"...)
	return b
}

func AppendVec3Decl(b []byte, vec3Varname string, v ms3.Vec) []byte {
	b = append(b, "vec3 "...)
	b = append(b, vec3Varname...)
	b = append(b, "=vec3("...)
	arr := v.Array()
	b = AppendFloats(b, ',', '-', '.', arr[:]...)
	b = append(b, ')', ';', '\n')
	return b
}

func AppendFloatDecl(b []byte, floatVarname string, v float32) []byte {
	b = append(b, "float "...)
	b = append(b, floatVarname...)
	b = append(b, '=')
	b = AppendFloat(b, '-', '.', v)
	b = append(b, ';', '\n')
	return b
}

// AppendMat2 appends a GLSL mat2 constructor for the row-major matrix
//
//	| m[0] m[1] |
//	| m[2] m[3] |
//
// so that `mat2 * vec2` in GLSL computes the same product as the row-major host matrix.
func AppendMat2(b []byte, m [4]float32) []byte {
	b = append(b, "mat2("...)
	b = appendMatArgs(b, 2, 2, m[:])
	b = append(b, ')')
	return b
}

// appendMatArgs appends the arguments of a GLSL matrix constructor in column-major order
// as per OpenGL standard from a row-major array.
func appendMatArgs(b []byte, row, col int, rowMajor []float32) []byte {
	for j := 0; j < col; j++ {
		for i := 0; i < row; i++ {
			b = AppendFloat(b, '-', '.', rowMajor[i*col+j])
			last := i == row-1 && j == col-1
			if !last {
				b = append(b, ',')
			}
		}
	}
	return b
}

const decimalDigits = 9

// AppendFloat appends v formatted with enough decimal digits to survive
// float32 round trips and trims trailing zeroes. neg and decimal replace
// the minus sign and decimal point so the result can be used in identifiers.
func AppendFloat(b []byte, neg, decimal byte, v float32) []byte {
	if v == 0 {
		v = 0 // Negative zero prints as -0.
	}
	start := len(b)
	b = strconv.AppendFloat(b, float64(v), 'f', decimalDigits, 32)
	idx := bytes.IndexByte(b[start:], '.')
	if decimal != '.' && idx >= 0 {
		b[start+idx] = decimal
	}
	if b[start] == '-' {
		b[start] = neg
	}
	// Finally trim zeroes.
	end := len(b)
	for i := len(b) - 1; idx >= 0 && i > idx+start && b[i] == '0'; i-- {
		end--
	}
	return b[:end]
}

func AppendFloats(b []byte, sep, neg, decimal byte, s ...float32) []byte {
	for i, v := range s {
		b = AppendFloat(b, neg, decimal, v)
		if sep != 0 && i != len(s)-1 {
			b = append(b, sep)
		}
	}
	return b
}

const maxLineLim = 500

func AppendIntSliceDecl(b []byte, intSliceVarname string, ints []int) []byte {
	return AppendGenericSliceDecl(b, "int", intSliceVarname, len(ints), func(b []byte, i int) []byte {
		return strconv.AppendInt(b, int64(ints[i]), 10)
	})
}

func AppendVec2SliceDecl(b []byte, vec2Varname string, vecs []ms2.Vec) []byte {
	return AppendGenericSliceDecl(b, "vec2", vec2Varname, len(vecs), func(b []byte, i int) []byte {
		v := vecs[i]
		b = append(b, "vec2("...)
		b = AppendFloats(b, ',', '-', '.', v.X, v.Y)
		b = append(b, ')')
		return b
	})
}

func AppendVec3SliceDecl(b []byte, vec3Varname string, vecs []ms3.Vec) []byte {
	return AppendGenericSliceDecl(b, "vec3", vec3Varname, len(vecs), func(b []byte, i int) []byte {
		v := vecs[i]
		b = append(b, "vec3("...)
		b = AppendFloats(b, ',', '-', '.', v.X, v.Y, v.Z)
		b = append(b, ')')
		return b
	})
}

// AppendMat2SliceDecl appends a mat2 array declaration from row-major matrices. See [AppendMat2].
func AppendMat2SliceDecl(b []byte, mat2Varname string, mats [][4]float32) []byte {
	return AppendGenericSliceDecl(b, "mat2", mat2Varname, len(mats), func(b []byte, i int) []byte {
		return AppendMat2(b, mats[i])
	})
}

// AppendConst prefixes a declaration appended by fn with the GLSL const qualifier.
//
//	b = glbuild.AppendConst(b, func(b []byte) []byte { return glbuild.AppendIntSliceDecl(b, "gluing", ints) })
func AppendConst(b []byte, fn func(b []byte) []byte) []byte {
	b = append(b, "const "...)
	return fn(b)
}

func AppendGenericSliceDecl(b []byte, typename, varname string, nelem int, appendElement func(b []byte, i int) []byte) []byte {
	lineStart := len(b)
	b = appendStartSliceDecl(b, typename, varname, nelem)
	for i := 0; i < nelem; i++ {
		last := i == nelem-1
		b = appendElement(b, i)
		if !last {
			b = append(b, ',')
			lineLen := len(b) - lineStart
			if lineLen > maxLineLim {
				b = append(b, '\n') // Break up line for VERY long polygon vertex lists.
				lineStart = len(b)
			}
		}
	}
	b = append(b, ");\n"...)
	return b
}

func appendStartSliceDecl(b []byte, typeName, varName string, length int) []byte {
	l := int64(length)
	typeStart := len(b)
	b = append(b, typeName...)
	b = append(b, "["...)
	b = strconv.AppendInt(b, l, 10)
	b = append(b, ']')
	typeEnd := len(b)
	b = append(b, ' ')
	b = append(b, varName...)
	b = append(b, '=')
	b = append(b, b[typeStart:typeEnd]...) // Reuse typename appended earlier.
	b = append(b, '(')
	return b
}

// Hash returns a 64 bit hash of b mixed with in. It is used to derive
// stable shader names and cache keys from generated content.
func Hash(b []byte, in uint64) uint64 { return hash(b, in) }

func hash(b []byte, in uint64) uint64 {
	x := in
	for len(b) >= 8 {
		x ^= binary.LittleEndian.Uint64(b)
		x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
		x = (x ^ (x >> 27)) * 0x94d049bb133111eb
		x ^= x >> 31
		b = b[8:]
	}
	if len(b) > 0 {
		var buf [8]byte
		copy(buf[:], b)
		x ^= binary.LittleEndian.Uint64(buf[:])
		x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
		x = (x ^ (x >> 27)) * 0x94d049bb133111eb
		x ^= x >> 31
	}
	return x
}
