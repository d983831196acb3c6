// Package glsllib contains GLSL helper functions shared by the generated
// surface programs. Each helper has a Go twin in package flatsurf that
// computes the same distance on the CPU.
package glsllib

import (
	_ "embed"

	"github.com/soypat/flatsurf/glbuild"
)

//go:embed wall.glsl
var wallSrc []byte

// Wall is the SDF of a zero-thickness wall standing on the XZ segment a-b,
// spanning heights [-h, h]:
//
//	float fsWall(vec3 p, vec2 a, vec2 b, float h)
func Wall() glbuild.ShaderFunction {
	return mustFunction(wallSrc)
}

//go:embed cylinder.glsl
var cylinderSrc []byte

// Cylinder is the SDF of a vertical capped cylinder centered at the origin:
//
//	float fsCylinder(vec3 p, float r, float h)
func Cylinder() glbuild.ShaderFunction {
	return mustFunction(cylinderSrc)
}

//go:embed box.glsl
var boxSrc []byte

// Box is the SDF of an axis aligned box with half sizes b centered at the origin:
//
//	float fsBox(vec3 p, vec3 b)
func Box() glbuild.ShaderFunction {
	return mustFunction(boxSrc)
}

func mustFunction(src []byte) glbuild.ShaderFunction {
	fn, err := glbuild.MakeShaderFunction(src)
	if err != nil {
		panic(err)
	}
	return fn
}
