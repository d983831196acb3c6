package gleval

import (
	"errors"
	"fmt"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

// SDF3 implements a 3D signed distance field in vectorized
// form suitable for running on GPU.
type SDF3 interface {
	// Evaluate evaluates the signed distance field over pos positions.
	// dist and pos must be of same length.  Resulting distances are stored
	// in dist.
	//
	// userData facilitates getting data to the evaluators for use in processing, such as [VecPool].
	Evaluate(pos []ms3.Vec, dist []float32, userData any) error
	// Bounds returns the SDF's bounding box such that all of the shape is contained within.
	Bounds() ms3.Box
}

// SDF2 implements a 2D signed distance field in vectorized
// form suitable for running on GPU.
type SDF2 interface {
	// Evaluate evaluates the signed distance field over pos positions.
	// dist and pos must be of same length.  Resulting distances are stored
	// in dist.
	//
	// userData facilitates getting data to the evaluators for use in processing, such as [VecPool].
	Evaluate(pos []ms2.Vec, dist []float32, userData any) error
	// Bounds returns the SDF's bounding box such that all of the shape is contained within.
	Bounds() ms2.Box
}

var (
	errEmptyBuffers         = errors.New("empty buffers")
	errMismatchBufferLength = errors.New("position and distance buffer length mismatch")
)

// CheckBuffers returns an error if the position and distance buffers cannot be evaluated together.
func CheckBuffers[T any](pos []T, dist []float32) error {
	if len(pos) != len(dist) {
		return errMismatchBufferLength
	} else if len(pos) == 0 {
		return errEmptyBuffers
	}
	return nil
}

// tetrahedron vertices scaled by 1/sqrt(3), the same offsets used by the
// generated GLSL calcNormal so CPU and GPU normals agree.
var tetra = [4]ms3.Vec{
	{X: 0.5773, Y: -0.5773, Z: -0.5773},
	{X: -0.5773, Y: -0.5773, Z: 0.5773},
	{X: -0.5773, Y: 0.5773, Z: -0.5773},
	{X: 0.5773, Y: 0.5773, Z: 0.5773},
}

// NormalsTetrahedral computes unit normals for each position with the four-tap
// tetrahedral gradient technique. step is the offset length along each tap.
// A [VecPool] must be reachable through userData, see [GetVecPool].
func NormalsTetrahedral(s SDF3, pos []ms3.Vec, normals []ms3.Vec, step float32, userData any) error {
	if step <= 0 {
		return errors.New("invalid step")
	} else if len(pos) != len(normals) {
		return errors.New("length of position must match length of normals")
	} else if s == nil {
		return errors.New("nil SDF3")
	} else if len(pos) == 0 {
		return errEmptyBuffers
	}
	vp, err := GetVecPool(userData)
	if err != nil {
		return fmt.Errorf("VecPool required for normal calculation: %s", err)
	}
	d := vp.Float.Acquire(len(pos))
	auxPos := vp.V3.Acquire(len(pos))
	defer vp.Float.Release(d)
	defer vp.V3.Release(auxPos)
	clear(normals)
	for _, e := range tetra {
		h := ms3.Scale(step, e)
		for i, p := range pos {
			auxPos[i] = ms3.Add(p, h)
		}
		err = s.Evaluate(auxPos, d, userData)
		if err != nil {
			return err
		}
		for i := range normals {
			normals[i] = ms3.Add(normals[i], ms3.Scale(d[i], e))
		}
	}
	for i := range normals {
		if normals[i] != (ms3.Vec{}) {
			normals[i] = ms3.Unit(normals[i])
		}
	}
	return nil
}
