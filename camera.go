package flatsurf

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms1"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

// MaxPitch keeps the camera from looking straight up or down where the
// yaw becomes undefined.
const MaxPitch = math32.Pi/2 - 0.01

// CameraState is a first person camera. Yaw zero looks down -Z and positive
// yaw turns towards +X.
type CameraState struct {
	Position ms3.Vec
	Yaw      float32
	Pitch    float32
}

// Front returns the unit view direction.
func (c CameraState) Front() ms3.Vec {
	sy, cy := math32.Sincos(c.Yaw)
	sp, cp := math32.Sincos(c.Pitch)
	return ms3.Vec{X: sy * cp, Y: sp, Z: -cy * cp}
}

// Right returns the unit horizontal vector to the right of the view direction.
func (c CameraState) Right() ms3.Vec {
	sy, cy := math32.Sincos(c.Yaw)
	return ms3.Vec{X: cy, Z: sy}
}

// Up returns the unit vector completing the camera basis.
func (c CameraState) Up() ms3.Vec {
	return cross(c.Right(), c.Front())
}

// Look turns the camera by the given yaw and pitch deltas in radians.
func (c *CameraState) Look(dyaw, dpitch float32) {
	if !isFinite(dyaw) || !isFinite(dpitch) {
		return
	}
	c.Yaw = wrapAngle(c.Yaw + dyaw)
	c.Pitch = ms1.Clamp(c.Pitch+dpitch, -MaxPitch, MaxPitch)
}

// SetDirection points the camera along dir. Zero or non-finite directions are ignored.
func (c *CameraState) SetDirection(dir ms3.Vec) {
	l := ms3.Norm(dir)
	if !(l > 0) || !isFinite(l) {
		return
	}
	dir = ms3.Scale(1/l, dir)
	c.Pitch = ms1.Clamp(math32.Asin(ms1.Clamp(dir.Y, -1, 1)), -MaxPitch, MaxPitch)
	if dir.X != 0 || dir.Z != 0 {
		c.Yaw = math32.Atan2(dir.X, -dir.Z)
	}
}

// ClampHeight keeps the camera height within [minH, maxH]. The horizontal
// position is left untouched.
func (c *CameraState) ClampHeight(minH, maxH float32) {
	c.Position.Y = ms1.Clamp(c.Position.Y, minH, maxH)
}

func wrapAngle(a float32) float32 {
	return glslMod(a+math32.Pi, 2*math32.Pi) - math32.Pi
}

// Uniforms is the per frame input of a generated program.
type Uniforms struct {
	Time       float32 `json:"iTime"`
	Resolution ms2.Vec `json:"iResolution"`
	CamPos     ms3.Vec `json:"rayMarchCamPos"`
	CamFront   ms3.Vec `json:"rayMarchCamFront"`
	CamUp      ms3.Vec `json:"rayMarchCamUp"`
}

// UniformsFor returns the uniforms of camera c at time t.
func UniformsFor(c CameraState, t float32, resolution ms2.Vec) Uniforms {
	return Uniforms{
		Time:       t,
		Resolution: resolution,
		CamPos:     c.Position,
		CamFront:   c.Front(),
		CamUp:      c.Up(),
	}
}

// ViewRay returns the unit direction of the ray through the fragment at (fragX, fragY),
// in window coordinates with the origin at the bottom left pixel corner.
// It matches the ray construction of the generated kernel.
func (u Uniforms) ViewRay(fragX, fragY, fovScale float32) ms3.Vec {
	uvx := (2*fragX - u.Resolution.X) / u.Resolution.Y
	uvy := (2*fragY - u.Resolution.Y) / u.Resolution.Y
	front := ms3.Unit(u.CamFront)
	right := ms3.Unit(cross(front, u.CamUp))
	up := cross(right, front)
	ray := ms3.Add(ms3.Add(ms3.Scale(uvx, right), ms3.Scale(uvy, up)), ms3.Scale(fovScale, front))
	return ms3.Unit(ray)
}
