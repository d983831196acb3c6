package server

import (
	"github.com/soypat/flatsurf"
	"github.com/soypat/geometry/ms2"
)

// Message types exchanged over the websocket.
const (
	typeHello = "hello"
	typeFrame = "frame"
	typeSwap  = "swap"
	typeError = "error"
)

// clientMessage is any message sent by a client. Type selects which fields are used.
type clientMessage struct {
	Type    string      `json:"type"`
	Input   *frameInput `json:"input,omitempty"`
	Surface string      `json:"surface,omitempty"`
}

type frameInput struct {
	Forward    float32    `json:"forward"`
	Strafe     float32    `json:"strafe"`
	Rise       float32    `json:"rise"`
	Yaw        float32    `json:"yaw"`
	Pitch      float32    `json:"pitch"`
	Dt         float32    `json:"dt"`
	Resolution [2]float32 `json:"resolution"`
}

func (in frameInput) worldInput() flatsurf.FrameInput {
	return flatsurf.FrameInput{
		Forward:    in.Forward,
		Strafe:     in.Strafe,
		Rise:       in.Rise,
		Yaw:        in.Yaw,
		Pitch:      in.Pitch,
		Dt:         in.Dt,
		Resolution: ms2.Vec{X: in.Resolution[0], Y: in.Resolution[1]},
	}
}

type surfaceInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind"`
	Walls       int    `json:"walls"`
}

func makeSurfaceInfo(s flatsurf.Surface) surfaceInfo {
	return surfaceInfo{
		ID:          s.Descriptor.ID,
		Name:        s.Descriptor.Name,
		Description: s.Descriptor.Description,
		Kind:        s.Program.Kind().String(),
		Walls:       s.Program.NumWalls(),
	}
}

// uniforms mirrors the uniform contract of generated programs.
type uniforms struct {
	Time       float32    `json:"iTime"`
	Resolution [2]float32 `json:"iResolution"`
	CamPos     [3]float32 `json:"rayMarchCamPos"`
	CamFront   [3]float32 `json:"rayMarchCamFront"`
	CamUp      [3]float32 `json:"rayMarchCamUp"`
}

func makeUniforms(u flatsurf.Uniforms) uniforms {
	return uniforms{
		Time:       u.Time,
		Resolution: [2]float32{u.Resolution.X, u.Resolution.Y},
		CamPos:     u.CamPos.Array(),
		CamFront:   u.CamFront.Array(),
		CamUp:      u.CamUp.Array(),
	}
}

type teleport struct {
	Teleported bool       `json:"teleported"`
	Reverted   bool       `json:"reverted"`
	Edge       int        `json:"edge"`
	Kind       string     `json:"kind,omitempty"`
	Position   [3]float32 `json:"position"`
	Direction  [3]float32 `json:"direction"`
}

func makeTeleport(r flatsurf.TeleportResult) teleport {
	t := teleport{
		Teleported: r.Teleported,
		Reverted:   r.Reverted,
		Edge:       r.Edge,
		Position:   r.Position.Array(),
		Direction:  r.Direction.Array(),
	}
	if r.Edge >= 0 {
		t.Kind = r.Kind.String()
	}
	return t
}

type helloMessage struct {
	Type     string      `json:"type"`
	Surfaces []string    `json:"surfaces"`
	Surface  surfaceInfo `json:"surface"`
	Program  string      `json:"program"`
	Uniforms uniforms    `json:"uniforms"`
}

type frameMessage struct {
	Type     string   `json:"type"`
	Uniforms uniforms `json:"uniforms"`
	Teleport teleport `json:"teleport"`
	Swapped  bool     `json:"swapped,omitempty"`
	// Surface and Program are only set on the frame a swap was applied.
	Surface *surfaceInfo `json:"surface,omitempty"`
	Program string       `json:"program,omitempty"`
}

type swapMessage struct {
	Type    string `json:"type"`
	Surface string `json:"surface"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
