package server

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soypat/flatsurf"
	"github.com/soypat/geometry/ms2"
	"go.uber.org/zap"
)

// session is one websocket client. Only run calls Frame on the world;
// writes may come from swap watchers too and are serialized by wmu.
type session struct {
	srv   *Server
	conn  *websocket.Conn
	world *flatsurf.World
	log   *zap.Logger
	done  chan struct{}

	wmu sync.Mutex
}

func (ss *session) send(msg any) error {
	ss.wmu.Lock()
	defer ss.wmu.Unlock()
	if wt := ss.srv.cfg.WriteTimeout; wt > 0 {
		ss.conn.SetWriteDeadline(time.Now().Add(wt))
	}
	return ss.conn.WriteJSON(msg)
}

func (ss *session) run() {
	surf := ss.world.Surface()
	cam := ss.world.Camera()
	err := ss.send(helloMessage{
		Type:     typeHello,
		Surfaces: ss.srv.reg.IDs(),
		Surface:  makeSurfaceInfo(surf),
		Program:  surf.Program.Source(),
		Uniforms: makeUniforms(flatsurf.UniformsFor(cam, ss.world.Time(), ms2.Vec{})),
	})
	if err != nil {
		ss.log.Warn("sending hello", zap.Error(err))
		return
	}
	for {
		var msg clientMessage
		err := ss.conn.ReadJSON(&msg)
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ss.log.Debug("read failed", zap.Error(err))
			}
			return
		}
		switch msg.Type {
		case typeFrame:
			err = ss.frame(msg.Input)
		case typeSwap:
			err = ss.swap(msg.Surface)
		default:
			err = ss.send(errorMessage{Type: typeError, Error: "unknown message type " + msg.Type})
		}
		if err != nil {
			ss.log.Warn("write failed", zap.Error(err))
			return
		}
	}
}

func (ss *session) frame(in *frameInput) error {
	var input flatsurf.FrameInput
	if in != nil {
		input = in.worldInput()
	}
	res := ss.world.Frame(input)
	msg := frameMessage{
		Type:     typeFrame,
		Uniforms: makeUniforms(res.Uniforms),
		Teleport: makeTeleport(res.Teleport),
		Swapped:  res.Swapped,
	}
	if res.Swapped {
		info := makeSurfaceInfo(res.Surface)
		msg.Surface = &info
		msg.Program = res.Surface.Program.Source()
	}
	return ss.send(msg)
}

func (ss *session) swap(id string) error {
	d, err := ss.srv.reg.Lookup(id)
	if err != nil {
		return ss.send(swapMessage{Type: typeSwap, Surface: id, Status: "failed", Error: err.Error()})
	}
	done := ss.world.RequestSwap(d)
	go func() {
		var err error
		select {
		case err = <-done:
		case <-ss.done:
			return
		}
		if err == nil || errors.Is(err, flatsurf.ErrSuperseded) {
			// Applied swaps are reported by the frame that applies them.
			return
		}
		ss.send(swapMessage{Type: typeSwap, Surface: id, Status: "failed", Error: err.Error()})
	}()
	return ss.send(swapMessage{Type: typeSwap, Surface: id, Status: "pending"})
}
