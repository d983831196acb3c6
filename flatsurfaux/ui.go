//go:build !tinygo && cgo

package flatsurfaux

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/soypat/flatsurf"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"go.uber.org/zap"
)

func ui(world *flatsurf.World, cfg ViewerConfig) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	log := cfg.Logger
	window, term, err := startGLFW(cfg.Width, cfg.Height, cfg.Title)
	if err != nil {
		return err
	}
	defer term()

	// Define a quad covering the screen.
	var vao uint32
	gl.GenVertexArrays(1, &vao)
	gl.BindVertexArray(vao)
	var vbo uint32
	gl.GenBuffers(1, &vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	vertices := []float32{
		-1.0, -1.0,
		1.0, -1.0,
		-1.0, 1.0,
		-1.0, 1.0,
		1.0, -1.0,
		1.0, 1.0,
	}
	gl.BufferData(gl.ARRAY_BUFFER, 4*len(vertices), gl.Ptr(vertices), gl.STATIC_DRAW)

	surf := world.Surface()
	prog, err := glgl.CompileProgram(glgl.ShaderSource{
		Vertex:   flatsurf.VertexSource,
		Fragment: surf.Program.FragmentSource(),
	})
	if err != nil {
		return fmt.Errorf("compiling %s: %w", surf.Program.ID(), err)
	}
	var locs [5]int32
	bind := func() error {
		prog.Bind()
		for i, name := range [5]string{"iTime", "iResolution", "rayMarchCamPos", "rayMarchCamFront", "rayMarchCamUp"} {
			loc, err := prog.UniformLocation(name + "\x00")
			if err != nil {
				loc = -1 // Unused uniforms are optimized out by the driver.
			}
			locs[i] = loc
		}
		posAttrib, err := prog.AttribLocation("aPos\x00")
		if err != nil {
			return err
		}
		gl.BindVertexArray(vao)
		gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
		gl.EnableVertexAttribArray(posAttrib)
		gl.VertexAttribPointer(posAttrib, 2, gl.FLOAT, false, 0, gl.PtrOffset(0))
		return nil
	}
	err = bind()
	if err != nil {
		return err
	}

	var (
		lastMouseX     float64
		lastMouseY     float64
		firstMouseMove = true
		isMousePressed = false
		dyaw, dpitch   float32
	)
	window.SetCursorPosCallback(func(w *glfw.Window, xpos float64, ypos float64) {
		if !isMousePressed {
			return
		}
		if firstMouseMove {
			lastMouseX = xpos
			lastMouseY = ypos
			firstMouseMove = false
		}
		dyaw += float32(xpos-lastMouseX) * cfg.LookSensitivity
		dpitch -= float32(ypos-lastMouseY) * cfg.LookSensitivity // Invert y-axis.
		lastMouseX = xpos
		lastMouseY = ypos
	})
	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft {
			return
		}
		if action == glfw.Press {
			isMousePressed = true
			firstMouseMove = true
			window.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
		} else if action == glfw.Release {
			isMousePressed = false
			window.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
		}
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		step := 0
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeyN:
			step = 1
		case glfw.KeyP:
			step = -1
		}
		if step == 0 {
			return
		}
		next := cycle(cfg.Surfaces, world.Surface().Descriptor.ID, step)
		if next == nil {
			return
		}
		log.Info("surface swap requested", zap.String("id", next.ID))
		done := world.RequestSwap(next)
		go func() {
			// World logs failed compiles. Superseded requests need no report.
			err := <-done
			if err != nil && !errors.Is(err, flatsurf.ErrSuperseded) {
				log.Debug("swap not applied", zap.Error(err))
			}
		}()
	})

	ctx := cfg.Context
	previousTime := glfw.GetTime()
	for !window.ShouldClose() {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		glfw.PollEvents()
		currentTime := glfw.GetTime()
		dt := float32(currentTime - previousTime)
		previousTime = currentTime
		width, height := window.GetFramebufferSize()

		res := world.Frame(flatsurf.FrameInput{
			Forward:    keyAxis(window, glfw.KeyW, glfw.KeyS),
			Strafe:     keyAxis(window, glfw.KeyD, glfw.KeyA),
			Rise:       keyAxis(window, glfw.KeySpace, glfw.KeyLeftShift),
			Yaw:        dyaw,
			Pitch:      dpitch,
			Dt:         dt,
			Resolution: ms2.Vec{X: float32(width), Y: float32(height)},
		})
		dyaw, dpitch = 0, 0
		if res.Swapped {
			p := res.Surface.Program
			prog, err = glgl.CompileProgram(glgl.ShaderSource{
				Vertex:   flatsurf.VertexSource,
				Fragment: p.FragmentSource(),
			})
			if err != nil {
				return fmt.Errorf("compiling %s: %w", p.ID(), err)
			}
			err = bind()
			if err != nil {
				return err
			}
			window.SetTitle(cfg.Title + " - " + res.Surface.Descriptor.Name)
		}

		gl.Viewport(0, 0, int32(width), int32(height))
		gl.ClearColor(0.0, 0.0, 0.0, 1.0)
		gl.Clear(gl.COLOR_BUFFER_BIT)
		prog.Bind()
		u := res.Uniforms
		gl.Uniform1f(locs[0], u.Time)
		gl.Uniform2f(locs[1], u.Resolution.X, u.Resolution.Y)
		gl.Uniform3f(locs[2], u.CamPos.X, u.CamPos.Y, u.CamPos.Z)
		gl.Uniform3f(locs[3], u.CamFront.X, u.CamFront.Y, u.CamFront.Z)
		gl.Uniform3f(locs[4], u.CamUp.X, u.CamUp.Y, u.CamUp.Z)
		gl.BindVertexArray(vao)
		gl.DrawArrays(gl.TRIANGLES, 0, 6)
		window.SwapBuffers()
	}
	return nil
}

func keyAxis(w *glfw.Window, positive, negative glfw.Key) float32 {
	var v float32
	if w.GetKey(positive) == glfw.Press {
		v++
	}
	if w.GetKey(negative) == glfw.Press {
		v--
	}
	return v
}

func startGLFW(width, height int, title string) (window *glfw.Window, term func(), err error) {
	if err := glfw.Init(); err != nil {
		return nil, nil, fmt.Errorf("initializing GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	window, err = glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("creating GLFW window: %w", err)
	}
	window.MakeContextCurrent()
	glfw.SwapInterval(1)
	if err := gl.Init(); err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("initializing OpenGL: %w", err)
	}
	return window, glfw.Terminate, nil
}
