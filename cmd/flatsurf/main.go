// flatsurf explores flat surfaces: polygons whose walls are glued to each other.
// It compiles them to GLSL sphere tracers, renders previews and floor plans,
// serves camera sessions over websockets and opens an interactive viewer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/color"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/soypat/flatsurf"
	"github.com/soypat/flatsurf/flatsurfaux"
	"github.com/soypat/flatsurf/internal/config"
	"github.com/soypat/flatsurf/internal/logger"
	"github.com/soypat/flatsurf/internal/server"
	"github.com/soypat/flatsurf/surfaces"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "list", "ls":
		err = cmdList(args)
	case "compile":
		err = cmdCompile(args)
	case "render":
		err = cmdRender(args)
	case "floorplan":
		err = cmdFloorPlan(args)
	case "serve":
		err = cmdServe(args)
	case "view":
		err = cmdView(args)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		logger.Sync()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`flatsurf - flat surface explorer

Usage:
  flatsurf <command> [options]

Commands:
  list                 List registered surfaces
  compile [-o file]    Write the GLSL fragment shader of a surface
  render  [-o file]    Trace a preview image on the CPU
  floorplan [-o file]  Draw the polygon and its gluing
  serve                Serve surfaces and camera sessions over websockets
  view                 Open the interactive viewer

Common options:
  -config file  -surface id|file  -width n  -height n  -fov deg
  -addr host:port  -log file  -debug  -save-config

Examples:
  flatsurf compile -surface pentagon -o pentagon.frag
  flatsurf render -surface lshape -o lshape.png
  flatsurf serve -addr :8080`)
}

// env is the state shared by all subcommands once flags are parsed.
type env struct {
	cfg     *config.Config
	reg     *surfaces.Registry
	surface *flatsurf.Descriptor
}

func setup(fs *flag.FlagSet, args []string) (*env, error) {
	flags := config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, err
	}
	if flags.SaveRequested() {
		path, err := cfg.SaveFor(flags)
		if err != nil {
			return nil, fmt.Errorf("saving config: %w", err)
		}
		logger.Info("config saved", zap.String("path", path))
	}
	reg := surfaces.Default()
	for _, path := range cfg.Surface.Paths {
		if err := registerFile(reg, path); err != nil {
			return nil, err
		}
	}
	d, err := reg.Resolve(cfg.Surface.Default)
	if err != nil {
		return nil, err
	}
	if _, err := reg.Lookup(d.ID); err != nil {
		// Default given as a file path.
		if err := registerFile(reg, cfg.Surface.Default); err != nil {
			return nil, err
		}
	}
	logger.Debug("configuration loaded",
		zap.String("surface", d.ID),
		zap.Int("surfaces", len(reg.IDs())),
	)
	return &env{cfg: cfg, reg: reg, surface: d}, nil
}

func registerFile(reg *surfaces.Registry, path string) error {
	d, err := flatsurf.LoadDescriptor(path)
	if err != nil {
		return err
	}
	reg.Register(d.ID, func() (*flatsurf.Descriptor, error) {
		return flatsurf.LoadDescriptor(path)
	})
	return nil
}

func output(name string) (io.WriteCloser, error) {
	if name == "" || name == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(name)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func cmdList(args []string) error {
	e, err := setup(flag.NewFlagSet("list", flag.ExitOnError), args)
	if err != nil {
		return err
	}
	defer logger.Sync()
	for _, id := range e.reg.IDs() {
		d, err := e.reg.Lookup(id)
		if err != nil {
			logger.Warn("skipping surface", zap.String("id", id), zap.Error(err))
			continue
		}
		kind, err := d.Kind()
		if err != nil {
			logger.Warn("skipping surface", zap.String("id", id), zap.Error(err))
			continue
		}
		fmt.Printf("%-16s %-12s %2d walls  %s\n", id, kind, d.NumWalls(), d.Name)
	}
	return nil
}

func cmdCompile(args []string) error {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	out := fs.String("o", "", "Output file, stdout if empty")
	e, err := setup(fs, args)
	if err != nil {
		return err
	}
	defer logger.Sync()
	c, err := flatsurf.NewCompiler(e.cfg.KernelConfig())
	if err != nil {
		return err
	}
	prog, err := c.Compile(e.surface)
	if err != nil {
		return err
	}
	w, err := output(*out)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, prog.Source())
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	logger.Info("compiled surface",
		zap.String("id", e.surface.ID),
		zap.Stringer("kind", prog.Kind()),
		zap.Int("bytes", len(prog.Source())),
	)
	return err
}

func cmdRender(args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	out := fs.String("o", "preview.png", "Output PNG file")
	t := fs.Float64("time", 0, "Animation time in seconds")
	ss := fs.Int("ss", 1, "Supersampling factor")
	yaw := fs.Float64("yaw", 0, "Camera yaw in radians")
	e, err := setup(fs, args)
	if err != nil {
		return err
	}
	defer logger.Sync()
	cfg := flatsurfaux.PreviewConfig{
		Width:       e.cfg.Window.Width,
		Height:      e.cfg.Window.Height,
		Supersample: *ss,
		Time:        float32(*t),
		Kernel:      e.cfg.KernelConfig(),
	}
	cam := flatsurf.CameraState{Position: e.surface.InitialPosition, Yaw: float32(*yaw)}
	img, err := flatsurfaux.Preview(e.surface, cam, cfg)
	if err != nil {
		return err
	}
	logger.Info("rendered preview", zap.String("id", e.surface.ID), zap.String("file", *out))
	return flatsurfaux.WritePNGFile(*out, img)
}

func cmdFloorPlan(args []string) error {
	fs := flag.NewFlagSet("floorplan", flag.ExitOnError)
	out := fs.String("o", "floorplan.png", "Output PNG file")
	labels := fs.Bool("labels", true, "Draw edge indices")
	style := fs.String("style", "iq", "Distance colouring: iq or gradient")
	e, err := setup(fs, args)
	if err != nil {
		return err
	}
	defer logger.Sync()
	cfg := flatsurfaux.DefaultFloorPlanConfig()
	cfg.Height = e.cfg.Window.Height
	cfg.Labels = *labels
	switch *style {
	case "iq":
	case "gradient":
		cfg.Conversion = flatsurfaux.ColorConversionLinearGradient(2, color.RGBA{R: 40, G: 60, B: 120, A: 255}, color.RGBA{R: 200, G: 220, B: 255, A: 255})
	default:
		return fmt.Errorf("unknown floor plan style %q", *style)
	}
	img, err := flatsurfaux.FloorPlan(e.surface, cfg)
	if err != nil {
		return err
	}
	logger.Info("drew floor plan", zap.String("id", e.surface.ID), zap.String("file", *out))
	return flatsurfaux.WritePNGFile(*out, img)
}

func cmdServe(args []string) error {
	e, err := setup(flag.NewFlagSet("serve", flag.ExitOnError), args)
	if err != nil {
		return err
	}
	defer logger.Sync()
	srv, err := server.New(e.reg, server.Config{
		Addr:           e.cfg.Server.Addr,
		WriteTimeout:   e.cfg.Server.WriteTimeout,
		DefaultSurface: e.surface.ID,
		World:          e.cfg.WorldConfig(nil),
	}, logger.Log)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = srv.ListenAndServe(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("server stopped")
		return nil
	}
	return err
}

func cmdView(args []string) error {
	e, err := setup(flag.NewFlagSet("view", flag.ExitOnError), args)
	if err != nil {
		return err
	}
	defer logger.Sync()
	world, err := flatsurf.NewWorld(e.surface, e.cfg.WorldConfig(logger.Log))
	if err != nil {
		return err
	}
	var all []*flatsurf.Descriptor
	for _, id := range e.reg.IDs() {
		d, err := e.reg.Lookup(id)
		if err != nil {
			logger.Warn("skipping surface", zap.String("id", id), zap.Error(err))
			continue
		}
		all = append(all, d)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg := flatsurfaux.DefaultViewerConfig()
	cfg.Width = e.cfg.Window.Width
	cfg.Height = e.cfg.Window.Height
	cfg.LookSensitivity = e.cfg.Camera.LookSensitivity
	cfg.Title = "flatsurf: " + e.surface.ID
	cfg.Surfaces = all
	cfg.Context = ctx
	cfg.Logger = logger.Log
	return flatsurfaux.RunViewer(world, cfg)
}
