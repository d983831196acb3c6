package config

import "flag"

// Flags holds the command-line overrides registered on a flag set.
type Flags struct {
	config  *string
	debug   *bool
	surface *string
	width   *int
	height  *int
	addr    *string
	logFile *string
	fov     *float64
	save    *bool
}

// RegisterFlags registers the configuration overrides shared by all subcommands on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		config:  fs.String("config", "", "Path to config file"),
		debug:   fs.Bool("debug", false, "Enable debug logging"),
		surface: fs.String("surface", "", "Surface id or descriptor file"),
		width:   fs.Int("width", 0, "Window or image width"),
		height:  fs.Int("height", 0, "Window or image height"),
		addr:    fs.String("addr", "", "Session server listen address"),
		logFile: fs.String("log", "", "Log file path"),
		fov:     fs.Float64("fov", 0, "Vertical field of view in degrees"),
		save:    fs.Bool("save-config", false, "Write the effective config to -config or the user config dir"),
	}
}

// ConfigPath returns the explicit config path if provided via -config.
func (f *Flags) ConfigPath() string {
	if f == nil {
		return ""
	}
	return *f.config
}

// SaveRequested reports whether -save-config was given.
func (f *Flags) SaveRequested() bool {
	return f != nil && *f.save
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if *f.debug {
		cfg.Logging.Level = "debug"
	}
	if *f.surface != "" {
		cfg.Surface.Default = *f.surface
	}
	if *f.width > 0 {
		cfg.Window.Width = *f.width
	}
	if *f.height > 0 {
		cfg.Window.Height = *f.height
	}
	if *f.addr != "" {
		cfg.Server.Addr = *f.addr
	}
	if *f.logFile != "" {
		cfg.Logging.LogFile = *f.logFile
	}
	if *f.fov > 0 {
		cfg.Render.FOV = float32(*f.fov)
	}
}
