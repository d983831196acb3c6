// Package server exposes flat surfaces over HTTP and streams per client
// camera sessions over websockets.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soypat/flatsurf"
	"github.com/soypat/flatsurf/flatsurfaux"
	"github.com/soypat/flatsurf/surfaces"
	"go.uber.org/zap"
)

// Config configures a [Server].
type Config struct {
	Addr         string
	WriteTimeout time.Duration
	// DefaultSurface is the surface new sessions start on when the client
	// does not pick one.
	DefaultSurface string
	World          flatsurf.WorldConfig
}

// Server serves the surfaces of a registry. Every websocket connection owns
// an independent [flatsurf.World].
type Server struct {
	cfg      Config
	reg      *surfaces.Registry
	log      *zap.Logger
	upgrader websocket.Upgrader
	// compiler serves shader requests and caches programs across them.
	compiler *flatsurf.Compiler

	mu       sync.RWMutex
	sessions map[*session]struct{}
}

// New returns a server for reg. The default surface must exist in reg.
func New(reg *surfaces.Registry, cfg Config, log *zap.Logger) (*Server, error) {
	if reg == nil {
		return nil, errors.New("nil surface registry")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.DefaultSurface == "" {
		d, err := reg.First()
		if err != nil {
			return nil, err
		}
		cfg.DefaultSurface = d.ID
	} else if _, err := reg.Lookup(cfg.DefaultSurface); err != nil {
		return nil, err
	}
	if cfg.World.Kernel == (flatsurf.KernelConfig{}) {
		cfg.World.Kernel = flatsurf.DefaultKernelConfig()
	}
	compiler, err := flatsurf.NewCompiler(cfg.World.Kernel)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg: cfg,
		reg: reg,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1 << 14,
			// Sessions are read only views of local surfaces.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		compiler: compiler,
		sessions: make(map[*session]struct{}),
	}, nil
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /surfaces", s.handleList)
	mux.HandleFunc("GET /surfaces/{id}/shader", s.handleShader)
	mux.HandleFunc("GET /surfaces/{id}/floorplan.png", s.handleFloorPlan)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Sessions returns the number of open websocket sessions.
func (s *Server) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ListenAndServe serves on the configured address until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("serving surfaces", zap.String("addr", s.cfg.Addr))
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.closeSessions()
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ss := range s.sessions {
		ss.conn.Close()
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		ID   string `json:"id"`
		Name string `json:"name,omitempty"`
		Kind string `json:"kind"`
	}
	ids := s.reg.IDs()
	list := make([]entry, 0, len(ids))
	for _, id := range ids {
		d, err := s.reg.Lookup(id)
		if err != nil {
			s.log.Warn("skipping surface", zap.String("id", id), zap.Error(err))
			continue
		}
		kind, err := d.Kind()
		if err != nil {
			continue
		}
		list = append(list, entry{ID: id, Name: d.Name, Kind: kind.String()})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*flatsurf.Descriptor, bool) {
	d, err := s.reg.Lookup(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return d, true
}

// program returns the compiled program of d from the shared compiler.
func (s *Server) program(d *flatsurf.Descriptor) (*flatsurf.Program, error) {
	return s.compiler.Compile(d)
}

func (s *Server) handleShader(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookup(w, r)
	if !ok {
		return
	}
	prog, err := s.program(d)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(prog.Source()))
}

func (s *Server) handleFloorPlan(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookup(w, r)
	if !ok {
		return
	}
	cfg := flatsurfaux.DefaultFloorPlanConfig()
	cfg.Height = 256
	img, err := flatsurfaux.FloorPlan(d, cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := flatsurfaux.WritePNG(w, img); err != nil {
		s.log.Warn("writing floor plan", zap.String("id", d.ID), zap.Error(err))
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("surface")
	if id == "" {
		id = s.cfg.DefaultSurface
	}
	d, err := s.reg.Lookup(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	log := s.log.With(zap.String("remote", r.RemoteAddr))
	wcfg := s.cfg.World
	wcfg.Logger = log
	world, err := flatsurf.NewWorld(d, wcfg)
	if err != nil {
		log.Error("creating world", zap.String("surface", id), zap.Error(err))
		conn.WriteJSON(errorMessage{Type: typeError, Error: err.Error()})
		conn.Close()
		return
	}
	ss := &session{
		srv:   s,
		conn:  conn,
		world: world,
		log:   log,
		done:  make(chan struct{}),
	}
	s.mu.Lock()
	s.sessions[ss] = struct{}{}
	n := len(s.sessions)
	s.mu.Unlock()
	log.Info("session opened", zap.String("surface", id), zap.Int("sessions", n))

	defer func() {
		close(ss.done)
		s.mu.Lock()
		delete(s.sessions, ss)
		s.mu.Unlock()
		conn.Close()
		log.Info("session closed")
	}()
	ss.run()
}
