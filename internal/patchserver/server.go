// Package patchserver is a small development server that accepts patch
// submissions the way the production patch service does: it validates the
// payload against a catalog, stores it, and answers with a new version id.
package patchserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/patchmatrix/internal/catalog"
	"github.com/kingrea/patchmatrix/internal/submission"
)

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
	StatusStopped  ServerStatus = "stopped"
)

// Logger records server diagnostics. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

// Version is one accepted submission.
type Version struct {
	ID      string             `json:"id"`
	PatchID string             `json:"patch_id"`
	Payload submission.Payload `json:"payload"`
	Created time.Time          `json:"created"`
}

// Server accepts POST /patch/{id} and serves GET /version/{id}.
type Server struct {
	settings  Settings
	catalog   catalog.Catalog
	logger    Logger
	clock     func() time.Time
	versionID func() string
	store     Store

	mu     sync.RWMutex
	status ServerStatus
	live   *listening
}

// listening is a started server: its listener, the http.Server on it and a
// channel closed once Serve returns.
type listening struct {
	ln      net.Listener
	http    *http.Server
	started time.Time
	done    chan struct{}
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithVersionIDs overrides version id generation.
func WithVersionIDs(next func() string) Option {
	return func(s *Server) {
		if next != nil {
			s.versionID = next
		}
	}
}

// WithStore replaces the default in-memory version store.
func WithStore(store Store) Option {
	return func(s *Server) {
		if store != nil {
			s.store = store
		}
	}
}

// NewServer prepares a server validating submissions against cat.
func NewServer(settings Settings, cat catalog.Catalog, opts ...Option) *Server {
	settings.normalize()
	s := &Server{
		settings:  settings,
		catalog:   cat,
		logger:    nopLogger{},
		clock:     func() time.Time { return time.Now().UTC() },
		versionID: uuid.NewString,
		status:    StatusStarting,
		store:     NewMemoryStore(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the route table. Start uses it; tests may mount it on
// httptest directly.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /patch/{id}", s.handleSubmit)
	mux.HandleFunc("GET /version/{id}", s.handleVersion)
	return mux
}

// Start listens on the configured address and serves in the background.
// Requests inherit ctx.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("patchserver: server is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live != nil {
		return fmt.Errorf("patchserver: server already started")
	}
	addr := s.settings.Address()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("patchserver: listen %s: %w", addr, err)
	}
	s.live = s.serve(ctx, ln)
	s.status = StatusReady
	s.logger.Printf("patchserver: patch %s on %s", s.catalog.Patch.ID, ln.Addr())
	return nil
}

func (s *Server) serve(ctx context.Context, ln net.Listener) *listening {
	if ctx == nil {
		ctx = context.Background()
	}
	live := &listening{
		ln:      ln,
		started: s.clock(),
		done:    make(chan struct{}),
		http: &http.Server{
			Handler:      s.Handler(),
			ReadTimeout:  s.settings.ReadTimeout,
			WriteTimeout: s.settings.WriteTimeout,
			IdleTimeout:  s.settings.IdleTimeout,
			BaseContext:  func(net.Listener) context.Context { return ctx },
		},
	}
	go func() {
		defer close(live.done)
		if err := live.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("patchserver: serve: %v", err)
		}
	}()
	return live
}

// Shutdown closes the listener and waits for in-flight submissions until ctx
// expires. The lock is not held while draining so /health keeps answering.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	live := s.live
	if live == nil {
		s.mu.Unlock()
		return nil
	}
	s.status = StatusDraining
	s.mu.Unlock()

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := live.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("patchserver: shutdown: %w", err)
	}
	<-live.done

	s.mu.Lock()
	s.live = nil
	s.status = StatusStopped
	s.mu.Unlock()
	return nil
}

// Addr is the bound address while the server runs, "" otherwise.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.live == nil {
		return ""
	}
	return s.live.ln.Addr().String()
}

// BaseURL returns the HTTP base URL (scheme + host:port) for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return s.settings.URL()
	}
	return "http://" + addr
}

// Status reports the server's lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Versions returns the accepted submissions, oldest first. Store errors are
// logged and yield nil.
func (s *Server) Versions() []Version {
	versions, err := s.store.List()
	if err != nil {
		s.logger.Printf("patchserver: list versions: %v", err)
		return nil
	}
	return versions
}

type healthResponse struct {
	Status        string `json:"status"`
	PatchID       string `json:"patch_id"`
	Versions      int    `json:"versions"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	resp := healthResponse{
		Status:  string(s.status),
		PatchID: s.catalog.Patch.ID,
	}
	if s.live != nil {
		resp.UptimeSeconds = int64(s.clock().Sub(s.live.started).Seconds())
	}
	s.mu.RUnlock()
	resp.Versions = len(s.Versions())
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	patchID := r.PathValue("id")
	if patchID != s.catalog.Patch.ID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("patch %q not found", patchID)})
		return
	}
	reader := http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload exceeds limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unable to read body"})
		return
	}
	if err := r.Context().Err(); err != nil {
		s.logger.Printf("patchserver: patch %s request abandoned: %v", patchID, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "request cancelled"})
		return
	}
	var payload submission.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if err := s.validate(payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	// Regroup so duplicate cells collapse and task lists come out sorted.
	payload = submission.FromPairs(submission.Pairs(payload))

	version := Version{ID: s.versionID(), PatchID: patchID, Payload: payload, Created: s.clock()}
	if err := s.store.Put(version); err != nil {
		s.logger.Printf("patchserver: store version %s: %v", version.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "unable to store version"})
		return
	}
	s.logger.Printf("patchserver: patch %s accepted as version %s (%d cells)", patchID, version.ID, payload.Len())
	writeJSON(w, http.StatusOK, submission.Result{Version: version.ID})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	version, ok, err := s.store.Get(id)
	if err != nil {
		s.logger.Printf("patchserver: load version %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "unable to load version"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("version %q not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, version)
}

func (s *Server) validate(payload submission.Payload) error {
	if payload.Empty() {
		return errors.New("patch must include at least one task")
	}
	for _, vt := range payload {
		def, ok := s.catalog.Variant(vt.Variant)
		if !ok {
			return fmt.Errorf("unknown variant %q", vt.Variant)
		}
		known := make(map[string]struct{}, len(def.Tasks))
		for _, t := range def.Tasks {
			known[t.Name] = struct{}{}
		}
		for _, task := range vt.Tasks {
			if _, ok := known[task]; !ok {
				return fmt.Errorf("variant %q has no task %q", vt.Variant, task)
			}
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
