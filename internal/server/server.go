package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"trawl/internal/checkpoint"
	"trawl/internal/logging"
)

// Options configures a Server.
type Options struct {
	Bind      string
	OutputDir string
	// Store backs the read-only session listing. Optional.
	Store checkpoint.Store
}

// Server serves the output directory over HTTP together with a read-only
// view of session checkpoints.
type Server struct {
	bind      string
	outputDir string
	store     checkpoint.Store
	logger    *slog.Logger

	listener net.Listener
	server   *http.Server
}

// SessionView is the JSON form of a checkpoint summary.
type SessionView struct {
	Session   string    `json:"session"`
	Seeds     []string  `json:"seeds"`
	Processed int       `json:"processed"`
	Accepted  int       `json:"accepted"`
	Pending   int       `json:"pending"`
	Complete  bool      `json:"complete"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionListResponse is returned by GET /api/sessions.
type SessionListResponse struct {
	Backend  string        `json:"backend"`
	Sessions []SessionView `json:"sessions"`
}

// New validates opts and builds a Server. Nothing listens until Start.
func New(opts Options, logger *slog.Logger) (*Server, error) {
	bind := strings.TrimSpace(opts.Bind)
	if bind == "" {
		return nil, errors.New("server bind address is required")
	}
	info, err := os.Stat(opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("output directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("output directory %s is not a directory", opts.OutputDir)
	}
	s := &Server{
		bind:      bind,
		outputDir: opts.OutputDir,
		store:     opts.Store,
		logger:    logging.NewComponentLogger(logger, "server"),
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/files/", http.StatusFound)
	})
	r.Route("/api/sessions", func(r chi.Router) {
		r.Get("/", s.handleSessions)
		r.Get("/{session}", s.handleSession)
	})

	files := http.StripPrefix("/files", http.FileServer(noDotFiles{http.Dir(s.outputDir)}))
	r.Handle("/files", http.RedirectHandler("/files/", http.StatusMovedPermanently))
	r.Handle("/files/*", files)
	return r
}

// Start listens on the bind address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("server listen: %w", err)
	}
	s.listener = listener

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("serving output directory",
		logging.String("address", listener.Addr().String()),
		logging.String("output_dir", s.outputDir),
	)
	return nil
}

// Serve blocks until the server is shut down.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("server not started")
	}
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Addr reports the listening address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeJSON(w, http.StatusOK, SessionListResponse{Sessions: []SessionView{}})
		return
	}
	summaries, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]SessionView, 0, len(summaries))
	for _, summary := range summaries {
		views = append(views, viewOf(summary))
	}
	s.writeJSON(w, http.StatusOK, SessionListResponse{Backend: s.store.Backend(), Sessions: views})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "session")
	if s.store == nil || checkpoint.SafeName(name) == "" {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	cp, err := s.store.Load(r.Context(), name)
	if errors.Is(err, checkpoint.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, viewOf(cp.Summarize()))
}

func viewOf(summary checkpoint.Summary) SessionView {
	seeds := summary.Seeds
	if seeds == nil {
		seeds = []string{}
	}
	return SessionView{
		Session:   summary.Session,
		Seeds:     seeds,
		Processed: summary.Processed,
		Accepted:  summary.Accepted,
		Pending:   summary.Frontier,
		Complete:  summary.Complete,
		StartedAt: summary.StartedAt,
		UpdatedAt: summary.UpdatedAt,
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("elapsed", time.Since(start)),
			logging.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// noDotFiles hides lock files, partial downloads, and other dot entries.
type noDotFiles struct {
	fs http.FileSystem
}

func (n noDotFiles) Open(name string) (http.File, error) {
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") {
			return nil, os.ErrNotExist
		}
	}
	if strings.HasSuffix(name, ".part") {
		return nil, os.ErrNotExist
	}
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	return hiddenDirFile{f}, nil
}

// hiddenDirFile filters dot entries out of directory listings.
type hiddenDirFile struct {
	http.File
}

func (f hiddenDirFile) Readdir(count int) ([]os.FileInfo, error) {
	entries, err := f.File.Readdir(count)
	visible := entries[:0]
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") || strings.HasSuffix(entry.Name(), ".part") {
			continue
		}
		visible = append(visible, entry)
	}
	return visible, err
}
