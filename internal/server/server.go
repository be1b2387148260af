// Package server exposes captures, flattening and URL translation over HTTP,
// with live request logs streamed over websockets.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/pders01/repour/internal/config"
	"github.com/pders01/repour/internal/git"
	"github.com/pders01/repour/internal/logging"
	"github.com/pders01/repour/internal/models"
	"github.com/pders01/repour/internal/schema"
	"github.com/pders01/repour/internal/scm"
	"github.com/pders01/repour/internal/urltranslate"
)

// CallbackHeader carries the live log channel of a request
const CallbackHeader = "X-Callback-Id"

const (
	shutdownTimeout = 10 * time.Second
	pingInterval    = 10 * time.Second
	maxBodyBytes    = 1 << 20
)

// Server handles the HTTP API
type Server struct {
	cfg        *config.Config
	logger     *log.Logger
	out        io.Writer
	service    *scm.Service
	translator *urltranslate.Translator
	schemas    *schema.Registry
	hub        *Hub
	upgrader   websocket.Upgrader
}

// New creates a Server. Request logs go to out and to the live log
// subscribers of the request's callback id.
func New(cfg *config.Config, logger *log.Logger, out io.Writer) *Server {
	return &Server{
		cfg:        cfg,
		logger:     logger,
		out:        out,
		service:    scm.NewService(cfg, logger),
		translator: urltranslate.New(cfg),
		schemas:    schema.Default(),
		hub:        NewHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Hub returns the live log hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routes of the API
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /capture", s.handleCapture)
	mux.HandleFunc("POST /flatten", s.handleFlatten)
	mux.HandleFunc("POST /git-external-to-internal", s.handleTranslate)
	mux.HandleFunc("GET /ws/{callback_id}", s.handleSocket)
	mux.HandleFunc("GET /schema", s.handleSchemaList)
	mux.HandleFunc("GET /schema/{name}", s.handleSchema)
	return mux
}

// Run serves on the configured address until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server on %s failed: %w", srv.Addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// requestLogger returns a logger for one request, teeing into the live log
// channel of callbackID
func (s *Server) requestLogger(callbackID string) *log.Logger {
	logger, err := logging.New(s.cfg.Log, io.MultiWriter(s.out, s.hub.Writer(callbackID)))
	if err != nil {
		return s.logger.With("callback_id", callbackID)
	}
	return logger.With("callback_id", callbackID)
}

func callbackID(requested string) string {
	if requested != "" {
		return requested
	}
	return uuid.NewString()
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req models.CaptureRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := validateCapture(&req); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	id := callbackID(req.CallbackID)
	w.Header().Set(CallbackHeader, id)
	logger := s.requestLogger(id)

	repo, ok := s.openRepo(w, r, req.Dir)
	if !ok {
		return
	}

	op, _ := models.ParseOperation(string(req.Operation))
	opts := scm.Options{
		Operation:                op,
		Description:              req.Description,
		Orphan:                   req.Orphan,
		NoChangeOK:               req.NoChangeOK,
		ForceContinueOnNoChanges: req.ForceContinueOnNoChanges,
		RealCommitTime:           req.RealCommitTime,
		TagName:                  req.TagName,
		Flatten:                  req.Flatten,
	}

	result, err := s.service.WithLogger(logger).Capture(r.Context(), repo, req.URL, opts)
	if err != nil {
		logger.Error("Capture failed", "err", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.CaptureResponse{Captured: result != nil, Result: result})
}

func (s *Server) handleFlatten(w http.ResponseWriter, r *http.Request) {
	var req models.FlattenRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := validateFlatten(&req); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	id := callbackID(req.CallbackID)
	w.Header().Set(CallbackHeader, id)
	logger := s.requestLogger(id)

	repo, ok := s.openRepo(w, r, req.Dir)
	if !ok {
		return
	}

	result, err := s.service.WithLogger(logger).Flattener.Flatten(r.Context(), repo)
	if err != nil {
		logger.Error("Flatten failed", "err", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.FlattenResponse{
		State:      result.State.String(),
		Commit:     result.Commit,
		Submodules: result.Submodules,
	})
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req models.TranslateRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := validateTranslate(&req); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	result, err := s.translator.Translate(req.ExternalURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSocket sends the callback id, then streams the live log of that id
// until the client goes away
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("callback_id")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	lines, unsubscribe := s.hub.Subscribe(id)
	defer unsubscribe()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(id)); err != nil {
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case line := <-lines:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingInterval)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleSchemaList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.schemas.Labels())
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	body, err := s.schemas.Get(r.PathValue("name"))
	if err != nil {
		if errors.Is(err, schema.ErrUnknownLabel) {
			writeJSON(w, http.StatusNotFound, models.ErrorResponse{ErrorType: "not-found", ErrorMessage: err.Error()})
			return
		}
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func (s *Server) openRepo(w http.ResponseWriter, r *http.Request, dir string) (*git.Repo, bool) {
	if !s.inWorkspace(dir) {
		writeJSON(w, http.StatusBadRequest, []models.ValidationError{{
			ErrorMessage: "outside of the workspace root " + s.cfg.WorkspaceRoot,
			Path:         []string{"dir"},
			ErrorType:    errTypeValue,
		}})
		return nil, false
	}

	repo := git.Open(dir)
	if !repo.IsRepo(r.Context()) {
		writeJSON(w, http.StatusBadRequest, []models.ValidationError{{
			ErrorMessage: "not a git repository",
			Path:         []string{"dir"},
			ErrorType:    errTypeValue,
		}})
		return nil, false
	}
	return repo, true
}

// inWorkspace reports whether dir resolves to the workspace root or below it.
// Symlinks are resolved on both sides.
func (s *Server) inWorkspace(dir string) bool {
	if s.cfg.WorkspaceRoot == "" {
		return true
	}

	root, err := filepath.EvalSymlinks(s.cfg.WorkspaceRoot)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, []models.ValidationError{{
			ErrorMessage: err.Error(),
			Path:         []string{},
			ErrorType:    errTypeJSON,
		}})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
