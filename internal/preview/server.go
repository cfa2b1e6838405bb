package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/genricoloni/mediakeys/internal/domain"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Server is the local host simulator: it lets a browser or script make keys
// appear and disappear and watch what they render.
type Server struct {
	logger *zap.Logger
	host   domain.KeyHost
	board  *Board
	addr   string

	srv      *http.Server
	listener net.Listener
}

// NewServer builds the preview host listening on cfg.GetPreviewAddr()
func NewServer(logger *zap.Logger, cfg domain.Config, host domain.KeyHost, board *Board) *Server {
	s := &Server{
		logger: logger,
		host:   host,
		board:  board,
		addr:   cfg.GetPreviewAddr(),
	}
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed, CORS-enabled handler
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.HandleFunc("/api/keys", s.listKeys).Methods(http.MethodGet)
	r.HandleFunc("/api/keys/{id}", s.getKey).Methods(http.MethodGet)
	r.HandleFunc("/api/keys/{id}", s.appearKey).Methods(http.MethodPut)
	r.HandleFunc("/api/keys/{id}", s.disappearKey).Methods(http.MethodDelete)
	r.Handle("/events", s.board).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Preview server stopped", zap.Error(err))
		}
	}()

	s.logger.Info("Preview server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or the configured one before Start
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop closes the event streams and shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	// Open SSE responses would otherwise hold Shutdown until ctx expires
	s.board.Close()
	if s.listener == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

type appearResponse struct {
	KeyID   string         `json:"key_id"`
	Variant domain.Variant `json:"variant"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.board.Frames())
}

func (s *Server) getKey(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	frame, ok := s.board.Frame(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown key")
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func (s *Server) appearKey(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	variant, err := domain.ParseVariant(r.URL.Query().Get("variant"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.host.Appear(id, variant); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, appearResponse{KeyID: id, Variant: variant})
}

func (s *Server) disappearKey(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.host.Disappear(id) {
		writeError(w, http.StatusNotFound, "unknown key")
		return
	}
	s.board.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// loggingMiddleware logs every request with its status and duration
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.logger.Debug("Preview request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", time.Since(start)))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps event streaming working through the wrapper
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
