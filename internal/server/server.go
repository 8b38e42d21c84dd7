package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"newsrag/internal/model"
)

// QueryAnswerer is the query pipeline the HTTP layer exposes. It is
// defined never to fail outward, so handlers only deal in responses.
type QueryAnswerer interface {
	Answer(ctx context.Context, query string) model.QueryResponse
}

type Server struct {
	answerer QueryAnswerer
	logger   *zap.Logger
	router   *mux.Router
	server   *http.Server
}

func NewServer(answerer QueryAnswerer, logger *zap.Logger) *Server {
	s := &Server{
		answerer: answerer,
		logger:   logger,
		router:   mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/agent", s.handleQuery).Methods("POST")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start launches the HTTP server
func (s *Server) Start(port string) error {
	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	s.logger.Info("Web server listening", zap.String("addr", port))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		http.Error(w, "Query is required", http.StatusBadRequest)
		return
	}

	s.logger.Info("Received query", zap.String("query", req.Query))
	response := s.answerer.Answer(r.Context(), req.Query)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
