// Package api exposes the HTTP trigger surface for the crawler service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nrs-project/notice-crawler/internal/crawler"
)

// crawlTimeout bounds one synchronous crawl request. Crawls walk many
// detail pages and attachments, so this is deliberately generous.
const crawlTimeout = 10 * time.Minute

// Orchestrator is the slice of the pipeline the API drives.
type Orchestrator interface {
	CrawlSource(ctx context.Context, sourceID string) ([]crawler.Record, error)
}

// Server wires HTTP handlers to the crawl pipeline.
type Server struct {
	router       chi.Router
	orchestrator Orchestrator
	logger       *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(orchestrator Orchestrator, logger *zap.Logger) *Server {
	s := &Server{
		orchestrator: orchestrator,
		logger:       logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(timeoutMiddleware(crawlTimeout)).Post("/crawl", s.crawl)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type crawlRequest struct {
	Source string `json:"source"`
}

type crawlResponse struct {
	Code string           `json:"code"`
	Data []crawler.Record `json:"data"`
}

// crawl triggers a synchronous crawl of one source. The caller sees
// either the newly discovered records or a single fatal error; partial
// degradation is visible only in the logs.
func (s *Server) crawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "source required")
		return
	}

	records, err := s.orchestrator.CrawlSource(r.Context(), req.Source)
	switch {
	case errors.Is(err, crawler.ErrUnknownSource):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, crawler.ErrListingUnavailable):
		writeError(w, http.StatusBadGateway, err.Error())
		return
	case err != nil:
		s.logger.Error("crawl failed", zap.String("source", req.Source), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "crawl failed")
		return
	}

	if records == nil {
		records = []crawler.Record{}
	}
	writeJSON(w, http.StatusOK, crawlResponse{Code: "200", Data: records})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: strconv.Itoa(status)})
}
