// Package api exposes previews over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"jetpreview/internal/domain"
	"jetpreview/internal/metrics"
	"jetpreview/internal/pool"
	"jetpreview/internal/preview"
)

// Previewer resolves a URL into preview metadata.
type Previewer interface {
	Lookup(ctx context.Context, url string) (domain.Metadata, error)
}

// StatsFunc reports renderer pool statistics.
type StatsFunc func() pool.Stats

// Server wires HTTP handlers to the preview service.
type Server struct {
	router    chi.Router
	previewer Previewer
	poolStats StatsFunc
	log       logrus.FieldLogger
}

// NewServer constructs a Server with middleware and routes. poolStats may be
// nil when rendering is disabled.
func NewServer(previewer Previewer, poolStats StatsFunc, requestTimeout time.Duration, logger logrus.FieldLogger) *Server {
	s := &Server{
		previewer: previewer,
		poolStats: poolStats,
		log:       logger.WithField("component", "api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	if requestTimeout > 0 {
		r.Use(timeoutMiddleware(requestTimeout))
	}

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/preview", s.getPreview)
		r.Get("/pool", s.getPool)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getPreview(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	md, err := s.previewer.Lookup(r.Context(), target)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, md)
	case errors.Is(err, preview.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "preview timed out")
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

type poolResponse struct {
	Enabled        bool  `json:"enabled"`
	Idle           int   `json:"idle"`
	Active         int   `json:"active"`
	Total          int   `json:"total"`
	Max            int   `json:"max"`
	Borrowed       int64 `json:"borrowed"`
	Returned       int64 `json:"returned"`
	Invalidated    int64 `json:"invalidated"`
	Evicted        int64 `json:"evicted"`
	Exhausted      int64 `json:"exhausted"`
	CreateErrors   int64 `json:"create_errors"`
	DoubleReleases int64 `json:"double_releases"`
}

func (s *Server) getPool(w http.ResponseWriter, _ *http.Request) {
	if s.poolStats == nil {
		writeJSON(w, http.StatusOK, poolResponse{})
		return
	}
	st := s.poolStats()
	writeJSON(w, http.StatusOK, poolResponse{
		Enabled:        true,
		Idle:           st.Idle,
		Active:         st.Active,
		Total:          st.Total,
		Max:            st.Max,
		Borrowed:       st.Borrowed,
		Returned:       st.Returned,
		Invalidated:    st.Invalidated,
		Evicted:        st.Evicted,
		Exhausted:      st.Exhausted,
		CreateErrors:   st.CreateErrors,
		DoubleReleases: st.DoubleReleases,
	})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.log.WithFields(logrus.Fields{
			"request_id":  reqID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("Request completed")
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.WithField("panic", rec).Error("Panic recovered")
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
