package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/Tyrowin/roomhub/internal/metrics"
)

// RequestIDHeader carries the per-request id back to the caller.
const RequestIDHeader = "X-Request-Id"

// Routes configures and returns the router with all application routes.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		s.injectRequestID,
		middleware.Recoverer,
		metrics.Middleware,
	)

	r.Get("/", HealthHandler)
	r.Get("/ws", s.WebSocketHandler)
	r.Get("/ws/", s.WebSocketHandler)
	r.Get("/rooms", s.ListRoomsHandler)
	r.Get("/rooms/{room}", s.RoomHandler)
	r.Get("/stats", s.StatsHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

// injectRequestID tags the request with a fresh id, in the response header
// and in the request logger.
func (s *Server) injectRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.New().String()
		logger := s.logger.WithValues("requestID", reqID)
		w.Header().Set(RequestIDHeader, reqID)

		logger.V(1).Info("request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(logr.NewContext(r.Context(), logger)))
	})
}
