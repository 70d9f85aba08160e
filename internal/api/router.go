package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter mounts the REST routes under /api/v1 and the websocket endpoint.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(withRequestID, s.accessLog, s.cors)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", s.handleGetTags)
			r.Get("/{tag}", s.handleGetTag)
			r.With(limitBody).Put("/{tag}", s.handleSetTag)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/tags", s.handleTagHistory)
			r.Get("/fills", s.handleFillHistory)
			r.Get("/writes", s.handleWriteHistory)
		})
	})

	r.Get(s.wsPath(), s.handleWebSocket)

	return r
}

// defaultWSPath is used when websocket.path is not configured.
const defaultWSPath = "/api/v1/ws"

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return defaultWSPath
	}
	return s.wsCfg.Path
}
