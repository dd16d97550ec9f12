package api

import (
	"net/http"

	"github.com/arl/statsviz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ramonehamilton/NMJL-Companion/internal/api/handlers"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() error {
	systemHandler := handlers.NewSystemHandler(s.engine, s.runSummarizer())

	// Health check endpoint (no versioning)
	s.router.Get("/health", systemHandler.Health)

	// Live session; outside the request timeout.
	s.router.Get("/ws", s.wsHub.ServeWs)

	if s.cfg.Debug {
		if err := s.mountStatsviz(); err != nil {
			return err
		}
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		if s.cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		}
		r.Use(jsonContentType)

		analysisHandler := handlers.NewAnalysisHandler(s.engine)
		r.Route("/analysis", func(r chi.Router) {
			r.Post("/match", analysisHandler.Match)
			r.Post("/rank", analysisHandler.Rank)
			r.Post("/recommend", analysisHandler.Recommend)
			r.Post("/full", analysisHandler.Full)
		})
		r.Post("/turn/analyze", analysisHandler.Turn)
		r.Post("/probability", analysisHandler.Probability)

		patternHandler := handlers.NewPatternHandler(s.engine)
		r.Route("/patterns", func(r chi.Router) {
			r.Get("/", patternHandler.List)
			r.Get("/{patternID}", patternHandler.Get)
			r.Get("/{patternID}/variations", patternHandler.Variations)
		})

		if s.store != nil {
			runHandler := handlers.NewRunHandler(s.store)
			r.Get("/runs", runHandler.Recent)
		}

		r.Get("/metrics", systemHandler.Metrics)
		r.Get("/health", systemHandler.Health)
	})
	return nil
}

// runSummarizer returns the store as a summarizer, or a nil interface.
func (s *Server) runSummarizer() handlers.RunSummarizer {
	if s.store == nil {
		return nil
	}
	return s.store
}

// mountStatsviz serves the runtime dashboard at /debug/statsviz/.
func (s *Server) mountStatsviz() error {
	srv, err := statsviz.NewServer()
	if err != nil {
		return err
	}
	s.router.Get("/debug/statsviz/ws", srv.Ws())
	s.router.Get("/debug/statsviz", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/debug/statsviz/", http.StatusMovedPermanently)
	})
	s.router.Handle("/debug/statsviz/*", srv.Index())
	return nil
}
