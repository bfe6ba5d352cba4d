// It defines the API server, sets up the routes (endpoints)
// using chi, and links them to the handler functions.

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/core"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/store"
)

// Server holds the dependencies for our API.
type Server struct {
	app   *core.App
	store *store.Store
}

// NewServer creates a new Server instance.
func NewServer(app *core.App) *Server {
	return &Server{
		app:   app,
		store: app.Store(),
	}
}

// Router sets up and returns the main router for the application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)    // Logs requests to the console
	r.Use(middleware.Recoverer) // Recovers from panics

	r.Route("/api", func(r chi.Router) {
		// Downloads run as background jobs, so nothing here waits long.
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/version", s.handleGetVersion)
		r.Get("/health", s.handleHealth)
		r.Get("/providers", s.handleListProviders)

		r.Post("/search", s.handleSearch)
		r.Post("/urls", s.handleGetDownloadURLs)

		r.Post("/downloads", s.handleStartDownload)
		r.Get("/downloads", s.handleListDownloads)
		r.Get("/downloads/progress", s.handleGetProgress)
		r.Get("/downloads/{songID}", s.handleGetDownload)

		r.Get("/jobs/status", s.handleGetJobsStatus)
		r.Post("/jobs/run", s.handleRunJob)
	})

	// WebSocket route
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.app.WsHub().ServeWs(w, r)
	})

	return r
}
