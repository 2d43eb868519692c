// Package server exposes the worksheet, assignment, and schedule
// operations over HTTP for the field application.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/config"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/importer"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/lifecycle"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/store"
)

// Server holds the handlers' shared dependencies.
type Server struct {
	store     store.Store
	machine   *lifecycle.Machine
	validator *importer.Validator
	charset   string
}

// New wires a Server over the given store.
func New(st store.Store, importCfg config.ImportConfig) *Server {
	v := importer.NewValidator()
	if importCfg.MaxOperations > 0 {
		v.MaxOperations = importCfg.MaxOperations
	}
	return &Server{
		store:     st,
		machine:   lifecycle.NewMachine(st),
		validator: v,
		charset:   importCfg.Charset,
	}
}

// Router builds the HTTP handler with middleware and all routes mounted.
func (s *Server) Router(cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(logRequests)
	if cfg.RatePerSecond > 0 {
		r.Use(rateLimit(rate.Limit(cfg.RatePerSecond), cfg.RateBurst))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/worksheets", func(r chi.Router) {
		r.Post("/import", s.handleImport)
		r.Get("/", s.handleListWorksheets)
		r.Get("/{id}", s.handleGetWorksheet)
		r.Get("/{id}/summary", s.handleWorksheetSummary)
		r.Delete("/{id}", s.handleDeleteWorksheet)
	})

	r.Route("/assignments", func(r chi.Router) {
		r.Get("/", s.handleListAssignments)
		r.Post("/assign", s.handleAssign)
		r.Post("/start", s.handleStartActivity)
		r.Post("/end", s.handleEndActivity)
	})

	r.Post("/activities/{id}/info", s.handleActivityInfo)
	r.Get("/schedule", s.handleSchedule)

	return r
}
