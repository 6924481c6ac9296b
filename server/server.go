package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/tripscope/pkg/domain"
	"github.com/umputun/tripscope/pkg/recommender"
)

// Server represents HTTP server instance
type Server struct {
	config      ConfigProvider
	store       Store
	recommender Recommender
	generator   Generator
	version     string
	debug       bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Recommender produces rankings and confidence metrics
type Recommender interface {
	GetRecommendations(ctx context.Context, user domain.User, destination string, topN int) ([]domain.ScoredItem, error)
	MultiUserRecommendations(ctx context.Context, user domain.User, participants []recommender.Participant, destination string, topN int) ([]domain.ScoredItem, error)
	ConfidenceCheck(ctx context.Context, userID, destination string) (recommender.Confidence, error)
	HighConfidenceItems(ctx context.Context, user domain.User, destination string) ([]domain.ScoredItem, error)
}

// Store is the persistence surface the handlers need
type Store interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	SaveUser(ctx context.Context, user *domain.User) error
	GetPlacesByDestination(ctx context.Context, destination string) ([]domain.Item, error)
	GetActivitiesByDestination(ctx context.Context, destination string) ([]domain.Item, error)
	SavePlaces(ctx context.Context, items []domain.Item) error
	SaveActivities(ctx context.Context, items []domain.Item) error
	AddInteraction(ctx context.Context, interaction *domain.Interaction) error
}

// Generator builds a starter catalog for destinations without one
type Generator interface {
	Generate(ctx context.Context, destination string) (places, activities []domain.Item, err error)
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// New initializes a new server instance
func New(cfg ConfigProvider, store Store, rec Recommender, gen Generator, version string, debug bool) *Server {
	s := &Server{
		config:      cfg,
		store:       store,
		recommender: rec,
		generator:   gen,
		version:     version,
		debug:       debug,
		router:      routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	log.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("tripscope", "umputun", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)
		r.HandleFunc("POST /recommendations", s.recommendationsHandler)
		r.HandleFunc("POST /swipe", s.swipeHandler)
		r.HandleFunc("POST /confidence", s.confidenceHandler)
		r.HandleFunc("POST /high-confidence", s.highConfidenceHandler)
		r.HandleFunc("POST /multi-user/recommendations", s.multiUserRecommendationsHandler)
		r.HandleFunc("POST /multi-user/confidence", s.multiUserConfidenceHandler)
	})
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
	}
	RenderJSON(w, r, http.StatusOK, status)
}

// RenderJSON sends JSON response
func RenderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// RenderError sends error response as JSON
func RenderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	RenderJSON(w, r, code, map[string]string{"error": errMsg})
}
