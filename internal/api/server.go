// Package api serves the read-only listing endpoints used by the map client:
// the viewport bounds query, single listing lookup, and similar-properties
// recommendations.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/property-map/internal/listing"
	"github.com/sells-group/property-map/internal/model"
)

// MaxSimilarLimit caps the limit query parameter of the similar endpoint.
const MaxSimilarLimit = 50

// BoundsQuerier answers viewport queries and single listing lookups.
type BoundsQuerier interface {
	QueryInBounds(ctx context.Context, v model.Viewport, f model.FilterCriteria) (model.FeatureCollection, error)
	Get(ctx context.Context, id string) (*model.Listing, error)
	CacheStats() (listing.CacheStats, bool)
}

// SimilarFinder recommends listings comparable to a reference listing.
type SimilarFinder interface {
	FindSimilar(ctx context.Context, id string, limit int) ([]model.Listing, error)
}

// Config controls router behavior.
type Config struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	SimilarLimit   int
}

// Server holds the handler dependencies.
type Server struct {
	bounds  BoundsQuerier
	similar SimilarFinder
	auth    *Authenticator
	cfg     Config
}

// NewServer creates a Server. auth guards the similar endpoint.
func NewServer(bounds BoundsQuerier, similar SimilarFinder, auth *Authenticator, cfg Config) *Server {
	if cfg.SimilarLimit <= 0 {
		cfg.SimilarLimit = listing.DefaultSimilarLimit
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return &Server{bounds: bounds, similar: similar, auth: auth, cfg: cfg}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)

	r.Route("/properties", func(r chi.Router) {
		r.Get("/bounds", s.handleBounds)
		r.Get("/bounds/stats", s.handleBoundsStats)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Get("/similar", s.handleSimilar)
		})

		r.Get("/{id}", s.handleGet)
	})

	return r
}
