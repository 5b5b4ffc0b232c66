package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/property-map/internal/listing"
	"github.com/sells-group/property-map/internal/model"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleBounds never rejects its input. Missing or unparsable corners read
// as 0 and unparsable filters are ignored.
func (s *Server) handleBounds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v, f := ParseBoundsQuery(q)

	fc, err := s.bounds.QueryInBounds(r.Context(), v, f)
	if err != nil {
		zap.L().Error("api: bounds query",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.Error(err),
		)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to fetch properties")
		return
	}
	RespondWithJSON(w, http.StatusOK, fc)
}

func (s *Server) handleBoundsStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	stats, ok := s.bounds.CacheStats()
	if !ok {
		_, _ = fmt.Fprintln(w, "cache disabled")
		return
	}
	_, _ = fmt.Fprintf(w, "hits: %d\nmisses: %d\nhit_rate: %.3f\n", stats.Hits, stats.Misses, stats.HitRate)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("id")
	if id == "" {
		WriteJSONError(w, http.StatusBadRequest, "Property ID is required")
		return
	}
	limit := s.cfg.SimilarLimit
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = min(n, MaxSimilarLimit)
	}

	similar, err := s.similar.FindSimilar(r.Context(), id, limit)
	switch {
	case err == nil:
		if similar == nil {
			similar = []model.Listing{}
		}
		RespondWithJSON(w, http.StatusOK, similar)
	case errors.Is(err, listing.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, "Property not found")
	case errors.Is(err, listing.ErrInvalidReference):
		WriteJSONError(w, http.StatusBadRequest, "Invalid property data")
	default:
		var subject string
		if c, ok := ClaimsFrom(r.Context()); ok {
			subject = c.Subject
		}
		zap.L().Error("api: similar query",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("subject", subject),
			zap.String("id", id),
			zap.Error(err),
		)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to fetch similar properties")
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	l, err := s.bounds.Get(r.Context(), id)
	switch {
	case err == nil:
		RespondWithJSON(w, http.StatusOK, l)
	case errors.Is(err, listing.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, "Property not found")
	default:
		zap.L().Error("api: get listing",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("id", id),
			zap.Error(err),
		)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to fetch property")
	}
}

// ParseBoundsQuery reads the viewport and filters of a bounds request.
func ParseBoundsQuery(q url.Values) (model.Viewport, model.FilterCriteria) {
	v := model.NewViewport(
		floatOrZero(q.Get("swLng")), floatOrZero(q.Get("swLat")),
		floatOrZero(q.Get("neLng")), floatOrZero(q.Get("neLat")),
	)
	f := model.FilterCriteria{
		MinPrice:     optFloat(q.Get("minPrice")),
		MaxPrice:     optFloat(q.Get("maxPrice")),
		MinBedrooms:  optInt(q.Get("bedrooms")),
		PropertyType: model.PropertyType(q.Get("type")),
	}
	return v, f
}

func floatOrZero(raw string) float64 {
	if p := optFloat(raw); p != nil {
		return *p
	}
	return 0
}

func optFloat(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func optInt(raw string) *int {
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}
