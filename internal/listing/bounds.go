package listing

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/property-map/internal/model"
)

// BoundsService answers viewport range queries. The viewport itself is the
// pagination mechanism: the full matching set is returned with no cursor.
type BoundsService struct {
	repo  Repository
	cache *BoundsCache
}

// NewBoundsService creates a BoundsService. cache may be nil.
func NewBoundsService(repo Repository, cache *BoundsCache) *BoundsService {
	return &BoundsService{repo: repo, cache: cache}
}

// QueryInBounds returns the active listings inside v that pass f. Non-finite
// corners are treated as 0, so malformed input yields a degenerate (usually
// empty) result rather than an error. Storage failures are reported as
// ErrQueryFailure.
func (s *BoundsService) QueryInBounds(ctx context.Context, v model.Viewport, f model.FilterCriteria) (model.FeatureCollection, error) {
	v = v.Sanitize()

	if s.cache != nil {
		if fc, ok := s.cache.Get(v, f); ok {
			return fc, nil
		}
	}

	features, err := s.repo.InBounds(ctx, v, f)
	if err != nil {
		zap.L().Warn("listing: bounds query failed",
			zap.Float64("sw_lng", v.SouthWest.Lng), zap.Float64("sw_lat", v.SouthWest.Lat),
			zap.Float64("ne_lng", v.NorthEast.Lng), zap.Float64("ne_lat", v.NorthEast.Lat),
			zap.Error(err),
		)
		return model.FeatureCollection{}, newQueryError("query in bounds", err)
	}

	fc := model.FeatureCollection{Features: features, TotalCount: len(features)}
	if s.cache != nil {
		s.cache.Put(v, f, fc)
	}
	return fc, nil
}

// Get returns a single active listing.
func (s *BoundsService) Get(ctx context.Context, id string) (*model.Listing, error) {
	return s.repo.Get(ctx, id)
}

// CacheStats reports bounds cache statistics; ok is false when caching is off.
func (s *BoundsService) CacheStats() (stats CacheStats, ok bool) {
	if s.cache == nil {
		return CacheStats{}, false
	}
	return s.cache.Stats(), true
}
