package listing

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/text/cases"

	"github.com/sells-group/property-map/internal/model"
)

// DefaultSimilarLimit is the number of recommendations returned when the
// caller does not ask for a specific count.
const DefaultSimilarLimit = 5

// DefaultPriceBand is the fractional price tolerance around the reference.
const DefaultPriceBand = 0.2

// Recommender finds active listings comparable to a reference listing.
type Recommender struct {
	repo Repository
	band float64
}

// NewRecommender creates a Recommender. A non-positive band falls back to
// DefaultPriceBand.
func NewRecommender(repo Repository, band float64) *Recommender {
	if band <= 0 {
		band = DefaultPriceBand
	}
	return &Recommender{repo: repo, band: band}
}

// FindSimilar resolves id and returns up to limit comparable listings,
// most recently updated first. An unknown id or unusable reference price
// yields ErrInvalidReference; an unknown id additionally matches ErrNotFound.
func (r *Recommender) FindSimilar(ctx context.Context, id string, limit int) ([]model.Listing, error) {
	if id == "" {
		return nil, &referenceError{id: id, reason: "id is required"}
	}
	ref, err := r.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &referenceError{id: id, reason: "not found", notFound: true}
		}
		return nil, newQueryError("resolve reference", err)
	}
	return r.FindSimilarTo(ctx, *ref, limit)
}

// FindSimilarTo is FindSimilar for an already resolved reference.
func (r *Recommender) FindSimilarTo(ctx context.Context, ref model.Listing, limit int) ([]model.Listing, error) {
	if !ref.HasPrice() {
		return nil, &referenceError{id: ref.ID, reason: "price is not numeric"}
	}
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}

	low := ref.Price * (1 - r.band)
	high := ref.Price * (1 + r.band)

	candidates, err := r.repo.SimilarCandidates(ctx, ref, low, high)
	if err != nil {
		return nil, newQueryError("similar candidates", err)
	}

	fold := cases.Fold()
	refCity := fold.String(ref.City)
	refProvince := fold.String(ref.Province)

	out := make([]model.Listing, 0, limit)
	for _, c := range candidates {
		if c.ID == ref.ID || c.PropertyType != ref.PropertyType {
			continue
		}
		if !c.HasPrice() || c.Price < low || c.Price > high {
			continue
		}
		cityMatch := refCity != "" && fold.String(c.City) == refCity
		provinceMatch := refProvince != "" && fold.String(c.Province) == refProvince
		if !cityMatch && !provinceMatch {
			continue
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
