// Package listing implements the read side of the listing catalogue: the
// viewport bounds query, the similar-properties recommender, and the storage
// backends they run against.
package listing

import (
	"context"

	"github.com/sells-group/property-map/internal/model"
)

// Repository is the storage collaborator. Its collection is the set of active
// listings; withdrawn or sold rows are never returned.
type Repository interface {
	// InBounds returns every active listing whose coordinate lies inside v
	// (boundary inclusive) and passes f, ordered by id.
	InBounds(ctx context.Context, v model.Viewport, f model.FilterCriteria) ([]model.Listing, error)

	// Get returns the listing with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Listing, error)

	// SimilarCandidates returns active listings other than ref with the same
	// property type and a price in [low, high]. Locality and ordering are
	// applied by the caller.
	SimilarCandidates(ctx context.Context, ref model.Listing, low, high float64) ([]model.Listing, error)

	// Upsert inserts or replaces a listing by id.
	Upsert(ctx context.Context, l model.Listing) error
}

// StatusActive is the only status the read paths expose.
const StatusActive = "active"
