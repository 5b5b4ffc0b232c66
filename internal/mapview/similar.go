package mapview

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/property-map/internal/model"
)

// SimilarUnavailableNotice is shown when similar listings cannot be loaded.
const SimilarUnavailableNotice = "Similar properties are unavailable right now."

// SimilarResult is what the similar-listings panel renders.
type SimilarResult struct {
	Listings []model.Listing
	// Notice is non-empty when the lookup failed.
	Notice string
}

// SimilarPanel loads listings comparable to the one being viewed. Failures
// degrade to an empty result with a notice and are not retried.
type SimilarPanel struct {
	querier SimilarQuerier
	limit   int
}

// NewSimilarPanel creates a SimilarPanel returning at most limit listings.
func NewSimilarPanel(querier SimilarQuerier, limit int) *SimilarPanel {
	if limit <= 0 {
		limit = 5
	}
	return &SimilarPanel{querier: querier, limit: limit}
}

// Load fetches listings similar to id.
func (p *SimilarPanel) Load(ctx context.Context, id string) SimilarResult {
	listings, err := p.querier.FindSimilar(ctx, id, p.limit)
	if err != nil {
		zap.L().Warn("mapview: similar listings failed", zap.String("id", id), zap.Error(err))
		return SimilarResult{Listings: []model.Listing{}, Notice: SimilarUnavailableNotice}
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	if len(listings) > p.limit {
		listings = listings[:p.limit]
	}
	return SimilarResult{Listings: listings}
}
