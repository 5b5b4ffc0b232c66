package mapview

import (
	"context"
	"time"

	"github.com/sells-group/property-map/internal/config"
	"github.com/sells-group/property-map/internal/model"
)

// Querier is the listing API as seen by a map session.
type Querier interface {
	BoundsQuerier
	SimilarQuerier
}

// SessionConfig tunes every component of a Session.
type SessionConfig struct {
	Viewport     ViewportControllerConfig
	Selection    SelectionConfig
	SimilarLimit int
	// Persister stores favorites and filters. Nil keeps them in memory only.
	Persister Persister
}

// NewSessionConfig builds a SessionConfig from application config. An empty
// state path disables persistence.
func NewSessionConfig(c *config.Config) SessionConfig {
	sc := SessionConfig{
		Viewport: ViewportControllerConfig{
			QueryTimeout: c.Query.ClientTimeout(),
			SettleDelay:  time.Duration(c.Mapview.SettleDelayMS) * time.Millisecond,
		},
		Selection: SelectionConfig{
			PageSize: c.Mapview.PageSize,
			FlyZoom:  c.Mapview.FlyZoom,
		},
		SimilarLimit: c.Similar.Limit,
	}
	if c.Mapview.StatePath != "" {
		sc.Persister = NewFilePersister(c.Mapview.StatePath)
	}
	return sc
}

// Session wires the store, camera, marker layer, selection and similar panel
// of one map view.
type Session struct {
	Store     *Store
	Viewport  *ViewportController
	Markers   *MarkerManager
	Selection *SelectionSynchronizer
	Similar   *SimilarPanel
}

// NewSession creates a Session. list may be nil for a map without a list.
func NewSession(adapter MapAdapter, querier Querier, list ListView, cfg SessionConfig) *Session {
	store := NewStore(cfg.Persister)
	viewport := NewViewportController(adapter, querier, store, cfg.Viewport)
	markers := NewMarkerManager(adapter, store)
	return &Session{
		Store:     store,
		Viewport:  viewport,
		Markers:   markers,
		Selection: NewSelectionSynchronizer(store, viewport, markers, list, cfg.Selection),
		Similar:   NewSimilarPanel(querier, cfg.SimilarLimit),
	}
}

// Start seeds the known listings from a non-viewport load and queries the
// initial viewport.
func (s *Session) Start(ctx context.Context, initial []model.Listing) {
	s.Store.SetAll(initial)
	s.Viewport.Refresh(ctx)
}

// SetFilters applies new filters and requeries the current viewport.
func (s *Session) SetFilters(ctx context.Context, f model.FilterCriteria) {
	s.Store.SetFilters(f)
	s.Viewport.Refresh(ctx)
}

// Close waits for outstanding bounds queries.
func (s *Session) Close() {
	s.Viewport.Wait()
}
