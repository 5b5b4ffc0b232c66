package mapview

import (
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/property-map/internal/model"
)

// Selection defaults.
const (
	DefaultPageSize = 12
	DefaultFlyZoom  = 15
)

// ListMode says which ordered sequence the paired list view is showing.
type ListMode int

const (
	// ModeMapOnly has no paired list; selection never pages or scrolls.
	ModeMapOnly ListMode = iota
	// ModeMapSearch pairs the list with the store's visible listings.
	ModeMapSearch
	// ModeListingGrid pairs the list with a separately paginated server
	// listing supplied through SetGrid.
	ModeListingGrid
)

func (m ListMode) String() string {
	switch m {
	case ModeMapSearch:
		return "map_search"
	case ModeListingGrid:
		return "listing_grid"
	default:
		return "map_only"
	}
}

// SelectionConfig tunes a SelectionSynchronizer.
type SelectionConfig struct {
	PageSize int
	FlyZoom  float64
}

// PageFor returns the 1-based page holding the item at a 0-based index.
func PageFor(index, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if index < 0 {
		return 1
	}
	return index/pageSize + 1
}

// SelectionSynchronizer is the single place that decides which listing is
// active. It drives the store, the camera, the marker popup and the paired
// list together.
type SelectionSynchronizer struct {
	store    *Store
	viewport *ViewportController
	markers  *MarkerManager
	list     ListView
	cfg      SelectionConfig
	log      *zap.Logger

	mu   sync.Mutex
	mode ListMode
	grid []model.Listing
}

// NewSelectionSynchronizer creates a SelectionSynchronizer and routes marker
// clicks through Toggle. list may be nil when no list is shown.
func NewSelectionSynchronizer(store *Store, viewport *ViewportController, markers *MarkerManager, list ListView, cfg SelectionConfig) *SelectionSynchronizer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.FlyZoom <= 0 {
		cfg.FlyZoom = DefaultFlyZoom
	}
	s := &SelectionSynchronizer{
		store:    store,
		viewport: viewport,
		markers:  markers,
		list:     list,
		cfg:      cfg,
		log:      zap.L().With(zap.String("component", "mapview.selection")),
	}
	if list != nil {
		s.mode = ModeMapSearch
	}
	markers.OnSelect(s.Toggle)
	return s
}

// SetMode switches the paired list between map-search and map-only.
// Use SetGrid for listing-grid mode.
func (s *SelectionSynchronizer) SetMode(mode ListMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	if mode != ModeListingGrid {
		s.grid = nil
	}
}

// SetGrid puts the synchronizer in listing-grid mode over the given ordered
// server listing.
func (s *SelectionSynchronizer) SetGrid(order []model.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = ModeListingGrid
	s.grid = slices.Clone(order)
}

// Mode returns the current list mode.
func (s *SelectionSynchronizer) Mode() ListMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Select makes id the active listing: the store records it, the camera flies
// to it, its popup opens and the paired list pages to its card. It reports
// false when id is not a known listing.
func (s *SelectionSynchronizer) Select(id string) bool {
	l, ok := s.store.Lookup(id)
	if !ok {
		s.log.Warn("select: unknown listing", zap.String("id", id))
		return false
	}

	s.store.SetSelected(id)
	s.viewport.FlyTo(l.Coordinates, s.cfg.FlyZoom)
	s.markers.OpenPopup(id)
	s.syncList(id)
	return true
}

// Toggle selects id, or deselects it when it is already selected. Marker and
// card clicks go through here.
func (s *SelectionSynchronizer) Toggle(id string) {
	if id != "" && s.store.Selected() == id {
		s.Deselect()
		return
	}
	s.Select(id)
}

// Deselect clears the selection and closes the open popup.
func (s *SelectionSynchronizer) Deselect() {
	s.store.SetSelected("")
	s.markers.ClosePopup()
}

// Hover sets the hovered listing; an empty id clears it.
func (s *SelectionSynchronizer) Hover(id string) {
	s.store.SetHovered(id)
}

func (s *SelectionSynchronizer) syncList(id string) {
	if s.list == nil {
		return
	}

	s.mu.Lock()
	mode := s.mode
	grid := s.grid
	s.mu.Unlock()

	var order []model.Listing
	switch mode {
	case ModeMapSearch:
		order = s.store.Visible()
	case ModeListingGrid:
		order = grid
	default:
		return
	}

	idx := model.IndexOf(order, id)
	if idx < 0 {
		s.log.Debug("select: listing not in paired list",
			zap.String("id", id), zap.Stringer("mode", mode))
		return
	}
	s.list.ShowPage(PageFor(idx, s.cfg.PageSize))
	s.list.ScrollIntoView(id)
}
