package mapview

import (
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/property-map/internal/model"
)

// ChangeKind identifies which slice of Store state changed.
type ChangeKind int

const (
	ChangeAll ChangeKind = iota
	ChangeVisible
	ChangeSelection
	ChangeHover
	ChangeFavorites
	ChangeFilters
)

// VisibleSource records where the current visible set came from.
type VisibleSource string

const (
	// SourceNone means no bounds query has completed yet.
	SourceNone VisibleSource = ""
	// SourceServer means the set is a bounds query response.
	SourceServer VisibleSource = "server"
	// SourceFallback means the bounds query failed and the set was filtered
	// locally from the known listings.
	SourceFallback VisibleSource = "fallback"
)

// Store is the client-side listing state for one session. Listing slices are
// only ever replaced as whole values; nothing edits them in place.
type Store struct {
	mu sync.RWMutex

	all           []model.Listing
	visible       []model.Listing
	totalVisible  int
	visibleSource VisibleSource

	selectedID string
	hoveredID  string

	favorites map[string]struct{}
	filters   model.FilterCriteria
	persister Persister

	subsMu sync.Mutex
	subs   []func(ChangeKind)
}

// NewStore creates a Store. When persister is non-nil, favorites and filters
// are loaded from it and written back on change. Transient map and selection
// state is never persisted.
func NewStore(persister Persister) *Store {
	s := &Store{
		favorites: make(map[string]struct{}),
		persister: persister,
	}
	if persister == nil {
		return s
	}
	state, err := persister.Load()
	if err != nil {
		zap.L().Warn("mapview: load persisted state", zap.Error(err))
		return s
	}
	for _, id := range state.FavoriteIDs {
		s.favorites[id] = struct{}{}
	}
	s.filters = state.Filters
	return s
}

// Subscribe registers fn to run after every state change. Callbacks run on
// the mutating goroutine, after the store lock is released.
func (s *Store) Subscribe(fn func(ChangeKind)) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Store) notify(kind ChangeKind) {
	s.subsMu.Lock()
	subs := slices.Clone(s.subs)
	s.subsMu.Unlock()
	for _, fn := range subs {
		fn(kind)
	}
}

// SetAll replaces the listings known from a non-viewport load.
func (s *Store) SetAll(listings []model.Listing) {
	s.mu.Lock()
	s.all = slices.Clone(listings)
	s.mu.Unlock()
	s.notify(ChangeAll)
}

// All returns the listings known from the last non-viewport load.
func (s *Store) All() []model.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.all)
}

// SetVisible replaces the viewport subset. Callers are responsible for
// discarding superseded responses before calling it.
func (s *Store) SetVisible(listings []model.Listing, total int, source VisibleSource) {
	s.mu.Lock()
	s.visible = slices.Clone(listings)
	s.totalVisible = total
	s.visibleSource = source
	s.mu.Unlock()
	s.notify(ChangeVisible)
}

// Visible returns the listings inside the active viewport.
func (s *Store) Visible() []model.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.visible)
}

// TotalVisible returns the server-reported match count for the viewport.
func (s *Store) TotalVisible() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalVisible
}

// Source reports where the visible set came from.
func (s *Store) Source() VisibleSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visibleSource
}

// Lookup finds a listing by id in the visible set, then in the known set.
func (s *Store) Lookup(id string) (model.Listing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := model.IndexOf(s.visible, id); i >= 0 {
		return s.visible[i], true
	}
	if i := model.IndexOf(s.all, id); i >= 0 {
		return s.all[i], true
	}
	return model.Listing{}, false
}

// SetSelected sets the selected listing; an empty id clears it.
func (s *Store) SetSelected(id string) {
	s.mu.Lock()
	changed := s.selectedID != id
	s.selectedID = id
	s.mu.Unlock()
	if changed {
		s.notify(ChangeSelection)
	}
}

// Selected returns the selected listing id, or "".
func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedID
}

// SetHovered sets the hovered listing; an empty id clears it.
func (s *Store) SetHovered(id string) {
	s.mu.Lock()
	changed := s.hoveredID != id
	s.hoveredID = id
	s.mu.Unlock()
	if changed {
		s.notify(ChangeHover)
	}
}

// ClearHovered drops hover emphasis.
func (s *Store) ClearHovered() {
	s.SetHovered("")
}

// Hovered returns the hovered listing id, or "".
func (s *Store) Hovered() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hoveredID
}

// ClearTransient drops selection and hover, as on navigation away.
func (s *Store) ClearTransient() {
	s.SetSelected("")
	s.SetHovered("")
}

// ToggleFavorite flips id's favorite flag and reports the new value.
func (s *Store) ToggleFavorite(id string) bool {
	s.mu.Lock()
	_, fav := s.favorites[id]
	if fav {
		delete(s.favorites, id)
	} else {
		s.favorites[id] = struct{}{}
	}
	state := s.persistedLocked()
	s.mu.Unlock()

	s.persist(state)
	s.notify(ChangeFavorites)
	return !fav
}

// IsFavorite reports whether id is a favorite.
func (s *Store) IsFavorite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.favorites[id]
	return ok
}

// FavoriteIDs returns the favorite ids in sorted order.
func (s *Store) FavoriteIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favoriteIDsLocked()
}

// SetFilters replaces the active filters.
func (s *Store) SetFilters(f model.FilterCriteria) {
	s.mu.Lock()
	s.filters = f
	state := s.persistedLocked()
	s.mu.Unlock()

	s.persist(state)
	s.notify(ChangeFilters)
}

// Filters returns the active filters.
func (s *Store) Filters() model.FilterCriteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

func (s *Store) favoriteIDsLocked() []string {
	ids := make([]string, 0, len(s.favorites))
	for id := range s.favorites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) persistedLocked() PersistedState {
	return PersistedState{FavoriteIDs: s.favoriteIDsLocked(), Filters: s.filters}
}

func (s *Store) persist(state PersistedState) {
	if s.persister == nil {
		return
	}
	if err := s.persister.Save(state); err != nil {
		zap.L().Warn("mapview: persist state", zap.Error(err))
	}
}
