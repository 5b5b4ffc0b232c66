package mapview

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/property-map/internal/model"
)

type marker struct {
	spec  MarkerSpec
	style MarkerStyle
}

// MarkerManager keeps exactly one marker per visible listing. It is the only
// component that touches the adapter's marker layer.
type MarkerManager struct {
	adapter MapAdapter
	store   *Store
	log     *zap.Logger

	mu        sync.Mutex
	markers   map[string]*marker
	openPopup string
	onSelect  func(id string)
}

// NewMarkerManager creates a MarkerManager and subscribes it to store.
func NewMarkerManager(adapter MapAdapter, store *Store) *MarkerManager {
	m := &MarkerManager{
		adapter: adapter,
		store:   store,
		log:     zap.L().With(zap.String("component", "mapview.markers")),
		markers: make(map[string]*marker),
	}
	store.Subscribe(m.handle)
	return m
}

// OnSelect routes marker clicks to fn. Without it a click selects the listing
// in the store directly.
func (m *MarkerManager) OnSelect(fn func(id string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSelect = fn
}

func (m *MarkerManager) handle(kind ChangeKind) {
	switch kind {
	case ChangeVisible:
		m.Reconcile()
	case ChangeHover, ChangeSelection:
		m.mu.Lock()
		m.restyleLocked()
		m.mu.Unlock()
	}
}

// Reconcile brings the marker layer in line with the store's visible set.
// Markers for vanished ids are removed, new ids get a marker, and markers whose
// id, position and label are unchanged are left alone.
func (m *MarkerManager) Reconcile() {
	visible := m.store.Visible()

	m.mu.Lock()
	defer m.mu.Unlock()

	want := make(map[string]MarkerSpec, len(visible))
	order := make([]string, 0, len(visible))
	for _, l := range visible {
		if _, dup := want[l.ID]; dup {
			continue
		}
		want[l.ID] = specFor(l)
		order = append(order, l.ID)
	}

	var removed, added int
	var reopen string
	for id, mk := range m.markers {
		spec, keep := want[id]
		if keep && spec == mk.spec {
			continue
		}
		if keep && m.openPopup == id {
			reopen = id
		}
		m.removeLocked(id)
		removed++
	}
	for _, id := range order {
		if _, ok := m.markers[id]; ok {
			continue
		}
		spec := want[id]
		m.adapter.AddMarker(spec, m.clickHandler(id))
		m.markers[id] = &marker{spec: spec}
		added++
	}
	m.restyleLocked()

	// A replaced marker takes its popup with it; bring it back while the
	// listing is still selected.
	if reopen != "" && m.store.Selected() == reopen {
		m.openPopupLocked(reopen)
	}

	if removed > 0 || added > 0 {
		m.log.Debug("markers reconciled",
			zap.Int("added", added),
			zap.Int("removed", removed),
			zap.Int("total", len(m.markers)),
		)
	}
}

// OpenPopup opens the popup of id's marker, closing any other open popup
// first. It reports false when id has no marker.
func (m *MarkerManager) OpenPopup(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openPopupLocked(id)
}

func (m *MarkerManager) openPopupLocked(id string) bool {
	mk, ok := m.markers[id]
	if !ok {
		return false
	}
	if m.openPopup == id {
		return true
	}
	if m.openPopup != "" {
		m.adapter.ClosePopup(m.openPopup)
	}

	content := PopupContent{Price: mk.spec.Label}
	if l, found := m.store.Lookup(id); found {
		content = popupFor(l)
	}
	m.adapter.OpenPopup(id, content)
	m.openPopup = id
	return true
}

// ClosePopup closes the open popup, if any.
func (m *MarkerManager) ClosePopup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openPopup == "" {
		return
	}
	m.adapter.ClosePopup(m.openPopup)
	m.openPopup = ""
}

// OpenPopupID returns the id whose popup is open, or "".
func (m *MarkerManager) OpenPopupID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openPopup
}

// MarkerIDs returns the ids that currently have a marker.
func (m *MarkerManager) MarkerIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.markers))
	for id := range m.markers {
		ids = append(ids, id)
	}
	return ids
}

func (m *MarkerManager) clickHandler(id string) func() {
	return func() {
		m.mu.Lock()
		fn := m.onSelect
		m.mu.Unlock()
		if fn != nil {
			fn(id)
			return
		}
		m.store.SetSelected(id)
	}
}

// removeLocked drops a marker. The adapter removes the attached popup with it.
func (m *MarkerManager) removeLocked(id string) {
	m.adapter.RemoveMarker(id)
	delete(m.markers, id)
	if m.openPopup == id {
		m.openPopup = ""
	}
}

func (m *MarkerManager) restyleLocked() {
	hovered := m.store.Hovered()
	selected := m.store.Selected()
	for id, mk := range m.markers {
		style := MarkerStyle{Hovered: id == hovered, Selected: id == selected}
		if style == mk.style {
			continue
		}
		m.adapter.SetMarkerStyle(id, style)
		mk.style = style
	}
}

func specFor(l model.Listing) MarkerSpec {
	return MarkerSpec{
		ID:       l.ID,
		Position: l.Coordinates,
		Label:    model.FormatPriceLabel(l.Price),
	}
}

func popupFor(l model.Listing) PopupContent {
	var locality []string
	for _, s := range []string{l.City, l.Province} {
		if s != "" {
			locality = append(locality, s)
		}
	}
	return PopupContent{
		Title:    l.StreetAddress,
		Subtitle: strings.Join(locality, ", "),
		PhotoURL: l.PhotoURL,
		Price:    model.FormatPriceLabel(l.Price),
	}
}
