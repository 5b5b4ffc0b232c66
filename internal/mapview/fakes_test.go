package mapview

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/property-map/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type cameraCall struct {
	center  model.Coordinates
	zoom    float64
	animate bool
}

// fakeMap is an in-memory MapAdapter that records every call.
type fakeMap struct {
	mu      sync.Mutex
	bounds  model.Viewport
	cameras []cameraCall
	markers map[string]MarkerSpec
	clicks  map[string]func()
	styles  map[string]MarkerStyle
	popups  map[string]PopupContent
	adds    map[string]int
	removes map[string]int
	closes  []string
}

func newFakeMap() *fakeMap {
	return &fakeMap{
		markers: make(map[string]MarkerSpec),
		clicks:  make(map[string]func()),
		styles:  make(map[string]MarkerStyle),
		popups:  make(map[string]PopupContent),
		adds:    make(map[string]int),
		removes: make(map[string]int),
	}
}

func (f *fakeMap) Bounds() model.Viewport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bounds
}

func (f *fakeMap) setBounds(v model.Viewport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bounds = v
}

func (f *fakeMap) SetCamera(center model.Coordinates, zoom float64, animate bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cameras = append(f.cameras, cameraCall{center: center, zoom: zoom, animate: animate})
}

func (f *fakeMap) AddMarker(spec MarkerSpec, onClick func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markers[spec.ID] = spec
	f.clicks[spec.ID] = onClick
	f.adds[spec.ID]++
}

func (f *fakeMap) RemoveMarker(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.markers, id)
	delete(f.clicks, id)
	delete(f.styles, id)
	delete(f.popups, id)
	f.removes[id]++
}

func (f *fakeMap) SetMarkerStyle(id string, style MarkerStyle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.styles[id] = style
}

func (f *fakeMap) OpenPopup(id string, content PopupContent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.popups[id] = content
}

func (f *fakeMap) ClosePopup(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.popups, id)
	f.closes = append(f.closes, id)
}

// click simulates the user clicking a marker.
func (f *fakeMap) click(id string) {
	f.mu.Lock()
	fn := f.clicks[id]
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (f *fakeMap) markerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.markers)
}

func (f *fakeMap) hasMarker(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.markers[id]
	return ok
}

func (f *fakeMap) addCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.adds[id]
}

func (f *fakeMap) style(id string) MarkerStyle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.styles[id]
}

func (f *fakeMap) openPopups() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.popups))
	for id := range f.popups {
		ids = append(ids, id)
	}
	return ids
}

func (f *fakeMap) popup(id string) (PopupContent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.popups[id]
	return c, ok
}

func (f *fakeMap) cameraCalls() []cameraCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cameraCall(nil), f.cameras...)
}

type queryResult struct {
	fc  model.FeatureCollection
	err error
}

type pendingQuery struct {
	view    model.Viewport
	release chan queryResult
}

// gatedQuerier blocks every query until the test releases it, so tests
// control completion order.
type gatedQuerier struct {
	calls chan *pendingQuery
}

func newGatedQuerier() *gatedQuerier {
	return &gatedQuerier{calls: make(chan *pendingQuery, 16)}
}

func (q *gatedQuerier) QueryInBounds(ctx context.Context, v model.Viewport, _ model.FilterCriteria) (model.FeatureCollection, error) {
	p := &pendingQuery{view: v, release: make(chan queryResult, 1)}
	q.calls <- p
	select {
	case r := <-p.release:
		return r.fc, r.err
	case <-ctx.Done():
		return model.FeatureCollection{}, ctx.Err()
	}
}

func (q *gatedQuerier) next(t *testing.T) *pendingQuery {
	t.Helper()
	select {
	case p := <-q.calls:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("no query dispatched")
		return nil
	}
}

func (q *gatedQuerier) assertIdle(t *testing.T) {
	t.Helper()
	select {
	case p := <-q.calls:
		t.Fatalf("unexpected query for %+v", p.view)
	default:
	}
}

// staticQuerier answers from an in-memory listing set.
type staticQuerier struct {
	mu       sync.Mutex
	listings []model.Listing
	err      error
	count    int
}

func (q *staticQuerier) QueryInBounds(_ context.Context, v model.Viewport, f model.FilterCriteria) (model.FeatureCollection, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.count++
	if q.err != nil {
		return model.FeatureCollection{}, q.err
	}
	out := model.FilterInBounds(q.listings, v, f)
	return model.FeatureCollection{Features: out, TotalCount: len(out)}, nil
}

func (q *staticQuerier) calls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// fakeList records list view commands.
type fakeList struct {
	mu       sync.Mutex
	pages    []int
	scrolled []string
}

func (l *fakeList) ShowPage(page int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pages = append(l.pages, page)
}

func (l *fakeList) ScrollIntoView(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scrolled = append(l.scrolled, id)
}

func listingAt(id string, lng, lat, price float64) model.Listing {
	return model.Listing{
		ID:            id,
		Coordinates:   model.Coordinates{Lng: lng, Lat: lat},
		Price:         price,
		PropertyType:  model.PropertyTypeHouse,
		City:          "Toronto",
		Province:      "ON",
		StreetAddress: fmt.Sprintf("%s Main St", id),
	}
}

func gridOf(n int) []model.Listing {
	out := make([]model.Listing, n)
	for i := range out {
		out[i] = listingAt(fmt.Sprintf("p%02d", i), -79+float64(i)*0.001, 43.6, 500_000)
	}
	return out
}
