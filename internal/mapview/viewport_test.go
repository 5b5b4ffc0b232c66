package mapview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-map/internal/model"
)

var (
	viewA = model.NewViewport(-80, 43, -79, 44)
	viewB = model.NewViewport(-74, 45, -73, 46)
)

func collectionOf(ls ...model.Listing) model.FeatureCollection {
	return model.FeatureCollection{Features: ls, TotalCount: len(ls)}
}

func visibleIDs(s *Store) []string {
	var ids []string
	for _, l := range s.Visible() {
		ids = append(ids, l.ID)
	}
	return ids
}

func TestViewportController_NewerResponseWinsWhenOlderArrivesLate(t *testing.T) {
	m := newFakeMap()
	q := newGatedQuerier()
	store := NewStore(nil)
	ctrl := NewViewportController(m, q, store, ViewportControllerConfig{})
	ctx := context.Background()

	m.setBounds(viewA)
	ctrl.NotifyMoveEnd(ctx, OriginUser)
	first := q.next(t)

	m.setBounds(viewB)
	ctrl.NotifyMoveEnd(ctx, OriginUser)
	second := q.next(t)

	assert.Equal(t, viewA, first.view)
	assert.Equal(t, viewB, second.view)
	assert.Equal(t, uint64(2), ctrl.Generation())

	second.release <- queryResult{fc: collectionOf(listingAt("b", -73.5, 45.5, 1))}
	require.Eventually(t, func() bool { return store.Source() == SourceServer }, time.Second, 5*time.Millisecond)

	first.release <- queryResult{fc: collectionOf(listingAt("a", -79.5, 43.5, 1))}
	ctrl.Wait()

	assert.Equal(t, []string{"b"}, visibleIDs(store))
	assert.Equal(t, 1, store.TotalVisible())
}

func TestViewportController_OlderResponseFirstIsStillSuperseded(t *testing.T) {
	m := newFakeMap()
	q := newGatedQuerier()
	store := NewStore(nil)
	ctrl := NewViewportController(m, q, store, ViewportControllerConfig{})
	ctx := context.Background()

	m.setBounds(viewA)
	ctrl.NotifyMoveEnd(ctx, OriginUser)
	first := q.next(t)
	m.setBounds(viewB)
	ctrl.NotifyMoveEnd(ctx, OriginUser)
	second := q.next(t)

	first.release <- queryResult{fc: collectionOf(listingAt("a", -79.5, 43.5, 1))}
	second.release <- queryResult{fc: collectionOf(listingAt("b", -73.5, 45.5, 1))}
	ctrl.Wait()

	assert.Equal(t, []string{"b"}, visibleIDs(store))
}

func TestViewportController_StaleFailureDoesNotTriggerFallback(t *testing.T) {
	m := newFakeMap()
	q := newGatedQuerier()
	store := NewStore(nil)
	store.SetAll([]model.Listing{listingAt("a", -79.5, 43.5, 1)})
	ctrl := NewViewportController(m, q, store, ViewportControllerConfig{})
	ctx := context.Background()

	m.setBounds(viewA)
	ctrl.NotifyMoveEnd(ctx, OriginUser)
	first := q.next(t)
	m.setBounds(viewB)
	ctrl.NotifyMoveEnd(ctx, OriginUser)
	second := q.next(t)

	second.release <- queryResult{fc: collectionOf(listingAt("b", -73.5, 45.5, 1))}
	require.Eventually(t, func() bool { return store.Source() == SourceServer }, time.Second, 5*time.Millisecond)
	first.release <- queryResult{err: errors.New("boom")}
	ctrl.Wait()

	assert.Equal(t, SourceServer, store.Source())
	assert.Equal(t, []string{"b"}, visibleIDs(store))
}

func TestViewportController_ProgrammaticMovesDoNotQuery(t *testing.T) {
	m := newFakeMap()
	q := newGatedQuerier()
	store := NewStore(nil)
	ctrl := NewViewportController(m, q, store, ViewportControllerConfig{})
	ctx := context.Background()

	ctrl.FlyTo(model.Coordinates{Lng: -79.4, Lat: 43.7}, 15)
	ctrl.NotifyMoveEnd(ctx, OriginProgrammatic)

	// Libraries that cannot flag moves report OriginUnknown; pending flights
	// absorb those too.
	ctrl.FlyTo(model.Coordinates{Lng: -79.3, Lat: 43.6}, 15)
	ctrl.NotifyMoveEnd(ctx, OriginUnknown)

	ctrl.Wait()
	q.assertIdle(t)
	assert.Equal(t, uint64(0), ctrl.Generation())

	calls := m.cameraCalls()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].animate)
	assert.Equal(t, 15.0, calls[0].zoom)

	// With no flights pending, an unknown-origin move is a gesture.
	ctrl.NotifyMoveEnd(ctx, OriginUnknown)
	p := q.next(t)
	p.release <- queryResult{fc: collectionOf()}
	ctrl.Wait()
	assert.Equal(t, uint64(1), ctrl.Generation())
}

func TestViewportController_UnreportedFlightExpires(t *testing.T) {
	m := newFakeMap()
	q := newGatedQuerier()
	store := NewStore(nil)
	ctrl := NewViewportController(m, q, store, ViewportControllerConfig{FlightTimeout: time.Second})
	ctx := context.Background()

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ctrl.now = func() time.Time { return clock }

	// A flight to the current center ends without any move-end event.
	ctrl.FlyTo(model.Coordinates{Lng: -79.5, Lat: 43.5}, 15)

	clock = clock.Add(500 * time.Millisecond)
	ctrl.NotifyMoveEnd(ctx, OriginUnknown)
	ctrl.Wait()
	q.assertIdle(t)

	ctrl.FlyTo(model.Coordinates{Lng: -79.5, Lat: 43.5}, 15)
	clock = clock.Add(2 * time.Second)

	// The overdue flight no longer swallows the user's gesture.
	m.setBounds(viewA)
	ctrl.NotifyMoveEnd(ctx, OriginUnknown)
	p := q.next(t)
	assert.Equal(t, viewA, p.view)
	p.release <- queryResult{fc: collectionOf()}
	ctrl.Wait()
	assert.Equal(t, uint64(1), ctrl.Generation())
}

func TestViewportController_FallbackOnFailure(t *testing.T) {
	inside := listingAt("in", -79.5, 43.5, 100)
	outside := listingAt("out", -60, 10, 100)

	m := newFakeMap()
	m.setBounds(viewA)
	q := &staticQuerier{err: errors.New("connection refused")}
	store := NewStore(nil)
	store.SetAll([]model.Listing{inside, outside})
	ctrl := NewViewportController(m, q, store, ViewportControllerConfig{})

	ctrl.Refresh(context.Background())
	ctrl.Wait()

	assert.Equal(t, SourceFallback, store.Source())
	assert.Equal(t, []string{"in"}, visibleIDs(store))
	assert.Equal(t, 1, store.TotalVisible())
}

func TestViewportController_FallbackIsSubsetOfServerResult(t *testing.T) {
	server := []model.Listing{
		listingAt("a", -79.5, 43.5, 100),
		listingAt("b", -79.2, 43.9, 200),
		listingAt("c", -79.1, 43.1, 300),
		listingAt("far", -50, 10, 300),
	}
	known := []model.Listing{server[0], server[2], server[3]}

	run := func(err error) []string {
		m := newFakeMap()
		m.setBounds(viewA)
		store := NewStore(nil)
		store.SetAll(known)
		ctrl := NewViewportController(m, &staticQuerier{listings: server, err: err}, store, ViewportControllerConfig{})
		ctrl.Refresh(context.Background())
		ctrl.Wait()
		return visibleIDs(store)
	}

	ok := run(nil)
	fallback := run(errors.New("down"))
	assert.Equal(t, []string{"a", "b", "c"}, ok)
	assert.Subset(t, ok, fallback)
	assert.Equal(t, []string{"a", "c"}, fallback)
}

func TestViewportController_TimeoutFallsBack(t *testing.T) {
	m := newFakeMap()
	m.setBounds(viewA)
	q := newGatedQuerier()
	store := NewStore(nil)
	store.SetAll([]model.Listing{listingAt("a", -79.5, 43.5, 1)})
	store.SetVisible([]model.Listing{listingAt("old", -79.5, 43.5, 1)}, 1, SourceServer)
	ctrl := NewViewportController(m, q, store, ViewportControllerConfig{QueryTimeout: 20 * time.Millisecond})

	ctrl.Refresh(context.Background())
	q.next(t) // never released
	ctrl.Wait()

	assert.Equal(t, SourceFallback, store.Source())
	assert.Equal(t, []string{"a"}, visibleIDs(store))
}

func TestViewportController_SettleDebounce(t *testing.T) {
	m := newFakeMap()
	m.setBounds(viewA)
	q := &staticQuerier{}
	store := NewStore(nil)
	ctrl := NewViewportController(m, q, store, ViewportControllerConfig{SettleDelay: 30 * time.Millisecond})

	var settled []model.Viewport
	ctrl.OnUserViewportSettled(func(v model.Viewport) { settled = append(settled, v) })

	ctx := context.Background()
	for range 5 {
		ctrl.NotifyMoveEnd(ctx, OriginUser)
	}

	require.Eventually(t, func() bool { return q.calls() == 1 }, time.Second, 5*time.Millisecond)
	ctrl.Wait()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, q.calls())
	assert.Equal(t, []model.Viewport{viewA}, settled)
}

func TestViewportController_UsesStoreFilters(t *testing.T) {
	cheap := listingAt("cheap", -79.5, 43.5, 100_000)
	pricey := listingAt("pricey", -79.4, 43.4, 900_000)

	m := newFakeMap()
	m.setBounds(viewA)
	store := NewStore(nil)
	minPrice := 500_000.0
	store.SetFilters(model.FilterCriteria{MinPrice: &minPrice})
	ctrl := NewViewportController(m, &staticQuerier{listings: []model.Listing{cheap, pricey}}, store, ViewportControllerConfig{})

	ctrl.Refresh(context.Background())
	ctrl.Wait()
	assert.Equal(t, []string{"pricey"}, visibleIDs(store))
}
