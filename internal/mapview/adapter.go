// Package mapview keeps an interactive map, its marker layer, and a paired
// listing list consistent with the set of listings inside the viewport.
//
// The map library itself sits behind MapAdapter. The ViewportController owns
// the camera, the MarkerManager owns the marker layer, and the Store holds the
// listing state both of them render from.
package mapview

import (
	"context"

	"github.com/sells-group/property-map/internal/model"
)

// MarkerStyle is the visual emphasis applied to a marker. Hovered and
// Selected are independent.
type MarkerStyle struct {
	Hovered  bool
	Selected bool
}

// MarkerSpec describes a marker to place on the map.
type MarkerSpec struct {
	ID       string
	Position model.Coordinates
	Label    string
}

// PopupContent is what a marker's popup shows.
type PopupContent struct {
	Title    string
	Subtitle string
	PhotoURL string
	Price    string
}

// MapAdapter is the narrow surface of the mapping library used by this
// package. Implementations must tolerate calls from any goroutine.
type MapAdapter interface {
	// Bounds returns the rectangle currently visible.
	Bounds() model.Viewport

	// SetCamera moves the camera. Animated moves are flights.
	SetCamera(center model.Coordinates, zoom float64, animate bool)

	// AddMarker places a marker; onClick runs when the user clicks it.
	AddMarker(spec MarkerSpec, onClick func())

	// RemoveMarker removes a marker and any popup attached to it.
	RemoveMarker(id string)

	// SetMarkerStyle updates a marker's emphasis.
	SetMarkerStyle(id string, style MarkerStyle)

	// OpenPopup opens the popup bound to a marker.
	OpenPopup(id string, content PopupContent)

	// ClosePopup closes the popup bound to a marker.
	ClosePopup(id string)
}

// BoundsQuerier runs the viewport bounds query.
type BoundsQuerier interface {
	QueryInBounds(ctx context.Context, v model.Viewport, f model.FilterCriteria) (model.FeatureCollection, error)
}

// SimilarQuerier fetches listings comparable to a reference listing.
type SimilarQuerier interface {
	FindSimilar(ctx context.Context, id string, limit int) ([]model.Listing, error)
}

// ListView is the scrollable list paired with the map.
type ListView interface {
	// ShowPage switches the list to a 1-based page.
	ShowPage(page int)

	// ScrollIntoView scrolls the card for id into view.
	ScrollIntoView(id string)
}
