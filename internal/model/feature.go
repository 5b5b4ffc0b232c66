package model

import (
	"encoding/json"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// FeatureCollection is the bounds query result: the matching listings plus the
// server-reported match count.
type FeatureCollection struct {
	Features   []Listing
	TotalCount int
}

type featureCollectionJSON struct {
	Type       string             `json:"type"`
	Features   []*geojson.Feature `json:"features"`
	TotalCount int                `json:"totalCount"`
}

// MarshalJSON encodes the collection as a GeoJSON FeatureCollection with a
// totalCount member.
func (fc FeatureCollection) MarshalJSON() ([]byte, error) {
	out := featureCollectionJSON{
		Type:       "FeatureCollection",
		Features:   make([]*geojson.Feature, 0, len(fc.Features)),
		TotalCount: fc.TotalCount,
	}
	for _, l := range fc.Features {
		f, err := l.Feature()
		if err != nil {
			return nil, err
		}
		out.Features = append(out.Features, f)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a GeoJSON FeatureCollection produced by MarshalJSON.
func (fc *FeatureCollection) UnmarshalJSON(data []byte) error {
	var in featureCollectionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return eris.Wrap(err, "model: decode feature collection")
	}
	fc.TotalCount = in.TotalCount
	fc.Features = make([]Listing, 0, len(in.Features))
	for _, f := range in.Features {
		l, err := ListingFromFeature(f)
		if err != nil {
			return err
		}
		fc.Features = append(fc.Features, l)
	}
	return nil
}

// Feature converts the listing into a GeoJSON point feature. Coordinates move
// into the geometry; every other attribute becomes a property.
func (l Listing) Feature() (*geojson.Feature, error) {
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, eris.Wrapf(err, "model: encode listing %s", l.ID)
	}
	props := make(map[string]any)
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, eris.Wrapf(err, "model: listing %s properties", l.ID)
	}
	delete(props, "coordinates")
	return &geojson.Feature{
		ID:         l.ID,
		Geometry:   geom.NewPointFlat(geom.XY, []float64{l.Coordinates.Lng, l.Coordinates.Lat}),
		Properties: props,
	}, nil
}

// ListingFromFeature is the inverse of Listing.Feature.
func ListingFromFeature(f *geojson.Feature) (Listing, error) {
	if f == nil {
		return Listing{}, eris.New("model: nil feature")
	}
	raw, err := json.Marshal(f.Properties)
	if err != nil {
		return Listing{}, eris.Wrap(err, "model: encode feature properties")
	}
	var l Listing
	if err := json.Unmarshal(raw, &l); err != nil {
		return Listing{}, eris.Wrap(err, "model: decode feature properties")
	}
	if l.ID == "" {
		l.ID = f.ID
	}
	pt, ok := f.Geometry.(*geom.Point)
	if !ok {
		return Listing{}, eris.Errorf("model: feature %s geometry is not a point", f.ID)
	}
	l.Coordinates = Coordinates{Lng: pt.X(), Lat: pt.Y()}
	return l, nil
}

type listingAlias Listing

type listingJSON struct {
	listingAlias
	Price *float64 `json:"price"`
}

// MarshalJSON writes an unusable price as null instead of failing on NaN.
func (l Listing) MarshalJSON() ([]byte, error) {
	out := listingJSON{listingAlias: listingAlias(l)}
	if l.HasPrice() {
		p := l.Price
		out.Price = &p
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a null or missing price back as NaN.
func (l *Listing) UnmarshalJSON(data []byte) error {
	var in listingJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*l = Listing(in.listingAlias)
	if in.Price == nil {
		l.Price = math.NaN()
	} else {
		l.Price = *in.Price
	}
	return nil
}
