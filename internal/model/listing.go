package model

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// PropertyType classifies a listing. Values are compared exactly as stored.
type PropertyType string

const (
	PropertyTypeHouse     PropertyType = "House"
	PropertyTypeCondo     PropertyType = "Condo"
	PropertyTypeTownhouse PropertyType = "Townhouse"
	PropertyTypeApartment PropertyType = "Apartment"
	PropertyTypeLand      PropertyType = "Land"
)

// Coordinates is a WGS84 position in degrees.
type Coordinates struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Photo is one labelled entry of a listing's ordered photo set.
type Photo struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Listing is a single property record with location, price, and descriptive attributes.
type Listing struct {
	ID            string       `json:"id"`
	ListingID     string       `json:"listingId,omitempty"`
	Coordinates   Coordinates  `json:"coordinates"`
	Price         float64      `json:"price"`
	BedroomCount  int          `json:"bedroomCount"`
	BathroomCount float64      `json:"bathroomCount"`
	PropertyType  PropertyType `json:"propertyType"`
	City          string       `json:"city,omitempty"`
	Province      string       `json:"province,omitempty"`
	StreetAddress string       `json:"streetAddress,omitempty"`
	PostalCode    string       `json:"postalCode,omitempty"`
	PhotoURL      string       `json:"photoUrl,omitempty"`
	AllPhotos     []Photo      `json:"allPhotos,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	LastUpdated   time.Time    `json:"lastUpdated"`
}

// HasPrice reports whether the listing carries a usable numeric price.
func (l Listing) HasPrice() bool {
	return !math.IsNaN(l.Price) && !math.IsInf(l.Price, 0)
}

// ParsePrice converts a stored textual price ("$1,250,000", " 499000.00 ")
// into a float. Unparsable or empty input yields NaN.
func ParsePrice(raw string) float64 {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', ' ', '\t', '\n', '_':
			return -1
		}
		return r
	}, raw)
	if cleaned == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// FilterCriteria are optional, conjunctive listing filters. Nil pointers and
// an empty PropertyType mean "no constraint".
type FilterCriteria struct {
	MinPrice     *float64     `json:"minPrice,omitempty" yaml:"min_price,omitempty"`
	MaxPrice     *float64     `json:"maxPrice,omitempty" yaml:"max_price,omitempty"`
	MinBedrooms  *int         `json:"minBedrooms,omitempty" yaml:"min_bedrooms,omitempty"`
	PropertyType PropertyType `json:"propertyType,omitempty" yaml:"property_type,omitempty"`
}

// IsEmpty reports whether no filter is set.
func (f FilterCriteria) IsEmpty() bool {
	return f.MinPrice == nil && f.MaxPrice == nil && f.MinBedrooms == nil && f.PropertyType == ""
}

// Matches reports whether l satisfies every supplied filter. A listing
// without a usable price never satisfies a price filter.
func (f FilterCriteria) Matches(l Listing) bool {
	if f.MinPrice != nil && (!l.HasPrice() || l.Price < *f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && (!l.HasPrice() || l.Price > *f.MaxPrice) {
		return false
	}
	if f.MinBedrooms != nil && l.BedroomCount < *f.MinBedrooms {
		return false
	}
	if f.PropertyType != "" && l.PropertyType != f.PropertyType {
		return false
	}
	return true
}

// FilterInBounds returns the listings of src inside v that pass f, preserving
// order. It is the same containment rule the bounds query applies server-side.
func FilterInBounds(src []Listing, v Viewport, f FilterCriteria) []Listing {
	v = v.Sanitize()
	out := make([]Listing, 0, len(src))
	for _, l := range src {
		if v.Contains(l.Coordinates) && f.Matches(l) {
			out = append(out, l)
		}
	}
	return out
}

// IndexOf returns the position of the listing with the given id, or -1.
func IndexOf(listings []Listing, id string) int {
	for i, l := range listings {
		if l.ID == id {
			return i
		}
	}
	return -1
}
