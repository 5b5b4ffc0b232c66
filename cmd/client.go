package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/property-map/internal/config"
	"github.com/sells-group/property-map/internal/model"
	"github.com/sells-group/property-map/internal/resilience"
	"github.com/sells-group/property-map/pkg/listingclient"
)

func newListingClient(c config.ClientConfig, timeout time.Duration) *listingclient.Client {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = c.MaxAttempts
	retry.OnRetry = resilience.RetryLogger("listing api")

	opts := []listingclient.Option{
		listingclient.WithRateLimit(c.RateLimit),
		listingclient.WithRetry(retry),
		listingclient.WithToken(c.Token),
	}
	if timeout > 0 {
		opts = append(opts, listingclient.WithHTTPClient(&http.Client{Timeout: timeout}))
	}
	return listingclient.New(c.BaseURL, opts...)
}

// writeListings renders listings as a table, JSON, or YAML.
func writeListings(w io.Writer, format string, listings []model.Listing, now time.Time) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(listings)
	case "yaml":
		out := make([]listingRow, 0, len(listings))
		for _, l := range listings {
			out = append(out, rowFor(l, now))
		}
		return yaml.NewEncoder(w).Encode(out)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tPRICE\tTYPE\tBEDS\tBATHS\tADDRESS\tUPDATED")
		for _, l := range listings {
			r := rowFor(l, now)
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%g\t%s\t%s\n",
				r.ID, r.Price, r.Type, r.Bedrooms, r.Bathrooms, r.Address, r.Updated)
		}
		return tw.Flush()
	default:
		return eris.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

type listingRow struct {
	ID        string  `yaml:"id"`
	Price     string  `yaml:"price"`
	Type      string  `yaml:"type"`
	Bedrooms  int     `yaml:"bedrooms"`
	Bathrooms float64 `yaml:"bathrooms"`
	Address   string  `yaml:"address"`
	Lng       float64 `yaml:"lng"`
	Lat       float64 `yaml:"lat"`
	Updated   string  `yaml:"updated"`
}

func rowFor(l model.Listing, now time.Time) listingRow {
	addr := l.StreetAddress
	if l.City != "" {
		addr += ", " + l.City
	}
	updated := ""
	if !l.LastUpdated.IsZero() {
		updated = model.TimeAgo(l.LastUpdated, now)
	}
	return listingRow{
		ID:        l.ID,
		Price:     model.FormatPriceLabel(l.Price),
		Type:      string(l.PropertyType),
		Bedrooms:  l.BedroomCount,
		Bathrooms: l.BathroomCount,
		Address:   addr,
		Lng:       l.Coordinates.Lng,
		Lat:       l.Coordinates.Lat,
		Updated:   updated,
	}
}
