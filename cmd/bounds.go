package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/property-map/internal/mapview"
	"github.com/sells-group/property-map/internal/model"
)

var (
	boundsSW           string
	boundsNE           string
	boundsMinPrice     float64
	boundsMaxPrice     float64
	boundsBedrooms     int
	boundsType         string
	boundsOutput       string
	boundsSavedFilters bool
)

var boundsCmd = &cobra.Command{
	Use:   "bounds",
	Short: "Query listings inside a viewport",
	Example: `  propmap bounds --sw -79.5,43.6 --ne -79.3,43.7 --min-price 500000
  propmap bounds --sw -79.5,43.6 --ne -79.3,43.7 --saved-filters -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("client"); err != nil {
			return err
		}
		v, err := parseViewport(boundsSW, boundsNE)
		if err != nil {
			return err
		}

		var f model.FilterCriteria
		if boundsSavedFilters {
			f = mapview.NewStore(mapview.NewFilePersister(cfg.Mapview.StatePath)).Filters()
		}
		flags := cmd.Flags()
		if flags.Changed("min-price") {
			f.MinPrice = &boundsMinPrice
		}
		if flags.Changed("max-price") {
			f.MaxPrice = &boundsMaxPrice
		}
		if flags.Changed("bedrooms") {
			f.MinBedrooms = &boundsBedrooms
		}
		if boundsType != "" {
			f.PropertyType = model.PropertyType(boundsType)
		}

		client := newListingClient(cfg.Client, cfg.Query.ClientTimeout())
		fc, err := client.QueryInBounds(cmd.Context(), v, f)
		if err != nil {
			return eris.Wrap(err, "bounds query")
		}
		zap.L().Debug("bounds query complete",
			zap.Int("features", len(fc.Features)),
			zap.Int("total_count", fc.TotalCount),
		)
		return writeListings(cmd.OutOrStdout(), boundsOutput, fc.Features, time.Now())
	},
}

func init() {
	f := boundsCmd.Flags()
	f.StringVar(&boundsSW, "sw", "", "southwest corner as lng,lat")
	f.StringVar(&boundsNE, "ne", "", "northeast corner as lng,lat")
	f.Float64Var(&boundsMinPrice, "min-price", 0, "minimum price")
	f.Float64Var(&boundsMaxPrice, "max-price", 0, "maximum price")
	f.IntVar(&boundsBedrooms, "bedrooms", 0, "minimum bedroom count")
	f.StringVar(&boundsType, "type", "", "property type (House, Condo, Townhouse, Apartment, Land)")
	f.StringVarP(&boundsOutput, "output", "o", "table", "output format: table, json or yaml")
	f.BoolVar(&boundsSavedFilters, "saved-filters", false, "start from the filters saved by the map view")
	_ = boundsCmd.MarkFlagRequired("sw")
	_ = boundsCmd.MarkFlagRequired("ne")
	rootCmd.AddCommand(boundsCmd)
}

// parseViewport reads "lng,lat" corner strings.
func parseViewport(sw, ne string) (model.Viewport, error) {
	swLng, swLat, err := parseCorner(sw)
	if err != nil {
		return model.Viewport{}, eris.Wrap(err, "--sw")
	}
	neLng, neLat, err := parseCorner(ne)
	if err != nil {
		return model.Viewport{}, eris.Wrap(err, "--ne")
	}
	return model.NewViewport(swLng, swLat, neLng, neLat), nil
}

func parseCorner(s string) (lng, lat float64, err error) {
	a, b, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, eris.Errorf("corner %q must be lng,lat", s)
	}
	if lng, err = strconv.ParseFloat(strings.TrimSpace(a), 64); err != nil {
		return 0, 0, eris.Wrapf(err, "parse longitude %q", a)
	}
	if lat, err = strconv.ParseFloat(strings.TrimSpace(b), 64); err != nil {
		return 0, 0, eris.Wrapf(err, "parse latitude %q", b)
	}
	return lng, lat, nil
}
