package listing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/property-map/internal/model"
)

// BoundsCache holds recent bounds query results keyed by the exact viewport
// and filter set. Entries expire after a short TTL so newly written listings
// show up without explicit invalidation.
type BoundsCache struct {
	impl *ristretto.Cache[string, model.FeatureCollection]
	ttl  time.Duration
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// NewBoundsCache creates a cache bounded to roughly maxFeatures cached listings.
func NewBoundsCache(maxFeatures int64, ttl time.Duration) (*BoundsCache, error) {
	if maxFeatures <= 0 {
		maxFeatures = 100_000
	}
	impl, err := ristretto.NewCache(&ristretto.Config[string, model.FeatureCollection]{
		NumCounters: maxFeatures * 10,
		MaxCost:     maxFeatures,
		BufferItems: 64,
		Metrics:     true,
		Cost: func(fc model.FeatureCollection) int64 {
			return int64(len(fc.Features)) + 1
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "listing: create bounds cache")
	}
	return &BoundsCache{impl: impl, ttl: ttl}, nil
}

// Get returns the cached result for v and f, if present.
func (c *BoundsCache) Get(v model.Viewport, f model.FilterCriteria) (model.FeatureCollection, bool) {
	return c.impl.Get(boundsKey(v, f))
}

// Put stores a result. It waits for the write buffer so an immediate Get
// observes the entry.
func (c *BoundsCache) Put(v model.Viewport, f model.FilterCriteria, fc model.FeatureCollection) {
	c.impl.SetWithTTL(boundsKey(v, f), fc, 0, c.ttl)
	c.impl.Wait()
}

// Close releases the cache's background goroutines.
func (c *BoundsCache) Close() {
	c.impl.Close()
}

// Stats returns cache performance statistics.
func (c *BoundsCache) Stats() CacheStats {
	m := c.impl.Metrics
	hits, misses := m.Hits(), m.Misses()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return CacheStats{Hits: hits, Misses: misses, HitRate: rate}
}

func boundsKey(v model.Viewport, f model.FilterCriteria) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s,%s,%s,%s",
		fmtFloat(v.SouthWest.Lng), fmtFloat(v.SouthWest.Lat),
		fmtFloat(v.NorthEast.Lng), fmtFloat(v.NorthEast.Lat))
	if f.IsEmpty() {
		return b.String()
	}
	b.WriteString("|")
	if f.MinPrice != nil {
		b.WriteString(fmtFloat(*f.MinPrice))
	}
	b.WriteString("|")
	if f.MaxPrice != nil {
		b.WriteString(fmtFloat(*f.MaxPrice))
	}
	b.WriteString("|")
	if f.MinBedrooms != nil {
		b.WriteString(strconv.Itoa(*f.MinBedrooms))
	}
	b.WriteString("|")
	b.WriteString(string(f.PropertyType))
	return b.String()
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
