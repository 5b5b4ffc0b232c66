package listing

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mmcloughlin/geohash"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/property-map/internal/db"
	"github.com/sells-group/property-map/internal/model"
)

const listingColumns = `id, listing_id, longitude, latitude, price, bedrooms, bathrooms,
       property_type, city, province, street_address, postal_code,
       photo_url, all_photos, created_at, last_updated`

// PostgresRepository implements Repository on PostGIS. Bounds queries use the
// GiST index on geom through the && operator.
type PostgresRepository struct {
	pool db.Pool
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(pool db.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// InBounds implements Repository.
func (r *PostgresRepository) InBounds(ctx context.Context, v model.Viewport, f model.FilterCriteria) ([]model.Listing, error) {
	qb := newQueryBuilder()
	// && only compares bounding boxes; the column checks make the edges inclusive.
	qb.add("geom && ST_MakeEnvelope($%[1]d, $%[2]d, $%[3]d, $%[4]d, 4326)"+
		" AND longitude BETWEEN $%[1]d AND $%[3]d AND latitude BETWEEN $%[2]d AND $%[4]d",
		v.SouthWest.Lng, v.SouthWest.Lat, v.NorthEast.Lng, v.NorthEast.Lat)
	qb.addFilters(f)

	sql := "SELECT " + listingColumns + " FROM listings.listings " + qb.where() + " ORDER BY id"
	rows, err := r.pool.Query(ctx, sql, qb.args...)
	if err != nil {
		return nil, eris.Wrap(err, "listing: query in bounds")
	}
	return collectListings(rows)
}

// Get implements Repository.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*model.Listing, error) {
	sql := "SELECT " + listingColumns + " FROM listings.listings WHERE id = $1 AND status = 'active'"
	l, err := scanListing(r.pool.QueryRow(ctx, sql, id))
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "listing: get")
	}
	return &l, nil
}

// SimilarCandidates implements Repository.
func (r *PostgresRepository) SimilarCandidates(ctx context.Context, ref model.Listing, low, high float64) ([]model.Listing, error) {
	qb := newQueryBuilder()
	qb.add("id <> $%d", ref.ID)
	qb.add("property_type = $%d", string(ref.PropertyType))
	qb.add("price_value BETWEEN $%d AND $%d", low, high)

	sql := "SELECT " + listingColumns + " FROM listings.listings " + qb.where() + " ORDER BY last_updated DESC"
	rows, err := r.pool.Query(ctx, sql, qb.args...)
	if err != nil {
		return nil, eris.Wrap(err, "listing: query similar candidates")
	}
	return collectListings(rows)
}

// Upsert implements Repository.
func (r *PostgresRepository) Upsert(ctx context.Context, l model.Listing) error {
	point, err := encodePoint(l.Coordinates)
	if err != nil {
		return err
	}
	photos, err := json.Marshal(l.AllPhotos)
	if err != nil {
		return eris.Wrap(err, "listing: encode photos")
	}
	created, updated := timestamps(l)

	sql := `
		INSERT INTO listings.listings (id, listing_id, geom, longitude, latitude, geohash, price,
			bedrooms, bathrooms, property_type, city, province, street_address, postal_code,
			photo_url, all_photos, status, created_at, last_updated)
		VALUES ($1, $2, ST_GeomFromEWKB($3), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 'active', $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			listing_id = EXCLUDED.listing_id,
			geom = EXCLUDED.geom,
			longitude = EXCLUDED.longitude,
			latitude = EXCLUDED.latitude,
			geohash = EXCLUDED.geohash,
			price = EXCLUDED.price,
			bedrooms = EXCLUDED.bedrooms,
			bathrooms = EXCLUDED.bathrooms,
			property_type = EXCLUDED.property_type,
			city = EXCLUDED.city,
			province = EXCLUDED.province,
			street_address = EXCLUDED.street_address,
			postal_code = EXCLUDED.postal_code,
			photo_url = EXCLUDED.photo_url,
			all_photos = EXCLUDED.all_photos,
			status = 'active',
			last_updated = EXCLUDED.last_updated
	`
	_, err = r.pool.Exec(ctx, sql,
		l.ID, l.ListingID, point, l.Coordinates.Lng, l.Coordinates.Lat,
		geohash.Encode(l.Coordinates.Lat, l.Coordinates.Lng), priceText(l.Price),
		l.BedroomCount, l.BathroomCount, string(l.PropertyType), l.City, l.Province,
		l.StreetAddress, l.PostalCode, l.PhotoURL, photos, created, updated,
	)
	return eris.Wrap(err, "listing: upsert")
}

// encodePoint converts coordinates to EWKB with SRID 4326.
func encodePoint(c model.Coordinates) ([]byte, error) {
	g := geom.NewPointFlat(geom.XY, []float64{c.Lng, c.Lat}).SetSRID(4326)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "listing: encode point")
	}
	return data, nil
}

// priceText renders the stored textual price. Unusable prices are stored empty.
func priceText(p float64) string {
	if p != p {
		return ""
	}
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func timestamps(l model.Listing) (time.Time, time.Time) {
	now := time.Now().UTC()
	created, updated := l.CreatedAt, l.LastUpdated
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = created
	}
	return created, updated
}

func collectListings(rows pgx.Rows) ([]model.Listing, error) {
	defer rows.Close()

	listings := make([]model.Listing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "listing: scan row")
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "listing: iterate rows")
	}
	return listings, nil
}

func scanListing(row pgx.Row) (model.Listing, error) {
	var (
		l      model.Listing
		price  string
		ptype  string
		photos []byte
	)
	err := row.Scan(
		&l.ID, &l.ListingID, &l.Coordinates.Lng, &l.Coordinates.Lat, &price,
		&l.BedroomCount, &l.BathroomCount, &ptype, &l.City, &l.Province,
		&l.StreetAddress, &l.PostalCode, &l.PhotoURL, &photos,
		&l.CreatedAt, &l.LastUpdated,
	)
	if err != nil {
		return model.Listing{}, err
	}
	l.Price = model.ParsePrice(price)
	l.PropertyType = model.PropertyType(ptype)
	if err := decodePhotos(photos, &l); err != nil {
		return model.Listing{}, err
	}
	return l, nil
}

func decodePhotos(raw []byte, l *model.Listing) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, &l.AllPhotos); err != nil {
		return eris.Wrapf(err, "listing: decode photos for %s", l.ID)
	}
	return nil
}
