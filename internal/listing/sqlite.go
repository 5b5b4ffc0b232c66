package listing

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/mmcloughlin/geohash"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/property-map/internal/model"
)

// SQLiteRepository implements Repository on modernc.org/sqlite. It backs local
// development and end-to-end tests; coordinates are range-filtered on plain
// columns, narrowed by a geohash prefix scan instead of a spatial index.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens a SQLite database at dsn and configures WAL mode.
func NewSQLiteRepository(dsn string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "listing: sqlite open")
	}
	if strings.Contains(dsn, ":memory:") {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "listing: sqlite exec %s", pragma)
		}
	}
	return &SQLiteRepository{db: db}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS listings (
	id             TEXT PRIMARY KEY,
	listing_id     TEXT NOT NULL DEFAULT '',
	longitude      REAL NOT NULL,
	latitude       REAL NOT NULL,
	geohash        TEXT NOT NULL DEFAULT '',
	price          TEXT NOT NULL DEFAULT '',
	price_value    REAL,
	bedrooms       INTEGER NOT NULL DEFAULT 0,
	bathrooms      REAL NOT NULL DEFAULT 0,
	property_type  TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	province       TEXT NOT NULL DEFAULT '',
	street_address TEXT NOT NULL DEFAULT '',
	postal_code    TEXT NOT NULL DEFAULT '',
	photo_url      TEXT NOT NULL DEFAULT '',
	all_photos     TEXT,
	status         TEXT NOT NULL DEFAULT 'active',
	created_at     INTEGER NOT NULL,
	last_updated   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_listings_lng_lat ON listings(longitude, latitude);
CREATE INDEX IF NOT EXISTS idx_listings_type_price ON listings(property_type, price_value);
CREATE INDEX IF NOT EXISTS idx_listings_geohash ON listings(geohash);
`

// Migrate creates the listings table if needed.
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, sqliteSchema)
	return eris.Wrap(err, "listing: sqlite migrate")
}

// Close closes the underlying database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

const sqliteColumns = `id, listing_id, longitude, latitude, price, bedrooms, bathrooms,
       property_type, city, province, street_address, postal_code,
       photo_url, all_photos, created_at, last_updated`

// InBounds implements Repository.
func (r *SQLiteRepository) InBounds(ctx context.Context, v model.Viewport, f model.FilterCriteria) ([]model.Listing, error) {
	conds := []string{
		"status = 'active'",
		"longitude >= ?", "longitude <= ?",
		"latitude >= ?", "latitude <= ?",
	}
	args := []any{v.SouthWest.Lng, v.NorthEast.Lng, v.SouthWest.Lat, v.NorthEast.Lat}
	if cell := geohashCover(v); cell != "" {
		conds = append(conds, "geohash >= ?", "geohash < ?")
		args = append(args, cell, cell+geohashUpperBound)
	}
	if f.MinPrice != nil {
		conds = append(conds, "price_value >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price_value <= ?")
		args = append(args, *f.MaxPrice)
	}
	if f.MinBedrooms != nil {
		conds = append(conds, "bedrooms >= ?")
		args = append(args, *f.MinBedrooms)
	}
	if f.PropertyType != "" {
		conds = append(conds, "property_type = ?")
		args = append(args, string(f.PropertyType))
	}

	q := "SELECT " + sqliteColumns + " FROM listings WHERE " + strings.Join(conds, " AND ") + " ORDER BY id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "listing: sqlite query in bounds")
	}
	return collectSQLiteListings(rows)
}

// Get implements Repository.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*model.Listing, error) {
	q := "SELECT " + sqliteColumns + " FROM listings WHERE id = ? AND status = 'active'"
	l, err := scanSQLiteListing(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "listing: sqlite get")
	}
	return &l, nil
}

// SimilarCandidates implements Repository.
func (r *SQLiteRepository) SimilarCandidates(ctx context.Context, ref model.Listing, low, high float64) ([]model.Listing, error) {
	q := "SELECT " + sqliteColumns + ` FROM listings
		WHERE status = 'active' AND id <> ? AND property_type = ? AND price_value BETWEEN ? AND ?
		ORDER BY last_updated DESC`
	rows, err := r.db.QueryContext(ctx, q, ref.ID, string(ref.PropertyType), low, high)
	if err != nil {
		return nil, eris.Wrap(err, "listing: sqlite query similar candidates")
	}
	return collectSQLiteListings(rows)
}

// Upsert implements Repository.
func (r *SQLiteRepository) Upsert(ctx context.Context, l model.Listing) error {
	photos, err := json.Marshal(l.AllPhotos)
	if err != nil {
		return eris.Wrap(err, "listing: encode photos")
	}
	created, updated := timestamps(l)

	var priceValue any
	if l.HasPrice() {
		priceValue = l.Price
	}

	q := `
		INSERT INTO listings (id, listing_id, longitude, latitude, geohash, price, price_value,
			bedrooms, bathrooms, property_type, city, province, street_address, postal_code,
			photo_url, all_photos, status, created_at, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'active', ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			listing_id = excluded.listing_id,
			longitude = excluded.longitude,
			latitude = excluded.latitude,
			geohash = excluded.geohash,
			price = excluded.price,
			price_value = excluded.price_value,
			bedrooms = excluded.bedrooms,
			bathrooms = excluded.bathrooms,
			property_type = excluded.property_type,
			city = excluded.city,
			province = excluded.province,
			street_address = excluded.street_address,
			postal_code = excluded.postal_code,
			photo_url = excluded.photo_url,
			all_photos = excluded.all_photos,
			status = 'active',
			last_updated = excluded.last_updated
	`
	_, err = r.db.ExecContext(ctx, q,
		l.ID, l.ListingID, l.Coordinates.Lng, l.Coordinates.Lat,
		geohash.Encode(l.Coordinates.Lat, l.Coordinates.Lng), priceText(l.Price), priceValue,
		l.BedroomCount, l.BathroomCount, string(l.PropertyType), l.City, l.Province,
		l.StreetAddress, l.PostalCode, l.PhotoURL, string(photos),
		created.UnixMilli(), updated.UnixMilli(),
	)
	return eris.Wrap(err, "listing: sqlite upsert")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func collectSQLiteListings(rows *sql.Rows) ([]model.Listing, error) {
	defer rows.Close()

	listings := make([]model.Listing, 0)
	for rows.Next() {
		l, err := scanSQLiteListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "listing: sqlite scan row")
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "listing: sqlite iterate rows")
	}
	return listings, nil
}

func scanSQLiteListing(row rowScanner) (model.Listing, error) {
	var (
		l                model.Listing
		price, ptype     string
		photos           sql.NullString
		created, updated int64
	)
	err := row.Scan(
		&l.ID, &l.ListingID, &l.Coordinates.Lng, &l.Coordinates.Lat, &price,
		&l.BedroomCount, &l.BathroomCount, &ptype, &l.City, &l.Province,
		&l.StreetAddress, &l.PostalCode, &l.PhotoURL, &photos,
		&created, &updated,
	)
	if err != nil {
		return model.Listing{}, err
	}
	l.Price = model.ParsePrice(price)
	l.PropertyType = model.PropertyType(ptype)
	l.CreatedAt = time.UnixMilli(created).UTC()
	l.LastUpdated = time.UnixMilli(updated).UTC()
	if photos.Valid {
		if err := decodePhotos([]byte(photos.String), &l); err != nil {
			return model.Listing{}, err
		}
	}
	return l, nil
}
