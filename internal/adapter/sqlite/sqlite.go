// Package sqlite provides a SpotStore on a local SQLite database via
// modernc.org/sqlite. The driver is pure Go, so the binary stays portable.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/curbdata/parking-aggregator/internal/domain"
	"github.com/curbdata/parking-aggregator/internal/geo"
)

// metersPerDegree approximates one degree of latitude.
const metersPerDegree = 111320.0

const schema = `
CREATE TABLE IF NOT EXISTS spots (
	id                  TEXT PRIMARY KEY,
	latitude            REAL NOT NULL,
	longitude           REAL NOT NULL,
	address             TEXT NOT NULL DEFAULT '',
	spot_type           TEXT NOT NULL,
	capacity            INTEGER NOT NULL,
	primary_source      TEXT NOT NULL,
	source_id           TEXT NOT NULL DEFAULT '',
	confidence          REAL NOT NULL,
	verified_sources    TEXT NOT NULL DEFAULT '[]',
	regulations         TEXT NOT NULL DEFAULT '{}',
	needs_verification  INTEGER NOT NULL DEFAULT 0,
	available_spaces    INTEGER NOT NULL DEFAULT 0,
	currently_available INTEGER NOT NULL DEFAULT 0,
	user_confirmations  INTEGER NOT NULL DEFAULT 0,
	verified            INTEGER NOT NULL DEFAULT 0,
	last_status_update  INTEGER NOT NULL DEFAULT 0,
	is_active           INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_spots_lat_lon ON spots(latitude, longitude);
`

const spotColumns = `id, latitude, longitude, address, spot_type, capacity,
	primary_source, source_id, confidence, verified_sources, regulations,
	needs_verification, available_spaces, currently_available,
	user_confirmations, verified, last_status_update`

const upsertSQL = `
INSERT INTO spots (id, latitude, longitude, address, spot_type, capacity,
	primary_source, source_id, confidence, verified_sources, regulations,
	needs_verification, available_spaces, currently_available,
	user_confirmations, verified, last_status_update)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	latitude=excluded.latitude, longitude=excluded.longitude,
	address=excluded.address, spot_type=excluded.spot_type,
	capacity=excluded.capacity, primary_source=excluded.primary_source,
	source_id=excluded.source_id, confidence=excluded.confidence,
	verified_sources=excluded.verified_sources,
	regulations=excluded.regulations,
	needs_verification=excluded.needs_verification,
	available_spaces=excluded.available_spaces,
	currently_available=excluded.currently_available,
	user_confirmations=excluded.user_confirmations,
	verified=excluded.verified,
	last_status_update=excluded.last_status_update,
	is_active=1`

// Store is a domain.SpotStore backed by a SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path, switches it to WAL
// mode, and bootstraps the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertSpots writes the batch in one transaction: either every spot in the
// batch lands or none does, which keeps retried batches idempotent. Writing
// over a deactivated row reactivates it: being re-observed by a source means
// the spot exists again.
func (s *Store) UpsertSpots(ctx context.Context, spots []domain.ParkingSpot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, spot := range spots {
		args, err := upsertArgs(spot)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("upsert spot %s: %w", spot.ID, err)
		}
	}
	return tx.Commit()
}

// FindNearby selects candidates with a bounding-box prefilter on the
// indexed coordinate columns, then applies the exact haversine check in Go.
func (s *Store) FindNearby(ctx context.Context, lat, lon, radiusMeters float64) ([]domain.ParkingSpot, error) {
	latDelta := radiusMeters / metersPerDegree
	lonDelta := latDelta
	// Longitude degrees shrink toward the poles; widen the box accordingly.
	if cosLat := math.Cos(lat * math.Pi / 180); cosLat > 0.01 {
		lonDelta = latDelta / cosLat
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+spotColumns+` FROM spots
		 WHERE is_active = 1
		   AND latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?`,
		lat-latDelta, lat+latDelta, lon-lonDelta, lon+lonDelta,
	)
	if err != nil {
		return nil, fmt.Errorf("query nearby spots: %w", err)
	}
	defer rows.Close()

	origin := geo.Point{Latitude: lat, Longitude: lon}
	var out []domain.ParkingSpot
	for rows.Next() {
		spot, err := scanSpot(rows)
		if err != nil {
			return nil, err
		}
		if geo.Distance(origin, spot.Point()) <= radiusMeters {
			out = append(out, spot)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nearby spots: %w", err)
	}
	return out, nil
}

// GetByID returns the active spot with the given ID.
func (s *Store) GetByID(ctx context.Context, id string) (domain.ParkingSpot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+spotColumns+` FROM spots WHERE id = ? AND is_active = 1`, id,
	)
	spot, err := scanSpot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ParkingSpot{}, fmt.Errorf("spot %q: %w", id, domain.ErrSpotNotFound)
	}
	return spot, err
}

// Update reads the spot, applies the partial update, and writes it back, all
// in one transaction so concurrent updates cannot interleave.
func (s *Store) Update(ctx context.Context, id string, update domain.SpotUpdate) (domain.ParkingSpot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ParkingSpot{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+spotColumns+` FROM spots WHERE id = ? AND is_active = 1`, id,
	)
	spot, err := scanSpot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ParkingSpot{}, fmt.Errorf("spot %q: %w", id, domain.ErrSpotNotFound)
	}
	if err != nil {
		return domain.ParkingSpot{}, err
	}

	updated := spot.Apply(update)
	args, err := upsertArgs(updated)
	if err != nil {
		return domain.ParkingSpot{}, err
	}
	if _, err := tx.ExecContext(ctx, upsertSQL, args...); err != nil {
		return domain.ParkingSpot{}, fmt.Errorf("update spot %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.ParkingSpot{}, fmt.Errorf("commit update: %w", err)
	}
	return updated, nil
}

// Deactivate hides the spot from all reads without deleting its row.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE spots SET is_active = 0 WHERE id = ? AND is_active = 1`, id,
	)
	if err != nil {
		return fmt.Errorf("deactivate spot %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate spot %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("spot %q: %w", id, domain.ErrSpotNotFound)
	}
	return nil
}

func upsertArgs(spot domain.ParkingSpot) ([]any, error) {
	if spot.ID == "" {
		return nil, fmt.Errorf("upsert spot at (%.5f, %.5f): missing id", spot.Latitude, spot.Longitude)
	}
	regulations, err := json.Marshal(spot.Regulations)
	if err != nil {
		return nil, fmt.Errorf("marshal regulations for %s: %w", spot.ID, err)
	}
	sources, err := json.Marshal(spot.VerifiedSources)
	if err != nil {
		return nil, fmt.Errorf("marshal sources for %s: %w", spot.ID, err)
	}
	return []any{
		spot.ID, spot.Latitude, spot.Longitude, spot.Address,
		string(spot.SpotType), spot.Capacity, spot.PrimarySource,
		spot.SourceID, spot.Confidence, string(sources), string(regulations),
		spot.NeedsVerification, spot.AvailableSpaces, spot.CurrentlyAvailable,
		spot.UserConfirmations, spot.Verified, toUnixNano(spot.LastStatusUpdate),
	}, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSpot(row scannable) (domain.ParkingSpot, error) {
	var (
		spot       domain.ParkingSpot
		spotType   string
		sources    string
		regulation string
		statusNano int64
	)
	err := row.Scan(
		&spot.ID, &spot.Latitude, &spot.Longitude, &spot.Address,
		&spotType, &spot.Capacity, &spot.PrimarySource,
		&spot.SourceID, &spot.Confidence, &sources, &regulation,
		&spot.NeedsVerification, &spot.AvailableSpaces, &spot.CurrentlyAvailable,
		&spot.UserConfirmations, &spot.Verified, &statusNano,
	)
	if err != nil {
		return domain.ParkingSpot{}, err
	}

	spot.SpotType = domain.SpotType(spotType)
	spot.LastStatusUpdate = fromUnixNano(statusNano)
	if err := json.Unmarshal([]byte(sources), &spot.VerifiedSources); err != nil {
		return domain.ParkingSpot{}, fmt.Errorf("unmarshal sources for %s: %w", spot.ID, err)
	}
	if err := json.Unmarshal([]byte(regulation), &spot.Regulations); err != nil {
		return domain.ParkingSpot{}, fmt.Errorf("unmarshal regulations for %s: %w", spot.ID, err)
	}
	return spot, nil
}

// Zero time maps to 0 so "never reported" survives the round trip; see the
// availability reader's live/static split.
func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
