package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/smartkissan/internal/domain"
	"github.com/ashureev/smartkissan/internal/shared"
)

// GetLocation returns the cached location of a user.
func (s *SQLiteStore) GetLocation(ctx context.Context, userID string) (*domain.UserLocation, error) {
	query := `
		SELECT latitude, longitude, location_name, region, country, country_code, error, is_default, last_updated
		FROM locations WHERE user_id = ?`

	var loc domain.UserLocation
	var name, region, country, code, locErr sql.NullString
	var updated int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&loc.Latitude, &loc.Longitude, &name, &region, &country, &code, &locErr, &loc.IsDefault, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan location: %w", err)
	}

	loc.LocationName = name.String
	loc.Region = region.String
	loc.Country = country.String
	loc.CountryCode = code.String
	loc.Error = locErr.String
	loc.LastUpdated = time.Unix(updated, 0)
	return &loc, nil
}

// UpsertLocation caches a user's location.
func (s *SQLiteStore) UpsertLocation(ctx context.Context, userID string, loc domain.UserLocation) error {
	query := `
		INSERT INTO locations (user_id, latitude, longitude, location_name, region, country, country_code, error, is_default, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			location_name = excluded.location_name,
			region = excluded.region,
			country = excluded.country,
			country_code = excluded.country_code,
			error = excluded.error,
			is_default = excluded.is_default,
			last_updated = excluded.last_updated`

	updated := loc.LastUpdated
	if updated.IsZero() {
		updated = time.Now()
	}

	return shared.RetryOnConflict(ctx, s.retry, "upsert location", func() error {
		_, err := s.db.ExecContext(ctx, query,
			userID, loc.Latitude, loc.Longitude,
			nullable(loc.LocationName), nullable(loc.Region), nullable(loc.Country),
			nullable(loc.CountryCode), nullable(loc.Error), loc.IsDefault, updated.Unix(),
		)
		if err != nil {
			return fmt.Errorf("upsert location: %w", err)
		}
		return nil
	})
}

// DeleteStaleLocations removes locations last updated before maxAge ago.
func (s *SQLiteStore) DeleteStaleLocations(ctx context.Context, maxAge time.Duration) (int64, error) {
	threshold := time.Now().Add(-maxAge).Unix()

	var removed int64
	err := shared.RetryOnConflict(ctx, s.retry, "delete stale locations", func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM locations WHERE last_updated < ?`, threshold)
		if err != nil {
			return fmt.Errorf("delete stale locations: %w", err)
		}
		removed, err = result.RowsAffected()
		return err
	})
	return removed, err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
