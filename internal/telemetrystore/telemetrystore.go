// Copyright 2025 James Ross
// Package telemetrystore provides read-only access to recorded pig
// position samples. Telemetry acquisition itself is out of scope;
// this package only reads what some other ingest path has written.
package telemetrystore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/flyingrobots/pigtrack/internal/model"
)

// TelemetryStore is the read-only contract an Engine tick consults
// for a pig's recent position history and the set of currently
// active pigs.
type TelemetryStore interface {
	RecentPositions(ctx context.Context, pigID string, since time.Time) ([]model.PosSample, error)
	ActivePigs(ctx context.Context, since time.Time) ([]string, error)
}

// PostgresStore reads position_samples from Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing *sql.DB. The caller owns the
// connection's lifecycle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// RecentPositions returns the samples for pigID at or after since,
// ordered by timestamp ascending.
func (s *PostgresStore) RecentPositions(ctx context.Context, pigID string, since time.Time) ([]model.PosSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, channel, kp
		FROM position_samples
		WHERE pig_id = $1 AND ts >= $2
		ORDER BY ts ASC`, pigID, since)
	if err != nil {
		return nil, fmt.Errorf("telemetrystore: query recent positions: %w", err)
	}
	defer rows.Close()

	var out []model.PosSample
	for rows.Next() {
		var (
			ts      time.Time
			channel sql.NullInt64
			kp      sql.NullFloat64
		)
		if err := rows.Scan(&ts, &channel, &kp); err != nil {
			return nil, fmt.Errorf("telemetrystore: scan position sample: %w", err)
		}
		sample := model.PosSample{DT: ts}
		if channel.Valid {
			v := int(channel.Int64)
			sample.Channel = &v
		}
		if kp.Valid {
			v := kp.Float64
			sample.KP = &v
		}
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("telemetrystore: iterate position samples: %w", err)
	}
	return out, nil
}

// ActivePigs returns the distinct pig ids with a sample at or after
// since.
func (s *PostgresStore) ActivePigs(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT pig_id
		FROM position_samples
		WHERE ts >= $1
		ORDER BY pig_id ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("telemetrystore: query active pigs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var pigID string
		if err := rows.Scan(&pigID); err != nil {
			return nil, fmt.Errorf("telemetrystore: scan active pig: %w", err)
		}
		out = append(out, pigID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("telemetrystore: iterate active pigs: %w", err)
	}
	return out, nil
}
