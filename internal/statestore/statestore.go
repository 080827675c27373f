// Copyright 2025 James Ross
// Package statestore persists the single mutable PigState per pig.
package statestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/flyingrobots/pigtrack/internal/model"
)

// StateStore is the read/write contract an Engine tick consults. Get
// must return a fresh, all-fields-unset state on first call for a pig
// id rather than an error.
type StateStore interface {
	Get(ctx context.Context, pigID string) (model.PigState, error)
	Upsert(ctx context.Context, pigID string, state model.PigState) error
}

// PostgresStore persists PigState rows in the pig_state table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing *sql.DB.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, pigID string) (model.PigState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT sticky_route, first_notif_at, last_notif_at,
		       fired_pre15_for_tag, fired_pre30_for_tag,
		       last_event, last_event_at, moving_started_at
		FROM pig_state WHERE pig_id = $1`, pigID)

	var (
		stickyRoute, fired15, fired30, lastEvent sql.NullString
		firstNotif, lastNotif, lastEventAt, moving sql.NullTime
	)
	err := row.Scan(&stickyRoute, &firstNotif, &lastNotif, &fired15, &fired30, &lastEvent, &lastEventAt, &moving)
	if err == sql.ErrNoRows {
		return model.PigState{}, nil
	}
	if err != nil {
		return model.PigState{}, fmt.Errorf("statestore: get %s: %w", pigID, err)
	}

	st := model.PigState{
		StickyRoute:      stickyRoute.String,
		FiredPre15ForTag: fired15.String,
		FiredPre30ForTag: fired30.String,
		LastEvent:        lastEvent.String,
	}
	if firstNotif.Valid {
		t := firstNotif.Time
		st.FirstNotifAt = &t
	}
	if lastNotif.Valid {
		t := lastNotif.Time
		st.LastNotifAt = &t
	}
	if lastEventAt.Valid {
		t := lastEventAt.Time
		st.LastEventAt = &t
	}
	if moving.Valid {
		t := moving.Time
		st.MovingStartedAt = &t
	}
	return st, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, pigID string, state model.PigState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pig_state (
			pig_id, sticky_route, first_notif_at, last_notif_at,
			fired_pre15_for_tag, fired_pre30_for_tag,
			last_event, last_event_at, moving_started_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (pig_id) DO UPDATE SET
			sticky_route = EXCLUDED.sticky_route,
			first_notif_at = EXCLUDED.first_notif_at,
			last_notif_at = EXCLUDED.last_notif_at,
			fired_pre15_for_tag = EXCLUDED.fired_pre15_for_tag,
			fired_pre30_for_tag = EXCLUDED.fired_pre30_for_tag,
			last_event = EXCLUDED.last_event,
			last_event_at = EXCLUDED.last_event_at,
			moving_started_at = EXCLUDED.moving_started_at,
			updated_at = now()`,
		pigID, nullString(state.StickyRoute), nullTime(state.FirstNotifAt), nullTime(state.LastNotifAt),
		nullString(state.FiredPre15ForTag), nullString(state.FiredPre30ForTag),
		nullString(state.LastEvent), nullTime(state.LastEventAt), nullTime(state.MovingStartedAt))
	if err != nil {
		return fmt.Errorf("statestore: upsert %s: %w", pigID, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
