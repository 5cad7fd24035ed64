package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vellankikoti/cutover/internal/domain"
)

// TrafficStateRepo implements [domain.TrafficStateRepository] backed by
// SQLite. The table holds a single row; Put upserts it.
type TrafficStateRepo struct {
	DB *sql.DB
}

func (r *TrafficStateRepo) Get(ctx context.Context) (domain.TrafficState, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT active_version, last_switched_at, last_switched_by
		 FROM traffic_state WHERE id = 1`,
	)

	var state domain.TrafficState
	var active, switchedAt, switchedBy string
	if err := row.Scan(&active, &switchedAt, &switchedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return state, fmt.Errorf("traffic state: %w", domain.ErrNotFound)
		}
		return state, fmt.Errorf("scan traffic state: %w", err)
	}

	state.ActiveVersion = domain.Version(active)
	state.LastSwitchedBy = switchedBy
	if switchedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, switchedAt)
		if err != nil {
			return state, fmt.Errorf("parse last_switched_at: %w", err)
		}
		state.LastSwitchedAt = t
	}
	return state, nil
}

func (r *TrafficStateRepo) Put(ctx context.Context, state domain.TrafficState) error {
	switchedAt := ""
	if !state.LastSwitchedAt.IsZero() {
		switchedAt = state.LastSwitchedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO traffic_state (id, active_version, last_switched_at, last_switched_by)
		 VALUES (1, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   active_version = excluded.active_version,
		   last_switched_at = excluded.last_switched_at,
		   last_switched_by = excluded.last_switched_by`,
		string(state.ActiveVersion), switchedAt, state.LastSwitchedBy,
	)
	if err != nil {
		return fmt.Errorf("upsert traffic state: %w", err)
	}
	return nil
}
