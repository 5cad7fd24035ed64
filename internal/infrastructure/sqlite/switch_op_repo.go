package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vellankikoti/cutover/internal/domain"
)

// SwitchOperationRepo implements [domain.SwitchOperationRepository]
// backed by SQLite. The autoincrement seq column provides the total
// order rollback relies on.
type SwitchOperationRepo struct {
	DB *sql.DB
}

func (r *SwitchOperationRepo) Append(ctx context.Context, op domain.SwitchOperation) (domain.SwitchOperation, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO switch_operations (id, from_version, to_version, requested_at, outcome)
		 VALUES (?, ?, ?, ?, ?)`,
		op.ID, string(op.From), string(op.To),
		op.RequestedAt.UTC().Format(time.RFC3339Nano), string(op.Outcome),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return op, fmt.Errorf("operation %q: %w", op.ID, domain.ErrAlreadyExists)
		}
		return op, fmt.Errorf("insert switch operation: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return op, fmt.Errorf("read operation seq: %w", err)
	}
	op.Seq = seq
	return op, nil
}

func (r *SwitchOperationRepo) Complete(ctx context.Context, op domain.SwitchOperation) error {
	var snap []byte
	if op.Snapshot != nil {
		var err error
		snap, err = json.Marshal(op.Snapshot)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
	}

	res, err := r.DB.ExecContext(ctx,
		`UPDATE switch_operations
		 SET from_version = ?, completed_at = ?, outcome = ?, reason = ?, error = ?, snapshot = ?
		 WHERE id = ?`,
		string(op.From), op.CompletedAt.UTC().Format(time.RFC3339Nano),
		string(op.Outcome), op.Reason, op.Error, nullString(snap), op.ID,
	)
	if err != nil {
		return fmt.Errorf("finalize switch operation: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("operation %q: %w", op.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *SwitchOperationRepo) List(ctx context.Context, limit int) ([]domain.SwitchOperation, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT seq, id, from_version, to_version, requested_at, completed_at, outcome, reason, error, snapshot
		 FROM switch_operations ORDER BY seq DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list switch operations: %w", err)
	}
	defer rows.Close()

	var ops []domain.SwitchOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func (r *SwitchOperationRepo) LastSuccess(ctx context.Context) (domain.SwitchOperation, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT seq, id, from_version, to_version, requested_at, completed_at, outcome, reason, error, snapshot
		 FROM switch_operations WHERE outcome = ? ORDER BY seq DESC LIMIT 1`,
		string(domain.OutcomeSuccess),
	)
	return scanOperation(row)
}

func scanOperation(s scanner) (domain.SwitchOperation, error) {
	var op domain.SwitchOperation
	var from, to, requestedAt, completedAt, outcome string
	var snapJSON sql.NullString
	if err := s.Scan(&op.Seq, &op.ID, &from, &to, &requestedAt, &completedAt, &outcome, &op.Reason, &op.Error, &snapJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return op, fmt.Errorf("%w", domain.ErrNotFound)
		}
		return op, fmt.Errorf("scan switch operation: %w", err)
	}

	op.From = domain.Version(from)
	op.To = domain.Version(to)
	op.Outcome = domain.SwitchOutcome(outcome)

	t, err := time.Parse(time.RFC3339Nano, requestedAt)
	if err != nil {
		return op, fmt.Errorf("parse requested_at: %w", err)
	}
	op.RequestedAt = t
	if completedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, completedAt)
		if err != nil {
			return op, fmt.Errorf("parse completed_at: %w", err)
		}
		op.CompletedAt = t
	}

	if snapJSON.Valid {
		op.Snapshot = &domain.FleetSnapshot{}
		if err := json.Unmarshal([]byte(snapJSON.String), op.Snapshot); err != nil {
			return op, fmt.Errorf("unmarshal snapshot: %w", err)
		}
	}
	return op, nil
}

func nullString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
