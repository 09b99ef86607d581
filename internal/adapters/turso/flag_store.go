package turso

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/util"
)

// FlagStore persists advisory flags. It doubles as a ports.FlagSink so the
// scheduler can write flags through without extra glue.
type FlagStore struct {
	db *sql.DB
}

// NewFlagStore creates a store over an open database.
func NewFlagStore(db *sql.DB) *FlagStore {
	return &FlagStore{db: db}
}

func (s *FlagStore) SaveFlag(ctx context.Context, flag domain.UnderperformingFlag) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flags (id, experiment_id, variant_id, confidence, lift, control_rate, variant_rate, raised_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		flag.ID, flag.ExperimentID, flag.VariantID,
		flag.Confidence, flag.Lift, flag.ControlRate, flag.VariantRate,
		flag.RaisedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save flag: %w", err)
	}
	return nil
}

// Raise implements ports.FlagSink. Persistence failures are logged, never
// propagated: flags are advisory and must not break the scheduling pass.
func (s *FlagStore) Raise(ctx context.Context, flag domain.UnderperformingFlag) {
	if err := s.SaveFlag(ctx, flag); err != nil {
		log.Printf("turso: failed to persist flag %s: %v", flag.ID, err)
	}
}

func (s *FlagStore) ListFlags(ctx context.Context, experimentID string, limit int64) ([]domain.UnderperformingFlag, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, experiment_id, variant_id, confidence, lift, control_rate, variant_rate, raised_at
		FROM flags`
	args := []any{}
	if experimentID != "" {
		query += ` WHERE experiment_id = ?`
		args = append(args, experimentID)
	}
	query += ` ORDER BY raised_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list flags: %w", err)
	}
	defer rows.Close()

	var flags []domain.UnderperformingFlag
	for rows.Next() {
		var (
			flag     domain.UnderperformingFlag
			raisedAt string
		)
		if err := rows.Scan(
			&flag.ID, &flag.ExperimentID, &flag.VariantID,
			&flag.Confidence, &flag.Lift, &flag.ControlRate, &flag.VariantRate,
			&raisedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan flag: %w", err)
		}
		flag.RaisedAt = util.ParseTimeRFC3339(raisedAt)
		flags = append(flags, flag)
	}
	return flags, rows.Err()
}
