package turso

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/util"
)

// DefinitionStore implements ports.DefinitionStore on a libsql database.
// Variant lists and metric sets are stored as JSON columns: definitions are
// written rarely, read once at boot, and never queried by variant.
type DefinitionStore struct {
	db *sql.DB
}

// NewDefinitionStore creates a store over an open database.
func NewDefinitionStore(db *sql.DB) *DefinitionStore {
	return &DefinitionStore{db: db}
}

func (s *DefinitionStore) SaveExperiment(ctx context.Context, exp *domain.Experiment) error {
	variants, err := json.Marshal(exp.Variants)
	if err != nil {
		return fmt.Errorf("failed to encode variants: %w", err)
	}
	metrics, err := json.Marshal(exp.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}

	var startedAt, endedAt string
	if !exp.StartedAt.IsZero() {
		startedAt = exp.StartedAt.Format(time.RFC3339)
	}
	if exp.EndedAt != nil {
		endedAt = exp.EndedAt.Format(time.RFC3339)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO experiments (
			id, name, status, started_at, ended_at,
			target_sample_size, significance_threshold, metrics, variants, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status,
			started_at = excluded.started_at, ended_at = excluded.ended_at`,
		exp.ID, exp.Name, string(exp.Status), util.NullString(startedAt), util.NullString(endedAt),
		exp.TargetSampleSize, exp.SignificanceThreshold, string(metrics), string(variants),
		exp.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save experiment: %w", err)
	}
	return nil
}

func (s *DefinitionStore) UpdateStatus(ctx context.Context, experimentID string, status domain.Status) error {
	var endedAt string
	if status == domain.StatusCompleted {
		endedAt = time.Now().UTC().Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE experiments SET status = ?, ended_at = COALESCE(?, ended_at) WHERE id = ?`,
		string(status), util.NullString(endedAt), experimentID,
	)
	if err != nil {
		return fmt.Errorf("failed to update experiment status: %w", err)
	}
	return nil
}

func (s *DefinitionStore) ListExperiments(ctx context.Context) ([]*domain.Experiment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, status, started_at, ended_at,
			target_sample_size, significance_threshold, metrics, variants, created_at
		FROM experiments ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	defer rows.Close()

	var experiments []*domain.Experiment
	for rows.Next() {
		var (
			exp                       domain.Experiment
			status                    string
			startedAt, endedAt        sql.NullString
			metricsJSON, variantsJSON string
			createdAt                 string
		)
		if err := rows.Scan(
			&exp.ID, &exp.Name, &status, &startedAt, &endedAt,
			&exp.TargetSampleSize, &exp.SignificanceThreshold, &metricsJSON, &variantsJSON, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}

		exp.Status = domain.Status(status)
		if startedAt.Valid {
			exp.StartedAt = util.ParseTimeRFC3339(startedAt.String)
		}
		if endedAt.Valid {
			t := util.ParseTimeRFC3339(endedAt.String)
			exp.EndedAt = &t
		}
		exp.CreatedAt = util.ParseTimeRFC3339(createdAt)

		if err := json.Unmarshal([]byte(metricsJSON), &exp.Metrics); err != nil {
			return nil, fmt.Errorf("failed to decode metrics for %s: %w", exp.ID, err)
		}
		if err := json.Unmarshal([]byte(variantsJSON), &exp.Variants); err != nil {
			return nil, fmt.Errorf("failed to decode variants for %s: %w", exp.ID, err)
		}

		experiments = append(experiments, &exp)
	}
	return experiments, rows.Err()
}
