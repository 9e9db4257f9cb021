package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mehmetymw/failover-dispatch/internal/domain"
)

// AttemptRepo appends provider attempts to an audit table. Rows are never
// consulted when deciding delivery status.
type AttemptRepo struct {
	db *sqlx.DB
}

func NewAttemptRepo(db *sqlx.DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

type attemptRow struct {
	ID                uuid.UUID `db:"id"`
	IdempotencyKey    string    `db:"idempotency_key"`
	Round             int       `db:"round"`
	Provider          string    `db:"provider"`
	Succeeded         bool      `db:"succeeded"`
	ErrorMessage      *string   `db:"error_message"`
	ProviderMessageID *string   `db:"provider_message_id"`
	LatencyMs         int64     `db:"latency_ms"`
	CreatedAt         time.Time `db:"created_at"`
}

func (r *AttemptRepo) Record(ctx context.Context, a *domain.Attempt) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO dispatch_attempts
		(id, idempotency_key, round, provider, succeeded, error_message, provider_message_id, latency_ms, created_at)
		VALUES (:id, :idempotency_key, :round, :provider, :succeeded, :error_message, :provider_message_id, :latency_ms, :created_at)`,
		toAttemptRow(a),
	)
	return err
}

func (r *AttemptRepo) ListByKey(ctx context.Context, key string) ([]*domain.Attempt, error) {
	var rows []attemptRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, idempotency_key, round, provider, succeeded, error_message, provider_message_id, latency_ms, created_at
		FROM dispatch_attempts
		WHERE idempotency_key = $1
		ORDER BY created_at ASC, id ASC`,
		key,
	)
	if err != nil {
		return nil, err
	}

	attempts := make([]*domain.Attempt, 0, len(rows))
	for _, row := range rows {
		attempts = append(attempts, row.toDomain())
	}
	return attempts, nil
}

func toAttemptRow(a *domain.Attempt) attemptRow {
	return attemptRow{
		ID:                a.ID,
		IdempotencyKey:    a.IdempotencyKey,
		Round:             a.Round,
		Provider:          a.Provider,
		Succeeded:         a.Succeeded,
		ErrorMessage:      a.Error,
		ProviderMessageID: a.ProviderMessageID,
		LatencyMs:         a.Latency.Milliseconds(),
		CreatedAt:         a.CreatedAt,
	}
}

func (row attemptRow) toDomain() *domain.Attempt {
	return &domain.Attempt{
		ID:                row.ID,
		IdempotencyKey:    row.IdempotencyKey,
		Round:             row.Round,
		Provider:          row.Provider,
		Succeeded:         row.Succeeded,
		Error:             row.ErrorMessage,
		ProviderMessageID: row.ProviderMessageID,
		Latency:           time.Duration(row.LatencyMs) * time.Millisecond,
		CreatedAt:         row.CreatedAt,
	}
}
