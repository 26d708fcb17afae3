package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/authwatch/internal/database"
	"github.com/BradenHooton/authwatch/internal/models"
	"github.com/jackc/pgx/v5"
)

// FailureLogRepository mirrors the audit log into the login_failures table
type FailureLogRepository struct {
	db *database.DB
}

// NewFailureLogRepository creates a new FailureLogRepository
func NewFailureLogRepository(db *database.DB) *FailureLogRepository {
	return &FailureLogRepository{db: db}
}

// Append inserts one failure event. Re-inserting the same event ID is a no-op.
func (r *FailureLogRepository) Append(ctx context.Context, event *models.FailureEvent) error {
	query := `
		INSERT INTO login_failures (id, identity, origin, occurred_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.Pool.Exec(ctx, query, event.ID, event.Identity, event.Origin, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to insert login failure: %w", database.MapPostgresError(err))
	}
	return nil
}

// ListByPair returns the recorded failures for an identity/origin pair, oldest first
func (r *FailureLogRepository) ListByPair(ctx context.Context, identity, origin string, limit int) ([]*models.FailureEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT id, identity, origin, occurred_at FROM login_failures
		WHERE identity = $1 AND origin = $2
		ORDER BY occurred_at ASC
		LIMIT $3
	`

	rows, err := r.db.Pool.Query(ctx, query, identity, origin, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	events, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[models.FailureEvent])
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return events, nil
}
