package lead

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// GetByID retrieves a lead scoped to its organisation.
func (r *PostgresRepository) GetByID(ctx context.Context, leadID, organisationID uuid.UUID) (*Lead, error) {
	query := `
		SELECT id, organisation_id, name, email, phone, status, source,
		       assigned_user_id, assigned_at, created_at
		FROM leads
		WHERE id = $1 AND organisation_id = $2`

	var l Lead
	err := r.pool.QueryRow(ctx, query, leadID, organisationID).Scan(
		&l.ID, &l.OrganisationID, &l.Name, &l.Email, &l.Phone, &l.Status,
		&l.Source, &l.AssignedUserID, &l.AssignedAt, &l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("querying lead: %w", err)
	}

	return &l, nil
}

// SetAssignee updates the lead's denormalized assignee pointer.
func (r *PostgresRepository) SetAssignee(ctx context.Context, leadID, userID uuid.UUID) error {
	query := `
		UPDATE leads
		SET assigned_user_id = $1, assigned_at = now()
		WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, userID, leadID)
	if err != nil {
		return fmt.Errorf("updating lead assignee: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLeadNotFound
	}

	return nil
}
