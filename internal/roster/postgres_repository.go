package roster

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

// Members retrieves the ordered roster for an organisation.
func (r *PostgresRepository) Members(ctx context.Context, organisationID uuid.UUID) ([]Member, error) {
	query := `
		SELECT id, organisation_id, name, email, phone, created_at
		FROM users
		WHERE organisation_id = $1
		  AND role = 'team_member'
		  AND is_verified
		ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, organisationID)
	if err != nil {
		return nil, fmt.Errorf("listing team members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		err := rows.Scan(&m.ID, &m.OrganisationID, &m.Name, &m.Email, &m.Phone, &m.JoinedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning team member row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating team member rows: %w", err)
	}

	if members == nil {
		members = []Member{}
	}

	return members, nil
}

// Member retrieves a single eligible team member of the organisation.
func (r *PostgresRepository) Member(ctx context.Context, userID, organisationID uuid.UUID) (*Member, error) {
	query := `
		SELECT id, organisation_id, name, email, phone, created_at
		FROM users
		WHERE id = $1
		  AND organisation_id = $2
		  AND role = 'team_member'
		  AND is_verified`

	var m Member
	err := r.pool.QueryRow(ctx, query, userID, organisationID).
		Scan(&m.ID, &m.OrganisationID, &m.Name, &m.Email, &m.Phone, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("querying team member: %w", err)
	}

	return &m, nil
}
