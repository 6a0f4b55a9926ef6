package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leadflow/leadflow/internal/roster"
)

const assignmentColumns = `id, organisation_id, lead_id, assigned_user_id, assigned_by_user_id,
	       previous_user_id, status, reassignment_reason, notes,
	       assigned_at, completed_at, updated_at`

// querier is the subset of pgx operations shared by pools and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new active assignment and updates the lead pointer in
// one transaction.
func (r *PostgresRepository) Create(ctx context.Context, a *Assignment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertAssignment(ctx, tx, a); err != nil {
		return err
	}
	if err := updateLeadPointer(ctx, tx, a.LeadID, a.AssignedUserID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing assignment: %w", err)
	}
	return nil
}

// CreateWithRotation claims the organisation's round-robin cursor and
// creates the next assignment in one transaction. The advisory lock is
// transaction-scoped, so the lock releases on commit or rollback.
func (r *PostgresRepository) CreateWithRotation(ctx context.Context, organisationID, leadID, actorID uuid.UUID, members []roster.Member, notes string) (*Assignment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialize the read-select-insert sequence per organisation so two
	// concurrent auto-assigns cannot pick the same member.
	_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, organisationID)
	if err != nil {
		return nil, fmt.Errorf("acquiring rotation lock: %w", err)
	}

	var last *uuid.UUID
	var lastID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT assigned_user_id
		FROM lead_assignments
		WHERE organisation_id = $1
		ORDER BY assigned_at DESC, id DESC
		LIMIT 1`, organisationID).Scan(&lastID)
	switch {
	case err == nil:
		last = &lastID
	case errors.Is(err, pgx.ErrNoRows):
		// First assignment for the organisation.
	default:
		return nil, fmt.Errorf("querying last assignment: %w", err)
	}

	next := NextAssignee(members, last)

	a := &Assignment{
		OrganisationID:   organisationID,
		LeadID:           leadID,
		AssignedUserID:   next.ID,
		AssignedByUserID: actorID,
		Status:           StatusActive,
		Notes:            &notes,
	}
	if err := insertAssignment(ctx, tx, a); err != nil {
		return nil, err
	}
	if err := updateLeadPointer(ctx, tx, leadID, next.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing assignment: %w", err)
	}
	return a, nil
}

// GetByID retrieves a single assignment by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Assignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM lead_assignments WHERE id = $1`, assignmentColumns)

	a, err := scanAssignment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("querying assignment: %w", err)
	}
	return a, nil
}

// ActiveByLead retrieves the lead's single active assignment.
func (r *PostgresRepository) ActiveByLead(ctx context.Context, leadID uuid.UUID) (*Assignment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM lead_assignments
		WHERE lead_id = $1 AND status = 'active'
		ORDER BY assigned_at DESC
		LIMIT 1`, assignmentColumns)

	a, err := scanAssignment(r.pool.QueryRow(ctx, query, leadID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveAssignment
		}
		return nil, fmt.Errorf("querying active assignment: %w", err)
	}
	return a, nil
}

// LatestByLead retrieves the most recent assignment for a lead in any status.
func (r *PostgresRepository) LatestByLead(ctx context.Context, leadID uuid.UUID) (*Assignment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM lead_assignments
		WHERE lead_id = $1
		ORDER BY assigned_at DESC, id DESC
		LIMIT 1`, assignmentColumns)

	a, err := scanAssignment(r.pool.QueryRow(ctx, query, leadID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("querying latest assignment: %w", err)
	}
	return a, nil
}

// UpdateStatus moves an assignment between statuses and appends the audit
// row in one transaction. The WHERE clause on the current status guards
// against a concurrent transition; losing that race surfaces as
// ErrInvalidTransition.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, actorID uuid.UUID, reason *string) (*Assignment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		UPDATE lead_assignments
		SET status = $1,
		    updated_at = now(),
		    completed_at = CASE WHEN $1 = 'completed' THEN now() ELSE completed_at END
		WHERE id = $2 AND status = $3
		RETURNING %s`, assignmentColumns)

	a, err := scanAssignment(tx.QueryRow(ctx, query, to, id, from))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: assignment %s is no longer %s", ErrInvalidTransition, id, from)
		}
		return nil, fmt.Errorf("updating assignment status: %w", err)
	}

	if err := insertStatusChange(ctx, tx, id, from, to, actorID, reason); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing status update: %w", err)
	}
	return a, nil
}

// Reassign closes the current active assignment and opens the chained
// replacement in one transaction, so a crash can never leave the lead
// with zero active assignments.
func (r *PostgresRepository) Reassign(ctx context.Context, current *Assignment, newUserID, actorID uuid.UUID, reason *string) (*Assignment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	closeQuery := `
		UPDATE lead_assignments
		SET status = 'reassigned', updated_at = now()
		WHERE id = $1 AND status = 'active'`
	result, err := tx.Exec(ctx, closeQuery, current.ID)
	if err != nil {
		return nil, fmt.Errorf("closing assignment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrNoActiveAssignment
	}

	if err := insertStatusChange(ctx, tx, current.ID, StatusActive, StatusReassigned, actorID, reason); err != nil {
		return nil, err
	}

	prev := current.AssignedUserID
	next := &Assignment{
		OrganisationID:     current.OrganisationID,
		LeadID:             current.LeadID,
		AssignedUserID:     newUserID,
		AssignedByUserID:   actorID,
		PreviousUserID:     &prev,
		Status:             StatusActive,
		ReassignmentReason: reason,
	}
	if err := insertAssignment(ctx, tx, next); err != nil {
		return nil, err
	}
	if err := updateLeadPointer(ctx, tx, current.LeadID, newUserID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing reassignment: %w", err)
	}
	return next, nil
}

// HistoryByLead retrieves the lead's reassignment chain with user
// identities, newest first.
func (r *PostgresRepository) HistoryByLead(ctx context.Context, leadID, organisationID uuid.UUID) ([]HistoryEntry, error) {
	query := `
		SELECT la.id, la.organisation_id, la.lead_id, la.assigned_user_id,
		       la.assigned_by_user_id, la.previous_user_id, la.status,
		       la.reassignment_reason, la.notes, la.assigned_at,
		       la.completed_at, la.updated_at,
		       u1.name, u1.email, u2.name, u3.name
		FROM lead_assignments la
		JOIN users u1 ON la.assigned_user_id = u1.id
		JOIN users u2 ON la.assigned_by_user_id = u2.id
		LEFT JOIN users u3 ON la.previous_user_id = u3.id
		WHERE la.lead_id = $1 AND la.organisation_id = $2
		ORDER BY la.assigned_at DESC, la.id DESC`

	rows, err := r.pool.Query(ctx, query, leadID, organisationID)
	if err != nil {
		return nil, fmt.Errorf("querying assignment history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		err := rows.Scan(
			&e.ID, &e.OrganisationID, &e.LeadID, &e.AssignedUserID,
			&e.AssignedByUserID, &e.PreviousUserID, &e.Status,
			&e.ReassignmentReason, &e.Notes, &e.AssignedAt,
			&e.CompletedAt, &e.UpdatedAt,
			&e.AssignedUserName, &e.AssignedUserEmail, &e.AssignedByName,
			&e.PreviousUserName,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history rows: %w", err)
	}

	if entries == nil {
		entries = []HistoryEntry{}
	}
	return entries, nil
}

// StatusHistory retrieves the audit trail for an assignment, newest first.
func (r *PostgresRepository) StatusHistory(ctx context.Context, assignmentID uuid.UUID) ([]StatusChange, error) {
	query := `
		SELECT h.id, h.assignment_id, h.old_status, h.new_status,
		       h.changed_by, u.name, h.reason, h.changed_at
		FROM assignment_status_history h
		LEFT JOIN users u ON h.changed_by = u.id
		WHERE h.assignment_id = $1
		ORDER BY h.changed_at DESC, h.id DESC`

	rows, err := r.pool.Query(ctx, query, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("querying status history: %w", err)
	}
	defer rows.Close()

	var changes []StatusChange
	for rows.Next() {
		var c StatusChange
		err := rows.Scan(&c.ID, &c.AssignmentID, &c.OldStatus, &c.NewStatus,
			&c.ChangedBy, &c.ChangedByName, &c.Reason, &c.ChangedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning status change row: %w", err)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status change rows: %w", err)
	}

	if changes == nil {
		changes = []StatusChange{}
	}
	return changes, nil
}

// ListByUser retrieves a page of a user's assignments with lead context.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID, organisationID uuid.UUID, filter ListFilter) (*ListResult, error) {
	filter = filter.normalized()

	where := `WHERE la.assigned_user_id = $1 AND la.organisation_id = $2`
	args := []any{userID, organisationID}
	if filter.Status != nil {
		where += ` AND la.status = $3`
		args = append(args, *filter.Status)
	}

	return r.listWithLead(ctx, where, args, filter)
}

// ListByStatus retrieves a page of the organisation's assignments in a
// given status.
func (r *PostgresRepository) ListByStatus(ctx context.Context, organisationID uuid.UUID, status Status, filter ListFilter) (*ListResult, error) {
	filter = filter.normalized()

	where := `WHERE la.organisation_id = $1 AND la.status = $2`
	args := []any{organisationID, status}

	return r.listWithLead(ctx, where, args, filter)
}

// ListOverdue retrieves active assignments assigned before the cutoff,
// oldest first.
func (r *PostgresRepository) ListOverdue(ctx context.Context, organisationID uuid.UUID, cutoff time.Time) ([]OverdueAssignment, error) {
	query := `
		SELECT la.id, la.organisation_id, la.lead_id, la.assigned_user_id,
		       la.assigned_by_user_id, la.previous_user_id, la.status,
		       la.reassignment_reason, la.notes, la.assigned_at,
		       la.completed_at, la.updated_at,
		       u.name, u.email, l.name, l.email, l.status, l.source,
		       GREATEST(EXTRACT(DAY FROM now() - la.assigned_at), 0)::int
		FROM lead_assignments la
		JOIN users u ON la.assigned_user_id = u.id
		JOIN leads l ON la.lead_id = l.id
		WHERE la.organisation_id = $1
		  AND la.status = 'active'
		  AND la.assigned_at < $2
		ORDER BY la.assigned_at ASC`

	rows, err := r.pool.Query(ctx, query, organisationID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("querying overdue assignments: %w", err)
	}
	defer rows.Close()

	var overdue []OverdueAssignment
	for rows.Next() {
		var o OverdueAssignment
		err := rows.Scan(
			&o.ID, &o.OrganisationID, &o.LeadID, &o.AssignedUserID,
			&o.AssignedByUserID, &o.PreviousUserID, &o.Status,
			&o.ReassignmentReason, &o.Notes, &o.AssignedAt,
			&o.CompletedAt, &o.UpdatedAt,
			&o.AssignedUserName, &o.AssignedUserEmail,
			&o.LeadName, &o.LeadEmail, &o.LeadStatus, &o.LeadSource,
			&o.DaysOverdue,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning overdue row: %w", err)
		}
		overdue = append(overdue, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating overdue rows: %w", err)
	}

	if overdue == nil {
		overdue = []OverdueAssignment{}
	}
	return overdue, nil
}

func (r *PostgresRepository) listWithLead(ctx context.Context, where string, args []any, filter ListFilter) (*ListResult, error) {
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM lead_assignments la %s`, where)

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting assignments: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT la.id, la.organisation_id, la.lead_id, la.assigned_user_id,
		       la.assigned_by_user_id, la.previous_user_id, la.status,
		       la.reassignment_reason, la.notes, la.assigned_at,
		       la.completed_at, la.updated_at,
		       u.name, u.email, l.name, l.email, l.status, l.source
		FROM lead_assignments la
		JOIN users u ON la.assigned_user_id = u.id
		JOIN leads l ON la.lead_id = l.id
		%s
		ORDER BY la.assigned_at DESC, la.id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)

	offset := (filter.Page - 1) * filter.Limit
	args = append(args, filter.Limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing assignments: %w", err)
	}
	defer rows.Close()

	assignments := []AssignmentWithLead{}
	for rows.Next() {
		var a AssignmentWithLead
		err := rows.Scan(
			&a.ID, &a.OrganisationID, &a.LeadID, &a.AssignedUserID,
			&a.AssignedByUserID, &a.PreviousUserID, &a.Status,
			&a.ReassignmentReason, &a.Notes, &a.AssignedAt,
			&a.CompletedAt, &a.UpdatedAt,
			&a.AssignedUserName, &a.AssignedUserEmail,
			&a.LeadName, &a.LeadEmail, &a.LeadStatus, &a.LeadSource,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning assignment row: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assignment rows: %w", err)
	}

	return &ListResult{
		Assignments: assignments,
		Total:       total,
		Page:        filter.Page,
		Limit:       filter.Limit,
		TotalPages:  (total + filter.Limit - 1) / filter.Limit,
	}, nil
}

func (f ListFilter) normalized() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	return f
}

func insertAssignment(ctx context.Context, q querier, a *Assignment) error {
	query := `
		INSERT INTO lead_assignments (
			organisation_id, lead_id, assigned_user_id, assigned_by_user_id,
			previous_user_id, status, reassignment_reason, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, assigned_at, updated_at`

	err := q.QueryRow(ctx, query,
		a.OrganisationID,
		a.LeadID,
		a.AssignedUserID,
		a.AssignedByUserID,
		a.PreviousUserID,
		a.Status,
		a.ReassignmentReason,
		a.Notes,
	).Scan(&a.ID, &a.AssignedAt, &a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateActiveAssignment
		}
		return fmt.Errorf("inserting assignment: %w", err)
	}

	return nil
}

func insertStatusChange(ctx context.Context, q querier, assignmentID uuid.UUID, from, to Status, actorID uuid.UUID, reason *string) error {
	query := `
		INSERT INTO assignment_status_history (
			assignment_id, old_status, new_status, changed_by, reason
		) VALUES ($1, $2, $3, $4, $5)`

	if _, err := q.Exec(ctx, query, assignmentID, from, to, actorID, reason); err != nil {
		return fmt.Errorf("inserting status change: %w", err)
	}
	return nil
}

func updateLeadPointer(ctx context.Context, q querier, leadID, userID uuid.UUID) error {
	query := `
		UPDATE leads
		SET assigned_user_id = $1, assigned_at = now()
		WHERE id = $2`

	if _, err := q.Exec(ctx, query, userID, leadID); err != nil {
		return fmt.Errorf("updating lead pointer: %w", err)
	}
	return nil
}

func scanAssignment(row pgx.Row) (*Assignment, error) {
	var a Assignment
	err := row.Scan(
		&a.ID, &a.OrganisationID, &a.LeadID, &a.AssignedUserID,
		&a.AssignedByUserID, &a.PreviousUserID, &a.Status,
		&a.ReassignmentReason, &a.Notes, &a.AssignedAt,
		&a.CompletedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
