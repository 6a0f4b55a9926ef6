package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/leadflow/leadflow/internal/roster"
)

// ErrAssignmentNotFound is returned when an assignment record is not found.
var ErrAssignmentNotFound = errors.New("assignment not found")

// ErrNoActiveAssignment is returned when a lead has no active assignment.
var ErrNoActiveAssignment = errors.New("no active assignment for lead")

// ErrDuplicateActiveAssignment is returned when creating a second active
// assignment for a lead (rejected by the partial unique index on
// lead_assignments).
var ErrDuplicateActiveAssignment = errors.New("lead already has an active assignment")

// ErrInvalidTransition is returned for illegal status changes, including
// any transition out of a terminal state.
var ErrInvalidTransition = errors.New("invalid status transition")

// Repository is the assignment store: the ground truth for who owns a
// lead now and who owned it before. All multi-write operations run in a
// single transaction so the audit trail never drifts from current state.
type Repository interface {
	// Create inserts a new active assignment and updates the lead's
	// denormalized assignee pointer in one transaction.
	Create(ctx context.Context, a *Assignment) error

	// CreateWithRotation claims the next assignee for the organisation
	// and creates the assignment in one transaction. A per-organisation
	// advisory lock serializes the read-select-insert sequence so
	// concurrent auto-assigns rotate exactly.
	CreateWithRotation(ctx context.Context, organisationID, leadID, actorID uuid.UUID, members []roster.Member, notes string) (*Assignment, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Assignment, error)

	// ActiveByLead returns the lead's single active assignment, or
	// ErrNoActiveAssignment.
	ActiveByLead(ctx context.Context, leadID uuid.UUID) (*Assignment, error)

	// LatestByLead returns the most recent assignment for a lead in any
	// status, or ErrAssignmentNotFound.
	LatestByLead(ctx context.Context, leadID uuid.UUID) (*Assignment, error)

	// UpdateStatus moves an assignment from one status to another and
	// appends the audit row, atomically. ErrInvalidTransition is
	// returned when the record is no longer in the expected status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, actorID uuid.UUID, reason *string) (*Assignment, error)

	// Reassign closes the given active assignment as reassigned and
	// opens a new active record chained via previous_user_id, updating
	// the lead pointer, all in one transaction.
	Reassign(ctx context.Context, current *Assignment, newUserID, actorID uuid.UUID, reason *string) (*Assignment, error)

	// HistoryByLead returns the lead's reassignment chain, newest first.
	HistoryByLead(ctx context.Context, leadID, organisationID uuid.UUID) ([]HistoryEntry, error)

	// StatusHistory returns the audit trail for an assignment, newest first.
	StatusHistory(ctx context.Context, assignmentID uuid.UUID) ([]StatusChange, error)

	// ListByUser returns a page of a user's assignments with lead context.
	ListByUser(ctx context.Context, userID, organisationID uuid.UUID, filter ListFilter) (*ListResult, error)

	// ListByStatus returns a page of the organisation's assignments in a
	// given status, newest first.
	ListByStatus(ctx context.Context, organisationID uuid.UUID, status Status, filter ListFilter) (*ListResult, error)

	// ListOverdue returns active assignments assigned before the cutoff,
	// oldest first.
	ListOverdue(ctx context.Context, organisationID uuid.UUID, cutoff time.Time) ([]OverdueAssignment, error)
}
