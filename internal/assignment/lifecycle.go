package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/leadflow/leadflow/internal/lead"
	"github.com/leadflow/leadflow/internal/roster"
)

// ErrInvalidAssignee is returned when a reassignment target is not an
// eligible team member of the organisation.
var ErrInvalidAssignee = errors.New("assignee is not an eligible team member")

// Lifecycle enforces the assignment state machine. All status changes go
// through it so every transition lands exactly one audit row, and
// reassignment is atomic across closing the old record and opening the
// new one.
type Lifecycle struct {
	store  Repository
	roster roster.Repository
}

// NewLifecycle creates a new Lifecycle over the given store and roster.
func NewLifecycle(store Repository, rosterRepo roster.Repository) *Lifecycle {
	return &Lifecycle{store: store, roster: rosterRepo}
}

// TransitionResult reports a completed status change.
type TransitionResult struct {
	AssignmentID uuid.UUID
	OldStatus    Status
	NewStatus    Status
}

// Transition moves an assignment to a new status, validating the change
// against the state machine and recording it in the audit trail.
func (l *Lifecycle) Transition(ctx context.Context, assignmentID uuid.UUID, newStatus Status, actorID uuid.UUID, reason *string) (*TransitionResult, error) {
	a, err := l.store.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	// The store may hand back a shared record, so the pre-change status
	// must be read before UpdateStatus touches it.
	oldStatus := a.Status

	if !oldStatus.CanTransitionTo(newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, oldStatus, newStatus)
	}

	if _, err := l.store.UpdateStatus(ctx, a.ID, oldStatus, newStatus, actorID, reason); err != nil {
		return nil, err
	}

	slog.Info("assignment status updated",
		"assignmentId", a.ID, "oldStatus", oldStatus, "newStatus", newStatus, "changedBy", actorID)

	return &TransitionResult{
		AssignmentID: a.ID,
		OldStatus:    oldStatus,
		NewStatus:    newStatus,
	}, nil
}

// ReassignResult reports a completed reassignment.
type ReassignResult struct {
	OldAssignmentID uuid.UUID
	NewAssignmentID uuid.UUID
	LeadID          uuid.UUID
	OldUserID       uuid.UUID
	NewUserID       uuid.UUID
}

// Reassign closes the lead's active assignment as reassigned and opens a
// new active record for the target member. Both writes happen in one
// store transaction, so the lead can never end up with zero or two
// active assignments.
func (l *Lifecycle) Reassign(ctx context.Context, leadID, newUserID, actorID uuid.UUID, reason *string) (*ReassignResult, error) {
	current, err := l.store.ActiveByLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	if _, err := l.roster.Member(ctx, newUserID, current.OrganisationID); err != nil {
		if errors.Is(err, roster.ErrMemberNotFound) {
			return nil, ErrInvalidAssignee
		}
		return nil, err
	}

	if reason == nil {
		defaultReason := "Manual reassignment"
		reason = &defaultReason
	}

	next, err := l.store.Reassign(ctx, current, newUserID, actorID, reason)
	if err != nil {
		return nil, err
	}

	slog.Info("lead reassigned",
		"leadId", leadID, "oldUserId", current.AssignedUserID, "newUserId", newUserID, "reassignedBy", actorID)

	return &ReassignResult{
		OldAssignmentID: current.ID,
		NewAssignmentID: next.ID,
		LeadID:          leadID,
		OldUserID:       current.AssignedUserID,
		NewUserID:       newUserID,
	}, nil
}

// AutoComplete completes the lead's active assignment when the lead has
// reached a closing status. Returns false without error when the status
// is not a closing one or no active assignment exists.
func (l *Lifecycle) AutoComplete(ctx context.Context, leadID uuid.UUID, leadStatus string, actorID uuid.UUID) (bool, error) {
	if !lead.IsClosingStatus(leadStatus) {
		return false, nil
	}

	active, err := l.store.ActiveByLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, ErrNoActiveAssignment) {
			return false, nil
		}
		return false, err
	}

	reason := fmt.Sprintf("Auto-completed due to lead status: %s", leadStatus)
	if _, err := l.store.UpdateStatus(ctx, active.ID, active.Status, StatusCompleted, actorID, &reason); err != nil {
		return false, err
	}

	slog.Info("assignment auto-completed", "assignmentId", active.ID, "leadId", leadID, "leadStatus", leadStatus)
	return true, nil
}
