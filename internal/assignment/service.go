package assignment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/leadflow/leadflow/internal/lead"
	"github.com/leadflow/leadflow/internal/roster"
)

// Notifier delivers assignment notifications. Delivery is fire-and-forget
// from the service's perspective: failures are logged and never fail the
// assignment that triggered them.
type Notifier interface {
	AssignmentCreated(ctx context.Context, a *Assignment, ld *lead.Lead, member *roster.Member) error
}

// Service orchestrates the selector, store and collaborators for the two
// assignment entry points: auto-assignment on lead ingestion and
// manual/bulk assignment via the API.
type Service struct {
	store    Repository
	roster   roster.Repository
	leads    lead.Repository
	notifier Notifier
}

// NewService creates a new assignment Service.
func NewService(store Repository, rosterRepo roster.Repository, leadRepo lead.Repository, notifier Notifier) *Service {
	return &Service{
		store:    store,
		roster:   rosterRepo,
		leads:    leadRepo,
		notifier: notifier,
	}
}

// AutoAssignResult reports the outcome of an auto-assignment. An empty
// roster is a reportable condition, not an error: Assigned is false and
// Message explains why.
type AutoAssignResult struct {
	Assigned   bool
	Message    string
	Assignment *Assignment
	Assignee   *roster.Member
}

// AssignResult reports a completed manual assignment.
type AssignResult struct {
	Assignment     *Assignment
	Assignee       *roster.Member
	PreviousUserID *uuid.UUID
}

// AutoAssign assigns a newly ingested lead to the next team member in
// round-robin order. The rotation claim and record creation happen in a
// single store transaction.
func (s *Service) AutoAssign(ctx context.Context, organisationID, leadID, actorID uuid.UUID) (*AutoAssignResult, error) {
	ld, err := s.leads.GetByID(ctx, leadID, organisationID)
	if err != nil {
		return nil, err
	}

	members, err := s.roster.Members(ctx, organisationID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return &AutoAssignResult{
			Assigned: false,
			Message:  "No team members available for assignment",
		}, nil
	}

	a, err := s.store.CreateWithRotation(ctx, organisationID, leadID, actorID, members,
		"Auto-assigned via round-robin scheduling")
	if err != nil {
		return nil, err
	}

	var assignee *roster.Member
	for i := range members {
		if members[i].ID == a.AssignedUserID {
			assignee = &members[i]
			break
		}
	}

	if assignee != nil {
		s.notifyCreatedWithLead(a, ld, assignee)
	}

	slog.Info("lead auto-assigned",
		"leadId", leadID, "assignmentId", a.ID, "assignedUserId", a.AssignedUserID)

	return &AutoAssignResult{
		Assigned:   true,
		Message:    "Lead assigned successfully",
		Assignment: a,
		Assignee:   assignee,
	}, nil
}

// ManualAssign assigns a lead to a specific team member. The lead's
// current assignee, if any, is captured as previous_user_id for chain
// context, but the prior record is NOT transitioned to reassigned; only
// Lifecycle.Reassign closes records. The distinction is deliberate:
// manual assignment appends history, reassignment closes and reopens.
// Misuse on a lead that still has an active assignment is rejected by
// the store as ErrDuplicateActiveAssignment.
func (s *Service) ManualAssign(ctx context.Context, organisationID, leadID, userID, actorID uuid.UUID, notes, reassignmentReason *string) (*AssignResult, error) {
	ld, err := s.leads.GetByID(ctx, leadID, organisationID)
	if err != nil {
		return nil, err
	}

	member, err := s.roster.Member(ctx, userID, organisationID)
	if err != nil {
		if errors.Is(err, roster.ErrMemberNotFound) {
			return nil, ErrInvalidAssignee
		}
		return nil, err
	}

	var previousUserID *uuid.UUID
	prev, err := s.store.LatestByLead(ctx, leadID)
	switch {
	case err == nil:
		id := prev.AssignedUserID
		previousUserID = &id
	case errors.Is(err, ErrAssignmentNotFound):
		// First assignment for this lead.
	default:
		return nil, err
	}

	if notes == nil {
		defaultNotes := "Manual assignment"
		notes = &defaultNotes
	}

	a := &Assignment{
		OrganisationID:     organisationID,
		LeadID:             leadID,
		AssignedUserID:     userID,
		AssignedByUserID:   actorID,
		PreviousUserID:     previousUserID,
		Status:             StatusActive,
		ReassignmentReason: reassignmentReason,
		Notes:              notes,
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}

	s.notifyCreatedWithLead(a, ld, member)

	slog.Info("lead manually assigned",
		"leadId", leadID, "assignmentId", a.ID, "assignedUserId", userID, "assignedBy", actorID)

	return &AssignResult{
		Assignment:     a,
		Assignee:       member,
		PreviousUserID: previousUserID,
	}, nil
}

// BulkItemSuccess names a lead that was reassigned in a bulk operation.
type BulkItemSuccess struct {
	LeadID       uuid.UUID
	AssignmentID uuid.UUID
}

// BulkItemFailure names a lead that failed in a bulk operation and why.
type BulkItemFailure struct {
	LeadID uuid.UUID
	Reason string
}

// BulkSummary totals a bulk operation.
type BulkSummary struct {
	Total      int
	Successful int
	Failed     int
}

// BulkResult collects per-lead outcomes of a bulk reassignment.
type BulkResult struct {
	Successful []BulkItemSuccess
	Failed     []BulkItemFailure
	Summary    BulkSummary
}

// BulkReassign moves a batch of leads to one team member. Each lead is
// processed independently: leads with an active assignment are properly
// reassigned (old record closed), unassigned leads get a fresh
// assignment. Per-lead failures are collected, never propagated; there
// is no global rollback.
func (s *Service) BulkReassign(ctx context.Context, organisationID uuid.UUID, leadIDs []uuid.UUID, userID, actorID uuid.UUID, reason, notes *string) (*BulkResult, error) {
	member, err := s.roster.Member(ctx, userID, organisationID)
	if err != nil {
		if errors.Is(err, roster.ErrMemberNotFound) {
			return nil, ErrInvalidAssignee
		}
		return nil, err
	}

	if notes == nil {
		defaultNotes := "Bulk reassignment"
		notes = &defaultNotes
	}

	result := &BulkResult{
		Successful: []BulkItemSuccess{},
		Failed:     []BulkItemFailure{},
	}

	for _, leadID := range leadIDs {
		a, err := s.reassignOne(ctx, organisationID, leadID, member, actorID, reason, notes)
		if err != nil {
			result.Failed = append(result.Failed, BulkItemFailure{
				LeadID: leadID,
				Reason: err.Error(),
			})
			continue
		}
		result.Successful = append(result.Successful, BulkItemSuccess{
			LeadID:       leadID,
			AssignmentID: a.ID,
		})
	}

	result.Summary = BulkSummary{
		Total:      len(leadIDs),
		Successful: len(result.Successful),
		Failed:     len(result.Failed),
	}

	slog.Info("bulk reassignment completed",
		"organisationId", organisationID, "total", result.Summary.Total,
		"successful", result.Summary.Successful, "failed", result.Summary.Failed)

	return result, nil
}

func (s *Service) reassignOne(ctx context.Context, organisationID, leadID uuid.UUID, member *roster.Member, actorID uuid.UUID, reason, notes *string) (*Assignment, error) {
	ld, err := s.leads.GetByID(ctx, leadID, organisationID)
	if err != nil {
		return nil, err
	}

	current, err := s.store.ActiveByLead(ctx, leadID)
	switch {
	case err == nil:
		a, err := s.store.Reassign(ctx, current, member.ID, actorID, reason)
		if err != nil {
			return nil, err
		}
		s.notifyCreatedWithLead(a, ld, member)
		return a, nil
	case errors.Is(err, ErrNoActiveAssignment):
		a := &Assignment{
			OrganisationID:     organisationID,
			LeadID:             leadID,
			AssignedUserID:     member.ID,
			AssignedByUserID:   actorID,
			Status:             StatusActive,
			ReassignmentReason: reason,
			Notes:              notes,
		}
		if err := s.store.Create(ctx, a); err != nil {
			return nil, err
		}
		s.notifyCreatedWithLead(a, ld, member)
		return a, nil
	default:
		return nil, err
	}
}

// History returns the lead's reassignment chain, newest first.
func (s *Service) History(ctx context.Context, leadID, organisationID uuid.UUID) ([]HistoryEntry, error) {
	return s.store.HistoryByLead(ctx, leadID, organisationID)
}

// UserAssignments returns a page of a user's assignments.
func (s *Service) UserAssignments(ctx context.Context, userID, organisationID uuid.UUID, filter ListFilter) (*ListResult, error) {
	return s.store.ListByUser(ctx, userID, organisationID, filter)
}

// notifyCreatedWithLead delivers the notification on a detached context
// so delivery never blocks or fails the assignment that triggered it.
func (s *Service) notifyCreatedWithLead(a *Assignment, ld *lead.Lead, member *roster.Member) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := s.notifier.AssignmentCreated(ctx, a, ld, member); err != nil {
			slog.Error("assignment notification failed", "assignmentId", a.ID, "error", err)
		}
	}()
}
