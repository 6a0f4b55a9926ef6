package assignment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an assignment.
type Status string

const (
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusReassigned Status = "reassigned"
)

// transitions is the full state machine. Active is the only non-terminal
// state and is never a valid transition target: new active records are
// only ever created, not transitioned into.
var transitions = map[Status][]Status{
	StatusActive:     {StatusCompleted, StatusCancelled, StatusReassigned},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusReassigned: {},
}

// ParseStatus converts a raw string into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusCompleted, StatusCancelled, StatusReassigned:
		return Status(s), nil
	}
	return "", fmt.Errorf("invalid assignment status %q", s)
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransitionTo reports whether s -> next is a legal transition.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Assignment represents a row in the lead_assignments table. Records are
// append-only: reassignment closes the current record and chains a new
// one via PreviousUserID rather than mutating ownership in place.
type Assignment struct {
	ID                 uuid.UUID
	OrganisationID     uuid.UUID
	LeadID             uuid.UUID
	AssignedUserID     uuid.UUID
	AssignedByUserID   uuid.UUID
	PreviousUserID     *uuid.UUID
	Status             Status
	ReassignmentReason *string
	Notes              *string
	AssignedAt         time.Time
	CompletedAt        *time.Time
	UpdatedAt          time.Time
}

// StatusChange is an append-only audit row in assignment_status_history,
// written in the same transaction as the status update it records.
type StatusChange struct {
	ID            uuid.UUID
	AssignmentID  uuid.UUID
	OldStatus     Status
	NewStatus     Status
	ChangedBy     uuid.UUID
	ChangedByName *string
	Reason        *string
	ChangedAt     time.Time
}

// HistoryEntry is an assignment enriched with the display identities of
// the involved users, as returned by lead history queries.
type HistoryEntry struct {
	Assignment
	AssignedUserName  string
	AssignedUserEmail string
	AssignedByName    string
	PreviousUserName  *string
}

// AssignmentWithLead pairs an assignment with summary fields of its lead.
type AssignmentWithLead struct {
	Assignment
	AssignedUserName  string
	AssignedUserEmail string
	LeadName          string
	LeadEmail         string
	LeadStatus        string
	LeadSource        string
}

// OverdueAssignment is an active assignment past the overdue threshold.
type OverdueAssignment struct {
	AssignmentWithLead
	DaysOverdue int
}

// ListFilter narrows and pages assignment listings.
type ListFilter struct {
	Status *Status
	Page   int
	Limit  int
}

// ListResult is a page of assignments plus pagination totals.
type ListResult struct {
	Assignments []AssignmentWithLead
	Total       int
	Page        int
	Limit       int
	TotalPages  int
}
