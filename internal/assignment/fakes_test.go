package assignment_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadflow/leadflow/internal/assignment"
	"github.com/leadflow/leadflow/internal/lead"
	"github.com/leadflow/leadflow/internal/roster"
)

// fakeStore is an in-memory assignment.Repository. Ordering follows
// insertion, which stands in for the assigned_at/id sort of the real
// store.
type fakeStore struct {
	mu          sync.Mutex
	assignments []*assignment.Assignment
	history     map[uuid.UUID][]assignment.StatusChange
}

func newFakeStore() *fakeStore {
	return &fakeStore{history: make(map[uuid.UUID][]assignment.StatusChange)}
}

func (s *fakeStore) insertLocked(a *assignment.Assignment) error {
	for _, existing := range s.assignments {
		if existing.LeadID == a.LeadID && existing.Status == assignment.StatusActive {
			return assignment.ErrDuplicateActiveAssignment
		}
	}
	a.ID = uuid.New()
	now := time.Now().UTC()
	a.AssignedAt = now
	a.UpdatedAt = now
	s.assignments = append(s.assignments, a)
	return nil
}

func (s *fakeStore) Create(_ context.Context, a *assignment.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(a)
}

func (s *fakeStore) CreateWithRotation(_ context.Context, organisationID, leadID, actorID uuid.UUID, members []roster.Member, notes string) (*assignment.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var last *uuid.UUID
	for i := len(s.assignments) - 1; i >= 0; i-- {
		if s.assignments[i].OrganisationID == organisationID {
			id := s.assignments[i].AssignedUserID
			last = &id
			break
		}
	}
	assignee := assignment.NextAssignee(members, last)

	a := &assignment.Assignment{
		OrganisationID:   organisationID,
		LeadID:           leadID,
		AssignedUserID:   assignee.ID,
		AssignedByUserID: actorID,
		Status:           assignment.StatusActive,
		Notes:            &notes,
	}
	if err := s.insertLocked(a); err != nil {
		return nil, err
	}
	return snapshot(a), nil
}

// snapshot mirrors the real store's row-scan behavior: callers get a
// copy, never a pointer into the fake's state.
func snapshot(a *assignment.Assignment) *assignment.Assignment {
	c := *a
	return &c
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*assignment.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.ID == id {
			return snapshot(a), nil
		}
	}
	return nil, assignment.ErrAssignmentNotFound
}

func (s *fakeStore) ActiveByLead(_ context.Context, leadID uuid.UUID) (*assignment.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.LeadID == leadID && a.Status == assignment.StatusActive {
			return snapshot(a), nil
		}
	}
	return nil, assignment.ErrNoActiveAssignment
}

func (s *fakeStore) LatestByLead(_ context.Context, leadID uuid.UUID) (*assignment.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.assignments) - 1; i >= 0; i-- {
		if s.assignments[i].LeadID == leadID {
			return snapshot(s.assignments[i]), nil
		}
	}
	return nil, assignment.ErrAssignmentNotFound
}

func (s *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to assignment.Status, actorID uuid.UUID, reason *string) (*assignment.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.ID != id {
			continue
		}
		if a.Status != from {
			return nil, assignment.ErrInvalidTransition
		}
		a.Status = to
		a.UpdatedAt = time.Now().UTC()
		if to == assignment.StatusCompleted {
			now := time.Now().UTC()
			a.CompletedAt = &now
		}
		s.history[id] = append(s.history[id], assignment.StatusChange{
			ID:           uuid.New(),
			AssignmentID: id,
			OldStatus:    from,
			NewStatus:    to,
			ChangedBy:    actorID,
			Reason:       reason,
			ChangedAt:    time.Now().UTC(),
		})
		return snapshot(a), nil
	}
	return nil, assignment.ErrAssignmentNotFound
}

func (s *fakeStore) Reassign(ctx context.Context, current *assignment.Assignment, newUserID, actorID uuid.UUID, reason *string) (*assignment.Assignment, error) {
	if _, err := s.UpdateStatus(ctx, current.ID, assignment.StatusActive, assignment.StatusReassigned, actorID, reason); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev := current.AssignedUserID
	next := &assignment.Assignment{
		OrganisationID:     current.OrganisationID,
		LeadID:             current.LeadID,
		AssignedUserID:     newUserID,
		AssignedByUserID:   actorID,
		PreviousUserID:     &prev,
		Status:             assignment.StatusActive,
		ReassignmentReason: reason,
	}
	if err := s.insertLocked(next); err != nil {
		return nil, err
	}
	return snapshot(next), nil
}

func (s *fakeStore) HistoryByLead(_ context.Context, leadID, organisationID uuid.UUID) ([]assignment.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := []assignment.HistoryEntry{}
	for i := len(s.assignments) - 1; i >= 0; i-- {
		a := s.assignments[i]
		if a.LeadID == leadID && a.OrganisationID == organisationID {
			entries = append(entries, assignment.HistoryEntry{Assignment: *a})
		}
	}
	return entries, nil
}

func (s *fakeStore) StatusHistory(_ context.Context, assignmentID uuid.UUID) ([]assignment.StatusChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]assignment.StatusChange{}, s.history[assignmentID]...), nil
}

func (s *fakeStore) ListByUser(_ context.Context, userID, organisationID uuid.UUID, filter assignment.ListFilter) (*assignment.ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := &assignment.ListResult{Assignments: []assignment.AssignmentWithLead{}, Page: 1, Limit: 20}
	for _, a := range s.assignments {
		if a.AssignedUserID != userID || a.OrganisationID != organisationID {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		result.Assignments = append(result.Assignments, assignment.AssignmentWithLead{Assignment: *a})
	}
	result.Total = len(result.Assignments)
	result.TotalPages = 1
	return result, nil
}

func (s *fakeStore) ListByStatus(_ context.Context, organisationID uuid.UUID, status assignment.Status, filter assignment.ListFilter) (*assignment.ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := &assignment.ListResult{Assignments: []assignment.AssignmentWithLead{}, Page: 1, Limit: 20}
	for _, a := range s.assignments {
		if a.OrganisationID == organisationID && a.Status == status {
			result.Assignments = append(result.Assignments, assignment.AssignmentWithLead{Assignment: *a})
		}
	}
	result.Total = len(result.Assignments)
	result.TotalPages = 1
	return result, nil
}

func (s *fakeStore) ListOverdue(_ context.Context, organisationID uuid.UUID, cutoff time.Time) ([]assignment.OverdueAssignment, error) {
	return []assignment.OverdueAssignment{}, nil
}

// fakeRoster serves a fixed member list for one organisation.
type fakeRoster struct {
	organisationID uuid.UUID
	members        []roster.Member
}

func (r *fakeRoster) Members(_ context.Context, organisationID uuid.UUID) ([]roster.Member, error) {
	if organisationID != r.organisationID {
		return []roster.Member{}, nil
	}
	return r.members, nil
}

func (r *fakeRoster) Member(_ context.Context, userID, organisationID uuid.UUID) (*roster.Member, error) {
	if organisationID != r.organisationID {
		return nil, roster.ErrMemberNotFound
	}
	for i := range r.members {
		if r.members[i].ID == userID {
			return &r.members[i], nil
		}
	}
	return nil, roster.ErrMemberNotFound
}

// fakeLeads serves a fixed set of leads keyed by ID.
type fakeLeads struct {
	mu    sync.Mutex
	leads map[uuid.UUID]*lead.Lead
}

func newFakeLeads(leads ...*lead.Lead) *fakeLeads {
	m := make(map[uuid.UUID]*lead.Lead, len(leads))
	for _, ld := range leads {
		m[ld.ID] = ld
	}
	return &fakeLeads{leads: m}
}

func (f *fakeLeads) GetByID(_ context.Context, leadID, organisationID uuid.UUID) (*lead.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ld, ok := f.leads[leadID]
	if !ok || ld.OrganisationID != organisationID {
		return nil, lead.ErrLeadNotFound
	}
	return ld, nil
}

func (f *fakeLeads) SetAssignee(_ context.Context, leadID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ld, ok := f.leads[leadID]
	if !ok {
		return lead.ErrLeadNotFound
	}
	ld.AssignedUserID = &userID
	return nil
}

// fakeNotifier signals each delivery on a channel so tests can wait for
// the asynchronous notification without sleeping.
type fakeNotifier struct {
	delivered chan uuid.UUID
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{delivered: make(chan uuid.UUID, 16)}
}

func (n *fakeNotifier) AssignmentCreated(_ context.Context, a *assignment.Assignment, _ *lead.Lead, _ *roster.Member) error {
	n.delivered <- a.ID
	return nil
}
