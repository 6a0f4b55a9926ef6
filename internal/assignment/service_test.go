package assignment_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/leadflow/internal/assignment"
	"github.com/leadflow/leadflow/internal/lead"
	"github.com/leadflow/leadflow/internal/roster"
)

type serviceFixture struct {
	service  *assignment.Service
	store    *fakeStore
	roster   *fakeRoster
	leads    *fakeLeads
	notifier *fakeNotifier

	organisationID uuid.UUID
	actorID        uuid.UUID
}

func newServiceFixture(t *testing.T, memberCount int, leads ...*lead.Lead) *serviceFixture {
	t.Helper()

	orgID := uuid.New()
	members := make([]roster.Member, memberCount)
	for i := range members {
		members[i] = roster.Member{
			ID:             uuid.New(),
			OrganisationID: orgID,
			Name:           "Member",
			Email:          "member@example.com",
		}
	}

	store := newFakeStore()
	rosterRepo := &fakeRoster{organisationID: orgID, members: members}
	leadRepo := newFakeLeads(leads...)
	notifier := newFakeNotifier()

	return &serviceFixture{
		service:        assignment.NewService(store, rosterRepo, leadRepo, notifier),
		store:          store,
		roster:         rosterRepo,
		leads:          leadRepo,
		notifier:       notifier,
		organisationID: orgID,
		actorID:        uuid.New(),
	}
}

func (f *serviceFixture) newLead(t *testing.T) *lead.Lead {
	t.Helper()
	ld := &lead.Lead{
		ID:             uuid.New(),
		OrganisationID: f.organisationID,
		Name:           "Jordan Reyes",
		Email:          "jordan@example.com",
		Status:         "new",
		Source:         "website",
	}
	f.leads.leads[ld.ID] = ld
	return ld
}

func (f *serviceFixture) waitForNotification(t *testing.T) uuid.UUID {
	t.Helper()
	select {
	case id := <-f.notifier.delivered:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for assignment notification")
		return uuid.Nil
	}
}

// --- AutoAssign Tests ---

func TestAutoAssign_EmptyRoster(t *testing.T) {
	f := newServiceFixture(t, 0)
	ld := f.newLead(t)

	result, err := f.service.AutoAssign(context.Background(), f.organisationID, ld.ID, f.actorID)
	require.NoError(t, err)

	assert.False(t, result.Assigned)
	assert.Equal(t, "No team members available for assignment", result.Message)
	assert.Nil(t, result.Assignment)
}

func TestAutoAssign_FirstAssignmentGoesToFirstMember(t *testing.T) {
	f := newServiceFixture(t, 3)
	ld := f.newLead(t)

	result, err := f.service.AutoAssign(context.Background(), f.organisationID, ld.ID, f.actorID)
	require.NoError(t, err)

	require.True(t, result.Assigned)
	assert.Equal(t, f.roster.members[0].ID, result.Assignment.AssignedUserID)
	assert.Equal(t, assignment.StatusActive, result.Assignment.Status)
	require.NotNil(t, result.Assignment.Notes)
	assert.Equal(t, "Auto-assigned via round-robin scheduling", *result.Assignment.Notes)
	f.waitForNotification(t)
}

func TestAutoAssign_RotatesAcrossLeads(t *testing.T) {
	f := newServiceFixture(t, 3)

	var assignees []uuid.UUID
	for i := 0; i < 4; i++ {
		ld := f.newLead(t)
		result, err := f.service.AutoAssign(context.Background(), f.organisationID, ld.ID, f.actorID)
		require.NoError(t, err)
		require.True(t, result.Assigned)
		assignees = append(assignees, result.Assignment.AssignedUserID)
	}

	assert.Equal(t, f.roster.members[0].ID, assignees[0])
	assert.Equal(t, f.roster.members[1].ID, assignees[1])
	assert.Equal(t, f.roster.members[2].ID, assignees[2])
	assert.Equal(t, f.roster.members[0].ID, assignees[3], "rotation wraps after the last member")
}

func TestAutoAssign_LeadNotFound(t *testing.T) {
	f := newServiceFixture(t, 2)

	_, err := f.service.AutoAssign(context.Background(), f.organisationID, uuid.New(), f.actorID)

	assert.ErrorIs(t, err, lead.ErrLeadNotFound)
}

func TestAutoAssign_CrossTenantLeadRejected(t *testing.T) {
	f := newServiceFixture(t, 2)
	other := &lead.Lead{ID: uuid.New(), OrganisationID: uuid.New(), Name: "Other Org Lead"}
	f.leads.leads[other.ID] = other

	_, err := f.service.AutoAssign(context.Background(), f.organisationID, other.ID, f.actorID)

	assert.ErrorIs(t, err, lead.ErrLeadNotFound)
}

func TestAutoAssign_DuplicateActiveAssignment(t *testing.T) {
	f := newServiceFixture(t, 2)
	ld := f.newLead(t)

	_, err := f.service.AutoAssign(context.Background(), f.organisationID, ld.ID, f.actorID)
	require.NoError(t, err)

	_, err = f.service.AutoAssign(context.Background(), f.organisationID, ld.ID, f.actorID)
	assert.ErrorIs(t, err, assignment.ErrDuplicateActiveAssignment)
}

// --- ManualAssign Tests ---

func TestManualAssign_Success(t *testing.T) {
	f := newServiceFixture(t, 3)
	ld := f.newLead(t)
	target := f.roster.members[2]

	result, err := f.service.ManualAssign(context.Background(), f.organisationID, ld.ID, target.ID, f.actorID, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, target.ID, result.Assignment.AssignedUserID)
	assert.Equal(t, f.actorID, result.Assignment.AssignedByUserID)
	assert.Nil(t, result.PreviousUserID, "first assignment has no previous user")
	require.NotNil(t, result.Assignment.Notes)
	assert.Equal(t, "Manual assignment", *result.Assignment.Notes, "default notes applied")
	f.waitForNotification(t)
}

func TestManualAssign_CustomNotesPreserved(t *testing.T) {
	f := newServiceFixture(t, 1)
	ld := f.newLead(t)
	notes := "VIP: route to senior rep"

	result, err := f.service.ManualAssign(context.Background(), f.organisationID, ld.ID, f.roster.members[0].ID, f.actorID, &notes, nil)
	require.NoError(t, err)

	require.NotNil(t, result.Assignment.Notes)
	assert.Equal(t, notes, *result.Assignment.Notes)
}

func TestManualAssign_AssigneeNotInRoster(t *testing.T) {
	f := newServiceFixture(t, 2)
	ld := f.newLead(t)

	_, err := f.service.ManualAssign(context.Background(), f.organisationID, ld.ID, uuid.New(), f.actorID, nil, nil)

	assert.ErrorIs(t, err, assignment.ErrInvalidAssignee)
}

func TestManualAssign_CapturesPreviousUser(t *testing.T) {
	f := newServiceFixture(t, 3)
	ld := f.newLead(t)
	first := f.roster.members[0]
	second := f.roster.members[1]

	res1, err := f.service.ManualAssign(context.Background(), f.organisationID, ld.ID, first.ID, f.actorID, nil, nil)
	require.NoError(t, err)

	// Close the first assignment so the lead is assignable again.
	_, err = f.store.UpdateStatus(context.Background(), res1.Assignment.ID, assignment.StatusActive, assignment.StatusCancelled, f.actorID, nil)
	require.NoError(t, err)

	res2, err := f.service.ManualAssign(context.Background(), f.organisationID, ld.ID, second.ID, f.actorID, nil, nil)
	require.NoError(t, err)

	require.NotNil(t, res2.PreviousUserID)
	assert.Equal(t, first.ID, *res2.PreviousUserID)
}

func TestManualAssign_ActiveAssignmentRejected(t *testing.T) {
	f := newServiceFixture(t, 2)
	ld := f.newLead(t)

	_, err := f.service.ManualAssign(context.Background(), f.organisationID, ld.ID, f.roster.members[0].ID, f.actorID, nil, nil)
	require.NoError(t, err)

	_, err = f.service.ManualAssign(context.Background(), f.organisationID, ld.ID, f.roster.members[1].ID, f.actorID, nil, nil)
	assert.ErrorIs(t, err, assignment.ErrDuplicateActiveAssignment)
}

// --- BulkReassign Tests ---

func TestBulkReassign_MixedOutcomes(t *testing.T) {
	f := newServiceFixture(t, 2)
	assigned := f.newLead(t)
	unassigned := f.newLead(t)
	missing := uuid.New()
	target := f.roster.members[1]

	_, err := f.service.ManualAssign(context.Background(), f.organisationID, assigned.ID, f.roster.members[0].ID, f.actorID, nil, nil)
	require.NoError(t, err)

	result, err := f.service.BulkReassign(context.Background(), f.organisationID,
		[]uuid.UUID{assigned.ID, unassigned.ID, missing}, target.ID, f.actorID, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Summary.Total)
	assert.Equal(t, 2, result.Summary.Successful)
	assert.Equal(t, 1, result.Summary.Failed)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, missing, result.Failed[0].LeadID)
	assert.Contains(t, result.Failed[0].Reason, "not found")

	for _, s := range result.Successful {
		a, err := f.store.GetByID(context.Background(), s.AssignmentID)
		require.NoError(t, err)
		assert.Equal(t, target.ID, a.AssignedUserID)
		assert.Equal(t, assignment.StatusActive, a.Status)
	}
}

func TestBulkReassign_ClosesExistingActiveAssignment(t *testing.T) {
	f := newServiceFixture(t, 2)
	ld := f.newLead(t)
	target := f.roster.members[1]

	res, err := f.service.ManualAssign(context.Background(), f.organisationID, ld.ID, f.roster.members[0].ID, f.actorID, nil, nil)
	require.NoError(t, err)

	_, err = f.service.BulkReassign(context.Background(), f.organisationID, []uuid.UUID{ld.ID}, target.ID, f.actorID, nil, nil)
	require.NoError(t, err)

	old, err := f.store.GetByID(context.Background(), res.Assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, assignment.StatusReassigned, old.Status)

	active, err := f.store.ActiveByLead(context.Background(), ld.ID)
	require.NoError(t, err)
	assert.Equal(t, target.ID, active.AssignedUserID)
	require.NotNil(t, active.PreviousUserID)
	assert.Equal(t, f.roster.members[0].ID, *active.PreviousUserID)
}

func TestBulkReassign_InvalidAssigneeFailsWholeBatch(t *testing.T) {
	f := newServiceFixture(t, 1)
	ld := f.newLead(t)

	_, err := f.service.BulkReassign(context.Background(), f.organisationID, []uuid.UUID{ld.ID}, uuid.New(), f.actorID, nil, nil)

	assert.ErrorIs(t, err, assignment.ErrInvalidAssignee)
}

func TestBulkReassign_EmptyResultSlicesNotNil(t *testing.T) {
	f := newServiceFixture(t, 1)
	ld := f.newLead(t)

	result, err := f.service.BulkReassign(context.Background(), f.organisationID, []uuid.UUID{ld.ID}, f.roster.members[0].ID, f.actorID, nil, nil)
	require.NoError(t, err)

	assert.NotNil(t, result.Successful)
	assert.NotNil(t, result.Failed)
	assert.Empty(t, result.Failed)
}
