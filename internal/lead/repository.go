package lead

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrLeadNotFound is returned when a lead does not exist or belongs to a
// different organisation.
var ErrLeadNotFound = errors.New("lead not found")

// Repository provides read access to leads plus the denormalized
// assignee pointer update. Lead ingestion and field extraction are
// handled by an external service.
type Repository interface {
	// GetByID returns the lead scoped to the organisation, or
	// ErrLeadNotFound (covering both absence and cross-tenant access).
	GetByID(ctx context.Context, leadID, organisationID uuid.UUID) (*Lead, error)

	// SetAssignee updates the lead's denormalized assignee pointer. The
	// latest assignment row remains the source of truth.
	SetAssignee(ctx context.Context, leadID, userID uuid.UUID) error
}
