package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository provides read-only aggregations over the assignment store.
// All queries are idempotent and tolerate empty windows: zero counts and
// nil averages, never an error for organisations with no assignments.
type Repository interface {
	// Overview bundles all aggregations for the [from, to] date window
	// (dates inclusive).
	Overview(ctx context.Context, organisationID uuid.UUID, from, to time.Time) (*Overview, error)

	// WorkloadBalance returns the current per-member load snapshot.
	// Active assignments older than overdueDays count as overdue.
	WorkloadBalance(ctx context.Context, organisationID uuid.UUID, overdueDays int) ([]WorkloadEntry, error)

	// UserPerformance returns one member's report for the date window,
	// or nil when the user had no assignments in it.
	UserPerformance(ctx context.Context, organisationID, userID uuid.UUID, from, to time.Time) (*UserPerformance, error)
}
