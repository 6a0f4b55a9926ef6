package lead

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Lead is the external lead entity. The assignment core references it
// but never owns it: the assigned_user_id/assigned_at columns are a
// denormalized cache of the latest active assignment, kept in sync by
// the assignment store.
type Lead struct {
	ID             uuid.UUID
	OrganisationID uuid.UUID
	Name           string
	Email          string
	Phone          string
	Status         string
	Source         string
	AssignedUserID *uuid.UUID
	AssignedAt     *time.Time
	CreatedAt      time.Time
}

// closingStatuses are lead statuses that resolve the lead's active
// assignment when reached.
var closingStatuses = map[string]struct{}{
	"converted": {},
	"closed":    {},
	"won":       {},
	"lost":      {},
}

// IsClosingStatus reports whether a lead status terminates the lead's
// business lifecycle. Matching is case-insensitive.
func IsClosingStatus(status string) bool {
	_, ok := closingStatuses[strings.ToLower(status)]
	return ok
}
