package roster

import (
	"time"

	"github.com/google/uuid"
)

// Member is an eligible team member of an organisation. The roster order
// used for round-robin rotation is join time ascending, ties broken by ID.
type Member struct {
	ID             uuid.UUID
	OrganisationID uuid.UUID
	Name           string
	Email          string
	Phone          string
	JoinedAt       time.Time
}
