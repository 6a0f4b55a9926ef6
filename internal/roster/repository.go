package roster

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrMemberNotFound is returned when a user does not exist in the
// organisation or is not an eligible team member.
var ErrMemberNotFound = errors.New("team member not found")

// Repository provides read access to the team-member roster. Roster
// entries are owned by the user-management service; this package only
// reads them.
type Repository interface {
	// Members returns the ordered roster for an organisation: verified
	// users with the team_member role, join time ascending.
	Members(ctx context.Context, organisationID uuid.UUID) ([]Member, error)

	// Member returns a single eligible team member of the organisation,
	// or ErrMemberNotFound.
	Member(ctx context.Context, userID, organisationID uuid.UUID) (*Member, error)
}
