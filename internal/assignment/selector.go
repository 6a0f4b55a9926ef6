package assignment

import (
	"github.com/google/uuid"

	"github.com/leadflow/leadflow/internal/roster"
)

// NextAssignee picks the next team member in round-robin order. The
// cursor is the most recent assignment for the organisation across all
// leads; rotation starts at the element after it and wraps around.
//
// When lastAssignedUserID is nil, or the last assignee has since left
// the roster, rotation restarts at index 0. The restart is an accepted
// approximation: the relative position of remaining members is not
// preserved across roster shrinks.
//
// The roster must be non-empty; callers handle the empty-roster case
// before selection.
func NextAssignee(members []roster.Member, lastAssignedUserID *uuid.UUID) roster.Member {
	next := 0
	if lastAssignedUserID != nil {
		for i, m := range members {
			if m.ID == *lastAssignedUserID {
				next = (i + 1) % len(members)
				break
			}
		}
	}
	return members[next]
}
