package notify

import (
	"context"
	"log/slog"

	"github.com/leadflow/leadflow/internal/assignment"
	"github.com/leadflow/leadflow/internal/lead"
	"github.com/leadflow/leadflow/internal/roster"
)

// LogNotifier records assignment notifications in the log only. It is
// wired when no SMTP host is configured, so assignment durability never
// depends on mail settings.
type LogNotifier struct{}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// AssignmentCreated logs the notification instead of delivering it.
func (n *LogNotifier) AssignmentCreated(_ context.Context, a *assignment.Assignment, ld *lead.Lead, member *roster.Member) error {
	slog.Info("assignment notification (log only)",
		"assignmentId", a.ID,
		"leadId", ld.ID,
		"leadName", ld.Name,
		"recipient", member.Email,
	)
	return nil
}
