package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"

	"github.com/leadflow/leadflow/internal/assignment"
	"github.com/leadflow/leadflow/internal/lead"
	"github.com/leadflow/leadflow/internal/roster"
)

var assignmentEmailTmpl = template.Must(template.New("assignment").Parse(`<html>
<body style="font-family: sans-serif; color: #222;">
  <h2>New Lead Assigned</h2>
  <p>Hi {{.MemberName}},</p>
  <p>A new lead has been assigned to you{{if .Reassigned}} (reassigned from a colleague){{end}}.</p>
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><td><strong>Lead</strong></td><td>{{.LeadName}}</td></tr>
    <tr><td><strong>Email</strong></td><td>{{.LeadEmail}}</td></tr>
    <tr><td><strong>Phone</strong></td><td>{{.LeadPhone}}</td></tr>
    <tr><td><strong>Source</strong></td><td>{{.LeadSource}}</td></tr>
    <tr><td><strong>Assigned at</strong></td><td>{{.AssignedAt}}</td></tr>
  </table>
  {{if .Notes}}<p><strong>Notes:</strong> {{.Notes}}</p>{{end}}
  <p>Please follow up promptly.</p>
</body>
</html>`))

type assignmentEmailData struct {
	MemberName string
	LeadName   string
	LeadEmail  string
	LeadPhone  string
	LeadSource string
	AssignedAt string
	Notes      string
	Reassigned bool
}

// SMTPNotifier delivers assignment notifications by email. Callers treat
// delivery failures as log-and-continue; this type never retries.
type SMTPNotifier struct {
	host string
	port int
	user string
	pass string
	from string
}

// NewSMTPNotifier creates an SMTPNotifier for the given server settings.
func NewSMTPNotifier(host string, port int, user, pass, from string) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, user: user, pass: pass, from: from}
}

// AssignmentCreated emails the assigned team member about the new lead.
func (n *SMTPNotifier) AssignmentCreated(ctx context.Context, a *assignment.Assignment, ld *lead.Lead, member *roster.Member) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data := assignmentEmailData{
		MemberName: member.Name,
		LeadName:   ld.Name,
		LeadEmail:  ld.Email,
		LeadPhone:  ld.Phone,
		LeadSource: ld.Source,
		AssignedAt: a.AssignedAt.UTC().Format("2006-01-02 15:04 UTC"),
		Reassigned: a.PreviousUserID != nil,
	}
	if a.Notes != nil {
		data.Notes = *a.Notes
	}

	var body bytes.Buffer
	if err := assignmentEmailTmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("rendering notification email: %w", err)
	}

	subject := fmt.Sprintf("New Lead Assigned: %s", ld.Name)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		n.from, member.Email, subject, body.String())

	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	var auth smtp.Auth
	if n.user != "" {
		auth = smtp.PlainAuth("", n.user, n.pass, n.host)
	}

	if err := smtp.SendMail(addr, auth, n.from, []string{member.Email}, []byte(msg)); err != nil {
		return fmt.Errorf("sending notification email: %w", err)
	}

	slog.Info("assignment notification sent", "assignmentId", a.ID, "recipient", member.Email)
	return nil
}
