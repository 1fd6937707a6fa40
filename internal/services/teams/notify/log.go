package notify

import (
	"context"
	"log"
)

// LogNotifier writes outbound messages to the process log. It stands in for a
// real mail backend in development and single-node deployments.
type LogNotifier struct {
	Logf func(format string, args ...any)
}

func (n *LogNotifier) logf(format string, args ...any) {
	if n != nil && n.Logf != nil {
		n.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// SendInvitation logs the invitation dispatch.
func (n *LogNotifier) SendInvitation(ctx context.Context, message InvitationMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.logf("invitation email to %s: team %q, role %s, inviter %s", message.To, message.TeamName, message.Role, message.InviterName)
	return nil
}

// Send logs a generic outbound message.
func (n *LogNotifier) Send(ctx context.Context, to string, subject string, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.logf("email to %s: %s", to, subject)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
