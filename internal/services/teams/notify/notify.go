// Package notify defines the outbound message contract for team events.
package notify

import "context"

// InvitationMessage carries everything needed to render an invitation email.
type InvitationMessage struct {
	To          string
	InvitedName string
	TeamName    string
	InviterName string
	Role        string
	Message     string
	Token       string
}

// Notifier delivers outbound messages. Delivery is fire-and-forget: a failure
// must never abort the state change that triggered it. Invitation resends are
// the one exception, where the caller surfaces the failure.
type Notifier interface {
	SendInvitation(ctx context.Context, message InvitationMessage) error
	Send(ctx context.Context, to string, subject string, body string) error
}
