package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/teamdesk/internal/services/identity"
	"github.com/louisbranch/teamdesk/internal/services/teams/domain"
	"github.com/louisbranch/teamdesk/internal/services/teams/notify"
	"github.com/louisbranch/teamdesk/internal/services/teams/storage"
)

// InviteMemberInput describes one invitation request.
type InviteMemberInput struct {
	TeamID    string
	Email     string
	Role      domain.Role
	Message   string
	InviterID string
}

// InviteMember creates a pending invitation and dispatches the invitation
// email after the invitation is persisted. A delivery failure here is
// tolerated: the invitation stays valid and can be resent.
func (s *Service) InviteMember(ctx context.Context, input InviteMemberInput) (domain.Invitation, error) {
	if s == nil || s.store == nil {
		return domain.Invitation{}, ErrStoreNotConfigured
	}
	teamID := strings.TrimSpace(input.TeamID)
	inviterID := strings.TrimSpace(input.InviterID)
	email := domain.NormalizeEmail(input.Email)

	if _, err := s.requireAdmin(ctx, teamID, inviterID); err != nil {
		return domain.Invitation{}, err
	}
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Invitation{}, domain.ErrTeamNotFound
		}
		return domain.Invitation{}, fmt.Errorf("get team: %w", err)
	}
	if !team.Active {
		return domain.Invitation{}, domain.ErrTeamInactive
	}

	// Invite-by-bare-email is not supported: the address must resolve to a
	// registered identity.
	invited, err := s.identity.LookupByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return domain.Invitation{}, domain.ErrUnknownEmail.WithMetadata(map[string]string{"Email": email})
		}
		return domain.Invitation{}, fmt.Errorf("lookup invited email: %w", err)
	}

	if _, err := s.store.MembershipByTeamAndUser(ctx, teamID, invited.ID); err == nil {
		return domain.Invitation{}, domain.ErrAlreadyMember.WithMetadata(map[string]string{"Email": email})
	} else if !errors.Is(err, storage.ErrNotFound) {
		return domain.Invitation{}, fmt.Errorf("check existing membership: %w", err)
	}

	invitation, err := domain.NewInvitation(domain.CreateInvitationInput{
		TeamID:        teamID,
		InvitedEmail:  email,
		InvitedUserID: invited.ID,
		Role:          input.Role,
		InviterID:     inviterID,
		Message:       input.Message,
	}, s.clock, s.newID, s.newToken)
	if err != nil {
		return domain.Invitation{}, err
	}

	if err := s.store.InsertInvitation(ctx, invitation); err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			return domain.Invitation{}, domain.ErrDuplicatePending.WithMetadata(map[string]string{"Email": email})
		case errors.Is(err, storage.ErrCapacityExceeded):
			return domain.Invitation{}, domain.ErrTeamCapacityExceeded.WithMetadata(map[string]string{"Name": team.Name})
		}
		return domain.Invitation{}, fmt.Errorf("insert invitation: %w", err)
	}

	if s.notifier != nil {
		message := s.invitationMessage(ctx, team, invitation, invited)
		s.dispatchAsync(func() {
			if err := s.notifier.SendInvitation(context.Background(), message); err != nil {
				log.Printf("send invitation %s: %v", invitation.ID, err)
			}
		})
	}
	return invitation, nil
}

// AcceptInvitation consumes a pending invitation token and materializes the
// membership. The status flip and the membership insert happen in one
// transaction, and the flip is conditional so a token can be consumed once.
func (s *Service) AcceptInvitation(ctx context.Context, token string, actingUserID string) (domain.Invitation, error) {
	if s == nil || s.store == nil {
		return domain.Invitation{}, ErrStoreNotConfigured
	}
	actingUserID = strings.TrimSpace(actingUserID)

	invitation, err := s.pendingInvitationForDecision(ctx, token, actingUserID)
	if err != nil {
		return domain.Invitation{}, err
	}

	membership, err := domain.NewMembership(invitation.TeamID, actingUserID, invitation.Role, invitation.InviterID, s.clock, s.newID)
	if err != nil {
		return domain.Invitation{}, err
	}

	if err := s.store.AcceptInvitation(ctx, invitation.ID, membership, s.nowUTC()); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotPending):
			return domain.Invitation{}, s.alreadyProcessed(ctx, invitation.ID)
		case errors.Is(err, storage.ErrConflict):
			return domain.Invitation{}, domain.ErrAlreadyMember.WithMetadata(map[string]string{"Email": invitation.InvitedEmail})
		case errors.Is(err, storage.ErrCapacityExceeded):
			return domain.Invitation{}, domain.ErrTeamCapacityExceeded
		}
		return domain.Invitation{}, fmt.Errorf("accept invitation: %w", err)
	}

	accepted, err := s.store.GetInvitation(ctx, invitation.ID)
	if err != nil {
		return domain.Invitation{}, fmt.Errorf("reload invitation: %w", err)
	}
	return accepted, nil
}

// RejectInvitation declines a pending invitation token.
func (s *Service) RejectInvitation(ctx context.Context, token string, actingUserID string) (domain.Invitation, error) {
	if s == nil || s.store == nil {
		return domain.Invitation{}, ErrStoreNotConfigured
	}

	invitation, err := s.pendingInvitationForDecision(ctx, token, strings.TrimSpace(actingUserID))
	if err != nil {
		return domain.Invitation{}, err
	}

	rejected, err := s.store.TransitionInvitation(ctx, invitation.ID, domain.InvitationStatusRejected, s.nowUTC())
	if err != nil {
		if errors.Is(err, storage.ErrNotPending) {
			return domain.Invitation{}, s.alreadyProcessed(ctx, invitation.ID)
		}
		return domain.Invitation{}, fmt.Errorf("reject invitation: %w", err)
	}
	return rejected, nil
}

// CancelInvitation withdraws a pending invitation. Requires an admin of the
// invitation's team.
func (s *Service) CancelInvitation(ctx context.Context, invitationID string, adminID string) (domain.Invitation, error) {
	if s == nil || s.store == nil {
		return domain.Invitation{}, ErrStoreNotConfigured
	}

	invitation, err := s.store.GetInvitation(ctx, strings.TrimSpace(invitationID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Invitation{}, domain.ErrInvitationNotFound
		}
		return domain.Invitation{}, fmt.Errorf("get invitation: %w", err)
	}
	if _, err := s.requireAdmin(ctx, invitation.TeamID, strings.TrimSpace(adminID)); err != nil {
		return domain.Invitation{}, err
	}
	if invitation.Status != domain.InvitationStatusPending {
		return domain.Invitation{}, s.alreadyProcessed(ctx, invitation.ID)
	}

	cancelled, err := s.store.TransitionInvitation(ctx, invitation.ID, domain.InvitationStatusCancelled, s.nowUTC())
	if err != nil {
		if errors.Is(err, storage.ErrNotPending) {
			return domain.Invitation{}, s.alreadyProcessed(ctx, invitation.ID)
		}
		return domain.Invitation{}, fmt.Errorf("cancel invitation: %w", err)
	}
	return cancelled, nil
}

// ResendInvitation re-sends a pending invitation email, extends the expiry,
// and stamps the resend time. Unlike creation, a delivery failure here is
// surfaced to the caller since resend is an explicit retry. The resend stamp
// is written only after the email goes out, so a failed delivery leaves the
// cooldown unconsumed and the resend immediately retryable.
func (s *Service) ResendInvitation(ctx context.Context, invitationID string, adminID string) (domain.Invitation, error) {
	if s == nil || s.store == nil {
		return domain.Invitation{}, ErrStoreNotConfigured
	}

	invitation, err := s.store.GetInvitation(ctx, strings.TrimSpace(invitationID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Invitation{}, domain.ErrInvitationNotFound
		}
		return domain.Invitation{}, fmt.Errorf("get invitation: %w", err)
	}
	if _, err := s.requireAdmin(ctx, invitation.TeamID, strings.TrimSpace(adminID)); err != nil {
		return domain.Invitation{}, err
	}
	if invitation.Status != domain.InvitationStatusPending {
		return domain.Invitation{}, s.alreadyProcessed(ctx, invitation.ID)
	}

	now := s.nowUTC()
	lastSent := invitation.CreatedAt
	if invitation.LastResentAt != nil {
		lastSent = *invitation.LastResentAt
	}
	if elapsed := now.Sub(lastSent); elapsed < domain.ResendCooldown {
		remaining := (domain.ResendCooldown - elapsed).Round(time.Second)
		return domain.Invitation{}, domain.ErrCooldownActive.WithMetadata(map[string]string{
			"Remaining": remaining.String(),
		})
	}

	team, err := s.store.GetTeam(ctx, invitation.TeamID)
	if err != nil {
		return domain.Invitation{}, fmt.Errorf("get team: %w", err)
	}
	if s.notifier != nil {
		invited, _ := s.identity.LookupByEmail(ctx, invitation.InvitedEmail)
		if err := s.notifier.SendInvitation(ctx, s.invitationMessage(ctx, team, invitation, invited)); err != nil {
			return domain.Invitation{}, domain.ErrDeliveryFailed
		}
	}

	updated, err := s.store.MarkInvitationResent(ctx, invitation.ID, now.Add(domain.InvitationTTL), now)
	if err != nil {
		if errors.Is(err, storage.ErrNotPending) {
			return domain.Invitation{}, s.alreadyProcessed(ctx, invitation.ID)
		}
		return domain.Invitation{}, fmt.Errorf("mark invitation resent: %w", err)
	}
	return updated, nil
}

// TeamPendingInvitations lists a team's pending invitations. Admin-only.
func (s *Service) TeamPendingInvitations(ctx context.Context, teamID string, actorID string) ([]domain.Invitation, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	teamID = strings.TrimSpace(teamID)
	if _, err := s.requireAdmin(ctx, teamID, strings.TrimSpace(actorID)); err != nil {
		return nil, err
	}
	return s.store.ListPendingInvitationsByTeam(ctx, teamID)
}

// MyPendingInvitations lists the caller's pending invitations, matched by
// email or by resolved invited-user id so an invitee who registered after
// being invited still sees the offer.
func (s *Service) MyPendingInvitations(ctx context.Context, userID string) ([]domain.Invitation, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	userID = strings.TrimSpace(userID)
	user, err := s.identity.LookupByID(ctx, userID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return s.store.ListPendingInvitationsForUser(ctx, domain.NormalizeEmail(user.Email), userID)
}

// InvitationByToken fetches an invitation for a decision view. Usable before
// authentication.
func (s *Service) InvitationByToken(ctx context.Context, token string) (domain.Invitation, error) {
	if s == nil || s.store == nil {
		return domain.Invitation{}, ErrStoreNotConfigured
	}
	invitation, err := s.store.InvitationByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Invitation{}, domain.ErrInvitationNotFound
		}
		return domain.Invitation{}, fmt.Errorf("get invitation by token: %w", err)
	}
	return invitation, nil
}

// SweepExpiredInvitations flips every pending invitation past its expiry to
// EXPIRED. Idempotent; safe to run from multiple processes or skip entirely
// since accept and reject expire lazily.
func (s *Service) SweepExpiredInvitations(ctx context.Context) (int64, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	return s.store.ExpirePendingInvitations(ctx, s.nowUTC())
}

// pendingInvitationForDecision resolves a token and applies the shared
// accept/reject checks: existence, pending status, lazy expiry, and invitee
// identity.
func (s *Service) pendingInvitationForDecision(ctx context.Context, token string, actingUserID string) (domain.Invitation, error) {
	invitation, err := s.store.InvitationByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Invitation{}, domain.ErrInvitationNotFound
		}
		return domain.Invitation{}, fmt.Errorf("get invitation by token: %w", err)
	}
	if invitation.Status != domain.InvitationStatusPending {
		return domain.Invitation{}, domain.ErrAlreadyProcessed.WithMetadata(map[string]string{
			"Status": strings.ToLower(domain.InvitationStatusLabel(invitation.Status)),
		})
	}
	if invitation.ExpiredAt(s.nowUTC()) {
		// Lazy expiry: flip the row as a side effect of reading it late.
		if _, err := s.store.TransitionInvitation(ctx, invitation.ID, domain.InvitationStatusExpired, s.nowUTC()); err != nil && !errors.Is(err, storage.ErrNotPending) {
			return domain.Invitation{}, fmt.Errorf("expire invitation: %w", err)
		}
		return domain.Invitation{}, domain.ErrInvitationExpired
	}
	if invitation.InvitedUserID != "" && invitation.InvitedUserID != actingUserID {
		return domain.Invitation{}, domain.ErrForbidden
	}
	return invitation, nil
}

// alreadyProcessed reloads the invitation to report its terminal status.
func (s *Service) alreadyProcessed(ctx context.Context, invitationID string) error {
	status := domain.InvitationStatusUnspecified
	if current, err := s.store.GetInvitation(ctx, invitationID); err == nil {
		status = current.Status
	}
	return domain.ErrAlreadyProcessed.WithMetadata(map[string]string{
		"Status": strings.ToLower(domain.InvitationStatusLabel(status)),
	})
}

func (s *Service) invitationMessage(ctx context.Context, team domain.Team, invitation domain.Invitation, invited identity.User) notify.InvitationMessage {
	inviterName := invitation.InviterID
	if inviter, err := s.identity.LookupByID(ctx, invitation.InviterID); err == nil && inviter.DisplayName != "" {
		inviterName = inviter.DisplayName
	}
	return notify.InvitationMessage{
		To:          invitation.InvitedEmail,
		InvitedName: invited.DisplayName,
		TeamName:    team.Name,
		InviterName: inviterName,
		Role:        domain.RoleLabel(invitation.Role),
		Message:     invitation.Message,
		Token:       invitation.Token,
	}
}

// dispatchAsync runs a post-commit side effect off the request path.
func (s *Service) dispatchAsync(task func()) {
	if s.dispatch != nil {
		s.dispatch(task)
		return
	}
	go task()
}
