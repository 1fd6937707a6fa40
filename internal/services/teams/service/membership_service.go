package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/teamdesk/internal/services/teams/domain"
	"github.com/louisbranch/teamdesk/internal/services/teams/storage"
)

// AddMember adds a user to a team with the given role. Capacity and the
// (team,user) uniqueness rule are re-checked inside the inserting
// transaction.
func (s *Service) AddMember(ctx context.Context, teamID string, userID string, role domain.Role, inviterID string) (domain.Membership, error) {
	if s == nil || s.store == nil {
		return domain.Membership{}, ErrStoreNotConfigured
	}
	teamID = strings.TrimSpace(teamID)

	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Membership{}, domain.ErrTeamNotFound
		}
		return domain.Membership{}, fmt.Errorf("get team: %w", err)
	}
	if !team.Active {
		return domain.Membership{}, domain.ErrTeamInactive
	}

	membership, err := domain.NewMembership(teamID, strings.TrimSpace(userID), role, strings.TrimSpace(inviterID), s.clock, s.newID)
	if err != nil {
		return domain.Membership{}, err
	}

	if err := s.store.InsertMembership(ctx, membership); err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			return domain.Membership{}, domain.ErrMembershipExists
		case errors.Is(err, storage.ErrCapacityExceeded):
			return domain.Membership{}, domain.ErrTeamCapacityExceeded.WithMetadata(map[string]string{"Name": team.Name})
		}
		return domain.Membership{}, fmt.Errorf("insert membership: %w", err)
	}
	return membership, nil
}

// UpdateMemberRole changes a member's role. Requires admin, refuses
// self-modification, and enforces the last-admin guard inside the mutating
// write.
func (s *Service) UpdateMemberRole(ctx context.Context, teamID string, membershipID string, newRole domain.Role, actorID string) (domain.Membership, error) {
	if s == nil || s.store == nil {
		return domain.Membership{}, ErrStoreNotConfigured
	}
	teamID = strings.TrimSpace(teamID)
	membershipID = strings.TrimSpace(membershipID)
	actorID = strings.TrimSpace(actorID)

	if newRole == domain.RoleUnspecified {
		return domain.Membership{}, domain.ErrInvalidRole
	}
	if _, err := s.requireAdmin(ctx, teamID, actorID); err != nil {
		return domain.Membership{}, err
	}

	target, err := s.store.GetMembership(ctx, teamID, membershipID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Membership{}, domain.ErrMemberNotFound
		}
		return domain.Membership{}, fmt.Errorf("get membership: %w", err)
	}
	// Self-modification is refused regardless of admin status.
	if target.UserID == actorID {
		return domain.Membership{}, domain.ErrSelfModification
	}

	updated, err := s.store.UpdateMembershipRole(ctx, teamID, membershipID, newRole)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrLastAdmin):
			return domain.Membership{}, domain.ErrLastAdmin
		case errors.Is(err, storage.ErrNotFound):
			return domain.Membership{}, domain.ErrMemberNotFound
		}
		return domain.Membership{}, fmt.Errorf("update membership role: %w", err)
	}
	return updated, nil
}

// RemoveMember removes a member from a team. Self-removal needs no admin
// check; removing anyone else does. Either way the last-admin guard applies
// inside the deleting write.
func (s *Service) RemoveMember(ctx context.Context, teamID string, membershipID string, actorID string) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	teamID = strings.TrimSpace(teamID)
	membershipID = strings.TrimSpace(membershipID)
	actorID = strings.TrimSpace(actorID)

	target, err := s.store.GetMembership(ctx, teamID, membershipID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.ErrMemberNotFound
		}
		return fmt.Errorf("get membership: %w", err)
	}

	if target.UserID != actorID {
		if _, err := s.requireAdmin(ctx, teamID, actorID); err != nil {
			return err
		}
	}

	if err := s.store.DeleteMembership(ctx, teamID, membershipID); err != nil {
		switch {
		case errors.Is(err, storage.ErrLastAdmin):
			return domain.ErrLastAdmin
		case errors.Is(err, storage.ErrNotFound):
			return domain.ErrMemberNotFound
		}
		return fmt.Errorf("delete membership: %w", err)
	}
	return nil
}

// LeaveTeam removes the caller's own membership, under the last-admin guard.
func (s *Service) LeaveTeam(ctx context.Context, teamID string, userID string) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	teamID = strings.TrimSpace(teamID)
	userID = strings.TrimSpace(userID)

	membership, err := s.store.MembershipByTeamAndUser(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.ErrMemberNotFound
		}
		return fmt.Errorf("get membership: %w", err)
	}
	return s.RemoveMember(ctx, teamID, membership.ID, userID)
}

// GetMember returns one membership, visible to team members.
func (s *Service) GetMember(ctx context.Context, teamID string, membershipID string, actorID string) (domain.Membership, error) {
	if s == nil || s.store == nil {
		return domain.Membership{}, ErrStoreNotConfigured
	}
	teamID = strings.TrimSpace(teamID)
	if _, err := s.requireMember(ctx, teamID, strings.TrimSpace(actorID)); err != nil {
		return domain.Membership{}, err
	}
	membership, err := s.store.GetMembership(ctx, teamID, strings.TrimSpace(membershipID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Membership{}, domain.ErrMemberNotFound
		}
		return domain.Membership{}, fmt.Errorf("get membership: %w", err)
	}
	return membership, nil
}

// ListMembers returns one page of team memberships, visible to team members.
func (s *Service) ListMembers(ctx context.Context, teamID string, actorID string, pageSize int, pageToken string) (storage.MembershipPage, error) {
	if s == nil || s.store == nil {
		return storage.MembershipPage{}, ErrStoreNotConfigured
	}
	teamID = strings.TrimSpace(teamID)
	if _, err := s.requireMember(ctx, teamID, strings.TrimSpace(actorID)); err != nil {
		return storage.MembershipPage{}, err
	}
	return s.store.ListMemberships(ctx, teamID, clampPageSize(pageSize), strings.TrimSpace(pageToken))
}

// ListMembersByRole returns every membership holding one role, visible to
// team members. The result is bounded by the team capacity, so it carries no
// pagination.
func (s *Service) ListMembersByRole(ctx context.Context, teamID string, role domain.Role, actorID string) ([]domain.Membership, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	teamID = strings.TrimSpace(teamID)
	if role == domain.RoleUnspecified {
		return nil, domain.ErrInvalidRole
	}
	if _, err := s.requireMember(ctx, teamID, strings.TrimSpace(actorID)); err != nil {
		return nil, err
	}
	memberships, err := s.store.ListMembershipsByRole(ctx, teamID, role)
	if err != nil {
		return nil, fmt.Errorf("list memberships by role: %w", err)
	}
	return memberships, nil
}

// SearchMembers returns the team memberships whose user's display name or
// email contains the keyword, case-insensitively. A blank keyword matches
// everyone. Members whose identity cannot be resolved are skipped.
func (s *Service) SearchMembers(ctx context.Context, teamID string, keyword string, actorID string) ([]domain.Membership, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	teamID = strings.TrimSpace(teamID)
	if _, err := s.requireMember(ctx, teamID, strings.TrimSpace(actorID)); err != nil {
		return nil, err
	}
	keyword = strings.ToLower(strings.TrimSpace(keyword))

	var matches []domain.Membership
	pageToken := ""
	for {
		page, err := s.store.ListMemberships(ctx, teamID, maxPageSize, pageToken)
		if err != nil {
			return nil, fmt.Errorf("list memberships: %w", err)
		}
		for _, membership := range page.Memberships {
			if keyword == "" {
				matches = append(matches, membership)
				continue
			}
			user, err := s.identity.LookupByID(ctx, membership.UserID)
			if err != nil {
				continue
			}
			if strings.Contains(strings.ToLower(user.DisplayName), keyword) ||
				strings.Contains(strings.ToLower(user.Email), keyword) {
				matches = append(matches, membership)
			}
		}
		if page.NextPageToken == "" {
			return matches, nil
		}
		pageToken = page.NextPageToken
	}
}

// CountAdmins returns the number of admin members in a team.
func (s *Service) CountAdmins(ctx context.Context, teamID string) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	return s.store.CountMembersByRole(ctx, strings.TrimSpace(teamID), domain.RoleAdmin)
}
