package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/louisbranch/teamdesk/internal/services/teams/domain"
	"github.com/louisbranch/teamdesk/internal/services/teams/storage"
)

// CreateTeam creates a team and installs the creator as its sole admin in
// one transaction.
func (s *Service) CreateTeam(ctx context.Context, input domain.CreateTeamInput) (domain.Team, error) {
	if s == nil || s.store == nil {
		return domain.Team{}, ErrStoreNotConfigured
	}

	team, err := domain.NewTeam(input, s.clock, s.newID)
	if err != nil {
		return domain.Team{}, err
	}

	owned, err := s.store.CountTeamsByCreator(ctx, team.CreatorID)
	if err != nil {
		return domain.Team{}, fmt.Errorf("count owned teams: %w", err)
	}
	if owned >= domain.MaxTeamsPerOwner {
		return domain.Team{}, domain.ErrTeamQuotaExceeded.WithMetadata(map[string]string{
			"Limit": strconv.Itoa(domain.MaxTeamsPerOwner),
		})
	}

	owner, err := domain.NewMembership(team.ID, team.CreatorID, domain.RoleAdmin, "", s.clock, s.newID)
	if err != nil {
		return domain.Team{}, err
	}

	if err := s.store.CreateTeamWithOwner(ctx, team, owner); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return domain.Team{}, domain.ErrTeamNameConflict.WithMetadata(map[string]string{"Name": team.Name})
		}
		return domain.Team{}, fmt.Errorf("create team: %w", err)
	}
	return team, nil
}

// UpdateTeamInput carries the mutable team fields for an update.
type UpdateTeamInput struct {
	Name        string
	Description string
	Color       string
	MaxMembers  int
}

// UpdateTeam rewrites team metadata. Requires the actor to be a team admin.
func (s *Service) UpdateTeam(ctx context.Context, teamID string, input UpdateTeamInput, actorID string) (domain.Team, error) {
	if s == nil || s.store == nil {
		return domain.Team{}, ErrStoreNotConfigured
	}
	teamID = strings.TrimSpace(teamID)

	if _, err := s.requireAdmin(ctx, teamID, strings.TrimSpace(actorID)); err != nil {
		return domain.Team{}, err
	}

	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Team{}, domain.ErrTeamNotFound
		}
		return domain.Team{}, fmt.Errorf("get team: %w", err)
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domain.Team{}, domain.ErrTeamNameEmpty
	}
	team.Name = name
	team.Description = strings.TrimSpace(input.Description)
	team.Color = strings.TrimSpace(input.Color)
	if input.MaxMembers > 0 {
		members, err := s.store.CountMembers(ctx, teamID)
		if err != nil {
			return domain.Team{}, fmt.Errorf("count members: %w", err)
		}
		if input.MaxMembers < members {
			return domain.Team{}, domain.ErrTeamCapacityExceeded.WithMetadata(map[string]string{"Name": team.Name})
		}
		team.MaxMembers = input.MaxMembers
	}
	team.UpdatedAt = s.nowUTC()

	if err := s.store.UpdateTeam(ctx, team); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return domain.Team{}, domain.ErrTeamNameConflict.WithMetadata(map[string]string{"Name": team.Name})
		}
		return domain.Team{}, fmt.Errorf("update team: %w", err)
	}
	return team, nil
}

// ToggleTeamActive flips the team activation flag. Requires admin. The flip
// does not cascade: dependent writes must refuse inactive teams themselves.
func (s *Service) ToggleTeamActive(ctx context.Context, teamID string, actorID string) (domain.Team, error) {
	if s == nil || s.store == nil {
		return domain.Team{}, ErrStoreNotConfigured
	}
	teamID = strings.TrimSpace(teamID)

	if _, err := s.requireAdmin(ctx, teamID, strings.TrimSpace(actorID)); err != nil {
		return domain.Team{}, err
	}
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Team{}, domain.ErrTeamNotFound
		}
		return domain.Team{}, fmt.Errorf("get team: %w", err)
	}

	team.Active = !team.Active
	team.UpdatedAt = s.nowUTC()
	if err := s.store.UpdateTeam(ctx, team); err != nil {
		return domain.Team{}, fmt.Errorf("toggle team active: %w", err)
	}
	return team, nil
}

// DeleteTeam removes a team and cascades membership and invitation deletion.
// Requires admin.
func (s *Service) DeleteTeam(ctx context.Context, teamID string, actorID string) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	teamID = strings.TrimSpace(teamID)

	if _, err := s.requireAdmin(ctx, teamID, strings.TrimSpace(actorID)); err != nil {
		return err
	}
	if err := s.store.DeleteTeam(ctx, teamID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.ErrTeamNotFound
		}
		return fmt.Errorf("delete team: %w", err)
	}
	return nil
}

// GetTeam returns a team visible to one of its members.
func (s *Service) GetTeam(ctx context.Context, teamID string, actorID string) (domain.Team, error) {
	if s == nil || s.store == nil {
		return domain.Team{}, ErrStoreNotConfigured
	}
	teamID = strings.TrimSpace(teamID)

	if _, err := s.requireMember(ctx, teamID, strings.TrimSpace(actorID)); err != nil {
		return domain.Team{}, err
	}
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Team{}, domain.ErrTeamNotFound
		}
		return domain.Team{}, fmt.Errorf("get team: %w", err)
	}
	return team, nil
}

// ListTeams returns one page of the teams a user belongs to.
func (s *Service) ListTeams(ctx context.Context, userID string, pageSize int, pageToken string) (storage.TeamPage, error) {
	if s == nil || s.store == nil {
		return storage.TeamPage{}, ErrStoreNotConfigured
	}
	return s.store.ListTeamsByUser(ctx, strings.TrimSpace(userID), clampPageSize(pageSize), strings.TrimSpace(pageToken))
}

// SearchTeams returns one page of the caller's teams matching a name keyword.
func (s *Service) SearchTeams(ctx context.Context, userID string, keyword string, pageSize int, pageToken string) (storage.TeamPage, error) {
	if s == nil || s.store == nil {
		return storage.TeamPage{}, ErrStoreNotConfigured
	}
	return s.store.SearchTeamsByUser(ctx, strings.TrimSpace(userID), strings.TrimSpace(keyword), clampPageSize(pageSize), strings.TrimSpace(pageToken))
}

// TeamStats returns headline numbers for a team, visible to members.
func (s *Service) TeamStats(ctx context.Context, teamID string, actorID string) (storage.TeamStats, error) {
	if s == nil || s.store == nil {
		return storage.TeamStats{}, ErrStoreNotConfigured
	}
	teamID = strings.TrimSpace(teamID)
	if _, err := s.requireMember(ctx, teamID, strings.TrimSpace(actorID)); err != nil {
		return storage.TeamStats{}, err
	}
	stats, err := s.store.GetTeamStats(ctx, teamID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.TeamStats{}, domain.ErrTeamNotFound
		}
		return storage.TeamStats{}, fmt.Errorf("get team stats: %w", err)
	}
	return stats, nil
}
