package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/teamdesk/internal/services/teams/domain"
	"github.com/louisbranch/teamdesk/internal/services/teams/storage"
)

const teamColumns = `id, name, description, color, active, max_members, creator_id, created_at, updated_at`

type scanner func(dest ...any) error

func scanTeam(scan scanner) (domain.Team, error) {
	var team domain.Team
	var active int
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&team.ID,
		&team.Name,
		&team.Description,
		&team.Color,
		&active,
		&team.MaxMembers,
		&team.CreatorID,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Team{}, err
	}
	team.Active = active != 0
	team.CreatedAt = fromMillis(createdAt)
	team.UpdatedAt = fromMillis(updatedAt)
	return team, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// CreateTeamWithOwner atomically inserts a team and its creator's admin
// membership.
func (s *Store) CreateTeamWithOwner(ctx context.Context, team domain.Team, owner domain.Membership) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	tx, rollback, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO teams (`+teamColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		team.ID,
		team.Name,
		team.Description,
		team.Color,
		boolToInt(team.Active),
		team.MaxMembers,
		team.CreatorID,
		toMillis(team.CreatedAt),
		toMillis(team.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert team: %w", err)
	}

	if err := insertMembershipExec(ctx, tx, owner); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create team: %w", err)
	}
	return nil
}

// GetTeam returns one team by id.
func (s *Store) GetTeam(ctx context.Context, teamID string) (domain.Team, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Team{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+teamColumns+`
FROM teams
WHERE id = ?`, strings.TrimSpace(teamID))
	team, err := scanTeam(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Team{}, storage.ErrNotFound
		}
		return domain.Team{}, fmt.Errorf("get team: %w", err)
	}
	return team, nil
}

// UpdateTeam rewrites the mutable team fields.
func (s *Store) UpdateTeam(ctx context.Context, team domain.Team) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE teams
SET name = ?, description = ?, color = ?, active = ?, max_members = ?, updated_at = ?
WHERE id = ?`,
		team.Name,
		team.Description,
		team.Color,
		boolToInt(team.Active),
		team.MaxMembers,
		toMillis(team.UpdatedAt),
		team.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("update team: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update team rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteTeam removes the team and cascades memberships and invitations in
// one transaction.
func (s *Store) DeleteTeam(ctx context.Context, teamID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	teamID = strings.TrimSpace(teamID)

	tx, rollback, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM invitations WHERE team_id = ?`, teamID); err != nil {
		return fmt.Errorf("delete team invitations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memberships WHERE team_id = ?`, teamID); err != nil {
		return fmt.Errorf("delete team memberships: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, teamID)
	if err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete team rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete team: %w", err)
	}
	return nil
}

// CountTeamsByCreator returns how many teams a user created.
func (s *Store) CountTeamsByCreator(ctx context.Context, creatorID string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	var count int
	row := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM teams WHERE creator_id = ?`, strings.TrimSpace(creatorID))
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count teams by creator: %w", err)
	}
	return count, nil
}

// ListTeamsByUser returns one page of the teams a user belongs to, ordered
// by team id.
func (s *Store) ListTeamsByUser(ctx context.Context, userID string, pageSize int, pageToken string) (storage.TeamPage, error) {
	return s.listTeams(ctx, userID, "", pageSize, pageToken)
}

// SearchTeamsByUser returns one page of the user's teams whose name matches
// the keyword.
func (s *Store) SearchTeamsByUser(ctx context.Context, userID string, keyword string, pageSize int, pageToken string) (storage.TeamPage, error) {
	return s.listTeams(ctx, userID, keyword, pageSize, pageToken)
}

func (s *Store) listTeams(ctx context.Context, userID string, keyword string, pageSize int, pageToken string) (storage.TeamPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.TeamPage{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.TeamPage{}, fmt.Errorf("user id is required")
	}
	if pageSize <= 0 {
		return storage.TeamPage{}, fmt.Errorf("page size must be greater than zero")
	}

	query := `
SELECT t.id, t.name, t.description, t.color, t.active, t.max_members, t.creator_id, t.created_at, t.updated_at
FROM teams t
JOIN memberships m ON m.team_id = t.id
WHERE m.user_id = ?`
	args := []any{userID}
	if keyword = strings.TrimSpace(keyword); keyword != "" {
		query += ` AND LOWER(t.name) LIKE ?`
		args = append(args, "%"+strings.ToLower(keyword)+"%")
	}
	if pageToken = strings.TrimSpace(pageToken); pageToken != "" {
		query += ` AND t.id > ?`
		args = append(args, pageToken)
	}
	query += ` ORDER BY t.id ASC LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.TeamPage{}, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	page := storage.TeamPage{Teams: make([]domain.Team, 0, pageSize)}
	for rows.Next() {
		team, err := scanTeam(rows.Scan)
		if err != nil {
			return storage.TeamPage{}, fmt.Errorf("list teams: %w", err)
		}
		page.Teams = append(page.Teams, team)
	}
	if err := rows.Err(); err != nil {
		return storage.TeamPage{}, fmt.Errorf("list teams: %w", err)
	}
	if len(page.Teams) > pageSize {
		page.NextPageToken = page.Teams[pageSize-1].ID
		page.Teams = page.Teams[:pageSize]
	}
	return page, nil
}

// GetTeamStats aggregates member, admin, and pending invitation counts.
func (s *Store) GetTeamStats(ctx context.Context, teamID string) (storage.TeamStats, error) {
	if err := s.ready(ctx); err != nil {
		return storage.TeamStats{}, err
	}
	teamID = strings.TrimSpace(teamID)

	var stats storage.TeamStats
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT
  t.max_members,
  (SELECT COUNT(*) FROM memberships m WHERE m.team_id = t.id),
  (SELECT COUNT(*) FROM memberships m WHERE m.team_id = t.id AND m.role = ?),
  (SELECT COUNT(*) FROM invitations i WHERE i.team_id = t.id AND i.status = ?)
FROM teams t
WHERE t.id = ?`,
		domain.RoleLabel(domain.RoleAdmin),
		domain.InvitationStatusLabel(domain.InvitationStatusPending),
		teamID,
	)
	if err := row.Scan(&stats.MaxMembers, &stats.MemberCount, &stats.AdminCount, &stats.PendingInvitations); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.TeamStats{}, storage.ErrNotFound
		}
		return storage.TeamStats{}, fmt.Errorf("get team stats: %w", err)
	}
	return stats, nil
}
