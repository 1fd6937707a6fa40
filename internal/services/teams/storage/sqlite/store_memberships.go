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

const membershipColumns = `id, team_id, user_id, role, inviter_id, joined_at`

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type sqlQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanMembership(scan scanner) (domain.Membership, error) {
	var membership domain.Membership
	var role string
	var joinedAt int64
	if err := scan(
		&membership.ID,
		&membership.TeamID,
		&membership.UserID,
		&role,
		&membership.InviterID,
		&joinedAt,
	); err != nil {
		return domain.Membership{}, err
	}
	membership.Role = domain.RoleFromLabel(role)
	membership.JoinedAt = fromMillis(joinedAt)
	return membership, nil
}

// insertMembershipExec inserts a membership row within the caller's unit of
// work, surfacing uniqueness violations as ErrConflict.
func insertMembershipExec(ctx context.Context, execer sqlExecer, membership domain.Membership) error {
	_, err := execer.ExecContext(ctx, `
INSERT INTO memberships (`+membershipColumns+`)
VALUES (?, ?, ?, ?, ?, ?)`,
		membership.ID,
		membership.TeamID,
		membership.UserID,
		domain.RoleLabel(membership.Role),
		membership.InviterID,
		toMillis(membership.JoinedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		if isForeignKeyConstraintError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

// checkCapacityTx re-reads member and pending counts inside the caller's
// transaction and fails when the occupied seats reach the team capacity.
func checkCapacityTx(ctx context.Context, q sqlQuerier, teamID string, includePending bool) error {
	var maxMembers int
	row := q.QueryRowContext(ctx, `SELECT max_members FROM teams WHERE id = ?`, teamID)
	if err := row.Scan(&maxMembers); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("read team capacity: %w", err)
	}

	query := `SELECT COUNT(*) FROM memberships WHERE team_id = ?`
	args := []any{teamID}
	if includePending {
		query = `
SELECT (SELECT COUNT(*) FROM memberships WHERE team_id = ?)
     + (SELECT COUNT(*) FROM invitations WHERE team_id = ? AND status = ?)`
		args = []any{teamID, teamID, domain.InvitationStatusLabel(domain.InvitationStatusPending)}
	}
	var occupied int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&occupied); err != nil {
		return fmt.Errorf("count occupied seats: %w", err)
	}
	if occupied >= maxMembers {
		return storage.ErrCapacityExceeded
	}
	return nil
}

// InsertMembership adds a member, re-checking capacity and uniqueness inside
// the inserting transaction.
func (s *Store) InsertMembership(ctx context.Context, membership domain.Membership) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	tx, rollback, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer rollback()

	if err := checkCapacityTx(ctx, tx, membership.TeamID, false); err != nil {
		return err
	}
	if err := insertMembershipExec(ctx, tx, membership); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert membership: %w", err)
	}
	return nil
}

// GetMembership returns one membership by team and id.
func (s *Store) GetMembership(ctx context.Context, teamID string, membershipID string) (domain.Membership, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Membership{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+membershipColumns+`
FROM memberships
WHERE team_id = ? AND id = ?`, strings.TrimSpace(teamID), strings.TrimSpace(membershipID))
	membership, err := scanMembership(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Membership{}, storage.ErrNotFound
		}
		return domain.Membership{}, fmt.Errorf("get membership: %w", err)
	}
	return membership, nil
}

// MembershipByTeamAndUser returns one membership by team and user.
func (s *Store) MembershipByTeamAndUser(ctx context.Context, teamID string, userID string) (domain.Membership, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Membership{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+membershipColumns+`
FROM memberships
WHERE team_id = ? AND user_id = ?`, strings.TrimSpace(teamID), strings.TrimSpace(userID))
	membership, err := scanMembership(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Membership{}, storage.ErrNotFound
		}
		return domain.Membership{}, fmt.Errorf("get membership by user: %w", err)
	}
	return membership, nil
}

// ListMemberships returns one page of team memberships ordered by id.
func (s *Store) ListMemberships(ctx context.Context, teamID string, pageSize int, pageToken string) (storage.MembershipPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.MembershipPage{}, err
	}
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return storage.MembershipPage{}, fmt.Errorf("team id is required")
	}
	if pageSize <= 0 {
		return storage.MembershipPage{}, fmt.Errorf("page size must be greater than zero")
	}

	query := `
SELECT ` + membershipColumns + `
FROM memberships
WHERE team_id = ?`
	args := []any{teamID}
	if pageToken = strings.TrimSpace(pageToken); pageToken != "" {
		query += ` AND id > ?`
		args = append(args, pageToken)
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.MembershipPage{}, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	page := storage.MembershipPage{Memberships: make([]domain.Membership, 0, pageSize)}
	for rows.Next() {
		membership, err := scanMembership(rows.Scan)
		if err != nil {
			return storage.MembershipPage{}, fmt.Errorf("list memberships: %w", err)
		}
		page.Memberships = append(page.Memberships, membership)
	}
	if err := rows.Err(); err != nil {
		return storage.MembershipPage{}, fmt.Errorf("list memberships: %w", err)
	}
	if len(page.Memberships) > pageSize {
		page.NextPageToken = page.Memberships[pageSize-1].ID
		page.Memberships = page.Memberships[:pageSize]
	}
	return page, nil
}

// UpdateMembershipRole changes a member's role. The admin-count guard is part
// of the UPDATE itself: demoting an admin only succeeds while another admin
// row exists, so two concurrent demotions cannot both pass.
// ListMembershipsByRole returns every membership in a team holding one role.
func (s *Store) ListMembershipsByRole(ctx context.Context, teamID string, role domain.Role) ([]domain.Membership, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+membershipColumns+`
FROM memberships
WHERE team_id = ? AND role = ?
ORDER BY id ASC`,
		strings.TrimSpace(teamID),
		domain.RoleLabel(role),
	)
	if err != nil {
		return nil, fmt.Errorf("list memberships by role: %w", err)
	}
	defer rows.Close()

	var memberships []domain.Membership
	for rows.Next() {
		membership, err := scanMembership(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships = append(memberships, membership)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list memberships by role: %w", err)
	}
	return memberships, nil
}

func (s *Store) UpdateMembershipRole(ctx context.Context, teamID string, membershipID string, role domain.Role) (domain.Membership, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Membership{}, err
	}
	teamID = strings.TrimSpace(teamID)
	membershipID = strings.TrimSpace(membershipID)
	adminLabel := domain.RoleLabel(domain.RoleAdmin)
	newLabel := domain.RoleLabel(role)

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE memberships
SET role = ?
WHERE team_id = ? AND id = ?
  AND (
    role <> ?
    OR ? = ?
    OR (SELECT COUNT(*) FROM memberships a WHERE a.team_id = memberships.team_id AND a.role = ?) > 1
  )`,
		newLabel,
		teamID,
		membershipID,
		adminLabel,
		newLabel, adminLabel,
		adminLabel,
	)
	if err != nil {
		return domain.Membership{}, fmt.Errorf("update membership role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Membership{}, fmt.Errorf("update membership role rows affected: %w", err)
	}
	if affected == 0 {
		// Either the row is missing or the guard refused the demotion.
		if _, err := s.GetMembership(ctx, teamID, membershipID); err != nil {
			return domain.Membership{}, err
		}
		return domain.Membership{}, storage.ErrLastAdmin
	}
	return s.GetMembership(ctx, teamID, membershipID)
}

// DeleteMembership removes a member under the same admin-count guard as role
// demotion.
func (s *Store) DeleteMembership(ctx context.Context, teamID string, membershipID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	teamID = strings.TrimSpace(teamID)
	membershipID = strings.TrimSpace(membershipID)
	adminLabel := domain.RoleLabel(domain.RoleAdmin)

	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM memberships
WHERE team_id = ? AND id = ?
  AND (
    role <> ?
    OR (SELECT COUNT(*) FROM memberships a WHERE a.team_id = memberships.team_id AND a.role = ?) > 1
  )`,
		teamID,
		membershipID,
		adminLabel,
		adminLabel,
	)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete membership rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetMembership(ctx, teamID, membershipID); err != nil {
			return err
		}
		return storage.ErrLastAdmin
	}
	return nil
}

// CountMembers returns the number of members in a team.
func (s *Store) CountMembers(ctx context.Context, teamID string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	var count int
	row := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM memberships WHERE team_id = ?`, strings.TrimSpace(teamID))
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

// CountMembersByRole returns the number of members holding a role.
func (s *Store) CountMembersByRole(ctx context.Context, teamID string, role domain.Role) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	var count int
	row := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM memberships WHERE team_id = ? AND role = ?`,
		strings.TrimSpace(teamID), domain.RoleLabel(role))
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count members by role: %w", err)
	}
	return count, nil
}
