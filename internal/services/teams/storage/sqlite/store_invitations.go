package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/teamdesk/internal/services/teams/domain"
	"github.com/louisbranch/teamdesk/internal/services/teams/storage"
)

const invitationColumns = `id, team_id, invited_email, invited_user_id, role, inviter_id, token, message, status,
	expires_at, accepted_at, rejected_at, last_resent_at, created_at, updated_at`

func scanInvitation(scan scanner) (domain.Invitation, error) {
	var invitation domain.Invitation
	var role string
	var status string
	var expiresAt int64
	var acceptedAt sql.NullInt64
	var rejectedAt sql.NullInt64
	var lastResentAt sql.NullInt64
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&invitation.ID,
		&invitation.TeamID,
		&invitation.InvitedEmail,
		&invitation.InvitedUserID,
		&role,
		&invitation.InviterID,
		&invitation.Token,
		&invitation.Message,
		&status,
		&expiresAt,
		&acceptedAt,
		&rejectedAt,
		&lastResentAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Invitation{}, err
	}
	invitation.Role = domain.RoleFromLabel(role)
	invitation.Status = domain.InvitationStatusFromLabel(status)
	invitation.ExpiresAt = fromMillis(expiresAt)
	invitation.AcceptedAt = fromNullMillis(acceptedAt)
	invitation.RejectedAt = fromNullMillis(rejectedAt)
	invitation.LastResentAt = fromNullMillis(lastResentAt)
	invitation.CreatedAt = fromMillis(createdAt)
	invitation.UpdatedAt = fromMillis(updatedAt)
	return invitation, nil
}

// InsertInvitation persists a pending invitation. The members-plus-pending
// capacity ceiling is re-read inside the inserting transaction, and the
// partial unique index on PENDING rows backstops the duplicate check.
func (s *Store) InsertInvitation(ctx context.Context, invitation domain.Invitation) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	tx, rollback, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer rollback()

	if err := checkCapacityTx(ctx, tx, invitation.TeamID, true); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO invitations (`+invitationColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invitation.ID,
		invitation.TeamID,
		invitation.InvitedEmail,
		invitation.InvitedUserID,
		domain.RoleLabel(invitation.Role),
		invitation.InviterID,
		invitation.Token,
		invitation.Message,
		domain.InvitationStatusLabel(invitation.Status),
		toMillis(invitation.ExpiresAt),
		toNullMillis(invitation.AcceptedAt),
		toNullMillis(invitation.RejectedAt),
		toNullMillis(invitation.LastResentAt),
		toMillis(invitation.CreatedAt),
		toMillis(invitation.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		if isForeignKeyConstraintError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("insert invitation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert invitation: %w", err)
	}
	return nil
}

// GetInvitation returns one invitation by id.
func (s *Store) GetInvitation(ctx context.Context, invitationID string) (domain.Invitation, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Invitation{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+invitationColumns+`
FROM invitations
WHERE id = ?`, strings.TrimSpace(invitationID))
	invitation, err := scanInvitation(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Invitation{}, storage.ErrNotFound
		}
		return domain.Invitation{}, fmt.Errorf("get invitation: %w", err)
	}
	return invitation, nil
}

// InvitationByToken returns one invitation by its opaque token.
func (s *Store) InvitationByToken(ctx context.Context, token string) (domain.Invitation, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Invitation{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+invitationColumns+`
FROM invitations
WHERE token = ?`, strings.TrimSpace(token))
	invitation, err := scanInvitation(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Invitation{}, storage.ErrNotFound
		}
		return domain.Invitation{}, fmt.Errorf("get invitation by token: %w", err)
	}
	return invitation, nil
}

// AcceptInvitation flips a PENDING invitation to ACCEPTED and inserts the
// membership in one transaction. The conditional status flip serializes
// concurrent accepts of the same token: exactly one observes PENDING.
func (s *Store) AcceptInvitation(ctx context.Context, invitationID string, membership domain.Membership, acceptedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	invitationID = strings.TrimSpace(invitationID)

	tx, rollback, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer rollback()

	at := toMillis(acceptedAt)
	result, err := tx.ExecContext(ctx, `
UPDATE invitations
SET status = ?, accepted_at = ?, updated_at = ?
WHERE id = ? AND status = ?`,
		domain.InvitationStatusLabel(domain.InvitationStatusAccepted),
		at,
		at,
		invitationID,
		domain.InvitationStatusLabel(domain.InvitationStatusPending),
	)
	if err != nil {
		return fmt.Errorf("accept invitation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("accept invitation rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotPending
	}

	if err := checkCapacityTx(ctx, tx, membership.TeamID, false); err != nil {
		return err
	}
	if err := insertMembershipExec(ctx, tx, membership); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit accept invitation: %w", err)
	}
	return nil
}

// TransitionInvitation conditionally moves a PENDING invitation to a
// terminal status and stamps the matching timestamp column.
func (s *Store) TransitionInvitation(ctx context.Context, invitationID string, to domain.InvitationStatus, at time.Time) (domain.Invitation, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Invitation{}, err
	}
	invitationID = strings.TrimSpace(invitationID)

	set := `status = ?, updated_at = ?`
	args := []any{domain.InvitationStatusLabel(to), toMillis(at)}
	switch to {
	case domain.InvitationStatusAccepted:
		set += `, accepted_at = ?`
		args = append(args, toMillis(at))
	case domain.InvitationStatusRejected:
		set += `, rejected_at = ?`
		args = append(args, toMillis(at))
	}
	args = append(args, invitationID, domain.InvitationStatusLabel(domain.InvitationStatusPending))

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE invitations
SET `+set+`
WHERE id = ? AND status = ?`, args...)
	if err != nil {
		return domain.Invitation{}, fmt.Errorf("transition invitation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Invitation{}, fmt.Errorf("transition invitation rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetInvitation(ctx, invitationID); err != nil {
			return domain.Invitation{}, err
		}
		return domain.Invitation{}, storage.ErrNotPending
	}
	return s.GetInvitation(ctx, invitationID)
}

// MarkInvitationResent extends the expiry and stamps the resend time on a
// PENDING invitation.
func (s *Store) MarkInvitationResent(ctx context.Context, invitationID string, expiresAt time.Time, resentAt time.Time) (domain.Invitation, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Invitation{}, err
	}
	invitationID = strings.TrimSpace(invitationID)

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE invitations
SET expires_at = ?, last_resent_at = ?, updated_at = ?
WHERE id = ? AND status = ?`,
		toMillis(expiresAt),
		toMillis(resentAt),
		toMillis(resentAt),
		invitationID,
		domain.InvitationStatusLabel(domain.InvitationStatusPending),
	)
	if err != nil {
		return domain.Invitation{}, fmt.Errorf("mark invitation resent: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Invitation{}, fmt.Errorf("mark invitation resent rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetInvitation(ctx, invitationID); err != nil {
			return domain.Invitation{}, err
		}
		return domain.Invitation{}, storage.ErrNotPending
	}
	return s.GetInvitation(ctx, invitationID)
}

// ListPendingInvitationsByTeam returns a team's pending invitations, newest
// first.
func (s *Store) ListPendingInvitationsByTeam(ctx context.Context, teamID string) ([]domain.Invitation, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+invitationColumns+`
FROM invitations
WHERE team_id = ? AND status = ?
ORDER BY created_at DESC, id DESC`,
		strings.TrimSpace(teamID),
		domain.InvitationStatusLabel(domain.InvitationStatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("list pending invitations: %w", err)
	}
	defer rows.Close()
	return collectInvitations(rows)
}

// ListPendingInvitationsForUser returns pending invitations addressed to an
// email or to a resolved user id.
func (s *Store) ListPendingInvitationsForUser(ctx context.Context, email string, userID string) ([]domain.Invitation, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+invitationColumns+`
FROM invitations
WHERE status = ? AND (invited_email = ? OR (invited_user_id <> '' AND invited_user_id = ?))
ORDER BY created_at DESC, id DESC`,
		domain.InvitationStatusLabel(domain.InvitationStatusPending),
		strings.TrimSpace(email),
		strings.TrimSpace(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("list pending invitations for user: %w", err)
	}
	defer rows.Close()
	return collectInvitations(rows)
}

// CountPendingInvitations returns how many invitations are pending for a team.
func (s *Store) CountPendingInvitations(ctx context.Context, teamID string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	var count int
	row := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM invitations WHERE team_id = ? AND status = ?`,
		strings.TrimSpace(teamID),
		domain.InvitationStatusLabel(domain.InvitationStatusPending),
	)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending invitations: %w", err)
	}
	return count, nil
}

// ExpirePendingInvitations flips every PENDING row past its expiry to
// EXPIRED. A single conditional UPDATE keeps the sweep idempotent and safe
// under concurrent runs.
func (s *Store) ExpirePendingInvitations(ctx context.Context, now time.Time) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE invitations
SET status = ?, updated_at = ?
WHERE status = ? AND expires_at <= ?`,
		domain.InvitationStatusLabel(domain.InvitationStatusExpired),
		toMillis(now),
		domain.InvitationStatusLabel(domain.InvitationStatusPending),
		toMillis(now),
	)
	if err != nil {
		return 0, fmt.Errorf("expire pending invitations: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire pending invitations rows affected: %w", err)
	}
	return affected, nil
}

func collectInvitations(rows *sql.Rows) ([]domain.Invitation, error) {
	var invitations []domain.Invitation
	for rows.Next() {
		invitation, err := scanInvitation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		invitations = append(invitations, invitation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collect invitations: %w", err)
	}
	return invitations, nil
}
