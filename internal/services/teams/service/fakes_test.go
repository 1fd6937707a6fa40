package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/teamdesk/internal/services/identity"
	"github.com/louisbranch/teamdesk/internal/services/teams/domain"
	"github.com/louisbranch/teamdesk/internal/services/teams/notify"
	"github.com/louisbranch/teamdesk/internal/services/teams/storage"
)

// fakeStore is an in-memory storage.Store with the same conditional-write
// semantics as the SQLite store.
type fakeStore struct {
	mu          sync.Mutex
	teams       map[string]domain.Team
	memberships map[string]domain.Membership
	invitations map[string]domain.Invitation

	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		teams:       make(map[string]domain.Team),
		memberships: make(map[string]domain.Membership),
		invitations: make(map[string]domain.Invitation),
	}
}

func (f *fakeStore) CreateTeamWithOwner(ctx context.Context, team domain.Team, owner domain.Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	for _, existing := range f.teams {
		if existing.CreatorID == team.CreatorID && strings.EqualFold(existing.Name, team.Name) {
			return storage.ErrConflict
		}
	}
	f.teams[team.ID] = team
	f.memberships[owner.ID] = owner
	return nil
}

func (f *fakeStore) GetTeam(ctx context.Context, teamID string) (domain.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	team, ok := f.teams[teamID]
	if !ok {
		return domain.Team{}, storage.ErrNotFound
	}
	return team, nil
}

func (f *fakeStore) UpdateTeam(ctx context.Context, team domain.Team) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.teams[team.ID]; !ok {
		return storage.ErrNotFound
	}
	for id, existing := range f.teams {
		if id != team.ID && existing.CreatorID == team.CreatorID && strings.EqualFold(existing.Name, team.Name) {
			return storage.ErrConflict
		}
	}
	f.teams[team.ID] = team
	return nil
}

func (f *fakeStore) DeleteTeam(ctx context.Context, teamID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.teams[teamID]; !ok {
		return storage.ErrNotFound
	}
	delete(f.teams, teamID)
	for id, m := range f.memberships {
		if m.TeamID == teamID {
			delete(f.memberships, id)
		}
	}
	for id, inv := range f.invitations {
		if inv.TeamID == teamID {
			delete(f.invitations, id)
		}
	}
	return nil
}

func (f *fakeStore) CountTeamsByCreator(ctx context.Context, creatorID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, team := range f.teams {
		if team.CreatorID == creatorID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) ListTeamsByUser(ctx context.Context, userID string, pageSize int, pageToken string) (storage.TeamPage, error) {
	return f.listTeams(userID, "", pageSize, pageToken)
}

func (f *fakeStore) SearchTeamsByUser(ctx context.Context, userID string, keyword string, pageSize int, pageToken string) (storage.TeamPage, error) {
	return f.listTeams(userID, keyword, pageSize, pageToken)
}

func (f *fakeStore) listTeams(userID string, keyword string, pageSize int, pageToken string) (storage.TeamPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var teams []domain.Team
	for _, team := range f.teams {
		member := false
		for _, m := range f.memberships {
			if m.TeamID == team.ID && m.UserID == userID {
				member = true
				break
			}
		}
		if !member {
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(team.Name), strings.ToLower(keyword)) {
			continue
		}
		teams = append(teams, team)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })

	start := 0
	if pageToken != "" {
		for i, team := range teams {
			if team.ID > pageToken {
				start = i
				break
			}
			start = i + 1
		}
	}
	page := storage.TeamPage{}
	for i := start; i < len(teams) && len(page.Teams) < pageSize; i++ {
		page.Teams = append(page.Teams, teams[i])
	}
	if start+len(page.Teams) < len(teams) && len(page.Teams) > 0 {
		page.NextPageToken = page.Teams[len(page.Teams)-1].ID
	}
	return page, nil
}

func (f *fakeStore) GetTeamStats(ctx context.Context, teamID string) (storage.TeamStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	team, ok := f.teams[teamID]
	if !ok {
		return storage.TeamStats{}, storage.ErrNotFound
	}
	stats := storage.TeamStats{MaxMembers: team.MaxMembers}
	for _, m := range f.memberships {
		if m.TeamID != teamID {
			continue
		}
		stats.MemberCount++
		if m.Role == domain.RoleAdmin {
			stats.AdminCount++
		}
	}
	for _, inv := range f.invitations {
		if inv.TeamID == teamID && inv.Status == domain.InvitationStatusPending {
			stats.PendingInvitations++
		}
	}
	return stats, nil
}

func (f *fakeStore) InsertMembership(ctx context.Context, membership domain.Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertMembershipLocked(membership, false)
}

func (f *fakeStore) insertMembershipLocked(membership domain.Membership, includePending bool) error {
	team, ok := f.teams[membership.TeamID]
	if !ok {
		return storage.ErrNotFound
	}
	occupied := 0
	for _, m := range f.memberships {
		if m.TeamID == membership.TeamID {
			if m.UserID == membership.UserID {
				return storage.ErrConflict
			}
			occupied++
		}
	}
	if includePending {
		for _, inv := range f.invitations {
			if inv.TeamID == membership.TeamID && inv.Status == domain.InvitationStatusPending {
				occupied++
			}
		}
	}
	if occupied >= team.MaxMembers {
		return storage.ErrCapacityExceeded
	}
	f.memberships[membership.ID] = membership
	return nil
}

func (f *fakeStore) GetMembership(ctx context.Context, teamID string, membershipID string) (domain.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	membership, ok := f.memberships[membershipID]
	if !ok || membership.TeamID != teamID {
		return domain.Membership{}, storage.ErrNotFound
	}
	return membership, nil
}

func (f *fakeStore) MembershipByTeamAndUser(ctx context.Context, teamID string, userID string) (domain.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, membership := range f.memberships {
		if membership.TeamID == teamID && membership.UserID == userID {
			return membership, nil
		}
	}
	return domain.Membership{}, storage.ErrNotFound
}

func (f *fakeStore) ListMemberships(ctx context.Context, teamID string, pageSize int, pageToken string) (storage.MembershipPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var memberships []domain.Membership
	for _, membership := range f.memberships {
		if membership.TeamID == teamID {
			memberships = append(memberships, membership)
		}
	}
	sort.Slice(memberships, func(i, j int) bool { return memberships[i].ID < memberships[j].ID })

	start := 0
	if pageToken != "" {
		for i, membership := range memberships {
			if membership.ID > pageToken {
				start = i
				break
			}
			start = i + 1
		}
	}
	page := storage.MembershipPage{}
	for i := start; i < len(memberships) && len(page.Memberships) < pageSize; i++ {
		page.Memberships = append(page.Memberships, memberships[i])
	}
	if start+len(page.Memberships) < len(memberships) && len(page.Memberships) > 0 {
		page.NextPageToken = page.Memberships[len(page.Memberships)-1].ID
	}
	return page, nil
}

func (f *fakeStore) UpdateMembershipRole(ctx context.Context, teamID string, membershipID string, role domain.Role) (domain.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	membership, ok := f.memberships[membershipID]
	if !ok || membership.TeamID != teamID {
		return domain.Membership{}, storage.ErrNotFound
	}
	if membership.Role == domain.RoleAdmin && role != domain.RoleAdmin && f.adminCountLocked(teamID) <= 1 {
		return domain.Membership{}, storage.ErrLastAdmin
	}
	membership.Role = role
	f.memberships[membershipID] = membership
	return membership, nil
}

func (f *fakeStore) DeleteMembership(ctx context.Context, teamID string, membershipID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	membership, ok := f.memberships[membershipID]
	if !ok || membership.TeamID != teamID {
		return storage.ErrNotFound
	}
	if membership.Role == domain.RoleAdmin && f.adminCountLocked(teamID) <= 1 {
		return storage.ErrLastAdmin
	}
	delete(f.memberships, membershipID)
	return nil
}

func (f *fakeStore) adminCountLocked(teamID string) int {
	count := 0
	for _, membership := range f.memberships {
		if membership.TeamID == teamID && membership.Role == domain.RoleAdmin {
			count++
		}
	}
	return count
}

func (f *fakeStore) CountMembers(ctx context.Context, teamID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, membership := range f.memberships {
		if membership.TeamID == teamID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) ListMembershipsByRole(ctx context.Context, teamID string, role domain.Role) ([]domain.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var memberships []domain.Membership
	for _, membership := range f.memberships {
		if membership.TeamID == teamID && membership.Role == role {
			memberships = append(memberships, membership)
		}
	}
	sort.Slice(memberships, func(i, j int) bool { return memberships[i].ID < memberships[j].ID })
	return memberships, nil
}

func (f *fakeStore) CountMembersByRole(ctx context.Context, teamID string, role domain.Role) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, membership := range f.memberships {
		if membership.TeamID == teamID && membership.Role == role {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) InsertInvitation(ctx context.Context, invitation domain.Invitation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	team, ok := f.teams[invitation.TeamID]
	if !ok {
		return storage.ErrNotFound
	}
	occupied := 0
	for _, m := range f.memberships {
		if m.TeamID == invitation.TeamID {
			occupied++
		}
	}
	for _, inv := range f.invitations {
		if inv.TeamID == invitation.TeamID && inv.Status == domain.InvitationStatusPending {
			if inv.InvitedEmail == invitation.InvitedEmail {
				return storage.ErrConflict
			}
			occupied++
		}
	}
	if occupied >= team.MaxMembers {
		return storage.ErrCapacityExceeded
	}
	f.invitations[invitation.ID] = invitation
	return nil
}

func (f *fakeStore) GetInvitation(ctx context.Context, invitationID string) (domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	invitation, ok := f.invitations[invitationID]
	if !ok {
		return domain.Invitation{}, storage.ErrNotFound
	}
	return invitation, nil
}

func (f *fakeStore) InvitationByToken(ctx context.Context, token string) (domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, invitation := range f.invitations {
		if invitation.Token == token {
			return invitation, nil
		}
	}
	return domain.Invitation{}, storage.ErrNotFound
}

func (f *fakeStore) AcceptInvitation(ctx context.Context, invitationID string, membership domain.Membership, acceptedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	invitation, ok := f.invitations[invitationID]
	if !ok {
		return storage.ErrNotFound
	}
	if invitation.Status != domain.InvitationStatusPending {
		return storage.ErrNotPending
	}
	if err := f.insertMembershipLocked(membership, false); err != nil {
		return err
	}
	invitation.Status = domain.InvitationStatusAccepted
	invitation.AcceptedAt = &acceptedAt
	invitation.UpdatedAt = acceptedAt
	f.invitations[invitationID] = invitation
	return nil
}

func (f *fakeStore) TransitionInvitation(ctx context.Context, invitationID string, to domain.InvitationStatus, at time.Time) (domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	invitation, ok := f.invitations[invitationID]
	if !ok {
		return domain.Invitation{}, storage.ErrNotFound
	}
	if invitation.Status != domain.InvitationStatusPending {
		return domain.Invitation{}, storage.ErrNotPending
	}
	invitation.Status = to
	invitation.UpdatedAt = at
	switch to {
	case domain.InvitationStatusAccepted:
		invitation.AcceptedAt = &at
	case domain.InvitationStatusRejected:
		invitation.RejectedAt = &at
	}
	f.invitations[invitationID] = invitation
	return invitation, nil
}

func (f *fakeStore) MarkInvitationResent(ctx context.Context, invitationID string, expiresAt time.Time, resentAt time.Time) (domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	invitation, ok := f.invitations[invitationID]
	if !ok {
		return domain.Invitation{}, storage.ErrNotFound
	}
	if invitation.Status != domain.InvitationStatusPending {
		return domain.Invitation{}, storage.ErrNotPending
	}
	invitation.ExpiresAt = expiresAt
	invitation.LastResentAt = &resentAt
	invitation.UpdatedAt = resentAt
	f.invitations[invitationID] = invitation
	return invitation, nil
}

func (f *fakeStore) ListPendingInvitationsByTeam(ctx context.Context, teamID string) ([]domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pending []domain.Invitation
	for _, invitation := range f.invitations {
		if invitation.TeamID == teamID && invitation.Status == domain.InvitationStatusPending {
			pending = append(pending, invitation)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending, nil
}

func (f *fakeStore) ListPendingInvitationsForUser(ctx context.Context, email string, userID string) ([]domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pending []domain.Invitation
	for _, invitation := range f.invitations {
		if invitation.Status != domain.InvitationStatusPending {
			continue
		}
		if invitation.InvitedEmail == email || (invitation.InvitedUserID != "" && invitation.InvitedUserID == userID) {
			pending = append(pending, invitation)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending, nil
}

func (f *fakeStore) CountPendingInvitations(ctx context.Context, teamID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, invitation := range f.invitations {
		if invitation.TeamID == teamID && invitation.Status == domain.InvitationStatusPending {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) ExpirePendingInvitations(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var expired int64
	for id, invitation := range f.invitations {
		if invitation.Status == domain.InvitationStatusPending && !invitation.ExpiresAt.After(now) {
			invitation.Status = domain.InvitationStatusExpired
			invitation.UpdatedAt = now
			f.invitations[id] = invitation
			expired++
		}
	}
	return expired, nil
}

var _ storage.Store = (*fakeStore)(nil)

// fakeIdentity resolves users from a static map keyed by id.
type fakeIdentity struct {
	users map[string]identity.User
}

func (f *fakeIdentity) LookupByID(ctx context.Context, userID string) (identity.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return identity.User{}, identity.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeIdentity) LookupByEmail(ctx context.Context, email string) (identity.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return identity.User{}, identity.ErrUserNotFound
}

// recordingNotifier captures delivered messages and can be told to fail.
type recordingNotifier struct {
	mu       sync.Mutex
	sent     []notify.InvitationMessage
	failWith error
}

func (r *recordingNotifier) SendInvitation(ctx context.Context, message notify.InvitationMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.sent = append(r.sent, message)
	return nil
}

func (r *recordingNotifier) Send(ctx context.Context, to string, subject string, body string) error {
	return r.SendInvitation(ctx, notify.InvitationMessage{To: to, Message: body})
}

func (r *recordingNotifier) messages() []notify.InvitationMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.InvitationMessage(nil), r.sent...)
}

func sequentialIDs(prefix string) func() (string, error) {
	var mu sync.Mutex
	next := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		next++
		return fmt.Sprintf("%s-%d", prefix, next), nil
	}
}

type fixture struct {
	service  *Service
	store    *fakeStore
	notifier *recordingNotifier
	identity *fakeIdentity
	now      time.Time
}

func newFixture(opts ...Option) *fixture {
	store := newFakeStore()
	notifier := &recordingNotifier{}
	lookup := &fakeIdentity{users: map[string]identity.User{
		"user-1": {ID: "user-1", Email: "admin@example.com", DisplayName: "Alice"},
		"user-2": {ID: "user-2", Email: "dev@example.com", DisplayName: "Bob"},
		"user-3": {ID: "user-3", Email: "qa@example.com", DisplayName: "Carol"},
	}}
	f := &fixture{
		store:    store,
		notifier: notifier,
		identity: lookup,
		now:      time.Date(2026, time.February, 2, 12, 0, 0, 0, time.UTC),
	}
	base := []Option{
		WithClock(func() time.Time { return f.now }),
		WithIDGenerator(sequentialIDs("id")),
		WithTokenGenerator(sequentialIDs("token")),
		WithDispatcher(func(task func()) { task() }),
	}
	f.service = New(store, lookup, notifier, append(base, opts...)...)
	return f
}

// advance moves the fixture clock forward.
func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}
