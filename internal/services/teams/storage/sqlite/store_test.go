package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/teamdesk/internal/services/teams/domain"
	"github.com/louisbranch/teamdesk/internal/services/teams/storage"
)

var testTime = time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "teams.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close returned error: %v", err)
		}
	})
	return store
}

func testTeam(id string, name string, creatorID string) domain.Team {
	return domain.Team{
		ID:         id,
		Name:       name,
		Active:     true,
		MaxMembers: domain.DefaultMaxMembers,
		CreatorID:  creatorID,
		CreatedAt:  testTime,
		UpdatedAt:  testTime,
	}
}

func testMembership(id string, teamID string, userID string, role domain.Role) domain.Membership {
	return domain.Membership{
		ID:       id,
		TeamID:   teamID,
		UserID:   userID,
		Role:     role,
		JoinedAt: testTime,
	}
}

func testInvitation(id string, teamID string, email string) domain.Invitation {
	return domain.Invitation{
		ID:           id,
		TeamID:       teamID,
		InvitedEmail: email,
		Role:         domain.RoleDeveloper,
		InviterID:    "owner-1",
		Token:        "token-" + id,
		Status:       domain.InvitationStatusPending,
		ExpiresAt:    testTime.Add(domain.InvitationTTL),
		CreatedAt:    testTime,
		UpdatedAt:    testTime,
	}
}

func seedTeam(t *testing.T, store *Store, teamID string, ownerID string) domain.Team {
	t.Helper()
	team := testTeam(teamID, "Team "+teamID, ownerID)
	owner := testMembership("mem-"+teamID, teamID, ownerID, domain.RoleAdmin)
	if err := store.CreateTeamWithOwner(context.Background(), team, owner); err != nil {
		t.Fatalf("seed team %s: %v", teamID, err)
	}
	return team
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open("  "); err == nil {
		t.Fatal("Open with blank path succeeded")
	}
}

func TestCreateTeamWithOwnerRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	team := domain.Team{
		ID:          "team-1",
		Name:        "Platform",
		Description: "Core infrastructure",
		Color:       "#ff8800",
		Active:      true,
		MaxMembers:  25,
		CreatorID:   "owner-1",
		CreatedAt:   testTime,
		UpdatedAt:   testTime,
	}
	owner := testMembership("mem-1", "team-1", "owner-1", domain.RoleAdmin)
	if err := store.CreateTeamWithOwner(ctx, team, owner); err != nil {
		t.Fatalf("CreateTeamWithOwner returned error: %v", err)
	}

	got, err := store.GetTeam(ctx, "team-1")
	if err != nil {
		t.Fatalf("GetTeam returned error: %v", err)
	}
	if got.Name != team.Name || got.Description != team.Description || got.Color != team.Color {
		t.Fatalf("team = %+v, want %+v", got, team)
	}
	if !got.Active || got.MaxMembers != 25 || got.CreatorID != "owner-1" {
		t.Fatalf("team = %+v, want %+v", got, team)
	}
	if !got.CreatedAt.Equal(testTime) || !got.UpdatedAt.Equal(testTime) {
		t.Fatalf("team timestamps = %v/%v, want %v", got.CreatedAt, got.UpdatedAt, testTime)
	}

	membership, err := store.MembershipByTeamAndUser(ctx, "team-1", "owner-1")
	if err != nil {
		t.Fatalf("owner membership missing: %v", err)
	}
	if membership.Role != domain.RoleAdmin {
		t.Fatalf("owner role = %v, want admin", membership.Role)
	}
}

func TestCreateTeamWithOwnerConflict(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	seedTeam(t, store, "team-1", "owner-1")

	dup := testTeam("team-2", "Team team-1", "owner-1")
	err := store.CreateTeamWithOwner(ctx, dup, testMembership("mem-2", "team-2", "owner-1", domain.RoleAdmin))
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}

	// A different creator may reuse the name.
	other := testTeam("team-3", "Team team-1", "owner-2")
	if err := store.CreateTeamWithOwner(ctx, other, testMembership("mem-3", "team-3", "owner-2", domain.RoleAdmin)); err != nil {
		t.Fatalf("same name under other creator: %v", err)
	}
}

func TestGetTeamNotFound(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	if _, err := store.GetTeam(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestUpdateTeam(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	team := seedTeam(t, store, "team-1", "owner-1")

	team.Name = "Renamed"
	team.Active = false
	team.MaxMembers = 10
	team.UpdatedAt = testTime.Add(time.Hour)
	if err := store.UpdateTeam(ctx, team); err != nil {
		t.Fatalf("UpdateTeam returned error: %v", err)
	}
	got, err := store.GetTeam(ctx, "team-1")
	if err != nil {
		t.Fatalf("GetTeam returned error: %v", err)
	}
	if got.Name != "Renamed" || got.Active || got.MaxMembers != 10 {
		t.Fatalf("team after update = %+v", got)
	}

	missing := testTeam("ghost", "Ghost", "owner-1")
	if err := store.UpdateTeam(ctx, missing); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("update missing error = %v, want ErrNotFound", err)
	}
}

func TestUpdateTeamNameConflict(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	seedTeam(t, store, "team-1", "owner-1")
	team2 := seedTeam(t, store, "team-2", "owner-1")

	team2.Name = "Team team-1"
	if err := store.UpdateTeam(ctx, team2); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
}

func TestDeleteTeamCascades(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	team := seedTeam(t, store, "team-1", "owner-1")
	if err := store.InsertMembership(ctx, testMembership("mem-dev", team.ID, "user-2", domain.RoleDeveloper)); err != nil {
		t.Fatalf("insert membership: %v", err)
	}
	if err := store.InsertInvitation(ctx, testInvitation("inv-1", team.ID, "dev@example.com")); err != nil {
		t.Fatalf("insert invitation: %v", err)
	}

	if err := store.DeleteTeam(ctx, team.ID); err != nil {
		t.Fatalf("DeleteTeam returned error: %v", err)
	}
	if _, err := store.GetTeam(ctx, team.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("team survives delete: %v", err)
	}
	if _, err := store.MembershipByTeamAndUser(ctx, team.ID, "user-2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("membership survives delete: %v", err)
	}
	if _, err := store.GetInvitation(ctx, "inv-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("invitation survives delete: %v", err)
	}

	if err := store.DeleteTeam(ctx, team.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestCountTeamsByCreator(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	seedTeam(t, store, "team-1", "owner-1")
	seedTeam(t, store, "team-2", "owner-1")
	seedTeam(t, store, "team-3", "owner-2")

	count, err := store.CountTeamsByCreator(ctx, "owner-1")
	if err != nil {
		t.Fatalf("CountTeamsByCreator returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestListTeamsByUserPaginates(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"team-a", "team-b", "team-c"} {
		seedTeam(t, store, id, "owner-1")
	}
	seedTeam(t, store, "team-d", "owner-2")

	first, err := store.ListTeamsByUser(ctx, "owner-1", 2, "")
	if err != nil {
		t.Fatalf("ListTeamsByUser returned error: %v", err)
	}
	if len(first.Teams) != 2 || first.NextPageToken == "" {
		t.Fatalf("first page = %+v", first)
	}
	second, err := store.ListTeamsByUser(ctx, "owner-1", 2, first.NextPageToken)
	if err != nil {
		t.Fatalf("ListTeamsByUser page 2 returned error: %v", err)
	}
	if len(second.Teams) != 1 || second.NextPageToken != "" {
		t.Fatalf("second page = %+v", second)
	}
	if second.Teams[0].ID != "team-c" {
		t.Fatalf("second page team = %q, want team-c", second.Teams[0].ID)
	}
}

func TestSearchTeamsByUserMatchesKeyword(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	platform := testTeam("team-1", "Platform", "owner-1")
	if err := store.CreateTeamWithOwner(ctx, platform, testMembership("mem-1", "team-1", "owner-1", domain.RoleAdmin)); err != nil {
		t.Fatalf("create platform: %v", err)
	}
	payments := testTeam("team-2", "Payments", "owner-1")
	if err := store.CreateTeamWithOwner(ctx, payments, testMembership("mem-2", "team-2", "owner-1", domain.RoleAdmin)); err != nil {
		t.Fatalf("create payments: %v", err)
	}

	page, err := store.SearchTeamsByUser(ctx, "owner-1", "PAY", 10, "")
	if err != nil {
		t.Fatalf("SearchTeamsByUser returned error: %v", err)
	}
	if len(page.Teams) != 1 || page.Teams[0].Name != "Payments" {
		t.Fatalf("search result = %+v, want Payments", page.Teams)
	}
}

func TestGetTeamStats(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	team := seedTeam(t, store, "team-1", "owner-1")
	if err := store.InsertMembership(ctx, testMembership("mem-dev", team.ID, "user-2", domain.RoleDeveloper)); err != nil {
		t.Fatalf("insert membership: %v", err)
	}
	if err := store.InsertInvitation(ctx, testInvitation("inv-1", team.ID, "dev@example.com")); err != nil {
		t.Fatalf("insert invitation: %v", err)
	}

	stats, err := store.GetTeamStats(ctx, team.ID)
	if err != nil {
		t.Fatalf("GetTeamStats returned error: %v", err)
	}
	want := storage.TeamStats{MemberCount: 2, AdminCount: 1, PendingInvitations: 1, MaxMembers: domain.DefaultMaxMembers}
	if stats != want {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}

	if _, err := store.GetTeamStats(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing team stats error = %v, want ErrNotFound", err)
	}
}
