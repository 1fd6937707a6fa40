package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/teamdesk/internal/errors"
	"github.com/louisbranch/teamdesk/internal/platform/id"
)

const (
	// MaxTeamsPerOwner caps how many teams one user may create.
	MaxTeamsPerOwner = 5
	// DefaultMaxMembers is the member capacity of a freshly created team.
	DefaultMaxMembers = 50
)

var (
	// ErrTeamNameEmpty indicates a missing team name.
	ErrTeamNameEmpty = apperrors.New(apperrors.CodeTeamNameEmpty, "team name is required")
	// ErrTeamNotFound indicates the team does not exist.
	ErrTeamNotFound = apperrors.New(apperrors.CodeTeamNotFound, "team not found")
	// ErrTeamNameConflict indicates the owner already holds a team of that name.
	ErrTeamNameConflict = apperrors.New(apperrors.CodeTeamNameConflict, "team name already in use by owner")
	// ErrTeamQuotaExceeded indicates the owner reached the team quota.
	ErrTeamQuotaExceeded = apperrors.New(apperrors.CodeTeamQuotaExceeded, "team quota exceeded")
	// ErrTeamCapacityExceeded indicates the team member capacity is reached.
	ErrTeamCapacityExceeded = apperrors.New(apperrors.CodeTeamCapacityExceeded, "team capacity exceeded")
	// ErrTeamInactive indicates a write against a deactivated team.
	ErrTeamInactive = apperrors.New(apperrors.CodeTeamInactive, "team is inactive")
)

// Team represents one collaborative workspace.
type Team struct {
	ID          string
	Name        string
	Description string
	Color       string
	Active      bool
	MaxMembers  int
	CreatorID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateTeamInput describes the metadata needed to create a team.
type CreateTeamInput struct {
	Name        string
	Description string
	Color       string
	CreatorID   string
}

// NewTeam creates an active team with defaults, a generated ID, and timestamps.
func NewTeam(input CreateTeamInput, now func() time.Time, idGenerator func() (string, error)) (Team, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateTeamInput(input)
	if err != nil {
		return Team{}, err
	}

	teamID, err := idGenerator()
	if err != nil {
		return Team{}, fmt.Errorf("generate team id: %w", err)
	}

	createdAt := now().UTC()
	return Team{
		ID:          teamID,
		Name:        normalized.Name,
		Description: normalized.Description,
		Color:       normalized.Color,
		Active:      true,
		MaxMembers:  DefaultMaxMembers,
		CreatorID:   normalized.CreatorID,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}

// NormalizeCreateTeamInput trims and validates team input metadata.
func NormalizeCreateTeamInput(input CreateTeamInput) (CreateTeamInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return CreateTeamInput{}, ErrTeamNameEmpty
	}
	input.Description = strings.TrimSpace(input.Description)
	input.Color = strings.TrimSpace(input.Color)
	input.CreatorID = strings.TrimSpace(input.CreatorID)
	return input, nil
}
