package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/splax/teamhub/internal/domain"
	"github.com/splax/teamhub/internal/repository"
)

// Service handles team workflows.
type Service struct {
	repo   repository.TeamRepository
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Service with default logging.
func New(repo repository.TeamRepository, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{repo: repo, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

var (
	errInvalidTeamName = fmt.Errorf("%w: team name is required", repository.ErrInvalidArgument)
	errInvalidSlug     = fmt.Errorf("%w: slug must contain only lowercase letters, digits and dashes", repository.ErrInvalidArgument)
	errInvalidKey      = fmt.Errorf("%w: exactly one of id or slug is required", repository.ErrInvalidArgument)
	errMissingUserID   = fmt.Errorf("%w: user id is required", repository.ErrInvalidArgument)
	errMissingRole     = fmt.Errorf("%w: role is required", repository.ErrInvalidArgument)
)

// Create registers a team and makes ownerID its first member with the owner role.
// An empty slug is derived from name. A duplicate slug fails with repository.ErrConflict
// and leaves no records behind.
func (s Service) Create(ctx context.Context, ownerID, name, teamSlug string) (*domain.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errInvalidTeamName
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, errMissingUserID
	}
	teamSlug, err := normalizeSlug(name, teamSlug)
	if err != nil {
		return nil, err
	}
	createdAt := s.now()
	team := &domain.Team{
		ID:        uuid.NewString(),
		Name:      name,
		Slug:      teamSlug,
		OwnerID:   ownerID,
		CreatedAt: createdAt,
	}
	owner := &domain.TeamMember{
		TeamID:    team.ID,
		UserID:    ownerID,
		Role:      domain.RoleOwner,
		CreatedAt: createdAt,
	}
	if err := s.repo.CreateTeamWithOwner(ctx, team, owner); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			s.logger.Warn("team slug taken", "slug", teamSlug, "owner_id", ownerID)
			return nil, fmt.Errorf("%w: team slug %q is already taken", repository.ErrConflict, teamSlug)
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%w: owner %s does not exist", repository.ErrNotFound, ownerID)
		}
		return nil, err
	}
	s.logger.Info("team created", "team_id", team.ID, "slug", team.Slug, "owner_id", ownerID)
	return team, nil
}

func normalizeSlug(name, requested string) (string, error) {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested == "" {
		derived := slug.Make(name)
		if derived == "" {
			return "", errInvalidSlug
		}
		return derived, nil
	}
	if !slug.IsSlug(requested) {
		return "", errInvalidSlug
	}
	return requested, nil
}

// Key selects a team by exactly one of its unique identifiers.
type Key struct {
	ID   string
	Slug string
}

// Get returns the team addressed by key, or nil when no such team exists.
func (s Service) Get(ctx context.Context, key Key) (*domain.Team, error) {
	id := strings.TrimSpace(key.ID)
	teamSlug := strings.TrimSpace(key.Slug)
	if (id == "") == (teamSlug == "") {
		return nil, errInvalidKey
	}
	var (
		team *domain.Team
		err  error
	)
	if id != "" {
		team, err = s.repo.GetTeamByID(ctx, id)
	} else {
		team, err = s.repo.GetTeamBySlug(ctx, teamSlug)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return team, nil
}

// ListForUser returns every team in which userID holds a membership.
func (s Service) ListForUser(ctx context.Context, userID string) ([]domain.Team, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errMissingUserID
	}
	return s.repo.ListTeamsByUser(ctx, userID)
}

// AddMember inserts a membership. Re-adding an existing member fails with repository.ErrConflict.
func (s Service) AddMember(ctx context.Context, teamID, userID, role string) (*domain.TeamMember, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errMissingUserID
	}
	role = strings.TrimSpace(role)
	if role == "" {
		return nil, errMissingRole
	}
	member := &domain.TeamMember{
		TeamID:    teamID,
		UserID:    userID,
		Role:      role,
		CreatedAt: s.now(),
	}
	if err := s.repo.AddMember(ctx, member); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, fmt.Errorf("%w: user is already a member of this team", repository.ErrConflict)
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%w: team or user does not exist", repository.ErrNotFound)
		}
		return nil, err
	}
	s.logger.Info("team member added", "team_id", teamID, "user_id", userID, "role", role)
	return member, nil
}

// Members lists memberships of a team.
func (s Service) Members(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	return s.repo.ListMembers(ctx, teamID)
}

// Membership returns the membership of userID in teamID, or repository.ErrNotFound.
func (s Service) Membership(ctx context.Context, teamID, userID string) (*domain.TeamMember, error) {
	return s.repo.GetMember(ctx, teamID, userID)
}

var (
	errTeamNotFound = fmt.Errorf("%w: team not found", repository.ErrNotFound)
	errNotMember    = fmt.Errorf("%w: not a member of this team", repository.ErrForbidden)
	errNotManager   = fmt.Errorf("%w: only team owners and admins can do this", repository.ErrForbidden)
)

// Access resolves the team by slug and checks that actorID belongs to it.
// With manage set the actor must also be an owner or admin.
func (s Service) Access(ctx context.Context, teamSlug, actorID string, manage bool) (*domain.Team, error) {
	team, err := s.Get(ctx, Key{Slug: teamSlug})
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, errTeamNotFound
	}
	if err := s.CheckMember(ctx, team, actorID, manage); err != nil {
		return nil, err
	}
	return team, nil
}

// CheckMember reports ErrForbidden unless actorID belongs to team, holding a
// managing role when manage is set.
func (s Service) CheckMember(ctx context.Context, team *domain.Team, actorID string, manage bool) error {
	member, err := s.repo.GetMember(ctx, team.ID, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errNotMember
		}
		return err
	}
	if manage && !member.CanManage() {
		return errNotManager
	}
	return nil
}
