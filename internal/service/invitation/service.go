package invitation

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/splax/teamhub/internal/domain"
	"github.com/splax/teamhub/internal/repository"
	"github.com/splax/teamhub/internal/ws"
)

const defaultTTL = 7 * 24 * time.Hour

// Publisher receives change notifications for a team's invitations.
type Publisher interface {
	Publish(team, eventType string)
}

// TeamAccess resolves a team slug for an actor, enforcing membership.
type TeamAccess interface {
	Access(ctx context.Context, slug, actorID string, manage bool) (*domain.Team, error)
}

// Service manages pending invitations scoped to a team slug.
type Service struct {
	teams       TeamAccess
	invitations repository.InvitationRepository
	events      Publisher
	logger      *slog.Logger
	ttl         time.Duration
	now         func() time.Time
}

// New constructs an invitation Service. A nil publisher disables change events.
func New(teams TeamAccess, invitations repository.InvitationRepository, events Publisher, logger *slog.Logger, ttl time.Duration) Service {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return Service{
		teams:       teams,
		invitations: invitations,
		events:      events,
		logger:      logger,
		ttl:         ttl,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

var (
	errMissingInvitationID = fmt.Errorf("%w: invitation id is required", repository.ErrInvalidArgument)
	errInvalidEmail        = fmt.Errorf("%w: email is not valid", repository.ErrInvalidArgument)
	errInvitationNotFound  = fmt.Errorf("%w: invitation not found", repository.ErrNotFound)
)

// CreateInput describes a new invitation. A nil Email issues a link invitation.
type CreateInput struct {
	Email *string `json:"email"`
	Role  string  `json:"role"`
}

// List returns the team's invitations; sentViaEmail narrows by delivery channel when set.
func (s Service) List(ctx context.Context, slug, actorID string, sentViaEmail *bool) ([]domain.Invitation, error) {
	team, err := s.teams.Access(ctx, slug, actorID, false)
	if err != nil {
		return nil, err
	}
	return s.invitations.ListInvitations(ctx, team.ID, repository.InvitationFilter{SentViaEmail: sentViaEmail})
}

// Create issues an invitation for the team.
func (s Service) Create(ctx context.Context, slug, actorID string, input CreateInput) (*domain.Invitation, error) {
	team, err := s.teams.Access(ctx, slug, actorID, true)
	if err != nil {
		return nil, err
	}
	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = domain.RoleMember
	}
	inv := &domain.Invitation{
		ID:        uuid.NewString(),
		TeamID:    team.ID,
		Role:      role,
		Token:     uuid.NewString(),
		InvitedBy: actorID,
		CreatedAt: s.now(),
	}
	inv.Expires = inv.CreatedAt.Add(s.ttl)
	if input.Email != nil {
		addr, err := mail.ParseAddress(strings.TrimSpace(*input.Email))
		if err != nil {
			return nil, errInvalidEmail
		}
		email := strings.ToLower(addr.Address)
		inv.Email = &email
		inv.SentViaEmail = true
	}
	if err := s.invitations.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}
	s.logger.Info("invitation created", "team_id", team.ID, "invitation_id", inv.ID, "sent_via_email", inv.SentViaEmail)
	s.publish(team.Slug)
	return inv, nil
}

// Delete cancels a pending invitation belonging to the team identified by slug.
func (s Service) Delete(ctx context.Context, slug, actorID, invitationID string) error {
	invitationID = strings.TrimSpace(invitationID)
	if invitationID == "" {
		return errMissingInvitationID
	}
	team, err := s.teams.Access(ctx, slug, actorID, true)
	if err != nil {
		return err
	}
	if err := s.invitations.DeleteInvitation(ctx, team.ID, invitationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errInvitationNotFound
		}
		return err
	}
	s.logger.Info("invitation deleted", "team_id", team.ID, "invitation_id", invitationID, "actor_id", actorID)
	s.publish(team.Slug)
	return nil
}

func (s Service) publish(slug string) {
	if s.events == nil {
		return
	}
	s.events.Publish(slug, ws.EventInvitationsChanged)
}
