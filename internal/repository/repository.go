package repository

import (
	"context"

	"github.com/splax/teamhub/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// TeamRepository manages teams and memberships.
type TeamRepository interface {
	// CreateTeamWithOwner writes the team and its owner membership atomically.
	CreateTeamWithOwner(ctx context.Context, team *domain.Team, owner *domain.TeamMember) error
	AddMember(ctx context.Context, member *domain.TeamMember) error
	GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error)
	GetTeamBySlug(ctx context.Context, slug string) (*domain.Team, error)
	ListTeamsByUser(ctx context.Context, userID string) ([]domain.Team, error)
	GetMember(ctx context.Context, teamID, userID string) (*domain.TeamMember, error)
	ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error)
}

// InvitationFilter narrows invitation listings.
type InvitationFilter struct {
	SentViaEmail *bool
}

// InvitationRepository stores pending team invitations.
type InvitationRepository interface {
	CreateInvitation(ctx context.Context, invitation *domain.Invitation) error
	ListInvitations(ctx context.Context, teamID string, filter InvitationFilter) ([]domain.Invitation, error)
	// DeleteInvitation removes the invitation only when it belongs to teamID.
	DeleteInvitation(ctx context.Context, teamID, invitationID string) error
}
