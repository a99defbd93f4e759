package client

import (
	"context"
	"net/http"
	"time"
)

// Team represents a tenant workspace.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Member is a user's membership in a team.
type Member struct {
	TeamID    string    `json:"team_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ListTeams returns all teams for the authenticated user.
func (c *Client) ListTeams(ctx context.Context, token string) ([]Team, error) {
	var teams []Team
	if err := c.do(ctx, http.MethodGet, "/teams", nil, token, &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// CreateTeam creates a team owned by the caller. An empty slug is derived from name.
func (c *Client) CreateTeam(ctx context.Context, token, name, slug string) (Team, error) {
	body := map[string]string{"name": name, "slug": slug}
	var team Team
	if err := c.do(ctx, http.MethodPost, "/teams", body, token, &team); err != nil {
		return Team{}, err
	}
	return team, nil
}

// GetTeam fetches a team the caller belongs to.
func (c *Client) GetTeam(ctx context.Context, token, slug string) (Team, error) {
	var team Team
	if err := c.do(ctx, http.MethodGet, teamPath(slug, ""), nil, token, &team); err != nil {
		return Team{}, err
	}
	return team, nil
}

// ListMembers returns the memberships of a team.
func (c *Client) ListMembers(ctx context.Context, token, slug string) ([]Member, error) {
	var members []Member
	if err := c.do(ctx, http.MethodGet, teamPath(slug, "/members"), nil, token, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// AddMember grants userID a role in the team.
func (c *Client) AddMember(ctx context.Context, token, slug, userID, role string) (Member, error) {
	body := map[string]string{"user_id": userID, "role": role}
	var member Member
	if err := c.do(ctx, http.MethodPost, teamPath(slug, "/members"), body, token, &member); err != nil {
		return Member{}, err
	}
	return member, nil
}
