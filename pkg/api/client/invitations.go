package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Invitation is a pending offer to join a team. Email is nil for link invitations.
type Invitation struct {
	ID           string    `json:"id"`
	TeamID       string    `json:"team_id"`
	Email        *string   `json:"email"`
	Role         string    `json:"role"`
	Token        string    `json:"token"`
	Expires      time.Time `json:"expires"`
	SentViaEmail bool      `json:"sent_via_email"`
	InvitedBy    string    `json:"invited_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// EmailOrDash renders the invitee address for tables.
func (i Invitation) EmailOrDash() string {
	if i.Email == nil || *i.Email == "" {
		return "-"
	}
	return *i.Email
}

// CreateInvitationInput describes a new invitation.
type CreateInvitationInput struct {
	Email *string `json:"email,omitempty"`
	Role  string  `json:"role,omitempty"`
}

// ListInvitations returns the team's pending invitations. A nil sentViaEmail lists every channel.
func (c *Client) ListInvitations(ctx context.Context, token, slug string, sentViaEmail *bool) ([]Invitation, error) {
	path := teamPath(slug, "/invitations")
	if sentViaEmail != nil {
		path += "?sentViaEmail=" + strconv.FormatBool(*sentViaEmail)
	}
	var invitations []Invitation
	if err := c.do(ctx, http.MethodGet, path, nil, token, &invitations); err != nil {
		return nil, err
	}
	return invitations, nil
}

// Invitations satisfies the removal workflow's source contract.
func (c *Client) Invitations(ctx context.Context, token, slug string, sentViaEmail *bool) ([]Invitation, error) {
	return c.ListInvitations(ctx, token, slug, sentViaEmail)
}

// CreateInvitation issues an invitation for the team.
func (c *Client) CreateInvitation(ctx context.Context, token, slug string, input CreateInvitationInput) (Invitation, error) {
	var inv Invitation
	if err := c.do(ctx, http.MethodPost, teamPath(slug, "/invitations"), input, token, &inv); err != nil {
		return Invitation{}, err
	}
	return inv, nil
}

// DeleteInvitation cancels an invitation. The server answers 204 on success.
func (c *Client) DeleteInvitation(ctx context.Context, token, slug, invitationID string) error {
	path := teamPath(slug, "/invitations") + "?id=" + url.QueryEscape(invitationID)
	return c.do(ctx, http.MethodDelete, path, nil, token, nil)
}
