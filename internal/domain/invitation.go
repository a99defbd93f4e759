package domain

import "time"

// Invitation is a pending offer for someone to join a team.
// Email is nil for link-based invitations. Expires is informational only.
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
