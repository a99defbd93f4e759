package domain

import "time"

// Member roles recognised by authorisation checks. Role values are otherwise free-form.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Team represents a tenant workspace addressed by a unique slug.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TeamMember links a user to a team with a role.
type TeamMember struct {
	TeamID    string    `json:"team_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// CanManage reports whether the member may administer invitations and membership.
func (m TeamMember) CanManage() bool {
	return m.Role == RoleOwner || m.Role == RoleAdmin
}
