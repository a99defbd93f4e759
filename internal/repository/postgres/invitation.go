package postgres

import (
	"context"

	"github.com/splax/teamhub/internal/domain"
	"github.com/splax/teamhub/internal/repository"
)

const invitationColumns = `id, team_id, email, role, token, expires_at, sent_via_email, invited_by, created_at`

// CreateInvitation inserts a pending invitation.
func (r *Repository) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	const query = `INSERT INTO team_invitations (` + invitationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query,
		inv.ID,
		inv.TeamID,
		inv.Email,
		inv.Role,
		inv.Token,
		inv.Expires.UTC(),
		inv.SentViaEmail,
		inv.InvitedBy,
		inv.CreatedAt,
	)
	return mapError(err)
}

// ListInvitations returns invitations for a team, optionally filtered by delivery channel.
func (r *Repository) ListInvitations(ctx context.Context, teamID string, filter repository.InvitationFilter) ([]domain.Invitation, error) {
	const query = `SELECT ` + invitationColumns + `
		FROM team_invitations
		WHERE team_id = $1 AND ($2::boolean IS NULL OR sent_via_email = $2)
		ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, teamID, filter.SentViaEmail)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invitations := make([]domain.Invitation, 0)
	for rows.Next() {
		var inv domain.Invitation
		if err := rows.Scan(
			&inv.ID,
			&inv.TeamID,
			&inv.Email,
			&inv.Role,
			&inv.Token,
			&inv.Expires,
			&inv.SentViaEmail,
			&inv.InvitedBy,
			&inv.CreatedAt,
		); err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

// DeleteInvitation removes an invitation scoped to its owning team.
func (r *Repository) DeleteInvitation(ctx context.Context, teamID, invitationID string) error {
	const query = `DELETE FROM team_invitations WHERE id = $1 AND team_id = $2`
	tag, err := r.pool.Exec(ctx, query, invitationID, teamID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
