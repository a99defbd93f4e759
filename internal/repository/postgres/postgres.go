package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/teamhub/internal/domain"
	"github.com/splax/teamhub/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository       = (*Repository)(nil)
	_ repository.TeamRepository       = (*Repository)(nil)
	_ repository.InvitationRepository = (*Repository)(nil)
)

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	return mapError(err)
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, email, password_hash, created_at FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, email, password_hash, created_at FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

const (
	teamColumns      = `id, name, slug, owner_id, created_at`
	teamMemberInsert = `INSERT INTO team_members (team_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)`
)

// CreateTeamWithOwner inserts the team and its owner membership in one transaction.
func (r *Repository) CreateTeamWithOwner(ctx context.Context, team *domain.Team, owner *domain.TeamMember) error {
	const teamInsert = `INSERT INTO teams (id, name, slug, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, teamInsert, team.ID, team.Name, team.Slug, team.OwnerID, team.CreatedAt); err != nil {
			return fmt.Errorf("insert team: %w", mapError(err))
		}
		if _, err := tx.Exec(ctx, teamMemberInsert, owner.TeamID, owner.UserID, owner.Role, owner.CreatedAt); err != nil {
			return fmt.Errorf("insert owner membership: %w", mapError(err))
		}
		return nil
	})
	return err
}

// AddMember inserts a membership row. Existing (team, user) pairs are rejected.
func (r *Repository) AddMember(ctx context.Context, member *domain.TeamMember) error {
	_, err := r.pool.Exec(ctx, teamMemberInsert, member.TeamID, member.UserID, member.Role, member.CreatedAt)
	return mapError(err)
}

// GetTeamByID returns a team by identifier.
func (r *Repository) GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`
	return scanTeam(r.pool.QueryRow(ctx, query, teamID))
}

// GetTeamBySlug returns a team by slug.
func (r *Repository) GetTeamBySlug(ctx context.Context, slug string) (*domain.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE slug = $1`
	return scanTeam(r.pool.QueryRow(ctx, query, slug))
}

func scanTeam(row pgx.Row) (*domain.Team, error) {
	var team domain.Team
	if err := row.Scan(&team.ID, &team.Name, &team.Slug, &team.OwnerID, &team.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &team, nil
}

// ListTeamsByUser returns teams the user belongs to.
func (r *Repository) ListTeamsByUser(ctx context.Context, userID string) ([]domain.Team, error) {
	const query = `SELECT t.id, t.name, t.slug, t.owner_id, t.created_at
		FROM teams t
		WHERE EXISTS (SELECT 1 FROM team_members tm WHERE tm.team_id = t.id AND tm.user_id = $1)
		ORDER BY t.created_at, t.id`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]domain.Team, 0)
	for rows.Next() {
		var team domain.Team
		if err := rows.Scan(&team.ID, &team.Name, &team.Slug, &team.OwnerID, &team.CreatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

// GetMember returns the membership of userID in teamID.
func (r *Repository) GetMember(ctx context.Context, teamID, userID string) (*domain.TeamMember, error) {
	const query = `SELECT team_id, user_id, role, created_at FROM team_members WHERE team_id = $1 AND user_id = $2`
	var m domain.TeamMember
	if err := r.pool.QueryRow(ctx, query, teamID, userID).Scan(&m.TeamID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// ListMembers returns all memberships of a team.
func (r *Repository) ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	const query = `SELECT team_id, user_id, role, created_at FROM team_members WHERE team_id = $1 ORDER BY created_at, user_id`
	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]domain.TeamMember, 0)
	for rows.Next() {
		var m domain.TeamMember
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
