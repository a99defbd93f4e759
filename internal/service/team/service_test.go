package team

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/splax/teamhub/internal/domain"
	"github.com/splax/teamhub/internal/repository"
)

// memoryTeamRepository mimics the unique slug index and the
// (team_id, user_id) primary key of the postgres schema.
type memoryTeamRepository struct {
	mu        sync.Mutex
	teams     []domain.Team
	members   []domain.TeamMember
	createErr error
}

func (m *memoryTeamRepository) CreateTeamWithOwner(_ context.Context, team *domain.Team, owner *domain.TeamMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, t := range m.teams {
		if t.Slug == team.Slug {
			return fmt.Errorf("insert team: %w", repository.ErrConflict)
		}
	}
	m.teams = append(m.teams, *team)
	m.members = append(m.members, *owner)
	return nil
}

func (m *memoryTeamRepository) AddMember(_ context.Context, member *domain.TeamMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.members {
		if existing.TeamID == member.TeamID && existing.UserID == member.UserID {
			return repository.ErrConflict
		}
	}
	m.members = append(m.members, *member)
	return nil
}

func (m *memoryTeamRepository) GetTeamByID(_ context.Context, teamID string) (*domain.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.teams {
		if t.ID == teamID {
			team := t
			return &team, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryTeamRepository) GetTeamBySlug(_ context.Context, slug string) (*domain.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.teams {
		if t.Slug == slug {
			team := t
			return &team, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryTeamRepository) ListTeamsByUser(_ context.Context, userID string) ([]domain.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Team, 0)
	for _, t := range m.teams {
		for _, member := range m.members {
			if member.TeamID == t.ID && member.UserID == userID {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

func (m *memoryTeamRepository) GetMember(_ context.Context, teamID, userID string) (*domain.TeamMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, member := range m.members {
		if member.TeamID == teamID && member.UserID == userID {
			found := member
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryTeamRepository) ListMembers(_ context.Context, teamID string) ([]domain.TeamMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TeamMember, 0)
	for _, member := range m.members {
		if member.TeamID == teamID {
			out = append(out, member)
		}
	}
	return out, nil
}

func newTestService(repo repository.TeamRepository) Service {
	return New(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateAddsOwnerMembership(t *testing.T) {
	repo := &memoryTeamRepository{}
	svc := newTestService(repo)

	team, err := svc.Create(context.Background(), "user-1", "Acme", "acme")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if team.Slug != "acme" || team.Name != "Acme" || team.OwnerID != "user-1" {
		t.Fatalf("unexpected team: %+v", team)
	}
	if len(repo.teams) != 1 {
		t.Fatalf("expected exactly one team, got %d", len(repo.teams))
	}
	if len(repo.members) != 1 {
		t.Fatalf("expected exactly one member, got %d", len(repo.members))
	}
	member := repo.members[0]
	if member.TeamID != team.ID || member.UserID != "user-1" || member.Role != domain.RoleOwner {
		t.Fatalf("unexpected owner membership: %+v", member)
	}
}

func TestCreateDuplicateSlugCreatesNothing(t *testing.T) {
	repo := &memoryTeamRepository{}
	svc := newTestService(repo)

	if _, err := svc.Create(context.Background(), "user-1", "Acme", "acme"); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := svc.Create(context.Background(), "user-2", "Acme Again", "acme")
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if len(repo.teams) != 1 || len(repo.members) != 1 {
		t.Fatalf("conflict must not leave records: teams=%d members=%d", len(repo.teams), len(repo.members))
	}
}

func TestCreateConcurrentSlugRaceHasSingleWinner(t *testing.T) {
	repo := &memoryTeamRepository{}
	svc := newTestService(repo)

	const contenders = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Create(context.Background(), fmt.Sprintf("user-%d", i), "Race", "race")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, repository.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 || conflicts != contenders-1 {
		t.Fatalf("expected 1 winner and %d conflicts, got %d/%d", contenders-1, wins, conflicts)
	}
}

func TestCreatePropagatesStoreFailure(t *testing.T) {
	repo := &memoryTeamRepository{createErr: errors.New("insert owner membership: connection reset")}
	svc := newTestService(repo)

	team, err := svc.Create(context.Background(), "user-1", "Acme", "acme")
	if err == nil || team != nil {
		t.Fatalf("expected failure without team, got team=%v err=%v", team, err)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	svc := newTestService(&memoryTeamRepository{})

	cases := []struct {
		name, owner, teamName, slug string
	}{
		{"blank name", "user-1", "  ", "acme"},
		{"blank owner", "", "Acme", "acme"},
		{"unsafe slug", "user-1", "Acme", "acme inc/../"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tc.owner, tc.teamName, tc.slug); !errors.Is(err, repository.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestCreateDerivesSlugFromName(t *testing.T) {
	svc := newTestService(&memoryTeamRepository{})

	team, err := svc.Create(context.Background(), "user-1", "Acme Rocket Works", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if team.Slug != "acme-rocket-works" {
		t.Fatalf("unexpected derived slug: %q", team.Slug)
	}
}

func TestGetByIDOrSlug(t *testing.T) {
	repo := &memoryTeamRepository{}
	svc := newTestService(repo)
	created, err := svc.Create(context.Background(), "user-1", "Acme", "acme")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	byID, err := svc.Get(context.Background(), Key{ID: created.ID})
	if err != nil || byID == nil || byID.Slug != "acme" {
		t.Fatalf("Get by id: team=%v err=%v", byID, err)
	}
	bySlug, err := svc.Get(context.Background(), Key{Slug: "acme"})
	if err != nil || bySlug == nil || bySlug.ID != created.ID {
		t.Fatalf("Get by slug: team=%v err=%v", bySlug, err)
	}
	missing, err := svc.Get(context.Background(), Key{Slug: "nope"})
	if err != nil || missing != nil {
		t.Fatalf("absent team should be nil without error, got team=%v err=%v", missing, err)
	}
}

func TestGetRequiresExactlyOneKey(t *testing.T) {
	svc := newTestService(&memoryTeamRepository{})
	if _, err := svc.Get(context.Background(), Key{}); !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty key, got %v", err)
	}
	if _, err := svc.Get(context.Background(), Key{ID: "a", Slug: "b"}); !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for double key, got %v", err)
	}
}

func TestListForUserMatchesMemberships(t *testing.T) {
	repo := &memoryTeamRepository{}
	svc := newTestService(repo)
	ctx := context.Background()

	alpha, _ := svc.Create(ctx, "alice", "Alpha", "alpha")
	beta, _ := svc.Create(ctx, "bob", "Beta", "beta")
	if _, err := svc.Create(ctx, "carol", "Gamma", "gamma"); err != nil {
		t.Fatalf("Create gamma: %v", err)
	}
	if _, err := svc.AddMember(ctx, beta.ID, "alice", domain.RoleMember); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	teams, err := svc.ListForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	got := make([]string, 0, len(teams))
	for _, team := range teams {
		got = append(got, team.ID)
	}
	want := []string{alpha.ID, beta.ID}
	sort.Strings(got)
	sort.Strings(want)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("ListForUser = %v, want %v", got, want)
	}

	none, err := svc.ListForUser(ctx, "dave")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no teams for non-member, got %v err=%v", none, err)
	}
}

func TestAddMemberRejectsDuplicate(t *testing.T) {
	repo := &memoryTeamRepository{}
	svc := newTestService(repo)
	ctx := context.Background()
	team, _ := svc.Create(ctx, "alice", "Alpha", "alpha")

	if _, err := svc.AddMember(ctx, team.ID, "alice", domain.RoleAdmin); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict when re-adding owner, got %v", err)
	}
	if _, err := svc.AddMember(ctx, team.ID, "bob", " "); !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for blank role, got %v", err)
	}
	member, err := svc.AddMember(ctx, team.ID, "bob", "viewer")
	if err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if member.Role != "viewer" {
		t.Fatalf("free-form role not preserved: %+v", member)
	}
	got, err := svc.Membership(ctx, team.ID, "bob")
	if err != nil || got.Role != "viewer" {
		t.Fatalf("Membership: %v err=%v", got, err)
	}
	members, err := svc.Members(ctx, team.ID)
	if err != nil || len(members) != 2 {
		t.Fatalf("Members: %v err=%v", members, err)
	}
}

func TestAccessChecksMembershipAndRole(t *testing.T) {
	repo := &memoryTeamRepository{}
	svc := newTestService(repo)
	ctx := context.Background()
	created, _ := svc.Create(ctx, "alice", "Alpha", "alpha")
	if _, err := svc.AddMember(ctx, created.ID, "bob", domain.RoleMember); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	if team, err := svc.Access(ctx, "alpha", "alice", true); err != nil || team.ID != created.ID {
		t.Fatalf("owner should manage: team=%v err=%v", team, err)
	}
	if _, err := svc.Access(ctx, "alpha", "bob", false); err != nil {
		t.Fatalf("member should read: %v", err)
	}
	if _, err := svc.Access(ctx, "alpha", "bob", true); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("member must not manage, got %v", err)
	}
	if _, err := svc.Access(ctx, "alpha", "mallory", false); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("outsider must be forbidden, got %v", err)
	}
	if _, err := svc.Access(ctx, "missing", "alice", false); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCheckMemberUsesResolvedTeam(t *testing.T) {
	repo := &memoryTeamRepository{}
	svc := newTestService(repo)
	ctx := context.Background()
	created, _ := svc.Create(ctx, "alice", "Alpha", "alpha")

	found, err := svc.Get(ctx, Key{Slug: "alpha"})
	if err != nil || found == nil {
		t.Fatalf("Get: team=%v err=%v", found, err)
	}
	if err := svc.CheckMember(ctx, found, "alice", true); err != nil {
		t.Fatalf("owner should pass: %v", err)
	}
	if err := svc.CheckMember(ctx, found, "mallory", false); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("outsider must be forbidden, got %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("resolved wrong team %s", found.ID)
	}
}
