package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/splax/teamhub/internal/domain"
	"github.com/splax/teamhub/internal/repository"
	"github.com/splax/teamhub/internal/service/auth"
	"github.com/splax/teamhub/internal/service/invitation"
	"github.com/splax/teamhub/internal/service/team"
	"github.com/splax/teamhub/internal/ws"
	"github.com/splax/teamhub/pkg/config"
)

// memoryStore backs every repository the router needs.
type memoryStore struct {
	mu          sync.Mutex
	users       map[string]domain.User
	teams       map[string]domain.Team
	members     map[string]domain.TeamMember
	invitations []domain.Invitation
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:   make(map[string]domain.User),
		teams:   make(map[string]domain.Team),
		members: make(map[string]domain.TeamMember),
	}
}

func (m *memoryStore) CreateUser(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return repository.ErrConflict
		}
	}
	m.users[user.ID] = *user
	return nil
}

func (m *memoryStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		return &user, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memoryStore) CreateTeamWithOwner(_ context.Context, t *domain.Team, owner *domain.TeamMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.teams[t.Slug]; ok {
		return repository.ErrConflict
	}
	m.teams[t.Slug] = *t
	m.members[owner.TeamID+"/"+owner.UserID] = *owner
	return nil
}

func (m *memoryStore) AddMember(_ context.Context, member *domain.TeamMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := member.TeamID + "/" + member.UserID
	if _, ok := m.members[key]; ok {
		return repository.ErrConflict
	}
	m.members[key] = *member
	return nil
}

func (m *memoryStore) GetTeamByID(_ context.Context, id string) (*domain.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.teams {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryStore) GetTeamBySlug(_ context.Context, slug string) (*domain.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.teams[slug]; ok {
		return &t, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memoryStore) ListTeamsByUser(_ context.Context, userID string) ([]domain.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Team
	for _, t := range m.teams {
		if _, ok := m.members[t.ID+"/"+userID]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memoryStore) GetMember(_ context.Context, teamID, userID string) (*domain.TeamMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if member, ok := m.members[teamID+"/"+userID]; ok {
		return &member, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memoryStore) ListMembers(_ context.Context, teamID string) ([]domain.TeamMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TeamMember
	for _, member := range m.members {
		if member.TeamID == teamID {
			out = append(out, member)
		}
	}
	return out, nil
}

func (m *memoryStore) CreateInvitation(_ context.Context, inv *domain.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invitations = append(m.invitations, *inv)
	return nil
}

func (m *memoryStore) ListInvitations(_ context.Context, teamID string, filter repository.InvitationFilter) ([]domain.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Invitation
	for _, inv := range m.invitations {
		if inv.TeamID != teamID {
			continue
		}
		if filter.SentViaEmail != nil && inv.SentViaEmail != *filter.SentViaEmail {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (m *memoryStore) DeleteInvitation(_ context.Context, teamID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, inv := range m.invitations {
		if inv.ID == id && inv.TeamID == teamID {
			m.invitations = append(m.invitations[:i], m.invitations[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type testEnv struct {
	router *Router
	store  *memoryStore
	hub    *ws.Hub
}

func newTestEnv(t *testing.T, dbHealth func(context.Context) error) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newMemoryStore()
	cfg := config.APIConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}
	teamSvc := team.New(store, log)
	hub := ws.NewHub()
	router := NewRouter(
		log,
		auth.New(store, log, cfg),
		teamSvc,
		invitation.New(teamSvc, store, hub, log, time.Hour),
		hub,
		NewMemoryRateLimiter(),
		dbHealth,
	)
	t.Cleanup(func() {
		router.Close()
		hub.Close()
	})
	return &testEnv{router: router, store: store, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) signup(t *testing.T, email string) (string, string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/signup", "", `{"email":"`+email+`","password":"correct-horse"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	var resp struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode signup: %v", err)
	}
	return resp.User.ID, resp.Tokens.AccessToken
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error.Message
}

func (e *testEnv) createTeam(t *testing.T, token, name, slug string) domain.Team {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/teams", token, `{"name":"`+name+`","slug":"`+slug+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create team: status %d body %s", rec.Code, rec.Body.String())
	}
	var created domain.Team
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode team: %v", err)
	}
	return created
}

func (e *testEnv) invite(t *testing.T, token, slug, body string) domain.Invitation {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/teams/"+slug+"/invitations", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create invitation: status %d body %s", rec.Code, rec.Body.String())
	}
	var inv domain.Invitation
	if err := json.Unmarshal(rec.Body.Bytes(), &inv); err != nil {
		t.Fatalf("decode invitation: %v", err)
	}
	return inv
}

func TestCreateTeamMakesCallerOwner(t *testing.T) {
	env := newTestEnv(t, nil)
	userID, token := env.signup(t, "alice@example.com")
	created := env.createTeam(t, token, "Acme", "acme")
	if created.OwnerID != userID || created.Slug != "acme" {
		t.Fatalf("unexpected team %+v", created)
	}

	rec := env.do(t, http.MethodGet, "/teams/acme/members", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("members: status %d", rec.Code)
	}
	var members []domain.TeamMember
	if err := json.Unmarshal(rec.Body.Bytes(), &members); err != nil {
		t.Fatalf("decode members: %v", err)
	}
	if len(members) != 1 || members[0].UserID != userID || members[0].Role != domain.RoleOwner {
		t.Fatalf("expected single owner membership, got %+v", members)
	}
}

func TestCreateTeamDuplicateSlugConflicts(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.signup(t, "alice@example.com")
	env.createTeam(t, token, "Acme", "acme")

	rec := env.do(t, http.MethodPost, "/teams", token, `{"name":"Other Acme","slug":"acme"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != `team slug "acme" is already taken` {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestListTeamsReturnsMemberships(t *testing.T) {
	env := newTestEnv(t, nil)
	_, alice := env.signup(t, "alice@example.com")
	_, bob := env.signup(t, "bob@example.com")
	env.createTeam(t, alice, "Acme", "acme")

	rec := env.do(t, http.MethodGet, "/teams", bob, "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty list for bob, got %d %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodGet, "/teams", alice, "")
	var teams []domain.Team
	if err := json.Unmarshal(rec.Body.Bytes(), &teams); err != nil {
		t.Fatalf("decode teams: %v", err)
	}
	if len(teams) != 1 || teams[0].Slug != "acme" {
		t.Fatalf("unexpected teams %+v", teams)
	}
}

func TestListInvitationsHonoursSentViaEmailFilter(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.signup(t, "alice@example.com")
	env.createTeam(t, token, "Acme", "acme")
	emailed := env.invite(t, token, "acme", `{"email":"dora@example.com","role":"member"}`)
	env.invite(t, token, "acme", `{"role":"member"}`)

	rec := env.do(t, http.MethodGet, "/teams/acme/invitations?sentViaEmail=true", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var got []domain.Invitation
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(got) != 1 || got[0].ID != emailed.ID {
		t.Fatalf("expected only emailed invitation, got %+v", got)
	}

	rec = env.do(t, http.MethodGet, "/teams/acme/invitations", token, "")
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both invitations without filter, got %d", len(got))
	}

	rec = env.do(t, http.MethodGet, "/teams/acme/invitations?sentViaEmail=maybe", token, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad filter, got %d", rec.Code)
	}
}

func TestDeleteInvitationReturnsNoContent(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.signup(t, "alice@example.com")
	env.createTeam(t, token, "Acme", "acme")
	first := env.invite(t, token, "acme", `{"email":"dora@example.com"}`)
	env.invite(t, token, "acme", `{"email":"eve@example.com"}`)

	rec := env.do(t, http.MethodDelete, "/teams/acme/invitations?id="+first.ID, token, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d %s", rec.Code, rec.Body.String())
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/teams/acme/invitations?sentViaEmail=true", token, "")
	var remaining []domain.Invitation
	if err := json.Unmarshal(rec.Body.Bytes(), &remaining); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID == first.ID {
		t.Fatalf("expected one remaining invitation, got %+v", remaining)
	}
}

func TestDeleteInvitationFailureUsesErrorEnvelope(t *testing.T) {
	env := newTestEnv(t, nil)
	_, alice := env.signup(t, "alice@example.com")
	bobID, bob := env.signup(t, "bob@example.com")
	created := env.createTeam(t, alice, "Acme", "acme")
	inv := env.invite(t, alice, "acme", `{"email":"dora@example.com"}`)

	rec := env.do(t, http.MethodDelete, "/teams/acme/invitations?id=missing", alice, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "invitation not found" {
		t.Fatalf("unexpected message %q", msg)
	}

	rec = env.do(t, http.MethodDelete, "/teams/acme/invitations", alice, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing id, got %d", rec.Code)
	}

	if err := env.store.AddMember(context.Background(), &domain.TeamMember{TeamID: created.ID, UserID: bobID, Role: domain.RoleMember}); err != nil {
		t.Fatalf("add member: %v", err)
	}
	rec = env.do(t, http.MethodDelete, "/teams/acme/invitations?id="+inv.ID, bob, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for plain member, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "only team owners and admins can do this" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestTeamRoutesRequireMembership(t *testing.T) {
	env := newTestEnv(t, nil)
	_, alice := env.signup(t, "alice@example.com")
	_, bob := env.signup(t, "bob@example.com")
	env.createTeam(t, alice, "Acme", "acme")

	rec := env.do(t, http.MethodGet, "/teams/acme", bob, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/teams/nope/invitations", alice, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "team not found" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestGetTeamBySlug(t *testing.T) {
	env := newTestEnv(t, nil)
	_, alice := env.signup(t, "alice@example.com")
	created := env.createTeam(t, alice, "Acme", "acme")

	rec := env.do(t, http.MethodGet, "/teams/acme", alice, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var got domain.Team
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != created.ID || got.Slug != "acme" {
		t.Fatalf("unexpected team %+v", got)
	}

	rec = env.do(t, http.MethodGet, "/teams/nope", alice, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "team not found" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestAddMemberDuplicateConflicts(t *testing.T) {
	env := newTestEnv(t, nil)
	_, alice := env.signup(t, "alice@example.com")
	bobID, _ := env.signup(t, "bob@example.com")
	env.createTeam(t, alice, "Acme", "acme")

	body := `{"user_id":"` + bobID + `","role":"member"}`
	if rec := env.do(t, http.MethodPost, "/teams/acme/members", alice, body); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	rec := env.do(t, http.MethodPost, "/teams/acme/members", alice, body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/teams", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "authentication required" {
		t.Fatalf("unexpected message %q", msg)
	}
	if got := rec.Header().Get("WWW-Authenticate"); !strings.HasPrefix(got, "Bearer") {
		t.Fatalf("expected bearer challenge, got %q", got)
	}
	rec = env.do(t, http.MethodGet, "/teams", "garbage", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "authentication failed" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestBearerToken(t *testing.T) {
	for header, want := range map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"":             "",
		"Basic abc":    "",
		"Bearer":       "",
		"Bearer a b":   "",
	} {
		got, err := bearerToken(header)
		if want == "" {
			if err == nil {
				t.Errorf("%q: expected error, got token %q", header, got)
			}
			continue
		}
		if err != nil || got != want {
			t.Errorf("%q: expected %q, got %q (%v)", header, want, got, err)
		}
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signup(t, "alice@example.com")
	rec := env.do(t, http.MethodPost, "/auth/login", "", `{"email":"alice@example.com","password":"wrong-password"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/auth/login", "", `{"email":"alice@example.com","password":"correct-horse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealthzReportsDatabaseState(t *testing.T) {
	env := newTestEnv(t, func(context.Context) error { return errors.New("connection refused") })
	rec := env.do(t, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "degraded") {
		t.Fatalf("expected degraded status, got %s", rec.Body.String())
	}
}

func TestMetricsEndpointExposesRequestCounters(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodGet, "/healthz", "", "")
	rec := env.do(t, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "teamhub_api_http_requests_total") {
		t.Fatalf("expected request counter in metrics output")
	}
}
