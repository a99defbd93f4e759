package nav

import (
	"context"
	"errors"
	"testing"
)

func activeCount(items []Item) int {
	n := 0
	for _, item := range items {
		if item.Active {
			n++
		}
	}
	return n
}

func TestBuildScopesItemsToFirstTeam(t *testing.T) {
	items := Build([]Team{{Slug: "acme"}, {Slug: "beta"}}, "/help")
	want := []string{
		"/teams/acme/dashboard",
		"/teams/acme/settings",
		"/teams/acme/authentication",
		"/teams/acme/members",
		"/teams",
		"/account",
		LogoutHref,
		"/help",
		"/docs",
	}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, href := range want {
		if items[i].Href != href {
			t.Errorf("item %d: expected %s, got %s", i, href, items[i].Href)
		}
	}
	if items[0].Label != "Dashboard" || items[8].Label != "Guides" {
		t.Fatalf("unexpected default labels %q %q", items[0].Label, items[8].Label)
	}
}

func TestBuildMarksExactlyOneActive(t *testing.T) {
	teams := []Team{{Slug: "acme"}}
	for _, path := range []string{"/teams/acme/members", "/teams", "/docs", "/account"} {
		items := Build(teams, path)
		if got := activeCount(items); got != 1 {
			t.Fatalf("path %s: expected one active item, got %d", path, got)
		}
		for _, item := range items {
			if item.Active && item.Href != path {
				t.Fatalf("path %s: wrong item active %s", path, item.Href)
			}
		}
	}
	if got := activeCount(Build(teams, "/teams/acme/members/extra")); got != 0 {
		t.Fatalf("expected no active item for unknown path, got %d", got)
	}
}

func TestLogoutIsNeverActive(t *testing.T) {
	items := Build([]Team{{Slug: "acme"}}, LogoutHref)
	if got := activeCount(items); got != 0 {
		t.Fatalf("logout must not be active, got %d active", got)
	}
}

func TestBuildWithoutTeamsOmitsTeamScopedItems(t *testing.T) {
	items := Build(nil, "/teams")
	if len(items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(items))
	}
	if items[0].Key != KeyTeams || !items[0].Active {
		t.Fatalf("expected active teams item first, got %+v", items[0])
	}
}

type labels map[string]string

func (l labels) T(key string, _ ...any) string {
	if v, ok := l[key]; ok {
		return v
	}
	return key
}

func TestBuildLocalizedUsesLabeler(t *testing.T) {
	items := BuildLocalized([]Team{{Slug: "acme"}}, "", labels{KeyMembers: "Mitglieder"})
	if items[3].Label != "Mitglieder" {
		t.Fatalf("expected translated label, got %q", items[3].Label)
	}
	if items[0].Label != "Dashboard" {
		t.Fatalf("expected fallback label, got %q", items[0].Label)
	}
}

type fakeSession struct {
	calls int
	err   error
}

func (f *fakeSession) SignOut(context.Context) error {
	f.calls++
	return f.err
}

func TestActivateLogoutSignsOut(t *testing.T) {
	items := Build([]Team{{Slug: "acme"}}, "")
	session := &fakeSession{}
	for _, item := range items {
		handled, err := Activate(context.Background(), item, session)
		if err != nil {
			t.Fatalf("activate %s: %v", item.Key, err)
		}
		if handled != (item.Key == KeyLogout) {
			t.Fatalf("item %s handled=%v", item.Key, handled)
		}
	}
	if session.calls != 1 {
		t.Fatalf("expected one sign out, got %d", session.calls)
	}

	session.err = errors.New("session store down")
	logout := items[6]
	if _, err := Activate(context.Background(), logout, session); err == nil {
		t.Fatal("expected sign out error")
	}
}

func TestSplitKeepsOrder(t *testing.T) {
	team, account := Split(Build([]Team{{Slug: "acme"}}, ""))
	if len(team) != 5 || len(account) != 4 {
		t.Fatalf("unexpected split %d/%d", len(team), len(account))
	}
	if account[1].Key != KeyLogout {
		t.Fatalf("expected logout second in account section")
	}
}
