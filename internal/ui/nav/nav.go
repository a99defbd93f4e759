// Package nav builds the dashboard sidebar: destinations scoped to the first team
// of the caller plus account-level destinations.
package nav

import (
	"context"
	"net/url"
)

// Team is the minimum team shape the sidebar needs.
type Team struct {
	Slug string
	Name string
}

// Kind distinguishes ordinary links from the logout action.
type Kind int

const (
	Link Kind = iota
	Action
)

// Section groups items in the sidebar.
type Section int

const (
	TeamSection Section = iota
	AccountSection
)

// Item is one sidebar destination.
type Item struct {
	Key     string
	Label   string
	Href    string
	Icon    string
	Kind    Kind
	Section Section
	Active  bool
}

// SignOuter terminates the current session.
type SignOuter interface {
	SignOut(ctx context.Context) error
}

// Labeler translates item labels. Nil keeps the English defaults.
type Labeler interface {
	T(key string, args ...any) string
}

const (
	KeyDashboard      = "nav-dashboard"
	KeySettings       = "nav-settings"
	KeyAuthentication = "nav-authentication"
	KeyMembers        = "nav-members"
	KeyTeams          = "nav-teams"
	KeyAccount        = "nav-account"
	KeyLogout         = "nav-logout"
	KeyHelp           = "nav-help"
	KeyGuides         = "nav-guides"

	LogoutHref = "/logout"
)

var defaultLabels = map[string]string{
	KeyDashboard:      "Dashboard",
	KeySettings:       "Settings",
	KeyAuthentication: "Authentication",
	KeyMembers:        "Members",
	KeyTeams:          "Teams",
	KeyAccount:        "Account",
	KeyLogout:         "Logout",
	KeyHelp:           "Help",
	KeyGuides:         "Guides",
}

// Build returns the sidebar for teams, marking the item whose Href equals currentPath.
// Team-scoped items use teams[0]; with no teams they are left out.
func Build(teams []Team, currentPath string) []Item {
	return BuildLocalized(teams, currentPath, nil)
}

// BuildLocalized is Build with labels resolved through labeler.
func BuildLocalized(teams []Team, currentPath string, labeler Labeler) []Item {
	items := make([]Item, 0, 9)
	if len(teams) > 0 {
		base := "/teams/" + url.PathEscape(teams[0].Slug)
		items = append(items,
			Item{Key: KeyDashboard, Href: base + "/dashboard", Icon: "home", Section: TeamSection},
			Item{Key: KeySettings, Href: base + "/settings", Icon: "adjustments", Section: TeamSection},
			Item{Key: KeyAuthentication, Href: base + "/authentication", Icon: "lock-closed", Section: TeamSection},
			Item{Key: KeyMembers, Href: base + "/members", Icon: "users", Section: TeamSection},
		)
	}
	items = append(items,
		Item{Key: KeyTeams, Href: "/teams", Icon: "collection", Section: TeamSection},
		Item{Key: KeyAccount, Href: "/account", Icon: "user", Section: AccountSection},
		Item{Key: KeyLogout, Href: LogoutHref, Icon: "logout", Kind: Action, Section: AccountSection},
		Item{Key: KeyHelp, Href: "/help", Icon: "support", Section: AccountSection},
		Item{Key: KeyGuides, Href: "/docs", Icon: "document-search", Section: AccountSection},
	)
	for i := range items {
		items[i].Label = label(labeler, items[i].Key)
		items[i].Active = items[i].Kind == Link && items[i].Href == currentPath
	}
	return items
}

func label(labeler Labeler, key string) string {
	if labeler != nil {
		if text := labeler.T(key); text != "" && text != key {
			return text
		}
	}
	return defaultLabels[key]
}

// Activate performs an item's side effect. Only the logout action has one; links
// return false so the caller navigates to Href.
func Activate(ctx context.Context, item Item, session SignOuter) (bool, error) {
	if item.Kind != Action || item.Key != KeyLogout {
		return false, nil
	}
	if session == nil {
		return true, nil
	}
	return true, session.SignOut(ctx)
}

// Split partitions items by section, preserving order.
func Split(items []Item) (team, account []Item) {
	for _, item := range items {
		if item.Section == AccountSection {
			account = append(account, item)
			continue
		}
		team = append(team, item)
	}
	return team, account
}
