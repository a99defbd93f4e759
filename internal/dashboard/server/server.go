package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/splax/teamhub/internal/dashboard/session"
	"github.com/splax/teamhub/internal/i18n"
	"github.com/splax/teamhub/internal/ui/nav"
	"github.com/splax/teamhub/internal/ui/pending"
	"github.com/splax/teamhub/pkg/api/client"
	"github.com/splax/teamhub/pkg/config"
)

//go:embed templates/*.html
var templateFS embed.FS

const apiTimeout = 10 * time.Second

// API is the subset of the teamhub API client the dashboard calls.
type API interface {
	pending.Source
	Login(ctx context.Context, email, password string) (client.LoginResponse, error)
	ListTeams(ctx context.Context, token string) ([]client.Team, error)
	CreateTeam(ctx context.Context, token, name, slug string) (client.Team, error)
	GetTeam(ctx context.Context, token, slug string) (client.Team, error)
	ListMembers(ctx context.Context, token, slug string) ([]client.Member, error)
	CreateInvitation(ctx context.Context, token, slug string, input client.CreateInvitationInput) (client.Invitation, error)
}

// Server hosts the dashboard web UI.
type Server struct {
	cfg       config.DashboardConfig
	api       API
	sessions  session.Manager
	bundle    *i18n.Bundle
	templates *template.Template
	mux       *http.ServeMux
	logger    *slog.Logger
}

// New constructs a configured server ready to serve HTTP traffic.
func New(cfg config.DashboardConfig, api API, bundle *i18n.Bundle, logger *slog.Logger) (*Server, error) {
	if strings.TrimSpace(cfg.SessionSecret) == "" {
		return nil, errors.New("SESSION_SECRET must be configured for the dashboard")
	}
	if api == nil {
		return nil, errors.New("api client is required")
	}
	sessionMgr, err := session.New(cfg.SessionSecret, cfg.CookieName, cfg.CookieSecure)
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		if bundle, err = i18n.LoadEmbedded(); err != nil {
			return nil, err
		}
	}
	templates, err := template.New("base").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	srv := &Server{
		cfg:       cfg,
		api:       api,
		sessions:  sessionMgr,
		bundle:    bundle,
		templates: templates,
		mux:       http.NewServeMux(),
		logger:    logger,
	}
	srv.registerRoutes()
	return srv, nil
}

// ServeHTTP conforms to http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/login", s.handleLogin)
	s.mux.HandleFunc("/logout", s.requireAuth(s.handleLogout))
	s.mux.HandleFunc("/teams", s.requireAuth(s.handleTeams))
	s.mux.HandleFunc("/teams/", s.requireAuth(s.handleTeamSubroutes))
	s.mux.HandleFunc("/account", s.requireAuth(s.handleSection("nav-account")))
	s.mux.HandleFunc("/help", s.requireAuth(s.handleSection("nav-help")))
	s.mux.HandleFunc("/docs", s.requireAuth(s.handleSection("nav-guides")))
	s.mux.HandleFunc("/", s.requireAuth(s.handleHome))
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.sessions.TokenFromRequest(r); err != nil {
			if errors.Is(err, http.ErrNoCookie) {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			s.logger.Warn("session validation failed", "error", err)
			http.Redirect(w, r, "/login?flash=please+sign+in", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

func (s *Server) translator(r *http.Request) i18n.Translator {
	return s.bundle.Translator(r.Header.Get("Accept-Language"), s.cfg.Locale)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	tr := s.translator(r)
	switch r.Method {
	case http.MethodGet:
		if token, err := s.sessions.TokenFromRequest(r); err == nil && strings.TrimSpace(token) != "" {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		data := s.baseData(r, tr, tr.T("sign-in"))
		data["HideChrome"] = true
		s.render(w, r, "login", data)
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			s.renderError(w, r, http.StatusBadRequest, "invalid form payload")
			return
		}
		email := r.PostFormValue("email")
		password := r.PostFormValue("password")
		ctx, cancel := context.WithTimeout(r.Context(), apiTimeout)
		defer cancel()
		resp, err := s.api.Login(ctx, email, password)
		if err != nil {
			s.logger.Warn("login failed", "error", err)
			data := s.baseData(r, tr, tr.T("sign-in"))
			data["HideChrome"] = true
			data["Flash"] = "login failed: " + pending.ErrorMessage(err)
			data["FlashError"] = true
			data["Email"] = email
			s.render(w, r, "login", data)
			return
		}
		cookie, err := s.sessions.MakeCookie(resp.Tokens.AccessToken, time.Duration(resp.Tokens.ExpiresIn)*time.Second)
		if err != nil {
			s.renderError(w, r, http.StatusInternalServerError, "session issuance failed")
			return
		}
		http.SetCookie(w, cookie)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	logout := nav.Item{Key: nav.KeyLogout, Kind: nav.Action, Href: nav.LogoutHref}
	if _, err := nav.Activate(r.Context(), logout, session.SignOut{Manager: s.sessions, Writer: w}); err != nil {
		s.renderError(w, r, http.StatusInternalServerError, "sign out failed")
		return
	}
	redirectWithFlash(w, r, "/login", s.translator(r).T("logout-done"))
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	token, _ := s.sessions.TokenFromRequest(r)
	ctx, cancel := context.WithTimeout(r.Context(), apiTimeout)
	defer cancel()
	teams, err := s.api.ListTeams(ctx, token)
	if err != nil {
		s.apiFailure(w, r, err, "failed to load teams")
		return
	}
	if len(teams) == 0 {
		http.Redirect(w, r, "/teams", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/teams/"+url.PathEscape(teams[0].Slug)+"/members", http.StatusSeeOther)
}

func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	token, _ := s.sessions.TokenFromRequest(r)
	ctx, cancel := context.WithTimeout(r.Context(), apiTimeout)
	defer cancel()
	switch r.Method {
	case http.MethodGet:
		teams, err := s.api.ListTeams(ctx, token)
		if err != nil {
			s.apiFailure(w, r, err, "failed to load teams")
			return
		}
		tr := s.translator(r)
		data := s.baseData(r, tr, tr.T("nav-teams"))
		s.withNav(data, teams, r.URL.Path, tr)
		data["Teams"] = teams
		s.render(w, r, "teams", data)
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			s.renderError(w, r, http.StatusBadRequest, "invalid form payload")
			return
		}
		created, err := s.api.CreateTeam(ctx, token, r.PostFormValue("name"), r.PostFormValue("slug"))
		if err != nil {
			s.logger.Warn("team create failed", "error", err)
			redirectWithError(w, r, "/teams", pending.ErrorMessage(err))
			return
		}
		redirectWithFlash(w, r, "/teams/"+url.PathEscape(created.Slug)+"/members", "team created")
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTeamSubroutes(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/teams/"), "/")
	parts := strings.Split(trimmed, "/")
	if trimmed == "" {
		http.NotFound(w, r)
		return
	}
	teamSlug := parts[0]
	switch {
	case len(parts) == 1:
		http.Redirect(w, r, "/teams/"+url.PathEscape(teamSlug)+"/members", http.StatusSeeOther)
	case len(parts) == 2 && parts[1] == "members":
		s.handleMembers(w, r, teamSlug)
	case len(parts) == 2 && parts[1] == "invitations":
		s.handleInvitationCreate(w, r, teamSlug)
	case len(parts) == 3 && parts[1] == "invitations" && parts[2] == "remove":
		s.handleInvitationRemove(w, r, teamSlug)
	case len(parts) == 2 && parts[1] == "dashboard":
		s.handleSection("nav-dashboard")(w, r)
	case len(parts) == 2 && parts[1] == "settings":
		s.handleSection("nav-settings")(w, r)
	case len(parts) == 2 && parts[1] == "authentication":
		s.handleSection("nav-authentication")(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request, teamSlug string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	token, _ := s.sessions.TokenFromRequest(r)
	ctx, cancel := context.WithTimeout(r.Context(), apiTimeout)
	defer cancel()

	team, err := s.api.GetTeam(ctx, token, teamSlug)
	if err != nil {
		s.apiFailure(w, r, err, "failed to load team")
		return
	}
	teams, err := s.api.ListTeams(ctx, token)
	if err != nil {
		s.apiFailure(w, r, err, "failed to load teams")
		return
	}
	members, err := s.api.ListMembers(ctx, token, teamSlug)
	if err != nil {
		s.apiFailure(w, r, err, "failed to load members")
		return
	}

	tr := s.translator(r)
	workflow := pending.New(pending.Config{Source: s.api, Translator: tr, Token: token, Team: team.Slug})
	if err := workflow.Load(ctx); err != nil {
		s.logger.Warn("pending invitations load failed", "team", team.Slug, "error", err)
	}
	if id := strings.TrimSpace(r.URL.Query().Get("remove")); id != "" {
		workflow.SelectID(id)
	}

	membersPath := "/teams/" + url.PathEscape(team.Slug) + "/members"
	data := s.baseData(r, tr, team.Name)
	s.withNav(data, teams, r.URL.Path, tr)
	data["Team"] = team
	data["Members"] = members
	data["Pending"] = workflow.View()
	data["PendingAction"] = "/teams/" + url.PathEscape(team.Slug) + "/invitations/remove"
	data["PendingCancel"] = membersPath
	s.render(w, r, "members", data)
}

func (s *Server) handleInvitationCreate(w http.ResponseWriter, r *http.Request, teamSlug string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "invalid form payload")
		return
	}
	token, _ := s.sessions.TokenFromRequest(r)
	ctx, cancel := context.WithTimeout(r.Context(), apiTimeout)
	defer cancel()
	target := "/teams/" + url.PathEscape(teamSlug) + "/members"
	email := strings.TrimSpace(r.PostFormValue("email"))
	input := client.CreateInvitationInput{Role: r.PostFormValue("role")}
	if email != "" {
		input.Email = &email
	}
	if _, err := s.api.CreateInvitation(ctx, token, teamSlug, input); err != nil {
		redirectWithError(w, r, target, pending.ErrorMessage(err))
		return
	}
	redirectWithFlash(w, r, target, "invitation sent")
}

func (s *Server) handleInvitationRemove(w http.ResponseWriter, r *http.Request, teamSlug string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "invalid form payload")
		return
	}
	token, _ := s.sessions.TokenFromRequest(r)
	ctx, cancel := context.WithTimeout(r.Context(), apiTimeout)
	defer cancel()

	target := "/teams/" + url.PathEscape(teamSlug) + "/members"
	id := strings.TrimSpace(r.PostFormValue("id"))
	notifier := &flashNotifier{}
	workflow := pending.New(pending.Config{
		Source:     s.api,
		Notifier:   notifier,
		Translator: s.translator(r),
		Token:      token,
		Team:       teamSlug,
	})
	// The id comes from the rendered dialog; the server still scopes it to the team.
	if id != "" {
		inv := client.Invitation{ID: id}
		workflow.Select(inv)
	}
	if err := workflow.Confirm(ctx); err != nil {
		s.logger.Warn("invitation removal failed", "team", teamSlug, "invitation_id", id, "error", err)
	}
	if notifier.failed {
		redirectWithError(w, r, target, notifier.message)
		return
	}
	redirectWithFlash(w, r, target, notifier.message)
}

func (s *Server) handleSection(key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := s.sessions.TokenFromRequest(r)
		ctx, cancel := context.WithTimeout(r.Context(), apiTimeout)
		defer cancel()
		teams, err := s.api.ListTeams(ctx, token)
		if err != nil {
			s.apiFailure(w, r, err, "failed to load teams")
			return
		}
		tr := s.translator(r)
		data := s.baseData(r, tr, tr.T(key))
		s.withNav(data, teams, r.URL.Path, tr)
		s.render(w, r, "section", data)
	}
}

func (s *Server) baseData(r *http.Request, tr i18n.Translator, title string) map[string]any {
	flash, isError := flashFromRequest(r)
	return map[string]any{
		"Title":      title,
		"Locale":     tr.Locale(),
		"Flash":      flash,
		"FlashError": isError,
		"HideChrome": false,
		"T":          tr.T,
	}
}

func (s *Server) withNav(data map[string]any, teams []client.Team, currentPath string, tr i18n.Translator) {
	navTeams := make([]nav.Team, 0, len(teams))
	for _, t := range teams {
		navTeams = append(navTeams, nav.Team{Slug: t.Slug, Name: t.Name})
	}
	teamItems, accountItems := nav.Split(nav.BuildLocalized(navTeams, currentPath, tr))
	data["NavTeam"] = teamItems
	data["NavAccount"] = accountItems
}

// apiFailure sends expired sessions back to login and renders other failures.
func (s *Server) apiFailure(w http.ResponseWriter, r *http.Request, err error, message string) {
	var apiErr client.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized:
			http.SetCookie(w, s.sessions.ExpireCookie())
			http.Redirect(w, r, "/login?flash=please+sign+in", http.StatusSeeOther)
			return
		case http.StatusNotFound, http.StatusForbidden:
			s.renderError(w, r, apiErr.Status, apiErr.Message)
			return
		}
	}
	s.logger.Error("dashboard api call failed", "path", r.URL.Path, "error", err)
	s.renderError(w, r, http.StatusBadGateway, message)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, tpl string, data map[string]any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, tpl, data); err != nil {
		s.logger.Error("template render failed", "template", tpl, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.logger.Warn("dashboard error", "status", status, "message", message, "path", r.URL.Path)
	http.Error(w, message, status)
}

// flashNotifier keeps the last workflow notification for the redirect.
type flashNotifier struct {
	message string
	failed  bool
}

func (n *flashNotifier) Success(msg string) {
	n.message = msg
	n.failed = false
}

func (n *flashNotifier) Error(msg string) {
	n.message = msg
	n.failed = true
}

func flashFromRequest(r *http.Request) (string, bool) {
	q := r.URL.Query()
	return strings.TrimSpace(q.Get("flash")), q.Get("flash_kind") == "error"
}

func redirectWithFlash(w http.ResponseWriter, r *http.Request, target, message string) {
	redirect(w, r, target, message, false)
}

func redirectWithError(w http.ResponseWriter, r *http.Request, target, message string) {
	redirect(w, r, target, message, true)
}

func redirect(w http.ResponseWriter, r *http.Request, target, message string, isError bool) {
	if strings.TrimSpace(target) == "" {
		target = "/"
	}
	if strings.TrimSpace(message) == "" {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	u, err := url.Parse(target)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	q := u.Query()
	q.Set("flash", message)
	if isError {
		q.Set("flash_kind", "error")
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusSeeOther)
}
