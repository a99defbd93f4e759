package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/splax/teamhub/internal/domain"
	"github.com/splax/teamhub/internal/service/auth"
	"github.com/splax/teamhub/internal/service/invitation"
	"github.com/splax/teamhub/internal/service/team"
	"github.com/splax/teamhub/internal/ws"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	auth        auth.Service
	teams       team.Service
	invitations invitation.Service
	hub         *ws.Hub
	upgrader    websocket.Upgrader
	limiter     RateLimiter
	metrics     *routerMetrics
	dbHealth    func(context.Context) error
}

const healthCheckTimeout = 2 * time.Second

var (
	signupPolicy = uniformPolicy(rateBudget{limit: 5, window: time.Minute})
	loginPolicy  = uniformPolicy(rateBudget{limit: 12, window: time.Minute})
	teamsPolicy  = ratePolicy{
		read:  rateBudget{limit: 120, window: time.Minute},
		write: rateBudget{limit: 20, window: time.Minute},
	}
	// A dashboard members page issues three reads under /teams/{slug}.
	teamPolicy = ratePolicy{
		read:  rateBudget{limit: 240, window: time.Minute},
		write: rateBudget{limit: 60, window: time.Minute},
	}
	streamPolicy = uniformPolicy(rateBudget{limit: 30, window: 30 * time.Second})
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, teamSvc team.Service, invitationSvc invitation.Service, hub *ws.Hub, limiter RateLimiter, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:         http.NewServeMux(),
		logger:      logger,
		auth:        authSvc,
		teams:       teamSvc,
		invitations: invitationSvc,
		hub:         hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  limiter,
		metrics:  newRouterMetrics(),
		dbHealth: dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", r.metrics.handler())
	r.mux.HandleFunc("/auth/signup", r.audit("/auth/signup", r.limit("/auth/signup", signupPolicy, r.handleSignup)))
	r.mux.HandleFunc("/auth/login", r.audit("/auth/login", r.limit("/auth/login", loginPolicy, r.handleLogin)))
	r.mux.HandleFunc("/teams", r.audit("/teams", r.authedLimit("/teams", teamsPolicy, r.handleTeams)))
	r.mux.HandleFunc("/teams/", r.audit("/teams/{slug}", r.authedLimit("/teams/{slug}", teamPolicy, r.handleTeamSubroutes)))
	r.mux.HandleFunc("/ws/teams/", r.audit("/ws/teams/{slug}/invitations", r.authedLimit("/ws/teams/{slug}/invitations", streamPolicy, r.handleInvitationsWS)))
}

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func authResponse(user *domain.User, tokens auth.TokenPair) map[string]any {
	return map[string]any{
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
		},
		"tokens": map[string]any{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_in":    int64(tokens.ExpiresIn.Seconds()),
		},
	}
}

func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload credentialsPayload
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, tokens, err := r.auth.Signup(req.Context(), payload.Email, payload.Password)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse(user, tokens))
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload credentialsPayload
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, tokens, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse(user, tokens))
}

func (r *Router) handleTeams(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for teams", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	switch req.Method {
	case http.MethodGet:
		teams, err := r.teams.ListForUser(req.Context(), info.UserID)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		if teams == nil {
			teams = []domain.Team{}
		}
		writeJSON(w, http.StatusOK, teams)
	case http.MethodPost:
		var payload struct {
			Name string `json:"name"`
			Slug string `json:"slug"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		created, err := r.teams.Create(req.Context(), info.UserID, payload.Name, payload.Slug)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTeamSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(req.URL.Path, "/teams/"), "/")
	parts := strings.Split(trimmed, "/")
	if trimmed == "" || len(parts) > 2 {
		r.notFound(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for team route", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	teamSlug := parts[0]
	if len(parts) == 1 {
		r.handleTeam(w, req, teamSlug, info)
		return
	}
	switch parts[1] {
	case "members":
		r.handleMembers(w, req, teamSlug, info)
	case "invitations":
		r.handleInvitations(w, req, teamSlug, info)
	default:
		r.notFound(w)
	}
}

func (r *Router) handleTeam(w http.ResponseWriter, req *http.Request, teamSlug string, info authInfo) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	found, err := r.teams.Get(req.Context(), team.Key{Slug: teamSlug})
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	if found == nil {
		writeError(w, http.StatusNotFound, "team not found")
		return
	}
	if err := r.teams.CheckMember(req.Context(), found, info.UserID, false); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (r *Router) handleMembers(w http.ResponseWriter, req *http.Request, teamSlug string, info authInfo) {
	switch req.Method {
	case http.MethodGet:
		found, err := r.teams.Access(req.Context(), teamSlug, info.UserID, false)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		members, err := r.teams.Members(req.Context(), found.ID)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		if members == nil {
			members = []domain.TeamMember{}
		}
		writeJSON(w, http.StatusOK, members)
	case http.MethodPost:
		var payload struct {
			UserID string `json:"user_id"`
			Role   string `json:"role"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		found, err := r.teams.Access(req.Context(), teamSlug, info.UserID, true)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		if payload.Role == "" {
			payload.Role = domain.RoleMember
		}
		member, err := r.teams.AddMember(req.Context(), found.ID, payload.UserID, payload.Role)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusCreated, member)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleInvitations(w http.ResponseWriter, req *http.Request, teamSlug string, info authInfo) {
	switch req.Method {
	case http.MethodGet:
		var sentViaEmail *bool
		if raw := strings.TrimSpace(req.URL.Query().Get("sentViaEmail")); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "sentViaEmail must be true or false")
				return
			}
			sentViaEmail = &parsed
		}
		invitations, err := r.invitations.List(req.Context(), teamSlug, info.UserID, sentViaEmail)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		if invitations == nil {
			invitations = []domain.Invitation{}
		}
		writeJSON(w, http.StatusOK, invitations)
	case http.MethodPost:
		var payload struct {
			Email *string `json:"email"`
			Role  string  `json:"role"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		created, err := r.invitations.Create(req.Context(), teamSlug, info.UserID, invitation.CreateInput{
			Email: payload.Email,
			Role:  payload.Role,
		})
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodDelete:
		invitationID := strings.TrimSpace(req.URL.Query().Get("id"))
		if err := r.invitations.Delete(req.Context(), teamSlug, info.UserID, invitationID); err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleInvitationsWS(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for invitations websocket", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	trimmed := strings.Trim(strings.TrimPrefix(req.URL.Path, "/ws/teams/"), "/")
	teamSlug, rest, _ := strings.Cut(trimmed, "/")
	if teamSlug == "" || rest != "invitations" {
		r.notFound(w)
		return
	}
	if r.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "realtime feed unavailable")
		return
	}
	found, err := r.teams.Access(req.Context(), teamSlug, info.UserID, false)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(found.Slug, client)
	go func() {
		defer func() {
			r.hub.Unregister(found.Slug, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// writeServiceError maps service errors onto the error envelope. Unexpected errors are logged and hidden.
func (r *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		r.logger.Error("request failed", "path", req.URL.Path, "error", err)
	}
	writeError(w, status, msg)
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)
		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
