package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type principalKey struct{}

// authInfo identifies the user a request acts for.
type authInfo struct {
	UserID string
	Email  string
}

var (
	errNoCredentials  = errors.New("missing authorization header")
	errBadCredentials = errors.New("authorization header is not a bearer token")
)

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth resolves the bearer token to a user and stores it on the request
// context. Team membership is checked later by the handlers.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		token, err := bearerToken(req.Header.Get("Authorization"))
		if err != nil {
			r.logger.Warn("request without usable credentials", "error", err, "path", req.URL.Path)
			challenge(w, "authentication required")
			return
		}
		user, err := r.auth.Authorize(req.Context(), token)
		if err != nil {
			r.logger.Warn("bearer token rejected", "error", err, "path", req.URL.Path)
			challenge(w, "authentication failed")
			return
		}
		ctx := context.WithValue(req.Context(), principalKey{}, authInfo{UserID: user.ID, Email: user.Email})
		// The audit wrapper logs the user once the handler returns.
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

func challenge(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="teamhub"`)
	writeError(w, http.StatusUnauthorized, msg)
}

func authInfoFromContext(ctx context.Context) (authInfo, bool) {
	info, ok := ctx.Value(principalKey{}).(authInfo)
	return info, ok && info.UserID != ""
}

func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errNoCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" || strings.ContainsAny(token, " \t") {
		return "", errBadCredentials
	}
	return token, nil
}
