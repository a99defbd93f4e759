package client

import (
	"context"
	"net/http"
)

// LoginResponse captures the token payload emitted by the API.
type LoginResponse struct {
	User   User      `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// User reflects API user payloads.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// TokenPair includes access and refresh tokens. ExpiresIn is in seconds.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	return c.credentials(ctx, "/auth/login", email, password)
}

// Signup registers an account and returns its first token pair.
func (c *Client) Signup(ctx context.Context, email, password string) (LoginResponse, error) {
	return c.credentials(ctx, "/auth/signup", email, password)
}

func (c *Client) credentials(ctx context.Context, path, email, password string) (LoginResponse, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, path, body, "", &resp); err != nil {
		return LoginResponse{}, err
	}
	return resp, nil
}
