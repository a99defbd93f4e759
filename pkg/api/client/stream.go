package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// Event is a change notification pushed over the team stream.
type Event struct {
	Type string `json:"type"`
	Team string `json:"team"`
}

// SubscribeInvitations streams invitation change events for the team until ctx ends
// or the connection drops. The returned channel is closed on exit.
func (c *Client) SubscribeInvitations(ctx context.Context, token, slug string) (<-chan Event, error) {
	endpoint := c.wsURL() + "/ws" + teamPath(slug, "/invitations")
	header := http.Header{}
	header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
		}
		return nil, fmt.Errorf("dial invitation stream: %w", err)
	}
	events := make(chan Event)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	go func() {
		defer close(events)
		defer close(done)
		defer conn.Close()
		for {
			var evt Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case events <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func (c *Client) wsURL() string {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://")
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://")
	}
	return c.baseURL
}
