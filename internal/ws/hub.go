package ws

import (
	"encoding/json"
	"sync"
)

// EventInvitationsChanged is broadcast after any invitation mutation for a team.
const EventInvitationsChanged = "invitations.changed"

// Event is the payload delivered to team stream subscribers.
type Event struct {
	Type string `json:"type"`
	Team string `json:"team"`
}

// Subscriber abstracts a streaming client. Send is called from the hub
// goroutine and must not block; a non-nil error detaches the subscriber.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub manages stream subscriptions by team slug.
type Hub struct {
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
	count     chan countRequest
	done      chan struct{}
	closeOnce sync.Once
}

// message couples payload with team slug.
type message struct {
	team    string
	payload []byte
}

// subscription defines register/unregister requests.
type subscription struct {
	team   string
	client Subscriber
}

type countRequest struct {
	team  string
	reply chan int
}

// NewHub creates an initialized Hub.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message),
		count:     make(chan countRequest),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			if _, ok := h.clients[sub.team]; !ok {
				h.clients[sub.team] = make(map[Subscriber]struct{})
			}
			h.clients[sub.team][sub.client] = struct{}{}
		case sub := <-h.unreg:
			if clients, ok := h.clients[sub.team]; ok {
				delete(clients, sub.client)
				if len(clients) == 0 {
					delete(h.clients, sub.team)
				}
			}
		case msg := <-h.broadcast:
			if clients, ok := h.clients[msg.team]; ok {
				for c := range clients {
					if err := c.Send(msg.payload); err != nil {
						c.Close()
						delete(clients, c)
					}
				}
				if len(clients) == 0 {
					delete(h.clients, msg.team)
				}
			}
		case req := <-h.count:
			req.reply <- len(h.clients[req.team])
		case <-h.done:
			for _, clients := range h.clients {
				for c := range clients {
					c.Close()
				}
			}
			h.clients = map[string]map[Subscriber]struct{}{}
			return
		}
	}
}

// Register adds a client to a team stream.
func (h *Hub) Register(team string, client Subscriber) {
	select {
	case h.register <- subscription{team: team, client: client}:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(team string, client Subscriber) {
	select {
	case h.unreg <- subscription{team: team, client: client}:
	case <-h.done:
	}
}

// Broadcast sends payload to all team clients.
func (h *Hub) Broadcast(team string, payload []byte) {
	select {
	case h.broadcast <- message{team: team, payload: payload}:
	case <-h.done:
	}
}

// Publish encodes and broadcasts an event for the team.
func (h *Hub) Publish(team, eventType string) {
	payload, err := json.Marshal(Event{Type: eventType, Team: team})
	if err != nil {
		return
	}
	h.Broadcast(team, payload)
}

// Subscribers returns the number of clients attached to a team stream.
func (h *Hub) Subscribers(team string) int {
	reply := make(chan int, 1)
	select {
	case h.count <- countRequest{team: team, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Close stops the hub and closes every attached client.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}
