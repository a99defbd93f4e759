package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 16
)

var (
	// ErrSlowConsumer is returned by Send when the client's queue is full.
	ErrSlowConsumer = errors.New("ws: client send queue full")
	// ErrClientClosed is returned by Send after Close.
	ErrClientClosed = errors.New("ws: client closed")
)

// frameWriter is the part of *websocket.Conn the client writes through.
type frameWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client queues outbound messages for one websocket connection. A dedicated
// goroutine performs the writes so Send never waits on the network.
type Client struct {
	conn      frameWriter
	log       *slog.Logger
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps conn and starts its writer.
func NewClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	return newClient(conn, logger, sendBuffer)
}

func newClient(conn frameWriter, logger *slog.Logger, buffer int) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		conn: conn,
		log:  logger,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// Send enqueues payload without blocking.
func (c *Client) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Warn("websocket send failed", "error", err)
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close terminates the connection. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
