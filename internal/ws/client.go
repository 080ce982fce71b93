package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait     = 5 * time.Second
	sendQueueSize = 16
)

var (
	// ErrSlowConsumer is returned by Send when the client's outbound queue is full.
	ErrSlowConsumer = errors.New("websocket client send queue full")
	// ErrClientClosed is returned by Send after Close.
	ErrClientClosed = errors.New("websocket client closed")
)

// Client represents a websocket client connection. Writes happen on a
// dedicated goroutine fed by a bounded queue.
type Client struct {
	conn *websocket.Conn
	log  *slog.Logger
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewClient constructs a client wrapper and starts its writer.
func NewClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	c := newClient(conn, logger, sendQueueSize)
	go c.writeLoop()
	return c
}

func newClient(conn *websocket.Conn, logger *slog.Logger, queue int) *Client {
	return &Client{
		conn: conn,
		log:  logger,
		send: make(chan []byte, queue),
		done: make(chan struct{}),
	}
}

// Send queues payload for delivery without blocking.
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
		c.log.Warn("websocket client too slow, dropping")
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

// Close terminates the connection and stops the writer.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}
