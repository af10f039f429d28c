package handlers

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"golang.org/x/time/rate"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	defaultSendBuffer = 256
)

var (
	ErrConnClosed    = errors.New("connection closed")
	ErrSendQueueFull = errors.New("send queue full")
	errRateLimited   = errors.New("rate limited")
)

// client is one WebSocket connection. Frames are queued by Send and written by
// writePump, the only goroutine that writes to conn.
type client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
}

func newClient(id string, conn *websocket.Conn, cfg WSConfig) *client {
	buf := cfg.SendBuffer
	if buf <= 0 {
		buf = defaultSendBuffer
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &client{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, buf),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (c *client) ID() string { return c.id }

// Send queues a frame without blocking.
func (c *client) Send(frame []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// allow reports whether another inbound event fits the rate limit.
func (c *client) allow() error {
	if !c.limiter.Allow() {
		return errRateLimited
	}
	return nil
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) writePump(log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug("Write failed", "conn", c.id, "error", err)
				c.abort()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("Ping failed", "conn", c.id, "error", err)
				c.abort()
				return
			}
		case <-c.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}

// abort stops the client and unblocks the read loop.
func (c *client) abort() {
	c.close()
	_ = c.conn.Close()
}
