package handlers

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chathub/internal/hub"
	"chathub/internal/metrics"
	"chathub/internal/models"
	"chathub/internal/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const localIdentity = "identity"

// Verifier turns a bearer token into an identity.
type Verifier interface {
	Verify(token string) (models.Identity, error)
}

// ChatHub is the part of hub.Hub the handlers drive.
type ChatHub interface {
	Connect(ctx context.Context, s models.Session, conn hub.Conn)
	Disconnect(connID string)
	Route(ctx context.Context, s models.Session, out models.OutgoingMessage) (*models.Message, error)
	RelayTyping(s models.Session, recipientID string)
	ToggleReaction(ctx context.Context, id models.Identity, ref, emoji string) (*models.Message, error)
	DeleteMessage(ctx context.Context, id models.Identity, messageID string) error
	IsOnline(userID string) bool
}

type WSConfig struct {
	MaxMessageBytes int64
	RateLimit       float64
	RateBurst       int
	SendBuffer      int
}

// WSHandler serves /ws: one read loop and one write pump per connection.
type WSHandler struct {
	hub      ChatHub
	validate *validator.Validator
	metrics  *metrics.Metrics
	log      *slog.Logger
	cfg      WSConfig
}

func NewWSHandler(h ChatHub, v *validator.Validator, m *metrics.Metrics, log *slog.Logger, cfg WSConfig) *WSHandler {
	return &WSHandler{hub: h, validate: v, metrics: m, log: log, cfg: cfg}
}

// Handler handles the websocket connection
func (w *WSHandler) Handler() fiber.Handler {
	return websocket.New(w.serve)
}

func (w *WSHandler) serve(c *websocket.Conn) {
	identity, ok := c.Locals(localIdentity).(models.Identity)
	if !ok {
		w.log.Error("WebSocket opened without identity")
		return
	}

	s := models.Session{ConnectionID: uuid.NewString(), Identity: identity}
	cl := newClient(s.ConnectionID, c, w.cfg)
	log := w.log.With("conn", s.ConnectionID, "user", s.UserID)

	ctx, cancel := context.WithCancel(context.Background())
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		cl.writePump(log)
	}()

	var once sync.Once
	defer func() {
		once.Do(func() {
			cl.close()
			w.hub.Disconnect(s.ConnectionID)
		})
		cancel()
		// the conn is released once serve returns
		<-pumpDone
	}()
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic in connection handler", "panic", r)
		}
	}()

	w.hub.Connect(ctx, s, cl)

	if w.cfg.MaxMessageBytes > 0 {
		c.SetReadLimit(w.cfg.MaxMessageBytes)
	}
	c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, msg, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Warn("Connection closed unexpectedly", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.SetReadDeadline(time.Now().Add(pongWait))

		if err := cl.allow(); err != nil {
			w.metrics.EventsDropped.Inc()
			log.Warn("Dropping client event", "error", err)
			continue
		}
		w.handleMessage(ctx, s, cl, msg)
	}
}

// WSUpgradeMiddleware upgrades the connection to WebSocket
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// AuthMiddleware verifies the JWT token before upgrading
func AuthMiddleware(v Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Get token from query param `access_token` or Authorization header
		token := c.Query("access_token")
		if token == "" {
			authHeader := c.Get(fiber.HeaderAuthorization)
			if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
				token = authHeader[7:]
			}
		}

		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
		}

		identity, err := v.Verify(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}

		c.Locals(localIdentity, identity)
		return c.Next()
	}
}

func identityFrom(c *fiber.Ctx) (models.Identity, bool) {
	id, ok := c.Locals(localIdentity).(models.Identity)
	return id, ok
}
