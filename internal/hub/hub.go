// Package hub is the routing and presence engine behind the WebSocket
// transport. It decides who receives every event and never touches sockets
// directly.
package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chathub/internal/events"
	"chathub/internal/metrics"
	"chathub/internal/models"
)

// Store persists messages. Missing records are reported as models.ErrNotFound
// and every other failure wraps models.ErrPersistence.
type Store interface {
	Save(ctx context.Context, msg *models.Message) error
	// FindVisible returns public messages plus private ones involving userID,
	// newest first.
	FindVisible(ctx context.Context, userID string, limit int) ([]models.Message, error)
	FindByID(ctx context.Context, id string) (*models.Message, error)
	// FindByLocalID returns the message carrying the client token among those
	// visible to userID, preferring userID's own and then the newest.
	FindByLocalID(ctx context.Context, userID, localID string) (*models.Message, error)
	DeleteByID(ctx context.Context, id string) error
	UpdateReactions(ctx context.Context, id string, reactions []models.Reaction) error
}

// Enricher derives a link preview from message text. It never fails.
type Enricher interface {
	Enrich(ctx context.Context, text string) *models.LinkPreview
}

type Options struct {
	Store     Store
	Enricher  Enricher
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	// HistoryLimit caps last-messages on connect. Defaults to 50.
	HistoryLimit int
	// PublishTimeout bounds each domain event write. Defaults to 5s.
	PublishTimeout time.Duration
}

type Hub struct {
	registry       *Registry
	store          Store
	enricher       Enricher
	publisher      events.Publisher
	metrics        *metrics.Metrics
	log            *slog.Logger
	locks          *keyedMutex
	historyLimit   int
	publishTimeout time.Duration
	now            func() time.Time

	pending sync.WaitGroup
}

func New(opts Options) *Hub {
	h := &Hub{
		registry:       NewRegistry(),
		store:          opts.Store,
		enricher:       opts.Enricher,
		publisher:      opts.Publisher,
		metrics:        opts.Metrics,
		log:            opts.Logger,
		locks:          newKeyedMutex(),
		historyLimit:   opts.HistoryLimit,
		publishTimeout: opts.PublishTimeout,
		now:            time.Now,
	}
	if h.publisher == nil {
		h.publisher = events.Nop{}
	}
	if h.metrics == nil {
		h.metrics = metrics.New(false)
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	if h.historyLimit <= 0 {
		h.historyLimit = 50
	}
	if h.publishTimeout <= 0 {
		h.publishTimeout = 5 * time.Second
	}
	return h
}

// Connect registers a freshly authenticated connection, sends it the visible
// history and announces presence.
func (h *Hub) Connect(ctx context.Context, s models.Session, conn Conn) {
	first := h.registry.Register(s, conn)
	h.updateGauges()

	history, err := h.store.FindVisible(ctx, s.UserID, h.historyLimit)
	if err != nil {
		h.log.Error("Failed to load history", "conn", s.ConnectionID, "user", s.UserID, "error", err)
	}
	// newest last on the wire
	last := make([]models.Message, len(history))
	for i, m := range history {
		last[len(history)-1-i] = m
	}
	h.deliver([]Conn{conn}, models.EventLastMessages, last)

	if first {
		h.deliver(h.registry.connsExcept(s.UserID), models.EventUserJoined, models.PresenceNotice{
			Username:  s.Username,
			Avatar:    s.Avatar,
			Timestamp: h.now(),
		})
	}

	snapshot := h.registry.Snapshot()
	h.deliver(h.registry.all(), models.EventOnlineUsers, snapshot)
	if first {
		h.publish(events.Event{Kind: events.PresenceChanged, Online: snapshot})
	}

	h.log.Info("Connection registered", "conn", s.ConnectionID, "user", s.UserID, "first", first)
}

// Disconnect deregisters a connection. Only the user's last connection
// produces user-left and a new online-users snapshot. Repeated calls are
// no-ops.
func (h *Hub) Disconnect(connID string) {
	d := h.registry.Deregister(connID)
	h.updateGauges()
	if !d.Departed {
		return
	}

	rest := h.registry.all()
	h.deliver(rest, models.EventUserLeft, models.PresenceNotice{
		Username:  d.Identity.Username,
		Avatar:    d.Identity.Avatar,
		Timestamp: h.now(),
	})
	snapshot := h.registry.Snapshot()
	h.deliver(rest, models.EventOnlineUsers, snapshot)
	h.publish(events.Event{Kind: events.PresenceChanged, Online: snapshot})

	h.log.Info("User went offline", "user", d.Identity.UserID, "username", d.Identity.Username)
}

func (h *Hub) OnlineUsers() []models.OnlineUser {
	return h.registry.Snapshot()
}

func (h *Hub) IsOnline(userID string) bool {
	return h.registry.IsOnline(userID)
}

// Registry exposes the connection registry for read-only queries.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Close waits for in-flight domain event writes.
func (h *Hub) Close() {
	h.pending.Wait()
}

func (h *Hub) updateGauges() {
	users, conns := h.registry.Count()
	h.metrics.SetPresence(users, conns)
}

// publish hands the event to the broker without holding up the caller.
func (h *Hub) publish(e events.Event) {
	e.Timestamp = h.now()
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), h.publishTimeout)
		defer cancel()
		if err := h.publisher.Publish(ctx, e); err != nil {
			h.log.Warn("Failed to publish domain event", "kind", e.Kind, "key", e.Key(), "error", err)
		}
	}()
}
