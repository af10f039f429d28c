package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"chathub/internal/events"
	"chathub/internal/metrics"
	"chathub/internal/models"
	"chathub/internal/utils"

	"github.com/google/uuid"
	"github.com/neilotoole/slogt"
)

var errConnGone = errors.New("connection gone")

type testconn struct {
	id string

	mu     sync.Mutex
	frames []models.Envelope
	broken bool
}

func (c *testconn) ID() string { return c.id }

func (c *testconn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return errConnGone
	}
	env, err := utils.DecodeEnvelope(frame)
	if err != nil {
		return err
	}
	c.frames = append(c.frames, env)
	return nil
}

func (c *testconn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func (c *testconn) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		out = append(out, f.Event)
	}
	return out
}

func (c *testconn) count(event string) int {
	n := 0
	for _, e := range c.events() {
		if e == event {
			n++
		}
	}
	return n
}

// last decodes the payload of the most recent frame of the given event.
func (c *testconn) last(t *testing.T, event string, v any) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.frames) - 1; i >= 0; i-- {
		if c.frames[i].Event == event {
			if err := json.Unmarshal(c.frames[i].Data, v); err != nil {
				t.Fatalf("decode %s: %v", event, err)
			}
			return
		}
	}
	t.Fatalf("conn %s got no %s event (got %v)", c.id, event, c.eventsLocked())
}

func (c *testconn) eventsLocked() []string {
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		out = append(out, f.Event)
	}
	return out
}

// teststore is an in-memory Store. Returned messages are copies.
type teststore struct {
	mu      sync.Mutex
	msgs    []*models.Message
	saveErr error
	clock   time.Time
}

func clone(m *models.Message) *models.Message {
	c := *m
	c.Reactions = append([]models.Reaction{}, m.Reactions...)
	return &c
}

func (s *teststore) Save(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistence, s.saveErr)
	}
	s.clock = s.clock.Add(time.Second)
	msg.ID = uuid.NewString()
	msg.Timestamp = s.clock
	s.msgs = append(s.msgs, clone(msg))
	return nil
}

func (s *teststore) FindVisible(_ context.Context, userID string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for i := len(s.msgs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.msgs[i].VisibleTo(userID) {
			out = append(out, *clone(s.msgs[i]))
		}
	}
	return out, nil
}

func (s *teststore) FindByID(_ context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.msgs {
		if m.ID == id {
			return clone(m), nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *teststore) FindByLocalID(_ context.Context, userID, localID string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *models.Message
	for i := len(s.msgs) - 1; i >= 0; i-- {
		m := s.msgs[i]
		if localID == "" || m.LocalID != localID || !m.VisibleTo(userID) {
			continue
		}
		if m.SenderID == userID {
			return clone(m), nil
		}
		if found == nil {
			found = m
		}
	}
	if found == nil {
		return nil, models.ErrNotFound
	}
	return clone(found), nil
}

func (s *teststore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.msgs {
		if m.ID == id {
			s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

func (s *teststore) UpdateReactions(_ context.Context, id string, reactions []models.Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.msgs {
		if m.ID == id {
			m.Reactions = append([]models.Reaction{}, reactions...)
			return nil
		}
	}
	return models.ErrNotFound
}

func (s *teststore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

type testpublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *testpublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *testpublisher) Close() error { return nil }

func (p *testpublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

type testenricher struct {
	enrich func(ctx context.Context, text string) *models.LinkPreview
}

func (e testenricher) Enrich(ctx context.Context, text string) *models.LinkPreview {
	return e.enrich(ctx, text)
}

type fixture struct {
	hub       *Hub
	store     *teststore
	publisher *testpublisher
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     &teststore{clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		publisher: &testpublisher{},
		metrics:   metrics.New(false),
	}
	f.hub = New(Options{
		Store:     f.store,
		Publisher: f.publisher,
		Metrics:   f.metrics,
		Logger:    slogt.New(t),
	})
	return f
}

func session(userID, username, connID string) models.Session {
	return models.Session{
		ConnectionID: connID,
		Identity:     models.Identity{UserID: userID, Username: username, Avatar: "https://avatars.example/" + username},
	}
}

// connect opens one connection per connID for the user.
func (f *fixture) connect(t *testing.T, userID, username string, connIDs ...string) []*testconn {
	t.Helper()
	conns := make([]*testconn, 0, len(connIDs))
	for _, id := range connIDs {
		c := &testconn{id: id}
		f.hub.Connect(context.Background(), session(userID, username, id), c)
		conns = append(conns, c)
	}
	return conns
}

func resetAll(groups ...[]*testconn) {
	for _, g := range groups {
		for _, c := range g {
			c.reset()
		}
	}
}
