package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"chathub/internal/hub"
	"chathub/internal/models"
	"chathub/internal/utils"
)

type testhub struct {
	mu       sync.Mutex
	routed   []models.OutgoingMessage
	typing   []string
	toggles  []string
	deletes  []string
	online   map[string]bool
	routeErr error
	toggle   func(id models.Identity, ref, emoji string) (*models.Message, error)
	del      func(id models.Identity, messageID string) error
}

func (h *testhub) Connect(context.Context, models.Session, hub.Conn) {}

func (h *testhub) Disconnect(string) {}

func (h *testhub) Route(_ context.Context, _ models.Session, out models.OutgoingMessage) (*models.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if out.Empty() {
		return nil, models.ErrEmptyMessage
	}
	if h.routeErr != nil {
		return nil, h.routeErr
	}
	h.routed = append(h.routed, out)
	return &models.Message{ID: "m1", Text: out.Text}, nil
}

func (h *testhub) RelayTyping(_ models.Session, recipientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.typing = append(h.typing, recipientID)
}

func (h *testhub) ToggleReaction(_ context.Context, id models.Identity, ref, emoji string) (*models.Message, error) {
	h.mu.Lock()
	h.toggles = append(h.toggles, ref+" "+emoji)
	h.mu.Unlock()
	if h.toggle != nil {
		return h.toggle(id, ref, emoji)
	}
	return nil, models.ErrNotFound
}

func (h *testhub) DeleteMessage(_ context.Context, id models.Identity, messageID string) error {
	h.mu.Lock()
	h.deletes = append(h.deletes, messageID)
	h.mu.Unlock()
	if h.del != nil {
		return h.del(id, messageID)
	}
	return nil
}

func (h *testhub) IsOnline(userID string) bool {
	return h.online[userID]
}

type testverifier map[string]models.Identity

func (v testverifier) Verify(token string) (models.Identity, error) {
	id, ok := v[token]
	if !ok {
		return models.Identity{}, models.ErrUnauthorized
	}
	return id, nil
}

// drain returns every frame queued on the client.
func drain(t *testing.T, cl *client) []models.Envelope {
	t.Helper()
	var out []models.Envelope
	for {
		select {
		case frame := <-cl.send:
			env, err := utils.DecodeEnvelope(frame)
			if err != nil {
				t.Fatalf("queued frame is not an envelope: %v", err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func errorText(t *testing.T, env models.Envelope) string {
	t.Helper()
	var notice models.ErrorNotice
	if err := json.Unmarshal(env.Data, &notice); err != nil {
		t.Fatalf("decode error notice: %v", err)
	}
	return notice.Error
}
