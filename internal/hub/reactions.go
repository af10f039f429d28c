package hub

import (
	"context"
	"errors"
	"fmt"

	"chathub/internal/events"
	"chathub/internal/metrics"
	"chathub/internal/models"

	"github.com/google/uuid"
)

// Toggle removes r from reactions if present and appends it otherwise. The
// input slice is not modified and the order of other reactions is kept.
func Toggle(reactions []models.Reaction, r models.Reaction) (out []models.Reaction, added bool) {
	out = make([]models.Reaction, 0, len(reactions)+1)
	for _, existing := range reactions {
		if existing == r {
			continue
		}
		out = append(out, existing)
	}
	if len(out) == len(reactions) {
		out = append(out, r)
		return out, true
	}
	return out, false
}

// ToggleReaction flips the caller's emoji on the message referenced by ref,
// a server ID or a client localId. Unresolvable or invisible messages yield
// models.ErrNotFound and nothing is broadcast.
func (h *Hub) ToggleReaction(ctx context.Context, id models.Identity, ref, emoji string) (*models.Message, error) {
	target, err := h.resolve(ctx, id, ref)
	if err != nil {
		return nil, err
	}

	unlock := h.locks.Lock(target.ID)
	defer unlock()

	// re-read under the lock so concurrent toggles see each other
	msg, err := h.store.FindByID(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("toggle reaction: %w", err)
	}

	reactions, added := Toggle(msg.Reactions, models.Reaction{Emoji: emoji, Username: id.Username})
	if err := h.store.UpdateReactions(ctx, msg.ID, reactions); err != nil {
		h.log.Error("Failed to persist reactions", "message", msg.ID, "user", id.UserID, "error", err)
		return nil, fmt.Errorf("toggle reaction: %w", err)
	}
	msg.Reactions = reactions

	action := metrics.ReactionRemoved
	if added {
		action = metrics.ReactionAdded
	}
	h.metrics.ReactionToggles.WithLabelValues(action).Inc()

	h.deliver(h.audience(msg), models.EventReactionUpdate, msg)
	h.publish(events.Event{Kind: events.ReactionUpdated, Message: msg})
	return msg, nil
}

// resolve looks ref up by server ID first and falls back to localId.
func (h *Hub) resolve(ctx context.Context, id models.Identity, ref string) (*models.Message, error) {
	var msg *models.Message
	if _, perr := uuid.Parse(ref); perr == nil {
		m, err := h.store.FindByID(ctx, ref)
		switch {
		case err == nil:
			msg = m
		case !errors.Is(err, models.ErrNotFound):
			return nil, fmt.Errorf("resolve %s: %w", ref, err)
		}
	}
	if msg == nil {
		m, err := h.store.FindByLocalID(ctx, id.UserID, ref)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", ref, err)
		}
		msg = m
	}
	if !msg.VisibleTo(id.UserID) {
		return nil, fmt.Errorf("resolve %s: %w", ref, models.ErrNotFound)
	}
	return msg, nil
}
