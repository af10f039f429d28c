package hub

import (
	"context"
	"fmt"

	"chathub/internal/events"
	"chathub/internal/metrics"
	"chathub/internal/models"
)

// Route persists an outgoing message and delivers it. Identity is taken from
// the session only. If persistence fails nobody receives the message and the
// originating connection gets message-failed.
func (h *Hub) Route(ctx context.Context, s models.Session, out models.OutgoingMessage) (*models.Message, error) {
	if out.Empty() {
		return nil, models.ErrEmptyMessage
	}

	msg := &models.Message{
		SenderID:    s.UserID,
		Username:    s.Username,
		Avatar:      s.Avatar,
		Text:        out.Text,
		Image:       out.Image,
		Video:       out.Video,
		Audio:       out.Audio,
		RecipientID: out.RecipientID,
		LocalID:     out.LocalID,
		ReplyTo:     out.ReplyTo,
		Reactions:   []models.Reaction{},
	}
	if out.Text != "" && h.enricher != nil {
		msg.LinkPreview = h.enricher.Enrich(ctx, out.Text)
	}

	if err := h.store.Save(ctx, msg); err != nil {
		h.metrics.MessagesFailed.Inc()
		h.log.Error("Failed to persist message", "conn", s.ConnectionID, "user", s.UserID, "local_id", out.LocalID, "error", err)
		h.sendTo(s.ConnectionID, models.EventMessageFailed, models.MessageFailed{
			LocalID: out.LocalID,
			Error:   "message could not be saved",
		})
		return nil, fmt.Errorf("route message: %w", err)
	}

	scope := metrics.ScopePublic
	if msg.IsPrivate() {
		scope = metrics.ScopePrivate
	}
	h.metrics.MessagesRouted.WithLabelValues(scope).Inc()

	h.deliver(h.audience(msg), models.EventMessage, msg)
	h.publish(events.Event{Kind: events.MessageCreated, Message: msg})
	return msg, nil
}
