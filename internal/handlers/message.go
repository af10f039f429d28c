package handlers

import (
	"context"
	"errors"
	"fmt"

	"chathub/internal/models"
	"chathub/internal/utils"
)

// handleMessage dispatches one inbound frame. Malformed or invalid events are
// answered with an error event and the connection stays open.
func (w *WSHandler) handleMessage(ctx context.Context, s models.Session, cl *client, frame []byte) {
	env, err := utils.DecodeEnvelope(frame)
	if err != nil {
		w.reject(cl, "malformed event")
		return
	}

	switch env.Event {
	case models.EventMessage:
		var out models.OutgoingMessage
		if !w.decode(cl, env, &out) {
			return
		}
		w.handleChat(ctx, s, cl, out)
	case models.EventTyping:
		var req models.TypingRequest
		if !w.decode(cl, env, &req) {
			return
		}
		w.hub.RelayTyping(s, req.RecipientID)
	case models.EventToggleReaction:
		var req models.ToggleReactionRequest
		if !w.decode(cl, env, &req) {
			return
		}
		_, err := w.hub.ToggleReaction(ctx, s.Identity, req.MessageID, req.Emoji)
		w.logOutcome(s, env.Event, err)
	case models.EventDeleteMessage:
		var req models.DeleteMessageRequest
		if !w.decode(cl, env, &req) {
			return
		}
		w.logOutcome(s, env.Event, w.hub.DeleteMessage(ctx, s.Identity, req.ID))
	default:
		w.reject(cl, fmt.Sprintf("unknown event %q", env.Event))
	}
}

func (w *WSHandler) handleChat(ctx context.Context, s models.Session, cl *client, out models.OutgoingMessage) {
	_, err := w.hub.Route(ctx, s, out)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrEmptyMessage):
		w.reject(cl, err.Error())
	default:
		// the hub has already answered with message-failed
		w.log.Debug("Message not routed", "conn", s.ConnectionID, "error", err)
	}
}

func (w *WSHandler) decode(cl *client, env models.Envelope, v any) bool {
	if err := utils.DecodeData(env, v); err != nil {
		w.reject(cl, "malformed "+env.Event+" payload")
		return false
	}
	if err := w.validate.Check(v); err != nil {
		w.reject(cl, err.Error())
		return false
	}
	return true
}

func (w *WSHandler) logOutcome(s models.Session, event string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, models.ErrNotFound):
		w.log.Debug("Ignoring event for unknown message", "conn", s.ConnectionID, "event", event, "error", err)
	default:
		utils.LogError(w.log, err, "Event failed", "conn", s.ConnectionID, "event", event)
	}
}

func (w *WSHandler) reject(cl *client, reason string) {
	frame, err := utils.EncodeEnvelope(models.EventError, models.ErrorNotice{Error: reason})
	if err != nil {
		utils.LogError(w.log, err, "Failed to encode error event")
		return
	}
	if err := cl.Send(frame); err != nil {
		w.log.Debug("Could not report client error", "conn", cl.ID(), "error", err)
	}
}
