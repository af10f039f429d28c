package hub

import (
	"context"
	"fmt"

	"chathub/internal/events"
	"chathub/internal/models"
)

// DeleteMessage removes a message sent by the caller and tells everyone who
// could see it. Foreign or unknown messages yield models.ErrNotFound.
func (h *Hub) DeleteMessage(ctx context.Context, id models.Identity, messageID string) error {
	unlock := h.locks.Lock(messageID)
	defer unlock()

	msg, err := h.store.FindByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if msg.SenderID != id.UserID {
		return fmt.Errorf("delete message %s: %w", messageID, models.ErrNotFound)
	}
	if err := h.store.DeleteByID(ctx, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	h.deliver(h.audience(msg), models.EventMessageDeleted, models.MessageDeleted{ID: messageID})
	h.publish(events.Event{Kind: events.MessageDeleted, MessageID: messageID})
	h.log.Info("Message deleted", "message", messageID, "user", id.UserID)
	return nil
}
