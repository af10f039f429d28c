package hub

import (
	"chathub/internal/models"
	"chathub/internal/utils"
)

// deliver encodes the event once and queues it on every target. A failing
// target is logged and skipped.
func (h *Hub) deliver(targets []Conn, event string, data any) {
	if len(targets) == 0 {
		return
	}
	frame, err := utils.EncodeEnvelope(event, data)
	if err != nil {
		utils.LogError(h.log, err, "Failed to encode event", "event", event)
		return
	}
	for _, c := range targets {
		if err := c.Send(frame); err != nil {
			h.metrics.DeliveryFailed.WithLabelValues(event).Inc()
			h.log.Warn("Delivery failed", "conn", c.ID(), "event", event, "error", err)
		}
	}
}

// sendTo delivers to a single connection if it is still registered.
func (h *Hub) sendTo(connID, event string, data any) {
	if c, ok := h.registry.conn(connID); ok {
		h.deliver([]Conn{c}, event, data)
	}
}

// audience is every live connection allowed to see msg.
func (h *Hub) audience(msg *models.Message) []Conn {
	if msg.IsPrivate() {
		return h.registry.connsOf(msg.SenderID, msg.RecipientID)
	}
	return h.registry.all()
}
