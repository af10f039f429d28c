package hub

import "chathub/internal/models"

// RelayTyping forwards a typing signal to the recipient's connections, or to
// everyone else when recipientID is empty. The sender never gets it back.
func (h *Hub) RelayTyping(s models.Session, recipientID string) {
	var targets []Conn
	switch {
	case recipientID == s.UserID:
		return
	case recipientID != "":
		targets = h.registry.connsOf(recipientID)
	default:
		targets = h.registry.connsExcept(s.UserID)
	}
	h.deliver(targets, models.EventUserTyping, models.TypingNotice{
		Username: s.Username,
		Avatar:   s.Avatar,
	})
}
