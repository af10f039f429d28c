package models

import "time"

// Message is a persisted chat message. An empty RecipientID marks a public message.
type Message struct {
	ID          string       `json:"id"`
	SenderID    string       `json:"senderId"`
	Username    string       `json:"username"`
	Avatar      string       `json:"avatar"`
	Text        string       `json:"text"`
	Image       string       `json:"image,omitempty"`
	Video       string       `json:"video,omitempty"`
	Audio       string       `json:"audio,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
	RecipientID string       `json:"recipientId,omitempty"`
	LocalID     string       `json:"localId,omitempty"`
	ReplyTo     string       `json:"replyTo,omitempty"`
	LinkPreview *LinkPreview `json:"linkPreview,omitempty"`
	Reactions   []Reaction   `json:"reactions"`
}

// IsPrivate reports whether the message is scoped to a sender/recipient pair.
func (m Message) IsPrivate() bool {
	return m.RecipientID != ""
}

// VisibleTo reports whether userID may see the message.
func (m Message) VisibleTo(userID string) bool {
	if !m.IsPrivate() {
		return true
	}
	return m.SenderID == userID || m.RecipientID == userID
}

// LinkPreview is derived once from the first URL in a message's text.
type LinkPreview struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	URL         string `json:"url"`
}

// Reaction is one (emoji, username) pair. A message never holds the same pair twice.
type Reaction struct {
	Emoji    string `json:"emoji"`
	Username string `json:"username"`
}

// OutgoingMessage is the client's "message" event payload.
type OutgoingMessage struct {
	Text        string `json:"text" validate:"max=4000"`
	Image       string `json:"image" validate:"omitempty,max=2048"`
	Video       string `json:"video" validate:"omitempty,max=2048"`
	Audio       string `json:"audio" validate:"omitempty,max=2048"`
	LocalID     string `json:"localId" validate:"max=128"`
	RecipientID string `json:"recipientId" validate:"omitempty,uuid"`
	ReplyTo     string `json:"replyTo" validate:"max=128"`
}

// Empty reports whether the payload carries neither text nor media.
func (o OutgoingMessage) Empty() bool {
	return o.Text == "" && o.Image == "" && o.Video == "" && o.Audio == ""
}
