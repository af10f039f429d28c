package models

import (
	"encoding/json"
	"time"
)

// Server to client events.
const (
	EventLastMessages   = "last-messages"
	EventOnlineUsers    = "online-users"
	EventUserJoined     = "user-joined"
	EventUserLeft       = "user-left"
	EventMessage        = "message"
	EventMessageFailed  = "message-failed"
	EventUserTyping     = "user-typing"
	EventReactionUpdate = "reaction-update"
	EventMessageDeleted = "message-deleted"
	EventError          = "error"
)

// Client to server events. "message" is shared with the server side.
const (
	EventTyping         = "typing"
	EventToggleReaction = "toggle-reaction"
	EventDeleteMessage  = "delete-message"
)

// Envelope frames every WebSocket payload in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundEnvelope is the server side of Envelope; Data is marshalled lazily.
type OutboundEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type PresenceNotice struct {
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar"`
	Timestamp time.Time `json:"timestamp"`
}

type TypingNotice struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type MessageFailed struct {
	LocalID string `json:"localId,omitempty"`
	Error   string `json:"error"`
}

type MessageDeleted struct {
	ID string `json:"id"`
}

type ErrorNotice struct {
	Error string `json:"error"`
}

type TypingRequest struct {
	RecipientID string `json:"recipientId" validate:"omitempty,uuid"`
}

type ToggleReactionRequest struct {
	MessageID string `json:"messageId" validate:"required,max=128"`
	Emoji     string `json:"emoji" validate:"required,max=32"`
}

type DeleteMessageRequest struct {
	ID string `json:"id" validate:"required,uuid"`
}
