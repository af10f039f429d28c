// Package events publishes domain events for downstream consumers such as
// notification or analytics services.
package events

import (
	"context"
	"time"

	"chathub/internal/models"
)

// Kinds of domain events.
const (
	MessageCreated  = "message.created"
	MessageDeleted  = "message.deleted"
	ReactionUpdated = "reaction.updated"
	PresenceChanged = "presence.changed"
)

// Event is the record written to the broker. Exactly one payload field is set.
type Event struct {
	Kind      string              `json:"kind"`
	Message   *models.Message     `json:"message,omitempty"`
	MessageID string              `json:"message_id,omitempty"`
	Online    []models.OnlineUser `json:"online,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// Key partitions events: everything about one message lands on one partition.
func (e Event) Key() string {
	switch {
	case e.Message != nil:
		return e.Message.ID
	case e.MessageID != "":
		return e.MessageID
	default:
		return e.Kind
	}
}

// Publisher delivers events to the broker.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event; used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error { return nil }
