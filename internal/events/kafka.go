package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes events to one topic per concern.
type KafkaPublisher struct {
	writer *kafka.Writer
	prefix string
	log    *slog.Logger
}

func NewKafkaPublisher(brokers []string, topicPrefix string, log *slog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.Hash{},
		// Low latency: no batching, leader ack only
		BatchSize:              1,
		BatchTimeout:           time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: writer, prefix: topicPrefix, log: log}
}

// Topic maps an event kind to its topic, e.g. "chat-messages".
func Topic(prefix, kind string) string {
	var name string
	switch {
	case strings.HasPrefix(kind, "message."):
		name = "messages"
	case strings.HasPrefix(kind, "reaction."):
		name = "reactions"
	case strings.HasPrefix(kind, "presence."):
		name = "presence"
	default:
		name = "events"
	}
	if prefix == "" {
		return name
	}
	return prefix + "-" + name
}

func (k *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", e.Kind, err)
	}
	topic := Topic(k.prefix, e.Kind)
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(e.Key()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(e.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("write %s to %s: %w", e.Kind, topic, err)
	}
	k.log.Debug("Event published", "kind", e.Kind, "topic", topic)
	return nil
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}
