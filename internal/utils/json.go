package utils

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"chathub/internal/models"
)

// SafeJSONParse parses JSON safely
func SafeJSONParse(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// DecodeEnvelope parses one inbound frame.
func DecodeEnvelope(data []byte) (models.Envelope, error) {
	var env models.Envelope
	if err := SafeJSONParse(data, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return env, fmt.Errorf("decode envelope: missing event")
	}
	return env, nil
}

// DecodeData unmarshals an envelope payload. A missing payload leaves v untouched.
func DecodeData(env models.Envelope, v interface{}) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Event, err)
	}
	return nil
}

// EncodeEnvelope renders an outbound frame.
func EncodeEnvelope(event string, data interface{}) ([]byte, error) {
	return json.Marshal(models.OutboundEnvelope{Event: event, Data: data})
}

// LogError logs an error if it's not nil
func LogError(log *slog.Logger, err error, context string, args ...any) {
	if err == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}
	log.Error(context, append(args, "error", err)...)
}
