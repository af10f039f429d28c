package validator

import (
	"strings"
	"testing"

	"chathub/internal/models"

	"github.com/google/go-cmp/cmp"
)

func TestValidator_ValidateStruct(t *testing.T) {
	v := New()

	tests := []struct {
		name   string
		input  interface{}
		fields []string
	}{
		{
			name:  "PublicMessage",
			input: models.OutgoingMessage{Text: "hi"},
		},
		{
			name:  "PrivateMessage",
			input: models.OutgoingMessage{Text: "hi", RecipientID: "8b5e2a57-6f43-4a38-9d55-3f7f2b0f4b1e"},
		},
		{
			name:   "RecipientNotUUID",
			input:  models.OutgoingMessage{Text: "hi", RecipientID: "bob"},
			fields: []string{"recipientId"},
		},
		{
			name:   "TextTooLong",
			input:  models.OutgoingMessage{Text: strings.Repeat("a", 4001)},
			fields: []string{"text"},
		},
		{
			name:   "ReactionMissingFields",
			input:  models.ToggleReactionRequest{},
			fields: []string{"messageId", "emoji"},
		},
		{
			name:  "ReactionEmojiCountsRunes",
			input: models.ToggleReactionRequest{MessageID: "local-1", Emoji: strings.Repeat("👍", 32)},
		},
		{
			name:   "DeleteNeedsUUID",
			input:  models.DeleteMessageRequest{ID: "local-1"},
			fields: []string{"id"},
		},
		{
			name:   "RegisterShortPassword",
			input:  models.RegisterRequest{Username: "ann", Password: "123"},
			fields: []string{"password"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.ValidateStruct(tt.input)
			var got []string
			for _, e := range errs {
				got = append(got, e.Field)
			}
			if diff := cmp.Diff(tt.fields, got); diff != "" {
				t.Errorf("invalid fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidator_Check(t *testing.T) {
	v := New()
	if err := v.Check(models.ToggleReactionRequest{MessageID: "x", Emoji: "🔥"}); err != nil {
		t.Errorf("Check() = %v, want nil", err)
	}
	err := v.Check(models.ToggleReactionRequest{MessageID: "x"})
	if err == nil || !strings.Contains(err.Error(), "emoji: is required") {
		t.Errorf("Check() = %v, want emoji is required", err)
	}
}
