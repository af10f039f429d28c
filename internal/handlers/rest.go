package handlers

import (
	"context"
	"errors"
	"time"

	"chathub/internal/models"
	"chathub/internal/validator"

	"github.com/gofiber/fiber/v2"
)

const maxHistoryLimit = 200

// History reads the messages visible to a user, newest first.
type History interface {
	FindVisible(ctx context.Context, userID string, limit int) ([]models.Message, error)
}

type userStatus struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
	Online    bool      `json:"online"`
}

// UsersHandler lists every user with their live presence.
func UsersHandler(accounts Accounts, h ChatHub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		users, err := accounts.ListUsers(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch users"})
		}

		resp := make([]userStatus, 0, len(users))
		for _, u := range users {
			resp = append(resp, userStatus{
				ID:        u.ID,
				Username:  u.Username,
				Avatar:    u.Avatar,
				CreatedAt: u.CreatedAt,
				Online:    h.IsOnline(u.ID),
			})
		}
		return c.JSON(resp)
	}
}

// MessagesHandler returns the caller's visible history, oldest first.
func MessagesHandler(history History, defaultLimit int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := identityFrom(c)
		if !ok {
			return fiber.ErrUnauthorized
		}
		limit := c.QueryInt("limit", defaultLimit)
		if limit <= 0 {
			limit = defaultLimit
		}
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}

		msgs, err := history.FindVisible(c.Context(), id.UserID, limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch messages"})
		}
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}
		if msgs == nil {
			msgs = []models.Message{}
		}
		return c.JSON(msgs)
	}
}

// ReactHandler toggles the caller's reaction through the hub, which also
// broadcasts the update.
func ReactHandler(h ChatHub, v *validator.Validator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := identityFrom(c)
		if !ok {
			return fiber.ErrUnauthorized
		}
		var body struct {
			Emoji string `json:"emoji" validate:"required,max=32"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}
		if errs := v.ValidateStruct(body); errs != nil {
			return invalidRequest(c, errs)
		}

		msg, err := h.ToggleReaction(c.Context(), id, c.Params("id"), body.Emoji)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "message not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to toggle reaction"})
		}
		return c.JSON(msg)
	}
}
