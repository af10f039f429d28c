package handlers

import (
	"context"
	"errors"
	"log/slog"

	"chathub/internal/models"
	"chathub/internal/validator"

	"github.com/gofiber/fiber/v2"
)

// Accounts is the user service as seen by the REST handlers.
type Accounts interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error)
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

func invalidRequest(c *fiber.Ctx, errs []validator.ValidationError) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request", "errors": errs})
}

// RegisterHandler creates an account and signs the user in.
func RegisterHandler(accounts Accounts, v *validator.Validator, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}
		if errs := v.ValidateStruct(req); errs != nil {
			return invalidRequest(c, errs)
		}

		res, err := accounts.Register(c.Context(), req)
		if err != nil {
			if errors.Is(err, models.ErrUserExists) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "username already exists"})
			}
			log.Error("Register failed", "username", req.Username, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to register"})
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

func LoginHandler(accounts Accounts, v *validator.Validator, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}
		if errs := v.ValidateStruct(req); errs != nil {
			return invalidRequest(c, errs)
		}

		res, err := accounts.Login(c.Context(), req)
		if err != nil {
			if errors.Is(err, models.ErrInvalidCredentials) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
			}
			log.Error("Login failed", "username", req.Username, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to log in"})
		}
		return c.JSON(res)
	}
}

// RefreshHandler exchanges a refresh token for a new token pair.
func RefreshHandler(accounts Accounts) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}
		if body.RefreshToken == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "refresh_token required"})
		}

		res, err := accounts.Refresh(c.Context(), body.RefreshToken)
		if err != nil {
			if errors.Is(err, models.ErrUnauthorized) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid refresh token"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to refresh token"})
		}
		return c.JSON(res)
	}
}

// MeHandler returns the authenticated user's profile
func MeHandler(accounts Accounts) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := identityFrom(c)
		if !ok {
			return fiber.ErrUnauthorized
		}
		u, err := accounts.GetProfile(c.Context(), id.UserID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(u)
	}
}
