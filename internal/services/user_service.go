package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"chathub/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 7 * 24 * time.Hour
	refreshTokenTTL = 30 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	uniqueViolation = "23505"
)

// UserService owns accounts and the tokens that identify them.
type UserService struct {
	pool   *pgxpool.Pool
	secret []byte
	now    func() time.Time
}

func NewUserService(pool *pgxpool.Pool, secret string) *UserService {
	return &UserService{pool: pool, secret: []byte(secret), now: time.Now}
}

// DefaultAvatar is used when a user registers without one.
func DefaultAvatar(username string) string {
	return "https://api.dicebear.com/7.x/identicon/svg?seed=" + url.QueryEscape(username)
}

func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	avatar := req.Avatar
	if avatar == "" {
		avatar = DefaultAvatar(req.Username)
	}

	var user models.User
	query := `INSERT INTO users (username, password_hash, avatar) VALUES ($1, $2, $3) RETURNING id::text, username, avatar, created_at`
	err = s.pool.QueryRow(ctx, query, req.Username, string(hash), avatar).Scan(&user.ID, &user.Username, &user.Avatar, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, models.ErrUserExists
		}
		return nil, fmt.Errorf("register: %w: %v", models.ErrPersistence, err)
	}

	return s.issue(user)
}

func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	var user models.User
	query := `SELECT id::text, username, avatar, password_hash, created_at FROM users WHERE username = $1`
	err := s.pool.QueryRow(ctx, query, req.Username).Scan(&user.ID, &user.Username, &user.Avatar, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w: %v", models.ErrPersistence, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}

	return s.issue(user)
}

// Refresh trades a valid refresh token for a new token pair.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error) {
	id, err := s.verify(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	user, err := s.GetProfile(ctx, id.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	return s.issue(*user)
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	query := `SELECT id::text, username, avatar, created_at FROM users WHERE id::text = $1`
	err := s.pool.QueryRow(ctx, query, userID).Scan(&user.ID, &user.Username, &user.Avatar, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w: %v", models.ErrPersistence, err)
	}
	return &user, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT id::text, username, avatar, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w: %v", models.ErrPersistence, err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Avatar, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("list users: %w: %v", models.ErrPersistence, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w: %v", models.ErrPersistence, err)
	}
	return users, nil
}

func (s *UserService) issue(user models.User) (*models.AuthResponse, error) {
	token, err := s.GenerateJWT(user)
	if err != nil {
		return nil, err
	}
	refresh, err := s.GenerateRefreshToken(user)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Token: token, RefreshToken: refresh, User: user}, nil
}

func (s *UserService) GenerateJWT(user models.User) (string, error) {
	return s.sign(user, tokenTypeAccess, accessTokenTTL)
}

func (s *UserService) GenerateRefreshToken(user models.User) (string, error) {
	return s.sign(user, tokenTypeRefresh, refreshTokenTTL)
}

func (s *UserService) sign(user models.User, typ string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"avatar":   user.Avatar,
		"typ":      typ,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks an access token and returns the identity it carries. Any
// failure is models.ErrUnauthorized.
func (s *UserService) Verify(token string) (models.Identity, error) {
	return s.verify(token, tokenTypeAccess)
}

func (s *UserService) verify(tokenString, typ string) (models.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return models.Identity{}, models.ErrUnauthorized
	}
	if t, _ := claims["typ"].(string); t != typ {
		return models.Identity{}, fmt.Errorf("%w: expected %s token", models.ErrUnauthorized, typ)
	}
	userID, _ := claims["user_id"].(string)
	username, _ := claims["username"].(string)
	if userID == "" || username == "" {
		return models.Identity{}, fmt.Errorf("%w: invalid token claims", models.ErrUnauthorized)
	}
	avatar, _ := claims["avatar"].(string)
	return models.Identity{UserID: userID, Username: username, Avatar: avatar}, nil
}
