package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chathub/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChatService is the message store on PostgreSQL.
type ChatService struct {
	pool *pgxpool.Pool
}

func NewChatService(pool *pgxpool.Pool) *ChatService {
	return &ChatService{pool: pool}
}

const messageColumns = `id::text, sender_id::text, username, avatar, text, image, video, audio,
	COALESCE(recipient_id::text, ''), local_id, reply_to, link_preview, reactions, created_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var (
		msg       models.Message
		preview   []byte
		reactions []byte
	)
	err := row.Scan(&msg.ID, &msg.SenderID, &msg.Username, &msg.Avatar, &msg.Text, &msg.Image, &msg.Video, &msg.Audio,
		&msg.RecipientID, &msg.LocalID, &msg.ReplyTo, &preview, &reactions, &msg.Timestamp)
	if err != nil {
		return nil, err
	}
	if len(preview) > 0 && string(preview) != "null" {
		msg.LinkPreview = &models.LinkPreview{}
		if err := json.Unmarshal(preview, msg.LinkPreview); err != nil {
			return nil, fmt.Errorf("decode link_preview: %w", err)
		}
	}
	msg.Reactions = []models.Reaction{}
	if len(reactions) > 0 {
		if err := json.Unmarshal(reactions, &msg.Reactions); err != nil {
			return nil, fmt.Errorf("decode reactions: %w", err)
		}
	}
	return &msg, nil
}

func storeErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Save inserts msg and fills in the server-assigned id and timestamp.
func (s *ChatService) Save(ctx context.Context, msg *models.Message) error {
	var preview []byte
	if msg.LinkPreview != nil {
		var err error
		if preview, err = json.Marshal(msg.LinkPreview); err != nil {
			return storeErr("save message", err)
		}
	}
	if msg.Reactions == nil {
		msg.Reactions = []models.Reaction{}
	}
	reactions, err := json.Marshal(msg.Reactions)
	if err != nil {
		return storeErr("save message", err)
	}

	query := `INSERT INTO messages (sender_id, username, avatar, text, image, video, audio, recipient_id, local_id, reply_to, link_preview, reactions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id::text, created_at`
	err = s.pool.QueryRow(ctx, query,
		msg.SenderID, msg.Username, msg.Avatar, msg.Text, msg.Image, msg.Video, msg.Audio,
		nullable(msg.RecipientID), msg.LocalID, msg.ReplyTo, preview, reactions,
	).Scan(&msg.ID, &msg.Timestamp)
	if err != nil {
		return storeErr("save message", err)
	}
	return nil
}

// FindVisible returns public messages and private messages involving userID,
// newest first.
func (s *ChatService) FindVisible(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE recipient_id IS NULL OR sender_id = $1 OR recipient_id = $1
		ORDER BY created_at DESC LIMIT $2`
	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, storeErr("find visible", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, storeErr("find visible", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("find visible", err)
	}
	return messages, nil
}

func (s *ChatService) FindByID(ctx context.Context, id string) (*models.Message, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("find message %q: %w", id, models.ErrNotFound)
	}
	msg, err := scanMessage(s.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if err != nil {
		return nil, storeErr("find message", err)
	}
	return msg, nil
}

// FindByLocalID returns the message carrying the client token among those
// visible to userID. The caller's own messages win over others, then the
// newest.
func (s *ChatService) FindByLocalID(ctx context.Context, userID, localID string) (*models.Message, error) {
	if localID == "" {
		return nil, fmt.Errorf("find by local id: %w", models.ErrNotFound)
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("find by local id: %w", models.ErrNotFound)
	}
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE local_id = $1 AND (recipient_id IS NULL OR sender_id = $2 OR recipient_id = $2)
		ORDER BY (sender_id = $2) DESC, created_at DESC LIMIT 1`
	msg, err := scanMessage(s.pool.QueryRow(ctx, query, localID, userID))
	if err != nil {
		return nil, storeErr("find by local id", err)
	}
	return msg, nil
}

func (s *ChatService) DeleteByID(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("delete message %q: %w", id, models.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return storeErr("delete message", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete message: %w", models.ErrNotFound)
	}
	return nil
}

func (s *ChatService) UpdateReactions(ctx context.Context, id string, reactions []models.Reaction) error {
	if reactions == nil {
		reactions = []models.Reaction{}
	}
	data, err := json.Marshal(reactions)
	if err != nil {
		return storeErr("update reactions", err)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE messages SET reactions = $2 WHERE id = $1`, id, data)
	if err != nil {
		return storeErr("update reactions", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update reactions: %w", models.ErrNotFound)
	}
	return nil
}
