package repository

import (
	"context"
	"errors"
	"fmt"

	"vesper/internal/domain"
	apperrors "vesper/pkg/errors"
	"vesper/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository interface {
	// Create inserts the message and returns it joined with the sender's display fields.
	Create(ctx context.Context, message *domain.Message) (*domain.MessageView, error)
	// ListByChat returns the chat history oldest first. limit > 0 keeps only the newest limit messages.
	ListByChat(ctx context.Context, chatID string, limit int) ([]*domain.MessageView, error)
	// ListByParticipant returns every message the user sent or received, newest first.
	ListByParticipant(ctx context.Context, userID int64) ([]*domain.ParticipantMessage, error)
	CountUnread(ctx context.Context, chatID string, userID int64) (int, error)
	CountUnreadByChat(ctx context.Context, userID int64) (map[string]int, error)
	MarkRead(ctx context.Context, chatID string, userID int64) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

const messageViewColumns = `
	m.id, m.sender_id, m.receiver_id, m.chat_id, m.content, m.message_type,
	m.attachment_url, m.attachment_name, m.read, m.created_at,
	s.display_name, s.avatar_url, s.username`

func scanMessageView(row pgx.Row) (*domain.MessageView, error) {
	v := &domain.MessageView{}
	err := row.Scan(
		&v.ID, &v.SenderID, &v.ReceiverID, &v.ChatID, &v.Content, &v.MessageType,
		&v.AttachmentURL, &v.AttachmentName, &v.Read, &v.CreatedAt,
		&v.SenderName, &v.SenderAvatar, &v.SenderUsername,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) (*domain.MessageView, error) {
	query := `
		WITH m AS (
			INSERT INTO messages (sender_id, receiver_id, chat_id, content, message_type, attachment_url, attachment_name)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, sender_id, receiver_id, chat_id, content, message_type, attachment_url, attachment_name, read, created_at
		)
		SELECT ` + messageViewColumns + `
		FROM m
		JOIN users s ON s.id = m.sender_id
	`

	view, err := scanMessageView(r.db.QueryRow(ctx, query,
		message.SenderID, message.ReceiverID, message.ChatID, message.Content,
		message.MessageType, message.AttachmentURL, message.AttachmentName,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		// 23503 = foreign_key_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, apperrors.ErrUserNotFound
		}
		r.log.Error("Failed to create message", "error", err, "chat_id", message.ChatID)
		return nil, fmt.Errorf("%w: create message: %v", apperrors.ErrStorage, err)
	}

	*message = view.Message
	return view, nil
}

func (r *messageRepository) ListByChat(ctx context.Context, chatID string, limit int) ([]*domain.MessageView, error) {
	query := `
		SELECT * FROM (
			SELECT ` + messageViewColumns + `
			FROM messages m
			JOIN users s ON s.id = m.sender_id
			WHERE m.chat_id = $1
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT $2
		) newest
		ORDER BY created_at ASC, id ASC
	`

	// LIMIT NULL means no limit
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := r.db.Query(ctx, query, chatID, lim)
	if err != nil {
		r.log.Error("Failed to get chat history", "error", err, "chat_id", chatID)
		return nil, fmt.Errorf("%w: list messages: %v", apperrors.ErrStorage, err)
	}
	defer rows.Close()

	messages := make([]*domain.MessageView, 0)
	for rows.Next() {
		v, err := scanMessageView(rows)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, fmt.Errorf("%w: scan message: %v", apperrors.ErrStorage, err)
		}
		messages = append(messages, v)
	}
	return messages, rows.Err()
}

func (r *messageRepository) ListByParticipant(ctx context.Context, userID int64) ([]*domain.ParticipantMessage, error) {
	query := `
		SELECT m.id, m.sender_id, m.receiver_id, m.chat_id, m.content, m.message_type,
		       m.attachment_url, m.attachment_name, m.read, m.created_at,
		       s.id, s.username, s.display_name, s.avatar_url,
		       rc.id, rc.username, rc.display_name, rc.avatar_url
		FROM messages m
		JOIN users s ON s.id = m.sender_id
		JOIN users rc ON rc.id = m.receiver_id
		WHERE m.sender_id = $1 OR m.receiver_id = $1
		ORDER BY m.created_at DESC, m.id DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("Failed to get participant messages", "error", err, "user_id", userID)
		return nil, fmt.Errorf("%w: list participant messages: %v", apperrors.ErrStorage, err)
	}
	defer rows.Close()

	messages := make([]*domain.ParticipantMessage, 0)
	for rows.Next() {
		pm := &domain.ParticipantMessage{}
		err := rows.Scan(
			&pm.ID, &pm.SenderID, &pm.ReceiverID, &pm.ChatID, &pm.Content, &pm.MessageType,
			&pm.AttachmentURL, &pm.AttachmentName, &pm.Read, &pm.CreatedAt,
			&pm.Sender.ID, &pm.Sender.Username, &pm.Sender.DisplayName, &pm.Sender.AvatarURL,
			&pm.Receiver.ID, &pm.Receiver.Username, &pm.Receiver.DisplayName, &pm.Receiver.AvatarURL,
		)
		if err != nil {
			r.log.Error("Failed to scan participant message", "error", err)
			return nil, fmt.Errorf("%w: scan message: %v", apperrors.ErrStorage, err)
		}
		messages = append(messages, pm)
	}
	return messages, rows.Err()
}

func (r *messageRepository) CountUnread(ctx context.Context, chatID string, userID int64) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE chat_id = $1 AND receiver_id = $2 AND read = FALSE`

	var count int
	if err := r.db.QueryRow(ctx, query, chatID, userID).Scan(&count); err != nil {
		r.log.Error("Failed to count unread messages", "error", err, "chat_id", chatID)
		return 0, fmt.Errorf("%w: count unread: %v", apperrors.ErrStorage, err)
	}
	return count, nil
}

// CountUnreadByChat is CountUnread for every chat of the user in one round trip.
// Chats without unread messages are absent from the map.
func (r *messageRepository) CountUnreadByChat(ctx context.Context, userID int64) (map[string]int, error) {
	query := `
		SELECT chat_id, COUNT(*)
		FROM messages
		WHERE receiver_id = $1 AND read = FALSE
		GROUP BY chat_id
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("Failed to count unread messages by chat", "error", err, "user_id", userID)
		return nil, fmt.Errorf("%w: count unread by chat: %v", apperrors.ErrStorage, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var chatID string
		var count int
		if err := rows.Scan(&chatID, &count); err != nil {
			return nil, fmt.Errorf("%w: scan unread count: %v", apperrors.ErrStorage, err)
		}
		counts[chatID] = count
	}
	return counts, rows.Err()
}

func (r *messageRepository) MarkRead(ctx context.Context, chatID string, userID int64) (int64, error) {
	query := `UPDATE messages SET read = TRUE WHERE chat_id = $1 AND receiver_id = $2 AND read = FALSE`

	tag, err := r.db.Exec(ctx, query, chatID, userID)
	if err != nil {
		r.log.Error("Failed to mark messages read", "error", err, "chat_id", chatID)
		return 0, fmt.Errorf("%w: mark read: %v", apperrors.ErrStorage, err)
	}
	return tag.RowsAffected(), nil
}

func (r *messageRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
		r.log.Error("Failed to count messages", "error", err)
		return 0, fmt.Errorf("%w: count messages: %v", apperrors.ErrStorage, err)
	}
	return count, nil
}
