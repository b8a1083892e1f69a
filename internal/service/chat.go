package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"vesper/internal/domain"
	"vesper/internal/metrics"
	"vesper/internal/repository"
	apperrors "vesper/pkg/errors"
	"vesper/pkg/logger"
)

const defaultFileContent = "File shared"

// PresenceChecker reports whether a user has an open realtime connection.
type PresenceChecker interface {
	IsOnline(userID int64) bool
}

type ChatService interface {
	// Append stores a message and returns it joined with the sender's display fields.
	Append(ctx context.Context, input AppendMessageInput) (*domain.MessageView, error)
	// History returns a chat oldest first. limit > 0 keeps the newest limit messages.
	History(ctx context.Context, chatID string, userID int64, limit int) ([]*domain.MessageView, error)
	UnreadCount(ctx context.Context, chatID string, userID int64) (int, error)
	MarkRead(ctx context.Context, chatID string, userID int64) (int64, error)
	// ListChats returns one summary per chat the user takes part in, most recent first.
	ListChats(ctx context.Context, userID int64) ([]*domain.ChatSummary, error)
}

type AppendMessageInput struct {
	SenderID    int64
	ReceiverID  int64
	ChatID      string // derived from the participants when empty
	Content     string
	MessageType string
	Attachment  *domain.Attachment
}

type chatService struct {
	messageRepo    repository.MessageRepository
	activity       ActivityService
	presence       PresenceChecker
	persistTimeout time.Duration
	log            logger.Logger
}

func NewChatService(messageRepo repository.MessageRepository, activity ActivityService, presence PresenceChecker, persistTimeout time.Duration, log logger.Logger) ChatService {
	return &chatService{
		messageRepo:    messageRepo,
		activity:       activity,
		presence:       presence,
		persistTimeout: persistTimeout,
		log:            log,
	}
}

func (s *chatService) Append(ctx context.Context, input AppendMessageInput) (*domain.MessageView, error) {
	message, err := s.buildMessage(input)
	if err != nil {
		return nil, err
	}

	persistCtx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()

	stored, err := s.messageRepo.Create(persistCtx, message)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, err
	}
	if err != nil {
		metrics.MessagePersistFailuresTotal.Inc()
		s.log.Error("Failed to append message", "error", err, "chat_id", message.ChatID, "sender_id", message.SenderID)
		if !errors.Is(err, apperrors.ErrStorage) {
			err = errors.Join(apperrors.ErrStorage, err)
		}
		return nil, err
	}
	metrics.MessagesPersistedTotal.WithLabelValues(stored.MessageType).Inc()

	action := domain.ActionSentMessage
	if stored.MessageType == domain.MessageTypeFile {
		action = domain.ActionFileUploaded
	}
	// off the delivery path; outlives the caller once the insert has happened
	activityCtx := context.WithoutCancel(ctx)
	go func() {
		activityCtx, cancel := context.WithTimeout(activityCtx, s.persistTimeout)
		defer cancel()
		recordBestEffort(activityCtx, s.activity, s.log, stored.SenderID, action)
	}()

	return stored, nil
}

func (s *chatService) buildMessage(input AppendMessageInput) (*domain.Message, error) {
	if input.SenderID <= 0 || input.ReceiverID <= 0 {
		return nil, apperrors.BadRequest("sender and receiver are required")
	}

	kind := input.MessageType
	if kind == "" {
		kind = domain.MessageTypeText
	}
	if !domain.IsValidMessageType(kind) {
		return nil, apperrors.BadRequest("invalid message type")
	}

	content := strings.TrimSpace(input.Content)
	message := &domain.Message{
		SenderID:    input.SenderID,
		ReceiverID:  input.ReceiverID,
		Content:     content,
		MessageType: kind,
	}

	switch kind {
	case domain.MessageTypeFile:
		if input.Attachment == nil || input.Attachment.URL == "" {
			return nil, apperrors.BadRequest("file messages need an attachment")
		}
		if content == "" {
			message.Content = defaultFileContent
		}
		message.AttachmentURL = &input.Attachment.URL
		if input.Attachment.Name != "" {
			message.AttachmentName = &input.Attachment.Name
		}
	default:
		if content == "" {
			return nil, apperrors.BadRequest("content is required")
		}
	}

	chatID := domain.ChatRoomID(input.SenderID, input.ReceiverID)
	if input.ChatID != "" && input.ChatID != chatID {
		return nil, apperrors.ErrInvalidRoom
	}
	message.ChatID = chatID

	return message, nil
}

func (s *chatService) History(ctx context.Context, chatID string, userID int64, limit int) ([]*domain.MessageView, error) {
	if err := authorizeChat(chatID, userID); err != nil {
		return nil, err
	}
	if limit < 0 {
		limit = 0
	}

	return s.messageRepo.ListByChat(ctx, chatID, limit)
}

func (s *chatService) UnreadCount(ctx context.Context, chatID string, userID int64) (int, error) {
	if err := authorizeChat(chatID, userID); err != nil {
		return 0, err
	}
	return s.messageRepo.CountUnread(ctx, chatID, userID)
}

func (s *chatService) MarkRead(ctx context.Context, chatID string, userID int64) (int64, error) {
	if err := authorizeChat(chatID, userID); err != nil {
		return 0, err
	}
	return s.messageRepo.MarkRead(ctx, chatID, userID)
}

func (s *chatService) ListChats(ctx context.Context, userID int64) ([]*domain.ChatSummary, error) {
	messages, err := s.messageRepo.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}

	unread, err := s.messageRepo.CountUnreadByChat(ctx, userID)
	if err != nil {
		return nil, err
	}

	chats := make([]*domain.ChatSummary, 0)
	seen := make(map[string]struct{})
	for _, m := range messages {
		if _, ok := seen[m.ChatID]; ok {
			continue
		}
		seen[m.ChatID] = struct{}{}

		peer := m.Sender
		if m.SenderID == userID {
			peer = m.Receiver
		}

		chats = append(chats, &domain.ChatSummary{
			ChatID:          m.ChatID,
			UserID:          peer.ID,
			DisplayName:     peer.DisplayName,
			AvatarURL:       peer.AvatarURL,
			Username:        peer.Username,
			LastMessage:     m.Content,
			LastMessageTime: m.CreatedAt,
			UnreadCount:     unread[m.ChatID],
			Online:          s.presence != nil && s.presence.IsOnline(peer.ID),
		})
	}

	return chats, nil
}

// authorizeChat rejects malformed chat ids and chats the user is not part of.
func authorizeChat(chatID string, userID int64) error {
	if _, err := domain.ChatPeer(chatID, userID); err != nil {
		if errors.Is(err, domain.ErrNotParticipant) {
			return apperrors.Forbidden("you are not a participant of this chat")
		}
		return apperrors.ErrInvalidRoom
	}
	return nil
}
