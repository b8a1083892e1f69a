package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"vesper/internal/domain"
	"vesper/internal/middleware"
	"vesper/internal/service"
	"vesper/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Broadcaster pushes stored messages to realtime subscribers of their chat.
type Broadcaster interface {
	BroadcastMessage(message *domain.MessageView)
}

type MessageHandler struct {
	chatService    service.ChatService
	attachments    service.AttachmentService
	broadcaster    Broadcaster
	maxUploadBytes int64
	log            logger.Logger
}

func NewMessageHandler(chatService service.ChatService, attachments service.AttachmentService, broadcaster Broadcaster, maxUploadBytes int64, log logger.Logger) *MessageHandler {
	return &MessageHandler{
		chatService:    chatService,
		attachments:    attachments,
		broadcaster:    broadcaster,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

type SendMessageRequest struct {
	ReceiverID  int64  `json:"receiver_id" binding:"required,gt=0"`
	ChatID      string `json:"chat_id"`
	Content     string `json:"content" binding:"required"`
	MessageType string `json:"message_type" binding:"omitempty,oneof=text"`
}

func (h *MessageHandler) ListChats(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	chats, err := h.chatService.ListChats(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, chats)
}

func (h *MessageHandler) History(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	messages, err := h.chatService.History(c.Request.Context(), c.Param("chatId"), userID, limit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	message, err := h.chatService.Append(c.Request.Context(), service.AppendMessageInput{
		SenderID:    userID,
		ReceiverID:  req.ReceiverID,
		ChatID:      req.ChatID,
		Content:     req.Content,
		MessageType: req.MessageType,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.broadcaster.BroadcastMessage(message)
	c.JSON(http.StatusCreated, message)
}

func (h *MessageHandler) Upload(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	file, ok := formFile(c, "file", h.maxUploadBytes)
	if !ok {
		return
	}

	receiverID, err := strconv.ParseInt(c.PostForm("receiver_id"), 10, 64)
	if err != nil || receiverID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid receiver_id"})
		return
	}
	chatID := strings.TrimSpace(c.PostForm("chat_id"))
	if chatID != "" && chatID != domain.ChatRoomID(userID, receiverID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat_id does not match the participants"})
		return
	}

	src, err := file.Open()
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer src.Close()

	attachment, err := h.attachments.Store(c.Request.Context(), file.Filename, src)
	if err != nil {
		h.log.Error("Failed to store upload", "error", err, "user_id", userID)
		_ = c.Error(err)
		return
	}

	message, err := h.chatService.Append(c.Request.Context(), service.AppendMessageInput{
		SenderID:    userID,
		ReceiverID:  receiverID,
		ChatID:      chatID,
		Content:     c.PostForm("content"),
		MessageType: domain.MessageTypeFile,
		Attachment:  attachment,
	})
	if err != nil {
		// no message references the blob
		_ = h.attachments.Delete(context.WithoutCancel(c.Request.Context()), attachment)
		_ = c.Error(err)
		return
	}

	h.broadcaster.BroadcastMessage(message)
	c.JSON(http.StatusCreated, message)
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	updated, err := h.chatService.MarkRead(c.Request.Context(), c.Param("chatId"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
