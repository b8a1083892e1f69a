package handler

import (
	"vesper/internal/config"
	"vesper/internal/realtime"
	"vesper/internal/service"
	"vesper/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Auth      *AuthHandler
	User      *UserHandler
	Message   *MessageHandler
	Admin     *AdminHandler
	Files     *FileHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, hub *realtime.Hub, checks map[string]HealthCheck, cfg *config.Config, log logger.Logger) *Handlers {
	handlers := &Handlers{
		Health:    NewHealthHandler(checks),
		Auth:      NewAuthHandler(services.Auth, log),
		User:      NewUserHandler(services.User, cfg.Chat.MaxUploadBytes, log),
		Message:   NewMessageHandler(services.Chat, services.Attachment, hub, cfg.Chat.MaxUploadBytes, log),
		Admin:     NewAdminHandler(services.Admin, log),
		Files:     NewFileHandler(services.Attachment, log),
		WebSocket: NewWebSocketHandler(hub, cfg.CORS.AllowedOrigins, log),
	}

	return handlers
}
