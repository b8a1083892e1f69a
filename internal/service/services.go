package service

import (
	"vesper/internal/config"
	"vesper/internal/repository"
	"vesper/pkg/logger"
)

// Presence is the read side of the realtime presence registry.
type Presence interface {
	PresenceChecker
	OnlineCounter
}

type Services struct {
	Auth       AuthService
	User       UserService
	Chat       ChatService
	Attachment AttachmentService
	Activity   ActivityService
	Admin      AdminService
	RateLimit  RateLimitService
}

func NewServices(repos *repository.Repositories, presence Presence, cfg *config.Config, log logger.Logger) *Services {
	activity := NewActivityService(repos.Activity, log)
	attachments := NewAttachmentService(repos.Blob, cfg.Server.PublicURL, log)

	services := &Services{
		Auth:       NewAuthService(repos.User, activity, cfg.JWT, cfg.Telegram, log),
		User:       NewUserService(repos.User, attachments, activity, log),
		Chat:       NewChatService(repos.Message, activity, presence, cfg.Chat.PersistTimeout, log),
		Attachment: attachments,
		Activity:   activity,
		Admin:      NewAdminService(repos, presence, log),
		RateLimit:  NewRateLimitService(repos.RateLimit, log),
	}

	return services
}
