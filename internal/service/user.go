package service

import (
	"context"
	"io"
	"strings"

	"vesper/internal/domain"
	"vesper/internal/repository"
	apperrors "vesper/pkg/errors"
	"vesper/pkg/logger"
)

const (
	minSearchQueryLength = 2
	searchResultLimit    = 10
)

type UserService interface {
	List(ctx context.Context) ([]*domain.User, error)
	Search(ctx context.Context, query string, callerID int64) ([]*domain.UserSummary, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	UpdateAvatar(ctx context.Context, input UpdateAvatarInput) (string, error)
}

type UpdateAvatarInput struct {
	ActorID     int64
	ActorRole   string
	TargetID    int64
	Filename    string
	Data        io.Reader
}

type userService struct {
	userRepo    repository.UserRepository
	attachments AttachmentService
	activity    ActivityService
	log         logger.Logger
}

func NewUserService(userRepo repository.UserRepository, attachments AttachmentService, activity ActivityService, log logger.Logger) UserService {
	return &userService{
		userRepo:    userRepo,
		attachments: attachments,
		activity:    activity,
		log:         log,
	}
}

func (s *userService) List(ctx context.Context) ([]*domain.User, error) {
	return s.userRepo.List(ctx)
}

func (s *userService) Search(ctx context.Context, query string, callerID int64) ([]*domain.UserSummary, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minSearchQueryLength {
		return []*domain.UserSummary{}, nil
	}
	return s.userRepo.Search(ctx, query, callerID, searchResultLimit)
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *userService) UpdateAvatar(ctx context.Context, input UpdateAvatarInput) (string, error) {
	if input.ActorID != input.TargetID && input.ActorRole != domain.RoleAdmin {
		return "", apperrors.Forbidden("you can only change your own avatar")
	}
	contentType, data, err := SniffContentType(input.Data)
	if err != nil {
		return "", apperrors.BadRequest("could not read the uploaded file")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", apperrors.BadRequest("avatar must be an image")
	}

	// fail before storing a blob nobody will reference
	if _, err := s.userRepo.GetByID(ctx, input.TargetID); err != nil {
		return "", err
	}

	attachment, err := s.attachments.Store(ctx, input.Filename, data)
	if err != nil {
		return "", err
	}

	if err := s.userRepo.UpdateAvatar(ctx, input.TargetID, attachment.URL); err != nil {
		return "", err
	}

	recordBestEffort(ctx, s.activity, s.log, input.ActorID, domain.ActionAvatarUpdated)

	return attachment.URL, nil
}
