package service

import (
	"context"

	"vesper/internal/domain"
	"vesper/internal/repository"
	"vesper/pkg/logger"
)

// ActivityService appends to the platform activity log. Reads live in AdminService.
type ActivityService interface {
	Record(ctx context.Context, userID int64, action string) error
	RecordWithStatus(ctx context.Context, userID int64, action, status string) error
}

type activityService struct {
	activityRepo repository.ActivityRepository
	log          logger.Logger
}

func NewActivityService(activityRepo repository.ActivityRepository, log logger.Logger) ActivityService {
	return &activityService{
		activityRepo: activityRepo,
		log:          log,
	}
}

func (s *activityService) Record(ctx context.Context, userID int64, action string) error {
	return s.RecordWithStatus(ctx, userID, action, domain.ActivityStatusActive)
}

func (s *activityService) RecordWithStatus(ctx context.Context, userID int64, action, status string) error {
	if status == "" {
		status = domain.ActivityStatusActive
	}

	entry := &domain.ActivityLog{
		UserID: userID,
		Action: action,
		Status: status,
	}

	return s.activityRepo.Create(ctx, entry)
}

// recordBestEffort logs a failed write instead of returning it.
func recordBestEffort(ctx context.Context, activity ActivityService, log logger.Logger, userID int64, action string) {
	if err := activity.Record(ctx, userID, action); err != nil {
		log.Warn("Failed to record activity", "error", err, "user_id", userID, "action", action)
	}
}
