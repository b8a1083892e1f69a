package service

import (
	"context"
	"time"

	"vesper/internal/domain"
	"vesper/internal/repository"
	"vesper/pkg/logger"
)

const (
	activityFeedLimit = 20
	eventStreamLimit  = 10
	recentLoginWindow = 24 * time.Hour
	streamTimeLayout  = "15:04:05"
)

// OnlineCounter reports the users currently connected.
type OnlineCounter interface {
	OnlineUsers() []int64
}

// AdminService feeds the admin dashboard.
type AdminService interface {
	Stats(ctx context.Context) (*domain.PlatformStats, error)
	Activity(ctx context.Context) ([]*domain.ActivityFeedItem, error)
	Stream(ctx context.Context) ([]*domain.StreamEvent, error)
}

type adminService struct {
	userRepo     repository.UserRepository
	messageRepo  repository.MessageRepository
	activityRepo repository.ActivityRepository
	online       OnlineCounter
	now          func() time.Time
	log          logger.Logger
}

func NewAdminService(repos *repository.Repositories, online OnlineCounter, log logger.Logger) AdminService {
	return &adminService{
		userRepo:     repos.User,
		messageRepo:  repos.Message,
		activityRepo: repos.Activity,
		online:       online,
		now:          time.Now,
		log:          log,
	}
}

func (s *adminService) Stats(ctx context.Context) (*domain.PlatformStats, error) {
	activeUsers, err := s.userRepo.CountByStatus(ctx, domain.UserStatusActive)
	if err != nil {
		return nil, err
	}

	totalMessages, err := s.messageRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	recentLogins, err := s.activityRepo.CountByActionSince(ctx, domain.ActionLoggedIn, s.now().Add(-recentLoginWindow))
	if err != nil {
		return nil, err
	}

	flagged, err := s.activityRepo.CountByStatus(ctx, domain.ActivityStatusFlagged)
	if err != nil {
		return nil, err
	}

	stats := &domain.PlatformStats{
		ActiveUsers:     activeUsers,
		TotalMessages:   totalMessages,
		RecentLogins:    recentLogins,
		FlaggedActivity: flagged,
	}
	if s.online != nil {
		stats.OnlineUsers = len(s.online.OnlineUsers())
	}
	return stats, nil
}

func (s *adminService) Activity(ctx context.Context) ([]*domain.ActivityFeedItem, error) {
	entries, err := s.activityRepo.ListRecent(ctx, activityFeedLimit)
	if err != nil {
		return nil, err
	}

	now := s.now()
	items := make([]*domain.ActivityFeedItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, &domain.ActivityFeedItem{
			ID:        e.ID,
			User:      e.User.DisplayName,
			Username:  "@" + e.User.Username,
			AvatarURL: e.User.AvatarURL,
			Action:    e.Action,
			Time:      domain.RelativeTime(e.CreatedAt, now),
			Status:    e.Status,
		})
	}
	return items, nil
}

func (s *adminService) Stream(ctx context.Context) ([]*domain.StreamEvent, error) {
	entries, err := s.activityRepo.ListRecent(ctx, eventStreamLimit)
	if err != nil {
		return nil, err
	}

	events := make([]*domain.StreamEvent, 0, len(entries))
	for _, e := range entries {
		events = append(events, &domain.StreamEvent{
			Time:  e.CreatedAt.Local().Format(streamTimeLayout),
			Event: e.User.DisplayName + ": " + e.Action,
		})
	}
	return events, nil
}
