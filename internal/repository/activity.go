package repository

import (
	"context"
	"fmt"
	"time"

	"vesper/internal/domain"
	apperrors "vesper/pkg/errors"
	"vesper/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ActivityRepository interface {
	Create(ctx context.Context, entry *domain.ActivityLog) error
	ListRecent(ctx context.Context, limit int) ([]*domain.ActivityView, error)
	CountByActionSince(ctx context.Context, action string, since time.Time) (int64, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
}

type activityRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewActivityRepository(db *pgxpool.Pool, log logger.Logger) ActivityRepository {
	return &activityRepository{db: db, log: log}
}

func (r *activityRepository) Create(ctx context.Context, entry *domain.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (user_id, action, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query, entry.UserID, entry.Action, entry.Status).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		r.log.Error("Failed to create activity log", "error", err, "user_id", entry.UserID)
		return fmt.Errorf("%w: create activity: %v", apperrors.ErrStorage, err)
	}

	return nil
}

func (r *activityRepository) ListRecent(ctx context.Context, limit int) ([]*domain.ActivityView, error) {
	query := `
		SELECT a.id, a.user_id, a.action, a.status, a.created_at,
		       u.id, u.username, u.display_name, u.avatar_url
		FROM activity_logs a
		JOIN users u ON u.id = a.user_id
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		r.log.Error("Failed to list activity", "error", err)
		return nil, fmt.Errorf("%w: list activity: %v", apperrors.ErrStorage, err)
	}
	defer rows.Close()

	entries := make([]*domain.ActivityView, 0)
	for rows.Next() {
		v := &domain.ActivityView{}
		err := rows.Scan(
			&v.ID, &v.UserID, &v.Action, &v.Status, &v.CreatedAt,
			&v.User.ID, &v.User.Username, &v.User.DisplayName, &v.User.AvatarURL,
		)
		if err != nil {
			r.log.Error("Failed to scan activity", "error", err)
			return nil, fmt.Errorf("%w: scan activity: %v", apperrors.ErrStorage, err)
		}
		entries = append(entries, v)
	}
	return entries, rows.Err()
}

func (r *activityRepository) CountByActionSince(ctx context.Context, action string, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM activity_logs WHERE action = $1 AND created_at >= $2`

	var count int64
	if err := r.db.QueryRow(ctx, query, action, since).Scan(&count); err != nil {
		r.log.Error("Failed to count activity by action", "error", err, "action", action)
		return 0, fmt.Errorf("%w: count activity: %v", apperrors.ErrStorage, err)
	}
	return count, nil
}

func (r *activityRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM activity_logs WHERE status = $1`, status).Scan(&count); err != nil {
		r.log.Error("Failed to count activity by status", "error", err, "status", status)
		return 0, fmt.Errorf("%w: count activity: %v", apperrors.ErrStorage, err)
	}
	return count, nil
}
