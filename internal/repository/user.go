package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vesper/internal/domain"
	apperrors "vesper/pkg/errors"
	"vesper/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByTelegramID(ctx context.Context, telegramID string) (*domain.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	UpdateAvatar(ctx context.Context, id int64, avatarURL string) error
	List(ctx context.Context) ([]*domain.User, error)
	Search(ctx context.Context, query string, excludeID int64, limit int) ([]*domain.UserSummary, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
}

type userRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewUserRepository(db *pgxpool.Pool, log logger.Logger) UserRepository {
	return &userRepository{db: db, log: log}
}

const userColumns = `id, username, email, password_hash, display_name, avatar_url, telegram_id, role, status, created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.DisplayName,
		&user.AvatarURL, &user.TelegramID, &user.Role, &user.Status, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, display_name, avatar_url, telegram_id, role, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.DisplayName,
		user.AvatarURL, user.TelegramID, user.Role, user.Status,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 = unique_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.log.Warn("User already exists (unique violation)", "email", user.Email, "constraint", pgErr.ConstraintName)
			return apperrors.ErrUserAlreadyExists
		}
		r.log.Error("Failed to create user", "error", err, "email", user.Email)
		return fmt.Errorf("%w: create user: %v", apperrors.ErrStorage, err)
	}

	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, "id", query, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, "email", query, email)
}

func (r *userRepository) GetByTelegramID(ctx context.Context, telegramID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	return r.getOne(ctx, "telegram_id", query, telegramID)
}

func (r *userRepository) getOne(ctx context.Context, by, query string, arg any) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		r.log.Error("Failed to get user", "by", by, "error", err)
		return nil, fmt.Errorf("%w: get user: %v", apperrors.ErrStorage, err)
	}
	return user, nil
}

func (r *userRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 OR username = $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, strings.ToLower(email), username).Scan(&exists); err != nil {
		r.log.Error("Failed to check user existence", "error", err)
		return false, fmt.Errorf("%w: check user: %v", apperrors.ErrStorage, err)
	}
	return exists, nil
}

func (r *userRepository) UpdateAvatar(ctx context.Context, id int64, avatarURL string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET avatar_url = $2 WHERE id = $1`, id, avatarURL)
	if err != nil {
		r.log.Error("Failed to update avatar", "error", err, "user_id", id)
		return fmt.Errorf("%w: update avatar: %v", apperrors.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) List(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.log.Error("Failed to list users", "error", err)
		return nil, fmt.Errorf("%w: list users: %v", apperrors.ErrStorage, err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			r.log.Error("Failed to scan user", "error", err)
			return nil, fmt.Errorf("%w: scan user: %v", apperrors.ErrStorage, err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *userRepository) Search(ctx context.Context, query string, excludeID int64, limit int) ([]*domain.UserSummary, error) {
	sql := `
		SELECT id, username, display_name, avatar_url
		FROM users
		WHERE id <> $1
		  AND status = 'active'
		  AND (username ILIKE $2 OR display_name ILIKE $2)
		ORDER BY username
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, sql, excludeID, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		r.log.Error("Failed to search users", "error", err)
		return nil, fmt.Errorf("%w: search users: %v", apperrors.ErrStorage, err)
	}
	defer rows.Close()

	users := make([]*domain.UserSummary, 0)
	for rows.Next() {
		u := &domain.UserSummary{}
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.AvatarURL); err != nil {
			r.log.Error("Failed to scan user summary", "error", err)
			return nil, fmt.Errorf("%w: scan user: %v", apperrors.ErrStorage, err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *userRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE status = $1`, status).Scan(&count); err != nil {
		r.log.Error("Failed to count users", "error", err)
		return 0, fmt.Errorf("%w: count users: %v", apperrors.ErrStorage, err)
	}
	return count, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
