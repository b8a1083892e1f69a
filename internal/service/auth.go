package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"vesper/internal/config"
	"vesper/internal/domain"
	"vesper/internal/repository"
	apperrors "vesper/pkg/errors"
	"vesper/pkg/jwt"
	"vesper/pkg/logger"

	"golang.org/x/crypto/bcrypt"
)

// Usernames with this prefix belong to Telegram accounts.
const telegramUsernamePrefix = "tg_"

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResponse, error)
	Login(ctx context.Context, email, password string) (*AuthResponse, error)
	LoginWithTelegram(ctx context.Context, data TelegramAuthData) (*AuthResponse, error)
	Me(ctx context.Context, userID int64) (*domain.User, error)
	ValidateToken(tokenString string) (*jwt.Claims, error)
}

type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

type AuthResponse struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

type authService struct {
	userRepo    repository.UserRepository
	activity    ActivityService
	jwtCfg      config.JWTConfig
	telegramCfg config.TelegramConfig
	now         func() time.Time
	log         logger.Logger
}

func NewAuthService(userRepo repository.UserRepository, activity ActivityService, jwtCfg config.JWTConfig, telegramCfg config.TelegramConfig, log logger.Logger) AuthService {
	return &authService{
		userRepo:    userRepo,
		activity:    activity,
		jwtCfg:      jwtCfg,
		telegramCfg: telegramCfg,
		now:         time.Now,
		log:         log,
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	displayName := strings.TrimSpace(input.DisplayName)

	if username == "" {
		return nil, apperrors.BadRequest("username is required")
	}
	if len(username) > 50 {
		return nil, apperrors.BadRequest("username is too long (max 50 characters)")
	}
	if strings.HasPrefix(strings.ToLower(username), telegramUsernamePrefix) {
		return nil, apperrors.BadRequest("usernames starting with " + telegramUsernamePrefix + " are reserved")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.BadRequest("invalid email format")
	}
	if len(input.Password) < 6 {
		return nil, apperrors.BadRequest("password must be at least 6 characters")
	}
	if displayName == "" {
		displayName = username
	}

	exists, err := s.userRepo.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.ErrUserAlreadyExists
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Error("Failed to hash password", "error", err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(passwordHash),
		DisplayName:  displayName,
		Role:         domain.RoleClient,
		Status:       domain.UserStatusActive,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	recordBestEffort(ctx, s.activity, s.log, user.ID, domain.ActionRegistered)
	s.log.Info("User registered", "user_id", user.ID, "username", user.Username)

	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.BadRequest("email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive() {
		return nil, apperrors.ErrUserSuspended
	}

	recordBestEffort(ctx, s.activity, s.log, user.ID, domain.ActionLoggedIn)

	return s.issue(user)
}

func (s *authService) LoginWithTelegram(ctx context.Context, data TelegramAuthData) (*AuthResponse, error) {
	if err := VerifyTelegramAuthData(data, s.telegramCfg.BotToken, s.telegramCfg.MaxAge, s.now()); err != nil {
		s.log.Warn("Telegram auth rejected", "error", err)
		return nil, err
	}

	telegramID := data.ID()
	user, err := s.userRepo.GetByTelegramID(ctx, telegramID)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		user, err = s.createTelegramUser(ctx, data)
	}
	if err != nil {
		return nil, err
	}

	if !user.IsActive() {
		return nil, apperrors.ErrUserSuspended
	}

	recordBestEffort(ctx, s.activity, s.log, user.ID, domain.ActionLoggedInTelegram)

	return s.issue(user)
}

func (s *authService) createTelegramUser(ctx context.Context, data TelegramAuthData) (*domain.User, error) {
	telegramID := data.ID()

	fallback := telegramUsernamePrefix + telegramID
	username := data["username"]
	if username == "" {
		username = fallback
	}
	displayName := data.DisplayName()
	if displayName == "" {
		displayName = username
	}

	// the account is reachable only through Telegram; nobody knows this password
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate password: %w", err)
	}
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(secret)), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        telegramID + "@telegram.user",
		PasswordHash: string(passwordHash),
		DisplayName:  displayName,
		TelegramID:   &telegramID,
		Role:         domain.RoleClient,
		Status:       domain.UserStatusActive,
	}
	if photo := data["photo_url"]; photo != "" {
		user.AvatarURL = &photo
	}

	// a taken username is never linked; the Telegram account gets its own user
	err = s.userRepo.Create(ctx, user)
	if errors.Is(err, apperrors.ErrUserAlreadyExists) && user.Username != fallback {
		s.log.Info("Telegram username taken, using fallback", "telegram_id", telegramID, "username", user.Username)
		user.Username = fallback
		err = s.userRepo.Create(ctx, user)
	}
	if errors.Is(err, apperrors.ErrUserAlreadyExists) {
		// a concurrent first login may have created it
		if existing, lookupErr := s.userRepo.GetByTelegramID(ctx, telegramID); lookupErr == nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (s *authService) Me(ctx context.Context, userID int64) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

func (s *authService) ValidateToken(tokenString string) (*jwt.Claims, error) {
	claims, err := jwt.ValidateToken(tokenString, s.jwtCfg.Secret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) issue(user *domain.User) (*AuthResponse, error) {
	token, err := jwt.GenerateAccessToken(user.ID, user.Username, user.Role, s.jwtCfg.Secret, s.jwtCfg.Issuer, s.jwtCfg.TTL)
	if err != nil {
		s.log.Error("Failed to generate access token", "error", err, "user_id", user.ID)
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &AuthResponse{User: user, Token: token}, nil
}
