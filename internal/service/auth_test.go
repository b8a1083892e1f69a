package service

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"vesper/internal/domain"
	apperrors "vesper/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc, store := newTestServices(t, nil)
	ctx := context.Background()

	res, err := svc.Auth.Register(ctx, RegisterInput{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "s3cret!",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.Equal(t, "alice", res.User.DisplayName)
	assert.Equal(t, domain.RoleClient, res.User.Role)

	claims, err := svc.Auth.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	login, err := svc.Auth.Login(ctx, "alice@example.com", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, login.User.ID)

	_, err = svc.Auth.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Auth.Login(ctx, "nobody@example.com", "s3cret!")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	var actions []string
	for _, e := range store.Activity.Entries() {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{domain.ActionRegistered, domain.ActionLoggedIn}, actions)
}

func TestAuthService_RegisterRejects(t *testing.T) {
	svc, _ := newTestServices(t, nil)
	ctx := context.Background()

	_, err := svc.Auth.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "password"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		input RegisterInput
		want  int
	}{
		{"duplicate email", RegisterInput{Username: "bobby", Email: "bob@example.com", Password: "password"}, http.StatusConflict},
		{"duplicate username", RegisterInput{Username: "bob", Email: "other@example.com", Password: "password"}, http.StatusConflict},
		{"short password", RegisterInput{Username: "carol", Email: "carol@example.com", Password: "123"}, http.StatusBadRequest},
		{"bad email", RegisterInput{Username: "carol", Email: "carol", Password: "password"}, http.StatusBadRequest},
		{"no username", RegisterInput{Email: "carol@example.com", Password: "password"}, http.StatusBadRequest},
		{"telegram username prefix", RegisterInput{Username: "TG_424242", Email: "carol@example.com", Password: "password"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Auth.Register(ctx, tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.want, apperrors.HTTPStatusFromError(err))
		})
	}
}

func TestAuthService_LoginSuspended(t *testing.T) {
	svc, store := newTestServices(t, nil)
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	store.Users.Add(&domain.User{
		Username:     "mallory",
		Email:        "mallory@example.com",
		PasswordHash: string(hash),
		Status:       domain.UserStatusSuspended,
	})

	_, err = svc.Auth.Login(context.Background(), "mallory@example.com", "password")
	assert.ErrorIs(t, err, apperrors.ErrUserSuspended)
}

func TestAuthService_ValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newTestServices(t, nil)

	_, err := svc.Auth.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func signedTelegramData(t *testing.T, botToken string, fields map[string]string) TelegramAuthData {
	t.Helper()
	data := TelegramAuthData{}
	for k, v := range fields {
		data[k] = v
	}
	data["hash"] = SignTelegramAuthData(data, botToken)
	return data
}

func TestAuthService_LoginWithTelegram(t *testing.T) {
	svc, store := newTestServices(t, nil)
	ctx := context.Background()
	cfg := newTestConfig()
	now := strconv.FormatInt(time.Now().Unix(), 10)

	data := signedTelegramData(t, cfg.Telegram.BotToken, map[string]string{
		"id":         "424242",
		"first_name": "Tele",
		"last_name":  "Gram",
		"photo_url":  "https://t.me/photo.jpg",
		"auth_date":  now,
	})

	res, err := svc.Auth.LoginWithTelegram(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, "tg_424242", res.User.Username)
	assert.Equal(t, "424242@telegram.user", res.User.Email)
	assert.Equal(t, "Tele Gram", res.User.DisplayName)
	assert.Equal(t, domain.RoleClient, res.User.Role)
	require.NotNil(t, res.User.AvatarURL)
	assert.Equal(t, "https://t.me/photo.jpg", *res.User.AvatarURL)
	assert.NotEmpty(t, res.Token)

	// the second login finds the same account by telegram id
	again, err := svc.Auth.LoginWithTelegram(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, again.User.ID)

	entries := store.Activity.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ActionLoggedInTelegram, entries[1].Action)
}

func TestAuthService_LoginWithTelegramNeverTakesOverExistingUsername(t *testing.T) {
	svc, store := newTestServices(t, nil)
	cfg := newTestConfig()
	admin := store.Users.Add(&domain.User{ID: 1, Username: "admin", Email: "admin@example.com", Role: domain.RoleAdmin})

	data := signedTelegramData(t, cfg.Telegram.BotToken, map[string]string{
		"id":         "424242",
		"first_name": "Stranger",
		"username":   "admin",
		"auth_date":  strconv.FormatInt(time.Now().Unix(), 10),
	})

	res, err := svc.Auth.LoginWithTelegram(context.Background(), data)
	require.NoError(t, err)
	assert.NotEqual(t, admin.ID, res.User.ID)
	assert.Equal(t, "tg_424242", res.User.Username)
	assert.Equal(t, domain.RoleClient, res.User.Role)
	require.NotNil(t, res.User.TelegramID)
	assert.Equal(t, "424242", *res.User.TelegramID)

	claims, err := svc.Auth.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, domain.RoleClient, claims.Role)

	untouched, err := store.Users.GetByID(context.Background(), admin.ID)
	require.NoError(t, err)
	assert.Nil(t, untouched.TelegramID)
	assert.Equal(t, domain.RoleAdmin, untouched.Role)

	// later logins resolve by telegram id to the separate account
	again, err := svc.Auth.LoginWithTelegram(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, again.User.ID)
}

func TestAuthService_LoginWithTelegramKeepsFreeUsername(t *testing.T) {
	svc, _ := newTestServices(t, nil)
	cfg := newTestConfig()

	data := signedTelegramData(t, cfg.Telegram.BotToken, map[string]string{
		"id":        "77",
		"username":  "kate",
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
	})

	res, err := svc.Auth.LoginWithTelegram(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "kate", res.User.Username)
	assert.Equal(t, "77@telegram.user", res.User.Email)
}

func TestAuthService_LoginWithTelegramRejects(t *testing.T) {
	svc, store := newTestServices(t, nil)
	cfg := newTestConfig()
	ctx := context.Background()

	t.Run("tampered", func(t *testing.T) {
		data := signedTelegramData(t, cfg.Telegram.BotToken, map[string]string{
			"id":        "1",
			"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		})
		data["id"] = "2"
		_, err := svc.Auth.LoginWithTelegram(ctx, data)
		assert.ErrorIs(t, err, apperrors.ErrTelegramAuthFailed)
	})

	t.Run("wrong bot", func(t *testing.T) {
		data := signedTelegramData(t, "other-bot", map[string]string{
			"id":        "1",
			"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		})
		_, err := svc.Auth.LoginWithTelegram(ctx, data)
		assert.ErrorIs(t, err, apperrors.ErrTelegramAuthFailed)
	})

	t.Run("expired", func(t *testing.T) {
		data := signedTelegramData(t, cfg.Telegram.BotToken, map[string]string{
			"id":        "1",
			"auth_date": strconv.FormatInt(time.Now().Add(-25*time.Hour).Unix(), 10),
		})
		_, err := svc.Auth.LoginWithTelegram(ctx, data)
		assert.ErrorIs(t, err, apperrors.ErrTelegramAuthFailed)
	})

	users, _ := store.Users.List(ctx)
	assert.Empty(t, users)
}
