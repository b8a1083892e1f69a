package repository

import (
	"context"
	"os"
	"testing"

	"vesper/internal/domain"
	apperrors "vesper/pkg/errors"
	"vesper/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB connects to VESPER_TEST_DATABASE_URL, applies the schema and
// empties every table. The database is wiped, so never point it at real data.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("VESPER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("VESPER_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	if err := pool.Ping(ctx); err != nil {
		t.Skipf("Skipping test: database ping failed: %v", err)
	}

	schema, err := os.ReadFile("../../migrations/0001_init.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, "TRUNCATE activity_logs, messages, users RESTART IDENTITY CASCADE")
	require.NoError(t, err)

	return pool
}

func createUser(t *testing.T, repo UserRepository, username string) *domain.User {
	t.Helper()
	user := &domain.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		DisplayName:  "User " + username,
		Role:         domain.RoleClient,
		Status:       domain.UserStatusActive,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestMessageRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	log := logger.NewNop()
	users := NewUserRepository(pool, log)
	messages := NewMessageRepository(pool, log)

	vendor := createUser(t, users, "vendor")
	client := createUser(t, users, "client")
	other := createUser(t, users, "other")
	room := domain.ChatRoomID(vendor.ID, client.ID)

	send := func(from, to *domain.User, content string) *domain.MessageView {
		t.Helper()
		view, err := messages.Create(ctx, &domain.Message{
			SenderID:    from.ID,
			ReceiverID:  to.ID,
			ChatID:      domain.ChatRoomID(from.ID, to.ID),
			Content:     content,
			MessageType: domain.MessageTypeText,
		})
		require.NoError(t, err)
		return view
	}

	first := send(client, vendor, "one")
	assert.NotZero(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())
	assert.False(t, first.Read)
	assert.Equal(t, room, first.ChatID)
	assert.Equal(t, "User client", first.SenderName)
	assert.Equal(t, "client", first.SenderUsername)

	send(vendor, client, "two")
	send(client, vendor, "three")
	send(other, vendor, "elsewhere")

	t.Run("history ascending", func(t *testing.T) {
		history, err := messages.ListByChat(ctx, room, 0)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, "one", history[0].Content)
		assert.Equal(t, "three", history[2].Content)

		newest, err := messages.ListByChat(ctx, room, 2)
		require.NoError(t, err)
		require.Len(t, newest, 2)
		assert.Equal(t, "two", newest[0].Content)
		assert.Equal(t, "three", newest[1].Content)
	})

	t.Run("unread counts", func(t *testing.T) {
		count, err := messages.CountUnread(ctx, room, vendor.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		byChat, err := messages.CountUnreadByChat(ctx, vendor.ID)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{room: 2, domain.ChatRoomID(other.ID, vendor.ID): 1}, byChat)

		updated, err := messages.MarkRead(ctx, room, vendor.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated)

		count, err = messages.CountUnread(ctx, room, vendor.ID)
		require.NoError(t, err)
		assert.Zero(t, count)

		count, err = messages.CountUnread(ctx, room, client.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("participant messages newest first", func(t *testing.T) {
		list, err := messages.ListByParticipant(ctx, vendor.ID)
		require.NoError(t, err)
		require.Len(t, list, 4)
		assert.Equal(t, "elsewhere", list[0].Content)
		assert.Equal(t, "other", list[0].Sender.Username)
		assert.Equal(t, "vendor", list[0].Receiver.Username)
	})

	t.Run("unknown receiver", func(t *testing.T) {
		_, err := messages.Create(ctx, &domain.Message{
			SenderID:    vendor.ID,
			ReceiverID:  999,
			ChatID:      domain.ChatRoomID(vendor.ID, 999),
			Content:     "hi",
			MessageType: domain.MessageTypeText,
		})
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	})

	total, err := messages.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
}

func TestUserRepository_UniqueViolations(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(pool, logger.NewNop())

	tg := "424242"
	kate := createUser(t, users, "kate")

	dup := &domain.User{Username: "kate", Email: "other@example.com", PasswordHash: "x", DisplayName: "K", Role: domain.RoleClient, Status: domain.UserStatusActive}
	assert.ErrorIs(t, users.Create(ctx, dup), apperrors.ErrUserAlreadyExists)

	linked := &domain.User{Username: "tg_424242", Email: "424242@telegram.user", PasswordHash: "x", DisplayName: "T", TelegramID: &tg, Role: domain.RoleClient, Status: domain.UserStatusActive}
	require.NoError(t, users.Create(ctx, linked))

	found, err := users.GetByTelegramID(ctx, tg)
	require.NoError(t, err)
	assert.Equal(t, linked.ID, found.ID)
	assert.NotEqual(t, kate.ID, found.ID)

	_, err = users.GetByTelegramID(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}
