package service

import (
	"testing"
	"time"

	"vesper/internal/config"
	"vesper/internal/domain"
	"vesper/internal/repository/repotest"
	"vesper/pkg/logger"
)

type fakePresence map[int64]bool

func (p fakePresence) IsOnline(userID int64) bool { return p[userID] }

func (p fakePresence) OnlineUsers() []int64 {
	ids := make([]int64, 0, len(p))
	for id, online := range p {
		if online {
			ids = append(ids, id)
		}
	}
	return ids
}

func newTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{PublicURL: "http://chat.test"},
		JWT:    config.JWTConfig{Secret: "test-secret", TTL: time.Hour, Issuer: "vesper-test"},
		Telegram: config.TelegramConfig{
			BotToken: "123456:bot-token",
			MaxAge:   24 * time.Hour,
		},
		Chat: config.ChatConfig{PersistTimeout: time.Second},
	}
}

func newTestServices(t *testing.T, presence Presence) (*Services, *repotest.Store) {
	t.Helper()
	store := repotest.NewStore()
	return NewServices(store.Repositories(), presence, newTestConfig(), logger.NewNop()), store
}

func addUser(store *repotest.Store, id int64, username string) *domain.User {
	return store.Users.Add(&domain.User{
		ID:          id,
		Username:    username,
		Email:       username + "@example.com",
		DisplayName: "User " + username,
	})
}
