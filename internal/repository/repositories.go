package repository

import (
	"vesper/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Repositories struct {
	User      UserRepository
	Message   MessageRepository
	Activity  ActivityRepository
	RateLimit RateLimitRepository
	Blob      BlobRepository
}

func NewRepositories(db *pgxpool.Pool, redis *redis.Client, blob BlobRepository, log logger.Logger) *Repositories {
	repos := &Repositories{
		User:      NewUserRepository(db, log),
		Message:   NewMessageRepository(db, log),
		Activity:  NewActivityRepository(db, log),
		RateLimit: NewRateLimitRepository(redis, log),
		Blob:      blob,
	}

	log.Info("Repositories initialized")

	return repos
}
