package service

import (
	"context"
	"testing"
	"time"

	"vesper/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminService_Stats(t *testing.T) {
	svc, store := newTestServices(t, fakePresence{1: true, 2: true})
	ctx := context.Background()
	addUser(store, 1, "a")
	addUser(store, 2, "b")
	store.Users.Add(&domain.User{ID: 3, Username: "c", Status: domain.UserStatusSuspended})

	_, err := svc.Chat.Append(ctx, AppendMessageInput{SenderID: 1, ReceiverID: 2, Content: "hi"})
	require.NoError(t, err)
	require.NoError(t, svc.Activity.Record(ctx, 1, domain.ActionLoggedIn))
	require.NoError(t, svc.Activity.Record(ctx, 2, domain.ActionLoggedIn))
	require.NoError(t, store.Activity.Create(ctx, &domain.ActivityLog{
		UserID:    2,
		Action:    domain.ActionLoggedIn,
		Status:    domain.ActivityStatusActive,
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}))
	require.NoError(t, svc.Activity.RecordWithStatus(ctx, 2, domain.ActionSentMessage, domain.ActivityStatusFlagged))

	stats, err := svc.Admin.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ActiveUsers)
	assert.Equal(t, int64(1), stats.TotalMessages)
	assert.Equal(t, int64(2), stats.RecentLogins)
	assert.Equal(t, int64(1), stats.FlaggedActivity)
	assert.Equal(t, 2, stats.OnlineUsers)
}

func TestAdminService_ActivityAndStream(t *testing.T) {
	svc, store := newTestServices(t, nil)
	ctx := context.Background()
	addUser(store, 1, "alice")

	for i := 0; i < 25; i++ {
		require.NoError(t, svc.Activity.Record(ctx, 1, domain.ActionSentMessage))
	}
	require.NoError(t, svc.Activity.Record(ctx, 1, domain.ActionLoggedIn))

	feed, err := svc.Admin.Activity(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 20)
	assert.Equal(t, domain.ActionLoggedIn, feed[0].Action)
	assert.Equal(t, "User alice", feed[0].User)
	assert.Equal(t, "@alice", feed[0].Username)
	assert.Equal(t, "just now", feed[0].Time)

	stream, err := svc.Admin.Stream(ctx)
	require.NoError(t, err)
	require.Len(t, stream, 10)
	assert.Equal(t, "User alice: Logged in", stream[0].Event)
	_, err = time.Parse("15:04:05", stream[0].Time)
	assert.NoError(t, err)
}
