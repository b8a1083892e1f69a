package domain

import (
	"time"
)

type ActivityLog struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityView is an ActivityLog joined with its user.
type ActivityView struct {
	ActivityLog
	User UserSummary `json:"user"`
}

const (
	ActivityStatusActive  = "active"
	ActivityStatusFlagged = "flagged"
)

const (
	ActionRegistered       = "Registered"
	ActionLoggedIn         = "Logged in"
	ActionLoggedInTelegram = "Logged in via Telegram"
	ActionSentMessage      = "Sent message"
	ActionFileUploaded     = "File uploaded"
	ActionAvatarUpdated    = "Avatar updated"
)
