package domain

import (
	"strconv"
	"time"
)

// PlatformStats feeds the admin dashboard counters.
type PlatformStats struct {
	ActiveUsers     int64 `json:"active_users"`
	TotalMessages   int64 `json:"total_messages"`
	RecentLogins    int64 `json:"recent_logins"`
	FlaggedActivity int64 `json:"flagged_activity"`
	OnlineUsers     int   `json:"online_users"`
}

// ActivityFeedItem is a row of the admin recent-activity table.
type ActivityFeedItem struct {
	ID        int64   `json:"id"`
	User      string  `json:"user"`
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatar_url"`
	Action    string  `json:"action"`
	Time      string  `json:"time"`
	Status    string  `json:"status"`
}

// StreamEvent is a row of the admin live event stream.
type StreamEvent struct {
	Time  string `json:"time"`
	Event string `json:"event"`
}

// RelativeTime renders the age of t as "just now", "5m ago", "3h ago" or "2d ago".
func RelativeTime(t, now time.Time) string {
	minutes := int(now.Sub(t).Minutes())
	if minutes < 1 {
		return "just now"
	}
	if minutes < 60 {
		return strconv.Itoa(minutes) + "m ago"
	}
	hours := minutes / 60
	if hours < 24 {
		return strconv.Itoa(hours) + "h ago"
	}
	return strconv.Itoa(hours/24) + "d ago"
}
