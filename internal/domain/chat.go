package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const roomIDSeparator = "_"

var (
	ErrMalformedRoomID = errors.New("malformed chat id")
	ErrNotParticipant  = errors.New("user is not a participant of this chat")
)

// ChatRoomID returns the room key shared by two participants. The ids are
// ordered numerically so both sides compute the same key.
func ChatRoomID(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return strconv.FormatInt(a, 10) + roomIDSeparator + strconv.FormatInt(b, 10)
}

// ParseChatRoomID splits a room key into its two participants, lower id first.
// Keys that ChatRoomID would not have produced are rejected.
func ParseChatRoomID(roomID string) (int64, int64, error) {
	left, right, ok := strings.Cut(roomID, roomIDSeparator)
	if !ok {
		return 0, 0, ErrMalformedRoomID
	}
	a, err := strconv.ParseInt(left, 10, 64)
	if err != nil || a <= 0 {
		return 0, 0, ErrMalformedRoomID
	}
	b, err := strconv.ParseInt(right, 10, 64)
	if err != nil || b <= 0 {
		return 0, 0, ErrMalformedRoomID
	}
	if ChatRoomID(a, b) != roomID {
		return 0, 0, ErrMalformedRoomID
	}
	return a, b, nil
}

// ChatPeer returns the participant of roomID that is not userID.
func ChatPeer(roomID string, userID int64) (int64, error) {
	a, b, err := ParseChatRoomID(roomID)
	if err != nil {
		return 0, err
	}
	switch userID {
	case a:
		return b, nil
	case b:
		return a, nil
	default:
		return 0, ErrNotParticipant
	}
}

// Message is the stored entity. Sender display fields live on MessageView.
type Message struct {
	ID             int64     `json:"id"`
	SenderID       int64     `json:"sender_id"`
	ReceiverID     int64     `json:"receiver_id"`
	ChatID         string    `json:"chat_id"`
	Content        string    `json:"content"`
	MessageType    string    `json:"message_type"`
	AttachmentURL  *string   `json:"attachment_url"`
	AttachmentName *string   `json:"attachment_name"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageView is a Message joined with its sender's display fields.
type MessageView struct {
	Message
	SenderName     string  `json:"sender_name"`
	SenderAvatar   *string `json:"sender_avatar"`
	SenderUsername string  `json:"sender_username"`
}

// Attachment is what the blob store hands back for an uploaded file.
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`

	Object      string `json:"-"` // blob store object name
	ContentType string `json:"-"` // sniffed from the stored bytes
}

// ParticipantMessage is a message of one of the user's chats joined with
// both participants, as read by the chat list query.
type ParticipantMessage struct {
	Message
	Sender   UserSummary
	Receiver UserSummary
}

// ChatSummary is one row of a user's chat list.
type ChatSummary struct {
	ChatID          string    `json:"chat_id"`
	UserID          int64     `json:"user_id"`
	DisplayName     string    `json:"display_name"`
	AvatarURL       *string   `json:"avatar_url"`
	Username        string    `json:"username"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	UnreadCount     int       `json:"unread_count"`
	Online          bool      `json:"online"`
}

const (
	MessageTypeText = "text"
	MessageTypeFile = "file"
)

func IsValidMessageType(t string) bool {
	return t == MessageTypeText || t == MessageTypeFile
}
