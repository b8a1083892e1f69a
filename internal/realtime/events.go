package realtime

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Inbound events.
const (
	EventJoin    = "join"
	EventMessage = "message"
	EventTyping  = "typing"
)

// Outbound events.
const (
	EventNewMessage = "newMessage"
	EventUserTyping = "userTyping"
	EventUserOnline = "userOnline"
	EventError      = "error"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinPayload struct {
	UserID int64  `json:"userId" validate:"required,gt=0"`
	RoomID string `json:"roomId" validate:"required"`
}

// MessagePayload carries text only; files go through the upload endpoint.
type MessagePayload struct {
	SenderID   int64  `json:"senderId" validate:"required,gt=0"`
	ReceiverID int64  `json:"receiverId" validate:"required,gt=0"`
	RoomID     string `json:"roomId" validate:"required"`
	Content    string `json:"content" validate:"max=4000"`
	Kind       string `json:"kind" validate:"omitempty,oneof=text"`
}

type TypingPayload struct {
	RoomID   string `json:"roomId" validate:"required"`
	UserID   int64  `json:"userId" validate:"required,gt=0"`
	IsTyping bool   `json:"isTyping"`
}

type UserTyping struct {
	UserID   int64 `json:"userId"`
	IsTyping bool  `json:"isTyping"`
}

type UserOnline struct {
	UserID int64 `json:"userId"`
	Online bool  `json:"online"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

var errInvalidEvent = errors.New("invalid event")

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodePayload unmarshals data into dst and runs its validate tags.
func decodePayload(v *validator.Validate, data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return errInvalidEvent
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errInvalidEvent
	}
	if err := v.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return errors.New(fieldErrs[0].Field() + " is invalid (" + fieldErrs[0].Tag() + ")")
		}
		return errInvalidEvent
	}
	return nil
}

func encodeEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
