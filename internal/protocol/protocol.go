// Package protocol defines the JSON wire format shared with the admin
// clients. Every frame, both directions, is an envelope
// {type, data, timestamp} with a closed set of known types; anything else
// is rejected at the parse boundary.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kindervilla/realtime/internal/core"
)

// Inbound message types.
const (
	TypeAuth        = "auth"
	TypeJoinRoom    = "join_room"
	TypeLeaveRoom   = "leave_room"
	TypeChatMessage = "chat_message"
	TypeTyping      = "typing"
	TypePresence    = "presence"
	TypePing        = "ping"
)

// Outbound message types.
const (
	TypeWelcome        = "welcome"
	TypeAuthSuccess    = "auth_success"
	TypeAuthFailed     = "auth_failed"
	TypeUserJoined     = "user_joined"
	TypeUserLeft       = "user_left"
	TypePresenceUpdate = "presence_update"
	TypePong           = "pong"
	TypeError          = "error"
)

// Error codes carried in error frames.
const (
	CodeNotAuthenticated     = "not_authenticated"
	CodeAlreadyAuthenticated = "already_authenticated"
	CodeBadPayload           = "bad_payload"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrBadPayload     = errors.New("bad payload")
)

// Envelope is the wire frame. Data stays raw until the handler for Type
// parses it into the matching payload struct.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

var validate = validator.New()

// Decode parses a raw frame into an envelope. A frame that is not valid
// JSON or has no type is a protocol error; the connection stays open and
// the frame is dropped by the caller.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return &env, nil
}

// ParsePayload unmarshals an envelope's data into T and validates it.
func ParsePayload[T any](env *Envelope) (T, error) {
	var p T
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return p, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
	}
	if err := validate.Struct(&p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return p, nil
}

// Encode wraps a payload into an envelope frame with the current time.
func Encode(msgType string, data any) (core.Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	frame, err := json.Marshal(Envelope{
		Type:      msgType,
		Data:      raw,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return nil, err
	}
	return frame, nil
}

// Inbound payloads.

type AuthPayload struct {
	Token string `json:"token" validate:"required"`
}

type JoinRoomPayload struct {
	RoomID string `json:"roomId" validate:"required,max=64"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId" validate:"required,max=64"`
}

type ChatMessagePayload struct {
	RoomID  string `json:"roomId" validate:"required,max=64"`
	Message string `json:"message" validate:"required,max=4096"`
}

type TypingPayload struct {
	RoomID   string `json:"roomId" validate:"required,max=64"`
	IsTyping bool   `json:"isTyping"`
}

// Outbound payloads.

type WelcomePayload struct {
	Message string `json:"message"`
}

type AuthSuccessPayload struct {
	UserID string `json:"userId"`
}

type AuthFailedPayload struct {
	Error string `json:"error"`
}

type UserJoinedPayload struct {
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
}

type UserLeftPayload struct {
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
}

type ChatMessageOut struct {
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type TypingOut struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type PresenceUpdatePayload struct {
	Users []string `json:"users"`
}

type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

type ErrorPayload struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
