package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Client -> server frame types.
const (
	TypeSendMessage = "send_message"
	TypeEnterRoom   = "enter_room"
	TypeLeaveRoom   = "leave_room"
	TypeTyping      = "typing"
	TypePing        = "ping"
)

// Server -> client frame types. TypeTyping is relayed as is.
const (
	TypeMessage      = "message"
	TypeNotification = "notification"
	TypeError        = "error"
	TypePong         = "pong"
)

// ClientEvent is a frame received on a live connection.
type ClientEvent struct {
	Type      string `json:"type"`
	RoomToken string `json:"room_token,omitempty"`
	Body      string `json:"body,omitempty"`
}

// ParseClientEvent decodes and shape-checks a client frame.
func ParseClientEvent(data []byte) (ClientEvent, error) {
	var ev ClientEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ClientEvent{}, fmt.Errorf("decode frame: %w", err)
	}
	ev.Type = strings.TrimSpace(ev.Type)
	if ev.Type == "" {
		return ClientEvent{}, fmt.Errorf("missing \"type\" field")
	}
	if ev.Type != TypePing && strings.TrimSpace(ev.RoomToken) == "" {
		return ClientEvent{}, fmt.Errorf("%s: missing \"room_token\" field", ev.Type)
	}
	return ev, nil
}

// ErrorPayload describes a failed client action.
type ErrorPayload struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	RequestType string `json:"request_type,omitempty"`
}

// Event is a frame pushed to live connections, and the payload carried over
// the pub/sub broker.
type Event struct {
	Type      string      `json:"type"`
	RoomToken string      `json:"room_token,omitempty"`
	MessageID uint        `json:"message_id,omitempty"`
	SenderID  int64       `json:"sender_id,omitempty"`
	Body      string      `json:"body,omitempty"`
	Kind      MessageKind `json:"kind,omitempty"`
	SentAt    *time.Time  `json:"sent_at,omitempty"`
	// TotalUnread is set on private notifications for badge updates.
	TotalUnread *int64        `json:"total_unread,omitempty"`
	Error       *ErrorPayload `json:"error,omitempty"`
}
