package chat

import (
	"time"

	"marketchat/backend/internal/models"
)

// RoomView is the public shape of a room.
type RoomView struct {
	RoomToken     string             `json:"room_token"`
	ContextType   models.ContextType `json:"context_type"`
	ContextRefID  *int64             `json:"context_ref_id,omitempty"`
	Title         string             `json:"title"`
	CreatorID     int64              `json:"creator_id"`
	ParticipantID int64              `json:"participant_id"`
	Active        bool               `json:"active"`
	LastMessage   string             `json:"last_message,omitempty"`
	LastMessageAt *time.Time         `json:"last_message_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// RoomSummaryView is a room as listed for one user.
type RoomSummaryView struct {
	RoomView
	UnreadCount      int64          `json:"unread_count"`
	OtherParticipant models.Profile `json:"other_participant"`
}

// MessageView is the public shape of a message. Join notices are never stored
// and carry a zero MessageID.
type MessageView struct {
	MessageID uint               `json:"message_id,omitempty"`
	RoomToken string             `json:"room_token"`
	SenderID  int64              `json:"sender_id"`
	Body      string             `json:"body"`
	Kind      models.MessageKind `json:"kind"`
	Read      bool               `json:"read"`
	SentAt    time.Time          `json:"sent_at"`
}

// MessagePage is one page of a room's history, newest first.
type MessagePage struct {
	Items   []MessageView `json:"items"`
	Page    int           `json:"page"`
	Size    int           `json:"size"`
	HasNext bool          `json:"has_next"`
}

// MessageEvent is a stored message together with the participant who should
// get a private notification about it.
type MessageEvent struct {
	Message     MessageView
	RecipientID int64
}

// Frame converts the view into a live "message" frame.
func (v MessageView) Frame() models.Event {
	sentAt := v.SentAt
	return models.Event{
		Type:      models.TypeMessage,
		RoomToken: v.RoomToken,
		MessageID: v.MessageID,
		SenderID:  v.SenderID,
		Body:      v.Body,
		Kind:      v.Kind,
		SentAt:    &sentAt,
	}
}

func toRoomView(r *models.ChatRoom) RoomView {
	return RoomView{
		RoomToken:     r.RoomToken,
		ContextType:   r.ContextType,
		ContextRefID:  r.ContextRefID,
		Title:         r.Title,
		CreatorID:     r.CreatorID,
		ParticipantID: r.ParticipantID,
		Active:        r.IsActive,
		LastMessage:   r.LastMessage,
		LastMessageAt: r.LastMessageAt,
		CreatedAt:     r.CreatedAt,
	}
}

func toMessageView(roomToken string, m *models.ChatHistory) MessageView {
	return MessageView{
		MessageID: m.ID,
		RoomToken: roomToken,
		SenderID:  m.SenderID,
		Body:      m.Body,
		Kind:      m.Kind,
		Read:      m.IsRead,
		SentAt:    m.CreatedAt,
	}
}
