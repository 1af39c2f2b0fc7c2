package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatRoom is a two-party conversation, optionally scoped to a listing.
type ChatRoom struct {
	ID uint `gorm:"primaryKey"`
	// RoomToken is the opaque public identifier (UUID).
	RoomToken string `gorm:"type:varchar(36);not null;uniqueIndex"`

	ContextType  ContextType `gorm:"type:varchar(32);not null"`
	ContextRefID *int64
	// ContextKey and ActivePairKey form the uniqueness scope of active rooms.
	// ActivePairKey is NULL once the room is closed, which frees the slot.
	ContextKey    string  `gorm:"type:varchar(64);not null;uniqueIndex:idx_chat_rooms_active_pair,priority:1"`
	PairKey       string  `gorm:"type:varchar(64);not null;index"`
	ActivePairKey *string `gorm:"type:varchar(64);uniqueIndex:idx_chat_rooms_active_pair,priority:2"`

	CreatorID     int64  `gorm:"not null;index;check:chk_chat_rooms_distinct_users,creator_id <> participant_id"`
	ParticipantID int64  `gorm:"not null;index"`
	Title         string `gorm:"type:varchar(255);not null"`
	IsActive      bool   `gorm:"not null"`

	LastMessage   string `gorm:"type:text"`
	LastMessageAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BeforeCreate assigns a room token when none was set.
func (r *ChatRoom) BeforeCreate(tx *gorm.DB) (err error) {
	if r.RoomToken == "" {
		r.RoomToken = uuid.New().String()
	}
	return
}

// IsParticipant reports whether userID is the creator or the participant.
func IsParticipant(room ChatRoom, userID int64) bool {
	return room.CreatorID == userID || room.ParticipantID == userID
}

// OtherParticipant returns the counterpart of userID in room. ok is false when
// userID is not a participant.
func OtherParticipant(room ChatRoom, userID int64) (other int64, ok bool) {
	switch userID {
	case room.CreatorID:
		return room.ParticipantID, true
	case room.ParticipantID:
		return room.CreatorID, true
	}
	return 0, false
}
