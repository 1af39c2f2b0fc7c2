package models

import "time"

// ChatHistory is one persisted message of a room.
type ChatHistory struct {
	ID uint `gorm:"primaryKey"`
	// RoomID references ChatRoom.ID.
	RoomID   uint        `gorm:"not null;index:idx_chat_histories_room_sent,priority:1;index:idx_chat_histories_unread,priority:1,where:is_read = false"`
	SenderID int64       `gorm:"not null;index;index:idx_chat_histories_unread,priority:2,where:is_read = false"`
	Body     string      `gorm:"type:text;not null"`
	Kind     MessageKind `gorm:"type:varchar(16);not null"`
	// IsRead is relative to the participant who did not send the message.
	IsRead bool `gorm:"not null;default:false"`
	// CreatedAt is the sent timestamp.
	CreatedAt time.Time `gorm:"not null;index:idx_chat_histories_room_sent,priority:2"`
}
