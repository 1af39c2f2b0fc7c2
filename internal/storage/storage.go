// Package storage persists chat rooms and their messages with gorm.
package storage

import (
	"context"
	"log/slog"

	"marketchat/backend/internal/models"
	"marketchat/backend/internal/obs"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// RoomDirectory maps (context, user pair) to one canonical active room.
type RoomDirectory interface {
	FindOrCreate(ctx context.Context, contextType models.ContextType, refID *int64, requesterID, otherID int64) (*models.ChatRoom, bool, error)
	GetByToken(ctx context.Context, token string) (*models.ChatRoom, error)
	ListForUser(ctx context.Context, userID int64) ([]models.ChatRoom, error)
	Search(ctx context.Context, userID int64, keyword string) ([]models.ChatRoom, error)
	CloseRoom(ctx context.Context, token string) error
}

// MessageStore appends messages and keeps per-participant read state.
type MessageStore interface {
	Append(ctx context.Context, room *models.ChatRoom, senderID int64, body string, kind models.MessageKind) (*models.ChatHistory, error)
	Leave(ctx context.Context, room *models.ChatRoom, userID int64, notice string) (*models.ChatHistory, error)
	Page(ctx context.Context, room *models.ChatRoom, requesterID int64, page PageRequest) ([]models.ChatHistory, bool, error)
	CountUnreadForUser(ctx context.Context, userID int64) (int64, error)
	CountUnreadInRoom(ctx context.Context, room *models.ChatRoom, userID int64) (int64, error)
	CountUnreadByRoom(ctx context.Context, roomIDs []uint, userID int64) (map[uint]int64, error)
	MarkAllReadInRoom(ctx context.Context, room *models.ChatRoom, userID int64) (int64, error)
}

// TitleSource builds the display title of a room about to be created. It must
// not fail: lookups that go wrong degrade to a generic label.
type TitleSource interface {
	RoomTitle(ctx context.Context, contextType models.ContextType, refID *int64, creatorID, participantID int64) string
}

// TitleFunc adapts a function to TitleSource.
type TitleFunc func(ctx context.Context, contextType models.ContextType, refID *int64, creatorID, participantID int64) string

func (f TitleFunc) RoomTitle(ctx context.Context, contextType models.ContextType, refID *int64, creatorID, participantID int64) string {
	return f(ctx, contextType, refID, creatorID, participantID)
}

// PageRequest selects a page of messages, newest first. Page is zero based.
type PageRequest struct {
	Page int
	Size int
}

// Service implements RoomDirectory and MessageStore over one gorm handle.
type Service struct {
	DB     *gorm.DB
	Titles TitleSource

	log     *slog.Logger
	flights singleflight.Group
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, titles TitleSource, logger *slog.Logger) *Service {
	return &Service{
		DB:     db,
		Titles: titles,
		log:    obs.Or(logger).With("component", "storage"),
	}
}

var (
	_ RoomDirectory = (*Service)(nil)
	_ MessageStore  = (*Service)(nil)
)
