// Package handler exposes the chat core over HTTP and the websocket handshake.
package handler

import (
	"context"
	"log/slog"
	"time"

	"marketchat/backend/internal/chat"
	"marketchat/backend/internal/chathub"
	"marketchat/backend/internal/models"
	"marketchat/backend/internal/obs"
	"marketchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// RoomService is the chat core as seen by the REST endpoints.
type RoomService interface {
	CreateOrGetRoom(ctx context.Context, req chat.CreateRoomRequest) (chat.RoomView, *chat.MessageEvent, error)
	SendMessage(ctx context.Context, roomToken string, senderID int64, body string, kind models.MessageKind) (chat.MessageEvent, error)
	ListRooms(ctx context.Context, userID int64) ([]chat.RoomSummaryView, error)
	SearchRooms(ctx context.Context, userID int64, keyword string) ([]chat.RoomSummaryView, error)
	ListMessages(ctx context.Context, roomToken string, userID int64, page storage.PageRequest) (chat.MessagePage, error)
	MarkRead(ctx context.Context, roomToken string, userID int64) error
	EnterRoom(ctx context.Context, roomToken string, userID int64) (chat.MessageView, error)
	LeaveRoom(ctx context.Context, roomToken string, userID int64) (*chat.MessageEvent, error)
	TotalUnread(ctx context.Context, userID int64) (int64, error)
}

// Authenticator validates bearer credentials.
type Authenticator interface {
	ValidateCredential(token string) (int64, error)
}

// Handler holds the collaborators of every endpoint.
type Handler struct {
	Rooms RoomService
	Hub   *chathub.ManagerService
	Auth  Authenticator

	allowedOrigins []string
	timeout        time.Duration
	log            *slog.Logger
}

func NewHandler(rooms RoomService, hub *chathub.ManagerService, auth Authenticator, allowedOrigins []string, timeout time.Duration, logger *slog.Logger) *Handler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Handler{
		Rooms:          rooms,
		Hub:            hub,
		Auth:           auth,
		allowedOrigins: allowedOrigins,
		timeout:        timeout,
		log:            obs.Or(logger).With("component", "http"),
	}
}

// requestContext bounds the work of one request.
func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}
