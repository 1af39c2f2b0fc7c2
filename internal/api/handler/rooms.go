package handler

import (
	"net/http"

	"marketchat/backend/internal/chat"
	"marketchat/backend/internal/common"
	"marketchat/backend/internal/models"
	"marketchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

type createRoomRequest struct {
	ContextType    models.ContextType `json:"context_type" binding:"required,context_type"`
	ContextRefID   *int64             `json:"context_ref_id"`
	OtherUserID    int64              `json:"other_user_id" binding:"required,gt=0"`
	InitialMessage string             `json:"initial_message"`
}

type sendMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

type pageQuery struct {
	Page int `form:"page" binding:"min=0"`
	Size int `form:"size" binding:"min=0,max=100"`
}

// CreateRoom opens or reuses the room for a context and sends the optional
// first message.
func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, common.InvalidArgument("%v", err))
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	room, first, err := h.Rooms.CreateOrGetRoom(ctx, chat.CreateRoomRequest{
		ContextType:    req.ContextType,
		ContextRefID:   req.ContextRefID,
		RequesterID:    userIDFrom(c),
		OtherUserID:    req.OtherUserID,
		InitialMessage: req.InitialMessage,
	})
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	if first != nil && h.Hub != nil {
		h.Hub.BroadcastMessage(ctx, *first)
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) ListRooms(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	rooms, err := h.Rooms.ListRooms(ctx, userIDFrom(c))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func (h *Handler) SearchRooms(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	rooms, err := h.Rooms.SearchRooms(ctx, userIDFrom(c), c.Query("keyword"))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func (h *Handler) ListMessages(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		common.ErrorResponse(c, common.InvalidArgument("%v", err))
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	page, err := h.Rooms.ListMessages(ctx, c.Param("token"), userIDFrom(c), storage.PageRequest{Page: q.Page, Size: q.Size})
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, common.InvalidArgument("%v", err))
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	send := h.Rooms.SendMessage
	if h.Hub != nil {
		send = h.Hub.SendMessage
	}
	ev, err := send(ctx, c.Param("token"), userIDFrom(c), req.Body, models.KindChat)
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev.Message)
}

func (h *Handler) MarkRead(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.Rooms.MarkRead(ctx, c.Param("token"), userIDFrom(c)); err != nil {
		common.ErrorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// EnterRoom returns the join notice and broadcasts it to the room.
func (h *Handler) EnterRoom(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	notice, err := h.Rooms.EnterRoom(ctx, c.Param("token"), userIDFrom(c))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	if h.Hub != nil {
		h.Hub.BroadcastNotice(ctx, notice)
	}
	c.JSON(http.StatusOK, notice)
}

func (h *Handler) LeaveRoom(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	leave := h.Rooms.LeaveRoom
	if h.Hub != nil {
		leave = h.Hub.LeaveRoom
	}
	if _, err := leave(ctx, c.Param("token"), userIDFrom(c)); err != nil {
		common.ErrorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) UnreadCount(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	total, err := h.Rooms.TotalUnread(ctx, userIDFrom(c))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_unread": total})
}
