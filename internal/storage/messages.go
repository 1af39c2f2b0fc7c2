package storage

import (
	"context"

	"marketchat/backend/internal/common"
	"marketchat/backend/internal/config"
	"marketchat/backend/internal/metrics"
	"marketchat/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Append writes a message and moves the room's last-message pointer to it in
// one transaction. The room row is locked first, so appends to the same room
// are serialized and the pointer always names the latest message. A room that
// is closed by the time the lock is held rejects the message.
func (s *Service) Append(ctx context.Context, room *models.ChatRoom, senderID int64, body string, kind models.MessageKind) (*models.ChatHistory, error) {
	var msg *models.ChatHistory
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockRoom(tx, room.ID)
		if err != nil {
			return err
		}
		if !models.IsParticipant(*locked, senderID) {
			return common.Forbidden("user %d is not a participant of room %s", senderID, locked.RoomToken)
		}
		if !locked.IsActive {
			return common.Forbidden("room %s is closed", locked.RoomToken)
		}
		msg, err = appendTx(tx, locked, senderID, body, kind)
		return err
	})
	if err != nil {
		return nil, dbError(err, "append message to room %s", room.RoomToken)
	}

	room.LastMessage = msg.Body
	room.LastMessageAt = &msg.CreatedAt
	metrics.MessagesTotal.WithLabelValues(string(kind)).Inc()
	return msg, nil
}

// Leave writes the leave notice and deactivates the room in one transaction.
// A room that is already inactive is left untouched and a nil message is
// returned.
func (s *Service) Leave(ctx context.Context, room *models.ChatRoom, userID int64, notice string) (*models.ChatHistory, error) {
	var msg *models.ChatHistory
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockRoom(tx, room.ID)
		if err != nil {
			return err
		}
		if !models.IsParticipant(*locked, userID) {
			return common.Forbidden("user %d is not a participant of room %s", userID, locked.RoomToken)
		}
		if !locked.IsActive {
			return nil
		}

		msg, err = appendTx(tx, locked, userID, notice, models.KindLeave)
		if err != nil {
			return err
		}
		return tx.Model(&models.ChatRoom{}).
			Where("id = ?", locked.ID).
			Updates(map[string]interface{}{
				"is_active":       false,
				"active_pair_key": nil,
			}).Error
	})
	if err != nil {
		return nil, dbError(err, "leave room %s", room.RoomToken)
	}
	if msg == nil {
		return nil, nil
	}

	room.IsActive = false
	room.ActivePairKey = nil
	room.LastMessage = msg.Body
	room.LastMessageAt = &msg.CreatedAt
	metrics.MessagesTotal.WithLabelValues(string(models.KindLeave)).Inc()
	s.log.Info("room closed", "room", room.RoomToken, "user", userID)
	return msg, nil
}

func lockRoom(tx *gorm.DB, roomID uint) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", roomID).
		Take(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func appendTx(tx *gorm.DB, room *models.ChatRoom, senderID int64, body string, kind models.MessageKind) (*models.ChatHistory, error) {
	if !models.IsParticipant(*room, senderID) {
		return nil, common.Forbidden("user %d is not a participant of room %s", senderID, room.RoomToken)
	}

	sentAt := now()
	msg := &models.ChatHistory{
		RoomID:    room.ID,
		SenderID:  senderID,
		Body:      body,
		Kind:      kind,
		CreatedAt: sentAt,
	}
	if err := tx.Create(msg).Error; err != nil {
		return nil, err
	}

	err := tx.Model(&models.ChatRoom{}).
		Where("id = ?", room.ID).
		Updates(map[string]interface{}{
			"last_message":    body,
			"last_message_at": sentAt,
			"updated_at":      sentAt,
		}).Error
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Page returns one page of the room's messages, newest first, and whether an
// older page exists.
func (s *Service) Page(ctx context.Context, room *models.ChatRoom, requesterID int64, page PageRequest) ([]models.ChatHistory, bool, error) {
	if !models.IsParticipant(*room, requesterID) {
		return nil, false, common.Forbidden("user %d is not a participant of room %s", requesterID, room.RoomToken)
	}
	if page.Page < 0 || page.Page > config.MaxPage || page.Size <= 0 || page.Size > config.MaxPageSize {
		return nil, false, common.InvalidArgument("page must be within 0..%d and size within 1..%d", config.MaxPage, config.MaxPageSize)
	}

	var rows []models.ChatHistory
	err := s.DB.WithContext(ctx).
		Where("room_id = ?", room.ID).
		Order("created_at DESC").
		Order("id DESC").
		Offset(page.Page * page.Size).
		Limit(page.Size + 1).
		Find(&rows).Error
	if err != nil {
		return nil, false, dbError(err, "page messages of room %s", room.RoomToken)
	}

	hasNext := len(rows) > page.Size
	if hasNext {
		rows = rows[:page.Size]
	}
	return rows, hasNext, nil
}

// CountUnreadForUser sums unread messages from others over the user's active
// rooms.
func (s *Service) CountUnreadForUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.ChatHistory{}).
		Joins("JOIN chat_rooms ON chat_rooms.id = chat_histories.room_id").
		Where("chat_rooms.is_active = ?", true).
		Where("(chat_rooms.creator_id = ? OR chat_rooms.participant_id = ?)", userID, userID).
		Where("chat_histories.sender_id <> ? AND chat_histories.is_read = ?", userID, false).
		Count(&n).Error
	if err != nil {
		return 0, dbError(err, "count unread of user %d", userID)
	}
	return n, nil
}

func (s *Service) CountUnreadInRoom(ctx context.Context, room *models.ChatRoom, userID int64) (int64, error) {
	if !models.IsParticipant(*room, userID) {
		return 0, common.Forbidden("user %d is not a participant of room %s", userID, room.RoomToken)
	}

	var n int64
	err := s.unread(ctx, userID).Where("room_id = ?", room.ID).Count(&n).Error
	if err != nil {
		return 0, dbError(err, "count unread in room %s", room.RoomToken)
	}
	return n, nil
}

// CountUnreadByRoom returns unread counts keyed by room id. Rooms without
// unread messages are absent from the map.
func (s *Service) CountUnreadByRoom(ctx context.Context, roomIDs []uint, userID int64) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(roomIDs))
	if len(roomIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		RoomID uint
		Unread int64
	}
	err := s.unread(ctx, userID).
		Select("room_id, COUNT(*) AS unread").
		Where("room_id IN ?", roomIDs).
		Group("room_id").
		Scan(&rows).Error
	if err != nil {
		return nil, dbError(err, "count unread by room for user %d", userID)
	}
	for _, r := range rows {
		counts[r.RoomID] = r.Unread
	}
	return counts, nil
}

// MarkAllReadInRoom flags every message from the other participant as read and
// returns how many rows changed. Repeated calls change nothing.
func (s *Service) MarkAllReadInRoom(ctx context.Context, room *models.ChatRoom, userID int64) (int64, error) {
	if !models.IsParticipant(*room, userID) {
		return 0, common.Forbidden("user %d is not a participant of room %s", userID, room.RoomToken)
	}

	res := s.unread(ctx, userID).
		Where("room_id = ?", room.ID).
		Update("is_read", true)
	if res.Error != nil {
		return 0, dbError(res.Error, "mark room %s read", room.RoomToken)
	}
	return res.RowsAffected, nil
}

func (s *Service) unread(ctx context.Context, userID int64) *gorm.DB {
	return s.DB.WithContext(ctx).Model(&models.ChatHistory{}).
		Where("sender_id <> ? AND is_read = ?", userID, false)
}
