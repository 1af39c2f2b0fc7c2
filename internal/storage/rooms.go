package storage

import (
	"context"
	"strings"
	"time"

	"marketchat/backend/internal/common"
	"marketchat/backend/internal/metrics"
	"marketchat/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// flightTimeout bounds one shared find-or-create round trip.
const flightTimeout = 10 * time.Second

// FindOrCreate returns the active room for the context and the unordered user
// pair, creating it when none exists. Concurrent callers, in this process or
// another, converge on one row: the unique (context_key, active_pair_key)
// index picks the winner and losers re-read it. created reports whether this
// flight inserted the row.
func (s *Service) FindOrCreate(ctx context.Context, contextType models.ContextType, refID *int64, requesterID, otherID int64) (*models.ChatRoom, bool, error) {
	if requesterID == otherID {
		return nil, false, common.InvalidArgument("cannot open a chat with yourself")
	}

	contextKey := models.ContextKey(contextType, refID)
	pairKey := models.PairKey(requesterID, otherID)

	type flight struct {
		room    models.ChatRoom
		created bool
	}
	// The flight is shared, so it runs detached from any one caller's
	// cancellation. Each caller still stops waiting when its own ctx ends.
	ch := s.flights.DoChan(contextKey+"|"+pairKey, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		room, created, err := s.findOrCreate(flightCtx, contextType, refID, contextKey, pairKey, requesterID, otherID)
		if err != nil {
			return nil, err
		}
		return flight{room: *room, created: created}, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, common.Internal(ctx.Err(), "create room %s", contextKey)
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		f := res.Val.(flight)
		room := f.room
		return &room, f.created, nil
	}
}

func (s *Service) findOrCreate(ctx context.Context, contextType models.ContextType, refID *int64, contextKey, pairKey string, requesterID, otherID int64) (*models.ChatRoom, bool, error) {
	room, err := s.findActive(ctx, contextKey, pairKey)
	if err == nil {
		return room, false, nil
	}
	if !common.IsKind(err, common.KindNotFound) {
		return nil, false, err
	}

	title := ""
	if s.Titles != nil {
		title = s.Titles.RoomTitle(ctx, contextType, refID, requesterID, otherID)
	}

	activeKey := pairKey
	createdAt := now()
	room = &models.ChatRoom{
		ContextType:   contextType,
		ContextRefID:  refID,
		ContextKey:    contextKey,
		PairKey:       pairKey,
		ActivePairKey: &activeKey,
		CreatorID:     requesterID,
		ParticipantID: otherID,
		Title:         title,
		IsActive:      true,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}

	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(room)
	if res.Error != nil {
		return nil, false, dbError(res.Error, "create room %s", contextKey)
	}
	if res.RowsAffected == 0 {
		// Lost the race to another writer.
		winner, err := s.findActive(ctx, contextKey, pairKey)
		return winner, false, err
	}

	metrics.RoomsCreated.Inc()
	s.log.Info("room created", "room", room.RoomToken, "context", contextKey, "creator", requesterID, "participant", otherID)
	return room, true, nil
}

func (s *Service) findActive(ctx context.Context, contextKey, pairKey string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.DB.WithContext(ctx).
		Where("context_key = ? AND active_pair_key = ?", contextKey, pairKey).
		Take(&room).Error
	if err != nil {
		return nil, dbError(err, "no active room for %s", contextKey)
	}
	return &room, nil
}

// GetByToken loads a room regardless of its active flag.
func (s *Service) GetByToken(ctx context.Context, token string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.DB.WithContext(ctx).Where("room_token = ?", token).Take(&room).Error
	if err != nil {
		return nil, dbError(err, "room %s not found", token)
	}
	return &room, nil
}

// ListForUser returns the user's active rooms, most recent activity first.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	err := s.userRooms(ctx, userID).Find(&rooms).Error
	if err != nil {
		return nil, dbError(err, "list rooms of user %d", userID)
	}
	return rooms, nil
}

// Search matches keyword case-insensitively against the title and the last
// message of the user's active rooms.
func (s *Service) Search(ctx context.Context, userID int64, keyword string) ([]models.ChatRoom, error) {
	pattern := "%" + escapeLike(strings.ToLower(keyword)) + "%"

	var rooms []models.ChatRoom
	err := s.userRooms(ctx, userID).
		Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(last_message) LIKE ? ESCAPE '\')`, pattern, pattern).
		Find(&rooms).Error
	if err != nil {
		return nil, dbError(err, "search rooms of user %d", userID)
	}
	return rooms, nil
}

// CloseRoom deactivates a room without writing a notice.
func (s *Service) CloseRoom(ctx context.Context, token string) error {
	res := s.DB.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("room_token = ?", token).
		Updates(map[string]interface{}{
			"is_active":       false,
			"active_pair_key": nil,
			"updated_at":      now(),
		})
	if res.Error != nil {
		return dbError(res.Error, "close room %s", token)
	}
	if res.RowsAffected == 0 {
		return common.NotFound("room %s not found", token)
	}
	return nil
}

func (s *Service) userRooms(ctx context.Context, userID int64) *gorm.DB {
	return s.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Where("(creator_id = ? OR participant_id = ?)", userID, userID).
		Order("COALESCE(last_message_at, created_at) DESC").
		Order("id DESC")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
