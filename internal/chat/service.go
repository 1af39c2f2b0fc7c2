// Package chat orchestrates rooms and messages: it validates membership,
// writes messages, keeps unread counts and returns the events the gateway
// broadcasts.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"marketchat/backend/internal/common"
	"marketchat/backend/internal/config"
	"marketchat/backend/internal/localization"
	"marketchat/backend/internal/models"
	"marketchat/backend/internal/obs"
	"marketchat/backend/internal/storage"
)

// Identity resolves member profiles.
type Identity interface {
	Profile(ctx context.Context, userID int64) (models.Profile, error)
}

// ListingCatalog resolves the title of a listing.
type ListingCatalog interface {
	TitleFor(ctx context.Context, contextType models.ContextType, refID int64) (string, error)
}

// CreateRoomRequest opens or reuses the room between RequesterID and
// OtherUserID. A non-empty InitialMessage is sent by the requester.
type CreateRoomRequest struct {
	ContextType    models.ContextType
	ContextRefID   *int64
	RequesterID    int64
	OtherUserID    int64
	InitialMessage string
}

type Options struct {
	Locale string
	Logger *slog.Logger
}

// Service is the chat core used by both the HTTP handlers and the gateway.
type Service struct {
	rooms    storage.RoomDirectory
	messages storage.MessageStore
	identity Identity
	texts    *localization.Localizer
	lang     string
	log      *slog.Logger
}

func NewService(rooms storage.RoomDirectory, messages storage.MessageStore, identity Identity, texts *localization.Localizer, opts Options) *Service {
	lang := opts.Locale
	if lang == "" {
		lang = localization.FallbackLang
	}
	return &Service{
		rooms:    rooms,
		messages: messages,
		identity: identity,
		texts:    texts,
		lang:     lang,
		log:      obs.Or(opts.Logger).With("component", "chat"),
	}
}

// CreateOrGetRoom returns the canonical room for the context and pair. When an
// initial message is given it is appended and returned as an event to publish.
func (s *Service) CreateOrGetRoom(ctx context.Context, req CreateRoomRequest) (RoomView, *MessageEvent, error) {
	if !req.ContextType.Valid() {
		return RoomView{}, nil, common.InvalidArgument("unknown context type %q", req.ContextType)
	}
	refID := req.ContextRefID
	switch {
	case req.ContextType.RequiresRef() && (refID == nil || *refID <= 0):
		return RoomView{}, nil, common.InvalidArgument("context %s needs a listing reference", req.ContextType)
	case req.ContextType == models.ContextNone:
		refID = nil
	}
	if req.OtherUserID <= 0 {
		return RoomView{}, nil, common.InvalidArgument("other user is required")
	}
	if req.RequesterID == req.OtherUserID {
		return RoomView{}, nil, common.InvalidArgument("cannot open a chat with yourself")
	}

	var body string
	if strings.TrimSpace(req.InitialMessage) != "" {
		var err error
		if body, err = validateBody(req.InitialMessage); err != nil {
			return RoomView{}, nil, err
		}
	}

	room, _, err := s.rooms.FindOrCreate(ctx, req.ContextType, refID, req.RequesterID, req.OtherUserID)
	if err != nil {
		return RoomView{}, nil, common.Wrap(err, "open room")
	}
	if body == "" {
		return toRoomView(room), nil, nil
	}

	msg, err := s.messages.Append(ctx, room, req.RequesterID, body, models.KindChat)
	if err != nil {
		return RoomView{}, nil, common.Wrap(err, "send initial message to room %s", room.RoomToken)
	}
	ev := s.event(room, msg)
	return toRoomView(room), &ev, nil
}

// SendMessage appends a message to an active room the sender belongs to.
func (s *Service) SendMessage(ctx context.Context, roomToken string, senderID int64, body string, kind models.MessageKind) (MessageEvent, error) {
	if kind != models.KindChat && kind != models.KindSystem {
		return MessageEvent{}, common.InvalidArgument("message kind %q cannot be sent", kind)
	}
	body, err := validateBody(body)
	if err != nil {
		return MessageEvent{}, err
	}

	room, err := s.participantRoom(ctx, roomToken, senderID)
	if err != nil {
		return MessageEvent{}, err
	}
	if !room.IsActive {
		return MessageEvent{}, common.Forbidden("room %s is closed", roomToken)
	}

	msg, err := s.messages.Append(ctx, room, senderID, body, kind)
	if err != nil {
		return MessageEvent{}, common.Wrap(err, "send to room %s", roomToken)
	}
	return s.event(room, msg), nil
}

// ListRooms returns the user's active rooms with unread counts.
func (s *Service) ListRooms(ctx context.Context, userID int64) ([]RoomSummaryView, error) {
	rooms, err := s.rooms.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, userID, rooms)
}

// SearchRooms filters the user's rooms by keyword over title and last message.
func (s *Service) SearchRooms(ctx context.Context, userID int64, keyword string) ([]RoomSummaryView, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, common.InvalidArgument("keyword is required")
	}
	rooms, err := s.rooms.Search(ctx, userID, keyword)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, userID, rooms)
}

// ListMessages returns a page of history and marks the user's side read.
func (s *Service) ListMessages(ctx context.Context, roomToken string, userID int64, page storage.PageRequest) (MessagePage, error) {
	if page.Size == 0 {
		page.Size = config.DefaultPageSize
	}

	room, err := s.participantRoom(ctx, roomToken, userID)
	if err != nil {
		return MessagePage{}, err
	}

	rows, hasNext, err := s.messages.Page(ctx, room, userID, page)
	if err != nil {
		return MessagePage{}, common.Wrap(err, "list messages of room %s", roomToken)
	}
	if _, err := s.messages.MarkAllReadInRoom(ctx, room, userID); err != nil {
		return MessagePage{}, common.Wrap(err, "mark room %s read", roomToken)
	}

	items := make([]MessageView, 0, len(rows))
	for i := range rows {
		items = append(items, toMessageView(room.RoomToken, &rows[i]))
	}
	return MessagePage{Items: items, Page: page.Page, Size: page.Size, HasNext: hasNext}, nil
}

func (s *Service) MarkRead(ctx context.Context, roomToken string, userID int64) error {
	room, err := s.participantRoom(ctx, roomToken, userID)
	if err != nil {
		return err
	}
	if _, err := s.messages.MarkAllReadInRoom(ctx, room, userID); err != nil {
		return common.Wrap(err, "mark room %s read", roomToken)
	}
	return nil
}

// EnterRoom marks the room read for the user and returns the join notice to
// broadcast. The notice is not stored.
func (s *Service) EnterRoom(ctx context.Context, roomToken string, userID int64) (MessageView, error) {
	room, err := s.participantRoom(ctx, roomToken, userID)
	if err != nil {
		return MessageView{}, err
	}
	if _, err := s.messages.MarkAllReadInRoom(ctx, room, userID); err != nil {
		return MessageView{}, common.Wrap(err, "mark room %s read", roomToken)
	}

	return MessageView{
		RoomToken: room.RoomToken,
		SenderID:  userID,
		Body:      s.texts.Format(s.lang, "notice.join", s.displayName(ctx, userID)),
		Kind:      models.KindJoin,
		SentAt:    time.Now().UTC(),
	}, nil
}

// LeaveRoom writes the leave notice and closes the room. It returns nil when
// the room was already closed.
func (s *Service) LeaveRoom(ctx context.Context, roomToken string, userID int64) (*MessageEvent, error) {
	room, err := s.participantRoom(ctx, roomToken, userID)
	if err != nil {
		return nil, err
	}

	notice := s.texts.Format(s.lang, "notice.leave", s.displayName(ctx, userID))
	msg, err := s.messages.Leave(ctx, room, userID, notice)
	if err != nil {
		return nil, common.Wrap(err, "leave room %s", roomToken)
	}
	if msg == nil {
		return nil, nil
	}
	ev := s.event(room, msg)
	return &ev, nil
}

// TotalUnread is the badge count over all active rooms of the user.
func (s *Service) TotalUnread(ctx context.Context, userID int64) (int64, error) {
	return s.messages.CountUnreadForUser(ctx, userID)
}

func (s *Service) participantRoom(ctx context.Context, roomToken string, userID int64) (*models.ChatRoom, error) {
	room, err := s.rooms.GetByToken(ctx, roomToken)
	if err != nil {
		return nil, common.Wrap(err, "room %s", roomToken)
	}
	if !models.IsParticipant(*room, userID) {
		return nil, common.Forbidden("user %d is not a participant of room %s", userID, roomToken)
	}
	return room, nil
}

func (s *Service) summarize(ctx context.Context, userID int64, rooms []models.ChatRoom) ([]RoomSummaryView, error) {
	ids := make([]uint, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	counts, err := s.messages.CountUnreadByRoom(ctx, ids, userID)
	if err != nil {
		return nil, err
	}

	out := make([]RoomSummaryView, 0, len(rooms))
	for i := range rooms {
		room := &rooms[i]
		other, _ := models.OtherParticipant(*room, userID)
		out = append(out, RoomSummaryView{
			RoomView:         toRoomView(room),
			UnreadCount:      counts[room.ID],
			OtherParticipant: s.profile(ctx, other),
		})
	}
	return out, nil
}

// profile never fails; an unknown user gets a placeholder name.
func (s *Service) profile(ctx context.Context, userID int64) models.Profile {
	if s.identity != nil {
		p, err := s.identity.Profile(ctx, userID)
		if err == nil && p.DisplayName != "" {
			return p
		}
		if err != nil && !common.IsKind(err, common.KindNotFound) {
			s.log.Warn("profile lookup failed", "user", userID, "err", err)
		}
	}
	return models.Profile{UserID: userID, DisplayName: s.texts.GetString(s.lang, "user.unknown")}
}

func (s *Service) displayName(ctx context.Context, userID int64) string {
	return s.profile(ctx, userID).DisplayName
}

func (s *Service) event(room *models.ChatRoom, msg *models.ChatHistory) MessageEvent {
	other, _ := models.OtherParticipant(*room, msg.SenderID)
	return MessageEvent{Message: toMessageView(room.RoomToken, msg), RecipientID: other}
}

func validateBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", common.InvalidArgument("message body is empty")
	}
	if !utf8.ValidString(body) {
		return "", common.InvalidArgument("message body is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(body); n > config.MaxMessageRunes {
		return "", common.InvalidArgument("message body has %d characters, limit is %d", n, config.MaxMessageRunes)
	}
	return body, nil
}
