// Package chathub is the live gateway: it keeps the registry of websocket
// sessions, dispatches client frames to the chat service and fans events out
// through a broker so every instance reaches its own connections.
package chathub

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"marketchat/backend/internal/chat"
	"marketchat/backend/internal/common"
	"marketchat/backend/internal/metrics"
	"marketchat/backend/internal/models"
	"marketchat/backend/internal/obs"
	"marketchat/backend/internal/ratelimit"
)

// ChatService is the part of the chat core the gateway drives.
type ChatService interface {
	SendMessage(ctx context.Context, roomToken string, senderID int64, body string, kind models.MessageKind) (chat.MessageEvent, error)
	EnterRoom(ctx context.Context, roomToken string, userID int64) (chat.MessageView, error)
	LeaveRoom(ctx context.Context, roomToken string, userID int64) (*chat.MessageEvent, error)
	TotalUnread(ctx context.Context, userID int64) (int64, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error)
}

type Options struct {
	// Broker is nil for a single instance; frames are then delivered in process.
	Broker Broker
	// Limiter throttles send_message per user. Nil disables limiting.
	Limiter     RateLimiter
	MessageRule ratelimit.Rule
	// Timeout bounds the handling of one inbound frame.
	Timeout time.Duration
	Logger  *slog.Logger
}

type handlerFunc func(ctx context.Context, c Client, ev models.ClientEvent) error

// ManagerService owns the live sessions of this instance.
type ManagerService struct {
	Sessions *SessionRegistry

	chat     ChatService
	broker   Broker
	limiter  RateLimiter
	rule     ratelimit.Rule
	timeout  time.Duration
	handlers map[string]handlerFunc
	rooms    roomLocks
	log      *slog.Logger
}

func NewManagerService(svc ChatService, opts Options) *ManagerService {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	m := &ManagerService{
		Sessions: NewSessionRegistry(),
		chat:     svc,
		broker:   opts.Broker,
		limiter:  opts.Limiter,
		rule:     opts.MessageRule,
		timeout:  timeout,
		rooms:    roomLocks{held: make(map[string]*roomLock)},
		log:      obs.Or(opts.Logger).With("component", "chathub"),
	}
	m.handlers = map[string]handlerFunc{
		models.TypeSendMessage: m.handleSend,
		models.TypeEnterRoom:   m.handleEnter,
		models.TypeLeaveRoom:   m.handleLeave,
		models.TypeTyping:      m.handleTyping,
	}
	return m
}

// Run consumes frames from the broker until ctx is done. Without a broker it
// just waits.
func (m *ManagerService) Run(ctx context.Context) error {
	if m.broker == nil {
		<-ctx.Done()
		return nil
	}
	return m.broker.Listen(ctx, m.deliver)
}

// Register adds an authenticated connection.
func (m *ManagerService) Register(c Client) {
	if m.Sessions.Connect(c) {
		metrics.Connections.Inc()
		m.log.Debug("client registered", "user", c.GetUserID())
	}
}

// Unregister drops a connection and all its subscriptions. No leave notice is
// sent: a dropped connection is not a departure from the room.
func (m *ManagerService) Unregister(c Client) {
	if m.Sessions.Disconnect(c) {
		metrics.Connections.Dec()
		m.log.Debug("client unregistered", "user", c.GetUserID())
	}
	c.Close()
}

// Dispatch handles one raw frame from c. Failures are reported to c only.
func (m *ManagerService) Dispatch(c Client, raw []byte) {
	ev, err := models.ParseClientEvent(raw)
	if err != nil {
		m.sendError(c, "", "", common.InvalidArgument("%v", err))
		return
	}

	start := time.Now()
	defer func() {
		metrics.DispatchDuration.WithLabelValues(ev.Type).Observe(time.Since(start).Seconds())
	}()

	if ev.Type == models.TypePing {
		c.Send(models.Event{Type: models.TypePong})
		return
	}

	handle, ok := m.handlers[ev.Type]
	if !ok {
		m.sendError(c, ev.Type, ev.RoomToken, common.InvalidArgument("unsupported frame type %q", ev.Type))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := handle(ctx, c, ev); err != nil {
		m.sendError(c, ev.Type, ev.RoomToken, err)
	}
}

func (m *ManagerService) handleSend(ctx context.Context, c Client, ev models.ClientEvent) error {
	userID := c.GetUserID()
	if m.limiter != nil {
		// Errors fail open inside the limiter; ok is true then.
		ok, _ := m.limiter.Allow(ctx, strconv.FormatInt(userID, 10), m.rule)
		if !ok {
			c.Send(models.Event{
				Type:      models.TypeError,
				RoomToken: ev.RoomToken,
				Error:     &models.ErrorPayload{Code: "rate_limited", Message: "too many messages, slow down", RequestType: ev.Type},
			})
			return nil
		}
	}

	_, err := m.sendMessage(ctx, c, ev.RoomToken, userID, ev.Body, models.KindChat)
	return err
}

func (m *ManagerService) handleEnter(ctx context.Context, c Client, ev models.ClientEvent) error {
	notice, err := m.chat.EnterRoom(ctx, ev.RoomToken, c.GetUserID())
	if err != nil {
		return err
	}
	m.Sessions.Subscribe(c, ev.RoomToken)
	m.BroadcastNotice(ctx, notice)
	return nil
}

func (m *ManagerService) handleLeave(ctx context.Context, c Client, ev models.ClientEvent) error {
	if _, err := m.LeaveRoom(ctx, ev.RoomToken, c.GetUserID()); err != nil {
		return err
	}
	m.Sessions.Unsubscribe(c, ev.RoomToken)
	return nil
}

// handleTyping relays the indicator to the room. Only connections that
// entered the room may send it.
func (m *ManagerService) handleTyping(ctx context.Context, c Client, ev models.ClientEvent) error {
	if !m.Sessions.IsSubscribed(c, ev.RoomToken) {
		return common.Forbidden("enter room %s first", ev.RoomToken)
	}
	m.publish(ctx, RoomTopic(ev.RoomToken), models.Event{
		Type:      models.TypeTyping,
		RoomToken: ev.RoomToken,
		SenderID:  c.GetUserID(),
	})
	return nil
}

// SendMessage stores a message and broadcasts it. Stores and broadcasts to the
// same room are serialized, so local subscribers receive messages in the order
// they were committed.
func (m *ManagerService) SendMessage(ctx context.Context, roomToken string, senderID int64, body string, kind models.MessageKind) (chat.MessageEvent, error) {
	return m.sendMessage(ctx, nil, roomToken, senderID, body, kind)
}

// sendMessage subscribes origin to the room, when set, before the broadcast so
// the sending connection gets its own echo.
func (m *ManagerService) sendMessage(ctx context.Context, origin Client, roomToken string, senderID int64, body string, kind models.MessageKind) (chat.MessageEvent, error) {
	defer m.rooms.lock(roomToken)()

	ev, err := m.chat.SendMessage(ctx, roomToken, senderID, body, kind)
	if err != nil {
		return chat.MessageEvent{}, err
	}
	if origin != nil {
		m.Sessions.Subscribe(origin, roomToken)
	}
	m.BroadcastMessage(ctx, ev)
	return ev, nil
}

// LeaveRoom closes the room for userID and broadcasts the leave notice under
// the same ordering as SendMessage. A nil event means the room was already
// closed.
func (m *ManagerService) LeaveRoom(ctx context.Context, roomToken string, userID int64) (*chat.MessageEvent, error) {
	defer m.rooms.lock(roomToken)()

	ev, err := m.chat.LeaveRoom(ctx, roomToken, userID)
	if err != nil {
		return nil, err
	}
	if ev != nil {
		m.BroadcastMessage(ctx, *ev)
	}
	return ev, nil
}

// BroadcastMessage publishes a stored message to its room and a private
// notification with the refreshed badge count to the recipient.
func (m *ManagerService) BroadcastMessage(ctx context.Context, ev chat.MessageEvent) {
	m.publish(ctx, RoomTopic(ev.Message.RoomToken), ev.Message.Frame())
	if ev.RecipientID == 0 {
		return
	}

	note := ev.Message.Frame()
	note.Type = models.TypeNotification
	if total, err := m.chat.TotalUnread(ctx, ev.RecipientID); err != nil {
		m.log.Warn("unread count unavailable for notification", "user", ev.RecipientID, "err", err)
	} else {
		note.TotalUnread = &total
	}
	m.publish(ctx, UserTopic(ev.RecipientID), note)
}

// BroadcastNotice publishes a notice to the room only.
func (m *ManagerService) BroadcastNotice(ctx context.Context, notice chat.MessageView) {
	m.publish(ctx, RoomTopic(notice.RoomToken), notice.Frame())
}

func (m *ManagerService) publish(ctx context.Context, topic Topic, ev models.Event) {
	if m.broker == nil {
		m.deliver(topic, ev)
		return
	}
	if err := m.broker.Publish(ctx, topic, ev); err != nil {
		metrics.PublishErrors.WithLabelValues(topic.Kind()).Inc()
		m.log.Error("publish failed", "topic", topic, "err", err)
	}
}

// deliver pushes ev to the local connections behind topic. A connection whose
// buffer is full is dropped.
func (m *ManagerService) deliver(topic Topic, ev models.Event) {
	var targets []Client
	switch topic.Kind() {
	case "room":
		targets = m.Sessions.RoomClients(string(topic)[len(roomPrefix):])
	case "user":
		id, err := strconv.ParseInt(string(topic)[len(userPrefix):], 10, 64)
		if err != nil {
			return
		}
		targets = m.Sessions.UserClients(id)
	}

	for _, c := range targets {
		if !c.Send(ev) {
			metrics.FramesDropped.Inc()
			m.log.Warn("dropping slow client", "user", c.GetUserID(), "topic", topic)
			m.Unregister(c)
		}
	}
}

func (m *ManagerService) sendError(c Client, requestType, roomToken string, err error) {
	kind := common.KindOf(err)
	if kind == common.KindInternal {
		m.log.Error("frame failed", "type", requestType, "room", roomToken, "user", c.GetUserID(), "err", err)
	}
	c.Send(models.Event{
		Type:      models.TypeError,
		RoomToken: roomToken,
		Error: &models.ErrorPayload{
			Code:        string(kind),
			Message:     common.PublicMessage(err),
			RequestType: requestType,
		},
	})
}

// roomLocks hands out one mutex per room token. Entries are dropped once no
// goroutine holds or waits on them.
type roomLocks struct {
	mu   sync.Mutex
	held map[string]*roomLock
}

type roomLock struct {
	sync.Mutex
	refs int
}

// lock blocks until the room's mutex is held and returns its release func.
func (l *roomLocks) lock(roomToken string) func() {
	l.mu.Lock()
	rl, ok := l.held[roomToken]
	if !ok {
		rl = &roomLock{}
		l.held[roomToken] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.Lock()
	return func() {
		rl.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.held, roomToken)
		}
		l.mu.Unlock()
	}
}
