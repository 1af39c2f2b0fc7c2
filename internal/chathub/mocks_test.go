package chathub_test

import (
	"context"
	"sync"

	"marketchat/backend/internal/chat"
	"marketchat/backend/internal/models"
	"marketchat/backend/internal/ratelimit"

	"github.com/stretchr/testify/mock"
)

// MockClient records frames instead of writing to a socket.
type MockClient struct {
	userID int64
	buffer int

	mu     sync.Mutex
	frames []models.Event
	closed bool
}

func newMockClient(userID int64) *MockClient {
	return &MockClient{userID: userID, buffer: 64}
}

func (c *MockClient) GetUserID() int64 { return c.userID }

func (c *MockClient) Send(ev models.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.frames) >= c.buffer {
		return false
	}
	c.frames = append(c.frames, ev)
	return true
}

func (c *MockClient) Run() {}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *MockClient) Frames() []models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Event(nil), c.frames...)
}

func (c *MockClient) FramesOf(frameType string) []models.Event {
	var out []models.Event
	for _, f := range c.Frames() {
		if f.Type == frameType {
			out = append(out, f)
		}
	}
	return out
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) SendMessage(ctx context.Context, roomToken string, senderID int64, body string, kind models.MessageKind) (chat.MessageEvent, error) {
	args := m.Called(ctx, roomToken, senderID, body, kind)
	return args.Get(0).(chat.MessageEvent), args.Error(1)
}

func (m *MockChatService) EnterRoom(ctx context.Context, roomToken string, userID int64) (chat.MessageView, error) {
	args := m.Called(ctx, roomToken, userID)
	return args.Get(0).(chat.MessageView), args.Error(1)
}

func (m *MockChatService) LeaveRoom(ctx context.Context, roomToken string, userID int64) (*chat.MessageEvent, error) {
	args := m.Called(ctx, roomToken, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.MessageEvent), args.Error(1)
}

func (m *MockChatService) TotalUnread(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error) {
	args := m.Called(ctx, identifier, rule)
	return args.Bool(0), args.Error(1)
}
