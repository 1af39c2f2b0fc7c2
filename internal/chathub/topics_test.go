package chathub_test

import (
	"context"
	"os"
	"testing"
	"time"

	"marketchat/backend/internal/chathub"
	"marketchat/backend/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopics(t *testing.T) {
	assert.Equal(t, chathub.Topic("room.abc"), chathub.RoomTopic("abc"))
	assert.Equal(t, chathub.Topic("user.42"), chathub.UserTopic(42))
	assert.Equal(t, "room", chathub.RoomTopic("abc").Kind())
	assert.Equal(t, "user", chathub.UserTopic(42).Kind())

	tests := []struct {
		in string
		ok bool
	}{
		{"room.abc", true},
		{"user.42", true},
		{"room.", false},
		{"user.x", false},
		{"lobby.1", false},
	}
	for _, tt := range tests {
		_, ok := chathub.ParseTopic(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestRedisBroker_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })

	// Arrange
	broker := chathub.NewRedisBroker(client, nil)
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	got := make(chan models.Event, 1)
	token := uuid.NewString()

	go func() {
		_ = broker.Listen(ctx, func(topic chathub.Topic, ev models.Event) {
			if topic == chathub.RoomTopic(token) {
				got <- ev
			}
		})
	}()

	// Act: publish until the subscription is live.
	deadline := time.After(3 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		require.NoError(t, broker.Publish(ctx, chathub.RoomTopic(token), models.Event{Type: models.TypeMessage, RoomToken: token, Body: "hi"}))
		select {
		case ev := <-got:
			// Assert
			assert.Equal(t, "hi", ev.Body)
			return
		case <-ticker.C:
		case <-deadline:
			t.Fatal("frame never arrived")
		}
	}
}
