package chathub

import (
	"context"
	"strconv"
	"strings"

	"marketchat/backend/internal/models"
)

// Topic addresses a fan-out group: every connection following a room, or
// every connection of a user.
type Topic string

const (
	roomPrefix = "room."
	userPrefix = "user."
)

func RoomTopic(roomToken string) Topic { return Topic(roomPrefix + roomToken) }

func UserTopic(userID int64) Topic { return Topic(userPrefix + strconv.FormatInt(userID, 10)) }

// Kind is "room" or "user".
func (t Topic) Kind() string {
	kind, _, _ := strings.Cut(string(t), ".")
	return kind
}

// ParseTopic validates a topic received from a broker.
func ParseTopic(s string) (Topic, bool) {
	switch {
	case strings.HasPrefix(s, roomPrefix) && len(s) > len(roomPrefix):
		return Topic(s), true
	case strings.HasPrefix(s, userPrefix):
		if _, err := strconv.ParseInt(s[len(userPrefix):], 10, 64); err == nil {
			return Topic(s), true
		}
	}
	return "", false
}

// Broker carries frames between gateway instances. Every instance receives
// every publish and delivers it to its own local connections.
type Broker interface {
	Publish(ctx context.Context, topic Topic, ev models.Event) error
	// Listen blocks, calling deliver for each received frame, until ctx is
	// done or the subscription fails.
	Listen(ctx context.Context, deliver func(Topic, models.Event)) error
	Close() error
}
