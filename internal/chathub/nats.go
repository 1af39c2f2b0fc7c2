package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"marketchat/backend/internal/models"
	"marketchat/backend/internal/obs"

	"github.com/nats-io/nats.go"
)

const natsSubjectPrefix = "chat."

// NATSBroker fans frames out over core NATS. Each topic maps to the subject
// "chat.<topic>" and every instance subscribes to "chat.>".
type NATSBroker struct {
	conn *nats.Conn
	log  *slog.Logger
}

// NewNATSBroker connects to url and reconnects forever on failure.
func NewNATSBroker(url string, logger *slog.Logger) (*NATSBroker, error) {
	log := obs.Or(logger).With("component", "nats-broker")
	nc, err := nats.Connect(url,
		nats.Name("marketchat-gateway"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	log.Info("connected", "url", nc.ConnectedUrl())
	return &NATSBroker{conn: nc, log: log}, nil
}

func (b *NATSBroker) Publish(_ context.Context, topic Topic, ev models.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode frame for %s: %w", topic, err)
	}
	if err := b.conn.Publish(natsSubjectPrefix+string(topic), payload); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (b *NATSBroker) Listen(ctx context.Context, deliver func(Topic, models.Event)) error {
	sub, err := b.conn.Subscribe(natsSubjectPrefix+">", func(msg *nats.Msg) {
		topic, ok := ParseTopic(strings.TrimPrefix(msg.Subject, natsSubjectPrefix))
		if !ok {
			b.log.Warn("ignoring frame on unknown subject", "subject", msg.Subject)
			return
		}
		var ev models.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			b.log.Warn("ignoring undecodable frame", "subject", msg.Subject, "err", err)
			return
		}
		deliver(topic, ev)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	b.log.Info("listening for frames", "subject", natsSubjectPrefix+">")

	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats unsubscribe: %w", err)
	}
	return nil
}

func (b *NATSBroker) Close() error {
	return b.conn.Drain()
}
