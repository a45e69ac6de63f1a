package natsadapter

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/wayfinder/internal/core/ports"
)

// Subscriber implements ports.SessionFeed using NATS JetStream.
type Subscriber struct {
	js nats.JetStreamContext
}

// NewSubscriber creates a subscriber sharing a NATS connection.
func NewSubscriber(conn *nats.Conn) (*Subscriber, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{js: js}, nil
}

// Follow delivers every message of one session to fn, starting with the
// last retained message of each kind. Calling stop removes the consumer.
func (s *Subscriber) Follow(ctx context.Context, sessionID string, fn func(ports.FeedMessage)) (func(), error) {
	sub, err := s.js.Subscribe(SessionSubject(sessionID, ">"), func(msg *nats.Msg) {
		fn(ports.FeedMessage{Kind: kindOf(msg.Subject), Data: msg.Data})
	},
		nats.DeliverLastPerSubject(),
		nats.AckNone(),
	)
	if err != nil {
		return nil, fmt.Errorf("follow session %s: %w", sessionID, err)
	}

	stop := func() { _ = sub.Unsubscribe() }
	go func() {
		<-ctx.Done()
		stop()
	}()
	return stop, nil
}
