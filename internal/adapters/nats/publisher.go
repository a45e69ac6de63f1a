package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/wayfinder/internal/core/domain"
)

const (
	// StreamName holds the latest message per session subject so a browser
	// that connects late still receives the current state.
	StreamName = "WAYFINDER_SESSIONS"

	subjectRoot = "wayfinder.session"

	KindState  = "state"
	KindCamera = "camera"
	KindClosed = "closed"

	// publishTimeout applies when the caller's context carries no deadline.
	publishTimeout = 5 * time.Second
)

// SessionSubject returns the subject for one kind of session message.
// Pass ">" as kind to match all of them.
func SessionSubject(sessionID, kind string) string {
	return subjectRoot + "." + sessionID + "." + kind
}

func kindOf(subject string) string {
	if i := strings.LastIndexByte(subject, '.'); i >= 0 {
		return subject[i+1:]
	}
	return subject
}

// CameraCommand is the payload sent on the camera subject.
type CameraCommand struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id"`
	Fit       domain.CameraFit `json:"fit"`
}

// Publisher implements ports.SessionObserver and ports.MapSurface using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher enables JetStream on conn and ensures the session stream exists.
func NewPublisher(conn *nats.Conn) (*Publisher, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:              StreamName,
		Subjects:          []string{subjectRoot + ".>"},
		Retention:         nats.LimitsPolicy,
		MaxMsgsPerSubject: 1,
		MaxAge:            1 * time.Hour,
		Storage:           nats.MemoryStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, so try an update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// SessionChanged publishes the state snapshot.
func (p *Publisher) SessionChanged(ctx context.Context, state *domain.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return p.publish(ctx, SessionSubject(state.ID, KindState), data)
}

// SessionClosed tells followers the session is gone.
func (p *Publisher) SessionClosed(ctx context.Context, sessionID string) error {
	data, err := json.Marshal(map[string]string{"type": KindClosed, "session_id": sessionID})
	if err != nil {
		return err
	}
	return p.publish(ctx, SessionSubject(sessionID, KindClosed), data)
}

// FitBounds publishes a camera command for the session's map.
func (p *Publisher) FitBounds(ctx context.Context, sessionID string, fit domain.CameraFit) error {
	data, err := json.Marshal(CameraCommand{Type: "fit_bounds", SessionID: sessionID, Fit: fit})
	if err != nil {
		return err
	}
	return p.publish(ctx, SessionSubject(sessionID, KindCamera), data)
}

// publish waits for the stream ack, never longer than publishTimeout.
func (p *Publisher) publish(ctx context.Context, subject string, data []byte) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, publishTimeout)
		defer cancel()
	}
	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection shared by the publisher and the WebSocket relay.
func RawConn(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("wayfinder"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}
