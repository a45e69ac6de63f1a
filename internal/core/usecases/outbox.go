package usecases

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/wayfinder/internal/core/domain"
	"github.com/samirrijal/wayfinder/internal/core/ports"
	"github.com/samirrijal/wayfinder/internal/pkg/metrics"
)

const (
	// NotifyTimeout bounds every observer and surface call.
	NotifyTimeout = 5 * time.Second

	// outboxLimit caps queued notifications per session. When full, the
	// oldest state snapshot is dropped; later snapshots supersede it.
	outboxLimit = 256
)

type notificationKind int

const (
	notifyState notificationKind = iota
	notifyFit
	notifyClosed
	notifyFlush
)

type notification struct {
	kind  notificationKind
	ctx   context.Context
	state domain.SessionState
	fit   domain.CameraFit
	ack   chan struct{}
}

// outbox delivers one session's notifications in order from a single
// goroutine, so a slow observer never runs under the session lock.
type outbox struct {
	sessionID string
	observer  ports.SessionObserver
	surface   ports.MapSurface

	mu      sync.Mutex
	queue   []notification
	closing bool
	wake    chan struct{}
	done    chan struct{}
}

func newOutbox(sessionID string, observer ports.SessionObserver, surface ports.MapSurface) *outbox {
	o := &outbox{
		sessionID: sessionID,
		observer:  observer,
		surface:   surface,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go o.run()
	return o
}

// push queues n without blocking. Nothing is accepted after the close notification.
func (o *outbox) push(n notification) {
	o.mu.Lock()
	if o.closing {
		o.mu.Unlock()
		if n.ack != nil {
			close(n.ack)
		}
		return
	}
	if n.kind == notifyClosed {
		o.closing = true
	}
	if len(o.queue) >= outboxLimit {
		o.dropOldestState()
	}
	o.queue = append(o.queue, n)
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// dropOldestState must be called with o.mu held.
func (o *outbox) dropOldestState() {
	for i, n := range o.queue {
		if n.kind == notifyState {
			o.queue = append(o.queue[:i], o.queue[i+1:]...)
			metrics.DroppedNotifications.Inc()
			slog.Default().Warn("observer too slow, dropped state notification", "session", o.sessionID)
			return
		}
	}
}

// flush waits until everything queued before the call has been delivered.
func (o *outbox) flush(ctx context.Context) error {
	ack := make(chan struct{})
	o.mu.Lock()
	closing := o.closing
	o.mu.Unlock()
	if closing {
		select {
		case <-o.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	o.push(notification{kind: notifyFlush, ack: ack})
	select {
	case <-ack:
		return nil
	case <-o.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *outbox) run() {
	defer close(o.done)
	for {
		o.mu.Lock()
		if len(o.queue) == 0 {
			o.mu.Unlock()
			<-o.wake
			continue
		}
		n := o.queue[0]
		o.queue = o.queue[1:]
		o.mu.Unlock()

		o.deliver(n)
		if n.kind == notifyClosed {
			return
		}
	}
}

func (o *outbox) deliver(n notification) {
	if n.kind == notifyFlush {
		close(n.ack)
		return
	}

	parent := context.Background()
	if n.ctx != nil {
		parent = context.WithoutCancel(n.ctx)
	}
	ctx, cancel := context.WithTimeout(parent, NotifyTimeout)
	defer cancel()

	var err error
	switch n.kind {
	case notifyState:
		if o.observer != nil {
			err = o.observer.SessionChanged(ctx, &n.state)
		}
	case notifyFit:
		if o.surface != nil {
			err = o.surface.FitBounds(ctx, o.sessionID, n.fit)
		}
	case notifyClosed:
		if o.observer != nil {
			err = o.observer.SessionClosed(ctx, o.sessionID)
		}
	}
	if err != nil {
		slog.Default().Debug("session notification not delivered", "session", o.sessionID, "kind", n.kind, "error", err)
	}
}
