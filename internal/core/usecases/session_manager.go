package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/wayfinder/internal/core/domain"
	"github.com/samirrijal/wayfinder/internal/core/ports"
	"github.com/samirrijal/wayfinder/internal/pkg/metrics"
)

// SessionManager keeps the live sessions of this process.
type SessionManager struct {
	deps    SessionDeps
	idleTTL time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionManager creates a manager. A non-positive idleTTL disables eviction.
func NewSessionManager(deps SessionDeps, idleTTL time.Duration) *SessionManager {
	return &SessionManager{
		deps:     deps,
		idleTTL:  idleTTL,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create opens a session and runs location acquisition with sensor.
// A nil sensor is treated as a client without geolocation.
func (m *SessionManager) Create(ctx context.Context, sensor ports.Geolocator) (*Session, domain.SessionState) {
	s := NewSession(uuid.NewString(), m.deps)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	state := s.Locate(ctx, sensor)
	slog.Default().Info("session created", "session", s.ID(), "fallback", state.Advisory != "")
	return s, state
}

// Get returns the session with id.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return s, nil
}

// Delete closes and forgets the session with id.
func (m *SessionManager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	s.Close(ctx)
	return nil
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// EvictIdle closes sessions idle for longer than the TTL and returns how many.
func (m *SessionManager) EvictIdle(ctx context.Context) int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.RLock()
	candidates := make(map[string]*Session, len(m.sessions))
	for id, s := range m.sessions {
		candidates[id] = s
	}
	m.mu.RUnlock()

	// LastActive takes the session lock, so it is read outside m.mu.
	var idle []string
	for id, s := range candidates {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, id)
		}
	}

	var stale []*Session
	m.mu.Lock()
	for _, id := range idle {
		if s, ok := m.sessions[id]; ok && s == candidates[id] {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, s := range stale {
		s.Close(ctx)
	}
	if len(stale) > 0 {
		slog.Default().Info("evicted idle sessions", "count", len(stale))
	}
	return len(stale)
}

// Run evicts idle sessions every interval until ctx is done.
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) {
	if m.idleTTL <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.EvictIdle(ctx)
		}
	}
}

// CloseAll closes every session, used on shutdown. It waits for the close
// notifications to go out until ctx is done.
func (m *SessionManager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	metrics.ActiveSessions.Set(0)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close(ctx)
	}
	for _, s := range sessions {
		if err := s.Flush(ctx); err != nil {
			slog.Default().Warn("session notifications not drained before shutdown", "session", s.ID(), "error", err)
			return
		}
	}
}
