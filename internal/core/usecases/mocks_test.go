package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/samirrijal/wayfinder/internal/core/domain"
)

// --- Mock Geolocator ---

type mockGeolocator struct {
	currentPositionFn func(ctx context.Context) (domain.GeoPoint, error)
}

func (m *mockGeolocator) CurrentPosition(ctx context.Context) (domain.GeoPoint, error) {
	if m.currentPositionFn != nil {
		return m.currentPositionFn(ctx)
	}
	return domain.GeoPoint{}, errors.New("no position")
}

func fixedPosition(p domain.GeoPoint) *mockGeolocator {
	return &mockGeolocator{currentPositionFn: func(context.Context) (domain.GeoPoint, error) { return p, nil }}
}

// --- Mock Geocoder ---

type mockGeocoder struct {
	mu        sync.Mutex
	calls     int
	forwardFn func(ctx context.Context, query string, proximity domain.GeoPoint, limit int) ([]domain.Place, error)
}

func (m *mockGeocoder) Forward(ctx context.Context, query string, proximity domain.GeoPoint, limit int) ([]domain.Place, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.forwardFn != nil {
		return m.forwardFn(ctx, query, proximity, limit)
	}
	return nil, nil
}

func (m *mockGeocoder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Mock Router ---

type routeCall struct {
	Origin, Destination domain.GeoPoint
}

type mockRouter struct {
	mu           sync.Mutex
	calls        []routeCall
	directionsFn func(ctx context.Context, origin, destination domain.GeoPoint) ([]domain.Route, error)
}

func (m *mockRouter) Directions(ctx context.Context, origin, destination domain.GeoPoint) ([]domain.Route, error) {
	m.mu.Lock()
	m.calls = append(m.calls, routeCall{origin, destination})
	m.mu.Unlock()
	if m.directionsFn != nil {
		return m.directionsFn(ctx, origin, destination)
	}
	return []domain.Route{domain.NewRoute([]domain.GeoPoint{origin, destination}, "")}, nil
}

func (m *mockRouter) Calls() []routeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]routeCall(nil), m.calls...)
}

// --- Mock Cache ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Recording observer and surface ---

type recorder struct {
	mu     sync.Mutex
	states []domain.SessionState
	fits   []domain.CameraFit
	closed []string
}

func (r *recorder) SessionChanged(ctx context.Context, state *domain.SessionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, *state)
	return nil
}

func (r *recorder) SessionClosed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, id)
	return nil
}

func (r *recorder) FitBounds(ctx context.Context, id string, fit domain.CameraFit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fits = append(r.fits, fit)
	return nil
}

func (r *recorder) States() []domain.SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.SessionState(nil), r.states...)
}

func (r *recorder) Fits() []domain.CameraFit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.CameraFit(nil), r.fits...)
}

func (r *recorder) Closed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.closed...)
}

// --- Observer and surface that hang until released ---

type stuckObserver struct {
	release chan struct{}
	calls   chan string
}

func newStuckObserver() *stuckObserver {
	return &stuckObserver{release: make(chan struct{}), calls: make(chan string, 64)}
}

func (o *stuckObserver) hang(ctx context.Context, call string) error {
	select {
	case o.calls <- call:
	default:
	}
	select {
	case <-o.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *stuckObserver) SessionChanged(ctx context.Context, state *domain.SessionState) error {
	return o.hang(ctx, "state")
}

func (o *stuckObserver) SessionClosed(ctx context.Context, id string) error {
	return o.hang(ctx, "closed")
}

func (o *stuckObserver) FitBounds(ctx context.Context, id string, fit domain.CameraFit) error {
	return o.hang(ctx, "fit")
}
