package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samirrijal/wayfinder/internal/core/domain"
	"github.com/samirrijal/wayfinder/internal/core/ports"
	"github.com/samirrijal/wayfinder/internal/pkg/geospatial"
	"github.com/samirrijal/wayfinder/internal/pkg/metrics"
)

const (
	AdvisorySearchFailed = "Failed to search for location"
	AdvisoryRouteFailed  = "Failed to calculate route"
)

// SessionDeps are the collaborators shared by every session.
// Observer and Surface are optional.
type SessionDeps struct {
	Locations *LocationService
	Search    *SearchService
	Routes    *RouteService
	Observer  ports.SessionObserver
	Surface   ports.MapSurface
}

// Session is the controller for one widget instance. All state changes go
// through its methods and are published to the observer in order, from a
// per-session outbox that never runs under the session lock.
type Session struct {
	id   string
	deps SessionDeps
	out  *outbox

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	phase          domain.Phase
	current        *domain.Place
	destination    *domain.Place
	query          string
	results        []domain.Place
	resultsVisible bool
	route          *domain.Route
	view           *ViewController
	locating       bool
	routing        bool
	advisory       string
	hover          domain.HoverTarget
	routeGen       uint64
	searchGen      uint64
	task           *RouteTask
	updatedAt      time.Time
	lastActive     time.Time
	closed         bool
}

// NewSession creates an idle session with the initial camera.
func NewSession(id string, deps SessionDeps) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	s := &Session{
		id:         id,
		deps:       deps,
		ctx:        ctx,
		cancel:     cancel,
		phase:      domain.PhaseIdle,
		view:       NewViewController(InitialView),
		updatedAt:  now,
		lastActive: now,
	}
	if deps.Observer != nil || deps.Surface != nil {
		s.out = newOutbox(id, deps.Observer, deps.Surface)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// LastActive returns the time of the most recent call into the session.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Locate runs the one-shot location acquisition. Loading is raised while the
// sensor is consulted and cleared exactly once afterwards.
func (s *Session) Locate(ctx context.Context, sensor ports.Geolocator) domain.SessionState {
	s.mu.Lock()
	s.touch()
	s.locating = true
	s.changed(ctx)
	s.mu.Unlock()

	acq := s.deps.Locations.Locate(ctx, sensor)

	s.mu.Lock()
	defer s.mu.Unlock()
	place := acq.Place
	s.current = &place
	if acq.Advisory != "" {
		s.advisory = acq.Advisory
	}
	s.locating = false
	return s.changed(ctx)
}

// Search geocodes query near the current location. A blank query is a no-op.
// On failure the previous results stay as they were and an advisory is set.
func (s *Session) Search(ctx context.Context, query string) (domain.SessionState, error) {
	s.mu.Lock()
	s.touch()
	if strings.TrimSpace(query) == "" {
		defer s.mu.Unlock()
		return s.snapshot(), nil
	}
	s.query = query
	s.searchGen++
	gen := s.searchGen
	var near *domain.GeoPoint
	if s.current != nil {
		loc := s.current.Location
		near = &loc
	}
	s.mu.Unlock()

	places, err := s.deps.Search.Search(ctx, query, near)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.searchGen {
		return s.snapshot(), nil
	}
	if err != nil {
		if errors.Is(err, domain.ErrEmptyQuery) {
			return s.snapshot(), nil
		}
		slog.Default().Warn("search failed", "session", s.id, "error", err)
		s.advisory = AdvisorySearchFailed
		return s.changed(ctx), err
	}
	s.results = places
	s.resultsVisible = true
	return s.changed(ctx), nil
}

// DismissResults hides the result list without touching the input text.
func (s *Session) DismissResults(ctx context.Context) domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if !s.resultsVisible {
		return s.snapshot()
	}
	s.resultsVisible = false
	return s.changed(ctx)
}

// SelectDestination picks the result at index and requests a route to it.
func (s *Session) SelectDestination(ctx context.Context, index int) (*RouteTask, domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if index < 0 || index >= len(s.results) {
		return nil, s.snapshot(), fmt.Errorf("%w: index %d of %d", domain.ErrNoSuchResult, index, len(s.results))
	}
	task, state := s.navigate(ctx, s.results[index])
	return task, state, nil
}

// Navigate sets place as the destination directly and requests a route to it.
func (s *Session) Navigate(ctx context.Context, place domain.Place) (*RouteTask, domain.SessionState, error) {
	if err := place.Location.Validate(); err != nil {
		return nil, s.Snapshot(), err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	task, state := s.navigate(ctx, place)
	return task, state, nil
}

// navigate must be called with s.mu held. Any earlier route request is
// superseded and its response will be dropped.
func (s *Session) navigate(ctx context.Context, place domain.Place) (*RouteTask, domain.SessionState) {
	s.supersedeRoute()

	dest := place
	s.destination = &dest
	s.route = nil
	s.query = place.Name
	s.resultsVisible = false

	task := newRouteTask(s.routeGen)
	if s.current == nil {
		s.phase = domain.PhaseIdle
		task.resolve(RouteOutcome{Err: domain.ErrNoOrigin})
		return task, s.changed(ctx)
	}

	rctx, cancel := context.WithCancel(s.ctx)
	task.cancel = cancel
	s.task = task
	s.phase = domain.PhaseRouteRequested
	s.routing = true
	origin := s.current.Location
	state := s.changed(ctx)

	go s.runRoute(rctx, task, origin, dest.Location)
	return task, state
}

func (s *Session) runRoute(ctx context.Context, task *RouteTask, origin, destination domain.GeoPoint) {
	defer task.cancel()

	route, err := s.deps.Routes.Calculate(ctx, &origin, destination)
	route.Generation = task.Generation
	applied := s.applyRoute(task, route, err)
	task.resolve(RouteOutcome{Route: route, Err: err, Applied: applied})
}

func (s *Session) applyRoute(task *RouteTask, route domain.Route, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || task.Generation != s.routeGen {
		metrics.StaleRouteResponses.Inc()
		return false
	}

	s.task = nil
	s.routing = false
	s.route = &route
	s.phase = domain.PhaseRouteDisplayed
	if err != nil {
		slog.Default().Warn("route calculation failed, drawing straight line",
			"session", s.id, "generation", task.Generation, "error", err)
		s.advisory = AdvisoryRouteFailed
	}

	if fit, ferr := geospatial.Fit(route.Path()); ferr == nil {
		s.fit(s.ctx, fit)
	}
	s.changed(s.ctx)
	return true
}

// ClearDestination removes the destination and its route and returns to idle.
func (s *Session) ClearDestination(ctx context.Context) domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.supersedeRoute()
	s.destination = nil
	s.route = nil
	s.phase = domain.PhaseIdle
	if s.hover == domain.HoverDestination {
		s.hover = domain.HoverNone
	}
	return s.changed(ctx)
}

// ResetView frames the current location and destination. It reports false,
// changing nothing, unless both are known.
func (s *Session) ResetView(ctx context.Context) (domain.SessionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.current == nil || s.destination == nil {
		return s.snapshot(), false
	}
	fit, err := geospatial.Fit([]domain.GeoPoint{s.current.Location, s.destination.Location})
	if err != nil {
		return s.snapshot(), false
	}
	s.fit(ctx, fit)
	return s.changed(ctx), true
}

// MoveView applies a user gesture. Gestures during a fit transition are ignored.
func (s *Session) MoveView(ctx context.Context, next domain.ViewState) (domain.SessionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if !s.view.Move(next) {
		return s.snapshot(), false
	}
	return s.changed(ctx), true
}

// CompleteTransition records the camera the map settled on after a fit.
func (s *Session) CompleteTransition(ctx context.Context, final domain.ViewState) domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.view.TransitionDone(final)
	return s.changed(ctx)
}

// SetHover sets the marker under the pointer.
func (s *Session) SetHover(ctx context.Context, target domain.HoverTarget) (domain.SessionState, error) {
	switch target {
	case domain.HoverNone, domain.HoverCurrent, domain.HoverDestination:
	default:
		return s.Snapshot(), fmt.Errorf("unknown hover target %q", target)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.hover == target {
		return s.snapshot(), nil
	}
	s.hover = target
	return s.changed(ctx), nil
}

// DismissAdvisory clears the advisory message.
func (s *Session) DismissAdvisory(ctx context.Context) domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.advisory == "" {
		return s.snapshot()
	}
	s.advisory = ""
	return s.changed(ctx)
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Scene returns what the map should draw right now.
func (s *Session) Scene() domain.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BuildScene(s.snapshot(), s.view.Pending())
}

// Close cancels outstanding work. Late route responses are dropped. The
// close notification follows every state already queued.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.supersedeRoute()
	s.cancel()
	s.notify(notification{kind: notifyClosed, ctx: ctx})
}

// Flush waits until every notification queued so far has been handed to
// the observer and surface, or ctx is done.
func (s *Session) Flush(ctx context.Context) error {
	if s.out == nil {
		return nil
	}
	return s.out.flush(ctx)
}

func (s *Session) supersedeRoute() {
	s.routeGen++
	if s.task != nil {
		s.task.Cancel()
		s.task = nil
	}
	s.routing = false
}

func (s *Session) fit(ctx context.Context, fit domain.CameraFit) {
	issued := s.view.Fit(fit)
	if s.deps.Surface != nil {
		s.notify(notification{kind: notifyFit, ctx: ctx, fit: issued})
	}
}

// notify queues n and must be called with s.mu held; it never blocks.
func (s *Session) notify(n notification) {
	if s.out != nil {
		s.out.push(n)
	}
}

func (s *Session) touch() {
	s.lastActive = time.Now()
}

func (s *Session) changed(ctx context.Context) domain.SessionState {
	s.updatedAt = time.Now()
	state := s.snapshot()
	if s.deps.Observer != nil && !s.closed {
		s.notify(notification{kind: notifyState, ctx: ctx, state: state})
	}
	return state
}

func (s *Session) snapshot() domain.SessionState {
	state := domain.SessionState{
		ID:              s.id,
		Phase:           s.phase,
		Query:           s.query,
		Results:         append([]domain.Place{}, s.results...),
		ResultsVisible:  s.resultsVisible,
		View:            s.view.State(),
		Transitioning:   s.view.Transitioning(),
		Loading:         s.locating || s.routing,
		Advisory:        s.advisory,
		Hover:           s.hover,
		RouteGeneration: s.routeGen,
		UpdatedAt:       s.updatedAt,
	}
	if s.current != nil {
		p := *s.current
		state.CurrentLocation = &p
	}
	if s.destination != nil {
		p := *s.destination
		state.Destination = &p
	}
	if s.route != nil {
		r := *s.route
		state.Route = &r
	}
	return state
}
