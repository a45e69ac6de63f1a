package usecases

import (
	"context"
	"sync"

	"github.com/samirrijal/wayfinder/internal/core/domain"
)

// RouteOutcome is the single resolution of a route request.
// Err carries the advisory cause when Route is the straight-line fallback.
// Applied is false when a newer request superseded this one.
type RouteOutcome struct {
	Route   domain.Route
	Err     error
	Applied bool
}

// RouteTask tracks one in-flight route request.
type RouteTask struct {
	Generation uint64

	done    chan struct{}
	once    sync.Once
	outcome RouteOutcome
	cancel  context.CancelFunc
}

func newRouteTask(generation uint64) *RouteTask {
	return &RouteTask{
		Generation: generation,
		done:       make(chan struct{}),
		cancel:     func() {},
	}
}

// Done is closed once the task resolves.
func (t *RouteTask) Done() <-chan struct{} {
	return t.done
}

// Cancel aborts the underlying request. The task still resolves.
func (t *RouteTask) Cancel() {
	t.cancel()
}

// Wait blocks until the task resolves or ctx ends.
func (t *RouteTask) Wait(ctx context.Context) (RouteOutcome, error) {
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return RouteOutcome{}, ctx.Err()
	}
}

func (t *RouteTask) resolve(o RouteOutcome) {
	t.once.Do(func() {
		t.outcome = o
		close(t.done)
	})
}
