package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/samirrijal/wayfinder/internal/core/domain"
	"github.com/samirrijal/wayfinder/internal/core/ports"
	"github.com/samirrijal/wayfinder/internal/pkg/geospatial"
	"github.com/samirrijal/wayfinder/internal/pkg/metrics"
)

// RouteService handles route calculation with a straight-line fallback.
type RouteService struct {
	router  ports.Router
	timeout time.Duration
}

// NewRouteService creates a new RouteService. A non-positive timeout leaves
// the request bounded only by the caller's context.
func NewRouteService(router ports.Router, timeout time.Duration) *RouteService {
	return &RouteService{router: router, timeout: timeout}
}

// Calculate returns the first driving route from origin to destination.
// When the router fails or returns nothing, it returns the two-point
// straight line [origin, destination] together with the cause, so the
// returned route is always usable once both endpoints are known.
// A nil origin yields domain.ErrNoOrigin and a zero route.
func (s *RouteService) Calculate(ctx context.Context, origin *domain.GeoPoint, destination domain.GeoPoint) (domain.Route, error) {
	if origin == nil {
		return domain.Route{}, domain.ErrNoOrigin
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	routes, err := s.router.Directions(ctx, *origin, destination)
	if err == nil && len(routes) == 0 {
		err = domain.ErrNoRoutes
	}
	if err == nil && len(routes[0].Path()) < 2 {
		err = fmt.Errorf("%w: first route has no usable geometry", domain.ErrNoRoutes)
	}
	if err != nil {
		metrics.RouteRequests.WithLabelValues(string(domain.RouteSourceStraightLine)).Inc()
		return StraightLine(*origin, destination), fmt.Errorf("directions: %w", err)
	}

	metrics.RouteRequests.WithLabelValues(string(domain.RouteSourceDirections)).Inc()
	route := routes[0]
	route.Source = domain.RouteSourceDirections
	if route.DistanceMeters == 0 {
		route.DistanceMeters = geospatial.PathLength(route.Path())
	}
	return route, nil
}

// StraightLine builds the synthetic two-point route.
func StraightLine(origin, destination domain.GeoPoint) domain.Route {
	path := []domain.GeoPoint{origin, destination}
	r := domain.NewRoute(path, domain.RouteSourceStraightLine)
	r.DistanceMeters = geospatial.PathLength(path)
	return r
}
