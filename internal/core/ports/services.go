package ports

import (
	"context"

	"github.com/samirrijal/wayfinder/internal/core/domain"
)

// Geolocator reads the device position. Implementations return
// domain.ErrLocationDenied or domain.ErrLocationUnsupported when they cannot.
type Geolocator interface {
	CurrentPosition(ctx context.Context) (domain.GeoPoint, error)
}

// Geocoder converts free text into ranked candidate places.
type Geocoder interface {
	Forward(ctx context.Context, query string, proximity domain.GeoPoint, limit int) ([]domain.Place, error)
}

// Router requests driving directions between two points.
type Router interface {
	Directions(ctx context.Context, origin, destination domain.GeoPoint) ([]domain.Route, error)
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// SessionObserver is told about every session state change, in order.
// Calls for one session come from a single goroutine, outside the session
// lock, each with a bounded context.
type SessionObserver interface {
	SessionChanged(ctx context.Context, state *domain.SessionState) error
	SessionClosed(ctx context.Context, sessionID string) error
}

// MapSurface receives camera commands for the browser map of one session.
// Its calls are ordered with the observer's for the same session.
type MapSurface interface {
	FitBounds(ctx context.Context, sessionID string, fit domain.CameraFit) error
}

// FeedMessage is one message relayed to a session's browser.
// Kind is "state", "camera" or "closed".
type FeedMessage struct {
	Kind string
	Data []byte
}

// SessionFeed streams the messages published for one session.
type SessionFeed interface {
	Follow(ctx context.Context, sessionID string, fn func(FeedMessage)) (stop func(), err error)
}
