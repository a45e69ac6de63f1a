package domain

import "errors"

var (
	// ErrInvalidCoordinate is returned for points outside the WGS 84 degree ranges.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrLocationDenied means the user refused the geolocation prompt.
	ErrLocationDenied = errors.New("location permission denied")
	// ErrLocationUnsupported means the client has no geolocation sensor.
	ErrLocationUnsupported = errors.New("geolocation not supported")

	// ErrEmptyQuery is returned for blank search input. Callers treat it as a no-op.
	ErrEmptyQuery = errors.New("empty search query")
	// ErrNoOrigin is returned when a route is requested before the current location is known.
	ErrNoOrigin = errors.New("origin unknown")
	// ErrNoRoutes is returned when the directions endpoint answers with an empty route list.
	ErrNoRoutes = errors.New("no routes returned")
	// ErrNoPoints is returned when bounds are requested over an empty coordinate list.
	ErrNoPoints = errors.New("no coordinates")

	ErrSessionNotFound = errors.New("session not found")
	ErrNoSuchResult    = errors.New("no such search result")
)
