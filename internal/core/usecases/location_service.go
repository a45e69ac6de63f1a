package usecases

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samirrijal/wayfinder/internal/core/domain"
	"github.com/samirrijal/wayfinder/internal/core/ports"
	"github.com/samirrijal/wayfinder/internal/pkg/metrics"
)

const (
	CurrentLocationName = "Your Current Location"
	FallbackName        = "Default Location (Delhi)"

	AdvisoryLocationUnavailable = "Unable to retrieve your location. Using Delhi as default."
	AdvisoryLocationUnsupported = "Geolocation is not supported by this browser."
)

// FallbackLocation is used whenever the device position cannot be read.
var FallbackLocation = domain.GeoPoint{Lon: 77.2090, Lat: 28.5275}

// Acquisition is the outcome of one location attempt.
type Acquisition struct {
	Place    domain.Place
	Fallback bool
	Advisory string
}

// LocationService acquires the device position with a single attempt.
type LocationService struct {
	timeout time.Duration
}

// NewLocationService creates a LocationService. A non-positive timeout disables it.
func NewLocationService(timeout time.Duration) *LocationService {
	return &LocationService{timeout: timeout}
}

// Locate asks the sensor for the current position. It never fails: any
// sensor problem yields the fallback place and an advisory.
func (s *LocationService) Locate(ctx context.Context, sensor ports.Geolocator) Acquisition {
	if sensor == nil {
		return fallback("unsupported", AdvisoryLocationUnsupported)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	pos, err := sensor.CurrentPosition(ctx)
	if err == nil {
		err = pos.Validate()
	}

	switch {
	case err == nil:
		return Acquisition{Place: domain.Place{Name: CurrentLocationName, Location: pos}}
	case errors.Is(err, domain.ErrLocationUnsupported):
		return fallback("unsupported", AdvisoryLocationUnsupported)
	case errors.Is(err, domain.ErrLocationDenied):
		return fallback("denied", AdvisoryLocationUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		return fallback("timeout", AdvisoryLocationUnavailable)
	default:
		slog.Default().Warn("geolocation failed", "error", err)
		return fallback("error", AdvisoryLocationUnavailable)
	}
}

func fallback(reason, advisory string) Acquisition {
	metrics.LocationFallbacks.WithLabelValues(reason).Inc()
	return Acquisition{
		Place:    domain.Place{Name: FallbackName, Location: FallbackLocation},
		Fallback: true,
		Advisory: advisory,
	}
}
