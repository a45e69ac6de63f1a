// Package sensor provides geolocation readings that were taken by the
// browser and handed to the backend.
package sensor

import (
	"context"

	"github.com/samirrijal/wayfinder/internal/core/domain"
)

// Reported is the outcome of the browser's getCurrentPosition call as sent
// in the session-create request. Exactly one of its fields is meaningful.
type Reported struct {
	Position    *domain.GeoPoint `json:"position,omitempty"`
	Denied      bool             `json:"denied,omitempty"`
	Unsupported bool             `json:"unsupported,omitempty"`
}

// CurrentPosition implements ports.Geolocator.
func (r Reported) CurrentPosition(ctx context.Context) (domain.GeoPoint, error) {
	switch {
	case r.Unsupported:
		return domain.GeoPoint{}, domain.ErrLocationUnsupported
	case r.Denied:
		return domain.GeoPoint{}, domain.ErrLocationDenied
	case r.Position == nil:
		return domain.GeoPoint{}, domain.ErrLocationUnsupported
	}
	if err := ctx.Err(); err != nil {
		return domain.GeoPoint{}, err
	}
	return *r.Position, nil
}
