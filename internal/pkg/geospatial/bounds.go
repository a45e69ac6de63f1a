package geospatial

import (
	"github.com/paulmach/orb"

	"github.com/samirrijal/wayfinder/internal/core/domain"
)

// Fixed framing policy. Padding must stay large enough that a single point
// still yields a usable box.
const (
	BoundsPaddingDegrees = 0.01
	FitPaddingPixels     = 100
	FitPitch             = 45.0
)

// Envelope returns the minimal box enclosing every point, expanded by
// BoundsPaddingDegrees on each side.
func Envelope(points []domain.GeoPoint) (domain.Bounds, error) {
	if len(points) == 0 {
		return domain.Bounds{}, domain.ErrNoPoints
	}

	mp := make(orb.MultiPoint, 0, len(points))
	for _, p := range points {
		mp = append(mp, p.Point())
	}
	b := mp.Bound()

	return domain.Bounds{
		MinLon: b.Min.Lon() - BoundsPaddingDegrees,
		MinLat: b.Min.Lat() - BoundsPaddingDegrees,
		MaxLon: b.Max.Lon() + BoundsPaddingDegrees,
		MaxLat: b.Max.Lat() + BoundsPaddingDegrees,
	}, nil
}

// Fit builds the camera command that frames points. IssuedAt is left
// zero; the view controller stamps it when the transition starts.
func Fit(points []domain.GeoPoint) (domain.CameraFit, error) {
	b, err := Envelope(points)
	if err != nil {
		return domain.CameraFit{}, err
	}
	return domain.CameraFit{
		Bounds:    b,
		Corners:   b.Corners(),
		Padding:   FitPaddingPixels,
		Pitch:     FitPitch,
		Essential: true,
	}, nil
}
