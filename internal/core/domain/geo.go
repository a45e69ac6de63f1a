package domain

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
)

// GeoPoint represents a geographic coordinate (WGS 84) in degrees.
type GeoPoint struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Validate reports whether the point lies inside the valid degree ranges.
func (p GeoPoint) Validate() error {
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %f outside [-180, 180]", ErrInvalidCoordinate, p.Lon)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %f outside [-90, 90]", ErrInvalidCoordinate, p.Lat)
	}
	return nil
}

// Point converts to an orb point ([lng, lat] order, as GeoJSON).
func (p GeoPoint) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// String formats the point the way proximity and directions parameters expect:
// "lng,lat" in plain decimal notation, never with an exponent.
func (p GeoPoint) String() string {
	return strconv.FormatFloat(p.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
}

// PointFromOrb converts an orb point back into a GeoPoint.
func PointFromOrb(pt orb.Point) GeoPoint {
	return GeoPoint{Lon: pt.Lon(), Lat: pt.Lat()}
}

// GeoLineString represents an ordered sequence of geographic coordinates.
type GeoLineString struct {
	Coordinates []GeoPoint `json:"coordinates"`
}

// LineString converts to an orb line string.
func (l GeoLineString) LineString() orb.LineString {
	ls := make(orb.LineString, 0, len(l.Coordinates))
	for _, c := range l.Coordinates {
		ls = append(ls, c.Point())
	}
	return ls
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// Contains reports whether p lies inside or on the edge of the box.
func (b Bounds) Contains(p GeoPoint) bool {
	return p.Lon >= b.MinLon && p.Lon <= b.MaxLon && p.Lat >= b.MinLat && p.Lat <= b.MaxLat
}

// Center returns the midpoint of the box.
func (b Bounds) Center() GeoPoint {
	return GeoPoint{Lon: (b.MinLon + b.MaxLon) / 2, Lat: (b.MinLat + b.MaxLat) / 2}
}

// Corners returns the box as [[minLng, minLat], [maxLng, maxLat]], the shape
// map surfaces accept for a fit command.
func (b Bounds) Corners() [2][2]float64 {
	return [2][2]float64{{b.MinLon, b.MinLat}, {b.MaxLon, b.MaxLat}}
}
