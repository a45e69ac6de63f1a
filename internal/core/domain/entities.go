package domain

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Place is a named coordinate: the user's location or a geocoding candidate.
type Place struct {
	Name     string   `json:"name"`
	Location GeoPoint `json:"location"`
}

// RouteSource tells where a route geometry came from.
type RouteSource string

const (
	RouteSourceDirections   RouteSource = "directions"
	RouteSourceStraightLine RouteSource = "straight_line"
)

// Route is a driving path between the current location and the destination,
// kept as a GeoJSON LineString feature so it can be handed to the map as-is.
type Route struct {
	Feature         *geojson.Feature `json:"feature"`
	Source          RouteSource      `json:"source"`
	DistanceMeters  float64          `json:"distance_meters"`
	DurationSeconds float64          `json:"duration_seconds,omitempty"`
	Generation      uint64           `json:"generation"`
}

// NewRoute wraps a path into a LineString feature.
func NewRoute(path []GeoPoint, source RouteSource) Route {
	return Route{
		Feature: geojson.NewFeature(GeoLineString{Coordinates: path}.LineString()),
		Source:  source,
	}
}

// Path returns the ordered coordinates of the route geometry.
func (r Route) Path() []GeoPoint {
	if r.Feature == nil {
		return nil
	}
	ls, ok := r.Feature.Geometry.(orb.LineString)
	if !ok {
		return nil
	}
	path := make([]GeoPoint, 0, len(ls))
	for _, pt := range ls {
		path = append(path, PointFromOrb(pt))
	}
	return path
}

// ViewState is the map camera.
type ViewState struct {
	Center  GeoPoint `json:"center"`
	Zoom    float64  `json:"zoom"`
	Pitch   float64  `json:"pitch"`
	Bearing float64  `json:"bearing"`
}

// CameraFit asks the map surface to frame a box.
// Essential means the transition runs even under a reduced-motion preference.
type CameraFit struct {
	Bounds    Bounds        `json:"bounds"`
	Corners   [2][2]float64 `json:"corners"`
	Padding   int           `json:"padding"`
	Pitch     float64       `json:"pitch"`
	Essential bool          `json:"essential"`
	IssuedAt  time.Time     `json:"issued_at"`
}

// Phase is the destination/route lifecycle state.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseRouteRequested Phase = "route_requested"
	PhaseRouteDisplayed Phase = "route_displayed"
)

// HoverTarget names the marker the pointer is over, if any.
type HoverTarget string

const (
	HoverNone        HoverTarget = ""
	HoverCurrent     HoverTarget = "current"
	HoverDestination HoverTarget = "destination"
)

// SessionState is an immutable snapshot of one widget session.
type SessionState struct {
	ID              string      `json:"id"`
	Phase           Phase       `json:"phase"`
	CurrentLocation *Place      `json:"current_location,omitempty"`
	Destination     *Place      `json:"destination,omitempty"`
	Query           string      `json:"query"`
	Results         []Place     `json:"results"`
	ResultsVisible  bool        `json:"results_visible"`
	Route           *Route      `json:"route,omitempty"`
	View            ViewState   `json:"view"`
	Transitioning   bool        `json:"transitioning"`
	Loading         bool        `json:"loading"`
	Advisory        string      `json:"advisory,omitempty"`
	Hover           HoverTarget `json:"hover,omitempty"`
	RouteGeneration uint64      `json:"route_generation"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Marker is a pin drawn at a place.
type Marker struct {
	ID       string   `json:"id"`
	Kind     string   `json:"kind"`
	Name     string   `json:"name"`
	Location GeoPoint `json:"location"`
}

// RouteLayer is a line layer sourced from the route geometry.
type RouteLayer struct {
	SourceID string            `json:"source_id"`
	LayerID  string            `json:"layer_id"`
	Type     string            `json:"type"`
	Layout   map[string]string `json:"layout"`
	Paint    map[string]any    `json:"paint"`
	Data     *geojson.Feature  `json:"data"`
}

// Popup is a label anchored to a coordinate.
type Popup struct {
	Location    GeoPoint `json:"location"`
	Anchor      string   `json:"anchor"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	CloseButton bool     `json:"close_button"`
}

// Scene is the declarative description of what the map should draw.
type Scene struct {
	Markers []Marker    `json:"markers"`
	Route   *RouteLayer `json:"route,omitempty"`
	Popup   *Popup      `json:"popup,omitempty"`
	View    ViewState   `json:"view"`
	Camera  *CameraFit  `json:"camera,omitempty"`
}
