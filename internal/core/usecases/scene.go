package usecases

import (
	"fmt"

	"github.com/samirrijal/wayfinder/internal/core/domain"
)

// Route layer styling.
const (
	RouteSourceID  = "route"
	RouteLayerID   = "route-line"
	RouteLineColor = "#4ecdc4"
	RouteLineWidth = 4
)

// Marker ids double as hover targets.
const (
	MarkerCurrent     = "current"
	MarkerDestination = "destination"
)

// BuildScene derives what the map must draw from a state snapshot.
// It is pure: the same inputs always give the same scene.
func BuildScene(state domain.SessionState, camera *domain.CameraFit) domain.Scene {
	scene := domain.Scene{
		Markers: []domain.Marker{},
		View:    state.View,
		Camera:  camera,
	}

	if p := state.CurrentLocation; p != nil {
		scene.Markers = append(scene.Markers, domain.Marker{
			ID: MarkerCurrent, Kind: MarkerCurrent, Name: p.Name, Location: p.Location,
		})
	}
	if p := state.Destination; p != nil {
		scene.Markers = append(scene.Markers, domain.Marker{
			ID: MarkerDestination, Kind: MarkerDestination, Name: p.Name, Location: p.Location,
		})
	}

	if state.Route != nil && state.Destination != nil && state.Route.Generation == state.RouteGeneration {
		scene.Route = &domain.RouteLayer{
			SourceID: RouteSourceID,
			LayerID:  RouteLayerID,
			Type:     "line",
			Layout: map[string]string{
				"line-join": "round",
				"line-cap":  "round",
			},
			Paint: map[string]any{
				"line-color": RouteLineColor,
				"line-width": RouteLineWidth,
			},
			Data: state.Route.Feature,
		}
	}

	var hovered *domain.Place
	switch state.Hover {
	case domain.HoverCurrent:
		hovered = state.CurrentLocation
	case domain.HoverDestination:
		hovered = state.Destination
	}
	if hovered != nil {
		scene.Popup = &domain.Popup{
			Location:    hovered.Location,
			Anchor:      "top",
			Title:       hovered.Name,
			Body:        fmt.Sprintf("%.4f, %.4f", hovered.Location.Lon, hovered.Location.Lat),
			CloseButton: false,
		}
	}

	return scene
}
