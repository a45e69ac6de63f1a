package usecases

import (
	"time"

	"github.com/samirrijal/wayfinder/internal/core/domain"
)

// FitTransitionTimeout ends a fit transition when the surface never reports
// completion, so gestures cannot stay blocked.
const FitTransitionTimeout = 2 * time.Second

// InitialView is the camera before any fit.
var InitialView = domain.ViewState{
	Center:  domain.GeoPoint{Lon: 77.2315, Lat: 28.6562},
	Zoom:    10,
	Pitch:   45,
	Bearing: 0,
}

// ViewController owns the camera state of one session.
// It is not safe for concurrent use; Session serializes access.
type ViewController struct {
	state      domain.ViewState
	pending    *domain.CameraFit
	fitStarted time.Time
	now        func() time.Time
}

// NewViewController creates a controller starting at initial.
func NewViewController(initial domain.ViewState) *ViewController {
	return &ViewController{state: initial, now: time.Now}
}

// State returns the current camera.
func (v *ViewController) State() domain.ViewState {
	return v.state
}

// Pending returns the fit command being animated, or nil.
func (v *ViewController) Pending() *domain.CameraFit {
	if !v.Transitioning() {
		return nil
	}
	fit := *v.pending
	return &fit
}

// Transitioning reports whether a fit animation currently overrides gestures.
func (v *ViewController) Transitioning() bool {
	if v.pending == nil {
		return false
	}
	if v.now().Sub(v.fitStarted) >= FitTransitionTimeout {
		v.pending = nil
		return false
	}
	return true
}

// Move applies a gesture update. It is ignored while a fit transition runs
// and reports whether it was applied.
func (v *ViewController) Move(next domain.ViewState) bool {
	if v.Transitioning() {
		return false
	}
	v.state = next
	return true
}

// Fit starts a transition to frame fit.Bounds. The center and pitch move to
// the target immediately; zoom is left to the surface, which reports the
// final camera through TransitionDone. The returned command carries the
// transition start time in IssuedAt.
func (v *ViewController) Fit(fit domain.CameraFit) domain.CameraFit {
	v.fitStarted = v.now()
	fit.IssuedAt = v.fitStarted
	v.pending = &fit
	v.state.Center = fit.Bounds.Center()
	v.state.Pitch = fit.Pitch
	return fit
}

// TransitionDone records the camera the surface settled on and re-enables gestures.
func (v *ViewController) TransitionDone(final domain.ViewState) {
	v.pending = nil
	v.state = final
}
