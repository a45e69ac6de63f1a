package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/wayfinder/internal/adapters/http"
	"github.com/samirrijal/wayfinder/internal/core/domain"
	"github.com/samirrijal/wayfinder/internal/core/usecases"
)

// ---- Mock upstreams ----

type mockGeocoder struct {
	forwardFn func(ctx context.Context, query string, proximity domain.GeoPoint, limit int) ([]domain.Place, error)
}

func (m *mockGeocoder) Forward(ctx context.Context, query string, proximity domain.GeoPoint, limit int) ([]domain.Place, error) {
	if m.forwardFn != nil {
		return m.forwardFn(ctx, query, proximity, limit)
	}
	return nil, nil
}

type mockRouter struct {
	directionsFn func(ctx context.Context, origin, destination domain.GeoPoint) ([]domain.Route, error)
}

func (m *mockRouter) Directions(ctx context.Context, origin, destination domain.GeoPoint) ([]domain.Route, error) {
	if m.directionsFn != nil {
		return m.directionsFn(ctx, origin, destination)
	}
	return nil, domain.ErrNoRoutes
}

var rohini = domain.Place{Name: "Rohini, Delhi", Location: domain.GeoPoint{Lon: 77.1025, Lat: 28.7041}}

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(geocoder *mockGeocoder, router *mockRouter) *handler.Dependencies {
	if geocoder == nil {
		geocoder = &mockGeocoder{}
	}
	if router == nil {
		router = &mockRouter{}
	}
	search := usecases.NewSearchService(geocoder, nil)
	sessions := usecases.NewSessionManager(usecases.SessionDeps{
		Locations: usecases.NewLocationService(time.Second),
		Search:    search,
		Routes:    usecases.NewRouteService(router, time.Second),
	}, 0)
	return &handler.Dependencies{
		Sessions:       sessions,
		Search:         search,
		RequestTimeout: 5 * time.Second,
	}
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, readBody(t, resp.Body)
}

func decodeState(t *testing.T, body []byte) domain.SessionState {
	t.Helper()
	var state domain.SessionState
	if err := json.Unmarshal(body, &state); err != nil {
		t.Fatalf("decode state: %v (%s)", err, body)
	}
	return state
}

func createSession(t *testing.T, app *fiber.App, body string) domain.SessionState {
	t.Helper()
	code, raw := do(t, app, "POST", "/v1/sessions", body)
	if code != 201 {
		t.Fatalf("create: expected 201, got %d (%s)", code, raw)
	}
	return decodeState(t, raw)
}

// ---- Session handler tests ----

func TestCreateSession_DeniedFallsBack(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))

	state := createSession(t, app, `{"denied":true}`)
	if state.ID == "" {
		t.Fatal("expected a session id")
	}
	if state.CurrentLocation == nil || state.CurrentLocation.Name != usecases.FallbackName {
		t.Fatalf("expected fallback location, got %+v", state.CurrentLocation)
	}
	if state.Advisory != usecases.AdvisoryLocationUnavailable {
		t.Errorf("expected advisory %q, got %q", usecases.AdvisoryLocationUnavailable, state.Advisory)
	}
	if state.Loading {
		t.Error("loading must be cleared once the location is resolved")
	}
}

func TestCreateSession_EmptyBodyIsUnsupported(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))

	state := createSession(t, app, "")
	if state.Advisory != usecases.AdvisoryLocationUnsupported {
		t.Errorf("expected advisory %q, got %q", usecases.AdvisoryLocationUnsupported, state.Advisory)
	}
}

func TestCreateSession_InvalidBody(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))

	code, _ := do(t, app, "POST", "/v1/sessions", `{"position":`)
	if code != 400 {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestSessionFlow_SearchSelectRoute(t *testing.T) {
	var gotProximity domain.GeoPoint
	geocoder := &mockGeocoder{
		forwardFn: func(ctx context.Context, query string, proximity domain.GeoPoint, limit int) ([]domain.Place, error) {
			gotProximity = proximity
			return []domain.Place{rohini}, nil
		},
	}
	router := &mockRouter{
		directionsFn: func(ctx context.Context, origin, destination domain.GeoPoint) ([]domain.Route, error) {
			r := domain.NewRoute([]domain.GeoPoint{origin, {Lon: 77.15, Lat: 28.66}, destination}, domain.RouteSourceDirections)
			r.DistanceMeters = 14200
			return []domain.Route{r}, nil
		},
	}
	app := setupApp(makeDeps(geocoder, router))

	origin := domain.GeoPoint{Lon: 77.2167, Lat: 28.6315}
	state := createSession(t, app, fmt.Sprintf(`{"position":{"lon":%f,"lat":%f}}`, origin.Lon, origin.Lat))
	if state.CurrentLocation == nil || state.CurrentLocation.Name != usecases.CurrentLocationName {
		t.Fatalf("expected reported location, got %+v", state.CurrentLocation)
	}

	code, raw := do(t, app, "POST", "/v1/sessions/"+state.ID+"/search", `{"query":"rohini"}`)
	if code != 200 {
		t.Fatalf("search: expected 200, got %d (%s)", code, raw)
	}
	searched := decodeState(t, raw)
	if len(searched.Results) != 1 || !searched.ResultsVisible {
		t.Fatalf("expected one visible result, got %+v", searched)
	}
	if gotProximity != origin {
		t.Errorf("expected proximity %v, got %v", origin, gotProximity)
	}

	code, raw = do(t, app, "POST", "/v1/sessions/"+state.ID+"/destination?wait=true", `{"index":0}`)
	if code != 200 {
		t.Fatalf("select: expected 200, got %d (%s)", code, raw)
	}
	routed := decodeState(t, raw)
	if routed.Phase != domain.PhaseRouteDisplayed {
		t.Fatalf("expected phase %s, got %s", domain.PhaseRouteDisplayed, routed.Phase)
	}
	if routed.Route == nil || routed.Route.Source != domain.RouteSourceDirections {
		t.Fatalf("expected directions route, got %+v", routed.Route)
	}
	if routed.Query != rohini.Name || routed.ResultsVisible {
		t.Errorf("expected query %q with results hidden, got %q visible=%v", rohini.Name, routed.Query, routed.ResultsVisible)
	}

	code, raw = do(t, app, "GET", "/v1/sessions/"+state.ID+"/scene", "")
	if code != 200 {
		t.Fatalf("scene: expected 200, got %d", code)
	}
	var scene domain.Scene
	if err := json.Unmarshal(raw, &scene); err != nil {
		t.Fatal(err)
	}
	if len(scene.Markers) != 2 {
		t.Errorf("expected 2 markers, got %d", len(scene.Markers))
	}
	if scene.Route == nil || scene.Route.LayerID != usecases.RouteLayerID {
		t.Errorf("expected route layer, got %+v", scene.Route)
	}
	if scene.Camera == nil {
		t.Error("expected pending camera fit")
	}
}

func TestSelectDestination_Accepted(t *testing.T) {
	geocoder := &mockGeocoder{
		forwardFn: func(ctx context.Context, query string, proximity domain.GeoPoint, limit int) ([]domain.Place, error) {
			return []domain.Place{rohini}, nil
		},
	}
	app := setupApp(makeDeps(geocoder, nil))
	state := createSession(t, app, `{"denied":true}`)
	do(t, app, "POST", "/v1/sessions/"+state.ID+"/search", `{"query":"rohini"}`)

	code, raw := do(t, app, "POST", "/v1/sessions/"+state.ID+"/destination", `{"index":0}`)
	if code != 202 {
		t.Fatalf("expected 202, got %d (%s)", code, raw)
	}
	if got := decodeState(t, raw); got.Destination == nil || got.Destination.Name != rohini.Name {
		t.Errorf("expected destination %q, got %+v", rohini.Name, got.Destination)
	}
}

func TestSelectDestination_OutOfRange(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))
	state := createSession(t, app, `{"denied":true}`)

	code, raw := do(t, app, "POST", "/v1/sessions/"+state.ID+"/destination", `{"index":3}`)
	if code != 400 {
		t.Fatalf("expected 400, got %d (%s)", code, raw)
	}
}

func TestSelectDestination_MissingIndex(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))
	state := createSession(t, app, `{"denied":true}`)

	code, _ := do(t, app, "POST", "/v1/sessions/"+state.ID+"/destination", `{}`)
	if code != 400 {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestSearch_FailureKeepsAdvisoryInState(t *testing.T) {
	geocoder := &mockGeocoder{
		forwardFn: func(ctx context.Context, query string, proximity domain.GeoPoint, limit int) ([]domain.Place, error) {
			return nil, errors.New("boom")
		},
	}
	app := setupApp(makeDeps(geocoder, nil))
	state := createSession(t, app, `{"denied":true}`)

	code, raw := do(t, app, "POST", "/v1/sessions/"+state.ID+"/search", `{"query":"rohini"}`)
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if got := decodeState(t, raw); got.Advisory != usecases.AdvisorySearchFailed {
		t.Errorf("expected advisory %q, got %q", usecases.AdvisorySearchFailed, got.Advisory)
	}
}

func TestSearch_QueryTooLong(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))
	state := createSession(t, app, `{"denied":true}`)

	body := fmt.Sprintf(`{"query":%q}`, strings.Repeat("a", 201))
	code, _ := do(t, app, "POST", "/v1/sessions/"+state.ID+"/search", body)
	if code != 400 {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestSession_NotFound(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))

	code, raw := do(t, app, "GET", "/v1/sessions/nope", "")
	if code != 404 {
		t.Fatalf("expected 404, got %d", code)
	}
	var apiErr handler.APIError
	if err := json.Unmarshal(raw, &apiErr); err != nil {
		t.Fatal(err)
	}
	if apiErr.Code != "not_found" {
		t.Errorf("expected code not_found, got %q", apiErr.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))
	state := createSession(t, app, `{"denied":true}`)

	if code, _ := do(t, app, "DELETE", "/v1/sessions/"+state.ID, ""); code != 204 {
		t.Fatalf("expected 204, got %d", code)
	}
	if code, _ := do(t, app, "GET", "/v1/sessions/"+state.ID, ""); code != 404 {
		t.Fatalf("expected 404 after delete, got %d", code)
	}
}

func TestHover_InvalidTarget(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))
	state := createSession(t, app, `{"denied":true}`)

	code, _ := do(t, app, "PUT", "/v1/sessions/"+state.ID+"/hover", `{"target":"nowhere"}`)
	if code != 400 {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestResetView_WithoutDestination(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))
	state := createSession(t, app, `{"denied":true}`)

	code, _ := do(t, app, "POST", "/v1/sessions/"+state.ID+"/view/reset", "")
	if code != 409 {
		t.Fatalf("expected 409, got %d", code)
	}
}

func TestMoveView_DuringTransition(t *testing.T) {
	geocoder := &mockGeocoder{
		forwardFn: func(ctx context.Context, query string, proximity domain.GeoPoint, limit int) ([]domain.Place, error) {
			return []domain.Place{rohini}, nil
		},
	}
	app := setupApp(makeDeps(geocoder, nil))
	state := createSession(t, app, `{"denied":true}`)
	do(t, app, "POST", "/v1/sessions/"+state.ID+"/search", `{"query":"rohini"}`)
	if code, raw := do(t, app, "POST", "/v1/sessions/"+state.ID+"/destination?wait=true", `{"index":0}`); code != 200 {
		t.Fatalf("select: expected 200, got %d (%s)", code, raw)
	}

	view := `{"center":{"lon":77.0,"lat":28.0},"zoom":12,"pitch":0,"bearing":0}`
	if code, _ := do(t, app, "PUT", "/v1/sessions/"+state.ID+"/view", view); code != 409 {
		t.Fatalf("expected 409 during fit, got %d", code)
	}

	code, raw := do(t, app, "POST", "/v1/sessions/"+state.ID+"/view/done", view)
	if code != 200 {
		t.Fatalf("view done: expected 200, got %d", code)
	}
	if got := decodeState(t, raw); got.Transitioning || got.View.Zoom != 12 {
		t.Errorf("expected settled view at zoom 12, got %+v", got.View)
	}

	if code, _ := do(t, app, "PUT", "/v1/sessions/"+state.ID+"/view", view); code != 200 {
		t.Fatalf("expected 200 after transition, got %d", code)
	}
}

func TestMoveView_InvalidCenter(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))
	state := createSession(t, app, `{"denied":true}`)

	code, _ := do(t, app, "PUT", "/v1/sessions/"+state.ID+"/view", `{"center":{"lon":200,"lat":0}}`)
	if code != 400 {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestDismissAdvisory(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))
	state := createSession(t, app, `{"denied":true}`)

	code, raw := do(t, app, "DELETE", "/v1/sessions/"+state.ID+"/advisory", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if got := decodeState(t, raw); got.Advisory != "" {
		t.Errorf("expected advisory cleared, got %q", got.Advisory)
	}
}

// ---- Places handler tests ----

func TestPlaces_Success(t *testing.T) {
	var gotLimit int
	geocoder := &mockGeocoder{
		forwardFn: func(ctx context.Context, query string, proximity domain.GeoPoint, limit int) ([]domain.Place, error) {
			gotLimit = limit
			return []domain.Place{rohini}, nil
		},
	}
	app := setupApp(makeDeps(geocoder, nil))

	code, raw := do(t, app, "GET", "/v1/places?q=rohini&lon=77.2&lat=28.6", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d (%s)", code, raw)
	}
	var result handler.PlacesResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatal(err)
	}
	if result.Query != "rohini" || len(result.Results) != 1 {
		t.Errorf("unexpected response %+v", result)
	}
	if gotLimit != usecases.SearchLimit {
		t.Errorf("expected limit %d, got %d", usecases.SearchLimit, gotLimit)
	}
}

func TestPlaces_Validation(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))

	tests := []struct {
		name string
		url  string
	}{
		{"missing q", "/v1/places"},
		{"blank q", "/v1/places?q=%20"},
		{"lon without lat", "/v1/places?q=x&lon=77"},
		{"latitude out of range", "/v1/places?q=x&lon=77&lat=95"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _ := do(t, app, "GET", tt.url, ""); code != 400 {
				t.Fatalf("expected 400, got %d", code)
			}
		})
	}
}

func TestPlaces_UpstreamError(t *testing.T) {
	geocoder := &mockGeocoder{
		forwardFn: func(ctx context.Context, query string, proximity domain.GeoPoint, limit int) ([]domain.Place, error) {
			return nil, errors.New("connection refused")
		},
	}
	app := setupApp(makeDeps(geocoder, nil))

	code, _ := do(t, app, "GET", "/v1/places?q=rohini", "")
	if code != 502 {
		t.Fatalf("expected 502, got %d", code)
	}
}

// ---- Health, GraphQL, WebSocket ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))

	code, raw := do(t, app, "GET", "/v1/health", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if !strings.Contains(string(raw), `"healthy"`) {
		t.Errorf("unexpected body %s", raw)
	}
}

func TestReady_NothingConfigured(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))

	code, raw := do(t, app, "GET", "/v1/ready", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d (%s)", code, raw)
	}
}

func TestGraphQL_SessionQuery(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))
	state := createSession(t, app, `{"denied":true}`)

	body, _ := json.Marshal(map[string]string{
		"query": fmt.Sprintf(`{ session(id: "%s") { id phase current_location { name } } }`, state.ID),
	})

	code, raw := do(t, app, "POST", "/graphql", string(body))
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	var result struct {
		Data struct {
			Session struct {
				ID              string `json:"id"`
				Phase           string `json:"phase"`
				CurrentLocation struct {
					Name string `json:"name"`
				} `json:"current_location"`
			} `json:"session"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatal(err)
	}
	if result.Data.Session.ID != state.ID || result.Data.Session.Phase != string(domain.PhaseIdle) {
		t.Errorf("unexpected session %+v", result.Data.Session)
	}
	if result.Data.Session.CurrentLocation.Name != usecases.FallbackName {
		t.Errorf("expected %q, got %q", usecases.FallbackName, result.Data.Session.CurrentLocation.Name)
	}
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))

	if code, _ := do(t, app, "GET", "/ws?session=x", ""); code != fiber.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", code)
	}
}

func TestCacheControl_Sessions(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))
	state := createSession(t, app, `{"denied":true}`)

	req := httptest.NewRequest("GET", "/v1/sessions/"+state.ID, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Cache-Control"); got != "no-store" {
		t.Errorf("expected no-store, got %q", got)
	}
}
