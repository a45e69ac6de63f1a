// Package mapbox talks to the Mapbox geocoding and directions APIs.
package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/wayfinder/internal/core/domain"
	"github.com/samirrijal/wayfinder/internal/pkg/metrics"
)

const DefaultBaseURL = "https://api.mapbox.com"

// ErrUpstream wraps non-200 answers from the API.
var ErrUpstream = errors.New("mapbox upstream error")

// Client implements ports.Geocoder and ports.Router.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	tracer  trace.Tracer
}

// NewClient creates a client. An empty baseURL selects DefaultBaseURL.
// The timeout bounds every request; callers may cancel earlier through ctx.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		tracer:  otel.Tracer("github.com/samirrijal/wayfinder/internal/adapters/mapbox"),
	}
}

type geocodingResponse struct {
	Features []struct {
		PlaceName string     `json:"place_name"`
		Center    [2]float64 `json:"center"`
	} `json:"features"`
}

// Forward geocodes query, biased towards proximity.
func (c *Client) Forward(ctx context.Context, query string, proximity domain.GeoPoint, limit int) ([]domain.Place, error) {
	ctx, span := c.tracer.Start(ctx, "mapbox.geocode", trace.WithAttributes(
		attribute.String("geocode.query", query),
		attribute.Int("geocode.limit", limit),
	))
	defer span.End()

	params := url.Values{}
	params.Set("access_token", c.token)
	params.Set("proximity", proximity.String())
	params.Set("limit", strconv.Itoa(limit))
	reqURL := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s", c.baseURL, url.PathEscape(query), params.Encode())

	var body geocodingResponse
	if err := c.get(ctx, "geocoding", reqURL, &body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "geocode failed")
		return nil, err
	}

	places := make([]domain.Place, 0, len(body.Features))
	for _, f := range body.Features {
		loc := domain.GeoPoint{Lon: f.Center[0], Lat: f.Center[1]}
		if loc.Validate() != nil {
			continue
		}
		places = append(places, domain.Place{Name: f.PlaceName, Location: loc})
	}
	span.SetAttributes(attribute.Int("geocode.results", len(places)))
	return places, nil
}

type directionsResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry geojson.Geometry `json:"geometry"`
		Distance float64          `json:"distance"`
		Duration float64          `json:"duration"`
	} `json:"routes"`
}

// Directions returns the driving routes from origin to destination.
func (c *Client) Directions(ctx context.Context, origin, destination domain.GeoPoint) ([]domain.Route, error) {
	ctx, span := c.tracer.Start(ctx, "mapbox.directions", trace.WithAttributes(
		attribute.String("route.origin", origin.String()),
		attribute.String("route.destination", destination.String()),
	))
	defer span.End()

	params := url.Values{}
	params.Set("access_token", c.token)
	params.Set("geometries", "geojson")
	reqURL := fmt.Sprintf("%s/directions/v5/mapbox/driving/%s;%s?%s", c.baseURL, origin, destination, params.Encode())

	var body directionsResponse
	if err := c.get(ctx, "directions", reqURL, &body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "directions failed")
		return nil, err
	}

	routes := make([]domain.Route, 0, len(body.Routes))
	for _, r := range body.Routes {
		ls, ok := r.Geometry.Geometry().(orb.LineString)
		if !ok {
			continue
		}
		routes = append(routes, domain.Route{
			Feature:         geojson.NewFeature(ls),
			Source:          domain.RouteSourceDirections,
			DistanceMeters:  r.Distance,
			DurationSeconds: r.Duration,
		})
	}
	span.SetAttributes(attribute.Int("route.count", len(routes)))
	return routes, nil
}

func (c *Client) get(ctx context.Context, endpoint, reqURL string, out any) error {
	start := time.Now()
	defer func() {
		metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", endpoint, redact(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%w: %s status %d: %s", ErrUpstream, endpoint, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// redact strips the query string, which carries the access token, from
// transport errors before they reach logs.
func redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if u, perr := url.Parse(uerr.URL); perr == nil {
			u.RawQuery = ""
			uerr.URL = u.String()
		}
	}
	return err
}
