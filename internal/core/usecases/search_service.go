package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samirrijal/wayfinder/internal/core/domain"
	"github.com/samirrijal/wayfinder/internal/core/ports"
	"github.com/samirrijal/wayfinder/internal/pkg/metrics"
)

// SearchLimit caps the number of geocoding candidates.
const SearchLimit = 5

const searchCacheTTL = 300

// SearchService handles place search against the geocoder.
type SearchService struct {
	geocoder ports.Geocoder
	cache    ports.CacheService
}

// NewSearchService creates a new SearchService. cache may be nil.
func NewSearchService(geocoder ports.Geocoder, cache ports.CacheService) *SearchService {
	return &SearchService{geocoder: geocoder, cache: cache}
}

// Search returns up to SearchLimit places for query, ranked with a bias
// towards proximity (the fallback location when nil). A blank query returns
// domain.ErrEmptyQuery without contacting the geocoder.
func (s *SearchService) Search(ctx context.Context, query string, proximity *domain.GeoPoint) ([]domain.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	near := FallbackLocation
	if proximity != nil {
		near = *proximity
	}

	// Try cache
	cacheKey := fmt.Sprintf("places:%s:%.4f:%.4f:%d", strings.ToLower(query), near.Lon, near.Lat, SearchLimit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var places []domain.Place
			if err := json.Unmarshal(data, &places); err == nil {
				metrics.CacheHits.WithLabelValues("places").Inc()
				return places, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("places").Inc()
	}

	places, err := s.geocoder.Forward(ctx, query, near, SearchLimit)
	if err != nil {
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}
	metrics.GeocodeRequests.WithLabelValues("ok").Inc()

	if len(places) > SearchLimit {
		places = places[:SearchLimit]
	}

	if s.cache != nil {
		if data, err := json.Marshal(places); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, searchCacheTTL)
		}
	}

	return places, nil
}
