// Package matcher picks the provider place that corresponds to a bookmark.
package matcher

import (
	"context"

	"github.com/MrSnakeDoc/matjip/internal/domain"
	"github.com/MrSnakeDoc/matjip/internal/geo"
	"github.com/MrSnakeDoc/matjip/internal/logger"
	"github.com/MrSnakeDoc/matjip/internal/places"
)

const (
	// MatchRadiusMeters bounds keyword matches.
	MatchRadiusMeters = 300
	// MatchLimit is the number of keyword candidates requested.
	MatchLimit = 5

	// FallbackRadiusMeters bounds the coordinate-only category lookup.
	FallbackRadiusMeters = 50
)

// fallbackCategories are tried in order by ResolveCategoryByCoordinates.
var fallbackCategories = []string{places.CategoryFood, places.CategoryCafe}

// Resolver matches bookmarks against a place-search provider.
// Lookups are best effort: provider errors are logged and reported as
// "no match", never returned.
type Resolver struct {
	searcher places.Searcher
	logger   logger.Logger
}

func NewResolver(searcher places.Searcher, log logger.Logger) *Resolver {
	return &Resolver{
		searcher: searcher,
		logger:   log.With(logger.Component("matcher")),
	}
}

// ResolveMatch returns the closest provider place within MatchRadiusMeters
// whose name matches, or nil.
func (r *Resolver) ResolveMatch(ctx context.Context, name string, lat, lng float64) *places.Candidate {
	origin := geo.Point{Lat: lat, Lng: lng}

	candidates, err := r.searcher.SearchByKeyword(ctx, places.KeywordQuery{
		Query:        name,
		Center:       origin,
		RadiusMeters: MatchRadiusMeters,
		Sort:         places.SortByDistance,
		Limit:        MatchLimit,
	})
	if err != nil {
		r.logger.Warn("keyword search failed",
			logger.String("name", name),
			logger.Error(err))
		return nil
	}

	var best *places.Candidate
	bestDist := 0.0
	for i := range candidates {
		c := candidates[i]
		// Provider radius filtering is not exact
		d := geo.DistanceBetween(origin, c.Point())
		if d > MatchRadiusMeters {
			continue
		}
		if !domain.IsNameMatch(name, c.Name) {
			continue
		}
		if best == nil || d < bestDist {
			c.DistanceMeters = d
			best = &c
			bestDist = d
		}
	}

	if best != nil {
		r.logger.Debug("matched place",
			logger.String("name", name),
			logger.String("place_id", best.ID),
			logger.Float64("distance_m", bestDist))
	}
	return best
}

// ResolveCategoryByCoordinates returns the category label of the nearest
// restaurant, then cafe, within FallbackRadiusMeters. Empty when none.
func (r *Resolver) ResolveCategoryByCoordinates(ctx context.Context, lat, lng float64) string {
	origin := geo.Point{Lat: lat, Lng: lng}

	for _, code := range fallbackCategories {
		candidates, err := r.searcher.SearchByCategory(ctx, places.CategoryQuery{
			Code:         code,
			Center:       origin,
			RadiusMeters: FallbackRadiusMeters,
			Sort:         places.SortByDistance,
			Limit:        1,
		})
		if err != nil {
			r.logger.Warn("category search failed",
				logger.String("category", code),
				logger.Error(err))
			return ""
		}
		if len(candidates) == 0 {
			continue
		}
		first := candidates[0]
		if geo.DistanceBetween(origin, first.Point()) > FallbackRadiusMeters {
			continue
		}
		if first.CategoryLabel != "" {
			return first.CategoryLabel
		}
	}
	return ""
}
