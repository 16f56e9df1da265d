// Package places defines the contract of the external place-search provider.
package places

import (
	"context"

	"github.com/MrSnakeDoc/matjip/internal/geo"
)

// Category group codes understood by the provider.
const (
	CategoryFood = "FD6"
	CategoryCafe = "CE7"
)

// SortByDistance orders results nearest first.
const SortByDistance = "distance"

// Candidate is one place returned by a search.
type Candidate struct {
	ID            string
	Name          string
	CategoryLabel string
	DetailURL     string
	Lat           float64
	Lng           float64

	// DistanceMeters as reported by the provider. Not authoritative.
	DistanceMeters float64
}

// Point returns the candidate coordinates.
func (c Candidate) Point() geo.Point { return geo.Point{Lat: c.Lat, Lng: c.Lng} }

type KeywordQuery struct {
	Query        string
	Center       geo.Point
	RadiusMeters int
	Sort         string
	Limit        int
}

type CategoryQuery struct {
	Code         string
	Center       geo.Point
	RadiusMeters int
	Sort         string
	Limit        int
}

// Searcher is a place-search provider. Transport failures, non-2xx
// responses and malformed payloads are returned as errors.
type Searcher interface {
	SearchByKeyword(ctx context.Context, q KeywordQuery) ([]Candidate, error)
	SearchByCategory(ctx context.Context, q CategoryQuery) ([]Candidate, error)
}
