package kakao

import (
	"fmt"
	"strconv"

	"github.com/MrSnakeDoc/matjip/internal/places"
)

type searchResponse struct {
	Meta      meta       `json:"meta"`
	Documents []document `json:"documents"`
}

type meta struct {
	TotalCount    int  `json:"total_count"`
	PageableCount int  `json:"pageable_count"`
	IsEnd         bool `json:"is_end"`
}

// document is one place. Coordinates and distance arrive as strings.
type document struct {
	ID                string `json:"id"`
	PlaceName         string `json:"place_name"`
	CategoryName      string `json:"category_name"`
	CategoryGroupCode string `json:"category_group_code"`
	AddressName       string `json:"address_name"`
	RoadAddressName   string `json:"road_address_name"`
	PlaceURL          string `json:"place_url"`
	X                 string `json:"x"`
	Y                 string `json:"y"`
	Distance          string `json:"distance"`
}

type errorResponse struct {
	ErrorType string `json:"errorType"`
	Message   string `json:"message"`
}

func (d document) candidate() (places.Candidate, error) {
	if d.ID == "" {
		return places.Candidate{}, fmt.Errorf("missing id")
	}
	lng, err := strconv.ParseFloat(d.X, 64)
	if err != nil {
		return places.Candidate{}, fmt.Errorf("bad x %q: %w", d.X, err)
	}
	lat, err := strconv.ParseFloat(d.Y, 64)
	if err != nil {
		return places.Candidate{}, fmt.Errorf("bad y %q: %w", d.Y, err)
	}

	// distance is empty when the query had no center
	var dist float64
	if d.Distance != "" {
		dist, err = strconv.ParseFloat(d.Distance, 64)
		if err != nil {
			return places.Candidate{}, fmt.Errorf("bad distance %q: %w", d.Distance, err)
		}
	}

	return places.Candidate{
		ID:             d.ID,
		Name:           d.PlaceName,
		CategoryLabel:  d.CategoryName,
		DetailURL:      d.PlaceURL,
		Lat:            lat,
		Lng:            lng,
		DistanceMeters: dist,
	}, nil
}
