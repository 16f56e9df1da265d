// Package naver decodes Naver Map shared-folder exports.
package naver

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/MrSnakeDoc/matjip/internal/domain"
)

// Source is the batch source label for Naver imports.
const Source = "naver"

// payload mirrors the shared-folder JSON. px is the longitude, py the latitude.
type payload struct {
	BookmarkList []entry `json:"bookmarkList"`
}

type entry struct {
	Name    string   `json:"name"`
	Px      *float64 `json:"px"`
	Py      *float64 `json:"py"`
	Address string   `json:"address"`
}

// Parse decodes a shared-folder payload. Entries without a usable name or
// coordinates are dropped and counted in invalid.
func Parse(r io.Reader) (bookmarks []domain.SourceBookmark, invalid int, err error) {
	var p payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, 0, fmt.Errorf("failed to decode naver payload: %w", err)
	}
	if p.BookmarkList == nil {
		return nil, 0, fmt.Errorf("naver payload has no bookmarkList")
	}

	bookmarks = make([]domain.SourceBookmark, 0, len(p.BookmarkList))
	for _, e := range p.BookmarkList {
		b, ok := e.toBookmark()
		if !ok {
			invalid++
			continue
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, invalid, nil
}

func (e entry) toBookmark() (domain.SourceBookmark, bool) {
	name := strings.TrimSpace(e.Name)
	if name == "" || e.Px == nil || e.Py == nil {
		return domain.SourceBookmark{}, false
	}
	lat, lng := *e.Py, *e.Px
	if !validCoordinates(lat, lng) {
		return domain.SourceBookmark{}, false
	}
	return domain.SourceBookmark{
		Name:    name,
		Lat:     lat,
		Lng:     lng,
		Address: strings.TrimSpace(e.Address),
	}, true
}

// validCoordinates rejects non-finite, out-of-range and null-island points.
func validCoordinates(lat, lng float64) bool {
	for _, v := range []float64{lat, lng} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return false
	}
	return lat != 0 || lng != 0
}
