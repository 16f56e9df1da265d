package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmcloughlin/geohash"
)

const (
	// SyntheticPrefix marks ids that were derived from coordinates and
	// have not been matched to a provider place yet.
	SyntheticPrefix = "naver_"

	// syntheticPrecision is the geohash length used for synthetic ids.
	// 9 characters resolve to a cell of roughly 5m x 5m.
	syntheticPrecision = 9
)

// PlaceID identifies a saved place. It is either Unresolved (synthetic,
// coordinate-derived) or Resolved (canonical provider id). The zero value
// is an invalid empty id.
type PlaceID struct {
	value    string
	resolved bool
}

// Unresolved builds the synthetic id for a coordinate pair.
// Same coordinates always produce the same id.
func Unresolved(lat, lng float64) PlaceID {
	return PlaceID{value: SyntheticID(lat, lng)}
}

// SyntheticID returns the raw synthetic id string for a coordinate pair.
func SyntheticID(lat, lng float64) string {
	return SyntheticPrefix + geohash.EncodeWithPrecision(lat, lng, syntheticPrecision)
}

// Resolved wraps a canonical provider id.
func Resolved(id string) PlaceID {
	return PlaceID{value: id, resolved: true}
}

// ParsePlaceID recognizes the id kind from its shape.
func ParsePlaceID(s string) (PlaceID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PlaceID{}, fmt.Errorf("empty place id")
	}
	if strings.HasPrefix(s, SyntheticPrefix) {
		if len(s) == len(SyntheticPrefix) {
			return PlaceID{}, fmt.Errorf("synthetic place id %q has no hash", s)
		}
		return PlaceID{value: s}, nil
	}
	return Resolved(s), nil
}

// IsResolved reports whether the id is a canonical provider id.
func (id PlaceID) IsResolved() bool { return id.resolved }

func (id PlaceID) String() string { return id.value }

func (id PlaceID) MarshalText() ([]byte, error) {
	return []byte(id.value), nil
}

func (id *PlaceID) UnmarshalText(b []byte) error {
	parsed, err := ParsePlaceID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Unrated is the Rating value of a wishlist entry that was never visited.
const Unrated = 0

// SavedPlace is a restaurant persisted for one user.
type SavedPlace struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// UserID owns the place. (UserID, ID) is unique.
	UserID string `json:"userId"`

	// ID is synthetic until enrichment replaces it with the provider id.
	ID PlaceID `json:"id"`

	// ─────────────────────────────
	// Description
	// ─────────────────────────────

	Name string `json:"name"`

	// Category is the provider category label. Empty = uncategorized.
	Category string `json:"category"`

	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`

	// DetailURL is the provider detail page. Empty = none.
	DetailURL string `json:"detailUrl,omitempty"`

	// ─────────────────────────────
	// User state
	// ─────────────────────────────

	// Rating is Unrated for wishlist entries, 1-5 once visited.
	Rating int `json:"rating"`

	// BatchID references the import that created the place.
	// Empty for places added by hand.
	BatchID string `json:"batchId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// IsVisited reports whether the user rated the place.
func (p *SavedPlace) IsVisited() bool { return p.Rating != Unrated }

// Clone returns a copy safe to hand out of a store.
func (p *SavedPlace) Clone() *SavedPlace {
	cp := *p
	return &cp
}
