package domain

import "github.com/MrSnakeDoc/matjip/internal/geo"

// DuplicateRadiusMeters is the distance under which a same-name bookmark
// is considered already saved. Kept independent of the match radius.
const DuplicateRadiusMeters = 50.0

// FilterDuplicates drops candidates that match an existing place by exact
// name within DuplicateRadiusMeters. Candidates are not compared with each
// other. Order of the kept candidates is preserved.
func FilterDuplicates(candidates []SourceBookmark, existing []*SavedPlace) ([]SourceBookmark, int) {
	byName := make(map[string][]geo.Point, len(existing))
	for _, p := range existing {
		if p == nil {
			continue
		}
		byName[p.Name] = append(byName[p.Name], geo.Point{Lat: p.Lat, Lng: p.Lng})
	}

	toInsert := make([]SourceBookmark, 0, len(candidates))
	skipped := 0

	for _, c := range candidates {
		if isDuplicate(c, byName[c.Name]) {
			skipped++
			continue
		}
		toInsert = append(toInsert, c)
	}

	return toInsert, skipped
}

func isDuplicate(c SourceBookmark, sameName []geo.Point) bool {
	if len(sameName) == 0 {
		return false
	}
	center := geo.Point{Lat: c.Lat, Lng: c.Lng}
	box := geo.BoundingBox(center, DuplicateRadiusMeters)
	for _, p := range sameName {
		if !box.Contains(p) {
			continue
		}
		if geo.DistanceBetween(center, p) < DuplicateRadiusMeters {
			return true
		}
	}
	return false
}
