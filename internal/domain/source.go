package domain

// SourceBookmark is a place read from an external export.
// It only lives for the duration of one import request.
type SourceBookmark struct {
	Name    string
	Lat     float64
	Lng     float64
	Address string
}
