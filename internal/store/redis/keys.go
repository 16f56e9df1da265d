package redis

import "strings"

const (
	// KeyPrefixPlace is the prefix for saved-place keys
	KeyPrefixPlace = "matjip:place:"
	// KeyPrefixImport is the prefix for import-batch keys
	KeyPrefixImport = "matjip:import:"
	// KeyPrefixUser is the prefix for per-user index keys
	KeyPrefixUser = "matjip:user:"
	// KeyUnresolved is the set of place keys still waiting for enrichment
	KeyUnresolved = "matjip:places:unresolved"
)

// PlaceKey returns the Redis key for a user's place
func PlaceKey(userID, placeID string) string {
	return KeyPrefixPlace + userID + ":" + placeID
}

// ImportKey returns the Redis key for an import batch
func ImportKey(batchID string) string {
	return KeyPrefixImport + batchID
}

// BatchPlacesKey returns the set of place keys created by a batch
func BatchPlacesKey(batchID string) string {
	return KeyPrefixImport + batchID + ":places"
}

// UserPlacesKey returns the set of place ids owned by a user
func UserPlacesKey(userID string) string {
	return KeyPrefixUser + userID + ":places"
}

// UserImportsKey returns the sorted set of batch ids of a user, scored by creation time
func UserImportsKey(userID string) string {
	return KeyPrefixUser + userID + ":imports"
}

// importScanPattern also matches batch place sets; filter with isBatchKey
const importScanPattern = KeyPrefixImport + "*"

func isBatchKey(key string) bool {
	return strings.HasPrefix(key, KeyPrefixImport) &&
		len(key) > len(KeyPrefixImport) &&
		!strings.HasSuffix(key, ":places")
}
