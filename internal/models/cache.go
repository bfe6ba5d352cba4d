package models

import "time"

// CacheEntry is a persisted metadata response with the time it was fetched
// from the upstream API.
type CacheEntry struct {
	Body      []byte
	FetchedAt time.Time
}
