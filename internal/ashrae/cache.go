package ashrae

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// cacheState distinguishes a station we have never looked up from one we
// looked up and confirmed has no record. Both would otherwise read as a
// nil Record, and a confirmed absence must not trigger another query.
type cacheState int

const (
	notFetched cacheState = iota
	fetchedEmpty
	fetchedRecord
)

type cacheEntry struct {
	state  cacheState
	record *Record
}

// Cache memoizes record lookups for the lifetime of a single scrape run.
// Keys are normalized station tokens scoped to a state, so repeated
// stations in the same metro area cost one backend query total.
type Cache struct {
	client Client

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCache creates an empty cache backed by the given client.
func NewCache(client Client) *Cache {
	return &Cache{
		client:  client,
		entries: make(map[string]cacheEntry),
	}
}

// Lookup returns the climate record for a station name, or nil when the
// store has none. A lookup error is returned only on the first miss; the
// error is not cached, so a later call may retry the backend.
func (c *Cache) Lookup(ctx context.Context, state, stationName string) (*Record, error) {
	token := NormalizeStation(stationName)
	if token == "" {
		return nil, nil
	}
	key := state + "/" + token

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && entry.state != notFetched {
		return entry.record, nil
	}

	records, err := c.client.Query(ctx, state, token, 1)
	if err != nil {
		return nil, err
	}

	entry = cacheEntry{state: fetchedEmpty}
	if len(records) > 0 {
		rec := records[0]
		entry = cacheEntry{state: fetchedRecord, record: &rec}
	} else {
		zap.L().Debug("no climate record for station",
			zap.String("state", state),
			zap.String("station", token))
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()

	return entry.record, nil
}
