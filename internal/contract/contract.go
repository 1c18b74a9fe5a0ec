package contract

import (
	"fmt"
	"time"
)

// Window is how long a decoded contract stays valid, measured from the
// minute-aligned ValidFrom boundary.
const Window = 2 * time.Minute

// Contract is the decoded result served to clients.
type Contract struct {
	Aztec     string    `json:"aztec"`
	ValidFrom time.Time `json:"validFrom"`
}

// cacheEntry is the wire format stored in redis. ValidFrom is RFC3339
// UTC with a trailing Z.
type cacheEntry struct {
	Aztec     string `json:"aztec"`
	ValidFrom string `json:"valid_from"`
}

func newCacheEntry(c *Contract) cacheEntry {
	return cacheEntry{
		Aztec:     c.Aztec,
		ValidFrom: c.ValidFrom.UTC().Format(time.RFC3339),
	}
}

func (e cacheEntry) contract() (*Contract, error) {
	validFrom, err := time.Parse(time.RFC3339, e.ValidFrom)
	if err != nil {
		return nil, fmt.Errorf("contract: bad valid_from in cache entry: %w", err)
	}
	return &Contract{Aztec: e.Aztec, ValidFrom: validFrom}, nil
}
