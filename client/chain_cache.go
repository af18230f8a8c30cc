package client

import (
	"fmt"
	"math/big"

	"polycry.pt/poly-go/sync"
)

// StableChainIDCache is a concurrently safe, write-once holder for the chain
// id reported by a node. It is stable in the sense that it does not allow
// overwriting the cached id with a different one.
type StableChainIDCache struct {
	mu sync.Mutex
	id *big.Int
}

func NewStableChainIDCache() *StableChainIDCache {
	return &StableChainIDCache{}
}

// Get returns a copy of the cached id and true, iff an id has been set.
func (c *StableChainIDCache) Get() (*big.Int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.id == nil {
		return nil, false
	}
	return new(big.Int).Set(c.id), true
}

// Set stores id. It errors if a different id is already cached.
func (c *StableChainIDCache) Set(id *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.id != nil {
		if c.id.Cmp(id) == 0 {
			return nil
		}
		return fmt.Errorf("%w: node switched from %s to %s", ErrChainIDMismatch, c.id, id)
	}
	c.id = new(big.Int).Set(id)
	return nil
}
