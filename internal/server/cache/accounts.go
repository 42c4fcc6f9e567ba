// Package cache provides the per-worker read-through cache for account
// lookups. Every worker process owns its own instance; no coherence across
// workers is attempted, so cross-worker staleness is bounded only by the TTL.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dzaytsev/credkeeper/internal/server/models"
)

type Accounts struct {
	c *gocache.Cache
}

// NewAccounts creates a cache whose entries self-expire after ttl.
func NewAccounts(ttl time.Duration) *Accounts {
	return &Accounts{c: gocache.New(ttl, 2*ttl)}
}

// Get returns a snapshot of the cached account, or ok=false on a miss.
func (a *Accounts) Get(username string) (*models.Account, bool) {
	v, ok := a.c.Get(username)
	if !ok {
		return nil, false
	}
	snapshot := v.(models.Account)
	return &snapshot, true
}

// Put stores a snapshot of the account. A non-positive ttl uses the cache
// default.
func (a *Accounts) Put(username string, account *models.Account, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	a.c.Set(username, *account, ttl)
}

// Invalidate drops the entry for username. Mutating handlers call this before
// responding, so a follow-up read on the same worker observes fresh data.
func (a *Accounts) Invalidate(username string) {
	a.c.Delete(username)
}
