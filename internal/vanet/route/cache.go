// Package route implements the reactive AODV-style route cache: the
// destination -> RouteEntry table, RREQ dedup bookkeeping, tie-break rules
// and timeout eviction. It is the data-structure half of the teacher's
// routing.AODVRouter (internal/routing/aodv.go): the routeTable and
// seenMsgIDs maps generalize directly, with hop-count/id types changed
// from uint32 to opaque strings and an explicit CreatedAt used for
// invariant I7 eviction, which the teacher's implementation never had
// (its TODO block names exactly this gap: "Implement a timeout for
// routes").
package route

import (
	"fmt"
	"time"

	"vanet-secure-routing/internal/vanet"
)

// Cache owns one vehicle's route table and RREQ dedup set.
type Cache struct {
	tunables vanet.Tunables
	entries  map[string]vanet.RouteEntry
	seen     map[string]bool // key = origin + "|" + requestID, per-(origin, request-id) dedup
}

// NewCache constructs an empty route cache.
func NewCache(tunables vanet.Tunables) *Cache {
	return &Cache{
		tunables: tunables,
		entries:  make(map[string]vanet.RouteEntry),
		seen:     make(map[string]bool),
	}
}

// Get returns the live route to dest, if any.
func (c *Cache) Get(dest string) (vanet.RouteEntry, bool) {
	e, ok := c.entries[dest]
	return e, ok
}

// Install unconditionally (re)installs a route, enforcing invariant I1
// (hopCount < MaxHopCount).
func (c *Cache) Install(dest, nextHop string, hopCount int, trust float64, now time.Time) error {
	if hopCount >= c.tunables.MaxHopCount {
		return vanet.NewError(vanet.ErrHopLimitExceeded, nextHop)
	}
	c.entries[dest] = vanet.RouteEntry{
		Destination: dest,
		NextHop:     nextHop,
		HopCount:    hopCount,
		CreatedAt:   now,
		Trust:       trust,
	}
	return nil
}

// MaybeInstall installs a candidate route only if it is strictly shorter
// than the cached one, or the cached one is older than half of
// RouteTimeout — the tie-break rule from §4.4. Ties (equal hop count) are
// resolved in favor of the next hop with higher trust, and a further tie
// by lexicographically smaller next-hop id, for deterministic tests.
func (c *Cache) MaybeInstall(dest, nextHop string, hopCount int, trust float64, now time.Time) (bool, error) {
	existing, ok := c.Get(dest)
	if !ok {
		return true, c.Install(dest, nextHop, hopCount, trust, now)
	}
	if hopCount < existing.HopCount {
		return true, c.Install(dest, nextHop, hopCount, trust, now)
	}
	if now.Sub(existing.CreatedAt) > c.tunables.RouteTimeout/2 {
		return true, c.Install(dest, nextHop, hopCount, trust, now)
	}
	if hopCount == existing.HopCount && nextHop != existing.NextHop {
		if trust > existing.Trust || (trust == existing.Trust && nextHop < existing.NextHop) {
			return true, c.Install(dest, nextHop, hopCount, trust, now)
		}
	}
	return false, nil
}

// Remove drops the route to dest, if any.
func (c *Cache) Remove(dest string) {
	delete(c.entries, dest)
}

// RemoveByNextHop drops every route whose next hop is nextHop, returning
// the destinations that were removed. Used both for direct RERR handling
// and for a next-hop's trust collapsing below the threshold.
func (c *Cache) RemoveByNextHop(nextHop string) []string {
	var removed []string
	for dest, e := range c.entries {
		if e.NextHop == nextHop {
			delete(c.entries, dest)
			removed = append(removed, dest)
		}
	}
	return removed
}

// EvictExpired removes every route older than RouteTimeout, satisfying
// invariant I7. Returns the evicted destinations.
func (c *Cache) EvictExpired(now time.Time) []string {
	var evicted []string
	for dest, e := range c.entries {
		if now.Sub(e.CreatedAt) > c.tunables.RouteTimeout {
			delete(c.entries, dest)
			evicted = append(evicted, dest)
		}
	}
	return evicted
}

// SeenRequest reports whether (origin, requestID) has been observed
// before and marks it seen if not, implementing the per-(origin,
// request-id) duplicate-suppression the specification's Open Question
// resolves to.
func (c *Cache) SeenRequest(origin string, requestID uint32) bool {
	key := fmt.Sprintf("%s|%d", origin, requestID)
	if c.seen[key] {
		return true
	}
	c.seen[key] = true
	return false
}

// Snapshot returns every live route, for tests and telemetry.
func (c *Cache) Snapshot() []vanet.RouteEntry {
	out := make([]vanet.RouteEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out
}

// Len reports the number of live routes.
func (c *Cache) Len() int {
	return len(c.entries)
}
