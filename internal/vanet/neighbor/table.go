// Package neighbor tracks one-hop peers learned from HELLO beacons. It is
// grounded on the teacher's node.go neighbor bookkeeping
// (nodeImpl.neighbors / AddDirectNeighbor), generalized from a boolean
// presence set to full VehicleInfo records. Movement-plausibility gating is
// left to the caller (see Upsert).
package neighbor

import (
	"time"

	"vanet-secure-routing/internal/vanet"
)

// Table is the set of currently-live one-hop neighbors.
type Table struct {
	timeout time.Duration
	entries map[string]vanet.VehicleInfo
}

// NewTable constructs an empty table that evicts entries after timeout.
func NewTable(timeout time.Duration) *Table {
	return &Table{timeout: timeout, entries: make(map[string]vanet.VehicleInfo)}
}

// Get returns the current record for id, if live.
func (t *Table) Get(id string) (vanet.VehicleInfo, bool) {
	v, ok := t.entries[id]
	return v, ok
}

// Upsert inserts a new neighbor or overwrites an existing one. Callers
// must have already validated movement plausibility for updates.
func (t *Table) Upsert(info vanet.VehicleInfo) {
	t.entries[info.ID] = info
}

// Remove drops a neighbor immediately, used when trust collapses below the
// threshold.
func (t *Table) Remove(id string) {
	delete(t.entries, id)
}

// SetTrust updates only the trust field of an existing entry.
func (t *Table) SetTrust(id string, trust float64) {
	if v, ok := t.entries[id]; ok {
		v.Trust = trust
		t.entries[id] = v
	}
}

// EvictExpired removes every entry whose LastSeen + timeout has elapsed
// relative to now, satisfying invariant I6. Safe to call on every public
// entry point and every scheduler tick.
func (t *Table) EvictExpired(now time.Time) []string {
	var evicted []string
	for id, v := range t.entries {
		if now.Sub(v.LastSeen) > t.timeout {
			delete(t.entries, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// Snapshot returns a copy of every live entry, for tests and telemetry.
func (t *Table) Snapshot() []vanet.VehicleInfo {
	out := make([]vanet.VehicleInfo, 0, len(t.entries))
	for _, v := range t.entries {
		out = append(out, v)
	}
	return out
}

// Len reports how many neighbors are currently tracked.
func (t *Table) Len() int {
	return len(t.entries)
}
