package neighbor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"vanet-secure-routing/internal/vanet"
	"vanet-secure-routing/internal/vanet/neighbor"
)

func TestUpsertAndGet(t *testing.T) {
	tbl := neighbor.NewTable(10 * time.Second)
	now := time.Now()
	tbl.Upsert(vanet.VehicleInfo{ID: "vA", LastSeen: now, Trust: 0.8})

	got, ok := tbl.Get("vA")
	assert.True(t, ok)
	assert.Equal(t, 0.8, got.Trust)
	assert.Equal(t, 1, tbl.Len())
}

func TestSetTrustOnlyAffectsExistingEntry(t *testing.T) {
	tbl := neighbor.NewTable(10 * time.Second)
	tbl.SetTrust("ghost", 0.9) // no-op, entry doesn't exist
	_, ok := tbl.Get("ghost")
	assert.False(t, ok)

	tbl.Upsert(vanet.VehicleInfo{ID: "vA", LastSeen: time.Now(), Trust: 0.5})
	tbl.SetTrust("vA", 0.9)
	got, _ := tbl.Get("vA")
	assert.Equal(t, 0.9, got.Trust)
}

func TestEvictExpiredRemovesStaleEntries(t *testing.T) {
	timeout := 5 * time.Second
	tbl := neighbor.NewTable(timeout)
	base := time.Now()
	tbl.Upsert(vanet.VehicleInfo{ID: "stale", LastSeen: base})
	tbl.Upsert(vanet.VehicleInfo{ID: "fresh", LastSeen: base.Add(4 * time.Second)})

	evicted := tbl.EvictExpired(base.Add(6 * time.Second))
	assert.ElementsMatch(t, []string{"stale"}, evicted)
	assert.Equal(t, 1, tbl.Len())
	_, ok := tbl.Get("fresh")
	assert.True(t, ok)
}

func TestRemove(t *testing.T) {
	tbl := neighbor.NewTable(10 * time.Second)
	tbl.Upsert(vanet.VehicleInfo{ID: "vA", LastSeen: time.Now()})
	tbl.Remove("vA")
	_, ok := tbl.Get("vA")
	assert.False(t, ok)
}

func TestSnapshot(t *testing.T) {
	tbl := neighbor.NewTable(10 * time.Second)
	tbl.Upsert(vanet.VehicleInfo{ID: "vA", LastSeen: time.Now()})
	tbl.Upsert(vanet.VehicleInfo{ID: "vB", LastSeen: time.Now()})
	assert.Len(t, tbl.Snapshot(), 2)
}
