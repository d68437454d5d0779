package route_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanet-secure-routing/internal/vanet"
	"vanet-secure-routing/internal/vanet/route"
)

func TestInstallEnforcesHopLimit(t *testing.T) {
	tunables := vanet.DefaultTunables()
	c := route.NewCache(tunables)
	err := c.Install("dest", "next", tunables.MaxHopCount, 1.0, time.Now())
	assert.Equal(t, vanet.ErrHopLimitExceeded, vanet.KindOf(err))
}

func TestMaybeInstallPrefersShorterHopCount(t *testing.T) {
	tunables := vanet.DefaultTunables()
	c := route.NewCache(tunables)
	now := time.Now()
	installed, err := c.MaybeInstall("dest", "viaA", 3, 0.5, now)
	require.NoError(t, err)
	assert.True(t, installed)

	installed, err = c.MaybeInstall("dest", "viaB", 5, 0.9, now)
	require.NoError(t, err)
	assert.False(t, installed, "longer route must not replace a shorter one")

	installed, err = c.MaybeInstall("dest", "viaC", 1, 0.1, now)
	require.NoError(t, err)
	assert.True(t, installed)
	entry, _ := c.Get("dest")
	assert.Equal(t, "viaC", entry.NextHop)
}

func TestMaybeInstallReplacesStaleHalfTimeoutEntry(t *testing.T) {
	tunables := vanet.DefaultTunables()
	tunables.RouteTimeout = 10 * time.Second
	c := route.NewCache(tunables)
	start := time.Now()
	_, err := c.MaybeInstall("dest", "viaA", 2, 0.5, start)
	require.NoError(t, err)

	later := start.Add(6 * time.Second) // past half of RouteTimeout
	installed, err := c.MaybeInstall("dest", "viaB", 2, 0.5, later)
	require.NoError(t, err)
	assert.True(t, installed)
}

func TestMaybeInstallTieBreaksOnTrustThenLexicalOrder(t *testing.T) {
	tunables := vanet.DefaultTunables()
	c := route.NewCache(tunables)
	now := time.Now()
	_, err := c.MaybeInstall("dest", "viaB", 2, 0.4, now)
	require.NoError(t, err)

	installed, err := c.MaybeInstall("dest", "viaA", 2, 0.4, now)
	require.NoError(t, err)
	assert.True(t, installed, "equal trust falls back to lexicographically smaller next hop")

	installed, err = c.MaybeInstall("dest", "viaZ", 2, 0.4, now)
	require.NoError(t, err)
	assert.False(t, installed, "lexicographically larger next hop must not win a tie")
}

func TestSeenRequestDedupIsPerOriginAndID(t *testing.T) {
	tunables := vanet.DefaultTunables()
	c := route.NewCache(tunables)
	assert.False(t, c.SeenRequest("vA", 1))
	assert.True(t, c.SeenRequest("vA", 1))
	assert.False(t, c.SeenRequest("vA", 2))
	assert.False(t, c.SeenRequest("vB", 1))
}

func TestRemoveByNextHop(t *testing.T) {
	tunables := vanet.DefaultTunables()
	c := route.NewCache(tunables)
	now := time.Now()
	require.NoError(t, c.Install("d1", "via", 1, 1.0, now))
	require.NoError(t, c.Install("d2", "via", 1, 1.0, now))
	require.NoError(t, c.Install("d3", "other", 1, 1.0, now))

	removed := c.RemoveByNextHop("via")
	assert.ElementsMatch(t, []string{"d1", "d2"}, removed)
	assert.Equal(t, 1, c.Len())
}

func TestEvictExpiredRoutes(t *testing.T) {
	tunables := vanet.DefaultTunables()
	tunables.RouteTimeout = 5 * time.Second
	c := route.NewCache(tunables)
	start := time.Now()
	require.NoError(t, c.Install("dest", "via", 1, 1.0, start))

	evicted := c.EvictExpired(start.Add(6 * time.Second))
	assert.Equal(t, []string{"dest"}, evicted)
	assert.Equal(t, 0, c.Len())
}
