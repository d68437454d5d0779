package trust_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"vanet-secure-routing/internal/vanet"
	"vanet-secure-routing/internal/vanet/trust"
)

func TestUnknownPeerDefaultsToZeroTrust(t *testing.T) {
	s := trust.NewStore(vanet.DefaultTunables())
	assert.Equal(t, trust.Unknown, s.Score("ghost"))
	assert.False(t, s.IsTrusted("ghost"))
}

func TestObserveAppliesExponentialMovingAverage(t *testing.T) {
	tunables := vanet.DefaultTunables() // TrustAlpha = 0.3
	s := trust.NewStore(tunables)
	got := s.Observe("vA", 1.0)
	assert.InDelta(t, 0.3, got, 1e-9)
	got = s.Observe("vA", 1.0)
	assert.InDelta(t, 0.51, got, 1e-9)
}

func TestPenalizeHalvesTrust(t *testing.T) {
	s := trust.NewStore(vanet.DefaultTunables())
	s.Observe("vA", 1.0)
	before := s.Score("vA")
	after := s.Penalize("vA")
	assert.InDelta(t, before/2, after, 1e-9)
}

func TestMovementPlausibleAcceptsReasonableSpeed(t *testing.T) {
	tunables := vanet.DefaultTunables()
	now := time.Now()
	prev := vanet.Position{X: 0, Y: 0, ObservedAt: now}
	cur := vanet.Position{X: 20, Y: 0, ObservedAt: now.Add(1 * time.Second)} // 20 m/s = 72 km/h
	speed, err := trust.MovementPlausible(prev, cur, 70, tunables)
	assert.NoError(t, err)
	assert.InDelta(t, 72.0, speed, 0.1)
}

func TestMovementImplausibleSpeedRejected(t *testing.T) {
	tunables := vanet.DefaultTunables()
	now := time.Now()
	prev := vanet.Position{X: 0, Y: 0, ObservedAt: now}
	cur := vanet.Position{X: 5000, Y: 0, ObservedAt: now.Add(1 * time.Second)} // 5 km in 1s
	_, err := trust.MovementPlausible(prev, cur, 0, tunables)
	assert.Equal(t, vanet.ErrInvalidMovement, vanet.KindOf(err))
}

func TestMovementImplausibleAccelerationRejected(t *testing.T) {
	tunables := vanet.DefaultTunables()
	now := time.Now()
	prev := vanet.Position{X: 0, Y: 0, ObservedAt: now}
	cur := vanet.Position{X: 15, Y: 0, ObservedAt: now.Add(1 * time.Second)} // 15 m/s from a standstill: 15 m/s^2 accel
	_, err := trust.MovementPlausible(prev, cur, 0, tunables)
	assert.Equal(t, vanet.ErrInvalidMovement, vanet.KindOf(err))
}

func TestBlackHoleDetectorFiresAboveThresholdWithLowForwarding(t *testing.T) {
	tunables := vanet.DefaultTunables() // K=20, window=5s, minFwd=0.3
	s := trust.NewStore(tunables)
	base := time.Now()
	var fired bool
	for i := 0; i < tunables.BlackHoleK; i++ {
		dest := "dest" + string(rune('A'+i))
		fired = s.RecordRouteAdvertisement("attacker", dest, base.Add(time.Duration(i)*time.Millisecond), 0.1)
	}
	assert.True(t, fired)
	assert.Less(t, s.Score("attacker"), trust.Self)
}

func TestBlackHoleDetectorDoesNotFireWithHealthyForwarding(t *testing.T) {
	tunables := vanet.DefaultTunables()
	s := trust.NewStore(tunables)
	base := time.Now()
	var fired bool
	for i := 0; i < tunables.BlackHoleK; i++ {
		dest := "dest" + string(rune('A'+i))
		fired = s.RecordRouteAdvertisement("goodpeer", dest, base.Add(time.Duration(i)*time.Millisecond), 0.9)
	}
	assert.False(t, fired)
}

func TestSybilDetectorFlagsCollidingPositions(t *testing.T) {
	tunables := vanet.DefaultTunables() // SybilEpsilonM = 2
	s := trust.NewStore(tunables)
	now := time.Now()
	pos := vanet.Position{X: 100, Y: 100, ObservedAt: now}

	_, fired := s.CheckSybil("vA", pos, now)
	assert.False(t, fired)

	collidesWith, fired := s.CheckSybil("vB", vanet.Position{X: 100.5, Y: 100.5, ObservedAt: now}, now)
	assert.True(t, fired)
	assert.Equal(t, "vA", collidesWith)
	assert.Less(t, s.Score("vA"), trust.Self)
	assert.Less(t, s.Score("vB"), trust.Self)
}

func TestSybilDetectorIgnoresDistantPositions(t *testing.T) {
	tunables := vanet.DefaultTunables()
	s := trust.NewStore(tunables)
	now := time.Now()
	s.CheckSybil("vA", vanet.Position{X: 0, Y: 0, ObservedAt: now}, now)
	_, fired := s.CheckSybil("vB", vanet.Position{X: 500, Y: 500, ObservedAt: now}, now)
	assert.False(t, fired)
}

func TestForgetClearsAllPeerState(t *testing.T) {
	s := trust.NewStore(vanet.DefaultTunables())
	s.Observe("vA", 1.0)
	s.Forget("vA")
	assert.Equal(t, trust.Unknown, s.Score("vA"))
}
