// Package vanet holds the data model shared by every core component:
// positions, vehicle records, route entries and the tunables that bound
// their lifecycles.
package vanet

import "time"

// Position is an immutable sample of a vehicle's location, emitted by an
// external mobility source.
type Position struct {
	X, Y, Z    float64
	ObservedAt time.Time
}

// VehicleInfo describes a one-hop neighbor learned from an authenticated
// HELLO beacon.
type VehicleInfo struct {
	ID          string
	Position    Position
	SpeedKMH    float64
	DirectionRd float64
	Trust       float64
	Certificate []byte
	LastSeen    time.Time
}

// RouteEntry is the best-known path to a destination.
type RouteEntry struct {
	Destination string
	NextHop     string
	HopCount    int
	CreatedAt   time.Time
	Trust       float64
}

// Tunables collects every constant the specification names, so a single
// value can be threaded through every component instead of scattering
// package-level constants.
type Tunables struct {
	MessageTimeout   time.Duration
	MaxMessageHist   int
	MaxCertChainLen  int
	NeighborTimeout  time.Duration
	RouteTimeout     time.Duration
	MaxHopCount      int
	TrustThreshold   float64
	TrustAlpha       float64
	MaxSpeedKMH      float64
	MaxAccelMS2      float64
	BlackHoleK       int
	BlackHoleWindow  time.Duration
	BlackHoleMinFwd  float64
	SybilEpsilonM    float64
	TickInterval     time.Duration
	MaxRREQRetries   int
	RREQRetryInterval time.Duration
}

// DefaultTunables returns the values named throughout the specification.
func DefaultTunables() Tunables {
	return Tunables{
		MessageTimeout:    5000 * time.Millisecond,
		MaxMessageHist:    1000,
		MaxCertChainLen:   5,
		NeighborTimeout:   10 * time.Second,
		RouteTimeout:      60 * time.Second,
		MaxHopCount:       10,
		TrustThreshold:    0.5,
		TrustAlpha:        0.3,
		MaxSpeedKMH:       200,
		MaxAccelMS2:       10,
		BlackHoleK:        20,
		BlackHoleWindow:   5 * time.Second,
		BlackHoleMinFwd:   0.3,
		SybilEpsilonM:     2,
		TickInterval:      time.Second,
		MaxRREQRetries:    2,
		RREQRetryInterval: 2 * time.Second,
	}
}
