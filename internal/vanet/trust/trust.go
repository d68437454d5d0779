// Package trust maintains the per-peer trust score and the VANET-specific
// attack detectors that feed it. Grounded on the specification's EMA rule
// and the movement-plausibility model original_source/src/routing left
// unimplemented; the black-hole/Sybil detector shapes are new but the
// per-peer bookkeeping style (a map keyed by peer id with a cooldown
// timestamp) mirrors the teacher's routing.AODVRouter.pendingTxs pattern.
package trust

import (
	"math"
	"time"

	"vanet-secure-routing/internal/vanet"
)

const (
	// Self trust is fixed by invariant I5.
	Self = 1.0
	// Unknown peers default to zero trust until observed.
	Unknown = 0.0
)

// Store owns every peer's trust score plus the bookkeeping the attack
// detectors need (route-advertisement history for black-hole detection,
// recent position claims for Sybil detection).
type Store struct {
	tunables vanet.Tunables
	scores   map[string]float64

	routeAds        map[string][]routeAd
	blackHoleFlagAt map[string]time.Time

	positionClaims map[string]positionClaim
	sybilFlagAt    map[string]time.Time
}

type routeAd struct {
	destination string
	at          time.Time
}

type positionClaim struct {
	peerID string
	pos    vanet.Position
	at     time.Time
}

// NewStore constructs an empty trust store.
func NewStore(tunables vanet.Tunables) *Store {
	return &Store{
		tunables:        tunables,
		scores:          make(map[string]float64),
		routeAds:        make(map[string][]routeAd),
		blackHoleFlagAt: make(map[string]time.Time),
		positionClaims:  make(map[string]positionClaim),
		sybilFlagAt:     make(map[string]time.Time),
	}
}

// Score returns a peer's current trust, defaulting to Unknown for a peer
// never observed.
func (s *Store) Score(peerID string) float64 {
	if v, ok := s.scores[peerID]; ok {
		return v
	}
	return Unknown
}

// Observe folds a new observation into peerID's score by exponential
// moving average: new = alpha*obs + (1-alpha)*old.
func (s *Store) Observe(peerID string, obs float64) float64 {
	old := s.Score(peerID)
	updated := s.tunables.TrustAlpha*obs + (1-s.tunables.TrustAlpha)*old
	if updated < 0 {
		updated = 0
	}
	if updated > 1 {
		updated = 1
	}
	s.scores[peerID] = updated
	return updated
}

// Penalize halves a peer's trust, the response every detector in §4.5
// applies on a confirmed attack.
func (s *Store) Penalize(peerID string) float64 {
	updated := s.Score(peerID) * 0.5
	s.scores[peerID] = updated
	return updated
}

// IsTrusted reports whether peerID's score meets TrustThreshold.
func (s *Store) IsTrusted(peerID string) bool {
	return s.Score(peerID) >= s.tunables.TrustThreshold
}

// MovementPlausible checks two successive positions for a peer against the
// speed and acceleration limits. dt must be > 0.
func MovementPlausible(prev, cur vanet.Position, prevSpeedKMH float64, tunables vanet.Tunables) (speedKMH float64, err error) {
	dt := cur.ObservedAt.Sub(prev.ObservedAt).Seconds()
	if dt <= 0 {
		return 0, vanet.NewError(vanet.ErrInvalidMovement, "")
	}
	dx := cur.X - prev.X
	dy := cur.Y - prev.Y
	dz := cur.Z - prev.Z
	dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
	speedMS := dist / dt
	speedKMH = speedMS * 3.6
	if speedKMH > tunables.MaxSpeedKMH {
		return speedKMH, vanet.NewError(vanet.ErrInvalidMovement, "")
	}
	accel := math.Abs((speedMS-prevSpeedKMH/3.6) / dt)
	if accel > tunables.MaxAccelMS2 {
		return speedKMH, vanet.NewError(vanet.ErrInvalidMovement, "")
	}
	return speedKMH, nil
}

// RecordRouteAdvertisement notes that peerID advertised a route to
// destination at "at", then evaluates the black-hole detector: a node
// advertising routes to >= BlackHoleK distinct destinations within
// BlackHoleWindow while its observed forwarding ratio stays below
// BlackHoleMinFwd is flagged. Returns true if the detector fired on this
// call (respecting the BlackHoleWindow cooldown so it does not refire on
// every subsequent advertisement).
func (s *Store) RecordRouteAdvertisement(peerID, destination string, at time.Time, forwardingRatio float64) bool {
	ads := append(s.routeAds[peerID], routeAd{destination: destination, at: at})
	cutoff := at.Add(-s.tunables.BlackHoleWindow)
	kept := ads[:0]
	seen := make(map[string]bool, len(ads))
	for _, ad := range ads {
		if ad.at.After(cutoff) {
			kept = append(kept, ad)
			seen[ad.destination] = true
		}
	}
	s.routeAds[peerID] = kept

	if len(seen) < s.tunables.BlackHoleK || forwardingRatio >= s.tunables.BlackHoleMinFwd {
		return false
	}
	if last, ok := s.blackHoleFlagAt[peerID]; ok && at.Sub(last) < s.tunables.BlackHoleWindow {
		return false
	}
	s.blackHoleFlagAt[peerID] = at
	s.Penalize(peerID)
	return true
}

// CheckSybil compares a fresh position claim against every other peer's
// most recent claim; two distinct ids reporting positions within
// SybilEpsilonM meters during overlapping windows are both flagged. It
// returns the id of the colliding peer, if any.
func (s *Store) CheckSybil(peerID string, pos vanet.Position, at time.Time) (collidesWith string, fired bool) {
	window := s.tunables.MessageTimeout
	for otherID, claim := range s.positionClaims {
		if otherID == peerID {
			continue
		}
		if at.Sub(claim.at) > window || claim.at.Sub(at) > window {
			continue
		}
		dx := pos.X - claim.pos.X
		dy := pos.Y - claim.pos.Y
		dz := pos.Z - claim.pos.Z
		dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
		if dist <= s.tunables.SybilEpsilonM {
			if last, ok := s.sybilFlagAt[peerID]; ok && at.Sub(last) < window {
				continue
			}
			s.sybilFlagAt[peerID] = at
			s.sybilFlagAt[otherID] = at
			s.Penalize(peerID)
			s.Penalize(otherID)
			s.positionClaims[peerID] = positionClaim{peerID: peerID, pos: pos, at: at}
			return otherID, true
		}
	}
	s.positionClaims[peerID] = positionClaim{peerID: peerID, pos: pos, at: at}
	return "", false
}

// Forget drops every record for a peer, used when a neighbor is evicted.
func (s *Store) Forget(peerID string) {
	delete(s.scores, peerID)
	delete(s.routeAds, peerID)
	delete(s.blackHoleFlagAt, peerID)
	delete(s.positionClaims, peerID)
	delete(s.sybilFlagAt, peerID)
}
