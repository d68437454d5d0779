// Package vehicle wires the crypto envelope, codec, neighbor table, route
// cache and trust store into the single per-vehicle actor the rest of the
// protocol is expressed against. Every exported method assumes the caller
// serializes access — the same single-threaded-owner model the teacher's
// node.nodeImpl uses for its neighbor/route state, generalized here to also
// cover the crypto envelope's sequence counter and replay cache.
//
// Message handling follows internal/routing/aodv.go's HandleMessage
// dispatch and its RREQ/RREP/RERR/DATA handlers, generalized from
// numeric node ids and unauthenticated packets to signed, certificate-
// bearing messages between opaque vehicle ids.
package vehicle

import (
	"time"

	"go.uber.org/zap"

	"vanet-secure-routing/internal/telemetry"
	"vanet-secure-routing/internal/transport"
	"vanet-secure-routing/internal/vanet"
	"vanet-secure-routing/internal/vanet/codec"
	vcrypto "vanet-secure-routing/internal/vanet/crypto"
	"vanet-secure-routing/internal/vanet/neighbor"
	"vanet-secure-routing/internal/vanet/route"
	"vanet-secure-routing/internal/vanet/trust"
)

type pendingRequest struct {
	targetID  string
	requestID uint32
	retries   int
	sentAt    time.Time
}

type forwardStat struct {
	sent      int
	delivered int
}

// ratio returns the observed forwarding ratio, defaulting to fully
// trusted until enough traffic has passed through the peer to judge it.
func (s forwardStat) ratio() float64 {
	if s.sent == 0 {
		return 1.0
	}
	return float64(s.delivered) / float64(s.sent)
}

// Instance is one vehicle's protocol state.
type Instance struct {
	id       string
	tunables vanet.Tunables

	send  transport.SendChannel
	clock transport.Clock
	certs transport.CertStore
	bus   *telemetry.Bus
	log   *zap.Logger

	envelope  *vcrypto.Envelope
	neighbors *neighbor.Table
	routes    *route.Cache
	trustor   *trust.Store

	initialized bool
	position    vanet.Position
	havePos     bool
	speedKMH    float64

	requestSeq   uint32
	pending      map[string]*pendingRequest // dest -> in-flight RREQ
	dataQueue    map[string][][]byte         // dest -> queued payloads awaiting a route
	forwardStats map[string]*forwardStat     // peer id -> forwarding behaviour
}

// New constructs a vehicle instance. Initialize must be called before any
// message can be sent or received.
func New(id string, tunables vanet.Tunables, send transport.SendChannel, clock transport.Clock, certs transport.CertStore, bus *telemetry.Bus, log *zap.Logger) *Instance {
	if log == nil {
		log = zap.NewNop()
	}
	return &Instance{
		id:           id,
		tunables:     tunables,
		send:         send,
		clock:        clock,
		certs:        certs,
		bus:          bus,
		log:          log.With(zap.String("vehicle", id)),
		envelope:     vcrypto.NewEnvelope(tunables),
		neighbors:    neighbor.NewTable(tunables.NeighborTimeout),
		routes:       route.NewCache(tunables),
		trustor:      trust.NewStore(tunables),
		pending:      make(map[string]*pendingRequest),
		dataQueue:    make(map[string][][]byte),
		forwardStats: make(map[string]*forwardStat),
	}
}

// ID returns the vehicle's own identifier.
func (v *Instance) ID() string { return v.id }

// Neighbors returns a snapshot of the vehicles this instance currently
// considers one-hop neighbors.
func (v *Instance) Neighbors() []vanet.VehicleInfo {
	return v.neighbors.Snapshot()
}

// TrustScore returns this instance's current trust score for peerID; its own
// id always scores trust.Self.
func (v *Instance) TrustScore(peerID string) float64 {
	if peerID == v.id {
		return trust.Self
	}
	return v.trustor.Score(peerID)
}

// Initialize generates this vehicle's identity keypair and installs certDER
// (possibly nil) as its certificate. It must be called exactly once before
// any other method.
func (v *Instance) Initialize(algo vcrypto.KeyAlgorithm, certDER []byte) error {
	keys, err := vcrypto.GenerateKeyPair(algo)
	if err != nil {
		return err
	}
	v.envelope.LoadIdentity(keys, certDER)
	v.trustor.Observe(v.id, trust.Self)
	v.initialized = true
	return nil
}

func (v *Instance) requireInitialized() error {
	if !v.initialized {
		return vanet.NewError(vanet.ErrNotInitialized, "")
	}
	return nil
}

// UpdatePosition records a new position sample and broadcasts a signed
// HELLO beacon carrying it. The first sample after construction is always
// accepted; subsequent samples are checked against the movement-
// plausibility model before being adopted.
func (v *Instance) UpdatePosition(pos vanet.Position, speedKMH float64) error {
	if err := v.requireInitialized(); err != nil {
		return err
	}
	if v.havePos {
		if _, err := trust.MovementPlausible(v.position, pos, v.speedKMH, v.tunables); err != nil {
			return err
		}
	}
	v.position = pos
	v.speedKMH = speedKMH
	v.havePos = true

	msg := codec.HelloMsg{
		Header:    codec.Header{SourceID: v.id, Timestamp: v.clock.NowMS()},
		X:         pos.X,
		Y:         pos.Y,
		Z:         pos.Z,
		Speed:     speedKMH,
		Direction: 0,
	}
	return v.broadcast(codec.EncodeHello(msg))
}

// SendData sends payload to destID, using a cached route if one exists or
// queuing the payload and initiating route discovery otherwise.
func (v *Instance) SendData(destID string, payload []byte) error {
	if err := v.requireInitialized(); err != nil {
		return err
	}
	if destID == v.id {
		return vanet.NewError(vanet.ErrMalformedMessage, destID)
	}
	if entry, ok := v.routes.Get(destID); ok {
		if !v.trustor.IsTrusted(entry.NextHop) {
			v.log.Debug("cached route's next hop fell below trust threshold",
				zap.String("dest", destID), zap.Error(vanet.NewError(vanet.ErrUntrustedPeer, entry.NextHop)))
		} else {
			return v.sendDataVia(entry.NextHop, destID, payload)
		}
	}
	v.dataQueue[destID] = append(v.dataQueue[destID], payload)
	return v.initiateRouteRequest(destID)
}

func (v *Instance) initiateRouteRequest(destID string) error {
	if _, ok := v.pending[destID]; ok {
		return nil // already in flight; Tick drives retry/expiry
	}
	v.requestSeq++
	reqID := v.requestSeq
	v.routes.SeenRequest(v.id, reqID) // never re-accept our own RREQ if it loops back
	v.pending[destID] = &pendingRequest{targetID: destID, requestID: reqID, sentAt: time.UnixMilli(v.clock.NowMS())}

	msg := codec.RouteRequestMsg{
		Header:         codec.Header{SourceID: v.id, Timestamp: v.clock.NowMS()},
		OriginID:       v.id,
		TargetID:       destID,
		RequestID:      reqID,
		HopCount:       0,
		OriginatorSeen: v.clock.NowMS(),
	}
	v.log.Debug("initiating route discovery", zap.String("dest", destID), zap.Uint32("request_id", reqID))
	return v.broadcast(codec.EncodeRouteRequest(msg))
}

func (v *Instance) sendDataVia(nextHop, finalDest string, payload []byte) error {
	msg := codec.DataMsg{
		Header:      codec.Header{SourceID: v.id, DestID: nextHop, Timestamp: v.clock.NowMS()},
		OriginID:    v.id,
		FinalDestID: finalDest,
		Payload:     payload,
	}
	v.noteForwardSent(nextHop)
	return v.unicast(nextHop, codec.EncodeData(msg))
}

// ReceiveBytes decodes and verifies an inbound secure message, then
// dispatches it to the matching handler. The claimed sender identity is
// only trusted once VerifySecureMessage succeeds.
func (v *Instance) ReceiveBytes(raw []byte) error {
	if err := v.requireInitialized(); err != nil {
		return err
	}
	sm, err := vcrypto.DecodeSecureMessage(raw)
	if err != nil {
		return err
	}
	claimed, err := codec.PeekHeader(sm.Payload)
	if err != nil {
		return err
	}
	senderID := claimed.SourceID

	if err := v.envelope.VerifySecureMessage(v.clock, senderID, sm, v.certs); err != nil {
		v.publish(telemetry.MessageRejected, senderID, string(vanet.KindOf(err)))
		if vanet.KindOf(err) == vanet.ErrReplayed {
			v.trustor.Penalize(senderID)
		}
		return err
	}

	msgType, err := codec.PeekType(sm.Payload)
	if err != nil {
		return err
	}
	switch msgType {
	case codec.Hello:
		msg, derr := codec.DecodeHello(sm.Payload)
		if derr != nil {
			return derr
		}
		return v.handleHello(senderID, msg)
	case codec.RouteReq:
		msg, derr := codec.DecodeRouteRequest(sm.Payload)
		if derr != nil {
			return derr
		}
		return v.handleRouteRequest(senderID, msg)
	case codec.RouteReply:
		msg, derr := codec.DecodeRouteReply(sm.Payload)
		if derr != nil {
			return derr
		}
		return v.handleRouteReply(senderID, msg)
	case codec.RouteError:
		msg, derr := codec.DecodeRouteError(sm.Payload)
		if derr != nil {
			return derr
		}
		return v.handleRouteError(senderID, msg)
	case codec.Data:
		msg, derr := codec.DecodeData(sm.Payload)
		if derr != nil {
			return derr
		}
		return v.handleData(senderID, msg)
	default:
		return vanet.NewError(vanet.ErrMalformedMessage, senderID)
	}
}

func (v *Instance) handleHello(senderID string, m codec.HelloMsg) error {
	pos := vanet.Position{X: m.X, Y: m.Y, Z: m.Z, ObservedAt: time.UnixMilli(m.Timestamp)}

	// A beacon is the only message type that bumps trust toward 1.0; RREQ/
	// RREP/RERR/DATA never do, matching original_source's processBeacon
	// being the sole update_trust_score(id, 1.0) call site. This must run
	// before the movement/Sybil checks below so a penalty they apply for
	// this same beacon isn't immediately undone by the observation.
	v.trustor.Observe(senderID, 1.0)

	if prev, ok := v.neighbors.Get(senderID); ok {
		if _, err := trust.MovementPlausible(prev.Position, pos, prev.SpeedKMH, v.tunables); err != nil {
			v.trustor.Penalize(senderID)
			v.invalidateRoutesVia(senderID)
			v.publish(telemetry.AttackDetected, senderID, "invalid_movement")
			return err
		}
	}
	if otherID, fired := v.trustor.CheckSybil(senderID, pos, time.UnixMilli(m.Timestamp)); fired {
		v.invalidateRoutesVia(senderID)
		v.invalidateRoutesVia(otherID)
		v.publish(telemetry.AttackDetected, senderID, "sybil_with:"+otherID)
	}

	v.neighbors.Upsert(vanet.VehicleInfo{
		ID:          senderID,
		Position:    pos,
		SpeedKMH:    m.Speed,
		DirectionRd: m.Direction,
		Trust:       v.trustor.Score(senderID),
		LastSeen:    time.UnixMilli(v.clock.NowMS()),
	})
	if installed, err := v.routes.MaybeInstall(senderID, senderID, 1, v.trustor.Score(senderID), time.UnixMilli(v.clock.NowMS())); err == nil && installed {
		v.publish(telemetry.RouteInstalled, senderID, "direct")
	}
	v.publish(telemetry.NeighborJoined, senderID, "")
	return nil
}

func (v *Instance) handleRouteRequest(senderID string, m codec.RouteRequestMsg) error {
	now := time.UnixMilli(v.clock.NowMS())
	if v.routes.SeenRequest(m.OriginID, m.RequestID) {
		return nil
	}
	// Only a next-hop already confirmed via a HELLO beacon may be installed
	// as a RouteEntry (invariant I2); senderID authenticated but never
	// beaconed is otherwise indistinguishable from a spoofed relay.
	if _, ok := v.neighbors.Get(senderID); ok {
		if installed, err := v.routes.MaybeInstall(m.OriginID, senderID, int(m.HopCount)+1, v.trustor.Score(senderID), now); err == nil && installed {
			v.publish(telemetry.RouteInstalled, m.OriginID, "reverse")
		}
	}

	if m.TargetID == v.id {
		return v.sendRouteReply(m.OriginID, m.TargetID, 0)
	}
	if entry, ok := v.routes.Get(m.TargetID); ok {
		return v.sendRouteReply(m.OriginID, m.TargetID, uint8(entry.HopCount))
	}

	if int(m.HopCount)+1 >= v.tunables.MaxHopCount {
		return vanet.NewError(vanet.ErrHopLimitExceeded, senderID)
	}
	fwd := m
	fwd.Header = codec.Header{SourceID: v.id, Timestamp: v.clock.NowMS()}
	fwd.HopCount = m.HopCount + 1
	return v.broadcast(codec.EncodeRouteRequest(fwd))
}

func (v *Instance) sendRouteReply(originID, targetID string, hopCount uint8) error {
	reverse, ok := v.routes.Get(originID)
	if !ok {
		return vanet.NewError(vanet.ErrNoRoute, originID)
	}
	msg := codec.RouteReplyMsg{
		Header:     codec.Header{SourceID: v.id, DestID: reverse.NextHop, Timestamp: v.clock.NowMS()},
		OriginID:   originID,
		TargetID:   targetID,
		HopCount:   hopCount,
		LifetimeMS: uint32(v.tunables.RouteTimeout.Milliseconds()),
		Path:       []string{v.id},
	}
	return v.unicast(reverse.NextHop, codec.EncodeRouteReply(msg))
}

func (v *Instance) handleRouteReply(senderID string, m codec.RouteReplyMsg) error {
	now := time.UnixMilli(v.clock.NowMS())
	if _, ok := v.neighbors.Get(senderID); ok {
		installed, err := v.routes.MaybeInstall(m.TargetID, senderID, int(m.HopCount)+1, v.trustor.Score(senderID), now)
		if err != nil {
			return err
		}
		if installed {
			v.publish(telemetry.RouteInstalled, m.TargetID, "forward")
		}
	}

	if fired := v.trustor.RecordRouteAdvertisement(senderID, m.TargetID, now, v.forwardRatio(senderID)); fired {
		v.invalidateRoutesVia(senderID)
		v.publish(telemetry.AttackDetected, senderID, "black_hole")
	}

	if m.OriginID == v.id {
		v.clearPending(m.TargetID)
		queued := v.dataQueue[m.TargetID]
		delete(v.dataQueue, m.TargetID)
		for _, payload := range queued {
			if entry, ok := v.routes.Get(m.TargetID); ok {
				if serr := v.sendDataVia(entry.NextHop, m.TargetID, payload); serr != nil {
					return serr
				}
			}
		}
		return nil
	}

	reverse, ok := v.routes.Get(m.OriginID)
	if !ok {
		return vanet.NewError(vanet.ErrNoRoute, m.OriginID)
	}
	fwd := m
	fwd.Header = codec.Header{SourceID: v.id, DestID: reverse.NextHop, Timestamp: v.clock.NowMS()}
	fwd.HopCount = m.HopCount + 1
	fwd.Path = append(append([]string(nil), m.Path...), v.id)
	return v.unicast(reverse.NextHop, codec.EncodeRouteReply(fwd))
}

func (v *Instance) clearPending(destID string) {
	delete(v.pending, destID)
}

func (v *Instance) sendRouteError(to, brokenNode, unreachable, originalSender string) error {
	msg := codec.RouteErrorMsg{
		Header:           codec.Header{SourceID: v.id, DestID: to, Timestamp: v.clock.NowMS()},
		BrokenNodeID:     brokenNode,
		UnreachableID:    unreachable,
		OriginalSenderID: originalSender,
	}
	return v.unicast(to, codec.EncodeRouteError(msg))
}

func (v *Instance) handleRouteError(senderID string, m codec.RouteErrorMsg) error {
	v.routes.RemoveByNextHop(m.BrokenNodeID)
	v.routes.Remove(m.UnreachableID)
	v.publish(telemetry.RouteRemoved, m.UnreachableID, "rerr")

	if m.OriginalSenderID == v.id {
		delete(v.pending, m.UnreachableID)
		return nil
	}
	entry, ok := v.routes.Get(m.OriginalSenderID)
	if !ok {
		return vanet.NewError(vanet.ErrNoRoute, m.OriginalSenderID)
	}
	return v.sendRouteError(entry.NextHop, m.BrokenNodeID, m.UnreachableID, m.OriginalSenderID)
}

func (v *Instance) handleData(senderID string, m codec.DataMsg) error {
	v.noteForwardDelivered(senderID)

	if m.FinalDestID == v.id {
		v.publish(telemetry.MessageDelivered, senderID, string(m.Payload))
		return nil
	}
	entry, ok := v.routes.Get(m.FinalDestID)
	if ok && !v.trustor.IsTrusted(entry.NextHop) {
		v.log.Debug("dropping cached route through untrusted next hop",
			zap.String("dest", m.FinalDestID), zap.Error(vanet.NewError(vanet.ErrUntrustedPeer, entry.NextHop)))
		ok = false
	}
	if !ok {
		return v.sendRouteError(senderID, v.id, m.FinalDestID, m.OriginID)
	}
	v.noteForwardSent(entry.NextHop)
	fwd := codec.DataMsg{
		Header:      codec.Header{SourceID: v.id, DestID: entry.NextHop, Timestamp: v.clock.NowMS()},
		OriginID:    m.OriginID,
		FinalDestID: m.FinalDestID,
		Payload:     m.Payload,
	}
	return v.unicast(entry.NextHop, codec.EncodeData(fwd))
}

func (v *Instance) noteForwardSent(peerID string) {
	st, ok := v.forwardStats[peerID]
	if !ok {
		st = &forwardStat{}
		v.forwardStats[peerID] = st
	}
	st.sent++
}

func (v *Instance) noteForwardDelivered(peerID string) {
	if st, ok := v.forwardStats[peerID]; ok {
		st.delivered++
	}
}

func (v *Instance) forwardRatio(peerID string) float64 {
	if st, ok := v.forwardStats[peerID]; ok {
		return st.ratio()
	}
	return 1.0
}

// invalidateRoutesVia drops peerID as a next-hop from every RouteEntry and
// removes it from the neighbor table, the blanket response every attack
// detector triggers once a peer's trust falls below TRUST_THRESHOLD.
func (v *Instance) invalidateRoutesVia(peerID string) {
	for _, dest := range v.routes.RemoveByNextHop(peerID) {
		v.publish(telemetry.RouteRemoved, dest, "distrust")
	}
	v.neighbors.Remove(peerID)
}

// Tick runs the periodic housekeeping every scheduler cycle performs:
// neighbor/route eviction, replay-cache pruning and RREQ retry, mirroring
// the teacher's runPendingTxChecker/StartBroadcastTicker pairing.
func (v *Instance) Tick(now time.Time) {
	for _, id := range v.neighbors.EvictExpired(now) {
		v.routes.RemoveByNextHop(id)
		v.trustor.Forget(id)
		v.publish(telemetry.NeighborEvicted, id, "timeout")
	}
	for _, dest := range v.routes.EvictExpired(now) {
		v.publish(telemetry.RouteRemoved, dest, "timeout")
	}
	v.envelope.PruneReplayCache(now.UnixMilli())

	for dest, p := range v.pending {
		if now.Sub(p.sentAt) < v.tunables.RREQRetryInterval {
			continue
		}
		if p.retries >= v.tunables.MaxRREQRetries {
			delete(v.pending, dest)
			delete(v.dataQueue, dest)
			v.publish(telemetry.MessageRejected, dest, "no_route")
			continue
		}
		p.retries++
		p.sentAt = now
		v.requestSeq++
		p.requestID = v.requestSeq
		v.routes.SeenRequest(v.id, p.requestID)
		msg := codec.RouteRequestMsg{
			Header:         codec.Header{SourceID: v.id, Timestamp: now.UnixMilli()},
			OriginID:       v.id,
			TargetID:       dest,
			RequestID:      p.requestID,
			HopCount:       0,
			OriginatorSeen: now.UnixMilli(),
		}
		_ = v.broadcast(codec.EncodeRouteRequest(msg))
	}
}

// Shutdown releases the vehicle's key material and drops its neighbor, route
// and trust tables along with any pending discovery state.
func (v *Instance) Shutdown() {
	v.envelope.Zeroize()
	v.neighbors = neighbor.NewTable(v.tunables.NeighborTimeout)
	v.routes = route.NewCache(v.tunables)
	v.trustor = trust.NewStore(v.tunables)
	v.pending = make(map[string]*pendingRequest)
	v.dataQueue = make(map[string][][]byte)
	v.forwardStats = make(map[string]*forwardStat)
	v.initialized = false
}

func (v *Instance) broadcast(payload []byte) error {
	sm, err := v.envelope.CreateSecureMessage(v.clock, payload)
	if err != nil {
		return err
	}
	return v.send.Broadcast(vcrypto.EncodeSecureMessage(sm))
}

func (v *Instance) unicast(peerID string, payload []byte) error {
	sm, err := v.envelope.CreateSecureMessage(v.clock, payload)
	if err != nil {
		return err
	}
	return v.send.Unicast(peerID, vcrypto.EncodeSecureMessage(sm))
}

func (v *Instance) publish(kind telemetry.Kind, peerID, detail string) {
	if v.bus == nil {
		return
	}
	v.bus.Publish(telemetry.Event{
		Kind:      kind,
		VehicleID: v.id,
		PeerID:    peerID,
		Detail:    detail,
		Trust:     v.trustor.Score(peerID),
		Timestamp: time.UnixMilli(v.clock.NowMS()),
	})
}
