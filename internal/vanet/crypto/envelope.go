package crypto

import (
	"encoding/binary"
	"time"

	"vanet-secure-routing/internal/transport"
	"vanet-secure-routing/internal/vanet"
)

// SecureMessage binds a payload, timestamp and sequence number under one
// signature, with an optional sender certificate. It is the only unit ever
// placed on the wire.
type SecureMessage struct {
	Payload     []byte
	Signature   []byte
	Timestamp   int64 // ms since epoch
	Sequence    uint32
	Certificate []byte
}

// replayRecord is retained by (timestamp, sequence) for MessageTimeout.
type replayRecord struct {
	timestamp int64
	sequence  uint32
	hash      [32]byte
}

// Envelope owns one vehicle's private key, certificate, sequence counter
// and replay cache. It holds no locks of its own; the owning vehicle
// instance serializes all access, per the single-threaded-actor model.
type Envelope struct {
	tunables vanet.Tunables
	keys     *KeyPair
	certDER  []byte
	seq      uint32
	peerKeys map[string][]byte // peer id -> cached DER public key

	replay []replayRecord
}

// NewEnvelope constructs an envelope with no key loaded; LoadIdentity must
// be called before Sign or CreateSecureMessage will succeed.
func NewEnvelope(tunables vanet.Tunables) *Envelope {
	return &Envelope{
		tunables: tunables,
		peerKeys: make(map[string][]byte),
	}
}

// LoadIdentity installs this instance's private key and, optionally, its
// certificate.
func (e *Envelope) LoadIdentity(keys *KeyPair, certDER []byte) {
	e.keys = keys
	e.certDER = certDER
}

// RememberPeerKey caches a peer's public key for messages that arrive
// without an attached certificate.
func (e *Envelope) RememberPeerKey(peerID string, pubDER []byte) {
	e.peerKeys[peerID] = pubDER
}

// PeerKey returns a previously cached public key for peerID, if any.
func (e *Envelope) PeerKey(peerID string) ([]byte, bool) {
	k, ok := e.peerKeys[peerID]
	return k, ok
}

// binding computes SHA-256(payload || timestamp_le_u64 || sequence_le_u32),
// the digest every signature covers.
func binding(payload []byte, timestamp int64, sequence uint32) []byte {
	buf := make([]byte, len(payload)+8+4)
	copy(buf, payload)
	binary.LittleEndian.PutUint64(buf[len(payload):], uint64(timestamp))
	binary.LittleEndian.PutUint32(buf[len(payload)+8:], sequence)
	digest, _ := Hash(HashSHA256, buf)
	return digest
}

// Sign signs the binding of payload/timestamp/sequence with this
// instance's private key.
func (e *Envelope) Sign(payload []byte, timestamp int64, sequence uint32) ([]byte, error) {
	if e.keys == nil {
		return nil, vanet.NewError(vanet.ErrNoPrivateKey, "")
	}
	return e.keys.signDigest(binding(payload, timestamp, sequence))
}

// CreateSecureMessage stamps payload with the current wall-clock time and
// the next sequence number, signs it, and attaches the loaded certificate
// (if any).
func (e *Envelope) CreateSecureMessage(clock transport.Clock, payload []byte) (*SecureMessage, error) {
	if e.keys == nil {
		return nil, vanet.NewError(vanet.ErrNoPrivateKey, "")
	}
	ts := clock.NowMS()
	seq := e.seq
	e.seq++ // post-increment; overflow wraps by design

	sig, err := e.Sign(payload, ts, seq)
	if err != nil {
		return nil, err
	}
	var cert []byte
	if len(e.certDER) > 0 {
		cert = append([]byte(nil), e.certDER...)
	}
	return &SecureMessage{
		Payload:     append([]byte(nil), payload...),
		Signature:   sig,
		Timestamp:   ts,
		Sequence:    seq,
		Certificate: cert,
	}, nil
}

// VerifySecureMessage runs the five sequential checks from the
// specification, short-circuiting on the first failure. On success it
// inserts a replay record and returns nil.
func (e *Envelope) VerifySecureMessage(clock transport.Clock, senderID string, m *SecureMessage, store transport.CertStore) error {
	now := clock.NowMS()

	// 1. Freshness.
	delta := now - m.Timestamp
	if delta < 0 {
		delta = -delta
	}
	if time.Duration(delta)*time.Millisecond > e.tunables.MessageTimeout {
		return vanet.NewError(vanet.ErrStaleOrFuture, senderID)
	}

	// 2. Replay.
	if e.isReplay(m.Timestamp, m.Sequence) {
		return vanet.NewError(vanet.ErrReplayed, senderID)
	}

	// 3. Certificate (optional) + 4. Signature.
	var pubDER []byte
	if len(m.Certificate) > 0 {
		validated, err := ValidateCertificate(m.Certificate, store, time.UnixMilli(now), e.tunables.MaxCertChainLen)
		if err != nil {
			return err
		}
		pubDER = validated
	} else {
		cached, ok := e.peerKeys[senderID]
		if !ok {
			return vanet.NewError(vanet.ErrBadSignature, senderID)
		}
		pubDER = cached
	}

	digest := binding(m.Payload, m.Timestamp, m.Sequence)
	if !VerifyWithDER(pubDER, digest, m.Signature) {
		return vanet.NewError(vanet.ErrBadSignature, senderID)
	}

	e.insertReplay(m.Timestamp, m.Sequence, m.Payload)
	if len(m.Certificate) > 0 {
		e.RememberPeerKey(senderID, pubDER)
	}
	return nil
}

func (e *Envelope) isReplay(timestamp int64, sequence uint32) bool {
	for _, r := range e.replay {
		if r.timestamp == timestamp && r.sequence == sequence {
			return true
		}
	}
	return false
}

func (e *Envelope) insertReplay(timestamp int64, sequence uint32, payload []byte) {
	h, _ := Hash(HashSHA256, payload)
	var arr [32]byte
	copy(arr[:], h)
	e.replay = append(e.replay, replayRecord{timestamp: timestamp, sequence: sequence, hash: arr})
	if len(e.replay) > e.tunables.MaxMessageHist {
		e.replay = e.replay[len(e.replay)-e.tunables.MaxMessageHist:]
	}
}

// PruneReplayCache drops records older than MessageTimeout relative to
// now. Safe to call on every scheduler tick.
func (e *Envelope) PruneReplayCache(nowMS int64) {
	cutoff := time.Duration(e.tunables.MessageTimeout).Milliseconds()
	kept := e.replay[:0]
	for _, r := range e.replay {
		if nowMS-r.timestamp <= cutoff {
			kept = append(kept, r)
		}
	}
	e.replay = kept
}

// ReplayCacheSize reports the current number of retained records, mostly
// for tests asserting invariant I4.
func (e *Envelope) ReplayCacheSize() int {
	return len(e.replay)
}

// Zeroize drops key material and the replay cache, called from
// vehicle.Instance.Shutdown.
func (e *Envelope) Zeroize() {
	if e.keys != nil {
		e.keys.Zeroize()
	}
	e.keys = nil
	e.certDER = nil
	e.replay = nil
	e.peerKeys = make(map[string][]byte)
}
