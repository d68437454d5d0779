package vanet

import "fmt"

// ErrorKind is the exhaustive set of failure modes a public operation can
// return. There are no exceptions in this protocol: every failure is a
// value.
type ErrorKind string

const (
	ErrKeyGenFailed        ErrorKind = "KeyGenFailed"
	ErrNoPrivateKey        ErrorKind = "NoPrivateKey"
	ErrUnsupportedAlgo     ErrorKind = "UnsupportedAlgorithm"
	ErrMalformedMessage    ErrorKind = "MalformedMessage"
	ErrStaleOrFuture       ErrorKind = "StaleOrFuture"
	ErrReplayed            ErrorKind = "Replayed"
	ErrBadCertificate      ErrorKind = "BadCertificate"
	ErrBadSignature        ErrorKind = "BadSignature"
	ErrInvalidMovement     ErrorKind = "InvalidMovement"
	ErrNoRoute             ErrorKind = "NoRoute"
	ErrHopLimitExceeded    ErrorKind = "HopLimitExceeded"
	ErrUntrustedPeer       ErrorKind = "UntrustedPeer"
	ErrNotInitialized      ErrorKind = "NotInitialized"
)

// Error is the value type every public operation returns on failure. PeerID
// is optional context, empty when the failure cannot be attributed.
type Error struct {
	Kind   ErrorKind
	PeerID string
}

func (e *Error) Error() string {
	if e.PeerID == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: peer=%s", e.Kind, e.PeerID)
}

// NewError builds an *Error, the only way failures are represented in this
// package.
func NewError(kind ErrorKind, peerID string) *Error {
	return &Error{Kind: kind, PeerID: peerID}
}

// KindOf extracts the ErrorKind from any error produced by this module,
// returning "" for errors that did not originate here.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if ve, ok := err.(*Error); ok {
		return ve.Kind
	}
	return ""
}
