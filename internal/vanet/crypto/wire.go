package crypto

import (
	"encoding/binary"

	"vanet-secure-routing/internal/vanet"
)

// EncodeSecureMessage lays out m per the wire format:
// payload_len:u32_le payload sig_len:u16_le sig timestamp:u64_le
// sequence:u32_le cert_len:u16_le cert.
func EncodeSecureMessage(m *SecureMessage) []byte {
	total := 4 + len(m.Payload) + 2 + len(m.Signature) + 8 + 4 + 2 + len(m.Certificate)
	buf := make([]byte, total)
	off := 0

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(m.Payload)))
	off += 4
	off += copy(buf[off:], m.Payload)

	binary.LittleEndian.PutUint16(buf[off:], uint16(len(m.Signature)))
	off += 2
	off += copy(buf[off:], m.Signature)

	binary.LittleEndian.PutUint64(buf[off:], uint64(m.Timestamp))
	off += 8

	binary.LittleEndian.PutUint32(buf[off:], m.Sequence)
	off += 4

	binary.LittleEndian.PutUint16(buf[off:], uint16(len(m.Certificate)))
	off += 2
	copy(buf[off:], m.Certificate)

	return buf
}

// DecodeSecureMessage parses the wire layout produced by
// EncodeSecureMessage. Truncated or inconsistent buffers fail with
// vanet.ErrMalformedMessage and never mutate caller state.
func DecodeSecureMessage(buf []byte) (*SecureMessage, error) {
	off := 0
	if len(buf) < 4 {
		return nil, vanet.NewError(vanet.ErrMalformedMessage, "")
	}
	payloadLen := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	if payloadLen < 0 || off+payloadLen > len(buf) {
		return nil, vanet.NewError(vanet.ErrMalformedMessage, "")
	}
	payload := append([]byte(nil), buf[off:off+payloadLen]...)
	off += payloadLen

	if off+2 > len(buf) {
		return nil, vanet.NewError(vanet.ErrMalformedMessage, "")
	}
	sigLen := int(binary.LittleEndian.Uint16(buf[off:]))
	off += 2
	if off+sigLen > len(buf) {
		return nil, vanet.NewError(vanet.ErrMalformedMessage, "")
	}
	sig := append([]byte(nil), buf[off:off+sigLen]...)
	off += sigLen

	if off+8+4+2 > len(buf) {
		return nil, vanet.NewError(vanet.ErrMalformedMessage, "")
	}
	timestamp := int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	sequence := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	certLen := int(binary.LittleEndian.Uint16(buf[off:]))
	off += 2
	if off+certLen > len(buf) {
		return nil, vanet.NewError(vanet.ErrMalformedMessage, "")
	}
	var cert []byte
	if certLen > 0 {
		cert = append([]byte(nil), buf[off:off+certLen]...)
	}

	return &SecureMessage{
		Payload:     payload,
		Signature:   sig,
		Timestamp:   timestamp,
		Sequence:    sequence,
		Certificate: cert,
	}, nil
}
