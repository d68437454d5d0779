// Package codec encodes and decodes the five on-wire control/data
// messages that the crypto envelope signs. The byte layout — a common
// header of type tag, null-terminated source/destination ids and an
// 8-byte little-endian timestamp, followed by a type-specific suffix — is
// grounded on the teacher's internal/packet.BaseHeader plus its
// RREQHeader/RREPHeader/RERRHeader split between "immediate hop" and
// "original requester/destination" ids, generalized from fixed-width
// uint32 node ids to the opaque string vehicle ids this protocol uses.
package codec

import (
	"bytes"
	"encoding/binary"
	"math"

	"vanet-secure-routing/internal/vanet"
)

// Type is the one-byte message-type tag.
type Type uint8

const (
	Hello      Type = 0
	RouteReq   Type = 1
	RouteReply Type = 2
	RouteError Type = 3
	Data       Type = 4
)

// Header is common to every message kind. SourceID is always the
// immediate sender of this hop; DestID is the immediate hop's addressee,
// empty for the broadcast kinds (HELLO, RREQ).
type Header struct {
	Type      Type
	SourceID  string
	DestID    string
	Timestamp int64
}

// HelloMsg is a periodic signed position announcement.
type HelloMsg struct {
	Header
	X, Y, Z   float64
	Speed     float64
	Direction float64
}

// RouteRequestMsg initiates or forwards reactive route discovery.
// OriginID is the vehicle that wants a route; TargetID is the destination
// it is looking for.
type RouteRequestMsg struct {
	Header
	OriginID       string
	TargetID       string
	RequestID      uint32
	HopCount       uint8
	OriginatorSeen int64
}

// RouteReplyMsg answers a RouteRequestMsg. OriginID is the original
// requester (this reply's ultimate destination, hop by hop via each
// node's reverse route); TargetID is the destination the discovered
// route leads to. Path records every id the reply has traversed so far,
// for audit; route installation does not read it.
type RouteReplyMsg struct {
	Header
	OriginID   string
	TargetID   string
	HopCount   uint8
	LifetimeMS uint32
	Path       []string
}

// RouteErrorMsg reports that BrokenNodeID is no longer reachable as the
// next hop toward UnreachableID, forwarded hop by hop back toward
// OriginalSenderID.
type RouteErrorMsg struct {
	Header
	BrokenNodeID     string
	UnreachableID    string
	OriginalSenderID string
}

// DataMsg carries an opaque application payload. FinalDestID is the
// ultimate recipient and OriginID the original sender; Header.SourceID and
// Header.DestID only name this one hop, and are rewritten by every
// forwarder.
type DataMsg struct {
	Header
	OriginID    string
	FinalDestID string
	Payload     []byte
}

func putString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}

func readString(buf []byte, off int) (string, int, error) {
	if off > len(buf) {
		return "", 0, vanet.NewError(vanet.ErrMalformedMessage, "")
	}
	idx := bytes.IndexByte(buf[off:], 0)
	if idx < 0 {
		return "", 0, vanet.NewError(vanet.ErrMalformedMessage, "")
	}
	return string(buf[off : off+idx]), off + idx + 1, nil
}

func encodeHeader(buf *bytes.Buffer, h Header) {
	buf.WriteByte(byte(h.Type))
	putString(buf, h.SourceID)
	putString(buf, h.DestID)
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(h.Timestamp))
	buf.Write(ts[:])
}

func decodeHeader(buf []byte) (Header, int, error) {
	if len(buf) < 1 {
		return Header{}, 0, vanet.NewError(vanet.ErrMalformedMessage, "")
	}
	h := Header{Type: Type(buf[0])}
	off := 1
	src, off, err := readString(buf, off)
	if err != nil {
		return Header{}, 0, err
	}
	h.SourceID = src
	dest, off, err := readString(buf, off)
	if err != nil {
		return Header{}, 0, err
	}
	h.DestID = dest
	if off+8 > len(buf) {
		return Header{}, 0, vanet.NewError(vanet.ErrMalformedMessage, "")
	}
	h.Timestamp = int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	return h, off, nil
}

// PeekHeader decodes only the common header, so a receiver can learn the
// claimed sender id before the envelope has verified the signature. The
// claim is untrusted until VerifySecureMessage succeeds.
func PeekHeader(buf []byte) (Header, error) {
	h, _, err := decodeHeader(buf)
	return h, err
}

func putFloat64(buf *bytes.Buffer, f float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(f))
	buf.Write(b[:])
}

func readFloat64(buf []byte, off int) (float64, int, error) {
	if off+8 > len(buf) {
		return 0, 0, vanet.NewError(vanet.ErrMalformedMessage, "")
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[off:])), off + 8, nil
}

// EncodeHello serializes a HELLO beacon.
func EncodeHello(m HelloMsg) []byte {
	var buf bytes.Buffer
	m.Header.Type = Hello
	encodeHeader(&buf, m.Header)
	putFloat64(&buf, m.X)
	putFloat64(&buf, m.Y)
	putFloat64(&buf, m.Z)
	putFloat64(&buf, m.Speed)
	putFloat64(&buf, m.Direction)
	return buf.Bytes()
}

// DecodeHello parses a HELLO beacon.
func DecodeHello(buf []byte) (HelloMsg, error) {
	h, off, err := decodeHeader(buf)
	if err != nil || h.Type != Hello {
		return HelloMsg{}, vanet.NewError(vanet.ErrMalformedMessage, "")
	}
	var m HelloMsg
	m.Header = h
	if m.X, off, err = readFloat64(buf, off); err != nil {
		return HelloMsg{}, err
	}
	if m.Y, off, err = readFloat64(buf, off); err != nil {
		return HelloMsg{}, err
	}
	if m.Z, off, err = readFloat64(buf, off); err != nil {
		return HelloMsg{}, err
	}
	if m.Speed, off, err = readFloat64(buf, off); err != nil {
		return HelloMsg{}, err
	}
	if m.Direction, _, err = readFloat64(buf, off); err != nil {
		return HelloMsg{}, err
	}
	return m, nil
}

// EncodeRouteRequest serializes an RREQ.
func EncodeRouteRequest(m RouteRequestMsg) []byte {
	var buf bytes.Buffer
	m.Header.Type = RouteReq
	encodeHeader(&buf, m.Header)
	putString(&buf, m.OriginID)
	putString(&buf, m.TargetID)
	var reqID [4]byte
	binary.LittleEndian.PutUint32(reqID[:], m.RequestID)
	buf.Write(reqID[:])
	buf.WriteByte(m.HopCount)
	var seen [8]byte
	binary.LittleEndian.PutUint64(seen[:], uint64(m.OriginatorSeen))
	buf.Write(seen[:])
	return buf.Bytes()
}

// DecodeRouteRequest parses an RREQ.
func DecodeRouteRequest(buf []byte) (RouteRequestMsg, error) {
	h, off, err := decodeHeader(buf)
	if err != nil || h.Type != RouteReq {
		return RouteRequestMsg{}, vanet.NewError(vanet.ErrMalformedMessage, "")
	}
	m := RouteRequestMsg{Header: h}
	if m.OriginID, off, err = readString(buf, off); err != nil {
		return RouteRequestMsg{}, err
	}
	if m.TargetID, off, err = readString(buf, off); err != nil {
		return RouteRequestMsg{}, err
	}
	if off+4+1+8 > len(buf) {
		return RouteRequestMsg{}, vanet.NewError(vanet.ErrMalformedMessage, "")
	}
	m.RequestID = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	m.HopCount = buf[off]
	off++
	m.OriginatorSeen = int64(binary.LittleEndian.Uint64(buf[off:]))
	return m, nil
}

// EncodeRouteReply serializes an RREP, including the traversed-node list.
func EncodeRouteReply(m RouteReplyMsg) []byte {
	var buf bytes.Buffer
	m.Header.Type = RouteReply
	encodeHeader(&buf, m.Header)
	putString(&buf, m.OriginID)
	putString(&buf, m.TargetID)
	buf.WriteByte(m.HopCount)
	var life [4]byte
	binary.LittleEndian.PutUint32(life[:], m.LifetimeMS)
	buf.Write(life[:])
	var count [2]byte
	binary.LittleEndian.PutUint16(count[:], uint16(len(m.Path)))
	buf.Write(count[:])
	for _, id := range m.Path {
		putString(&buf, id)
	}
	return buf.Bytes()
}

// DecodeRouteReply parses an RREP.
func DecodeRouteReply(buf []byte) (RouteReplyMsg, error) {
	h, off, err := decodeHeader(buf)
	if err != nil || h.Type != RouteReply {
		return RouteReplyMsg{}, vanet.NewError(vanet.ErrMalformedMessage, "")
	}
	m := RouteReplyMsg{Header: h}
	if m.OriginID, off, err = readString(buf, off); err != nil {
		return RouteReplyMsg{}, err
	}
	if m.TargetID, off, err = readString(buf, off); err != nil {
		return RouteReplyMsg{}, err
	}
	if off+1+4+2 > len(buf) {
		return RouteReplyMsg{}, vanet.NewError(vanet.ErrMalformedMessage, "")
	}
	m.HopCount = buf[off]
	off++
	m.LifetimeMS = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	count := int(binary.LittleEndian.Uint16(buf[off:]))
	off += 2
	m.Path = make([]string, 0, count)
	for i := 0; i < count; i++ {
		var id string
		id, off, err = readString(buf, off)
		if err != nil {
			return RouteReplyMsg{}, err
		}
		m.Path = append(m.Path, id)
	}
	return m, nil
}

// EncodeRouteError serializes an RERR.
func EncodeRouteError(m RouteErrorMsg) []byte {
	var buf bytes.Buffer
	m.Header.Type = RouteError
	encodeHeader(&buf, m.Header)
	putString(&buf, m.BrokenNodeID)
	putString(&buf, m.UnreachableID)
	putString(&buf, m.OriginalSenderID)
	return buf.Bytes()
}

// DecodeRouteError parses an RERR.
func DecodeRouteError(buf []byte) (RouteErrorMsg, error) {
	h, off, err := decodeHeader(buf)
	if err != nil || h.Type != RouteError {
		return RouteErrorMsg{}, vanet.NewError(vanet.ErrMalformedMessage, "")
	}
	m := RouteErrorMsg{Header: h}
	if m.BrokenNodeID, off, err = readString(buf, off); err != nil {
		return RouteErrorMsg{}, err
	}
	if m.UnreachableID, off, err = readString(buf, off); err != nil {
		return RouteErrorMsg{}, err
	}
	if m.OriginalSenderID, _, err = readString(buf, off); err != nil {
		return RouteErrorMsg{}, err
	}
	return m, nil
}

// EncodeData serializes a DATA message; the payload occupies the
// remainder of the buffer.
func EncodeData(m DataMsg) []byte {
	var buf bytes.Buffer
	m.Header.Type = Data
	encodeHeader(&buf, m.Header)
	putString(&buf, m.OriginID)
	putString(&buf, m.FinalDestID)
	buf.Write(m.Payload)
	return buf.Bytes()
}

// DecodeData parses a DATA message.
func DecodeData(buf []byte) (DataMsg, error) {
	h, off, err := decodeHeader(buf)
	if err != nil || h.Type != Data {
		return DataMsg{}, vanet.NewError(vanet.ErrMalformedMessage, "")
	}
	origin, off, err := readString(buf, off)
	if err != nil {
		return DataMsg{}, err
	}
	final, off, err := readString(buf, off)
	if err != nil {
		return DataMsg{}, err
	}
	payload := append([]byte(nil), buf[off:]...)
	return DataMsg{Header: h, OriginID: origin, FinalDestID: final, Payload: payload}, nil
}

// PeekType returns the message-type tag of an encoded buffer without
// otherwise decoding it, so a dispatcher can route to the right decoder.
func PeekType(buf []byte) (Type, error) {
	if len(buf) < 1 {
		return 0, vanet.NewError(vanet.ErrMalformedMessage, "")
	}
	return Type(buf[0]), nil
}
