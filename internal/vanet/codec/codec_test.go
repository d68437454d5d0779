package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanet-secure-routing/internal/vanet/codec"
)

func TestHelloRoundTrip(t *testing.T) {
	m := codec.HelloMsg{
		Header:    codec.Header{SourceID: "vA", Timestamp: 123456},
		X:         10.5,
		Y:         -3.25,
		Z:         0,
		Speed:     60,
		Direction: 90,
	}
	buf := codec.EncodeHello(m)

	typ, err := codec.PeekType(buf)
	require.NoError(t, err)
	assert.Equal(t, codec.Hello, typ)

	got, err := codec.DecodeHello(buf)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestRouteRequestRoundTrip(t *testing.T) {
	m := codec.RouteRequestMsg{
		Header:         codec.Header{Type: codec.RouteReq, SourceID: "vB", Timestamp: 200},
		OriginID:       "vA",
		TargetID:       "vC",
		RequestID:      7,
		HopCount:       2,
		OriginatorSeen: 199,
	}
	buf := codec.EncodeRouteRequest(m)
	got, err := codec.DecodeRouteRequest(buf)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestRouteReplyRoundTripWithPath(t *testing.T) {
	m := codec.RouteReplyMsg{
		Header:     codec.Header{Type: codec.RouteReply, SourceID: "vC", DestID: "vB", Timestamp: 300},
		OriginID:   "vA",
		TargetID:   "vC",
		HopCount:   1,
		LifetimeMS: 60000,
		Path:       []string{"vC", "vB"},
	}
	buf := codec.EncodeRouteReply(m)
	got, err := codec.DecodeRouteReply(buf)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestRouteReplyRoundTripEmptyPath(t *testing.T) {
	m := codec.RouteReplyMsg{
		Header:   codec.Header{SourceID: "vC", DestID: "vB"},
		OriginID: "vA",
		TargetID: "vC",
	}
	buf := codec.EncodeRouteReply(m)
	got, err := codec.DecodeRouteReply(buf)
	require.NoError(t, err)
	assert.Empty(t, got.Path)
}

func TestRouteErrorRoundTrip(t *testing.T) {
	m := codec.RouteErrorMsg{
		Header:           codec.Header{Type: codec.RouteError, SourceID: "vD", DestID: "vB"},
		BrokenNodeID:     "vE",
		UnreachableID:    "vF",
		OriginalSenderID: "vA",
	}
	buf := codec.EncodeRouteError(m)
	got, err := codec.DecodeRouteError(buf)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestDataRoundTrip(t *testing.T) {
	m := codec.DataMsg{
		Header:      codec.Header{Type: codec.Data, SourceID: "vA", DestID: "vB"},
		OriginID:    "vA",
		FinalDestID: "vZ",
		Payload:     []byte("hello, vanet"),
	}
	buf := codec.EncodeData(m)
	got, err := codec.DecodeData(buf)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestPeekHeaderReadsClaimedIdentityWithoutFullDecode(t *testing.T) {
	m := codec.HelloMsg{Header: codec.Header{SourceID: "vA", DestID: "", Timestamp: 42}}
	buf := codec.EncodeHello(m)
	h, err := codec.PeekHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, "vA", h.SourceID)
	assert.Equal(t, int64(42), h.Timestamp)
}

func TestDecodeRejectsWrongType(t *testing.T) {
	buf := codec.EncodeHello(codec.HelloMsg{Header: codec.Header{SourceID: "vA"}})
	_, err := codec.DecodeRouteRequest(buf)
	assert.Error(t, err)
}

func TestDecodeRejectsTruncatedBuffer(t *testing.T) {
	buf := codec.EncodeData(codec.DataMsg{
		Header:      codec.Header{SourceID: "vA"},
		OriginID:    "vA",
		FinalDestID: "vB",
		Payload:     []byte("payload"),
	})
	_, err := codec.DecodeData(buf[:3])
	assert.Error(t, err)
}
