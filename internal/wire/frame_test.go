package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripSummary(t *testing.T) {
	req := Request{Tag: TagSummary, FromMicros: 100, ToMicros: 200}

	payload, err := EncodeRequest(req)
	require.NoError(t, err)

	got, n, err := DecodeRequest(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, req, got)
}

func TestRoundTripPayment(t *testing.T) {
	req := Request{
		Tag: TagPayment,
		Payment: PaymentRequest{
			CorrelationID: "c1-correlation",
			AmountCents:   1050,
		},
	}

	payload, err := EncodeRequest(req)
	require.NoError(t, err)

	got, n, err := DecodeRequest(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, req, got)
}

func TestRoundTripPurgeDB(t *testing.T) {
	req := Request{Tag: TagPurgeDB}

	payload, err := EncodeRequest(req)
	require.NoError(t, err)

	got, _, err := DecodeRequest(payload)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestEncodeRequestRejectsOversizedCorrelationID(t *testing.T) {
	req := Request{
		Tag: TagPayment,
		Payment: PaymentRequest{
			CorrelationID: string(make([]byte, correlationIDWireSize+1)),
		},
	}

	_, err := EncodeRequest(req)
	assert.ErrorIs(t, err, ErrCorrelationIDTooLong)
}

func TestDecodeBatchStopsAtEndOfBatchSentinel(t *testing.T) {
	first, err := EncodeRequest(Request{Tag: TagPurgeDB})
	require.NoError(t, err)

	second, err := EncodeRequest(Request{Tag: TagSummary, FromMicros: 1, ToMicros: 2})
	require.NoError(t, err)

	buf := make([]byte, 0, MaxBatchBuffer)
	buf = append(buf, first...)
	buf = append(buf, second...)
	buf = append(buf, byte(TagEndOfBatch))
	buf = append(buf, bytes.Repeat([]byte{0xFF}, 10)...) // garbage past the sentinel

	reqs, err := DecodeBatch(buf)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, TagPurgeDB, reqs[0].Tag)
	assert.Equal(t, TagSummary, reqs[1].Tag)
}

func TestDecodeBatchExhaustsBufferWithoutSentinel(t *testing.T) {
	payload, err := EncodeRequest(Request{Tag: TagPurgeDB})
	require.NoError(t, err)

	reqs, err := DecodeBatch(payload)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
}

func TestDecodeRequestTruncatedFrameIsFatal(t *testing.T) {
	payload, err := EncodeRequest(Request{Tag: TagSummary, FromMicros: 1, ToMicros: 2})
	require.NoError(t, err)

	_, _, err = DecodeRequest(payload[:len(payload)-1])
	assert.ErrorIs(t, err, ErrTruncatedFrame)
}

func TestWriteFrameThenReadFrame(t *testing.T) {
	var buf bytes.Buffer

	req := Request{
		Tag:     TagPayment,
		Payment: PaymentRequest{CorrelationID: "abc", AmountCents: 999},
	}

	require.NoError(t, WriteFrame(&buf, req))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestAmountCentsToFloat(t *testing.T) {
	assert.Equal(t, float32(10.5), AmountCentsToFloat(1050))
	assert.Equal(t, float32(0), AmountCentsToFloat(0))
}
