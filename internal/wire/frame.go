// Package wire implements the UDS framing protocol described in spec
// §4.1: an 8-byte big-endian length prefix followed by a fixed-width
// little-endian, tag-byte-discriminated payload. It is the Go
// equivalent of original_source/src/data.rs's bincode
// (LittleEndian, Fixint, NoLimit) encode/decode pair, hand-rolled
// because the wire shape is a fixed contract, not a generic
// serialization surface (see DESIGN.md).
package wire

import (
	"encoding/binary"
	"fmt"
)

// Tag discriminates the WorkerRequest sum type on the wire. Tag 0 is
// reserved as the end-of-batch sentinel (spec §4.1): a reader stops
// decoding a batch of frames as soon as it sees a zero tag byte at the
// current offset.
type Tag byte

const (
	TagEndOfBatch Tag = 0
	TagSummary    Tag = 1
	TagPayment    Tag = 2
	TagPurgeDB    Tag = 3
)

// LengthPrefixSize is the size of the big-endian frame-length prefix
// that precedes every payload on the wire.
const LengthPrefixSize = 8

// MaxBatchBuffer is the fixed read buffer size mandated by spec §4.1:
// a reader reads into a buffer this large and decodes frames out of it
// until it runs out of bytes or hits the end-of-batch sentinel.
const MaxBatchBuffer = 1024

// Request is the sum type carried in the payload of a worker-bound
// frame (spec §4.1 "Request variants").
type Request struct {
	Tag Tag

	// TagSummary
	FromMicros int64
	ToMicros   int64

	// TagPayment
	Payment PaymentRequest
}

// PaymentRequest is the ingested payment shape (spec §3). CorrelationID
// is carried as a fixed-width, NUL-padded byte array on the wire to
// keep the frame fixed-width per spec §4.1; AmountCents is the
// fixed-point representation chosen to resolve the "amount precision"
// open question (see DESIGN.md) — the JSON boundary still deals in
// float64 amounts, this package never does.
type PaymentRequest struct {
	CorrelationID string
	AmountCents   uint64
}

// correlationIDWireSize bounds a correlation id to keep Payment frames
// fixed-width; spec treats correlation_id as an "opaque string" with no
// documented maximum, so a generous fixed field is chosen instead of a
// length-prefixed variable one, matching the "fixed-width little-endian
// encoding of primitive fields" wording in spec §4.1.
const correlationIDWireSize = 64

// The *PayloadSize constants give the fixed size of the fixed-width
// payload for each tag, tag byte included.
const (
	summaryPayloadSize = 1 + 8 + 8
	paymentPayloadSize = 1 + correlationIDWireSize + 8
	purgePayloadSize   = 1
)

// ErrCorrelationIDTooLong is returned by EncodeRequest when a
// correlation id does not fit the fixed wire field.
var ErrCorrelationIDTooLong = fmt.Errorf("correlation id exceeds %d bytes", correlationIDWireSize)

// ErrTruncatedFrame is the decode-side signal that a frame boundary
// fell mid-buffer. Per spec §4.1 this situation ("offset+8 >
// buffer_end mid-decode") is a fatal invariant violation in the
// reference implementation; callers of DecodeBatch that hit it at a
// non-zero offset should treat it as fatal (panic), not as an
// ordinary protocol error, to match that contract.
var ErrTruncatedFrame = fmt.Errorf("wire: truncated frame")

// EncodeRequest packs req into its fixed-width wire payload (tag byte
// + fields), returning the payload bytes with no length prefix.
func EncodeRequest(req Request) ([]byte, error) {
	switch req.Tag {
	case TagSummary:
		buf := make([]byte, summaryPayloadSize)
		buf[0] = byte(TagSummary)
		binary.LittleEndian.PutUint64(buf[1:9], uint64(req.FromMicros))
		binary.LittleEndian.PutUint64(buf[9:17], uint64(req.ToMicros))
		return buf, nil

	case TagPayment:
		if len(req.Payment.CorrelationID) > correlationIDWireSize {
			return nil, ErrCorrelationIDTooLong
		}
		buf := make([]byte, paymentPayloadSize)
		buf[0] = byte(TagPayment)
		copy(buf[1:1+correlationIDWireSize], req.Payment.CorrelationID)
		binary.LittleEndian.PutUint64(buf[1+correlationIDWireSize:], req.Payment.AmountCents)
		return buf, nil

	case TagPurgeDB:
		return []byte{byte(TagPurgeDB)}, nil

	default:
		return nil, fmt.Errorf("wire: unknown tag %d", req.Tag)
	}
}

// DecodeRequest reads a single Request starting at buf[0], returning
// the number of bytes consumed. buf must contain at least enough bytes
// for the tag's fixed payload size; a short buffer is reported via
// ErrTruncatedFrame.
func DecodeRequest(buf []byte) (Request, int, error) {
	if len(buf) == 0 {
		return Request{}, 0, ErrTruncatedFrame
	}

	switch Tag(buf[0]) {
	case TagEndOfBatch:
		return Request{Tag: TagEndOfBatch}, 1, nil

	case TagSummary:
		if len(buf) < summaryPayloadSize {
			return Request{}, 0, ErrTruncatedFrame
		}
		from := int64(binary.LittleEndian.Uint64(buf[1:9]))
		to := int64(binary.LittleEndian.Uint64(buf[9:17]))
		return Request{Tag: TagSummary, FromMicros: from, ToMicros: to}, summaryPayloadSize, nil

	case TagPayment:
		if len(buf) < paymentPayloadSize {
			return Request{}, 0, ErrTruncatedFrame
		}
		raw := buf[1 : 1+correlationIDWireSize]
		end := len(raw)
		for end > 0 && raw[end-1] == 0 {
			end--
		}
		correlationID := string(raw[:end])
		amount := binary.LittleEndian.Uint64(buf[1+correlationIDWireSize:])
		return Request{
			Tag:     TagPayment,
			Payment: PaymentRequest{CorrelationID: correlationID, AmountCents: amount},
		}, paymentPayloadSize, nil

	case TagPurgeDB:
		if len(buf) < purgePayloadSize {
			return Request{}, 0, ErrTruncatedFrame
		}
		return Request{Tag: TagPurgeDB}, purgePayloadSize, nil

	default:
		return Request{}, 0, fmt.Errorf("wire: unknown tag %d", buf[0])
	}
}

// DecodeBatch decodes every frame packed back-to-back in buf (spec
// §4.1: a reader "repeatedly decodes frames until the tag-length at
// the current offset is zero ... or the buffer is exhausted"). It
// never returns ErrTruncatedFrame for a clean end-of-buffer; it only
// returns it when a tag byte claims a payload larger than what
// remains, which is the fatal case callers should panic on.
func DecodeBatch(buf []byte) ([]Request, error) {
	var reqs []Request
	offset := 0

	for offset < len(buf) {
		if buf[offset] == byte(TagEndOfBatch) {
			return reqs, nil
		}

		req, n, err := DecodeRequest(buf[offset:])
		if err != nil {
			return reqs, err
		}
		reqs = append(reqs, req)
		offset += n
	}

	return reqs, nil
}

// PutLengthPrefix overwrites the first LengthPrefixSize bytes of buf
// with the big-endian length of payload, matching the writer
// contract in spec §4.1 ("packs the payload into a scratch buffer,
// then overwrites the leading 8 bytes with the length").
func PutLengthPrefix(buf []byte, payloadLen int) {
	binary.BigEndian.PutUint64(buf[:LengthPrefixSize], uint64(payloadLen))
}

// ReadLengthPrefix reads the big-endian frame length from the head of
// buf.
func ReadLengthPrefix(buf []byte) (uint64, error) {
	if len(buf) < LengthPrefixSize {
		return 0, ErrTruncatedFrame
	}
	return binary.BigEndian.Uint64(buf[:LengthPrefixSize]), nil
}

// AmountCentsToFloat converts fixed-point cents back to the decimal
// currency amount used at JSON boundaries (totalAmount in spec §4.7).
// float32 precision matches the reference implementation's wire
// contract ("IEEE-754 single-precision is sufficient"); the division
// itself is always done in float64 and only narrowed at the last step.
func AmountCentsToFloat(cents uint64) float32 {
	return float32(float64(cents) / 100.0)
}
