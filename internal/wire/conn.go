package wire

import (
	"io"
)

// WriteFrame packs req into a scratch buffer, stamps the length
// prefix, and issues a single Write call, per spec §4.1 ("issues one
// write_all").
func WriteFrame(w io.Writer, req Request) error {
	payload, err := EncodeRequest(req)
	if err != nil {
		return err
	}

	frame := make([]byte, LengthPrefixSize+len(payload))
	PutLengthPrefix(frame, len(payload))
	copy(frame[LengthPrefixSize:], payload)

	_, err = w.Write(frame)
	return err
}

// ReadFrame reads one length-prefixed frame from r and decodes its
// single Request.
func ReadFrame(r io.Reader) (Request, error) {
	header := make([]byte, LengthPrefixSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return Request{}, err
	}

	n, err := ReadLengthPrefix(header)
	if err != nil {
		return Request{}, err
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Request{}, err
	}

	req, _, err := DecodeRequest(payload)
	return req, err
}
