package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Envelope layout: 0x94 0xC3, big-endian uint32 payload length, payload.
// Bridge traffic and replay files share it.
var envelopeHeader = [2]byte{0x94, 0xC3}

// ErrBadEnvelope means a record did not start with the envelope header.
var ErrBadEnvelope = errors.New("bad envelope header")

const (
	envelopeOverhead = 6
	// MaxEnvelopePayload bounds a single record so a corrupted length cannot
	// trigger a huge allocation.
	MaxEnvelopePayload = 4 << 20
)

type readFullFunc func(buf []byte) error

func encodeEnvelope(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, errors.New("payload is empty")
	}
	if len(payload) > MaxEnvelopePayload {
		return nil, fmt.Errorf("payload too large: %d", len(payload))
	}

	frame := make([]byte, envelopeOverhead+len(payload))
	frame[0] = envelopeHeader[0]
	frame[1] = envelopeHeader[1]
	// #nosec G115 -- length is bounded by MaxEnvelopePayload above.
	binary.BigEndian.PutUint32(frame[2:6], uint32(len(payload)))
	copy(frame[envelopeOverhead:], payload)

	return frame, nil
}

// readEnvelope returns io.EOF (wrapped) only when the stream ends cleanly
// before a new envelope starts. A stream cut inside an envelope yields
// io.ErrUnexpectedEOF.
func readEnvelope(readFull readFullFunc) ([]byte, error) {
	if err := resyncToHeader(readFull); err != nil {
		return nil, err
	}

	return readEnvelopeBody(readFull)
}

// readEnvelopeAt is readEnvelope without resync: the header must start at the
// current position.
func readEnvelopeAt(readFull readFullFunc) ([]byte, error) {
	var hdr [2]byte
	if err := readFull(hdr[:1]); err != nil {
		return nil, fmt.Errorf("read frame header byte 1: %w", err)
	}
	if err := readFull(hdr[1:]); err != nil {
		return nil, fmt.Errorf("read frame header byte 2: %w", truncated(err))
	}
	if hdr != envelopeHeader {
		return nil, fmt.Errorf("%w: got % x", ErrBadEnvelope, hdr[:])
	}

	return readEnvelopeBody(readFull)
}

func readEnvelopeBody(readFull readFullFunc) ([]byte, error) {
	var lenBuf [4]byte
	if err := readFull(lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read frame length: %w", truncated(err))
	}
	ln := binary.BigEndian.Uint32(lenBuf[:])
	if ln == 0 {
		return nil, fmt.Errorf("invalid frame length: %d", ln)
	}
	if ln > MaxEnvelopePayload {
		return nil, fmt.Errorf("frame length %d exceeds limit %d", ln, MaxEnvelopePayload)
	}

	payload := make([]byte, ln)
	if err := readFull(payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", truncated(err))
	}

	return payload, nil
}

func resyncToHeader(readFull readFullFunc) error {
	buf := make([]byte, 1)
	for {
		if err := readFull(buf); err != nil {
			return fmt.Errorf("read frame header byte 1: %w", err)
		}
		if buf[0] != envelopeHeader[0] {
			continue
		}
		if err := readFull(buf); err != nil {
			return fmt.Errorf("read frame header byte 2: %w", truncated(err))
		}
		if buf[0] == envelopeHeader[1] {
			return nil
		}
	}
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}

	return err
}

func ioReadFullFunc(r io.Reader) readFullFunc {
	return func(buf []byte) error {
		_, err := io.ReadFull(r, buf)

		return err
	}
}

// WriteEnvelope writes payload to w as one framed record.
func WriteEnvelope(w io.Writer, payload []byte) error {
	frame, err := encodeEnvelope(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

// ReadEnvelope reads the next framed record from r, skipping any noise in
// front of it.
func ReadEnvelope(r io.Reader) ([]byte, error) {
	return readEnvelope(ioReadFullFunc(r))
}

// ReadStrictEnvelope reads a record that must begin exactly at the current
// position of r. It returns io.EOF (wrapped) only when r ends before the
// first header byte; stray bytes yield ErrBadEnvelope and a cut record
// io.ErrUnexpectedEOF.
func ReadStrictEnvelope(r io.Reader) ([]byte, error) {
	return readEnvelopeAt(ioReadFullFunc(r))
}
