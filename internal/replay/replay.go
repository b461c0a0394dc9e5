// Package replay records acquired frames to a file and plays such files back
// as a stand-in for a live simulator.
//
// File layout: a 12-byte big-endian header (magic, version, update interval in
// milliseconds) followed by enveloped frame records identical to the ones the
// simulator bridge sends.
package replay

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	Magic   uint32 = 0x534C5250 // "SLRP"
	Version uint32 = 2

	// HeaderSize is also the offset of the first frame record.
	HeaderSize = 12
)

var (
	ErrTooSmall   = errors.New("file is too small")
	ErrBadMagic   = errors.New("not a replay file: wrong magic number")
	ErrBadVersion = errors.New("unsupported replay file version")
	ErrNoFrames   = errors.New("replay file contains no frames")
	ErrCorrupt    = errors.New("corrupt frame record")
)

type Header struct {
	Magic            uint32
	Version          uint32
	UpdateIntervalMs uint32
}

func NewHeader(updateInterval time.Duration) Header {
	ms := updateInterval.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	if ms > int64(^uint32(0)) {
		ms = int64(^uint32(0))
	}

	// #nosec G115 -- clamped to the uint32 range above.
	return Header{Magic: Magic, Version: Version, UpdateIntervalMs: uint32(ms)}
}

func (h Header) UpdateInterval() time.Duration {
	return time.Duration(h.UpdateIntervalMs) * time.Millisecond
}

func (h Header) Validate() error {
	if h.Magic != Magic {
		return fmt.Errorf("%w (0x%08X)", ErrBadMagic, h.Magic)
	}
	if h.Version != Version {
		return fmt.Errorf("%w: %d, expected %d", ErrBadVersion, h.Version, Version)
	}

	return nil
}

func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.BigEndian.PutUint32(buf[4:8], h.Version)
	binary.BigEndian.PutUint32(buf[8:12], h.UpdateIntervalMs)

	return buf, nil
}

func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("%w: header needs %d bytes, got %d", ErrTooSmall, HeaderSize, len(data))
	}
	h.Magic = binary.BigEndian.Uint32(data[0:4])
	h.Version = binary.BigEndian.Uint32(data[4:8])
	h.UpdateIntervalMs = binary.BigEndian.Uint32(data[8:12])

	return nil
}

func readHeader(r io.Reader) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := h.UnmarshalBinary(buf); err != nil {
		return Header{}, err
	}

	return h, nil
}
