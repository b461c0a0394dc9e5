package replay

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/skobkin/simlink/internal/domain"
	"github.com/skobkin/simlink/internal/transport"
	"github.com/skobkin/simlink/internal/wire"
)

func TestRecordThenReplayLoopsOverFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.slr")

	rec, err := Create(path, 250*time.Millisecond)
	if err != nil {
		t.Fatalf("create recorder: %v", err)
	}
	payloads := []string{"alpha", "bravo", "charlie"}
	for i, p := range payloads {
		frame := domain.Frame{SequenceID: uint32(i + 1), Timestamp: time.Unix(1700000000+int64(i), 0), Payload: []byte(p)}
		if err := rec.Append(frame); err != nil {
			t.Fatalf("append frame %d: %v", i, err)
		}
	}
	if rec.Frames() != len(payloads) {
		t.Fatalf("expected %d recorded frames, got %d", len(payloads), rec.Frames())
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("close recorder: %v", err)
	}

	player, err := Open(path)
	if err != nil {
		t.Fatalf("open player: %v", err)
	}
	defer func() {
		_ = player.Close()
	}()
	if player.Interval() != 250*time.Millisecond {
		t.Fatalf("expected recorded interval 250ms, got %s", player.Interval())
	}

	// Two full passes plus one frame: playback must wrap instead of ending.
	for i := 0; i < 2*len(payloads)+1; i++ {
		frame, err := player.Next()
		if err != nil {
			t.Fatalf("next frame %d: %v", i, err)
		}
		want := payloads[i%len(payloads)]
		if string(frame.Payload) != want {
			t.Fatalf("frame %d: expected payload %q, got %q", i, want, frame.Payload)
		}
		if frame.SequenceID != uint32(i%len(payloads)+1) {
			t.Fatalf("frame %d: unexpected sequence %d", i, frame.SequenceID)
		}
	}
	if player.Loops() != 2 {
		t.Fatalf("expected 2 loops, got %d", player.Loops())
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	path := writeRawFile(t, Magic+1, Version, 500, []byte("trailing data"))

	_, err := Open(path)
	if !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestOpenRejectsBadVersion(t *testing.T) {
	path := writeRawFile(t, Magic, Version+1, 500, []byte("trailing data"))

	_, err := Open(path)
	if !errors.Is(err, ErrBadVersion) {
		t.Fatalf("expected ErrBadVersion, got %v", err)
	}
}

func TestOpenRejectsHeaderOnlyFile(t *testing.T) {
	path := writeRawFile(t, Magic, Version, 500, nil)

	_, err := Open(path)
	if !errors.Is(err, ErrTooSmall) {
		t.Fatalf("expected ErrTooSmall, got %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.slr")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestNextRejectsBytesThatAreNotARecord(t *testing.T) {
	path := writeRawFile(t, Magic, Version, 500, []byte{0x00, 0x01, 0x02})

	player, err := Open(path)
	if err != nil {
		t.Fatalf("open player: %v", err)
	}
	defer func() {
		_ = player.Close()
	}()

	if _, err := player.Next(); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestNextReportsGarbageInsteadOfLooping(t *testing.T) {
	garbage := []byte("GARBAGE-NOT-A-RECORD")

	tests := []struct {
		name   string
		layout func(first, second []byte) []byte
		good   int
	}{
		{
			name:   "trailing",
			layout: func(first, second []byte) []byte { return concat(first, second, garbage) },
			good:   2,
		},
		{
			name:   "between records",
			layout: func(first, second []byte) []byte { return concat(first, garbage, second) },
			good:   1,
		},
		{
			name:   "single stray byte at end",
			layout: func(first, second []byte) []byte { return concat(first, second, []byte{0x94}) },
			good:   2,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			first := encodedRecord(t, domain.Frame{SequenceID: 1, Payload: []byte("one")})
			second := encodedRecord(t, domain.Frame{SequenceID: 2, Payload: []byte("two")})
			path := writeRawFile(t, Magic, Version, 500, tc.layout(first, second))

			player, err := Open(path)
			if err != nil {
				t.Fatalf("open player: %v", err)
			}
			defer func() {
				_ = player.Close()
			}()

			for i := 0; i < tc.good; i++ {
				if _, err := player.Next(); err != nil {
					t.Fatalf("record %d: %v", i+1, err)
				}
			}
			_, err = player.Next()
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("expected ErrCorrupt, got %v", err)
			}
			if player.Loops() != 0 {
				t.Fatalf("corrupt file must not loop, loops=%d", player.Loops())
			}
		})
	}
}

func TestNextReportsTruncatedRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truncated.slr")
	rec, err := Create(path, time.Second)
	if err != nil {
		t.Fatalf("create recorder: %v", err)
	}
	if err := rec.Append(domain.Frame{SequenceID: 1, Payload: []byte("complete frame")}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if err := os.WriteFile(path, raw[:len(raw)-4], 0o600); err != nil {
		t.Fatalf("truncate file: %v", err)
	}

	player, err := Open(path)
	if err != nil {
		t.Fatalf("open player: %v", err)
	}
	defer func() {
		_ = player.Close()
	}()
	_, err = player.Next()
	if !errors.Is(err, ErrCorrupt) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected truncated record error, got %v", err)
	}
}

func TestHeaderClampsInterval(t *testing.T) {
	if got := NewHeader(-time.Second).UpdateIntervalMs; got != 0 {
		t.Fatalf("expected negative interval to clamp to 0, got %d", got)
	}
	h := NewHeader(1500 * time.Millisecond)
	if h.Magic != Magic || h.Version != Version || h.UpdateIntervalMs != 1500 {
		t.Fatalf("unexpected header %+v", h)
	}
	if err := h.Validate(); err != nil {
		t.Fatalf("expected fresh header to validate: %v", err)
	}
}

func writeRawFile(t *testing.T, magic, version, intervalMs uint32, body []byte) string {
	t.Helper()

	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], magic)
	binary.BigEndian.PutUint32(buf[4:8], version)
	binary.BigEndian.PutUint32(buf[8:12], intervalMs)
	buf = append(buf, body...)

	path := filepath.Join(t.TempDir(), "raw.slr")
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	return path
}

func encodedRecord(t *testing.T, frame domain.Frame) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := transport.WriteEnvelope(&buf, wire.EncodeFrame(frame)); err != nil {
		t.Fatalf("encode record: %v", err)
	}

	return buf.Bytes()
}

func concat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}
