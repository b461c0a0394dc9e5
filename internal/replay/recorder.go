package replay

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/skobkin/simlink/internal/domain"
	"github.com/skobkin/simlink/internal/transport"
	"github.com/skobkin/simlink/internal/wire"
)

// Recorder appends frames to a replay file. It is not safe for concurrent use.
type Recorder struct {
	path   string
	file   *os.File
	w      *bufio.Writer
	header Header
	frames int
}

// Create truncates path and writes the file header.
func Create(path string, updateInterval time.Duration) (*Recorder, error) {
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path comes from user configuration.
	file, err := os.OpenFile(cleanPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open replay file for writing: %w", err)
	}

	header := NewHeader(updateInterval)
	raw, _ := header.MarshalBinary()
	w := bufio.NewWriter(file)
	if _, err := w.Write(raw); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("write replay header: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("flush replay header: %w", err)
	}

	return &Recorder{path: cleanPath, file: file, w: w, header: header}, nil
}

func (r *Recorder) Path() string {
	return r.path
}

func (r *Recorder) Header() Header {
	return r.header
}

func (r *Recorder) Frames() int {
	return r.frames
}

// Append writes one frame record and flushes it, so a crash loses at most the
// frame in flight.
func (r *Recorder) Append(frame domain.Frame) error {
	if r.file == nil {
		return fmt.Errorf("recorder is closed")
	}
	if err := transport.WriteEnvelope(r.w, wire.EncodeFrame(frame)); err != nil {
		return fmt.Errorf("append frame %d: %w", frame.SequenceID, err)
	}
	if err := r.w.Flush(); err != nil {
		return fmt.Errorf("flush frame %d: %w", frame.SequenceID, err)
	}
	r.frames++

	return nil
}

func (r *Recorder) Close() error {
	if r.file == nil {
		return nil
	}
	flushErr := r.w.Flush()
	closeErr := r.file.Close()
	r.file = nil
	if flushErr != nil {
		return fmt.Errorf("flush replay file: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close replay file: %w", closeErr)
	}

	return nil
}
