package replay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/skobkin/simlink/internal/domain"
	"github.com/skobkin/simlink/internal/transport"
	"github.com/skobkin/simlink/internal/wire"
)

// Player reads frames from a replay file in an endless loop. It is not safe
// for concurrent use.
type Player struct {
	path   string
	file   *os.File
	r      *bufio.Reader
	header Header
	frames int
	loops  int
}

// Open validates the file size and header and positions the cursor on the
// first frame record.
func Open(path string) (*Player, error) {
	cleanPath := filepath.Clean(path)
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("stat replay file: %w", err)
	}
	if info.Size() <= HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooSmall, info.Size())
	}

	// #nosec G304 -- path comes from user configuration.
	file, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	r := bufio.NewReader(file)
	header, err := readHeader(r)
	if err != nil {
		_ = file.Close()

		return nil, err
	}
	if err := header.Validate(); err != nil {
		_ = file.Close()

		return nil, err
	}

	return &Player{path: cleanPath, file: file, r: r, header: header}, nil
}

func (p *Player) Path() string {
	return p.path
}

func (p *Player) Header() Header {
	return p.header
}

// Interval is the cadence the file was recorded at.
func (p *Player) Interval() time.Duration {
	return p.header.UpdateInterval()
}

// Frames is the number of frames returned so far, across loops.
func (p *Player) Frames() int {
	return p.frames
}

// Loops counts how many times playback wrapped around to the first frame.
func (p *Player) Loops() int {
	return p.loops
}

// Next returns the next recorded frame. Reaching the end of the file rewinds
// to the first record, so Next never reports end of stream. Every record must
// start right where the previous one ended; anything else is ErrCorrupt. Any
// error is structural and playback should stop.
func (p *Player) Next() (domain.Frame, error) {
	if p.file == nil {
		return domain.Frame{}, fmt.Errorf("player is closed")
	}

	payload, err := transport.ReadStrictEnvelope(p.r)
	if errors.Is(err, io.EOF) {
		if err := p.Rewind(); err != nil {
			return domain.Frame{}, err
		}
		p.loops++
		payload, err = transport.ReadStrictEnvelope(p.r)
		if errors.Is(err, io.EOF) {
			return domain.Frame{}, ErrNoFrames
		}
	}
	if err != nil {
		return domain.Frame{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	frame, err := wire.DecodeFrame(payload)
	if err != nil {
		return domain.Frame{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	p.frames++

	return frame, nil
}

// Rewind moves the cursor to just past the header.
func (p *Player) Rewind() error {
	if p.file == nil {
		return fmt.Errorf("player is closed")
	}
	if _, err := p.file.Seek(HeaderSize, io.SeekStart); err != nil {
		return fmt.Errorf("rewind replay file: %w", err)
	}
	p.r.Reset(p.file)

	return nil
}

func (p *Player) Close() error {
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	if err != nil {
		return fmt.Errorf("close replay file: %w", err)
	}

	return nil
}
