package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

type dialFunc func(ctx context.Context) (io.ReadWriteCloser, error)

// deadliner is satisfied by net.Conn. Streams without it are read in a loop
// that checks the context between short device timeouts.
type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// stream is the connection state shared by the byte-stream transports.
type stream struct {
	name   string
	target string
	dial   dialFunc
	logger *slog.Logger

	mu  sync.Mutex
	rwc io.ReadWriteCloser

	writeMu sync.Mutex
}

func newStream(name, target string, dial dialFunc) *stream {
	return &stream{
		name:   name,
		target: target,
		dial:   dial,
		logger: slog.With("component", "transport", "transport", name, "target", target),
	}
}

func (s *stream) Name() string {
	return s.name
}

func (s *stream) StatusTarget() string {
	return s.target
}

func (s *stream) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rwc != nil
}

func (s *stream) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rwc != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rwc, err := s.dial(ctx)
	if err != nil {
		s.logger.Warn("connect failed", "error", err)

		return err
	}
	s.rwc = rwc
	s.logger.Info("connected")

	return nil
}

func (s *stream) Close() error {
	s.mu.Lock()
	rwc := s.rwc
	s.rwc = nil
	s.mu.Unlock()

	if rwc == nil {
		return nil
	}
	if err := rwc.Close(); err != nil {
		s.logger.Warn("close failed", "error", err)

		return fmt.Errorf("close %s: %w", s.name, err)
	}
	s.logger.Info("closed")

	return nil
}

func (s *stream) ReadFrame(ctx context.Context) ([]byte, error) {
	rwc, err := s.current()
	if err != nil {
		return nil, err
	}

	readFull := func(buf []byte) error {
		return readFullContext(ctx, rwc, buf)
	}
	if d, ok := rwc.(deadliner); ok {
		deadline, _ := ctx.Deadline()
		_ = d.SetReadDeadline(deadline)
		readFull = ioReadFullFunc(rwc)
	}

	payload, err := readEnvelope(readFull)
	if err != nil {
		s.logger.Debug("read frame failed", "error", err)

		return nil, err
	}
	s.logger.Debug("read frame", "len", len(payload))

	return payload, nil
}

func (s *stream) WriteFrame(ctx context.Context, payload []byte) error {
	rwc, err := s.current()
	if err != nil {
		return err
	}
	frame, err := encodeEnvelope(payload)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if d, ok := rwc.(deadliner); ok {
		deadline, _ := ctx.Deadline()
		_ = d.SetWriteDeadline(deadline)
	}
	if err := writeFullContext(ctx, rwc, frame); err != nil {
		s.logger.Warn("write frame failed", "len", len(frame), "error", err)

		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

func (s *stream) current() (io.ReadWriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rwc == nil {
		return nil, ErrNotConnected
	}

	return s.rwc, nil
}

// readFullContext fills buf, tolerating zero-length reads from device
// timeouts and giving up once ctx is done.
func readFullContext(ctx context.Context, r io.Reader, buf []byte) error {
	for read := 0; read < len(buf); {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf[read:])
		read += n
		if err != nil && read < len(buf) {
			return err
		}
	}

	return nil
}

func writeFullContext(ctx context.Context, w io.Writer, buf []byte) error {
	for written := 0; written < len(buf); {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := w.Write(buf[written:])
		if err != nil {
			return err
		}
		written += n
	}

	return nil
}
