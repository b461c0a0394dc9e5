package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

const (
	// DefaultIPPort is where the simulator bridge listens by default.
	DefaultIPPort = 51968

	ipDialTimeout = 6 * time.Second
)

// IPTransport exchanges framed bridge traffic over a TCP socket.
type IPTransport struct {
	*stream
}

func NewIPTransport(host string, port int) *IPTransport {
	if port == 0 {
		port = DefaultIPPort
	}
	target := ""
	if host != "" {
		target = net.JoinHostPort(host, strconv.Itoa(port))
	}

	return &IPTransport{stream: newStream("ip", target, func(ctx context.Context) (io.ReadWriteCloser, error) {
		if target == "" {
			return nil, errors.New("ip host is empty")
		}
		dialer := net.Dialer{Timeout: ipDialTimeout, KeepAlive: 30 * time.Second}
		conn, err := dialer.DialContext(ctx, "tcp", target)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", target, err)
		}

		return conn, nil
	})}
}
