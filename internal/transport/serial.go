package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// serialReadTimeout bounds each device read so frame reads notice cancellation.
const serialReadTimeout = 300 * time.Millisecond

// SerialTransport talks to a simulator bridge exposed on a serial or USB port.
type SerialTransport struct {
	*stream
}

func NewSerialTransport(portName string, baudRate int) *SerialTransport {
	target := ""
	if portName != "" {
		target = fmt.Sprintf("%s@%d", portName, baudRate)
	}

	return &SerialTransport{stream: newStream("serial", target, func(context.Context) (io.ReadWriteCloser, error) {
		return openSerial(portName, baudRate)
	})}
}

func openSerial(portName string, baudRate int) (serial.Port, error) {
	if portName == "" {
		return nil, errors.New("serial port is empty")
	}
	if baudRate <= 0 {
		return nil, fmt.Errorf("invalid serial baud rate: %d", baudRate)
	}

	port, err := serial.Open(portName, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %q: %w", portName, err)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		_ = port.Close()

		return nil, fmt.Errorf("set serial read timeout: %w", err)
	}

	return port, nil
}
