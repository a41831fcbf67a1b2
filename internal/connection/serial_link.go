// internal/connection/serial_link.go
package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	"terminal-service/internal/model"
)

// SerialConnector dials USB and serial printers through their CDC/ACM or
// native serial port. The descriptor ID is the port path.
type SerialConnector struct {
	baudRate int
}

func NewSerialConnector(baudRate int) *SerialConnector {
	if baudRate <= 0 {
		baudRate = 9600
	}
	return &SerialConnector{baudRate: baudRate}
}

func (c *SerialConnector) Transport() model.TransportKind {
	return model.TransportUSB
}

func (c *SerialConnector) Dial(ctx context.Context, descriptor model.DeviceDescriptor) (Link, error) {
	if err := checkTransport(descriptor, model.TransportUSB); err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: c.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	type dialResult struct {
		port serial.Port
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		port, err := serial.Open(descriptor.ID, mode)
		resultCh <- dialResult{port: port, err: err}
	}()

	select {
	case <-ctx.Done():
		// port is closed by the goroutine's receiver being abandoned;
		// drain it so a late open does not leak the handle
		go func() {
			if r := <-resultCh; r.port != nil {
				r.port.Close()
			}
		}()
		return nil, model.WrapFailure(model.FailureHandshakeFailed,
			fmt.Sprintf("opening %s timed out", descriptor.ID), ctx.Err())
	case r := <-resultCh:
		if r.err != nil {
			return nil, model.WrapFailure(model.FailureHandshakeFailed,
				fmt.Sprintf("failed to open %s", descriptor.ID), r.err)
		}
		return &serialLink{port: r.port, portName: descriptor.ID}, nil
	}
}

type serialLink struct {
	mu       sync.Mutex
	port     serial.Port
	portName string
	closed   bool
}

func (l *serialLink) Transport() model.TransportKind {
	return model.TransportUSB
}

func (l *serialLink) Write(ctx context.Context, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return model.NewFailure(model.FailureTransmissionFailed, "port "+l.portName+" is closed")
	}

	written := 0
	for written < len(data) {
		if err := ctx.Err(); err != nil {
			return model.WrapFailure(model.FailureTransmissionFailed,
				"write to "+l.portName+" cancelled", err)
		}
		n, err := l.port.Write(data[written:])
		if err != nil {
			return model.WrapFailure(model.FailureTransmissionFailed,
				"write to "+l.portName+" failed", err)
		}
		written += n
	}
	return nil
}

func (l *serialLink) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, fmt.Errorf("port %s is closed", l.portName)
	}

	timeout := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := l.port.SetReadTimeout(timeout); err != nil {
		return nil, fmt.Errorf("set read timeout on %s: %w", l.portName, err)
	}

	buf := make([]byte, maxBytes)
	n, err := l.port.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read from %s: %w", l.portName, err)
	}
	return buf[:n], nil
}

func (l *serialLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.port.Close()
}
