package btprinter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// SerialTransport implements Transport for wired (USB-serial or RFCOMM
// bound) thermal printers. Discovery enumerates system ports; the name
// filter matches the port path.
type SerialTransport struct {
	// BaudRate used when opening ports; 9600 when zero, the usual rate
	// for ESC/POS thermal printers.
	BaudRate int

	logger func(string)
}

// NewSerialTransport returns a serial transport. logger may be nil.
func NewSerialTransport(baud int, logger func(string)) *SerialTransport {
	return &SerialTransport{BaudRate: baud, logger: logger}
}

// Supported reports whether serial port enumeration works on this host.
func (t *SerialTransport) Supported() bool {
	_, err := serial.GetPortsList()
	return err == nil
}

// Scan lists system serial ports as devices.
func (t *SerialTransport) Scan(ctx context.Context, nameFilter string, timeout time.Duration) ([]DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("btprinter: list serial ports: %w", err)
	}

	var devices []DeviceInfo
	for _, p := range ports {
		if nameFilter != "" && !strings.Contains(p, nameFilter) {
			continue
		}
		devices = append(devices, DeviceInfo{ID: p, Name: p})
	}
	if nameFilter != "" && len(devices) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, nameFilter)
	}
	return devices, nil
}

// Open opens the port. There is no negotiation to do; the port itself is
// the writable endpoint.
func (t *SerialTransport) Open(ctx context.Context, dev DeviceInfo) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	baud := t.BaudRate
	if baud <= 0 {
		baud = 9600
	}
	port, err := serial.Open(dev.ID, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("btprinter: open %s: %w", dev.ID, err)
	}
	if t.logger != nil {
		t.logger(fmt.Sprintf("opened serial port %s @ %d baud", dev.ID, baud))
	}
	return &serialSession{dev: dev, ep: &serialEndpoint{port: port}}, nil
}

type serialSession struct {
	dev DeviceInfo
	ep  *serialEndpoint

	mu           sync.Mutex
	closed       bool
	onDisconnect func()
}

func (s *serialSession) Device() DeviceInfo { return s.dev }
func (s *serialSession) Endpoint() Endpoint { return s.ep }

func (s *serialSession) SetDisconnectHandler(fn func()) {
	s.mu.Lock()
	s.onDisconnect = fn
	s.mu.Unlock()
}

func (s *serialSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.onDisconnect = nil
	s.mu.Unlock()
	return s.ep.port.Close()
}

type serialEndpoint struct {
	port serial.Port
}

func (e *serialEndpoint) Write(p []byte) (int, error) {
	return e.port.Write(p)
}

func (e *serialEndpoint) WriteWithoutResponse(p []byte) (int, error) {
	return e.port.Write(p)
}

// SupportsWrite is true: serial writes block until the kernel accepts the
// bytes, which is as close to acknowledged as this path gets.
func (e *serialEndpoint) SupportsWrite() bool { return true }
func (e *serialEndpoint) MaxChunk() int       { return 0 }
