package btprinter

import (
	"context"
	"time"
)

// DeviceInfo identifies a physical printer at the transport level. ID is
// the transport address (BLE MAC or serial port path) and is stable enough
// to re-request the same device later.
type DeviceInfo struct {
	ID   string
	Name string
}

// Endpoint is a negotiated writable sink on an open session.
type Endpoint interface {
	// Write performs an acknowledged write
	Write(p []byte) (int, error)

	// WriteWithoutResponse performs an unacknowledged write
	WriteWithoutResponse(p []byte) (int, error)

	// SupportsWrite reports whether acknowledged writes are available
	SupportsWrite() bool

	// MaxChunk is the per-write byte limit the transport negotiated,
	// or 0 when unknown
	MaxChunk() int
}

// Session is one open connection to a device. Exactly one session should
// be live at a time; the connection manager owns that invariant.
type Session interface {
	Device() DeviceInfo
	Endpoint() Endpoint

	// SetDisconnectHandler registers a one-shot observer for an
	// unsolicited transport-level disconnect
	SetDisconnectHandler(fn func())

	Close() error
}

// Transport discovers devices and opens sessions.
type Transport interface {
	// Supported reports whether this transport can work on the host.
	// It must be consulted before any other call.
	Supported() bool

	// Scan discovers devices, optionally filtered by exact local name.
	// With a filter it returns as soon as a match is seen; without one it
	// collects until the timeout elapses or ctx is cancelled.
	Scan(ctx context.Context, nameFilter string, timeout time.Duration) ([]DeviceInfo, error)

	// Open connects to the device and negotiates a writable endpoint.
	Open(ctx context.Context, dev DeviceInfo) (Session, error)
}
