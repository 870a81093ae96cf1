package btprinter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// Characteristics adopted without probing. These are the write channels of
// the common thermal printer families (Phomemo/Goojprt FF02, AE01-style
// clones, the BES SPP bridge and the ISSC transparent UART).
var knownWriterUUIDs = []string{
	"0000ff02-0000-1000-8000-00805f9b34fb",
	"0000ae01-0000-1000-8000-00805f9b34fb",
	"00002af1-0000-1000-8000-00805f9b34fb",
	"49535343-8841-43f4-a8d4-ecbe34729bb3",
}

// BLETransport implements Transport over the host's Bluetooth Low Energy
// stack. It owns at most one live session; an unsolicited disconnect of
// that session fires the session's one-shot handler.
type BLETransport struct {
	mu      sync.Mutex
	adapter *bluetooth.Adapter
	enabled bool
	failed  bool
	active  *bleSession
	logger  func(string)
}

// NewBLETransport returns a transport over the default adapter. logger may
// be nil.
func NewBLETransport(logger func(string)) *BLETransport {
	return &BLETransport{
		adapter: bluetooth.DefaultAdapter,
		logger:  logger,
	}
}

// Supported reports whether the adapter can be powered on. The first call
// probes the hardware; the result is cached either way.
func (t *BLETransport) Supported() bool {
	return t.enable() == nil
}

func (t *BLETransport) enable() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enabled {
		return nil
	}
	if t.failed {
		return ErrUnsupported
	}
	if err := t.adapter.Enable(); err != nil {
		t.failed = true
		t.logf("adapter enable failed: %v", err)
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	t.adapter.SetConnectHandler(func(dev bluetooth.Device, connected bool) {
		if connected {
			return
		}
		t.mu.Lock()
		s := t.active
		t.mu.Unlock()
		if s != nil && s.dev.ID == dev.Address.String() {
			s.fireDisconnect()
		}
	})
	t.enabled = true
	return nil
}

// Scan discovers advertising devices. With a name filter it stops at the
// first exact match and errors with ErrDeviceNotFound if none appears
// before the timeout.
func (t *BLETransport) Scan(ctx context.Context, nameFilter string, timeout time.Duration) ([]DeviceInfo, error) {
	if err := t.enable(); err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		devices []DeviceInfo
		seen    = make(map[string]bool)
	)
	done := make(chan error, 1)

	go func() {
		done <- t.adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
			id := r.Address.String()
			name := r.LocalName()

			mu.Lock()
			if !seen[id] && name != "" {
				seen[id] = true
				devices = append(devices, DeviceInfo{ID: id, Name: name})
			}
			matched := nameFilter != "" && name == nameFilter
			mu.Unlock()

			if matched {
				a.StopScan()
			}
		})
	}()

	var scanErr error
	select {
	case scanErr = <-done:
	case <-ctx.Done():
		t.adapter.StopScan()
		<-done
		return nil, ctx.Err()
	case <-time.After(timeout):
		t.adapter.StopScan()
		scanErr = <-done
	}
	if scanErr != nil {
		return nil, fmt.Errorf("btprinter: scan: %w", scanErr)
	}

	mu.Lock()
	defer mu.Unlock()
	if nameFilter != "" {
		var matches []DeviceInfo
		for _, d := range devices {
			if d.Name == nameFilter {
				matches = append(matches, d)
			}
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, nameFilter)
		}
		return matches, nil
	}
	out := make([]DeviceInfo, len(devices))
	copy(out, devices)
	return out, nil
}

// Open connects to the device, walks every advertised service and probes
// its characteristics for a writable one. The first writable endpoint
// found is adopted; having none makes the device incompatible.
func (t *BLETransport) Open(ctx context.Context, dev DeviceInfo) (Session, error) {
	if err := t.enable(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mac, err := bluetooth.ParseMAC(dev.ID)
	if err != nil {
		return nil, fmt.Errorf("btprinter: bad device id %q: %w", dev.ID, err)
	}
	addr := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}

	device, err := t.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("btprinter: connect %s: %w", dev.ID, err)
	}

	ch, err := t.findWritable(device)
	if err != nil {
		device.Disconnect()
		return nil, err
	}

	s := &bleSession{transport: t, dev: dev, device: device, ep: newBLEEndpoint(ch)}
	t.mu.Lock()
	t.active = s
	t.mu.Unlock()
	t.logf("connected to %s (%s)", dev.Name, dev.ID)
	return s, nil
}

func (t *BLETransport) findWritable(device bluetooth.Device) (bluetooth.DeviceCharacteristic, error) {
	var zero bluetooth.DeviceCharacteristic

	services, err := device.DiscoverServices(nil)
	if err != nil {
		return zero, fmt.Errorf("btprinter: discover services: %w", err)
	}

	for _, svc := range services {
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			t.logf("service %s: characteristic discovery failed: %v", svc.UUID().String(), err)
			continue
		}
		for _, ch := range chars {
			if isKnownWriter(ch.UUID().String()) {
				return ch, nil
			}
		}
		for _, ch := range chars {
			// Probe with an empty write; stacks reject it on
			// characteristics that only notify or read.
			if _, err := ch.WriteWithoutResponse(nil); err == nil {
				return ch, nil
			}
		}
	}
	return zero, ErrNoWritableEndpoint
}

func isKnownWriter(uuid string) bool {
	uuid = strings.ToLower(uuid)
	for _, k := range knownWriterUUIDs {
		if uuid == k {
			return true
		}
	}
	return false
}

func (t *BLETransport) logf(format string, args ...interface{}) {
	if t.logger != nil {
		t.logger(fmt.Sprintf(format, args...))
	}
}

type bleSession struct {
	transport *BLETransport
	dev       DeviceInfo
	device    bluetooth.Device
	ep        *bleEndpoint

	mu           sync.Mutex
	closed       bool
	onDisconnect func()
}

func (s *bleSession) Device() DeviceInfo { return s.dev }
func (s *bleSession) Endpoint() Endpoint { return s.ep }

func (s *bleSession) SetDisconnectHandler(fn func()) {
	s.mu.Lock()
	s.onDisconnect = fn
	s.mu.Unlock()
}

func (s *bleSession) fireDisconnect() {
	s.mu.Lock()
	fn := s.onDisconnect
	s.onDisconnect = nil
	s.closed = true
	s.mu.Unlock()

	s.transport.clearActive(s)
	if fn != nil {
		fn()
	}
}

func (s *bleSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.onDisconnect = nil
	s.mu.Unlock()

	s.transport.clearActive(s)
	if err := s.device.Disconnect(); err != nil {
		return fmt.Errorf("btprinter: disconnect: %w", err)
	}
	return nil
}

func (t *BLETransport) clearActive(s *bleSession) {
	t.mu.Lock()
	if t.active == s {
		t.active = nil
	}
	t.mu.Unlock()
}

type bleEndpoint struct {
	char     bluetooth.DeviceCharacteristic
	maxChunk int
}

func newBLEEndpoint(ch bluetooth.DeviceCharacteristic) *bleEndpoint {
	ep := &bleEndpoint{char: ch}
	if mtu, err := ch.GetMTU(); err == nil && mtu > 3 {
		ep.maxChunk = int(mtu) - 3 // ATT header
	}
	return ep
}

// Write delegates to the unacknowledged variant: the BLE stack here exposes
// no acknowledged characteristic write.
func (e *bleEndpoint) Write(p []byte) (int, error) {
	return e.char.WriteWithoutResponse(p)
}

func (e *bleEndpoint) WriteWithoutResponse(p []byte) (int, error) {
	return e.char.WriteWithoutResponse(p)
}

func (e *bleEndpoint) SupportsWrite() bool { return false }
func (e *bleEndpoint) MaxChunk() int       { return e.maxChunk }
