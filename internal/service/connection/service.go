// Package connection owns the single live printer link: discovery, GATT
// negotiation down to a writable characteristic, silent reconnection and
// disconnect handling. Exactly one session is open at a time.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/syed-hamad/posprint/internal/domain/models"
	"github.com/syed-hamad/posprint/internal/domain/ports"
	"github.com/syed-hamad/posprint/internal/service/registry"
	"github.com/syed-hamad/posprint/pkg/btprinter"
)

// State of the connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateDiscovering
	StateNegotiating
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDiscovering:
		return "discovering"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// DefaultScanTimeout bounds discovery; silent reconnects use a shorter
// window so a missing printer does not stall printing for long.
const (
	DefaultScanTimeout = 8 * time.Second
	silentScanTimeout  = 4 * time.Second
)

// Service is the connection manager.
type Service struct {
	mu sync.Mutex

	transport btprinter.Transport
	picker    ports.DevicePicker
	sizes     ports.SizePicker
	registry  *registry.Service
	log       ports.Logger

	// SerialFactory builds transports for profiles that declare a wired
	// printer. Swappable for tests.
	SerialFactory func(baud int) btprinter.Transport

	ScanTimeout time.Duration

	state              State
	session            btprinter.Session
	reconnectAttempted bool
}

// New creates a connection manager.
func New(transport btprinter.Transport, picker ports.DevicePicker, sizes ports.SizePicker, reg *registry.Service, log ports.Logger) *Service {
	return &Service{
		transport:   transport,
		picker:      picker,
		sizes:       sizes,
		registry:    reg,
		log:         log,
		ScanTimeout: DefaultScanTimeout,
		SerialFactory: func(baud int) btprinter.Transport {
			return btprinter.NewSerialTransport(baud, func(msg string) { log.Debug("%s", msg) })
		},
	}
}

// Supported reports whether the wireless transport can work on this host.
// When false every printing attempt must go straight to the fallback path.
func (s *Service) Supported() bool {
	return s.transport.Supported()
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether a live session with a writable endpoint exists.
func (s *Service) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// Endpoint returns the negotiated writable endpoint of the live session.
func (s *Service) Endpoint() (btprinter.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, btprinter.ErrNotConnected
	}
	return s.session.Endpoint(), nil
}

// CurrentDevice returns the connected device identity, if any.
func (s *Service) CurrentDevice() (btprinter.DeviceInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return btprinter.DeviceInfo{}, false
	}
	return s.session.Device(), true
}

// Width returns the paper width preference in characters per line.
func (s *Service) Width() int { return s.registry.Width() }

// Connect establishes a connection through the user-gesture path: scan,
// let the picker choose a device (the last-connected one is offered
// first), negotiate a writable endpoint, then prompt for paper width.
// When already connected it only re-prompts for width.
func (s *Service) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.transport.Supported() {
		return btprinter.ErrUnsupported
	}
	if s.session != nil {
		s.promptWidthLocked()
		return nil
	}

	if err := s.connectInteractiveLocked(ctx); err != nil {
		return err
	}
	s.promptWidthLocked()
	return nil
}

func (s *Service) connectInteractiveLocked(ctx context.Context) error {
	s.state = StateDiscovering
	devices, err := s.transport.Scan(ctx, "", s.scanTimeout())
	if err != nil {
		s.state = StateDisconnected
		return err
	}
	if len(devices) == 0 {
		s.state = StateDisconnected
		return btprinter.ErrDeviceNotFound
	}

	// The last-connected device goes first so the picker can offer
	// "reuse" as the obvious choice.
	if hint := s.registry.LastConnectedHint(); hint != nil {
		for i, d := range devices {
			if i > 0 && (d.ID == hint.ID || d.Name == hint.Name) {
				devices[0], devices[i] = devices[i], devices[0]
				break
			}
		}
	}

	candidates := make([]ports.Device, len(devices))
	for i, d := range devices {
		candidates[i] = ports.Device{ID: d.ID, Name: d.Name}
	}
	choice, err := s.picker.Pick(candidates)
	if err != nil {
		s.state = StateDisconnected
		if errors.Is(err, ports.ErrPickCancelled) {
			return btprinter.ErrCancelled
		}
		return err
	}

	return s.openLocked(ctx, s.transport, btprinter.DeviceInfo{ID: choice.ID, Name: choice.Name})
}

// openLocked negotiates a session with a chosen device and records it as
// the new live connection.
func (s *Service) openLocked(ctx context.Context, tr btprinter.Transport, dev btprinter.DeviceInfo) error {
	s.state = StateNegotiating
	sess, err := tr.Open(ctx, dev)
	if err != nil {
		s.state = StateDisconnected
		return err
	}
	s.adoptLocked(sess)
	return nil
}

func (s *Service) adoptLocked(sess btprinter.Session) {
	sess.SetDisconnectHandler(func() { s.handleUnsolicitedDisconnect(sess) })
	s.session = sess
	s.state = StateConnected
	s.reconnectAttempted = false

	dev := sess.Device()
	s.registry.SetLastConnectedHint(models.LastConnectedPrinter{ID: dev.ID, Name: dev.Name})
	s.registry.RecordSuccess(dev.ID, dev.Name)
	s.log.Info("connection: established with %s (%s)", dev.Name, dev.ID)
}

func (s *Service) handleUnsolicitedDisconnect(sess btprinter.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != sess {
		return
	}
	dev := s.session.Device()
	s.session = nil
	s.state = StateDisconnected
	s.log.Warn("connection: %s dropped", dev.Name)
}

func (s *Service) promptWidthLocked() {
	if s.sizes == nil {
		return
	}
	w, err := s.sizes.Pick(s.registry.Width())
	if err != nil || w <= 0 {
		return // keep the stored preference
	}
	s.registry.SetWidth(w)
}

// EnsureConnected makes sure a live session exists, trying the silent path
// before falling through to the user-gesture Connect. This keeps printing
// from re-prompting when a paired device was merely out of range.
func (s *Service) EnsureConnected(ctx context.Context) error {
	s.mu.Lock()
	if s.session != nil {
		s.mu.Unlock()
		return nil
	}
	ok := s.silentReconnectLocked(ctx)
	s.mu.Unlock()
	if ok {
		return nil
	}
	return s.Connect(ctx)
}

// AttemptSilentReconnect tries to re-establish the last known connection
// without any user-facing prompt. It never returns an error: every failure
// is swallowed, logged, and reported as false. A latch prevents repeated
// attempts until a success or an explicit reset.
func (s *Service) AttemptSilentReconnect(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.silentReconnectLocked(ctx)
}

func (s *Service) silentReconnectLocked(ctx context.Context) bool {
	if s.session != nil {
		return true
	}
	if s.reconnectAttempted {
		s.log.Debug("connection: silent reconnect already attempted, skipping")
		return false
	}
	s.reconnectAttempted = true

	hint := s.registry.LastConnectedHint()
	if hint == nil || hint.Name == "" {
		return false
	}
	if !s.transport.Supported() {
		return false
	}

	s.state = StateDiscovering
	devices, err := s.transport.Scan(ctx, hint.Name, silentScanTimeout)
	if err != nil || len(devices) == 0 {
		s.state = StateDisconnected
		s.log.Info("connection: silent reconnect to %q failed: %v", hint.Name, err)
		return false
	}
	if err := s.openLocked(ctx, s.transport, devices[0]); err != nil {
		s.log.Info("connection: silent reconnect negotiation failed: %v", err)
		return false
	}
	// adoptLocked cleared the latch; the next unsolicited disconnect may
	// trigger another silent attempt.
	return true
}

// ResetReconnectLatch re-arms the silent reconnect path.
func (s *Service) ResetReconnectLatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnectAttempted = false
}

// OnResume is the passive re-attach hook for the host becoming visible or
// focused again: the latch is reset and a silent reconnect is retried when
// a hint exists. Recovers from the OS suspending the radio in background.
func (s *Service) OnResume(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return
	}
	s.reconnectAttempted = false
	s.silentReconnectLocked(ctx)
}

// Disconnect tears the session down. Local state is reset even when the
// transport-level teardown fails.
func (s *Service) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		if err := s.session.Close(); err != nil {
			s.log.Warn("connection: teardown: %v", err)
		}
	}
	s.session = nil
	s.state = StateDisconnected
}

// ConnectToProfile targets the specific device of a routed profile without
// prompting. An existing session to a different device is kept aside and
// restored if the switch fails, so a failed attempt to reach a
// channel-specific printer never tears down a working connection.
func (s *Service) ConnectToProfile(ctx context.Context, profile *models.PrinterProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		cur := s.session.Device()
		if cur.ID == profile.DeviceID || (profile.DeviceName != "" && cur.Name == profile.DeviceName) {
			return nil
		}
	}

	prev := s.session
	prevState := s.state
	s.session = nil

	if err := s.dialProfileLocked(ctx, profile); err != nil {
		s.session = prev
		s.state = prevState
		return err
	}
	if prev != nil {
		if cerr := prev.Close(); cerr != nil {
			s.log.Warn("connection: closing previous session: %v", cerr)
		}
	}
	return nil
}

func (s *Service) dialProfileLocked(ctx context.Context, profile *models.PrinterProfile) error {
	if profile.Transport == models.TransportSerial {
		tr := s.SerialFactory(profile.BaudRate)
		if !tr.Supported() {
			return btprinter.ErrUnsupported
		}
		return s.openLocked(ctx, tr, btprinter.DeviceInfo{ID: profile.PortName, Name: profile.Name})
	}

	if !s.transport.Supported() {
		return btprinter.ErrUnsupported
	}
	name := profile.DeviceName
	if name == "" {
		name = profile.Name
	}
	if name == "" {
		return fmt.Errorf("%w: profile %q has no device identity", btprinter.ErrDeviceNotFound, profile.ID)
	}

	s.state = StateDiscovering
	devices, err := s.transport.Scan(ctx, name, s.scanTimeout())
	if err != nil {
		s.state = StateDisconnected
		return err
	}
	return s.openLocked(ctx, s.transport, devices[0])
}

func (s *Service) scanTimeout() time.Duration {
	if s.ScanTimeout > 0 {
		return s.ScanTimeout
	}
	return DefaultScanTimeout
}
