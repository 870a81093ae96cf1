package connection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/syed-hamad/posprint/internal/domain/models"
	"github.com/syed-hamad/posprint/internal/domain/ports"
	"github.com/syed-hamad/posprint/internal/infrastructure/storage"
	"github.com/syed-hamad/posprint/internal/service/registry"
	"github.com/syed-hamad/posprint/pkg/btprinter"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})  {}
func (nopLogger) Info(string, ...interface{})   {}
func (nopLogger) Warn(string, ...interface{})   {}
func (nopLogger) Error(string, ...interface{})  {}
func (nopLogger) Printf(string, ...interface{}) {}

type fakeEndpoint struct{ writes [][]byte }

func (f *fakeEndpoint) Write(p []byte) (int, error) {
	f.writes = append(f.writes, append([]byte(nil), p...))
	return len(p), nil
}
func (f *fakeEndpoint) WriteWithoutResponse(p []byte) (int, error) { return f.Write(p) }
func (f *fakeEndpoint) SupportsWrite() bool                        { return true }
func (f *fakeEndpoint) MaxChunk() int                              { return 0 }

type fakeSession struct {
	dev          btprinter.DeviceInfo
	ep           *fakeEndpoint
	closed       bool
	onDisconnect func()
}

func (f *fakeSession) Device() btprinter.DeviceInfo   { return f.dev }
func (f *fakeSession) Endpoint() btprinter.Endpoint   { return f.ep }
func (f *fakeSession) SetDisconnectHandler(fn func()) { f.onDisconnect = fn }
func (f *fakeSession) Close() error                   { f.closed = true; return nil }

func (f *fakeSession) drop() {
	fn := f.onDisconnect
	f.onDisconnect = nil
	if fn != nil {
		fn()
	}
}

type fakeTransport struct {
	supported bool
	devices   []btprinter.DeviceInfo
	scanErr   error
	openErr   error
	scans     int
	opens     int
	sessions  []*fakeSession
}

func (f *fakeTransport) Supported() bool { return f.supported }

func (f *fakeTransport) Scan(ctx context.Context, nameFilter string, timeout time.Duration) ([]btprinter.DeviceInfo, error) {
	f.scans++
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	if nameFilter == "" {
		return f.devices, nil
	}
	var out []btprinter.DeviceInfo
	for _, d := range f.devices {
		if d.Name == nameFilter {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, btprinter.ErrDeviceNotFound
	}
	return out, nil
}

func (f *fakeTransport) Open(ctx context.Context, dev btprinter.DeviceInfo) (btprinter.Session, error) {
	f.opens++
	if f.openErr != nil {
		return nil, f.openErr
	}
	s := &fakeSession{dev: dev, ep: &fakeEndpoint{}}
	f.sessions = append(f.sessions, s)
	return s, nil
}

type pickFirst struct{}

func (pickFirst) Pick(devices []ports.Device) (ports.Device, error) { return devices[0], nil }

type pickCancel struct{}

func (pickCancel) Pick([]ports.Device) (ports.Device, error) {
	return ports.Device{}, ports.ErrPickCancelled
}

type fixedSize struct {
	w     int
	calls int
}

func (f *fixedSize) Pick(current int) (int, error) { f.calls++; return f.w, nil }

func newTestService(tr btprinter.Transport, picker ports.DevicePicker) (*Service, *registry.Service) {
	reg := registry.New(storage.NewMemoryKVStore(), nopLogger{})
	svc := New(tr, picker, &fixedSize{w: 48}, reg, nopLogger{})
	return svc, reg
}

func TestConnectHappyPath(t *testing.T) {
	tr := &fakeTransport{supported: true, devices: []btprinter.DeviceInfo{{ID: "AA:BB", Name: "RPP02N"}}}
	svc, reg := newTestService(tr, pickFirst{})

	if err := svc.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if svc.State() != StateConnected {
		t.Errorf("state = %s, want connected", svc.State())
	}
	if hint := reg.LastConnectedHint(); hint == nil || hint.Name != "RPP02N" {
		t.Errorf("hint = %v, want RPP02N", hint)
	}
	if len(reg.List()) != 1 {
		t.Error("successful pairing should register the printer")
	}
}

func TestConnectUnsupportedFailsFast(t *testing.T) {
	tr := &fakeTransport{supported: false}
	svc, _ := newTestService(tr, pickFirst{})

	err := svc.Connect(context.Background())
	if !errors.Is(err, btprinter.ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
	if tr.scans != 0 {
		t.Error("no discovery should run when unsupported")
	}
}

func TestConnectPickerCancelMapsToCancelled(t *testing.T) {
	tr := &fakeTransport{supported: true, devices: []btprinter.DeviceInfo{{ID: "AA", Name: "X"}}}
	svc, _ := newTestService(tr, pickCancel{})

	err := svc.Connect(context.Background())
	if !errors.Is(err, btprinter.ErrCancelled) {
		t.Errorf("error = %v, want ErrCancelled", err)
	}
	if svc.State() != StateDisconnected {
		t.Errorf("state = %s, want disconnected", svc.State())
	}
}

func TestConnectWhenConnectedOnlyReconfiguresWidth(t *testing.T) {
	tr := &fakeTransport{supported: true, devices: []btprinter.DeviceInfo{{ID: "AA", Name: "X"}}}
	reg := registry.New(storage.NewMemoryKVStore(), nopLogger{})
	sizes := &fixedSize{w: 64}
	svc := New(tr, pickFirst{}, sizes, reg, nopLogger{})

	if err := svc.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	scansBefore := tr.scans

	if err := svc.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if tr.scans != scansBefore {
		t.Error("second Connect must not rediscover")
	}
	if sizes.calls != 2 {
		t.Errorf("width prompt calls = %d, want 2", sizes.calls)
	}
	if reg.Width() != 64 {
		t.Errorf("width = %d, want 64", reg.Width())
	}
}

func TestSilentReconnectLatch(t *testing.T) {
	tr := &fakeTransport{supported: true} // hint device not in range
	svc, reg := newTestService(tr, pickFirst{})
	reg.SetLastConnectedHint(models.LastConnectedPrinter{ID: "AA:BB", Name: "RPP02N"})

	if svc.AttemptSilentReconnect(context.Background()) {
		t.Fatal("reconnect should fail with no device in range")
	}
	scans := tr.scans

	// Latched: the second attempt must not discover again.
	if svc.AttemptSilentReconnect(context.Background()) {
		t.Fatal("latched reconnect should return false")
	}
	if tr.scans != scans {
		t.Error("latched reconnect must not scan")
	}

	// Reset re-arms it.
	svc.ResetReconnectLatch()
	tr.devices = []btprinter.DeviceInfo{{ID: "AA:BB", Name: "RPP02N"}}
	if !svc.AttemptSilentReconnect(context.Background()) {
		t.Fatal("reconnect should succeed after reset with device in range")
	}
	if svc.State() != StateConnected {
		t.Errorf("state = %s, want connected", svc.State())
	}
}

func TestSilentReconnectWithoutHint(t *testing.T) {
	tr := &fakeTransport{supported: true, devices: []btprinter.DeviceInfo{{ID: "AA", Name: "X"}}}
	svc, _ := newTestService(tr, pickFirst{})

	if svc.AttemptSilentReconnect(context.Background()) {
		t.Error("no hint, no reconnect")
	}
	if tr.scans != 0 {
		t.Error("no hint means no discovery")
	}
}

func TestSuccessClearsLatchForNextDrop(t *testing.T) {
	tr := &fakeTransport{supported: true, devices: []btprinter.DeviceInfo{{ID: "AA:BB", Name: "RPP02N"}}}
	svc, reg := newTestService(tr, pickFirst{})
	reg.SetLastConnectedHint(models.LastConnectedPrinter{ID: "AA:BB", Name: "RPP02N"})

	if !svc.AttemptSilentReconnect(context.Background()) {
		t.Fatal("reconnect should succeed")
	}

	// Unsolicited drop, then another silent attempt must be allowed.
	tr.sessions[0].drop()
	if svc.State() != StateDisconnected {
		t.Fatalf("state = %s after drop, want disconnected", svc.State())
	}
	if !svc.AttemptSilentReconnect(context.Background()) {
		t.Error("latch should have been cleared by the earlier success")
	}
}

func TestEnsureConnectedPrefersSilentPath(t *testing.T) {
	tr := &fakeTransport{supported: true, devices: []btprinter.DeviceInfo{{ID: "AA:BB", Name: "RPP02N"}}}
	svc, reg := newTestService(tr, pickCancel{}) // picker would cancel
	reg.SetLastConnectedHint(models.LastConnectedPrinter{ID: "AA:BB", Name: "RPP02N"})

	// Silent path succeeds, so the cancelling picker is never consulted.
	if err := svc.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected: %v", err)
	}
}

func TestEnsureConnectedFallsThroughToInteractive(t *testing.T) {
	tr := &fakeTransport{supported: true, devices: []btprinter.DeviceInfo{{ID: "AA", Name: "X"}}}
	svc, _ := newTestService(tr, pickFirst{}) // no hint: silent path fails

	if err := svc.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected: %v", err)
	}
	if svc.State() != StateConnected {
		t.Errorf("state = %s, want connected", svc.State())
	}
}

func TestOnResumeResetsLatchAndRetries(t *testing.T) {
	tr := &fakeTransport{supported: true}
	svc, reg := newTestService(tr, pickFirst{})
	reg.SetLastConnectedHint(models.LastConnectedPrinter{ID: "AA:BB", Name: "RPP02N"})

	svc.AttemptSilentReconnect(context.Background()) // arms the latch

	tr.devices = []btprinter.DeviceInfo{{ID: "AA:BB", Name: "RPP02N"}}
	svc.OnResume(context.Background())
	if svc.State() != StateConnected {
		t.Errorf("state = %s after resume, want connected", svc.State())
	}
}

func TestDisconnectAlwaysResetsState(t *testing.T) {
	tr := &fakeTransport{supported: true, devices: []btprinter.DeviceInfo{{ID: "AA", Name: "X"}}}
	svc, _ := newTestService(tr, pickFirst{})
	if err := svc.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	svc.Disconnect()
	if svc.State() != StateDisconnected {
		t.Errorf("state = %s, want disconnected", svc.State())
	}
	if !tr.sessions[0].closed {
		t.Error("session should be closed")
	}
	if _, err := svc.Endpoint(); !errors.Is(err, btprinter.ErrNotConnected) {
		t.Errorf("Endpoint after disconnect = %v, want ErrNotConnected", err)
	}
}

func TestConnectToProfileKeepsWorkingSessionOnFailure(t *testing.T) {
	tr := &fakeTransport{supported: true, devices: []btprinter.DeviceInfo{{ID: "AA", Name: "Counter"}}}
	svc, _ := newTestService(tr, pickFirst{})
	if err := svc.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// The routed profile's device is not in range.
	err := svc.ConnectToProfile(context.Background(), &models.PrinterProfile{
		ID: "p1", DeviceID: "BB", DeviceName: "Kitchen",
	})
	if err == nil {
		t.Fatal("expected failure for out-of-range device")
	}
	dev, ok := svc.CurrentDevice()
	if !ok || dev.Name != "Counter" {
		t.Errorf("working session lost: %v %v", dev, ok)
	}
	if svc.State() != StateConnected {
		t.Errorf("state = %s, want connected", svc.State())
	}
}

func TestConnectToProfileSwitchesAndClosesPrevious(t *testing.T) {
	tr := &fakeTransport{supported: true, devices: []btprinter.DeviceInfo{
		{ID: "AA", Name: "Counter"},
		{ID: "BB", Name: "Kitchen"},
	}}
	svc, _ := newTestService(tr, pickFirst{})
	if err := svc.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	err := svc.ConnectToProfile(context.Background(), &models.PrinterProfile{
		ID: "p1", DeviceID: "BB", DeviceName: "Kitchen",
	})
	if err != nil {
		t.Fatalf("ConnectToProfile: %v", err)
	}
	dev, _ := svc.CurrentDevice()
	if dev.Name != "Kitchen" {
		t.Errorf("device = %q, want Kitchen", dev.Name)
	}
	if !tr.sessions[0].closed {
		t.Error("previous session should be closed after a successful switch")
	}
}

func TestConnectToProfileNoopWhenAlreadyOnDevice(t *testing.T) {
	tr := &fakeTransport{supported: true, devices: []btprinter.DeviceInfo{{ID: "AA", Name: "Counter"}}}
	svc, _ := newTestService(tr, pickFirst{})
	if err := svc.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	opens := tr.opens

	err := svc.ConnectToProfile(context.Background(), &models.PrinterProfile{
		ID: "p1", DeviceID: "AA", DeviceName: "Counter",
	})
	if err != nil {
		t.Fatalf("ConnectToProfile: %v", err)
	}
	if tr.opens != opens {
		t.Error("must not re-open a session to the same device")
	}
}

func TestConnectToProfileSerial(t *testing.T) {
	ble := &fakeTransport{supported: false}
	serial := &fakeTransport{supported: true, devices: []btprinter.DeviceInfo{{ID: "/dev/rfcomm0", Name: "/dev/rfcomm0"}}}
	svc, _ := newTestService(ble, pickFirst{})
	svc.SerialFactory = func(baud int) btprinter.Transport { return serial }

	err := svc.ConnectToProfile(context.Background(), &models.PrinterProfile{
		ID: "p1", Name: "Wired", Transport: models.TransportSerial, PortName: "/dev/rfcomm0", BaudRate: 9600,
	})
	if err != nil {
		t.Fatalf("ConnectToProfile(serial): %v", err)
	}
	if serial.opens != 1 {
		t.Errorf("serial opens = %d, want 1", serial.opens)
	}
}
