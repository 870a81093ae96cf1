package registry

import (
	"errors"
	"testing"

	"github.com/syed-hamad/posprint/internal/domain/models"
	"github.com/syed-hamad/posprint/internal/domain/ports"
	"github.com/syed-hamad/posprint/internal/infrastructure/storage"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})  {}
func (nopLogger) Info(string, ...interface{})   {}
func (nopLogger) Warn(string, ...interface{})   {}
func (nopLogger) Error(string, ...interface{})  {}
func (nopLogger) Printf(string, ...interface{}) {}

func newTestRegistry() *Service {
	return New(storage.NewMemoryKVStore(), nopLogger{})
}

func countDefaults(profiles []*models.PrinterProfile) int {
	n := 0
	for _, p := range profiles {
		if p.IsDefault {
			n++
		}
	}
	return n
}

func TestAddAssignsIDAndFirstBecomesActive(t *testing.T) {
	r := newTestRegistry()
	p := r.Add(models.PrinterProfile{Name: "Front Counter"}, false)
	if p.ID == "" {
		t.Error("expected generated id")
	}
	if r.ActiveID() != p.ID {
		t.Errorf("active = %q, want first profile %q", r.ActiveID(), p.ID)
	}
}

func TestDefaultUniqueness(t *testing.T) {
	r := newTestRegistry()
	a := r.Add(models.PrinterProfile{Name: "A"}, true)
	b := r.Add(models.PrinterProfile{Name: "B"}, true)
	r.Add(models.PrinterProfile{Name: "C"}, false)

	profiles := r.List()
	if n := countDefaults(profiles); n != 1 {
		t.Fatalf("defaults = %d, want 1", n)
	}
	if got := r.Get(b.ID); !got.IsDefault {
		t.Error("B should be default")
	}
	if got := r.Get(a.ID); got.IsDefault {
		t.Error("A should have lost the default flag")
	}

	// Moving the flag via Update keeps uniqueness too.
	r.Update(a.ID, func(p *models.PrinterProfile) { p.IsDefault = true })
	if n := countDefaults(r.List()); n != 1 {
		t.Errorf("defaults after update = %d, want 1", n)
	}
	if !r.Get(a.ID).IsDefault {
		t.Error("A should be default after update")
	}
}

func TestRemovePromotesNewDefault(t *testing.T) {
	r := newTestRegistry()
	a := r.Add(models.PrinterProfile{Name: "A"}, true)
	r.Add(models.PrinterProfile{Name: "B"}, false)
	r.Add(models.PrinterProfile{Name: "C"}, false)

	if !r.Remove(a.ID) {
		t.Fatal("Remove returned false")
	}
	profiles := r.List()
	if len(profiles) != 2 {
		t.Fatalf("profiles = %d, want 2", len(profiles))
	}
	if n := countDefaults(profiles); n != 1 {
		t.Errorf("defaults = %d, want exactly 1 after promotion", n)
	}
}

func TestRemoveLastClearsActive(t *testing.T) {
	r := newTestRegistry()
	a := r.Add(models.PrinterProfile{Name: "A"}, true)
	if !r.Remove(a.ID) {
		t.Fatal("Remove returned false")
	}
	if len(r.List()) != 0 {
		t.Error("registry should be empty")
	}
	if r.ActiveID() != "" {
		t.Errorf("active = %q, want empty", r.ActiveID())
	}
}

func TestRemoveActivePromotesAnother(t *testing.T) {
	r := newTestRegistry()
	a := r.Add(models.PrinterProfile{Name: "A"}, false)
	b := r.Add(models.PrinterProfile{Name: "B"}, false)

	r.SetActiveID(a.ID)
	if !r.Remove(a.ID) {
		t.Fatal("Remove returned false")
	}
	if r.ActiveID() != b.ID {
		t.Errorf("active = %q, want %q", r.ActiveID(), b.ID)
	}
}

func TestRoutingResolutionOrder(t *testing.T) {
	r := newTestRegistry()
	p1 := r.Add(models.PrinterProfile{
		Name:        "Kitchen",
		Assignments: []models.Assignment{{Channel: "Zomato", Type: models.PrintTypeKOT}},
	}, false)
	p2 := r.Add(models.PrinterProfile{
		Name:        "Counter",
		Assignments: []models.Assignment{{Channel: models.ChannelAll, Type: models.PrintTypeAll}},
	}, true)

	tests := []struct {
		name    string
		channel string
		ptype   models.PrintType
		wantID  string
	}{
		{"exact channel+type", "Zomato", models.PrintTypeKOT, p1.ID},
		{"exact channel, other type falls to wildcard", "Zomato", models.PrintTypeBill, p2.ID},
		{"unknown channel falls to wildcard", "Swiggy", models.PrintTypeBill, p2.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.GetForChannelAndType(tt.channel, tt.ptype)
			if got == nil || got.ID != tt.wantID {
				t.Errorf("resolved %v, want id %q", got, tt.wantID)
			}
		})
	}
}

func TestRoutingFallsBackToDefaultThenFirst(t *testing.T) {
	r := newTestRegistry()

	if got := r.GetForChannelAndType("Zomato", models.PrintTypeKOT); got != nil {
		t.Fatalf("empty registry should resolve to nil, got %v", got)
	}

	first := r.Add(models.PrinterProfile{Name: "First"}, false)
	if got := r.GetForChannelAndType("Zomato", models.PrintTypeKOT); got == nil || got.ID != first.ID {
		t.Error("with no assignments and no default, the first profile wins")
	}

	def := r.Add(models.PrinterProfile{Name: "Def"}, true)
	if got := r.GetForChannelAndType("Zomato", models.PrintTypeKOT); got == nil || got.ID != def.ID {
		t.Error("the default profile beats the first profile")
	}
}

func TestUpdateUnknownID(t *testing.T) {
	r := newTestRegistry()
	if got := r.Update("missing", func(p *models.PrinterProfile) {}); got != nil {
		t.Errorf("Update(missing) = %v, want nil", got)
	}
	if r.Remove("missing") {
		t.Error("Remove(missing) = true, want false")
	}
}

func TestRecordSuccessRefreshesExisting(t *testing.T) {
	r := newTestRegistry()
	p := r.Add(models.PrinterProfile{Name: "Front Counter", DeviceID: "AA:BB", DeviceName: "RPP02N"}, true)

	r.RecordSuccess("AA:BB", "RPP02N")

	got := r.Get(p.ID)
	if got.LastConnected.IsZero() {
		t.Error("LastConnected not updated")
	}
	if r.ActiveID() != p.ID {
		t.Error("successful printer should become active")
	}
	if len(r.List()) != 1 {
		t.Error("no duplicate profile should be created")
	}
}

func TestRecordSuccessCreatesProfileForUnknownDevice(t *testing.T) {
	r := newTestRegistry()
	r.RecordSuccess("AA:BB", "RPP02N")

	profiles := r.List()
	if len(profiles) != 1 {
		t.Fatalf("profiles = %d, want 1", len(profiles))
	}
	if !profiles[0].IsDefault {
		t.Error("first profile should be default")
	}
}

func TestHintAndWidthRoundTrip(t *testing.T) {
	r := newTestRegistry()

	if r.LastConnectedHint() != nil {
		t.Error("expected no hint initially")
	}
	r.SetLastConnectedHint(models.LastConnectedPrinter{ID: "AA:BB", Name: "RPP02N"})
	hint := r.LastConnectedHint()
	if hint == nil || hint.Name != "RPP02N" {
		t.Errorf("hint = %v", hint)
	}

	if r.Width() != DefaultWidth {
		t.Errorf("Width = %d, want default %d", r.Width(), DefaultWidth)
	}
	r.SetWidth(32)
	if r.Width() != 32 {
		t.Errorf("Width = %d, want 32", r.Width())
	}
}

// failingKV errors on every write; reads come up empty.
type failingKV struct{}

func (failingKV) Get(string) (string, bool) { return "", false }
func (failingKV) Set(string, string) error  { return errors.New("quota exceeded") }
func (failingKV) Delete(string) error       { return errors.New("quota exceeded") }

var _ ports.KVStore = failingKV{}

func TestStorageFailuresDegrade(t *testing.T) {
	r := New(failingKV{}, nopLogger{})

	// None of these may panic or error out; they degrade to empty reads.
	p := r.Add(models.PrinterProfile{Name: "A"}, true)
	if p == nil {
		t.Fatal("Add should still return the profile")
	}
	if got := r.List(); len(got) != 0 {
		t.Error("reads against a broken store degrade to empty")
	}
	if got := r.GetForChannelAndType("Zomato", models.PrintTypeKOT); got != nil {
		t.Error("routing against a broken store degrades to nil")
	}
	r.RecordSuccess("AA:BB", "X")
	r.SetWidth(48)
	r.SetLastConnectedHint(models.LastConnectedPrinter{ID: "x"})
}
