// Package registry keeps the durable list of known printers together with
// their default/active flags and channel routing rules. Storage problems
// are logged and degraded, never surfaced: printer configuration is a
// convenience and must not break printing itself.
package registry

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/syed-hamad/posprint/internal/domain/models"
	"github.com/syed-hamad/posprint/internal/domain/ports"
)

// Persistence keys.
const (
	keyProfiles      = "printer_profiles"
	keyActiveID      = "active_printer_id"
	keyLastConnected = "last_connected_printer"
	keyPrinterWidth  = "printer_width"
)

// DefaultWidth is 48 columns (3 inch paper).
const DefaultWidth = 48

// Service is the printer registry.
type Service struct {
	mu    sync.Mutex
	store ports.KVStore
	log   ports.Logger
}

// New creates a registry over the given store.
func New(store ports.KVStore, log ports.Logger) *Service {
	return &Service{store: store, log: log}
}

func (s *Service) loadLocked() []*models.PrinterProfile {
	raw, ok := s.store.Get(keyProfiles)
	if !ok || raw == "" {
		return nil
	}
	var profiles []*models.PrinterProfile
	if err := json.Unmarshal([]byte(raw), &profiles); err != nil {
		s.log.Warn("registry: corrupt profile list, treating as empty: %v", err)
		return nil
	}
	return profiles
}

func (s *Service) saveLocked(profiles []*models.PrinterProfile) {
	data, err := json.Marshal(profiles)
	if err != nil {
		s.log.Error("registry: marshal profiles: %v", err)
		return
	}
	if err := s.store.Set(keyProfiles, string(data)); err != nil {
		s.log.Error("registry: persist profiles: %v", err)
	}
}

// List returns all saved profiles.
func (s *Service) List() []*models.PrinterProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Add saves a profile, assigning an id if absent. With setAsDefault the
// default flag is moved to it; the first profile ever added also becomes
// the active one regardless.
func (s *Service) Add(profile models.PrinterProfile, setAsDefault bool) *models.PrinterProfile {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles := s.loadLocked()

	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if profile.DateAdded.IsZero() {
		profile.DateAdded = time.Now()
	}
	if profile.IsDefault {
		setAsDefault = true
	}
	if setAsDefault {
		for _, p := range profiles {
			p.IsDefault = false
		}
		profile.IsDefault = true
	}

	first := len(profiles) == 0
	profiles = append(profiles, &profile)
	s.saveLocked(profiles)

	if first {
		s.setActiveIDLocked(profile.ID)
	}
	return &profile
}

// Update merges fields onto the stored profile. A nil return means the id
// is unknown.
func (s *Service) Update(id string, fields func(*models.PrinterProfile)) *models.PrinterProfile {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles := s.loadLocked()
	var target *models.PrinterProfile
	for _, p := range profiles {
		if p.ID == id {
			target = p
			break
		}
	}
	if target == nil {
		return nil
	}

	wasDefault := target.IsDefault
	fields(target)
	if target.IsDefault && !wasDefault {
		for _, p := range profiles {
			if p.ID != id {
				p.IsDefault = false
			}
		}
	}
	s.saveLocked(profiles)
	out := *target
	return &out
}

// Remove deletes a profile. Removing the default promotes the first
// remaining profile to default; removing the active profile moves the
// active marker to another profile, or clears it when none remain.
func (s *Service) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles := s.loadLocked()
	idx := -1
	for i, p := range profiles {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	removed := profiles[idx]
	profiles = append(profiles[:idx], profiles[idx+1:]...)

	if removed.IsDefault && len(profiles) > 0 {
		profiles[0].IsDefault = true
	}
	s.saveLocked(profiles)

	if active, _ := s.store.Get(keyActiveID); active == id {
		if len(profiles) > 0 {
			s.setActiveIDLocked(profiles[0].ID)
		} else {
			if err := s.store.Delete(keyActiveID); err != nil {
				s.log.Warn("registry: clear active id: %v", err)
			}
		}
	}
	return true
}

// GetForChannelAndType resolves which profile should print the given
// receipt type on the given channel:
//
//  1. a profile assigned to exactly this channel (type match or ALL)
//  2. a profile assigned to the "All Channels" wildcard
//  3. the default profile
//  4. the first profile
//  5. nil when no profiles exist
func (s *Service) GetForChannelAndType(channel string, t models.PrintType) *models.PrinterProfile {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles := s.loadLocked()
	if len(profiles) == 0 {
		return nil
	}

	for _, p := range profiles {
		if p.AssignedTo(channel, t) {
			return p
		}
	}
	for _, p := range profiles {
		if p.AssignedTo(models.ChannelAll, t) {
			return p
		}
	}
	for _, p := range profiles {
		if p.IsDefault {
			return p
		}
	}
	return profiles[0]
}

// Get returns the profile with the given id, or nil.
func (s *Service) Get(id string) *models.PrinterProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.loadLocked() {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// ActiveID returns the most recently used profile id, or "".
func (s *Service) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, _ := s.store.Get(keyActiveID)
	return id
}

// SetActiveID records the most recently used profile.
func (s *Service) SetActiveID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setActiveIDLocked(id)
}

func (s *Service) setActiveIDLocked(id string) {
	if err := s.store.Set(keyActiveID, id); err != nil {
		s.log.Warn("registry: persist active id: %v", err)
	}
}

// RecordSuccess refreshes (or creates) the profile for a device that just
// printed successfully: LastConnected is bumped and the profile becomes
// active.
func (s *Service) RecordSuccess(deviceID, deviceName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles := s.loadLocked()
	now := time.Now()
	for _, p := range profiles {
		if p.DeviceID == deviceID || (deviceName != "" && p.DeviceName == deviceName) {
			p.LastConnected = now
			s.saveLocked(profiles)
			s.setActiveIDLocked(p.ID)
			return
		}
	}

	p := &models.PrinterProfile{
		ID:            uuid.NewString(),
		Name:          deviceName,
		DeviceID:      deviceID,
		DeviceName:    deviceName,
		DateAdded:     now,
		LastConnected: now,
	}
	if len(profiles) == 0 {
		p.IsDefault = true
	}
	profiles = append(profiles, p)
	s.saveLocked(profiles)
	s.setActiveIDLocked(p.ID)
}

// LastConnectedHint returns the silent-reconnect discovery hint, or nil.
func (s *Service) LastConnectedHint() *models.LastConnectedPrinter {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.store.Get(keyLastConnected)
	if !ok || raw == "" {
		return nil
	}
	var hint models.LastConnectedPrinter
	if err := json.Unmarshal([]byte(raw), &hint); err != nil {
		s.log.Warn("registry: corrupt reconnect hint: %v", err)
		return nil
	}
	return &hint
}

// SetLastConnectedHint persists the silent-reconnect discovery hint.
func (s *Service) SetLastConnectedHint(hint models.LastConnectedPrinter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(hint)
	if err != nil {
		s.log.Warn("registry: marshal reconnect hint: %v", err)
		return
	}
	if err := s.store.Set(keyLastConnected, string(data)); err != nil {
		s.log.Warn("registry: persist reconnect hint: %v", err)
	}
}

// Width returns the stored paper width preference in characters per line.
func (s *Service) Width() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.store.Get(keyPrinterWidth)
	if !ok {
		return DefaultWidth
	}
	var w int
	if err := json.Unmarshal([]byte(raw), &w); err != nil || w <= 0 {
		return DefaultWidth
	}
	return w
}

// SetWidth persists the paper width preference.
func (s *Service) SetWidth(w int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w <= 0 {
		w = DefaultWidth
	}
	data, _ := json.Marshal(w)
	if err := s.store.Set(keyPrinterWidth, string(data)); err != nil {
		s.log.Warn("registry: persist width: %v", err)
	}
}
