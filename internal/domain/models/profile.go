package models

import "time"

// PrintType identifies which receipt kinds an assignment covers.
type PrintType string

const (
	PrintTypeKOT  PrintType = "KOT"
	PrintTypeBill PrintType = "BILL"
	PrintTypeAll  PrintType = "ALL"
)

// Transport kinds a printer profile can declare.
const (
	TransportBLE    = "ble"
	TransportSerial = "serial"
)

// Channel sentinels. ChannelAll is the routing wildcard, ChannelDefault is
// used for orders that carry no channel of their own.
const (
	ChannelAll     = "All Channels"
	ChannelDefault = "Default"
)

// Assignment routes one (channel, receipt type) combination to a profile.
type Assignment struct {
	Channel string    `json:"channel"`
	Type    PrintType `json:"printType"`
}

// Covers reports whether the assignment applies to the given receipt type.
func (a Assignment) Covers(t PrintType) bool {
	return a.Type == t || a.Type == PrintTypeAll
}

// PrinterProfile is a saved printer with its routing rules.
type PrinterProfile struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`

	// Transport is TransportBLE (default when empty) or TransportSerial.
	Transport string `json:"transport,omitempty"`
	PortName  string `json:"portName,omitempty"`
	BaudRate  int    `json:"baudRate,omitempty"`

	IsDefault   bool         `json:"isDefault"`
	Assignments []Assignment `json:"assignments,omitempty"`

	DateAdded     time.Time `json:"dateAdded"`
	LastConnected time.Time `json:"lastConnected"`
}

// AssignedTo reports whether the profile has an assignment for the given
// channel and receipt type. The wildcard channel is not consulted here;
// the registry applies it as a separate resolution step.
func (p *PrinterProfile) AssignedTo(channel string, t PrintType) bool {
	for _, a := range p.Assignments {
		if a.Channel == channel && a.Covers(t) {
			return true
		}
	}
	return false
}

// LastConnectedPrinter is the persisted discovery hint for silent
// reconnection. It need not match any registry entry.
type LastConnectedPrinter struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
