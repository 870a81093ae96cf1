package btprinter

import (
	"errors"
	"strings"
)

var (
	ErrUnsupported        = errors.New("btprinter: bluetooth is not available on this host")
	ErrCancelled          = errors.New("btprinter: device selection cancelled by user")
	ErrNoWritableEndpoint = errors.New("btprinter: no suitable service with a writable characteristic")
	ErrDeviceNotFound     = errors.New("btprinter: device not found during scan")
	ErrNotConnected       = errors.New("btprinter: not connected")
	ErrDisconnected       = errors.New("btprinter: device disconnected")
	ErrRetriesExhausted   = errors.New("btprinter: transmission failed after all retries")
)

// FailureClass is the closed taxonomy callers use to decide between
// reporting cancellation, an incompatible device, or falling back to
// another print path.
type FailureClass int

const (
	FailureOther FailureClass = iota
	FailureUserCancelled
	FailureIncompatibleDevice
	FailureConnection
)

func (c FailureClass) String() string {
	switch c {
	case FailureUserCancelled:
		return "user_cancelled"
	case FailureIncompatibleDevice:
		return "incompatible_device"
	case FailureConnection:
		return "connection_error"
	default:
		return "other_error"
	}
}

// Phrases seen from the various bluetooth stacks. Matching is substring,
// case-insensitive, after the sentinel checks fail.
var (
	cancelPhrases = []string{
		"cancel",
		"chooser",
		"user denied",
	}
	incompatiblePhrases = []string{
		"no suitable service",
		"unsupported device",
		"writable characteristic",
		"no services",
	}
	connectionPhrases = []string{
		"gatt",
		"disconnect",
		"connection",
		"network error",
		"device is out of range",
	}
)

// Classify maps any error from this package (or the underlying bluetooth
// stack) onto the failure taxonomy. It is pure and stateless: sentinels
// first, then the message heuristics.
func Classify(err error) FailureClass {
	if err == nil {
		return FailureOther
	}

	switch {
	case errors.Is(err, ErrCancelled):
		return FailureUserCancelled
	case errors.Is(err, ErrNoWritableEndpoint):
		return FailureIncompatibleDevice
	case errors.Is(err, ErrDisconnected),
		errors.Is(err, ErrNotConnected),
		errors.Is(err, ErrDeviceNotFound),
		errors.Is(err, ErrRetriesExhausted):
		return FailureConnection
	}

	msg := strings.ToLower(err.Error())
	for _, p := range cancelPhrases {
		if strings.Contains(msg, p) {
			return FailureUserCancelled
		}
	}
	for _, p := range incompatiblePhrases {
		if strings.Contains(msg, p) {
			return FailureIncompatibleDevice
		}
	}
	for _, p := range connectionPhrases {
		if strings.Contains(msg, p) {
			return FailureConnection
		}
	}
	return FailureOther
}
