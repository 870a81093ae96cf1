package ports

import (
	"errors"

	"github.com/syed-hamad/posprint/internal/domain/models"
)

// ErrPickCancelled is returned by pickers when the user declines to choose.
var ErrPickCancelled = errors.New("ports: selection cancelled by user")

// OrderStore loads order records by id.
type OrderStore interface {
	// GetOrder returns the order or (nil, nil) when no such order exists
	GetOrder(id string) (*models.Order, error)
}

// SellerStore exposes seller display info and per-receipt-type templates.
type SellerStore interface {
	SellerConfig() (*models.SellerConfig, error)

	// Template returns the custom template for a receipt type, or nil when
	// the seller has not configured one
	Template(t models.PrintType) (*models.ReceiptTemplate, error)
}

// Renderer turns an order into printer commands and a fallback HTML
// document for the same logical receipt. width is characters per line.
type Renderer interface {
	Render(t models.PrintType, order *models.Order, seller *models.SellerConfig, tmpl *models.ReceiptTemplate, width int) (*models.Receipt, error)
}

// Severity levels for user-facing notifications.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityError
)

// Notifier is the fire-and-forget user-facing status sink.
type Notifier interface {
	Notify(message string, severity Severity)
}

// FallbackPrinter presents an HTML receipt through the host's own printing
// facility. It resolves once the view has been presented, not once the user
// finishes printing.
type FallbackPrinter interface {
	PrintHTML(html string, autoPrint bool) error
}

// Device is a discovered printer candidate offered to a DevicePicker.
type Device struct {
	ID   string
	Name string
}

// DevicePicker is the user-interaction point for choosing a device during
// a fresh pairing. Implementations return ErrPickCancelled (wrapped or
// direct) when the user declines.
type DevicePicker interface {
	Pick(devices []Device) (Device, error)
}

// SizePicker is the user-interaction point for choosing paper width in
// characters per line. current is the stored preference.
type SizePicker interface {
	Pick(current int) (int, error)
}
