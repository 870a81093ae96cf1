// Package printing is the print orchestrator: it ties order data, printer
// routing, the connection manager and the browser fallback into the two
// user-facing flows, printing a kitchen ticket and printing a bill.
package printing

import (
	"context"
	"sync"
	"time"

	"github.com/syed-hamad/posprint/internal/domain/models"
	"github.com/syed-hamad/posprint/internal/domain/ports"
	"github.com/syed-hamad/posprint/internal/service/connection"
	"github.com/syed-hamad/posprint/internal/service/registry"
	"github.com/syed-hamad/posprint/pkg/btprinter"
)

// DefaultPrintTimeout bounds a single print attempt, including scanning,
// connecting and transmission.
const DefaultPrintTimeout = 45 * time.Second

// KOTOptions configures a kitchen ticket print.
type KOTOptions struct {
	// Channel overrides the order's sales channel for printer routing.
	Channel string
}

// BillOptions configures a customer bill print.
type BillOptions struct {
	PaymentMode string
	// AutoPrint asks the browser fallback to open its print dialog
	// immediately instead of just showing the receipt page.
	AutoPrint bool
	Channel   string
}

// Config carries the orchestrator's collaborators.
type Config struct {
	Orders     ports.OrderStore
	Seller     ports.SellerStore
	Renderer   ports.Renderer
	Notifier   ports.Notifier
	Fallback   ports.FallbackPrinter
	Registry   *registry.Service
	Connection *connection.Service
	Logger     ports.Logger
}

// Service coordinates a print attempt end to end: order lookup, printer
// routing, connection, transmission and the browser fallback. A mutex
// serializes overlapping calls so two prints never interleave on the
// same printer link.
type Service struct {
	mu sync.Mutex

	orders   ports.OrderStore
	seller   ports.SellerStore
	renderer ports.Renderer
	notifier ports.Notifier
	fallback ports.FallbackPrinter
	registry *registry.Service
	conn     *connection.Service
	log      ports.Logger

	// Transmitter performs the chunked writes. Exposed so callers can
	// tune pacing for slow printers.
	Transmitter *btprinter.Transmitter

	// Timeout bounds a single print attempt. Zero means DefaultPrintTimeout.
	Timeout time.Duration
}

func New(cfg Config) *Service {
	return &Service{
		orders:      cfg.Orders,
		seller:      cfg.Seller,
		renderer:    cfg.Renderer,
		notifier:    cfg.Notifier,
		fallback:    cfg.Fallback,
		registry:    cfg.Registry,
		conn:        cfg.Connection,
		log:         cfg.Logger,
		Transmitter: btprinter.NewTransmitter(),
	}
}

// PrintKOT prints a kitchen order ticket. It reports whether the ticket
// reached the printer or the browser fallback.
func (s *Service) PrintKOT(ctx context.Context, orderID string, opts KOTOptions) bool {
	return s.printReceipt(ctx, models.PrintTypeKOT, orderID, opts.Channel, "", false)
}

// PrintBill prints a customer bill. It reports whether the bill reached
// the printer or the browser fallback.
func (s *Service) PrintBill(ctx context.Context, orderID string, opts BillOptions) bool {
	return s.printReceipt(ctx, models.PrintTypeBill, orderID, opts.Channel, opts.PaymentMode, opts.AutoPrint)
}

func (s *Service) printReceipt(ctx context.Context, t models.PrintType, orderID, channel, paymentMode string, autoPrint bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultPrintTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	order, err := s.orders.GetOrder(orderID)
	if err != nil {
		s.log.Error("printing: order %s lookup: %v", orderID, err)
		s.notifier.Notify("Could not load order", ports.SeverityError)
		return false
	}
	if order == nil {
		s.notifier.Notify("Order not found", ports.SeverityError)
		return false
	}
	if paymentMode != "" {
		order.PaymentMode = paymentMode
	}

	if channel == "" {
		channel = order.Channel
	}
	if channel == "" {
		channel = models.ChannelDefault
	}
	profile := s.registry.GetForChannelAndType(channel, t)

	wireless := s.conn.Supported() || (profile != nil && profile.Transport == models.TransportSerial)
	if wireless {
		err := s.printDirect(ctx, t, order, profile)
		if err == nil {
			s.notifier.Notify(successMessage(t), ports.SeveritySuccess)
			return true
		}
		class := btprinter.Classify(err)
		s.log.Warn("printing: direct print failed (%s): %v", class, err)
		if class == btprinter.FailureUserCancelled {
			s.notifier.Notify("Printing cancelled", ports.SeverityError)
			return false
		}
	}

	return s.printFallback(t, order, autoPrint)
}

// printDirect drives the printer link: connect, render, transmit.
func (s *Service) printDirect(ctx context.Context, t models.PrintType, order *models.Order, profile *models.PrinterProfile) error {
	s.notifier.Notify("Connecting to printer...", ports.SeverityInfo)
	if profile != nil {
		if err := s.conn.ConnectToProfile(ctx, profile); err != nil {
			return err
		}
	} else {
		if err := s.conn.EnsureConnected(ctx); err != nil {
			return err
		}
	}

	// Render after connecting so a width chosen during the connect
	// prompt takes effect on this very receipt.
	receipt, err := s.renderReceipt(t, order)
	if err != nil {
		return err
	}

	ep, err := s.conn.Endpoint()
	if err != nil {
		return err
	}

	s.notifier.Notify("Printing...", ports.SeverityInfo)
	if err := s.Transmitter.Send(ctx, ep, receipt.Commands); err != nil {
		return err
	}

	if dev, ok := s.conn.CurrentDevice(); ok {
		s.registry.RecordSuccess(dev.ID, dev.Name)
	}
	return nil
}

func (s *Service) printFallback(t models.PrintType, order *models.Order, autoPrint bool) bool {
	receipt, err := s.renderReceipt(t, order)
	if err != nil {
		s.log.Error("printing: render receipt: %v", err)
		s.notifier.Notify("Printing failed", ports.SeverityError)
		return false
	}
	if err := s.fallback.PrintHTML(receipt.HTML, autoPrint); err != nil {
		s.log.Error("printing: browser fallback: %v", err)
		s.notifier.Notify("Printing failed", ports.SeverityError)
		return false
	}
	s.notifier.Notify("Receipt opened in browser", ports.SeveritySuccess)
	return true
}

func (s *Service) renderReceipt(t models.PrintType, order *models.Order) (*models.Receipt, error) {
	var seller *models.SellerConfig
	var tmpl *models.ReceiptTemplate
	if s.seller != nil {
		var err error
		if seller, err = s.seller.SellerConfig(); err != nil {
			s.log.Warn("printing: seller config unavailable: %v", err)
			seller = nil
		}
		if tmpl, err = s.seller.Template(t); err != nil {
			s.log.Warn("printing: receipt template unavailable: %v", err)
			tmpl = nil
		}
	}
	return s.renderer.Render(t, order, seller, tmpl, s.conn.Width())
}

func successMessage(t models.PrintType) string {
	if t == models.PrintTypeKOT {
		return "KOT printed"
	}
	return "Bill printed"
}
