// Package render is the default receipt renderer: the same logical receipt
// is laid out once as monospace lines, then emitted both as an ESC/POS
// command stream for the printer path and as an HTML document for the
// browser fallback.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/syed-hamad/posprint/internal/domain/models"
)

// Renderer implements ports.Renderer.
type Renderer struct{}

func New() *Renderer {
	return &Renderer{}
}

// Render produces printer commands and fallback HTML for one receipt.
func (r *Renderer) Render(t models.PrintType, order *models.Order, seller *models.SellerConfig, tmpl *models.ReceiptTemplate, width int) (*models.Receipt, error) {
	if order == nil {
		return nil, fmt.Errorf("render: nil order")
	}
	if width <= 0 {
		width = 48
	}

	var title string
	switch t {
	case models.PrintTypeKOT:
		title = "KITCHEN ORDER TICKET"
	default:
		title = "BILL"
	}

	header := headerLines(title, order, seller, tmpl, width)
	body := bodyLines(t, order, tmpl, width)
	footer := footerLines(t, order, seller, tmpl, width)

	return &models.Receipt{
		Commands: toCommands(header, body, footer),
		HTML:     toHTML(title, header, body, footer),
	}, nil
}

func headerLines(title string, order *models.Order, seller *models.SellerConfig, tmpl *models.ReceiptTemplate, width int) []string {
	var lines []string
	if seller != nil && seller.Name != "" {
		lines = append(lines, seller.Name)
		if seller.Address != "" {
			lines = append(lines, seller.Address)
		}
		if seller.Phone != "" {
			lines = append(lines, "Ph: "+seller.Phone)
		}
	}
	if tmpl != nil {
		lines = append(lines, tmpl.HeaderLines...)
	}
	lines = append(lines, title)
	lines = append(lines, divider(width))

	when := order.CreatedAt
	if when.IsZero() {
		when = time.Now()
	}
	lines = append(lines, columns("Order: "+order.ID, when.Format("02/01/2006 15:04"), width))
	if order.Table != "" {
		lines = append(lines, "Table: "+order.Table)
	}
	if order.Channel != "" && order.Channel != models.ChannelDefault {
		lines = append(lines, "Channel: "+order.Channel)
	}
	lines = append(lines, divider(width))
	return lines
}

func bodyLines(t models.PrintType, order *models.Order, tmpl *models.ReceiptTemplate, width int) []string {
	showPrices := t != models.PrintTypeKOT
	if tmpl != nil && t == models.PrintTypeKOT {
		showPrices = tmpl.ShowPrices
	}

	var lines []string
	for _, it := range order.Items {
		if t == models.PrintTypeKOT && it.Served {
			continue // the kitchen only needs what is still pending
		}
		left := fmt.Sprintf("%d x %s", it.Quantity, it.Title)
		if showPrices {
			amount := fmt.Sprintf("%.2f", it.Price*float64(it.Quantity))
			lines = append(lines, columns(left, amount, width))
		} else {
			lines = append(lines, left)
		}
	}
	return lines
}

func footerLines(t models.PrintType, order *models.Order, seller *models.SellerConfig, tmpl *models.ReceiptTemplate, width int) []string {
	var lines []string
	lines = append(lines, divider(width))
	if t == models.PrintTypeBill || t == models.PrintTypeAll {
		lines = append(lines, columns("TOTAL", fmt.Sprintf("%.2f", order.Total()), width))
		lines = append(lines, divider(width))
		if order.PaymentMode != "" {
			lines = append(lines, "Paid via "+order.PaymentMode)
		}
	}
	if tmpl != nil {
		lines = append(lines, tmpl.FooterLines...)
	}
	if seller != nil && seller.Footer != "" {
		lines = append(lines, seller.Footer)
	}
	return lines
}

func toCommands(header, body, footer []string) []byte {
	cmd := NewCommand().Init()

	cmd.Align(alignCenter).Bold(true)
	if len(header) > 0 {
		cmd.Line(header[0])
	}
	cmd.Bold(false)
	for _, l := range header[1:] {
		cmd.Line(l)
	}

	cmd.Align(alignLeft)
	for _, l := range body {
		cmd.Line(l)
	}
	for _, l := range footer {
		cmd.Line(l)
	}
	cmd.Feed(3).Cut()
	return cmd.Bytes()
}

func toHTML(title string, sections ...[]string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>")
	b.WriteString(htmlEscape(title))
	b.WriteString("</title><style>body{font-family:monospace;white-space:pre;margin:16px}</style></head><body>")
	for _, section := range sections {
		for _, l := range section {
			b.WriteString(htmlEscape(l))
			b.WriteString("\n")
		}
	}
	b.WriteString("</body></html>")
	return b.String()
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func divider(width int) string {
	return strings.Repeat("-", width)
}

// columns lays out left and right text on one line of the given width.
func columns(left, right string, width int) string {
	pad := width - len(left) - len(right)
	if pad < 1 {
		pad = 1
	}
	return left + strings.Repeat(" ", pad) + right
}
