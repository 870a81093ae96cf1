// Package browser implements the browser-print fallback: the rendered HTML
// receipt is written to a temporary file and handed to the platform opener,
// optionally with a script that triggers the print dialog on load.
package browser

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/syed-hamad/posprint/internal/domain/ports"
)

const autoPrintScript = "<script>window.addEventListener('load',function(){window.print();});</script>"

// Printer implements ports.FallbackPrinter.
type Printer struct {
	log ports.Logger

	// open is swappable for tests; defaults to the platform opener.
	open func(path string) error
}

func New(log ports.Logger) *Printer {
	return &Printer{log: log, open: openWithSystem}
}

// PrintHTML writes the document to a temp file and opens it. With autoPrint
// the print dialog is requested as soon as the page loads. The method
// resolves once the opener has been invoked, not once printing finishes.
func (p *Printer) PrintHTML(html string, autoPrint bool) error {
	if autoPrint {
		if i := strings.Index(html, "</body>"); i >= 0 {
			html = html[:i] + autoPrintScript + html[i:]
		} else {
			html += autoPrintScript
		}
	}

	f, err := os.CreateTemp("", "receipt-*.html")
	if err != nil {
		return fmt.Errorf("browser print: temp file: %w", err)
	}
	if _, err := f.WriteString(html); err != nil {
		f.Close()
		return fmt.Errorf("browser print: write: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("browser print: close: %w", err)
	}

	if p.log != nil {
		p.log.Info("browser print: opening %s (autoPrint=%v)", f.Name(), autoPrint)
	}
	if err := p.open(f.Name()); err != nil {
		return fmt.Errorf("browser print: open: %w", err)
	}
	return nil
}

func openWithSystem(path string) error {
	switch runtime.GOOS {
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", path).Start()
	case "darwin":
		return exec.Command("open", path).Start()
	default:
		return exec.Command("xdg-open", path).Start()
	}
}
