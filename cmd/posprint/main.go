package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/syed-hamad/posprint/internal/domain/models"
	"github.com/syed-hamad/posprint/internal/domain/ports"
	"github.com/syed-hamad/posprint/internal/infrastructure/browser"
	"github.com/syed-hamad/posprint/internal/infrastructure/logger"
	"github.com/syed-hamad/posprint/internal/infrastructure/storage"
	"github.com/syed-hamad/posprint/internal/render"
	"github.com/syed-hamad/posprint/internal/service/connection"
	"github.com/syed-hamad/posprint/internal/service/printing"
	"github.com/syed-hamad/posprint/internal/service/registry"
	"github.com/syed-hamad/posprint/pkg/btprinter"
)

const usage = `Usage: posprint <command> [flags]

Commands:
  list                     show registered printers
  add                      register a printer profile
  remove -id <id>          remove a printer profile
  set-default -id <id>     mark a profile as the default printer
  width -cols <n>          set paper width in characters per line
  connect                  scan, pick a printer and connect to it
  print                    print a demo order (KOT or bill)

Run 'posprint <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	log := logger.NewStdLogger("posprint: ")
	store := storage.NewFileKVStore(configPath(), log)
	reg := registry.New(store, log)

	in := bufio.NewReader(os.Stdin)
	conn := connection.New(
		btprinter.NewBLETransport(func(msg string) { log.Debug("%s", msg) }),
		&consolePicker{in: in},
		&consoleSizePicker{in: in},
		reg,
		log,
	)

	svc := printing.New(printing.Config{
		Orders:     storage.NewMemoryOrderStore(demoOrder()),
		Seller:     demoSeller(),
		Renderer:   render.New(),
		Notifier:   consoleNotifier{},
		Fallback:   browser.New(log),
		Registry:   reg,
		Connection: conn,
		Logger:     log,
	})

	var err error
	switch os.Args[1] {
	case "list":
		err = runList(reg)
	case "add":
		err = runAdd(reg, os.Args[2:])
	case "remove":
		err = runRemove(reg, os.Args[2:])
	case "set-default":
		err = runSetDefault(reg, os.Args[2:])
	case "width":
		err = runWidth(reg, os.Args[2:])
	case "connect":
		err = runConnect(conn)
	case "print":
		err = runPrint(svc, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "posprint: unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "posprint: %v\n", err)
		os.Exit(1)
	}
}

func configPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/posprint/config.json"
	}
	return "posprint.json"
}

func runList(reg *registry.Service) error {
	profiles := reg.List()
	if len(profiles) == 0 {
		fmt.Println("no printers registered")
		return nil
	}
	active := reg.ActiveID()
	for _, p := range profiles {
		marks := ""
		if p.IsDefault {
			marks += " [default]"
		}
		if p.ID == active {
			marks += " [active]"
		}
		fmt.Printf("%s  %s (%s, device %q)%s\n", p.ID, p.Name, p.Transport, p.DeviceName, marks)
		for _, a := range p.Assignments {
			fmt.Printf("    -> %s / %s\n", a.Channel, a.Type)
		}
	}
	return nil
}

func runAdd(reg *registry.Service, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	name := fs.String("name", "", "display name of the printer")
	device := fs.String("device", "", "advertised device name (BLE local name)")
	id := fs.String("id", "", "device address (BLE MAC), optional")
	serialPort := fs.String("port", "", "serial port path; makes this a wired profile")
	baud := fs.Int("baud", 9600, "serial baud rate")
	channel := fs.String("channel", models.ChannelAll, "sales channel to route from")
	printType := fs.String("type", "all", "receipt type to route: kot, bill or all")
	asDefault := fs.Bool("default", false, "set as the default printer")
	fs.Parse(args)

	if *name == "" {
		return fmt.Errorf("add: -name is required")
	}
	t, err := parsePrintType(*printType)
	if err != nil {
		return err
	}

	profile := models.PrinterProfile{
		Name:        *name,
		DeviceID:    *id,
		DeviceName:  *device,
		Transport:   models.TransportBLE,
		Assignments: []models.Assignment{{Channel: *channel, Type: t}},
	}
	if *serialPort != "" {
		profile.Transport = models.TransportSerial
		profile.PortName = *serialPort
		profile.BaudRate = *baud
	}

	added := reg.Add(profile, *asDefault)
	fmt.Printf("registered %s (%s)\n", added.Name, added.ID)
	return nil
}

func runRemove(reg *registry.Service, args []string) error {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	id := fs.String("id", "", "profile id to remove")
	fs.Parse(args)
	if *id == "" {
		return fmt.Errorf("remove: -id is required")
	}
	if !reg.Remove(*id) {
		return fmt.Errorf("remove: no profile %q", *id)
	}
	fmt.Println("removed")
	return nil
}

func runSetDefault(reg *registry.Service, args []string) error {
	fs := flag.NewFlagSet("set-default", flag.ExitOnError)
	id := fs.String("id", "", "profile id to make the default")
	fs.Parse(args)
	if *id == "" {
		return fmt.Errorf("set-default: -id is required")
	}
	p := reg.Update(*id, func(p *models.PrinterProfile) { p.IsDefault = true })
	if p == nil {
		return fmt.Errorf("set-default: no profile %q", *id)
	}
	fmt.Printf("default printer is now %s\n", p.Name)
	return nil
}

func runWidth(reg *registry.Service, args []string) error {
	fs := flag.NewFlagSet("width", flag.ExitOnError)
	cols := fs.Int("cols", registry.DefaultWidth, "characters per line (32, 48 or 64)")
	fs.Parse(args)
	reg.SetWidth(*cols)
	fmt.Printf("paper width set to %d columns\n", *cols)
	return nil
}

func runConnect(conn *connection.Service) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		return err
	}
	if dev, ok := conn.CurrentDevice(); ok {
		fmt.Printf("connected to %s (%s)\n", dev.Name, dev.ID)
	}
	return nil
}

func runPrint(svc *printing.Service, args []string) error {
	fs := flag.NewFlagSet("print", flag.ExitOnError)
	printType := fs.String("type", "bill", "what to print: kot or bill")
	channel := fs.String("channel", "", "sales channel override for routing")
	payment := fs.String("payment", "", "payment mode shown on the bill")
	auto := fs.Bool("auto", false, "open the browser print dialog on fallback")
	order := fs.String("order", "demo", "order id to print")
	fs.Parse(args)

	ctx := context.Background()
	var ok bool
	switch strings.ToLower(*printType) {
	case "kot":
		ok = svc.PrintKOT(ctx, *order, printing.KOTOptions{Channel: *channel})
	case "bill":
		ok = svc.PrintBill(ctx, *order, printing.BillOptions{
			PaymentMode: *payment,
			AutoPrint:   *auto,
			Channel:     *channel,
		})
	default:
		return fmt.Errorf("print: unknown type %q", *printType)
	}
	if !ok {
		return fmt.Errorf("print: attempt failed")
	}
	return nil
}

func parsePrintType(s string) (models.PrintType, error) {
	switch strings.ToLower(s) {
	case "kot":
		return models.PrintTypeKOT, nil
	case "bill":
		return models.PrintTypeBill, nil
	case "all", "":
		return models.PrintTypeAll, nil
	}
	return "", fmt.Errorf("unknown receipt type %q (want kot, bill or all)", s)
}

// consolePicker lets the operator choose a device from a numbered list.
type consolePicker struct {
	in *bufio.Reader
}

func (p *consolePicker) Pick(devices []ports.Device) (ports.Device, error) {
	fmt.Println("Discovered printers:")
	for i, d := range devices {
		fmt.Printf("  %d) %s (%s)\n", i+1, d.Name, d.ID)
	}
	fmt.Print("Choose a printer (empty to cancel): ")
	line, err := p.in.ReadString('\n')
	if err != nil {
		return ports.Device{}, ports.ErrPickCancelled
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return ports.Device{}, ports.ErrPickCancelled
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(devices) {
		return ports.Device{}, fmt.Errorf("invalid choice %q", line)
	}
	return devices[n-1], nil
}

// consoleSizePicker asks for the paper width, keeping the current value on
// empty input.
type consoleSizePicker struct {
	in *bufio.Reader
}

func (p *consoleSizePicker) Pick(current int) (int, error) {
	fmt.Printf("Paper width in columns [%d]: ", current)
	line, err := p.in.ReadString('\n')
	if err != nil {
		return current, nil
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return current, nil
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return current, fmt.Errorf("invalid width %q", line)
	}
	return n, nil
}

type consoleNotifier struct{}

func (consoleNotifier) Notify(message string, severity ports.Severity) {
	switch severity {
	case ports.SeverityError:
		fmt.Fprintln(os.Stderr, "!! "+message)
	case ports.SeveritySuccess:
		fmt.Println("OK " + message)
	default:
		fmt.Println(".. " + message)
	}
}

func demoOrder() *models.Order {
	return &models.Order{
		ID:      "demo",
		Channel: "Front Counter",
		Table:   "T1",
		Items: []models.OrderItem{
			{Title: "Paneer Tikka", Price: 240, Quantity: 1},
			{Title: "Butter Naan", Price: 45, Quantity: 2},
			{Title: "Masala Chai", Price: 30, Quantity: 2},
		},
		CreatedAt: time.Now(),
	}
}

func demoSeller() *storage.StaticSellerStore {
	return &storage.StaticSellerStore{
		Seller: models.SellerConfig{
			Name:    "Demo Kitchen",
			Address: "12 Market Road",
			Phone:   "+91 98000 00000",
			Footer:  "Thank you, visit again!",
		},
	}
}
