// Package btprinter provides the low-level link to Bluetooth (and wired
// serial) thermal printers: device discovery, session negotiation down to a
// writable characteristic, chunked retrying transmission, and a closed
// error taxonomy for callers that must decide between retry, fallback and
// abort.
//
// Key features:
//   - Transport abstraction with BLE (tinygo.org/x/bluetooth) and serial
//     (go.bug.st/serial) implementations
//   - Writable-endpoint probing across all exposed GATT services
//   - Chunked sends with a conservative chunk-size cap, inter-chunk delays
//     and whole-buffer retry with linear backoff
//   - Pure error classification (Classify) for routing failures
//
// Example:
//
//	tr := btprinter.NewBLETransport(nil)
//	devs, err := tr.Scan(ctx, "RPP02N", 5*time.Second)
//	if err != nil {
//	    return err
//	}
//	sess, err := tr.Open(ctx, devs[0])
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//
//	tx := btprinter.NewTransmitter()
//	if err := tx.Send(ctx, sess.Endpoint(), commands); err != nil {
//	    switch btprinter.Classify(err) {
//	    // ...
//	    }
//	}
//
// The package is UI-free: deciding which device to pair with belongs to the
// caller, which receives scan results and picks one.
package btprinter
