package btprinter

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultChunkSize is the conservative per-write cap. Endpoints may
	// report a larger maximum; it is never trusted beyond this value,
	// because cheap thermal peripherals drop bursts near their real limit.
	DefaultChunkSize = 244

	// DefaultInterChunkDelay gives slow peripherals time to drain their
	// internal buffer between writes.
	DefaultInterChunkDelay = 30 * time.Millisecond

	// DefaultMaxRetries is the number of whole-buffer attempts.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the base backoff; attempt n waits n*delay.
	DefaultRetryDelay = 500 * time.Millisecond
)

// Transmitter delivers arbitrary-length byte buffers over a negotiated
// endpoint. On any write failure the entire buffer is retried from the
// start: duplicate output is preferred over a half-printed receipt.
type Transmitter struct {
	ChunkSize       int
	InterChunkDelay time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	Logger          func(string)
}

// NewTransmitter returns a Transmitter with the default tuning.
func NewTransmitter() *Transmitter {
	return &Transmitter{
		ChunkSize:       DefaultChunkSize,
		InterChunkDelay: DefaultInterChunkDelay,
		MaxRetries:      DefaultMaxRetries,
		RetryDelay:      DefaultRetryDelay,
	}
}

// Send writes data to ep in ordered chunks, retrying the whole buffer with
// linear backoff until it succeeds or MaxRetries attempts are exhausted.
func (t *Transmitter) Send(ctx context.Context, ep Endpoint, data []byte) error {
	if ep == nil {
		return ErrNotConnected
	}
	if len(data) == 0 {
		return nil
	}

	chunk := t.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	if m := ep.MaxChunk(); m > 0 && m < chunk {
		chunk = m
	}

	retries := t.MaxRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := t.sendOnce(ctx, ep, data, chunk)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return err
		}
		t.logf("send attempt %d/%d failed: %v", attempt, retries, err)

		if attempt < retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * t.RetryDelay):
			}
		}
	}
	return fmt.Errorf("%w (%d attempts): %v", ErrRetriesExhausted, retries, lastErr)
}

func (t *Transmitter) sendOnce(ctx context.Context, ep Endpoint, data []byte, chunk int) error {
	total := (len(data) + chunk - 1) / chunk
	for i := 0; i < len(data); i += chunk {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := i + chunk
		if end > len(data) {
			end = len(data)
		}
		part := data[i:end]

		var (
			n   int
			err error
		)
		if ep.SupportsWrite() {
			n, err = ep.Write(part)
		} else {
			n, err = ep.WriteWithoutResponse(part)
		}
		if err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i/chunk+1, total, err)
		}
		if n != len(part) {
			return fmt.Errorf("chunk %d/%d: short write (%d of %d bytes)", i/chunk+1, total, n, len(part))
		}

		if end < len(data) && t.InterChunkDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.InterChunkDelay):
			}
		}
	}
	return nil
}

func (t *Transmitter) logf(format string, args ...interface{}) {
	if t.Logger != nil {
		t.Logger(fmt.Sprintf(format, args...))
	}
}
