package fanout

import (
	"context"
	"sync"
)

var (
	ErrClosed = errf("outbox closed")
	ErrFull   = errf("outbox full")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error { return staticErr(s) }

// WriteFunc pushes one payload onto the wire.
type WriteFunc func(ctx context.Context, payload []byte) error

// Outbox is a Handle backed by a bounded queue drained by one writer
// goroutine, so payloads reach the wire in Send order and a slow peer never
// stalls the sender.
type Outbox struct {
	queue chan []byte
	done  chan struct{}
	once  sync.Once
	write WriteFunc
}

func NewOutbox(size int, write WriteFunc) *Outbox {
	if size <= 0 {
		size = 1
	}
	return &Outbox{queue: make(chan []byte, size), done: make(chan struct{}), write: write}
}

// Send enqueues payload. It fails with ErrFull when the peer has fallen too
// far behind and with ErrClosed after Close.
func (o *Outbox) Send(payload []byte) error {
	select {
	case <-o.done:
		return ErrClosed
	default:
	}
	select {
	case o.queue <- payload:
		return nil
	case <-o.done:
		return ErrClosed
	default:
		return ErrFull
	}
}

// Run drains the queue until ctx ends, Close is called or a write fails.
func (o *Outbox) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.done:
			return nil
		case payload := <-o.queue:
			if err := o.write(ctx, payload); err != nil {
				o.Close()
				return err
			}
		}
	}
}

// Flush writes whatever is still queued without blocking on new sends.
func (o *Outbox) Flush(ctx context.Context) error {
	for {
		select {
		case payload := <-o.queue:
			if err := o.write(ctx, payload); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (o *Outbox) Close() {
	o.once.Do(func() { close(o.done) })
}
