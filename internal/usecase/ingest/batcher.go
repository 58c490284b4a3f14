package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"faultline/internal/errs"
)

// batcher coalesces accepted events into batches, flushing when either the
// size threshold or the interval elapses, whichever comes first. This is
// the micro-batching scheduler that amortizes DB round-trips: one flush
// runs the whole fingerprint/grouping/persist pass for its batch.
type batcher struct {
	queue    chan *processingEvent
	size     int
	interval time.Duration
	flush    func(context.Context, []*processingEvent)

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func newBatcher(size int, interval time.Duration, flush func(context.Context, []*processingEvent)) *batcher {
	return &batcher{
		queue:    make(chan *processingEvent, size*4),
		size:     size,
		interval: interval,
		flush:    flush,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (b *batcher) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	b.startOnce.Do(func() {
		go b.run(ctx)
	})
	return nil
}

// Enqueue blocks while the queue is full; acking the client after Enqueue
// returns is what makes the pipeline at-least-once.
func (b *batcher) Enqueue(ctx context.Context, pe *processingEvent) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	select {
	case b.queue <- pe:
		return nil
	case <-b.stop:
		return errors.New("ingest scheduler is stopped")
	case <-ctx.Done():
		return errs.Wrap(ctx.Err(), "enqueue event")
	}
}

// Stop drains the queue, flushes the tail batch, and waits for the loop to
// exit.
func (b *batcher) Stop() {
	b.stopOnce.Do(func() {
		close(b.stop)
	})
	<-b.done
}

func (b *batcher) run(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	buf := make([]*processingEvent, 0, b.size)
	emit := func() {
		if len(buf) == 0 {
			return
		}
		b.flush(ctx, buf)
		buf = make([]*processingEvent, 0, b.size)
	}

	for {
		select {
		case pe := <-b.queue:
			buf = append(buf, pe)
			if len(buf) >= b.size {
				emit()
			}
		case <-ticker.C:
			emit()
		case <-b.stop:
			b.drain(ctx, buf)
			return
		case <-ctx.Done():
			b.drain(ctx, buf)
			return
		}
	}
}

func (b *batcher) drain(ctx context.Context, buf []*processingEvent) {
	// The tail flush still runs when shutdown came from context
	// cancellation; accepted events are not dropped on the floor.
	ctx = context.WithoutCancel(ctx)
	for {
		select {
		case pe := <-b.queue:
			buf = append(buf, pe)
			if len(buf) >= b.size {
				b.flush(ctx, buf)
				buf = buf[:0]
			}
		default:
			if len(buf) > 0 {
				b.flush(ctx, buf)
			}
			return
		}
	}
}
