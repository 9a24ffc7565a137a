package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jenkinstray/jenkinstray/internal/backoff"
)

const (
	defaultWriterCapacity    = 256
	defaultWriterMaxAttempts = 3
)

type writeCmd struct {
	name string
	fn   func(context.Context) error
}

type WriterQueue struct {
	logger      *slog.Logger
	queue       chan writeCmd
	retry       backoff.Backoff
	maxAttempts int
	pending     sync.WaitGroup
}

func NewWriterQueue(logger *slog.Logger, capacity int) *WriterQueue {
	if capacity <= 0 {
		capacity = defaultWriterCapacity
	}
	if logger == nil {
		logger = slog.Default().With("component", "persistence")
	}

	return &WriterQueue{
		logger:      logger,
		queue:       make(chan writeCmd, capacity),
		retry:       backoff.Func(func(attempt int) time.Duration { return time.Duration(attempt) * 300 * time.Millisecond }),
		maxAttempts: defaultWriterMaxAttempts,
	}
}

func (w *WriterQueue) Enqueue(name string, fn func(context.Context) error) {
	cmd := writeCmd{name: name, fn: fn}
	w.pending.Add(1)
	select {
	case w.queue <- cmd:
	default:
		go func() { w.queue <- cmd }()
	}
}

func (w *WriterQueue) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case cmd := <-w.queue:
				w.runWithRetry(ctx, cmd)
			}
		}
	}()
}

// Flush waits until every enqueued write has finished or ctx is done.
func (w *WriterQueue) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *WriterQueue) runWithRetry(ctx context.Context, cmd writeCmd) {
	defer w.pending.Done()
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if err := cmd.fn(ctx); err != nil {
			w.logger.Error("db write failed", "cmd", cmd.name, "attempt", attempt, "error", err)
			if attempt == w.maxAttempts {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.retry.Next(attempt)):
			}
			continue
		}
		return
	}
}
