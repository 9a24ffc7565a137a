package persistence

import (
	"context"
	"fmt"

	"github.com/jenkinstray/jenkinstray/internal/bus"
	"github.com/jenkinstray/jenkinstray/internal/connectors"
	"github.com/jenkinstray/jenkinstray/internal/history"
)

// WriteQueue serializes persistence writes from async bus events.
type WriteQueue interface {
	Enqueue(name string, fn func(context.Context) error)
}

type JobResultWriter interface {
	Insert(ctx context.Context, e history.Entry) error
	Prune(ctx context.Context, keep int) error
}

type JobResultLister interface {
	ListRecent(ctx context.Context, limit int) ([]history.Entry, error)
}

// StartProjection persists every job result published on the bus until ctx is done.
// Rows beyond keep are pruned after each insert.
func StartProjection(ctx context.Context, b bus.MessageBus, queue WriteQueue, repo JobResultWriter, keep int) {
	sub := b.Subscribe(connectors.TopicJobResult)

	go func() {
		defer b.Unsubscribe(sub, connectors.TopicJobResult)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				entry, ok := raw.(history.Entry)
				if !ok {
					continue
				}
				queue.Enqueue("insert_job_result", func(writeCtx context.Context) error {
					if err := repo.Insert(writeCtx, entry); err != nil {
						return err
					}

					return repo.Prune(writeCtx, keep)
				})
			}
		}
	}()
}

// LoadHistory fills entries with the most recent stored results.
func LoadHistory(ctx context.Context, entries *history.Collection, repo JobResultLister) error {
	items, err := repo.ListRecent(ctx, entries.Limit())
	if err != nil {
		return fmt.Errorf("load job results from db: %w", err)
	}
	entries.Load(items)

	return nil
}
