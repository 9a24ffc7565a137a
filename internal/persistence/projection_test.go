package persistence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jenkinstray/jenkinstray/internal/backoff"
	"github.com/jenkinstray/jenkinstray/internal/bus"
	"github.com/jenkinstray/jenkinstray/internal/config"
	"github.com/jenkinstray/jenkinstray/internal/connectors"
	"github.com/jenkinstray/jenkinstray/internal/history"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartProjection_PersistsPublishedResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := openTestDB(t)
	repo := NewJobResultRepo(db)
	queue := NewWriterQueue(quietLogger(), 8)
	queue.Start(ctx)

	b := bus.New(quietLogger())
	defer b.Close()
	StartProjection(ctx, b, queue, repo, 10)

	b.Publish(connectors.TopicJobResult, "ignored")
	b.Publish(connectors.TopicJobResult, history.NewEntry("web", 9, history.StatusSuccess, history.ResultSuccess, time.Now()))

	deadline := time.Now().Add(2 * time.Second)
	for {
		flushCtx, flushCancel := context.WithTimeout(ctx, time.Second)
		if err := queue.Flush(flushCtx); err != nil {
			flushCancel()
			t.Fatalf("flush: %v", err)
		}
		flushCancel()

		items, err := repo.ListRecent(ctx, 10)
		if err != nil {
			t.Fatalf("list recent: %v", err)
		}
		if len(items) == 1 {
			if items[0].BuildNumber != 9 {
				t.Fatalf("expected build 9, got %d", items[0].BuildNumber)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for projected write, got %d rows", len(items))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLoadHistory_FillsCollection(t *testing.T) {
	ctx := context.Background()
	repo := NewJobResultRepo(openTestDB(t))
	for i := 1; i <= 3; i++ {
		if err := repo.Insert(ctx, history.NewEntry("api", i, history.StatusSuccess, history.ResultSuccess, time.Unix(int64(i), 0))); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	entries := history.NewCollection(config.DefaultDisplayHistoryCount)
	if err := LoadHistory(ctx, entries, repo); err != nil {
		t.Fatalf("load history: %v", err)
	}
	if entries.Len() != 3 || entries.Items()[0].BuildNumber != 1 {
		t.Fatalf("unexpected loaded history %+v", entries.Items())
	}
}

func TestWriterQueue_RetriesFailedWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := NewWriterQueue(quietLogger(), 1)
	queue.retry = backoff.Constant(time.Millisecond)
	queue.Start(ctx)

	var (
		mu    sync.Mutex
		calls int
	)
	queue.Enqueue("flaky", func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return errors.New("busy")
		}
		return nil
	})

	flushCtx, flushCancel := context.WithTimeout(ctx, 2*time.Second)
	defer flushCancel()
	if err := queue.Flush(flushCtx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}
