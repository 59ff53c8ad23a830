package realtime

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestHubDeliversPerTable(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bans, err := h.Subscribe(ctx, TableBans)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	profiles, _ := h.Subscribe(ctx, TableProfiles)

	if err := h.Publish(ctx, Change{Table: TableBans, Op: "insert", UserID: "u1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case c := <-bans:
		if c.UserID != "u1" || c.At.IsZero() {
			t.Fatalf("unexpected change %+v", c)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
	}
	select {
	case c := <-profiles:
		t.Fatalf("profiles subscriber got %+v", c)
	default:
	}
}

func TestHubUnsubscribesOnCancel(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := h.Subscribe(ctx, TableReports)
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if n := h.Subscribers(TableReports); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
}

func TestHubRejectsEmptyTable(t *testing.T) {
	if _, err := NewHub().Subscribe(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty table")
	}
}

func TestWatchRefetchesEveryChange(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, h, TableProfiles, func(context.Context, Change) error {
			if calls.Add(1) == 1 {
				return errors.New("first refetch fails")
			}
			return nil
		})
	}()

	deadline := time.Now().Add(time.Second)
	for h.Subscribers(TableProfiles) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watch never subscribed")
		}
		time.Sleep(time.Millisecond)
	}
	for i := 0; i < 3; i++ {
		_ = h.Publish(ctx, Change{Table: TableProfiles, RowID: "u1"})
	}
	for calls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 3 refetches, got %d", calls.Load())
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
