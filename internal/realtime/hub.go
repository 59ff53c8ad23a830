package realtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

const subscriberBuffer = 16

// Hub fans changes out to in-process subscribers of each table.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[int]chan Change
	next int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan Change)}
}

// Subscribe registers a subscriber for table.
func (h *Hub) Subscribe(ctx context.Context, table string) (<-chan Change, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("realtime: table is required")
	}
	ch := make(chan Change, subscriberBuffer)

	h.mu.Lock()
	id := h.next
	h.next++
	if h.subs[table] == nil {
		h.subs[table] = make(map[int]chan Change)
	}
	h.subs[table][id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs[table], id)
		close(ch)
		h.mu.Unlock()
	}()

	return ch, nil
}

// Publish delivers c to every subscriber of c.Table.
func (h *Hub) Publish(_ context.Context, c Change) error {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[c.Table] {
		select {
		case ch <- c:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
	return nil
}

// Subscribers reports the number of subscribers of table.
func (h *Hub) Subscribers(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[table])
}
