package session

import (
	"context"
	"sync"
)

// Persister is the durable store that lets a restarted process skip a full
// fetch inside the TTL window. Load returns ok=false when nothing is stored.
type Persister interface {
	Load(ctx context.Context, userID string) (State, bool, error)
	Save(ctx context.Context, userID string, s State) error
	Delete(ctx context.Context, userID string) error
}

// MemoryPersister keeps encoded states in process memory.
type MemoryPersister struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{data: make(map[string][]byte)}
}

func (p *MemoryPersister) Load(_ context.Context, userID string) (State, bool, error) {
	p.mu.Lock()
	raw, ok := p.data[userID]
	p.mu.Unlock()
	if !ok {
		return State{}, false, nil
	}
	s, err := DecodeState(raw)
	if err != nil {
		return State{}, false, err
	}
	return s, true, nil
}

func (p *MemoryPersister) Save(_ context.Context, userID string, s State) error {
	raw, err := EncodeState(s)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.data[userID] = raw
	p.mu.Unlock()
	return nil
}

func (p *MemoryPersister) Delete(_ context.Context, userID string) error {
	p.mu.Lock()
	delete(p.data, userID)
	p.mu.Unlock()
	return nil
}

// Len reports the number of stored entries.
func (p *MemoryPersister) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.data)
}
