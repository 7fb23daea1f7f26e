package state

import (
	"context"
	"sync"
	"testing"
)

type memoryStore struct {
	mu    sync.Mutex
	items map[string]string
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.items[key]
	return val, ok, nil
}

func (m *memoryStore) Set(ctx context.Context, key, value string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string]string)
	}
	m.items[key] = value
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *memoryStore) Close() error { return nil }

func TestLastSuggestionRoundTrip(t *testing.T) {
	store := &memoryStore{}
	ctx := context.Background()
	want := LastSuggestion{Suggestion: "ACTIVITY", Confidence: 0.75, Attestation: "0xabc", UpdatedAtMS: 1725192000000}
	if err := SaveLastSuggestion(ctx, store, want); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, ok, err := LoadLastSuggestion(ctx, store)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected stored suggestion")
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestLastSuggestionMissing(t *testing.T) {
	_, ok, err := LoadLastSuggestion(context.Background(), &memoryStore{})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if ok {
		t.Fatalf("expected no stored suggestion")
	}
	_, ok, err = LoadLastSuggestion(context.Background(), nil)
	if err != nil || ok {
		t.Fatalf("expected nil store to load nothing, got ok=%v err=%v", ok, err)
	}
}

func TestLastSuggestionCorrupt(t *testing.T) {
	store := &memoryStore{items: map[string]string{LastSuggestionKey: "{"}}
	if _, _, err := LoadLastSuggestion(context.Background(), store); err == nil {
		t.Fatalf("expected decode error")
	}
}
