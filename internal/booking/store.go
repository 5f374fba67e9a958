package booking

import (
	"context"
	"sync"
)

// Store persists negotiations with optimistic versioning. Save succeeds only
// when the stored version equals expectedVersion, and then bumps n.Version.
type Store interface {
	Create(ctx context.Context, n *Negotiation) error
	Get(ctx context.Context, workspaceID, id string) (*Negotiation, error)
	Save(ctx context.Context, n *Negotiation, expectedVersion int64) error
}

// MemoryStore keeps negotiations in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]*Negotiation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*Negotiation)}
}

func memoryKey(workspaceID, id string) string {
	return workspaceID + "/" + id
}

func (s *MemoryStore) Create(_ context.Context, n *Negotiation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey(n.WorkspaceID, n.ID)
	if _, exists := s.items[key]; exists {
		return ErrVersionConflict
	}
	n.Version = 1
	s.items[key] = n.clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, workspaceID, id string) (*Negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[memoryKey(workspaceID, id)]
	if !ok {
		return nil, ErrNotFound
	}
	return n.clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, n *Negotiation, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey(n.WorkspaceID, n.ID)
	current, ok := s.items[key]
	if !ok {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return ErrVersionConflict
	}
	n.Version = expectedVersion + 1
	s.items[key] = n.clone()
	return nil
}
