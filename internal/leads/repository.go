package leads

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for lead storage
type Repository interface {
	Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error)
	GetByID(ctx context.Context, workspaceID, id string) (*Lead, error)
	ListByWorkspace(ctx context.Context, workspaceID string, filter ListFilter) ([]*Lead, error)
	UpdateContact(ctx context.Context, workspaceID, id string, update ContactUpdate) (*Lead, error)
}

// InMemoryRepository keeps leads in a map; used in dev and tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]*Lead
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads: make(map[string]*Lead),
	}
}

func (r *InMemoryRepository) Create(_ context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	lead := &Lead{
		ID:          uuid.New().String(),
		WorkspaceID: req.WorkspaceID,
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Message:     req.Message,
		Source:      req.Source,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	r.mu.Lock()
	r.leads[lead.ID] = lead
	r.mu.Unlock()

	copied := *lead
	return &copied, nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, workspaceID, id string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok || lead.WorkspaceID != workspaceID {
		return nil, ErrLeadNotFound
	}
	copied := *lead
	return &copied, nil
}

func (r *InMemoryRepository) ListByWorkspace(_ context.Context, workspaceID string, filter ListFilter) ([]*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Lead
	for _, lead := range r.leads {
		if lead.WorkspaceID == workspaceID {
			copied := *lead
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Offset >= len(out) {
		return []*Lead{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *InMemoryRepository) UpdateContact(_ context.Context, workspaceID, id string, update ContactUpdate) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[id]
	if !ok || lead.WorkspaceID != workspaceID {
		return nil, ErrLeadNotFound
	}
	if !update.empty() {
		update.apply(lead)
		lead.UpdatedAt = time.Now().UTC()
	}
	copied := *lead
	return &copied, nil
}
