package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wolfman30/leadcrm-booking/internal/availability"
)

// VerifyFunc runs inside the reservation lock with every scheduled interval
// of the resource that intersects [BusyFrom, BusyTo). A non-nil error aborts
// the reservation and is returned unchanged.
type VerifyFunc func(busy []availability.Busy) error

// Reservation is an atomic check-and-insert request.
type Reservation struct {
	Appointment *Appointment
	BusyFrom    time.Time
	BusyTo      time.Time
	Verify      VerifyFunc
}

// Move is an atomic check-and-update of an appointment's time.
type Move struct {
	WorkspaceID string
	ID          string
	StartAt     time.Time
	EndAt       time.Time
	BusyFrom    time.Time
	BusyTo      time.Time
	Verify      VerifyFunc
}

// Repository persists appointments.
type Repository interface {
	// Reserve inserts the appointment unless Verify rejects it. When the
	// idempotency key was already used in the workspace the stored
	// appointment is returned with created == false.
	Reserve(ctx context.Context, res Reservation) (appt *Appointment, created bool, err error)
	Get(ctx context.Context, workspaceID, id string) (*Appointment, error)
	List(ctx context.Context, filter ListFilter) ([]*Appointment, error)
	ListBusy(ctx context.Context, workspaceID, resource string, from, to time.Time) ([]availability.Busy, error)
	// UpdateStatus moves from -> to only if the row is still in from.
	UpdateStatus(ctx context.Context, workspaceID, id string, from, to Status) (*Appointment, error)
	Reschedule(ctx context.Context, move Move) (*Appointment, error)
	UpdateDetails(ctx context.Context, workspaceID, id string, details Details) (*Appointment, error)
	ListDueReminders(ctx context.Context, now time.Time, limit int) ([]*Appointment, error)
	MarkReminderSent(ctx context.Context, workspaceID, id string, at time.Time) (bool, error)
}

// InMemoryRepository keeps appointments in a map. A single mutex makes
// Reserve and Reschedule atomic.
type InMemoryRepository struct {
	mu    sync.Mutex
	items map[string]*Appointment
	now   func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{items: make(map[string]*Appointment), now: time.Now}
}

func (r *InMemoryRepository) Reserve(_ context.Context, res Reservation) (*Appointment, bool, error) {
	appt := res.Appointment
	if appt == nil {
		return nil, false, ErrInvalid
	}
	if err := appt.validate(); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if appt.IdempotencyKey != "" {
		for _, existing := range r.items {
			if existing.WorkspaceID == appt.WorkspaceID && existing.IdempotencyKey == appt.IdempotencyKey {
				return existing.clone(), false, nil
			}
		}
	}

	busy := r.busyLocked(appt.WorkspaceID, resourceOrDefault(appt.Resource), res.BusyFrom, res.BusyTo, "")
	if res.Verify != nil {
		if err := res.Verify(busy); err != nil {
			return nil, false, err
		}
	}
	// Raw overlap is always a conflict, whatever Verify decided.
	if len(r.busyLocked(appt.WorkspaceID, resourceOrDefault(appt.Resource), appt.StartAt, appt.EndAt, "")) > 0 {
		return nil, false, ErrSlotTaken
	}

	stored := appt.clone()
	stored.Resource = resourceOrDefault(stored.Resource)
	now := r.now().UTC()
	stored.CreatedAt, stored.UpdatedAt = now, now
	r.items[stored.ID] = stored
	return stored.clone(), true, nil
}

func (r *InMemoryRepository) Get(_ context.Context, workspaceID, id string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.items[id]
	if !ok || appt.WorkspaceID != workspaceID {
		return nil, ErrNotFound
	}
	return appt.clone(), nil
}

func (r *InMemoryRepository) List(_ context.Context, filter ListFilter) ([]*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Appointment
	for _, appt := range r.items {
		if filter.matches(appt) {
			out = append(out, appt.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	if len(out) > filter.limit() {
		out = out[:filter.limit()]
	}
	return out, nil
}

func (r *InMemoryRepository) ListBusy(_ context.Context, workspaceID, resource string, from, to time.Time) ([]availability.Busy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busyLocked(workspaceID, resourceOrDefault(resource), from, to, ""), nil
}

func (r *InMemoryRepository) busyLocked(workspaceID, resource string, from, to time.Time, excludeID string) []availability.Busy {
	var busy []availability.Busy
	for _, appt := range r.items {
		if appt.WorkspaceID != workspaceID || appt.Resource != resource || appt.Status != StatusScheduled {
			continue
		}
		if appt.ID == excludeID {
			continue
		}
		if appt.StartAt.Before(to) && appt.EndAt.After(from) {
			busy = append(busy, availability.Busy{Start: appt.StartAt, End: appt.EndAt})
		}
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
	return busy
}

func (r *InMemoryRepository) UpdateStatus(_ context.Context, workspaceID, id string, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.items[id]
	if !ok || appt.WorkspaceID != workspaceID {
		return nil, ErrNotFound
	}
	if appt.Status != from {
		return nil, ErrInvalidTransition
	}
	appt.Status = to
	appt.UpdatedAt = r.now().UTC()
	return appt.clone(), nil
}

func (r *InMemoryRepository) Reschedule(_ context.Context, move Move) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.items[move.ID]
	if !ok || appt.WorkspaceID != move.WorkspaceID {
		return nil, ErrNotFound
	}
	if appt.Status != StatusScheduled {
		return nil, ErrNotEditable
	}
	if !move.EndAt.After(move.StartAt) {
		return nil, ErrInvalid
	}
	busy := r.busyLocked(appt.WorkspaceID, appt.Resource, move.BusyFrom, move.BusyTo, appt.ID)
	if move.Verify != nil {
		if err := move.Verify(busy); err != nil {
			return nil, err
		}
	}
	if len(r.busyLocked(appt.WorkspaceID, appt.Resource, move.StartAt, move.EndAt, appt.ID)) > 0 {
		return nil, ErrSlotTaken
	}
	appt.StartAt, appt.EndAt = move.StartAt.UTC(), move.EndAt.UTC()
	appt.ReminderSentAt = nil
	appt.UpdatedAt = r.now().UTC()
	return appt.clone(), nil
}

func (r *InMemoryRepository) UpdateDetails(_ context.Context, workspaceID, id string, details Details) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.items[id]
	if !ok || appt.WorkspaceID != workspaceID {
		return nil, ErrNotFound
	}
	if appt.Status != StatusScheduled {
		return nil, ErrNotEditable
	}
	updated := appt.clone()
	if err := details.apply(updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = r.now().UTC()
	r.items[id] = updated
	return updated.clone(), nil
}

func (r *InMemoryRepository) ListDueReminders(_ context.Context, now time.Time, limit int) ([]*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*Appointment
	for _, appt := range r.items {
		if isReminderDue(appt, now) {
			due = append(due, appt.clone())
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].StartAt.Before(due[j].StartAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *InMemoryRepository) MarkReminderSent(_ context.Context, workspaceID, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.items[id]
	if !ok || appt.WorkspaceID != workspaceID {
		return false, ErrNotFound
	}
	if appt.ReminderSentAt != nil {
		return false, nil
	}
	sent := at.UTC()
	appt.ReminderSentAt = &sent
	return true, nil
}

func isReminderDue(appt *Appointment, now time.Time) bool {
	if appt.Status != StatusScheduled || appt.ReminderSentAt != nil {
		return false
	}
	dueAt, ok := appt.ReminderDueAt()
	if !ok {
		return false
	}
	return !dueAt.After(now) && appt.StartAt.After(now)
}

func resourceOrDefault(resource string) string {
	if resource == "" {
		return availability.DefaultResource
	}
	return resource
}
