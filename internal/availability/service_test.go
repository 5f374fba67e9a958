package availability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/leadcrm-booking/internal/scheduling"
	"github.com/wolfman30/leadcrm-booking/pkg/logging"
)

type fakeBusy struct {
	mu    sync.Mutex
	busy  []Busy
	calls int
	err   error
	from  time.Time
	to    time.Time
}

func (f *fakeBusy) ListBusy(_ context.Context, _, resource string, from, to time.Time) ([]Busy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.from, f.to = from, to
	if f.err != nil {
		return nil, f.err
	}
	return append([]Busy(nil), f.busy...), nil
}

func (f *fakeBusy) add(b Busy) {
	f.mu.Lock()
	f.busy = append(f.busy, b)
	f.mu.Unlock()
}

func newCachedService(t *testing.T, busy *fakeBusy) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(scheduling.NewMemoryStore(), busy, logging.New("error"),
		WithCache(NewRedisCache(client), time.Minute),
		WithClock(func() time.Time { return at(2, 12, 0) }))
}

func TestServiceSlotsServesFromCache(t *testing.T) {
	busy := &fakeBusy{}
	svc := newCachedService(t, busy)
	ctx := context.Background()

	first, err := svc.Slots(ctx, "ws-1", mondayWindow())
	require.NoError(t, err)
	require.Len(t, first, 16)

	busy.add(Busy{Start: at(3, 9, 0), End: at(3, 9, 30)})
	second, err := svc.Slots(ctx, "ws-1", mondayWindow())
	require.NoError(t, err)
	assert.Len(t, second, 16)
	assert.Equal(t, 1, busy.calls)

	fresh, err := svc.FreshSlots(ctx, "ws-1", mondayWindow())
	require.NoError(t, err)
	assert.Len(t, fresh, 15)
	assert.Equal(t, 2, busy.calls)
}

func TestServiceInvalidateDropsCachedSlots(t *testing.T) {
	busy := &fakeBusy{}
	svc := newCachedService(t, busy)
	ctx := context.Background()

	_, err := svc.Slots(ctx, "ws-1", mondayWindow())
	require.NoError(t, err)

	busy.add(Busy{Start: at(3, 9, 0), End: at(3, 9, 30)})
	svc.Invalidate(ctx, "ws-1")

	slots, err := svc.Slots(ctx, "ws-1", mondayWindow())
	require.NoError(t, err)
	assert.Len(t, slots, 15)
}

func TestServiceCheckWidensBusyQueryByBuffers(t *testing.T) {
	busy := &fakeBusy{busy: []Busy{{Start: at(3, 10, 30), End: at(3, 11, 0)}}}
	store := scheduling.NewMemoryStore()
	cfg := scheduling.DefaultConfig("ws-1")
	cfg.BufferBeforeMinutes = 15
	cfg.BufferAfterMinutes = 5
	require.NoError(t, store.Save(context.Background(), cfg))
	svc := NewService(store, busy, nil, WithClock(func() time.Time { return at(2, 12, 0) }))

	rejection, err := svc.Check(context.Background(), "ws-1", Slot{Start: at(3, 10, 0), End: at(3, 10, 30)})
	require.NoError(t, err)
	assert.Equal(t, RejectConflict, rejection)
	assert.Equal(t, at(3, 9, 55), busy.from)
	assert.Equal(t, at(3, 10, 45), busy.to)
}

func TestServiceBookingWindowFollowsHorizon(t *testing.T) {
	now := at(2, 12, 0)
	svc := NewService(scheduling.NewMemoryStore(), &fakeBusy{}, nil, WithClock(func() time.Time { return now }))

	cfg := scheduling.DefaultConfig("ws-1")
	cfg.MaxDaysAhead = 30
	assert.Equal(t, Window{From: now, To: now.Add(30 * 24 * time.Hour)}, svc.BookingWindow(cfg))

	cfg.MaxDaysAhead = 0
	assert.Equal(t, svc.DefaultWindow(), svc.BookingWindow(cfg))
	assert.Equal(t, svc.DefaultWindow(), svc.BookingWindow(nil))
}

func TestServicePropagatesBusyErrors(t *testing.T) {
	busy := &fakeBusy{err: errors.New("db down")}
	svc := NewService(scheduling.NewMemoryStore(), busy, nil)

	_, err := svc.FreshSlots(context.Background(), "ws-1", mondayWindow())
	assert.ErrorContains(t, err, "db down")
}

func TestHandlerListSlots(t *testing.T) {
	svc := NewService(scheduling.NewMemoryStore(), &fakeBusy{}, nil,
		WithClock(func() time.Time { return at(2, 12, 0) }))
	r := chi.NewRouter()
	r.Mount("/workspaces/{workspaceID}/availability", NewHandler(svc, nil).Routes())

	req := httptest.NewRequest(http.MethodGet,
		"/workspaces/ws-1/availability/?from=2025-03-03T09:00:00Z&to=2025-03-03T10:00:00Z", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp slotsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Slots, 2)

	bad := httptest.NewRequest(http.MethodGet, "/workspaces/ws-1/availability/?from=yesterday", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
