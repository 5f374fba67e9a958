package appointments

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/leadcrm-booking/internal/availability"
)

func TestInMemoryReserveExactlyOneWinner(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	const contenders = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		taken   int
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			appt := pendingAppointment("")
			appt.ID = fmt.Sprintf("appt-%d", i)
			_, created, err := repo.Reserve(ctx, Reservation{Appointment: appt, BusyFrom: appt.StartAt, BusyTo: appt.EndAt})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && created:
				winners++
			case err == ErrSlotTaken:
				taken++
			default:
				t.Errorf("unexpected result created=%v err=%v", created, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, contenders-1, taken)
}

func TestInMemoryReserveReplaysIdempotencyKey(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	first := pendingAppointment("neg-1")
	got, created, err := repo.Reserve(ctx, Reservation{Appointment: first})
	require.NoError(t, err)
	require.True(t, created)

	retry := pendingAppointment("neg-1")
	retry.ID = "other-id"
	again, created, err := repo.Reserve(ctx, Reservation{Appointment: retry})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, got.ID, again.ID)

	// Same key in another workspace is unrelated.
	foreign := pendingAppointment("neg-1")
	foreign.ID = "foreign-id"
	foreign.WorkspaceID = "ws-2"
	_, created, err = repo.Reserve(ctx, Reservation{Appointment: foreign})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestInMemoryReserveRunsVerifyWithBufferedWindow(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	existing := pendingAppointment("")
	_, _, err := repo.Reserve(ctx, Reservation{Appointment: existing})
	require.NoError(t, err)

	next := pendingAppointment("")
	next.ID = "next"
	next.StartAt = existing.EndAt
	next.EndAt = next.StartAt.Add(30 * time.Minute)

	var seen []availability.Busy
	_, _, err = repo.Reserve(ctx, Reservation{
		Appointment: next,
		BusyFrom:    next.StartAt.Add(-15 * time.Minute),
		BusyTo:      next.EndAt,
		Verify: func(busy []availability.Busy) error {
			seen = busy
			return ErrSlotTaken
		},
	})
	assert.ErrorIs(t, err, ErrSlotTaken)
	require.Len(t, seen, 1)
	assert.Equal(t, existing.StartAt, seen[0].Start)

	// Without a buffer the back-to-back slot is free.
	_, created, err := repo.Reserve(ctx, Reservation{Appointment: next, BusyFrom: next.StartAt, BusyTo: next.EndAt})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestInMemoryCancelledAppointmentsFreeTheSlot(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	appt := pendingAppointment("")
	_, _, err := repo.Reserve(ctx, Reservation{Appointment: appt})
	require.NoError(t, err)

	_, err = repo.UpdateStatus(ctx, "ws-1", appt.ID, StatusScheduled, StatusCancelled)
	require.NoError(t, err)

	_, err = repo.UpdateStatus(ctx, "ws-1", appt.ID, StatusScheduled, StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	busy, err := repo.ListBusy(ctx, "ws-1", "", appt.StartAt, appt.EndAt)
	require.NoError(t, err)
	assert.Empty(t, busy)

	again := pendingAppointment("")
	again.ID = "again"
	_, created, err := repo.Reserve(ctx, Reservation{Appointment: again})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestInMemoryWorkspaceIsolation(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	appt := pendingAppointment("")
	_, _, err := repo.Reserve(ctx, Reservation{Appointment: appt})
	require.NoError(t, err)

	_, err = repo.Get(ctx, "ws-2", appt.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := repo.List(ctx, ListFilter{WorkspaceID: "ws-2"})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestInMemoryUpdateDetails(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	appt := pendingAppointment("")
	_, _, err := repo.Reserve(ctx, Reservation{Appointment: appt})
	require.NoError(t, err)

	title := "Site walk"
	typ := TypeSiteVisit
	reminder := 60
	updated, err := repo.UpdateDetails(ctx, "ws-1", appt.ID, Details{Title: &title, Type: &typ, ReminderMinutesBefore: &reminder})
	require.NoError(t, err)
	assert.Equal(t, "Site walk", updated.Title)
	assert.Equal(t, TypeSiteVisit, updated.Type)
	require.NotNil(t, updated.ReminderMinutesBefore)
	assert.Equal(t, 60, *updated.ReminderMinutesBefore)

	bad := Type("lunch")
	_, err = repo.UpdateDetails(ctx, "ws-1", appt.ID, Details{Type: &bad})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = repo.UpdateStatus(ctx, "ws-1", appt.ID, StatusScheduled, StatusNoShow)
	require.NoError(t, err)
	_, err = repo.UpdateDetails(ctx, "ws-1", appt.ID, Details{Title: &title})
	assert.ErrorIs(t, err, ErrNotEditable)
}

func TestInMemoryDueReminders(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	reminder := 60
	appt := pendingAppointment("")
	appt.ReminderMinutesBefore = &reminder
	_, _, err := repo.Reserve(ctx, Reservation{Appointment: appt})
	require.NoError(t, err)

	noReminder := pendingAppointment("")
	noReminder.ID = "no-reminder"
	noReminder.StartAt = appt.EndAt
	noReminder.EndAt = noReminder.StartAt.Add(30 * time.Minute)
	_, _, err = repo.Reserve(ctx, Reservation{Appointment: noReminder})
	require.NoError(t, err)

	due, err := repo.ListDueReminders(ctx, appt.StartAt.Add(-2*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	now := appt.StartAt.Add(-30 * time.Minute)
	due, err = repo.ListDueReminders(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, appt.ID, due[0].ID)

	sent, err := repo.MarkReminderSent(ctx, "ws-1", appt.ID, now)
	require.NoError(t, err)
	assert.True(t, sent)
	sent, err = repo.MarkReminderSent(ctx, "ws-1", appt.ID, now)
	require.NoError(t, err)
	assert.False(t, sent)

	due, err = repo.ListDueReminders(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}
