package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rec := NewRecorder(db)
	slot := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO booking_audit_events").
		WithArgs(sqlmock.AnyArg(), "ws-1", "neg-1", "lead-1", "accept_offer", "offer", "slots",
			nil, nil, "{\"2025-03-03T10:00:00Z\"}", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = rec.Record(context.Background(), Entry{
		WorkspaceID:   "ws-1",
		NegotiationID: "neg-1",
		LeadID:        "lead-1",
		Event:         "accept_offer",
		FromMode:      "offer",
		ToMode:        "slots",
		OfferedSlots:  []time.Time{slot},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_RecordError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO booking_audit_events").WillReturnError(errors.New("disk full"))

	err = NewRecorder(db).Record(context.Background(), Entry{WorkspaceID: "ws-1", NegotiationID: "neg-1"})
	assert.ErrorContains(t, err, "disk full")
}

func TestRecorder_ListByNegotiation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "workspace_id", "negotiation_id", "lead_id", "event",
		"from_mode", "to_mode", "reason", "appointment_id", "offered_slots", "created_at"}).
		AddRow("e-1", "ws-1", "neg-1", "lead-1", "accept_offer", "offer", "slots", "", "",
			"{2025-03-03T10:00:00Z,2025-03-03T10:30:00Z}", created).
		AddRow("e-2", "ws-1", "neg-1", "lead-1", "select_slot", "slots", "confirmed", "", "appt-1", "{}", created)
	mock.ExpectQuery("FROM booking_audit_events").WithArgs("ws-1", "neg-1").WillReturnRows(rows)

	entries, err := NewRecorder(db).ListByNegotiation(context.Background(), "ws-1", "neg-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Len(t, entries[0].OfferedSlots, 2)
	assert.Equal(t, time.Date(2025, 3, 3, 10, 30, 0, 0, time.UTC), entries[0].OfferedSlots[1])
	assert.Equal(t, "appt-1", entries[1].AppointmentID)
	assert.Empty(t, entries[1].OfferedSlots)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNilRecorderIsNoop(t *testing.T) {
	var rec *Recorder
	assert.NoError(t, rec.Record(context.Background(), Entry{}))
	entries, err := rec.ListByNegotiation(context.Background(), "ws-1", "neg-1")
	assert.NoError(t, err)
	assert.Nil(t, entries)
	assert.Nil(t, NewRecorder(nil))
}
