// Package audit keeps an append-only trail of booking negotiation steps.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Entry is one recorded negotiation transition.
type Entry struct {
	ID            string      `json:"id"`
	WorkspaceID   string      `json:"workspace_id"`
	NegotiationID string      `json:"negotiation_id"`
	LeadID        string      `json:"lead_id"`
	Event         string      `json:"event"`
	FromMode      string      `json:"from_mode"`
	ToMode        string      `json:"to_mode"`
	Reason        string      `json:"reason,omitempty"`
	AppointmentID string      `json:"appointment_id,omitempty"`
	OfferedSlots  []time.Time `json:"offered_slots,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Recorder writes entries to booking_audit_events. A nil *Recorder is a no-op.
type Recorder struct {
	db *sql.DB
}

func NewRecorder(db *sql.DB) *Recorder {
	if db == nil {
		return nil
	}
	return &Recorder{db: db}
}

// Record appends one entry.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if r == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO booking_audit_events (
			id, workspace_id, negotiation_id, lead_id, event,
			from_mode, to_mode, reason, appointment_id, offered_slots, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.WorkspaceID,
		entry.NegotiationID,
		nullString(entry.LeadID),
		entry.Event,
		entry.FromMode,
		entry.ToMode,
		nullString(entry.Reason),
		nullString(entry.AppointmentID),
		pq.Array(formatSlots(entry.OfferedSlots)),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to record booking event: %w", err)
	}
	return nil
}

// ListByNegotiation returns a negotiation's trail, oldest first.
func (r *Recorder) ListByNegotiation(ctx context.Context, workspaceID, negotiationID string) ([]Entry, error) {
	if r == nil {
		return nil, nil
	}
	query := `
		SELECT id, workspace_id, negotiation_id, COALESCE(lead_id, ''), event,
			from_mode, to_mode, COALESCE(reason, ''), COALESCE(appointment_id, ''), offered_slots, created_at
		FROM booking_audit_events
		WHERE workspace_id = $1 AND negotiation_id = $2
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, workspaceID, negotiationID)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to list booking events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e     Entry
			slots []string
		)
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.NegotiationID, &e.LeadID, &e.Event,
			&e.FromMode, &e.ToMode, &e.Reason, &e.AppointmentID, pq.Array(&slots), &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: failed to scan booking event: %w", err)
		}
		e.OfferedSlots, err = parseSlots(slots)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func formatSlots(slots []time.Time) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.UTC().Format(time.RFC3339))
	}
	return out
}

func parseSlots(raw []string) ([]time.Time, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("audit: bad offered slot %q: %w", s, err)
		}
		out = append(out, ts.UTC())
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
