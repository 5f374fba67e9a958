package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/leadcrm-booking/internal/availability"
)

// DB is the subset of pgxpool.Pool used here; pgxmock satisfies it in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queryer is satisfied by both DB and pgx.Tx.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	idempotencyIndex = "appointments_workspace_idempotency_key"

	appointmentColumns = `id, workspace_id, lead_id, resource, title, appointment_type, start_at, end_at,
		timezone, notes, source, reminder_minutes_before, status, COALESCE(idempotency_key, ''),
		reminder_sent_at, created_at, updated_at`
)

// PostgresRepository stores appointments in Postgres. Reservations take a
// transaction-scoped advisory lock per (workspace, resource); the
// appointments_no_overlap exclusion constraint backs it up.
type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db DB) *PostgresRepository {
	if db == nil {
		panic("appointments: db required")
	}
	return &PostgresRepository{db: db}
}

// IsConflict reports unique or exclusion violations.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "23P01" || pgErr.Code == "23505")
}

func isIdempotencyConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == idempotencyIndex
}

func lockKey(workspaceID, resource string) string {
	return workspaceID + "/" + resource
}

func (r *PostgresRepository) Reserve(ctx context.Context, res Reservation) (*Appointment, bool, error) {
	appt := res.Appointment
	if appt == nil {
		return nil, false, ErrInvalid
	}
	if err := appt.validate(); err != nil {
		return nil, false, err
	}
	resource := resourceOrDefault(appt.Resource)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("appointments: begin reserve: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey(appt.WorkspaceID, resource)); err != nil {
		return nil, false, fmt.Errorf("appointments: lock resource: %w", err)
	}

	if appt.IdempotencyKey != "" {
		existing, err := r.getByIdempotencyKey(ctx, tx, appt.WorkspaceID, appt.IdempotencyKey)
		if err == nil {
			return existing, false, tx.Commit(ctx)
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
	}

	busy, err := listBusy(ctx, tx, appt.WorkspaceID, resource, res.BusyFrom, res.BusyTo, "")
	if err != nil {
		return nil, false, err
	}
	if res.Verify != nil {
		if err := res.Verify(busy); err != nil {
			return nil, false, err
		}
	}

	var idemKey *string
	if appt.IdempotencyKey != "" {
		idemKey = &appt.IdempotencyKey
	}
	stored := appt.clone()
	stored.Resource = resource
	query := `
		INSERT INTO appointments (id, workspace_id, lead_id, resource, title, appointment_type, start_at, end_at,
			timezone, notes, source, reminder_minutes_before, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		stored.ID, stored.WorkspaceID, stored.LeadID, stored.Resource, stored.Title, string(stored.Type),
		stored.StartAt, stored.EndAt, stored.Timezone, stored.Notes, string(stored.Source),
		stored.ReminderMinutesBefore, string(stored.Status), idemKey,
	).Scan(&stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		if isIdempotencyConflict(err) {
			// Another resource won the same key; report its row.
			_ = tx.Rollback(ctx)
			existing, getErr := r.getByIdempotencyKey(ctx, r.db, appt.WorkspaceID, appt.IdempotencyKey)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		if IsConflict(err) {
			return nil, false, ErrSlotTaken
		}
		return nil, false, fmt.Errorf("appointments: insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		if IsConflict(err) {
			return nil, false, ErrSlotTaken
		}
		return nil, false, fmt.Errorf("appointments: commit reserve: %w", err)
	}
	return stored, true, nil
}

func (r *PostgresRepository) getByIdempotencyKey(ctx context.Context, q queryer, workspaceID, key string) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE workspace_id = $1 AND idempotency_key = $2`
	return scanAppointment(q.QueryRow(ctx, query, workspaceID, key))
}

func (r *PostgresRepository) Get(ctx context.Context, workspaceID, id string) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1 AND workspace_id = $2`
	return scanAppointment(r.db.QueryRow(ctx, query, id, workspaceID))
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
	conds := []string{"workspace_id = $1"}
	args := []any{filter.WorkspaceID}
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.LeadID != "" {
		add("lead_id = $%d", filter.LeadID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.From != nil {
		add("end_at > $%d", *filter.From)
	}
	if filter.To != nil {
		add("start_at < $%d", *filter.To)
	}
	args = append(args, filter.limit())
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE %s ORDER BY start_at ASC LIMIT $%d`,
		appointmentColumns, strings.Join(conds, " AND "), len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (r *PostgresRepository) ListBusy(ctx context.Context, workspaceID, resource string, from, to time.Time) ([]availability.Busy, error) {
	return listBusy(ctx, r.db, workspaceID, resourceOrDefault(resource), from, to, "")
}

func listBusy(ctx context.Context, q queryer, workspaceID, resource string, from, to time.Time, excludeID string) ([]availability.Busy, error) {
	query := `
		SELECT start_at, end_at
		FROM appointments
		WHERE workspace_id = $1
			AND resource = $2
			AND status = 'scheduled'
			AND start_at < $4
			AND end_at > $3
			AND id::text <> $5
		ORDER BY start_at ASC
	`
	rows, err := q.Query(ctx, query, workspaceID, resource, from, to, excludeID)
	if err != nil {
		return nil, fmt.Errorf("appointments: list busy: %w", err)
	}
	defer rows.Close()

	var busy []availability.Busy
	for rows.Next() {
		var b availability.Busy
		if err := rows.Scan(&b.Start, &b.End); err != nil {
			return nil, fmt.Errorf("appointments: scan busy: %w", err)
		}
		busy = append(busy, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list busy: %w", err)
	}
	return busy, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, workspaceID, id string, from, to Status) (*Appointment, error) {
	query := `
		UPDATE appointments
		SET status = $4, updated_at = now()
		WHERE id = $1 AND workspace_id = $2 AND status = $3
		RETURNING ` + appointmentColumns
	appt, err := scanAppointment(r.db.QueryRow(ctx, query, id, workspaceID, string(from), string(to)))
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.Get(ctx, workspaceID, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidTransition
	}
	return appt, err
}

func (r *PostgresRepository) Reschedule(ctx context.Context, move Move) (*Appointment, error) {
	if !move.EndAt.After(move.StartAt) {
		return nil, ErrInvalid
	}
	current, err := r.Get(ctx, move.WorkspaceID, move.ID)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin reschedule: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Advisory lock before the row lock, in the same order Reserve uses.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey(current.WorkspaceID, current.Resource)); err != nil {
		return nil, fmt.Errorf("appointments: lock resource: %w", err)
	}
	locked, err := scanAppointment(tx.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 AND workspace_id = $2 FOR UPDATE`,
		move.ID, move.WorkspaceID))
	if err != nil {
		return nil, err
	}
	if locked.Status != StatusScheduled {
		return nil, ErrNotEditable
	}

	busy, err := listBusy(ctx, tx, locked.WorkspaceID, locked.Resource, move.BusyFrom, move.BusyTo, locked.ID)
	if err != nil {
		return nil, err
	}
	if move.Verify != nil {
		if err := move.Verify(busy); err != nil {
			return nil, err
		}
	}

	updated, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET start_at = $3, end_at = $4, reminder_sent_at = NULL, updated_at = now()
		WHERE id = $1 AND workspace_id = $2
		RETURNING `+appointmentColumns, locked.ID, locked.WorkspaceID, move.StartAt.UTC(), move.EndAt.UTC()))
	if err != nil {
		if IsConflict(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointments: commit reschedule: %w", err)
	}
	return updated, nil
}

func (r *PostgresRepository) UpdateDetails(ctx context.Context, workspaceID, id string, details Details) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := scanAppointment(tx.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 AND workspace_id = $2 FOR UPDATE`,
		id, workspaceID))
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusScheduled {
		return nil, ErrNotEditable
	}
	if err := details.apply(appt); err != nil {
		return nil, err
	}

	updated, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET title = $3, appointment_type = $4, notes = $5, reminder_minutes_before = $6,
			reminder_sent_at = $7, updated_at = now()
		WHERE id = $1 AND workspace_id = $2
		RETURNING `+appointmentColumns,
		appt.ID, appt.WorkspaceID, appt.Title, string(appt.Type), appt.Notes, appt.ReminderMinutesBefore, appt.ReminderSentAt))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointments: commit update: %w", err)
	}
	return updated, nil
}

func (r *PostgresRepository) ListDueReminders(ctx context.Context, now time.Time, limit int) ([]*Appointment, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE status = 'scheduled'
			AND reminder_minutes_before IS NOT NULL
			AND reminder_sent_at IS NULL
			AND start_at > $1
			AND start_at - make_interval(mins => reminder_minutes_before) <= $1
		ORDER BY start_at ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("appointments: list due reminders: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (r *PostgresRepository) MarkReminderSent(ctx context.Context, workspaceID, id string, at time.Time) (bool, error) {
	ct, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent_at = $3
		WHERE id = $1 AND workspace_id = $2 AND reminder_sent_at IS NULL
	`, id, workspaceID, at.UTC())
	if err != nil {
		return false, fmt.Errorf("appointments: mark reminder sent: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		appt        Appointment
		apptType    string
		source      string
		status      string
		reminderMin *int32
	)
	if err := row.Scan(
		&appt.ID,
		&appt.WorkspaceID,
		&appt.LeadID,
		&appt.Resource,
		&appt.Title,
		&apptType,
		&appt.StartAt,
		&appt.EndAt,
		&appt.Timezone,
		&appt.Notes,
		&source,
		&reminderMin,
		&status,
		&appt.IdempotencyKey,
		&appt.ReminderSentAt,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: scan: %w", err)
	}
	appt.Type = Type(apptType)
	appt.Source = Source(source)
	appt.Status = Status(status)
	if reminderMin != nil {
		v := int(*reminderMin)
		appt.ReminderMinutesBefore = &v
	}
	appt.StartAt = appt.StartAt.UTC()
	appt.EndAt = appt.EndAt.UTC()
	return &appt, nil
}

func scanAppointments(rows pgx.Rows) ([]*Appointment, error) {
	var out []*Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: iterate: %w", err)
	}
	return out, nil
}
