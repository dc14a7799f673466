package appointments

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medconnect/scheduling-api/internal/events"
	"github.com/medconnect/scheduling-api/internal/identity"
)

// DB is the pgx surface the repository needs. Both *pgxpool.Pool and the
// pgxmock pool satisfy it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ListFilter narrows appointment queries.
type ListFilter struct {
	DoctorID     int64
	PatientEmail string
	Status       Status
	FromDate     string
	ToDate       string
}

const apptColumns = `id, doctor_id, doctor, specialty, to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI'), name, email, phone, status, created_at, updated_at`

// Repository stores appointments and their event log in Postgres.
type Repository struct {
	db DB
}

// NewRepository creates a pgx-backed appointment repository.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{db: db}
}

// Get loads one appointment by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE id = $1`, apptColumns)
	appt, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapStoreErr("get", err)
	}
	return appt, nil
}

// List returns appointments matching the filter, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]*Appointment, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.DoctorID > 0 {
		where = append(where, "doctor_id = "+arg(f.DoctorID))
	}
	if f.PatientEmail != "" {
		where = append(where, "LOWER(email) = "+arg(strings.ToLower(strings.TrimSpace(f.PatientEmail))))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if f.FromDate != "" {
		where = append(where, "date >= "+arg(f.FromDate))
	}
	if f.ToDate != "" {
		where = append(where, "date <= "+arg(f.ToDate))
	}

	query := fmt.Sprintf(`SELECT %s FROM appointments`, apptColumns)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapStoreErr("list", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, mapStoreErr("list scan", err)
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreErr("list rows", err)
	}
	return out, nil
}

// BookedTimes returns the times still occupying slots for a doctor on a date.
func (r *Repository) BookedTimes(ctx context.Context, doctorID int64, date string) ([]string, error) {
	query := `
		SELECT to_char(time, 'HH24:MI')
		FROM appointments
		WHERE doctor_id = $1 AND date = $2 AND status <> 'cancelled'
		ORDER BY time
	`
	rows, err := r.db.Query(ctx, query, doctorID, date)
	if err != nil {
		return nil, mapStoreErr("booked times", err)
	}
	defer rows.Close()

	var times []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, mapStoreErr("booked times scan", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// CreateBooked atomically claims the slot and inserts the appointment. The
// occupancy check locks any competing live row; the partial unique index on
// (doctor_id, date, time) WHERE status <> 'cancelled' backstops races the
// check cannot see. The booked event lands in the same transaction.
func (r *Repository) CreateBooked(ctx context.Context, appt *Appointment) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, mapStoreErr("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var one int
	err = tx.QueryRow(ctx, `
		SELECT 1 FROM appointments
		WHERE doctor_id = $1 AND date = $2 AND time = $3 AND status <> 'cancelled'
		LIMIT 1
		FOR UPDATE
	`, appt.DoctorID, appt.Date, appt.Time).Scan(&one)
	switch {
	case err == nil:
		return nil, ErrSlotTaken
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, mapStoreErr("occupancy check", err)
	}

	insert := fmt.Sprintf(`
		INSERT INTO appointments (doctor_id, doctor, specialty, date, time, name, email, phone, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING %s
	`, apptColumns)
	created, err := scanAppointment(tx.QueryRow(ctx, insert,
		appt.DoctorID, appt.DoctorName, appt.Specialty, appt.Date, appt.Time,
		appt.PatientName, appt.PatientEmail, appt.PatientPhone, string(StatusBooked)))
	if err != nil {
		return nil, mapStoreErr("insert", err)
	}

	if _, err := events.Append(ctx, tx, events.TypeAppointmentBooked, events.AppointmentBookedV1{
		EventID:       uuid.NewString(),
		AppointmentID: created.ID,
		DoctorID:      created.DoctorID,
		DoctorName:    created.DoctorName,
		Specialty:     created.Specialty,
		PatientName:   created.PatientName,
		PatientEmail:  created.PatientEmail,
		PatientPhone:  created.PatientPhone,
		Date:          created.Date,
		Time:          created.Time,
		BookedAt:      created.CreatedAt,
	}); err != nil {
		return nil, mapStoreErr("event", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapStoreErr("commit", err)
	}
	return created, nil
}

// UpdateStatus moves an appointment to a new status. The row is re-read under
// lock so the recorded from-status is authoritative; a same-status update
// bumps updated_at but logs no event.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, to Status, changedBy identity.Role) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, mapStoreErr("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from string
	err = tx.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1 FOR UPDATE`, id).Scan(&from)
	if err != nil {
		return nil, mapStoreErr("lock row", err)
	}

	update := fmt.Sprintf(`
		UPDATE appointments SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING %s
	`, apptColumns)
	updated, err := scanAppointment(tx.QueryRow(ctx, update, id, string(to)))
	if err != nil {
		return nil, mapStoreErr("update status", err)
	}

	if Status(from) != to {
		if _, err := events.Append(ctx, tx, events.TypeAppointmentStatusChanged, events.AppointmentStatusChangedV1{
			EventID:       uuid.NewString(),
			AppointmentID: updated.ID,
			DoctorID:      updated.DoctorID,
			PatientEmail:  updated.PatientEmail,
			FromStatus:    from,
			ToStatus:      string(to),
			ChangedBy:     string(changedBy),
			ChangedAt:     updated.UpdatedAt,
		}); err != nil {
			return nil, mapStoreErr("event", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapStoreErr("commit", err)
	}
	return updated, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*Appointment, error) {
	var (
		appt   Appointment
		status string
	)
	if err := row.Scan(
		&appt.ID, &appt.DoctorID, &appt.DoctorName, &appt.Specialty,
		&appt.Date, &appt.Time,
		&appt.PatientName, &appt.PatientEmail, &appt.PatientPhone,
		&status, &appt.CreatedAt, &appt.UpdatedAt,
	); err != nil {
		return nil, err
	}
	appt.Status = Status(status)
	return &appt, nil
}

func mapStoreErr(op string, err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		return ErrSlotTaken
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn):
		return fmt.Errorf("appointments: %s: %w: %v", op, ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("appointments: %s: %w", op, err)
	}
}
