package doctors

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

const doctorColumns = `id, full_name, email, specialty, phone, is_active,
	availability_days, availability_start, availability_end, created_at, updated_at`

// PostgresRepository stores doctors in the relational database.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository initializes a repo backed by database/sql.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	if db == nil {
		panic("doctors: db required")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors`
	var where []string
	var args []any
	if filter.ActiveOnly {
		where = append(where, "is_active = TRUE")
	}
	if filter.Specialty != "" {
		args = append(args, strings.ToLower(strings.TrimSpace(filter.Specialty)))
		where = append(where, fmt.Sprintf("LOWER(specialty) = $%d", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapStoreErr("doctors: list", err)
	}
	defer rows.Close()

	out := []*Doctor{}
	for rows.Next() {
		doc, err := scanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("doctors: scan: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*Doctor, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id)
	doc, err := scanDoctor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, mapStoreErr("doctors: get", err)
	}
	return doc, nil
}

func (r *PostgresRepository) Create(ctx context.Context, doc *Doctor) (*Doctor, error) {
	query := `
		INSERT INTO doctors
			(full_name, email, specialty, phone, is_active,
			 availability_days, availability_start, availability_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + doctorColumns
	row := r.db.QueryRowContext(ctx, query,
		doc.FullName,
		strings.ToLower(doc.Email),
		doc.Specialty,
		nullable(doc.Phone),
		doc.IsActive,
		pq.Array(daysToStrings(doc.Window.Days)),
		int(doc.Window.Start),
		int(doc.Window.End),
	)
	created, err := scanDoctor(row)
	if err != nil {
		return nil, mapStoreErr("doctors: insert", err)
	}
	return created, nil
}

func (r *PostgresRepository) Update(ctx context.Context, doc *Doctor) (*Doctor, error) {
	query := `
		UPDATE doctors SET
			full_name = $2,
			email = $3,
			specialty = $4,
			phone = $5,
			is_active = $6,
			availability_days = $7,
			availability_start = $8,
			availability_end = $9,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + doctorColumns
	row := r.db.QueryRowContext(ctx, query,
		doc.ID,
		doc.FullName,
		strings.ToLower(doc.Email),
		doc.Specialty,
		nullable(doc.Phone),
		doc.IsActive,
		pq.Array(daysToStrings(doc.Window.Days)),
		int(doc.Window.Start),
		int(doc.Window.End),
	)
	updated, err := scanDoctor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, mapStoreErr("doctors: update", err)
	}
	return updated, nil
}

func (r *PostgresRepository) SetActive(ctx context.Context, id int64, active bool) (*Doctor, error) {
	query := `
		UPDATE doctors SET is_active = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + doctorColumns
	row := r.db.QueryRowContext(ctx, query, id, active)
	updated, err := scanDoctor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, mapStoreErr("doctors: set active", err)
	}
	return updated, nil
}

func (r *PostgresRepository) EmailInUse(ctx context.Context, email string, excludeID int64) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM doctors WHERE LOWER(email) = $1 AND id <> $2 LIMIT 1`,
		strings.ToLower(strings.TrimSpace(email)), excludeID,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapStoreErr("doctors: email lookup", err)
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDoctor(row rowScanner) (*Doctor, error) {
	var doc Doctor
	var phone sql.NullString
	var days []string
	var start, end int
	if err := row.Scan(
		&doc.ID,
		&doc.FullName,
		&doc.Email,
		&doc.Specialty,
		&phone,
		&doc.IsActive,
		pq.Array(&days),
		&start,
		&end,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	doc.Phone = phone.String
	doc.Window = AvailabilityWindow{
		Days:  stringsToDays(days),
		Start: Clock(start),
		End:   Clock(end),
	}
	return &doc, nil
}

func daysToStrings(days []Weekday) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = string(d)
	}
	return out
}

func stringsToDays(raw []string) []Weekday {
	out := make([]Weekday, 0, len(raw))
	for _, s := range raw {
		if day, ok := ParseWeekday(s); ok {
			out = append(out, day)
		}
	}
	return SortDays(out)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func mapStoreErr(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrEmailTaken
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ Repository = (*PostgresRepository)(nil)
