package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const foreignKeyViolation = "23503"

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func mapPGError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return ErrDoctorNotFound
	}
	return err
}

const apptCols = `id, doctor_id, user_id, to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI:SS'), status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.DoctorID, &a.UserID, &a.Date, &a.Time, &a.Status,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapPGError(err)
	}
	return &a, nil
}

// lockSchedule serializes all conflict-checked writes for one (doctor, date)
// pair for the remainder of the transaction. This closes the gap between the
// conflict probe and the write: a concurrent request for the same doctor and
// date blocks here until the first transaction commits, then sees its row.
func lockSchedule(ctx context.Context, tx pgx.Tx, doctorID uuid.UUID, date string) error {
	_, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1 || ':' || $2, 0))`,
		doctorID.String(), date)
	if err != nil {
		return fmt.Errorf("acquire schedule lock: %w", err)
	}
	return nil
}

// hasOverlap probes for another appointment of the same doctor on the same
// date whose time falls inside the inclusive ±60 minute window. Near
// midnight the window bounds wrap in time-of-day space (lo > hi) and the
// probe matches nothing; see ConflictWindow.
func hasOverlap(ctx context.Context, tx pgx.Tx, a *Appointment, excludeID uuid.UUID) (bool, error) {
	lo, hi, err := ConflictWindow(a.Time)
	if err != nil {
		return false, err
	}
	var exists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS(
		SELECT 1 FROM appointments
		WHERE doctor_id = $1
		  AND date = $2::date
		  AND time >= $3::time
		  AND time <= $4::time
		  AND id <> $5)`,
		a.DoctorID, a.Date, lo, hi, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("conflict probe: %w", err)
	}
	return exists, nil
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockSchedule(ctx, tx, a.DoctorID, a.Date); err != nil {
		return err
	}
	overlap, err := hasOverlap(ctx, tx, a, uuid.Nil)
	if err != nil {
		return err
	}
	if overlap {
		return ErrTimeConflict
	}

	a.ID = uuid.New()
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, user_id, date, time, status)
		VALUES ($1,$2,$3,$4::date,$5::time,$6)
		RETURNING created_at, updated_at`,
		a.ID, a.DoctorID, a.UserID, a.Date, a.Time, a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return mapPGError(err)
	}

	return tx.Commit(ctx)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.pool.QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockSchedule(ctx, tx, a.DoctorID, a.Date); err != nil {
		return err
	}
	overlap, err := hasOverlap(ctx, tx, a, a.ID)
	if err != nil {
		return err
	}
	if overlap {
		return ErrTimeConflict
	}

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET doctor_id=$2, date=$3::date, time=$4::time, status=$5, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.DoctorID, a.Date, a.Time, a.Status)
	if err != nil {
		return mapPGError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return mapPGError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, `doctor_id`, doctorID, limit, offset)
}

func (r *repoPG) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, `user_id`, userID, limit, offset)
}

func (r *repoPG) list(ctx context.Context, col string, id uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE `+col+` = $1`, id).Scan(&total); err != nil {
		return nil, 0, mapPGError(err)
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE `+col+` = $1 ORDER BY created_at LIMIT $2 OFFSET $3`,
		id, limit, offset)
	if err != nil {
		return nil, 0, mapPGError(err)
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
