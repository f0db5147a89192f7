package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dentflow/dentflow/internal/domain/patient"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ db queryable }

// NewRepoPG accepts a *pgxpool.Pool or a pgx.Tx.
func NewRepoPG(db queryable) Repository { return &repoPG{db: db} }

const cols = `id, patient_id, dent_number, diagnosis, price, date, time, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DentNumber, &a.Diagnosis, &a.Price,
		&a.Date, &a.Time, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	id, err := newID()
	if err != nil {
		return err
	}
	a.ID = id
	err = r.db.QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, dent_number, diagnosis, price, date, time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DentNumber, a.Diagnosis, a.Price, a.Date, a.Time,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, `SELECT `+cols+` FROM appointment WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get appointment %s: %w", id, err)
	}
	return a, err
}

// Update leaves a column alone when its parameter is NULL.
func (r *repoPG) Update(ctx context.Context, id uuid.UUID, f Fields) (*Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, `
		UPDATE appointment SET
			dent_number = COALESCE($2, dent_number),
			diagnosis   = COALESCE($3, diagnosis),
			price       = COALESCE($4, price),
			date        = COALESCE($5, date),
			time        = COALESCE($6, time),
			updated_at  = NOW()
		WHERE id = $1
		RETURNING `+cols,
		id, f.DentNumber, f.Diagnosis, f.Price, f.Date, f.Time))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("update appointment %s: %w", id, err)
	}
	return a, err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, `DELETE FROM appointment WHERE id = $1 RETURNING `+cols, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("delete appointment %s: %w", id, err)
	}
	return a, err
}

func (r *repoPG) ListWithPatient(ctx context.Context) ([]*Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.patient_id, a.dent_number, a.diagnosis, a.price, a.date, a.time,
			a.created_at, a.updated_at,
			p.id, p.fullname, p.phone, p.created_at, p.updated_at
		FROM appointment a
		LEFT JOIN patient p ON p.id = a.patient_id
		ORDER BY a.created_at, a.id`)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		var (
			a          Appointment
			pid        *uuid.UUID
			pName      *string
			pPhone     *string
			pCreatedAt *time.Time
			pUpdatedAt *time.Time
		)
		if err := rows.Scan(&a.ID, &a.PatientID, &a.DentNumber, &a.Diagnosis, &a.Price,
			&a.Date, &a.Time, &a.CreatedAt, &a.UpdatedAt,
			&pid, &pName, &pPhone, &pCreatedAt, &pUpdatedAt); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		if pid != nil {
			a.Patient = &patient.Patient{ID: *pid}
			if pName != nil {
				a.Patient.Fullname = *pName
			}
			if pPhone != nil {
				a.Patient.Phone = *pPhone
			}
			if pCreatedAt != nil {
				a.Patient.CreatedAt = *pCreatedAt
			}
			if pUpdatedAt != nil {
				a.Patient.UpdatedAt = *pUpdatedAt
			}
		}
		items = append(items, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return items, nil
}
