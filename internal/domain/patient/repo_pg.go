package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type queryable interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type repoPG struct{ db queryable }

// NewRepoPG accepts a *pgxpool.Pool, a pgx.Tx or anything else that can run
// a single-row query.
func NewRepoPG(db queryable) Repository { return &repoPG{db: db} }

// Cols lists the patient columns in scan order. Other packages use it to
// join patients into their own queries.
const Cols = `id, fullname, phone, created_at, updated_at`

// Scan reads a row produced by a SELECT of Cols.
func Scan(row pgx.Row) (*Patient, error) {
	var p Patient
	if err := row.Scan(&p.ID, &p.Fullname, &p.Phone, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := Scan(r.db.QueryRow(ctx, `SELECT `+Cols+` FROM patient WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient %s: %w", id, err)
	}
	return p, nil
}
