package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("appointment not found")

// Repository persists appointments. Every method that targets a single id
// returns ErrNotFound when no record has it.
type Repository interface {
	// Create assigns ID and timestamps and stores a.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// Update sets the non-nil fields and returns the updated record.
	Update(ctx context.Context, id uuid.UUID, f Fields) (*Appointment, error)
	// Delete removes the record and returns it as it was.
	Delete(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// ListWithPatient returns every appointment in insertion order with
	// Patient resolved. Appointments whose patient is gone have Patient nil.
	ListWithPatient(ctx context.Context) ([]*Appointment, error)
}
