package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("patient not found")

// Repository is the read-only patient lookup.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
}
