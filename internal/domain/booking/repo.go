package booking

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists appointments. Create and Update run the conflict probe
// and the write inside one mutual-exclusion scope keyed by (doctor, date), so
// two concurrent overlapping requests cannot both pass the check; they return
// ErrTimeConflict when the probe matches.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
}

// DoctorDirectory answers whether a doctor exists; satisfied by the identity
// service.
type DoctorDirectory interface {
	DoctorExists(ctx context.Context, id uuid.UUID) (bool, error)
}
