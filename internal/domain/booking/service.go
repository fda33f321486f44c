package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/medibook/medibook/internal/platform/auth"
)

// Common errors returned by the booking service. ErrValidation wraps every
// rejected-input error so handlers can separate caller mistakes (400) from
// storage failures (500).
var (
	ErrValidation     = errors.New("invalid request")
	ErrNotFound       = errors.New("appointment not found")
	ErrDoctorNotFound = errors.New("doctor not found")
	ErrTimeConflict   = errors.New("the doctor already has an appointment at this time")
)

type Service struct {
	appts   Repository
	doctors DoctorDirectory
}

func NewService(appts Repository, doctors DoctorDirectory) *Service {
	return &Service{appts: appts, doctors: doctors}
}

type CreateRequest struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
}

// Create books an appointment for the principal with the given doctor. Any
// authenticated role may book — a doctor booking with another doctor becomes
// a regular requester. New appointments always start as requested.
func (s *Service) Create(ctx context.Context, p auth.Principal, req CreateRequest) (*Appointment, error) {
	if req.DoctorID == uuid.Nil {
		return nil, fmt.Errorf("%w: doctor_id is required", ErrValidation)
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	clock, err := ParseClock(req.Time)
	if err != nil {
		return nil, err
	}

	ok, err := s.doctors.DoctorExists(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDoctorNotFound
	}

	a := &Appointment{
		DoctorID: req.DoctorID,
		UserID:   p.UserID,
		Date:     date,
		Time:     clock,
		Status:   StatusRequested,
	}
	if err := s.appts.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

type UpdatePatch struct {
	DoctorID *uuid.UUID `json:"doctor_id,omitempty"`
	Date     *string    `json:"date,omitempty"`
	Time     *string    `json:"time,omitempty"`
	Status   *string    `json:"status,omitempty"`
}

// Update applies a partial change to an appointment visible to the principal.
// The conflict probe re-runs on every update with the record excluded from
// its own scan. Status values are checked against the three-state set, but no
// role gate restricts who may transition status; see DESIGN.md.
func (s *Service) Update(ctx context.Context, p auth.Principal, id uuid.UUID, patch UpdatePatch) (*Appointment, error) {
	a, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}

	if patch.DoctorID != nil {
		if *patch.DoctorID == uuid.Nil {
			return nil, fmt.Errorf("%w: doctor_id must not be empty", ErrValidation)
		}
		ok, err := s.doctors.DoctorExists(ctx, *patch.DoctorID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrDoctorNotFound
		}
		a.DoctorID = *patch.DoctorID
	}
	if patch.Date != nil {
		date, err := ParseDate(*patch.Date)
		if err != nil {
			return nil, err
		}
		a.Date = date
	}
	if patch.Time != nil {
		clock, err := ParseClock(*patch.Time)
		if err != nil {
			return nil, err
		}
		a.Time = clock
	}
	if patch.Status != nil {
		if !validStatuses[*patch.Status] {
			return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, *patch.Status)
		}
		a.Status = *patch.Status
	}

	if err := s.appts.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Get returns an appointment scoped to the principal: doctors see their own
// doctor's appointments, everyone else their own bookings. Out-of-scope rows
// read as not found.
func (s *Service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visibleTo(p, a) {
		return nil, ErrNotFound
	}
	return a, nil
}

// List returns the principal's appointments in creation order.
func (s *Service) List(ctx context.Context, p auth.Principal, limit, offset int) ([]*Appointment, int, error) {
	if p.IsDoctor() {
		return s.appts.ListByDoctor(ctx, p.DoctorID, limit, offset)
	}
	return s.appts.ListByUser(ctx, p.UserID, limit, offset)
}

// Delete removes an appointment visible to the principal. No conflict
// re-check applies.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	if _, err := s.Get(ctx, p, id); err != nil {
		return err
	}
	return s.appts.Delete(ctx, id)
}

func visibleTo(p auth.Principal, a *Appointment) bool {
	if p.IsDoctor() {
		return a.DoctorID == p.DoctorID
	}
	return a.UserID == p.UserID
}
