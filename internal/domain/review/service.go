package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/medibook/medibook/internal/platform/auth"
)

// ErrValidation wraps rejected-input errors so handlers can separate caller
// mistakes (400) from storage failures (500).
var (
	ErrValidation     = errors.New("invalid request")
	ErrNotFound       = errors.New("review not found")
	ErrDoctorNotFound = errors.New("doctor not found")
)

type Service struct {
	reviews Repository
	doctors DoctorDirectory
}

func NewService(reviews Repository, doctors DoctorDirectory) *Service {
	return &Service{reviews: reviews, doctors: doctors}
}

type CreateRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Create attaches a review to the doctor with the principal as author. Rating
// is stored as given; no range check is applied.
func (s *Service) Create(ctx context.Context, p auth.Principal, doctorID uuid.UUID, req CreateRequest) (*Review, error) {
	if req.Comment == "" {
		return nil, fmt.Errorf("%w: comment is required", ErrValidation)
	}
	ok, err := s.doctors.DoctorExists(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDoctorNotFound
	}

	rv := &Review{
		DoctorID: doctorID,
		UserID:   p.UserID,
		Rating:   req.Rating,
		Comment:  req.Comment,
	}
	if err := s.reviews.Create(ctx, rv); err != nil {
		return nil, err
	}
	return rv, nil
}

func (s *Service) Get(ctx context.Context, doctorID, id uuid.UUID) (*Review, error) {
	rv, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Reviews are addressed beneath their doctor; a mismatched doctor reads
	// as absent.
	if rv.DoctorID != doctorID {
		return nil, ErrNotFound
	}
	return rv, nil
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Review, int, error) {
	return s.reviews.ListByDoctor(ctx, doctorID, limit, offset)
}

type UpdateRequest struct {
	Rating  *int    `json:"rating,omitempty"`
	Comment *string `json:"comment,omitempty"`
}

func (s *Service) Update(ctx context.Context, doctorID, id uuid.UUID, req UpdateRequest) (*Review, error) {
	rv, err := s.Get(ctx, doctorID, id)
	if err != nil {
		return nil, err
	}
	if req.Rating != nil {
		rv.Rating = *req.Rating
	}
	if req.Comment != nil {
		rv.Comment = *req.Comment
	}
	if err := s.reviews.Update(ctx, rv); err != nil {
		return nil, err
	}
	return rv, nil
}

func (s *Service) Delete(ctx context.Context, doctorID, id uuid.UUID) error {
	if _, err := s.Get(ctx, doctorID, id); err != nil {
		return err
	}
	return s.reviews.Delete(ctx, id)
}
