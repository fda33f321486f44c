package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/medibook/medibook/internal/platform/auth"
)

// Common errors returned by the identity service. ErrValidation wraps every
// rejected-input error so handlers can separate caller mistakes (400) from
// storage failures (500).
var (
	ErrValidation         = errors.New("invalid request")
	ErrNotFound           = errors.New("record not found")
	ErrDuplicate          = errors.New("record already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

type Service struct {
	users   UserRepository
	doctors DoctorRepository
	tokens  *auth.TokenIssuer
}

func NewService(users UserRepository, doctors DoctorRepository, tokens *auth.TokenIssuer) *Service {
	return &Service{users: users, doctors: doctors, tokens: tokens}
}

// -- Users --

type RegisterUserRequest struct {
	Username  string  `json:"username"`
	Password  string  `json:"password"`
	NICNumber string  `json:"nic_number"`
	Phone     string  `json:"phone"`
	IsDoctor  bool    `json:"is_doctor"`
	Location  *string `json:"location,omitempty"`
}

func (s *Service) Register(ctx context.Context, req RegisterUserRequest) (*User, error) {
	if req.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}
	if req.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrValidation)
	}
	if req.NICNumber == "" {
		return nil, fmt.Errorf("%w: nic_number is required", ErrValidation)
	}
	if req.Phone == "" {
		return nil, fmt.Errorf("%w: phone is required", ErrValidation)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		Username:     req.Username,
		PasswordHash: hash,
		NICNumber:    req.NICNumber,
		Phone:        req.Phone,
		IsDoctor:     req.IsDoctor,
		Location:     req.Location,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

type UpdateUserRequest struct {
	Phone    *string `json:"phone,omitempty"`
	Location *string `json:"location,omitempty"`
	Password *string `json:"password,omitempty"`
}

func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Phone != nil {
		u.Phone = *req.Phone
	}
	if req.Location != nil {
		u.Location = req.Location
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.users.Delete(ctx, id)
}

// -- Doctors --

type RegisterDoctorRequest struct {
	UserID     uuid.UUID `json:"user_id"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Name       string    `json:"name"`
	Speciality string    `json:"speciality"`
	NICNumber  string    `json:"nic_number"`
	Location   *string   `json:"location,omitempty"`
}

// RegisterDoctor creates the doctor row backing an existing user account. The
// repository inserts the row and flips the account's doctor flag in one
// transaction; the unique user_id constraint keeps the relation one-to-one.
func (s *Service) RegisterDoctor(ctx context.Context, req RegisterDoctorRequest) (*Doctor, error) {
	if req.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	if req.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if req.Speciality == "" {
		return nil, fmt.Errorf("%w: speciality is required", ErrValidation)
	}

	if _, err := s.users.GetByID(ctx, req.UserID); err != nil {
		return nil, err
	}

	d := &Doctor{
		UserID:     req.UserID,
		Email:      req.Email,
		Phone:      req.Phone,
		Name:       req.Name,
		Speciality: req.Speciality,
		NICNumber:  req.NICNumber,
		Location:   req.Location,
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, limit, offset)
}

// DoctorExists reports whether a doctor row exists. It satisfies the
// DoctorDirectory interfaces of the review and booking packages.
func (s *Service) DoctorExists(ctx context.Context, id uuid.UUID) (bool, error) {
	if _, err := s.doctors.GetByID(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type UpdateDoctorRequest struct {
	Email      *string `json:"email,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Name       *string `json:"name,omitempty"`
	Speciality *string `json:"speciality,omitempty"`
	Location   *string `json:"location,omitempty"`
}

func (s *Service) UpdateDoctor(ctx context.Context, id uuid.UUID, req UpdateDoctorRequest) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Email != nil {
		d.Email = *req.Email
	}
	if req.Phone != nil {
		d.Phone = *req.Phone
	}
	if req.Name != nil {
		d.Name = *req.Name
	}
	if req.Speciality != nil {
		d.Speciality = *req.Speciality
	}
	if req.Location != nil {
		d.Location = req.Location
	}
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	return s.doctors.Delete(ctx, id)
}

// -- Login --

// LoginResult is the tagged response of a successful login: Role selects
// which profile field is populated.
type LoginResult struct {
	Token  string  `json:"token"`
	Role   string  `json:"role"`
	User   *User   `json:"user,omitempty"`
	Doctor *Doctor `json:"doctor,omitempty"`
}

func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	p := auth.Principal{UserID: u.ID, Role: auth.RoleUser}
	res := &LoginResult{Role: auth.RoleUser, User: u}

	if u.IsDoctor {
		d, err := s.doctors.GetByUserID(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("load doctor profile: %w", err)
		}
		p.Role = auth.RoleDoctor
		p.DoctorID = d.ID
		res.Role = auth.RoleDoctor
		res.User = nil
		res.Doctor = d
	}

	token, err := s.tokens.Issue(p)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	res.Token = token
	return res, nil
}
