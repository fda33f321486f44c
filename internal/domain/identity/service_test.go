package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/medibook/internal/platform/auth"
)

type mockUserRepo struct {
	users map[uuid.UUID]*User
	order []uuid.UUID
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*User)}
}

func (r *mockUserRepo) Create(ctx context.Context, u *User) error {
	for _, existing := range r.users {
		if existing.Username == u.Username || existing.NICNumber == u.NICNumber {
			return ErrDuplicate
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	r.users[u.ID] = &cp
	r.order = append(r.order, u.ID)
	return nil
}

func (r *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *mockUserRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *mockUserRepo) Update(ctx context.Context, u *User) error {
	if _, ok := r.users[u.ID]; !ok {
		return ErrNotFound
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *mockUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *mockUserRepo) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var all []*User
	for _, id := range r.order {
		if u, ok := r.users[id]; ok {
			cp := *u
			all = append(all, &cp)
		}
	}
	total := len(all)
	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

// mockDoctorRepo mirrors the SQL repository's contract: Create and Delete
// also maintain the backing user's doctor flag, all-or-nothing.
type mockDoctorRepo struct {
	users   *mockUserRepo
	doctors map[uuid.UUID]*Doctor
	order   []uuid.UUID
}

func newMockDoctorRepo(users *mockUserRepo) *mockDoctorRepo {
	return &mockDoctorRepo{users: users, doctors: make(map[uuid.UUID]*Doctor)}
}

func (r *mockDoctorRepo) Create(ctx context.Context, d *Doctor) error {
	for _, existing := range r.doctors {
		if existing.UserID == d.UserID || existing.Email == d.Email {
			return ErrDuplicate
		}
	}
	u, ok := r.users.users[d.UserID]
	if !ok {
		return ErrNotFound
	}
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	cp := *d
	r.doctors[d.ID] = &cp
	r.order = append(r.order, d.ID)
	u.IsDoctor = true
	return nil
}

func (r *mockDoctorRepo) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *mockDoctorRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	for _, d := range r.doctors {
		if d.UserID == userID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *mockDoctorRepo) Update(ctx context.Context, d *Doctor) error {
	if _, ok := r.doctors[d.ID]; !ok {
		return ErrNotFound
	}
	cp := *d
	r.doctors[d.ID] = &cp
	return nil
}

func (r *mockDoctorRepo) Delete(ctx context.Context, id uuid.UUID) error {
	d, ok := r.doctors[id]
	if !ok {
		return ErrNotFound
	}
	if u, ok := r.users.users[d.UserID]; ok {
		u.IsDoctor = false
	}
	delete(r.doctors, id)
	return nil
}

func (r *mockDoctorRepo) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	var all []*Doctor
	for _, id := range r.order {
		if d, ok := r.doctors[id]; ok {
			cp := *d
			all = append(all, &cp)
		}
	}
	total := len(all)
	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func newTestService() (*Service, *mockUserRepo, *mockDoctorRepo) {
	users := newMockUserRepo()
	doctors := newMockDoctorRepo(users)
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	return NewService(users, doctors, tokens), users, doctors
}

func registerUser(t *testing.T, svc *Service, username string) *User {
	t.Helper()
	u, err := svc.Register(context.Background(), RegisterUserRequest{
		Username:  username,
		Password:  "s3cret",
		NICNumber: "nic-" + username,
		Phone:     "071" + username,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return u
}

func TestRegister_HashesPassword(t *testing.T) {
	svc, users, _ := newTestService()
	u := registerUser(t, svc, "alice")

	stored, err := users.GetByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.PasswordHash == "s3cret" || stored.PasswordHash == "" {
		t.Error("expected password to be stored hashed")
	}
	if !auth.CheckPassword(stored.PasswordHash, "s3cret") {
		t.Error("expected stored hash to verify against the password")
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cases := []RegisterUserRequest{
		{Password: "x", NICNumber: "n", Phone: "p"},
		{Username: "u", NICNumber: "n", Phone: "p"},
		{Username: "u", Password: "x", Phone: "p"},
		{Username: "u", Password: "x", NICNumber: "n"},
	}
	for i, req := range cases {
		if _, err := svc.Register(ctx, req); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestRegister_Duplicate(t *testing.T) {
	svc, _, _ := newTestService()
	registerUser(t, svc, "alice")

	_, err := svc.Register(context.Background(), RegisterUserRequest{
		Username: "alice", Password: "x", NICNumber: "other", Phone: "other",
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestUpdateUser_RehashesPassword(t *testing.T) {
	svc, users, _ := newTestService()
	u := registerUser(t, svc, "alice")

	newPass := "changed"
	if _, err := svc.UpdateUser(context.Background(), u.ID, UpdateUserRequest{Password: &newPass}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ := users.GetByID(context.Background(), u.ID)
	if !auth.CheckPassword(stored.PasswordHash, "changed") {
		t.Error("expected updated hash to verify against the new password")
	}
	if auth.CheckPassword(stored.PasswordHash, "s3cret") {
		t.Error("old password should no longer verify")
	}
}

func TestRegisterDoctor_FlipsUserFlag(t *testing.T) {
	svc, users, _ := newTestService()
	u := registerUser(t, svc, "drbob")

	d, err := svc.RegisterDoctor(context.Background(), RegisterDoctorRequest{
		UserID: u.ID, Email: "bob@clinic.example", Name: "Dr. Bob", Speciality: "cardiology",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.UserID != u.ID {
		t.Errorf("expected doctor linked to user %s", u.ID)
	}

	stored, _ := users.GetByID(context.Background(), u.ID)
	if !stored.IsDoctor {
		t.Error("expected user flagged as doctor after registration")
	}
}

func TestRegisterDoctor_FailureLeavesUserUnflagged(t *testing.T) {
	svc, users, _ := newTestService()
	a := registerUser(t, svc, "dra")
	b := registerUser(t, svc, "drb")

	if _, err := svc.RegisterDoctor(context.Background(), RegisterDoctorRequest{
		UserID: a.ID, Email: "shared@clinic.example", Name: "Dr. A", Speciality: "gp",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Duplicate email: the whole registration must fail, leaving b's account
	// untouched rather than half-registered.
	_, err := svc.RegisterDoctor(context.Background(), RegisterDoctorRequest{
		UserID: b.ID, Email: "shared@clinic.example", Name: "Dr. B", Speciality: "gp",
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	stored, _ := users.GetByID(context.Background(), b.ID)
	if stored.IsDoctor {
		t.Error("failed registration must not flag the user as a doctor")
	}
}

func TestDeleteDoctor_RestoresUserLogin(t *testing.T) {
	svc, users, _ := newTestService()
	u := registerUser(t, svc, "drbob")
	d, err := svc.RegisterDoctor(context.Background(), RegisterDoctorRequest{
		UserID: u.ID, Email: "bob@clinic.example", Name: "Dr. Bob", Speciality: "cardiology",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.DeleteDoctor(context.Background(), d.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ := users.GetByID(context.Background(), u.ID)
	if stored.IsDoctor {
		t.Error("expected doctor flag cleared after profile deletion")
	}

	// The account must still log in, now as a plain user.
	res, err := svc.Login(context.Background(), "drbob", "s3cret")
	if err != nil {
		t.Fatalf("login after doctor deletion failed: %v", err)
	}
	if res.Role != auth.RoleUser || res.Doctor != nil || res.User == nil {
		t.Errorf("expected plain user login, got %+v", res)
	}
}

func TestRegisterDoctor_UnknownUser(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.RegisterDoctor(context.Background(), RegisterDoctorRequest{
		UserID: uuid.New(), Email: "x@example.com", Name: "X", Speciality: "gp",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDoctorExists(t *testing.T) {
	svc, _, _ := newTestService()
	u := registerUser(t, svc, "drbob")
	d, err := svc.RegisterDoctor(context.Background(), RegisterDoctorRequest{
		UserID: u.ID, Email: "bob@clinic.example", Name: "Dr. Bob", Speciality: "cardiology",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := svc.DoctorExists(context.Background(), d.ID)
	if err != nil || !ok {
		t.Errorf("expected doctor to exist, got ok=%v err=%v", ok, err)
	}
	ok, err = svc.DoctorExists(context.Background(), uuid.New())
	if err != nil || ok {
		t.Errorf("expected unknown doctor to not exist, got ok=%v err=%v", ok, err)
	}
}

func TestLogin_AsUser(t *testing.T) {
	svc, _, _ := newTestService()
	u := registerUser(t, svc, "alice")

	res, err := svc.Login(context.Background(), "alice", "s3cret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Role != auth.RoleUser {
		t.Errorf("expected role user, got %s", res.Role)
	}
	if res.User == nil || res.User.ID != u.ID {
		t.Error("expected user profile in result")
	}
	if res.Doctor != nil {
		t.Error("expected no doctor profile for plain user")
	}
	if res.Token == "" || len(strings.Split(res.Token, ".")) != 3 {
		t.Error("expected signed JWT in result")
	}

	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	p, err := tokens.Parse(res.Token)
	if err != nil {
		t.Fatalf("token did not verify: %v", err)
	}
	if p.UserID != u.ID || p.Role != auth.RoleUser || p.DoctorID != uuid.Nil {
		t.Errorf("unexpected principal: %+v", p)
	}
}

func TestLogin_AsDoctor(t *testing.T) {
	svc, _, _ := newTestService()
	u := registerUser(t, svc, "drbob")
	d, err := svc.RegisterDoctor(context.Background(), RegisterDoctorRequest{
		UserID: u.ID, Email: "bob@clinic.example", Name: "Dr. Bob", Speciality: "cardiology",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := svc.Login(context.Background(), "drbob", "s3cret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Role != auth.RoleDoctor {
		t.Errorf("expected role doctor, got %s", res.Role)
	}
	if res.Doctor == nil || res.Doctor.ID != d.ID {
		t.Error("expected doctor profile in result")
	}
	if res.User != nil {
		t.Error("expected no user profile for doctor login")
	}

	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	p, err := tokens.Parse(res.Token)
	if err != nil {
		t.Fatalf("token did not verify: %v", err)
	}
	if p.Role != auth.RoleDoctor || p.DoctorID != d.ID {
		t.Errorf("unexpected principal: %+v", p)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	svc, _, _ := newTestService()
	registerUser(t, svc, "alice")

	if _, err := svc.Login(context.Background(), "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "nobody", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}
