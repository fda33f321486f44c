package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medibook/medibook/internal/platform/auth"
)

// brokenUserRepo fails every operation the way a dead database would.
type brokenUserRepo struct{}

var errStorage = errors.New("begin: connection refused")

func (brokenUserRepo) Create(context.Context, *User) error { return errStorage }
func (brokenUserRepo) GetByID(context.Context, uuid.UUID) (*User, error) {
	return nil, errStorage
}
func (brokenUserRepo) GetByUsername(context.Context, string) (*User, error) {
	return nil, errStorage
}
func (brokenUserRepo) Update(context.Context, *User) error { return errStorage }
func (brokenUserRepo) Delete(context.Context, uuid.UUID) error {
	return errStorage
}
func (brokenUserRepo) List(context.Context, int, int) ([]*User, int, error) {
	return nil, 0, errStorage
}

func newTestContext(t *testing.T, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}

func TestHandlerRegister(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)

	body := `{"username":"alice","password":"s3cret","nic_number":"991234567V","phone":"0711234567"}`
	c, rec := newTestContext(t, http.MethodPost, "/users", body)
	if err := h.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	// Password hash never leaves the API.
	if strings.Contains(rec.Body.String(), "s3cret") || strings.Contains(rec.Body.String(), "password_hash") {
		t.Error("response must not expose password material")
	}
}

func TestHandlerRegister_Duplicate(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)

	body := `{"username":"alice","password":"s3cret","nic_number":"991234567V","phone":"0711234567"}`
	c, _ := newTestContext(t, http.MethodPost, "/users", body)
	if err := h.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, _ = newTestContext(t, http.MethodPost, "/users", body)
	if httpCode(t, h.Register(c)) != http.StatusConflict {
		t.Error("expected 409 for duplicate registration")
	}
}

func TestHandlerRegister_StorageFailureIsOpaque(t *testing.T) {
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	svc := NewService(brokenUserRepo{}, newMockDoctorRepo(newMockUserRepo()), tokens)
	h := NewHandler(svc)

	body := `{"username":"alice","password":"s3cret","nic_number":"991234567V","phone":"0711234567"}`
	c, _ := newTestContext(t, http.MethodPost, "/users", body)
	err := h.Register(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for storage failure, got %v", err)
	}
	if msg, _ := he.Message.(string); msg != "internal server error" {
		t.Errorf("expected opaque message, got %q", msg)
	}
	if !errors.Is(he.Internal, errStorage) {
		t.Error("expected the cause preserved on Internal for the request log")
	}
}

func TestHandlerRegister_MissingFields(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)

	c, _ := newTestContext(t, http.MethodPost, "/users", `{"username":"alice"}`)
	if httpCode(t, h.Register(c)) != http.StatusBadRequest {
		t.Error("expected 400 for incomplete registration")
	}
}

func TestHandlerLogin(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	registerUser(t, svc, "alice")

	c, rec := newTestContext(t, http.MethodPost, "/login", `{"username":"alice","password":"s3cret"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var res LoginResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if res.Token == "" || res.Role != "user" || res.User == nil {
		t.Errorf("unexpected login result: %+v", res)
	}
}

func TestHandlerLogin_Rejections(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	registerUser(t, svc, "alice")

	c, _ := newTestContext(t, http.MethodPost, "/login", `{"username":"alice","password":"wrong"}`)
	if httpCode(t, h.Login(c)) != http.StatusUnauthorized {
		t.Error("expected 401 for bad password")
	}
	c, _ = newTestContext(t, http.MethodPost, "/login", `{"username":"alice"}`)
	if httpCode(t, h.Login(c)) != http.StatusBadRequest {
		t.Error("expected 400 for missing password")
	}
}

func TestHandlerRegisterDoctor(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	u := registerUser(t, svc, "drbob")

	body := `{"user_id":"` + u.ID.String() + `","email":"bob@clinic.example","name":"Dr. Bob","speciality":"cardiology"}`
	c, rec := newTestContext(t, http.MethodPost, "/doctors", body)
	if err := h.RegisterDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	// Second doctor row for the same user violates the one-to-one relation.
	c, _ = newTestContext(t, http.MethodPost, "/doctors", body)
	if httpCode(t, h.RegisterDoctor(c)) != http.StatusConflict {
		t.Error("expected 409 for second doctor registration")
	}
}

func TestHandlerGetDoctor_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)

	c, _ := newTestContext(t, http.MethodGet, "/doctors/00000000-0000-0000-0000-000000000001", "")
	c.SetParamNames("id")
	c.SetParamValues("00000000-0000-0000-0000-000000000001")
	if httpCode(t, h.GetDoctor(c)) != http.StatusNotFound {
		t.Error("expected 404 for unknown doctor")
	}
}

func TestHandlerListDoctors(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	for _, name := range []string{"drbob", "drsue"} {
		u := registerUser(t, svc, name)
		body := `{"user_id":"` + u.ID.String() + `","email":"` + name + `@clinic.example","name":"` + name + `","speciality":"gp"}`
		c, _ := newTestContext(t, http.MethodPost, "/doctors", body)
		if err := h.RegisterDoctor(c); err != nil {
			t.Fatalf("register doctor %s: %v", name, err)
		}
	}

	c, rec := newTestContext(t, http.MethodGet, "/doctors?limit=1&offset=1", "")
	if err := h.ListDoctors(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data  []Doctor `json:"data"`
		Total int      `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Total != 2 || len(resp.Data) != 1 {
		t.Errorf("unexpected page: total=%d len=%d", resp.Total, len(resp.Data))
	}
}
