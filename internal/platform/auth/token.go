package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles carried in access tokens. A doctor principal additionally references
// the doctor row backing the user account.
const (
	RoleUser   = "user"
	RoleDoctor = "doctor"
)

var ErrBadToken = errors.New("invalid token")

// Principal is the authenticated actor making a request. DoctorID is only set
// when Role is RoleDoctor.
type Principal struct {
	UserID   uuid.UUID
	Role     string
	DoctorID uuid.UUID
}

func (p Principal) IsDoctor() bool { return p.Role == RoleDoctor }

type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	DoctorID string `json:"doctor_id,omitempty"`
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

func (ti *TokenIssuer) Issue(p Principal) (string, error) {
	now := time.Now()
	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
		Role: p.Role,
	}
	if p.DoctorID != uuid.Nil {
		c.DoctorID = p.DoctorID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(ti.secret)
}

func (ti *TokenIssuer) Parse(raw string) (Principal, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		// Block algorithm confusion
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return ti.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return Principal{}, ErrBadToken
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, ErrBadToken
	}
	p := Principal{UserID: uid, Role: claims.Role}
	if claims.DoctorID != "" {
		did, err := uuid.Parse(claims.DoctorID)
		if err != nil {
			return Principal{}, ErrBadToken
		}
		p.DoctorID = did
	}
	return p, nil
}
