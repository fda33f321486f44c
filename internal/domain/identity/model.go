package identity

import (
	"time"

	"github.com/google/uuid"
)

// User maps to the users table. Every account is a User; doctor accounts
// additionally own exactly one Doctor row.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	NICNumber    string    `db:"nic_number" json:"nic_number"`
	Phone        string    `db:"phone" json:"phone"`
	IsDoctor     bool      `db:"is_doctor" json:"is_doctor"`
	Location     *string   `db:"location" json:"location,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Doctor maps to the doctors table, a one-to-one extension of a User.
type Doctor struct {
	ID         uuid.UUID `db:"id" json:"id"`
	UserID     uuid.UUID `db:"user_id" json:"user_id"`
	Email      string    `db:"email" json:"email"`
	Phone      string    `db:"phone" json:"phone"`
	Name       string    `db:"name" json:"name"`
	Speciality string    `db:"speciality" json:"speciality"`
	NICNumber  string    `db:"nic_number" json:"nic_number"`
	Location   *string   `db:"location" json:"location,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
