package models

import (
	"time"
)

// Identity is a placement coordinator account. Accounts are provisioned by an
// administrator; this service only reads them.
type Identity struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	RollNumber   string    `json:"roll_number,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Public returns a copy without the password hash.
func (i Identity) Public() Identity {
	i.PasswordHash = ""
	return i
}
