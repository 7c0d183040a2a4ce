package models

import (
	"time"
)

type OTPStatus string

const (
	OTPStatusPending  OTPStatus = "pending"
	OTPStatusVerified OTPStatus = "verified"
	OTPStatusExpired  OTPStatus = "expired"
	OTPStatusRevoked  OTPStatus = "revoked"
)

func (s OTPStatus) String() string {
	return string(s)
}

// OTPRecord is one issued code, keyed by (Email, SessionToken). Records are
// kept after use for auditing.
type OTPRecord struct {
	Email        string     `bson:"email" json:"email"`
	SessionToken string     `bson:"session_token" json:"session_token"`
	Code         string     `bson:"code" json:"-"`
	Status       OTPStatus  `bson:"status" json:"status"`
	IssuedAt     time.Time  `bson:"issued_at" json:"issued_at"`
	ExpiresAt    time.Time  `bson:"expires_at" json:"expires_at"`
	VerifiedAt   *time.Time `bson:"verified_at,omitempty" json:"verified_at,omitempty"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
}

// IsExpired reports whether now is at or past the expiry instant.
func (r *OTPRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Remaining is the time left before expiry, never negative.
func (r *OTPRecord) Remaining(now time.Time) time.Duration {
	if r.IsExpired(now) {
		return 0
	}
	return r.ExpiresAt.Sub(now)
}
