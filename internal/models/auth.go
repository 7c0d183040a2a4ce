package models

import (
	"time"
)

type Login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// VerifyOTPRequest carries the submitted code. Email and SessionToken are
// optional for browser clients, which keep them in the login session.
type VerifyOTPRequest struct {
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	SessionToken string `json:"session_token,omitempty"`
	Code         string `json:"code" validate:"required,numeric,min=4,max=10"`
}

type OTPChallenge struct {
	OK           bool      `json:"ok"`
	Message      string    `json:"message"`
	Email        string    `json:"email"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type LoginResult struct {
	OK             bool      `json:"ok"`
	Message        string    `json:"message"`
	Token          string    `json:"token"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
	Identity       Identity  `json:"identity"`
}

type OTPStatusResponse struct {
	OK               bool      `json:"ok"`
	Status           OTPStatus `json:"status"`
	ExpiresAt        time.Time `json:"expires_at"`
	RemainingSeconds int       `json:"remaining_seconds"`
}
