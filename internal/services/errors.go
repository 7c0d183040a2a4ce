package services

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrNotFound = errors.New("otp record not found")
	// ErrIdentityNotFound is a NotFound raised before any record exists.
	ErrIdentityNotFound   = fmt.Errorf("%w: no coordinator with this email", ErrNotFound)
	ErrExpired            = errors.New("otp expired")
	ErrAlreadyUsed        = errors.New("otp already used")
	ErrRevoked            = errors.New("otp revoked")
	ErrMismatch           = errors.New("otp mismatch")
	ErrDispatch           = errors.New("otp email could not be sent")
	ErrPersistence        = errors.New("otp could not be stored")
	// ErrConcurrentIssue means another issuance for the email won the race.
	ErrConcurrentIssue    = errors.New("otp issued concurrently")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// CooldownError is returned by Resend while the previous code is too recent.
type CooldownError struct {
	Wait time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("resend cooldown active for %s", e.Wait)
}

// Seconds rounds the wait up so callers never retry early.
func (e *CooldownError) Seconds() int {
	return int(math.Ceil(e.Wait.Seconds()))
}

// Message returns the text shown to the coordinator for err.
func Message(err error) string {
	var cooldown *CooldownError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cooldown):
		return fmt.Sprintf("Please wait %d seconds before requesting a new OTP.", cooldown.Seconds())
	case errors.Is(err, ErrIdentityNotFound):
		return "No coordinator account is registered with this email."
	case errors.Is(err, ErrNotFound):
		return "No OTP record found. Please request a new OTP."
	case errors.Is(err, ErrExpired):
		return "OTP has expired. Please request a new OTP."
	case errors.Is(err, ErrAlreadyUsed):
		return "This OTP has already been used. Please log in again."
	case errors.Is(err, ErrRevoked):
		return "A newer OTP has been sent. Please use the latest code from your email."
	case errors.Is(err, ErrMismatch):
		return "Invalid OTP. Please check and try again."
	case errors.Is(err, ErrConcurrentIssue):
		return "An OTP was just sent for this email. Please use the latest code from your email."
	case errors.Is(err, ErrDispatch):
		return "Failed to send OTP email. Please try again."
	case errors.Is(err, ErrPersistence):
		return "Could not process your OTP right now. Please try again."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	default:
		return "Something went wrong. Please try again."
	}
}
