package utils

import (
	"crypto/rand"
	"errors"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
)

// GenerateSecureOTP returns a string of length decimal digits. Bytes >= 250
// are discarded so every digit is equally likely.
func GenerateSecureOTP(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("otp length must be positive")
	}

	const otpChars = "0123456789"
	out := make([]byte, 0, length)
	buffer := make([]byte, length*2)
	for len(out) < length {
		if _, err := io.ReadFull(rand.Reader, buffer); err != nil {
			return "", err
		}
		for _, b := range buffer {
			if b >= 250 {
				continue
			}
			out = append(out, otpChars[int(b)%len(otpChars)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}

// NewSessionToken returns a ULID whose leading 48 bits are the issue time in
// milliseconds. It links verify/resend calls to one issuance; it is not a
// secret and may be shown to the user.
func NewSessionToken(at time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(at), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// SessionTokenTime extracts the issue time encoded in a session token.
func SessionTokenTime(token string) (time.Time, error) {
	id, err := ulid.ParseStrict(token)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(id.Time()).UTC(), nil
}
