package models

import (
	"time"
)

type ActivityType string

const (
	ActivityCredentialVerified ActivityType = "credential_verified"
	ActivityCredentialFailed   ActivityType = "credential_failed"
	ActivityOTPIssued          ActivityType = "otp_issued"
	ActivityOTPResent          ActivityType = "otp_resent"
	ActivityOTPDispatchFailed  ActivityType = "otp_dispatch_failed"
	ActivityOTPVerified        ActivityType = "otp_verified"
	ActivityOTPFailed          ActivityType = "otp_failed"
	ActivityLoginSuccess       ActivityType = "login_success"
	ActivityLogout             ActivityType = "logout"
)

// Activity is one row of the coordinator audit trail.
type Activity struct {
	ID           string       `bson:"_id,omitempty" json:"id,omitempty"`
	Email        string       `bson:"email" json:"email"`
	SessionToken string       `bson:"session_token,omitempty" json:"session_token,omitempty"`
	Type         ActivityType `bson:"activity" json:"activity"`
	Detail       string       `bson:"detail,omitempty" json:"detail,omitempty"`
	CreatedAt    time.Time    `bson:"created_at" json:"created_at"`
}
