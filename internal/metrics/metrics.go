package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Login Metrics
	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_login_attempts_total",
		Help: "Total number of credential checks (successful and failed).",
	}, []string{"status"}) // status: "success" or "failed"
	SessionsEstablishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_sessions_established_total",
		Help: "Total number of sessions established after OTP verification.",
	})
	LogoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_logouts_total",
		Help: "Total number of explicit logouts.",
	})

	// OTP Metrics
	OTPIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_otp_issued_total",
		Help: "Total number of OTPs issued and dispatched.",
	}, []string{"kind"}) // kind: "login" or "resend"
	OTPDispatchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_otp_dispatch_failures_total",
		Help: "Total number of OTP emails that could not be sent.",
	})
	OTPVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_otp_verifications_total",
		Help: "Total number of OTP verification attempts by outcome.",
	}, []string{"outcome"})
	OTPResendThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_otp_resend_throttled_total",
		Help: "Total number of resend requests rejected by the cooldown.",
	})
	OTPSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_otp_swept_total",
		Help: "Total number of expired OTP records cleared by the sweeper.",
	})
)
