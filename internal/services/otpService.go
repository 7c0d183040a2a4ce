package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"letsconnect/internal/clock"
	"letsconnect/internal/cooldown"
	"letsconnect/internal/metrics"
	"letsconnect/internal/models"
	"letsconnect/internal/repositories"
	"letsconnect/internal/utils"
)

const (
	DefaultOTPTTL    = 5 * time.Minute
	DefaultOTPLength = 6

	otpEmailSubject = "Your OTP for Coordinator Login"
	sweepTimeout    = 30 * time.Second
)

type OTPConfig struct {
	TTL    time.Duration
	Length int
}

// IssueResult describes a freshly issued code. Code is only for the mailer
// and tests; it must never reach an HTTP response.
type IssueResult struct {
	Code         string
	SessionToken string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// OTPStatus is the validity of one issued code as seen at a given instant.
type OTPStatus struct {
	Status           models.OTPStatus
	ExpiresAt        time.Time
	RemainingSeconds int
}

type OTPService interface {
	Issue(ctx context.Context, email string) (*IssueResult, error)
	Resend(ctx context.Context, email string) (*IssueResult, error)
	Verify(ctx context.Context, email, sessionToken, code string) (*models.Identity, error)
	Status(ctx context.Context, email, sessionToken string) (*OTPStatus, error)
	Sweep(ctx context.Context) (int64, error)
	StartSweeper(ctx context.Context, interval time.Duration)
}

type otpService struct {
	userRepo     repositories.UserRepository
	otpRepo      repositories.OTPRepository
	emailService EmailService
	cooldown     cooldown.Tracker
	clock        clock.Clock
	activity     activityLog
	cfg          OTPConfig
}

func NewOTPService(
	userRepo repositories.UserRepository,
	otpRepo repositories.OTPRepository,
	activityRepo repositories.ActivityRepository,
	emailService EmailService,
	tracker cooldown.Tracker,
	clk clock.Clock,
	cfg OTPConfig,
) OTPService {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultOTPTTL
	}
	if cfg.Length <= 0 {
		cfg.Length = DefaultOTPLength
	}
	if tracker == nil {
		tracker = cooldown.Disabled{}
	}
	return &otpService{
		userRepo:     userRepo,
		otpRepo:      otpRepo,
		emailService: emailService,
		cooldown:     tracker,
		clock:        clk,
		activity:     activityLog{repo: activityRepo, clock: clk},
		cfg:          cfg,
	}
}

// NormalizeEmail is applied to every email before it reaches a store.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *otpService) Issue(ctx context.Context, email string) (*IssueResult, error) {
	return s.issue(ctx, NormalizeEmail(email), "login")
}

func (s *otpService) Resend(ctx context.Context, email string) (*IssueResult, error) {
	email = NormalizeEmail(email)

	wait, ok, err := s.cooldown.Reserve(ctx, email)
	if err != nil {
		// Fail open when the tracker is unreachable.
		log.Warn().Err(err).Str("email", email).Msg("Cooldown check failed, allowing resend")
	} else if !ok {
		metrics.OTPResendThrottledTotal.Inc()
		log.Info().Str("email", email).Dur("wait", wait).Msg("OTP resend throttled")
		return nil, &CooldownError{Wait: wait}
	}

	res, err := s.issue(ctx, email, "resend")
	if err != nil {
		if rerr := s.cooldown.Release(ctx, email); rerr != nil {
			log.Warn().Err(rerr).Str("email", email).Msg("Could not release resend cooldown")
		}
		return nil, err
	}
	return res, nil
}

func (s *otpService) issue(ctx context.Context, email, kind string) (*IssueResult, error) {
	identity, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			log.Warn().Str("email", email).Msg("OTP requested for unknown coordinator")
			return nil, ErrIdentityNotFound
		}
		log.Error().Err(err).Str("email", email).Msg("Error looking up coordinator for OTP")
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	code, err := utils.GenerateSecureOTP(s.cfg.Length)
	if err != nil {
		log.Error().Err(err).Msg("Could not generate OTP")
		return nil, fmt.Errorf("failed to generate otp: %w", err)
	}

	issuedAt := s.clock.Now().UTC().Truncate(time.Millisecond)
	token, err := utils.NewSessionToken(issuedAt)
	if err != nil {
		log.Error().Err(err).Msg("Could not generate session token")
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	revoked, err := s.otpRepo.RevokePending(ctx, email, issuedAt)
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("Could not revoke previous OTPs")
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	rec := &models.OTPRecord{
		Email:        email,
		SessionToken: token,
		Code:         code,
		Status:       models.OTPStatusPending,
		IssuedAt:     issuedAt,
		ExpiresAt:    issuedAt.Add(s.cfg.TTL),
		UpdatedAt:    issuedAt,
	}
	if err := s.otpRepo.Create(ctx, rec); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			log.Warn().Str("email", email).Msg("Concurrent OTP issuance, keeping the other code")
			return nil, ErrConcurrentIssue
		}
		log.Error().Err(err).Str("email", email).Msg("Could not store OTP record")
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	body := otpEmailBody(identity.Name, code, s.cfg.TTL)
	if err := s.emailService.SendEmail(ctx, email, otpEmailSubject, body); err != nil {
		metrics.OTPDispatchFailuresTotal.Inc()
		log.Error().Err(err).Str("email", email).Str("session_token", token).Msg("Failed to send OTP email")
		s.activity.record(ctx, email, token, models.ActivityOTPDispatchFailed, err.Error())
		return nil, fmt.Errorf("%w: %w", ErrDispatch, err)
	}

	if err := s.cooldown.Touch(ctx, email); err != nil {
		log.Warn().Err(err).Str("email", email).Msg("Could not record resend cooldown")
	}

	typ := models.ActivityOTPIssued
	if kind == "resend" {
		typ = models.ActivityOTPResent
	}
	s.activity.record(ctx, email, token, typ, "")
	metrics.OTPIssuedTotal.WithLabelValues(kind).Inc()

	log.Info().
		Str("email", email).
		Str("session_token", token).
		Str("kind", kind).
		Int64("revoked", revoked).
		Time("expires_at", rec.ExpiresAt).
		Msg("OTP issued")

	return &IssueResult{
		Code:         code,
		SessionToken: token,
		IssuedAt:     rec.IssuedAt,
		ExpiresAt:    rec.ExpiresAt,
	}, nil
}

func (s *otpService) Verify(ctx context.Context, email, sessionToken, code string) (*models.Identity, error) {
	email = NormalizeEmail(email)

	identity, err := s.verify(ctx, email, sessionToken, code)
	metrics.OTPVerificationsTotal.WithLabelValues(verifyOutcome(err)).Inc()
	if err != nil {
		ev := log.Info().Str("email", email).Str("outcome", verifyOutcome(err))
		if issued, perr := utils.SessionTokenTime(sessionToken); perr == nil {
			ev = ev.Time("token_issued_at", issued)
		}
		ev.Msg("OTP verification failed")
		s.activity.record(ctx, email, sessionToken, models.ActivityOTPFailed, verifyOutcome(err))
		return nil, err
	}

	s.activity.record(ctx, email, sessionToken, models.ActivityOTPVerified, "")
	s.activity.record(ctx, email, sessionToken, models.ActivityLoginSuccess, "")
	log.Info().Str("email", email).Str("session_token", sessionToken).Msg("OTP verified")
	return identity, nil
}

func (s *otpService) verify(ctx context.Context, email, sessionToken, code string) (*models.Identity, error) {
	rec, err := s.otpRepo.FindByEmailAndToken(ctx, email, sessionToken)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Str("email", email).Msg("Error fetching OTP record")
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	switch rec.Status {
	case models.OTPStatusVerified:
		return nil, ErrAlreadyUsed
	case models.OTPStatusRevoked:
		return nil, ErrRevoked
	case models.OTPStatusExpired:
		return nil, ErrExpired
	}

	now := s.clock.Now()
	if rec.IsExpired(now) {
		return nil, ErrExpired
	}

	if rec.Code == "" || subtle.ConstantTimeCompare([]byte(code), []byte(rec.Code)) != 1 {
		return nil, ErrMismatch
	}

	// Load the identity first so a failed lookup leaves the code usable.
	identity, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrIdentityNotFound
		}
		log.Error().Err(err).Str("email", email).Msg("Error loading coordinator for OTP")
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	won, err := s.otpRepo.TransitionStatus(ctx, email, sessionToken, models.OTPStatusPending, models.OTPStatusVerified, now)
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("Error marking OTP verified")
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if !won {
		return nil, ErrAlreadyUsed
	}
	return identity, nil
}

func (s *otpService) Status(ctx context.Context, email, sessionToken string) (*OTPStatus, error) {
	rec, err := s.otpRepo.FindByEmailAndToken(ctx, NormalizeEmail(email), sessionToken)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	now := s.clock.Now()
	st := &OTPStatus{Status: rec.Status, ExpiresAt: rec.ExpiresAt}
	if rec.Status == models.OTPStatusPending {
		if rec.IsExpired(now) {
			st.Status = models.OTPStatusExpired
		} else {
			st.RemainingSeconds = int(rec.Remaining(now).Seconds())
		}
	}
	return st, nil
}

func (s *otpService) Sweep(ctx context.Context) (int64, error) {
	n, err := s.otpRepo.ClearExpiredUnverified(ctx, s.clock.Now())
	if err != nil {
		log.Error().Err(err).Msg("OTP sweep failed")
		return 0, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	metrics.OTPSweptTotal.Add(float64(n))
	if n > 0 {
		log.Info().Int64("cleared", n).Msg("Expired OTPs swept")
	}
	return n, nil
}

// StartSweeper runs Sweep every interval until ctx is done. A non-positive
// interval disables it.
func (s *otpService) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		log.Info().Msg("OTP sweeper disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
				_, _ = s.Sweep(sweepCtx)
				cancel()
			}
		}
	}()
}

func otpEmailBody(name, code string, ttl time.Duration) string {
	return fmt.Sprintf("Dear %s,\n\n"+
		"Your One-Time Password (OTP) for login is: %s\n\n"+
		"This OTP is valid for %s.\n\n"+
		"Please do not share this OTP with anyone.\n\n"+
		"Regards,\nLet's Connect Team", name, code, validity(ttl))
}

func validity(ttl time.Duration) string {
	if ttl < time.Minute {
		return fmt.Sprintf("%d seconds", int(ttl.Seconds()))
	}
	minutes := int(ttl.Minutes())
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

func verifyOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrIdentityNotFound):
		return "identity_not_found"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, ErrRevoked):
		return "revoked"
	case errors.Is(err, ErrConcurrentIssue):
		return "concurrent_issue"
	case errors.Is(err, ErrMismatch):
		return "mismatch"
	default:
		return "error"
	}
}
