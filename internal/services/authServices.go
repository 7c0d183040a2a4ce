package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"letsconnect/internal/clock"
	"letsconnect/internal/metrics"
	"letsconnect/internal/models"
	"letsconnect/internal/repositories"
	"letsconnect/internal/utils"
)

// AuthService covers the password stage before an OTP is issued and the
// bearer token handed out after it is verified.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.Identity, error)
	IssueToken(identity *models.Identity) (string, time.Time, error)
	Logout(ctx context.Context, email, sessionToken string)
}

type authService struct {
	userRepo  repositories.UserRepository
	activity  activityLog
	clock     clock.Clock
	jwtSecret []byte
	jwtTTL    time.Duration
}

func NewAuthService(userRepo repositories.UserRepository, activityRepo repositories.ActivityRepository, clk clock.Clock, jwtSecret string, jwtTTL time.Duration) AuthService {
	return &authService{
		userRepo:  userRepo,
		activity:  activityLog{repo: activityRepo, clock: clk},
		clock:     clk,
		jwtSecret: []byte(jwtSecret),
		jwtTTL:    jwtTTL,
	}
}

func (a *authService) Login(ctx context.Context, email, password string) (*models.Identity, error) {
	email = NormalizeEmail(email)
	log.Debug().Str("email", email).Msg("Attempting coordinator login")

	identity, err := a.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			log.Warn().Str("email", email).Msg("Invalid credentials during login attempt")
			a.failed(ctx, email, "unknown email")
			return nil, ErrInvalidCredentials
		}
		log.Error().Err(err).Str("email", email).Msg("Error finding coordinator for login")
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		log.Warn().Str("email", email).Msg("Invalid credentials (password mismatch) during login attempt")
		a.failed(ctx, email, "password mismatch")
		return nil, ErrInvalidCredentials
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	a.activity.record(ctx, email, "", models.ActivityCredentialVerified, "")
	log.Info().Str("email", email).Str("user_id", identity.ID).Msg("Coordinator credentials verified")
	return identity, nil
}

func (a *authService) failed(ctx context.Context, email, detail string) {
	metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
	a.activity.record(ctx, email, "", models.ActivityCredentialFailed, detail)
}

func (a *authService) IssueToken(identity *models.Identity) (string, time.Time, error) {
	issuedAt := a.clock.Now()
	token, err := utils.GenerateJWT(a.jwtSecret, identity.ID, identity.Email, issuedAt, a.jwtTTL)
	if err != nil {
		log.Error().Err(err).Str("user_id", identity.ID).Msg("Could not generate token for coordinator")
		return "", time.Time{}, fmt.Errorf("could not generate token: %w", err)
	}
	metrics.SessionsEstablishedTotal.Inc()
	return token, issuedAt.Add(a.jwtTTL), nil
}

func (a *authService) Logout(ctx context.Context, email, sessionToken string) {
	metrics.LogoutsTotal.Inc()
	if email == "" {
		return
	}
	a.activity.record(ctx, NormalizeEmail(email), sessionToken, models.ActivityLogout, "")
	log.Info().Str("email", email).Msg("Coordinator logged out")
}
