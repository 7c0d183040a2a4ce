package server

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"letsconnect/internal/clock"
	"letsconnect/internal/config"
	"letsconnect/internal/cooldown"
	"letsconnect/internal/database"
	"letsconnect/internal/middlewares"
	"letsconnect/internal/repositories"
	"letsconnect/internal/services"
	"letsconnect/internal/session"
)

type Server struct {
	cfg        config.Config
	httpServer *http.Server
	db         database.Service
	redis      *redis.Client
	clock      clock.Clock

	authService services.AuthService
	otpService  services.OTPService
	sessions    *session.Holder
	auth        *middlewares.Authenticator
	limiter     *middlewares.RateLimiter

	// stop ends the sweeper and the limiter cleanup loop.
	stop context.CancelFunc
}

// NewServer wires repositories and services on top of db and starts the
// background workers.
func NewServer(cfg config.Config, db database.Service) (*Server, error) {
	ctx, stop := context.WithCancel(context.Background())

	repos, err := repositories.New(ctx, db)
	if err != nil {
		stop()
		return nil, err
	}

	clk := clock.New()
	sessions := session.NewHolder(cfg.SessionKey, cfg.IsProduction())
	s := &Server{
		cfg:      cfg,
		db:       db,
		clock:    clk,
		sessions: sessions,
		auth:     middlewares.NewAuthenticator(sessions, cfg.JWTSecret),
		limiter:  middlewares.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		stop:     stop,
	}

	tracker, err := s.newCooldownTracker(ctx)
	if err != nil {
		stop()
		return nil, err
	}

	s.authService = services.NewAuthService(repos.Users, repos.Activity, clk, cfg.JWTSecret, cfg.JWTTTL)
	s.otpService = services.NewOTPService(
		repos.Users,
		repos.OTPs,
		repos.Activity,
		services.NewEmailService(cfg),
		tracker,
		clk,
		services.OTPConfig{TTL: cfg.OTPTTL, Length: cfg.OTPLength},
	)

	s.otpService.StartSweeper(ctx, cfg.OTPSweepInterval)
	go s.limiter.CleanupVisitors(ctx)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.RegisterRoutes(),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return s, nil
}

func (s *Server) newCooldownTracker(ctx context.Context) (cooldown.Tracker, error) {
	if s.cfg.CooldownBackend != config.CooldownRedis {
		return cooldown.NewMemory(s.cfg.OTPResendCooldown, s.clock), nil
	}

	opt, err := redis.ParseURL(s.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s.redis = client
	log.Info().Msg("Using Redis for OTP resend cooldown")
	return cooldown.NewRedis(client, s.cfg.OTPResendCooldown), nil
}

func (s *Server) Start() error {
	log.Info().Int("port", s.cfg.Port).Str("driver", s.db.Driver()).Msg("Starting server")
	return s.httpServer.ListenAndServe()
}

// Close stops the background workers and releases the Redis client.
func (s *Server) Close() {
	s.stop()
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing Redis client")
		}
	}
}

func (s *Server) GracefulShutdown(done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info().Msg("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown with error")
	}
	s.Close()

	log.Info().Msg("Server exiting")
	done <- true
}
