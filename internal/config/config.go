package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	CooldownMemory = "memory"
	CooldownRedis  = "redis"
)

type Config struct {
	Port      int
	AppEnv    string
	LogLevel  string
	LogFormat string

	DBDriver      string
	MongoURI      string
	MongoDatabase string
	DatabaseURL   string
	SQLitePath    string

	SessionKey string
	JWTSecret  string
	JWTTTL     time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	OTPTTL            time.Duration
	OTPLength         int
	OTPResendCooldown time.Duration
	OTPSweepInterval  time.Duration
	CooldownBackend   string
	RedisURL          string

	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads the process environment, after merging a .env file when one is
// present, and validates the settings the selected drivers depend on.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:      getEnvInt("PORT", 8080),
		AppEnv:    getEnv("APP_ENV", "local"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		DBDriver:      strings.ToLower(getEnv("DB_DRIVER", DriverMongo)),
		MongoURI:      os.Getenv("MONGO_URI"),
		MongoDatabase: getEnv("MONGO_DATABASE", "letsconnect"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SQLitePath:    getEnv("SQLITE_PATH", "letsconnect.db"),

		SessionKey: os.Getenv("SESSION_KEY"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		JWTTTL:     getEnvDuration("JWT_TTL", time.Hour),

		SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),

		OTPTTL:            getEnvDuration("OTP_TTL", 5*time.Minute),
		OTPLength:         getEnvInt("OTP_LENGTH", 6),
		OTPResendCooldown: getEnvDuration("OTP_RESEND_COOLDOWN", time.Minute),
		OTPSweepInterval:  getEnvDuration("OTP_SWEEP_INTERVAL", 10*time.Minute),
		CooldownBackend:   strings.ToLower(getEnv("COOLDOWN_BACKEND", CooldownMemory)),
		RedisURL:          os.Getenv("REDIS_URL"),

		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 3),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 5),
	}
	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = cfg.SMTPUsername
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	missing := []string{}
	switch c.DBDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			missing = append(missing, "MONGO_URI")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			missing = append(missing, "SQLITE_PATH")
		}
	default:
		return errors.New("unsupported DB_DRIVER: " + c.DBDriver)
	}

	switch c.CooldownBackend {
	case CooldownMemory:
	case CooldownRedis:
		if c.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	default:
		return errors.New("unsupported COOLDOWN_BACKEND: " + c.CooldownBackend)
	}

	if c.SessionKey == "" {
		missing = append(missing, "SESSION_KEY")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.SMTPUsername == "" {
		missing = append(missing, "SMTP_USERNAME")
	}
	if c.SMTPPassword == "" {
		missing = append(missing, "SMTP_PASSWORD")
	}
	if len(missing) > 0 {
		return errors.New("missing required env: " + strings.Join(missing, ", "))
	}

	if c.OTPTTL <= 0 {
		return errors.New("OTP_TTL must be positive")
	}
	if c.OTPLength < 4 || c.OTPLength > 10 {
		return errors.New("OTP_LENGTH must be between 4 and 10")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvDuration accepts Go duration strings ("90s", "5m") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
