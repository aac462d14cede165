package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	godotenv "github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"dev"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
	LogFile   string `env:"LOG_FILE"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" default:"1h"`
	MaxSessions   int           `env:"MAX_SESSIONS" default:"64"`

	MaxUploadBytes  int64   `env:"MAX_UPLOAD_BYTES" default:"26214400"` // 25 MiB
	MaxSourcePixels int     `env:"MAX_SOURCE_PIXELS" default:"50000000"`
	BlurSigma       float64 `env:"BLUR_SIGMA" default:"20"`

	UploadRatePerSecond float64 `env:"UPLOAD_RATE_PER_SECOND" default:"2"`
	UploadBurst         int     `env:"UPLOAD_BURST" default:"5"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// InitializeEnvs loads the .env file for APP_ENV (falling back to .env), then
// reads the process environment into a Config.
func InitializeEnvs() (*Config, error) {
	loadEnvFile(os.Getenv("APP_ENV"))

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if cfg.SessionSecret == "" && !cfg.IsProduction() {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.SessionSecret = secret
		slog.Warn("SESSION_SECRET not set, using a random secret; sessions will not survive a restart")
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFile(appEnv string) {
	switch appEnv {
	case "dev", "":
		if err := godotenv.Overload(".env.dev"); err == nil {
			slog.Info("Loaded .env.dev")
		} else if err := godotenv.Overload(".env"); err == nil {
			slog.Info("Loaded .env")
		} else {
			slog.Info("No .env.dev or .env found, using system environment variables")
		}
	default:
		fname := ".env." + appEnv
		if err := godotenv.Overload(fname); err == nil {
			slog.Info("Loaded env file", "file", fname)
		} else if err := godotenv.Overload(".env"); err == nil {
			slog.Info("Loaded .env")
		} else {
			slog.Info("No env file found, using system environment variables", "file", fname)
		}
	}
}

func validate(cfg *Config) error {
	if cfg.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required in production")
	}
	if len(cfg.SessionSecret) < 32 {
		return errors.New("SESSION_SECRET must be at least 32 characters")
	}
	if cfg.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if cfg.MaxSessions < 0 {
		return errors.New("MAX_SESSIONS must not be negative")
	}
	if cfg.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	if cfg.MaxSourcePixels < 0 {
		return errors.New("MAX_SOURCE_PIXELS must not be negative")
	}
	if cfg.BlurSigma < 0 {
		return errors.New("BLUR_SIGMA must not be negative")
	}
	if cfg.UploadRatePerSecond <= 0 || cfg.UploadBurst <= 0 {
		return fmt.Errorf("UPLOAD_RATE_PER_SECOND and UPLOAD_BURST must be positive, got %v and %d", cfg.UploadRatePerSecond, cfg.UploadBurst)
	}
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
