package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"route-tracker/internal/domain"
)

// minSecretBytes matches the HS256 key size.
const minSecretBytes = 32

type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	// Optional backends; empty selects the in-memory implementation.
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	// Signs session tokens; there is no default so a deployment cannot run
	// on a published value.
	JWTSecret  string        `env:"JWT_SECRET"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	// Comma separated user:key pairs used when DATABASE_URL is empty.
	StaticDrivers []string `env:"STATIC_DRIVERS" envSeparator:","`

	KeyMode           string  `env:"STOP_KEY_MODE" envDefault:"coordinate"`
	TrackingSeparator string  `env:"TRACKING_SEPARATOR" envDefault:" | "`
	ProximityRadius   float64 `env:"PROXIMITY_RADIUS_METERS" envDefault:"50"`

	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"25s"`
	// Positions older than this count as unavailable. Zero keeps them forever.
	PositionMaxAge  time.Duration `env:"POSITION_MAX_AGE" envDefault:"60s"`
	SolverTimeLimit time.Duration `env:"SOLVER_TIME_LIMIT" envDefault:"3s"`
	SolverTwoOpt    bool          `env:"SOLVER_TWO_OPT" envDefault:"true"`

	OSRMBaseURL      string        `env:"OSRM_BASE_URL" envDefault:"https://router.project-osrm.org"`
	OSRMProfile      string        `env:"OSRM_PROFILE" envDefault:"driving"`
	RoadPathTimeout  time.Duration `env:"ROAD_PATH_TIMEOUT" envDefault:"12s"`
	RoadPathRate     float64       `env:"ROAD_PATH_RATE" envDefault:"1"`
	RoadPathDisabled bool          `env:"ROAD_PATH_DISABLED" envDefault:"false"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("load config: parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, ok := domain.ParseKeyMode(c.KeyMode); !ok {
		return fmt.Errorf("STOP_KEY_MODE %q must be %q or %q", c.KeyMode, domain.KeyCoordinateOnly, domain.KeyCoordinateAndAddress)
	}
	if c.ProximityRadius <= 0 {
		return errors.New("PROXIMITY_RADIUS_METERS must be positive")
	}
	if c.RoadPathTimeout <= 0 || c.RoadPathTimeout > 30*time.Second {
		return errors.New("ROAD_PATH_TIMEOUT must be between 0 and 30s")
	}
	if c.SolverTimeLimit <= 0 {
		return errors.New("SOLVER_TIME_LIMIT must be positive")
	}
	if c.PositionMaxAge < 0 {
		return errors.New("POSITION_MAX_AGE must not be negative")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if len(c.JWTSecret) < minSecretBytes {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretBytes)
	}
	return nil
}

// StopKeyMode returns the validated key mode.
func (c *Config) StopKeyMode() domain.KeyMode {
	return domain.KeyMode(c.KeyMode)
}

// Drivers parses StaticDrivers into user id -> access key.
func (c *Config) Drivers() (map[string]string, error) {
	out := make(map[string]string, len(c.StaticDrivers))
	for _, entry := range c.StaticDrivers {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		user, key, ok := strings.Cut(entry, ":")
		if !ok || strings.TrimSpace(user) == "" || key == "" {
			return nil, fmt.Errorf("STATIC_DRIVERS entry %q must be user:key", entry)
		}
		out[strings.TrimSpace(user)] = key
	}
	return out, nil
}

// Get returns the environment value for key, or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
