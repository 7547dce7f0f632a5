package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment
// variables. Every quota heuristic (cooldown, limits, abuse thresholds,
// reset timezone) and every poll schedule knob is a tunable here rather than
// a constant buried in the code.
type Config struct {
	AppEnv         string
	Port           string
	DatabaseURL    string
	AllowedOrigins []string
	DefaultLocale  string
	GeoIPDBPath    string
	ArchivePath    string
	CatalogPath    string

	// Quota engine.
	GenerationCost    int
	DailyLimit        int
	WeeklyLimit       int
	Cooldown          time.Duration
	GlobalCapacity    int
	ResetTimezone     string
	MaxUsersPerDevice int
	MaxRequestsPerIP  int
	SweepSchedule     string

	// Completion poller.
	PollInitialDelay time.Duration
	PollMaxDelay     time.Duration
	PollMultiplier   float64
	PollWallClock    time.Duration
	PollMaxAttempts  int

	// Provider credentials and endpoints.
	ReplicateAPIToken     string
	ReplicateBaseURL      string
	ReplicateDefaultModel string
	StabilityAPIKey       string
	StabilityBaseURL      string
	StabilityEngine       string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. DATABASE_URL may be empty: the service then runs
// with the in-memory quota store and the filesystem result archive.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		DefaultLocale:  getEnv("DEFAULT_LOCALE", "en"),
		GeoIPDBPath:    os.Getenv("GEOIP_DB_PATH"),
		ArchivePath:    getEnv("ARCHIVE_PATH", "./archive"),
		CatalogPath:    os.Getenv("CATALOG_PATH"),

		GenerationCost:    getEnvInt("GENERATION_COST", 1),
		DailyLimit:        getEnvInt("QUOTA_DAILY_LIMIT", 20),
		WeeklyLimit:       getEnvInt("QUOTA_WEEKLY_LIMIT", 80),
		Cooldown:          time.Second * time.Duration(getEnvInt("GENERATION_COOLDOWN_SECONDS", 30)),
		GlobalCapacity:    getEnvInt("GLOBAL_CAPACITY", 10000),
		ResetTimezone:     getEnv("QUOTA_RESET_TIMEZONE", "UTC"),
		MaxUsersPerDevice: getEnvInt("ABUSE_MAX_USERS_PER_DEVICE", 3),
		MaxRequestsPerIP:  getEnvInt("ABUSE_MAX_REQUESTS_PER_IP", 50),
		SweepSchedule:     getEnv("QUOTA_SWEEP_SCHEDULE", "5 0 * * *"),

		PollInitialDelay: time.Millisecond * time.Duration(getEnvInt("POLL_INITIAL_DELAY_MS", 2000)),
		PollMaxDelay:     time.Millisecond * time.Duration(getEnvInt("POLL_MAX_DELAY_MS", 10000)),
		PollMultiplier:   getEnvFloat("POLL_MULTIPLIER", 1.5),
		PollWallClock:    time.Second * time.Duration(getEnvInt("POLL_WALL_CLOCK_SECONDS", 30)),
		PollMaxAttempts:  getEnvInt("POLL_MAX_ATTEMPTS", 10),

		ReplicateAPIToken:     os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateBaseURL:      getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ReplicateDefaultModel: getEnv("REPLICATE_DEFAULT_MODEL", "stability-ai/sdxl"),
		StabilityAPIKey:       os.Getenv("STABILITY_API_KEY"),
		StabilityBaseURL:      getEnv("STABILITY_BASE_URL", "https://api.stability.ai"),
		StabilityEngine:       getEnv("STABILITY_ENGINE", "stable-diffusion-xl-1024-v1-0"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.GenerationCost <= 0 {
		return nil, fmt.Errorf("GENERATION_COST must be positive")
	}
	if cfg.PollMultiplier < 1 {
		return nil, fmt.Errorf("POLL_MULTIPLIER must be >= 1")
	}
	if _, err := cfg.ResetLocation(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ResetLocation resolves the quota reset timezone.
func (c *Config) ResetLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ResetTimezone)
	if err != nil {
		return nil, fmt.Errorf("QUOTA_RESET_TIMEZONE %q: %w", c.ResetTimezone, err)
	}
	return loc, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
