package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/vainnor/airspace-engine/conflict"
)

type Config struct {
	HTTPAddr       string
	RequestTimeout time.Duration

	// MasterAPIKey guards the admin endpoints and bypasses rate limiting.
	// Admin endpoints are open when it is empty.
	MasterAPIKey    string
	RateLimitMax    int
	RateLimitWindow time.Duration

	// Startup dataset: a file, a URL or the built-in demonstration data.
	DatasetFile  string
	DatasetURL   string
	LoadTestData bool

	// MonitorSchedule is a cron spec with seconds; empty disables the sweep.
	MonitorSchedule string

	Thresholds    conflict.Thresholds
	PathCacheSize int
	PathCacheTTL  time.Duration

	DB DBConfig

	LogLevel string
	LogDir   string
}

// DBConfig locates the optional Postgres journal.
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Enabled reports whether a journal database was configured.
func (c DBConfig) Enabled() bool { return c.Host != "" }

// ConnString returns a lib/pq connection string.
func (c DBConfig) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Load reads a .env file when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := FromEnv()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables and defaults.
func FromEnv() *Config {
	def := conflict.DefaultThresholds()
	return &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 5*time.Second),
		MasterAPIKey:    os.Getenv("MASTER_API_KEY"),
		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 60),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		DatasetFile:     os.Getenv("DATASET_FILE"),
		DatasetURL:      os.Getenv("DATASET_URL"),
		LoadTestData:    getEnvBool("LOAD_TEST_DATA", false),
		MonitorSchedule: getEnv("MONITOR_SCHEDULE", "*/30 * * * * *"),
		Thresholds: conflict.Thresholds{
			CrossingWindow:    getEnvDuration("CROSSING_WINDOW", def.CrossingWindow),
			SegmentTolerance:  getEnvDuration("SEGMENT_TOLERANCE", def.SegmentTolerance),
			LateralWindow:     getEnvDuration("LATERAL_WINDOW", def.LateralWindow),
			LateralDistanceNM: getEnvFloat("LATERAL_DISTANCE_NM", def.LateralDistanceNM),
		},
		PathCacheSize: getEnvInt("PATH_CACHE_SIZE", 256),
		PathCacheTTL:  getEnvDuration("PATH_CACHE_TTL", 10*time.Minute),
		DB: DBConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogDir:   os.Getenv("LOG_DIR"),
	}
}

func (c *Config) validate() error {
	th := c.Thresholds
	if th.CrossingWindow < 0 || th.SegmentTolerance < 0 || th.LateralWindow < 0 {
		return fmt.Errorf("conflict time windows must not be negative")
	}
	if th.LateralDistanceNM < 0 {
		return fmt.Errorf("LATERAL_DISTANCE_NM must not be negative")
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	if c.DatasetFile != "" && c.DatasetURL != "" {
		return fmt.Errorf("set only one of DATASET_FILE and DATASET_URL")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
