package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ClientConfig holds the terminal client configuration
type ClientConfig struct {
	Environment string `json:"environment"`
	APIBaseURL  string `json:"apiBaseUrl"`

	// RequestTimeout bounds one HTTP attempt, not the retry loop
	RequestTimeout time.Duration `json:"requestTimeout"`

	// CompetitionLength is used when the backend config does not carry one
	CompetitionLength time.Duration `json:"competitionLength"`

	PollInterval time.Duration `json:"pollInterval"`
	ResultsDelay time.Duration `json:"resultsDelay"`

	// FlagStore selects where the activeParticipation marker lives: memory or redis
	FlagStore string `json:"flagStore"`
	RedisAddr string `json:"redisAddr"`

	PushEnabled bool `json:"pushEnabled"`

	// LogFile receives the client log so it does not interleave with the terminal UI
	LogFile string `json:"logFile"`

	Username string `json:"username"`
	Password string `json:"-"` // Never serialize
}

// LoadClient reads the client configuration from the environment
func LoadClient() (*ClientConfig, error) {
	env := getEnv("COMP_ENV", "development")

	timeout := 5 * time.Second
	if env == "development" {
		timeout = 10 * time.Second
	}

	length, err := getEnvSeconds("COMPETITION_LENGTH", 300)
	if err != nil {
		return nil, err
	}
	poll, err := getEnvSeconds("POLL_INTERVAL", 10)
	if err != nil {
		return nil, err
	}

	cfg := &ClientConfig{
		Environment:       env,
		APIBaseURL:        strings.TrimRight(getEnv("API_URL", "http://localhost:8080"), "/") + "/api",
		RequestTimeout:    timeout,
		CompetitionLength: length,
		PollInterval:      poll,
		ResultsDelay:      time.Second,
		FlagStore:         getEnv("FLAG_STORE", "memory"),
		RedisAddr:         NormalizeRedisAddr(getEnv("REDIS_URI", "localhost:6379")),
		PushEnabled:       getEnv("PUSH_ENABLED", "true") == "true",
		LogFile:           getEnv("CLIENT_LOG", "compclient.log"),
		Username:          os.Getenv("COMP_USERNAME"),
		Password:          os.Getenv("COMP_PASSWORD"),
	}

	if cfg.FlagStore != "memory" && cfg.FlagStore != "redis" {
		return nil, fmt.Errorf("FLAG_STORE must be memory or redis, got %q", cfg.FlagStore)
	}
	return cfg, nil
}

// ServerConfig holds the mock competition backend configuration
type ServerConfig struct {
	Port string `json:"port"`

	// MongoURI empty means in-memory repositories
	MongoURI string `json:"mongoUri"`
	Database string `json:"database"`

	// RedisAddr empty disables rate limiting
	RedisAddr string `json:"redisAddr"`

	Username  string `json:"username"`
	Password  string `json:"-"`
	JWTSecret string `json:"-"`

	CompetitionStart  time.Time     `json:"competitionStart"`
	EntryWindow       time.Duration `json:"entryWindow"`
	CompetitionLength time.Duration `json:"competitionLength"`

	RateLimit       int           `json:"rateLimit"` // requests per window per user
	RateLimitWindow time.Duration `json:"rateLimitWindow"`
}

// LoadServer reads the backend configuration from the environment
func LoadServer() (*ServerConfig, error) {
	start := time.Now().Add(-time.Minute).Truncate(time.Second)
	if v := os.Getenv("COMPETITION_START"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("invalid COMPETITION_START: %w", err)
		}
		start = t
	}

	window, err := getEnvSeconds("ENTRY_WINDOW", 1800)
	if err != nil {
		return nil, err
	}
	length, err := getEnvSeconds("COMPETITION_LENGTH", 300)
	if err != nil {
		return nil, err
	}
	limit, err := strconv.Atoi(getEnv("RATE_LIMIT", "120"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT: %w", err)
	}

	redisAddr := os.Getenv("REDIS_URI")
	if redisAddr != "" {
		redisAddr = NormalizeRedisAddr(redisAddr)
	}

	return &ServerConfig{
		Port:              getEnv("PORT", "8080"),
		MongoURI:          os.Getenv("MONGO_URI"),
		Database:          getEnv("MONGO_DB", "compdb"),
		RedisAddr:         redisAddr,
		Username:          getEnv("PARTICIPANT_USERNAME", "participant"),
		Password:          getEnv("PARTICIPANT_PASSWORD", "password123"),
		JWTSecret:         getEnv("JWT_SECRET", "super-secret-key-change-in-production"),
		CompetitionStart:  start,
		EntryWindow:       window,
		CompetitionLength: length,
		RateLimit:         limit,
		RateLimitWindow:   time.Minute,
	}, nil
}

// NormalizeRedisAddr strips a redis:// scheme prefix if present
func NormalizeRedisAddr(addr string) string {
	return strings.TrimPrefix(addr, "redis://")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvSeconds(key string, defaultSec int) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(defaultSec) * time.Second, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive number of seconds, got %q", key, v)
	}
	return time.Duration(n) * time.Second, nil
}
