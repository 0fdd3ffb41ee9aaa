package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backends a session can run against.
const (
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

type Config struct {
	Env      string
	Backend  string
	Dir      string
	UserID   string
	Addr     string
	LogLevel string
	LogFile  string

	// PollInterval is how often the sqlite backend looks for writes made by other processes.
	PollInterval time.Duration

	FirebaseCredentials string
	FirebaseProjectID   string
	AllowedOrigins      []string
}

// Load reads configuration from the environment. In development a .env file in the working
// directory is loaded first; values already set in the environment win.
func Load() (Config, error) {
	if getEnv("TEAMBOARD_ENV", "development") == "development" {
		if err := godotenv.Load(".env.teamboard"); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	cfg := Config{
		Env:                 getEnv("TEAMBOARD_ENV", "development"),
		Backend:             strings.ToLower(getEnv("TEAMBOARD_BACKEND", BackendSQLite)),
		Dir:                 getEnv("TEAMBOARD_DIR", ""),
		UserID:              getEnv("TEAMBOARD_USER", ""),
		Addr:                getEnv("TEAMBOARD_ADDR", "127.0.0.1:8787"),
		LogLevel:            getEnv("TEAMBOARD_LOG_LEVEL", ""),
		LogFile:             getEnv("TEAMBOARD_LOG_FILE", ""),
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		FirebaseProjectID:   getEnv("FIREBASE_PROJECT_ID", ""),
		AllowedOrigins:      splitList(getEnv("TEAMBOARD_ALLOWED_ORIGINS", "")),
	}

	poll, err := getEnvDuration("TEAMBOARD_POLL_INTERVAL", time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.PollInterval = poll

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the backend selection and its required settings.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendSQLite:
	case BackendFirestore:
		if c.FirebaseProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required for the firestore backend")
		}
	default:
		return fmt.Errorf("unknown backend %q (want memory, sqlite or firestore)", c.Backend)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("TEAMBOARD_POLL_INTERVAL must not be negative")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// getEnvDuration accepts Go durations ("500ms") and bare seconds ("2").
func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return time.Duration(n) * time.Second, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
