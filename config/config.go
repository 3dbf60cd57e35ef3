package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

type Config struct {
	Port          int
	StoreBackend  string
	DataFile      string
	LedgerFile    string
	DatabaseURL   string
	JWTSecret     string
	AdminRole     string
	AdminUserIDs  []string
	AllowedOrigin string
	LogLevel      zapcore.Level
}

// Load reads a .env file when one exists and then builds the Config from the
// process environment. The returned bool reports whether a .env file was found.
func Load() (Config, bool, error) {
	loaded := godotenv.Load() == nil
	cfg, err := FromEnv()
	return cfg, loaded, err
}

// FromEnv builds the Config from environment variables only.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:          8080,
		StoreBackend:  envOr("STORE_BACKEND", BackendFile),
		DataFile:      envOr("DATA_FILE", "data/ideas.json"),
		LedgerFile:    envOr("LEDGER_FILE", "data/votes.json"),
		JWTSecret:     strings.TrimSpace(os.Getenv("JWT_SECRET")),
		AdminRole:     envOr("ADMIN_ROLE", "admin"),
		AdminUserIDs:  splitList(os.Getenv("ADMIN_USER_IDS")),
		AllowedOrigin: envOr("ALLOWED_ORIGIN", "*"),
		LogLevel:      zapcore.InfoLevel,
	}

	if portStr := strings.TrimSpace(os.Getenv("PORT")); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT env variable: %q", portStr)
		}
		cfg.Port = port
	}

	if lvl := strings.TrimSpace(os.Getenv("LOG_LEVEL")); lvl != "" {
		parsed, err := zapcore.ParseLevel(lvl)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = parsed
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET required")
	}

	switch cfg.StoreBackend {
	case BackendFile:
	case BackendPostgres:
		cfg.DatabaseURL = databaseURL()
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("postgres backend requires DATABASE_URL or user/host/dbname")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	return cfg, nil
}

// IsAdmin reports whether the given user id or role grants admin rights.
func (c Config) IsAdmin(userID, role string) bool {
	if role != "" && role == c.AdminRole {
		return true
	}
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// databaseURL prefers DATABASE_URL and falls back to the Supabase-style
// user/password/host/port/dbname variables.
func databaseURL() string {
	if u := strings.TrimSpace(os.Getenv("DATABASE_URL")); u != "" {
		return u
	}

	dbUser := strings.TrimSpace(os.Getenv("user"))
	dbPass := strings.TrimSpace(os.Getenv("password"))
	dbHost := strings.TrimSpace(os.Getenv("host"))
	dbPort := strings.TrimSpace(os.Getenv("port"))
	dbName := strings.TrimSpace(os.Getenv("dbname"))
	if dbUser == "" || dbHost == "" || dbName == "" {
		return ""
	}
	if dbPort == "" {
		dbPort = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=require", dbUser, dbPass, dbHost, dbPort, dbName)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
