package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App struct {
		ENV string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Rating struct {
		KFactor  float64
		MinScore float64
	}

	Search struct {
		InitialRadiusKm float64
		RadiusStepKm    float64
		MaxRadiusKm     float64
		MinProfiles     int
	}

	Events struct {
		PublishTimeout time.Duration
	}

	Profile struct {
		BaseURL string
		Timeout time.Duration
	}
}

func New() *Config {
	cfg := &Config{}

	// App
	cfg.App.ENV = getEnvDefault("APP_ENV", "development")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "matching_core")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "datecore")

		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	// Rating engine
	cfg.Rating.KFactor = getEnvFloat("RATING_K_FACTOR", 32)
	cfg.Rating.MinScore = getEnvFloat("RATING_MIN_SCORE", 100)

	// Candidate search
	cfg.Search.InitialRadiusKm = getEnvFloat("SEARCH_INITIAL_RADIUS_KM", 20)
	cfg.Search.RadiusStepKm = getEnvFloat("SEARCH_RADIUS_STEP_KM", 20)
	cfg.Search.MaxRadiusKm = getEnvFloat("SEARCH_MAX_RADIUS_KM", 100)
	cfg.Search.MinProfiles = getEnvInt("SEARCH_MIN_PROFILES", 50)

	// Outbound events
	cfg.Events.PublishTimeout = getEnvDuration("EVENTS_PUBLISH_TIMEOUT", 5*time.Second)

	// Profile service
	cfg.Profile.BaseURL = getEnvDefault("PROFILE_SERVICE_URL", "http://localhost:8001")
	cfg.Profile.Timeout = getEnvDuration("PROFILE_SERVICE_TIMEOUT", 10*time.Second)

	return cfg
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(k string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
