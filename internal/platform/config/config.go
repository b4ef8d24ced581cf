package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config reúne la configuración del servicio, leída de variables de entorno.
type Config struct {
	Port string

	// Vacío => store en memoria.
	DatabaseDSN string

	// Vacío => hub de cambios local y notificaciones en el mismo proceso.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ChangeChannel string
	NotifyStream  string

	// Vacío => modo dev (X-Debug-User-ID).
	JWTSecret string

	PushGatewayURL string
	PushAPIKey     string

	StorageBaseURL string
	StorageAPIKey  string

	AppBaseURL      string
	DefaultTimezone *time.Location
}

func Load() (Config, error) {
	c := Config{
		Port:           env("PORT", "8080"),
		DatabaseDSN:    os.Getenv("DB_DSN"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		ChangeChannel:  env("CHANGE_CHANNEL", "pet-care:changes"),
		NotifyStream:   env("NOTIFY_STREAM", "pet-care:notifications"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		PushGatewayURL: os.Getenv("PUSH_GATEWAY_URL"),
		PushAPIKey:     os.Getenv("PUSH_API_KEY"),
		StorageBaseURL: os.Getenv("STORAGE_BASE_URL"),
		StorageAPIKey:  os.Getenv("STORAGE_API_KEY"),
		AppBaseURL:     strings.TrimRight(env("APP_BASE_URL", "http://localhost:3000"), "/"),
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		if _, err := fmt.Sscanf(db, "%d", &c.RedisDB); err != nil {
			return Config{}, fmt.Errorf("REDIS_DB: %w", err)
		}
	}

	loc, err := time.LoadLocation(env("DEFAULT_TIMEZONE", "UTC"))
	if err != nil {
		return Config{}, fmt.Errorf("DEFAULT_TIMEZONE: %w", err)
	}
	c.DefaultTimezone = loc

	return c, nil
}

func (c Config) Addr() string { return ":" + c.Port }

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
