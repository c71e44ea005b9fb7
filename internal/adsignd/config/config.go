// Package config provides configuration management for the adsign server
package config

import (
	"time"
)

// Config holds all configuration for the server
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Storage      StorageConfig      `yaml:"storage"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Auth         AuthConfig         `yaml:"auth"`
	RateLimit    RateLimitConfig    `yaml:"rateLimit"`
	Registration RegistrationConfig `yaml:"registration"`
	Liveness     LivenessConfig     `yaml:"liveness"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	TLSCert      string        `yaml:"tlsCert"`
	TLSKey       string        `yaml:"tlsKey"`
}

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Driver string `yaml:"driver"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// RedisConfig holds the optional rate limit backend. Empty Addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig holds admin token settings
type AuthConfig struct {
	TokenSigningKey string        `yaml:"tokenSigningKey"`
	TokenExpiry     time.Duration `yaml:"tokenExpiry"`
	Issuer          string        `yaml:"issuer"`
}

// RateLimitConfig bounds the unauthenticated device endpoints, per client IP
type RateLimitConfig struct {
	RegisterPerMinute int `yaml:"registerPerMinute"`
	DevicePerMinute   int `yaml:"devicePerMinute"`
}

// RegistrationConfig tunes self-registration
type RegistrationConfig struct {
	// MaxAttempts bounds generated-identifier retries on uniqueness races
	MaxAttempts int `yaml:"maxAttempts"`
}

// LivenessConfig holds retention settings for never-approved displays
type LivenessConfig struct {
	// RejectedRetention is how long a rejected, unassigned display is kept.
	// Zero disables the sweeper.
	RejectedRetention time.Duration `yaml:"rejectedRetention"`
	SweepInterval     time.Duration `yaml:"sweepInterval"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Storage: StorageConfig{Driver: DriverPostgres},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "adsign",
			User:            "adsign",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Auth: AuthConfig{
			TokenExpiry: 12 * time.Hour,
			Issuer:      "adsignd",
		},
		RateLimit: RateLimitConfig{
			RegisterPerMinute: 10,
			DevicePerMinute:   120,
		},
		Registration: RegistrationConfig{MaxAttempts: 5},
		Liveness: LivenessConfig{
			SweepInterval: time.Hour,
		},
	}
}

// Load builds configuration from defaults and the environment only
func Load() (*Config, error) {
	cfg := Default()
	cfg.overlayEnv()
	return cfg, cfg.validate()
}

// overlayEnv overlays environment variables on top of file-based config
func (c *Config) overlayEnv() {
	if host := getEnv("ADSIGN_SERVER_HOST", ""); host != "" {
		c.Server.Host = host
	}
	if port := getEnvAsInt("ADSIGN_SERVER_PORT", 0); port != 0 {
		c.Server.Port = port
	}
	if readTimeout := getEnvAsDuration("ADSIGN_SERVER_READ_TIMEOUT", 0); readTimeout != 0 {
		c.Server.ReadTimeout = readTimeout
	}
	if writeTimeout := getEnvAsDuration("ADSIGN_SERVER_WRITE_TIMEOUT", 0); writeTimeout != 0 {
		c.Server.WriteTimeout = writeTimeout
	}
	if tlsCert := getEnv("ADSIGN_TLS_CERT", ""); tlsCert != "" {
		c.Server.TLSCert = tlsCert
	}
	if tlsKey := getEnv("ADSIGN_TLS_KEY", ""); tlsKey != "" {
		c.Server.TLSKey = tlsKey
	}

	if driver := getEnv("ADSIGN_STORAGE_DRIVER", ""); driver != "" {
		c.Storage.Driver = driver
	}

	// Database config - check multiple env var names
	if host := getEnvMulti([]string{"ADSIGN_DB_HOST", "DB_HOST", "POSTGRES_HOST"}, ""); host != "" {
		c.Database.Host = host
	}
	if port := getEnvAsIntMulti([]string{"ADSIGN_DB_PORT", "DB_PORT", "POSTGRES_PORT"}, 0); port != 0 {
		c.Database.Port = port
	}
	if name := getEnvMulti([]string{"ADSIGN_DB_NAME", "DB_NAME", "POSTGRES_DB"}, ""); name != "" {
		c.Database.Name = name
	}
	if user := getEnvMulti([]string{"ADSIGN_DB_USER", "DB_USER", "POSTGRES_USER"}, ""); user != "" {
		c.Database.User = user
	}
	if password := getEnvMulti([]string{"ADSIGN_DB_PASSWORD", "DB_PASSWORD", "POSTGRES_PASSWORD"}, ""); password != "" {
		c.Database.Password = password
	}
	if sslmode := getEnv("ADSIGN_DB_SSLMODE", ""); sslmode != "" {
		c.Database.SSLMode = sslmode
	}
	if maxOpenConns := getEnvAsInt("ADSIGN_DB_MAX_OPEN_CONNS", 0); maxOpenConns != 0 {
		c.Database.MaxOpenConns = maxOpenConns
	}
	if maxIdleConns := getEnvAsInt("ADSIGN_DB_MAX_IDLE_CONNS", 0); maxIdleConns != 0 {
		c.Database.MaxIdleConns = maxIdleConns
	}

	if addr := getEnv("ADSIGN_REDIS_ADDR", ""); addr != "" {
		c.Redis.Addr = addr
	}
	if password := getEnv("ADSIGN_REDIS_PASSWORD", ""); password != "" {
		c.Redis.Password = password
	}

	if key := getEnv("ADSIGN_AUTH_TOKEN_KEY", ""); key != "" {
		c.Auth.TokenSigningKey = key
	}
	if expiry := getEnvAsDuration("ADSIGN_AUTH_TOKEN_EXPIRY", 0); expiry != 0 {
		c.Auth.TokenExpiry = expiry
	}

	if attempts := getEnvAsInt("ADSIGN_REGISTRATION_MAX_ATTEMPTS", 0); attempts != 0 {
		c.Registration.MaxAttempts = attempts
	}
	if retention := getEnvAsDuration("ADSIGN_REJECTED_RETENTION", 0); retention != 0 {
		c.Liveness.RejectedRetention = retention
	}
	if interval := getEnvAsDuration("ADSIGN_SWEEP_INTERVAL", 0); interval != 0 {
		c.Liveness.SweepInterval = interval
	}
}
