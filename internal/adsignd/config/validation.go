package config

import (
	"errors"
	"fmt"
	"time"
)

const minSigningKeyLen = 32

// validate reports every problem in the configuration at once
func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(validPort(c.Server.Port), "invalid server port: %d", c.Server.Port)
	check((c.Server.TLSCert == "") == (c.Server.TLSKey == ""), "TLS cert and key must be set together")

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		check(validPort(c.Database.Port), "invalid database port: %d", c.Database.Port)
		check(c.Database.MaxOpenConns > 0, "database maxOpenConns must be positive, got %d", c.Database.MaxOpenConns)
		check(c.Database.MaxIdleConns > 0, "database maxIdleConns must be positive, got %d", c.Database.MaxIdleConns)
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver: %q", c.Storage.Driver))
	}

	key := c.Auth.TokenSigningKey
	check(key != "", "auth token signing key is required")
	check(key == "" || len(key) >= minSigningKeyLen, "auth token signing key must be at least %d bytes", minSigningKeyLen)
	check(c.Auth.TokenExpiry >= time.Minute, "auth token expiry must be at least 1m, got %s", c.Auth.TokenExpiry)

	check(c.RateLimit.RegisterPerMinute > 0, "rate limit registerPerMinute must be positive")
	check(c.RateLimit.DevicePerMinute > 0, "rate limit devicePerMinute must be positive")
	check(c.Registration.MaxAttempts > 0, "registration max attempts must be at least 1")

	check(c.Liveness.RejectedRetention >= 0, "liveness rejectedRetention must not be negative")
	if c.Liveness.RejectedRetention > 0 {
		check(c.Liveness.SweepInterval >= time.Minute, "liveness sweep interval must be at least 1m when retention is enabled")
	}

	return errors.Join(errs...)
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}
