package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// defaults registers every key with viper, including the empty ones, so
// that AutomaticEnv overrides reach Unmarshal.
var defaults = map[string]any{
	"app.name": "medistore",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "medistore",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.host":     "",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"jwt.secret":                   "",
	"jwt.refresh_secret":           "",
	"jwt.access_token_expiration":  15 * time.Minute,
	"jwt.refresh_token_expiration": 168 * time.Hour,
	"jwt.issuer":                   "medistore",

	"auth.bcrypt_cost":         12,
	"auth.max_failed_attempts": 5,
	"auth.lock_duration":       15 * time.Minute,
	"auth.otp_length":          6,
	"auth.otp_ttl":             5 * time.Minute,
	"auth.otp_max_attempts":    5,
	"auth.verifier_secret":     "",
	"auth.sms_cooldown":        time.Minute,
	"auth.google_client_id":    "",
	"auth.google_jwks_url":     "https://www.googleapis.com/oauth2/v3/certs",
	"auth.events_channel":      "medistore:auth-events",

	"auth.challenge.secret":     "",
	"auth.challenge.verify_url": "https://www.google.com/recaptcha/api/siteverify",
	"auth.challenge.hostname":   "",
	"auth.challenge.min_score":  0.0,

	"orders.idempotency_enabled": true,
	"orders.idempotency_ttl":     24 * time.Hour,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":             15 * time.Second,
	"http.write_timeout":            time.Duration(0),
	"http.idle_timeout":             60 * time.Second,
	"http.max_header_bytes":         1 << 20,
	"http.max_body_size":            int64(1 << 20),
	"http.auth_rate_limit_enabled":  true,
	"http.auth_rate_limit_requests": 10,
	"http.auth_rate_limit_window":   time.Minute,
	"http.auth_rate_limit_burst":    5,
	"http.cors_allow_origins":       []string{},
	"http.cors_allow_methods":       []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	"http.cors_allow_headers":       []string{"Content-Type", "Authorization", "X-Request-ID", "Idempotency-Key"},
	"http.trusted_proxies":          []string{},
	"http.sse_heartbeat":            30 * time.Second,

	"storage.endpoint":          "",
	"storage.region":            "us-east-1",
	"storage.bucket":            "",
	"storage.access_key_id":     "",
	"storage.secret_access_key": "",
	"storage.use_path_style":    true,
	"storage.presign_expiry":    15 * time.Minute,
	"storage.public_base_url":   "",

	"telemetry.enabled":            false,
	"telemetry.collector_endpoint": "localhost:4317",
	"telemetry.sampling_ratio":     1.0,
	"telemetry.service_name":       "",
	"telemetry.insecure":           true,
	"telemetry.db_trace_enabled":   true,
	"telemetry.db_log_full_sql":    false,
	"telemetry.metrics_enabled":    true,

	"client.base_url":          "",
	"client.timeout":           10 * time.Second,
	"client.store_path":        "shopctl.db",
	"client.cart_merge_policy": "append",
	"client.max_retries":       2,
	"client.retry_backoff":     500 * time.Millisecond,
}

// derive fills values that depend on other settings
func (c *Config) derive() {
	if !c.IsProduction() {
		if c.JWT.Secret == "" {
			c.JWT.Secret = "insecure-development-secret-change-me"
		}
		if c.Auth.VerifierSecret == "" {
			c.Auth.VerifierSecret = "insecure-development-verifier"
		}
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = c.App.Name
	}
	if c.Client.BaseURL == "" {
		c.Client.BaseURL = "http://localhost:" + c.App.Port
	}
	c.Client.CartMergePolicy = strings.ToLower(c.Client.CartMergePolicy)
}

func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	db := c.Database
	check(db.MaxOpenConns > 0, "database.max_open_conns must be positive")
	check(db.MaxIdleConns >= 0, "database.max_idle_conns cannot be negative")
	check(db.MaxIdleConns <= db.MaxOpenConns,
		"database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)
	check(c.Auth.OTPLength >= 4 && c.Auth.OTPLength <= 10,
		"auth.otp_length must be between 4 and 10, got %d", c.Auth.OTPLength)
	check(c.Auth.SMSCooldown >= 0, "auth.sms_cooldown cannot be negative")
	check(c.Auth.Challenge.MinScore >= 0 && c.Auth.Challenge.MinScore <= 1,
		"auth.challenge.min_score must be between 0 and 1, got %g", c.Auth.Challenge.MinScore)
	check(c.Telemetry.SamplingRatio >= 0 && c.Telemetry.SamplingRatio <= 1,
		"telemetry.sampling_ratio must be between 0 and 1, got %g", c.Telemetry.SamplingRatio)
	check(c.Client.CartMergePolicy == "append" || c.Client.CartMergePolicy == "merge",
		"client.cart_merge_policy must be append or merge, got %q", c.Client.CartMergePolicy)

	if c.IsProduction() {
		check(len(c.JWT.Secret) >= 32, "jwt.secret must be at least 32 characters in production")
		check(db.Password != "", "database.password is required in production")
		check(db.SSLMode != "disable", "database.sslmode cannot be disable in production")
		check(c.Auth.VerifierSecret != "", "auth.verifier_secret is required in production")
		check(c.Auth.Challenge.Secret != "", "auth.challenge.secret is required in production")
		check(c.Auth.BcryptCost >= 10, "auth.bcrypt_cost must be at least 10 in production")
		check(!slices.Contains(c.HTTP.CORSAllowOrigins, "*"), "http.cors_allow_origins cannot contain * in production")
		check(!c.Telemetry.DBLogFullSQL, "telemetry.db_log_full_sql must be false in production")
	}
	return errors.Join(errs...)
}
