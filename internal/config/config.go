package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

const (
	defaultTokenTTL          = 15 * time.Minute
	defaultSessionTTL        = 7 * 24 * time.Hour
	defaultRefreshThreshold  = 5 * time.Minute
	defaultValidationTimeout = 5 * time.Second
	defaultCookieName        = "accessToken"
	defaultLoginPath         = "/auth"
	defaultHomePath          = "/home"
	defaultVerifyPath        = "/auth/verify"
)

// Config holds the application configuration
type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AppConfig holds app-specific configuration
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host           string          `yaml:"host"`
	Port           int             `yaml:"port"`
	Domain         string          `yaml:"domain"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	ProxyHeader    string          `yaml:"proxy_header"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds per-IP rate limiting configuration
type RateLimitConfig struct {
	Max        int `yaml:"max"`
	Expiration int `yaml:"expiration"` // seconds
}

// AuthConfig holds session and token configuration.
// Durations are expressed in whole units to keep the YAML file readable.
type AuthConfig struct {
	Issuer                   string   `yaml:"issuer"`
	SecretJWKPath            string   `yaml:"secret_jwk_path"`
	TokenTTLMinutes          int      `yaml:"token_ttl_minutes"`
	SessionTTLHours          int      `yaml:"session_ttl_hours"`
	RefreshThresholdMinutes  int      `yaml:"refresh_threshold_minutes"`
	CookieName               string   `yaml:"cookie_name"`
	LoginPath                string   `yaml:"login_path"`
	HomePath                 string   `yaml:"home_path"`
	VerifyPath               string   `yaml:"verify_path"`
	PublicPaths              []string `yaml:"public_paths"`
	ValidationURL            string   `yaml:"validation_url"` // empty means in-process checks
	ValidationTimeoutSeconds int      `yaml:"validation_timeout_seconds"`
	StrictRotation           bool     `yaml:"strict_rotation"`
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds redis-specific configuration
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoggingConfig holds logging-specific configuration
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// Address returns the server address in the format "host:port"
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TokenTTL is the lifetime of a signed access token and of its cookie.
func (a *AuthConfig) TokenTTL() time.Duration {
	return minutesOr(a.TokenTTLMinutes, defaultTokenTTL)
}

// SessionTTL is the lifetime of a persisted session.
func (a *AuthConfig) SessionTTL() time.Duration {
	if a.SessionTTLHours <= 0 {
		return defaultSessionTTL
	}
	return time.Duration(a.SessionTTLHours) * time.Hour
}

// RefreshThreshold is the remaining token lifetime under which the gate rotates.
func (a *AuthConfig) RefreshThreshold() time.Duration {
	return minutesOr(a.RefreshThresholdMinutes, defaultRefreshThreshold)
}

// ValidationTimeout bounds a single gate check, local or remote.
func (a *AuthConfig) ValidationTimeout() time.Duration {
	if a.ValidationTimeoutSeconds <= 0 {
		return defaultValidationTimeout
	}
	return time.Duration(a.ValidationTimeoutSeconds) * time.Second
}

// Cookie returns the credential carrier name.
func (a *AuthConfig) Cookie() string {
	return stringOr(a.CookieName, defaultCookieName)
}

// Login returns the login route.
func (a *AuthConfig) Login() string {
	return stringOr(a.LoginPath, defaultLoginPath)
}

// Home returns the authenticated landing route.
func (a *AuthConfig) Home() string {
	return stringOr(a.HomePath, defaultHomePath)
}

// Verify returns the account verification route.
func (a *AuthConfig) Verify() string {
	return stringOr(a.VerifyPath, defaultVerifyPath)
}

func minutesOr(minutes int, fallback time.Duration) time.Duration {
	if minutes <= 0 {
		return fallback
	}
	return time.Duration(minutes) * time.Minute
}

func stringOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// Address returns the redis address in the format "host:port"
func (r *RedisConfig) Address() string {
	return net.JoinHostPort(r.Host, fmt.Sprintf("%d", r.Port))
}

// Enabled reports whether a redis host is configured.
func (r *RedisConfig) Enabled() bool {
	return r.Host != ""
}

// quoteDSNValue quotes a libpq keyword/value if it contains anything outside a safe set.
// Single quotes and backslashes inside the value are escaped.
func quoteDSNValue(value string) string {
	safe := value != ""
	for _, r := range value {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isAlnum && !strings.ContainsRune(".-_/@:", r) {
			safe = false
			break
		}
	}
	if safe || value == "" {
		return value
	}

	escaped := strings.NewReplacer(`\`, `\\`, `'`, `''`).Replace(value)
	return "'" + escaped + "'"
}

// DSN returns the database connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteDSNValue(d.Host),
		d.Port,
		quoteDSNValue(d.User),
		quoteDSNValue(d.Password),
		quoteDSNValue(d.DBName),
		quoteDSNValue(d.SSLMode),
	)
}

// URL returns the database connection URL in postgres:// format for golang-migrate
func (d *DatabaseConfig) URL() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, fmt.Sprintf("%d", d.Port)),
		Path:     "/" + d.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s&search_path=public", url.QueryEscape(d.SSLMode)),
	}

	return u.String()
}
