package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file leaves values unset.
const (
	// DefaultAddr is the fallback listen address.
	DefaultAddr = ":8317"
	// DefaultAccessExpiry is the access token lifetime when refresh is enabled.
	DefaultAccessExpiry = 15 * time.Minute
	// DefaultSingleTierExpiry is the access token lifetime when refresh is disabled.
	DefaultSingleTierExpiry = 24 * time.Hour
	// DefaultRefreshExpiry is the refresh token lifetime.
	DefaultRefreshExpiry = 30 * 24 * time.Hour
	// DefaultSessionExpiry is the server-side session lifetime.
	DefaultSessionExpiry = 24 * time.Hour
	// DefaultLockoutThreshold is the failed attempt count that locks an account.
	DefaultLockoutThreshold = 5
	// DefaultLockoutDecay is the window after which stale failure counters reset.
	DefaultLockoutDecay = 24 * time.Hour
	// DefaultChallengeTTL bounds the validity of a WebAuthn challenge.
	DefaultChallengeTTL = 120 * time.Second
	// DefaultOneTimeCodeTTL bounds the validity of a phone login code.
	DefaultOneTimeCodeTTL = 15 * time.Minute
)

// Duration wraps time.Duration for YAML decoding of values like "15m".
type Duration time.Duration

// UnmarshalYAML decodes a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("config: parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig holds storage settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret         string   `yaml:"secret"`
	AccessExpiry   Duration `yaml:"access-expiry"`
	RefreshExpiry  Duration `yaml:"refresh-expiry"`
	RefreshEnabled bool     `yaml:"refresh-enabled"`
}

// LockoutConfig holds account lockout settings.
type LockoutConfig struct {
	Threshold int      `yaml:"threshold"`
	Decay     Duration `yaml:"decay"`
}

// WebAuthnConfig holds relying party settings for hardware credentials.
type WebAuthnConfig struct {
	RPID         string   `yaml:"rp-id"`
	RPName       string   `yaml:"rp-name"`
	Origins      []string `yaml:"origins"`
	ChallengeTTL Duration `yaml:"challenge-ttl"`
}

// RedisConfig holds optional redis settings for request throttling.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig holds log file rotation settings.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// Config is the root configuration document.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Lockout  LockoutConfig  `yaml:"lockout"`
	WebAuthn WebAuthnConfig `yaml:"webauthn"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := &Config{}
	if errDecode := yaml.Unmarshal(data, cfg); errDecode != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errDecode)
	}
	cfg.applyDefaults()
	if errValidate := cfg.validate(); errValidate != nil {
		return nil, errValidate
	}
	return cfg, nil
}

// applyDefaults fills unset values with defaults.
func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.JWT.AccessExpiry == 0 {
		if c.JWT.RefreshEnabled {
			c.JWT.AccessExpiry = Duration(DefaultAccessExpiry)
		} else {
			c.JWT.AccessExpiry = Duration(DefaultSingleTierExpiry)
		}
	}
	if c.JWT.RefreshExpiry == 0 {
		c.JWT.RefreshExpiry = Duration(DefaultRefreshExpiry)
	}
	if c.Lockout.Threshold <= 0 {
		c.Lockout.Threshold = DefaultLockoutThreshold
	}
	if c.Lockout.Decay == 0 {
		c.Lockout.Decay = Duration(DefaultLockoutDecay)
	}
	if c.WebAuthn.ChallengeTTL == 0 {
		c.WebAuthn.ChallengeTTL = Duration(DefaultChallengeTTL)
	}
}

// validate rejects configs that cannot boot a working process.
func (c *Config) validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config: database.dsn is required")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("config: jwt.secret is required")
	}
	return nil
}
