// Package config loads server settings from built-in defaults, an optional
// TOML file and GAMEVAULT_* environment variables, in that order.
package config

import (
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"gamevault/internal/server/repository/sqlstore"
	"gamevault/internal/shared/passhash"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvTest relaxes secret requirements for automated tests.
const EnvTest = "test"

var (
	ErrMissingSecret  = errors.New("jwt secret is not set (GAMEVAULT_JWT_SECRET)")
	ErrInsecureSecret = errors.New("jwt secret is a known placeholder")
)

var placeholderSecrets = []string{"changeme", "secret", "dev-secret-change"}

type Config struct {
	Env      string         `toml:"env" env:"GAMEVAULT_ENV"`
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Games    GamesConfig    `toml:"games"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Addr            string        `toml:"addr" env:"GAMEVAULT_HTTP_ADDR"`
	MaxRequestBytes int64         `toml:"max_request_bytes" env:"GAMEVAULT_MAX_REQUEST_BYTES"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" env:"GAMEVAULT_SHUTDOWN_TIMEOUT"`
	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP. Leave off unless a reverse proxy sets those headers.
	TrustProxyHeaders bool `toml:"trust_proxy_headers" env:"GAMEVAULT_TRUST_PROXY_HEADERS"`
}

type DatabaseConfig struct {
	Driver       string `toml:"driver" env:"GAMEVAULT_DB_DRIVER"`
	DSN          string `toml:"dsn" env:"GAMEVAULT_DB_DSN"`
	MaxOpenConns int    `toml:"max_open_conns" env:"GAMEVAULT_DB_MAX_OPEN_CONNS"`
	MaxIdleConns int    `toml:"max_idle_conns" env:"GAMEVAULT_DB_MAX_IDLE_CONNS"`
}

type AuthConfig struct {
	JWTSecret    string  `toml:"jwt_secret" env:"GAMEVAULT_JWT_SECRET"`
	PasswordHash string  `toml:"password_hash" env:"GAMEVAULT_PASSWORD_HASH"`
	RateLimit    float64 `toml:"rate_limit" env:"GAMEVAULT_AUTH_RATE_LIMIT"`
	RateBurst    int     `toml:"rate_burst" env:"GAMEVAULT_AUTH_RATE_BURST"`
}

type GamesConfig struct {
	MaxPageSize int `toml:"max_page_size" env:"GAMEVAULT_MAX_PAGE_SIZE"`
}

type LogConfig struct {
	Level string `toml:"level" env:"GAMEVAULT_LOG_LEVEL"`
}

// Default returns the settings from the embedded example file.
func Default() Config {
	var cfg Config
	if err := toml.Unmarshal(exampleConf, &cfg); err != nil {
		panic(fmt.Sprintf("parse embedded default config: %v", err))
	}
	return cfg
}

// Load layers the file at path (if non-empty) and the environment over the
// defaults, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.IsTest() && cfg.Auth.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return Config{}, err
		}
		cfg.Auth.JWTSecret = secret
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsTest() bool { return c.Env == EnvTest }

func (c Config) Validate() error {
	secret := strings.TrimSpace(c.Auth.JWTSecret)
	if !c.IsTest() {
		if secret == "" {
			return ErrMissingSecret
		}
		for _, p := range placeholderSecrets {
			if strings.EqualFold(secret, p) {
				return ErrInsecureSecret
			}
		}
	}
	if _, err := sqlstore.ParseDialect(c.Database.Driver); err != nil {
		return err
	}
	if _, err := passhash.New(c.Auth.PasswordHash); err != nil {
		return err
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is empty")
	}
	if c.Auth.RateLimit < 0 || c.Games.MaxPageSize < 0 {
		return errors.New("rate_limit and max_page_size must not be negative")
	}
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// WriteExample writes the example configuration to path, refusing to
// overwrite an existing file.
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, exampleConf, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
