// Package config loads SDK settings from the environment and optional .env
// files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/MJE43/funtico-sdk-go/internal/credentials"
)

// Environment selects the default backend URLs.
type Environment string

const (
	Staging Environment = "staging"
	Prod    Environment = "prod"
)

type urls struct {
	api, site, platformAPI string
}

var environments = map[Environment]urls{
	Staging: {
		api:         "https://funtico-sdk-staging.azurewebsites.net",
		site:        "https://staging.funtico.com",
		platformAPI: "https://staging.api.funtico.com",
	},
	Prod: {
		api:         "https://funtico-sdk.azurewebsites.net",
		site:        "https://funtico.com",
		platformAPI: "https://api.funtico.com",
	},
}

// SecretSource looks up a stored private key for a game. A miss is reported
// as credentials.ErrNotFound.
type SecretSource interface {
	PrivateKey(game string) (string, error)
}

// Config is the resolved SDK configuration.
type Config struct {
	Environment Environment `env:"FUNTICO_ENV" envDefault:"staging"`
	APIURL      string      `env:"FUNTICO_API_URL"`
	SiteURL     string      `env:"FUNTICO_SITE_URL"`
	PlatformURL string      `env:"FUNTICO_PLATFORM_API_URL"`

	PublicKey     string `env:"FUNTICO_PUBLIC_KEY"`
	PrivateKey    string `env:"FUNTICO_PRIVATE_KEY"`
	PlatformToken string `env:"FUNTICO_PLATFORM_TOKEN"`
	SessionID     string `env:"FUNTICO_SESSION_ID"`
	ServerMode    bool   `env:"FUNTICO_SERVER_MODE"`

	MaxRetries     int           `env:"FUNTICO_MAX_RETRIES" envDefault:"3"`
	RetryDelay     time.Duration `env:"FUNTICO_RETRY_DELAY" envDefault:"500ms"`
	MaxRetryDelay  time.Duration `env:"FUNTICO_MAX_RETRY_DELAY" envDefault:"5s"`
	RequestTimeout time.Duration `env:"FUNTICO_REQUEST_TIMEOUT" envDefault:"30s"`

	JournalPath    string `env:"FUNTICO_JOURNAL_PATH"`
	KeyringService string `env:"FUNTICO_KEYRING_SERVICE" envDefault:"funtico-sdk"`
	SecretsFile    string `env:"FUNTICO_SECRETS_FILE"`

	SandboxAddr string `env:"FUNTICO_SANDBOX_ADDR" envDefault:"127.0.0.1:8088"`
}

// Load reads the given .env files when they exist, then parses the
// environment. Variables already set in the process win over file values.
func Load(files ...string) (Config, error) {
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) > 0 {
		if err := godotenv.Load(present...); err != nil {
			return Config{}, fmt.Errorf("config: load env files: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.resolve(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) resolve() error {
	c.Environment = Environment(strings.ToLower(strings.TrimSpace(string(c.Environment))))
	u, ok := environments[c.Environment]
	if !ok {
		return fmt.Errorf("config: unknown environment %q", c.Environment)
	}
	if c.APIURL == "" {
		c.APIURL = u.api
	}
	if c.SiteURL == "" {
		c.SiteURL = u.site
	}
	if c.PlatformURL == "" {
		c.PlatformURL = u.platformAPI
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	c.PlatformURL = strings.TrimRight(c.PlatformURL, "/")
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: FUNTICO_MAX_RETRIES must be >= 0")
	}
	return nil
}

// UsersURL is the platform endpoint for batch identity lookup.
func (c Config) UsersURL() string {
	return c.PlatformURL + "/api/v1/web/users"
}

// FillSecrets loads a missing private key from secrets, keyed by the public
// key. A missing stored key is not an error; Validate reports it.
func (c *Config) FillSecrets(secrets SecretSource) error {
	if c.PrivateKey != "" || secrets == nil || c.PublicKey == "" {
		return nil
	}
	key, err := secrets.PrivateKey(c.PublicKey)
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("config: load private key: %w", err)
	}
	c.PrivateKey = key
	return nil
}

// Validate checks the settings every SDK client needs.
func (c Config) Validate() error {
	var errs []error
	if c.PublicKey == "" {
		errs = append(errs, errors.New("FUNTICO_PUBLIC_KEY is required"))
	}
	if c.PrivateKey == "" {
		errs = append(errs, errors.New("FUNTICO_PRIVATE_KEY is required (or store it in the keychain)"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
