package funtico

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MJE43/funtico-sdk-go/internal/config"
	"github.com/MJE43/funtico-sdk-go/internal/credentials"
)

// Config is everything Configure needs.
type Config struct {
	// APIURL is the SDK backend root.
	APIURL string
	// UsersURL is the platform's batch user lookup endpoint. Leaderboards
	// render without names when it is empty.
	UsersURL string

	PublicKey  string
	PrivateKey string
	// PlatformToken, when set, is used to log in during Configure.
	PlatformToken string
	// SessionID identifies this process to the backend. A random id is used
	// when empty.
	SessionID string
	// ServerMode sends dedicated-server credentials instead of a player
	// token.
	ServerMode bool

	MaxRetries     int
	RetryDelay     time.Duration
	MaxRetryDelay  time.Duration
	RequestTimeout time.Duration

	// JournalPath enables the local checkpoint journal.
	JournalPath string

	// HTTPClient overrides the HTTP client built from RequestTimeout.
	HTTPClient *http.Client
}

// LoadConfig reads FUNTICO_* settings from the environment and the given
// .env files, filling missing secrets from the OS keychain.
func LoadConfig(files ...string) (Config, error) {
	cfg, err := config.Load(files...)
	if err != nil {
		return Config{}, err
	}
	store := credentials.New(cfg.KeyringService, cfg.SecretsFile)
	if err := cfg.FillSecrets(store); err != nil {
		return Config{}, err
	}
	if cfg.PlatformToken == "" && cfg.PublicKey != "" {
		tok, err := store.PlatformToken(cfg.PublicKey)
		switch {
		case err == nil:
			cfg.PlatformToken = tok
		case !errors.Is(err, credentials.ErrNotFound):
			return Config{}, fmt.Errorf("funtico: load platform token: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return Config{
		APIURL:         cfg.APIURL,
		UsersURL:       cfg.UsersURL(),
		PublicKey:      cfg.PublicKey,
		PrivateKey:     cfg.PrivateKey,
		PlatformToken:  cfg.PlatformToken,
		SessionID:      cfg.SessionID,
		ServerMode:     cfg.ServerMode,
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.RetryDelay,
		MaxRetryDelay:  cfg.MaxRetryDelay,
		RequestTimeout: cfg.RequestTimeout,
		JournalPath:    cfg.JournalPath,
	}, nil
}

func (c Config) validate() error {
	var errs []error
	if c.APIURL == "" {
		errs = append(errs, errors.New("APIURL is required"))
	}
	if c.PublicKey == "" {
		errs = append(errs, errors.New("PublicKey is required"))
	}
	if c.PrivateKey == "" {
		errs = append(errs, errors.New("PrivateKey is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("funtico: invalid config: %w", errors.Join(errs...))
	}
	return nil
}
