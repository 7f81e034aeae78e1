// Package credentials keeps the game's private key and the player's platform
// token in the OS keychain, with a JSON file fallback for hosts without one.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	partPrivateKey    = "privatekey"
	partPlatformToken = "platformtoken"

	defaultService = "funtico-sdk"
)

// ErrNotFound is returned when no secret is stored.
var ErrNotFound = keyring.ErrNotFound

// Store wraps the OS keychain with an optional file fallback. Secrets are
// scoped by game, identified by its public key.
type Store struct {
	service      string
	fallbackPath string
	mu           sync.Mutex
}

// New creates a store for the keychain service name. An empty fallbackPath
// disables the file fallback.
func New(service, fallbackPath string) *Store {
	if strings.TrimSpace(service) == "" {
		service = defaultService
	}
	return &Store{service: service, fallbackPath: fallbackPath}
}

func (s *Store) key(game, part string) string {
	return game + "/" + part
}

func (s *Store) SetPrivateKey(game, value string) error {
	return s.set(game, partPrivateKey, value)
}

func (s *Store) PrivateKey(game string) (string, error) {
	return s.get(game, partPrivateKey)
}

func (s *Store) SetPlatformToken(game, value string) error {
	return s.set(game, partPlatformToken, value)
}

func (s *Store) PlatformToken(game string) (string, error) {
	return s.get(game, partPlatformToken)
}

// DeleteAll removes every secret stored for game.
func (s *Store) DeleteAll(game string) error {
	var errs []error
	for _, part := range []string{partPrivateKey, partPlatformToken} {
		if err := keyring.Delete(s.service, s.key(game, part)); err != nil &&
			!errors.Is(err, keyring.ErrNotFound) && !isUnavailable(err) {
			errs = append(errs, err)
		}
	}
	ferr := s.deleteFallback(game)
	if len(errs) > 0 {
		return fmt.Errorf("credentials: keyring delete: %w", errors.Join(errs...))
	}
	return ferr
}

func (s *Store) set(game, part, value string) error {
	game = strings.TrimSpace(game)
	if game == "" {
		return fmt.Errorf("credentials: game key is required")
	}
	err := keyring.Set(s.service, s.key(game, part), value)
	if err == nil {
		return nil
	}
	if !isUnavailable(err) {
		return fmt.Errorf("credentials: keyring set %s: %w", part, err)
	}
	return s.setFallback(game, part, value)
}

func (s *Store) get(game, part string) (string, error) {
	game = strings.TrimSpace(game)
	if game == "" {
		return "", fmt.Errorf("credentials: game key is required")
	}
	val, err := keyring.Get(s.service, s.key(game, part))
	if err == nil {
		return val, nil
	}
	if !isUnavailable(err) && !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("credentials: keyring get %s: %w", part, err)
	}

	fallback, ferr := s.getFallback(game, part)
	if ferr == nil {
		return fallback, nil
	}
	if errors.Is(err, keyring.ErrNotFound) || errors.Is(ferr, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return "", ferr
}

func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "secret service") ||
		strings.Contains(msg, "dbus") ||
		strings.Contains(msg, "no keychain") ||
		strings.Contains(msg, "keyring backend not available")
}

type fallbackSecrets map[string]map[string]string

func (s *Store) setFallback(game, part, value string) error {
	if strings.TrimSpace(s.fallbackPath) == "" {
		return fmt.Errorf("credentials: keyring unavailable and no fallback path configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readFallback()
	if err != nil {
		return err
	}
	if data[game] == nil {
		data[game] = map[string]string{}
	}
	data[game][part] = value
	return s.writeFallback(data)
}

func (s *Store) getFallback(game, part string) (string, error) {
	if strings.TrimSpace(s.fallbackPath) == "" {
		return "", fmt.Errorf("credentials: fallback path not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readFallback()
	if err != nil {
		return "", err
	}
	val, ok := data[game][part]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return val, nil
}

func (s *Store) deleteFallback(game string) error {
	if strings.TrimSpace(s.fallbackPath) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readFallback()
	if err != nil {
		return err
	}
	if _, ok := data[game]; !ok {
		return nil
	}
	delete(data, game)
	return s.writeFallback(data)
}

func (s *Store) readFallback() (fallbackSecrets, error) {
	out := fallbackSecrets{}
	raw, err := os.ReadFile(s.fallbackPath)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("credentials: read fallback: %w", err)
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("credentials: decode fallback: %w", err)
	}
	return out, nil
}

func (s *Store) writeFallback(data fallbackSecrets) error {
	if err := os.MkdirAll(filepath.Dir(s.fallbackPath), 0o700); err != nil {
		return fmt.Errorf("credentials: mkdir fallback dir: %w", err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("credentials: encode fallback: %w", err)
	}
	if err := os.WriteFile(s.fallbackPath, raw, 0o600); err != nil {
		return fmt.Errorf("credentials: write fallback: %w", err)
	}
	return nil
}
