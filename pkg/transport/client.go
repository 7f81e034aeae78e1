// Package transport is the HTTP client the SDK uses to reach the tournament
// backend and the platform API.
//
// Every request carries the game's public key, a mode-specific session
// header and the player's bearer token. Connection failures, 429 and 5xx
// responses are retried with exponential backoff; anything else fails on the
// first attempt. All failures are returned as *Error, which matches
// ErrTransport.
//
// # Usage
//
//	c := transport.NewClient(transport.Config{
//	    BaseURL:       "https://funtico-sdk-staging.azurewebsites.net",
//	    PublicGameKey: "public-key",
//	    SessionID:     uuid.NewString(),
//	    Tokens:        authenticator,
//	})
//
//	room, err := transport.GetJSON[rooms.Room](ctx, c, "/Rooms/get-room?roomId=12")
package transport

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MJE43/funtico-sdk-go/pkg/transport"

// TokenSource supplies the bearer token attached to each request. An empty
// token omits the Authorization header.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// Config holds configuration for the transport client.
type Config struct {
	// BaseURL is the SDK backend root. Relative request paths are resolved
	// against it; absolute URLs are used as given.
	BaseURL string

	// PublicGameKey is sent as X-User-Key on every request.
	PublicGameKey string

	// PrivateGameKey signs the X-Server-Key header in server mode. It is
	// never sent.
	PrivateGameKey string

	// SessionID identifies this process to the backend. Sent as
	// X-Server-Session-Id in server mode and X-Client-Session-Id otherwise.
	SessionID string

	// Server switches the client to dedicated-server headers.
	Server bool

	// Tokens supplies the bearer token. Optional.
	Tokens TokenSource

	// MaxRetries is the maximum number of retry attempts for retryable errors.
	// Defaults to 3 if zero.
	MaxRetries int

	// BaseRetryDelay is the initial delay before the first retry.
	// Defaults to 500ms if zero.
	BaseRetryDelay time.Duration

	// MaxRetryDelay caps the exponential backoff delay.
	// Defaults to 5 seconds if zero.
	MaxRetryDelay time.Duration

	// HTTPClient allows injecting a custom HTTP client (useful for testing).
	// Defaults to a client with 30s timeout.
	HTTPClient *http.Client

	// UserAgent overrides the User-Agent header. Optional.
	UserAgent string

	// Logger receives one line per request. Defaults to discarding output.
	Logger *log.Logger
}

// Client is the backend HTTP client. It is safe for concurrent use.
type Client struct {
	config Config
	http   *http.Client
	log    *log.Logger
	tracer trace.Tracer

	mu sync.RWMutex
}

// NewClient creates a transport client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseRetryDelay == 0 {
		cfg.BaseRetryDelay = 500 * time.Millisecond
	}
	if cfg.MaxRetryDelay == 0 {
		cfg.MaxRetryDelay = 5 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Client{
		config: cfg,
		http:   httpClient,
		log:    logger,
		tracer: otel.Tracer(tracerName),
	}
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// SessionID returns the session id sent with every request.
func (c *Client) SessionID() string {
	return c.config.SessionID
}

// ServerMode reports whether server headers are sent.
func (c *Client) ServerMode() bool {
	return c.config.Server
}

// SetTokens replaces the bearer token source (thread-safe).
func (c *Client) SetTokens(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config.Tokens = ts
}

// Get issues a GET and returns the response body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.doWithRetry(ctx, http.MethodGet, path, nil, "")
}

// Post JSON-encodes body, issues a POST and returns the response body. A nil
// body sends no payload.
func (c *Client) Post(ctx context.Context, path string, body any) ([]byte, error) {
	return c.doWithRetry(ctx, http.MethodPost, path, body, "")
}

// GetAs issues a GET with an explicit bearer token instead of the token
// source. Used by login before a token source exists.
func (c *Client) GetAs(ctx context.Context, path, token string) ([]byte, error) {
	return c.doWithRetry(ctx, http.MethodGet, path, nil, token)
}

// PostAs is Post with an explicit bearer token.
func (c *Client) PostAs(ctx context.Context, path string, body any, token string) ([]byte, error) {
	return c.doWithRetry(ctx, http.MethodPost, path, body, token)
}

// GetJSON issues a GET and decodes the response into T.
func GetJSON[T any](ctx context.Context, c *Client, path string) (T, error) {
	var out T
	raw, err := c.Get(ctx, path)
	if err != nil {
		return out, err
	}
	return decode[T](http.MethodGet, path, raw)
}

// PostJSON issues a POST and decodes the response into T.
func PostJSON[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	var out T
	raw, err := c.Post(ctx, path, body)
	if err != nil {
		return out, err
	}
	return decode[T](http.MethodPost, path, raw)
}

func decode[T any](method, path string, raw []byte) (T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &Error{Method: method, Path: pathOnly(path), Body: string(raw), Err: fmt.Errorf("decode response: %w", err)}
	}
	return out, nil
}

// --- Core request methods ---

func (c *Client) doWithRetry(ctx context.Context, method, path string, body any, token string) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, &Error{Method: method, Path: pathOnly(path), Err: fmt.Errorf("marshal request: %w", err)}
		}
	}

	ctx, span := c.tracer.Start(ctx, "funtico "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("funtico.path", pathOnly(path)),
		),
	)
	defer span.End()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.config.BaseRetryDelay
	exp.MaxInterval = c.config.MaxRetryDelay

	attempt := 0
	op := func() ([]byte, error) {
		attempt++
		out, err := c.doRequest(ctx, method, path, payload, token)
		if err == nil {
			return out, nil
		}
		var te *Error
		if errors.As(err, &te) && te.IsRetryable() {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(uint(c.config.MaxRetries+1)),
		backoff.WithNotify(func(err error, d time.Duration) {
			c.log.Printf("%s %s failed, retrying in %s: %v", method, pathOnly(path), d, err)
		}),
	)
	span.SetAttributes(attribute.Int("funtico.attempts", attempt))
	if err != nil {
		var te *Error
		if !errors.As(err, &te) {
			// context cancellation while waiting between attempts
			te = &Error{Method: method, Path: pathOnly(path), Err: err}
			err = te
		}
		span.SetAttributes(attribute.Int("http.response.status_code", te.StatusCode))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

// doRequest sends a single request and returns the raw body of a 2xx
// response.
func (c *Client) doRequest(ctx context.Context, method, path string, payload []byte, token string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), reader)
	if err != nil {
		return nil, &Error{Method: method, Path: pathOnly(path), Err: fmt.Errorf("create request: %w", err)}
	}
	c.setHeaders(req, token)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Printf("%s %s: %v", method, pathOnly(path), err)
		return nil, &Error{Method: method, Path: pathOnly(path), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Method: method, Path: pathOnly(path), StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	c.log.Printf("%s %s %d (%s)", method, pathOnly(path), resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Method: method, Path: pathOnly(path), StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func (c *Client) setHeaders(req *http.Request, token string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Key", c.config.PublicGameKey)
	if c.config.Server {
		req.Header.Set("X-Server-Key", ServerKey(c.config.PrivateGameKey, c.config.PublicGameKey))
		req.Header.Set("X-Server-Session-Id", c.config.SessionID)
	} else {
		req.Header.Set("X-Client-Session-Id", c.config.SessionID)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	if token == "" {
		c.mu.RLock()
		ts := c.config.Tokens
		c.mu.RUnlock()
		if ts != nil {
			token = ts.Token()
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

// ServerKey is the X-Server-Key proof: hex HMAC-SHA256 of the private key
// under the public key.
func ServerKey(privateKey, publicKey string) string {
	mac := hmac.New(sha256.New, []byte(publicKey))
	mac.Write([]byte(privateKey))
	return hex.EncodeToString(mac.Sum(nil))
}

// pathOnly strips the query string so ids and tokens in it stay out of logs
// and spans.
func pathOnly(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
