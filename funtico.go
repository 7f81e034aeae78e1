// Package funtico is the SDK entry point. A Client is constructed
// explicitly, configured once, and shut down when the game exits:
//
//	c := funtico.New(funtico.WithLogger(logger))
//	if err := c.Configure(ctx, cfg); err != nil {
//	    return err
//	}
//	defer c.Shutdown(context.Background())
//
//	id, err := c.Sessions().CreateSession(ctx, state, "runner", roomID, "")
//
// Subsystem accessors return nil until Configure succeeds.
package funtico

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/MJE43/funtico-sdk-go/internal/journal"
	"github.com/MJE43/funtico-sdk-go/pkg/account"
	"github.com/MJE43/funtico-sdk-go/pkg/auth"
	"github.com/MJE43/funtico-sdk-go/pkg/envelope"
	"github.com/MJE43/funtico-sdk-go/pkg/leaderboard"
	"github.com/MJE43/funtico-sdk-go/pkg/rooms"
	"github.com/MJE43/funtico-sdk-go/pkg/session"
	"github.com/MJE43/funtico-sdk-go/pkg/transport"
)

var (
	// ErrNotConfigured is returned by operations that need a configured
	// client.
	ErrNotConfigured = errors.New("funtico: client not configured")
	// ErrAlreadyConfigured is returned by Configure on a configured client.
	ErrAlreadyConfigured = errors.New("funtico: client already configured")
)

// Option customises a Client.
type Option func(*Client)

// WithLogger sets the parent logger. Each subsystem logs through a copy with
// its own prefix.
func WithLogger(l *log.Logger) Option { return func(c *Client) { c.log = l } }

// Client owns every SDK subsystem. It is safe for concurrent use.
type Client struct {
	log *log.Logger

	mu         sync.RWMutex
	configured bool
	cfg        Config
	transport  *transport.Client
	auth       *auth.Authenticator
	account    *account.Service
	rooms      *rooms.Client
	sessions   *session.ClientManager
	server     *session.ServerManager
	board      *leaderboard.Aggregator
	journal    *journal.Store
}

// New creates an unconfigured client.
func New(opts ...Option) *Client {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = log.New(io.Discard, "", 0)
	}
	return c
}

func (c *Client) sub(prefix string) *log.Logger {
	if c.log.Writer() == io.Discard {
		return c.log
	}
	return log.New(c.log.Writer(), prefix, c.log.Flags())
}

// Configure builds every subsystem from cfg and, when cfg carries a platform
// token, logs in. On error the client stays unconfigured.
func (c *Client) Configure(ctx context.Context, cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.configured {
		return ErrAlreadyConfigured
	}

	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil && cfg.RequestTimeout > 0 {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	tc := transport.NewClient(transport.Config{
		BaseURL:        cfg.APIURL,
		PublicGameKey:  cfg.PublicKey,
		PrivateGameKey: cfg.PrivateKey,
		SessionID:      cfg.SessionID,
		Server:         cfg.ServerMode,
		MaxRetries:     cfg.MaxRetries,
		BaseRetryDelay: cfg.RetryDelay,
		MaxRetryDelay:  cfg.MaxRetryDelay,
		HTTPClient:     httpClient,
		Logger:         c.sub("[transport] "),
	})
	authn := auth.New(tc, c.sub("[auth] "))
	if !cfg.ServerMode {
		tc.SetTokens(authn)
	}

	var store *journal.Store
	if cfg.JournalPath != "" {
		s, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("funtico: configure: %w", err)
		}
		store = s
	}

	codec := envelope.NewCodec(cfg.PrivateKey)
	acct := account.NewService(tc)
	rc := rooms.NewClient(tc, codec, c.sub("[rooms] "))
	backend := session.NewHTTPBackend(tc)
	clientCfg := session.ClientConfig{
		Backend: backend,
		Codec:   codec,
		Users:   acct,
		Logger:  c.sub("[session] "),
	}
	if store != nil {
		clientCfg.Journal = store
	}

	var identities leaderboard.IdentityResolver
	if cfg.UsersURL != "" {
		identities = leaderboard.NewPlatformResolver(tc, cfg.UsersURL, authn)
	}

	if cfg.PlatformToken != "" && !cfg.ServerMode {
		if _, err := authn.Login(ctx, cfg.PlatformToken); err != nil {
			if store != nil {
				store.Close()
			}
			return fmt.Errorf("funtico: configure: %w", err)
		}
	}

	c.cfg = cfg
	c.transport = tc
	c.auth = authn
	c.account = acct
	c.rooms = rc
	c.sessions = session.NewClientManager(clientCfg)
	c.server = session.NewServerManager(backend, c.sub("[session] "))
	c.board = leaderboard.NewAggregator(rc, identities, acct, c.sub("[leaderboard] "))
	c.journal = store
	c.configured = true
	c.log.Printf("configured for %s (server mode %v)", cfg.APIURL, cfg.ServerMode)
	return nil
}

// Shutdown closes the active client session and any open match session,
// closes the journal and forgets the login. The client can be configured
// again afterwards. Shutting down an unconfigured client is a no-op.
//
// If the client session is busy or the backend refuses to close the match,
// Shutdown returns the error and leaves the client configured, so the call
// can be retried without losing participant logs.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.configured {
		return nil
	}

	if err := c.sessions.Close(ctx); err != nil {
		return fmt.Errorf("funtico: shutdown: %w", err)
	}
	if c.server.MatchID() != "" {
		if err := c.server.CloseMatchSession(ctx); err != nil && !errors.Is(err, session.ErrNoMatchSession) {
			return fmt.Errorf("funtico: shutdown: %w", err)
		}
	}
	var err error
	if c.journal != nil {
		err = c.journal.Close()
	}
	c.auth.Logout()

	c.configured = false
	c.cfg = Config{}
	c.transport, c.auth, c.account, c.rooms = nil, nil, nil, nil
	c.sessions, c.server, c.board, c.journal = nil, nil, nil, nil
	if err != nil {
		return fmt.Errorf("funtico: shutdown: %w", err)
	}
	return nil
}

// Login exchanges a platform token for an SDK token and drops cached
// account data of any previous player.
func (c *Client) Login(ctx context.Context, platformToken string) (auth.Session, error) {
	c.mu.RLock()
	a, acct := c.auth, c.account
	c.mu.RUnlock()
	if a == nil {
		return auth.Session{}, ErrNotConfigured
	}
	s, err := a.Login(ctx, platformToken)
	if err != nil {
		return auth.Session{}, err
	}
	acct.Reset()
	return s, nil
}

// FinishRoom submits the player's score for a room session together with
// the active session's event log. The client session is closed only after the
// backend accepts the score.
func (c *Client) FinishRoom(ctx context.Context, eventID, sessionID string, score int64) error {
	c.mu.RLock()
	rc, acct, sessions := c.rooms, c.account, c.sessions
	c.mu.RUnlock()
	if rc == nil {
		return ErrNotConfigured
	}

	user, err := acct.UserData(ctx, false)
	if err != nil {
		return fmt.Errorf("funtico: finish room: %w", err)
	}
	sub := rooms.ScoreSubmission{Score: &score, UserID: user.UserID, GameEvents: sessions.Events()}
	if err := rc.FinishClient(ctx, eventID, sessionID, sub); err != nil {
		return err
	}
	return sessions.Close(ctx)
}

// FinishRoomServer submits one match participant's score from a dedicated
// server, together with the events recorded for that participant.
func (c *Client) FinishRoomServer(ctx context.Context, eventID string, participantID, score int64) error {
	c.mu.RLock()
	rc, server := c.rooms, c.server
	c.mu.RUnlock()
	if rc == nil {
		return ErrNotConfigured
	}

	matchID := server.MatchID()
	if matchID == "" {
		return fmt.Errorf("funtico: finish room server: %w", session.ErrNoMatchSession)
	}
	p, err := server.Participant(participantID)
	if err != nil {
		return fmt.Errorf("funtico: finish room server: %w", err)
	}
	events, err := server.Events(participantID)
	if err != nil {
		return fmt.Errorf("funtico: finish room server: %w", err)
	}
	return rc.FinishServer(ctx, eventID, matchID, rooms.ScoreSubmission{
		Score:      &score,
		UserID:     p.SDKUserID,
		GameEvents: events,
	})
}

// FinishRoomServerAll submits the scores of several match participants in
// one call. scores is keyed by Funtico user id; every key must be a
// registered participant.
func (c *Client) FinishRoomServerAll(ctx context.Context, eventID string, scores map[int64]int64) error {
	c.mu.RLock()
	rc, server := c.rooms, c.server
	c.mu.RUnlock()
	if rc == nil {
		return ErrNotConfigured
	}

	matchID := server.MatchID()
	if matchID == "" {
		return fmt.Errorf("funtico: finish room server: %w", session.ErrNoMatchSession)
	}
	ids := make([]int64, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	users := make([]rooms.FinishedUser, 0, len(ids))
	for _, id := range ids {
		p, err := server.Participant(id)
		if err != nil {
			return fmt.Errorf("funtico: finish room server: %w", err)
		}
		events, err := server.Events(id)
		if err != nil {
			return fmt.Errorf("funtico: finish room server: %w", err)
		}
		users = append(users, rooms.FinishedUser{
			Score:         scores[id],
			UserID:        p.SDKUserID,
			FunticoUserID: p.FunticoUserID,
			GameEvents:    events,
		})
	}
	return rc.FinishAllServer(ctx, eventID, matchID, users)
}

// RoomSummaries lists rooms of a type as list rows for the logged-in player:
// each row carries the voucher usable for its tier and whether the player
// has already paid for it.
func (c *Client) RoomSummaries(ctx context.Context, typ rooms.RoomType, tier *rooms.Tier) ([]rooms.Summary, error) {
	c.mu.RLock()
	rc, acct := c.rooms, c.account
	c.mu.RUnlock()
	if rc == nil {
		return nil, ErrNotConfigured
	}

	vouchers, err := acct.Vouchers(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("funtico: room summaries: %w", err)
	}
	return rc.Summaries(ctx, typ, tier, vouchers)
}

// Transport returns the backend HTTP client.
func (c *Client) Transport() *transport.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transport
}

func (c *Client) Auth() *auth.Authenticator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth
}

func (c *Client) Account() *account.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account
}

func (c *Client) Rooms() *rooms.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms
}

// Sessions returns the player's session manager.
func (c *Client) Sessions() *session.ClientManager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessions
}

// Server returns the dedicated server's match session manager.
func (c *Client) Server() *session.ServerManager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.server
}

func (c *Client) Leaderboard() *leaderboard.Aggregator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.board
}

// JournalEntries lists the locally journaled checkpoints, newest first. It
// returns nil when no journal is configured.
func (c *Client) JournalEntries(ctx context.Context, limit int) ([]journal.Entry, error) {
	c.mu.RLock()
	store := c.journal
	c.mu.RUnlock()
	if store == nil {
		return nil, nil
	}
	return store.List(ctx, limit)
}

// DefaultLogger is a stdout logger in the SDK's format.
func DefaultLogger() *log.Logger {
	return log.New(os.Stdout, "[funtico] ", log.LstdFlags|log.Lshortfile)
}
