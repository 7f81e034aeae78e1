// Package session tracks resumable gameplay sessions: one active session per
// client device, and one event log per participant of a dedicated server's
// match session.
package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/MJE43/funtico-sdk-go/pkg/envelope"
)

// State is the lifecycle state of a ClientManager.
type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// Identity names a saved session on the backend.
type Identity struct {
	EventID       string
	SessionID     string
	SaveSessionID string
	GameType      string
}

func identityOf(env envelope.Envelope) Identity {
	return Identity{
		EventID:       env.EventID,
		SessionID:     env.SessionID,
		SaveSessionID: env.SaveSessionID,
		GameType:      env.GameType,
	}
}

func (id Identity) envelope() envelope.Envelope {
	return envelope.Envelope{
		EventID:       id.EventID,
		SessionID:     id.SessionID,
		SaveSessionID: id.SaveSessionID,
		GameType:      id.GameType,
	}
}

// Candidate is an unfinished session the player may reconnect to.
type Candidate struct {
	Identity
	// ReconnectTimeHint is the backend's reconnect deadline hint, in unix
	// seconds, or zero.
	ReconnectTimeHint int64
}

// UserIDSource supplies the platform user id the session keys are bound to.
type UserIDSource interface {
	PlatformUserID(ctx context.Context) (int64, error)
}

// StaticUserID is a UserIDSource for a known id.
type StaticUserID int64

func (id StaticUserID) PlatformUserID(context.Context) (int64, error) { return int64(id), nil }

// Journal mirrors sealed checkpoints locally. Failures are logged, never
// returned to the caller.
type Journal interface {
	Record(ctx context.Context, env envelope.Envelope) error
	Forget(ctx context.Context, saveSessionID string) error
}

// ClientConfig configures a ClientManager.
type ClientConfig struct {
	Backend ClientBackend
	Codec   *envelope.Codec
	Users   UserIDSource
	Journal Journal
	Logger  *log.Logger
}

// ClientManager owns the single active session of a client. Mutating calls
// (CreateSession, Reconnect, Checkpoint, Close) are serialized: a call made
// while another is in flight fails with ErrSessionBusy. RecordEvent never
// blocks on the network and may be called at any time.
type ClientManager struct {
	backend ClientBackend
	codec   *envelope.Codec
	users   UserIDSource
	journal Journal
	log     *log.Logger

	op sync.Mutex

	mu       sync.Mutex
	state    State
	identity Identity
	events   []string
}

// NewClientManager creates an idle manager.
func NewClientManager(cfg ClientConfig) *ClientManager {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	return &ClientManager{
		backend: cfg.Backend,
		codec:   cfg.Codec,
		users:   cfg.Users,
		journal: cfg.Journal,
		log:     cfg.Logger,
		events:  []string{},
	}
}

// State returns the current lifecycle state.
func (m *ClientManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Identity returns the active session's identity, if any.
func (m *ClientManager) Identity() (Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity, m.state == Active
}

// Events returns a copy of the buffered event log.
func (m *ClientManager) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.events...)
}

// RecordEvent appends an event to the in-memory log. It has no network
// effect; the log is persisted by the next Checkpoint.
func (m *ClientManager) RecordEvent(event string) {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
}

// HasUnfinishedSession lists sessions the backend still holds open for the
// player, in backend order.
func (m *ClientManager) HasUnfinishedSession(ctx context.Context) ([]Candidate, error) {
	envs, err := m.backend.UnfinishedSessions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(envs))
	for _, env := range envs {
		out = append(out, Candidate{Identity: identityOf(env), ReconnectTimeHint: env.ReconnectTimeHint})
	}
	return out, nil
}

// Reconnect fetches and opens a saved session, replaces the event log with
// the stored one and makes the session active. It returns the stored game
// payload. On any failure the manager is left as it was; a DecodeFailure
// (envelope.ErrDecode) means the session cannot be resumed.
func (m *ClientManager) Reconnect(ctx context.Context, saveSessionID string) (string, error) {
	if !m.op.TryLock() {
		return "", ErrSessionBusy
	}
	defer m.op.Unlock()

	uid, err := m.users.PlatformUserID(ctx)
	if err != nil {
		return "", fmt.Errorf("session: reconnect: %w", err)
	}
	env, err := m.backend.FetchSession(ctx, saveSessionID)
	if err != nil {
		return "", err
	}
	payload, err := m.codec.OpenEnvelope(uid, env)
	if err != nil {
		return "", fmt.Errorf("session: reconnect %s: %w", saveSessionID, err)
	}

	id := identityOf(env)
	if id.SaveSessionID == "" {
		id.SaveSessionID = saveSessionID
	}
	m.mu.Lock()
	m.identity = id
	m.events = payload.Events
	m.state = Active
	m.mu.Unlock()
	return payload.Data, nil
}

// CreateSession stores a fresh session with an empty event log and makes it
// active, replacing any active session. The backend may assign the
// save-session id; the identity it returns is kept.
func (m *ClientManager) CreateSession(ctx context.Context, data, gameType, eventID, saveSessionID string) (Identity, error) {
	if !m.op.TryLock() {
		return Identity{}, ErrSessionBusy
	}
	defer m.op.Unlock()

	uid, err := m.users.PlatformUserID(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("session: create: %w", err)
	}
	req := Identity{EventID: eventID, SaveSessionID: saveSessionID, GameType: gameType}
	env, err := m.codec.SealEnvelope(uid, req.envelope(), envelope.Payload{Data: data})
	if err != nil {
		return Identity{}, fmt.Errorf("session: create: %w", err)
	}
	stored, err := m.backend.CreateSession(ctx, env)
	if err != nil {
		return Identity{}, err
	}

	id := identityOf(stored)
	if id.EventID == "" {
		id.EventID = eventID
	}
	if id.SaveSessionID == "" {
		id.SaveSessionID = saveSessionID
	}
	if id.GameType == "" {
		id.GameType = gameType
	}

	m.mu.Lock()
	prev := m.identity
	m.identity = id
	m.events = []string{}
	m.state = Active
	m.mu.Unlock()

	if prev.SaveSessionID != "" && prev.SaveSessionID != id.SaveSessionID {
		m.forget(ctx, prev.SaveSessionID)
	}
	env.SaveSessionID, env.SessionID = id.SaveSessionID, id.SessionID
	m.record(ctx, env)
	return id, nil
}

// Checkpoint seals data with the current event log and stores it under the
// active session's identity. Events recorded while the checkpoint is in
// flight stay buffered for the next one.
func (m *ClientManager) Checkpoint(ctx context.Context, data string) error {
	if !m.op.TryLock() {
		return ErrSessionBusy
	}
	defer m.op.Unlock()

	m.mu.Lock()
	if m.state != Active {
		m.mu.Unlock()
		return ErrNoActiveSession
	}
	id := m.identity
	events := append([]string{}, m.events...)
	m.mu.Unlock()

	uid, err := m.users.PlatformUserID(ctx)
	if err != nil {
		return fmt.Errorf("session: checkpoint: %w", err)
	}
	env, err := m.codec.SealEnvelope(uid, id.envelope(), envelope.Payload{Data: data, Events: events})
	if err != nil {
		return fmt.Errorf("session: checkpoint: %w", err)
	}
	if err := m.backend.UpdateSession(ctx, env); err != nil {
		return err
	}
	m.record(ctx, env)
	return nil
}

// Close drops the active session and its event log. Closing an idle manager
// is a no-op.
func (m *ClientManager) Close(ctx context.Context) error {
	if !m.op.TryLock() {
		return ErrSessionBusy
	}
	defer m.op.Unlock()

	m.mu.Lock()
	prev := m.identity
	m.identity = Identity{}
	m.events = []string{}
	m.state = Idle
	m.mu.Unlock()

	if prev.SaveSessionID != "" {
		m.forget(ctx, prev.SaveSessionID)
	}
	return nil
}

func (m *ClientManager) record(ctx context.Context, env envelope.Envelope) {
	if m.journal == nil {
		return
	}
	if err := m.journal.Record(ctx, env); err != nil {
		m.log.Printf("journal record %s: %v", env.SaveSessionID, err)
	}
}

func (m *ClientManager) forget(ctx context.Context, saveSessionID string) {
	if m.journal == nil {
		return
	}
	if err := m.journal.Forget(ctx, saveSessionID); err != nil {
		m.log.Printf("journal forget %s: %v", saveSessionID, err)
	}
}
