package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/MJE43/funtico-sdk-go/pkg/envelope"
	"github.com/MJE43/funtico-sdk-go/pkg/transport"
)

const (
	pathUnfinished  = "/Session/any-unfinished-sessions"
	pathCreate      = "/Session/create-session"
	pathUpdate      = "/Session/update-session"
	pathReconnect   = "/Session/reconnect-to-session"
	pathServerOpen  = "/Session/create-server-session"
	pathServerClose = "/Session/close-server-session"
	pathServerLeave = "/Session/server-session-user-leave"
)

// ClientBackend is the backend surface used by ClientManager.
type ClientBackend interface {
	// UnfinishedSessions lists the player's saved sessions that were never
	// closed.
	UnfinishedSessions(ctx context.Context) ([]envelope.Envelope, error)
	// FetchSession returns a saved session. It returns an error matching
	// ErrSessionNotFound when the id is unknown.
	FetchSession(ctx context.Context, saveSessionID string) (envelope.Envelope, error)
	// CreateSession stores a new session and returns it as stored; the
	// backend may assign the save-session id.
	CreateSession(ctx context.Context, env envelope.Envelope) (envelope.Envelope, error)
	// UpdateSession replaces the stored blob of an existing session.
	UpdateSession(ctx context.Context, env envelope.Envelope) error
}

// ServerBackend is the backend surface used by ServerManager.
type ServerBackend interface {
	CreateMatchSession(ctx context.Context, req MatchRequest) (string, error)
	LeaveMatchSession(ctx context.Context, matchID string, participantID int64) error
	CloseMatchSession(ctx context.Context, matchID string) error
}

// Participant is one player of a match session.
type Participant struct {
	JoinKey       string `json:"JoinKey"`
	FunticoUserID int64  `json:"FunticoUserId"`
	SDKUserID     int64  `json:"SdkUserId"`
	Status        int    `json:"UserStatus"`
}

// MatchRequest registers a dedicated server's match with the backend.
type MatchRequest struct {
	ServerURL    string
	SessionID    string
	Participants []Participant
}

// HTTPBackend implements ClientBackend and ServerBackend over the SDK
// backend's session endpoints.
type HTTPBackend struct {
	http *transport.Client
}

// NewHTTPBackend creates a backend over t.
func NewHTTPBackend(t *transport.Client) *HTTPBackend {
	return &HTTPBackend{http: t}
}

func (b *HTTPBackend) UnfinishedSessions(ctx context.Context) ([]envelope.Envelope, error) {
	raw, err := b.http.Get(ctx, pathUnfinished)
	if transport.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: unfinished sessions: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	// Older backends answer with the single most recent session.
	if raw[0] == '{' {
		var one envelope.Envelope
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, fmt.Errorf("session: unfinished sessions: %w", err)
		}
		return []envelope.Envelope{one}, nil
	}
	var list []envelope.Envelope
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("session: unfinished sessions: %w", err)
	}
	return list, nil
}

func (b *HTTPBackend) FetchSession(ctx context.Context, saveSessionID string) (envelope.Envelope, error) {
	path := pathReconnect + "?" + url.Values{"saveSessionId": {saveSessionID}}.Encode()
	env, err := transport.GetJSON[envelope.Envelope](ctx, b.http, path)
	if transport.IsNotFound(err) {
		return envelope.Envelope{}, fmt.Errorf("%w: %s", ErrSessionNotFound, saveSessionID)
	}
	if err != nil {
		return envelope.Envelope{}, fmt.Errorf("session: reconnect: %w", err)
	}
	return env, nil
}

func (b *HTTPBackend) CreateSession(ctx context.Context, env envelope.Envelope) (envelope.Envelope, error) {
	raw, err := b.http.Post(ctx, pathCreate, env)
	if err != nil {
		return envelope.Envelope{}, fmt.Errorf("session: create: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return env, nil
	}
	var stored envelope.Envelope
	if err := json.Unmarshal(raw, &stored); err != nil {
		return envelope.Envelope{}, fmt.Errorf("session: create: decode response: %w", err)
	}
	return stored, nil
}

func (b *HTTPBackend) UpdateSession(ctx context.Context, env envelope.Envelope) error {
	if _, err := b.http.Post(ctx, pathUpdate, env); err != nil {
		if transport.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, env.SaveSessionID)
		}
		return fmt.Errorf("session: update: %w", err)
	}
	return nil
}

func (b *HTTPBackend) CreateMatchSession(ctx context.Context, req MatchRequest) (string, error) {
	players, err := json.Marshal(req.Participants)
	if err != nil {
		return "", fmt.Errorf("session: encode participants: %w", err)
	}
	body := map[string]string{
		"Url":       req.ServerURL,
		"SessionId": req.SessionID,
		"Players":   string(players),
	}
	resp, err := transport.PostJSON[struct {
		ID string `json:"Id"`
	}](ctx, b.http, pathServerOpen, body)
	if err != nil {
		return "", fmt.Errorf("session: open match: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("session: open match: backend returned no id")
	}
	return resp.ID, nil
}

func (b *HTTPBackend) LeaveMatchSession(ctx context.Context, matchID string, participantID int64) error {
	q := url.Values{"id": {matchID}, "userId": {strconv.FormatInt(participantID, 10)}}
	if _, err := b.http.Get(ctx, pathServerLeave+"?"+q.Encode()); err != nil {
		return fmt.Errorf("session: leave match: %w", err)
	}
	return nil
}

func (b *HTTPBackend) CloseMatchSession(ctx context.Context, matchID string) error {
	q := url.Values{"id": {matchID}}
	if _, err := b.http.Get(ctx, pathServerClose+"?"+q.Encode()); err != nil {
		return fmt.Errorf("session: close match: %w", err)
	}
	return nil
}
