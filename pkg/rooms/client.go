// Package rooms models tournament rooms and wraps the backend's room
// endpoints: listing and fetching rooms, rankings and session history, room
// entry, and score submission.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/MJE43/funtico-sdk-go/pkg/envelope"
	"github.com/MJE43/funtico-sdk-go/pkg/transport"
)

const (
	pathRoom         = "/Rooms/get-room"
	pathRooms        = "/Rooms/get-rooms"
	pathTiers        = "/Rooms/tiers"
	pathPrePaid      = "/Rooms/pre-paid"
	pathJoin         = "/Rooms/join-room"
	pathStart        = "/Rooms/start-room-sp"
	pathEnd          = "/Rooms/end-room-sp"
	pathEndAll       = "/Rooms/end-room-all-users"
	pathLeaders      = "/Rooms/leaders"
	pathHistory      = "/Rooms/get-history"
	roomsPageLimit   = 30
	defaultRoomsType = TypeSingleplayer
)

// ErrNoEntry is returned when the backend accepted a join but produced no
// session to play in.
var ErrNoEntry = errors.New("rooms: join returned no session")

// Client calls the room endpoints.
type Client struct {
	http  *transport.Client
	codec *envelope.Codec
	log   *log.Logger
	newID func() string
}

// NewClient creates a rooms client. The codec seals client-side score
// submissions; it may be nil for server-only use.
func NewClient(t *transport.Client, codec *envelope.Codec, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Client{http: t, codec: codec, log: logger, newID: uuid.NewString}
}

// Room fetches one room.
func (c *Client) Room(ctx context.Context, id string) (*Room, error) {
	room, err := transport.GetJSON[Room](ctx, c.http, withQuery(pathRoom, "roomId", id))
	if err != nil {
		return nil, fmt.Errorf("rooms: get room %s: %w", id, err)
	}
	return &room, nil
}

// Rooms lists rooms of a type, optionally filtered to one tier.
func (c *Client) Rooms(ctx context.Context, typ RoomType, tier *Tier) ([]Room, error) {
	if typ == "" {
		typ = defaultRoomsType
	}
	path := withQuery(pathRooms, "limit", strconv.Itoa(roomsPageLimit), "roomType", strconv.Itoa(typ.Ordinal()))
	resp, err := transport.GetJSON[struct {
		Data   []Room `json:"data"`
		Cursor string `json:"cursor"`
	}](ctx, c.http, path)
	if err != nil {
		return nil, fmt.Errorf("rooms: list rooms: %w", err)
	}
	if tier == nil {
		return resp.Data, nil
	}
	out := resp.Data[:0:0]
	for _, r := range resp.Data {
		if r.Details.Tier != nil && *r.Details.Tier == *tier {
			out = append(out, r)
		}
	}
	return out, nil
}

// Tiers lists the tier display data.
func (c *Client) Tiers(ctx context.Context) ([]TierInfo, error) {
	resp, err := transport.GetJSON[struct {
		Data []TierInfo `json:"data"`
	}](ctx, c.http, pathTiers)
	if err != nil {
		return nil, fmt.Errorf("rooms: get tiers: %w", err)
	}
	return resp.Data, nil
}

// PrePaid lists rooms the player has already paid for.
func (c *Client) PrePaid(ctx context.Context) ([]PrePaid, error) {
	resp, err := transport.GetJSON[struct {
		Data []PrePaid `json:"data"`
	}](ctx, c.http, pathPrePaid)
	if err != nil {
		return nil, fmt.Errorf("rooms: get pre-paid: %w", err)
	}
	return resp.Data, nil
}

// Summaries lists rooms as list rows against the player's vouchers and marks
// the rooms the player has already paid for.
func (c *Client) Summaries(ctx context.Context, typ RoomType, tier *Tier, vouchers []Voucher) ([]Summary, error) {
	list, err := c.Rooms(ctx, typ, tier)
	if err != nil {
		return nil, err
	}
	paid, err := c.PrePaid(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, len(list))
	for i := range list {
		out[i] = Summarize(&list[i], vouchers)
	}
	MarkPrePaid(out, paid)
	return out, nil
}

// Leaders fetches the raw ranking of a room session. matchID is optional.
func (c *Client) Leaders(ctx context.Context, eventID, sessionID, matchID string) (*Leaders, error) {
	kv := []string{"session_or_match_id", sessionID, "eventId", eventID}
	if matchID != "" {
		kv = append(kv, "matchId", matchID)
	}
	leaders, err := transport.GetJSON[Leaders](ctx, c.http, withQuery(pathLeaders, kv...))
	if err != nil {
		return nil, fmt.Errorf("rooms: get leaders: %w", err)
	}
	return &leaders, nil
}

// SessionHistory fetches the history record of a room session.
func (c *Client) SessionHistory(ctx context.Context, sessionID string) (*SessionHistory, error) {
	h, err := transport.GetJSON[SessionHistory](ctx, c.http, withQuery(pathHistory, "sessionId", sessionID, "withEvent", "false"))
	if err != nil {
		return nil, fmt.Errorf("rooms: get history: %w", err)
	}
	return &h, nil
}

// JoinRequest describes a room entry.
type JoinRequest struct {
	RoomID      string
	CommunityID string
	Password    string
	UseVoucher  bool
}

// Entry identifies the session a player plays a room in.
type Entry struct {
	EventID          string
	SessionOrMatchID string
	// Resumed is true when the backend returned an existing session instead
	// of a new lobby entry.
	Resumed bool
}

type joinResponse struct {
	ID                     string `json:"id"`
	GameSessionIDOrMatchID string `json:"game_session_id_or_match_id"`
	LobbyQuote             *struct {
		ID string `json:"id"`
	} `json:"lobby_quote"`
}

// Join pays for a room and enters its lobby. When the backend reports the
// player already holds a session in the room, that session is returned and
// no lobby entry is made.
func (c *Client) Join(ctx context.Context, req JoinRequest) (Entry, error) {
	body := map[string]any{
		"tournamentId": req.RoomID,
		"communityId":  nullable(req.CommunityID),
		"password":     req.Password,
		"UseVoucher":   req.UseVoucher,
	}
	path := withQuery(pathJoin, "idempotencyKey", c.newID(), "getLobbyQuote", "true")
	resp, err := transport.PostJSON[joinResponse](ctx, c.http, path, body)
	if err != nil {
		return Entry{}, fmt.Errorf("rooms: join %s: %w", req.RoomID, err)
	}

	if resp.GameSessionIDOrMatchID != "" {
		return Entry{EventID: req.RoomID, SessionOrMatchID: resp.GameSessionIDOrMatchID, Resumed: true}, nil
	}

	sessionID := c.newID()
	if resp.LobbyQuote != nil && resp.LobbyQuote.ID != "" {
		sessionID = resp.LobbyQuote.ID
	}
	entered, err := transport.PostJSON[struct {
		ID string `json:"id"`
	}](ctx, c.http, withQuery(pathStart, "eventId", req.RoomID, "sessionOrMatchId", sessionID, "isLobby", "true"), nil)
	if err != nil {
		return Entry{}, fmt.Errorf("rooms: enter %s: %w", req.RoomID, err)
	}
	if entered.ID == "" {
		return Entry{}, ErrNoEntry
	}
	c.log.Printf("entered room %s", req.RoomID)
	return Entry{EventID: req.RoomID, SessionOrMatchID: entered.ID}, nil
}

// ScoreSubmission is the plaintext of a score report.
type ScoreSubmission struct {
	Score      *int64   `json:"Score"`
	UserID     int64    `json:"UserId"`
	IP         string   `json:"Ip,omitempty"`
	GameEvents []string `json:"GameEvents"`
}

type sealedScore struct {
	EncryptedData string `json:"EncryptedData"`
	TournamentID  string `json:"TournamentId"`
	Hash          string `json:"Hash"`
}

// FinishClient submits the local player's score and event log, sealed under
// a key bound to the session.
func (c *Client) FinishClient(ctx context.Context, eventID, sessionID string, sub ScoreSubmission) error {
	if c.codec == nil {
		return errors.New("rooms: finish: no codec configured")
	}
	if sub.GameEvents == nil {
		sub.GameEvents = []string{}
	}
	sealed, err := c.codec.SealScore(sessionID, sub)
	if err != nil {
		return fmt.Errorf("rooms: finish: %w", err)
	}
	body := sealedScore{EncryptedData: sealed.Data, TournamentID: eventID, Hash: sealed.Hash}
	if _, err := c.http.Post(ctx, endPath(pathEnd, eventID, sessionID), body); err != nil {
		return fmt.Errorf("rooms: finish %s: %w", eventID, err)
	}
	return nil
}

// FinishServer submits one player's score from a dedicated server.
func (c *Client) FinishServer(ctx context.Context, eventID, sessionID string, sub ScoreSubmission) error {
	if sub.GameEvents == nil {
		sub.GameEvents = []string{}
	}
	if _, err := c.http.Post(ctx, endPath(pathEnd, eventID, sessionID), sub); err != nil {
		return fmt.Errorf("rooms: finish %s for user %d: %w", eventID, sub.UserID, err)
	}
	return nil
}

// FinishedUser is one player's result in a multi-player submission.
type FinishedUser struct {
	Score          int64    `json:"Score"`
	UserID         int64    `json:"UserId"`
	FunticoUserID  int64    `json:"FunticoUserId"`
	UserIP         string   `json:"UserIp,omitempty"`
	AdditionalData string   `json:"AdditionalData,omitempty"`
	GameEvents     []string `json:"GameEvents"`
}

// FinishAllServer submits every player's result of a match at once.
func (c *Client) FinishAllServer(ctx context.Context, eventID, matchID string, users []FinishedUser) error {
	for i := range users {
		if users[i].GameEvents == nil {
			users[i].GameEvents = []string{}
		}
	}
	body := map[string]any{"Users": users}
	if _, err := c.http.Post(ctx, endPath(pathEndAll, eventID, matchID), body); err != nil {
		return fmt.Errorf("rooms: finish all %s: %w", eventID, err)
	}
	return nil
}

func endPath(base, eventID, sessionID string) string {
	return withQuery(base, "eventId", eventID, "gameSessionIrOrMatchId", sessionID)
}

// withQuery appends key/value pairs in the given order.
func withQuery(path string, kv ...string) string {
	if len(kv) == 0 {
		return path
	}
	q := ""
	for i := 0; i+1 < len(kv); i += 2 {
		if q != "" {
			q += "&"
		}
		q += url.QueryEscape(kv[i]) + "=" + url.QueryEscape(kv[i+1])
	}
	return path + "?" + q
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
