// Package sandbox is an in-memory stand-in for the tournament backend and the
// platform user API. It serves every endpoint the SDK calls, checks envelope
// tags and score seals with the game secret, and tracks which saved sessions
// are still unfinished. It is meant for local development and integration
// tests, not for production traffic.
package sandbox

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MJE43/funtico-sdk-go/pkg/envelope"
	"github.com/MJE43/funtico-sdk-go/pkg/rooms"
	"github.com/MJE43/funtico-sdk-go/pkg/session"
)

var (
	errNotFound     = errors.New("not found")
	errRoomFull     = errors.New("room is full")
	errInsufficient = errors.New("insufficient balance")
	errNoVoucher    = errors.New("no usable voucher for the room tier")
)

// Player is a seeded account.
type Player struct {
	UserID        int64
	PlatformID    int64
	PlatformToken string
	Name          string
	AvatarURL     string
	BorderURL     string
	Coins         float64
	Diamonds      float64
	Level         int
	KYCVerified   bool
	Vouchers      []rooms.Voucher
}

// VoucherStatic is a voucher catalogue entry.
type VoucherStatic struct {
	Name  string     `json:"name"`
	Image string     `json:"image"`
	ID    int64      `json:"id"`
	Tier  rooms.Tier `json:"tier"`
}

type participation struct {
	id          string
	eventID     string
	platformID  int64
	score       *int64
	events      []string
	reason      rooms.FinishReason
	finished    bool
	voucherUsed bool
	registered  time.Time
	scored      *time.Time
}

type lobbyEntry struct {
	platformID  int64
	eventID     string
	voucherUsed bool
}

type savedSession struct {
	owner    int64
	env      envelope.Envelope
	finished bool
	updated  time.Time
}

type matchSession struct {
	id        string
	serverURL string
	sessionID string
	players   map[int64]session.Participant
	closed    bool
}

// state is the sandbox's whole world, guarded by one mutex.
type state struct {
	mu sync.Mutex

	now   func() time.Time
	newID func() string

	players  map[int64]*Player // by platform id
	rooms    map[string]*rooms.Room
	order    []string
	tiers    []rooms.TierInfo
	statics  []VoucherStatic
	settled  map[string]rooms.LeadersState
	parts    map[string]*participation // by session id
	lobbies  map[string]lobbyEntry     // by lobby quote id
	joins    map[string]any            // join responses by idempotency key
	sessions map[string]*savedSession  // by save-session id
	matches  map[string]*matchSession
}

func newState() *state {
	return &state{
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		players:  make(map[int64]*Player),
		rooms:    make(map[string]*rooms.Room),
		settled:  make(map[string]rooms.LeadersState),
		parts:    make(map[string]*participation),
		lobbies:  make(map[string]lobbyEntry),
		joins:    make(map[string]any),
		sessions: make(map[string]*savedSession),
		matches:  make(map[string]*matchSession),
	}
}

func (s *state) playerByToken(platformToken string) (*Player, bool) {
	for _, p := range s.players {
		if p.PlatformToken != "" && p.PlatformToken == platformToken {
			return p, true
		}
	}
	return nil, false
}

// playerByAnyID matches either the SDK user id or the platform id.
func (s *state) playerByAnyID(id int64) (*Player, bool) {
	if p, ok := s.players[id]; ok {
		return p, true
	}
	for _, p := range s.players {
		if p.UserID == id {
			return p, true
		}
	}
	return nil, false
}

func (s *state) roomParts(eventID string) []*participation {
	var out []*participation
	for _, p := range s.parts {
		if p.eventID == eventID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].registered.Before(out[j].registered) })
	return out
}

func (s *state) openPart(eventID string, platformID int64) *participation {
	for _, p := range s.roomParts(eventID) {
		if p.platformID == platformID && !p.finished {
			return p
		}
	}
	return nil
}

// ranking orders finished runs by score, then lists unfinished runs in
// registration order.
func (s *state) ranking(room *rooms.Room) rooms.Leaders {
	parts := s.roomParts(room.ID)
	var done, open []*participation
	for _, p := range parts {
		if p.finished && p.score != nil {
			done = append(done, p)
		} else {
			open = append(open, p)
		}
	}
	asc := room.Leaderboard.Ascending()
	sort.SliceStable(done, func(i, j int) bool {
		if asc {
			return *done[i].score < *done[j].score
		}
		return *done[i].score > *done[j].score
	})

	st := s.settled[room.ID]
	out := rooms.Leaders{State: st, Leaders: []rooms.Leader{}}
	place := uint64(0)
	for _, p := range append(done, open...) {
		place++
		l := rooms.Leader{ID: uint64(p.platformID), Place: place, FinishReason: p.reason}
		if p.score != nil {
			l.Score = *p.score
		}
		if !p.finished {
			l.FinishReason = rooms.FinishUnfinished
		}
		if !st.Pending() && l.FinishReason == rooms.FinishOK {
			if row, ok := room.Row(int(place)); ok {
				l.Prizes = row.Prizes
			}
		}
		out.Leaders = append(out.Leaders, l)
	}
	return out
}

// finishSaved marks the saved sessions played in sessionID as finished.
func (s *state) finishSaved(sessionID string) {
	for _, sv := range s.sessions {
		if sv.env.SessionID == sessionID {
			sv.finished = true
		}
	}
}
