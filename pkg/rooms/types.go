package rooms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MJE43/funtico-sdk-go/pkg/prize"
)

// RoomType is the room's match format.
type RoomType string

const (
	TypeSingleplayer RoomType = "singleplayer"
	TypeMultiplayer  RoomType = "multiplayer"
	TypeExternal     RoomType = "external"
)

// Ordinal is the numeric roomType query value of the room list endpoint.
func (t RoomType) Ordinal() int {
	switch t {
	case TypeMultiplayer:
		return 1
	case TypeExternal:
		return 2
	}
	return 0
}

// Tier is the room's difficulty tier.
type Tier int

const (
	TierContender Tier = iota
	TierChallenger
	TierChampion
)

func (t Tier) String() string {
	switch t {
	case TierContender:
		return "Contender"
	case TierChallenger:
		return "Challenger"
	case TierChampion:
		return "Champion"
	}
	return "Tier(" + strconv.Itoa(int(t)) + ")"
}

// TicketType is the kind of entry fee.
type TicketType int

const (
	TicketFree TicketType = iota
	TicketCurrency
	TicketItem
)

// Ticket describes a room's entry fee.
type Ticket struct {
	Type           *TicketType `json:"type"`
	CurrencyAmount *int64      `json:"currency_amount"`
	ItemID         *int64      `json:"item_id"`
	Item           *prize.Item `json:"item"`
}

// IsFree reports a ticket with no type, the free type, or no currency amount.
func (t *Ticket) IsFree() bool {
	return t == nil || t.Type == nil || *t.Type == TicketFree ||
		t.CurrencyAmount == nil || *t.CurrencyAmount == 0
}

// CurrencyFee returns the amount of a currency-typed ticket with a non-zero
// amount.
func (t *Ticket) CurrencyFee() (int64, bool) {
	if t == nil || t.Type == nil || *t.Type != TicketCurrency || t.CurrencyAmount == nil || *t.CurrencyAmount == 0 {
		return 0, false
	}
	return *t.CurrencyAmount, true
}

// Kind returns the ticket type, treating a missing type as free.
func (t *Ticket) Kind() TicketType {
	if t == nil || t.Type == nil {
		return TicketFree
	}
	return *t.Type
}

// XP is the platform experience awarded for a place.
type XP struct {
	Base int `json:"base"`
	Kyc  int `json:"kyc"`
}

// DistributionRow is one place of the prize table.
type DistributionRow struct {
	Prizes prize.List `json:"prizes"`
	Place  *int       `json:"place"`
	XP     *XP        `json:"xp"`
}

// Computed holds the backend's financial totals for a room.
type Computed struct {
	DepositStake         int64 `json:"deposit_stake"`
	Stake                int64 `json:"stake"`
	PlatformFee          int64 `json:"platform_fee"`
	Burn                 int64 `json:"burn"`
	PlatformFeePerTicket int64 `json:"platform_fee_per_ticket"`
}

// PoolGpp is the guaranteed prize pool configuration.
type PoolGpp struct {
	Type     string `json:"type"`
	Currency string `json:"currency"`
	Value    uint64 `json:"value"`
	Label    string `json:"label"`
}

// PlatformFee is the platform's cut of the pool, in percent.
type PlatformFee struct {
	Type           string `json:"type"`
	Value          *int64 `json:"value"`
	BurnPercentage *int64 `json:"burn_percentage"`
}

type PrizePool struct {
	Gpp         *PoolGpp     `json:"gpp"`
	PlatformFee *PlatformFee `json:"platform_fee"`
}

// LeaderboardRules is the room's scoring configuration.
type LeaderboardRules struct {
	Field         string `json:"field"`
	PlacementMode string `json:"placement_mode"`
	Type          string `json:"type"`
	ClaimLimit    *int   `json:"claim_limit"`
	Attempts      *int   `json:"attempts"`
	Fn            string `json:"fn"`
}

// Ascending reports that a smaller score places higher.
func (l *LeaderboardRules) Ascending() bool {
	return l != nil && l.PlacementMode == "ascending"
}

type Details struct {
	Name                string `json:"name"`
	Description         string `json:"description"`
	Tier                *Tier  `json:"tier"`
	HasPassword         *bool  `json:"has_password"`
	MapID               *int   `json:"map_id"`
	CoverImage          string `json:"cover_image"`
	TermsAndConditions  string `json:"terms_and_conditions"`
	IsLeaderboardLocked *bool  `json:"is_leaderboard_locked"`
	IsPlayButtonVisible *bool  `json:"is_play_button_visible"`
	PrizePoolLabel      string `json:"prize_pool_label"`
}

// Room is a tournament template as served by the backend. Rooms are
// re-fetched per request and never mutated.
type Room struct {
	ID                           string            `json:"id"`
	Type                         RoomType          `json:"type"`
	Version                      *int              `json:"version"`
	GameID                       string            `json:"game_id"`
	Size                         *int              `json:"size"`
	Ticket                       *Ticket           `json:"ticket"`
	PrizePool                    *PrizePool        `json:"prize_pool"`
	Leaderboard                  *LeaderboardRules `json:"leaderboard"`
	Distribution                 []DistributionRow `json:"prize_distribution"`
	Computed                     Computed          `json:"computed"`
	Details                      Details           `json:"details"`
	ItemIDs                      []string          `json:"item_ids"`
	RewardIDs                    []string          `json:"reward_ids"`
	MatchmakingConfigurationName string            `json:"matchmaking_configuration_name"`
	UpdatedAt                    *int64            `json:"updated_at"`
	Settings                     string            `json:"settings"`
}

// Capacity is the fixed room size, or zero when the room has none.
func (r *Room) Capacity() int {
	if r.Size == nil || *r.Size < 0 {
		return 0
	}
	return *r.Size
}

// Tier returns the room tier, Challenger when unset.
func (r *Room) Tier() Tier {
	if r.Details.Tier == nil {
		return TierChallenger
	}
	return *r.Details.Tier
}

// Row returns the prize table row for a 1-based place.
func (r *Room) Row(place int) (DistributionRow, bool) {
	for _, row := range r.Distribution {
		if row.Place != nil && *row.Place == place {
			return row, true
		}
	}
	return DistributionRow{}, false
}

// PlatformFeePercent returns the configured platform fee percentage.
func (r *Room) PlatformFeePercent() int64 {
	if r.PrizePool == nil || r.PrizePool.PlatformFee == nil || r.PrizePool.PlatformFee.Value == nil {
		return 0
	}
	return *r.PrizePool.PlatformFee.Value
}

// LeadersState is the settlement state of a room's ranking.
type LeadersState int

const (
	StatePlaced       LeadersState = 0
	StateDistributed  LeadersState = 1
	StateToBeReturned LeadersState = 3
	StateReturned     LeadersState = 4
)

// Pending reports a ranking whose prizes have not been settled.
func (s LeadersState) Pending() bool { return s == StatePlaced }

func (s LeadersState) String() string {
	switch s {
	case StatePlaced:
		return "placed"
	case StateDistributed:
		return "distributed"
	case StateToBeReturned:
		return "to_be_returned"
	case StateReturned:
		return "returned"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// FinishReason is how a player's run in the room ended.
type FinishReason int

const (
	FinishOK FinishReason = iota
	FinishAutomaticallyClosed
	FinishKicked
	FinishUnfinished
)

func (f FinishReason) String() string {
	switch f {
	case FinishOK:
		return "Ok"
	case FinishAutomaticallyClosed:
		return "AutomaticallyClosed"
	case FinishKicked:
		return "Kicked"
	case FinishUnfinished:
		return "Unfinished"
	}
	return "FinishReason(" + strconv.Itoa(int(f)) + ")"
}

// Leader is one raw ranking entry. Prizes is only authoritative once the
// room is settled.
type Leader struct {
	ID           uint64       `json:"id"`
	Score        int64        `json:"score"`
	Place        uint64       `json:"place"`
	Prizes       prize.List   `json:"prizes"`
	FinishReason FinishReason `json:"finish_reason"`
}

type LeaderItem struct {
	ID     uint64 `json:"id"`
	Image  string `json:"image"`
	Name   string `json:"name"`
	Amount int    `json:"amount"`
}

// Leaders is the raw ranking response of a room.
type Leaders struct {
	State   LeadersState `json:"state"`
	Leaders []Leader     `json:"leaders"`
	Items   []LeaderItem `json:"items"`
	MatchID string       `json:"match_id"`
}

// FlexibleBool decodes a JSON bool, number, or "true"/"false"/"1"/"0" string.
type FlexibleBool bool

func (b *FlexibleBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = false
		return nil
	}
	switch data[0] {
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*b = FlexibleBool(v)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1":
			*b = true
			return nil
		case "false", "0":
			*b = false
			return nil
		}
		return fmt.Errorf("rooms: invalid bool %q", s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("rooms: invalid bool %s", data)
		}
		f, err := n.Float64()
		if err != nil {
			return fmt.Errorf("rooms: invalid bool %s", data)
		}
		*b = f != 0
		return nil
	}
}

func (b FlexibleBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(b))
}

// GameSession is the backend's record of one player's participation.
type GameSession struct {
	ID                string       `json:"id"`
	RegisteredAt      *time.Time   `json:"registered_at"`
	StartedAt         *time.Time   `json:"started_at"`
	MatchID           string       `json:"match_id"`
	Score             *int64       `json:"score"`
	ScoredAt          *time.Time   `json:"scored_at"`
	DistributedAt     *time.Time   `json:"distributed_at"`
	MatchType         *int         `json:"match_type"`
	GameID            string       `json:"game_id"`
	UserID            string       `json:"user_id"`
	EventID           string       `json:"event_id"`
	Leader            *Leader      `json:"leader"`
	OpponentName      string       `json:"opponent_name"`
	ReturnRequestedAt *time.Time   `json:"return_requested_at"`
	ReturnedAt        *time.Time   `json:"returned_at"`
	VoucherUsed       FlexibleBool `json:"voucher_used"`
}

// SessionHistory is the history record of one room session.
type SessionHistory struct {
	GameSession GameSession `json:"game_session"`
	Event       *Room       `json:"event"`
}

// PrePaid is a room the player has already paid for.
type PrePaid struct {
	ID              string       `json:"id"`
	AttemptsLeft    int          `json:"attempts_left"`
	ParticipationID string       `json:"participation_id"`
	GameSessionID   string       `json:"game_session_id"`
	CommunityID     string       `json:"community_id"`
	VoucherUsed     FlexibleBool `json:"voucher_used"`
}

// TierInfo is the display data of a room tier.
type TierInfo struct {
	Name               string `json:"name"`
	Image              string `json:"image"`
	Tier               Tier   `json:"tier"`
	LowerBoundEntryFee int    `json:"lowerBoundEntryFee"`
	UpperBoundEntryFee int    `json:"upperBoundEntryFee"`
	Hidden             bool   `json:"hidden"`
}

// Voucher is an item-based entry fee usable in rooms of one tier.
type Voucher struct {
	ItemID                  int64  `json:"item_id"`
	ItemName                string `json:"item_name"`
	ItemImage               string `json:"item_image"`
	Tier                    Tier   `json:"tier"`
	PlayCount               int    `json:"play_count"`
	PlaysRequiredToActivate int    `json:"plays_required_to_activate"`
	Count                   int    `json:"count"`
}

// Usable reports whether the voucher can pay for an entry now.
func (v Voucher) Usable() bool {
	return v.Count > 0 && v.PlayCount >= v.PlaysRequiredToActivate
}

// Ticket is the fee the voucher stands in for: one unit of its backing item.
func (v Voucher) Ticket() *Ticket {
	typ := TicketItem
	amount := int64(1)
	id := v.ItemID
	return &Ticket{
		Type:           &typ,
		CurrencyAmount: &amount,
		ItemID:         &id,
		Item:           &prize.Item{ID: v.ItemID, Image: v.ItemImage, Name: v.ItemName},
	}
}

// VoucherForTier returns the first voucher of the given tier.
func VoucherForTier(vouchers []Voucher, tier Tier) (Voucher, bool) {
	for _, v := range vouchers {
		if v.Tier == tier {
			return v, true
		}
	}
	return Voucher{}, false
}
