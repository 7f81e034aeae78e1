// Package leaderboard turns a room's configuration and raw ranking into the
// display-ready outcome: ranked entries with resolved prizes, the viewer's
// own earnings and reward rows, and the room's prize-pool distribution.
package leaderboard

import (
	"github.com/shopspring/decimal"

	"github.com/MJE43/funtico-sdk-go/pkg/prize"
	"github.com/MJE43/funtico-sdk-go/pkg/rooms"
)

// Display strings for entries that have no numeric place or score.
const (
	LabelDNF          = "DNF"
	LabelNoPlace      = "-"
	LabelPlayerNeeded = "Player Needed"
	LabelTBD          = "TBD"
)

// Icon is an image reference: the platform currency, or an asset URL.
type Icon struct {
	Currency bool   `json:"currency,omitempty"`
	URL      string `json:"url,omitempty"`
}

// IsZero reports an absent icon.
func (i Icon) IsZero() bool { return !i.Currency && i.URL == "" }

// PrizeView is one rendered reward.
type PrizeView struct {
	Kind   string `json:"kind"`
	Amount int64  `json:"amount"`
	Label  string `json:"label"`
	Name   string `json:"name,omitempty"`
	Icon   Icon   `json:"icon"`
}

// Identity is a player's display identity.
type Identity struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	BorderURL string `json:"borderUrl,omitempty"`
}

// Entry is one row of the ranking.
type Entry struct {
	ID           uint64             `json:"id,omitempty"`
	Identity     Identity           `json:"identity"`
	Place        string             `json:"place"`
	Score        string             `json:"score"`
	RawPlace     uint64             `json:"rawPlace"`
	RawScore     int64              `json:"rawScore"`
	FinishReason rooms.FinishReason `json:"finishReason"`
	// Resolved is the effective prize list: settled prizes, the predicted
	// row for a pending room, or nothing for a DNF entry.
	Resolved []prize.Prize `json:"-"`
	Earnings int64         `json:"earnings"`
	Prizes   []PrizeView   `json:"prizes"`
	IsMe     bool          `json:"isMe,omitempty"`
	IsEmpty  bool          `json:"isEmpty,omitempty"`
}

// DNF reports an entry whose run did not finish normally.
func (e Entry) DNF() bool { return !e.IsEmpty && e.FinishReason != rooms.FinishOK }

// Viewer is the calling player's own outcome.
type Viewer struct {
	Place    string        `json:"place"`
	Earnings int64         `json:"earnings"`
	Resolved []prize.Prize `json:"-"`
	// Multiplier is earnings over the currency fee actually paid, or zero.
	Multiplier decimal.Decimal `json:"multiplier"`
	FirstRow   []PrizeView     `json:"firstRow"`
	SecondRow  []PrizeView     `json:"secondRow"`
}

// View is the leaderboard of one room as seen by one player. It is derived
// per request and never cached.
type View struct {
	RoomID      string             `json:"roomId"`
	RoomName    string             `json:"roomName"`
	Tier        rooms.Tier         `json:"tier"`
	State       rooms.LeadersState `json:"state"`
	Pending     bool               `json:"pending"`
	YourFee     *rooms.Ticket      `json:"yourFee"`
	OriginalFee *rooms.Ticket      `json:"originalFee"`
	FeeIcon     Icon               `json:"feeIcon"`
	// Viewer is nil when the caller is not in the ranking.
	Viewer  *Viewer `json:"viewer,omitempty"`
	Entries []Entry `json:"entries"`
}

// IsFree reports a view whose paid fee is free.
func (v *View) IsFree() bool { return v.YourFee.IsFree() }

// ClosedUnsuccessfully reports a room whose fees are being or were returned.
func (v *View) ClosedUnsuccessfully() bool {
	return v.State == rooms.StateToBeReturned || v.State == rooms.StateReturned
}
