package leaderboard

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/MJE43/funtico-sdk-go/pkg/prize"
	"github.com/MJE43/funtico-sdk-go/pkg/rooms"
)

// defaultPlayers is the player count assumed for rooms without a size.
const defaultPlayers = 8

// PlacePayout is one place of the prize table.
type PlacePayout struct {
	Place       int    `json:"place"`
	Payout      int64  `json:"payout"`
	PayoutLabel string `json:"payoutLabel"`
	XP          int    `json:"xp"`
	XPKyc       int    `json:"xpKyc"`
	// RewardFeeRatio is the payout over the ticket's currency amount.
	RewardFeeRatio decimal.Decimal `json:"rewardFeeRatio"`
	Prizes         []PrizeView     `json:"prizes"`
}

// DistributionView is a room's prize pool broken down by place.
type DistributionView struct {
	RoomID             string        `json:"roomId"`
	Places             []PlacePayout `json:"places"`
	TotalPlayers       int           `json:"totalPlayers"`
	PlatformFeePercent int64         `json:"platformFeePercent"`
	PlatformFee        int64         `json:"platformFee"`
	TotalAccumulated   int64         `json:"totalAccumulated"`
}

// PerPlayer is the accumulated stake per player, rounded down.
func (d *DistributionView) PerPlayer() int64 {
	if d.TotalPlayers <= 0 {
		return 0
	}
	return d.TotalAccumulated / int64(d.TotalPlayers)
}

// DistributedToPlayers is the accumulated stake less the platform fee.
func (d *DistributionView) DistributedToPlayers() int64 {
	return d.TotalAccumulated - d.PlatformFee
}

// Distribution builds the prize-pool view of a room in table order. A nil
// printer formats in English.
func Distribution(room *rooms.Room, p *message.Printer) (*DistributionView, error) {
	if room == nil {
		return nil, fmt.Errorf("leaderboard: distribution: room is required")
	}
	if p == nil {
		p = message.NewPrinter(language.English)
	}
	players := defaultPlayers
	if room.Size != nil {
		players = *room.Size
	}
	d := &DistributionView{
		RoomID:             room.ID,
		Places:             make([]PlacePayout, 0, len(room.Distribution)),
		TotalPlayers:       players,
		PlatformFeePercent: room.PlatformFeePercent(),
		PlatformFee:        room.Computed.PlatformFee,
		TotalAccumulated:   room.Computed.Stake,
	}

	for i, row := range room.Distribution {
		payout, err := prize.ComputePayout(row.Prizes, room.Computed.DepositStake)
		if err != nil {
			return nil, fmt.Errorf("leaderboard: distribution row %d: %w", i, err)
		}
		pp := PlacePayout{
			Payout:         payout,
			PayoutLabel:    p.Sprintf("%d", payout),
			RewardFeeRatio: decimal.Zero,
			Prizes:         renderPrizes(p, payout, row.Prizes),
		}
		if row.Place != nil {
			pp.Place = *row.Place
		}
		if row.XP != nil {
			pp.XP, pp.XPKyc = row.XP.Base, row.XP.Kyc
		}
		if room.Ticket != nil && room.Ticket.CurrencyAmount != nil && *room.Ticket.CurrencyAmount != 0 && payout > 0 {
			pp.RewardFeeRatio = decimal.NewFromInt(payout).Div(decimal.NewFromInt(*room.Ticket.CurrencyAmount))
		}
		d.Places = append(d.Places, pp)
	}
	return d, nil
}
