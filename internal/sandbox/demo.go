package sandbox

import (
	"fmt"

	"github.com/MJE43/funtico-sdk-go/pkg/prize"
	"github.com/MJE43/funtico-sdk-go/pkg/rooms"
)

// DemoRoomID is the id of the room SeedDemo creates.
const DemoRoomID = "demo-sprint"

// SeedDemo fills s with a demo room, the tier list, a voucher catalogue and
// players count players. Player n has platform id 1000+n, SDK user id n and
// platform token "demo-token-<n>".
func SeedDemo(s *Server, players int) {
	size := 8
	fee := int64(100)
	currency := rooms.TicketCurrency
	tier := rooms.TierChallenger
	feePct := int64(10)
	place := func(n int) *int { return &n }
	pct := func(v uint8) prize.Prize {
		return prize.DepositStake{Share: prize.PoolShare, Percentage: prize.Percent(v)}
	}

	s.AddRoom(rooms.Room{
		ID:     DemoRoomID,
		Type:   rooms.TypeSingleplayer,
		GameID: "demo-game",
		Size:   &size,
		Ticket: &rooms.Ticket{Type: &currency, CurrencyAmount: &fee},
		PrizePool: &rooms.PrizePool{
			PlatformFee: &rooms.PlatformFee{Type: "percentage", Value: &feePct},
		},
		Distribution: []rooms.DistributionRow{
			{Place: place(1), Prizes: prize.List{pct(50)}, XP: &rooms.XP{Base: 100, Kyc: 150}},
			{Place: place(2), Prizes: prize.List{pct(25)}, XP: &rooms.XP{Base: 60, Kyc: 90}},
			{Place: place(3), Prizes: prize.List{pct(15), prize.ItemPrize{
				Amount: 1, ItemID: 7, Item: &prize.Item{ID: 7, Name: "Mystery Chest", Image: "chest.png"},
			}}, XP: &rooms.XP{Base: 30, Kyc: 45}},
		},
		Computed: rooms.Computed{
			DepositStake:         int64(size) * fee,
			Stake:                int64(size) * fee * (100 - feePct) / 100,
			PlatformFee:          int64(size) * fee * feePct / 100,
			PlatformFeePerTicket: fee * feePct / 100,
		},
		Details: rooms.Details{Name: "Demo Sprint", Tier: &tier, PrizePoolLabel: "Winner takes half"},
	})
	s.SetTiers([]rooms.TierInfo{
		{Name: "Contender", Tier: rooms.TierContender, UpperBoundEntryFee: 50},
		{Name: "Challenger", Tier: rooms.TierChallenger, LowerBoundEntryFee: 50, UpperBoundEntryFee: 500},
		{Name: "Champion", Tier: rooms.TierChampion, LowerBoundEntryFee: 500},
	})
	s.SetVoucherCatalogue([]VoucherStatic{
		{ID: 501, Name: "Contender Pass", Image: "pass-contender.png", Tier: rooms.TierContender},
		{ID: 502, Name: "Challenger Pass", Image: "pass-challenger.png", Tier: rooms.TierChallenger},
		{ID: 503, Name: "Champion Pass", Image: "pass-champion.png", Tier: rooms.TierChampion},
	})

	for n := 1; n <= players; n++ {
		s.AddPlayer(Player{
			UserID:        int64(n),
			PlatformID:    int64(1000 + n),
			PlatformToken: fmt.Sprintf("demo-token-%d", n),
			Name:          fmt.Sprintf("Player %d", n),
			AvatarURL:     fmt.Sprintf("https://cdn.example.test/avatars/%d.png", n),
			Coins:         1000,
			Level:         1,
			Vouchers: []rooms.Voucher{{
				ItemID: 502, ItemName: "Challenger Pass", ItemImage: "pass-challenger.png",
				Tier: rooms.TierChallenger, Count: 1, PlayCount: 10, PlaysRequiredToActivate: 10,
			}},
		})
	}
}
