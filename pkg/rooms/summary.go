package rooms

import "github.com/shopspring/decimal"

// Summary is the list-row view of a room for one player.
type Summary struct {
	ID            string
	Name          string
	Tier          Tier
	CoverImage    string
	Ticket        *Ticket
	IsFree        bool
	EntryFee      int64
	EntryFeeUSD   decimal.Decimal
	TotalPrize    int64
	Voucher       *Voucher
	CanUseVoucher bool
	PrePaid       bool
}

// Nominal USD entry fees per tier; external rooms use a cheaper scale.
var (
	entryFeeUSD = map[Tier]int64{
		TierContender:  2,
		TierChallenger: 10,
		TierChampion:   20,
	}
	externalEntryFeeUSD = map[Tier]int64{
		TierContender:  2,
		TierChallenger: 4,
		TierChampion:   8,
	}
)

// Summarize builds a room's list-row view against the player's vouchers.
func Summarize(room *Room, vouchers []Voucher) Summary {
	s := Summary{
		ID:         room.ID,
		Name:       room.Details.Name,
		CoverImage: room.Details.CoverImage,
		Ticket:     room.Ticket,
		IsFree:     room.Ticket.IsFree(),
		TotalPrize: room.Computed.Stake - room.Computed.PlatformFee,
	}
	if room.Ticket != nil && room.Ticket.CurrencyAmount != nil {
		s.EntryFee = *room.Ticket.CurrencyAmount
	}
	if room.Details.Tier != nil {
		s.Tier = *room.Details.Tier
		if v, ok := VoucherForTier(vouchers, s.Tier); ok {
			s.Voucher = &v
			s.CanUseVoucher = v.Usable()
		}
	}

	fees := entryFeeUSD
	if room.Type == TypeExternal {
		fees = externalEntryFeeUSD
	}
	s.EntryFeeUSD = decimal.NewFromInt(fees[s.Tier])
	return s
}

// MarkPrePaid flags the summaries of rooms the player has already paid for.
func MarkPrePaid(summaries []Summary, paid []PrePaid) {
	ids := make(map[string]struct{}, len(paid))
	for _, p := range paid {
		ids[p.ID] = struct{}{}
	}
	for i := range summaries {
		if _, ok := ids[summaries[i].ID]; ok {
			summaries[i].PrePaid = true
		}
	}
}
