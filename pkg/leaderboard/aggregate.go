package leaderboard

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/MJE43/funtico-sdk-go/pkg/prize"
	"github.com/MJE43/funtico-sdk-go/pkg/rooms"
)

// Input is everything Aggregate needs. It performs no I/O.
type Input struct {
	Room    *rooms.Room
	Leaders *rooms.Leaders
	// Identities maps player ids to display identities; missing ids render
	// with an empty identity.
	Identities map[uint64]Identity
	// ViewerID is the caller's platform id; zero means an anonymous view.
	ViewerID uint64
	// Pending predicts prizes from the room's table instead of using the
	// settled prizes. It only takes effect while the ranking is unsettled.
	Pending bool
	// VoucherUsed reports that the caller entered with a voucher from
	// Vouchers.
	VoucherUsed bool
	Vouchers    []rooms.Voucher
	// Printer formats amounts. Defaults to English.
	Printer *message.Printer
}

// Aggregate builds the leaderboard view. Entries keep the ranking's order; in
// pending mode placeholders are appended up to the room capacity.
func Aggregate(in Input) (*View, error) {
	if in.Room == nil || in.Leaders == nil {
		return nil, fmt.Errorf("leaderboard: aggregate: room and leaders are required")
	}
	if in.Printer == nil {
		in.Printer = message.NewPrinter(language.English)
	}
	pending := in.Pending && in.Leaders.State.Pending()
	room := in.Room

	fee := YourFee(room, in.VoucherUsed, in.Vouchers)
	view := &View{
		RoomID:      room.ID,
		RoomName:    room.Details.Name,
		Tier:        room.Tier(),
		State:       in.Leaders.State,
		Pending:     pending,
		YourFee:     fee,
		OriginalFee: room.Ticket,
		FeeIcon:     FeeIcon(fee),
		Entries:     make([]Entry, 0, max(len(in.Leaders.Leaders), room.Capacity())),
	}

	var highest uint64
	for _, l := range in.Leaders.Leaders {
		e, err := buildEntry(in, l, pending)
		if err != nil {
			return nil, err
		}
		view.Entries = append(view.Entries, e)
		highest = max(highest, l.Place)

		if in.ViewerID != 0 && l.ID == in.ViewerID && view.Viewer == nil {
			view.Viewer = buildViewer(in.Printer, l, e, fee)
		}
	}

	if pending {
		if err := pad(in, view, highest); err != nil {
			return nil, err
		}
	}
	return view, nil
}

func buildEntry(in Input, l rooms.Leader, pending bool) (Entry, error) {
	e := Entry{
		ID:           l.ID,
		Identity:     in.Identities[l.ID],
		RawPlace:     l.Place,
		RawScore:     l.Score,
		FinishReason: l.FinishReason,
		IsMe:         in.ViewerID != 0 && l.ID == in.ViewerID,
		Prizes:       []PrizeView{},
	}
	if l.FinishReason != rooms.FinishOK {
		e.Place, e.Score = LabelNoPlace, LabelDNF
		return e, nil
	}
	e.Place = strconv.FormatUint(l.Place, 10)
	e.Score = strconv.FormatInt(l.Score, 10)

	if pending {
		if l.Place <= uint64(maxInt) {
			if row, ok := in.Room.Row(int(l.Place)); ok {
				e.Resolved = row.Prizes
			}
		}
	} else {
		e.Resolved = l.Prizes
	}

	earnings, err := prize.ComputePayout(e.Resolved, in.Room.Computed.DepositStake)
	if err != nil {
		return Entry{}, fmt.Errorf("leaderboard: player %d: %w", l.ID, err)
	}
	e.Earnings = earnings
	e.Prizes = renderPrizes(in.Printer, earnings, e.Resolved)
	return e, nil
}

func buildViewer(p *message.Printer, l rooms.Leader, e Entry, fee *rooms.Ticket) *Viewer {
	v := &Viewer{
		Place:      strconv.FormatUint(l.Place, 10),
		Earnings:   e.Earnings,
		Resolved:   e.Resolved,
		Multiplier: Multiplier(e.Earnings, fee),
	}
	v.FirstRow, v.SecondRow = RewardRows(p, e.Earnings, e.Resolved)
	return v
}

// pad appends placeholder entries until the room capacity is reached. Their
// places continue after the highest real place.
func pad(in Input, view *View, highest uint64) error {
	next := max(highest, uint64(len(view.Entries)))
	for len(view.Entries) < in.Room.Capacity() {
		next++
		e := Entry{
			Identity: Identity{Name: LabelPlayerNeeded},
			Place:    strconv.FormatUint(next, 10),
			Score:    LabelTBD,
			RawPlace: next,
			IsEmpty:  true,
		}
		if row, ok := in.Room.Row(int(next)); ok {
			e.Resolved = row.Prizes
		}
		earnings, err := prize.ComputePayout(e.Resolved, in.Room.Computed.DepositStake)
		if err != nil {
			return fmt.Errorf("leaderboard: place %d: %w", next, err)
		}
		e.Earnings = earnings
		e.Prizes = renderPrizes(in.Printer, earnings, e.Resolved)
		view.Entries = append(view.Entries, e)
	}
	return nil
}

const maxInt = int(^uint(0) >> 1)

// YourFee is the fee the viewer actually paid: the voucher's backing item
// when a voucher of the room's tier was used, the room ticket otherwise.
func YourFee(room *rooms.Room, voucherUsed bool, vouchers []rooms.Voucher) *rooms.Ticket {
	if !voucherUsed || room.Details.Tier == nil {
		return room.Ticket
	}
	v, ok := rooms.VoucherForTier(vouchers, *room.Details.Tier)
	if !ok {
		return room.Ticket
	}
	return v.Ticket()
}

// FeeIcon is the icon shown next to a fee.
func FeeIcon(t *rooms.Ticket) Icon {
	if t == nil {
		return Icon{}
	}
	switch t.Kind() {
	case rooms.TicketCurrency:
		return Icon{Currency: true}
	case rooms.TicketItem:
		if t.Item != nil {
			return Icon{URL: t.Item.Image}
		}
	}
	return Icon{}
}

// Multiplier is earnings divided by the currency fee, or zero when the fee
// is not a non-zero currency amount.
func Multiplier(earnings int64, fee *rooms.Ticket) decimal.Decimal {
	amount, ok := fee.CurrencyFee()
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromInt(earnings).Div(decimal.NewFromInt(amount))
}

// RewardRows lays out the viewer's rewards over two rows. Currency earnings
// take the first slot of row one; in-kind rewards then alternate between the
// rows, continuing the count.
func RewardRows(p *message.Printer, earnings int64, prizes []prize.Prize) (first, second []PrizeView) {
	if p == nil {
		p = message.NewPrinter(language.English)
	}
	first, second = []PrizeView{}, []PrizeView{}
	n := 0
	if earnings > 0 {
		first = append(first, currencyView(p, earnings))
		n++
	}
	for _, pr := range prize.InKind(prizes) {
		if n%2 == 0 {
			first = append(first, prizeView(p, pr))
		} else {
			second = append(second, prizeView(p, pr))
		}
		n++
	}
	return first, second
}

// renderPrizes renders an entry's rewards: the currency total first, then
// every non-monetary prize in list order.
func renderPrizes(p *message.Printer, earnings int64, prizes []prize.Prize) []PrizeView {
	out := []PrizeView{}
	if earnings > 0 {
		out = append(out, currencyView(p, earnings))
	}
	for _, pr := range prizes {
		if pr == nil || pr.Kind().Monetary() {
			continue
		}
		out = append(out, prizeView(p, pr))
	}
	return out
}

func currencyView(p *message.Printer, amount int64) PrizeView {
	return PrizeView{Kind: "Currency", Amount: amount, Label: p.Sprintf("%d", amount), Icon: Icon{Currency: true}}
}

func prizeView(p *message.Printer, pr prize.Prize) PrizeView {
	v := PrizeView{Kind: pr.Kind().String()}
	switch x := pr.(type) {
	case prize.ItemPrize:
		v.Amount = int64(x.Amount)
		if x.Item != nil {
			v.Name, v.Icon = x.Item.Name, Icon{URL: x.Item.Image}
		}
	case prize.RewardPrize:
		v.Amount = int64(x.Amount)
		if x.Item != nil {
			v.Name, v.Icon = x.Item.Name, Icon{URL: x.Item.Image}
		}
	case prize.Manual:
		v.Name, v.Icon = x.Name, Icon{URL: x.ImageURL}
		if x.ValueUSD != nil {
			v.Label = "$" + x.ValueUSD.StringFixed(2)
			return v
		}
	}
	v.Label = p.Sprintf("%d", v.Amount)
	return v
}
