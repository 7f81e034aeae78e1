package leaderboard

import (
	"errors"
	"testing"

	"github.com/MJE43/funtico-sdk-go/pkg/prize"
	"github.com/MJE43/funtico-sdk-go/pkg/rooms"
)

func ptr[T any](v T) *T { return &v }

func poolShare(pct uint8) prize.Prize {
	return prize.DepositStake{Share: prize.PoolShare, Percentage: prize.Percent(pct)}
}

func item(name string, amount int) prize.Prize {
	return prize.ItemPrize{Amount: amount, ItemID: 1, Item: &prize.Item{ID: 1, Name: name, Image: name + ".png"}}
}

func testRoom() *rooms.Room {
	return &rooms.Room{
		ID:     "room-1",
		Size:   ptr(8),
		Ticket: &rooms.Ticket{Type: ptr(rooms.TicketCurrency), CurrencyAmount: ptr(int64(100))},
		Distribution: []rooms.DistributionRow{
			{Place: ptr(1), Prizes: prize.List{poolShare(50)}},
			{Place: ptr(2), Prizes: prize.List{poolShare(20)}},
		},
		Computed: rooms.Computed{DepositStake: 1000, Stake: 800, PlatformFee: 80},
		Details:  rooms.Details{Name: "Daily Sprint", Tier: ptr(rooms.TierChallenger)},
	}
}

func leader(id, place uint64, score int64, reason rooms.FinishReason) rooms.Leader {
	return rooms.Leader{ID: id, Place: place, Score: score, FinishReason: reason}
}

func TestAggregatePendingPadding(t *testing.T) {
	view, err := Aggregate(Input{
		Room: testRoom(),
		Leaders: &rooms.Leaders{State: rooms.StatePlaced, Leaders: []rooms.Leader{
			leader(11, 1, 900, rooms.FinishOK),
			leader(12, 2, 700, rooms.FinishOK),
			leader(13, 3, 500, rooms.FinishOK),
		}},
		Pending: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !view.Pending {
		t.Fatal("expected pending view")
	}
	if len(view.Entries) != 8 {
		t.Fatalf("entries = %d, want 8", len(view.Entries))
	}

	wantEarnings := []int64{500, 200, 0, 0, 0, 0, 0, 0}
	placeholders := 0
	for i, e := range view.Entries {
		if e.Earnings != wantEarnings[i] {
			t.Errorf("place %d earnings = %d, want %d", i+1, e.Earnings, wantEarnings[i])
		}
		if e.RawPlace != uint64(i+1) {
			t.Errorf("entry %d place = %d", i, e.RawPlace)
		}
		if e.IsEmpty {
			placeholders++
			if i < 3 {
				t.Errorf("placeholder at real position %d", i)
			}
			if e.Identity.Name != LabelPlayerNeeded || e.Score != LabelTBD {
				t.Errorf("placeholder labels = %+v", e)
			}
		}
	}
	if placeholders != 5 {
		t.Errorf("placeholders = %d, want 5", placeholders)
	}
	if view.Entries[0].ID != 11 || view.Entries[2].ID != 13 {
		t.Error("real entries reordered")
	}
	if got := view.Entries[0].Prizes; len(got) != 1 || got[0].Amount != 500 || !got[0].Icon.Currency {
		t.Errorf("first place prizes = %+v", got)
	}
}

func TestAggregatePaddingNeverShrinks(t *testing.T) {
	room := testRoom()
	room.Size = ptr(2)
	view, err := Aggregate(Input{
		Room: room,
		Leaders: &rooms.Leaders{Leaders: []rooms.Leader{
			leader(1, 1, 3, rooms.FinishOK),
			leader(2, 2, 2, rooms.FinishOK),
			leader(3, 3, 1, rooms.FinishOK),
		}},
		Pending: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Entries) != 3 {
		t.Errorf("entries = %d, want 3", len(view.Entries))
	}
}

func TestAggregatePaddingContinuesAfterHighestPlace(t *testing.T) {
	room := testRoom()
	room.Size = ptr(4)
	view, err := Aggregate(Input{
		Room: room,
		Leaders: &rooms.Leaders{Leaders: []rooms.Leader{
			leader(1, 1, 3, rooms.FinishOK),
			leader(2, 3, 2, rooms.FinishOK),
		}},
		Pending: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Entries) != 4 {
		t.Fatalf("entries = %d", len(view.Entries))
	}
	if view.Entries[2].RawPlace != 4 || view.Entries[3].RawPlace != 5 {
		t.Errorf("placeholder places = %d, %d", view.Entries[2].RawPlace, view.Entries[3].RawPlace)
	}
}

func TestAggregateKickedViewerEarnsNothing(t *testing.T) {
	view, err := Aggregate(Input{
		Room: testRoom(),
		Leaders: &rooms.Leaders{Leaders: []rooms.Leader{
			leader(42, 1, 999, rooms.FinishKicked),
			leader(7, 2, 100, rooms.FinishOK),
		}},
		ViewerID: 42,
		Pending:  true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if view.Viewer == nil {
		t.Fatal("viewer missing")
	}
	if view.Viewer.Earnings != 0 || len(view.Viewer.FirstRow) != 0 {
		t.Errorf("kicked viewer = %+v", view.Viewer)
	}
	me := view.Entries[0]
	if !me.IsMe || !me.DNF() || me.Place != LabelNoPlace || me.Score != LabelDNF || len(me.Prizes) != 0 || me.Resolved != nil {
		t.Errorf("kicked entry = %+v", me)
	}
	if view.Entries[1].Earnings != 200 {
		t.Errorf("second place earnings = %d", view.Entries[1].Earnings)
	}
}

func TestAggregateDNFIgnoresSettledPrizes(t *testing.T) {
	for _, reason := range []rooms.FinishReason{rooms.FinishAutomaticallyClosed, rooms.FinishKicked, rooms.FinishUnfinished} {
		l := leader(5, 1, 10, reason)
		l.Prizes = prize.List{prize.DepositStake{Share: prize.PerPlayer, Value: 400}}
		view, err := Aggregate(Input{
			Room:    testRoom(),
			Leaders: &rooms.Leaders{State: rooms.StateDistributed, Leaders: []rooms.Leader{l}},
		})
		if err != nil {
			t.Fatal(err)
		}
		if e := view.Entries[0]; e.Earnings != 0 || len(e.Resolved) != 0 {
			t.Errorf("%v: entry = %+v", reason, e)
		}
	}
}

func TestAggregateSettled(t *testing.T) {
	l := leader(42, 1, 900, rooms.FinishOK)
	l.Prizes = prize.List{
		prize.DepositStake{Share: prize.PerPlayer, Value: 375},
		item("chest", 1),
		item("key", 2),
		item("gem", 3),
	}
	view, err := Aggregate(Input{
		Room: testRoom(),
		Leaders: &rooms.Leaders{State: rooms.StateDistributed, Leaders: []rooms.Leader{
			l,
			leader(8, 2, 100, rooms.FinishOK),
		}},
		ViewerID: 42,
		Pending:  true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if view.Pending {
		t.Error("a distributed ranking is never pending")
	}
	if len(view.Entries) != 2 {
		t.Errorf("settled views are not padded, got %d entries", len(view.Entries))
	}
	v := view.Viewer
	if v == nil || v.Earnings != 375 || v.Place != "1" {
		t.Fatalf("viewer = %+v", v)
	}
	if v.Multiplier.String() != "3.75" {
		t.Errorf("multiplier = %s", v.Multiplier)
	}
	// currency, then items alternate starting on row two
	if len(v.FirstRow) != 2 || v.FirstRow[0].Kind != "Currency" || v.FirstRow[1].Name != "key" {
		t.Errorf("first row = %+v", v.FirstRow)
	}
	if len(v.SecondRow) != 2 || v.SecondRow[0].Name != "chest" || v.SecondRow[1].Name != "gem" {
		t.Errorf("second row = %+v", v.SecondRow)
	}
	if view.Entries[1].Earnings != 0 {
		t.Error("settled entry without prizes should earn nothing")
	}
	if view.FeeIcon != (Icon{Currency: true}) {
		t.Errorf("fee icon = %+v", view.FeeIcon)
	}
}

func TestRewardRowsWithoutCurrency(t *testing.T) {
	first, second := RewardRows(nil, 0, []prize.Prize{item("a", 1), poolShare(10), item("b", 1), item("c", 0), item("d", 1)})
	names := func(vs []PrizeView) (out []string) {
		for _, v := range vs {
			out = append(out, v.Name)
		}
		return out
	}
	if got := names(first); len(got) != 2 || got[0] != "a" || got[1] != "d" {
		t.Errorf("first = %v", got)
	}
	if got := names(second); len(got) != 1 || got[0] != "b" {
		t.Errorf("second = %v", got)
	}
}

func TestAggregateViewerAbsent(t *testing.T) {
	view, err := Aggregate(Input{
		Room:     testRoom(),
		Leaders:  &rooms.Leaders{Leaders: []rooms.Leader{leader(1, 1, 5, rooms.FinishOK)}},
		ViewerID: 99,
	})
	if err != nil {
		t.Fatal(err)
	}
	if view.Viewer != nil {
		t.Errorf("viewer = %+v", view.Viewer)
	}
	if view.RoomName != "Daily Sprint" || view.Tier != rooms.TierChallenger {
		t.Errorf("room fields = %q %v", view.RoomName, view.Tier)
	}
	if len(view.Entries) != 1 {
		t.Error("room-level view should still list the ranking")
	}
}

func TestVoucherSubstitution(t *testing.T) {
	vouchers := []rooms.Voucher{
		{ItemID: 3, ItemName: "Gold Pass", ItemImage: "gold.png", Tier: rooms.TierChampion},
		{ItemID: 2, ItemName: "Silver Pass", ItemImage: "silver.png", Tier: rooms.TierChallenger},
	}
	room := testRoom()
	l := leader(42, 1, 1, rooms.FinishOK)
	l.Prizes = prize.List{prize.DepositStake{Share: prize.PerPlayer, Value: 300}}

	view, err := Aggregate(Input{
		Room:        room,
		Leaders:     &rooms.Leaders{State: rooms.StateDistributed, Leaders: []rooms.Leader{l}},
		ViewerID:    42,
		VoucherUsed: true,
		Vouchers:    vouchers,
	})
	if err != nil {
		t.Fatal(err)
	}
	if view.YourFee.Kind() != rooms.TicketItem || view.YourFee.Item.Name != "Silver Pass" {
		t.Errorf("your fee = %+v", view.YourFee)
	}
	if view.OriginalFee != room.Ticket {
		t.Error("original fee must stay the room ticket")
	}
	if view.FeeIcon.URL != "silver.png" {
		t.Errorf("fee icon = %+v", view.FeeIcon)
	}
	if !view.Viewer.Multiplier.IsZero() {
		t.Errorf("item fee multiplier = %s", view.Viewer.Multiplier)
	}
	if view.Viewer.Earnings != 300 {
		t.Error("voucher must not change the prize math")
	}

	if fee := YourFee(room, true, vouchers[:1]); fee != room.Ticket {
		t.Error("no voucher for the tier falls back to the room ticket")
	}
}

func TestFeeIcon(t *testing.T) {
	tests := []struct {
		name   string
		ticket *rooms.Ticket
		want   Icon
	}{
		{"nil", nil, Icon{}},
		{"free", &rooms.Ticket{Type: ptr(rooms.TicketFree)}, Icon{}},
		{"currency", &rooms.Ticket{Type: ptr(rooms.TicketCurrency)}, Icon{Currency: true}},
		{"item", &rooms.Ticket{Type: ptr(rooms.TicketItem), Item: &prize.Item{Image: "x.png"}}, Icon{URL: "x.png"}},
		{"item without image", &rooms.Ticket{Type: ptr(rooms.TicketItem)}, Icon{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FeeIcon(tt.ticket); got != tt.want {
				t.Errorf("FeeIcon = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAggregateUnknownPrize(t *testing.T) {
	l := leader(1, 1, 1, rooms.FinishOK)
	l.Prizes = prize.List{nil}
	_, err := Aggregate(Input{Room: testRoom(), Leaders: &rooms.Leaders{State: rooms.StateDistributed, Leaders: []rooms.Leader{l}}})
	if !errors.Is(err, prize.ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestAggregateLabels(t *testing.T) {
	room := testRoom()
	room.Computed.DepositStake = 10_000_000
	view, err := Aggregate(Input{
		Room:    room,
		Leaders: &rooms.Leaders{Leaders: []rooms.Leader{leader(1, 1, 12345, rooms.FinishOK)}},
		Pending: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	e := view.Entries[0]
	if e.Score != "12345" || e.Place != "1" {
		t.Errorf("labels = %q %q", e.Place, e.Score)
	}
	if e.Prizes[0].Label != "5,000,000" {
		t.Errorf("amount label = %q", e.Prizes[0].Label)
	}
}
