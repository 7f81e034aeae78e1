package prize

import (
	"errors"
	"math"
	"testing"
)

func TestComputePayout(t *testing.T) {
	tests := []struct {
		name   string
		prizes []Prize
		stake  int64
		want   int64
	}{
		{"nil list", nil, 1000, 0},
		{"pool share", []Prize{DepositStake{Percentage: Percent(50)}}, 1000, 500},
		{"pool share floors", []Prize{DepositStake{Percentage: Percent(33)}}, 1001, 330},
		{"pool share without percentage", []Prize{DepositStake{Value: 999}}, 1000, 0},
		{"gpp pool share", []Prize{Gpp{Percentage: Percent(20)}}, 1000, 200},
		{"per player", []Prize{DepositStake{Share: PerPlayer, Value: 75}}, 1000, 75},
		{"gpp per player ignores percentage", []Prize{Gpp{Share: PerPlayer, Value: 40, Percentage: Percent(90)}}, 1000, 40},
		{"in-kind prizes are zero", []Prize{
			ItemPrize{Amount: 3, Item: &Item{ID: 1}},
			RewardPrize{Amount: 1},
			Manual{Name: "Trophy"},
			Manual{Placeholder: true},
		}, 1000, 0},
		{"mixed", []Prize{
			DepositStake{Percentage: Percent(10)},
			Gpp{Share: PerPlayer, Value: 25},
			ItemPrize{Amount: 1},
		}, 1000, 125},
		{"negative stake clamps", []Prize{DepositStake{Percentage: Percent(50)}}, -500, 0},
		{"zero stake", []Prize{DepositStake{Percentage: Percent(100)}}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputePayout(tt.prizes, tt.stake)
			if err != nil {
				t.Fatalf("ComputePayout: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestComputePayoutPercentageIsExactFloor(t *testing.T) {
	stakes := []int64{0, 1, 7, 99, 100, 101, 999, 1000, 123457, 987654321, math.MaxInt64 / 1000}
	for pct := 0; pct <= 100; pct++ {
		for _, stake := range stakes {
			got, err := ComputePayout([]Prize{Gpp{Percentage: Percent(uint8(pct))}}, stake)
			if err != nil {
				t.Fatalf("pct=%d stake=%d: %v", pct, stake, err)
			}
			hi, lo := mul64(uint64(pct), uint64(stake))
			want := int64(div128(hi, lo, 100))
			if got != want {
				t.Fatalf("pct=%d stake=%d: got %d, want %d", pct, stake, got, want)
			}
			if got < 0 {
				t.Fatalf("negative payout %d", got)
			}
		}
	}
}

func TestComputePayoutOrderIndependent(t *testing.T) {
	list := []Prize{
		DepositStake{Percentage: Percent(33)},
		DepositStake{Percentage: Percent(17)},
		DepositStake{Percentage: Percent(1)},
		Gpp{Share: PerPlayer, Value: 5},
		Gpp{Percentage: Percent(49)},
	}
	want, err := ComputePayout(list, 1237)
	if err != nil {
		t.Fatal(err)
	}

	reversed := make([]Prize, len(list))
	for i, p := range list {
		reversed[len(list)-1-i] = p
	}
	got, err := ComputePayout(reversed, 1237)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("order changed payout: %d vs %d", got, want)
	}
}

func TestComputePayoutRejectsNil(t *testing.T) {
	_, err := ComputePayout([]Prize{nil}, 10)
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestComputePayoutOverflow(t *testing.T) {
	_, err := ComputePayout([]Prize{
		Gpp{Share: PerPlayer, Value: math.MaxUint64},
	}, 0)
	if !errors.Is(err, ErrPayoutOverflow) {
		t.Fatalf("expected ErrPayoutOverflow, got %v", err)
	}
}

func TestInKind(t *testing.T) {
	item := &Item{ID: 9, Name: "Chest"}
	got := InKind([]Prize{
		DepositStake{Percentage: Percent(10)},
		ItemPrize{Amount: 2, Item: item},
		ItemPrize{Amount: 0, Item: item},
		RewardPrize{Amount: 1},
		RewardPrize{Amount: 1, Item: item},
		Manual{Name: "Trophy"},
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 in-kind prizes, got %d", len(got))
	}
	if got[0].Kind() != KindItem || got[1].Kind() != KindReward {
		t.Errorf("unexpected order: %v, %v", got[0].Kind(), got[1].Kind())
	}
}

// mul64 and div128 compute floor(a*b/d) without overflow for the reference
// values in the exactness test.
func mul64(a, b uint64) (hi, lo uint64) {
	const mask = 1<<32 - 1
	a0, a1 := a&mask, a>>32
	b0, b1 := b&mask, b>>32
	w0 := a0 * b0
	t := a1*b0 + w0>>32
	w1 := t&mask + a0*b1
	hi = a1*b1 + t>>32 + w1>>32
	lo = a * b
	return hi, lo
}

func div128(hi, lo, d uint64) uint64 {
	var q, r uint64
	for i := 127; i >= 0; i-- {
		var bit uint64
		if i >= 64 {
			bit = (hi >> uint(i-64)) & 1
		} else {
			bit = (lo >> uint(i)) & 1
		}
		r = r<<1 | bit
		q <<= 1
		if r >= d {
			r -= d
			q |= 1
		}
	}
	return q
}
