package prize

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ErrPayoutOverflow is returned when a payout does not fit in an int64.
var ErrPayoutOverflow = errors.New("prize: payout overflows int64")

var hundred = decimal.NewFromInt(100)

// ComputePayout sums the currency value of a prize list against the room's
// deposit stake.
//
// Pool-share entries contribute floor(percentage*depositStake/100), or zero
// when no percentage is configured. Per-player entries contribute their fixed
// value. Manual, item and reward prizes contribute zero; they are in-kind
// rewards. A negative stake is treated as zero, so the result is never
// negative.
func ComputePayout(prizes []Prize, depositStake int64) (int64, error) {
	stake := decimal.NewFromInt(max(depositStake, 0))
	total := decimal.Zero
	for i, p := range prizes {
		c, err := contribution(p, stake)
		if err != nil {
			return 0, fmt.Errorf("prize: entry %d: %w", i, err)
		}
		total = total.Add(c)
	}

	sum := total.BigInt()
	if !sum.IsInt64() {
		return 0, ErrPayoutOverflow
	}
	return sum.Int64(), nil
}

func contribution(p Prize, stake decimal.Decimal) (decimal.Decimal, error) {
	switch v := p.(type) {
	case DepositStake:
		return stakeValue(v.Share, v.Value, v.Percentage, stake), nil
	case Gpp:
		return stakeValue(v.Share, v.Value, v.Percentage, stake), nil
	case Manual, ItemPrize, RewardPrize:
		return decimal.Zero, nil
	case nil:
		return decimal.Zero, fmt.Errorf("%w: nil prize", ErrUnknownKind)
	default:
		return decimal.Zero, fmt.Errorf("%w: %T", ErrUnknownKind, p)
	}
}

func stakeValue(share Share, value uint64, percentage *uint8, stake decimal.Decimal) decimal.Decimal {
	if share == PerPlayer {
		return decimal.NewFromBigInt(new(big.Int).SetUint64(value), 0)
	}
	if percentage == nil {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(*percentage)).Mul(stake).Div(hundred).Floor()
}
