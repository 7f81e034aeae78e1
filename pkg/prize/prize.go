// Package prize models a room's reward table entries and converts them into
// a currency payout.
//
// A Prize is a closed sum type: the only implementations are the structs in
// this package, and every decode and payout path switches over all of them.
// The JSON form carries an explicit "type" discriminator; an unrecognised
// discriminator is a hard error (ErrUnknownKind), never a silent zero.
package prize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnknownKind is returned when a prize carries a type tag this package does
// not recognise.
var ErrUnknownKind = errors.New("prize: unknown prize kind")

// Kind is the wire discriminator of a prize.
type Kind int

const (
	KindItem Kind = iota
	KindDepositStakePoolShare
	KindDepositStakePerPlayer
	KindGppPoolShare
	KindGppPerPlayer
	KindExternal
	KindPlaceholder
	KindReward
)

var kindNames = [...]string{
	KindItem:                  "Item",
	KindDepositStakePoolShare: "DepositStakePoolShare",
	KindDepositStakePerPlayer: "DepositStakePerPlayer",
	KindGppPoolShare:          "GppPoolShare",
	KindGppPerPlayer:          "GppPerPlayer",
	KindExternal:              "External",
	KindPlaceholder:           "Placeholder",
	KindReward:                "Reward",
}

func (k Kind) valid() bool {
	return k >= KindItem && k <= KindReward
}

func (k Kind) String() string {
	if !k.valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText writes the kind by name, matching the backend's string enums.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText accepts the kind name (case-insensitive) or its ordinal.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind resolves a discriminator string.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	for i, name := range kindNames {
		if strings.EqualFold(name, s) {
			return Kind(i), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Kind(n).valid() {
		return Kind(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Monetary reports whether the kind contributes to the currency payout.
func (k Kind) Monetary() bool {
	switch k {
	case KindDepositStakePoolShare, KindDepositStakePerPlayer, KindGppPoolShare, KindGppPerPlayer:
		return true
	}
	return false
}

// Prize is one entry of a place's reward list.
type Prize interface {
	Kind() Kind
	sealed()
}

// Item is a platform inventory item referenced by item and reward prizes and
// by item tickets.
type Item struct {
	ID    int64  `json:"id"`
	Image string `json:"image"`
	Name  string `json:"name"`
}

// Manual is an externally curated prize (External or Placeholder). It never
// takes part in automatic payout math.
type Manual struct {
	Placeholder     bool             `json:"-"`
	ID              uint32           `json:"id"`
	ValueUSD        *decimal.Decimal `json:"value_usd,omitempty"`
	ImageURL        string           `json:"image_url,omitempty"`
	Name            string           `json:"name,omitempty"`
	Description     string           `json:"description,omitempty"`
	Chain           string           `json:"chain,omitempty"`
	ContractAddress string           `json:"contract_address,omitempty"`
	ExplorerURL     string           `json:"explorer_url,omitempty"`
	WalletAddress   string           `json:"wallet_address,omitempty"`
	TokenID         *int64           `json:"token_id,omitempty"`
}

func (m Manual) Kind() Kind {
	if m.Placeholder {
		return KindPlaceholder
	}
	return KindExternal
}

func (Manual) sealed() {}

// ItemPrize awards Amount units of an inventory item.
type ItemPrize struct {
	Amount int    `json:"amount"`
	ItemID uint64 `json:"item_id"`
	Item   *Item  `json:"item,omitempty"`
}

func (ItemPrize) Kind() Kind { return KindItem }
func (ItemPrize) sealed()    {}

// RewardPrize awards Amount units of a platform reward.
type RewardPrize struct {
	Amount  int   `json:"amount"`
	PrizeID int64 `json:"prize_id"`
	Item    *Item `json:"item,omitempty"`
}

func (RewardPrize) Kind() Kind { return KindReward }
func (RewardPrize) sealed()    {}

// Share selects how a stake-derived prize is valued.
type Share int

const (
	// PoolShare pays Percentage of the room's deposit stake.
	PoolShare Share = iota
	// PerPlayer pays the fixed Value.
	PerPlayer
)

// DepositStake is paid out of the pooled entry fees.
type DepositStake struct {
	Share      Share  `json:"-"`
	Currency   uint8  `json:"currency"`
	Value      uint64 `json:"value"`
	Percentage *uint8 `json:"percentage,omitempty"`
}

func (d DepositStake) Kind() Kind {
	if d.Share == PerPlayer {
		return KindDepositStakePerPlayer
	}
	return KindDepositStakePoolShare
}

func (DepositStake) sealed() {}

// Gpp is paid out of the guaranteed prize pool.
type Gpp struct {
	Share      Share  `json:"-"`
	Currency   uint8  `json:"currency"`
	Value      uint64 `json:"value"`
	Percentage *uint8 `json:"percentage,omitempty"`
}

func (g Gpp) Kind() Kind {
	if g.Share == PerPlayer {
		return KindGppPerPlayer
	}
	return KindGppPoolShare
}

func (Gpp) sealed() {}

// Percent is a convenience for building pool-share prizes.
func Percent(p uint8) *uint8 { return &p }

// InKind returns the item and reward prizes that render as separate rewards:
// those with an attached item and a positive amount, in list order.
func InKind(prizes []Prize) []Prize {
	var out []Prize
	for _, p := range prizes {
		switch v := p.(type) {
		case ItemPrize:
			if v.Item != nil && v.Amount >= 1 {
				out = append(out, v)
			}
		case RewardPrize:
			if v.Item != nil && v.Amount >= 1 {
				out = append(out, v)
			}
		}
	}
	return out
}
