// Package account serves the player's profile, balance and vouchers, cached
// after the first fetch.
package account

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MJE43/funtico-sdk-go/pkg/rooms"
	"github.com/MJE43/funtico-sdk-go/pkg/transport"
)

const (
	pathUserData       = "/User/get-full-data"
	pathBalance        = "/User/get-balance"
	pathVouchers       = "/User/vouchers"
	pathVoucherStatics = "/User/vouchers-data"

	defaultPlaysToActivate = 10
)

// ErrNoUserData is returned when the platform id is needed before the
// profile could be loaded.
var ErrNoUserData = errors.New("account: user data not loaded")

// UserData is the player's profile.
type UserData struct {
	Name              string  `json:"name"`
	Coins             float64 `json:"coins"`
	Diamonds          float64 `json:"diamonds"`
	Rating            int     `json:"rating"`
	Level             int     `json:"level"`
	Experience        int     `json:"experience"`
	ExperienceToLevel int     `json:"experienceToLevel"`
	SemiFinalTickets  uint32  `json:"semiFinalTickets"`
	FinalTickets      uint32  `json:"finalTickets"`
	PrivateTickets    uint32  `json:"privateTickets"`
	PlatformID        int64   `json:"platformId"`
	UserID            int64   `json:"userId"`
	KYCVerified       bool    `json:"kycVerified"`
}

// Balance is the player's spendable currencies.
type Balance struct {
	Coins            float64 `json:"coins"`
	Diamonds         float64 `json:"diamonds"`
	FinalTickets     uint32  `json:"finalTickets"`
	SemiFinalTickets uint32  `json:"semiFinalTickets"`
	PrivateTickets   uint32  `json:"privateTickets"`
	KYCVerified      bool    `json:"kycVerified"`
}

// FeeType is the currency an entry fee is paid in.
type FeeType int

const (
	FeeIC FeeType = iota + 1
	FeeTico
	FeeSemifinalTickets
	FeeFinalTickets
	FeeFree
	FeeInventoryItem
	FeePrivateTickets
)

// CanAfford reports whether the balance covers amount of the fee type.
// Types the balance does not track are left to the backend to refuse.
func (b Balance) CanAfford(fee FeeType, amount int64) bool {
	switch fee {
	case FeeTico:
		return b.Diamonds >= float64(amount)
	case FeeSemifinalTickets:
		return int64(b.SemiFinalTickets) >= amount
	case FeeFinalTickets:
		return int64(b.FinalTickets) >= amount
	case FeePrivateTickets:
		return int64(b.PrivateTickets) >= amount
	}
	return true
}

type voucherStatic struct {
	Name  string     `json:"name"`
	Image string     `json:"image"`
	ID    int64      `json:"id"`
	Tier  rooms.Tier `json:"tier"`
}

// Service fetches and caches account data. It is safe for concurrent use.
type Service struct {
	http *transport.Client

	mu       sync.Mutex
	user     *UserData
	balance  *Balance
	vouchers []rooms.Voucher
	statics  []voucherStatic
}

// NewService creates an account service over t.
func NewService(t *transport.Client) *Service {
	return &Service{http: t}
}

// UserData returns the profile, fetching it when not cached or when fresh is
// set.
func (s *Service) UserData(ctx context.Context, fresh bool) (UserData, error) {
	s.mu.Lock()
	cached := s.user
	s.mu.Unlock()
	if cached != nil && !fresh {
		return *cached, nil
	}

	u, err := transport.GetJSON[UserData](ctx, s.http, pathUserData)
	if err != nil {
		return UserData{}, fmt.Errorf("account: get user data: %w", err)
	}
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
	return u, nil
}

// PlatformUserID returns the cached platform id, loading the profile once.
func (s *Service) PlatformUserID(ctx context.Context) (int64, error) {
	u, err := s.UserData(ctx, false)
	if err != nil {
		return 0, err
	}
	if u.PlatformID == 0 {
		return 0, ErrNoUserData
	}
	return u.PlatformID, nil
}

// CachedUserData returns the cached profile without a network call.
func (s *Service) CachedUserData() (UserData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return UserData{}, false
	}
	return *s.user, true
}

// Balance returns the balance, fetching it when not cached or when fresh is
// set.
func (s *Service) Balance(ctx context.Context, fresh bool) (Balance, error) {
	s.mu.Lock()
	cached := s.balance
	s.mu.Unlock()
	if cached != nil && !fresh {
		return *cached, nil
	}

	b, err := transport.GetJSON[Balance](ctx, s.http, pathBalance)
	if err != nil {
		return Balance{}, fmt.Errorf("account: get balance: %w", err)
	}
	s.mu.Lock()
	s.balance = &b
	s.mu.Unlock()
	return b, nil
}

// CanAfford refreshes the balance and checks it against the fee.
func (s *Service) CanAfford(ctx context.Context, fee FeeType, amount int64) (bool, error) {
	b, err := s.Balance(ctx, true)
	if err != nil {
		return false, err
	}
	return b.CanAfford(fee, amount), nil
}

// Vouchers returns one voucher per tier: the static catalogue entry for every
// tier, overlaid with the player's counts where the player holds one.
func (s *Service) Vouchers(ctx context.Context, fresh bool) ([]rooms.Voucher, error) {
	s.mu.Lock()
	cached, statics := s.vouchers, s.statics
	s.mu.Unlock()
	if cached != nil && !fresh {
		return cloneVouchers(cached), nil
	}

	if statics == nil {
		resp, err := transport.GetJSON[struct {
			Data []voucherStatic `json:"data"`
		}](ctx, s.http, pathVoucherStatics)
		if err != nil {
			return nil, fmt.Errorf("account: get voucher catalogue: %w", err)
		}
		statics = resp.Data
		if statics == nil {
			statics = []voucherStatic{}
		}
	}

	resp, err := transport.GetJSON[struct {
		Data []rooms.Voucher `json:"data"`
	}](ctx, s.http, pathVouchers)
	if err != nil {
		return nil, fmt.Errorf("account: get vouchers: %w", err)
	}

	merged := mergeVouchers(statics, resp.Data)
	s.mu.Lock()
	s.statics = statics
	s.vouchers = merged
	s.mu.Unlock()
	return cloneVouchers(merged), nil
}

// CachedVouchers returns the last fetched vouchers.
func (s *Service) CachedVouchers() []rooms.Voucher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneVouchers(s.vouchers)
}

// Reset drops every cached value.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user, s.balance, s.vouchers, s.statics = nil, nil, nil, nil
}

func mergeVouchers(statics []voucherStatic, held []rooms.Voucher) []rooms.Voucher {
	out := make([]rooms.Voucher, 0, len(statics)+len(held))
	for _, st := range statics {
		out = append(out, rooms.Voucher{
			ItemID:                  st.ID,
			ItemName:                st.Name,
			ItemImage:               st.Image,
			Tier:                    st.Tier,
			PlaysRequiredToActivate: defaultPlaysToActivate,
		})
	}
	for _, v := range held {
		i := indexOfTier(out, v.Tier)
		if i < 0 {
			out = append(out, v)
			continue
		}
		out[i].Count = v.Count
		out[i].PlayCount = v.PlayCount
		out[i].PlaysRequiredToActivate = v.PlaysRequiredToActivate
	}
	return out
}

func indexOfTier(vs []rooms.Voucher, tier rooms.Tier) int {
	for i, v := range vs {
		if v.Tier == tier {
			return i
		}
	}
	return -1
}

func cloneVouchers(vs []rooms.Voucher) []rooms.Voucher {
	if vs == nil {
		return nil
	}
	return append([]rooms.Voucher(nil), vs...)
}
