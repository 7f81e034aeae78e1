package account

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/MJE43/funtico-sdk-go/pkg/rooms"
	"github.com/MJE43/funtico-sdk-go/pkg/transport"
)

func newService(t *testing.T, mux *http.ServeMux) *Service {
	t.Helper()
	server := httptest.NewTLSServer(mux)
	t.Cleanup(server.Close)
	return NewService(transport.NewClient(transport.Config{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		MaxRetries: 1,
	}))
}

func TestUserDataCached(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/User/get-full-data", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"Name":"ana","PlatformId":4242,"UserId":7,"Diamonds":12.5}`))
	})
	s := newService(t, mux)

	if _, ok := s.CachedUserData(); ok {
		t.Error("cache should start empty")
	}
	id, err := s.PlatformUserID(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if id != 4242 {
		t.Errorf("platform id = %d", id)
	}
	if _, err := s.PlatformUserID(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 fetch, got %d", calls.Load())
	}

	u, err := s.UserData(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 || u.UserID != 7 {
		t.Errorf("fresh fetch: calls=%d user=%+v", calls.Load(), u)
	}
}

func TestPlatformUserIDMissing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/User/get-full-data", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Name":"guest"}`))
	})
	s := newService(t, mux)
	if _, err := s.PlatformUserID(context.Background()); !errors.Is(err, ErrNoUserData) {
		t.Errorf("expected ErrNoUserData, got %v", err)
	}
}

func TestVouchersMergeCatalogue(t *testing.T) {
	var staticCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/User/vouchers-data", func(w http.ResponseWriter, r *http.Request) {
		staticCalls.Add(1)
		w.Write([]byte(`{"data":[
			{"name":"Bronze Pass","image":"b.png","id":1,"tier":0},
			{"name":"Gold Pass","image":"g.png","id":3,"tier":2}
		]}`))
	})
	mux.HandleFunc("/User/vouchers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[
			{"item_id":3,"tier":2,"count":2,"play_count":4,"plays_required_to_activate":5},
			{"item_id":9,"item_name":"Silver Pass","tier":1,"count":1,"play_count":5,"plays_required_to_activate":5}
		]}`))
	})
	s := newService(t, mux)

	vs, err := s.Vouchers(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(vs) != 3 {
		t.Fatalf("expected 3 vouchers, got %+v", vs)
	}

	bronze, _ := rooms.VoucherForTier(vs, rooms.TierContender)
	if bronze.Count != 0 || bronze.PlaysRequiredToActivate != 10 || bronze.ItemName != "Bronze Pass" {
		t.Errorf("bronze = %+v", bronze)
	}
	gold, _ := rooms.VoucherForTier(vs, rooms.TierChampion)
	if gold.Count != 2 || gold.PlayCount != 4 || gold.ItemName != "Gold Pass" || gold.Usable() {
		t.Errorf("gold = %+v", gold)
	}
	silver, _ := rooms.VoucherForTier(vs, rooms.TierChallenger)
	if !silver.Usable() || silver.ItemName != "Silver Pass" {
		t.Errorf("silver = %+v", silver)
	}

	if _, err := s.Vouchers(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if staticCalls.Load() != 1 {
		t.Errorf("catalogue should be fetched once, got %d", staticCalls.Load())
	}
	if len(s.CachedVouchers()) != 3 {
		t.Error("cached vouchers missing")
	}
}

func TestCanAfford(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/User/get-balance", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Diamonds":150,"FinalTickets":1}`))
	})
	s := newService(t, mux)

	tests := []struct {
		fee    FeeType
		amount int64
		want   bool
	}{
		{FeeTico, 150, true},
		{FeeTico, 151, false},
		{FeeFinalTickets, 1, true},
		{FeeSemifinalTickets, 1, false},
		{FeeFree, 1000, true},
		{FeeInventoryItem, 1, true},
	}
	for _, tt := range tests {
		got, err := s.CanAfford(context.Background(), tt.fee, tt.amount)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("CanAfford(%d, %d) = %v, want %v", tt.fee, tt.amount, got, tt.want)
		}
	}
}
