package prize

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestDecodeList(t *testing.T) {
	raw := `[
		{"type":"DepositStakePoolShare","currency":1,"value":0,"percentage":50},
		{"type":2,"currency":1,"value":120},
		{"type":"gppPerPlayer","currency":1,"value":15},
		{"type":"Item","amount":2,"item_id":44,"item":{"id":44,"image":"chest.png","name":"Chest"}},
		{"type":"Reward","amount":1,"prize_id":7},
		{"type":"External","id":3,"name":"Console","value_usd":"499.99"},
		{"type":"Placeholder","id":0}
	]`

	var list List
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []Kind{
		KindDepositStakePoolShare,
		KindDepositStakePerPlayer,
		KindGppPerPlayer,
		KindItem,
		KindReward,
		KindExternal,
		KindPlaceholder,
	}
	if len(list) != len(want) {
		t.Fatalf("expected %d prizes, got %d", len(want), len(list))
	}
	for i, k := range want {
		if list[i].Kind() != k {
			t.Errorf("entry %d: kind %v, want %v", i, list[i].Kind(), k)
		}
	}

	pool := list[0].(DepositStake)
	if pool.Percentage == nil || *pool.Percentage != 50 {
		t.Errorf("percentage not decoded: %+v", pool)
	}
	item := list[3].(ItemPrize)
	if item.Item == nil || item.Item.Name != "Chest" || item.Amount != 2 {
		t.Errorf("item not decoded: %+v", item)
	}
	manual := list[5].(Manual)
	if manual.ValueUSD == nil || manual.ValueUSD.String() != "499.99" {
		t.Errorf("value_usd not decoded: %+v", manual)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	cases := []string{
		`{"type":"Jackpot","value":10}`,
		`{"type":99}`,
		`{"value":10}`,
		`{"type":null}`,
	}
	for _, c := range cases {
		if _, err := Decode([]byte(c)); !errors.Is(err, ErrUnknownKind) {
			t.Errorf("%s: expected ErrUnknownKind, got %v", c, err)
		}
	}
}

func TestListFailsOnOneBadEntry(t *testing.T) {
	var list List
	err := json.Unmarshal([]byte(`[{"type":"Item","amount":1},{"type":"Mystery"}]`), &list)
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if !strings.Contains(err.Error(), "entry 1") {
		t.Errorf("error should name the failing entry: %v", err)
	}
}

func TestListNull(t *testing.T) {
	var list List
	if err := json.Unmarshal([]byte(`null`), &list); err != nil {
		t.Fatal(err)
	}
	if list != nil {
		t.Errorf("expected nil list, got %v", list)
	}
	out, err := json.Marshal(List(nil))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "[]" {
		t.Errorf("nil list should encode as [], got %s", out)
	}
}

func TestEncodeKeepsDiscriminator(t *testing.T) {
	in := List{
		Gpp{Share: PerPlayer, Currency: 1, Value: 30},
		Manual{Placeholder: true, ID: 4},
		DepositStake{Percentage: Percent(25)},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"type":"GppPerPlayer"`) {
		t.Errorf("missing discriminator in %s", data)
	}

	var out List
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out[0].Kind() != KindGppPerPlayer || out[1].Kind() != KindPlaceholder || out[2].Kind() != KindDepositStakePoolShare {
		t.Errorf("kinds changed: %v %v %v", out[0].Kind(), out[1].Kind(), out[2].Kind())
	}
}

func TestEncodeRejectsNil(t *testing.T) {
	if _, err := Encode(nil); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("reward"); err != nil || k != KindReward {
		t.Errorf("ParseKind(reward) = %v, %v", k, err)
	}
	if k, err := ParseKind("3"); err != nil || k != KindGppPoolShare {
		t.Errorf("ParseKind(3) = %v, %v", k, err)
	}
	if _, err := ParseKind("-1"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("ParseKind(-1) should fail, got %v", err)
	}
	if !KindGppPerPlayer.Monetary() || KindItem.Monetary() {
		t.Error("Monetary classification wrong")
	}
}
