package prize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// List is a prize list that (de)serialises through the tagged codec.
type List []Prize

// UnmarshalJSON decodes every entry by its type tag. One bad entry fails the
// whole list.
func (l *List) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = nil
		return nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("prize: decode list: %w", err)
	}
	out := make(List, 0, len(raws))
	for i, raw := range raws {
		p, err := Decode(raw)
		if err != nil {
			return fmt.Errorf("prize: entry %d: %w", i, err)
		}
		out = append(out, p)
	}
	*l = out
	return nil
}

// MarshalJSON writes every entry with its type tag.
func (l List) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	raws := make([]json.RawMessage, 0, len(l))
	for i, p := range l {
		raw, err := Encode(p)
		if err != nil {
			return nil, fmt.Errorf("prize: entry %d: %w", i, err)
		}
		raws = append(raws, raw)
	}
	return json.Marshal(raws)
}

// Decode reads one tagged prize object.
func Decode(raw []byte) (Prize, error) {
	var head struct {
		Type json.RawMessage `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("prize: decode: %w", err)
	}
	kind, err := decodeKind(head.Type)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindExternal, KindPlaceholder:
		var m Manual
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("prize: decode %s: %w", kind, err)
		}
		m.Placeholder = kind == KindPlaceholder
		return m, nil
	case KindItem:
		var it ItemPrize
		if err := json.Unmarshal(raw, &it); err != nil {
			return nil, fmt.Errorf("prize: decode %s: %w", kind, err)
		}
		return it, nil
	case KindReward:
		var r RewardPrize
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("prize: decode %s: %w", kind, err)
		}
		return r, nil
	case KindDepositStakePoolShare, KindDepositStakePerPlayer:
		var d DepositStake
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("prize: decode %s: %w", kind, err)
		}
		d.Share = shareOf(kind)
		return d, nil
	case KindGppPoolShare, KindGppPerPlayer:
		var g Gpp
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, fmt.Errorf("prize: decode %s: %w", kind, err)
		}
		g.Share = shareOf(kind)
		return g, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
}

// Encode writes one prize with its type tag.
func Encode(p Prize) ([]byte, error) {
	switch v := p.(type) {
	case Manual, ItemPrize, RewardPrize, DepositStake, Gpp:
		return marshalTagged(v.Kind(), v)
	case nil:
		return nil, fmt.Errorf("%w: nil prize", ErrUnknownKind)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, p)
	}
}

func marshalTagged(kind Kind, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("prize: encode %s: %w", kind, err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("prize: encode %s: %w", kind, err)
	}
	tag, err := json.Marshal(kind)
	if err != nil {
		return nil, err
	}
	fields["type"] = tag
	return json.Marshal(fields)
}

func decodeKind(raw json.RawMessage) (Kind, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("%w: missing type field", ErrUnknownKind)
	}
	if raw[0] == '"' {
		s, err := strconv.Unquote(string(raw))
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrUnknownKind, raw)
		}
		return ParseKind(s)
	}
	return ParseKind(string(raw))
}

func shareOf(k Kind) Share {
	if k == KindDepositStakePerPlayer || k == KindGppPerPlayer {
		return PerPlayer
	}
	return PoolShare
}
