package envelope

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	c := NewCodec("game-secret")
	tests := []struct {
		name string
		in   Payload
	}{
		{"empty log", Payload{Data: `{"level":3}`, Events: []string{}}},
		{"nil log", Payload{Data: "state"}},
		{"events in order", Payload{Data: "", Events: []string{"jump", "jump", "coin:5", ""}}},
		{"unicode", Payload{Data: "ünïcødé ✓", Events: []string{"𝄞"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := c.Seal(42, tt.in)
			if err != nil {
				t.Fatalf("Seal: %v", err)
			}
			out, err := c.Open(42, sealed)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			want := tt.in
			if want.Events == nil {
				want.Events = []string{}
			}
			if !reflect.DeepEqual(out, want) {
				t.Errorf("round trip mismatch: got %+v, want %+v", out, want)
			}
		})
	}
}

func TestSealRejectsInvalidUTF8(t *testing.T) {
	c := NewCodec("game-secret")
	tests := []struct {
		name string
		in   Payload
	}{
		{"data", Payload{Data: "\xff\xfebinary-state"}},
		{"event", Payload{Data: "ok", Events: []string{"jump", "ev\x80"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := c.Seal(42, tt.in)
			if !errors.Is(err, ErrInvalidPayload) {
				t.Fatalf("Seal = %+v, %v; want ErrInvalidPayload", sealed, err)
			}
		})
	}
}

func TestSealIsRandomised(t *testing.T) {
	c := NewCodec("game-secret")
	a, _ := c.Seal(1, Payload{Data: "x"})
	b, _ := c.Seal(1, Payload{Data: "x"})
	if a.Data == b.Data {
		t.Error("two seals of the same payload produced identical ciphertext")
	}
}

func TestOpenWrongUser(t *testing.T) {
	c := NewCodec("game-secret")
	sealed, err := c.Seal(1, Payload{Data: "mine"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Open(2, sealed)
	assertStage(t, err, StageTag)
}

func TestOpenWrongSecret(t *testing.T) {
	sealed, err := NewCodec("a").Seal(1, Payload{Data: "x"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewCodec("b").Open(1, sealed)
	assertStage(t, err, StageTag)
}

func TestOpenTamperedData(t *testing.T) {
	c := NewCodec("game-secret")
	sealed, err := c.Seal(7, Payload{Data: "score=10"})
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := base64.StdEncoding.DecodeString(sealed.Data)
	raw[len(raw)-1] ^= 0x01
	sealed.Data = base64.StdEncoding.EncodeToString(raw)

	_, err = c.Open(7, sealed)
	assertStage(t, err, StageTag)
}

func TestOpenMalformedTag(t *testing.T) {
	c := NewCodec("game-secret")
	sealed, _ := c.Seal(7, Payload{Data: "x"})
	sealed.Hash = "not-hex"
	_, err := c.Open(7, sealed)
	assertStage(t, err, StageTag)
}

// A valid tag over a broken body still fails, at the stage that broke.
func TestOpenStagesAfterTag(t *testing.T) {
	c := NewCodec("game-secret")
	keys, err := c.keys.Derive(SessionLabel(9))
	if err != nil {
		t.Fatal(err)
	}
	tag := func(data string) string {
		return hex.EncodeToString(HMACSHA256{}.Sum(keys.MAC, []byte(data)))
	}

	_, err = c.Open(9, Sealed{Data: "%%%", Hash: tag("%%%")})
	assertStage(t, err, StageEncoding)

	junk := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 64))
	_, err = c.Open(9, Sealed{Data: junk, Hash: tag(junk)})
	assertStage(t, err, StageCipher)

	ct, err := XChaCha20Poly1305{}.Encrypt(keys.Cipher, []byte("not json"))
	if err != nil {
		t.Fatal(err)
	}
	data := base64.StdEncoding.EncodeToString(ct)
	_, err = c.Open(9, Sealed{Data: data, Hash: tag(data)})
	assertStage(t, err, StagePayload)
}

func TestEnvelopeWireShape(t *testing.T) {
	c := NewCodec("game-secret")
	env, err := c.SealEnvelope(5, Envelope{
		EventID:       "evt",
		SessionID:     "sess",
		SaveSessionID: "save",
		GameType:      "runner",
	}, Payload{Data: "x", Events: []string{"a"}})
	if err != nil {
		t.Fatal(err)
	}

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"id", "sessionId", "saveSessionId", "data", "hash", "gameType"} {
		if _, ok := fields[k]; !ok {
			t.Errorf("missing wire field %q in %s", k, raw)
		}
	}
	if _, ok := fields["reconnectTimeHint"]; ok {
		t.Errorf("zero reconnectTimeHint should be omitted")
	}

	p, err := c.OpenEnvelope(5, env)
	if err != nil {
		t.Fatal(err)
	}
	if p.Events[0] != "a" {
		t.Errorf("events = %v", p.Events)
	}
	if err := c.VerifyTag(5, Sealed{Data: env.Data, Hash: env.Hash}); err != nil {
		t.Errorf("VerifyTag: %v", err)
	}
}

func TestScoreSealing(t *testing.T) {
	c := NewCodec("game-secret")
	type score struct {
		Score  int64    `json:"Score"`
		Events []string `json:"GameEvents"`
	}
	sealed, err := c.SealScore("session-a", score{Score: 990, Events: []string{"e1"}})
	if err != nil {
		t.Fatal(err)
	}

	var out score
	if err := c.OpenScore("session-a", sealed, &out); err != nil {
		t.Fatalf("OpenScore: %v", err)
	}
	if out.Score != 990 || len(out.Events) != 1 {
		t.Errorf("got %+v", out)
	}
	if err := c.OpenScore("session-b", sealed, &out); !errors.Is(err, ErrDecode) {
		t.Errorf("score sealed for another session must not open, got %v", err)
	}
}

func TestHKDFDeterministicAndDistinct(t *testing.T) {
	d := HKDF{Secret: []byte("s")}
	a1, _ := d.Derive(SessionLabel(1))
	a2, _ := d.Derive(SessionLabel(1))
	b, _ := d.Derive(SessionLabel(2))
	if !bytes.Equal(a1.Cipher, a2.Cipher) || !bytes.Equal(a1.MAC, a2.MAC) {
		t.Error("derivation is not deterministic")
	}
	if bytes.Equal(a1.Cipher, b.Cipher) {
		t.Error("different users share a cipher key")
	}
	if bytes.Equal(a1.Cipher, a1.MAC) {
		t.Error("cipher and MAC keys must differ")
	}
	if _, err := (HKDF{}).Derive("x"); err == nil {
		t.Error("empty secret should fail")
	}
}

type countingDeriver struct {
	calls int
	inner KeyDeriver
}

func (d *countingDeriver) Derive(label string) (Keys, error) {
	d.calls++
	return d.inner.Derive(label)
}

func TestCustomKeyDeriver(t *testing.T) {
	d := &countingDeriver{inner: HKDF{Secret: []byte("legacy")}}
	c := NewCodec("ignored", WithKeyDeriver(d))
	sealed, err := c.Seal(3, Payload{Data: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Open(3, sealed); err != nil {
		t.Fatal(err)
	}
	if d.calls != 2 {
		t.Errorf("expected a derivation per call, got %d", d.calls)
	}
}

func assertStage(t *testing.T, err error, stage Stage) {
	t.Helper()
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %T", err)
	}
	if de.Stage != stage {
		t.Errorf("stage = %s, want %s (%v)", de.Stage, stage, err)
	}
}
