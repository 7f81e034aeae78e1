// Package envelope seals and opens the encrypted session blob a player's
// in-progress room state is persisted as.
//
// Keys are derived per call from the shared game secret and a label bound to
// the player (or, for score submissions, to the session); the derived keys are
// wiped after each call and never leave the package. Open checks the integrity
// tag before it decrypts anything, and every failure is a *DecodeError
// matching ErrDecode.
package envelope

import (
	"crypto/hmac"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Envelope is the persisted wire shape of a session. New fields must be
// additive.
type Envelope struct {
	EventID           string `json:"id"`
	SessionID         string `json:"sessionId"`
	SaveSessionID     string `json:"saveSessionId"`
	Data              string `json:"data"`
	Hash              string `json:"hash"`
	GameType          string `json:"gameType"`
	ReconnectTimeHint int64  `json:"reconnectTimeHint,omitempty"`
}

// Payload is the plaintext inside an envelope: the game's own state string
// plus the ordered event log.
type Payload struct {
	Data   string   `json:"Data"`
	Events []string `json:"EventsList"`
}

func (p Payload) validate() error {
	if !utf8.ValidString(p.Data) {
		return fmt.Errorf("%w: data is not valid UTF-8", ErrInvalidPayload)
	}
	for i, ev := range p.Events {
		if !utf8.ValidString(ev) {
			return fmt.Errorf("%w: event %d is not valid UTF-8", ErrInvalidPayload, i)
		}
	}
	return nil
}

// Sealed is the output of Seal: base64 ciphertext and its hex tag.
type Sealed struct {
	Data string
	Hash string
}

// Codec seals and opens payloads.
type Codec struct {
	keys   KeyDeriver
	cipher Cipher
	hasher Hasher
}

// Option customises a Codec.
type Option func(*Codec)

// WithCipher replaces the default XChaCha20-Poly1305 cipher.
func WithCipher(c Cipher) Option { return func(k *Codec) { k.cipher = c } }

// WithHasher replaces the default HMAC-SHA256 tag.
func WithHasher(h Hasher) Option { return func(k *Codec) { k.hasher = h } }

// WithKeyDeriver replaces HKDF derivation, e.g. with a deriver compatible with
// an older backend.
func WithKeyDeriver(d KeyDeriver) Option { return func(k *Codec) { k.keys = d } }

// NewCodec creates a codec over the shared game secret.
func NewCodec(secret string, opts ...Option) *Codec {
	c := &Codec{
		keys:   HKDF{Secret: []byte(secret)},
		cipher: XChaCha20Poly1305{},
		hasher: HMACSHA256{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Seal encrypts a player's payload. A nil event log is stored as empty. The
// payload is carried as JSON text, so Data and every event must be valid
// UTF-8; anything else fails with ErrInvalidPayload.
func (c *Codec) Seal(platformUserID int64, p Payload) (Sealed, error) {
	if err := p.validate(); err != nil {
		return Sealed{}, err
	}
	if p.Events == nil {
		p.Events = []string{}
	}
	return c.seal(SessionLabel(platformUserID), p)
}

// Open verifies and decrypts a player's payload. The returned event log is
// never nil.
func (c *Codec) Open(platformUserID int64, s Sealed) (Payload, error) {
	var p Payload
	if err := c.open(SessionLabel(platformUserID), s, &p); err != nil {
		return Payload{}, err
	}
	if p.Events == nil {
		p.Events = []string{}
	}
	return p, nil
}

// SealEnvelope seals p into env's Data and Hash fields.
func (c *Codec) SealEnvelope(platformUserID int64, env Envelope, p Payload) (Envelope, error) {
	s, err := c.Seal(platformUserID, p)
	if err != nil {
		return Envelope{}, err
	}
	env.Data, env.Hash = s.Data, s.Hash
	return env, nil
}

// OpenEnvelope opens env's Data and Hash fields.
func (c *Codec) OpenEnvelope(platformUserID int64, env Envelope) (Payload, error) {
	return c.Open(platformUserID, Sealed{Data: env.Data, Hash: env.Hash})
}

// SealScore seals a score submission under keys bound to the room session.
func (c *Codec) SealScore(sessionID string, v any) (Sealed, error) {
	return c.seal(ScoreLabel(sessionID), v)
}

// OpenScore is the backend-side counterpart of SealScore.
func (c *Codec) OpenScore(sessionID string, s Sealed, v any) error {
	return c.open(ScoreLabel(sessionID), s, v)
}

// VerifyTag checks only the integrity tag of a player's payload.
func (c *Codec) VerifyTag(platformUserID int64, s Sealed) error {
	keys, err := c.keys.Derive(SessionLabel(platformUserID))
	if err != nil {
		return decodeErr(StageTag, err)
	}
	defer keys.clear()
	return c.verify(keys, s)
}

func (c *Codec) seal(label string, v any) (Sealed, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return Sealed{}, fmt.Errorf("envelope: encode payload: %w", err)
	}
	keys, err := c.keys.Derive(label)
	if err != nil {
		return Sealed{}, err
	}
	defer keys.clear()

	ct, err := c.cipher.Encrypt(keys.Cipher, plain)
	if err != nil {
		return Sealed{}, fmt.Errorf("envelope: encrypt: %w", err)
	}
	data := base64.StdEncoding.EncodeToString(ct)
	return Sealed{
		Data: data,
		Hash: hex.EncodeToString(c.hasher.Sum(keys.MAC, []byte(data))),
	}, nil
}

func (c *Codec) open(label string, s Sealed, v any) error {
	keys, err := c.keys.Derive(label)
	if err != nil {
		return decodeErr(StageTag, err)
	}
	defer keys.clear()

	if err := c.verify(keys, s); err != nil {
		return err
	}
	ct, err := base64.StdEncoding.DecodeString(s.Data)
	if err != nil {
		return decodeErr(StageEncoding, err)
	}
	plain, err := c.cipher.Decrypt(keys.Cipher, ct)
	if err != nil {
		return decodeErr(StageCipher, err)
	}
	if err := json.Unmarshal(plain, v); err != nil {
		return decodeErr(StagePayload, err)
	}
	return nil
}

func (c *Codec) verify(keys Keys, s Sealed) error {
	got, err := hex.DecodeString(s.Hash)
	if err != nil {
		return decodeErr(StageTag, fmt.Errorf("malformed tag: %w", err))
	}
	want := c.hasher.Sum(keys.MAC, []byte(s.Data))
	if !hmac.Equal(got, want) {
		return decodeErr(StageTag, errors.New("tag mismatch"))
	}
	return nil
}
