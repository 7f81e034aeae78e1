package envelope

import (
	"crypto/hkdf"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/crypto/chacha20poly1305"
)

// Keys is one derivation's output. Codec clears both slices after use.
type Keys struct {
	Cipher []byte
	MAC    []byte
}

func (k *Keys) clear() {
	clear(k.Cipher)
	clear(k.MAC)
}

// KeyDeriver turns a context label into per-use keys. The same label must
// always produce the same keys, and different labels different keys.
type KeyDeriver interface {
	Derive(label string) (Keys, error)
}

// HKDF derives keys with HKDF-SHA256 from the shared game secret. The label
// is the HKDF info; cipher and MAC keys are the two halves of one 64-byte
// expansion.
type HKDF struct {
	Secret []byte
}

func (h HKDF) Derive(label string) (Keys, error) {
	if len(h.Secret) == 0 {
		return Keys{}, errors.New("envelope: empty game secret")
	}
	okm, err := hkdf.Key(sha256.New, h.Secret, nil, label, 2*chacha20poly1305.KeySize)
	if err != nil {
		return Keys{}, fmt.Errorf("envelope: derive keys: %w", err)
	}
	return Keys{Cipher: okm[:chacha20poly1305.KeySize], MAC: okm[chacha20poly1305.KeySize:]}, nil
}

// SessionLabel is the derivation label of a player's session envelope.
func SessionLabel(platformUserID int64) string {
	return "funtico-session:v1:" + strconv.FormatInt(platformUserID, 10)
}

// ScoreLabel is the derivation label of a score submission.
func ScoreLabel(sessionID string) string {
	return "funtico-score:v1:" + sessionID
}

// Cipher is the symmetric primitive.
type Cipher interface {
	Encrypt(key, plaintext []byte) ([]byte, error)
	Decrypt(key, ciphertext []byte) ([]byte, error)
}

// XChaCha20Poly1305 prefixes each ciphertext with a random 24-byte nonce.
type XChaCha20Poly1305 struct{}

func (XChaCha20Poly1305) Encrypt(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (XChaCha20Poly1305) Decrypt(key, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize()+aead.Overhead() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	return aead.Open(nil, nonce, sealed, nil)
}

// Hasher is the keyed hash primitive used for integrity tags.
type Hasher interface {
	Sum(key, message []byte) []byte
}

// HMACSHA256 is the default Hasher.
type HMACSHA256 struct{}

func (HMACSHA256) Sum(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}
