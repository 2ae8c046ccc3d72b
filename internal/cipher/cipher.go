// Package cipher holds the two encryption protocols used across the switch:
// the AES-256-GCM channel between terminals, gateway and adapters, and the
// RSA-OAEP/AES hybrid envelope sent to the external switch.
//
// Everything here is stateless and safe for concurrent use. The only shared
// resource is crypto/rand.
package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	KeySize   = 32 // AES-256
	NonceSize = 12 // 96-bit GCM nonce
	TagSize   = 16 // 128-bit GCM tag
)

// ErrCrypto is matched by every failure this package returns.
var ErrCrypto = errors.New("crypto error")

// Error describes which operation failed. errors.Is(err, ErrCrypto) holds
// for every *Error.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cipher: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrCrypto, e.Err}
}

func fail(op string, err error) error {
	return &Error{Op: op, Err: err}
}

// ParseKey decodes a base64 pre-shared key and checks it is 256 bits.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fail("parse key", err)
	}
	if len(key) != KeySize {
		return nil, fail("parse key", fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key)))
	}
	return key, nil
}

// NewKey returns a fresh random 256-bit key.
func NewKey() ([]byte, error) {
	return randomBytes(KeySize)
}

// NewNonce returns a fresh random 96-bit nonce.
func NewNonce() ([]byte, error) {
	return randomBytes(NonceSize)
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fail("random", err)
	}
	return b, nil
}

func newGCM(key []byte) (stdcipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return stdcipher.NewGCMWithTagSize(block, TagSize)
}

// Encrypt seals plaintext under key with a random nonce and returns
// base64(nonce || ciphertext || tag).
func Encrypt(plaintext, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", fail("encrypt", err)
	}
	nonce, err := NewNonce()
	if err != nil {
		return "", err
	}
	out := make([]byte, 0, NonceSize+len(plaintext)+TagSize)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt is the inverse of Encrypt.
func Decrypt(encoded string, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, fail("decrypt", err)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fail("decrypt", err)
	}
	if len(raw) < NonceSize+TagSize {
		return nil, fail("decrypt", fmt.Errorf("ciphertext too short: %d bytes", len(raw)))
	}
	plaintext, err := gcm.Open(nil, raw[:NonceSize], raw[NonceSize:], nil)
	if err != nil {
		return nil, fail("decrypt", err)
	}
	return plaintext, nil
}

// SealWithNonce encrypts under an explicit nonce and returns ciphertext||tag
// without the nonce. Used by the hybrid envelope, where the nonce travels
// separately in wrapped form. Callers must never reuse a key/nonce pair.
func SealWithNonce(plaintext, key, nonce []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, fail("seal", err)
	}
	if len(nonce) != NonceSize {
		return nil, fail("seal", fmt.Errorf("nonce must be %d bytes, got %d", NonceSize, len(nonce)))
	}
	return gcm.Seal(nil, nonce, plaintext, nil), nil
}

// OpenWithNonce is the inverse of SealWithNonce.
func OpenWithNonce(sealed, key, nonce []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, fail("open", err)
	}
	if len(nonce) != NonceSize {
		return nil, fail("open", fmt.Errorf("nonce must be %d bytes, got %d", NonceSize, len(nonce)))
	}
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fail("open", err)
	}
	return plaintext, nil
}

// Channel binds a pre-shared key so callers don't carry raw key bytes around.
type Channel struct {
	key []byte
}

func NewChannel(key []byte) (*Channel, error) {
	if len(key) != KeySize {
		return nil, fail("channel", fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key)))
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &Channel{key: k}, nil
}

// NewChannelFromBase64 parses a configured key and builds a Channel.
func NewChannelFromBase64(encoded string) (*Channel, error) {
	key, err := ParseKey(encoded)
	if err != nil {
		return nil, err
	}
	return &Channel{key: key}, nil
}

func (c *Channel) Encrypt(plaintext []byte) (string, error) {
	return Encrypt(plaintext, c.key)
}

func (c *Channel) Decrypt(encoded string) ([]byte, error) {
	return Decrypt(encoded, c.key)
}
