package cipher

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func rsaKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

func mustKey(t *testing.T) []byte {
	t.Helper()
	k, err := NewKey()
	require.NoError(t, err)
	return k
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := mustKey(t)
	cases := map[string][]byte{
		"empty": {},
		"short": []byte(`{"terminalId":"TERM001"}`),
		"10KB":  bytes.Repeat([]byte("x"), 10*1024),
		"utf8":  []byte("नमस्ते ₹100.00"),
	}
	for name, plaintext := range cases {
		t.Run(name, func(t *testing.T) {
			enc, err := Encrypt(plaintext, key)
			require.NoError(t, err)

			raw, err := base64.StdEncoding.DecodeString(enc)
			require.NoError(t, err)
			assert.Len(t, raw, NonceSize+len(plaintext)+TagSize)

			dec, err := Decrypt(enc, key)
			require.NoError(t, err)
			assert.Equal(t, string(plaintext), string(dec))
		})
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	key := mustKey(t)
	a, err := Encrypt([]byte("same"), key)
	require.NoError(t, err)
	b, err := Encrypt([]byte("same"), key)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptTamperedFails(t *testing.T) {
	key := mustKey(t)
	enc, err := Encrypt([]byte("amount=100.00"), key)
	require.NoError(t, err)

	raw, _ := base64.StdEncoding.DecodeString(enc)
	for i := range raw {
		tampered := append([]byte(nil), raw...)
		tampered[i] ^= 0x01
		_, err := Decrypt(base64.StdEncoding.EncodeToString(tampered), key)
		require.Error(t, err, "byte %d", i)
		assert.True(t, errors.Is(err, ErrCrypto))
	}
}

func TestDecryptFailures(t *testing.T) {
	key := mustKey(t)
	enc, err := Encrypt([]byte("hello"), key)
	require.NoError(t, err)

	_, err = Decrypt(enc, mustKey(t))
	assert.ErrorIs(t, err, ErrCrypto, "wrong key")

	_, err = Decrypt(enc, key[:16])
	assert.ErrorIs(t, err, ErrCrypto, "short key")

	_, err = Decrypt("not base64!!", key)
	assert.ErrorIs(t, err, ErrCrypto, "bad encoding")

	_, err = Decrypt(base64.StdEncoding.EncodeToString(make([]byte, NonceSize+TagSize-1)), key)
	assert.ErrorIs(t, err, ErrCrypto, "too short")

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "decrypt", cerr.Op)
}

func TestParseKey(t *testing.T) {
	key := mustKey(t)
	got, err := ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = ParseKey(base64.StdEncoding.EncodeToString(key[:24]))
	assert.ErrorIs(t, err, ErrCrypto)
}

func TestChannel(t *testing.T) {
	key := mustKey(t)
	ch, err := NewChannelFromBase64(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)

	enc, err := ch.Encrypt([]byte("payload"))
	require.NoError(t, err)
	dec, err := Decrypt(enc, key)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(dec))

	_, err = NewChannel(key[:10])
	assert.ErrorIs(t, err, ErrCrypto)
}

func TestWrapUnwrap(t *testing.T) {
	priv := rsaKey(t)

	secret := mustKey(t)
	w, err := Wrap(secret, &priv.PublicKey)
	require.NoError(t, err)
	got, err := Unwrap(w, priv)
	require.NoError(t, err)
	assert.Equal(t, secret, got)

	limit := MaxWrapSize(&priv.PublicKey)
	assert.Equal(t, 214, limit)

	_, err = Wrap(make([]byte, limit), &priv.PublicKey)
	assert.NoError(t, err)

	_, err = Wrap(make([]byte, limit+1), &priv.PublicKey)
	assert.ErrorIs(t, err, ErrCrypto)
}

func TestSealOpen(t *testing.T) {
	priv := rsaKey(t)
	s, err := NewSealer(&priv.PublicKey, "TRANSACTION_API")
	require.NoError(t, err)
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	payload := []byte(strings.Repeat(`{"amount":100.00}`, 500))
	req, err := s.Seal(payload)
	require.NoError(t, err)

	opened, err := Open(req, priv)
	require.NoError(t, err)
	assert.Equal(t, payload, opened.Payload)
	assert.Equal(t, "TRANSACTION_API", opened.APIID)
	assert.Equal(t, "20260304050607", opened.Timestamp)
}

func TestSealDrawsFreshKeyMaterial(t *testing.T) {
	priv := rsaKey(t)
	s, err := NewSealer(&priv.PublicKey, "TRANSACTION_API")
	require.NoError(t, err)

	a, err := s.Seal([]byte("same"))
	require.NoError(t, err)
	b, err := s.Seal([]byte("same"))
	require.NoError(t, err)

	ka, _ := Unwrap(a.WrappedKey, priv)
	kb, _ := Unwrap(b.WrappedKey, priv)
	assert.NotEqual(t, ka, kb)

	iva, _ := Unwrap(a.WrappedIV, priv)
	ivb, _ := Unwrap(b.WrappedIV, priv)
	assert.NotEqual(t, iva, ivb)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestOpenTamperedCiphertext(t *testing.T) {
	priv := rsaKey(t)
	s, err := NewSealer(&priv.PublicKey, "API")
	require.NoError(t, err)
	req, err := s.Seal([]byte("payload"))
	require.NoError(t, err)

	ct, _ := base64.StdEncoding.DecodeString(req.Ciphertext)
	ct[0] ^= 0xff
	req.Ciphertext = base64.StdEncoding.EncodeToString(ct)

	_, err = Open(req, priv)
	assert.ErrorIs(t, err, ErrCrypto)
}

func TestKeyMarshalling(t *testing.T) {
	priv := rsaKey(t)

	pubStr, err := MarshalPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pub, err := ParsePublicKey(pubStr)
	require.NoError(t, err)
	assert.True(t, pub.Equal(&priv.PublicKey))

	privStr, err := MarshalPrivateKey(priv)
	require.NoError(t, err)
	back, err := ParsePrivateKey(privStr)
	require.NoError(t, err)
	assert.True(t, back.Equal(priv))

	pem := "-----BEGIN PUBLIC KEY-----\n" + pubStr + "\n-----END PUBLIC KEY-----\n"
	pub, err = ParsePublicKey(pem)
	require.NoError(t, err)
	assert.True(t, pub.Equal(&priv.PublicKey))

	_, err = ParsePublicKey("")
	assert.ErrorIs(t, err, ErrCrypto)
}
