package cipher

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the switch's yyyyMMddHHmmss timestamp.
const TimestampLayout = "20060102150405"

// SealedRequest is the body posted to the external switch. Every wrapped
// field is independently RSA-OAEP encrypted under the switch public key.
type SealedRequest struct {
	Ciphertext       string `json:"ciphertext"`
	WrappedKey       string `json:"wrappedKey"`
	WrappedIV        string `json:"wrappedIv"`
	WrappedAPIID     string `json:"wrappedApiId"`
	WrappedTimestamp string `json:"wrappedTimestamp"`
}

// OpenedRequest is what the holder of the switch private key recovers.
type OpenedRequest struct {
	Payload   []byte
	APIID     string
	Timestamp string
}

// MaxWrapSize is the largest payload OAEP(SHA-1) can carry under pub.
func MaxWrapSize(pub *rsa.PublicKey) int {
	return pub.Size() - 2*sha1.Size - 2
}

// Wrap encrypts a small secret (key, IV, short string) under pub.
func Wrap(data []byte, pub *rsa.PublicKey) (string, error) {
	if pub == nil {
		return "", fail("wrap", fmt.Errorf("nil public key"))
	}
	if limit := MaxWrapSize(pub); len(data) > limit {
		return "", fail("wrap", fmt.Errorf("payload of %d bytes exceeds %d byte limit", len(data), limit))
	}
	out, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, data, nil)
	if err != nil {
		return "", fail("wrap", err)
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// Unwrap is the inverse of Wrap.
func Unwrap(wrapped string, priv *rsa.PrivateKey) ([]byte, error) {
	if priv == nil {
		return nil, fail("unwrap", fmt.Errorf("nil private key"))
	}
	raw, err := base64.StdEncoding.DecodeString(wrapped)
	if err != nil {
		return nil, fail("unwrap", err)
	}
	out, err := rsa.DecryptOAEP(sha1.New(), nil, priv, raw, nil)
	if err != nil {
		return nil, fail("unwrap", err)
	}
	return out, nil
}

// Sealer builds hybrid requests for one recipient. A new AES key and IV are
// drawn for every Seal call and dropped when it returns.
type Sealer struct {
	pub   *rsa.PublicKey
	apiID string
	now   func() time.Time
}

func NewSealer(pub *rsa.PublicKey, apiID string) (*Sealer, error) {
	if pub == nil {
		return nil, fail("sealer", fmt.Errorf("nil public key"))
	}
	if len(apiID) > MaxWrapSize(pub) {
		return nil, fail("sealer", fmt.Errorf("api id too long for key size"))
	}
	return &Sealer{pub: pub, apiID: apiID, now: time.Now}, nil
}

// Seal encrypts payload for the switch. The wrap order is fixed:
// key, IV, API identifier, timestamp.
func (s *Sealer) Seal(payload []byte) (*SealedRequest, error) {
	key, err := NewKey()
	if err != nil {
		return nil, err
	}
	iv, err := NewNonce()
	if err != nil {
		return nil, err
	}

	ct, err := SealWithNonce(payload, key, iv)
	if err != nil {
		return nil, err
	}

	req := &SealedRequest{Ciphertext: base64.StdEncoding.EncodeToString(ct)}
	if req.WrappedKey, err = Wrap(key, s.pub); err != nil {
		return nil, err
	}
	if req.WrappedIV, err = Wrap(iv, s.pub); err != nil {
		return nil, err
	}
	if req.WrappedAPIID, err = Wrap([]byte(s.apiID), s.pub); err != nil {
		return nil, err
	}
	ts := s.now().Format(TimestampLayout)
	if req.WrappedTimestamp, err = Wrap([]byte(ts), s.pub); err != nil {
		return nil, err
	}
	return req, nil
}

// Open reverses Seal with the recipient private key.
func Open(req *SealedRequest, priv *rsa.PrivateKey) (*OpenedRequest, error) {
	if req == nil {
		return nil, fail("open request", fmt.Errorf("nil request"))
	}
	key, err := Unwrap(req.WrappedKey, priv)
	if err != nil {
		return nil, err
	}
	iv, err := Unwrap(req.WrappedIV, priv)
	if err != nil {
		return nil, err
	}
	apiID, err := Unwrap(req.WrappedAPIID, priv)
	if err != nil {
		return nil, err
	}
	ts, err := Unwrap(req.WrappedTimestamp, priv)
	if err != nil {
		return nil, err
	}
	ct, err := base64.StdEncoding.DecodeString(req.Ciphertext)
	if err != nil {
		return nil, fail("open request", err)
	}
	payload, err := OpenWithNonce(ct, key, iv)
	if err != nil {
		return nil, err
	}
	return &OpenedRequest{Payload: payload, APIID: string(apiID), Timestamp: string(ts)}, nil
}

// ParsePublicKey accepts PEM or bare base64 DER, PKIX or PKCS#1.
func ParsePublicKey(s string) (*rsa.PublicKey, error) {
	der, err := decodeKeyMaterial(s)
	if err != nil {
		return nil, fail("parse public key", err)
	}
	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fail("parse public key", fmt.Errorf("not an RSA key: %T", key))
		}
		return pub, nil
	}
	pub, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, fail("parse public key", err)
	}
	return pub, nil
}

// ParsePrivateKey accepts PEM or bare base64 DER, PKCS#8 or PKCS#1.
func ParsePrivateKey(s string) (*rsa.PrivateKey, error) {
	der, err := decodeKeyMaterial(s)
	if err != nil {
		return nil, fail("parse private key", err)
	}
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		priv, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fail("parse private key", fmt.Errorf("not an RSA key: %T", key))
		}
		return priv, nil
	}
	priv, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fail("parse private key", err)
	}
	return priv, nil
}

// MarshalPublicKey renders pub as base64 PKIX DER, the form the switch publishes.
func MarshalPublicKey(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fail("marshal public key", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// MarshalPrivateKey renders priv as base64 PKCS#8 DER.
func MarshalPrivateKey(priv *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", fail("marshal private key", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

func decodeKeyMaterial(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty key material")
	}
	if block, _ := pem.Decode([]byte(s)); block != nil {
		return block.Bytes, nil
	}
	return base64.StdEncoding.DecodeString(s)
}
