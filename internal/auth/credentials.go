package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Credentials checks client secrets against bcrypt hashes. With no hashes
// configured any non-empty id and secret pass, which is how development
// setups run.
type Credentials struct {
	hashes map[string]string
}

func NewCredentials(hashes map[string]string) *Credentials {
	return &Credentials{hashes: hashes}
}

func (c *Credentials) Open() bool { return len(c.hashes) == 0 }

func (c *Credentials) Verify(clientID, secret string) error {
	if clientID == "" || secret == "" {
		return fmt.Errorf("%w: client id and secret are required", ErrUnauthorized)
	}
	if c.Open() {
		return nil
	}
	hash, ok := c.hashes[clientID]
	if !ok {
		return fmt.Errorf("%w: unknown client", ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return fmt.Errorf("%w: bad secret", ErrUnauthorized)
	}
	return nil
}

// HashSecret is used by paymentctl to produce CLIENT_CREDENTIALS entries.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
