package correlation

import (
	"strings"

	"github.com/google/uuid"
)

const idPrefix = "TXN-"

// NewID returns a random correlation ID. It carries no process state, so a
// restart can never replay an earlier sequence.
func NewID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return idPrefix + strings.ToUpper(raw[:12])
}

// DeriveID uses the caller's sequence number when one is supplied and falls
// back to a random ID otherwise.
func DeriveID(sequence string) string {
	if s := strings.TrimSpace(sequence); s != "" {
		return s
	}
	return NewID()
}
