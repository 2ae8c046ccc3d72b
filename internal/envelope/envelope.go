// Package envelope defines every message shape that crosses a process
// boundary: the bus envelope, the client-facing encrypted wrappers, and the
// transaction request/response carried inside them.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"paymenthub/internal/cipher"
)

var ErrMalformed = errors.New("malformed envelope")

// Envelope is the unit exchanged over the bus. Once published it is
// immutable; the router forwards the encoded bytes untouched.
type Envelope struct {
	CorrelationID string `json:"correlationId"`
	Payload       string `json:"payload"`
	Source        string `json:"source"`
	Destination   string `json:"destination"`
	Timestamp     int64  `json:"timestamp"` // epoch millis
}

func New(correlationID, payload, source, destination string) *Envelope {
	return &Envelope{
		CorrelationID: correlationID,
		Payload:       payload,
		Source:        source,
		Destination:   destination,
		Timestamp:     time.Now().UnixMilli(),
	}
}

func Encode(e *Envelope) ([]byte, error) {
	if e == nil || e.CorrelationID == "" {
		return nil, fmt.Errorf("%w: missing correlation id", ErrMalformed)
	}
	return json.Marshal(e)
}

func Decode(b []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if e.CorrelationID == "" {
		return nil, fmt.Errorf("%w: missing correlation id", ErrMalformed)
	}
	return &e, nil
}

// PeekDestination reads the destination tag and nothing else.
func PeekDestination(b []byte) (string, error) {
	var head struct {
		Destination string `json:"destination"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return head.Destination, nil
}

// Seal marshals v, encrypts it for the next hop and wraps it in an encoded
// envelope.
func Seal(ch *cipher.Channel, correlationID, source, destination string, v any) ([]byte, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return SealRaw(ch, correlationID, source, destination, plain)
}

// SealRaw is Seal for an already serialized payload.
func SealRaw(ch *cipher.Channel, correlationID, source, destination string, plain []byte) ([]byte, error) {
	payload, err := ch.Encrypt(plain)
	if err != nil {
		return nil, err
	}
	return Encode(New(correlationID, payload, source, destination))
}

// Open decrypts the payload with the hop channel and unmarshals it into v.
func (e *Envelope) Open(ch *cipher.Channel, v any) error {
	plain, err := ch.Decrypt(e.Payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}
	return nil
}
