// Package refcode issues retrieval reference numbers and approval codes for
// responses produced inside the platform (the card-network stub and the
// simulated switch).
package refcode

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/speps/go-hashids/v2"
)

const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

type Generator struct {
	h   *hashids.HashID
	seq atomic.Int64
	now func() time.Time
}

func New(salt string) (*Generator, error) {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = 6
	hd.Alphabet = alphabet
	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, fmt.Errorf("refcode: %w", err)
	}
	g := &Generator{h: h, now: time.Now}
	g.seq.Store(time.Now().UnixNano() % 1_000_000_000)
	return g, nil
}

// Codes is one issued pair.
type Codes struct {
	RRN          string // 12 digits: yymmdd + 6-digit sequence
	ApprovalCode string
}

func (g *Generator) Next() (Codes, error) {
	n := g.seq.Add(1)
	approval, err := g.h.EncodeInt64([]int64{n})
	if err != nil {
		return Codes{}, fmt.Errorf("refcode: %w", err)
	}
	return Codes{
		RRN:          g.now().Format("060102") + fmt.Sprintf("%06d", n%1_000_000),
		ApprovalCode: approval,
	}, nil
}
