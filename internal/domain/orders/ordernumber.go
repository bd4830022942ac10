package orders

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/speps/go-hashids/v2"
)

const orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// OrderNumberGenerator produces short customer-facing order numbers such as
// SS-7KQ2M9XD4P from the current time and a process-local counter.
type OrderNumberGenerator struct {
	h   *hashids.HashID
	seq atomic.Int64
	now func() time.Time
}

func NewOrderNumberGenerator(salt string) (*OrderNumberGenerator, error) {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = 8
	hd.Alphabet = orderNumberAlphabet
	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, fmt.Errorf("order number encoder: %w", err)
	}
	return &OrderNumberGenerator{h: h, now: time.Now}, nil
}

func (g *OrderNumberGenerator) Generate() (string, error) {
	id, err := g.h.EncodeInt64([]int64{g.now().UnixMilli(), g.seq.Add(1)})
	if err != nil {
		return "", fmt.Errorf("encode order number: %w", err)
	}
	return "SS-" + id, nil
}
