package settle

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// IDGenerator produces trade ids. Ids must be unique across the system
// lifetime; a collision is a correctness bug, not something to tolerate.
type IDGenerator interface {
	Generate() string
}

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// TradeIDGenerator builds ids from a base36 nanosecond timestamp prefix and
// a random base36 suffix: "T-<timestamp>-<suffix>".
type TradeIDGenerator struct{}

// NewTradeIDGenerator creates the default generator.
func NewTradeIDGenerator() *TradeIDGenerator {
	return &TradeIDGenerator{}
}

// Generate returns a new trade id.
func (g *TradeIDGenerator) Generate() string {
	var suffix strings.Builder
	for i := 0; i < 6; i++ {
		suffix.WriteByte(idAlphabet[rand.IntN(len(idAlphabet))])
	}

	return "T-" + strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + suffix.String()
}
