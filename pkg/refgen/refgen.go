package refgen

import (
	"math/rand/v2"
	"strings"
	"time"
)

const (
	PrefixOrder         = "ORD"
	PrefixKitchenTicket = "KT"
	PrefixGroupPayment  = "GRP"
	PrefixSplitPayment  = "SPL"

	layout        = "20060102150405"
	suffixLetters = 4
	alphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Generator produces human readable references of the form
// <prefix><YYYYMMDDHHmmss><4 upper-case letters> in a fixed business time zone.
// Uniqueness is enforced by the database; callers retry on collisions.
type Generator struct {
	loc  *time.Location
	now  func() time.Time
	intN func(n int) int
}

// New returns a Generator rendering timestamps in loc (UTC when nil).
func New(loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{loc: loc, now: time.Now, intN: rand.IntN}
}

// WithClock overrides the time source.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	clone := *g
	clone.now = now
	return &clone
}

// WithRand overrides the letter source; intN must return values in [0, n).
func (g *Generator) WithRand(intN func(n int) int) *Generator {
	clone := *g
	clone.intN = intN
	return &clone
}

func (g *Generator) Next(prefix string) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(layout) + suffixLetters)
	b.WriteString(prefix)
	b.WriteString(g.now().In(g.loc).Format(layout))
	for i := 0; i < suffixLetters; i++ {
		b.WriteByte(alphabet[g.intN(len(alphabet))])
	}
	return b.String()
}

func (g *Generator) OrderNo() string    { return g.Next(PrefixOrder) }
func (g *Generator) TicketNo() string   { return g.Next(PrefixKitchenTicket) }
func (g *Generator) GroupTxnID() string { return g.Next(PrefixGroupPayment) }
func (g *Generator) SplitTxnID() string { return g.Next(PrefixSplitPayment) }
