package refgen

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextUsesBusinessTimeZone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	fixed := time.Date(2024, 3, 1, 20, 0, 5, 0, time.UTC)
	gen := New(loc).
		WithClock(func() time.Time { return fixed }).
		WithRand(func(int) int { return 0 })

	// 20:00:05 UTC is 01:30:05 the next day in Kolkata.
	assert.Equal(t, "ORD20240302013005AAAA", gen.OrderNo())
	assert.Equal(t, "KT20240302013005AAAA", gen.TicketNo())
	assert.Equal(t, "GRP20240302013005AAAA", gen.GroupTxnID())
	assert.Equal(t, "SPL20240302013005AAAA", gen.SplitTxnID())
}

func TestNextFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^ORD\d{14}[A-Z]{4}$`)
	gen := New(nil)
	for i := 0; i < 50; i++ {
		assert.Regexp(t, pattern, gen.OrderNo())
	}
}

func TestWithRandDoesNotMutateOriginal(t *testing.T) {
	base := New(time.UTC).WithClock(func() time.Time { return time.Unix(0, 0) })
	zs := base.WithRand(func(n int) int { return n - 1 })
	assert.Equal(t, "ORD19700101000000ZZZZ", zs.OrderNo())
	assert.Regexp(t, `^ORD19700101000000[A-Z]{4}$`, base.OrderNo())
}
