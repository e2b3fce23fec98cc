package pagination

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any list query can request.
	MaxLimit = 100
)

// Params holds offset pagination inputs from controllers or services.
type Params struct {
	Offset int
	Limit  int
}

// Normalize returns a copy with the default/maximum limit and a non-negative offset.
func (p Params) Normalize() Params {
	out := Params{Offset: p.Offset, Limit: NormalizeLimit(p.Limit)}
	if out.Offset < 0 {
		out.Offset = 0
	}
	return out
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Parse reads offset/limit query values; blanks fall back to defaults.
func Parse(offset, limit string) (Params, error) {
	var p Params
	if v := strings.TrimSpace(offset); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Params{}, fmt.Errorf("offset must be a non-negative integer")
		}
		p.Offset = n
	}
	if v := strings.TrimSpace(limit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Params{}, fmt.Errorf("limit must be a non-negative integer")
		}
		p.Limit = n
	}
	return p.Normalize(), nil
}
