package market

import (
	"fmt"
	"strings"

	"solana-lend-widget/internal/domain"
)

// DefaultLimit caps the rows returned by Filter.Apply.
const DefaultLimit = 60

// Filter narrows a market list for display.
type Filter struct {
	OnlyWithAPR bool
	Query       string
	Limit       int // <= 0 means DefaultLimit
}

// Apply returns the matching records in input order, at most Limit of them.
func (f Filter) Apply(records []domain.MarketRecord) []domain.MarketRecord {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	out := make([]domain.MarketRecord, 0, min(len(records), limit))
	for _, r := range records {
		if len(out) == limit {
			break
		}
		if f.OnlyWithAPR && !r.HasPositiveAPR() {
			continue
		}
		if q != "" && !matches(r, q) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matches(r domain.MarketRecord, q string) bool {
	return strings.Contains(strings.ToLower(r.Symbol), q) ||
		strings.Contains(strings.ToLower(r.Mint), q) ||
		strings.Contains(strings.ToLower(r.Address), q)
}

// FormatPercent renders an APR as "12.34%", or "—" when unknown.
func FormatPercent(p *float64) string {
	if p == nil {
		return "—"
	}
	return fmt.Sprintf("%.2f%%", *p)
}
