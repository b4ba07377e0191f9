package market

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"solana-lend-widget/internal/solana"
)

var hundred = decimal.NewFromInt(100)

// DisplaySymbol returns the trimmed SDK symbol, or UNKNOWN (<mint short form>)
// when it is empty or a dash placeholder.
func DisplaySymbol(symbol, mint string) string {
	s := strings.TrimSpace(symbol)
	if s != "" && s != "—" && s != "-" {
		return s
	}
	return "UNKNOWN (" + solana.ShortAddress(mint, 4, 4) + ")"
}

// RatePercent converts a raw decimal rate into a percentage.
// Empty, unparseable or non-finite input yields nil, never zero.
func RatePercent(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	pct, _ := d.Mul(hundred).Float64()
	if math.IsInf(pct, 0) || math.IsNaN(pct) {
		return nil
	}
	return &pct
}
