package domain

// MarketRecord is one lending bank as surfaced to callers.
// Built fresh on every market load and never mutated afterwards.
type MarketRecord struct {
	Address   string   `json:"address"`   // bank address
	Mint      string   `json:"mint"`      // asset mint address
	Symbol    string   `json:"symbol"`    // display label, never empty
	LendAPR   *float64 `json:"lendApr"`   // lending APR in percent (nullable = unknown)
	BorrowAPR *float64 `json:"borrowApr"` // borrowing APR in percent (nullable = unknown)
}

// HasPositiveAPR reports whether either side of the market pays or charges a positive rate.
func (r MarketRecord) HasPositiveAPR() bool {
	return (r.LendAPR != nil && *r.LendAPR > 0) || (r.BorrowAPR != nil && *r.BorrowAPR > 0)
}

// MarketRateSample is a point-in-time copy of a bank's rates.
// Corresponds to market_rates table in ClickHouse.
type MarketRateSample struct {
	Bank      string   // bank address
	Mint      string   // asset mint address
	Symbol    string   // display label at sampling time
	LendAPR   *float64 // lending APR in percent (nullable)
	BorrowAPR *float64 // borrowing APR in percent (nullable)
	SampledAt int64    // Unix timestamp in milliseconds
}
