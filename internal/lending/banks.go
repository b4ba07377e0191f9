package lending

// BankCollection is the SDK's bank set. It arrives either keyed by bank
// address (a map with its enumeration order) or as a plain list.
type BankCollection struct {
	keys  []string
	byKey map[string]Bank
	list  []Bank
}

// KeyedBanks builds a collection from a map, enumerated in keys order.
// Keys missing from m are skipped.
func KeyedBanks(keys []string, m map[string]Bank) BankCollection {
	return BankCollection{keys: keys, byKey: m}
}

// ListBanks builds a collection from a list.
func ListBanks(banks ...Bank) BankCollection {
	return BankCollection{list: banks}
}

// Keyed reports whether the collection came from a keyed source.
func (c BankCollection) Keyed() bool {
	return c.byKey != nil
}

// All returns the banks in enumeration order.
func (c BankCollection) All() []Bank {
	if c.byKey == nil {
		return c.list
	}
	out := make([]Bank, 0, len(c.keys))
	for _, k := range c.keys {
		if b, ok := c.byKey[k]; ok && b != nil {
			out = append(out, b)
		}
	}
	return out
}
