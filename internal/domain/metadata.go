package domain

// AssetMetadata is the human-readable description of a mint taken from the strict token list.
type AssetMetadata struct {
	Symbol  *string `json:"symbol,omitempty"`  // ticker (nullable)
	Name    *string `json:"name,omitempty"`    // display name (nullable)
	LogoURI *string `json:"logoURI,omitempty"` // icon reference (nullable)
}

// MetadataSnapshot is one full copy of the strict token list keyed by mint.
// Corresponds to asset_metadata_snapshots + asset_metadata tables in PostgreSQL.
type MetadataSnapshot struct {
	FetchedAt int64                    // when the list was fetched (ms)
	Tokens    map[string]AssetMetadata // keyed by mint
}

// Size returns the number of mints in the snapshot.
func (s *MetadataSnapshot) Size() int {
	if s == nil {
		return 0
	}
	return len(s.Tokens)
}
