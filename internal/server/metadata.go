package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"solana-lend-widget/internal/tokenlist"
)

type MetadataHandler struct {
	cache *tokenlist.Cache
}

func NewMetadataHandler(cache *tokenlist.Cache) *MetadataHandler {
	return &MetadataHandler{cache: cache}
}

// metadataItem is the public shape of one resolved id.
type metadataItem struct {
	Symbol *string `json:"symbol,omitempty"`
	Name   *string `json:"name,omitempty"`
	Icon   *string `json:"icon,omitempty"`
}

// Lookup serves GET /metadata?ids=a,b (alias mints). Without ids it only
// reports the cache size. Every failure is a 500 with {ok:false, error}.
func (h *MetadataHandler) Lookup(c *gin.Context) {
	raw := c.Query("ids")
	if raw == "" {
		raw = c.Query("mints")
	}
	ids := tokenlist.ParseIDs(raw)

	if len(ids) == 0 {
		status, err := h.cache.Status(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ok":        true,
			"cached":    true,
			"size":      status.Size,
			"fetchedAt": status.FetchedAt,
		})
		return
	}

	result, err := h.cache.Lookup(c.Request.Context(), ids, tokenlist.MaxBatch)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	items := make(map[string]*metadataItem, len(result.Items))
	for id, m := range result.Items {
		if m == nil {
			items[id] = nil
			continue
		}
		items[id] = &metadataItem{Symbol: m.Symbol, Name: m.Name, Icon: m.LogoURI}
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"source": result.Source,
		"count":  result.Count,
		"found":  result.Found,
		"items":  items,
	})
}
