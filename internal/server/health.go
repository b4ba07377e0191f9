package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"solana-lend-widget/internal/endpoint"
)

const rpcCheckTimeout = 5 * time.Second

type HealthHandler struct {
	resolution *endpoint.Resolution
}

func NewHealthHandler(resolution *endpoint.Resolution) *HealthHandler {
	return &HealthHandler{resolution: resolution}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "solana-lend-widget",
	})
}

// RPC reports the resolved endpoint and whether it answers right now.
func (h *HealthHandler) RPC(c *gin.Context) {
	if h.resolution == nil || h.resolution.Conn == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "rpc not resolved"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), rpcCheckTimeout)
	defer cancel()

	conn := h.resolution.Conn
	body := gin.H{
		"ok":       true,
		"endpoint": h.resolution.Endpoint,
		"verified": h.resolution.Verified,
		"attempts": len(h.resolution.Attempts),
		"status":   "ok",
	}

	slot, err := conn.RPC().GetSlot(ctx, conn.Commitment())
	if err != nil {
		body["status"] = "error"
		body["error"] = err.Error()
	} else {
		body["slot"] = slot
	}

	c.JSON(http.StatusOK, body)
}
