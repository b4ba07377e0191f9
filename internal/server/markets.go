package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"solana-lend-widget/internal/domain"
	"solana-lend-widget/internal/endpoint"
	"solana-lend-widget/internal/market"
	"solana-lend-widget/internal/session"
	"solana-lend-widget/internal/solana"
)

const streamWriteTimeout = 10 * time.Second

type MarketHandler struct {
	loader     *market.Loader
	sessions   *session.Registry
	resolution *endpoint.Resolution
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewMarketHandler creates the handler. allowedOrigins restricts the stream
// websocket; see originChecker.
func NewMarketHandler(loader *market.Loader, sessions *session.Registry, resolution *endpoint.Resolution, allowedOrigins []string, logger *zap.Logger) *MarketHandler {
	return &MarketHandler{
		loader:     loader,
		sessions:   sessions,
		resolution: resolution,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

// originChecker accepts requests without an Origin header and origins in
// allowed. An empty list falls back to gorilla's same-origin check; "*"
// accepts every origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	if _, ok := set["*"]; ok {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(strings.TrimRight(origin, "/"))]
		return ok
	}
}

// marketRow is one market as returned to clients.
type marketRow struct {
	domain.MarketRecord
	LendLabel   string `json:"lendLabel"`
	BorrowLabel string `json:"borrowLabel"`
}

type marketsResponse struct {
	OK       bool            `json:"ok"`
	Status   string          `json:"status"`
	Empty    bool            `json:"empty"`
	Stale    bool            `json:"stale"`
	Progress market.Progress `json:"progress"`
	Skipped  int             `json:"skipped"`
	Records  int             `json:"records"`
	Count    int             `json:"count"`
	LoadedAt int64           `json:"loadedAt"`
	Markets  []marketRow     `json:"markets"`
}

// streamEvent is one websocket message of /v1/markets/stream.
type streamEvent struct {
	Type     string           `json:"type"` // progress | result | error
	Progress *market.Progress `json:"progress,omitempty"`
	Result   *marketsResponse `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// List refreshes the wallet's markets and returns the filtered rows.
func (h *MarketHandler) List(c *gin.Context) {
	wallet := strings.TrimSpace(c.Query("wallet"))
	filter := parseFilter(c)

	result, stale, err := h.refresh(c, wallet, nil)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildResponse(result, stale, filter))
}

// Stream refreshes over a websocket, sending a progress event per bank
// and a final result or error event.
func (h *MarketHandler) Stream(c *gin.Context) {
	wallet := strings.TrimSpace(c.Query("wallet"))
	filter := parseFilter(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	send := func(ev streamEvent) bool {
		conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)) //nolint:errcheck
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
			return false
		}
		return true
	}

	result, stale, err := h.refresh(c, wallet, func(p market.Progress) {
		send(streamEvent{Type: "progress", Progress: &p})
	})
	if err != nil {
		send(streamEvent{Type: "error", Error: err.Error()})
	} else {
		resp := buildResponse(result, stale, filter)
		send(streamEvent{Type: "result", Result: &resp})
	}

	conn.WriteControl(websocket.CloseMessage, //nolint:errcheck
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(streamWriteTimeout))
}

// History returns stored rate samples for one bank. from/to are Unix ms;
// to defaults to now.
func (h *MarketHandler) History(c *gin.Context) {
	bank := strings.TrimSpace(c.Param("bank"))

	from, err := parseMillis(c.Query("from"), 0)
	if err != nil {
		writeError(c, domain.PreconditionError("invalid from"))
		return
	}
	to, err := parseMillis(c.Query("to"), time.Now().UnixMilli())
	if err != nil {
		writeError(c, domain.PreconditionError("invalid to"))
		return
	}

	samples, err := h.loader.History(c.Request.Context(), bank, from, to)
	if err != nil {
		writeError(c, err)
		return
	}

	type point struct {
		LendAPR   *float64 `json:"lendApr"`
		BorrowAPR *float64 `json:"borrowApr"`
		SampledAt int64    `json:"sampledAt"`
	}
	points := make([]point, 0, len(samples))
	for _, s := range samples {
		points = append(points, point{LendAPR: s.LendAPR, BorrowAPR: s.BorrowAPR, SampledAt: s.SampledAt})
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "bank": bank, "count": len(points), "samples": points})
}

// refresh runs one load for wallet under a new session generation.
// stale is true when a newer refresh started before this one finished.
func (h *MarketHandler) refresh(c *gin.Context, wallet string, onProgress func(market.Progress)) (*market.LoadResult, bool, error) {
	if wallet == "" {
		return nil, false, domain.PreconditionError("wallet required")
	}
	if _, err := solana.ParseWalletKey(wallet); err != nil {
		return nil, false, domain.PreconditionError("invalid wallet")
	}
	if h.resolution == nil || h.resolution.Conn == nil {
		return nil, false, domain.ConfigError("rpc not resolved")
	}

	s := h.sessions.Open(wallet)
	gen := s.BeginRefresh()

	result, err := h.loader.Load(c.Request.Context(), h.resolution.Conn, wallet, onProgress)
	if err != nil {
		return nil, false, err
	}

	if !s.CommitLoad(gen, result) {
		h.logger.Info("dropping stale market load",
			zap.String("session_id", s.ID),
			zap.Uint64("generation", gen))
		return result, true, nil
	}
	return result, false, nil
}

func buildResponse(result *market.LoadResult, stale bool, filter market.Filter) marketsResponse {
	rows := filter.Apply(result.Records)
	out := make([]marketRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, marketRow{
			MarketRecord: r,
			LendLabel:    market.FormatPercent(r.LendAPR),
			BorrowLabel:  market.FormatPercent(r.BorrowAPR),
		})
	}
	return marketsResponse{
		OK:       true,
		Status:   result.Status,
		Empty:    result.Empty,
		Stale:    stale,
		Progress: result.Progress,
		Skipped:  result.Skipped,
		Records:  len(result.Records),
		Count:    len(out),
		LoadedAt: result.LoadedAt,
		Markets:  out,
	}
}

func parseFilter(c *gin.Context) market.Filter {
	onlyWithAPR, _ := strconv.ParseBool(c.DefaultQuery("onlyWithApr", "false"))
	limit, _ := strconv.Atoi(strings.TrimSpace(c.DefaultQuery("limit", "0")))
	return market.Filter{
		OnlyWithAPR: onlyWithAPR,
		Query:       c.Query("q"),
		Limit:       limit,
	}
}

func parseMillis(raw string, fallback int64) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
