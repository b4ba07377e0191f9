package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"solana-lend-widget/internal/action"
	"solana-lend-widget/internal/domain"
	"solana-lend-widget/internal/lending"
	"solana-lend-widget/internal/session"
)

type ActionHandler struct {
	dispatcher *action.Dispatcher
	sessions   *session.Registry
}

func NewActionHandler(dispatcher *action.Dispatcher, sessions *session.Registry) *ActionHandler {
	return &ActionHandler{dispatcher: dispatcher, sessions: sessions}
}

type createAccountRequest struct {
	Wallet string `json:"wallet"`
}

// CreateAccount creates the wallet's lending account, once per session.
func (h *ActionHandler) CreateAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.PreconditionError("invalid request body"))
		return
	}

	wallet := strings.TrimSpace(req.Wallet)
	if wallet == "" {
		writeError(c, domain.PreconditionError("wallet required"))
		return
	}

	s, ok := h.sessions.Get(wallet)
	if !ok {
		writeError(c, domain.PreconditionError("load markets first"))
		return
	}

	account, created, err := s.CreateAccount(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"account": account.Address(),
		"created": created,
	})
}

// amountText accepts a JSON string or number.
type amountText string

func (a *amountText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountText(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	*a = amountText(b)
	return nil
}

type actionRequest struct {
	Wallet string     `json:"wallet"`
	Kind   string     `json:"kind"`
	Bank   string     `json:"bank"`
	Amount amountText `json:"amount"`
}

// Dispatch submits one deposit/borrow/repay/withdraw for the wallet's account.
func (h *ActionHandler) Dispatch(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.PreconditionError("invalid request body"))
		return
	}

	var account lending.Account
	if s, ok := h.sessions.Get(strings.TrimSpace(req.Wallet)); ok {
		account = s.Account()
	}
	if account == nil {
		writeError(c, domain.PreconditionError("create account first"))
		return
	}

	amount, err := action.ParseAmount(string(req.Amount))
	if err != nil {
		writeError(c, err)
		return
	}

	kind, _ := domain.ParseActionKind(req.Kind)
	result, err := h.dispatcher.Dispatch(c.Request.Context(), account, kind, strings.TrimSpace(req.Bank), amount)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"kind":      result.Kind,
		"bank":      result.Bank,
		"amount":    result.Amount.String(),
		"signature": result.Signature,
	})
}

// CloseSession forgets the wallet's client and account.
func (h *ActionHandler) CloseSession(c *gin.Context) {
	closed := h.sessions.Close(strings.TrimSpace(c.Param("wallet")))
	c.JSON(http.StatusOK, gin.H{"ok": true, "closed": closed})
}
