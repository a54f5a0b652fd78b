package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	creditdomain "github.com/smallbiznis/creditgate/internal/credit/domain"
)

type creditsResponse struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
	AutoTopUp bool   `json:"auto_top_up"`
}

type consumeResponse struct {
	creditsResponse
	OK     bool   `json:"ok"`
	Reason string `json:"reason"`
}

// amountRequest accepts fractional amounts; they are floored before use.
type amountRequest struct {
	Amount *float64 `json:"amount"`
}

type autoTopUpRequest struct {
	Enabled *bool `json:"enabled"`
}

func newCreditsResponse(accountID string, state creditdomain.State) creditsResponse {
	return creditsResponse{
		AccountID: accountID,
		Balance:   state.Balance,
		AutoTopUp: state.AutoTopUp,
	}
}

func (s *Server) GetCredits(c *gin.Context) {
	accountID := strings.TrimSpace(c.Param("id"))
	state, err := s.store.GetState(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newCreditsResponse(accountID, state)})
}

func (s *Server) AddCredits(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount == nil {
		AbortWithError(c, newValidationError("amount", "required", "amount is required"))
		return
	}

	accountID := strings.TrimSpace(c.Param("id"))
	state, err := s.store.Add(c.Request.Context(), accountID, creditdomain.NormalizeAmount(*req.Amount))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newCreditsResponse(accountID, state)})
}

// ConsumeCredits answers 402 when the gate denies the action. The body still
// carries the ledger state and the denial reason.
func (s *Server) ConsumeCredits(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount == nil {
		AbortWithError(c, newValidationError("amount", "required", "amount is required"))
		return
	}

	accountID := strings.TrimSpace(c.Param("id"))
	result, err := s.gate.Consume(c.Request.Context(), accountID, creditdomain.NormalizeAmount(*req.Amount))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if !result.OK {
		status = http.StatusPaymentRequired
	}
	c.JSON(status, gin.H{"data": consumeResponse{
		creditsResponse: newCreditsResponse(accountID, result.State),
		OK:              result.OK,
		Reason:          string(result.Reason),
	}})
}

func (s *Server) SetAutoTopUp(c *gin.Context) {
	var req autoTopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		AbortWithError(c, newValidationError("enabled", "required", "enabled is required"))
		return
	}

	accountID := strings.TrimSpace(c.Param("id"))
	state, err := s.store.SetAutoTopUp(c.Request.Context(), accountID, *req.Enabled)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newCreditsResponse(accountID, state)})
}
