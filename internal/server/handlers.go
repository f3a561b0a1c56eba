package server

import (
	"errors"
	"net/http"

	"github.com/finvault/trading-ledger/internal/interfaces"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type syncResponse struct {
	Synced  int    `json:"synced"`
	Skipped int    `json:"skipped"`
	Message string `json:"message,omitempty"`
}

type balanceResponse struct {
	AccountID string          `json:"account_id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Sync reconciles the caller's closed orders into the ledger. Safe to call
// repeatedly: already-synced orders count as skipped.
func (s *Server) Sync(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "missing user"})
		return
	}

	result, err := s.ledger.SyncPendingSettlements(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("settlement sync failed", "user_id", userID, "synced", result.Synced, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "synced": result.Synced})
		return
	}

	resp := syncResponse{Synced: result.Synced, Skipped: result.Skipped}
	if result.Synced == 0 && result.Skipped == 0 {
		resp.Message = "no pending settlements"
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) AccountBalance(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "missing user"})
		return
	}

	acct, err := s.ledger.AccountBalance(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, interfaces.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "account not found"})
			return
		}
		s.logger.Error("balance lookup failed", "account_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, balanceResponse{
		AccountID: acct.ID,
		Currency:  acct.Currency,
		Balance:   acct.Balance,
	})
}

func (s *Server) AccountEntries(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "missing user"})
		return
	}

	entries, err := s.ledger.AccountEntries(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, interfaces.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "account not found"})
			return
		}
		s.logger.Error("entries lookup failed", "account_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, entries)
}
