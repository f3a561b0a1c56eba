package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const OrderStatusClosed = "closed"

// Order is a closed trade read from the external order table. It is the
// authoritative event source for TRADE_PNL ledger entries; this subsystem
// never writes orders.
type Order struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	BalanceAccountID string          `json:"balance_account_id,omitempty"`
	Status           string          `json:"status"`
	PnlAmount        decimal.Decimal `json:"pnl_amount"`
	CommissionUSD    decimal.Decimal `json:"commission_usd"`
	SwapUSD          decimal.Decimal `json:"swap_usd"`
	OpenTime         time.Time       `json:"open_time"`
	CloseTime        time.Time       `json:"close_time"`
}

// SyncResult reports the outcome of one reconciliation run.
type SyncResult struct {
	Synced  int `json:"synced"`
	Skipped int `json:"skipped"`
}
