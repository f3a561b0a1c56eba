package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceType tags the producer of a ledger entry.
type SourceType string

const (
	SourceTradePnL         SourceType = "TRADE_PNL"
	SourceManualAdjustment SourceType = "MANUAL_ADJUSTMENT"
)

// LedgerEntry is one immutable record of a balance-affecting event.
// Entries are append-only; the only field ever rewritten after insert is
// BalanceAfter, and only by a running-balance recomputation pass.
type LedgerEntry struct {
	ID               string          `json:"id"`
	BalanceAccountID string          `json:"balance_account_id"`
	SourceType       SourceType      `json:"source_type"`
	SourceRefID      string          `json:"source_ref_id,omitempty"` // empty means no external reference
	Amount           decimal.Decimal `json:"amount"`                  // signed net effect on the balance
	BalanceAfter     decimal.Decimal `json:"balance_after"`           // running balance in canonical order
	Currency         string          `json:"currency"`
	Meta             string          `json:"meta,omitempty"` // opaque diagnostic payload
	OccurredAt       time.Time       `json:"occurred_at"`    // business timestamp
	CreatedAt        time.Time       `json:"created_at"`     // write timestamp
}
