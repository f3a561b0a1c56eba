package events

import (
	"time"

	"github.com/shopspring/decimal"
)

type SettlementRecorded struct {
	EntryID          string          `json:"entry_id"`
	BalanceAccountID string          `json:"balance_account_id"`
	SourceType       string          `json:"source_type"`
	SourceRefID      string          `json:"source_ref_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	BalanceAfter     decimal.Decimal `json:"balance_after"`
	Currency         string          `json:"currency"`
	OccurredAt       time.Time       `json:"occurred_at"`
}
