package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType distinguishes wallet-like account kinds. Only TRADING accounts
// receive trade settlements.
type AccountType string

const (
	AccountTypeTrading AccountType = "TRADING"
	AccountTypeFunding AccountType = "FUNDING"
)

// BalanceAccount is a wallet-like account owned by exactly one user.
// Balance is the live running-balance cursor, equal to the BalanceAfter of the
// last ledger entry in canonical order.
type BalanceAccount struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Type      AccountType     `json:"account_type"`
	Currency  string          `json:"currency"`
	IsActive  bool            `json:"is_active"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
