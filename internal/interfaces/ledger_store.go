package interfaces

import (
	"context"
	"errors"

	"github.com/finvault/trading-ledger/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound = errors.New("balance account not found")
	ErrDuplicateEntry  = errors.New("ledger entry already exists for source reference")
	ErrEntryNotFound   = errors.New("ledger entry not found")
)

// BalanceRewrite carries one corrected balance_after value produced by a
// recomputation pass.
type BalanceRewrite struct {
	EntryID      string
	BalanceAfter decimal.Decimal
}

// LedgerStore owns ledger entry persistence and the per-account running
// balance cursor. It exposes primitives only; ordering and arithmetic live in
// the ledger service.
type LedgerStore interface {
	// AppendEntry inserts the entry and advances the owning account's balance
	// cursor to entry.BalanceAfter, atomically.
	AppendEntry(ctx context.Context, entry models.LedgerEntry) error

	// EntriesByAccount returns all entries for the account in canonical order:
	// (occurred_at, created_at, id) ascending.
	EntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error)

	// ExistingSourceRefs reports which of the given source reference ids
	// already have a ledger entry for the source type. Callers are expected to
	// chunk refIDs into bounded batches.
	ExistingSourceRefs(ctx context.Context, sourceType models.SourceType, refIDs []string) (map[string]struct{}, error)

	// ApplyBalanceRewrites persists corrected balance_after values and sets the
	// account's balance cursor to finalBalance, atomically. An empty rewrite
	// set still updates the cursor.
	ApplyBalanceRewrites(ctx context.Context, accountID string, rewrites []BalanceRewrite, finalBalance decimal.Decimal) error
}
