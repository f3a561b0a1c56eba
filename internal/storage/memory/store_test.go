package memory

import (
	"context"
	"testing"
	"time"

	"github.com/finvault/trading-ledger/internal/interfaces"
	"github.com/finvault/trading-ledger/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccount() models.BalanceAccount {
	return models.BalanceAccount{
		ID:       "acct-1",
		UserID:   "user-1",
		Type:     models.AccountTypeTrading,
		Currency: "USD",
		IsActive: true,
		Balance:  decimal.Zero,
	}
}

func entry(id string, occurredAt, createdAt time.Time, amount string) models.LedgerEntry {
	d := decimal.RequireFromString(amount)
	return models.LedgerEntry{
		ID:               id,
		BalanceAccountID: "acct-1",
		SourceType:       models.SourceTradePnL,
		SourceRefID:      "ref-" + id,
		Amount:           d,
		BalanceAfter:     d,
		Currency:         "USD",
		OccurredAt:       occurredAt,
		CreatedAt:        createdAt,
	}
}

func TestAppendEntryAdvancesCursor(t *testing.T) {
	store := NewStore()
	store.PutAccount(testAccount())
	ctx := context.Background()
	now := time.Now().UTC()

	e := entry("e1", now, now, "25.5")
	require.NoError(t, store.AppendEntry(ctx, e))

	acct, err := store.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "25.5", acct.Balance.String())
}

func TestAppendEntryUnknownAccount(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()
	err := store.AppendEntry(context.Background(), entry("e1", now, now, "1"))
	assert.ErrorIs(t, err, interfaces.ErrAccountNotFound)
}

func TestAppendEntryRejectsDuplicateSourceRef(t *testing.T) {
	store := NewStore()
	store.PutAccount(testAccount())
	ctx := context.Background()
	now := time.Now().UTC()

	e := entry("e1", now, now, "1")
	require.NoError(t, store.AppendEntry(ctx, e))

	dup := entry("e2", now, now, "1")
	dup.SourceRefID = e.SourceRefID
	assert.ErrorIs(t, store.AppendEntry(ctx, dup), interfaces.ErrDuplicateEntry)
}

func TestEntriesByAccountCanonicalOrder(t *testing.T) {
	store := NewStore()
	store.PutAccount(testAccount())
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	// Inserted out of order on purpose; ties on occurred_at break on
	// created_at, then id.
	require.NoError(t, store.AppendEntry(ctx, entry("b", base.Add(time.Hour), base.Add(time.Minute), "1")))
	require.NoError(t, store.AppendEntry(ctx, entry("c", base, base.Add(2*time.Minute), "1")))
	require.NoError(t, store.AppendEntry(ctx, entry("a", base.Add(time.Hour), base.Add(time.Minute), "1")))
	require.NoError(t, store.AppendEntry(ctx, entry("d", base, base.Add(time.Minute), "1")))

	entries, err := store.EntriesByAccount(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	var ids []string
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"d", "c", "a", "b"}, ids)
}

func TestApplyBalanceRewrites(t *testing.T) {
	store := NewStore()
	store.PutAccount(testAccount())
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.AppendEntry(ctx, entry("e1", now, now, "10")))

	rewrites := []interfaces.BalanceRewrite{
		{EntryID: "e1", BalanceAfter: decimal.RequireFromString("42")},
	}
	require.NoError(t, store.ApplyBalanceRewrites(ctx, "acct-1", rewrites, decimal.RequireFromString("42")))

	entries, err := store.EntriesByAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "42", entries[0].BalanceAfter.String())

	acct, err := store.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "42", acct.Balance.String())
}

func TestApplyBalanceRewritesUnknownEntry(t *testing.T) {
	store := NewStore()
	store.PutAccount(testAccount())

	rewrites := []interfaces.BalanceRewrite{{EntryID: "ghost", BalanceAfter: decimal.Zero}}
	err := store.ApplyBalanceRewrites(context.Background(), "acct-1", rewrites, decimal.Zero)
	assert.ErrorIs(t, err, interfaces.ErrEntryNotFound)
}

func TestClosedOrdersByUserFiltersAndSorts(t *testing.T) {
	store := NewStore()
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	store.PutOrder(models.Order{ID: "o2", UserID: "user-1", BalanceAccountID: "acct-1", Status: models.OrderStatusClosed, CloseTime: base.Add(time.Hour)})
	store.PutOrder(models.Order{ID: "o1", UserID: "user-1", BalanceAccountID: "acct-1", Status: models.OrderStatusClosed, CloseTime: base})
	store.PutOrder(models.Order{ID: "open", UserID: "user-1", BalanceAccountID: "acct-1", Status: "open", CloseTime: base})
	store.PutOrder(models.Order{ID: "no-acct", UserID: "user-1", Status: models.OrderStatusClosed, CloseTime: base})
	store.PutOrder(models.Order{ID: "other", UserID: "user-2", BalanceAccountID: "acct-2", Status: models.OrderStatusClosed, CloseTime: base})

	orders, err := store.ClosedOrdersByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o1", orders[0].ID)
	assert.Equal(t, "o2", orders[1].ID)
}
