package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/finvault/trading-ledger/internal/interfaces"
	"github.com/finvault/trading-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// Store is an in-memory implementation of the ledger, account and order
// stores. It backs tests and local runs without a database.
type Store struct {
	mu       sync.Mutex
	entries  []models.LedgerEntry
	accounts map[string]models.BalanceAccount
	orders   []models.Order
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[string]models.BalanceAccount),
	}
}

// PutAccount seeds or replaces an account.
func (m *Store) PutAccount(acct models.BalanceAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[acct.ID] = acct
}

// PutOrder seeds an order into the external order table stand-in.
func (m *Store) PutOrder(o models.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, o)
}

func (m *Store) AppendEntry(ctx context.Context, entry models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[entry.BalanceAccountID]
	if !ok {
		return interfaces.ErrAccountNotFound
	}
	if entry.SourceRefID != "" {
		for _, e := range m.entries {
			if e.SourceType == entry.SourceType && e.SourceRefID == entry.SourceRefID {
				return interfaces.ErrDuplicateEntry
			}
		}
	}

	m.entries = append(m.entries, entry)
	acct.Balance = entry.BalanceAfter
	m.accounts[entry.BalanceAccountID] = acct
	return nil
}

func (m *Store) EntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.LedgerEntry
	for _, e := range m.entries {
		if e.BalanceAccountID == accountID {
			result = append(result, e)
		}
	}
	// Canonical order: business timestamp, then write timestamp, then id.
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.Before(b.OccurredAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return result, nil
}

func (m *Store) ExistingSourceRefs(ctx context.Context, sourceType models.SourceType, refIDs []string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[string]struct{}, len(refIDs))
	for _, id := range refIDs {
		wanted[id] = struct{}{}
	}

	existing := make(map[string]struct{})
	for _, e := range m.entries {
		if e.SourceType != sourceType || e.SourceRefID == "" {
			continue
		}
		if _, ok := wanted[e.SourceRefID]; ok {
			existing[e.SourceRefID] = struct{}{}
		}
	}
	return existing, nil
}

func (m *Store) ApplyBalanceRewrites(ctx context.Context, accountID string, rewrites []interfaces.BalanceRewrite, finalBalance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[accountID]
	if !ok {
		return interfaces.ErrAccountNotFound
	}

	for _, rw := range rewrites {
		found := false
		for i := range m.entries {
			if m.entries[i].ID == rw.EntryID && m.entries[i].BalanceAccountID == accountID {
				m.entries[i].BalanceAfter = rw.BalanceAfter
				found = true
				break
			}
		}
		if !found {
			return interfaces.ErrEntryNotFound
		}
	}

	acct.Balance = finalBalance
	m.accounts[accountID] = acct
	return nil
}

func (m *Store) GetAccount(ctx context.Context, id string) (models.BalanceAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[id]
	if !ok {
		return models.BalanceAccount{}, interfaces.ErrAccountNotFound
	}
	return acct, nil
}

func (m *Store) ClosedOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.Order
	for _, o := range m.orders {
		if o.UserID == userID && o.Status == models.OrderStatusClosed && o.BalanceAccountID != "" {
			result = append(result, o)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CloseTime.Before(result[j].CloseTime)
	})
	return result, nil
}

var (
	_ interfaces.LedgerStore  = (*Store)(nil)
	_ interfaces.AccountStore = (*Store)(nil)
	_ interfaces.OrderStore   = (*Store)(nil)
)
