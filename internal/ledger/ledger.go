package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/finvault/trading-ledger/internal/interfaces"
	"github.com/finvault/trading-ledger/internal/models"
	"github.com/finvault/trading-ledger/internal/models/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"log/slog"
)

// Service turns balance-affecting events into ledger entries and keeps each
// account's running balances consistent. The unit of contention is one
// account's ledger plus its balance cursor; a keyed mutex serializes writers
// of the same account while unrelated accounts proceed independently.
type Service struct {
	store     interfaces.LedgerStore
	accounts  interfaces.AccountStore
	orders    interfaces.OrderStore
	publisher interfaces.EventPublisher // optional
	logger    *slog.Logger
	metrics   *Metrics // optional

	muMap map[string]*sync.Mutex // one mutex per account id
	mapMu sync.Mutex             // protects muMap itself
}

func NewService(
	store interfaces.LedgerStore,
	accounts interfaces.AccountStore,
	orders interfaces.OrderStore,
	publisher interfaces.EventPublisher,
	logger *slog.Logger,
	metrics *Metrics,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		accounts:  accounts,
		orders:    orders,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		muMap:     make(map[string]*sync.Mutex),
	}
}

func (s *Service) accountLock(accountID string) *sync.Mutex {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()

	if _, exists := s.muMap[accountID]; !exists {
		s.muMap[accountID] = &sync.Mutex{}
	}
	return s.muMap[accountID]
}

// SettlementRequest describes one balance-affecting event to be recorded.
// Components is the signed breakdown of the net amount (for a trade: gross
// P&L, commission, swap; costs already negative when they reduce the balance).
type SettlementRequest struct {
	AccountID   string
	SourceType  models.SourceType
	SourceRefID string // empty for sources without an external reference
	OccurredAt  time.Time
	Currency    string // empty trusts the account's currency
	Components  []decimal.Decimal
	Meta        string
}

// RecordSettlement appends exactly one ledger entry and advances the
// account's balance cursor by the summed net amount. The stored balance_after
// is provisional when the event is older than the newest entry; a
// recomputation pass corrects it.
func (s *Service) RecordSettlement(ctx context.Context, req SettlementRequest) (models.LedgerEntry, error) {
	mu := s.accountLock(req.AccountID)
	mu.Lock()
	defer mu.Unlock()

	return s.recordLocked(ctx, req)
}

// recordLocked does the actual work; the caller must hold the account lock.
func (s *Service) recordLocked(ctx context.Context, req SettlementRequest) (models.LedgerEntry, error) {
	acct, err := s.accounts.GetAccount(ctx, req.AccountID)
	if err != nil {
		return models.LedgerEntry{}, s.writeError(req, err)
	}
	if !acct.IsActive {
		return models.LedgerEntry{}, s.writeError(req, ErrAccountInactive)
	}
	if req.Currency != "" && acct.Currency != "" && req.Currency != acct.Currency {
		return models.LedgerEntry{}, s.writeError(req, ErrCurrencyMismatch)
	}

	amount := decimal.Zero
	for _, c := range req.Components {
		amount = amount.Add(c)
	}

	entry := models.LedgerEntry{
		ID:               uuid.New().String(),
		BalanceAccountID: acct.ID,
		SourceType:       req.SourceType,
		SourceRefID:      req.SourceRefID,
		Amount:           amount,
		BalanceAfter:     acct.Balance.Add(amount),
		Currency:         acct.Currency,
		Meta:             req.Meta,
		OccurredAt:       req.OccurredAt,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.store.AppendEntry(ctx, entry); err != nil {
		return models.LedgerEntry{}, s.writeError(req, err)
	}
	s.metrics.incRecorded()

	s.publish(ctx, entry)
	return entry, nil
}

func (s *Service) writeError(req SettlementRequest, err error) *WriteError {
	return &WriteError{
		AccountID:   req.AccountID,
		SourceType:  string(req.SourceType),
		SourceRefID: req.SourceRefID,
		Err:         err,
	}
}

// publish emits an advisory settlement.recorded event. The ledger row is the
// source of truth, so publish failures are logged and not propagated.
func (s *Service) publish(ctx context.Context, entry models.LedgerEntry) {
	if s.publisher == nil {
		return
	}
	evt := events.SettlementRecorded{
		EntryID:          entry.ID,
		BalanceAccountID: entry.BalanceAccountID,
		SourceType:       string(entry.SourceType),
		SourceRefID:      entry.SourceRefID,
		Amount:           entry.Amount,
		BalanceAfter:     entry.BalanceAfter,
		Currency:         entry.Currency,
		OccurredAt:       entry.OccurredAt,
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("settlement event publish failed",
			"entry_id", entry.ID, "account_id", entry.BalanceAccountID, "error", err)
	}
}

// RecomputeRunningBalances replays the account's whole ledger in canonical
// order and rewrites every stale balance_after, then sets the live cursor to
// the final total. Running it twice with no intervening writes is a no-op.
func (s *Service) RecomputeRunningBalances(ctx context.Context, accountID string) error {
	mu := s.accountLock(accountID)
	mu.Lock()
	defer mu.Unlock()

	return s.recomputeLocked(ctx, accountID)
}

// recomputeLocked does the actual work; the caller must hold the account lock.
func (s *Service) recomputeLocked(ctx context.Context, accountID string) error {
	entries, err := s.store.EntriesByAccount(ctx, accountID)
	if err != nil {
		s.metrics.incRecompute("error")
		return fmt.Errorf("load entries for account %s: %w", accountID, err)
	}

	total := decimal.Zero
	var rewrites []interfaces.BalanceRewrite
	for _, e := range entries {
		total = total.Add(e.Amount)
		if !e.BalanceAfter.Equal(total) {
			rewrites = append(rewrites, interfaces.BalanceRewrite{
				EntryID:      e.ID,
				BalanceAfter: total,
			})
		}
	}

	if err := s.store.ApplyBalanceRewrites(ctx, accountID, rewrites, total); err != nil {
		s.metrics.incRecompute("error")
		return fmt.Errorf("apply balance rewrites for account %s: %w", accountID, err)
	}

	if len(rewrites) > 0 {
		s.logger.Info("running balances corrected",
			"account_id", accountID, "entries", len(entries), "rewritten", len(rewrites))
	}
	s.metrics.incRecompute("success")
	return nil
}

// AccountBalance returns the account's live balance cursor. Accounts outside
// the caller's ownership are reported as not found.
func (s *Service) AccountBalance(ctx context.Context, userID, accountID string) (models.BalanceAccount, error) {
	acct, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return models.BalanceAccount{}, err
	}
	if acct.UserID != userID {
		return models.BalanceAccount{}, interfaces.ErrAccountNotFound
	}
	return acct, nil
}

// AccountEntries returns the account's ledger in canonical order, with the
// same ownership rule as AccountBalance.
func (s *Service) AccountEntries(ctx context.Context, userID, accountID string) ([]models.LedgerEntry, error) {
	if _, err := s.AccountBalance(ctx, userID, accountID); err != nil {
		return nil, err
	}
	return s.store.EntriesByAccount(ctx, accountID)
}
