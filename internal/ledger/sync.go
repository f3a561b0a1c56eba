package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/finvault/trading-ledger/internal/interfaces"
	"github.com/finvault/trading-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// refLookupChunkSize bounds each existing-reference lookup. Unbounded
// "id in (...)" queries are a known failure mode at scale.
const refLookupChunkSize = 100

// SyncPendingSettlements scans the user's closed orders for trades not yet
// represented in the ledger, records a settlement for each, and recomputes
// running balances for every account touched. Re-running after a partial or
// full success is always safe: already-recorded orders are skipped.
//
// On failure the returned result still carries the number of entries
// committed before the abort.
func (s *Service) SyncPendingSettlements(ctx context.Context, userID string) (models.SyncResult, error) {
	start := time.Now()
	result, err := s.syncPending(ctx, userID)
	s.metrics.observeSync(time.Since(start))
	s.metrics.addSkipped(result.Skipped)
	if err != nil {
		s.metrics.incSyncRun("error")
	} else {
		s.metrics.incSyncRun("success")
	}
	return result, err
}

func (s *Service) syncPending(ctx context.Context, userID string) (models.SyncResult, error) {
	var result models.SyncResult

	// Candidates arrive oldest first so that a clean run appends in canonical
	// order and the recompute pass has nothing to correct.
	orders, err := s.orders.ClosedOrdersByUser(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("load closed orders for user %s: %w", userID, err)
	}
	if len(orders) == 0 {
		return result, nil
	}

	existing, err := s.existingRefs(ctx, orders)
	if err != nil {
		return result, fmt.Errorf("load existing ledger references: %w", err)
	}

	pending := make([]models.Order, 0, len(orders))
	accounts := make(map[string]models.BalanceAccount)
	seen := make(map[string]struct{}, len(existing))
	for _, o := range orders {
		if _, ok := existing[o.ID]; ok {
			result.Skipped++
			continue
		}
		if _, ok := seen[o.ID]; ok {
			result.Skipped++
			continue
		}

		acct, ok := accounts[o.BalanceAccountID]
		if !ok {
			acct, err = s.accounts.GetAccount(ctx, o.BalanceAccountID)
			if err != nil {
				// Stale or foreign account references must not block
				// reconciliation of valid orders.
				s.logger.Debug("skipping order with unresolvable account",
					"order_id", o.ID, "account_id", o.BalanceAccountID, "error", err)
				result.Skipped++
				continue
			}
			accounts[o.BalanceAccountID] = acct
		}
		if acct.UserID != userID || acct.Type != models.AccountTypeTrading || !acct.IsActive {
			result.Skipped++
			continue
		}

		seen[o.ID] = struct{}{}
		pending = append(pending, o)
	}
	if len(pending) == 0 {
		return result, nil
	}

	// Hold every touched account's lock across {record entries, recompute} so
	// that overlapping runs on the same account serialize. Locks are taken in
	// sorted order to avoid deadlocks between concurrent runs.
	touchedSet := make(map[string]struct{})
	for _, o := range pending {
		touchedSet[o.BalanceAccountID] = struct{}{}
	}
	touched := make([]string, 0, len(touchedSet))
	for id := range touchedSet {
		touched = append(touched, id)
	}
	sort.Strings(touched)
	locks := make([]*sync.Mutex, 0, len(touched))
	for _, id := range touched {
		mu := s.accountLock(id)
		mu.Lock()
		locks = append(locks, mu)
	}
	defer func() {
		for _, mu := range locks {
			mu.Unlock()
		}
	}()

	recorded := make(map[string]struct{})
	for _, o := range pending {
		if _, err := s.recordLocked(ctx, settlementFromOrder(o)); err != nil {
			// A concurrent run may have recorded the order between our dedup
			// scan and taking the lock; the uniqueness backstop catches it.
			if errors.Is(err, interfaces.ErrDuplicateEntry) {
				result.Skipped++
				continue
			}
			// Fail fast: a write failure leaves the cursor suspect, so later
			// entries must not be recorded against it.
			return result, err
		}
		result.Synced++
		recorded[o.BalanceAccountID] = struct{}{}
	}

	// Recompute unconditionally: ascending candidate order does not guarantee
	// no other out-of-order writer raced in.
	for _, accountID := range touched {
		if _, ok := recorded[accountID]; !ok {
			continue
		}
		if err := s.recomputeLocked(ctx, accountID); err != nil {
			return result, err
		}
	}

	s.logger.Info("settlement sync completed",
		"user_id", userID, "synced", result.Synced, "skipped", result.Skipped)
	return result, nil
}

// existingRefs collects the order ids already represented in the ledger,
// looked up in bounded-size batches.
func (s *Service) existingRefs(ctx context.Context, orders []models.Order) (map[string]struct{}, error) {
	refIDs := make([]string, 0, len(orders))
	for _, o := range orders {
		refIDs = append(refIDs, o.ID)
	}

	existing := make(map[string]struct{}, len(refIDs))
	for from := 0; from < len(refIDs); from += refLookupChunkSize {
		to := from + refLookupChunkSize
		if to > len(refIDs) {
			to = len(refIDs)
		}
		found, err := s.store.ExistingSourceRefs(ctx, models.SourceTradePnL, refIDs[from:to])
		if err != nil {
			return nil, err
		}
		for id := range found {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

func settlementFromOrder(o models.Order) SettlementRequest {
	meta, _ := json.Marshal(struct {
		OrderID    string          `json:"order_id"`
		PnlAmount  decimal.Decimal `json:"pnl_amount"`
		Commission decimal.Decimal `json:"commission_usd"`
		Swap       decimal.Decimal `json:"swap_usd"`
	}{o.ID, o.PnlAmount, o.CommissionUSD, o.SwapUSD})

	return SettlementRequest{
		AccountID:   o.BalanceAccountID,
		SourceType:  models.SourceTradePnL,
		SourceRefID: o.ID,
		OccurredAt:  o.CloseTime,
		Components:  []decimal.Decimal{o.PnlAmount, o.CommissionUSD, o.SwapUSD},
		Meta:        string(meta),
	}
}
