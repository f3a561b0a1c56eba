package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/finvault/trading-ledger/internal/interfaces"
	"github.com/finvault/trading-ledger/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Store implements the ledger, account and order stores on Postgres.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// AppendEntry inserts the entry and moves the account's balance cursor to
// entry.BalanceAfter in a single transaction. The account row is locked for
// the duration so concurrent appends from other processes serialize.
func (s *Store) AppendEntry(ctx context.Context, entry models.LedgerEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var locked string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM balance_accounts WHERE id = $1 FOR UPDATE`,
		entry.BalanceAccountID,
	).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return interfaces.ErrAccountNotFound
	}
	if err != nil {
		return err
	}

	const insert = `INSERT INTO ledger_entries
		(id, balance_account_id, source_type, source_ref_id, amount, balance_after, currency, meta, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = tx.ExecContext(ctx, insert,
		entry.ID,
		entry.BalanceAccountID,
		string(entry.SourceType),
		nullString(entry.SourceRefID),
		entry.Amount,
		entry.BalanceAfter,
		entry.Currency,
		nullString(entry.Meta),
		entry.OccurredAt,
		entry.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return interfaces.ErrDuplicateEntry
		}
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE balance_accounts SET balance = $1, updated_at = $2 WHERE id = $3`,
		entry.BalanceAfter, time.Now().UTC(), entry.BalanceAccountID,
	)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) EntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	const query = `SELECT id, balance_account_id, source_type, source_ref_id, amount, balance_after, currency, meta, occurred_at, created_at
		FROM ledger_entries
		WHERE balance_account_id = $1
		ORDER BY occurred_at ASC, created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) ExistingSourceRefs(ctx context.Context, sourceType models.SourceType, refIDs []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(refIDs))
	if len(refIDs) == 0 {
		return existing, nil
	}

	const query = `SELECT source_ref_id FROM ledger_entries
		WHERE source_type = $1 AND source_ref_id = ANY($2)`

	rows, err := s.db.QueryContext(ctx, query, string(sourceType), pq.Array(refIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var refID string
		if err := rows.Scan(&refID); err != nil {
			return nil, err
		}
		existing[refID] = struct{}{}
	}
	return existing, rows.Err()
}

// ApplyBalanceRewrites persists a recomputation pass: corrected balance_after
// values plus the final cursor, all in one transaction.
func (s *Store) ApplyBalanceRewrites(ctx context.Context, accountID string, rewrites []interfaces.BalanceRewrite, finalBalance decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var locked string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM balance_accounts WHERE id = $1 FOR UPDATE`,
		accountID,
	).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return interfaces.ErrAccountNotFound
	}
	if err != nil {
		return err
	}

	for _, rw := range rewrites {
		res, err := tx.ExecContext(ctx,
			`UPDATE ledger_entries SET balance_after = $1 WHERE id = $2 AND balance_account_id = $3`,
			rw.BalanceAfter, rw.EntryID, accountID,
		)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", interfaces.ErrEntryNotFound, rw.EntryID)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE balance_accounts SET balance = $1, updated_at = $2 WHERE id = $3`,
		finalBalance, time.Now().UTC(), accountID,
	)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (models.BalanceAccount, error) {
	const query = `SELECT id, user_id, name, account_type, currency, is_active, balance, created_at, updated_at
		FROM balance_accounts WHERE id = $1`

	var acct models.BalanceAccount
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&acct.ID,
		&acct.UserID,
		&acct.Name,
		&acct.Type,
		&acct.Currency,
		&acct.IsActive,
		&acct.Balance,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BalanceAccount{}, interfaces.ErrAccountNotFound
	}
	if err != nil {
		return models.BalanceAccount{}, err
	}
	return acct, nil
}

func (s *Store) ClosedOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	const query = `SELECT id, user_id, balance_account_id, status, pnl_amount, commission_usd, swap_usd, open_time, close_time
		FROM orders
		WHERE user_id = $1 AND status = $2 AND balance_account_id IS NOT NULL
		ORDER BY close_time ASC`

	rows, err := s.db.QueryContext(ctx, query, userID, models.OrderStatusClosed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		var accountID sql.NullString
		if err := rows.Scan(
			&o.ID,
			&o.UserID,
			&accountID,
			&o.Status,
			&o.PnlAmount,
			&o.CommissionUSD,
			&o.SwapUSD,
			&o.OpenTime,
			&o.CloseTime,
		); err != nil {
			return nil, err
		}
		o.BalanceAccountID = accountID.String
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func scanEntry(rows *sql.Rows) (models.LedgerEntry, error) {
	var entry models.LedgerEntry
	var refID, meta sql.NullString
	err := rows.Scan(
		&entry.ID,
		&entry.BalanceAccountID,
		&entry.SourceType,
		&refID,
		&entry.Amount,
		&entry.BalanceAfter,
		&entry.Currency,
		&meta,
		&entry.OccurredAt,
		&entry.CreatedAt,
	)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	entry.SourceRefID = refID.String
	entry.Meta = meta.String
	return entry, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

var (
	_ interfaces.LedgerStore  = (*Store)(nil)
	_ interfaces.AccountStore = (*Store)(nil)
	_ interfaces.OrderStore   = (*Store)(nil)
)
