package interfaces

import (
	"context"

	"github.com/finvault/trading-ledger/internal/models"
)

// AccountStore is the account directory used for ownership and type
// validation. Account CRUD itself lives elsewhere.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (models.BalanceAccount, error)
}
