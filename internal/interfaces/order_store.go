package interfaces

import (
	"context"

	"github.com/finvault/trading-ledger/internal/models"
)

// OrderStore reads the external source of settlement-worthy events.
type OrderStore interface {
	// ClosedOrdersByUser returns the user's closed orders that target a
	// balance account, ordered by close time ascending.
	ClosedOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
}
