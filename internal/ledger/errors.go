package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrAccountInactive  = errors.New("balance account is inactive")
	ErrCurrencyMismatch = errors.New("settlement currency does not match account currency")
)

// WriteError is returned when a settlement could not be recorded. It carries
// the account and source identifiers so callers can make retry decisions.
type WriteError struct {
	AccountID   string
	SourceType  string
	SourceRefID string
	Err         error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("ledger write failed for account %s (%s/%s): %v",
		e.AccountID, e.SourceType, e.SourceRefID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
