package sheets

import (
	"context"

	"github.com/shopspring/decimal"
)

// Entry is one ledger transaction flattened for a spreadsheet row.
type Entry struct {
	ID          int64
	Date        string
	AccountCode string
	AccountName string
	Category    string
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// LedgerWriter mirrors transactions to an external spreadsheet.
type LedgerWriter interface {
	AppendTransaction(ctx context.Context, e Entry) (rowRef string, err error)
}
