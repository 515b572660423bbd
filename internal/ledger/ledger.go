package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies where a payment record entered the system.
type Source string

const (
	SourceBankTBC     Source = "bank-tbc"
	SourceBankBOG     Source = "bank-bog"
	SourceExcelManual Source = "excel-manual"
	SourceManualCash  Source = "manual-cash"
)

// Valid reports whether s is one of the known payment sources.
func (s Source) Valid() bool {
	switch s {
	case SourceBankTBC, SourceBankBOG, SourceExcelManual, SourceManualCash:
		return true
	}
	return false
}

// IsCash reports whether payments from this source count as cash rather
// than bank money in the debt summary.
func (s Source) IsCash() bool {
	return s == SourceManualCash
}

// Payment is one row of the ledger. Immutable once written; rows are only
// ever created by the ingestion pipeline and deleted by the deduplication
// engine.
type Payment struct {
	ID           string          `json:"id"`
	Fingerprint  string          `json:"fingerprint"`
	CustomerID   string          `json:"customerId"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balanceAfter"`
	Date         time.Time       `json:"date"`
	Source       Source          `json:"source"`
	Description  string          `json:"description"`
	UploadedAt   time.Time       `json:"uploadedAt"`
	RowIndex     int             `json:"rowIndex,omitempty"`
}

// CustomerAggregate is the per-customer payment rollup the aggregation job
// consumes, split by money class.
type CustomerAggregate struct {
	BankTotal    decimal.Decimal
	BankCount    int
	LastBankDate time.Time
	CashTotal    decimal.Decimal
	CashCount    int
	LastCashDate time.Time
}

// LastPayment returns the most recent payment date across both classes.
func (a CustomerAggregate) LastPayment() time.Time {
	if a.LastCashDate.After(a.LastBankDate) {
		return a.LastCashDate
	}
	return a.LastBankDate
}

// ErrEmptyBatch is returned when a batched write is invoked with nothing
// to write.
var ErrEmptyBatch = errors.New("ledger: empty batch")

// Store is the payment ledger collection. Implementations must provide
// batched writes and deletes; duplicate-insert races are tolerated and
// reconciled later by the deduplication engine, not prevented by locks.
type Store interface {
	// AddBatch persists new payment rows in one batched write.
	AddBatch(ctx context.Context, payments []Payment) error
	// Fingerprints returns the set of all fingerprints currently stored.
	Fingerprints(ctx context.Context) (map[string]struct{}, error)
	// All returns every payment row.
	All(ctx context.Context) ([]Payment, error)
	// DeleteBatch removes the rows with the given ids in one batched
	// operation and reports how many rows went away.
	DeleteBatch(ctx context.Context, ids []string) (int, error)
	// WindowTotal sums payment amounts for one source with a date strictly
	// after cutoff.
	WindowTotal(ctx context.Context, source Source, cutoff time.Time) (decimal.Decimal, error)
	// CustomerAggregates rolls up payments dated strictly after cutoff,
	// keyed by customer id.
	CustomerAggregates(ctx context.Context, cutoff time.Time) (map[string]CustomerAggregate, error)
	// LastPaymentDates returns the most recent payment date per customer
	// across all sources, ignoring the cutoff.
	LastPaymentDates(ctx context.Context) (map[string]time.Time, error)
}
