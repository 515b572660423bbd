// Package debtsummary holds the derived per-customer debt aggregate and
// the recency-based payment status. Summaries are written only by the
// aggregation job and read by everyone else.
package debtsummary

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound reports an absent summary.
var ErrNotFound = errors.New("debtsummary: not found")

// Summary is the unified per-customer balance derived from the three
// sources. Always recomputed from scratch, never patched incrementally:
// CurrentDebt = StartingDebt + TotalSales - TotalBankPayments - TotalCashPayments.
type Summary struct {
	CustomerID string `json:"customerId"`

	TotalSales   decimal.Decimal `json:"totalSales"`
	SaleCount    int             `json:"saleCount"`
	LastSaleDate time.Time       `json:"lastSaleDate"`

	TotalBankPayments decimal.Decimal `json:"totalBankPayments"`
	PaymentCount      int             `json:"paymentCount"`
	LastPaymentDate   time.Time       `json:"lastPaymentDate"`

	TotalCashPayments decimal.Decimal `json:"totalCashPayments"`
	CashPaymentCount  int             `json:"cashPaymentCount"`

	StartingDebt     decimal.Decimal `json:"startingDebt"`
	StartingDebtDate time.Time       `json:"startingDebtDate"`

	CurrentDebt  decimal.Decimal `json:"currentDebt"`
	LastUpdated  time.Time       `json:"lastUpdated"`
	UpdateSource string          `json:"updateSource"`
}

// Store is the read-optimized cache of summaries. Pure data access; the
// aggregation job is the sole writer.
type Store interface {
	Get(ctx context.Context, customerID string) (Summary, error)
	GetAll(ctx context.Context) ([]Summary, error)
	Save(ctx context.Context, s Summary) error
	// SaveAll persists a full recompute in one batched write; the batch is
	// all-or-nothing so a failed job never leaves a partial overwrite.
	SaveAll(ctx context.Context, summaries []Summary) error
	Delete(ctx context.Context, customerID string) error
}
