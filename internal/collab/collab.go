// Package collab holds the interfaces to the master-data side of the
// system: starting debts, tax-authority sales totals and customer name
// resolution. The reconciliation core only ever reads through these.
package collab

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound reports an unknown customer. Absence is an answer, not
	// a failure.
	ErrNotFound = errors.New("collab: not found")
	// ErrConflict reports an attempt to create an entry that already
	// exists; rejected before anything is mutated.
	ErrConflict = errors.New("collab: entry already exists")
)

// StartingDebt is the single balance a customer carried into the
// reconciliation window. Externally managed, read-only here.
type StartingDebt struct {
	CustomerID string          `json:"customerId"`
	Amount     decimal.Decimal `json:"amount"`
	AsOfDate   time.Time       `json:"asOfDate"`
}

// SalesTotal is the externally computed per-customer invoice rollup after
// the sales cutoff.
type SalesTotal struct {
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
	LastDate time.Time       `json:"lastDate"`
}

// StartingDebtProvider serves the pre-cutoff balances.
type StartingDebtProvider interface {
	// DebtAmount returns the starting debt for one customer, or
	// ErrNotFound.
	DebtAmount(ctx context.Context, customerID string) (StartingDebt, error)
	// AllStartingDebts returns every starting debt keyed by customer id,
	// for the full recompute.
	AllStartingDebts(ctx context.Context) (map[string]StartingDebt, error)
}

// SalesTotalsProvider serves the tax-authority sales feed aggregates.
type SalesTotalsProvider interface {
	SalesTotals(ctx context.Context, cutoff time.Time) (map[string]SalesTotal, error)
}

// CustomerNameResolver maps a national tax id from a bank counterparty
// column to the customer's canonical name.
type CustomerNameResolver interface {
	Resolve(ctx context.Context, taxID string) (string, error)
}
