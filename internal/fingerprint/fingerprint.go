package fingerprint

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	separator  = "|"
	dateLayout = "2006-01-02"
	nbsp       = " "
)

// Builder derives the identity key for a payment transaction.
//
// IncludeBalance controls whether the post-transaction account balance is
// part of the key. Two same-day, same-amount payments from the same customer
// can only be told apart by the balance column, so production keeps this on.
// The switch exists for re-scanning ledgers ingested under the older
// balance-less scheme.
type Builder struct {
	IncludeBalance bool
}

// NewBuilder returns a Builder with the canonical key layout.
func NewBuilder() Builder {
	return Builder{IncludeBalance: true}
}

// Build returns the fingerprint for a transaction. It is pure and total:
// zero-valued amounts and balances are encoded as 0, the customer id is
// trimmed and whitespace-collapsed before use.
func (b Builder) Build(date time.Time, amount, balanceAfter decimal.Decimal, customerID string) string {
	parts := []string{
		date.Format(dateLayout),
		strconv.FormatInt(MinorUnits(amount), 10),
		NormalizeCustomerID(customerID),
	}
	if b.IncludeBalance {
		parts = append(parts, strconv.FormatInt(MinorUnits(balanceAfter), 10))
	}
	return strings.Join(parts, separator)
}

// MinorUnits converts a monetary value to integer minor units (cents),
// rounding half up so spreadsheet float artifacts never shift the key.
func MinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// NormalizeCustomerID trims, strips non-breaking spaces and collapses
// internal whitespace.
func NormalizeCustomerID(s string) string {
	s = strings.ReplaceAll(s, nbsp, " ")
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

// ExtractDate recovers the transaction date from a fingerprint. Used for
// diagnostics only; the ledger remains the source of truth.
func ExtractDate(fp string) (time.Time, bool) {
	parts := strings.Split(fp, separator)
	if len(parts) < 3 {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, parts[0])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ExtractCustomerID recovers the normalized customer id from a fingerprint.
func ExtractCustomerID(fp string) (string, bool) {
	parts := strings.Split(fp, separator)
	if len(parts) < 3 {
		return "", false
	}
	return parts[2], true
}
