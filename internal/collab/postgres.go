package collab

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MasterData reads starting debts, sales totals and customer names from
// the master-data schema over a plain database/sql handle.
type MasterData struct {
	db *sql.DB
}

func NewMasterData(db *sql.DB) *MasterData {
	return &MasterData{db: db}
}

func (m *MasterData) DebtAmount(ctx context.Context, customerID string) (StartingDebt, error) {
	var d StartingDebt
	var amount string
	err := m.db.QueryRowContext(ctx, `
		SELECT customer_id, amount::text, as_of_date
		FROM starting_debts
		WHERE customer_id = $1`, customerID).
		Scan(&d.CustomerID, &amount, &d.AsOfDate)
	if errors.Is(err, sql.ErrNoRows) {
		return StartingDebt{}, ErrNotFound
	}
	if err != nil {
		return StartingDebt{}, fmt.Errorf("collab: starting debt lookup failed: %w", err)
	}
	if d.Amount, err = decimal.NewFromString(amount); err != nil {
		return StartingDebt{}, fmt.Errorf("collab: bad starting debt amount for %s: %w", customerID, err)
	}
	return d, nil
}

func (m *MasterData) AllStartingDebts(ctx context.Context) (map[string]StartingDebt, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT customer_id, amount::text, as_of_date FROM starting_debts`)
	if err != nil {
		return nil, fmt.Errorf("collab: starting debts scan failed: %w", err)
	}
	defer rows.Close()

	out := make(map[string]StartingDebt)
	for rows.Next() {
		var d StartingDebt
		var amount string
		if err := rows.Scan(&d.CustomerID, &amount, &d.AsOfDate); err != nil {
			return nil, err
		}
		if d.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("collab: bad starting debt amount for %s: %w", d.CustomerID, err)
		}
		out[d.CustomerID] = d
	}
	return out, rows.Err()
}

// AddStartingDebt records a new starting balance. An existing entry for
// the customer is a conflict and nothing is written.
func (m *MasterData) AddStartingDebt(ctx context.Context, d StartingDebt) error {
	var exists bool
	err := m.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM starting_debts WHERE customer_id = $1)`, d.CustomerID).
		Scan(&exists)
	if err != nil {
		return fmt.Errorf("collab: starting debt existence check failed: %w", err)
	}
	if exists {
		return fmt.Errorf("starting debt for %s: %w", d.CustomerID, ErrConflict)
	}
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO starting_debts (customer_id, amount, as_of_date) VALUES ($1, $2, $3)`,
		d.CustomerID, d.Amount.String(), d.AsOfDate)
	if err != nil {
		return fmt.Errorf("collab: starting debt insert failed: %w", err)
	}
	return nil
}

func (m *MasterData) SalesTotals(ctx context.Context, cutoff time.Time) (map[string]SalesTotal, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT customer_id, COALESCE(SUM(amount), 0)::text, COUNT(*), MAX(invoice_date)
		FROM sales_invoices
		WHERE invoice_date > $1
		GROUP BY customer_id`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("collab: sales totals scan failed: %w", err)
	}
	defer rows.Close()

	out := make(map[string]SalesTotal)
	for rows.Next() {
		var id, total string
		var st SalesTotal
		if err := rows.Scan(&id, &total, &st.Count, &st.LastDate); err != nil {
			return nil, err
		}
		if st.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("collab: bad sales total for %s: %w", id, err)
		}
		out[id] = st
	}
	return out, rows.Err()
}

func (m *MasterData) Resolve(ctx context.Context, taxID string) (string, error) {
	var name string
	err := m.db.QueryRowContext(ctx, `
		SELECT name FROM customers WHERE tax_id = $1`, taxID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("collab: customer name lookup failed: %w", err)
	}
	return name, nil
}
