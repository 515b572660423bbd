package debtsummary

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore keeps summaries in the debt_summaries table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const upsertSummary = `
	INSERT INTO debt_summaries (
		customer_id, total_sales, sale_count, last_sale_date,
		total_bank_payments, payment_count, last_payment_date,
		total_cash_payments, cash_payment_count,
		starting_debt, starting_debt_date,
		current_debt, last_updated, update_source
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	ON CONFLICT (customer_id) DO UPDATE SET
		total_sales = EXCLUDED.total_sales,
		sale_count = EXCLUDED.sale_count,
		last_sale_date = EXCLUDED.last_sale_date,
		total_bank_payments = EXCLUDED.total_bank_payments,
		payment_count = EXCLUDED.payment_count,
		last_payment_date = EXCLUDED.last_payment_date,
		total_cash_payments = EXCLUDED.total_cash_payments,
		cash_payment_count = EXCLUDED.cash_payment_count,
		starting_debt = EXCLUDED.starting_debt,
		starting_debt_date = EXCLUDED.starting_debt_date,
		current_debt = EXCLUDED.current_debt,
		last_updated = EXCLUDED.last_updated,
		update_source = EXCLUDED.update_source`

const selectSummary = `
	SELECT customer_id, total_sales::text, sale_count, last_sale_date,
	       total_bank_payments::text, payment_count, last_payment_date,
	       total_cash_payments::text, cash_payment_count,
	       starting_debt::text, starting_debt_date,
	       current_debt::text, last_updated, update_source
	FROM debt_summaries`

func upsertArgs(s Summary) []interface{} {
	return []interface{}{
		s.CustomerID, s.TotalSales.String(), s.SaleCount, s.LastSaleDate,
		s.TotalBankPayments.String(), s.PaymentCount, s.LastPaymentDate,
		s.TotalCashPayments.String(), s.CashPaymentCount,
		s.StartingDebt.String(), s.StartingDebtDate,
		s.CurrentDebt.String(), s.LastUpdated, s.UpdateSource,
	}
}

func scanSummary(row pgx.Row) (Summary, error) {
	var s Summary
	var sales, bank, cash, starting, current string
	err := row.Scan(&s.CustomerID, &sales, &s.SaleCount, &s.LastSaleDate,
		&bank, &s.PaymentCount, &s.LastPaymentDate,
		&cash, &s.CashPaymentCount,
		&starting, &s.StartingDebtDate,
		&current, &s.LastUpdated, &s.UpdateSource)
	if err != nil {
		return Summary{}, err
	}
	for _, pair := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{sales, &s.TotalSales}, {bank, &s.TotalBankPayments}, {cash, &s.TotalCashPayments},
		{starting, &s.StartingDebt}, {current, &s.CurrentDebt},
	} {
		d, err := decimal.NewFromString(pair.raw)
		if err != nil {
			return Summary{}, fmt.Errorf("debtsummary: bad amount for %s: %w", s.CustomerID, err)
		}
		*pair.dst = d
	}
	return s, nil
}

func (p *PostgresStore) Get(ctx context.Context, customerID string) (Summary, error) {
	row := p.pool.QueryRow(ctx, selectSummary+` WHERE customer_id = $1`, customerID)
	s, err := scanSummary(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Summary{}, ErrNotFound
	}
	if err != nil {
		return Summary{}, fmt.Errorf("debtsummary: lookup failed: %w", err)
	}
	return s, nil
}

func (p *PostgresStore) GetAll(ctx context.Context) ([]Summary, error) {
	rows, err := p.pool.Query(ctx, selectSummary+` ORDER BY customer_id`)
	if err != nil {
		return nil, fmt.Errorf("debtsummary: list failed: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Save(ctx context.Context, s Summary) error {
	if _, err := p.pool.Exec(ctx, upsertSummary, upsertArgs(s)...); err != nil {
		return fmt.Errorf("debtsummary: save failed: %w", err)
	}
	return nil
}

// SaveAll upserts the full recompute inside one transaction so either
// every summary of the run becomes visible or none does.
func (p *PostgresStore) SaveAll(ctx context.Context, summaries []Summary) error {
	if len(summaries) == 0 {
		return nil
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("debtsummary: begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, s := range summaries {
		batch.Queue(upsertSummary, upsertArgs(s)...)
	}
	br := tx.SendBatch(ctx, batch)
	for range summaries {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("debtsummary: batch save failed: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("debtsummary: batch close failed: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("debtsummary: commit failed: %w", err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, customerID string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM debt_summaries WHERE customer_id = $1`, customerID); err != nil {
		return fmt.Errorf("debtsummary: delete failed: %w", err)
	}
	return nil
}
