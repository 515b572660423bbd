package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore keeps the ledger in the payments table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) AddBatch(ctx context.Context, payments []Payment) error {
	if len(payments) == 0 {
		return ErrEmptyBatch
	}
	rows := make([][]interface{}, len(payments))
	for i, p := range payments {
		rows[i] = []interface{}{
			p.ID, p.Fingerprint, p.CustomerID,
			p.Amount.String(), p.BalanceAfter.String(),
			p.Date, string(p.Source), p.Description, p.UploadedAt, p.RowIndex,
		}
	}
	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"payments"},
		[]string{"id", "fingerprint", "customer_id", "amount", "balance_after", "payment_date", "source", "description", "uploaded_at", "row_index"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("ledger: batch insert failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Fingerprints(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT fingerprint FROM payments`)
	if err != nil {
		return nil, fmt.Errorf("ledger: fingerprint scan failed: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, err
		}
		out[fp] = struct{}{}
	}
	return out, rows.Err()
}

func (s *PostgresStore) All(ctx context.Context) ([]Payment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, fingerprint, customer_id, amount::text, balance_after::text,
		       payment_date, source, description, uploaded_at, row_index
		FROM payments
		ORDER BY uploaded_at, id`)
	if err != nil {
		return nil, fmt.Errorf("ledger: list failed: %w", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		var amount, balance, source string
		if err := rows.Scan(&p.ID, &p.Fingerprint, &p.CustomerID, &amount, &balance,
			&p.Date, &source, &p.Description, &p.UploadedAt, &p.RowIndex); err != nil {
			return nil, err
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("ledger: bad amount for payment %s: %w", p.ID, err)
		}
		if p.BalanceAfter, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("ledger: bad balance for payment %s: %w", p.ID, err)
		}
		p.Source = Source(source)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteBatch(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, id := range ids {
		batch.Queue(`DELETE FROM payments WHERE id = $1`, id)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	deleted := 0
	for range ids {
		tag, err := br.Exec()
		if err != nil {
			return deleted, fmt.Errorf("ledger: batch delete failed: %w", err)
		}
		deleted += int(tag.RowsAffected())
	}
	return deleted, nil
}

func (s *PostgresStore) WindowTotal(ctx context.Context, source Source, cutoff time.Time) (decimal.Decimal, error) {
	var total string
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM payments
		WHERE source = $1 AND payment_date > $2`,
		string(source), cutoff).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger: window total failed: %w", err)
	}
	return decimal.NewFromString(total)
}

func (s *PostgresStore) CustomerAggregates(ctx context.Context, cutoff time.Time) (map[string]CustomerAggregate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT customer_id,
		       COALESCE(SUM(amount) FILTER (WHERE source <> $1), 0)::text,
		       COUNT(*) FILTER (WHERE source <> $1),
		       COALESCE(MAX(payment_date) FILTER (WHERE source <> $1), 'epoch'::timestamptz),
		       COALESCE(SUM(amount) FILTER (WHERE source = $1), 0)::text,
		       COUNT(*) FILTER (WHERE source = $1),
		       COALESCE(MAX(payment_date) FILTER (WHERE source = $1), 'epoch'::timestamptz)
		FROM payments
		WHERE payment_date > $2
		GROUP BY customer_id`,
		string(SourceManualCash), cutoff)
	if err != nil {
		return nil, fmt.Errorf("ledger: customer aggregates failed: %w", err)
	}
	defer rows.Close()

	out := make(map[string]CustomerAggregate)
	for rows.Next() {
		var id, bankTotal, cashTotal string
		var agg CustomerAggregate
		if err := rows.Scan(&id, &bankTotal, &agg.BankCount, &agg.LastBankDate,
			&cashTotal, &agg.CashCount, &agg.LastCashDate); err != nil {
			return nil, err
		}
		if agg.BankTotal, err = decimal.NewFromString(bankTotal); err != nil {
			return nil, err
		}
		if agg.CashTotal, err = decimal.NewFromString(cashTotal); err != nil {
			return nil, err
		}
		out[id] = agg
	}
	return out, rows.Err()
}

func (s *PostgresStore) LastPaymentDates(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT customer_id, MAX(payment_date)
		FROM payments
		GROUP BY customer_id`)
	if err != nil {
		return nil, fmt.Errorf("ledger: last payment dates failed: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var last time.Time
		if err := rows.Scan(&id, &last); err != nil {
			return nil, err
		}
		out[id] = last
	}
	return out, rows.Err()
}
