package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	DefaultTimeZone = "Asia/Tbilisi"

	// Aggregation worker pool. Jobs beyond the queue run synchronously on
	// the caller instead of being rejected.
	DefaultWorkers   = 2
	DefaultQueueSize = 5

	// Nightly full recompute so summaries self-heal without uploads.
	DefaultAggregationSchedule = "0 3 * * *"

	// Upper bound on rows per batched ledger write.
	DefaultBatchSize = 500

	DateFormat = "2006-01-02"
)

// Reconciliation carries the cutoff dates and sizing knobs for one
// ingestion or aggregation run. It is passed in explicitly so a job is
// reproducible given its inputs; there is no process-wide mutable cutoff.
type Reconciliation struct {
	// PaymentCutoff: payments dated on or before this day are part of the
	// starting balance, not the itemized ledger window.
	PaymentCutoff time.Time
	// SalesCutoff: invoices after this day feed the sales totals.
	SalesCutoff time.Time

	BatchSize int
	Workers   int
	QueueSize int

	// IncludeBalanceInKey mirrors fingerprint.Builder.IncludeBalance; off
	// only while re-scanning data ingested under the legacy key scheme.
	IncludeBalanceInKey bool
}

// ReconciliationFromEnv builds the run configuration from environment
// variables, falling back to defaults for everything optional.
// PAYMENT_CUTOFF_DATE is required; SALES_CUTOFF_DATE defaults to it.
func ReconciliationFromEnv() (Reconciliation, error) {
	cfg := Reconciliation{
		BatchSize:           DefaultBatchSize,
		Workers:             DefaultWorkers,
		QueueSize:           DefaultQueueSize,
		IncludeBalanceInKey: true,
	}

	raw := os.Getenv("PAYMENT_CUTOFF_DATE")
	if raw == "" {
		return cfg, fmt.Errorf("PAYMENT_CUTOFF_DATE is required (format %s)", DateFormat)
	}
	cutoff, err := time.Parse(DateFormat, raw)
	if err != nil {
		return cfg, fmt.Errorf("invalid PAYMENT_CUTOFF_DATE %q: %w", raw, err)
	}
	cfg.PaymentCutoff = cutoff
	cfg.SalesCutoff = cutoff

	if raw := os.Getenv("SALES_CUTOFF_DATE"); raw != "" {
		if cfg.SalesCutoff, err = time.Parse(DateFormat, raw); err != nil {
			return cfg, fmt.Errorf("invalid SALES_CUTOFF_DATE %q: %w", raw, err)
		}
	}
	if v := envInt("AGGREGATION_WORKERS"); v > 0 {
		cfg.Workers = v
	}
	if v := envInt("AGGREGATION_QUEUE_SIZE"); v > 0 {
		cfg.QueueSize = v
	}
	if v := envInt("LEDGER_BATCH_SIZE"); v > 0 {
		cfg.BatchSize = v
	}
	if raw := os.Getenv("FINGERPRINT_INCLUDE_BALANCE"); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			cfg.IncludeBalanceInKey = b
		}
	}
	return cfg, nil
}

func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}
