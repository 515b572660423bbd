// Package ingest turns uploaded bank and cash spreadsheets into ledger
// payment rows. Structural problems reject the whole upload; bad rows are
// skipped and reported, never fatal.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"DebtRadar/internal/checksum"
	"DebtRadar/internal/collab"
	"DebtRadar/internal/config"
	"DebtRadar/internal/fingerprint"
	"DebtRadar/internal/ledger"
	"DebtRadar/internal/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrStructural marks an upload that is rejected as a whole: unreadable
// file, no data rows, or required columns missing.
var ErrStructural = errors.New("ingest: malformed upload")

// AggregationTrigger enqueues a debt summary recompute after the ledger
// changed.
type AggregationTrigger interface {
	Trigger(source string) (string, error)
}

// RowIssue describes one skipped row.
type RowIssue struct {
	RowIndex int    `json:"rowIndex"`
	Reason   string `json:"reason"`
}

// UploadReport is returned to the caller after classification. In
// validation mode nothing is persisted and ValidationDifference compares
// the file's window total against what the ledger already holds.
type UploadReport struct {
	Source       ledger.Source `json:"source"`
	FileHash     string        `json:"fileHash"`
	ValidateOnly bool          `json:"validateOnly"`

	TotalRows    int        `json:"totalRows"`
	Added        int        `json:"added"`
	Duplicates   int        `json:"duplicates"`
	BeforeWindow int        `json:"beforeWindow"`
	Invalid      int        `json:"invalid"`
	InvalidRows  []RowIssue `json:"invalidRows,omitempty"`

	// Tax ids the resolver could not map to a customer name; the rows are
	// kept under the tax id and flagged for downstream resolution.
	UnresolvedTaxIDs []string `json:"unresolvedTaxIds,omitempty"`

	ExcelTotalAll    decimal.Decimal `json:"excelTotalAll"`
	ExcelTotalWindow decimal.Decimal `json:"excelTotalWindow"`
	TotalAdded       decimal.Decimal `json:"totalAdded"`

	ValidationDifference decimal.Decimal `json:"validationDifference"`
	ValidationPassed     bool            `json:"validationPassed"`

	JobID string `json:"jobId,omitempty"`
}

// Pipeline ingests payment spreadsheets into the ledger.
type Pipeline struct {
	store    ledger.Store
	resolver collab.CustomerNameResolver
	trigger  AggregationTrigger
	builder  fingerprint.Builder
	cfg      config.Reconciliation
	now      func() time.Time
}

func NewPipeline(store ledger.Store, resolver collab.CustomerNameResolver, trigger AggregationTrigger, cfg config.Reconciliation) *Pipeline {
	return &Pipeline{
		store:    store,
		resolver: resolver,
		trigger:  trigger,
		builder:  fingerprint.Builder{IncludeBalance: cfg.IncludeBalanceInKey},
		cfg:      cfg,
		now:      time.Now,
	}
}

// Ingest parses, classifies and (outside validation mode) persists the
// rows of one uploaded spreadsheet, then triggers the aggregation job.
func (p *Pipeline) Ingest(ctx context.Context, fileBytes []byte, filename string, source ledger.Source, validateOnly bool) (*UploadReport, error) {
	if !source.Valid() {
		return nil, fmt.Errorf("%w: unknown source %q", ErrStructural, source)
	}
	rows, err := parseFile(fileBytes, filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStructural, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: no data rows", ErrStructural)
	}
	cols, err := detectColumns(rows[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStructural, err)
	}

	existing, err := p.store.Fingerprints(ctx)
	if err != nil {
		return nil, err
	}

	report := &UploadReport{
		Source:       source,
		FileHash:     checksum.FileHash(fileBytes),
		ValidateOnly: validateOnly,
	}
	seen := make(map[string]struct{})
	unresolved := make(map[string]struct{})
	var toAdd []ledger.Payment

	for i, row := range rows[1:] {
		rowIndex := i + 2 // spreadsheet numbering, header is row 1
		if allEmptyRow(row) {
			continue
		}
		report.TotalRows++

		amount, err := parseAmount(cell(row, cols.amount))
		if err != nil {
			report.skipRow(rowIndex, err.Error())
			continue
		}
		report.ExcelTotalAll = report.ExcelTotalAll.Add(amount)

		date, err := parseDate(cell(row, cols.date))
		if err != nil {
			report.skipRow(rowIndex, err.Error())
			continue
		}

		counterparty := normalizeCell(cell(row, cols.counterparty))
		if counterparty == "" {
			report.skipRow(rowIndex, "empty counterparty")
			continue
		}
		customerID := counterparty
		if looksLikeTaxID(counterparty) {
			name, rErr := p.resolver.Resolve(ctx, counterparty)
			if rErr != nil {
				unresolved[counterparty] = struct{}{}
			} else {
				customerID = name
			}
		}

		balance := decimal.Zero
		if cols.balance >= 0 {
			if b, bErr := parseAmount(cell(row, cols.balance)); bErr == nil {
				balance = b
			}
		}

		if !date.After(p.cfg.PaymentCutoff) {
			report.BeforeWindow++
			continue
		}
		report.ExcelTotalWindow = report.ExcelTotalWindow.Add(amount)

		fp := p.builder.Build(date, amount, balance, customerID)
		if _, dup := existing[fp]; dup {
			report.Duplicates++
			continue
		}
		if _, dup := seen[fp]; dup {
			report.Duplicates++
			continue
		}
		seen[fp] = struct{}{}

		report.Added++
		report.TotalAdded = report.TotalAdded.Add(amount)
		toAdd = append(toAdd, ledger.Payment{
			ID:           uuid.New().String(),
			Fingerprint:  fp,
			CustomerID:   fingerprint.NormalizeCustomerID(customerID),
			Amount:       amount,
			BalanceAfter: balance,
			Date:         date,
			Source:       source,
			Description:  normalizeCell(cell(row, cols.description)),
			RowIndex:     rowIndex,
		})
	}
	for taxID := range unresolved {
		report.UnresolvedTaxIDs = append(report.UnresolvedTaxIDs, taxID)
	}

	if validateOnly {
		stored, err := p.store.WindowTotal(ctx, source, p.cfg.PaymentCutoff)
		if err != nil {
			return nil, err
		}
		report.ValidationDifference = report.ExcelTotalWindow.Sub(stored)
		report.ValidationPassed = report.ValidationDifference.Abs().LessThan(decimal.RequireFromString("0.005"))
		return report, nil
	}

	if len(toAdd) > 0 {
		uploadedAt := p.now().UTC()
		for i := range toAdd {
			toAdd[i].UploadedAt = uploadedAt
		}
		for start := 0; start < len(toAdd); start += p.cfg.BatchSize {
			end := start + p.cfg.BatchSize
			if end > len(toAdd) {
				end = len(toAdd)
			}
			if err := p.store.AddBatch(ctx, toAdd[start:end]); err != nil {
				return nil, err
			}
		}
		jobID, err := p.trigger.Trigger("upload:" + string(source))
		if err != nil {
			return nil, fmt.Errorf("ingest: rows persisted but aggregation trigger failed: %w", err)
		}
		report.JobID = jobID

		if logger.GlobalLogger != nil {
			logger.GlobalLogger.LogAudit(fmt.Sprintf(
				"ingested %d payments from %s upload (file %s), job %s",
				report.Added, source, report.FileHash[:12], jobID))
		}
		log.Printf("ingest: %s upload added=%d duplicate=%d before-window=%d invalid=%d",
			source, report.Added, report.Duplicates, report.BeforeWindow, report.Invalid)
	}
	return report, nil
}

func (r *UploadReport) skipRow(rowIndex int, reason string) {
	r.Invalid++
	r.InvalidRows = append(r.InvalidRows, RowIssue{RowIndex: rowIndex, Reason: reason})
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
