// Package dedup retroactively scans the payment ledger for fingerprint
// collisions. The fingerprint key stops new duplicates at ingestion time,
// but rows ingested under the older balance-less key scheme, and
// duplicate-insert races, can only be found by a full scan.
package dedup

import (
	"context"
	"fmt"
	"sort"

	"DebtRadar/internal/ingest"
	"DebtRadar/internal/ledger"
	"DebtRadar/internal/logger"

	"github.com/shopspring/decimal"
)

// Group is one set of payments sharing a fingerprint. Kept is the member
// that survives removal; the rest are redundant copies of the same
// transaction.
type Group struct {
	Fingerprint string           `json:"fingerprint"`
	Kept        ledger.Payment   `json:"kept"`
	Redundant   []ledger.Payment `json:"redundant"`
}

// Report summarizes a duplicate scan or removal.
type Report struct {
	DuplicateGroups int             `json:"duplicateGroups"`
	PaymentsDeleted int             `json:"paymentsDeleted"`
	AmountRecovered decimal.Decimal `json:"amountRecovered"`
	Groups          []Group         `json:"groups,omitempty"`
	JobID           string          `json:"jobId,omitempty"`
}

// Engine finds and removes duplicate ledger rows.
type Engine struct {
	store   ledger.Store
	trigger ingest.AggregationTrigger
}

func NewEngine(store ledger.Store, trigger ingest.AggregationTrigger) *Engine {
	return &Engine{store: store, trigger: trigger}
}

// Analyze reports duplicate groups without touching the ledger.
func (e *Engine) Analyze(ctx context.Context) (*Report, error) {
	payments, err := e.store.All(ctx)
	if err != nil {
		return nil, err
	}
	byFingerprint := make(map[string][]ledger.Payment)
	for _, p := range payments {
		byFingerprint[p.Fingerprint] = append(byFingerprint[p.Fingerprint], p)
	}

	report := &Report{AmountRecovered: decimal.Zero}
	for fp, members := range byFingerprint {
		if len(members) < 2 {
			continue
		}
		// Earliest upload wins; id breaks exact ties so the choice is stable.
		sort.Slice(members, func(i, j int) bool {
			if members[i].UploadedAt.Equal(members[j].UploadedAt) {
				return members[i].ID < members[j].ID
			}
			return members[i].UploadedAt.Before(members[j].UploadedAt)
		})
		group := Group{Fingerprint: fp, Kept: members[0], Redundant: members[1:]}
		report.DuplicateGroups++
		for _, r := range group.Redundant {
			report.AmountRecovered = report.AmountRecovered.Add(r.Amount)
		}
		report.Groups = append(report.Groups, group)
	}
	sort.Slice(report.Groups, func(i, j int) bool {
		return report.Groups[i].Fingerprint < report.Groups[j].Fingerprint
	})
	return report, nil
}

// Remove deletes every redundant member found by Analyze in one batched
// operation, then triggers an aggregation run so the derived summaries
// reflect the corrected ledger.
func (e *Engine) Remove(ctx context.Context) (*Report, error) {
	report, err := e.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, g := range report.Groups {
		for _, r := range g.Redundant {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return report, nil
	}
	deleted, err := e.store.DeleteBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("dedup: removal failed: %w", err)
	}
	report.PaymentsDeleted = deleted

	if deleted > 0 {
		jobID, err := e.trigger.Trigger("dedup-remove")
		if err != nil {
			return nil, fmt.Errorf("dedup: rows deleted but aggregation trigger failed: %w", err)
		}
		report.JobID = jobID
		if logger.GlobalLogger != nil {
			logger.GlobalLogger.LogAudit(fmt.Sprintf(
				"dedup removed %d payments in %d groups, recovered %s, job %s",
				deleted, report.DuplicateGroups, report.AmountRecovered.StringFixed(2), jobID))
		}
	}
	return report, nil
}
