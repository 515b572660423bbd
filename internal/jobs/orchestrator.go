// Package jobs recomputes the per-customer debt summaries in the
// background. Jobs are tracked in an in-memory registry polled by the
// caller; a bounded worker pool caps parallelism.
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"DebtRadar/internal/collab"
	"DebtRadar/internal/config"
	"DebtRadar/internal/debtsummary"
	"DebtRadar/internal/ledger"
	"DebtRadar/internal/logger"
)

// jobTimeout bounds one full recompute. Jobs are not cancellable once
// running; callers poll with their own deadline.
const jobTimeout = 5 * time.Minute

// Orchestrator owns the aggregation worker pool and the job registry.
type Orchestrator struct {
	registry  *Registry
	ledger    ledger.Store
	summaries debtsummary.Store
	debts     collab.StartingDebtProvider
	sales     collab.SalesTotalsProvider
	cfg       config.Reconciliation
	queue     chan string
	done      chan struct{}
}

// NewOrchestrator starts cfg.Workers background workers over a queue of
// cfg.QueueSize pending jobs.
func NewOrchestrator(reg *Registry, store ledger.Store, summaries debtsummary.Store,
	debts collab.StartingDebtProvider, sales collab.SalesTotalsProvider, cfg config.Reconciliation) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = config.DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = config.DefaultQueueSize
	}
	o := &Orchestrator{
		registry:  reg,
		ledger:    store,
		summaries: summaries,
		debts:     debts,
		sales:     sales,
		cfg:       cfg,
		queue:     make(chan string, cfg.QueueSize),
		done:      make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		go o.worker()
	}
	return o
}

// Registry exposes the job registry for status polling.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Trigger creates a PENDING job and hands it to the pool. When the queue
// is full the caller runs the job itself instead of being rejected:
// latency degrades, but every trigger completes.
func (o *Orchestrator) Trigger(source string) (string, error) {
	id := o.registry.Create(source)
	select {
	case o.queue <- id:
	default:
		o.execute(id)
	}
	return id, nil
}

// Status is a pure lookup; an absent id is not an error.
func (o *Orchestrator) Status(jobID string) (Record, bool) {
	return o.registry.Get(jobID)
}

// Stop lets the workers drain; queued jobs already submitted still run.
func (o *Orchestrator) Stop() {
	close(o.done)
}

func (o *Orchestrator) worker() {
	for {
		select {
		case <-o.done:
			return
		case id := <-o.queue:
			o.execute(id)
		}
	}
}

func (o *Orchestrator) execute(id string) {
	if !o.registry.MarkRunning(id) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	res, err := o.recompute(ctx, id)
	if err != nil {
		o.registry.Fail(id, err.Error())
		log.Printf("jobs: aggregation %s failed: %v", id, err)
		if logger.GlobalLogger != nil {
			logger.GlobalLogger.LogAudit(fmt.Sprintf("aggregation job %s failed: %v", id, err))
		}
		return
	}
	res.DurationMs = time.Since(start).Milliseconds()
	o.registry.Complete(id, res)
	log.Printf("jobs: aggregation %s completed: %d customers (%d new, %d updated, %d unchanged) in %dms",
		id, res.TotalCustomers, res.NewCount, res.UpdatedCount, res.UnchangedCount, res.DurationMs)
}

// recompute rebuilds every customer's summary from scratch and persists
// the whole set in one batched write. Customers are processed sequentially
// within the job; the write volume is small relative to the correctness
// risk of interleaved partial writes.
func (o *Orchestrator) recompute(ctx context.Context, id string) (Result, error) {
	o.registry.SetProgress(id, "loading sales", 10)
	sales, err := o.sales.SalesTotals(ctx, o.cfg.SalesCutoff)
	if err != nil {
		return Result{}, fmt.Errorf("loading sales totals: %w", err)
	}

	o.registry.SetProgress(id, "loading payments", 30)
	payments, err := o.ledger.CustomerAggregates(ctx, o.cfg.PaymentCutoff)
	if err != nil {
		return Result{}, fmt.Errorf("loading payment aggregates: %w", err)
	}

	o.registry.SetProgress(id, "loading starting debts", 50)
	debts, err := o.debts.AllStartingDebts(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("loading starting debts: %w", err)
	}

	o.registry.SetProgress(id, "computing summaries", 70)
	prior, err := o.summaries.GetAll(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("loading prior summaries: %w", err)
	}
	priorByID := make(map[string]debtsummary.Summary, len(prior))
	for _, s := range prior {
		priorByID[s.CustomerID] = s
	}

	customers := make(map[string]struct{})
	for c := range sales {
		customers[c] = struct{}{}
	}
	for c := range payments {
		customers[c] = struct{}{}
	}
	for c := range debts {
		customers[c] = struct{}{}
	}

	rec, _ := o.registry.Get(id)
	now := time.Now().UTC()
	res := Result{TotalCustomers: len(customers)}
	summaries := make([]debtsummary.Summary, 0, len(customers))
	for customerID := range customers {
		s := buildSummary(customerID, sales[customerID], payments[customerID], debts[customerID])
		s.LastUpdated = now
		s.UpdateSource = rec.Source

		// New/updated/unchanged is observability only. Every summary is
		// written regardless, keeping the derived store idempotent and
		// self-healing against partial prior corruption.
		old, existed := priorByID[customerID]
		switch {
		case !existed:
			res.NewCount++
		case summaryChanged(old, s):
			res.UpdatedCount++
		default:
			res.UnchangedCount++
		}
		summaries = append(summaries, s)
	}

	o.registry.SetProgress(id, "persisting", 90)
	if err := o.summaries.SaveAll(ctx, summaries); err != nil {
		return Result{}, fmt.Errorf("persisting summaries: %w", err)
	}
	return res, nil
}

func buildSummary(customerID string, sale collab.SalesTotal, agg ledger.CustomerAggregate, debt collab.StartingDebt) debtsummary.Summary {
	s := debtsummary.Summary{
		CustomerID: customerID,

		TotalSales:   sale.Total,
		SaleCount:    sale.Count,
		LastSaleDate: sale.LastDate,

		TotalBankPayments: agg.BankTotal,
		PaymentCount:      agg.BankCount,
		LastPaymentDate:   agg.LastPayment(),

		TotalCashPayments: agg.CashTotal,
		CashPaymentCount:  agg.CashCount,

		StartingDebt:     debt.Amount,
		StartingDebtDate: debt.AsOfDate,
	}
	s.CurrentDebt = s.StartingDebt.
		Add(s.TotalSales).
		Sub(s.TotalBankPayments).
		Sub(s.TotalCashPayments).
		Round(2)
	return s
}

func summaryChanged(prev, next debtsummary.Summary) bool {
	return !prev.CurrentDebt.Equal(next.CurrentDebt) ||
		prev.SaleCount != next.SaleCount ||
		prev.PaymentCount != next.PaymentCount ||
		prev.CashPaymentCount != next.CashPaymentCount
}
