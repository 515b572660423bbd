package debt

import (
	"database/sql"
	"log"
	"net/http"

	"DebtRadar/internal/collab"
	"DebtRadar/internal/config"
	"DebtRadar/internal/debtsummary"
	"DebtRadar/internal/dedup"
	"DebtRadar/internal/ingest"
	"DebtRadar/internal/jobs"
	"DebtRadar/internal/ledger"
	"DebtRadar/internal/serviceiface"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
)

// DebtService owns the reconciliation core: ingestion pipeline, dedup
// engine, aggregation orchestrator and the HTTP surface over them.
type DebtService struct {
	cfg  map[string]interface{}
	db   *sql.DB
	pool *pgxpool.Pool

	orchestrator *jobs.Orchestrator
	cron         *cron.Cron
	server       *http.Server
}

func NewDebtService(cfg map[string]interface{}, db *sql.DB, pool *pgxpool.Pool) serviceiface.Service {
	return &DebtService{cfg: cfg, db: db, pool: pool}
}

func (s *DebtService) Name() string {
	return "debt"
}

func (s *DebtService) Start() error {
	recCfg, err := config.ReconciliationFromEnv()
	if err != nil {
		return err
	}

	ledgerStore := ledger.NewPostgresStore(s.pool)
	summaryStore := debtsummary.NewPostgresStore(s.pool)
	master := collab.NewMasterData(s.db)

	s.orchestrator = jobs.NewOrchestrator(
		jobs.NewRegistry(), ledgerStore, summaryStore, master, master, recCfg)
	pipeline := ingest.NewPipeline(ledgerStore, master, s.orchestrator, recCfg)
	engine := dedup.NewEngine(ledgerStore, s.orchestrator)
	status := debtsummary.NewStatusDeriver(ledgerStore)

	schedCfg := jobs.NewDefaultScheduleConfig()
	if v, ok := s.cfg["aggregation_schedule"].(string); ok && v != "" {
		schedCfg.Schedule = v
	}
	if v, ok := s.cfg["timezone"].(string); ok && v != "" {
		schedCfg.TimeZone = v
	}
	if s.cron, err = jobs.RunAggregationScheduler(schedCfg, s.orchestrator); err != nil {
		return err
	}

	addr := ":6150"
	if v, ok := s.cfg["port"].(string); ok && v != "" {
		addr = ":" + v
	}
	router := NewRouter(pipeline, engine, s.orchestrator, summaryStore, status, master)
	s.server = &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Println("Debt Service started on", addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Debt Service failed: %v", err)
		}
	}()
	return nil
}

func (s *DebtService) Stop() error {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.orchestrator != nil {
		s.orchestrator.Stop()
	}
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
