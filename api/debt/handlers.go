package debt

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"DebtRadar/api/utils"
	"DebtRadar/internal/collab"
	"DebtRadar/internal/config"
	"DebtRadar/internal/debtsummary"
	"DebtRadar/internal/dedup"
	"DebtRadar/internal/ingest"
	"DebtRadar/internal/jobs"
	"DebtRadar/internal/ledger"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

const maxUploadBytes = 32 << 20

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// NewRouter wires the debt service endpoints.
func NewRouter(pipeline *ingest.Pipeline, engine *dedup.Engine, orch *jobs.Orchestrator,
	summaries debtsummary.Store, status *debtsummary.StatusDeriver, master *collab.MasterData) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/debt/payments/upload", UploadPaymentsHandler(pipeline)).Methods("POST")
	router.HandleFunc("/debt/payments/duplicates/analyze", AnalyzeDuplicatesHandler(engine)).Methods("POST")
	router.HandleFunc("/debt/payments/duplicates/remove", RemoveDuplicatesHandler(engine)).Methods("POST")
	router.HandleFunc("/debt/payments/status", PaymentStatusHandler(status)).Methods("GET")
	router.HandleFunc("/debt/jobs/{id}", JobStatusHandler(orch)).Methods("GET")
	router.HandleFunc("/debt/aggregate", TriggerAggregationHandler(orch)).Methods("POST")
	router.HandleFunc("/debt/summaries", ListSummariesHandler(summaries)).Methods("GET")
	router.HandleFunc("/debt/summaries/{customerId}", GetSummaryHandler(summaries)).Methods("GET")
	router.HandleFunc("/debt/starting-debts", AddStartingDebtHandler(master)).Methods("POST")

	return router
}

// UploadPaymentsHandler accepts a multipart spreadsheet upload with a
// source tag and an optional validate_only flag, and returns the
// classification report. The aggregation job id in the report is polled
// separately; the upload never waits for aggregation.
func UploadPaymentsHandler(pipeline *ingest.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			respondError(w, http.StatusBadRequest, "failed to parse multipart form")
			return
		}
		source := ledger.Source(r.FormValue("source"))
		if !source.Valid() {
			respondError(w, http.StatusBadRequest, "source must be one of bank-tbc, bank-bog, excel-manual, manual-cash")
			return
		}
		validateOnly := r.FormValue("validate_only") == "true"

		file, header, err := r.FormFile("file")
		if err != nil {
			respondError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			respondError(w, http.StatusBadRequest, "failed to read file: "+header.Filename)
			return
		}

		report, err := pipeline.Ingest(r.Context(), data, header.Filename, source, validateOnly)
		if errors.Is(err, ingest.ErrStructural) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, report)
	}
}

// JobStatusHandler returns the aggregation job record for polling. An
// unknown id is a 404, not a failure.
func JobStatusHandler(orch *jobs.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		rec, ok := orch.Status(id)
		if !ok {
			respondError(w, http.StatusNotFound, "job not found")
			return
		}
		respondJSON(w, http.StatusOK, rec)
	}
}

// TriggerAggregationHandler starts a manual recompute.
func TriggerAggregationHandler(orch *jobs.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := orch.Trigger("manual")
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
	}
}

// AnalyzeDuplicatesHandler reports fingerprint collisions without deleting.
func AnalyzeDuplicatesHandler(engine *dedup.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := engine.Analyze(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, report)
	}
}

// RemoveDuplicatesHandler deletes redundant duplicate rows and triggers a
// recompute of the derived summaries.
func RemoveDuplicatesHandler(engine *dedup.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := engine.Remove(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, report)
	}
}

// ListSummariesHandler returns the derived debt summaries, ordered by
// customer id and paged by the page/limit query parameters.
func ListSummariesHandler(store debtsummary.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := utils.ExtractPagination(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		summaries, err := store.GetAll(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		sort.Slice(summaries, func(i, j int) bool {
			return summaries[i].CustomerID < summaries[j].CustomerID
		})
		params.SetPaginationStats(len(summaries))
		start, end := params.Window(len(summaries))
		page := summaries[start:end]
		if page == nil {
			page = make([]debtsummary.Summary, 0)
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"summaries":  page,
			"pagination": params,
		})
	}
}

// GetSummaryHandler returns one customer's summary or 404.
func GetSummaryHandler(store debtsummary.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID := mux.Vars(r)["customerId"]
		summary, err := store.Get(r.Context(), customerID)
		if errors.Is(err, debtsummary.ErrNotFound) {
			respondError(w, http.StatusNotFound, "no summary for customer "+customerID)
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, summary)
	}
}

// PaymentStatusHandler returns the recency status map for all customers.
func PaymentStatusHandler(status *debtsummary.StatusDeriver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statuses, err := status.CalculateStatus(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, statuses)
	}
}

// AddStartingDebtHandler records a customer's pre-cutoff balance. An
// existing entry is rejected with 409 before anything is written.
func AddStartingDebtHandler(master *collab.MasterData) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CustomerID string          `json:"customerId"`
			Amount     decimal.Decimal `json:"amount"`
			AsOfDate   string          `json:"asOfDate"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CustomerID == "" {
			respondError(w, http.StatusBadRequest, "invalid json or missing customerId")
			return
		}
		asOf, err := time.Parse(config.DateFormat, req.AsOfDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "asOfDate must be "+config.DateFormat)
			return
		}
		entry := collab.StartingDebt{CustomerID: req.CustomerID, Amount: req.Amount, AsOfDate: asOf}
		if err := master.AddStartingDebt(r.Context(), entry); err != nil {
			if errors.Is(err, collab.ErrConflict) {
				respondError(w, http.StatusConflict, err.Error())
				return
			}
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusCreated, entry)
	}
}
