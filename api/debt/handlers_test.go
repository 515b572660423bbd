package debt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"DebtRadar/api/utils"
	"DebtRadar/internal/collab"
	"DebtRadar/internal/config"
	"DebtRadar/internal/debtsummary"
	"DebtRadar/internal/dedup"
	"DebtRadar/internal/ingest"
	"DebtRadar/internal/jobs"
	"DebtRadar/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct{}

func (fakeResolver) Resolve(context.Context, string) (string, error) {
	return "", errors.New("no resolver in tests")
}

type fakeDebts struct{}

func (fakeDebts) DebtAmount(context.Context, string) (collab.StartingDebt, error) {
	return collab.StartingDebt{}, collab.ErrNotFound
}
func (fakeDebts) AllStartingDebts(context.Context) (map[string]collab.StartingDebt, error) {
	return map[string]collab.StartingDebt{}, nil
}

type fakeSales struct{}

func (fakeSales) SalesTotals(context.Context, time.Time) (map[string]collab.SalesTotal, error) {
	return map[string]collab.SalesTotal{}, nil
}

type testEnv struct {
	router    http.Handler
	ledger    *ledger.MemoryStore
	summaries *debtsummary.MemoryStore
	orch      *jobs.Orchestrator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Reconciliation{
		PaymentCutoff:       time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		SalesCutoff:         time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		BatchSize:           config.DefaultBatchSize,
		Workers:             1,
		QueueSize:           2,
		IncludeBalanceInKey: true,
	}
	store := ledger.NewMemoryStore()
	summaries := debtsummary.NewMemoryStore()
	orch := jobs.NewOrchestrator(jobs.NewRegistry(), store, summaries, fakeDebts{}, fakeSales{}, cfg)
	t.Cleanup(orch.Stop)

	pipeline := ingest.NewPipeline(store, fakeResolver{}, orch, cfg)
	engine := dedup.NewEngine(store, orch)
	status := debtsummary.NewStatusDeriver(store)

	return &testEnv{
		router:    NewRouter(pipeline, engine, orch, summaries, status, nil),
		ledger:    store,
		summaries: summaries,
		orch:      orch,
	}
}

func multipartUpload(t *testing.T, csv, source, validateOnly string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	part, err := form.CreateFormFile("file", "statement.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, form.WriteField("source", source))
	if validateOnly != "" {
		require.NoError(t, form.WriteField("validate_only", validateOnly))
	}
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/debt/payments/upload", body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	return req
}

const sampleCSV = "Date,Counterparty,Description,Amount,Balance\n" +
	"13/05/2025,Shop Vake LTD,invoice 17,1410.00,2322.46\n"

func TestUploadPayments(t *testing.T) {
	env := newTestEnv(t)

	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, multipartUpload(t, sampleCSV, "bank-tbc", ""))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var report ingest.UploadReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Added)
	assert.NotEmpty(t, report.JobID)

	stored, _ := env.ledger.All(context.Background())
	assert.Len(t, stored, 1)
}

func TestUploadPayments_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	t.Run("unknown source", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.router.ServeHTTP(rr, multipartUpload(t, sampleCSV, "western-union", ""))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		body := &bytes.Buffer{}
		form := multipart.NewWriter(body)
		require.NoError(t, form.WriteField("source", "bank-tbc"))
		require.NoError(t, form.Close())
		req := httptest.NewRequest(http.MethodPost, "/debt/payments/upload", body)
		req.Header.Set("Content-Type", form.FormDataContentType())

		rr := httptest.NewRecorder()
		env.router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("structurally broken file", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.router.ServeHTTP(rr, multipartUpload(t, "Foo,Bar\n1,2\n", "bank-tbc", ""))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestUploadPayments_ValidateOnly(t *testing.T) {
	env := newTestEnv(t)

	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, multipartUpload(t, sampleCSV, "bank-tbc", "true"))
	require.Equal(t, http.StatusOK, rr.Code)

	var report ingest.UploadReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.True(t, report.ValidateOnly)
	assert.Empty(t, report.JobID)

	stored, _ := env.ledger.All(context.Background())
	assert.Empty(t, stored, "validation run must not persist")
}

func TestAggregateAndPollJob(t *testing.T) {
	env := newTestEnv(t)

	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/debt/aggregate", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)

	var accepted map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &accepted))
	jobID := accepted["jobId"]
	require.NotEmpty(t, jobID)

	var rec jobs.Record
	require.Eventually(t, func() bool {
		poll := httptest.NewRecorder()
		env.router.ServeHTTP(poll, httptest.NewRequest(http.MethodGet, "/debt/jobs/"+jobID, nil))
		if poll.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(poll.Body.Bytes(), &rec); err != nil {
			return false
		}
		return rec.Status.Terminal()
	}, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, jobs.StatusCompleted, rec.Status)
}

func TestJobStatus_Unknown(t *testing.T) {
	env := newTestEnv(t)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debt/jobs/no-such-id", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSummaries(t *testing.T) {
	env := newTestEnv(t)

	t.Run("empty list is an empty page", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debt/summaries", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Summaries  []debtsummary.Summary  `json:"summaries"`
			Pagination utils.PaginationParams `json:"pagination"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Empty(t, resp.Summaries)
		assert.Equal(t, 0, resp.Pagination.TotalRecords)
	})

	require.NoError(t, env.summaries.Save(context.Background(), debtsummary.Summary{
		CustomerID:  "shop",
		CurrentDebt: decimal.RequireFromString("1100"),
	}))

	t.Run("list pages by customer id", func(t *testing.T) {
		require.NoError(t, env.summaries.Save(context.Background(), debtsummary.Summary{CustomerID: "another"}))
		rr := httptest.NewRecorder()
		env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debt/summaries?page=1&limit=1", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Summaries  []debtsummary.Summary  `json:"summaries"`
			Pagination utils.PaginationParams `json:"pagination"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp.Summaries, 1)
		assert.Equal(t, "another", resp.Summaries[0].CustomerID)
		assert.Equal(t, 2, resp.Pagination.TotalRecords)
		assert.Equal(t, 2, resp.Pagination.TotalPages)
	})

	t.Run("bad page parameter", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debt/summaries?page=zero", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("get one", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debt/summaries/shop", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var s debtsummary.Summary
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &s))
		assert.True(t, decimal.RequireFromString("1100").Equal(s.CurrentDebt))
	})

	t.Run("unknown customer is 404", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debt/summaries/ghost", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestPaymentStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	yellowDate := time.Now().UTC().AddDate(0, 0, -20)
	require.NoError(t, env.ledger.AddBatch(context.Background(), []ledger.Payment{{
		ID: "p1", Fingerprint: "f1", CustomerID: "shop",
		Amount: decimal.RequireFromString("100"),
		Date:   yellowDate, Source: ledger.SourceBankTBC,
	}}))

	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debt/payments/status", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var statuses map[string]debtsummary.PaymentStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &statuses))
	require.Contains(t, statuses, "shop")
	assert.Equal(t, debtsummary.StatusYellow, statuses["shop"].StatusColor)
}

func TestDuplicateEndpoints(t *testing.T) {
	env := newTestEnv(t)
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, env.ledger.AddBatch(context.Background(), []ledger.Payment{
		{ID: "a", Fingerprint: "f1", CustomerID: "shop", Amount: decimal.RequireFromString("100"),
			Date: t0, Source: ledger.SourceBankTBC, UploadedAt: t0},
		{ID: "b", Fingerprint: "f1", CustomerID: "shop", Amount: decimal.RequireFromString("100"),
			Date: t0, Source: ledger.SourceBankTBC, UploadedAt: t0.Add(time.Hour)},
	}))

	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/debt/payments/duplicates/analyze", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var analysis dedup.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &analysis))
	assert.Equal(t, 1, analysis.DuplicateGroups)
	assert.Equal(t, 0, analysis.PaymentsDeleted)

	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/debt/payments/duplicates/remove", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var removal dedup.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &removal))
	assert.Equal(t, 1, removal.PaymentsDeleted)
	assert.NotEmpty(t, removal.JobID)

	left, _ := env.ledger.All(context.Background())
	require.Len(t, left, 1)
	assert.Equal(t, "a", left[0].ID)
}
