// Package e2etest runs the import flow end to end over real HTTP: upload,
// analysis, parsing, two-stage classification, dedup and persistence, with
// only the external model and the database stubbed out.
package e2etest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/rmassis/fiflow/internal/domain/categorization"
	importhandler "github.com/rmassis/fiflow/internal/domain/import/handler"
	"github.com/rmassis/fiflow/internal/domain/import/repository"
	importservice "github.com/rmassis/fiflow/internal/domain/import/service"
	"github.com/rmassis/fiflow/internal/domain/taxonomy"
	"github.com/rmassis/fiflow/internal/domain/transaction"
	"github.com/rmassis/fiflow/pkg/metrics"
	"github.com/rmassis/fiflow/pkg/storage"
)

// memoryRepo keeps everything in process so the full HTTP flow runs without
// PostgreSQL.
type memoryRepo struct {
	stored []transaction.Transaction
	jobs   map[uuid.UUID]*repository.ImportJob
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{jobs: make(map[uuid.UUID]*repository.ImportJob)}
}

func (m *memoryRepo) ListByDateRange(_ context.Context, from, to time.Time) ([]transaction.Transaction, error) {
	var out []transaction.Transaction
	for _, tx := range m.stored {
		if !tx.Date.Before(from) && !tx.Date.After(to) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *memoryRepo) BulkInsert(_ context.Context, txs []transaction.Transaction) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(txs))
	for _, tx := range txs {
		tx.ID = uuid.New()
		m.stored = append(m.stored, tx)
		ids = append(ids, tx.ID)
	}
	return ids, nil
}

func (m *memoryRepo) UpdateClassification(_ context.Context, id uuid.UUID, category, subcategory string, confidence float64, needsReview bool) error {
	for i := range m.stored {
		if m.stored[i].ID == id {
			m.stored[i].Category = category
			m.stored[i].Subcategory = subcategory
			m.stored[i].Confidence = confidence
			m.stored[i].NeedsReview = needsReview
		}
	}
	return nil
}

func (m *memoryRepo) ListNeedsReview(_ context.Context, limit int) ([]transaction.Transaction, error) {
	var out []transaction.Transaction
	for _, tx := range m.stored {
		if tx.NeedsReview && len(out) < limit {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *memoryRepo) Delete(_ context.Context, _ uuid.UUID) error { return nil }

func (m *memoryRepo) CreateImportJob(_ context.Context, job *repository.ImportJob) error {
	job.ID = uuid.New()
	job.Status = repository.JobStatusRunning
	job.CreatedAt = time.Now()
	m.jobs[job.ID] = job
	return nil
}

func (m *memoryRepo) FinishImportJob(_ context.Context, job *repository.ImportJob) error {
	now := time.Now()
	job.FinishedAt = &now
	m.jobs[job.ID] = job
	return nil
}

// stubModel stands in for the external model with one fixed answer.
type stubModel struct{}

func (stubModel) Classify(_ context.Context, _ transaction.Transaction) (*categorization.Prediction, error) {
	return &categorization.Prediction{Category: "Transport", Subcategory: "Rideshare", Confidence: 0.9}, nil
}

type moneyJSON struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type importResponse struct {
	JobID        uuid.UUID `json:"jobId"`
	Imported     int       `json:"imported"`
	Duplicates   int       `json:"duplicates"`
	Transactions []struct {
		Description string  `json:"description"`
		Category    string  `json:"category"`
		Subcategory string  `json:"subcategory"`
		Confidence  float64 `json:"confidence"`
		Type        string  `json:"type"`
	} `json:"transactions"`
	TotalIncome  moneyJSON `json:"totalIncome"`
	TotalExpense moneyJSON `json:"totalExpense"`
}

func newTestStack(t *testing.T) (*httptest.Server, *memoryRepo, storage.Archive) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	repo := newMemoryRepo()
	classifier := categorization.NewService(
		stubModel{},
		taxonomy.Default(),
		categorization.NewHeuristicOverride(categorization.DefaultHeuristicConfig()),
		logger,
		categorization.WithLimiter(rate.NewLimiter(rate.Inf, 1)),
	)

	archive, err := storage.NewLocalArchive(t.TempDir())
	require.NoError(t, err)

	svc := importservice.NewImportService(repo, classifier, metrics.New(prometheus.NewRegistry()), logger).
		WithArchive(archive)

	mux := http.NewServeMux()
	importhandler.NewImportHandler(svc, logger).Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, repo, archive
}

func uploadStatement(t *testing.T, url string, filename string, data []byte) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

var statement = []byte("data;descricao;valor\n" +
	"15/01/2024;Uber Trip;-23,50\n" +
	"16/01/2024;RENDIMENTO POUPANCA;12,30\n" +
	"17/01/2024;PIX RECEBIDO JOAO;100,00\n")

func TestFullImportFlow(t *testing.T) {
	server, repo, archive := newTestStack(t)

	t.Run("analyze suggests a usable mapping", func(t *testing.T) {
		resp := uploadStatement(t, server.URL+"/v1/import/analyze", "extrato.csv", statement)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var analysis struct {
			Format       string `json:"format"`
			NeedsMapping bool   `json:"needsMapping"`
			MappingValid bool   `json:"mappingValid"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&analysis))
		assert.Equal(t, "csv", analysis.Format)
		assert.True(t, analysis.NeedsMapping)
		assert.True(t, analysis.MappingValid)
	})

	var jobID uuid.UUID

	t.Run("import persists, classifies and totals the batch", func(t *testing.T) {
		resp := uploadStatement(t, server.URL+"/v1/import", "extrato.csv", statement)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result importResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		jobID = result.JobID

		assert.Equal(t, 3, result.Imported)
		assert.Zero(t, result.Duplicates)
		assert.Len(t, repo.stored, 3)

		byDesc := map[string]int{}
		for i, tx := range result.Transactions {
			byDesc[tx.Description] = i
		}

		uber := result.Transactions[byDesc["Uber Trip"]]
		assert.Equal(t, "Transport", uber.Category)
		assert.Equal(t, "Rideshare", uber.Subcategory)

		// Keyword evidence for yield overrides the model's answer.
		yield := result.Transactions[byDesc["RENDIMENTO POUPANCA"]]
		assert.Equal(t, taxonomy.CategoryYield, yield.Category)
		assert.Equal(t, "Interest", yield.Subcategory)
		assert.InDelta(t, 0.95, yield.Confidence, 1e-9)
		assert.Equal(t, "income", yield.Type)

		assert.Equal(t, int64(11230), result.TotalIncome.Amount)
		assert.Equal(t, "BRL", result.TotalIncome.Currency)
		assert.Equal(t, int64(2350), result.TotalExpense.Amount)
	})

	t.Run("raw upload is archived under the job", func(t *testing.T) {
		r, info, err := archive.Open(context.Background(), jobID)
		require.NoError(t, err)
		defer r.Close()

		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, statement, data)
		assert.Equal(t, "extrato.csv", info.Name)
	})

	t.Run("re-import is all duplicates", func(t *testing.T) {
		resp := uploadStatement(t, server.URL+"/v1/import", "extrato.csv", statement)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result importResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Zero(t, result.Imported)
		assert.Equal(t, 3, result.Duplicates)
		assert.Len(t, repo.stored, 3)
	})
}

func TestInterchangeImportOverHTTP(t *testing.T) {
	server, repo, _ := newTestStack(t)

	data := []byte("<STMTTRN><DTPOSTED>20240115120000<TRNAMT>+1500.00<MEMO>TED RECEBIDA SALARIO</STMTTRN>")
	resp := uploadStatement(t, server.URL+"/v1/import", "extrato.ofx", data)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result importResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Equal(t, 1, result.Imported)
	assert.Equal(t, "income", result.Transactions[0].Type)
	assert.Len(t, repo.stored, 1)
}
