// Package service orchestrates the import pipeline: detection, optional
// mapping configuration, parsing, classification, deduplication and the
// final bulk write.
package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rmassis/fiflow/internal/domain/import/dedup"
	"github.com/rmassis/fiflow/internal/domain/import/parser"
	"github.com/rmassis/fiflow/internal/domain/import/repository"
	"github.com/rmassis/fiflow/internal/domain/import/sniffer"
	"github.com/rmassis/fiflow/internal/domain/taxonomy"
	"github.com/rmassis/fiflow/internal/domain/transaction"
	"github.com/rmassis/fiflow/pkg/metrics"
	"github.com/rmassis/fiflow/pkg/money"
	"github.com/rmassis/fiflow/pkg/storage"
)

// tracerName identifies this package's spans.
const tracerName = "fiflow/import"

// previewRows caps the sample returned by Analyze.
const previewRows = 5

// ClassifierService is the classification stage consumed by the pipeline.
type ClassifierService interface {
	ClassifyBatch(ctx context.Context, txs []transaction.Transaction) ([]transaction.Transaction, error)
}

// MappingRequiredError reports that a delimited or spreadsheet file needs a
// confirmed column mapping before parsing can start. Suggested carries the
// detector's best guess as the starting point for the caller.
type MappingRequiredError struct {
	Format    parser.Format  `json:"format"`
	Suggested *parser.Config `json:"suggested"`
}

func (e *MappingRequiredError) Error() string {
	return fmt.Sprintf("column mapping required for %s file", e.Format)
}

// Analysis is the outcome of inspecting an uploaded file without importing
// it: the detected format and, for mapped formats, a suggested configuration
// plus a short preview.
type Analysis struct {
	Format       parser.Format  `json:"format"`
	NeedsMapping bool           `json:"needsMapping"`
	Suggested    *parser.Config `json:"suggested,omitempty"`
	MappingValid bool           `json:"mappingValid"`
	SampleRows   []string       `json:"sampleRows,omitempty"`
}

// Options carries the caller's choices for one import run.
type Options struct {
	// Mapping is the confirmed column mapping. When nil, the detector's
	// guess is used if it validates; otherwise the run stops with
	// MappingRequiredError.
	Mapping *parser.Config
	// AccountID and CardID tag every parsed transaction and participate in
	// the dedup key.
	AccountID *uuid.UUID
	CardID    *uuid.UUID
}

// Result aggregates one finished import run.
type Result struct {
	JobID         uuid.UUID                 `json:"jobId"`
	Imported      int                       `json:"imported"`
	Duplicates    int                       `json:"duplicates"`
	Transactions  []transaction.Transaction `json:"transactions"`
	Errors        []transaction.ImportError `json:"errors"`
	LowConfidence []transaction.Transaction `json:"lowConfidence"`
	TotalIncome   *money.Money              `json:"totalIncome"`
	TotalExpense  *money.Money              `json:"totalExpense"`
}

// BulkResult is the outcome of the bulk-import endpoint.
type BulkResult struct {
	Success    bool `json:"success"`
	Count      int  `json:"count"`
	Duplicates int  `json:"duplicates"`
}

// ImportService runs the import state machine.
type ImportService struct {
	repo       repository.TransactionRepository
	classifier ClassifierService
	metrics    *metrics.ImportMetrics
	archive    storage.Archive
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewImportService creates the orchestrator.
func NewImportService(repo repository.TransactionRepository, classifier ClassifierService, m *metrics.ImportMetrics, logger *slog.Logger) *ImportService {
	return &ImportService{
		repo:       repo,
		classifier: classifier,
		metrics:    m,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
	}
}

// WithArchive keeps the raw bytes of every import for later audit or replay.
func (s *ImportService) WithArchive(a storage.Archive) *ImportService {
	s.archive = a
	return s
}

// Analyze inspects a file and returns the detected format plus a suggested
// mapping for formats that need one. Nothing is persisted.
func (s *ImportService) Analyze(_ context.Context, filename string, data []byte) (*Analysis, error) {
	if len(data) == 0 {
		return nil, parser.ErrEmptyFile
	}

	format := sniffer.DetectFormat(filename, data)
	analysis := &Analysis{Format: format}

	switch format {
	case parser.FormatCSV:
		analysis.NeedsMapping = true
		analysis.Suggested = sniffer.Detect(data)
		analysis.MappingValid = analysis.Suggested.Validate() == nil
		analysis.SampleRows = sniffer.Sample(data, previewRows)
	case parser.FormatExcel:
		analysis.NeedsMapping = true
		detected, samples, err := sniffer.DetectExcel(data)
		if err != nil {
			s.logger.Warn("workbook analysis failed",
				slog.String("filename", filename), slog.Any("error", err))
			break
		}
		analysis.Suggested = detected
		analysis.MappingValid = detected.Validate() == nil
		if len(samples) > previewRows {
			samples = samples[:previewRows]
		}
		analysis.SampleRows = samples
	}
	return analysis, nil
}

// Import runs the whole pipeline over one uploaded file. Row-level and
// classification failures are collected into the result; only structural and
// persistence failures surface as errors.
func (s *ImportService) Import(ctx context.Context, filename string, data []byte, opts Options) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "import.run",
		trace.WithAttributes(attribute.String("import.filename", filename)))
	defer span.End()

	if len(data) == 0 {
		return nil, parser.ErrEmptyFile
	}

	format := sniffer.DetectFormat(filename, data)
	span.SetAttributes(attribute.String("import.format", string(format)))

	job := &repository.ImportJob{Filename: filename, Format: string(format)}
	if err := s.repo.CreateImportJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}

	if s.archive != nil {
		if _, err := s.archive.Save(ctx, job.ID, filename, "", bytes.NewReader(data)); err != nil {
			s.logger.Warn("failed to archive upload",
				slog.String("job_id", job.ID.String()),
				slog.Any("error", err))
		}
	}

	result, err := s.run(ctx, format, filename, data, opts)
	if err != nil {
		s.metrics.JobsFailed.Inc()
		s.finishJob(ctx, job, repository.JobStatusFailed, result, err)
		return nil, err
	}

	result.JobID = job.ID
	s.metrics.RowsImported.Add(float64(result.Imported))
	s.metrics.RowsDuplicated.Add(float64(result.Duplicates))
	s.metrics.RowsErrored.Add(float64(len(result.Errors)))
	s.finishJob(ctx, job, repository.JobStatusPersisted, result, nil)

	s.logger.Info("import finished",
		slog.String("filename", filename),
		slog.String("format", string(format)),
		slog.Int("imported", result.Imported),
		slog.Int("duplicates", result.Duplicates),
		slog.Int("errors", len(result.Errors)))
	return result, nil
}

// run executes the Detecting → ... → Persisted stages and leaves job
// bookkeeping to the caller.
func (s *ImportService) run(ctx context.Context, format parser.Format, filename string, data []byte, opts Options) (*Result, error) {
	parsed, err := s.parse(ctx, format, data, opts)
	if err != nil {
		return nil, err
	}

	for i := range parsed.Transactions {
		parsed.Transactions[i].AccountID = opts.AccountID
		parsed.Transactions[i].CardID = opts.CardID
		parsed.Transactions[i].ImportedFrom = filename
	}

	classified, err := s.classify(ctx, parsed.Transactions)
	if err != nil {
		return nil, err
	}

	fresh, duplicates, err := s.deduplicate(ctx, classified)
	if err != nil {
		return nil, err
	}

	if _, err := s.persist(ctx, fresh); err != nil {
		return nil, err
	}

	result := &Result{
		Imported:     len(fresh),
		Duplicates:   duplicates,
		Transactions: fresh,
		Errors:       parsed.Errors,
	}
	for _, tx := range fresh {
		if tx.NeedsReview {
			result.LowConfidence = append(result.LowConfidence, tx)
		}
	}
	result.TotalIncome, result.TotalExpense = batchTotals(fresh)
	return result, nil
}

// batchTotals sums the batch per side. Principal movements (the Investments
// category) are neither income nor spending, so they stay out of both totals;
// yield earnings count as income.
func batchTotals(txs []transaction.Transaction) (income, expense *money.Money) {
	income = money.Zero(money.BRL)
	expense = money.Zero(money.BRL)
	for _, tx := range txs {
		if tx.Category == taxonomy.CategoryInvestments {
			continue
		}
		amount := money.NewFromDecimal(tx.Amount, money.BRL)
		switch tx.Type {
		case transaction.TypeIncome:
			income = income.MustAdd(amount)
		case transaction.TypeExpense:
			expense = expense.MustAdd(amount)
		}
	}
	return income, expense
}

// parse resolves the column mapping and runs the format parser. Mapped
// formats without a usable mapping stop here with MappingRequiredError.
func (s *ImportService) parse(ctx context.Context, format parser.Format, data []byte, opts Options) (*parser.Result, error) {
	ctx, span := s.tracer.Start(ctx, "import.parse")
	defer span.End()

	cfg := opts.Mapping

	if format == parser.FormatCSV && cfg == nil {
		detected := sniffer.Detect(data)
		if detected.Validate() != nil {
			return nil, &MappingRequiredError{Format: format, Suggested: detected}
		}
		// Recognized headers take the name-based decode path; the caller
		// never confirmed indices, so names are the safer contract. The
		// detector accepts header spellings the name decoder does not, so
		// a run that produces nothing falls back to the index mapping.
		if detected.HasHeaders {
			result, err := parser.NewCSVParser().ParseHeadered(ctx, data, detected.Delimiter)
			if err == nil && len(result.Transactions) > 0 {
				return result, nil
			}
		}
		cfg = detected
	}
	if format == parser.FormatExcel && cfg == nil {
		detected, _, err := sniffer.DetectExcel(data)
		if err != nil || detected.Validate() != nil {
			return nil, &MappingRequiredError{Format: format, Suggested: detected}
		}
		cfg = detected
	}

	p, err := parser.ForFormat(format)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, data, cfg)
}

func (s *ImportService) classify(ctx context.Context, txs []transaction.Transaction) ([]transaction.Transaction, error) {
	if len(txs) == 0 {
		return txs, nil
	}
	ctx, span := s.tracer.Start(ctx, "import.classify",
		trace.WithAttributes(attribute.Int("import.batch_size", len(txs))))
	defer span.End()

	return s.classifier.ClassifyBatch(ctx, txs)
}

// deduplicate reads the stored window spanned by the batch and filters exact
// repeats.
func (s *ImportService) deduplicate(ctx context.Context, txs []transaction.Transaction) ([]transaction.Transaction, int, error) {
	from, to, ok := dedup.Window(txs)
	if !ok {
		return txs, 0, nil
	}
	ctx, span := s.tracer.Start(ctx, "import.deduplicate")
	defer span.End()

	existing, err := s.repo.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, 0, fmt.Errorf("read dedup window: %w", err)
	}
	fresh, duplicates := dedup.Filter(txs, existing)
	return fresh, duplicates, nil
}

func (s *ImportService) persist(ctx context.Context, txs []transaction.Transaction) ([]uuid.UUID, error) {
	if len(txs) == 0 {
		return nil, nil
	}
	ctx, span := s.tracer.Start(ctx, "import.persist")
	defer span.End()

	ids, err := s.repo.BulkInsert(ctx, txs)
	if err != nil {
		return nil, fmt.Errorf("persist batch: %w", err)
	}
	return ids, nil
}

func (s *ImportService) finishJob(ctx context.Context, job *repository.ImportJob, status repository.JobStatus, result *Result, runErr error) {
	job.Status = status
	if result != nil {
		job.Imported = result.Imported
		job.Duplicates = result.Duplicates
		job.ErrorCount = len(result.Errors)
	}
	if runErr != nil {
		msg := runErr.Error()
		job.Failure = &msg
	}
	if err := s.repo.FinishImportJob(ctx, job); err != nil {
		s.logger.Error("failed to record import job outcome",
			slog.String("job_id", job.ID.String()),
			slog.Any("error", err))
	}
}

// ClassifyTransactions is the batch classification endpoint's core: it
// returns the same list with classification fields populated, preserving
// input order and count.
func (s *ImportService) ClassifyTransactions(ctx context.Context, txs []transaction.Transaction) ([]transaction.Transaction, error) {
	return s.classify(ctx, txs)
}

// BulkImport deduplicates already-parsed transactions against the store and
// writes the fresh subset.
func (s *ImportService) BulkImport(ctx context.Context, txs []transaction.Transaction) (*BulkResult, error) {
	ctx, span := s.tracer.Start(ctx, "import.bulk",
		trace.WithAttributes(attribute.Int("import.batch_size", len(txs))))
	defer span.End()

	fresh, duplicates, err := s.deduplicate(ctx, txs)
	if err != nil {
		return nil, err
	}
	if _, err := s.persist(ctx, fresh); err != nil {
		return nil, err
	}

	s.metrics.RowsImported.Add(float64(len(fresh)))
	s.metrics.RowsDuplicated.Add(float64(duplicates))
	return &BulkResult{Success: true, Count: len(fresh), Duplicates: duplicates}, nil
}

// ReclassifyNeedsReview re-runs the classifier over stored low-confidence
// transactions and persists any answer that clears the review threshold.
// The nightly job calls this with a bounded limit.
func (s *ImportService) ReclassifyNeedsReview(ctx context.Context, limit int) (int, error) {
	ctx, span := s.tracer.Start(ctx, "import.reclassify")
	defer span.End()

	pending, err := s.repo.ListNeedsReview(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list needs-review transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	classified, err := s.classifier.ClassifyBatch(ctx, pending)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, tx := range classified {
		if tx.NeedsReview {
			continue
		}
		if err := s.repo.UpdateClassification(ctx, tx.ID, tx.Category, tx.Subcategory, tx.Confidence, tx.NeedsReview); err != nil {
			s.logger.Warn("failed to store reclassification",
				slog.String("transaction_id", tx.ID.String()),
				slog.Any("error", err))
			continue
		}
		updated++
	}

	s.logger.Info("reclassification pass finished",
		slog.Int("examined", len(pending)),
		slog.Int("updated", updated))
	return updated, nil
}
