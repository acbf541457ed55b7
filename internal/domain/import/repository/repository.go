// Package repository persists imported transactions and import job records.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rmassis/fiflow/internal/domain/transaction"
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// it too, so store tests run against expectations instead of a database.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// JobStatus tracks an import job through the pipeline.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusPersisted JobStatus = "persisted"
	JobStatusFailed    JobStatus = "failed"
)

// ImportJob is the stored record of one import run.
type ImportJob struct {
	ID         uuid.UUID  `json:"id"`
	Filename   string     `json:"filename"`
	Format     string     `json:"format"`
	Status     JobStatus  `json:"status"`
	Imported   int        `json:"imported"`
	Duplicates int        `json:"duplicates"`
	ErrorCount int        `json:"errorCount"`
	Failure    *string    `json:"failure,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// TransactionRepository is the persistence contract used by the import
// pipeline and the review endpoints.
type TransactionRepository interface {
	// ListByDateRange returns stored transactions with dates in [from, to],
	// the read backing the dedup window.
	ListByDateRange(ctx context.Context, from, to time.Time) ([]transaction.Transaction, error)
	// BulkInsert writes a batch inside one database transaction; either the
	// whole batch lands or none of it does.
	BulkInsert(ctx context.Context, txs []transaction.Transaction) ([]uuid.UUID, error)
	// UpdateClassification rewrites the classification fields of one record.
	UpdateClassification(ctx context.Context, id uuid.UUID, category, subcategory string, confidence float64, needsReview bool) error
	// ListNeedsReview returns up to limit transactions flagged for review.
	ListNeedsReview(ctx context.Context, limit int) ([]transaction.Transaction, error)
	Delete(ctx context.Context, id uuid.UUID) error

	CreateImportJob(ctx context.Context, job *ImportJob) error
	FinishImportJob(ctx context.Context, job *ImportJob) error
}
