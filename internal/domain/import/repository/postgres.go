package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rmassis/fiflow/internal/domain/transaction"
)

const transactionColumns = `id, date, description, amount, type, category, subcategory,
	confidence, needs_review, account_id, card_id, imported_from, imported_at`

// PostgresTransactionRepository implements TransactionRepository over a pgx
// pool.
type PostgresTransactionRepository struct {
	db DB
}

// NewPostgresTransactionRepository creates a PostgreSQL-backed repository.
func NewPostgresTransactionRepository(db DB) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

// ListByDateRange retrieves stored transactions inside the inclusive window.
func (r *PostgresTransactionRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE date >= $1 AND date <= $2
		ORDER BY date ASC`

	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// BulkInsert writes the batch inside one database transaction. Generated ids
// come back in batch order.
func (r *PostgresTransactionRepository) BulkInsert(ctx context.Context, txs []transaction.Transaction) ([]uuid.UUID, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	dbTx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback(ctx)

	query := `
		INSERT INTO transactions (id, date, description, amount, type, category, subcategory,
			confidence, needs_review, account_id, card_id, imported_from, imported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	ids := make([]uuid.UUID, 0, len(txs))
	now := time.Now()
	for _, t := range txs {
		id := t.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		importedAt := t.ImportedAt
		if importedAt.IsZero() {
			importedAt = now
		}

		if _, err := dbTx.Exec(ctx, query,
			id, t.Date, t.Description, t.Amount, t.Type, t.Category, t.Subcategory,
			t.Confidence, t.NeedsReview, t.AccountID, t.CardID, t.ImportedFrom, importedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to insert transaction: %w", err)
		}
		ids = append(ids, id)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit bulk insert: %w", err)
	}
	return ids, nil
}

// UpdateClassification rewrites the classification fields of one record.
func (r *PostgresTransactionRepository) UpdateClassification(ctx context.Context, id uuid.UUID, category, subcategory string, confidence float64, needsReview bool) error {
	query := `
		UPDATE transactions
		SET category = $2, subcategory = $3, confidence = $4, needs_review = $5
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, category, subcategory, confidence, needsReview)
	if err != nil {
		return fmt.Errorf("failed to update classification: %w", err)
	}
	if result.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListNeedsReview returns the oldest flagged transactions first.
func (r *PostgresTransactionRepository) ListNeedsReview(ctx context.Context, limit int) ([]transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE needs_review = true
		ORDER BY imported_at ASC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for review: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// Delete removes one transaction.
func (r *PostgresTransactionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateImportJob inserts a running job record.
func (r *PostgresTransactionRepository) CreateImportJob(ctx context.Context, job *ImportJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = JobStatusRunning
	}

	query := `
		INSERT INTO import_jobs (id, filename, format, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query, job.ID, job.Filename, job.Format, job.Status).
		Scan(&job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}
	return nil
}

// FinishImportJob records a job's terminal state and counters.
func (r *PostgresTransactionRepository) FinishImportJob(ctx context.Context, job *ImportJob) error {
	query := `
		UPDATE import_jobs
		SET status = $2, imported = $3, duplicates = $4, error_count = $5,
			failure = $6, finished_at = now()
		WHERE id = $1
		RETURNING finished_at`

	err := r.db.QueryRow(ctx, query,
		job.ID, job.Status, job.Imported, job.Duplicates, job.ErrorCount, job.Failure,
	).Scan(&job.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("failed to finish import job: %w", err)
	}
	return nil
}

func scanTransactions(rows pgx.Rows) ([]transaction.Transaction, error) {
	var txs []transaction.Transaction
	for rows.Next() {
		var t transaction.Transaction
		err := rows.Scan(
			&t.ID, &t.Date, &t.Description, &t.Amount, &t.Type, &t.Category,
			&t.Subcategory, &t.Confidence, &t.NeedsReview, &t.AccountID, &t.CardID,
			&t.ImportedFrom, &t.ImportedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}
	return txs, nil
}
