// Package handler exposes the import pipeline over HTTP JSON endpoints.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmassis/fiflow/internal/domain/import/parser"
	"github.com/rmassis/fiflow/internal/domain/import/service"
	"github.com/rmassis/fiflow/internal/domain/transaction"
	"github.com/rmassis/fiflow/pkg/money"
)

const maxUploadBytes = 20 << 20

// ImportHandler serves the analyze, import, classify and bulk endpoints.
type ImportHandler struct {
	svc    *service.ImportService
	logger *slog.Logger
}

// NewImportHandler creates the handler.
func NewImportHandler(svc *service.ImportService, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{svc: svc, logger: logger}
}

// Register wires the endpoints onto mux.
func (h *ImportHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/import/analyze", h.HandleAnalyze)
	mux.HandleFunc("POST /v1/import", h.HandleImport)
	mux.HandleFunc("POST /v1/transactions/classify", h.HandleClassify)
	mux.HandleFunc("POST /v1/transactions/bulk", h.HandleBulkImport)
}

// HandleAnalyze returns the detected format and a suggested column mapping
// for an uploaded file.
func (h *ImportHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	analysis, err := h.svc.Analyze(r.Context(), filename, data)
	if errors.Is(err, parser.ErrEmptyFile) {
		sendJSONError(w, "file is empty", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Error("analyze failed", slog.String("filename", filename), slog.Any("error", err))
		sendJSONError(w, "failed to analyze file", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// HandleImport runs the full pipeline over an uploaded file. A mapped format
// without a confirmed mapping answers 422 with the detector's suggestion.
func (h *ImportHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	opts, err := parseImportOptions(r)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.svc.Import(r.Context(), filename, data, opts)
	if err != nil {
		var mappingErr *service.MappingRequiredError
		switch {
		case errors.As(err, &mappingErr):
			writeJSON(w, http.StatusUnprocessableEntity, mappingErr)
		case errors.Is(err, parser.ErrInvalidMapping),
			errors.Is(err, parser.ErrEmptyFile),
			errors.Is(err, parser.ErrNoLayoutMatched):
			sendJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("import failed", slog.String("filename", filename), slog.Any("error", err))
			sendJSONError(w, "import failed", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, importResponse{
		JobID:         result.JobID,
		Imported:      result.Imported,
		Duplicates:    result.Duplicates,
		Transactions:  toDTOs(result.Transactions),
		Errors:        result.Errors,
		LowConfidence: toDTOs(result.LowConfidence),
		TotalIncome:   result.TotalIncome,
		TotalExpense:  result.TotalExpense,
	})
}

// HandleClassify populates classification fields on a posted transaction
// list, preserving order and count.
func (h *ImportHandler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	txs, ok := h.readTransactions(w, r)
	if !ok {
		return
	}

	classified, err := h.svc.ClassifyTransactions(r.Context(), txs)
	if err != nil {
		h.logger.Error("batch classification failed", slog.Any("error", err))
		sendJSONError(w, "classification failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toDTOs(classified))
}

// HandleBulkImport deduplicates a posted transaction list against the store
// and persists the fresh subset.
func (h *ImportHandler) HandleBulkImport(w http.ResponseWriter, r *http.Request) {
	txs, ok := h.readTransactions(w, r)
	if !ok {
		return
	}

	result, err := h.svc.BulkImport(r.Context(), txs)
	if err != nil {
		h.logger.Error("bulk import failed", slog.Any("error", err))
		sendJSONError(w, "bulk import failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ImportHandler) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		sendJSONError(w, "failed to parse form or request too large", http.StatusBadRequest)
		return "", nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		sendJSONError(w, "missing 'file' field", http.StatusBadRequest)
		return "", nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		sendJSONError(w, "failed to read file", http.StatusBadRequest)
		return "", nil, false
	}
	return header.Filename, data, true
}

func (h *ImportHandler) readTransactions(w http.ResponseWriter, r *http.Request) ([]transaction.Transaction, bool) {
	var dtos []transactionDTO
	if err := json.NewDecoder(r.Body).Decode(&dtos); err != nil {
		sendJSONError(w, "invalid request body", http.StatusBadRequest)
		return nil, false
	}

	txs := make([]transaction.Transaction, 0, len(dtos))
	for i, dto := range dtos {
		tx, err := dto.toTransaction()
		if err != nil {
			sendJSONError(w, fmt.Sprintf("transaction %d: %v", i, err), http.StatusBadRequest)
			return nil, false
		}
		txs = append(txs, tx)
	}
	return txs, true
}

// parseImportOptions reads the optional mapping and account/card references
// from multipart form fields.
func parseImportOptions(r *http.Request) (service.Options, error) {
	var opts service.Options

	if raw := r.FormValue("mapping"); raw != "" {
		var dto mappingDTO
		if err := json.Unmarshal([]byte(raw), &dto); err != nil {
			return opts, fmt.Errorf("invalid mapping: %w", err)
		}
		cfg, err := dto.toConfig()
		if err != nil {
			return opts, err
		}
		opts.Mapping = cfg
	}

	if raw := r.FormValue("accountId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return opts, fmt.Errorf("invalid accountId: %w", err)
		}
		opts.AccountID = &id
	}
	if raw := r.FormValue("cardId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return opts, fmt.Errorf("invalid cardId: %w", err)
		}
		opts.CardID = &id
	}
	return opts, nil
}

// mappingDTO is the wire shape of a column mapping; the delimiter travels as
// a one-character string.
type mappingDTO struct {
	Delimiter  string `json:"delimiter"`
	Encoding   string `json:"encoding"`
	HasHeaders bool   `json:"hasHeaders"`
	DateCol    int    `json:"dateColumn"`
	DescCol    int    `json:"descriptionColumn"`
	AmountCol  int    `json:"amountColumn"`
	TypeCol    *int   `json:"typeColumn"`
}

func (m mappingDTO) toConfig() (*parser.Config, error) {
	if len([]rune(m.Delimiter)) != 1 {
		return nil, fmt.Errorf("invalid mapping: delimiter must be a single character")
	}
	cfg := &parser.Config{
		Delimiter:  []rune(m.Delimiter)[0],
		Encoding:   m.Encoding,
		HasHeaders: m.HasHeaders,
		DateCol:    m.DateCol,
		DescCol:    m.DescCol,
		AmountCol:  m.AmountCol,
		TypeCol:    -1,
	}
	if m.TypeCol != nil {
		cfg.TypeCol = *m.TypeCol
	}
	return cfg, nil
}

// transactionDTO is the wire shape of a transaction: calendar date and a
// decimal amount carried as strings.
type transactionDTO struct {
	ID          *uuid.UUID `json:"id,omitempty"`
	Date        string     `json:"date"`
	Description string     `json:"description"`
	Amount      string     `json:"amount"`
	Type        string     `json:"type"`
	Category    string     `json:"category,omitempty"`
	Subcategory string     `json:"subcategory,omitempty"`
	Confidence  float64    `json:"confidence"`
	NeedsReview bool       `json:"needsReview"`
	AccountID   *uuid.UUID `json:"accountId,omitempty"`
	CardID      *uuid.UUID `json:"cardId,omitempty"`
}

func (d transactionDTO) toTransaction() (transaction.Transaction, error) {
	var tx transaction.Transaction

	date, err := time.Parse("2006-01-02", d.Date)
	if err != nil {
		return tx, fmt.Errorf("invalid date %q", d.Date)
	}
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil || amount.IsNegative() {
		return tx, fmt.Errorf("invalid amount %q", d.Amount)
	}
	txType := transaction.Type(d.Type)
	if txType != transaction.TypeIncome && txType != transaction.TypeExpense {
		return tx, fmt.Errorf("invalid type %q", d.Type)
	}
	if d.Description == "" {
		return tx, fmt.Errorf("missing description")
	}

	tx = transaction.Transaction{
		Date:        date,
		Description: d.Description,
		Amount:      amount,
		Type:        txType,
		Category:    d.Category,
		Subcategory: d.Subcategory,
		AccountID:   d.AccountID,
		CardID:      d.CardID,
	}
	if d.ID != nil {
		tx.ID = *d.ID
	}
	tx.SetConfidence(d.Confidence)
	return tx, nil
}

func toDTO(tx transaction.Transaction) transactionDTO {
	dto := transactionDTO{
		Date:        tx.Date.Format("2006-01-02"),
		Description: tx.Description,
		Amount:      tx.Amount.StringFixed(2),
		Type:        string(tx.Type),
		Category:    tx.Category,
		Subcategory: tx.Subcategory,
		Confidence:  tx.Confidence,
		NeedsReview: tx.NeedsReview,
		AccountID:   tx.AccountID,
		CardID:      tx.CardID,
	}
	if tx.ID != uuid.Nil {
		id := tx.ID
		dto.ID = &id
	}
	return dto
}

func toDTOs(txs []transaction.Transaction) []transactionDTO {
	out := make([]transactionDTO, len(txs))
	for i, tx := range txs {
		out[i] = toDTO(tx)
	}
	return out
}

type importResponse struct {
	JobID         uuid.UUID                 `json:"jobId"`
	Imported      int                       `json:"imported"`
	Duplicates    int                       `json:"duplicates"`
	Transactions  []transactionDTO          `json:"transactions"`
	Errors        []transaction.ImportError `json:"errors"`
	LowConfidence []transactionDTO          `json:"lowConfidence"`
	TotalIncome   *money.Money              `json:"totalIncome"`
	TotalExpense  *money.Money              `json:"totalExpense"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "error generating JSON response", http.StatusInternalServerError)
	}
}

func sendJSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
