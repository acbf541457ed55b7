// Package parser turns raw statement files into canonical transaction
// candidates. Each format (delimited text, spreadsheet, banking interchange,
// document text) implements the same contract: row-level failures become
// ImportError entries and never abort the batch.
package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmassis/fiflow/internal/domain/import/normalizer"
	"github.com/rmassis/fiflow/internal/domain/transaction"
)

// Format identifies a supported statement file format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatExcel    Format = "excel"
	FormatOFX      Format = "ofx"
	FormatDocument Format = "document"
)

// Supported delimiters for delimited-text files.
const Delimiters = ",;|\t"

// Recognized encodings for delimited-text files.
const (
	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "latin-1"
)

var (
	// ErrInvalidMapping indicates the column mapping is incomplete or
	// references an unsupported delimiter/encoding.
	ErrInvalidMapping = errors.New("invalid column mapping")
	// ErrEmptyFile indicates the file holds no data rows at all.
	ErrEmptyFile = errors.New("file is empty")
)

// Config is the column-mapping configuration for formats without
// self-describing structure. Banking interchange files ignore it.
type Config struct {
	Delimiter  rune   `json:"delimiter"`
	Encoding   string `json:"encoding"`
	HasHeaders bool   `json:"hasHeaders"`

	DateCol   int `json:"dateColumn"`
	DescCol   int `json:"descriptionColumn"`
	AmountCol int `json:"amountColumn"`
	TypeCol   int `json:"typeColumn"` // -1 when absent
}

// Validate checks that the three required column indices are set and the
// delimiter/encoding are among the recognized literals. The orchestrator
// refuses the Configuring -> Parsing transition until this passes.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: missing configuration", ErrInvalidMapping)
	}
	if !strings.ContainsRune(Delimiters, c.Delimiter) {
		return fmt.Errorf("%w: delimiter %q not supported", ErrInvalidMapping, string(c.Delimiter))
	}
	if c.Encoding != "" && c.Encoding != EncodingUTF8 && c.Encoding != EncodingLatin1 {
		return fmt.Errorf("%w: encoding %q not supported", ErrInvalidMapping, c.Encoding)
	}
	if c.DateCol < 0 || c.DescCol < 0 || c.AmountCol < 0 {
		return fmt.Errorf("%w: date, description and amount columns are required", ErrInvalidMapping)
	}
	return nil
}

// Result is the common output of every parser.
type Result struct {
	Transactions []transaction.Transaction
	Errors       []transaction.ImportError
}

// Parser is the common contract shared by all format parsers.
type Parser interface {
	Parse(ctx context.Context, data []byte, cfg *Config) (*Result, error)
}

// ForFormat returns the parser for a detected format.
func ForFormat(f Format) (Parser, error) {
	switch f {
	case FormatCSV:
		return NewCSVParser(), nil
	case FormatExcel:
		return NewExcelParser(), nil
	case FormatOFX:
		return NewOFXParser(), nil
	case FormatDocument:
		return NewDocumentParser(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

// creditTokens mark an explicit type column (or a document description) as
// money in. Anything else falls back to the amount sign.
var creditTokens = []string{
	"credito", "crédito", "credit", "entrada", "receita", "income",
	"recebido", "recebida", "deposito", "depósito", "c",
}

var debitTokens = []string{
	"debito", "débito", "debit", "saida", "saída", "despesa", "expense", "d",
}

// rawRow is the per-format adapter input for the shared row pipeline: the
// already-extracted textual cells of one row.
type rawRow struct {
	line    int
	date    string
	desc    string
	amount  string
	typeTok string
}

// buildTransaction runs the common row pipeline: normalize date, clean
// description, normalize amount, resolve the type, and store the absolute
// magnitude. A nil error return with a nil transaction never happens; it is
// exactly one of the two.
func buildTransaction(row rawRow) (*transaction.Transaction, *transaction.ImportError) {
	date, err := normalizer.ParseDate(row.date)
	if err != nil {
		return nil, &transaction.ImportError{Line: row.line, Field: "date", Message: err.Error()}
	}

	desc := normalizer.CleanDescription(row.desc)
	if desc == "" {
		return nil, &transaction.ImportError{Line: row.line, Field: "description", Message: "missing description"}
	}

	amount, err := normalizer.ParseAmount(row.amount)
	if err != nil {
		return nil, &transaction.ImportError{Line: row.line, Field: "amount", Message: err.Error()}
	}

	return newCandidate(date, desc, amount, row.typeTok), nil
}

// newCandidate assembles an unclassified transaction candidate. An explicit
// type token wins when it carries a recognized credit/debit word; otherwise
// the sign of the parsed amount decides (non-negative means income). The
// stored amount is always the absolute value.
func newCandidate(date time.Time, desc string, amount decimal.Decimal, typeTok string) *transaction.Transaction {
	txType := typeFromToken(typeTok)
	if txType == "" {
		if amount.IsNegative() {
			txType = transaction.TypeExpense
		} else {
			txType = transaction.TypeIncome
		}
	}

	return &transaction.Transaction{
		Date:        date,
		Description: desc,
		Amount:      amount.Abs(),
		Type:        txType,
		NeedsReview: true,
	}
}

func typeFromToken(tok string) transaction.Type {
	tok = strings.ToLower(strings.TrimSpace(tok))
	if tok == "" {
		return ""
	}
	for _, c := range creditTokens {
		if matchToken(tok, c) {
			return transaction.TypeIncome
		}
	}
	for _, d := range debitTokens {
		if matchToken(tok, d) {
			return transaction.TypeExpense
		}
	}
	return ""
}

// matchToken is an exact match for one-letter markers (C/D columns) and a
// substring match for words.
func matchToken(tok, keyword string) bool {
	if len(keyword) == 1 {
		return tok == keyword
	}
	return strings.Contains(tok, keyword)
}
