package parser

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/rmassis/fiflow/internal/domain/transaction"
)

// CSVParser parses delimited text files (comma, semicolon, pipe or tab)
// using an explicit column mapping.
type CSVParser struct{}

// NewCSVParser creates a delimited-text parser.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Parse reads every row through the shared pipeline. Rows that fail to
// normalize become ImportError entries; the batch always continues.
func (p *CSVParser) Parse(ctx context.Context, data []byte, cfg *Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	data = DecodeText(data, cfg.Encoding)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = cfg.Delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	result := &Result{}
	line := 0
	sawRow := false

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Errors = append(result.Errors, transaction.ImportError{
				Line: line, Field: "row", Message: err.Error(),
			})
			continue
		}
		if cfg.HasHeaders && line == 1 {
			continue
		}
		if isBlank(record) {
			continue
		}
		sawRow = true

		tx, rowErr := buildTransaction(rawRow{
			line:    line,
			date:    cell(record, cfg.DateCol),
			desc:    cell(record, cfg.DescCol),
			amount:  cell(record, cfg.AmountCol),
			typeTok: cell(record, cfg.TypeCol),
		})
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		result.Transactions = append(result.Transactions, *tx)
	}

	if !sawRow && len(result.Errors) == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrEmptyFile)
	}
	return result, nil
}

// cell returns the trimmed value at idx, or "" when the index is absent or
// out of range for this record.
func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func isBlank(record []string) bool {
	for _, c := range record {
		if c != "" {
			return false
		}
	}
	return true
}

// DecodeText strips a UTF-8 BOM and applies the Latin-1 fallback read mode.
// With no explicit encoding, invalid UTF-8 input falls back to Latin-1.
func DecodeText(data []byte, encoding string) []byte {
	data = stripBOM(data)
	switch encoding {
	case EncodingLatin1:
		return decodeLatin1(data)
	case EncodingUTF8:
		return data
	default:
		if utf8.Valid(data) {
			return data
		}
		return decodeLatin1(data)
	}
}

func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

func decodeLatin1(data []byte) []byte {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return []byte(string(runes))
}
