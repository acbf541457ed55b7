package parser

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/rmassis/fiflow/internal/domain/import/normalizer"
	"github.com/rmassis/fiflow/internal/domain/transaction"
)

// ExcelParser parses xlsx workbooks. Only the first sheet is read; extra
// sheets are ignored.
type ExcelParser struct{}

// NewExcelParser creates a spreadsheet parser.
func NewExcelParser() *ExcelParser {
	return &ExcelParser{}
}

// Parse reads the first sheet row by row using raw cell values, so date
// serials and unformatted numbers arrive as the numbers the workbook stores
// rather than whatever display format the sheet applies.
func (p *ExcelParser) Parse(ctx context.Context, data []byte, cfg *Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrEmptyFile)
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	result := &Result{}
	sawRow := false

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := i + 1
		if cfg.HasHeaders && line == 1 {
			continue
		}
		if isBlank(row) {
			continue
		}
		sawRow = true

		tx, rowErr := buildExcelRow(line, row, cfg)
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

// buildExcelRow handles the two cell shapes the shared pipeline cannot: a
// date cell stored as a numeric serial, and an amount cell stored as a plain
// number with a period decimal point.
func buildExcelRow(line int, row []string, cfg *Config) (*transaction.Transaction, *transaction.ImportError) {
	rawDate := cell(row, cfg.DateCol)
	date, err := normalizer.ParseDate(rawDate)
	if err != nil {
		serial, serialErr := strconv.ParseFloat(strings.TrimSpace(rawDate), 64)
		if serialErr != nil {
			return nil, &transaction.ImportError{Line: line, Field: "date", Message: err.Error()}
		}
		date, err = normalizer.FromSerial(serial)
		if err != nil {
			return nil, &transaction.ImportError{Line: line, Field: "date", Message: err.Error()}
		}
	}

	desc := normalizer.CleanDescription(cell(row, cfg.DescCol))
	if desc == "" {
		return nil, &transaction.ImportError{Line: line, Field: "description", Message: "missing description"}
	}

	rawAmount := cell(row, cfg.AmountCol)
	amount, err := parseCellAmount(rawAmount)
	if err != nil {
		return nil, &transaction.ImportError{Line: line, Field: "amount", Message: err.Error()}
	}

	return newCandidate(date, desc, amount, cell(row, cfg.TypeCol)), nil
}

// parseCellAmount treats a cell that is already a plain number as the stored
// numeric value (period decimal point) and only falls back to locale
// normalization for text cells like "R$ 1.500,00".
func parseCellAmount(s string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	if d, err := decimal.NewFromString(trimmed); err == nil {
		return d, nil
	}
	return normalizer.ParseAmount(s)
}
