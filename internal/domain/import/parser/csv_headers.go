package parser

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/gocarina/gocsv"
)

// headeredRow is decoded by header name through gocsv. The tags cover the
// column spellings seen across Brazilian and English bank exports; the first
// non-empty value per role wins.
type headeredRow struct {
	Date      string `csv:"data"`
	Date2     string `csv:"date"`
	DateMov   string `csv:"data mov."`
	DateLanc  string `csv:"data lançamento"`
	DateLanc2 string `csv:"data lancamento"`

	Description string `csv:"descricao"`
	Descricao   string `csv:"descrição"`
	Desc2       string `csv:"description"`
	Historico   string `csv:"historico"`
	Historico2  string `csv:"histórico"`
	Memo        string `csv:"memo"`

	Amount string `csv:"valor"`
	Value  string `csv:"amount"`
	Quant  string `csv:"montante"`

	Type     string `csv:"tipo"`
	Type2    string `csv:"type"`
	Natureza string `csv:"natureza"`
}

// ParseHeadered decodes a delimited file by header name, used as a fast path
// when the auto-detector recognizes the header row and the caller supplied no
// explicit mapping. An explicit index mapping always takes precedence over
// this mode.
func (p *CSVParser) ParseHeadered(ctx context.Context, data []byte, delimiter rune) (*Result, error) {
	data = DecodeText(data, "")

	// The reader stays local to this call; gocsv's package-level reader
	// factory is shared state and concurrent imports carry different
	// delimiters.
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	var rows []headeredRow
	if err := gocsv.UnmarshalCSV(r, &rows); err != nil {
		return nil, fmt.Errorf("decode headered file: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrEmptyFile)
	}

	result := &Result{}
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := i + 2 // 1-indexed, after the header row

		tx, rowErr := buildTransaction(rawRow{
			line:    line,
			date:    coalesce(row.Date, row.Date2, row.DateMov, row.DateLanc, row.DateLanc2),
			desc:    coalesce(row.Description, row.Descricao, row.Desc2, row.Historico, row.Historico2, row.Memo),
			amount:  coalesce(row.Amount, row.Value, row.Quant),
			typeTok: coalesce(row.Type, row.Type2, row.Natureza),
		})
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		result.Transactions = append(result.Transactions, *tx)
	}
	return result, nil
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
