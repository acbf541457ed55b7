package parser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmassis/fiflow/internal/domain/import/normalizer"
	"github.com/rmassis/fiflow/internal/domain/transaction"
)

// OFXParser parses the SGML-flavored banking interchange format exported by
// most banks. The format is self-describing, so the column mapping is
// ignored entirely.
type OFXParser struct{}

// NewOFXParser creates a banking interchange parser.
func NewOFXParser() *OFXParser {
	return &OFXParser{}
}

// Parse extracts every <STMTTRN> block. Tags frequently come without closing
// counterparts, so each value runs from the tag to the next "<" or newline.
func (p *OFXParser) Parse(ctx context.Context, data []byte, _ *Config) (*Result, error) {
	text := string(DecodeText(data, ""))

	blocks := splitBlocks(text)
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: no transaction blocks", ErrEmptyFile)
	}

	result := &Result{}
	for i, block := range blocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := i + 1

		tx, rowErr := buildStatementTransaction(line, block)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		result.Transactions = append(result.Transactions, *tx)
	}
	return result, nil
}

// splitBlocks returns the inner text of each <STMTTRN> block, tolerating a
// missing </STMTTRN> by stopping at the next opening tag or end of input.
func splitBlocks(text string) []string {
	upper := strings.ToUpper(text)
	var blocks []string

	for pos := 0; ; {
		start := strings.Index(upper[pos:], "<STMTTRN>")
		if start < 0 {
			break
		}
		start += pos + len("<STMTTRN>")

		end := len(text)
		if close := strings.Index(upper[start:], "</STMTTRN>"); close >= 0 {
			end = start + close
		}
		if next := strings.Index(upper[start:], "<STMTTRN>"); next >= 0 && start+next < end {
			end = start + next
		}

		blocks = append(blocks, text[start:end])
		pos = end
	}
	return blocks
}

func buildStatementTransaction(line int, block string) (*transaction.Transaction, *transaction.ImportError) {
	date, err := parsePostedDate(tagValue(block, "DTPOSTED"))
	if err != nil {
		return nil, &transaction.ImportError{Line: line, Field: "date", Message: err.Error()}
	}

	desc := normalizer.CleanDescription(tagValue(block, "MEMO"))
	if desc == "" {
		desc = normalizer.CleanDescription(tagValue(block, "NAME"))
	}
	if desc == "" {
		return nil, &transaction.ImportError{Line: line, Field: "description", Message: "missing memo and name"}
	}

	amount, err := parseInterchangeAmount(tagValue(block, "TRNAMT"))
	if err != nil {
		return nil, &transaction.ImportError{Line: line, Field: "amount", Message: err.Error()}
	}

	// Sign decides direction; the TRNTYPE tag is unreliable across banks.
	return newCandidate(date, desc, amount, ""), nil
}

// tagValue returns the text after <TAG> up to the next tag or line break.
func tagValue(block, tag string) string {
	open := "<" + tag + ">"
	idx := strings.Index(strings.ToUpper(block), open)
	if idx < 0 {
		return ""
	}
	rest := block[idx+len(open):]
	if cut := strings.IndexAny(rest, "<\r\n"); cut >= 0 {
		rest = rest[:cut]
	}
	return strings.TrimSpace(rest)
}

// parsePostedDate reads the first eight digits of a DTPOSTED value as
// YYYYMMDD, discarding the optional time and timezone suffix.
func parsePostedDate(s string) (time.Time, error) {
	if len(s) < 8 {
		return time.Time{}, fmt.Errorf("invalid posted date %q", s)
	}
	t, err := time.Parse("20060102", s[:8])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid posted date %q", s)
	}
	return t, nil
}

// parseInterchangeAmount parses the period-decimal signed amount the
// interchange format mandates. Locale normalization does not apply here.
func parseInterchangeAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "+")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}
