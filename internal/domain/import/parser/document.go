package parser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rmassis/fiflow/internal/domain/import/normalizer"
	"github.com/rmassis/fiflow/internal/domain/transaction"
)

// ErrNoLayoutMatched indicates none of the known statement layouts produced
// a single match over the extracted text.
var ErrNoLayoutMatched = errors.New("no recognizable statement layout")

// DocumentParser runs ordered regex layouts over plain text already
// extracted from a statement document. Text extraction itself is a separate
// collaborator; this parser only sees the resulting text. Accuracy is
// best-effort: each layout is a heuristic for one bank's statement style.
type DocumentParser struct {
	layouts []documentLayout
}

// documentLayout is one statement style. The expression must expose named
// groups date, desc and amount.
type documentLayout struct {
	name string
	re   *regexp.Regexp
	// periodDecimal marks layouts whose amounts use a period decimal point
	// instead of the comma-decimal convention the normalizer expects.
	periodDecimal bool
}

// defaultLayouts are tried in order; the first layout with at least one
// match wins the whole document.
var defaultLayouts = []documentLayout{
	// "15/01/2024 PIX RECEBIDO JOAO 1.500,00" and the "R$ 23,50" variant.
	// The currency marker is optional here rather than a layout of its own:
	// the lazy desc group would swallow "R$" under a separate layout and
	// that layout could never win.
	{
		name: "date-desc-amount",
		re: regexp.MustCompile(
			`(?m)^(?P<date>\d{2}/\d{2}/\d{4})\s+(?P<desc>.+?)\s+(?:R\$\s*)?(?P<amount>-?\d{1,3}(?:\.\d{3})*,\d{2})\s*$`),
	},
	// "2024-01-15  TRANSFERENCIA ENVIADA  -1500.00"
	{
		name: "iso-date-desc-amount",
		re: regexp.MustCompile(
			`(?m)^(?P<date>\d{4}-\d{2}-\d{2})\s+(?P<desc>.+?)\s+(?P<amount>-?\d+(?:\.\d{2})?)\s*$`),
		periodDecimal: true,
	},
}

// creditPhrases decide direction for document rows. Documents rarely encode
// sign reliably, so the description wins over whatever sign the amount has.
var creditPhrases = []string{
	"pix recebido", "ted recebida", "deposito", "depósito",
	"credito", "crédito", "recebimento", "rendimento", "salario", "salário",
}

// NewDocumentParser creates a document-text parser with the built-in layouts.
func NewDocumentParser() *DocumentParser {
	return &DocumentParser{layouts: defaultLayouts}
}

// Parse tries each layout until one matches, then builds a candidate per
// match. When nothing matches the result is a single batch-level error.
func (p *DocumentParser) Parse(ctx context.Context, data []byte, _ *Config) (*Result, error) {
	text := string(DecodeText(data, ""))
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no extracted text", ErrEmptyFile)
	}

	for _, layout := range p.layouts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matches := layout.re.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}
		return p.buildFromMatches(ctx, layout, matches)
	}

	return nil, ErrNoLayoutMatched
}

func (p *DocumentParser) buildFromMatches(ctx context.Context, layout documentLayout, matches [][]string) (*Result, error) {
	dateIdx := layout.re.SubexpIndex("date")
	descIdx := layout.re.SubexpIndex("desc")
	amountIdx := layout.re.SubexpIndex("amount")

	result := &Result{}
	for i, m := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := i + 1

		amount := m[amountIdx]
		if layout.periodDecimal {
			amount = strings.ReplaceAll(amount, ".", ",")
		}

		tx, rowErr := buildTransaction(rawRow{
			line:   line,
			date:   m[dateIdx],
			desc:   m[descIdx],
			amount: amount,
		})
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}

		tx.Type = documentType(tx.Description)
		result.Transactions = append(result.Transactions, *tx)
	}
	return result, nil
}

// documentType infers direction from the description text.
func documentType(desc string) transaction.Type {
	lowered := strings.ToLower(normalizer.CleanDescription(desc))
	for _, phrase := range creditPhrases {
		if strings.Contains(lowered, phrase) {
			return transaction.TypeIncome
		}
	}
	return transaction.TypeExpense
}
