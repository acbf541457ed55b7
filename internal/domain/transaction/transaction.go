// Package transaction defines the canonical transaction record produced by
// the import parsers and enriched by the classifier.
package transaction

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type indicates the direction of a transaction. The Amount field is always
// a non-negative magnitude; direction lives here.
type Type string

const (
	TypeIncome  Type = "income"
	TypeExpense Type = "expense"
)

// ReviewThreshold is the confidence below which a classified transaction is
// flagged for human review.
const ReviewThreshold = 0.7

// dedupSentinel stands in for missing account/card references in dedup keys.
const dedupSentinel = "-"

// Transaction is the canonical unit flowing through the import pipeline.
// Parsers create it, the classifier fills Category/Subcategory/Confidence,
// and the store assigns ID on insert.
type Transaction struct {
	ID          uuid.UUID       `json:"id,omitempty"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"` // non-negative magnitude
	Type        Type            `json:"type"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory"`
	Confidence  float64         `json:"confidence"`
	NeedsReview bool            `json:"needsReview"`

	// Optional source references, used in the dedup key.
	AccountID *uuid.UUID `json:"accountId,omitempty"`
	CardID    *uuid.UUID `json:"cardId,omitempty"`

	// Provenance.
	ImportedFrom string    `json:"importedFrom,omitempty"`
	ImportedAt   time.Time `json:"importedAt,omitempty"`
}

// SetConfidence updates the confidence score and derives NeedsReview.
// The invariant needsReview == (confidence < 0.7) must hold at all times,
// so all confidence writes go through here.
func (t *Transaction) SetConfidence(c float64) {
	if c < 0 {
		c = 0
	} else if c > 1 {
		c = 1
	}
	t.Confidence = c
	t.NeedsReview = c < ReviewThreshold
}

// SignedAmount returns the amount with the sign implied by Type.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Type == TypeExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// DedupKey builds the exact-match composite key used by the deduplication
// engine: date | amount | description | accountID | cardID. Missing
// references normalize to a sentinel so that two rows without account refs
// still collide.
func (t *Transaction) DedupKey() string {
	account := dedupSentinel
	if t.AccountID != nil {
		account = t.AccountID.String()
	}
	card := dedupSentinel
	if t.CardID != nil {
		card = t.CardID.String()
	}
	return strings.Join([]string{
		t.Date.Format("2006-01-02"),
		t.Amount.StringFixed(2),
		t.Description,
		account,
		card,
	}, "|")
}

// ImportError describes a single malformed row. Rows that fail to parse are
// skipped and reported; they never abort the batch.
type ImportError struct {
	Line    int    `json:"line"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ImportError) Error() string {
	return fmt.Sprintf("line %d, field %s: %s", e.Line, e.Field, e.Message)
}
