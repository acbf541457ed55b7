package money

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
)

// TestDataGenerator generates realistic bank-statement test data using
// gofakeit. It lives here so every package that deals with statement rows
// shares the same fixtures.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a new test data generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(0), // Random seed
	}
}

// NewTestDataGeneratorWithSeed creates a generator with a specific seed for
// reproducibility.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(seed),
	}
}

// RandomAmount generates a random Money amount between minCents and maxCents.
func (g *TestDataGenerator) RandomAmount(currency string, minCents, maxCents int64) *Money {
	cents := g.faker.Number(int(minCents), int(maxCents))
	return New(int64(cents), currency)
}

// RandomDecimal generates a random positive decimal with two places.
func (g *TestDataGenerator) RandomDecimal(min, max float64) decimal.Decimal {
	return decimal.NewFromFloat(g.faker.Float64Range(min, max)).Round(2)
}

var merchants = []string{
	"PADARIA SAO JORGE",
	"SUPERMERCADO EXTRA",
	"UBER TRIP",
	"99 POP",
	"IFOOD RESTAURANTE",
	"POSTO SHELL",
	"FARMACIA DROGASIL",
	"NETFLIX SERVICOS",
	"SPOTIFY",
	"AMAZON BR MARKETPLACE",
	"LOJAS AMERICANAS",
	"CONTA DE LUZ ENEL",
	"ACADEMIA SMARTFIT",
}

var incomeDescriptions = []string{
	"PIX RECEBIDO MARIA SILVA",
	"TED RECEBIDA SALARIO",
	"DEPOSITO EM CONTA",
	"RENDIMENTO POUPANCA",
	"DIVIDENDOS ITSA4",
}

// Merchant returns a random merchant name.
func (g *TestDataGenerator) Merchant() string {
	return merchants[g.faker.Number(0, len(merchants)-1)]
}

// IncomeDescription returns a random credit-side statement description.
func (g *TestDataGenerator) IncomeDescription() string {
	return incomeDescriptions[g.faker.Number(0, len(incomeDescriptions)-1)]
}

// StatementRow is one generated bank-statement line before parsing.
type StatementRow struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	IsExpense   bool
}

// StatementRow generates a single statement row dated within the last year.
func (g *TestDataGenerator) StatementRow() StatementRow {
	isExpense := g.faker.Number(0, 9) < 7 // statements skew toward expenses

	row := StatementRow{
		Date:      g.faker.DateRange(time.Now().AddDate(-1, 0, 0), time.Now()),
		Amount:    g.RandomDecimal(0.01, 5000),
		IsExpense: isExpense,
	}
	if isExpense {
		row.Description = g.Merchant()
	} else {
		row.Description = g.IncomeDescription()
	}
	return row
}

// StatementRows generates count statement rows.
func (g *TestDataGenerator) StatementRows(count int) []StatementRow {
	rows := make([]StatementRow, count)
	for i := range rows {
		rows[i] = g.StatementRow()
	}
	return rows
}

// StatementCSV renders rows as a delimited statement file in the common
// Brazilian bank export shape: DD/MM/YYYY dates, comma decimals, signed
// amounts, no header.
func (g *TestDataGenerator) StatementCSV(rows []StatementRow, delimiter rune) []byte {
	var buf bytes.Buffer
	for _, row := range rows {
		amount := strings.ReplaceAll(row.Amount.StringFixed(2), ".", ",")
		if row.IsExpense {
			amount = "-" + amount
		}
		fmt.Fprintf(&buf, "%s%c%s%c%s\n",
			row.Date.Format("02/01/2006"), delimiter,
			row.Description, delimiter,
			amount)
	}
	return buf.Bytes()
}
