package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rmassis/fiflow/internal/domain/transaction"
)

func buildWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, val := range row {
			cellRef, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cellRef, val))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestExcelParser_Parse(t *testing.T) {
	p := NewExcelParser()
	cfg := &Config{Delimiter: ',', DateCol: 0, DescCol: 1, AmountCol: 2, TypeCol: -1, HasHeaders: true}

	t.Run("text and numeric cells mix", func(t *testing.T) {
		data := buildWorkbook(t, [][]interface{}{
			{"Data", "Descricao", "Valor"},
			{"15/01/2024", "Uber Trip", "-23,50"},
			{45306.0, "Rendimento Poupanca", 12.34},
		})

		result, err := p.Parse(context.Background(), data, cfg)
		require.NoError(t, err)
		require.Len(t, result.Transactions, 2)
		assert.Empty(t, result.Errors)

		first := result.Transactions[0]
		assert.Equal(t, "2024-01-15", first.Date.Format("2006-01-02"))
		assert.Equal(t, "23.50", first.Amount.StringFixed(2))
		assert.Equal(t, transaction.TypeExpense, first.Type)

		// Serial 45306 is 2024-01-15 in the 1900 date system.
		second := result.Transactions[1]
		assert.Equal(t, "2024-01-15", second.Date.Format("2006-01-02"))
		assert.Equal(t, "12.34", second.Amount.StringFixed(2))
		assert.Equal(t, transaction.TypeIncome, second.Type)
	})

	t.Run("bad row is skipped with an error", func(t *testing.T) {
		data := buildWorkbook(t, [][]interface{}{
			{"Data", "Descricao", "Valor"},
			{"not a date", "Uber Trip", "-23,50"},
			{"16/01/2024", "Padaria", "-5,00"},
		})

		result, err := p.Parse(context.Background(), data, cfg)
		require.NoError(t, err)
		assert.Len(t, result.Transactions, 1)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "date", result.Errors[0].Field)
		assert.Equal(t, 2, result.Errors[0].Line)
	})

	t.Run("invalid mapping is rejected", func(t *testing.T) {
		_, err := p.Parse(context.Background(), nil, &Config{Delimiter: ',', DateCol: -1, DescCol: 1, AmountCol: 2})
		assert.ErrorIs(t, err, ErrInvalidMapping)
	})

	t.Run("empty workbook", func(t *testing.T) {
		data := buildWorkbook(t, [][]interface{}{})
		_, err := p.Parse(context.Background(), data, cfg)
		assert.ErrorIs(t, err, ErrEmptyFile)
	})
}
