package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmassis/fiflow/internal/domain/transaction"
)

func TestDocumentParser_Parse(t *testing.T) {
	p := NewDocumentParser()

	t.Run("statement lines with comma decimals", func(t *testing.T) {
		text := []byte(`EXTRATO DE CONTA CORRENTE
15/01/2024 PIX RECEBIDO JOAO 1.500,00
16/01/2024 UBER TRIP 23,50
`)
		result, err := p.Parse(context.Background(), text, nil)
		require.NoError(t, err)
		require.Len(t, result.Transactions, 2)

		first := result.Transactions[0]
		assert.Equal(t, "2024-01-15", first.Date.Format("2006-01-02"))
		assert.Equal(t, "PIX RECEBIDO JOAO", first.Description)
		assert.Equal(t, "1500.00", first.Amount.StringFixed(2))
		assert.Equal(t, transaction.TypeIncome, first.Type)

		// No credit keyword, so the row is an expense regardless of sign.
		second := result.Transactions[1]
		assert.Equal(t, transaction.TypeExpense, second.Type)
		assert.Equal(t, "23.50", second.Amount.StringFixed(2))
	})

	t.Run("currency marker stays out of the description", func(t *testing.T) {
		text := []byte("15/01/2024 COMPRA CARTAO R$ 23,50\n16/01/2024 PIX RECEBIDO MARIA R$ 1.500,00\n")
		result, err := p.Parse(context.Background(), text, nil)
		require.NoError(t, err)
		require.Len(t, result.Transactions, 2)

		first := result.Transactions[0]
		assert.Equal(t, "COMPRA CARTAO", first.Description)
		assert.Equal(t, "23.50", first.Amount.StringFixed(2))
		assert.Equal(t, transaction.TypeExpense, first.Type)

		second := result.Transactions[1]
		assert.Equal(t, "PIX RECEBIDO MARIA", second.Description)
		assert.Equal(t, "1500.00", second.Amount.StringFixed(2))
		assert.Equal(t, transaction.TypeIncome, second.Type)
	})

	t.Run("iso layout with period decimals", func(t *testing.T) {
		text := []byte("2024-01-15  DEPOSITO EM CONTA  1500.00\n2024-01-16  TARIFA MENSAL  -12.00\n")
		result, err := p.Parse(context.Background(), text, nil)
		require.NoError(t, err)
		require.Len(t, result.Transactions, 2)

		assert.Equal(t, transaction.TypeIncome, result.Transactions[0].Type)
		assert.Equal(t, "1500.00", result.Transactions[0].Amount.StringFixed(2))
		assert.Equal(t, transaction.TypeExpense, result.Transactions[1].Type)
	})

	t.Run("no layout matches", func(t *testing.T) {
		_, err := p.Parse(context.Background(), []byte("nothing that looks like a statement"), nil)
		assert.ErrorIs(t, err, ErrNoLayoutMatched)
	})

	t.Run("empty text", func(t *testing.T) {
		_, err := p.Parse(context.Background(), []byte("   \n "), nil)
		assert.ErrorIs(t, err, ErrEmptyFile)
	})
}
