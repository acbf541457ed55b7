package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmassis/fiflow/internal/domain/transaction"
)

func TestOFXParser_Parse(t *testing.T) {
	p := NewOFXParser()

	t.Run("credit block without closing tags", func(t *testing.T) {
		data := []byte("<STMTTRN><DTPOSTED>20240115<MEMO>PIX RECEBIDO JOAO<TRNAMT>+1500.00</STMTTRN>")
		result, err := p.Parse(context.Background(), data, nil)
		require.NoError(t, err)
		require.Len(t, result.Transactions, 1)

		tx := result.Transactions[0]
		assert.Equal(t, "2024-01-15", tx.Date.Format("2006-01-02"))
		assert.Equal(t, "PIX RECEBIDO JOAO", tx.Description)
		assert.Equal(t, "1500.00", tx.Amount.StringFixed(2))
		assert.Equal(t, transaction.TypeIncome, tx.Type)
	})

	t.Run("negative amount is an expense with absolute magnitude", func(t *testing.T) {
		data := []byte(`
<STMTTRN>
  <DTPOSTED>20240116120000[-3:BRT]
  <NAME>UBER TRIP
  <TRNAMT>-23.50
</STMTTRN>`)
		result, err := p.Parse(context.Background(), data, nil)
		require.NoError(t, err)
		require.Len(t, result.Transactions, 1)

		tx := result.Transactions[0]
		assert.Equal(t, "2024-01-16", tx.Date.Format("2006-01-02"))
		assert.Equal(t, "UBER TRIP", tx.Description)
		assert.Equal(t, "23.50", tx.Amount.StringFixed(2))
		assert.Equal(t, transaction.TypeExpense, tx.Type)
	})

	t.Run("memo preferred over name", func(t *testing.T) {
		data := []byte("<STMTTRN><DTPOSTED>20240115<NAME>GENERIC<MEMO>SPECIFIC MEMO<TRNAMT>-1.00</STMTTRN>")
		result, err := p.Parse(context.Background(), data, nil)
		require.NoError(t, err)
		require.Len(t, result.Transactions, 1)
		assert.Equal(t, "SPECIFIC MEMO", result.Transactions[0].Description)
	})

	t.Run("bad block is reported and the rest proceeds", func(t *testing.T) {
		data := []byte("<STMTTRN><DTPOSTED>bogus<MEMO>X<TRNAMT>-1.00</STMTTRN>" +
			"<STMTTRN><DTPOSTED>20240117<MEMO>OK<TRNAMT>-2.00</STMTTRN>")
		result, err := p.Parse(context.Background(), data, nil)
		require.NoError(t, err)
		assert.Len(t, result.Transactions, 1)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "date", result.Errors[0].Field)
		assert.Equal(t, 1, result.Errors[0].Line)
	})

	t.Run("no blocks", func(t *testing.T) {
		_, err := p.Parse(context.Background(), []byte("<OFX><SIGNONMSGSRSV1></SIGNONMSGSRSV1></OFX>"), nil)
		assert.ErrorIs(t, err, ErrEmptyFile)
	})
}
