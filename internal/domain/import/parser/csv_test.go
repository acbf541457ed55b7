package parser

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmassis/fiflow/internal/domain/transaction"
)

func semicolonConfig() *Config {
	return &Config{
		Delimiter: ';',
		DateCol:   0,
		DescCol:   1,
		AmountCol: 2,
		TypeCol:   -1,
	}
}

func TestCSVParser_Parse(t *testing.T) {
	p := NewCSVParser()

	t.Run("semicolon row with negative comma amount", func(t *testing.T) {
		result, err := p.Parse(context.Background(), []byte("15/01/2024;Uber Trip;-23,50\n"), semicolonConfig())
		require.NoError(t, err)
		require.Len(t, result.Transactions, 1)
		assert.Empty(t, result.Errors)

		tx := result.Transactions[0]
		assert.Equal(t, "2024-01-15", tx.Date.Format("2006-01-02"))
		assert.Equal(t, "Uber Trip", tx.Description)
		assert.Equal(t, "23.50", tx.Amount.StringFixed(2))
		assert.Equal(t, transaction.TypeExpense, tx.Type)
		assert.True(t, tx.NeedsReview)
		assert.Empty(t, tx.Category)
		assert.Zero(t, tx.Confidence)
	})

	t.Run("positive amount defaults to income", func(t *testing.T) {
		result, err := p.Parse(context.Background(), []byte("15/01/2024;Salario;1500,00\n"), semicolonConfig())
		require.NoError(t, err)
		require.Len(t, result.Transactions, 1)
		assert.Equal(t, transaction.TypeIncome, result.Transactions[0].Type)
	})

	t.Run("type column overrides amount sign", func(t *testing.T) {
		cfg := semicolonConfig()
		cfg.TypeCol = 3
		result, err := p.Parse(context.Background(), []byte("15/01/2024;Estorno;23,50;D\n"), cfg)
		require.NoError(t, err)
		require.Len(t, result.Transactions, 1)
		assert.Equal(t, transaction.TypeExpense, result.Transactions[0].Type)
	})

	t.Run("header row is skipped", func(t *testing.T) {
		cfg := semicolonConfig()
		cfg.HasHeaders = true
		data := []byte("Data;Descricao;Valor\n15/01/2024;Uber Trip;-23,50\n")
		result, err := p.Parse(context.Background(), data, cfg)
		require.NoError(t, err)
		assert.Len(t, result.Transactions, 1)
		assert.Empty(t, result.Errors)
	})

	t.Run("bad date becomes one error and zero transactions", func(t *testing.T) {
		result, err := p.Parse(context.Background(), []byte("32/13/2024;Uber Trip;-23,50\n"), semicolonConfig())
		require.NoError(t, err)
		assert.Empty(t, result.Transactions)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "date", result.Errors[0].Field)
		assert.Equal(t, 1, result.Errors[0].Line)
	})

	t.Run("bad row does not abort the batch", func(t *testing.T) {
		data := []byte("15/01/2024;Uber Trip;-23,50\n16/01/2024;;10,00\n17/01/2024;Padaria;-5,00\n")
		result, err := p.Parse(context.Background(), data, semicolonConfig())
		require.NoError(t, err)
		assert.Len(t, result.Transactions, 2)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "description", result.Errors[0].Field)
		assert.Equal(t, 2, result.Errors[0].Line)
	})

	t.Run("latin-1 fallback decodes accented descriptions", func(t *testing.T) {
		// "Crédito" encoded as ISO-8859-1.
		data := []byte("15/01/2024;Cr\xe9dito Salario;1500,00\n")
		result, err := p.Parse(context.Background(), data, semicolonConfig())
		require.NoError(t, err)
		require.Len(t, result.Transactions, 1)
		assert.Equal(t, "Crédito Salario", result.Transactions[0].Description)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := p.Parse(context.Background(), []byte(""), semicolonConfig())
		assert.ErrorIs(t, err, ErrEmptyFile)
	})
}

func TestCSVParser_ParseHeadered(t *testing.T) {
	p := NewCSVParser()

	data := []byte("data;descricao;valor;tipo\n15/01/2024;Uber Trip;23,50;debito\n16/01/2024;Pix Recebido;100,00;credito\n")
	result, err := p.ParseHeadered(context.Background(), data, ';')
	require.NoError(t, err)
	require.Len(t, result.Transactions, 2)

	assert.Equal(t, transaction.TypeExpense, result.Transactions[0].Type)
	assert.Equal(t, transaction.TypeIncome, result.Transactions[1].Type)
	assert.Equal(t, "23.50", result.Transactions[0].Amount.StringFixed(2))
}

func TestCSVParser_ParseHeadered_ConcurrentDelimiters(t *testing.T) {
	p := NewCSVParser()

	semicolon := []byte("data;descricao;valor\n15/01/2024;Uber Trip;-23,50\n")
	comma := []byte("date,description,amount\n16/01/2024,Padaria,\"-5,00\"\n")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			result, err := p.ParseHeadered(context.Background(), semicolon, ';')
			if assert.NoError(t, err) && assert.Len(t, result.Transactions, 1) {
				assert.Equal(t, "Uber Trip", result.Transactions[0].Description)
				assert.Equal(t, "23.50", result.Transactions[0].Amount.StringFixed(2))
			}
		}()
		go func() {
			defer wg.Done()
			result, err := p.ParseHeadered(context.Background(), comma, ',')
			if assert.NoError(t, err) && assert.Len(t, result.Transactions, 1) {
				assert.Equal(t, "Padaria", result.Transactions[0].Description)
				assert.Equal(t, "5.00", result.Transactions[0].Amount.StringFixed(2))
			}
		}()
	}
	wg.Wait()
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{"valid", &Config{Delimiter: ',', DateCol: 0, DescCol: 1, AmountCol: 2, TypeCol: -1}, false},
		{"tab delimiter", &Config{Delimiter: '\t', DateCol: 0, DescCol: 1, AmountCol: 2}, false},
		{"nil", nil, true},
		{"unsupported delimiter", &Config{Delimiter: ':', DateCol: 0, DescCol: 1, AmountCol: 2}, true},
		{"missing amount column", &Config{Delimiter: ',', DateCol: 0, DescCol: 1, AmountCol: -1}, true},
		{"unknown encoding", &Config{Delimiter: ',', Encoding: "utf-16", DateCol: 0, DescCol: 1, AmountCol: 2}, true},
		{"latin-1 encoding", &Config{Delimiter: ',', Encoding: EncodingLatin1, DateCol: 0, DescCol: 1, AmountCol: 2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMapping)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestForFormat(t *testing.T) {
	for _, f := range []Format{FormatCSV, FormatExcel, FormatOFX, FormatDocument} {
		p, err := ForFormat(f)
		require.NoError(t, err)
		assert.NotNil(t, p)
	}

	_, err := ForFormat(Format("yaml"))
	assert.Error(t, err)
}
