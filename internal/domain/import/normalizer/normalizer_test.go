package normalizer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"slash DD/MM/YYYY", "15/01/2024", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"dash DD-MM-YYYY", "15-01-2024", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"iso YYYY-MM-DD", "2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"two digit year low", "15/01/24", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"two digit year high", "15/01/99", time.Date(2099, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"surrounding spaces", "  31/12/2023 ", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), false},
		{"impossible date", "32/13/2024", time.Time{}, true},
		{"empty", "", time.Time{}, true},
		{"garbage", "not a date", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestFromSerial(t *testing.T) {
	// 45306 is 2024-01-15 in the 1900 date system.
	got, err := FromSerial(45306)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), got)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain comma decimal", "23,50", "23.5", false},
		{"negative", "-23,50", "-23.5", false},
		{"explicit plus", "+1500,00", "1500", false},
		{"thousands separator", "1.234,56", "1234.56", false},
		{"currency symbol", "R$ 1.500,00", "1500", false},
		{"euro symbol", "€99,90", "99.9", false},
		{"integer", "42", "42", false},
		{"empty", "", "", true},
		{"garbage", "abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseAmount_RoundTrip(t *testing.T) {
	// Normalization is idempotent on already-canonical strings.
	for _, raw := range []string{"0.00", "23.50", "-23.50", "1234.56", "999999.99"} {
		d, err := decimal.NewFromString(raw)
		require.NoError(t, err)

		back, err := ParseAmount(FormatAmount(d))
		require.NoError(t, err)
		assert.True(t, d.Equal(back), "round trip changed %s to %s", d, back)
	}
}

func TestCleanDescription(t *testing.T) {
	assert.Equal(t, "Uber Trip", CleanDescription("  Uber   Trip  "))
	assert.Equal(t, "PIX RECEBIDO JOAO", CleanDescription("PIX\tRECEBIDO\n JOAO"))
	assert.Equal(t, "", CleanDescription("   "))
}
