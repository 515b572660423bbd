package ingest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCell(t *testing.T) {
	assert.Equal(t, "Shop Vake LTD", normalizeCell("  Shop  Vake \t LTD "))
	assert.Equal(t, "", normalizeCell("    "))
}

func TestParseDate(t *testing.T) {
	want := time.Date(2025, 5, 13, 0, 0, 0, 0, time.UTC)
	tests := []string{
		"13/05/2025",
		"13.05.2025",
		"13-05-2025",
		"2025-05-13",
		"2025/05/13",
		"13-May-2025",
		"2025-05-13T00:00:00",
	}
	for _, in := range tests {
		got, err := parseDate(in)
		require.NoError(t, err, "input %q", in)
		assert.True(t, got.Equal(want), "input %q parsed as %s", in, got)
	}
}

func TestParseDate_DayFirstWins(t *testing.T) {
	// 03/05 is the 3rd of May, not March 5th; both banks export day-first.
	got, err := parseDate("03/05/2025")
	require.NoError(t, err)
	assert.Equal(t, time.May, got.Month())
	assert.Equal(t, 3, got.Day())
}

func TestParseDate_ExcelSerial(t *testing.T) {
	// 45790 is 2025-05-13 in the 1900 date system.
	got, err := parseDate("45790")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 5, 13, 0, 0, 0, 0, time.UTC)), "got %s", got)
}

func TestParseDate_Invalid(t *testing.T) {
	for _, in := range []string{"", "not a date", "13/13/2025"} {
		_, err := parseDate(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1410.00", "1410"},
		{"1,410.00", "1410"},
		{"1.410,00", "1410"},
		{"1410,50", "1410.5"},
		{"1,234,567.89", "1234567.89"},
		{"2 322.46", "2322.46"},
		{"1410.00 GEL", "1410"},
		{"₾1410.00", "1410"},
		{"(25.00)", "-25"},
		{"-17,40", "-17.4"},
	}
	for _, tt := range tests {
		got, err := parseAmount(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "input %q parsed as %s", tt.in, got)
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "-", "..."} {
		_, err := parseAmount(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestLooksLikeTaxID(t *testing.T) {
	assert.True(t, looksLikeTaxID("204876165"))   // 9-digit org id
	assert.True(t, looksLikeTaxID("01024067894")) // 11-digit personal id
	assert.False(t, looksLikeTaxID("Shop Vake LTD"))
	assert.False(t, looksLikeTaxID("12345"))
	assert.False(t, looksLikeTaxID("20487616A"))
}

func TestDetectColumns(t *testing.T) {
	cols, err := detectColumns([]string{"Date", "Description", "Counterparty", "Amount", "Balance"})
	require.NoError(t, err)
	assert.Equal(t, 0, cols.date)
	assert.Equal(t, 1, cols.description)
	assert.Equal(t, 2, cols.counterparty)
	assert.Equal(t, 3, cols.amount)
	assert.Equal(t, 4, cols.balance)

	cols, err = detectColumns([]string{"Payment Date", "Payer", "Amount"})
	require.NoError(t, err)
	assert.Equal(t, -1, cols.balance)

	_, err = detectColumns([]string{"Foo", "Bar"})
	assert.Error(t, err)
}
