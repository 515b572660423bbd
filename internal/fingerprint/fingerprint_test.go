package fingerprint_test

import (
	"testing"
	"time"

	"DebtRadar/internal/fingerprint"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Deterministic(t *testing.T) {
	b := fingerprint.NewBuilder()
	date := time.Date(2025, 5, 13, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("1410.00")
	balance := decimal.RequireFromString("2322.46")

	first := b.Build(date, amount, balance, "Shop Vake LTD")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, b.Build(date, amount, balance, "Shop Vake LTD"))
	}
	assert.Equal(t, "2025-05-13|141000|Shop Vake LTD|232246", first)
}

func TestBuild_BalanceDisambiguatesSameDaySameAmount(t *testing.T) {
	// Real-world case: two legitimate 1410.00 payments on the same day,
	// distinguishable only by the account balance after each.
	b := fingerprint.NewBuilder()
	date := time.Date(2025, 5, 13, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("1410.00")

	fp1 := b.Build(date, amount, decimal.RequireFromString("2322.46"), "Shop Vake LTD")
	fp2 := b.Build(date, amount, decimal.RequireFromString("6773.46"), "Shop Vake LTD")
	assert.NotEqual(t, fp1, fp2)

	legacy := fingerprint.Builder{IncludeBalance: false}
	assert.Equal(t,
		legacy.Build(date, amount, decimal.RequireFromString("2322.46"), "Shop Vake LTD"),
		legacy.Build(date, amount, decimal.RequireFromString("6773.46"), "Shop Vake LTD"),
		"legacy scheme cannot tell the two payments apart")
}

func TestBuild_NormalizesCustomerID(t *testing.T) {
	b := fingerprint.NewBuilder()
	date := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	amount := decimal.NewFromInt(50)

	fp1 := b.Build(date, amount, decimal.Zero, "  Shop  Vake   LTD ")
	fp2 := b.Build(date, amount, decimal.Zero, "Shop Vake LTD")
	assert.Equal(t, fp2, fp1)
}

func TestBuild_MissingValuesTreatedAsZero(t *testing.T) {
	b := fingerprint.NewBuilder()
	date := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	fp := b.Build(date, decimal.Decimal{}, decimal.Decimal{}, "c1")
	assert.Equal(t, "2025-01-02|0|c1|0", fp)
}

func TestMinorUnits_HalfUpRounding(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1410.00", 141000},
		{"0.005", 1},
		{"10.004999", 1000},
		{"10.005", 1001},
		{"1409.999999", 141000},
		{"-0.005", -1},
	}
	for _, tt := range tests {
		got := fingerprint.MinorUnits(decimal.RequireFromString(tt.in))
		assert.Equal(t, tt.want, got, "input %s", tt.in)
	}
}

func TestExtract_RoundTrip(t *testing.T) {
	b := fingerprint.NewBuilder()
	date := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	fp := b.Build(date, decimal.RequireFromString("99.90"), decimal.RequireFromString("1234.56"), " ACME  Distribution ")

	gotDate, ok := fingerprint.ExtractDate(fp)
	require.True(t, ok)
	assert.True(t, gotDate.Equal(date))

	gotID, ok := fingerprint.ExtractCustomerID(fp)
	require.True(t, ok)
	assert.Equal(t, "ACME Distribution", gotID)
}

func TestExtract_Malformed(t *testing.T) {
	_, ok := fingerprint.ExtractDate("not-a-fingerprint")
	assert.False(t, ok)
	_, ok = fingerprint.ExtractCustomerID("a|b")
	assert.False(t, ok)
	_, ok = fingerprint.ExtractDate("13/05/2025|1|c|2")
	assert.False(t, ok)
}
