package events

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koreacc/koreacc/internal/ledger"
	"github.com/koreacc/koreacc/internal/taxes"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testEvent(kind FlowKind, base string) Event {
	return Event{
		CompanyID:            1,
		CostCenterID:         3,
		DocTypeID:            1,
		PeriodID:             10,
		FlowKind:             kind,
		BaseAmount:           dec(base),
		Date:                 date(2026, 6, 15),
		PaymentChannel:       ChannelBank,
		CounterpartAccountID: 40,
		Memo:                 "sale",
	}
}

func iva16() taxes.TaxRule {
	return taxes.TaxRule{
		ID:        1,
		CompanyID: 1,
		Name:      "IVA 16%",
		Mode:      taxes.ModeRate,
		AppliesTo: taxes.AppliesBoth,
		Rate:      dec("16"),
		AccountID: 21,
		ValidFrom: date(2020, 1, 1),
	}
}

func TestExpandIncome(t *testing.T) {
	movs := Expand(testEvent(FlowIncome, "1000"), 11, []taxes.TaxRule{iva16()})
	require.Len(t, movs, 3)

	// Flow account receives the gross.
	assert.Equal(t, int64(11), movs[0].AccountID)
	assert.Equal(t, ledger.SideDebit, movs[0].Side)
	assert.True(t, movs[0].Amount.Equal(dec("1160")), "got %s", movs[0].Amount)

	assert.Equal(t, int64(40), movs[1].AccountID)
	assert.Equal(t, ledger.SideCredit, movs[1].Side)
	assert.True(t, movs[1].Amount.Equal(dec("1000")))

	assert.Equal(t, int64(21), movs[2].AccountID)
	assert.Equal(t, ledger.SideCredit, movs[2].Side)
	assert.True(t, movs[2].Amount.Equal(dec("160")))

	assert.NoError(t, ledger.CheckBalance(movs))
}

func TestExpandExpenseMirrored(t *testing.T) {
	movs := Expand(testEvent(FlowExpense, "500"), 11, []taxes.TaxRule{iva16()})
	require.Len(t, movs, 3)

	assert.Equal(t, ledger.SideCredit, movs[0].Side)
	assert.True(t, movs[0].Amount.Equal(dec("580")))
	assert.Equal(t, ledger.SideDebit, movs[1].Side)
	assert.Equal(t, ledger.SideDebit, movs[2].Side)
	assert.NoError(t, ledger.CheckBalance(movs))
}

func TestExpandNoTaxes(t *testing.T) {
	movs := Expand(testEvent(FlowIncome, "250"), 11, nil)
	require.Len(t, movs, 2)
	assert.True(t, movs[0].Amount.Equal(dec("250")))
	assert.True(t, movs[1].Amount.Equal(dec("250")))
	assert.NoError(t, ledger.CheckBalance(movs))
}

func TestExpandFixedFee(t *testing.T) {
	rule := taxes.TaxRule{
		Mode:      taxes.ModeFixed,
		AppliesTo: taxes.AppliesBoth,
		FixedFee:  dec("25.50"),
		AccountID: 21,
	}
	movs := Expand(testEvent(FlowIncome, "100"), 11, []taxes.TaxRule{rule})
	require.Len(t, movs, 3)
	assert.True(t, movs[0].Amount.Equal(dec("125.50")))
	assert.True(t, movs[2].Amount.Equal(dec("25.50")))
	assert.NoError(t, ledger.CheckBalance(movs))
}

func TestExpandCentavoResidualAbsorbed(t *testing.T) {
	// 33.33 * 16% = 5.3328: tax rounds to 5.33, gross to 38.66, so the
	// independent roundings leave no residual here.
	movs := Expand(testEvent(FlowIncome, "33.33"), 11, []taxes.TaxRule{iva16()})
	assert.NoError(t, ledger.CheckBalance(movs))

	// 33.335 * 16% = 5.3336: base rounds to 33.34 but tax to 5.33 and
	// gross to 38.67, leaving a centavo to absorb.
	movs = Expand(testEvent(FlowIncome, "33.335"), 11, []taxes.TaxRule{iva16()})
	assert.NoError(t, ledger.CheckBalance(movs))

	for _, base := range []string{"0.01", "99.995", "123.456", "10000.004"} {
		movs := Expand(testEvent(FlowIncome, base), 11, []taxes.TaxRule{iva16()})
		assert.NoError(t, ledger.CheckBalance(movs), "base %s", base)
	}
}

func TestExpandExemptRuleIgnored(t *testing.T) {
	rule := taxes.TaxRule{Mode: taxes.ModeExempt, AppliesTo: taxes.AppliesBoth}
	movs := Expand(testEvent(FlowIncome, "100"), 11, []taxes.TaxRule{rule})
	assert.Len(t, movs, 2)
	assert.NoError(t, ledger.CheckBalance(movs))
}
