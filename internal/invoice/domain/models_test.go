package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billing "github.com/tradecove/billing/internal/billing/domain"
)

func TestInvoiceState_IsTerminal(t *testing.T) {
	terminal := []InvoiceState{StateSettled, StateDeclined, StateExpired}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), string(s))
	}
	live := []InvoiceState{StatePending, StateReserved, StatePartiallyCaptured, StateCaptured}
	for _, s := range live {
		assert.False(t, s.IsTerminal(), string(s))
	}
}

func TestInvoiceState_CanAdvanceTo(t *testing.T) {
	cases := []struct {
		from, to InvoiceState
		ok       bool
	}{
		{StatePending, StateReserved, true},
		{StateReserved, StatePartiallyCaptured, true},
		{StateReserved, StateCaptured, true},
		{StatePartiallyCaptured, StateCaptured, true},
		{StateCaptured, StateSettled, true},

		// backward moves never happen
		{StateCaptured, StateReserved, false},
		{StatePartiallyCaptured, StateReserved, false},
		{StateReserved, StateReserved, false},

		// declines and expiry only before full capture
		{StatePending, StateDeclined, true},
		{StateReserved, StateDeclined, true},
		{StatePartiallyCaptured, StateExpired, true},
		{StateCaptured, StateDeclined, false},
		{StateCaptured, StateExpired, false},

		// terminal states never move
		{StateSettled, StateDeclined, false},
		{StateDeclined, StateReserved, false},
		{StateExpired, StateCaptured, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanAdvanceTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestTransactionList_RoundTrip(t *testing.T) {
	records := []TransactionRecord{
		{ChargeID: "ch_1", Amount: 1500},
		{ChargeID: "ch_2", Amount: 500},
	}
	raw, err := EncodeTransactions(records)
	require.NoError(t, err)

	inv := Invoice{Transactions: raw}
	got, err := inv.TransactionList()
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestTransactionList_Empty(t *testing.T) {
	var inv Invoice
	got, err := inv.TransactionList()
	require.NoError(t, err)
	assert.Empty(t, got)

	raw, err := EncodeTransactions(nil)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(raw))
}

func TestFee_Apply(t *testing.T) {
	fixed := billing.Amount(250)
	bps := int64(150) // 1.5%

	cases := []struct {
		name     string
		fee      Fee
		captured billing.Amount
		want     billing.Amount
	}{
		{"fixed", Fee{Rule: FeeRuleFixed, FixedAmount: &fixed}, 10_000, 250},
		{"fixed nil amount", Fee{Rule: FeeRuleFixed}, 10_000, 0},
		{"percent", Fee{Rule: FeeRulePercent, PercentBasisPoints: &bps}, 10_000, 150},
		{"percent rounds down", Fee{Rule: FeeRulePercent, PercentBasisPoints: &bps}, 99, 1},
		{"percent nil bps", Fee{Rule: FeeRulePercent}, 10_000, 0},
		{"unknown rule", Fee{Rule: "flat_tax"}, 10_000, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.fee.Apply(tc.captured))
		})
	}
}
