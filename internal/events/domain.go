package events

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/koreacc/koreacc/internal/shared"
)

// FlowKind tells which direction money moves in a business event.
type FlowKind string

const (
	FlowIncome  FlowKind = "INCOME"
	FlowExpense FlowKind = "EXPENSE"
)

func (k FlowKind) Valid() bool {
	return k == FlowIncome || k == FlowExpense
}

// PaymentChannel names the settlement vehicle of an event. Each channel maps
// to a ledger account per company.
type PaymentChannel string

const (
	ChannelBank       PaymentChannel = "BANK"
	ChannelCash       PaymentChannel = "CASH"
	ChannelReceivable PaymentChannel = "RECEIVABLE"
	ChannelPayable    PaymentChannel = "PAYABLE"
)

func (c PaymentChannel) Valid() bool {
	switch c {
	case ChannelBank, ChannelCash, ChannelReceivable, ChannelPayable:
		return true
	}
	return false
}

// Event is one monetary business event to expand into a balanced entry.
type Event struct {
	CompanyID            int64
	CostCenterID         int64
	DocTypeID            int64
	PeriodID             int64
	FlowKind             FlowKind
	BaseAmount           decimal.Decimal
	Date                 time.Time
	PaymentChannel       PaymentChannel
	CounterpartAccountID int64
	Memo                 string
}

// Validate checks the event before any account or tax lookup happens.
func (ev Event) Validate() error {
	if ev.CompanyID == 0 {
		return fmt.Errorf("events: company id required: %w", shared.ErrValidation)
	}
	if ev.CostCenterID == 0 {
		return fmt.Errorf("events: cost center required: %w", shared.ErrValidation)
	}
	if ev.DocTypeID == 0 {
		return fmt.Errorf("events: document type required: %w", shared.ErrValidation)
	}
	if ev.PeriodID == 0 {
		return fmt.Errorf("events: period required: %w", shared.ErrValidation)
	}
	if !ev.FlowKind.Valid() {
		return fmt.Errorf("events: unknown flow kind %q: %w", ev.FlowKind, shared.ErrValidation)
	}
	if !ev.BaseAmount.IsPositive() {
		return fmt.Errorf("events: base amount must be positive, got %s: %w", ev.BaseAmount, shared.ErrValidation)
	}
	if !ev.PaymentChannel.Valid() {
		return fmt.Errorf("events: unknown payment channel %q: %w", ev.PaymentChannel, shared.ErrValidation)
	}
	if ev.CounterpartAccountID == 0 {
		return fmt.Errorf("events: counterpart account required: %w", shared.ErrValidation)
	}
	if ev.Date.IsZero() {
		return fmt.Errorf("events: event date required: %w", shared.ErrValidation)
	}
	return nil
}

var (
	// ErrChannelUnmapped indicates the company has no flow account configured
	// for the payment channel.
	ErrChannelUnmapped = fmt.Errorf("events: payment channel has no flow account mapping: %w", shared.ErrValidation)
	// ErrTaxAccountMissing indicates an effective tax rule without a posting
	// account.
	ErrTaxAccountMissing = fmt.Errorf("events: tax rule has no posting account: %w", shared.ErrValidation)
)
