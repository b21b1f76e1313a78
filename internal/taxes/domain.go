package taxes

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/koreacc/koreacc/internal/shared"
)

// Mode tells how a rule computes its tax amount.
type Mode string

const (
	ModeRate   Mode = "RATE"
	ModeFixed  Mode = "FIXED"
	ModeExempt Mode = "EXEMPT"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeRate, ModeFixed, ModeExempt:
		return true
	}
	return false
}

// AppliesTo selects which business flows a rule attaches to.
type AppliesTo string

const (
	AppliesIncome  AppliesTo = "INCOME"
	AppliesExpense AppliesTo = "EXPENSE"
	AppliesBoth    AppliesTo = "BOTH"
)

func (a AppliesTo) Valid() bool {
	switch a {
	case AppliesIncome, AppliesExpense, AppliesBoth:
		return true
	}
	return false
}

// Matches reports whether the rule covers the given flow kind.
func (a AppliesTo) Matches(flowKind string) bool {
	return a == AppliesBoth || string(a) == flowKind
}

// TaxRule attaches a tax computation to a company's flows over a validity
// window. AccountID is the ledger account the computed tax posts against.
type TaxRule struct {
	ID        int64
	CompanyID int64
	Name      string
	Mode      Mode
	AppliesTo AppliesTo
	Rate      decimal.Decimal
	FixedFee  decimal.Decimal
	AccountID int64
	ValidFrom time.Time
	ValidTo   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectiveAt reports whether the rule's validity window contains date.
func (t TaxRule) EffectiveAt(date time.Time) bool {
	if date.Before(t.ValidFrom) {
		return false
	}
	return t.ValidTo == nil || !date.After(*t.ValidTo)
}

// CreateInput carries fields for a new tax rule.
type CreateInput struct {
	CompanyID int64
	Name      string
	Mode      Mode
	AppliesTo AppliesTo
	Rate      decimal.Decimal
	FixedFee  decimal.Decimal
	AccountID int64
	ValidFrom time.Time
	ValidTo   *time.Time
}

func (in CreateInput) Validate() error {
	if in.CompanyID == 0 {
		return fmt.Errorf("taxes: company id required: %w", shared.ErrValidation)
	}
	if !in.Mode.Valid() {
		return fmt.Errorf("taxes: unknown mode %q: %w", in.Mode, shared.ErrValidation)
	}
	if !in.AppliesTo.Valid() {
		return fmt.Errorf("taxes: unknown flow selector %q: %w", in.AppliesTo, shared.ErrValidation)
	}
	switch in.Mode {
	case ModeRate:
		if in.Rate.IsNegative() || in.Rate.IsZero() {
			return fmt.Errorf("taxes: rate must be positive: %w", shared.ErrValidation)
		}
	case ModeFixed:
		if in.FixedFee.IsNegative() || in.FixedFee.IsZero() {
			return fmt.Errorf("taxes: fixed fee must be positive: %w", shared.ErrValidation)
		}
	}
	if in.Mode != ModeExempt && in.AccountID == 0 {
		return fmt.Errorf("taxes: tax account required: %w", shared.ErrValidation)
	}
	if in.ValidFrom.IsZero() {
		return fmt.Errorf("taxes: valid-from date required: %w", shared.ErrValidation)
	}
	if in.ValidTo != nil && in.ValidTo.Before(in.ValidFrom) {
		return fmt.Errorf("taxes: valid-to before valid-from: %w", shared.ErrValidation)
	}
	return nil
}

// UpdateInput patches a tax rule.
type UpdateInput struct {
	Name         *string
	Mode         *Mode
	AppliesTo    *AppliesTo
	Rate         *decimal.Decimal
	FixedFee     *decimal.Decimal
	AccountID    *int64
	ValidFrom    *time.Time
	ValidTo      *time.Time
	ClearValidTo bool
}

// ErrRuleNotFound indicates a missing tax rule.
var ErrRuleNotFound = fmt.Errorf("taxes: rule %w", shared.ErrNotFound)
