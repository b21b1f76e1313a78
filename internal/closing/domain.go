package closing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/koreacc/koreacc/internal/accounts"
	"github.com/koreacc/koreacc/internal/shared"
)

// CloseInput carries the parameters of an exercise close.
type CloseInput struct {
	ExerciseID       int64
	ResultAccountID  int64
	TransferToEquity bool
	EquityAccountID  int64
	CostCenterID     int64
	ActorID          int64
}

func (in CloseInput) Validate() error {
	if in.ExerciseID == 0 {
		return fmt.Errorf("closing: exercise id required: %w", shared.ErrValidation)
	}
	if in.ResultAccountID == 0 {
		return fmt.Errorf("closing: result account required: %w", shared.ErrValidation)
	}
	if in.CostCenterID == 0 {
		return fmt.Errorf("closing: cost center required: %w", shared.ErrValidation)
	}
	if in.TransferToEquity && in.EquityAccountID == 0 {
		return fmt.Errorf("closing: equity account required when transferring to equity: %w", shared.ErrValidation)
	}
	return nil
}

// AccountBalance is one account's summed movement activity over a scope.
type AccountBalance struct {
	AccountID int64
	Code      string
	Type      accounts.AccountType
	Nature    accounts.Nature
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Net is the balance in the account's own sign convention: debit-natured
// accounts grow with debits, credit-natured with credits.
func (b AccountBalance) Net() decimal.Decimal {
	if b.Nature == accounts.NatureCredit {
		return b.Credit.Sub(b.Debit).Round(2)
	}
	return b.Debit.Sub(b.Credit).Round(2)
}

// RawNet is debit minus credit regardless of nature, the convention used
// for carry-forward lines.
func (b AccountBalance) RawNet() decimal.Decimal {
	return b.Debit.Sub(b.Credit).Round(2)
}

// CarryForward reports the outcome of the opening-entry recomputation that
// follows a close. It is advisory: a failed carry-forward never undoes the
// close itself.
type CarryForward struct {
	Attempted   bool   `json:"attempted"`
	OK          bool   `json:"ok"`
	EntryID     int64  `json:"entryId,omitempty"`
	Provisional bool   `json:"provisional"`
	Error       string `json:"error,omitempty"`
	Enqueued    bool   `json:"enqueued,omitempty"`
	Notice      string `json:"notice,omitempty"`
}

// CloseResult is the asymmetric outcome of a close: the close itself either
// committed or the whole call failed, while the carry-forward carries its
// own independent status.
type CloseResult struct {
	Closed         bool          `json:"closed"`
	ClosingEntryID int64         `json:"closingEntryId"`
	EquityEntryID  *int64        `json:"equityEntryId,omitempty"`
	NetResult      string        `json:"netResult"`
	CarryForward   *CarryForward `json:"carryForward,omitempty"`
}

var (
	// ErrAlreadyClosed rejects closing an exercise twice without reopening.
	ErrAlreadyClosed = fmt.Errorf("closing: exercise is already closed: %w", shared.ErrConflict)
	// ErrNoPeriods rejects closing an exercise that has no periods.
	ErrNoPeriods = fmt.Errorf("closing: exercise has no periods: %w", shared.ErrConflict)
	// ErrNoNextExercise indicates no destination exercise for carry-forward.
	ErrNoNextExercise = fmt.Errorf("closing: next exercise %w", shared.ErrNotFound)
)
