package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/koreacc/koreacc/internal/shared"
)

// EntryState is the entry lifecycle. State only ever moves forward; the
// administrative ChangeState override is the single exception.
type EntryState string

const (
	StateDraft    EntryState = "DRAFT"
	StateApproved EntryState = "APPROVED"
	StatePosted   EntryState = "POSTED"
)

func (s EntryState) Valid() bool {
	switch s {
	case StateDraft, StateApproved, StatePosted:
		return true
	}
	return false
}

// Side is the posting side of a movement line.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

func (s Side) Valid() bool {
	return s == SideDebit || s == SideCredit
}

// Opposite returns the other posting side.
func (s Side) Opposite() Side {
	if s == SideDebit {
		return SideCredit
	}
	return SideDebit
}

// Entry is one journal document. The tuple (doc type, fiscal year, fiscal
// month, consecutive, cost center) is unique; the folio string renders it.
type Entry struct {
	ID            int64
	CompanyID     int64
	DocTypeID     int64
	PeriodID      int64
	AuthorID      int64
	CostCenterID  int64
	Folio         string
	Memo          string
	State         EntryState
	EntryDate     time.Time
	Consecutive   int
	FiscalYear    int
	FiscalMonth   int
	OriginEntryID *int64
	Deleted       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Editable reports whether the entry itself still accepts mutation. The
// owning period must additionally be open; services check both.
func (e Entry) Editable() bool {
	return e.State == StateDraft && !e.Deleted
}

// Movement is one line of an entry.
type Movement struct {
	ID            int64
	EntryID       int64
	AccountID     int64
	Date          time.Time
	Side          Side
	Amount        decimal.Decimal
	CostCenterID  *int64
	TaxDocumentID *string
	Counterparty  string
}

// MovementInput carries one candidate line before persistence.
type MovementInput struct {
	AccountID     int64
	Date          time.Time
	Side          Side
	Amount        decimal.Decimal
	CostCenterID  *int64
	TaxDocumentID string
	Counterparty  string
}

// Validate checks the per-line rules that hold for every entry variant.
func (in MovementInput) Validate() error {
	if in.AccountID == 0 {
		return fmt.Errorf("ledger: movement account required: %w", shared.ErrValidation)
	}
	if !in.Side.Valid() {
		return fmt.Errorf("ledger: movement side must be DEBIT or CREDIT, got %q: %w", in.Side, shared.ErrValidation)
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("ledger: movement amount must be positive, got %s: %w", in.Amount, shared.ErrValidation)
	}
	return nil
}

// CreateInput carries everything needed to create an entry with its lines.
type CreateInput struct {
	CompanyID     int64
	DocTypeID     int64
	PeriodID      int64
	AuthorID      int64
	CostCenterID  int64
	Memo          string
	EntryDate     time.Time
	OriginEntryID *int64
	State         EntryState
	Movements     []MovementInput

	// FolioOverride replaces the formatted folio text while still consuming
	// a consecutive from the sequencer. Used for closing entries, which
	// carry a fixed CIERRE-{company}-{year} label.
	FolioOverride string
}

// Validate checks the entry-level rules shared by strict and permissive
// creation. The balance invariant is checked separately.
func (in CreateInput) Validate() error {
	if in.CompanyID == 0 {
		return fmt.Errorf("ledger: company id required: %w", shared.ErrValidation)
	}
	if in.DocTypeID == 0 {
		return fmt.Errorf("ledger: document type required: %w", shared.ErrValidation)
	}
	if in.PeriodID == 0 {
		return fmt.Errorf("ledger: period required: %w", shared.ErrValidation)
	}
	if in.AuthorID == 0 {
		return fmt.Errorf("ledger: author required: %w", shared.ErrValidation)
	}
	if in.CostCenterID == 0 {
		return fmt.Errorf("ledger: cost center required: %w", shared.ErrValidation)
	}
	if in.Memo == "" {
		return fmt.Errorf("ledger: memo required: %w", shared.ErrValidation)
	}
	if in.EntryDate.IsZero() {
		return fmt.Errorf("ledger: entry date required: %w", shared.ErrValidation)
	}
	if in.State != "" && !in.State.Valid() {
		return fmt.Errorf("ledger: unknown state %q: %w", in.State, shared.ErrValidation)
	}
	if len(in.Movements) < 2 {
		return fmt.Errorf("ledger: at least 2 movements required, got %d: %w", len(in.Movements), shared.ErrValidation)
	}
	for i, m := range in.Movements {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return nil
}

// UpdateInput patches the mutable header fields of a DRAFT entry.
type UpdateInput struct {
	Memo         *string
	EntryDate    *time.Time
	CostCenterID *int64
	DocTypeID    *int64
}

// Filter narrows entry listings.
type Filter struct {
	CompanyID     int64
	PeriodID      int64
	DocTypeID     int64
	CostCenterID  int64
	State         EntryState
	OriginEntryID *int64
	From          *time.Time
	To            *time.Time
}

// Totals sums the movement amounts by side, rounded to centavos.
func Totals(movs []MovementInput) (debits, credits decimal.Decimal) {
	for _, m := range movs {
		if m.Side == SideDebit {
			debits = debits.Add(m.Amount)
		} else {
			credits = credits.Add(m.Amount)
		}
	}
	return debits.Round(2), credits.Round(2)
}

// CheckBalance enforces the double-entry invariant: both sides present and
// equal to 2 decimals. The returned error names the computed imbalance.
func CheckBalance(movs []MovementInput) error {
	var hasDebit, hasCredit bool
	for _, m := range movs {
		if m.Side == SideDebit {
			hasDebit = true
		} else if m.Side == SideCredit {
			hasCredit = true
		}
	}
	if !hasDebit || !hasCredit {
		return fmt.Errorf("ledger: entry needs at least one debit and one credit line: %w", shared.ErrValidation)
	}
	debits, credits := Totals(movs)
	if !debits.Equal(credits) {
		return fmt.Errorf("ledger: entry is unbalanced, debit %s vs credit %s, diff %s: %w",
			debits, credits, debits.Sub(credits), shared.ErrValidation)
	}
	return nil
}

var (
	// ErrEntryNotFound indicates a missing entry.
	ErrEntryNotFound = fmt.Errorf("ledger: entry %w", shared.ErrNotFound)
	// ErrNotEditable rejects mutation of a non-DRAFT or deleted entry.
	ErrNotEditable = fmt.Errorf("ledger: entry is no longer editable: %w", shared.ErrConflict)
	// ErrPeriodClosed rejects writes into a closed period.
	ErrPeriodClosed = fmt.Errorf("ledger: period is closed: %w", shared.ErrConflict)
	// ErrPeriodMissing indicates the referenced period does not exist.
	ErrPeriodMissing = fmt.Errorf("ledger: period %w", shared.ErrNotFound)
	// ErrDocTypeMissing indicates the referenced document type does not exist.
	ErrDocTypeMissing = fmt.Errorf("ledger: document type %w", shared.ErrNotFound)
	// ErrCostCenterMissing indicates the referenced cost center does not exist.
	ErrCostCenterMissing = fmt.Errorf("ledger: cost center %w", shared.ErrNotFound)
	// ErrAccountNotPostable rejects lines against missing, deleted or
	// non-postable accounts.
	ErrAccountNotPostable = fmt.Errorf("ledger: account is not postable: %w", shared.ErrValidation)
	// ErrTaxDocLinked rejects linking an external tax document twice.
	ErrTaxDocLinked = fmt.Errorf("ledger: tax document already backs a movement: %w", shared.ErrConflict)
	// ErrBadTaxDocRef rejects a malformed external tax document reference.
	ErrBadTaxDocRef = fmt.Errorf("ledger: malformed tax document reference: %w", shared.ErrValidation)
	// ErrFolioRace signals a lost consecutive race, safe to retry.
	ErrFolioRace = fmt.Errorf("ledger: folio consecutive already taken: %w", shared.ErrConcurrency)
)
