package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/koreacc/koreacc/internal/doctypes"
	"github.com/koreacc/koreacc/internal/shared"
)

// PeriodInfo is the slice of the fiscal period the posting engine needs.
type PeriodInfo struct {
	ID         int64
	ExerciseID int64
	StartDate  time.Time
	EndDate    time.Time
	Open       bool
}

// DocTypeInfo is the slice of the document type the posting engine needs.
type DocTypeInfo struct {
	ID     int64
	Nature string
}

// AccountInfo is the slice of the account the posting engine needs.
type AccountInfo struct {
	ID       int64
	Code     string
	Postable bool
	Deleted  bool
}

// RepositoryPort is the read surface the service depends on.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	Get(ctx context.Context, id int64) (Entry, error)
	List(ctx context.Context, f Filter) ([]Entry, error)
	ListMovements(ctx context.Context, entryID int64) ([]Movement, error)
}

// TxRepository exposes the writes and reference lookups that must run
// inside one transaction.
type TxRepository interface {
	AcquireScopeLock(ctx context.Context, key string) error
	MaxConsecutive(ctx context.Context, prefix string, year, month int, costCenterID int64) (int, error)

	InsertEntry(ctx context.Context, e Entry) (Entry, error)
	GetEntryForUpdate(ctx context.Context, id int64) (Entry, error)
	UpdateEntry(ctx context.Context, e Entry) error
	DeleteEntry(ctx context.Context, id int64) error
	InsertMovement(ctx context.Context, m Movement) (Movement, error)
	ListMovements(ctx context.Context, entryID int64) ([]Movement, error)
	DeleteMovements(ctx context.Context, entryID int64) error

	PeriodInfo(ctx context.Context, id int64) (PeriodInfo, error)
	DocTypeInfo(ctx context.Context, id int64) (DocTypeInfo, error)
	CostCenterExists(ctx context.Context, id int64) (bool, error)
	AuthorExists(ctx context.Context, id int64) (bool, error)
	AccountInfo(ctx context.Context, id int64) (AccountInfo, error)

	LockTaxDocument(ctx context.Context, ref string) (found, linked bool, err error)
	MarkTaxDocumentLinked(ctx context.Context, ref string, movementID int64) error
}

// Service is the entry posting engine.
type Service struct {
	repo RepositoryPort
	log  *slog.Logger
	now  func() time.Time
}

func NewService(repo RepositoryPort, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create validates and persists a balanced entry with its movements,
// issuing the folio inside the same transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (Entry, error) {
	return s.create(ctx, in, true)
}

// CreatePermissive persists an entry without enforcing the balance
// invariant. The signed imbalance is appended to the memo and the entry is
// forced to DRAFT so review workflows can spot it. All per-line checks
// still apply.
func (s *Service) CreatePermissive(ctx context.Context, in CreateInput) (Entry, error) {
	return s.create(ctx, in, false)
}

func (s *Service) create(ctx context.Context, in CreateInput, strict bool) (Entry, error) {
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	if strict {
		if err := CheckBalance(in.Movements); err != nil {
			return Entry{}, err
		}
	}
	state := in.State
	if state == "" {
		state = StateDraft
	}
	memo := in.Memo
	if !strict {
		debits, credits := Totals(in.Movements)
		if diff := debits.Sub(credits); !diff.IsZero() {
			memo = fmt.Sprintf("%s (unbalanced by %s)", memo, diff)
			state = StateDraft
		}
	}

	var created Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		dt, err := tx.DocTypeInfo(ctx, in.DocTypeID)
		if err != nil {
			return err
		}
		p, err := tx.PeriodInfo(ctx, in.PeriodID)
		if err != nil {
			return err
		}
		if !p.Open && !lifecycleNature(dt.Nature) {
			return ErrPeriodClosed
		}
		if ok, err := tx.CostCenterExists(ctx, in.CostCenterID); err != nil {
			return err
		} else if !ok {
			return ErrCostCenterMissing
		}
		if ok, err := tx.AuthorExists(ctx, in.AuthorID); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("ledger: author %w", shared.ErrNotFound)
		}
		if err := s.assertPostable(ctx, tx, in.Movements); err != nil {
			return err
		}

		prefix := strings.ToUpper(dt.Nature)
		year, month := p.StartDate.Year(), int(p.StartDate.Month())
		consecutive, err := nextConsecutive(ctx, tx, prefix, year, month, in.CostCenterID)
		if err != nil {
			return err
		}
		folio := in.FolioOverride
		if folio == "" {
			folio = FormatFolio(prefix, year, month, in.CostCenterID, consecutive)
		}

		now := s.now().UTC()
		created, err = tx.InsertEntry(ctx, Entry{
			CompanyID:     in.CompanyID,
			DocTypeID:     in.DocTypeID,
			PeriodID:      in.PeriodID,
			AuthorID:      in.AuthorID,
			CostCenterID:  in.CostCenterID,
			Folio:         folio,
			Memo:          memo,
			State:         state,
			EntryDate:     in.EntryDate,
			Consecutive:   consecutive,
			FiscalYear:    year,
			FiscalMonth:   month,
			OriginEntryID: in.OriginEntryID,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if err != nil {
			return err
		}
		return s.insertMovements(ctx, tx, created, in.Movements)
	})
	return created, err
}

// lifecycleNature reports whether the document type is one of the exercise
// lifecycle natures. Their entries are the exception to the period gate:
// every period of the year is already closed by the time the exercise
// itself closes, and the opening entry lands wherever the next year starts.
func lifecycleNature(nature string) bool {
	n := strings.ToLower(nature)
	return n == doctypes.NatureClosing || n == doctypes.NatureOpening
}

// assertPostable checks every line's account: it must exist, be postable
// and not be soft-deleted.
func (s *Service) assertPostable(ctx context.Context, tx TxRepository, movs []MovementInput) error {
	for _, m := range movs {
		acc, err := tx.AccountInfo(ctx, m.AccountID)
		if err != nil {
			return err
		}
		if acc.Deleted || !acc.Postable {
			return fmt.Errorf("account %s: %w", acc.Code, ErrAccountNotPostable)
		}
	}
	return nil
}

// insertMovements persists the lines of an entry, handling external tax
// document linkage. A reference that is already linked aborts the whole
// transaction; a reference the import pipeline has not delivered yet is
// logged and kept on the line for later reconciliation.
func (s *Service) insertMovements(ctx context.Context, tx TxRepository, e Entry, movs []MovementInput) error {
	for _, in := range movs {
		date := in.Date
		if date.IsZero() {
			date = e.EntryDate
		}
		m := Movement{
			EntryID:      e.ID,
			AccountID:    in.AccountID,
			Date:         date,
			Side:         in.Side,
			Amount:       in.Amount.Round(2),
			CostCenterID: in.CostCenterID,
			Counterparty: in.Counterparty,
		}
		ref := NormalizeTaxDocRef(in.TaxDocumentID)
		if ref != "" {
			if _, err := uuid.Parse(ref); err != nil {
				return fmt.Errorf("%q: %w", in.TaxDocumentID, ErrBadTaxDocRef)
			}
			found, linked, err := tx.LockTaxDocument(ctx, ref)
			if err != nil {
				return err
			}
			if linked {
				return fmt.Errorf("%s: %w", ref, ErrTaxDocLinked)
			}
			if !found {
				s.log.Warn("tax document not yet imported, keeping reference", "ref", ref, "entry", e.Folio)
			}
			m.TaxDocumentID = &ref
			saved, err := tx.InsertMovement(ctx, m)
			if err != nil {
				return err
			}
			if found {
				if err := tx.MarkTaxDocumentLinked(ctx, ref, saved.ID); err != nil {
					return err
				}
			}
			continue
		}
		if _, err := tx.InsertMovement(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// editable loads the entry under lock and verifies both the entry state and
// the owning period allow mutation.
func (s *Service) editable(ctx context.Context, tx TxRepository, id int64) (Entry, error) {
	e, err := tx.GetEntryForUpdate(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if !e.Editable() {
		return Entry{}, fmt.Errorf("entry %s is %s: %w", e.Folio, e.State, ErrNotEditable)
	}
	p, err := tx.PeriodInfo(ctx, e.PeriodID)
	if err != nil {
		return Entry{}, err
	}
	if !p.Open {
		return Entry{}, ErrPeriodClosed
	}
	return e, nil
}

// Update patches the header of a DRAFT entry inside an open period.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Entry, error) {
	var updated Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		e, err := s.editable(ctx, tx, id)
		if err != nil {
			return err
		}
		if in.Memo != nil {
			if *in.Memo == "" {
				return fmt.Errorf("ledger: memo required: %w", shared.ErrValidation)
			}
			e.Memo = *in.Memo
		}
		if in.EntryDate != nil {
			e.EntryDate = *in.EntryDate
		}
		if in.CostCenterID != nil {
			if ok, err := tx.CostCenterExists(ctx, *in.CostCenterID); err != nil {
				return err
			} else if !ok {
				return ErrCostCenterMissing
			}
			e.CostCenterID = *in.CostCenterID
		}
		if in.DocTypeID != nil {
			if _, err := tx.DocTypeInfo(ctx, *in.DocTypeID); err != nil {
				return err
			}
			e.DocTypeID = *in.DocTypeID
		}
		e.UpdatedAt = s.now().UTC()
		if err := tx.UpdateEntry(ctx, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	return updated, err
}

// Delete removes a DRAFT entry and its movements together. Approved and
// posted entries are immutable history.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		e, err := s.editable(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteMovements(ctx, e.ID); err != nil {
			return err
		}
		return tx.DeleteEntry(ctx, e.ID)
	})
}

// AddMovements appends lines to a DRAFT entry. The resulting line set must
// still balance.
func (s *Service) AddMovements(ctx context.Context, id int64, movs []MovementInput) error {
	if len(movs) == 0 {
		return fmt.Errorf("ledger: no movements given: %w", shared.ErrValidation)
	}
	for i, m := range movs {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		e, err := s.editable(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.assertPostable(ctx, tx, movs); err != nil {
			return err
		}
		existing, err := tx.ListMovements(ctx, e.ID)
		if err != nil {
			return err
		}
		all := make([]MovementInput, 0, len(existing)+len(movs))
		for _, m := range existing {
			all = append(all, MovementInput{AccountID: m.AccountID, Side: m.Side, Amount: m.Amount})
		}
		all = append(all, movs...)
		if err := CheckBalance(all); err != nil {
			return err
		}
		if err := s.insertMovements(ctx, tx, e, movs); err != nil {
			return err
		}
		e.UpdatedAt = s.now().UTC()
		return tx.UpdateEntry(ctx, e)
	})
}

// ReplaceMovements swaps the full line set of a DRAFT entry. The new set
// must satisfy the balance invariant on its own.
func (s *Service) ReplaceMovements(ctx context.Context, id int64, movs []MovementInput) error {
	if len(movs) < 2 {
		return fmt.Errorf("ledger: at least 2 movements required, got %d: %w", len(movs), shared.ErrValidation)
	}
	for i, m := range movs {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	if err := CheckBalance(movs); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		e, err := s.editable(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.assertPostable(ctx, tx, movs); err != nil {
			return err
		}
		if err := tx.DeleteMovements(ctx, e.ID); err != nil {
			return err
		}
		if err := s.insertMovements(ctx, tx, e, movs); err != nil {
			return err
		}
		e.UpdatedAt = s.now().UTC()
		return tx.UpdateEntry(ctx, e)
	})
}

// ChangeState persists a new lifecycle state. This is the administrative
// override that moves entries out of DRAFT; it deliberately skips the
// editability check, approving and posting are exactly the act of leaving
// DRAFT.
func (s *Service) ChangeState(ctx context.Context, id int64, state EntryState) (Entry, error) {
	if !state.Valid() {
		return Entry{}, fmt.Errorf("ledger: unknown state %q: %w", state, shared.ErrValidation)
	}
	var updated Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		e, err := tx.GetEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		e.State = state
		e.UpdatedAt = s.now().UTC()
		if err := tx.UpdateEntry(ctx, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	return updated, err
}

// Rewrite replaces the memo and full line set of an entry regardless of its
// state or period. Carry-forward maintenance uses this to overwrite a
// provisional opening entry idempotently; it is not exposed over HTTP.
func (s *Service) Rewrite(ctx context.Context, id int64, memo string, movs []MovementInput) error {
	for i, m := range movs {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		e, err := tx.GetEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.assertPostable(ctx, tx, movs); err != nil {
			return err
		}
		if err := tx.DeleteMovements(ctx, e.ID); err != nil {
			return err
		}
		if err := s.insertMovements(ctx, tx, e, movs); err != nil {
			return err
		}
		e.Memo = memo
		e.UpdatedAt = s.now().UTC()
		return tx.UpdateEntry(ctx, e)
	})
}

func (s *Service) Get(ctx context.Context, id int64) (Entry, error) {
	return s.repo.Get(ctx, id)
}

// GetWithMovements loads an entry and its lines.
func (s *Service) GetWithMovements(ctx context.Context, id int64) (Entry, []Movement, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return Entry{}, nil, err
	}
	movs, err := s.repo.ListMovements(ctx, id)
	if err != nil {
		return Entry{}, nil, err
	}
	return e, movs, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Entry, error) {
	return s.repo.List(ctx, f)
}

// FindByPeriodAndType locates at most one primary entry by its upsert key.
// Entries derived from another entry (OriginEntryID set) are skipped so the
// closing engine never confuses a closing entry with its equity transfer.
func (s *Service) FindByPeriodAndType(ctx context.Context, periodID, docTypeID int64) (Entry, bool, error) {
	list, err := s.repo.List(ctx, Filter{PeriodID: periodID, DocTypeID: docTypeID})
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range list {
		if e.OriginEntryID == nil {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// FindByOrigin locates at most one entry derived from the given entry.
func (s *Service) FindByOrigin(ctx context.Context, originEntryID int64) (Entry, bool, error) {
	list, err := s.repo.List(ctx, Filter{OriginEntryID: &originEntryID})
	if err != nil {
		return Entry{}, false, err
	}
	if len(list) == 0 {
		return Entry{}, false, nil
	}
	return list[0], true, nil
}
