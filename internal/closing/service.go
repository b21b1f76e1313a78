package closing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/koreacc/koreacc/internal/doctypes"
	"github.com/koreacc/koreacc/internal/fiscal"
	"github.com/koreacc/koreacc/internal/ledger"
	"github.com/koreacc/koreacc/internal/shared"
)

// RepositoryPort aggregates movement activity for the closing computations
// and owns the transaction the close's writes run in.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	NominalBalances(ctx context.Context, exerciseID int64) ([]AccountBalance, error)
	RealBalances(ctx context.Context, exerciseID int64) ([]AccountBalance, error)
	LastPeriod(ctx context.Context, exerciseID int64) (fiscal.Period, error)
	FirstPeriod(ctx context.Context, exerciseID int64) (fiscal.Period, error)
}

// ExercisePort is the slice of the fiscal service the engine drives.
type ExercisePort interface {
	GetExercise(ctx context.Context, id int64) (fiscal.Exercise, error)
	ListExercises(ctx context.Context, f fiscal.ExerciseFilter) ([]fiscal.Exercise, error)
	MarkClosed(ctx context.Context, id int64) (fiscal.Exercise, error)
}

// DocTypePort resolves the canonical opening and closing document types.
type DocTypePort interface {
	GetByNature(ctx context.Context, nature string) (doctypes.DocumentType, error)
}

// LedgerPort is the slice of the posting engine the closing engine uses.
type LedgerPort interface {
	Create(ctx context.Context, in ledger.CreateInput) (ledger.Entry, error)
	CreatePermissive(ctx context.Context, in ledger.CreateInput) (ledger.Entry, error)
	FindByPeriodAndType(ctx context.Context, periodID, docTypeID int64) (ledger.Entry, bool, error)
	FindByOrigin(ctx context.Context, originEntryID int64) (ledger.Entry, bool, error)
	Rewrite(ctx context.Context, id int64, memo string, movs []ledger.MovementInput) error
}

// LockerPort serializes concurrent closes of the same exercise across
// processes.
type LockerPort interface {
	Obtain(ctx context.Context, key string) (func(context.Context) error, error)
}

// EnqueuerPort schedules a carry-forward retry when the inline attempt
// fails.
type EnqueuerPort interface {
	EnqueueOpeningRecompute(ctx context.Context, sourceExerciseID, actorID, costCenterID int64) error
}

// Service is the exercise closing and opening engine.
type Service struct {
	repo      RepositoryPort
	exercises ExercisePort
	docTypes  DocTypePort
	entries   LedgerPort
	locker    LockerPort
	enqueue   EnqueuerPort
	log       *slog.Logger
	now       func() time.Time
}

func NewService(repo RepositoryPort, exercises ExercisePort, docTypes DocTypePort, entries LedgerPort,
	locker LockerPort, enqueue EnqueuerPort, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		exercises: exercises,
		docTypes:  docTypes,
		entries:   entries,
		locker:    locker,
		enqueue:   enqueue,
		log:       log,
		now:       time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Close drives every nominal account of the exercise to zero through a
// closing entry against the result account, optionally moves the net result
// into equity, flips the exercise closed, and then attempts the carry-forward
// into the next exercise. The carry-forward runs after the close committed;
// its failure is reported as an advisory, never rolled into the close.
func (s *Service) Close(ctx context.Context, in CloseInput) (CloseResult, error) {
	if err := in.Validate(); err != nil {
		return CloseResult{}, err
	}
	ex, err := s.exercises.GetExercise(ctx, in.ExerciseID)
	if err != nil {
		return CloseResult{}, err
	}
	if !ex.Open {
		return CloseResult{}, ErrAlreadyClosed
	}
	release, err := s.locker.Obtain(ctx, shared.CloseLockKey(ex.ID))
	if err != nil {
		return CloseResult{}, err
	}
	defer func() {
		if err := release(ctx); err != nil {
			s.log.Warn("releasing close lock", "exercise", ex.ID, "err", err)
		}
	}()

	// Re-read under the lock: a concurrent closer may have finished while
	// we waited for the scope.
	ex, err = s.exercises.GetExercise(ctx, ex.ID)
	if err != nil {
		return CloseResult{}, err
	}
	if !ex.Open {
		return CloseResult{}, ErrAlreadyClosed
	}

	last, err := s.repo.LastPeriod(ctx, ex.ID)
	if err != nil {
		if errors.Is(err, fiscal.ErrPeriodNotFound) {
			return CloseResult{}, ErrNoPeriods
		}
		return CloseResult{}, err
	}
	closingType, err := s.docTypes.GetByNature(ctx, doctypes.NatureClosing)
	if err != nil {
		return CloseResult{}, err
	}
	balances, err := s.repo.NominalBalances(ctx, ex.ID)
	if err != nil {
		return CloseResult{}, err
	}

	movs, netResult := closingMovements(balances, in.ResultAccountID, ex.EndDate)
	res := CloseResult{NetResult: netResult.StringFixed(2)}

	// Closing entry, equity transfer and the exercise flip share one
	// transaction: a failure anywhere aborts every write of the close.
	err = s.repo.WithTx(ctx, func(ctx context.Context) error {
		if len(movs) > 0 {
			memo := fmt.Sprintf("Exercise %d close", ex.Year)
			existing, found, err := s.entries.FindByPeriodAndType(ctx, last.ID, closingType.ID)
			if err != nil {
				return err
			}
			if found {
				if err := s.entries.Rewrite(ctx, existing.ID, memo, movs); err != nil {
					return err
				}
				res.ClosingEntryID = existing.ID
			} else {
				e, err := s.entries.Create(ctx, ledger.CreateInput{
					CompanyID:     ex.CompanyID,
					DocTypeID:     closingType.ID,
					PeriodID:      last.ID,
					AuthorID:      in.ActorID,
					CostCenterID:  in.CostCenterID,
					Memo:          memo,
					EntryDate:     ex.EndDate,
					State:         ledger.StatePosted,
					Movements:     movs,
					FolioOverride: ledger.ClosingFolio(ex.CompanyID, ex.Year),
				})
				if err != nil {
					return err
				}
				res.ClosingEntryID = e.ID
			}
		}

		if in.TransferToEquity && !netResult.IsZero() && res.ClosingEntryID != 0 {
			memo := fmt.Sprintf("Exercise %d result transfer to equity", ex.Year)
			movs := equityTransferMovements(netResult, in.ResultAccountID, in.EquityAccountID, ex.EndDate)
			existing, found, err := s.entries.FindByOrigin(ctx, res.ClosingEntryID)
			if err != nil {
				return err
			}
			if found {
				if err := s.entries.Rewrite(ctx, existing.ID, memo, movs); err != nil {
					return err
				}
				res.EquityEntryID = &existing.ID
			} else {
				e, err := s.entries.Create(ctx, ledger.CreateInput{
					CompanyID:     ex.CompanyID,
					DocTypeID:     closingType.ID,
					PeriodID:      last.ID,
					AuthorID:      in.ActorID,
					CostCenterID:  in.CostCenterID,
					Memo:          memo,
					EntryDate:     ex.EndDate,
					State:         ledger.StatePosted,
					OriginEntryID: &res.ClosingEntryID,
					Movements:     movs,
				})
				if err != nil {
					return err
				}
				res.EquityEntryID = &e.ID
			}
		}

		_, err := s.exercises.MarkClosed(ctx, ex.ID)
		return err
	})
	if err != nil {
		return CloseResult{}, err
	}
	res.Closed = true

	cf := s.tryCarryForward(ctx, ex.ID, in.ActorID, in.CostCenterID)
	res.CarryForward = &cf
	return res, nil
}

// tryCarryForward runs the opening recomputation and converts any failure
// into an advisory, enqueueing a background retry.
func (s *Service) tryCarryForward(ctx context.Context, sourceExerciseID, actorID, costCenterID int64) CarryForward {
	cf, err := s.RecomputeOpening(ctx, sourceExerciseID, actorID, costCenterID)
	if err == nil {
		return cf
	}
	cf = CarryForward{Attempted: true, Error: err.Error()}
	s.log.Warn("carry-forward failed after close", "exercise", sourceExerciseID, "err", err)
	if s.enqueue != nil {
		if qErr := s.enqueue.EnqueueOpeningRecompute(ctx, sourceExerciseID, actorID, costCenterID); qErr != nil {
			s.log.Error("enqueue carry-forward retry", "exercise", sourceExerciseID, "err", qErr)
		} else {
			cf.Enqueued = true
		}
	}
	return cf
}

// RecomputeOpening rebuilds the opening entry of the exercise following the
// source exercise from its real-account balances. The entry is provisional
// while the source exercise is still open, and overwritten idempotently on
// every run via its period and document type lookup key.
func (s *Service) RecomputeOpening(ctx context.Context, sourceExerciseID, actorID, costCenterID int64) (CarryForward, error) {
	source, err := s.exercises.GetExercise(ctx, sourceExerciseID)
	if err != nil {
		return CarryForward{Attempted: true}, err
	}
	siblings, err := s.exercises.ListExercises(ctx, fiscal.ExerciseFilter{CompanyID: source.CompanyID, Year: source.Year + 1})
	if err != nil {
		return CarryForward{Attempted: true}, err
	}
	if len(siblings) == 0 {
		return CarryForward{Attempted: true}, ErrNoNextExercise
	}
	next := siblings[0]
	first, err := s.repo.FirstPeriod(ctx, next.ID)
	if err != nil {
		if errors.Is(err, fiscal.ErrPeriodNotFound) {
			return CarryForward{Attempted: true}, fmt.Errorf("destination exercise %d has no periods: %w", next.Year, shared.ErrConflict)
		}
		return CarryForward{Attempted: true}, err
	}
	openingType, err := s.docTypes.GetByNature(ctx, doctypes.NatureOpening)
	if err != nil {
		return CarryForward{Attempted: true}, err
	}
	balances, err := s.repo.RealBalances(ctx, sourceExerciseID)
	if err != nil {
		return CarryForward{Attempted: true}, err
	}

	movs := openingMovements(balances, next.StartDate)
	provisional := source.Open
	memo := fmt.Sprintf("Opening balances %d", next.Year)
	if provisional {
		memo += " (provisional)"
	}
	cf := CarryForward{Attempted: true, Provisional: provisional}

	if len(movs) == 0 {
		cf.OK = true
		cf.Notice = "no real balances to carry forward"
		return cf, nil
	}

	existing, found, err := s.entries.FindByPeriodAndType(ctx, first.ID, openingType.ID)
	if err != nil {
		return cf, err
	}
	if found {
		if err := s.entries.Rewrite(ctx, existing.ID, memo, movs); err != nil {
			return cf, err
		}
		cf.OK = true
		cf.EntryID = existing.ID
		return cf, nil
	}
	if len(movs) < 2 {
		cf.Notice = "single-line carry-forward skipped, create the opening entry manually"
		return cf, nil
	}
	e, err := s.entries.CreatePermissive(ctx, ledger.CreateInput{
		CompanyID:    next.CompanyID,
		DocTypeID:    openingType.ID,
		PeriodID:     first.ID,
		AuthorID:     actorID,
		CostCenterID: costCenterID,
		Memo:         memo,
		EntryDate:    next.StartDate,
		Movements:    movs,
	})
	if err != nil {
		return cf, err
	}
	cf.OK = true
	cf.EntryID = e.ID
	return cf, nil
}

// closingMovements builds one zeroing line per nonzero nominal balance plus
// the residual line against the result account. The returned net result is
// positive for a profit.
func closingMovements(balances []AccountBalance, resultAccountID int64, date time.Time) ([]ledger.MovementInput, decimal.Decimal) {
	var movs []ledger.MovementInput
	for _, b := range balances {
		raw := b.RawNet()
		if raw.IsZero() {
			continue
		}
		side, amount := ledger.SideCredit, raw
		if raw.IsNegative() {
			side, amount = ledger.SideDebit, raw.Neg()
		}
		movs = append(movs, ledger.MovementInput{AccountID: b.AccountID, Date: date, Side: side, Amount: amount})
	}
	if len(movs) == 0 {
		return nil, decimal.Zero
	}
	debits, credits := ledger.Totals(movs)
	diff := debits.Sub(credits)
	switch {
	case diff.IsPositive():
		movs = append(movs, ledger.MovementInput{AccountID: resultAccountID, Date: date, Side: ledger.SideCredit, Amount: diff})
	case diff.IsNegative():
		movs = append(movs, ledger.MovementInput{AccountID: resultAccountID, Date: date, Side: ledger.SideDebit, Amount: diff.Neg()})
	}
	return movs, diff
}

// equityTransferMovements moves the net result from the result account into
// equity, sign-aware: a profit is debited out of the result account and
// credited to equity, a loss the other way around.
func equityTransferMovements(netResult decimal.Decimal, resultAccountID, equityAccountID int64, date time.Time) []ledger.MovementInput {
	amount := netResult.Abs()
	if netResult.IsPositive() {
		return []ledger.MovementInput{
			{AccountID: resultAccountID, Date: date, Side: ledger.SideDebit, Amount: amount},
			{AccountID: equityAccountID, Date: date, Side: ledger.SideCredit, Amount: amount},
		}
	}
	return []ledger.MovementInput{
		{AccountID: equityAccountID, Date: date, Side: ledger.SideDebit, Amount: amount},
		{AccountID: resultAccountID, Date: date, Side: ledger.SideCredit, Amount: amount},
	}
}

// openingMovements builds one carry-forward line per nonzero real-account
// balance: debit when the raw net is positive, credit when negative.
func openingMovements(balances []AccountBalance, date time.Time) []ledger.MovementInput {
	var movs []ledger.MovementInput
	for _, b := range balances {
		raw := b.RawNet()
		if raw.IsZero() {
			continue
		}
		side, amount := ledger.SideDebit, raw
		if raw.IsNegative() {
			side, amount = ledger.SideCredit, raw.Neg()
		}
		movs = append(movs, ledger.MovementInput{AccountID: b.AccountID, Date: date, Side: side, Amount: amount})
	}
	return movs
}
