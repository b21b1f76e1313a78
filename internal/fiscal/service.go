package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/koreacc/koreacc/internal/shared"
)

// RepositoryPort is the storage surface the service depends on.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetExercise(ctx context.Context, id int64) (Exercise, error)
	ListExercises(ctx context.Context, f ExerciseFilter) ([]Exercise, error)
	SelectedExercise(ctx context.Context, companyID int64) (Exercise, error)
	GetPeriod(ctx context.Context, id int64) (Period, error)
	ListPeriods(ctx context.Context, f PeriodFilter) ([]Period, error)
}

// TxRepository exposes the writes that must run inside one transaction.
type TxRepository interface {
	InsertExercise(ctx context.Context, ex Exercise) (Exercise, error)
	GetExerciseForUpdate(ctx context.Context, id int64) (Exercise, error)
	UpdateExercise(ctx context.Context, ex Exercise) error
	DeleteExercise(ctx context.Context, id int64) error
	ExerciseOverlaps(ctx context.Context, companyID int64, start, end time.Time, excludeID int64) (bool, error)
	CloseOtherExercises(ctx context.Context, companyID, keepID int64, now time.Time) error
	ClearSelected(ctx context.Context, companyID int64, now time.Time) error

	InsertPeriod(ctx context.Context, p Period) (Period, error)
	GetPeriodForUpdate(ctx context.Context, id int64) (Period, error)
	UpdatePeriod(ctx context.Context, p Period) error
	DeletePeriod(ctx context.Context, id int64) error
	OpenPeriodOverlaps(ctx context.Context, companyID int64, start, end time.Time, excludeID int64) (bool, error)
	ExercisePeriodOverlaps(ctx context.Context, exerciseID int64, start, end time.Time) (bool, error)
	CountDraftEntries(ctx context.Context, periodID int64) (int, error)
}

// Service implements the fiscal calendar lifecycle.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateExercise registers a new fiscal exercise. The range must not overlap
// any existing exercise of the same company. New exercises start open and
// unselected.
func (s *Service) CreateExercise(ctx context.Context, in CreateExerciseInput) (Exercise, error) {
	if err := in.Validate(); err != nil {
		return Exercise{}, err
	}
	var created Exercise
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		clash, err := tx.ExerciseOverlaps(ctx, in.CompanyID, in.StartDate, in.EndDate, 0)
		if err != nil {
			return err
		}
		if clash {
			return ErrExerciseOverlap
		}
		now := s.now().UTC()
		created, err = tx.InsertExercise(ctx, Exercise{
			CompanyID: in.CompanyID,
			Year:      in.Year,
			StartDate: dayUTC(in.StartDate),
			EndDate:   dayUTC(in.EndDate),
			Open:      true,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return err
	})
	return created, err
}

func (s *Service) GetExercise(ctx context.Context, id int64) (Exercise, error) {
	return s.repo.GetExercise(ctx, id)
}

func (s *Service) ListExercises(ctx context.Context, f ExerciseFilter) ([]Exercise, error) {
	return s.repo.ListExercises(ctx, f)
}

// SelectedExercise returns the company's currently selected exercise.
func (s *Service) SelectedExercise(ctx context.Context, companyID int64) (Exercise, error) {
	return s.repo.SelectedExercise(ctx, companyID)
}

// UpdateExercise patches year and range. Range changes are re-checked for
// overlap against sibling exercises.
func (s *Service) UpdateExercise(ctx context.Context, id int64, in UpdateExerciseInput) (Exercise, error) {
	var updated Exercise
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ex, err := tx.GetExerciseForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if in.Year != nil {
			ex.Year = *in.Year
		}
		if in.StartDate != nil {
			ex.StartDate = dayUTC(*in.StartDate)
		}
		if in.EndDate != nil {
			ex.EndDate = dayUTC(*in.EndDate)
		}
		if ex.EndDate.Before(ex.StartDate) {
			return fmt.Errorf("fiscal: end date before start date: %w", shared.ErrValidation)
		}
		clash, err := tx.ExerciseOverlaps(ctx, ex.CompanyID, ex.StartDate, ex.EndDate, ex.ID)
		if err != nil {
			return err
		}
		if clash {
			return ErrExerciseOverlap
		}
		ex.UpdatedAt = s.now().UTC()
		if err := tx.UpdateExercise(ctx, ex); err != nil {
			return err
		}
		updated = ex
		return nil
	})
	return updated, err
}

// OpenExercise reopens an exercise. When closeOthers is set, every other
// exercise of the company is closed in the same transaction so exactly one
// stays open.
func (s *Service) OpenExercise(ctx context.Context, id int64, closeOthers bool) (Exercise, error) {
	var out Exercise
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ex, err := tx.GetExerciseForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if closeOthers {
			if err := tx.CloseOtherExercises(ctx, ex.CompanyID, ex.ID, now); err != nil {
				return err
			}
		}
		if !ex.Open {
			ex.Open = true
			ex.UpdatedAt = now
			if err := tx.UpdateExercise(ctx, ex); err != nil {
				return err
			}
		}
		out = ex
		return nil
	})
	return out, err
}

// MarkClosed flips the open flag off. The closing engine calls this as the
// final step of a successful close; it is not a user-facing operation.
func (s *Service) MarkClosed(ctx context.Context, id int64) (Exercise, error) {
	var out Exercise
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ex, err := tx.GetExerciseForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if ex.Open {
			ex.Open = false
			ex.UpdatedAt = s.now().UTC()
			if err := tx.UpdateExercise(ctx, ex); err != nil {
				return err
			}
		}
		out = ex
		return nil
	})
	return out, err
}

// SelectExercise marks the exercise as the company's working exercise,
// clearing the flag on all siblings first.
func (s *Service) SelectExercise(ctx context.Context, id int64) (Exercise, error) {
	var out Exercise
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ex, err := tx.GetExerciseForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if err := tx.ClearSelected(ctx, ex.CompanyID, now); err != nil {
			return err
		}
		ex.Selected = true
		ex.UpdatedAt = now
		if err := tx.UpdateExercise(ctx, ex); err != nil {
			return err
		}
		out = ex
		return nil
	})
	return out, err
}

// DeleteExercise removes an exercise outright. Intended for setup mistakes,
// not for exercises with posted history.
func (s *Service) DeleteExercise(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetExerciseForUpdate(ctx, id); err != nil {
			return err
		}
		return tx.DeleteExercise(ctx, id)
	})
}

// CreatePeriod registers a period inside an exercise. The range must sit
// fully inside the exercise range and must not overlap any open period of
// the company.
func (s *Service) CreatePeriod(ctx context.Context, in CreatePeriodInput) (Period, error) {
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	var created Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ex, err := tx.GetExerciseForUpdate(ctx, in.ExerciseID)
		if err != nil {
			return err
		}
		start, end := dayUTC(in.StartDate), dayUTC(in.EndDate)
		if start.Before(dayUTC(ex.StartDate)) || end.After(dayUTC(ex.EndDate)) {
			return ErrPeriodOutsideExercise
		}
		clash, err := tx.OpenPeriodOverlaps(ctx, in.CompanyID, start, end, 0)
		if err != nil {
			return err
		}
		if clash {
			return ErrPeriodOverlap
		}
		now := s.now().UTC()
		created, err = tx.InsertPeriod(ctx, Period{
			CompanyID:  in.CompanyID,
			ExerciseID: ex.ID,
			Kind:       in.Kind,
			StartDate:  start,
			EndDate:    end,
			Open:       true,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		return err
	})
	return created, err
}

func (s *Service) GetPeriod(ctx context.Context, id int64) (Period, error) {
	return s.repo.GetPeriod(ctx, id)
}

func (s *Service) ListPeriods(ctx context.Context, f PeriodFilter) ([]Period, error) {
	return s.repo.ListPeriods(ctx, f)
}

// UpdatePeriod patches kind and range with the same containment and overlap
// rules as creation.
func (s *Service) UpdatePeriod(ctx context.Context, id int64, in UpdatePeriodInput) (Period, error) {
	var updated Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPeriodForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if in.Kind != nil {
			if !in.Kind.Valid() {
				return fmt.Errorf("fiscal: unknown period kind %q: %w", *in.Kind, shared.ErrValidation)
			}
			p.Kind = *in.Kind
		}
		if in.StartDate != nil {
			p.StartDate = dayUTC(*in.StartDate)
		}
		if in.EndDate != nil {
			p.EndDate = dayUTC(*in.EndDate)
		}
		if p.EndDate.Before(p.StartDate) {
			return ErrPeriodOutsideExercise
		}
		ex, err := tx.GetExerciseForUpdate(ctx, p.ExerciseID)
		if err != nil {
			return err
		}
		if p.StartDate.Before(dayUTC(ex.StartDate)) || p.EndDate.After(dayUTC(ex.EndDate)) {
			return ErrPeriodOutsideExercise
		}
		clash, err := tx.OpenPeriodOverlaps(ctx, p.CompanyID, p.StartDate, p.EndDate, p.ID)
		if err != nil {
			return err
		}
		if clash {
			return ErrPeriodOverlap
		}
		p.UpdatedAt = s.now().UTC()
		if err := tx.UpdatePeriod(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	return updated, err
}

// ClosePeriod marks a period closed. Closing is refused while the period
// still holds entries pending review. Closing an already closed period is a
// no-op.
func (s *Service) ClosePeriod(ctx context.Context, id int64) (Period, error) {
	var out Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPeriodForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !p.Open {
			out = p
			return nil
		}
		drafts, err := tx.CountDraftEntries(ctx, p.ID)
		if err != nil {
			return err
		}
		if drafts > 0 {
			return fmt.Errorf("%d entries pending review: %w", drafts, ErrDraftEntries)
		}
		p.Open = false
		p.UpdatedAt = s.now().UTC()
		if err := tx.UpdatePeriod(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// ReopenPeriod marks a closed period open again.
func (s *Service) ReopenPeriod(ctx context.Context, id int64) (Period, error) {
	var out Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPeriodForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !p.Open {
			p.Open = true
			p.UpdatedAt = s.now().UTC()
			if err := tx.UpdatePeriod(ctx, p); err != nil {
				return err
			}
		}
		out = p
		return nil
	})
	return out, err
}

// DestroyPeriod removes a period outright.
func (s *Service) DestroyPeriod(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetPeriodForUpdate(ctx, id); err != nil {
			return err
		}
		return tx.DeletePeriod(ctx, id)
	})
}

// GenerateFromCurrentMonth fills the exercise with periods of the given
// granularity from the first day of the current month (or the exercise
// start, whichever is later) through the exercise end. Candidate slices
// that overlap an existing period of the exercise are skipped and reported;
// the rest are inserted in one transaction.
func (s *Service) GenerateFromCurrentMonth(ctx context.Context, exerciseID int64, kind PeriodKind) (GenerationResult, error) {
	if kind == PeriodCustom || !kind.Valid() {
		return GenerationResult{}, ErrKindNotGenerable
	}
	var res GenerationResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ex, err := tx.GetExerciseForUpdate(ctx, exerciseID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		from := maxDate(dayUTC(ex.StartDate), firstOfMonth(now))
		to := dayUTC(ex.EndDate)
		res.From, res.To = from, to
		if from.After(to) {
			res.Notice = "nothing to generate: exercise ends before the current month"
			return nil
		}
		spans, err := sliceRange(kind, from, to)
		if err != nil {
			return err
		}
		for _, sp := range spans {
			clash, err := tx.ExercisePeriodOverlaps(ctx, ex.ID, sp.start, sp.end)
			if err != nil {
				return err
			}
			if clash {
				res.Skipped = append(res.Skipped, SkippedSlice{Start: sp.start, End: sp.end, Reason: "overlaps an existing period"})
				continue
			}
			p, err := tx.InsertPeriod(ctx, Period{
				CompanyID:  ex.CompanyID,
				ExerciseID: ex.ID,
				Kind:       kind,
				StartDate:  sp.start,
				EndDate:    sp.end,
				Open:       true,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
			if err != nil {
				return err
			}
			res.Created = append(res.Created, p)
		}
		return nil
	})
	if err != nil {
		return GenerationResult{}, err
	}
	return res, nil
}

// PeriodForDate returns the open period of the company covering the given
// date, so callers can resolve where an entry date lands before posting.
func (s *Service) PeriodForDate(ctx context.Context, companyID int64, date time.Time) (Period, error) {
	d := dayUTC(date)
	open := true
	periods, err := s.repo.ListPeriods(ctx, PeriodFilter{CompanyID: companyID, Open: &open, From: &d, To: &d})
	if err != nil {
		return Period{}, err
	}
	if len(periods) == 0 {
		return Period{}, ErrPeriodNotFound
	}
	return periods[0], nil
}
