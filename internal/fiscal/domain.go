package fiscal

import (
	"fmt"
	"time"

	"github.com/koreacc/koreacc/internal/shared"
)

// PeriodKind enumerates the supported period granularities.
type PeriodKind string

const (
	PeriodWeekly   PeriodKind = "WEEKLY"
	PeriodBiweekly PeriodKind = "BIWEEKLY"
	PeriodMonthly  PeriodKind = "MONTHLY"
	PeriodAnnual   PeriodKind = "ANNUAL"
	PeriodCustom   PeriodKind = "CUSTOM"
)

// Valid reports whether k is a known granularity.
func (k PeriodKind) Valid() bool {
	switch k {
	case PeriodWeekly, PeriodBiweekly, PeriodMonthly, PeriodAnnual, PeriodCustom:
		return true
	}
	return false
}

// Exercise is a fiscal year container for periods. At most one exercise per
// company carries the Selected flag.
type Exercise struct {
	ID        int64
	CompanyID int64
	Year      int
	StartDate time.Time
	EndDate   time.Time
	Open      bool
	Selected  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Period is a sub-range of an exercise during which entries may be posted.
type Period struct {
	ID         int64
	CompanyID  int64
	ExerciseID int64
	Kind       PeriodKind
	StartDate  time.Time
	EndDate    time.Time
	Open       bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateExerciseInput carries fields for a new exercise.
type CreateExerciseInput struct {
	CompanyID int64
	Year      int
	StartDate time.Time
	EndDate   time.Time
}

// Validate checks the exercise input before any write.
func (in CreateExerciseInput) Validate() error {
	if in.CompanyID == 0 {
		return fmt.Errorf("fiscal: company id required: %w", shared.ErrValidation)
	}
	if in.Year == 0 {
		return fmt.Errorf("fiscal: fiscal year required: %w", shared.ErrValidation)
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return fmt.Errorf("fiscal: start and end date required: %w", shared.ErrValidation)
	}
	if in.EndDate.Before(in.StartDate) {
		return fmt.Errorf("fiscal: end date before start date: %w", shared.ErrValidation)
	}
	return nil
}

// UpdateExerciseInput patches an exercise. Nil pointers leave fields alone.
type UpdateExerciseInput struct {
	Year      *int
	StartDate *time.Time
	EndDate   *time.Time
}

// CreatePeriodInput carries fields for a new period.
type CreatePeriodInput struct {
	CompanyID  int64
	ExerciseID int64
	Kind       PeriodKind
	StartDate  time.Time
	EndDate    time.Time
}

// Validate checks the period input before any write.
func (in CreatePeriodInput) Validate() error {
	if in.CompanyID == 0 {
		return fmt.Errorf("fiscal: company id required: %w", shared.ErrValidation)
	}
	if in.ExerciseID == 0 {
		return fmt.Errorf("fiscal: exercise id required: %w", shared.ErrValidation)
	}
	if !in.Kind.Valid() {
		return fmt.Errorf("fiscal: unknown period kind %q: %w", in.Kind, shared.ErrValidation)
	}
	if in.EndDate.Before(in.StartDate) {
		return fmt.Errorf("fiscal: end date before start date: %w", shared.ErrValidation)
	}
	return nil
}

// UpdatePeriodInput patches a period.
type UpdatePeriodInput struct {
	Kind      *PeriodKind
	StartDate *time.Time
	EndDate   *time.Time
}

// ExerciseFilter narrows exercise listings.
type ExerciseFilter struct {
	CompanyID int64
	Year      int
	Open      *bool
}

// PeriodFilter narrows period listings.
type PeriodFilter struct {
	CompanyID  int64
	ExerciseID int64
	Kind       PeriodKind
	Open       *bool
	From       *time.Time
	To         *time.Time
}

// SkippedSlice reports a generation candidate that was not inserted.
type SkippedSlice struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason"`
}

// GenerationResult summarizes one auto-generation run. Partial success is
// the normal outcome: some slices created, overlapping ones skipped.
type GenerationResult struct {
	From    time.Time      `json:"from"`
	To      time.Time      `json:"to"`
	Created []Period       `json:"created"`
	Skipped []SkippedSlice `json:"skipped"`
	Notice  string         `json:"notice,omitempty"`
}

var (
	// ErrExerciseNotFound indicates a missing exercise.
	ErrExerciseNotFound = fmt.Errorf("fiscal: exercise %w", shared.ErrNotFound)
	// ErrPeriodNotFound indicates a missing period.
	ErrPeriodNotFound = fmt.Errorf("fiscal: period %w", shared.ErrNotFound)
	// ErrExerciseOverlap rejects an exercise range clashing with a sibling.
	ErrExerciseOverlap = fmt.Errorf("fiscal: exercise range overlaps another exercise of the company: %w", shared.ErrConflict)
	// ErrPeriodOverlap rejects a period range clashing with an open sibling.
	ErrPeriodOverlap = fmt.Errorf("fiscal: period range overlaps an open period of the company: %w", shared.ErrConflict)
	// ErrPeriodOutsideExercise rejects a period range escaping its exercise.
	ErrPeriodOutsideExercise = fmt.Errorf("fiscal: period range outside exercise range: %w", shared.ErrValidation)
	// ErrDraftEntries blocks closing a period that still has DRAFT entries.
	ErrDraftEntries = fmt.Errorf("fiscal: period has entries pending review: %w", shared.ErrConflict)
	// ErrKindNotGenerable rejects auto-generation for CUSTOM granularity.
	ErrKindNotGenerable = fmt.Errorf("fiscal: granularity not supported for generation: %w", shared.ErrValidation)
)
