package fiscal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koreacc/koreacc/internal/platform/db"
)

// Repository is the pgx-backed store for exercises and periods.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const exerciseCols = `id, company_id, fiscal_year, start_date, end_date, open, selected, created_at, updated_at`

func scanExercise(row pgx.Row) (Exercise, error) {
	var ex Exercise
	err := row.Scan(&ex.ID, &ex.CompanyID, &ex.Year, &ex.StartDate, &ex.EndDate, &ex.Open, &ex.Selected, &ex.CreatedAt, &ex.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Exercise{}, ErrExerciseNotFound
	}
	return ex, err
}

func (r *Repository) GetExercise(ctx context.Context, id int64) (Exercise, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+exerciseCols+` FROM fiscal_exercises WHERE id = $1`, id)
	return scanExercise(row)
}

func (r *Repository) SelectedExercise(ctx context.Context, companyID int64) (Exercise, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+exerciseCols+` FROM fiscal_exercises WHERE company_id = $1 AND selected`, companyID)
	return scanExercise(row)
}

func (r *Repository) ListExercises(ctx context.Context, f ExerciseFilter) ([]Exercise, error) {
	q := `SELECT ` + exerciseCols + ` FROM fiscal_exercises WHERE company_id = $1`
	args := []any{f.CompanyID}
	if f.Year != 0 {
		args = append(args, f.Year)
		q += fmt.Sprintf(` AND fiscal_year = $%d`, len(args))
	}
	if f.Open != nil {
		args = append(args, *f.Open)
		q += fmt.Sprintf(` AND open = $%d`, len(args))
	}
	q += ` ORDER BY start_date`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Exercise
	for rows.Next() {
		ex, err := scanExercise(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

const periodCols = `id, company_id, exercise_id, kind, start_date, end_date, open, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.CompanyID, &p.ExerciseID, &p.Kind, &p.StartDate, &p.EndDate, &p.Open, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, ErrPeriodNotFound
	}
	return p, err
}

func (r *Repository) GetPeriod(ctx context.Context, id int64) (Period, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+periodCols+` FROM fiscal_periods WHERE id = $1`, id)
	return scanPeriod(row)
}

func (r *Repository) ListPeriods(ctx context.Context, f PeriodFilter) ([]Period, error) {
	q := `SELECT ` + periodCols + ` FROM fiscal_periods WHERE 1=1`
	var args []any
	if f.CompanyID != 0 {
		args = append(args, f.CompanyID)
		q += fmt.Sprintf(` AND company_id = $%d`, len(args))
	}
	if f.ExerciseID != 0 {
		args = append(args, f.ExerciseID)
		q += fmt.Sprintf(` AND exercise_id = $%d`, len(args))
	}
	if f.Kind != "" {
		args = append(args, f.Kind)
		q += fmt.Sprintf(` AND kind = $%d`, len(args))
	}
	if f.Open != nil {
		args = append(args, *f.Open)
		q += fmt.Sprintf(` AND open = $%d`, len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		q += fmt.Sprintf(` AND end_date >= $%d`, len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		q += fmt.Sprintf(` AND start_date <= $%d`, len(args))
	}
	q += ` ORDER BY start_date`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) InsertExercise(ctx context.Context, ex Exercise) (Exercise, error) {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO fiscal_exercises (company_id, fiscal_year, start_date, end_date, open, selected, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id`,
		ex.CompanyID, ex.Year, ex.StartDate, ex.EndDate, ex.Open, ex.Selected, ex.CreatedAt)
	if err := row.Scan(&ex.ID); err != nil {
		return Exercise{}, err
	}
	return ex, nil
}

func (t *txRepo) GetExerciseForUpdate(ctx context.Context, id int64) (Exercise, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+exerciseCols+` FROM fiscal_exercises WHERE id = $1 FOR UPDATE`, id)
	return scanExercise(row)
}

func (t *txRepo) UpdateExercise(ctx context.Context, ex Exercise) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE fiscal_exercises
		   SET fiscal_year = $2, start_date = $3, end_date = $4, open = $5, selected = $6, updated_at = $7
		 WHERE id = $1`,
		ex.ID, ex.Year, ex.StartDate, ex.EndDate, ex.Open, ex.Selected, ex.UpdatedAt)
	return err
}

func (t *txRepo) DeleteExercise(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM fiscal_exercises WHERE id = $1`, id)
	return err
}

func (t *txRepo) ExerciseOverlaps(ctx context.Context, companyID int64, start, end time.Time, excludeID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM fiscal_exercises
			 WHERE company_id = $1 AND id <> $4
			   AND start_date <= $3 AND end_date >= $2
		)`, companyID, start, end, excludeID).Scan(&exists)
	return exists, err
}

func (t *txRepo) CloseOtherExercises(ctx context.Context, companyID, keepID int64, now time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE fiscal_exercises SET open = FALSE, updated_at = $3
		 WHERE company_id = $1 AND id <> $2 AND open`,
		companyID, keepID, now)
	return err
}

func (t *txRepo) ClearSelected(ctx context.Context, companyID int64, now time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE fiscal_exercises SET selected = FALSE, updated_at = $2
		 WHERE company_id = $1 AND selected`,
		companyID, now)
	return err
}

func (t *txRepo) InsertPeriod(ctx context.Context, p Period) (Period, error) {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO fiscal_periods (company_id, exercise_id, kind, start_date, end_date, open, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id`,
		p.CompanyID, p.ExerciseID, p.Kind, p.StartDate, p.EndDate, p.Open, p.CreatedAt)
	if err := row.Scan(&p.ID); err != nil {
		return Period{}, err
	}
	return p, nil
}

func (t *txRepo) GetPeriodForUpdate(ctx context.Context, id int64) (Period, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+periodCols+` FROM fiscal_periods WHERE id = $1 FOR UPDATE`, id)
	return scanPeriod(row)
}

func (t *txRepo) UpdatePeriod(ctx context.Context, p Period) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE fiscal_periods
		   SET kind = $2, start_date = $3, end_date = $4, open = $5, updated_at = $6
		 WHERE id = $1`,
		p.ID, p.Kind, p.StartDate, p.EndDate, p.Open, p.UpdatedAt)
	return err
}

func (t *txRepo) DeletePeriod(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM fiscal_periods WHERE id = $1`, id)
	return err
}

func (t *txRepo) OpenPeriodOverlaps(ctx context.Context, companyID int64, start, end time.Time, excludeID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM fiscal_periods
			 WHERE company_id = $1 AND id <> $4 AND open
			   AND start_date <= $3 AND end_date >= $2
		)`, companyID, start, end, excludeID).Scan(&exists)
	return exists, err
}

func (t *txRepo) ExercisePeriodOverlaps(ctx context.Context, exerciseID int64, start, end time.Time) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM fiscal_periods
			 WHERE exercise_id = $1
			   AND start_date <= $3 AND end_date >= $2
		)`, exerciseID, start, end).Scan(&exists)
	return exists, err
}

func (t *txRepo) CountDraftEntries(ctx context.Context, periodID int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM journal_entries
		 WHERE period_id = $1 AND state = 'DRAFT' AND NOT deleted`,
		periodID).Scan(&n)
	return n, err
}
