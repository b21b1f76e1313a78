package closing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koreacc/koreacc/internal/doctypes"
	"github.com/koreacc/koreacc/internal/fiscal"
	"github.com/koreacc/koreacc/internal/platform/db"
)

// Repository aggregates movement activity with SQL sums. Closing entries are
// excluded from the nominal aggregation so re-closing an exercise computes
// the same balances it saw the first time.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx opens the transaction the close runs in. Ledger and fiscal writes
// made inside fn join it through the context, so the whole close commits or
// rolls back as one unit.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, _ pgx.Tx) error {
		return fn(ctx)
	})
}

const balanceQuery = `
	SELECT a.id, a.code, a.type, a.nature,
	       COALESCE(SUM(m.amount) FILTER (WHERE m.side = 'DEBIT'), 0),
	       COALESCE(SUM(m.amount) FILTER (WHERE m.side = 'CREDIT'), 0)
	  FROM accounts a
	  JOIN movements m        ON m.account_id = a.id
	  JOIN journal_entries e  ON e.id = m.entry_id
	  JOIN fiscal_periods p   ON p.id = e.period_id
	  JOIN document_types dt  ON dt.id = e.doc_type_id
	 WHERE p.exercise_id = $1
	   AND NOT e.deleted
	   AND a.type = ANY($2)
	   AND lower(dt.nature) <> $3
	 GROUP BY a.id, a.code, a.type, a.nature
	 ORDER BY a.code`

func (r *Repository) sumBalances(ctx context.Context, exerciseID int64, types []string, excludeNature string) ([]AccountBalance, error) {
	rows, err := r.pool.Query(ctx, balanceQuery, exerciseID, types, excludeNature)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.AccountID, &b.Code, &b.Type, &b.Nature, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// NominalBalances sums INCOME and EXPENSE activity across the exercise,
// leaving out entries of the closing type.
func (r *Repository) NominalBalances(ctx context.Context, exerciseID int64) ([]AccountBalance, error) {
	return r.sumBalances(ctx, exerciseID, []string{"INCOME", "EXPENSE"}, doctypes.NatureClosing)
}

// RealBalances sums ASSET, LIABILITY and EQUITY activity across the
// exercise, including its own opening entry so prior history carries
// through.
func (r *Repository) RealBalances(ctx context.Context, exerciseID int64) ([]AccountBalance, error) {
	return r.sumBalances(ctx, exerciseID, []string{"ASSET", "LIABILITY", "EQUITY"}, "")
}

func (r *Repository) LastPeriod(ctx context.Context, exerciseID int64) (fiscal.Period, error) {
	return r.onePeriod(ctx, exerciseID, `ORDER BY end_date DESC`)
}

func (r *Repository) FirstPeriod(ctx context.Context, exerciseID int64) (fiscal.Period, error) {
	return r.onePeriod(ctx, exerciseID, `ORDER BY start_date ASC`)
}

func (r *Repository) onePeriod(ctx context.Context, exerciseID int64, order string) (fiscal.Period, error) {
	var p fiscal.Period
	err := r.pool.QueryRow(ctx, `
		SELECT id, company_id, exercise_id, kind, start_date, end_date, open, created_at, updated_at
		  FROM fiscal_periods
		 WHERE exercise_id = $1 `+order+` LIMIT 1`, exerciseID).
		Scan(&p.ID, &p.CompanyID, &p.ExerciseID, &p.Kind, &p.StartDate, &p.EndDate, &p.Open, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fiscal.Period{}, fiscal.ErrPeriodNotFound
	}
	return p, err
}
