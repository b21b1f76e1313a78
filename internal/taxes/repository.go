package taxes

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the pgx-backed tax rule store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const cols = `id, company_id, name, mode, applies_to, rate, fixed_fee, account_id, valid_from, valid_to, created_at, updated_at`

func scanRule(row pgx.Row) (TaxRule, error) {
	var t TaxRule
	err := row.Scan(&t.ID, &t.CompanyID, &t.Name, &t.Mode, &t.AppliesTo, &t.Rate, &t.FixedFee,
		&t.AccountID, &t.ValidFrom, &t.ValidTo, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return TaxRule{}, ErrRuleNotFound
	}
	return t, err
}

func (r *Repository) Insert(ctx context.Context, t TaxRule) (TaxRule, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO tax_rules (company_id, name, mode, applies_to, rate, fixed_fee, account_id, valid_from, valid_to, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id`,
		t.CompanyID, t.Name, t.Mode, t.AppliesTo, t.Rate, t.FixedFee, t.AccountID, t.ValidFrom, t.ValidTo, t.CreatedAt)
	if err := row.Scan(&t.ID); err != nil {
		return TaxRule{}, err
	}
	return t, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (TaxRule, error) {
	return scanRule(r.pool.QueryRow(ctx, `SELECT `+cols+` FROM tax_rules WHERE id = $1`, id))
}

func (r *Repository) List(ctx context.Context, companyID int64) ([]TaxRule, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+cols+` FROM tax_rules WHERE company_id = $1 ORDER BY valid_from, id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TaxRule
	for rows.Next() {
		t, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) Update(ctx context.Context, t TaxRule) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tax_rules
		   SET name = $2, mode = $3, applies_to = $4, rate = $5, fixed_fee = $6,
		       account_id = $7, valid_from = $8, valid_to = $9, updated_at = $10
		 WHERE id = $1`,
		t.ID, t.Name, t.Mode, t.AppliesTo, t.Rate, t.FixedFee, t.AccountID, t.ValidFrom, t.ValidTo, t.UpdatedAt)
	return err
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tax_rules WHERE id = $1`, id)
	return err
}
