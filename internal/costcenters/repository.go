package costcenters

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koreacc/koreacc/internal/platform/db"
)

const centerColumns = `id, name, sale_series, street, exterior_no, interior_no, postal_code, region, phone, email, parent_id, active, created_at, updated_at`

// Repository persists cost centers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanCenter(row pgx.Row) (CostCenter, error) {
	var c CostCenter
	err := row.Scan(&c.ID, &c.Name, &c.SaleSeries, &c.Street, &c.ExteriorNo, &c.InteriorNo, &c.PostalCode,
		&c.Region, &c.Phone, &c.Email, &c.ParentID, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return CostCenter{}, ErrCenterNotFound
	}
	if err != nil {
		return CostCenter{}, err
	}
	return c, nil
}

// Insert creates a cost center.
func (r *Repository) Insert(ctx context.Context, in CreateInput) (CostCenter, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO cost_centers (name, sale_series, street, exterior_no, interior_no, postal_code, region, phone, email, parent_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING `+centerColumns,
		in.Name, in.SaleSeries, in.Street, in.ExteriorNo, in.InteriorNo, in.PostalCode, in.Region, in.Phone, in.Email, in.ParentID)
	return scanCenter(row)
}

// Get loads one center.
func (r *Repository) Get(ctx context.Context, id int64) (CostCenter, error) {
	return scanCenter(r.pool.QueryRow(ctx, `SELECT `+centerColumns+` FROM cost_centers WHERE id=$1`, id))
}

// ListAll returns every center, active or not, ordered by id. Callers build
// the adjacency map from this single read.
func (r *Repository) ListAll(ctx context.Context) ([]CostCenter, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+centerColumns+` FROM cost_centers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CostCenter
	for rows.Next() {
		var c CostCenter
		if err := rows.Scan(&c.ID, &c.Name, &c.SaleSeries, &c.Street, &c.ExteriorNo, &c.InteriorNo, &c.PostalCode,
			&c.Region, &c.Phone, &c.Email, &c.ParentID, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update patches a center.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput, now time.Time) (CostCenter, error) {
	row := r.pool.QueryRow(ctx, `UPDATE cost_centers SET
name = COALESCE($2, name),
sale_series = COALESCE($3, sale_series),
street = COALESCE($4, street),
region = COALESCE($5, region),
phone = COALESCE($6, phone),
email = COALESCE($7, email),
updated_at = $8
WHERE id=$1 RETURNING `+centerColumns, id, in.Name, in.SaleSeries, in.Street, in.Region, in.Phone, in.Email, now)
	return scanCenter(row)
}

// SetActive flips the active flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool, now time.Time) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE cost_centers SET active=$2, updated_at=$3 WHERE id=$1`, id, active, now)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCenterNotFound
	}
	return nil
}

// SetParent reassigns the parent pointer inside one transaction.
func (r *Repository) SetParent(ctx context.Context, id int64, parentID *int64, now time.Time) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `UPDATE cost_centers SET parent_id=$2, updated_at=$3 WHERE id=$1`, id, parentID, now)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrCenterNotFound
		}
		return nil
	})
}

// HasEntries reports whether any journal entry references the center.
func (r *Repository) HasEntries(ctx context.Context, id int64) (bool, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(1) FROM journal_entries WHERE cost_center_id=$1`, id).Scan(&n)
	return n > 0, err
}
