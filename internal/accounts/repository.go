package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `id, code, name, type, nature, postable, parent_id, deleted, created_at, updated_at`

// Repository persists the chart of accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Nature, &a.Postable, &a.ParentID, &a.Deleted, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

// Insert creates the account, mapping the unique-code violation to ErrDuplicateCode.
func (r *Repository) Insert(ctx context.Context, in CreateInput) (Account, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO accounts (code, name, type, nature, postable, parent_id)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+accountColumns,
		in.Code, in.Name, in.Type, in.Nature, in.Postable, in.ParentID)
	a, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrDuplicateCode
		}
		return Account{}, err
	}
	return a, nil
}

// Get loads one account by id, including soft-deleted rows.
func (r *Repository) Get(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

// GetByCode loads one account by its hierarchical code.
func (r *Repository) GetByCode(ctx context.Context, code string) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
}

// List returns all non-deleted accounts ordered by code.
func (r *Repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE NOT deleted ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Nature, &a.Postable, &a.ParentID, &a.Deleted, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Update applies the patch and stamps updated_at.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput, now time.Time) (Account, error) {
	row := r.pool.QueryRow(ctx, `UPDATE accounts SET
name = COALESCE($2, name),
postable = COALESCE($3, postable),
parent_id = COALESCE($4, parent_id),
updated_at = $5
WHERE id=$1 RETURNING `+accountColumns, id, in.Name, in.Postable, in.ParentID, now)
	return scanAccount(row)
}

// HasMovements reports whether any movement references the account.
func (r *Repository) HasMovements(ctx context.Context, id int64) (bool, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(1) FROM movements WHERE account_id=$1`, id).Scan(&n)
	return n > 0, err
}

// SoftDelete marks the account deleted without removing history.
func (r *Repository) SoftDelete(ctx context.Context, id int64, now time.Time) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE accounts SET deleted=true, updated_at=$2 WHERE id=$1`, id, now)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
