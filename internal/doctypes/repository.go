package doctypes

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the pgx-backed document type store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const cols = `id, nature, description, created_at, updated_at`

func scanType(row pgx.Row) (DocumentType, error) {
	var dt DocumentType
	err := row.Scan(&dt.ID, &dt.Nature, &dt.Description, &dt.CreatedAt, &dt.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return DocumentType{}, ErrTypeNotFound
	}
	return dt, err
}

func (r *Repository) Insert(ctx context.Context, dt DocumentType) (DocumentType, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO document_types (nature, description, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING id`,
		dt.Nature, dt.Description, dt.CreatedAt)
	if err := row.Scan(&dt.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return DocumentType{}, ErrDuplicateNature
		}
		return DocumentType{}, err
	}
	return dt, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (DocumentType, error) {
	return scanType(r.pool.QueryRow(ctx, `SELECT `+cols+` FROM document_types WHERE id = $1`, id))
}

func (r *Repository) GetByNature(ctx context.Context, nature string) (DocumentType, error) {
	return scanType(r.pool.QueryRow(ctx, `SELECT `+cols+` FROM document_types WHERE lower(nature) = $1`, nature))
}

func (r *Repository) List(ctx context.Context) ([]DocumentType, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+cols+` FROM document_types ORDER BY nature`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DocumentType
	for rows.Next() {
		dt, err := scanType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, dt)
	}
	return out, rows.Err()
}

func (r *Repository) Update(ctx context.Context, dt DocumentType) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE document_types SET nature = $2, description = $3, updated_at = $4
		 WHERE id = $1`,
		dt.ID, dt.Nature, dt.Description, dt.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateNature
		}
	}
	return err
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM document_types WHERE id = $1`, id)
	return err
}
