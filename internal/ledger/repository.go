package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koreacc/koreacc/internal/platform/db"
	"github.com/koreacc/koreacc/internal/platform/lock"
)

// Repository is the pgx-backed entry store. Scope locks use the advisory
// lock primitive so they release with the transaction.
type Repository struct {
	pool   *pgxpool.Pool
	locker lock.TxLocker
}

func NewRepository(pool *pgxpool.Pool, locker lock.TxLocker) *Repository {
	return &Repository{pool: pool, locker: locker}
}

func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, locker: r.locker})
	})
}

const entryCols = `id, company_id, doc_type_id, period_id, author_id, cost_center_id, folio, memo, state,
	entry_date, consecutive, fiscal_year, fiscal_month, origin_entry_id, deleted, created_at, updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.CompanyID, &e.DocTypeID, &e.PeriodID, &e.AuthorID, &e.CostCenterID,
		&e.Folio, &e.Memo, &e.State, &e.EntryDate, &e.Consecutive, &e.FiscalYear, &e.FiscalMonth,
		&e.OriginEntryID, &e.Deleted, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	return e, err
}

func (r *Repository) Get(ctx context.Context, id int64) (Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryCols+` FROM journal_entries WHERE id = $1 AND NOT deleted`, id)
	return scanEntry(row)
}

func (r *Repository) List(ctx context.Context, f Filter) ([]Entry, error) {
	q := `SELECT ` + entryCols + ` FROM journal_entries WHERE NOT deleted`
	var args []any
	if f.CompanyID != 0 {
		args = append(args, f.CompanyID)
		q += fmt.Sprintf(` AND company_id = $%d`, len(args))
	}
	if f.PeriodID != 0 {
		args = append(args, f.PeriodID)
		q += fmt.Sprintf(` AND period_id = $%d`, len(args))
	}
	if f.DocTypeID != 0 {
		args = append(args, f.DocTypeID)
		q += fmt.Sprintf(` AND doc_type_id = $%d`, len(args))
	}
	if f.CostCenterID != 0 {
		args = append(args, f.CostCenterID)
		q += fmt.Sprintf(` AND cost_center_id = $%d`, len(args))
	}
	if f.State != "" {
		args = append(args, f.State)
		q += fmt.Sprintf(` AND state = $%d`, len(args))
	}
	if f.OriginEntryID != nil {
		args = append(args, *f.OriginEntryID)
		q += fmt.Sprintf(` AND origin_entry_id = $%d`, len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		q += fmt.Sprintf(` AND entry_date >= $%d`, len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		q += fmt.Sprintf(` AND entry_date <= $%d`, len(args))
	}
	q += ` ORDER BY entry_date, id`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const movementCols = `id, entry_id, account_id, movement_date, side, amount, cost_center_id, tax_document_id, counterparty`

func scanMovements(rows pgx.Rows) ([]Movement, error) {
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.EntryID, &m.AccountID, &m.Date, &m.Side, &m.Amount,
			&m.CostCenterID, &m.TaxDocumentID, &m.Counterparty); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) ListMovements(ctx context.Context, entryID int64) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+movementCols+` FROM movements WHERE entry_id = $1 ORDER BY id`, entryID)
	if err != nil {
		return nil, err
	}
	return scanMovements(rows)
}

type txRepo struct {
	tx     pgx.Tx
	locker lock.TxLocker
}

func (t *txRepo) AcquireScopeLock(ctx context.Context, key string) error {
	return t.locker.Acquire(ctx, t.tx, key)
}

// MaxConsecutive reads the highest issued consecutive for the folio scope,
// locking the row so a parallel reader waits behind us even without the
// advisory lock.
func (t *txRepo) MaxConsecutive(ctx context.Context, prefix string, year, month int, costCenterID int64) (int, error) {
	var max int
	err := t.tx.QueryRow(ctx, `
		SELECT e.consecutive
		  FROM journal_entries e
		  JOIN document_types dt ON dt.id = e.doc_type_id
		 WHERE upper(dt.nature) = $1 AND e.fiscal_year = $2 AND e.fiscal_month = $3 AND e.cost_center_id = $4
		 ORDER BY e.consecutive DESC
		 LIMIT 1
		 FOR UPDATE OF e`,
		prefix, year, month, costCenterID).Scan(&max)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return max, err
}

func (t *txRepo) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO journal_entries (company_id, doc_type_id, period_id, author_id, cost_center_id, folio, memo, state,
			entry_date, consecutive, fiscal_year, fiscal_month, origin_entry_id, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, FALSE, $14, $14)
		RETURNING id`,
		e.CompanyID, e.DocTypeID, e.PeriodID, e.AuthorID, e.CostCenterID, e.Folio, e.Memo, e.State,
		e.EntryDate, e.Consecutive, e.FiscalYear, e.FiscalMonth, e.OriginEntryID, e.CreatedAt)
	if err := row.Scan(&e.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Entry{}, ErrFolioRace
		}
		return Entry{}, err
	}
	return e, nil
}

func (t *txRepo) GetEntryForUpdate(ctx context.Context, id int64) (Entry, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+entryCols+` FROM journal_entries WHERE id = $1 AND NOT deleted FOR UPDATE`, id)
	return scanEntry(row)
}

func (t *txRepo) UpdateEntry(ctx context.Context, e Entry) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE journal_entries
		   SET doc_type_id = $2, cost_center_id = $3, memo = $4, state = $5, entry_date = $6, updated_at = $7
		 WHERE id = $1`,
		e.ID, e.DocTypeID, e.CostCenterID, e.Memo, e.State, e.EntryDate, e.UpdatedAt)
	return err
}

func (t *txRepo) DeleteEntry(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM journal_entries WHERE id = $1`, id)
	return err
}

func (t *txRepo) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO movements (entry_id, account_id, movement_date, side, amount, cost_center_id, tax_document_id, counterparty)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		m.EntryID, m.AccountID, m.Date, m.Side, m.Amount, m.CostCenterID, m.TaxDocumentID, m.Counterparty)
	if err := row.Scan(&m.ID); err != nil {
		return Movement{}, err
	}
	return m, nil
}

func (t *txRepo) ListMovements(ctx context.Context, entryID int64) ([]Movement, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+movementCols+` FROM movements WHERE entry_id = $1 ORDER BY id`, entryID)
	if err != nil {
		return nil, err
	}
	return scanMovements(rows)
}

func (t *txRepo) DeleteMovements(ctx context.Context, entryID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM movements WHERE entry_id = $1`, entryID)
	return err
}

func (t *txRepo) PeriodInfo(ctx context.Context, id int64) (PeriodInfo, error) {
	var p PeriodInfo
	err := t.tx.QueryRow(ctx, `
		SELECT id, exercise_id, start_date, end_date, open FROM fiscal_periods WHERE id = $1`,
		id).Scan(&p.ID, &p.ExerciseID, &p.StartDate, &p.EndDate, &p.Open)
	if errors.Is(err, pgx.ErrNoRows) {
		return PeriodInfo{}, ErrPeriodMissing
	}
	return p, err
}

func (t *txRepo) DocTypeInfo(ctx context.Context, id int64) (DocTypeInfo, error) {
	var dt DocTypeInfo
	err := t.tx.QueryRow(ctx, `SELECT id, nature FROM document_types WHERE id = $1`, id).Scan(&dt.ID, &dt.Nature)
	if errors.Is(err, pgx.ErrNoRows) {
		return DocTypeInfo{}, ErrDocTypeMissing
	}
	return dt, err
}

func (t *txRepo) CostCenterExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cost_centers WHERE id = $1 AND active)`, id).Scan(&ok)
	return ok, err
}

func (t *txRepo) AuthorExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

func (t *txRepo) AccountInfo(ctx context.Context, id int64) (AccountInfo, error) {
	var a AccountInfo
	err := t.tx.QueryRow(ctx, `SELECT id, code, postable, deleted FROM accounts WHERE id = $1`,
		id).Scan(&a.ID, &a.Code, &a.Postable, &a.Deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return AccountInfo{}, fmt.Errorf("account %d: %w", id, ErrAccountNotPostable)
	}
	return a, err
}

func (t *txRepo) LockTaxDocument(ctx context.Context, ref string) (bool, bool, error) {
	var linked bool
	err := t.tx.QueryRow(ctx, `SELECT linked FROM tax_documents WHERE doc_uuid = $1 FOR UPDATE`, ref).Scan(&linked)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, linked, nil
}

func (t *txRepo) MarkTaxDocumentLinked(ctx context.Context, ref string, movementID int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE tax_documents SET linked = TRUE, movement_id = $2 WHERE doc_uuid = $1`, ref, movementID)
	return err
}
