package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores the per-company payment channel to flow account mapping.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Resolve(ctx context.Context, companyID int64, channel PaymentChannel) (int64, error) {
	var accountID int64
	err := r.pool.QueryRow(ctx, `
		SELECT account_id FROM flow_accounts WHERE company_id = $1 AND channel = $2`,
		companyID, channel).Scan(&accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", channel, ErrChannelUnmapped)
	}
	return accountID, err
}

// Upsert sets or replaces the flow account for a channel.
func (r *Repository) Upsert(ctx context.Context, companyID int64, channel PaymentChannel, accountID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO flow_accounts (company_id, channel, account_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (company_id, channel) DO UPDATE SET account_id = EXCLUDED.account_id`,
		companyID, channel, accountID)
	return err
}

// Mapping is one channel to account binding.
type Mapping struct {
	Channel   PaymentChannel `json:"channel"`
	AccountID int64          `json:"accountId"`
}

func (r *Repository) List(ctx context.Context, companyID int64) ([]Mapping, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT channel, account_id FROM flow_accounts WHERE company_id = $1 ORDER BY channel`,
		companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Mapping
	for rows.Next() {
		var m Mapping
		if err := rows.Scan(&m.Channel, &m.AccountID); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
