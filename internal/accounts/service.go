package accounts

import (
	"context"
	"time"
)

// RepositoryPort abstracts persistence for the registry.
type RepositoryPort interface {
	Insert(ctx context.Context, in CreateInput) (Account, error)
	Get(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	List(ctx context.Context) ([]Account, error)
	Update(ctx context.Context, id int64, in UpdateInput, now time.Time) (Account, error)
	HasMovements(ctx context.Context, id int64) (bool, error)
	SoftDelete(ctx context.Context, id int64, now time.Time) error
}

// Service exposes the account registry operations.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService constructs the registry service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create validates and inserts a new account.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	if in.ParentID != nil {
		if _, err := s.repo.Get(ctx, *in.ParentID); err != nil {
			return Account{}, err
		}
	}
	return s.repo.Insert(ctx, in)
}

// Get loads one account.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// GetByCode loads one account by code.
func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns all active accounts ordered by code.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// ListTree returns the chart as a forest, children populated in a single
// pass over all rows.
func (s *Service) ListTree(ctx context.Context) ([]*TreeNode, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return BuildTree(all), nil
}

// Update patches an account and stamps updated_at.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Account, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Account{}, err
	}
	return s.repo.Update(ctx, id, in, s.now())
}

// SoftDelete deactivates an account. Accounts backing movements are kept
// forever; the delete is rejected with ErrAccountInUse.
func (s *Service) SoftDelete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	used, err := s.repo.HasMovements(ctx, id)
	if err != nil {
		return err
	}
	if used {
		return ErrAccountInUse
	}
	return s.repo.SoftDelete(ctx, id, s.now())
}
