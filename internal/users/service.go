package users

import (
	"context"
	"strings"
	"time"
)

// RepositoryPort defines data access methods for the author registry.
type RepositoryPort interface {
	Insert(ctx context.Context, u User) (User, error)
	Get(ctx context.Context, id int64) (User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, u User) (User, error)
}

// Service handles author registry business logic.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	if err := in.Validate(); err != nil {
		return User{}, err
	}
	now := s.now().UTC()
	return s.repo.Insert(ctx, User{
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Name:      strings.TrimSpace(in.Name),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (User, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if in.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Active != nil {
		u.Active = *in.Active
	}
	if err := (CreateInput{Email: u.Email, Name: u.Name}).Validate(); err != nil {
		return User{}, err
	}
	u.UpdatedAt = s.now().UTC()
	return s.repo.Update(ctx, u)
}

// Deactivate keeps the row so historical entries keep their author.
func (s *Service) Deactivate(ctx context.Context, id int64) (User, error) {
	inactive := false
	return s.Update(ctx, id, UpdateInput{Active: &inactive})
}
