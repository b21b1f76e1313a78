package doctypes

import (
	"context"
	"strings"
	"time"
)

// RepositoryPort is the storage surface the service depends on.
type RepositoryPort interface {
	Insert(ctx context.Context, dt DocumentType) (DocumentType, error)
	Get(ctx context.Context, id int64) (DocumentType, error)
	GetByNature(ctx context.Context, nature string) (DocumentType, error)
	List(ctx context.Context) ([]DocumentType, error)
	Update(ctx context.Context, dt DocumentType) error
	Delete(ctx context.Context, id int64) error
}

// Service manages the document type catalog.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Create(ctx context.Context, in CreateInput) (DocumentType, error) {
	if err := in.Validate(); err != nil {
		return DocumentType{}, err
	}
	now := s.now().UTC()
	return s.repo.Insert(ctx, DocumentType{
		Nature:      strings.ToLower(strings.TrimSpace(in.Nature)),
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (s *Service) Get(ctx context.Context, id int64) (DocumentType, error) {
	return s.repo.Get(ctx, id)
}

// GetByNature resolves a type by its semantic key, case-insensitively. The
// closing engine uses this to find the canonical opening and closing types.
func (s *Service) GetByNature(ctx context.Context, nature string) (DocumentType, error) {
	return s.repo.GetByNature(ctx, strings.ToLower(strings.TrimSpace(nature)))
}

func (s *Service) List(ctx context.Context) ([]DocumentType, error) {
	return s.repo.List(ctx)
}

func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (DocumentType, error) {
	dt, err := s.repo.Get(ctx, id)
	if err != nil {
		return DocumentType{}, err
	}
	if in.Nature != nil {
		dt.Nature = strings.ToLower(strings.TrimSpace(*in.Nature))
	}
	if in.Description != nil {
		dt.Description = strings.TrimSpace(*in.Description)
	}
	dt.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, dt); err != nil {
		return DocumentType{}, err
	}
	return dt, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
