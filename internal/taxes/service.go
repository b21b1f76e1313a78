package taxes

import (
	"context"
	"strings"
	"time"
)

// RepositoryPort is the storage surface the service depends on.
type RepositoryPort interface {
	Insert(ctx context.Context, t TaxRule) (TaxRule, error)
	Get(ctx context.Context, id int64) (TaxRule, error)
	List(ctx context.Context, companyID int64) ([]TaxRule, error)
	Update(ctx context.Context, t TaxRule) error
	Delete(ctx context.Context, id int64) error
}

// Service manages tax rules and answers effective-rule lookups for the
// event expander.
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

func (s *Service) Create(ctx context.Context, in CreateInput) (TaxRule, error) {
	if err := in.Validate(); err != nil {
		return TaxRule{}, err
	}
	now := s.now().UTC()
	return s.repo.Insert(ctx, TaxRule{
		CompanyID: in.CompanyID,
		Name:      strings.TrimSpace(in.Name),
		Mode:      in.Mode,
		AppliesTo: in.AppliesTo,
		Rate:      in.Rate,
		FixedFee:  in.FixedFee,
		AccountID: in.AccountID,
		ValidFrom: in.ValidFrom,
		ValidTo:   in.ValidTo,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (s *Service) Get(ctx context.Context, id int64) (TaxRule, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, companyID int64) ([]TaxRule, error) {
	return s.repo.List(ctx, companyID)
}

// Effective returns the company's rules whose validity window contains date
// and whose flow selector matches flowKind. EXEMPT rules are filtered out,
// they contribute no movement lines.
func (s *Service) Effective(ctx context.Context, companyID int64, flowKind string, date time.Time) ([]TaxRule, error) {
	all, err := s.repo.List(ctx, companyID)
	if err != nil {
		return nil, err
	}
	var out []TaxRule
	for _, t := range all {
		if t.Mode == ModeExempt {
			continue
		}
		if t.EffectiveAt(date) && t.AppliesTo.Matches(flowKind) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (TaxRule, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return TaxRule{}, err
	}
	if in.Name != nil {
		t.Name = strings.TrimSpace(*in.Name)
	}
	if in.Mode != nil {
		t.Mode = *in.Mode
	}
	if in.AppliesTo != nil {
		t.AppliesTo = *in.AppliesTo
	}
	if in.Rate != nil {
		t.Rate = *in.Rate
	}
	if in.FixedFee != nil {
		t.FixedFee = *in.FixedFee
	}
	if in.AccountID != nil {
		t.AccountID = *in.AccountID
	}
	if in.ValidFrom != nil {
		t.ValidFrom = *in.ValidFrom
	}
	if in.ClearValidTo {
		t.ValidTo = nil
	} else if in.ValidTo != nil {
		t.ValidTo = in.ValidTo
	}
	if err := (CreateInput{
		CompanyID: t.CompanyID,
		Name:      t.Name,
		Mode:      t.Mode,
		AppliesTo: t.AppliesTo,
		Rate:      t.Rate,
		FixedFee:  t.FixedFee,
		AccountID: t.AccountID,
		ValidFrom: t.ValidFrom,
		ValidTo:   t.ValidTo,
	}).Validate(); err != nil {
		return TaxRule{}, err
	}
	t.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, t); err != nil {
		return TaxRule{}, err
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
