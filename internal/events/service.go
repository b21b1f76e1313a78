package events

import (
	"context"
	"fmt"
	"time"

	"github.com/koreacc/koreacc/internal/ledger"
	"github.com/koreacc/koreacc/internal/taxes"
)

// FlowAccountPort resolves a payment channel to the company's flow account.
type FlowAccountPort interface {
	Resolve(ctx context.Context, companyID int64, channel PaymentChannel) (int64, error)
}

// TaxLookupPort answers effective-rule queries, implemented by the taxes
// service.
type TaxLookupPort interface {
	Effective(ctx context.Context, companyID int64, flowKind string, date time.Time) ([]taxes.TaxRule, error)
}

// PosterPort hands the expanded movement set to the posting engine.
type PosterPort interface {
	Create(ctx context.Context, in ledger.CreateInput) (ledger.Entry, error)
}

// Service expands business events into journal entries.
type Service struct {
	flows  FlowAccountPort
	taxes  TaxLookupPort
	poster PosterPort
}

func NewService(flows FlowAccountPort, taxLookup TaxLookupPort, poster PosterPort) *Service {
	return &Service{flows: flows, taxes: taxLookup, poster: poster}
}

// Preview resolves and expands the event without posting anything, returning
// the candidate movement set.
func (s *Service) Preview(ctx context.Context, ev Event) ([]ledger.MovementInput, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	flowAccountID, err := s.flows.Resolve(ctx, ev.CompanyID, ev.PaymentChannel)
	if err != nil {
		return nil, err
	}
	rules, err := s.taxes.Effective(ctx, ev.CompanyID, string(ev.FlowKind), ev.Date)
	if err != nil {
		return nil, err
	}
	for _, t := range rules {
		if t.AccountID == 0 {
			return nil, fmt.Errorf("tax rule %q: %w", t.Name, ErrTaxAccountMissing)
		}
	}
	return Expand(ev, flowAccountID, rules), nil
}

// Post expands the event and hands the result to the posting engine under
// the actor already present in the context.
func (s *Service) Post(ctx context.Context, ev Event, authorID int64) (ledger.Entry, error) {
	movs, err := s.Preview(ctx, ev)
	if err != nil {
		return ledger.Entry{}, err
	}
	return s.poster.Create(ctx, ledger.CreateInput{
		CompanyID:    ev.CompanyID,
		DocTypeID:    ev.DocTypeID,
		PeriodID:     ev.PeriodID,
		AuthorID:     authorID,
		CostCenterID: ev.CostCenterID,
		Memo:         ev.Memo,
		EntryDate:    ev.Date,
		Movements:    movs,
	})
}
