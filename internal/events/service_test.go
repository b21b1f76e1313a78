package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koreacc/koreacc/internal/ledger"
	"github.com/koreacc/koreacc/internal/taxes"
)

type fakeFlows struct {
	mappings map[PaymentChannel]int64
}

func (f *fakeFlows) Resolve(ctx context.Context, companyID int64, channel PaymentChannel) (int64, error) {
	id, ok := f.mappings[channel]
	if !ok {
		return 0, ErrChannelUnmapped
	}
	return id, nil
}

type fakeTaxes struct {
	rules []taxes.TaxRule
}

func (f *fakeTaxes) Effective(ctx context.Context, companyID int64, flowKind string, date time.Time) ([]taxes.TaxRule, error) {
	return f.rules, nil
}

type fakePoster struct {
	created []ledger.CreateInput
}

func (f *fakePoster) Create(ctx context.Context, in ledger.CreateInput) (ledger.Entry, error) {
	f.created = append(f.created, in)
	return ledger.Entry{ID: int64(len(f.created)), Folio: "INGRESO-06-3-2026-0001"}, nil
}

func newTestService(rules []taxes.TaxRule) (*Service, *fakePoster) {
	poster := &fakePoster{}
	flows := &fakeFlows{mappings: map[PaymentChannel]int64{ChannelBank: 11, ChannelCash: 12}}
	return NewService(flows, &fakeTaxes{rules: rules}, poster), poster
}

func TestPreview(t *testing.T) {
	svc, _ := newTestService([]taxes.TaxRule{iva16()})

	movs, err := svc.Preview(context.Background(), testEvent(FlowIncome, "1000"))
	require.NoError(t, err)
	require.Len(t, movs, 3)
	assert.NoError(t, ledger.CheckBalance(movs))
}

func TestPreviewUnmappedChannel(t *testing.T) {
	svc, _ := newTestService(nil)

	ev := testEvent(FlowIncome, "1000")
	ev.PaymentChannel = ChannelPayable
	_, err := svc.Preview(context.Background(), ev)
	assert.ErrorIs(t, err, ErrChannelUnmapped)
}

func TestPreviewTaxWithoutAccountRejected(t *testing.T) {
	rule := iva16()
	rule.AccountID = 0
	svc, _ := newTestService([]taxes.TaxRule{rule})

	_, err := svc.Preview(context.Background(), testEvent(FlowIncome, "1000"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaxAccountMissing)
	assert.Contains(t, err.Error(), "IVA 16%")
}

func TestPreviewInvalidEvent(t *testing.T) {
	svc, _ := newTestService(nil)

	ev := testEvent(FlowIncome, "1000")
	ev.BaseAmount = dec("-5")
	_, err := svc.Preview(context.Background(), ev)
	assert.Error(t, err)
}

func TestPostHandsMovementsToPoster(t *testing.T) {
	svc, poster := newTestService([]taxes.TaxRule{iva16()})

	ev := testEvent(FlowIncome, "1000")
	entry, err := svc.Post(context.Background(), ev, 100)
	require.NoError(t, err)
	assert.NotZero(t, entry.ID)

	require.Len(t, poster.created, 1)
	in := poster.created[0]
	assert.Equal(t, ev.DocTypeID, in.DocTypeID)
	assert.Equal(t, ev.PeriodID, in.PeriodID)
	assert.Equal(t, int64(100), in.AuthorID)
	assert.Equal(t, ev.Memo, in.Memo)
	assert.Len(t, in.Movements, 3)
	assert.NoError(t, ledger.CheckBalance(in.Movements))
}
