package ledger

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koreacc/koreacc/internal/platform/lock"
	"github.com/koreacc/koreacc/internal/shared"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type taxDoc struct {
	linked     bool
	movementID int64
}

type fakeRepo struct {
	entries     map[int64]*Entry
	movements   map[int64][]Movement
	periods     map[int64]PeriodInfo
	docTypes    map[int64]DocTypeInfo
	costCenters map[int64]bool
	authors     map[int64]bool
	accounts    map[int64]AccountInfo
	taxDocs     map[string]*taxDoc

	nextEntryID    int64
	nextMovementID int64
	lockedScopes   []string
}

func newFakeRepo() *fakeRepo {
	f := &fakeRepo{
		entries:        make(map[int64]*Entry),
		movements:      make(map[int64][]Movement),
		periods:        make(map[int64]PeriodInfo),
		docTypes:       make(map[int64]DocTypeInfo),
		costCenters:    make(map[int64]bool),
		authors:        make(map[int64]bool),
		accounts:       make(map[int64]AccountInfo),
		taxDocs:        make(map[string]*taxDoc),
		nextEntryID:    1,
		nextMovementID: 1,
	}
	f.periods[10] = PeriodInfo{ID: 10, ExerciseID: 1, StartDate: date(2026, 6, 1), EndDate: date(2026, 6, 30), Open: true}
	f.periods[11] = PeriodInfo{ID: 11, ExerciseID: 1, StartDate: date(2026, 5, 1), EndDate: date(2026, 5, 31), Open: false}
	f.docTypes[1] = DocTypeInfo{ID: 1, Nature: "ingreso"}
	f.docTypes[2] = DocTypeInfo{ID: 2, Nature: "egreso"}
	f.costCenters[3] = true
	f.authors[100] = true
	f.accounts[1] = AccountInfo{ID: 1, Code: "1010", Postable: true}
	f.accounts[2] = AccountInfo{ID: 2, Code: "4100", Postable: true}
	f.accounts[3] = AccountInfo{ID: 3, Code: "2160", Postable: true}
	f.accounts[9] = AccountInfo{ID: 9, Code: "1000", Postable: false}
	return f
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) Get(ctx context.Context, id int64) (Entry, error) {
	e, ok := f.entries[id]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return *e, nil
}

func (f *fakeRepo) List(ctx context.Context, filter Filter) ([]Entry, error) {
	var out []Entry
	for _, e := range f.entries {
		if filter.PeriodID != 0 && e.PeriodID != filter.PeriodID {
			continue
		}
		if filter.DocTypeID != 0 && e.DocTypeID != filter.DocTypeID {
			continue
		}
		if filter.State != "" && e.State != filter.State {
			continue
		}
		if filter.OriginEntryID != nil && (e.OriginEntryID == nil || *e.OriginEntryID != *filter.OriginEntryID) {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (f *fakeRepo) AcquireScopeLock(ctx context.Context, key string) error {
	f.lockedScopes = append(f.lockedScopes, key)
	return nil
}

func (f *fakeRepo) MaxConsecutive(ctx context.Context, prefix string, year, month int, costCenterID int64) (int, error) {
	max := 0
	for _, e := range f.entries {
		dt := f.docTypes[e.DocTypeID]
		if !strings.EqualFold(dt.Nature, prefix) {
			continue
		}
		if e.FiscalYear == year && e.FiscalMonth == month && e.CostCenterID == costCenterID && e.Consecutive > max {
			max = e.Consecutive
		}
	}
	return max, nil
}

func (f *fakeRepo) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	for _, other := range f.entries {
		if other.Folio == e.Folio {
			return Entry{}, ErrFolioRace
		}
	}
	e.ID = f.nextEntryID
	f.nextEntryID++
	f.entries[e.ID] = &e
	return e, nil
}

func (f *fakeRepo) GetEntryForUpdate(ctx context.Context, id int64) (Entry, error) {
	return f.Get(ctx, id)
}

func (f *fakeRepo) UpdateEntry(ctx context.Context, e Entry) error {
	if _, ok := f.entries[e.ID]; !ok {
		return ErrEntryNotFound
	}
	f.entries[e.ID] = &e
	return nil
}

func (f *fakeRepo) DeleteEntry(ctx context.Context, id int64) error {
	delete(f.entries, id)
	return nil
}

func (f *fakeRepo) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	m.ID = f.nextMovementID
	f.nextMovementID++
	f.movements[m.EntryID] = append(f.movements[m.EntryID], m)
	return m, nil
}

func (f *fakeRepo) ListMovements(ctx context.Context, entryID int64) ([]Movement, error) {
	return f.movements[entryID], nil
}

func (f *fakeRepo) DeleteMovements(ctx context.Context, entryID int64) error {
	delete(f.movements, entryID)
	return nil
}

func (f *fakeRepo) PeriodInfo(ctx context.Context, id int64) (PeriodInfo, error) {
	p, ok := f.periods[id]
	if !ok {
		return PeriodInfo{}, ErrPeriodMissing
	}
	return p, nil
}

func (f *fakeRepo) DocTypeInfo(ctx context.Context, id int64) (DocTypeInfo, error) {
	dt, ok := f.docTypes[id]
	if !ok {
		return DocTypeInfo{}, ErrDocTypeMissing
	}
	return dt, nil
}

func (f *fakeRepo) CostCenterExists(ctx context.Context, id int64) (bool, error) {
	return f.costCenters[id], nil
}

func (f *fakeRepo) AuthorExists(ctx context.Context, id int64) (bool, error) {
	return f.authors[id], nil
}

func (f *fakeRepo) AccountInfo(ctx context.Context, id int64) (AccountInfo, error) {
	acc, ok := f.accounts[id]
	if !ok {
		return AccountInfo{}, ErrAccountNotPostable
	}
	return acc, nil
}

func (f *fakeRepo) LockTaxDocument(ctx context.Context, ref string) (bool, bool, error) {
	doc, ok := f.taxDocs[ref]
	if !ok {
		return false, false, nil
	}
	return true, doc.linked, nil
}

func (f *fakeRepo) MarkTaxDocumentLinked(ctx context.Context, ref string, movementID int64) error {
	f.taxDocs[ref].linked = true
	f.taxDocs[ref].movementID = movementID
	return nil
}

func newTestService(repo *fakeRepo) *Service {
	return NewService(repo, slog.Default()).WithNow(func() time.Time {
		return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	})
}

func validInput() CreateInput {
	return CreateInput{
		CompanyID:    1,
		DocTypeID:    1,
		PeriodID:     10,
		AuthorID:     100,
		CostCenterID: 3,
		Memo:         "cash sale",
		EntryDate:    date(2026, 6, 15),
		Movements: []MovementInput{
			{AccountID: 1, Side: SideDebit, Amount: dec("1000")},
			{AccountID: 2, Side: SideCredit, Amount: dec("600")},
			{AccountID: 3, Side: SideCredit, Amount: dec("400")},
		},
	}
}

func TestCreateEntry(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	e, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, StateDraft, e.State)
	assert.Equal(t, 1, e.Consecutive)
	assert.Equal(t, "INGRESO-06-3-2026-0001", e.Folio)
	assert.Equal(t, 2026, e.FiscalYear)
	assert.Equal(t, 6, e.FiscalMonth)
	assert.Len(t, repo.movements[e.ID], 3)
	require.NotEmpty(t, repo.lockedScopes)
	assert.Contains(t, repo.lockedScopes[0], "INGRESO")
}

func TestCreateUnbalancedRejected(t *testing.T) {
	svc := newTestService(newFakeRepo())

	in := validInput()
	in.Movements = []MovementInput{
		{AccountID: 1, Side: SideDebit, Amount: dec("1000")},
		{AccountID: 2, Side: SideCredit, Amount: dec("999.99")},
	}
	_, err := svc.Create(context.Background(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, err.Error(), "diff 0.01")
}

func TestFolioSequencePerScope(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	first, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	second, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	assert.Equal(t, 1, first.Consecutive)
	assert.Equal(t, 2, second.Consecutive)
	assert.Equal(t, "INGRESO-06-3-2026-0002", second.Folio)

	// A different document type nature starts its own sequence.
	in := validInput()
	in.DocTypeID = 2
	third, err := svc.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 1, third.Consecutive)
	assert.Equal(t, "EGRESO-06-3-2026-0001", third.Folio)
}

// racingRepo swaps the no-op scope lock for a real mutex held until the
// transaction ends, mirroring what the advisory lock does in postgres.
type racingRepo struct {
	*fakeRepo
	scopes *lock.KeyedMutex
}

func (r *racingRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &racingTx{fakeRepo: r.fakeRepo, scopes: r.scopes}
	err := fn(ctx, tx)
	for _, key := range tx.keys {
		r.scopes.Release(key)
	}
	return err
}

type racingTx struct {
	*fakeRepo
	scopes *lock.KeyedMutex
	keys   []string
}

func (t *racingTx) AcquireScopeLock(ctx context.Context, key string) error {
	if err := t.scopes.Acquire(ctx, nil, key); err != nil {
		return err
	}
	t.keys = append(t.keys, key)
	return nil
}

func TestFolioSequenceUnderConcurrentWriters(t *testing.T) {
	repo := newFakeRepo()
	racing := &racingRepo{fakeRepo: repo, scopes: lock.NewKeyedMutex()}
	svc := NewService(racing, slog.Default()).WithNow(func() time.Time {
		return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	})

	const writers = 16
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), validInput())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Len(t, repo.entries, writers)

	// All writers share one folio scope: every consecutive 1..N is issued
	// exactly once, with no gaps and no duplicates.
	seen := make(map[int]bool, writers)
	for _, e := range repo.entries {
		seen[e.Consecutive] = true
	}
	for n := 1; n <= writers; n++ {
		assert.True(t, seen[n], "consecutive %d not issued", n)
	}
}

func TestCreateIntoClosedPeriodRejected(t *testing.T) {
	svc := newTestService(newFakeRepo())

	in := validInput()
	in.PeriodID = 11
	_, err := svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrPeriodClosed)
}

func TestCreateLifecycleEntryIntoClosedPeriod(t *testing.T) {
	repo := newFakeRepo()
	repo.docTypes[5] = DocTypeInfo{ID: 5, Nature: "cierre"}
	repo.docTypes[6] = DocTypeInfo{ID: 6, Nature: "apertura"}
	svc := newTestService(repo)
	ctx := context.Background()

	// The closing entry posts after every period of the year is closed, so
	// the lifecycle natures pass the period gate.
	in := validInput()
	in.PeriodID = 11
	in.DocTypeID = 5
	in.EntryDate = date(2026, 5, 31)
	e, err := svc.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(11), e.PeriodID)

	in = validInput()
	in.PeriodID = 11
	in.DocTypeID = 6
	in.EntryDate = date(2026, 5, 31)
	_, err = svc.Create(ctx, in)
	require.NoError(t, err)

	// Ordinary natures stay gated.
	in = validInput()
	in.PeriodID = 11
	_, err = svc.Create(ctx, in)
	assert.ErrorIs(t, err, ErrPeriodClosed)
}

func TestCreateNonPostableAccountRejected(t *testing.T) {
	svc := newTestService(newFakeRepo())

	in := validInput()
	in.Movements[0].AccountID = 9
	_, err := svc.Create(context.Background(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccountNotPostable)
	assert.Contains(t, err.Error(), "1000")
}

func TestCreatePermissiveTagsMemo(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	in := validInput()
	in.State = StatePosted
	in.Movements = []MovementInput{
		{AccountID: 1, Side: SideDebit, Amount: dec("1000")},
		{AccountID: 2, Side: SideCredit, Amount: dec("900")},
	}
	e, err := svc.CreatePermissive(context.Background(), in)
	require.NoError(t, err)

	assert.Contains(t, e.Memo, "(unbalanced by 100)")
	// Unbalanced entries are forced back to DRAFT for review.
	assert.Equal(t, StateDraft, e.State)
}

func TestCreatePermissiveBalancedKeepsState(t *testing.T) {
	svc := newTestService(newFakeRepo())

	in := validInput()
	in.State = StatePosted
	e, err := svc.CreatePermissive(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, StatePosted, e.State)
	assert.Equal(t, "cash sale", e.Memo)
}

func TestFolioOverride(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	in := validInput()
	in.FolioOverride = ClosingFolio(1, 2026)
	e, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "CIERRE-1-2026", e.Folio)
	// The override replaces the label but still consumes a consecutive.
	assert.Equal(t, 1, e.Consecutive)

	next, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, 2, next.Consecutive)
}

func TestTaxDocumentLinking(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ref := "AD662D33-6934-459C-A128-BDF0393F0F44"
	repo.taxDocs[ref] = &taxDoc{}

	in := validInput()
	in.Movements[0].TaxDocumentID = "  ad662d33-6934-459c-a128-bdf0393f0f44 "
	e, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, repo.taxDocs[ref].linked)
	movs := repo.movements[e.ID]
	require.NotEmpty(t, movs)
	require.NotNil(t, movs[0].TaxDocumentID)
	assert.Equal(t, ref, *movs[0].TaxDocumentID)
}

func TestTaxDocumentAlreadyLinkedRejected(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ref := "AD662D33-6934-459C-A128-BDF0393F0F44"
	repo.taxDocs[ref] = &taxDoc{linked: true}

	in := validInput()
	in.Movements[0].TaxDocumentID = ref
	_, err := svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrTaxDocLinked)
}

func TestTaxDocumentMalformedRefRejected(t *testing.T) {
	svc := newTestService(newFakeRepo())

	in := validInput()
	in.Movements[0].TaxDocumentID = "not-a-uuid"
	_, err := svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrBadTaxDocRef)
}

func TestTaxDocumentNotImportedKeepsRef(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ref := "AD662D33-6934-459C-A128-BDF0393F0F44"

	in := validInput()
	in.Movements[0].TaxDocumentID = ref
	e, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	movs := repo.movements[e.ID]
	require.NotNil(t, movs[0].TaxDocumentID)
	assert.Equal(t, ref, *movs[0].TaxDocumentID)
}

func TestUpdateNonDraftRejected(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	in := validInput()
	in.State = StatePosted
	e, err := svc.Create(ctx, in)
	require.NoError(t, err)

	memo := "edited"
	_, err = svc.Update(ctx, e.ID, UpdateInput{Memo: &memo})
	assert.ErrorIs(t, err, ErrNotEditable)
}

func TestDeleteDraft(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	e, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, e.ID))
	_, err = svc.Get(ctx, e.ID)
	assert.ErrorIs(t, err, ErrEntryNotFound)
	assert.Empty(t, repo.movements[e.ID])
}

func TestAddMovementsMustKeepBalance(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	e, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	err = svc.AddMovements(ctx, e.ID, []MovementInput{
		{AccountID: 1, Side: SideDebit, Amount: dec("50")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrValidation)

	err = svc.AddMovements(ctx, e.ID, []MovementInput{
		{AccountID: 1, Side: SideDebit, Amount: dec("50")},
		{AccountID: 2, Side: SideCredit, Amount: dec("50")},
	})
	require.NoError(t, err)
	assert.Len(t, repo.movements[e.ID], 5)
}

func TestReplaceMovements(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	e, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	err = svc.ReplaceMovements(ctx, e.ID, []MovementInput{
		{AccountID: 1, Side: SideDebit, Amount: dec("250")},
		{AccountID: 2, Side: SideCredit, Amount: dec("250")},
	})
	require.NoError(t, err)
	assert.Len(t, repo.movements[e.ID], 2)
}

func TestChangeState(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	e, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	updated, err := svc.ChangeState(ctx, e.ID, StateApproved)
	require.NoError(t, err)
	assert.Equal(t, StateApproved, updated.State)

	_, err = svc.ChangeState(ctx, e.ID, "ARCHIVED")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestFindByPeriodAndType(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, found, err := svc.FindByPeriodAndType(ctx, 10, 1)
	require.NoError(t, err)
	assert.False(t, found)

	e, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	got, found, err := svc.FindByPeriodAndType(ctx, 10, 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, e.ID, got.ID)
}
