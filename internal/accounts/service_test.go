package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	seq       int64
	byID      map[int64]*Account
	movements map[int64]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[int64]*Account), movements: make(map[int64]bool)}
}

func (f *fakeRepo) Insert(_ context.Context, in CreateInput) (Account, error) {
	for _, a := range f.byID {
		if a.Code == in.Code {
			return Account{}, ErrDuplicateCode
		}
	}
	f.seq++
	a := &Account{
		ID:       f.seq,
		Code:     in.Code,
		Name:     in.Name,
		Type:     in.Type,
		Nature:   in.Nature,
		Postable: in.Postable,
		ParentID: in.ParentID,
	}
	f.byID[a.ID] = a
	return *a, nil
}

func (f *fakeRepo) Get(_ context.Context, id int64) (Account, error) {
	a, ok := f.byID[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return *a, nil
}

func (f *fakeRepo) GetByCode(_ context.Context, code string) (Account, error) {
	for _, a := range f.byID {
		if a.Code == code && !a.Deleted {
			return *a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (f *fakeRepo) List(_ context.Context) ([]Account, error) {
	var out []Account
	for _, a := range f.byID {
		if !a.Deleted {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) Update(_ context.Context, id int64, in UpdateInput, now time.Time) (Account, error) {
	a, ok := f.byID[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	if in.Name != nil {
		a.Name = *in.Name
	}
	if in.Postable != nil {
		a.Postable = *in.Postable
	}
	if in.ParentID != nil {
		a.ParentID = in.ParentID
	}
	a.UpdatedAt = now
	return *a, nil
}

func (f *fakeRepo) HasMovements(_ context.Context, id int64) (bool, error) {
	return f.movements[id], nil
}

func (f *fakeRepo) SoftDelete(_ context.Context, id int64, now time.Time) error {
	a, ok := f.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.Deleted = true
	a.UpdatedAt = now
	return nil
}

func seedAccount(t *testing.T, repo *fakeRepo, code, name string, typ AccountType, nature Nature, postable bool, parent *int64) Account {
	t.Helper()
	a, err := repo.Insert(context.Background(), CreateInput{
		Code: code, Name: name, Type: typ, Nature: nature, Postable: postable, ParentID: parent,
	})
	require.NoError(t, err)
	return a
}

func TestCreateValidatesInput(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Create(context.Background(), CreateInput{Name: "Bank", Type: AccountTypeAsset, Nature: NatureDebit})
	require.ErrorContains(t, err, "code required")

	_, err = svc.Create(context.Background(), CreateInput{Code: "1010", Name: "Bank", Type: "WEIRD", Nature: NatureDebit})
	require.ErrorContains(t, err, "unknown account type")

	_, err = svc.Create(context.Background(), CreateInput{Code: "1010", Name: "Bank", Type: AccountTypeAsset, Nature: "UP"})
	require.ErrorContains(t, err, "unknown nature")
}

func TestCreateRejectsMissingParent(t *testing.T) {
	svc := NewService(newFakeRepo())

	missing := int64(99)
	_, err := svc.Create(context.Background(), CreateInput{
		Code: "1011", Name: "Checking", Type: AccountTypeAsset, Nature: NatureDebit, ParentID: &missing,
	})
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	seedAccount(t, repo, "1010", "Bank", AccountTypeAsset, NatureDebit, true, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		Code: "1010", Name: "Other bank", Type: AccountTypeAsset, Nature: NatureDebit,
	})
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestListTreeBuildsForest(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	assets := seedAccount(t, repo, "1000", "Assets", AccountTypeAsset, NatureDebit, false, nil)
	bank := seedAccount(t, repo, "1010", "Bank", AccountTypeAsset, NatureDebit, true, &assets.ID)
	seedAccount(t, repo, "1011", "Checking MXN", AccountTypeAsset, NatureDebit, true, &bank.ID)
	seedAccount(t, repo, "4000", "Income", AccountTypeIncome, NatureCredit, false, nil)

	tree, err := svc.ListTree(context.Background())
	require.NoError(t, err)
	require.Len(t, tree, 2)

	byCode := make(map[string]*TreeNode, len(tree))
	for _, n := range tree {
		byCode[n.Code] = n
	}
	root := byCode["1000"]
	require.NotNil(t, root)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "1010", root.Children[0].Code)
	require.Len(t, root.Children[0].Children, 1)
	assert.Equal(t, "1011", root.Children[0].Children[0].Code)
	assert.Empty(t, byCode["4000"].Children)
}

func TestBuildTreeOrphanBecomesRoot(t *testing.T) {
	gone := int64(77)
	tree := BuildTree([]Account{
		{ID: 1, Code: "5100", ParentID: &gone},
	})
	require.Len(t, tree, 1)
	assert.Equal(t, "5100", tree[0].Code)
}

func TestSoftDeleteRejectsAccountWithMovements(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	bank := seedAccount(t, repo, "1010", "Bank", AccountTypeAsset, NatureDebit, true, nil)
	repo.movements[bank.ID] = true

	err := svc.SoftDelete(context.Background(), bank.ID)
	require.ErrorIs(t, err, ErrAccountInUse)

	got, err := svc.Get(context.Background(), bank.ID)
	require.NoError(t, err)
	assert.False(t, got.Deleted)
}

func TestSoftDeleteHidesAccountFromList(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	bank := seedAccount(t, repo, "1010", "Bank", AccountTypeAsset, NatureDebit, true, nil)
	seedAccount(t, repo, "1020", "Cash", AccountTypeAsset, NatureDebit, true, nil)

	require.NoError(t, svc.SoftDelete(context.Background(), bank.ID))

	all, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "1020", all[0].Code)
}

func TestNominalTypes(t *testing.T) {
	assert.True(t, AccountTypeIncome.Nominal())
	assert.True(t, AccountTypeExpense.Nominal())
	assert.False(t, AccountTypeAsset.Nominal())
	assert.False(t, AccountTypeLiability.Nominal())
	assert.False(t, AccountTypeEquity.Nominal())
}
