package costcenters

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	seq     int64
	byID    map[int64]*CostCenter
	entries map[int64]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[int64]*CostCenter), entries: make(map[int64]bool)}
}

func (f *fakeRepo) Insert(_ context.Context, in CreateInput) (CostCenter, error) {
	f.seq++
	c := &CostCenter{
		ID:         f.seq,
		Name:       in.Name,
		SaleSeries: in.SaleSeries,
		Street:     in.Street,
		ExteriorNo: in.ExteriorNo,
		InteriorNo: in.InteriorNo,
		PostalCode: in.PostalCode,
		Region:     in.Region,
		Phone:      in.Phone,
		Email:      in.Email,
		ParentID:   in.ParentID,
		Active:     true,
	}
	f.byID[c.ID] = c
	return *c, nil
}

func (f *fakeRepo) Get(_ context.Context, id int64) (CostCenter, error) {
	c, ok := f.byID[id]
	if !ok {
		return CostCenter{}, ErrCenterNotFound
	}
	return *c, nil
}

func (f *fakeRepo) ListAll(_ context.Context) ([]CostCenter, error) {
	var out []CostCenter
	for _, c := range f.byID {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeRepo) Update(_ context.Context, id int64, in UpdateInput, now time.Time) (CostCenter, error) {
	c, ok := f.byID[id]
	if !ok {
		return CostCenter{}, ErrCenterNotFound
	}
	if in.Name != nil {
		c.Name = *in.Name
	}
	if in.Region != nil {
		c.Region = *in.Region
	}
	if in.Phone != nil {
		c.Phone = *in.Phone
	}
	c.UpdatedAt = now
	return *c, nil
}

func (f *fakeRepo) SetActive(_ context.Context, id int64, active bool, now time.Time) error {
	c, ok := f.byID[id]
	if !ok {
		return ErrCenterNotFound
	}
	c.Active = active
	c.UpdatedAt = now
	return nil
}

func (f *fakeRepo) SetParent(_ context.Context, id int64, parentID *int64, now time.Time) error {
	c, ok := f.byID[id]
	if !ok {
		return ErrCenterNotFound
	}
	c.ParentID = parentID
	c.UpdatedAt = now
	return nil
}

func (f *fakeRepo) HasEntries(_ context.Context, id int64) (bool, error) {
	return f.entries[id], nil
}

func seedCenter(t *testing.T, repo *fakeRepo, name string, parent *int64) CostCenter {
	t.Helper()
	c, err := repo.Insert(context.Background(), CreateInput{Name: name, Region: "CDMX", ParentID: parent})
	require.NoError(t, err)
	return c
}

func TestCreateValidatesInput(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Create(context.Background(), CreateInput{Region: "CDMX"})
	require.ErrorContains(t, err, "name required")

	_, err = svc.Create(context.Background(), CreateInput{Name: "Head office"})
	require.ErrorContains(t, err, "region required")
}

func TestCreateRejectsMissingParent(t *testing.T) {
	svc := NewService(newFakeRepo())

	missing := int64(42)
	_, err := svc.Create(context.Background(), CreateInput{Name: "Branch", Region: "CDMX", ParentID: &missing})
	require.ErrorIs(t, err, ErrCenterNotFound)
}

func TestListRootsAndChildren(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	hq := seedCenter(t, repo, "Head office", nil)
	north := seedCenter(t, repo, "North branch", &hq.ID)
	seedCenter(t, repo, "South branch", &hq.ID)
	seedCenter(t, repo, "North warehouse", &north.ID)

	roots, err := svc.ListRoots(context.Background())
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, hq.ID, roots[0].ID)

	children, err := svc.ListChildren(context.Background(), hq.ID)
	require.NoError(t, err)
	assert.Len(t, children, 2)
}

func TestGetSubtreeDepths(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	hq := seedCenter(t, repo, "Head office", nil)
	north := seedCenter(t, repo, "North branch", &hq.ID)
	warehouse := seedCenter(t, repo, "North warehouse", &north.ID)
	seedCenter(t, repo, "South branch", &hq.ID)

	subtree, err := svc.GetSubtree(context.Background(), hq.ID)
	require.NoError(t, err)
	require.Len(t, subtree, 4)

	depths := make(map[int64]int, len(subtree))
	for _, n := range subtree {
		depths[n.ID] = n.Depth
	}
	assert.Equal(t, 0, depths[hq.ID])
	assert.Equal(t, 1, depths[north.ID])
	assert.Equal(t, 2, depths[warehouse.ID])
}

func TestMoveRejectsSelfParent(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	hq := seedCenter(t, repo, "Head office", nil)

	_, err := svc.Move(context.Background(), hq.ID, &hq.ID)
	require.ErrorIs(t, err, ErrCyclicMove)
}

func TestMoveRejectsDescendantParent(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	hq := seedCenter(t, repo, "Head office", nil)
	north := seedCenter(t, repo, "North branch", &hq.ID)
	warehouse := seedCenter(t, repo, "North warehouse", &north.ID)

	_, err := svc.Move(context.Background(), hq.ID, &warehouse.ID)
	require.ErrorIs(t, err, ErrCyclicMove)

	got, err := svc.Get(context.Background(), hq.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ParentID)
}

func TestMoveReparents(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	hq := seedCenter(t, repo, "Head office", nil)
	north := seedCenter(t, repo, "North branch", &hq.ID)
	south := seedCenter(t, repo, "South branch", &hq.ID)

	moved, err := svc.Move(context.Background(), north.ID, &south.ID)
	require.NoError(t, err)
	require.NotNil(t, moved.ParentID)
	assert.Equal(t, south.ID, *moved.ParentID)

	moved, err = svc.Move(context.Background(), north.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, moved.ParentID)
}

func TestSoftDeactivateRejectsCenterWithEntries(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	hq := seedCenter(t, repo, "Head office", nil)
	repo.entries[hq.ID] = true

	err := svc.SoftDeactivate(context.Background(), hq.ID)
	require.ErrorIs(t, err, ErrCenterInUse)

	got, err := svc.Get(context.Background(), hq.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
}

func TestSoftDeactivate(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	hq := seedCenter(t, repo, "Head office", nil)

	require.NoError(t, svc.SoftDeactivate(context.Background(), hq.ID))

	got, err := svc.Get(context.Background(), hq.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
}
