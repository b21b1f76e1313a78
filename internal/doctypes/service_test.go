package doctypes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	seq  int64
	byID map[int64]*DocumentType
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[int64]*DocumentType)}
}

func (f *fakeRepo) Insert(_ context.Context, dt DocumentType) (DocumentType, error) {
	for _, existing := range f.byID {
		if existing.Nature == dt.Nature {
			return DocumentType{}, ErrDuplicateNature
		}
	}
	f.seq++
	dt.ID = f.seq
	f.byID[dt.ID] = &dt
	return dt, nil
}

func (f *fakeRepo) Get(_ context.Context, id int64) (DocumentType, error) {
	dt, ok := f.byID[id]
	if !ok {
		return DocumentType{}, ErrTypeNotFound
	}
	return *dt, nil
}

func (f *fakeRepo) GetByNature(_ context.Context, nature string) (DocumentType, error) {
	for _, dt := range f.byID {
		if dt.Nature == nature {
			return *dt, nil
		}
	}
	return DocumentType{}, ErrTypeNotFound
}

func (f *fakeRepo) List(_ context.Context) ([]DocumentType, error) {
	var out []DocumentType
	for _, dt := range f.byID {
		out = append(out, *dt)
	}
	return out, nil
}

func (f *fakeRepo) Update(_ context.Context, dt DocumentType) error {
	if _, ok := f.byID[dt.ID]; !ok {
		return ErrTypeNotFound
	}
	f.byID[dt.ID] = &dt
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return ErrTypeNotFound
	}
	delete(f.byID, id)
	return nil
}

func newTestService() (*Service, *fakeRepo) {
	repo := newFakeRepo()
	svc := NewService(repo).WithNow(func() time.Time {
		return time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	})
	return svc, repo
}

func TestCreateNormalizesNature(t *testing.T) {
	svc, _ := newTestService()

	dt, err := svc.Create(context.Background(), CreateInput{Nature: "  Ingreso ", Description: " Sales entries "})
	require.NoError(t, err)
	assert.Equal(t, "ingreso", dt.Nature)
	assert.Equal(t, "Sales entries", dt.Description)
}

func TestCreateRejectsEmptyNature(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), CreateInput{Nature: "   "})
	require.ErrorContains(t, err, "nature required")
}

func TestCreateRejectsDuplicateNature(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), CreateInput{Nature: "ingreso"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateInput{Nature: "INGRESO"})
	require.ErrorIs(t, err, ErrDuplicateNature)
}

func TestGetByNatureCaseInsensitive(t *testing.T) {
	svc, _ := newTestService()

	created, err := svc.Create(context.Background(), CreateInput{Nature: "cierre"})
	require.NoError(t, err)

	got, err := svc.GetByNature(context.Background(), "  CIERRE ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.GetByNature(context.Background(), "nomina")
	require.ErrorIs(t, err, ErrTypeNotFound)
}

func TestFolioPrefix(t *testing.T) {
	assert.Equal(t, "INGRESO", DocumentType{Nature: "ingreso"}.FolioPrefix())
	assert.Equal(t, "CIERRE", DocumentType{Nature: " cierre "}.FolioPrefix())
}

func TestUpdatePatchesFields(t *testing.T) {
	svc, _ := newTestService()

	created, err := svc.Create(context.Background(), CreateInput{Nature: "diario", Description: "General"})
	require.NoError(t, err)

	nature := " Diario General "
	updated, err := svc.Update(context.Background(), created.ID, UpdateInput{Nature: &nature})
	require.NoError(t, err)
	assert.Equal(t, "diario general", updated.Nature)
	assert.Equal(t, "General", updated.Description)
}

func TestDeleteMissingType(t *testing.T) {
	svc, _ := newTestService()

	err := svc.Delete(context.Background(), 99)
	require.ErrorIs(t, err, ErrTypeNotFound)
}
