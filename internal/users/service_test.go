package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	seq  int64
	byID map[int64]*User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[int64]*User)}
}

func (f *fakeRepo) Insert(_ context.Context, u User) (User, error) {
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return User{}, ErrDuplicateEmail
		}
	}
	f.seq++
	u.ID = f.seq
	f.byID[u.ID] = &u
	return u, nil
}

func (f *fakeRepo) Get(_ context.Context, id int64) (User, error) {
	u, ok := f.byID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return *u, nil
}

func (f *fakeRepo) List(_ context.Context) ([]User, error) {
	var out []User
	for _, u := range f.byID {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeRepo) Update(_ context.Context, u User) (User, error) {
	if _, ok := f.byID[u.ID]; !ok {
		return User{}, ErrUserNotFound
	}
	f.byID[u.ID] = &u
	return u, nil
}

func newTestService() *Service {
	return NewService(newFakeRepo()).WithNow(func() time.Time {
		return time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	})
}

func TestCreateNormalizesEmail(t *testing.T) {
	svc := newTestService()

	u, err := svc.Create(context.Background(), CreateInput{Email: "  Ana@Example.COM ", Name: " Ana Torres "})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.Equal(t, "Ana Torres", u.Name)
	assert.True(t, u.Active)
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc := newTestService()

	_, err := svc.Create(context.Background(), CreateInput{Name: "Ana"})
	require.ErrorContains(t, err, "email is required")

	_, err = svc.Create(context.Background(), CreateInput{Email: "not-an-email", Name: "Ana"})
	require.ErrorContains(t, err, "email is malformed")

	_, err = svc.Create(context.Background(), CreateInput{Email: "ana@example.com"})
	require.ErrorContains(t, err, "name is required")
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	svc := newTestService()

	_, err := svc.Create(context.Background(), CreateInput{Email: "ana@example.com", Name: "Ana"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateInput{Email: "ANA@example.com", Name: "Other Ana"})
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestDeactivateKeepsRow(t *testing.T) {
	svc := newTestService()

	u, err := svc.Create(context.Background(), CreateInput{Email: "ana@example.com", Name: "Ana"})
	require.NoError(t, err)

	deactivated, err := svc.Deactivate(context.Background(), u.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)

	got, err := svc.Get(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
	assert.False(t, got.Active)
}

func TestUpdateRevalidates(t *testing.T) {
	svc := newTestService()

	u, err := svc.Create(context.Background(), CreateInput{Email: "ana@example.com", Name: "Ana"})
	require.NoError(t, err)

	bad := "broken"
	_, err = svc.Update(context.Background(), u.ID, UpdateInput{Email: &bad})
	require.ErrorContains(t, err, "email is malformed")

	_, err = svc.Update(context.Background(), 99, UpdateInput{})
	require.ErrorIs(t, err, ErrUserNotFound)
}
