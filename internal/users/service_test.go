package users

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/apperr"
)

type recordingRepo struct {
	created []User
	err     error
}

func (r *recordingRepo) Create(_ context.Context, u *User) error {
	if r.err != nil {
		return r.err
	}
	r.created = append(r.created, *u)
	return nil
}

func newTestService(repo Repository) *Service {
	s := NewService(repo)
	s.cost = bcrypt.MinCost
	return s
}

func TestCreate_HashesPassword(t *testing.T) {
	repo := &recordingRepo{}
	id, err := newTestService(repo).Create(context.Background(), "Asha", " Asha@Example.com ", "s3cret")
	require.NoError(t, err)
	require.Len(t, repo.created, 1)

	u := repo.created[0]
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "asha@example.com", u.Email)
	assert.NotEqual(t, "s3cret", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret")))
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService(&recordingRepo{})
	ctx := context.Background()

	for name, in := range map[string][3]string{
		"missing name":     {"", "a@b.co", "pw"},
		"missing email":    {"A", "", "pw"},
		"missing password": {"A", "a@b.co", ""},
		"bad email":        {"A", "not-an-email", "pw"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, in[0], in[1], in[2])
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestCreate_DuplicateEmailInMemory(t *testing.T) {
	svc := newTestService(NewMemoryRepository())
	ctx := context.Background()

	_, err := svc.Create(ctx, "Asha", "asha@example.com", "pw")
	require.NoError(t, err)

	_, err = svc.Create(ctx, "Asha Again", "ASHA@example.com", "pw")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreate_StoreFailure(t *testing.T) {
	svc := newTestService(&recordingRepo{err: errors.New("db down")})

	_, err := svc.Create(context.Background(), "Asha", "asha@example.com", "pw")
	assert.ErrorIs(t, err, apperr.ErrUpstream)
}
