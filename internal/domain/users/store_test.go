package users

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"solestore/internal/recordstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) Store {
	t.Helper()
	backend, err := recordstore.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	return NewRepository(recordstore.New(backend))
}

func newUser(t *testing.T, email, role string) *User {
	t.Helper()
	u := &User{FirstName: "Ada", LastName: "Runner", Email: email, Role: role, IsActive: true}
	require.NoError(t, u.Password.Set("s3cret-pass"))
	return u
}

func TestCreateNormalizesEmailAndRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	u := newUser(t, "  Ada@Example.COM ", "")
	require.NoError(t, repo.Create(ctx, u))
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, RoleCustomer, u.Role)

	err := repo.Create(ctx, newUser(t, "ADA@example.com", ""))
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestPasswordHashSurvivesStorage(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := newUser(t, "ada@example.com", "")
	require.NoError(t, repo.Create(ctx, u))

	got, err := repo.GetByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.NoError(t, got.Password.Compare("s3cret-pass"))
	assert.Error(t, got.Password.Compare("wrong"))
}

func TestGetMissingUser(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefreshTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := newUser(t, "ada@example.com", "")
	require.NoError(t, repo.Create(ctx, u))

	require.NoError(t, repo.RecordLogin(ctx, u.ID, "token-1"))
	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastLoginAt)
	assert.NotEqual(t, "token-1", got.RefreshTokenHash)

	_, err = repo.RotateRefreshToken(ctx, u.ID, "token-2", "token-3")
	assert.ErrorIs(t, err, ErrRefreshTokenMismatch)

	rotated, err := repo.RotateRefreshToken(ctx, u.ID, "token-1", "token-2")
	require.NoError(t, err)
	assert.Equal(t, u.ID, rotated.ID)

	_, err = repo.RotateRefreshToken(ctx, u.ID, "token-1", "token-3")
	assert.ErrorIs(t, err, ErrRefreshTokenMismatch)

	require.NoError(t, repo.ClearRefreshToken(ctx, u.ID))
	_, err = repo.RotateRefreshToken(ctx, u.ID, "token-2", "token-3")
	assert.ErrorIs(t, err, ErrRefreshTokenMismatch)

	_, err = repo.RotateRefreshToken(ctx, "missing", "token-2", "token-3")
	assert.ErrorIs(t, err, ErrRefreshTokenMismatch)
}

func TestRefreshTokenRotatesOnceUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := newUser(t, "ada@example.com", "")
	require.NoError(t, repo.Create(ctx, u))
	require.NoError(t, repo.RecordLogin(ctx, u.ID, "token-1"))

	var (
		wg sync.WaitGroup
		ok atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := repo.RotateRefreshToken(ctx, u.ID, "token-1", fmt.Sprintf("next-%d", i)); err == nil {
				ok.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
}

func TestInactiveUserCannotRotate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := newUser(t, "ada@example.com", "")
	require.NoError(t, repo.Create(ctx, u))
	require.NoError(t, repo.RecordLogin(ctx, u.ID, "token-1"))
	_, err := repo.Update(ctx, u.ID, func(u *User) error {
		u.IsActive = false
		return nil
	})
	require.NoError(t, err)

	_, err = repo.RotateRefreshToken(ctx, u.ID, "token-1", "token-2")
	assert.ErrorIs(t, err, ErrRefreshTokenMismatch)
}

func TestLastAdminIsProtected(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	admin := newUser(t, "admin@example.com", RoleAdmin)
	require.NoError(t, repo.Create(ctx, admin))

	_, err := repo.Update(ctx, admin.ID, func(u *User) error {
		u.Role = RoleCustomer
		return nil
	})
	assert.ErrorIs(t, err, ErrLastAdmin)
	assert.ErrorIs(t, repo.Delete(ctx, admin.ID), ErrLastAdmin)

	second := newUser(t, "second@example.com", RoleAdmin)
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Delete(ctx, admin.ID))

	_, err = repo.GetByID(ctx, admin.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListFiltersAndCounts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.Create(ctx, newUser(t, "admin@example.com", RoleAdmin)))
	bob := newUser(t, "bob@example.com", "")
	bob.FirstName = "Bob"
	require.NoError(t, repo.Create(ctx, bob))
	_, err := repo.Update(ctx, bob.ID, func(u *User) error {
		u.IsActive = false
		return nil
	})
	require.NoError(t, err)

	admins, err := repo.List(ctx, ListFilter{Role: RoleAdmin})
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "admin@example.com", admins[0].Email)

	inactive := false
	found, err := repo.List(ctx, ListFilter{Active: &inactive})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, bob.ID, found[0].ID)

	found, err = repo.List(ctx, ListFilter{Query: "BOB"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	counts, err := repo.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Total: 2, Active: 1, Inactive: 1, Admins: 1}, counts)
}

func TestProfileHidesSecrets(t *testing.T) {
	u := newUser(t, "ada@example.com", "")
	u.RefreshTokenHash = "abc"
	p := u.Profile()
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, "Ada Runner", u.FullName())
}
