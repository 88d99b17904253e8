package accounts

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) (*Store, string) {
	t.Helper()
	file := filepath.Join(t.TempDir(), "accounts", "secrets.db")
	s, err := Open(context.Background(), file, true)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Log("unable to close account store", err)
		}
	})
	return s, file
}

func TestCreateAndFind(t *testing.T) {
	ctx := context.Background()
	s, _ := tempStore(t)

	created, err := s.Create(ctx, Account{Email: " A@x.com ", Password: "derived", DisplayName: "a"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "a@x.com", created.Email)
	require.Nil(t, created.Secret)

	byEmail, err := s.FindByEmail(ctx, "a@X.com")
	require.NoError(t, err)
	require.Equal(t, created.ID, byEmail.ID)
	require.Equal(t, "derived", byEmail.Password)
	require.Nil(t, byEmail.Secret)

	byID, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", byID.Email)

	_, err = s.FindByEmail(ctx, "nobody@x.com")
	var notFound AccountNotFound
	require.True(t, errors.As(err, &notFound), "expecting AccountNotFound got %v", err)

	_, err = s.FindByID(ctx, "missing")
	require.True(t, errors.As(err, &notFound))
}

func TestCreateRejectsDuplicatesAndEmptyAccounts(t *testing.T) {
	ctx := context.Background()
	s, _ := tempStore(t)

	_, err := s.Create(ctx, Account{Email: "a@x.com", Password: "one"})
	require.NoError(t, err)

	_, err = s.Create(ctx, Account{Email: "A@X.COM", Password: "two"})
	var dup DuplicateAccount
	require.True(t, errors.As(err, &dup), "expecting DuplicateAccount got %v", err)
	require.Equal(t, "email", dup.Field)

	var invalid InvalidAccount
	_, err = s.Create(ctx, Account{})
	require.True(t, errors.As(err, &invalid))
	_, err = s.Create(ctx, Account{Email: "b@x.com"})
	require.True(t, errors.As(err, &invalid), "local accounts require a password")
}

func TestFindOrCreateByExternalID(t *testing.T) {
	ctx := context.Background()
	s, _ := tempStore(t)

	first, created, err := s.FindOrCreateByExternalID(ctx, Google, "g-1", "Ana")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "g-1", first.GoogleID)
	require.Empty(t, first.Email)
	require.Empty(t, first.Password)

	again, created, err := s.FindOrCreateByExternalID(ctx, Google, "g-1", "Ana")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, again.ID)

	other, created, err := s.FindOrCreateByExternalID(ctx, Google, "g-2", "Bob")
	require.NoError(t, err)
	require.True(t, created)
	require.NotEqual(t, first.ID, other.ID)

	// the same key at a different provider is a different identity
	fb, created, err := s.FindOrCreateByExternalID(ctx, Facebook, "g-1", "Ana")
	require.NoError(t, err)
	require.True(t, created)
	require.NotEqual(t, first.ID, fb.ID)
	require.Equal(t, "g-1", fb.FacebookID)
	require.Empty(t, fb.GoogleID)

	_, _, err = s.FindOrCreateByExternalID(ctx, Provider("github"), "x", "")
	var unknown UnknownProvider
	require.True(t, errors.As(err, &unknown))

	_, _, err = s.FindOrCreateByExternalID(ctx, Google, "", "")
	var invalid InvalidAccount
	require.True(t, errors.As(err, &invalid))
}

func TestFindOrCreateIsAtomic(t *testing.T) {
	ctx := context.Background()
	s, _ := tempStore(t)

	const workers = 8
	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, _, err := s.FindOrCreateByExternalID(ctx, Facebook, "fb-race", "Racer")
			ids[i], errs[i] = a.ID, err
		}(i)
	}
	wg.Wait()
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}
}

func TestSetSecretAndList(t *testing.T) {
	ctx := context.Background()
	s, _ := tempStore(t)

	a, err := s.Create(ctx, Account{Email: "a@x.com", Password: "p"})
	require.NoError(t, err)
	b, _, err := s.FindOrCreateByExternalID(ctx, Google, "g-1", "B")
	require.NoError(t, err)
	_, err = s.Create(ctx, Account{Email: "c@x.com", Password: "p"})
	require.NoError(t, err)

	secrets, err := s.ListSecrets(ctx)
	require.NoError(t, err)
	require.Empty(t, secrets)

	require.NoError(t, s.SetSecret(ctx, a.ID, "first"))
	require.NoError(t, s.SetSecret(ctx, b.ID, "second"))
	require.NoError(t, s.SetSecret(ctx, a.ID, "first, overwritten"))

	secrets, err = s.ListSecrets(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"first, overwritten", "second"}, secrets)

	reloaded, err := s.FindByID(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.Secret)
	require.Equal(t, "second", *reloaded.Secret)

	err = s.SetSecret(ctx, "missing", "x")
	var notFound AccountNotFound
	require.True(t, errors.As(err, &notFound))
}

func TestReopenReadOnly(t *testing.T) {
	ctx := context.Background()
	s, file := tempStore(t)
	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, Account{Email: fmt.Sprintf("user%v@x.com", i), Password: "p"})
		require.NoError(t, err)
	}
	// reopening a writable store must not fail on already applied migrations
	again, err := Open(ctx, file, true)
	require.NoError(t, err)
	require.NoError(t, again.Close())

	ro, err := Open(ctx, file, false)
	require.NoError(t, err)
	defer ro.Close()
	found, err := ro.FindByEmail(ctx, "user2@x.com")
	require.NoError(t, err)
	require.Equal(t, "user2@x.com", found.Email)
	_, err = ro.Create(ctx, Account{Email: "late@x.com", Password: "p"})
	require.ErrorIs(t, err, errReadOnly)
}
